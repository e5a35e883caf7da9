package main

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ivan-jiang/hbase"
	"github.com/peterh/liner"
)

// Shell is an interactive REPL for opening a store, loading fixtures, and
// running scans against it.
type Shell struct {
	store       *hbase.Store
	prompt      string
	historyFile string
	line        *liner.State
}

// NewShell builds a Shell over an already-open store.
func NewShell(store *hbase.Store) *Shell {
	historyFile := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".colshell_history")
	}
	return &Shell{
		store:       store,
		prompt:      "colshell> ",
		historyFile: historyFile,
	}
}

// Run starts the interactive loop.
func (s *Shell) Run() {
	s.line = liner.NewLiner()
	defer s.line.Close()

	s.line.SetCtrlCAborts(true)
	s.loadHistory()

	fmt.Println("column store scan shell " + versionString())
	fmt.Println("Type \\help for help, \\q to quit")
	fmt.Println()

	s.runLoop()
	s.saveHistory()
}

func (s *Shell) loadHistory() {
	if s.historyFile == "" {
		return
	}
	f, err := os.Open(s.historyFile)
	if err != nil {
		return
	}
	defer f.Close()
	s.line.ReadHistory(f)
}

func (s *Shell) saveHistory() {
	if s.historyFile == "" {
		return
	}
	f, err := os.Create(s.historyFile)
	if err != nil {
		return
	}
	defer f.Close()
	s.line.WriteHistory(f)
}

func (s *Shell) runLoop() {
	for {
		input, err := s.line.Prompt(s.prompt)
		if err != nil {
			if !s.handlePromptError(err) {
				break
			}
			continue
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		s.line.AppendHistory(input)
		if !s.execute(input) {
			break
		}
	}
}

func (s *Shell) handlePromptError(err error) bool {
	if err == liner.ErrPromptAborted {
		fmt.Println("^C")
		return true
	}
	fmt.Println()
	return false
}

// execute dispatches one backslash command. Returns false to exit the
// shell.
func (s *Shell) execute(line string) bool {
	if !strings.HasPrefix(line, "\\") {
		fmt.Println("unrecognized input, commands start with \\ (try \\help)")
		return true
	}
	fields := strings.Fields(line)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "\\q", "\\quit", "\\exit":
		return false
	case "\\help", "\\h", "\\?":
		s.printHelp()
	case "\\stats":
		s.printStats()
	case "\\flush":
		if err := s.store.Flush(); err != nil {
			fmt.Printf("flush error: %v\n", err)
		} else {
			fmt.Println("flushed")
		}
	case "\\compact":
		start := time.Now()
		if err := s.store.Compact(); err != nil {
			fmt.Printf("compact error: %v\n", err)
		} else {
			fmt.Printf("compacted in %v\n", time.Since(start))
		}
	case "\\put":
		s.handlePut(args)
	case "\\load":
		s.handleLoad(args)
	case "\\scan":
		s.handleScan(line[len(cmd):])
	case "\\get":
		s.handleGet(args)
	default:
		fmt.Printf("unknown command %q, try \\help\n", cmd)
	}
	return true
}

// handlePut implements: \put <row> <family> <qualifier> <value> [ts]
func (s *Shell) handlePut(args []string) {
	if len(args) < 4 {
		fmt.Println("usage: \\put <row> <family> <qualifier> <value> [timestamp]")
		return
	}
	ts := time.Now().UnixMilli()
	if len(args) >= 5 {
		parsed, err := strconv.ParseInt(args[4], 10, 64)
		if err != nil {
			fmt.Printf("invalid timestamp: %v\n", err)
			return
		}
		ts = parsed
	}
	cell := hbase.PutCell([]byte(args[0]), []byte(args[1]), []byte(args[2]), ts, []byte(args[3]))
	if err := s.store.Put(cell); err != nil {
		fmt.Printf("put error: %v\n", err)
		return
	}
	fmt.Println("ok")
}

// handleLoad implements: \load <file>, one fixture per line formatted as
// row,family,qualifier,value[,timestamp].
func (s *Shell) handleLoad(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: \\load <file>")
		return
	}
	f, err := os.Open(args[0])
	if err != nil {
		fmt.Printf("open error: %v\n", err)
		return
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ",", 5)
		if len(parts) < 4 {
			fmt.Printf("skipping malformed fixture line: %q\n", line)
			continue
		}
		ts := time.Now().UnixMilli()
		if len(parts) == 5 {
			if parsed, err := strconv.ParseInt(parts[4], 10, 64); err == nil {
				ts = parsed
			}
		}
		cell := hbase.PutCell([]byte(parts[0]), []byte(parts[1]), []byte(parts[2]), ts, []byte(parts[3]))
		if err := s.store.Put(cell); err != nil {
			fmt.Printf("put error at %q: %v\n", line, err)
			continue
		}
		n++
	}
	fmt.Printf("loaded %d fixtures\n", n)
}

// handleGet implements: \get <row>, a single-row scan shortcut.
func (s *Shell) handleGet(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: \\get <row>")
		return
	}
	row := []byte(args[0])
	spec := hbase.DefaultScanSpec()
	spec.StartRow = row
	spec.StopRow = row
	spec.StopInclusive = true
	spec.Get = true
	s.runScan(spec)
}

// handleScan implements: \scan [start=..] [stop=..] [where <expr>]
func (s *Shell) handleScan(rest string) {
	spec := hbase.DefaultScanSpec()
	rest = strings.TrimSpace(rest)
	tokens := strings.Fields(rest)

	var whereTokens []string
	inWhere := false
	for _, tok := range tokens {
		if inWhere {
			whereTokens = append(whereTokens, tok)
			continue
		}
		lower := strings.ToLower(tok)
		switch {
		case strings.HasPrefix(lower, "start="):
			spec.StartRow = []byte(tok[len("start="):])
		case strings.HasPrefix(lower, "stop="):
			spec.StopRow = []byte(tok[len("stop="):])
		case lower == "where":
			inWhere = true
		default:
			fmt.Printf("ignoring unrecognized scan token %q\n", tok)
		}
	}

	if len(whereTokens) > 0 {
		filter, err := hbase.ParseSQLFilter(strings.Join(whereTokens, " "))
		if err != nil {
			fmt.Printf("filter error: %v\n", err)
			return
		}
		spec.Filter = filter
	}

	s.runScan(spec)
}

func (s *Shell) runScan(spec *hbase.ScanSpec) {
	scanner, err := hbase.NewUserScan(s.store, spec, s.store.ScanInfo(), math.MaxUint64)
	if err != nil {
		fmt.Printf("scan error: %v\n", err)
		return
	}
	defer scanner.Close()

	total := 0
	var batch []hbase.Cell
	ctx := &hbase.ScanProgress{}
	for {
		more, err := scanner.Next(&batch, ctx)
		if err != nil {
			fmt.Printf("scan error: %v\n", err)
			return
		}
		for _, c := range batch {
			s.printCell(c)
			total++
		}
		batch = batch[:0]
		if !more {
			break
		}
	}
	fmt.Printf("(%d cells)\n", total)
}

func (s *Shell) printCell(c hbase.Cell) {
	value := "<record>"
	if c.ValKind == hbase.ValueKindBytes {
		value = string(c.Value)
	}
	fmt.Printf("%s\t%s:%s\t@%d\t%s\n", c.Row, c.Family, c.Qualifier, c.Timestamp, value)
}

func (s *Shell) printStats() {
	files := s.store.Storefiles()
	fmt.Printf("store files: %d\n", len(files))
	byLevel := map[int]int{}
	for _, f := range files {
		byLevel[f.Level]++
	}
	for level := 0; level <= maxLevel(byLevel); level++ {
		if n, ok := byLevel[level]; ok {
			fmt.Printf("  L%d: %d files\n", level, n)
		}
	}
}

func maxLevel(byLevel map[int]int) int {
	m := 0
	for level := range byLevel {
		if level > m {
			m = level
		}
	}
	return m
}

func (s *Shell) printHelp() {
	fmt.Println(`Commands:
  \put <row> <family> <qualifier> <value> [ts]   write one cell
  \load <file>                                    load fixtures (row,family,qualifier,value[,ts] per line)
  \get <row>                                      fetch one row
  \scan [start=<row>] [stop=<row>] [where <expr>] scan a row range, optionally filtered
  \flush                                          flush the memstore to a new store file
  \compact                                        merge all store files into one
  \stats                                          show store file counts per level
  \help, \h, \?                                   show this help
  \q, \quit, \exit                                exit the shell

Filter expressions (in \scan ... where <expr>) compare the pseudo-columns
qualifier and value, e.g.:
  \scan where qualifier = 'name'
  \scan start=user: stop=user:~ where value like 'A%'`)
}
