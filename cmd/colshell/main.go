package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ivan-jiang/hbase"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	dir := flag.String("dir", "/tmp/colshell-store", "store directory")
	profile := flag.String("profile", "default", "options profile: default, low-memory, high-throughput")
	flag.Parse()

	opts, err := optionsForProfile(*profile, *dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	store, err := hbase.Open(*dir, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store at %s: %v\n", *dir, err)
		os.Exit(1)
	}
	defer store.Close()

	NewShell(store).Run()
}

func optionsForProfile(profile, dir string) (hbase.Options, error) {
	switch profile {
	case "default", "":
		return hbase.DefaultOptions(dir), nil
	case "low-memory":
		return hbase.LowMemoryOptions(dir), nil
	case "high-throughput":
		return hbase.HighThroughputOptions(dir), nil
	default:
		return hbase.Options{}, fmt.Errorf("unknown profile %q", profile)
	}
}

func versionString() string {
	return Version + " (" + GitCommit + ")"
}
