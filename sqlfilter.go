package hbase

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/blastrain/vitess-sqlparser/sqlparser"
)

// SQLFilter is a Filter driven by a WHERE-clause-flavored boolean
// expression over a cell's qualifier and value, e.g.:
//
//	qualifier = 'name' AND value LIKE 'A%'
//	qualifier != 'ttl' OR value > '100'
//
// Only the two pseudo-columns "qualifier" (alias "q") and "value" (alias
// "v") are recognized; any other column name is a parse error, since a
// store scan has no broader row/table schema to filter against.
type SQLFilter struct {
	root sqlExprNode
}

// ParseSQLFilter compiles a WHERE-clause-flavored expression into a
// SQLFilter. The expression is parsed by wrapping it in a throwaway
// SELECT, since vitess-sqlparser only parses full statements.
func ParseSQLFilter(expr string) (*SQLFilter, error) {
	stmt, err := sqlparser.Parse("select * from t where " + expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFilterSyntax, err)
	}
	sel, ok := stmt.(*sqlparser.Select)
	if !ok || sel.Where == nil {
		return nil, ErrFilterSyntax
	}
	node, err := compileExpr(sel.Where.Expr)
	if err != nil {
		return nil, err
	}
	return &SQLFilter{root: node}, nil
}

// TransformCell implements Filter. SQLFilter never rewrites a cell, only
// keeps or drops it.
func (f *SQLFilter) TransformCell(c Cell) (Cell, bool, error) {
	keep, err := f.root.eval(c)
	if err != nil {
		return Cell{}, false, err
	}
	return c, keep, nil
}

// sqlExprNode is a compiled, side-effect-free predicate over a Cell.
type sqlExprNode interface {
	eval(c Cell) (bool, error)
}

type andNode struct{ left, right sqlExprNode }

func (n andNode) eval(c Cell) (bool, error) {
	l, err := n.left.eval(c)
	if err != nil || !l {
		return false, err
	}
	return n.right.eval(c)
}

type orNode struct{ left, right sqlExprNode }

func (n orNode) eval(c Cell) (bool, error) {
	l, err := n.left.eval(c)
	if err != nil {
		return false, err
	}
	if l {
		return true, nil
	}
	return n.right.eval(c)
}

type notNode struct{ inner sqlExprNode }

func (n notNode) eval(c Cell) (bool, error) {
	v, err := n.inner.eval(c)
	if err != nil {
		return false, err
	}
	return !v, nil
}

// cmpNode compares one of the recognized pseudo-columns against a
// literal with the given operator.
type cmpNode struct {
	column   string // "qualifier" or "value"
	operator string
	literal  string
}

func (n cmpNode) eval(c Cell) (bool, error) {
	var actual string
	switch n.column {
	case "qualifier":
		actual = string(c.Qualifier)
	case "value":
		actual = cellValueString(c)
	default:
		return false, fmt.Errorf("%w: unknown column %q", ErrUnsupportedExpr, n.column)
	}

	switch n.operator {
	case "=":
		return actual == n.literal, nil
	case "!=", "<>":
		return actual != n.literal, nil
	case "<":
		return compareMaybeNumeric(actual, n.literal) < 0, nil
	case "<=":
		return compareMaybeNumeric(actual, n.literal) <= 0, nil
	case ">":
		return compareMaybeNumeric(actual, n.literal) > 0, nil
	case ">=":
		return compareMaybeNumeric(actual, n.literal) >= 0, nil
	case "like":
		return matchLike(actual, n.literal), nil
	case "not like":
		return !matchLike(actual, n.literal), nil
	default:
		return false, fmt.Errorf("%w: operator %q", ErrUnsupportedExpr, n.operator)
	}
}

// cellValueString renders a cell's payload as the comparable string a
// SQL literal is compared against, decoding record payloads to JSON.
func cellValueString(c Cell) string {
	if c.ValKind == ValueKindRecord {
		b, err := c.EncodeJSON()
		if err != nil {
			return ""
		}
		return string(b)
	}
	return string(c.Value)
}

// compareMaybeNumeric compares as numbers when both sides parse as
// float64, falling back to a byte-wise comparison otherwise.
func compareMaybeNumeric(a, b string) int {
	af, aerr := strconv.ParseFloat(a, 64)
	bf, berr := strconv.ParseFloat(b, 64)
	if aerr == nil && berr == nil {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return bytes.Compare([]byte(a), []byte(b))
}

// matchLike supports the subset of SQL LIKE this filter needs: a literal
// prefix optionally followed by a single trailing '%' wildcard.
func matchLike(actual, pattern string) bool {
	if strings.HasSuffix(pattern, "%") {
		return strings.HasPrefix(actual, pattern[:len(pattern)-1])
	}
	return actual == pattern
}

func compileExpr(expr sqlparser.Expr) (sqlExprNode, error) {
	switch e := expr.(type) {
	case *sqlparser.AndExpr:
		l, err := compileExpr(e.Left)
		if err != nil {
			return nil, err
		}
		r, err := compileExpr(e.Right)
		if err != nil {
			return nil, err
		}
		return andNode{l, r}, nil
	case *sqlparser.OrExpr:
		l, err := compileExpr(e.Left)
		if err != nil {
			return nil, err
		}
		r, err := compileExpr(e.Right)
		if err != nil {
			return nil, err
		}
		return orNode{l, r}, nil
	case *sqlparser.NotExpr:
		inner, err := compileExpr(e.Expr)
		if err != nil {
			return nil, err
		}
		return notNode{inner}, nil
	case *sqlparser.ParenExpr:
		return compileExpr(e.Expr)
	case *sqlparser.ComparisonExpr:
		return compileComparison(e)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedExpr, expr)
	}
}

func compileComparison(e *sqlparser.ComparisonExpr) (sqlExprNode, error) {
	col, colIsLeft, err := extractColumn(e.Left, e.Right)
	if err != nil {
		return nil, err
	}
	var litExpr sqlparser.Expr
	if colIsLeft {
		litExpr = e.Right
	} else {
		litExpr = e.Left
	}
	lit, ok := extractLiteral(litExpr)
	if !ok {
		return nil, fmt.Errorf("%w: comparison operand must be a literal", ErrUnsupportedExpr)
	}
	op := strings.ToLower(e.Operator)
	if !colIsLeft {
		op = flipOperator(op)
	}
	return cmpNode{column: col, operator: op, literal: lit}, nil
}

// extractColumn identifies which side of a comparison is the recognized
// pseudo-column and normalizes its name.
func extractColumn(left, right sqlparser.Expr) (column string, colIsLeft bool, err error) {
	if name, ok := columnName(left); ok {
		return name, true, nil
	}
	if name, ok := columnName(right); ok {
		return name, false, nil
	}
	return "", false, fmt.Errorf("%w: comparison must reference qualifier or value", ErrUnsupportedExpr)
}

func columnName(expr sqlparser.Expr) (string, bool) {
	col, ok := expr.(*sqlparser.ColName)
	if !ok {
		return "", false
	}
	switch strings.ToLower(col.Name.String()) {
	case "qualifier", "q":
		return "qualifier", true
	case "value", "v":
		return "value", true
	default:
		return "", false
	}
}

func extractLiteral(expr sqlparser.Expr) (string, bool) {
	v, ok := expr.(*sqlparser.SQLVal)
	if !ok {
		return "", false
	}
	switch v.Type {
	case sqlparser.StrVal, sqlparser.IntVal, sqlparser.FloatVal:
		return string(v.Val), true
	default:
		return "", false
	}
}

// flipOperator swaps the sides of a directional operator so a
// column-on-the-right comparison ("'x' > qualifier") still evaluates as
// qualifier-relative-to-literal.
func flipOperator(op string) string {
	switch op {
	case "<":
		return ">"
	case "<=":
		return ">="
	case ">":
		return "<"
	case ">=":
		return "<="
	default:
		return op
	}
}
