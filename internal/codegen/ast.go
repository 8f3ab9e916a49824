// Package codegen parses and validates expressions in the restricted query
// pipeline language that lookup answers are generated in.
package codegen

import "fmt"

// Pipeline is a validated sequence of stages over one table.
type Pipeline struct {
	Stages []Stage
}

type Stage interface {
	stage()
	String() string
}

type FilterStage struct {
	Cond Expr
}

type SelectStage struct {
	Columns []string
}

type GroupByStage struct {
	Columns []string
}

type AggregateStage struct {
	Aggs []AggCall
}

type SortStage struct {
	Column string
	Desc   bool
}

type LimitStage struct {
	N int
}

func (FilterStage) stage()    {}
func (SelectStage) stage()    {}
func (GroupByStage) stage()   {}
func (AggregateStage) stage() {}
func (SortStage) stage()      {}
func (LimitStage) stage()     {}

func (s FilterStage) String() string    { return fmt.Sprintf("filter(%s)", s.Cond) }
func (s SelectStage) String() string    { return fmt.Sprintf("select(%s)", joinComma(s.Columns)) }
func (s GroupByStage) String() string   { return fmt.Sprintf("groupby(%s)", joinComma(s.Columns)) }
func (s AggregateStage) String() string {
	names := make([]string, len(s.Aggs))
	for i, agg := range s.Aggs {
		names[i] = agg.String()
	}
	return fmt.Sprintf("aggregate(%s)", joinComma(names))
}
func (s SortStage) String() string {
	order := "asc"
	if s.Desc {
		order = "desc"
	}
	return fmt.Sprintf("sort(%s, %s)", s.Column, order)
}
func (s LimitStage) String() string { return fmt.Sprintf("limit(%d)", s.N) }

type AggFunc string

const (
	AggSum   AggFunc = "sum"
	AggAvg   AggFunc = "avg"
	AggMin   AggFunc = "min"
	AggMax   AggFunc = "max"
	AggCount AggFunc = "count"
)

type AggCall struct {
	Func   AggFunc
	Column string
}

// OutputName is the column name an aggregate produces, e.g. sum_amount.
func (a AggCall) OutputName() string {
	if a.Func == AggCount {
		return "count"
	}
	return string(a.Func) + "_" + a.Column
}

func (a AggCall) String() string {
	if a.Func == AggCount {
		return "count()"
	}
	return fmt.Sprintf("%s(%s)", a.Func, a.Column)
}

type Expr interface {
	expr()
	String() string
}

type BinaryOp string

const (
	OpAnd BinaryOp = "and"
	OpOr  BinaryOp = "or"
	OpEq  BinaryOp = "=="
	OpNe  BinaryOp = "!="
	OpGt  BinaryOp = ">"
	OpGe  BinaryOp = ">="
	OpLt  BinaryOp = "<"
	OpLe  BinaryOp = "<="
)

type BinaryExpr struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

type NotExpr struct {
	Inner Expr
}

type ContainsExpr struct {
	Column string
	Needle string
}

type ColumnRef struct {
	Name string
}

type NumberLit struct {
	Value float64
}

type StringLit struct {
	Value string
}

func (BinaryExpr) expr()   {}
func (NotExpr) expr()      {}
func (ContainsExpr) expr() {}
func (ColumnRef) expr()    {}
func (NumberLit) expr()    {}
func (StringLit) expr()    {}

func (e BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Left, e.Op, e.Right)
}
func (e NotExpr) String() string      { return fmt.Sprintf("(not %s)", e.Inner) }
func (e ContainsExpr) String() string { return fmt.Sprintf("contains(%s, %q)", e.Column, e.Needle) }
func (e ColumnRef) String() string    { return e.Name }
func (e NumberLit) String() string    { return fmt.Sprintf("%g", e.Value) }
func (e StringLit) String() string    { return fmt.Sprintf("%q", e.Value) }

func joinComma(parts []string) string {
	out := ""
	for i, part := range parts {
		if i > 0 {
			out += ", "
		}
		out += part
	}
	return out
}

// Error reports why an expression was rejected, with the byte offset of the
// offending token when known.
type Error struct {
	Msg string
	Pos int
}

func (e *Error) Error() string {
	if e.Pos > 0 {
		return fmt.Sprintf("%s (at offset %d)", e.Msg, e.Pos)
	}
	return e.Msg
}

func errf(pos int, format string, args ...any) *Error {
	return &Error{Msg: fmt.Sprintf(format, args...), Pos: pos}
}
