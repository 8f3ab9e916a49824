package sandbox

import (
	"fmt"
	"strings"
	"time"

	"github.com/Abhi-vish/financial-insights-ai/internal/codegen"
	"github.com/Abhi-vish/financial-insights-ai/internal/dataset"
)

func (x *execution) evalCondition(expr codegen.Expr, row dataset.Row) (bool, error) {
	switch e := expr.(type) {
	case codegen.BinaryExpr:
		switch e.Op {
		case codegen.OpAnd:
			left, err := x.evalCondition(e.Left, row)
			if err != nil || !left {
				return false, err
			}
			return x.evalCondition(e.Right, row)
		case codegen.OpOr:
			left, err := x.evalCondition(e.Left, row)
			if err != nil || left {
				return left, err
			}
			return x.evalCondition(e.Right, row)
		default:
			return x.evalComparison(e, row)
		}
	case codegen.NotExpr:
		inner, err := x.evalCondition(e.Inner, row)
		if err != nil {
			return false, err
		}
		return !inner, nil
	case codegen.ContainsExpr:
		idx, ok := x.ds.Schema.ColumnIndex(e.Column)
		if !ok {
			return false, fmt.Errorf("unknown column %q", e.Column)
		}
		if idx >= len(row) || row[idx].IsNull() {
			return false, nil
		}
		return strings.Contains(strings.ToLower(row[idx].String()), strings.ToLower(e.Needle)), nil
	default:
		return false, fmt.Errorf("unsupported condition %T", expr)
	}
}

func (x *execution) evalComparison(e codegen.BinaryExpr, row dataset.Row) (bool, error) {
	left, err := x.resolveOperand(e.Left, row)
	if err != nil {
		return false, err
	}
	right, err := x.resolveOperand(e.Right, row)
	if err != nil {
		return false, err
	}
	// Comparisons against missing values never match, so != also excludes
	// rows where the column is null.
	if left.IsNull() || right.IsNull() {
		return false, nil
	}
	left, right = alignDateOperands(left, right)
	return compareValues(e.Op, left, right)
}

func (x *execution) resolveOperand(expr codegen.Expr, row dataset.Row) (dataset.Value, error) {
	switch e := expr.(type) {
	case codegen.ColumnRef:
		idx, ok := x.ds.Schema.ColumnIndex(e.Name)
		if !ok {
			return dataset.Value{}, fmt.Errorf("unknown column %q", e.Name)
		}
		if idx >= len(row) {
			return dataset.Null(), nil
		}
		return row[idx], nil
	case codegen.NumberLit:
		return dataset.Number(e.Value), nil
	case codegen.StringLit:
		return dataset.Text(e.Value), nil
	default:
		return dataset.Value{}, fmt.Errorf("unsupported operand %T", expr)
	}
}

// alignDateOperands lifts a string literal next to a date value into a
// timestamp. Validation guarantees the literal parses.
func alignDateOperands(a, b dataset.Value) (dataset.Value, dataset.Value) {
	if a.Kind == dataset.KindTime && b.Kind == dataset.KindText {
		if t, err := time.Parse(codegen.DateLayout, b.Text); err == nil {
			b = dataset.Timestamp(t.UTC())
		}
	}
	if b.Kind == dataset.KindTime && a.Kind == dataset.KindText {
		if t, err := time.Parse(codegen.DateLayout, a.Text); err == nil {
			a = dataset.Timestamp(t.UTC())
		}
	}
	return a, b
}

func compareValues(op codegen.BinaryOp, a, b dataset.Value) (bool, error) {
	switch op {
	case codegen.OpEq:
		return equalValues(a, b), nil
	case codegen.OpNe:
		return !equalValues(a, b), nil
	case codegen.OpGt:
		return lessValue(b, a), nil
	case codegen.OpGe:
		return !lessValue(a, b), nil
	case codegen.OpLt:
		return lessValue(a, b), nil
	case codegen.OpLe:
		return !lessValue(b, a), nil
	default:
		return false, fmt.Errorf("unknown comparison operator %q", op)
	}
}

// equalValues matches strings case-insensitively so "groceries" finds the
// "Groceries" category.
func equalValues(a, b dataset.Value) bool {
	if a.Kind == dataset.KindNumber && b.Kind == dataset.KindNumber {
		return a.Number == b.Number
	}
	if a.Kind == dataset.KindTime && b.Kind == dataset.KindTime {
		return a.Time.Equal(b.Time)
	}
	return strings.EqualFold(a.String(), b.String())
}
