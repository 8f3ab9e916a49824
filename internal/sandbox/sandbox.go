// Package sandbox executes validated query pipelines against an in-memory
// dataset under hard time and size limits.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Abhi-vish/financial-insights-ai/internal/codegen"
	"github.com/Abhi-vish/financial-insights-ai/internal/dataset"
)

type Kind string

const (
	KindTimeout        Kind = "timeout"
	KindRuntime        Kind = "runtime"
	KindResultTooLarge Kind = "result_too_large"
)

// ExecError carries the failure class so callers can shape the degraded
// answer without string matching.
type ExecError struct {
	Kind Kind
	Err  error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("sandbox execution failed (%s): %v", e.Kind, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

func KindOf(err error) (Kind, bool) {
	var execErr *ExecError
	if errors.As(err, &execErr) {
		return execErr.Kind, true
	}
	return "", false
}

type Limits struct {
	// Time bounds the whole execution. Required.
	Time time.Duration
	// Rows caps the result set; overflow is clipped and marked truncated.
	Rows int
	// MaxGroups bounds groupby cardinality before aborting.
	MaxGroups int
	// CheckEvery is how many rows to process between deadline checks.
	CheckEvery int
}

func (l Limits) withDefaults() Limits {
	if l.Time <= 0 {
		l.Time = 2 * time.Second
	}
	if l.Rows <= 0 {
		l.Rows = 100
	}
	if l.MaxGroups <= 0 {
		l.MaxGroups = 1000
	}
	if l.CheckEvery <= 0 {
		l.CheckEvery = 256
	}
	return l
}

type Result struct {
	Columns   []string
	Rows      []dataset.Row
	Elapsed   time.Duration
	Truncated bool
}

type Executor struct {
	limits Limits
}

func New(limits Limits) *Executor {
	return &Executor{limits: limits.withDefaults()}
}

// Execute runs the pipeline to completion or to the first limit violation.
// On timeout no partial rows are returned. Execution is deterministic: the
// same pipeline over the same dataset yields the same rows in the same order.
func (e *Executor) Execute(ctx context.Context, p *codegen.Pipeline, ds *dataset.Dataset) (Result, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.limits.Time)
	defer cancel()

	run := &execution{ctx: ctx, limits: e.limits, ds: ds}
	result, err := run.run(p)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return Result{}, &ExecError{Kind: KindTimeout, Err: err}
		}
		var execErr *ExecError
		if errors.As(err, &execErr) {
			return Result{}, execErr
		}
		return Result{}, &ExecError{Kind: KindRuntime, Err: err}
	}
	result.Elapsed = time.Since(start)
	return result, nil
}

type execution struct {
	ctx     context.Context
	limits  Limits
	ds      *dataset.Dataset
	counter int
}

// tick checks the deadline every CheckEvery processed rows.
func (x *execution) tick() error {
	x.counter++
	if x.counter%x.limits.CheckEvery != 0 {
		return nil
	}
	return x.ctx.Err()
}

func (x *execution) run(p *codegen.Pipeline) (Result, error) {
	var (
		filters []codegen.FilterStage
		sel     *codegen.SelectStage
		group   *codegen.GroupByStage
		agg     *codegen.AggregateStage
		sortBy  *codegen.SortStage
		limit   *codegen.LimitStage
	)
	for _, stage := range p.Stages {
		switch s := stage.(type) {
		case codegen.FilterStage:
			filters = append(filters, s)
		case codegen.SelectStage:
			sel = &s
		case codegen.GroupByStage:
			group = &s
		case codegen.AggregateStage:
			agg = &s
		case codegen.SortStage:
			sortBy = &s
		case codegen.LimitStage:
			limit = &s
		default:
			return Result{}, fmt.Errorf("unsupported stage %T", stage)
		}
	}

	kept, err := x.applyFilters(filters)
	if err != nil {
		return Result{}, err
	}

	var result Result
	if agg != nil {
		result, err = x.aggregate(kept, group, agg)
	} else {
		result, err = x.project(kept, sel)
	}
	if err != nil {
		return Result{}, err
	}

	if sortBy != nil {
		sortRows(&result, sortBy.Column, sortBy.Desc)
	}
	if limit != nil && len(result.Rows) > limit.N {
		result.Rows = result.Rows[:limit.N]
	}
	if len(result.Rows) > x.limits.Rows {
		result.Rows = result.Rows[:x.limits.Rows]
		result.Truncated = true
	}
	return result, nil
}

func (x *execution) applyFilters(filters []codegen.FilterStage) ([]dataset.Row, error) {
	if len(filters) == 0 {
		return x.ds.Rows, nil
	}
	kept := make([]dataset.Row, 0, len(x.ds.Rows))
	for _, row := range x.ds.Rows {
		if err := x.tick(); err != nil {
			return nil, err
		}
		match := true
		for _, filter := range filters {
			ok, err := x.evalCondition(filter.Cond, row)
			if err != nil {
				return nil, err
			}
			if !ok {
				match = false
				break
			}
		}
		if match {
			kept = append(kept, row)
		}
	}
	return kept, nil
}

func (x *execution) project(rows []dataset.Row, sel *codegen.SelectStage) (Result, error) {
	if sel == nil {
		out := make([]dataset.Row, len(rows))
		copy(out, rows)
		return Result{Columns: x.ds.Schema.ColumnNames(), Rows: out}, nil
	}

	indices := make([]int, len(sel.Columns))
	for i, col := range sel.Columns {
		idx, ok := x.ds.Schema.ColumnIndex(col)
		if !ok {
			return Result{}, fmt.Errorf("unknown column %q", col)
		}
		indices[i] = idx
	}

	out := make([]dataset.Row, 0, len(rows))
	for _, row := range rows {
		if err := x.tick(); err != nil {
			return Result{}, err
		}
		projected := make(dataset.Row, len(indices))
		for i, idx := range indices {
			if idx < len(row) {
				projected[i] = row[idx]
			}
		}
		out = append(out, projected)
	}
	return Result{Columns: append([]string(nil), sel.Columns...), Rows: out}, nil
}

type accumulator struct {
	count int
	sum   float64
	min   dataset.Value
	max   dataset.Value
}

func (a *accumulator) observe(v dataset.Value) {
	if v.IsNull() {
		return
	}
	if a.count == 0 {
		a.min, a.max = v, v
	} else {
		if lessValue(v, a.min) {
			a.min = v
		}
		if lessValue(a.max, v) {
			a.max = v
		}
	}
	if v.Kind == dataset.KindNumber {
		a.sum += v.Number
	}
	a.count++
}

func (x *execution) aggregate(rows []dataset.Row, group *codegen.GroupByStage, agg *codegen.AggregateStage) (Result, error) {
	var groupIdx []int
	if group != nil {
		groupIdx = make([]int, len(group.Columns))
		for i, col := range group.Columns {
			idx, ok := x.ds.Schema.ColumnIndex(col)
			if !ok {
				return Result{}, fmt.Errorf("unknown column %q", col)
			}
			groupIdx[i] = idx
		}
	}

	aggIdx := make([]int, len(agg.Aggs))
	for i, call := range agg.Aggs {
		if call.Func == codegen.AggCount {
			aggIdx[i] = -1
			continue
		}
		idx, ok := x.ds.Schema.ColumnIndex(call.Column)
		if !ok {
			return Result{}, fmt.Errorf("unknown column %q", call.Column)
		}
		aggIdx[i] = idx
	}

	type bucket struct {
		key    []dataset.Value
		rows   int
		accums []accumulator
	}
	buckets := make(map[string]*bucket)
	order := make([]string, 0)

	for _, row := range rows {
		if err := x.tick(); err != nil {
			return Result{}, err
		}
		keyParts := make([]dataset.Value, len(groupIdx))
		var keyBuilder strings.Builder
		for i, idx := range groupIdx {
			if idx < len(row) {
				keyParts[i] = row[idx]
			}
			keyBuilder.WriteString(keyParts[i].String())
			keyBuilder.WriteByte(0)
		}
		key := keyBuilder.String()

		b, ok := buckets[key]
		if !ok {
			if len(buckets) >= x.limits.MaxGroups {
				return Result{}, &ExecError{
					Kind: KindResultTooLarge,
					Err:  fmt.Errorf("groupby produced more than %d groups", x.limits.MaxGroups),
				}
			}
			b = &bucket{key: keyParts, accums: make([]accumulator, len(agg.Aggs))}
			buckets[key] = b
			order = append(order, key)
		}
		b.rows++
		for i, idx := range aggIdx {
			if idx < 0 {
				continue
			}
			if idx < len(row) {
				b.accums[i].observe(row[idx])
			}
		}
	}

	columns := make([]string, 0, len(groupIdx)+len(agg.Aggs))
	if group != nil {
		columns = append(columns, group.Columns...)
	}
	for _, call := range agg.Aggs {
		columns = append(columns, call.OutputName())
	}

	// Whole-table aggregation always yields exactly one row, even over an
	// empty filter result.
	if group == nil && len(buckets) == 0 {
		buckets[""] = &bucket{accums: make([]accumulator, len(agg.Aggs))}
		order = append(order, "")
	}

	sort.Strings(order)
	out := make([]dataset.Row, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		row := make(dataset.Row, 0, len(columns))
		row = append(row, b.key...)
		for i, call := range agg.Aggs {
			row = append(row, finishAgg(call, &b.accums[i], b.rows))
		}
		out = append(out, row)
	}
	return Result{Columns: columns, Rows: out}, nil
}

func finishAgg(call codegen.AggCall, acc *accumulator, rows int) dataset.Value {
	switch call.Func {
	case codegen.AggCount:
		return dataset.Number(float64(rows))
	case codegen.AggSum:
		return dataset.Number(acc.sum)
	case codegen.AggAvg:
		if acc.count == 0 {
			return dataset.Null()
		}
		return dataset.Number(acc.sum / float64(acc.count))
	case codegen.AggMin:
		if acc.count == 0 {
			return dataset.Null()
		}
		return acc.min
	case codegen.AggMax:
		if acc.count == 0 {
			return dataset.Null()
		}
		return acc.max
	default:
		return dataset.Null()
	}
}

func sortRows(result *Result, column string, desc bool) {
	idx := -1
	for i, name := range result.Columns {
		if name == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	sort.SliceStable(result.Rows, func(i, j int) bool {
		a, b := result.Rows[i][idx], result.Rows[j][idx]
		if desc {
			return lessValue(b, a)
		}
		return lessValue(a, b)
	})
}

// lessValue orders values within one column: nulls sort last, numbers
// numerically, dates chronologically, everything else lexicographically.
func lessValue(a, b dataset.Value) bool {
	if a.IsNull() {
		return false
	}
	if b.IsNull() {
		return true
	}
	if a.Kind == dataset.KindNumber && b.Kind == dataset.KindNumber {
		return a.Number < b.Number
	}
	if a.Kind == dataset.KindTime && b.Kind == dataset.KindTime {
		return a.Time.Before(b.Time)
	}
	return a.String() < b.String()
}
