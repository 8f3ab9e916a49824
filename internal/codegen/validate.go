package codegen

import (
	"time"

	"github.com/Abhi-vish/financial-insights-ai/internal/dataset"
)

// DateLayout is the only date literal form the language accepts.
const DateLayout = "2006-01-02"

// Compile parses and validates model output in one step.
func Compile(input string, schema dataset.Schema) (*Pipeline, error) {
	pipeline, err := Parse(input)
	if err != nil {
		return nil, err
	}
	if err := Validate(pipeline, schema); err != nil {
		return nil, err
	}
	return pipeline, nil
}

// stagePhase orders stages into the canonical pipeline shape:
// filters, then projection or grouping, then aggregation, then sort, then limit.
func stagePhase(s Stage) int {
	switch s.(type) {
	case FilterStage:
		return 1
	case SelectStage, GroupByStage:
		return 2
	case AggregateStage:
		return 3
	case SortStage:
		return 4
	case LimitStage:
		return 5
	default:
		return 0
	}
}

// Validate checks the pipeline against the dataset schema: stage order,
// column existence and operand types.
func Validate(p *Pipeline, schema dataset.Schema) error {
	if p == nil || len(p.Stages) == 0 {
		return errf(0, "empty pipeline")
	}

	var (
		selectStage    *SelectStage
		groupByStage   *GroupByStage
		aggregateStage *AggregateStage
		sortStage      *SortStage
		lastPhase      int
	)

	for _, stage := range p.Stages {
		phase := stagePhase(stage)
		if phase < lastPhase {
			return errf(0, "stage %s cannot follow later stages", stage)
		}
		if phase == lastPhase && phase != 1 {
			return errf(0, "duplicate stage %s", stage)
		}
		lastPhase = phase

		switch s := stage.(type) {
		case FilterStage:
			if err := validateCondition(s.Cond, schema); err != nil {
				return err
			}
		case SelectStage:
			if len(s.Columns) == 0 {
				return errf(0, "select needs at least one column")
			}
			for _, col := range s.Columns {
				if _, ok := schema.Column(col); !ok {
					return errf(0, "unknown column %q", col)
				}
			}
			selectStage = &s
		case GroupByStage:
			for _, col := range s.Columns {
				if _, ok := schema.Column(col); !ok {
					return errf(0, "unknown column %q", col)
				}
			}
			groupByStage = &s
		case AggregateStage:
			if len(s.Aggs) == 0 {
				return errf(0, "aggregate needs at least one function")
			}
			for _, agg := range s.Aggs {
				if err := validateAggCall(agg, schema); err != nil {
					return err
				}
			}
			aggregateStage = &s
		case SortStage:
			sortStage = &s
		case LimitStage:
			if s.N <= 0 {
				return errf(0, "limit must be positive, got %d", s.N)
			}
		}
	}

	if groupByStage != nil && aggregateStage == nil {
		return errf(0, "groupby requires an aggregate stage")
	}
	if selectStage != nil && (groupByStage != nil || aggregateStage != nil) {
		return errf(0, "select cannot be combined with groupby or aggregate")
	}

	if sortStage != nil {
		if !sortable(sortStage.Column, selectStage, groupByStage, aggregateStage, schema) {
			return errf(0, "sort column %q is not in the pipeline output", sortStage.Column)
		}
	}
	return nil
}

func sortable(column string, sel *SelectStage, group *GroupByStage, agg *AggregateStage, schema dataset.Schema) bool {
	if agg != nil {
		if group != nil {
			for _, col := range group.Columns {
				if col == column {
					return true
				}
			}
		}
		for _, call := range agg.Aggs {
			if call.OutputName() == column {
				return true
			}
		}
		return false
	}
	if sel != nil {
		for _, col := range sel.Columns {
			if col == column {
				return true
			}
		}
		return false
	}
	_, ok := schema.Column(column)
	return ok
}

func validateAggCall(agg AggCall, schema dataset.Schema) error {
	if agg.Func == AggCount {
		return nil
	}
	col, ok := schema.Column(agg.Column)
	if !ok {
		return errf(0, "unknown column %q", agg.Column)
	}
	switch agg.Func {
	case AggSum, AggAvg:
		if col.Type != dataset.TypeNumeric {
			return errf(0, "%s requires a numeric column, %q is %s", agg.Func, col.Name, col.Type)
		}
	case AggMin, AggMax:
		if col.Type != dataset.TypeNumeric && col.Type != dataset.TypeDate {
			return errf(0, "%s requires a numeric or date column, %q is %s", agg.Func, col.Name, col.Type)
		}
	}
	return nil
}

func validateCondition(expr Expr, schema dataset.Schema) error {
	switch e := expr.(type) {
	case BinaryExpr:
		if e.Op == OpAnd || e.Op == OpOr {
			if err := validateCondition(e.Left, schema); err != nil {
				return err
			}
			return validateCondition(e.Right, schema)
		}
		return validateComparison(e, schema)
	case NotExpr:
		return validateCondition(e.Inner, schema)
	case ContainsExpr:
		col, ok := schema.Column(e.Column)
		if !ok {
			return errf(0, "unknown column %q", e.Column)
		}
		switch col.Type {
		case dataset.TypeText, dataset.TypeCategorical, dataset.TypeIdentifier:
			return nil
		default:
			return errf(0, "contains requires a text column, %q is %s", col.Name, col.Type)
		}
	default:
		return errf(0, "condition must be a comparison")
	}
}

func validateComparison(e BinaryExpr, schema dataset.Schema) error {
	leftCol, leftIsCol := e.Left.(ColumnRef)
	rightCol, rightIsCol := e.Right.(ColumnRef)

	if !leftIsCol && !rightIsCol {
		return errf(0, "comparison needs at least one column")
	}

	resolve := func(ref ColumnRef) (dataset.Column, error) {
		col, ok := schema.Column(ref.Name)
		if !ok {
			return dataset.Column{}, errf(0, "unknown column %q", ref.Name)
		}
		return col, nil
	}

	if leftIsCol && rightIsCol {
		left, err := resolve(leftCol)
		if err != nil {
			return err
		}
		right, err := resolve(rightCol)
		if err != nil {
			return err
		}
		if !comparableTypes(left.Type, right.Type) {
			return errf(0, "cannot compare %s column %q with %s column %q", left.Type, left.Name, right.Type, right.Name)
		}
		return checkOrderingOp(e.Op, left.Type)
	}

	colRef := leftCol
	literal := e.Right
	if rightIsCol {
		colRef = rightCol
		literal = e.Left
	}
	col, err := resolve(colRef)
	if err != nil {
		return err
	}

	switch lit := literal.(type) {
	case NumberLit:
		if col.Type != dataset.TypeNumeric {
			return errf(0, "cannot compare %s column %q with a number", col.Type, col.Name)
		}
	case StringLit:
		if col.Type == dataset.TypeNumeric {
			return errf(0, "cannot compare numeric column %q with a string", col.Name)
		}
		if col.Type == dataset.TypeDate {
			if _, parseErr := time.Parse(DateLayout, lit.Value); parseErr != nil {
				return errf(0, "date literal %q must use the form %s", lit.Value, DateLayout)
			}
		}
	default:
		return errf(0, "comparison operand must be a column or literal")
	}
	return checkOrderingOp(e.Op, col.Type)
}

func comparableTypes(a, b dataset.ColumnType) bool {
	if a == b {
		return true
	}
	stringy := func(t dataset.ColumnType) bool {
		return t == dataset.TypeText || t == dataset.TypeCategorical || t == dataset.TypeIdentifier
	}
	return stringy(a) && stringy(b)
}

func checkOrderingOp(op BinaryOp, colType dataset.ColumnType) error {
	switch op {
	case OpEq, OpNe:
		return nil
	case OpGt, OpGe, OpLt, OpLe:
		if colType == dataset.TypeNumeric || colType == dataset.TypeDate {
			return nil
		}
		return errf(0, "operator %s requires a numeric or date column", op)
	default:
		return errf(0, "unknown comparison operator %q", op)
	}
}
