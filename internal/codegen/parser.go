package codegen

import (
	"strconv"
	"strings"
)

// Parse turns raw model output into a pipeline. It only checks syntax; column
// and type checks happen in Validate.
func Parse(input string) (*Pipeline, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, errf(0, "empty expression")
	}
	p := &parser{lexer: newLexer(input)}
	if err := p.advance(); err != nil {
		return nil, err
	}

	pipeline := &Pipeline{}
	for {
		stage, err := p.parseStage()
		if err != nil {
			return nil, err
		}
		pipeline.Stages = append(pipeline.Stages, stage)
		if p.cur.kind == tokenEOF {
			break
		}
		if p.cur.kind != tokenPipe {
			return nil, errf(p.cur.pos, "expected %q or end of expression, got %q", "|", p.cur.text)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return pipeline, nil
}

type parser struct {
	lexer *lexer
	cur   token
}

func (p *parser) advance() error {
	tok, err := p.lexer.next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	if p.cur.kind != kind {
		return token{}, errf(p.cur.pos, "expected %s, got %q", what, p.cur.text)
	}
	tok := p.cur
	if err := p.advance(); err != nil {
		return token{}, err
	}
	return tok, nil
}

func (p *parser) parseStage() (Stage, error) {
	name, err := p.expect(tokenIdent, "stage name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokenLParen, `"("`); err != nil {
		return nil, err
	}

	var stage Stage
	switch name.text {
	case "filter":
		cond, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		stage = FilterStage{Cond: cond}
	case "select":
		columns, err := p.parseColumnList()
		if err != nil {
			return nil, err
		}
		stage = SelectStage{Columns: columns}
	case "groupby":
		columns, err := p.parseColumnList()
		if err != nil {
			return nil, err
		}
		stage = GroupByStage{Columns: columns}
	case "aggregate":
		aggs, err := p.parseAggList()
		if err != nil {
			return nil, err
		}
		stage = AggregateStage{Aggs: aggs}
	case "sort":
		sortStage, err := p.parseSortArgs()
		if err != nil {
			return nil, err
		}
		stage = sortStage
	case "limit":
		num, err := p.expect(tokenNumber, "limit count")
		if err != nil {
			return nil, err
		}
		n, convErr := strconv.Atoi(num.text)
		if convErr != nil {
			return nil, errf(num.pos, "limit must be an integer, got %q", num.text)
		}
		stage = LimitStage{N: n}
	default:
		return nil, errf(name.pos, "unknown stage %q", name.text)
	}

	if _, err := p.expect(tokenRParen, `")"`); err != nil {
		return nil, err
	}
	return stage, nil
}

func (p *parser) parseColumnList() ([]string, error) {
	var columns []string
	for {
		col, err := p.expect(tokenIdent, "column name")
		if err != nil {
			return nil, err
		}
		columns = append(columns, col.text)
		if p.cur.kind != tokenComma {
			return columns, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
}

func (p *parser) parseAggList() ([]AggCall, error) {
	var aggs []AggCall
	for {
		agg, err := p.parseAggCall()
		if err != nil {
			return nil, err
		}
		aggs = append(aggs, agg)
		if p.cur.kind != tokenComma {
			return aggs, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
}

func (p *parser) parseAggCall() (AggCall, error) {
	name, err := p.expect(tokenIdent, "aggregate function")
	if err != nil {
		return AggCall{}, err
	}
	fn := AggFunc(name.text)
	switch fn {
	case AggSum, AggAvg, AggMin, AggMax, AggCount:
	default:
		return AggCall{}, errf(name.pos, "unknown aggregate function %q", name.text)
	}
	if _, err := p.expect(tokenLParen, `"("`); err != nil {
		return AggCall{}, err
	}
	call := AggCall{Func: fn}
	if fn != AggCount {
		col, err := p.expect(tokenIdent, "column name")
		if err != nil {
			return AggCall{}, err
		}
		call.Column = col.text
	}
	if _, err := p.expect(tokenRParen, `")"`); err != nil {
		return AggCall{}, err
	}
	return call, nil
}

func (p *parser) parseSortArgs() (SortStage, error) {
	col, err := p.expect(tokenIdent, "column name")
	if err != nil {
		return SortStage{}, err
	}
	stage := SortStage{Column: col.text}
	if p.cur.kind == tokenComma {
		if err := p.advance(); err != nil {
			return SortStage{}, err
		}
		dir, err := p.expect(tokenIdent, "sort direction")
		if err != nil {
			return SortStage{}, err
		}
		switch dir.text {
		case "asc":
		case "desc":
			stage.Desc = true
		default:
			return SortStage{}, errf(dir.pos, "sort direction must be asc or desc, got %q", dir.text)
		}
	}
	return stage, nil
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tokenIdent && p.cur.text == "or" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tokenIdent && p.cur.text == "and" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.cur.kind == tokenIdent && p.cur.text == "not" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return NotExpr{Inner: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	if p.cur.kind == tokenLParen {
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokenRParen, `")"`); err != nil {
			return nil, err
		}
		return inner, nil
	}

	if p.cur.kind == tokenIdent && p.cur.text == "contains" {
		return p.parseContains()
	}
	return p.parseComparison()
}

func (p *parser) parseContains() (Expr, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokenLParen, `"("`); err != nil {
		return nil, err
	}
	col, err := p.expect(tokenIdent, "column name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokenComma, `","`); err != nil {
		return nil, err
	}
	needle, err := p.expect(tokenString, "string literal")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokenRParen, `")"`); err != nil {
		return nil, err
	}
	return ContainsExpr{Column: col.text, Needle: needle.text}, nil
}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if p.cur.kind != tokenOp {
		return nil, errf(p.cur.pos, "expected comparison operator, got %q", p.cur.text)
	}
	op := BinaryOp(p.cur.text)
	if err := p.advance(); err != nil {
		return nil, err
	}
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return BinaryExpr{Op: op, Left: left, Right: right}, nil
}

func (p *parser) parseOperand() (Expr, error) {
	switch p.cur.kind {
	case tokenIdent:
		name := p.cur.text
		if name == "and" || name == "or" || name == "not" {
			return nil, errf(p.cur.pos, "unexpected keyword %q", name)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return ColumnRef{Name: name}, nil
	case tokenNumber:
		value, err := strconv.ParseFloat(p.cur.text, 64)
		if err != nil {
			return nil, errf(p.cur.pos, "malformed number %q", p.cur.text)
		}
		if advErr := p.advance(); advErr != nil {
			return nil, advErr
		}
		return NumberLit{Value: value}, nil
	case tokenString:
		value := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return StringLit{Value: value}, nil
	default:
		return nil, errf(p.cur.pos, "expected column or literal, got %q", p.cur.text)
	}
}
