package codegen

import (
	"strings"
	"unicode"
)

type tokenKind uint8

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenNumber
	tokenString
	tokenLParen
	tokenRParen
	tokenComma
	tokenPipe
	tokenOp
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	input string
	pos   int
}

func newLexer(input string) *lexer {
	return &lexer{input: input}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{kind: tokenEOF, pos: l.pos}, nil
	}

	start := l.pos
	ch := l.input[l.pos]
	switch {
	case ch == '(':
		l.pos++
		return token{kind: tokenLParen, text: "(", pos: start}, nil
	case ch == ')':
		l.pos++
		return token{kind: tokenRParen, text: ")", pos: start}, nil
	case ch == ',':
		l.pos++
		return token{kind: tokenComma, text: ",", pos: start}, nil
	case ch == '|':
		l.pos++
		return token{kind: tokenPipe, text: "|", pos: start}, nil
	case ch == '"':
		return l.lexString()
	case ch == '=' || ch == '!' || ch == '<' || ch == '>':
		return l.lexOperator()
	case isDigit(ch) || (ch == '-' && l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1])):
		return l.lexNumber()
	case isIdentStart(ch):
		return l.lexIdent()
	default:
		return token{}, errf(start, "unexpected character %q", string(ch))
	}
}

func (l *lexer) lexString() (token, error) {
	start := l.pos
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '"' {
			l.pos++
			return token{kind: tokenString, text: sb.String(), pos: start}, nil
		}
		if ch == '\\' && l.pos+1 < len(l.input) {
			l.pos++
			ch = l.input[l.pos]
		}
		sb.WriteByte(ch)
		l.pos++
	}
	return token{}, errf(start, "unterminated string literal")
}

func (l *lexer) lexOperator() (token, error) {
	start := l.pos
	ch := l.input[l.pos]
	twoChar := l.pos+1 < len(l.input) && l.input[l.pos+1] == '='
	switch {
	case ch == '=' && twoChar:
		l.pos += 2
		return token{kind: tokenOp, text: "==", pos: start}, nil
	case ch == '!' && twoChar:
		l.pos += 2
		return token{kind: tokenOp, text: "!=", pos: start}, nil
	case ch == '<':
		if twoChar {
			l.pos += 2
			return token{kind: tokenOp, text: "<=", pos: start}, nil
		}
		l.pos++
		return token{kind: tokenOp, text: "<", pos: start}, nil
	case ch == '>':
		if twoChar {
			l.pos += 2
			return token{kind: tokenOp, text: ">=", pos: start}, nil
		}
		l.pos++
		return token{kind: tokenOp, text: ">", pos: start}, nil
	default:
		return token{}, errf(start, "unexpected character %q", string(ch))
	}
}

func (l *lexer) lexNumber() (token, error) {
	start := l.pos
	if l.input[l.pos] == '-' {
		l.pos++
	}
	sawDot := false
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '.' {
			if sawDot {
				return token{}, errf(l.pos, "malformed number")
			}
			sawDot = true
			l.pos++
			continue
		}
		if !isDigit(ch) {
			break
		}
		l.pos++
	}
	return token{kind: tokenNumber, text: l.input[start:l.pos], pos: start}, nil
}

func (l *lexer) lexIdent() (token, error) {
	start := l.pos
	for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
		l.pos++
	}
	return token{kind: tokenIdent, text: l.input[start:l.pos], pos: start}, nil
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}
