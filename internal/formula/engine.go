// Package formula recomputes "computed column" cells in a dataset without
// any code execution risk. The grammar is plain arithmetic:
//
//	expression := term (('+'|'-') term)*
//	term       := factor (('*'|'/') factor)*
//	factor     := NUMBER | REF | '-' factor | '(' expression ')'
//
// REF is a spreadsheet letter reference (A, B, ... AA) resolved against the
// same row. Failures are row-scoped: a bad cell becomes null, never an error
// for the whole dataset.
package formula

import (
	"fmt"
	"math"
	"strings"

	"github.com/atelierhq/atelier-backend/internal/dataset"
)

// Apply returns a copy of the blob with every computed column recomputed.
// It is idempotent: feeding its own output back through yields the same
// result.
func Apply(blob *dataset.Blob) *dataset.Blob {
	if blob == nil {
		return nil
	}
	out := blob.Clone()
	for i := range out.Datasets {
		applyDataset(&out.Datasets[i])
	}
	return out
}

func applyDataset(ds *dataset.Dataset) {
	computed := normalizedComputedColumns(ds)
	if len(computed) == 0 {
		return
	}
	for _, row := range ds.Rows {
		for _, col := range computed {
			if col.Index >= len(row) {
				continue
			}
			value, err := EvaluateForRow(col.Formula, row)
			if err != nil {
				row[col.Index] = dataset.Null()
				continue
			}
			row[col.Index] = value
		}
	}
}

// normalizedComputedColumns drops blank formulas, out-of-range indexes, and
// duplicate indexes (first declaration wins).
func normalizedComputedColumns(ds *dataset.Dataset) []dataset.ComputedColumn {
	if len(ds.Schema) == 0 {
		return nil
	}
	seen := map[int]bool{}
	var out []dataset.ComputedColumn
	for _, col := range ds.ComputedColumns {
		if strings.TrimSpace(col.Formula) == "" {
			continue
		}
		if col.Index < 0 || col.Index >= len(ds.Schema) {
			continue
		}
		if seen[col.Index] {
			continue
		}
		seen[col.Index] = true
		out = append(out, col)
	}
	return out
}

// EvaluateForRow evaluates a formula against one row's cells.
func EvaluateForRow(formula string, row []dataset.Value) (dataset.Value, error) {
	tokens, err := tokenize(formula)
	if err != nil {
		return dataset.Null(), err
	}
	p := &parser{tokens: tokens, row: row}
	value, err := p.parseExpression()
	if err != nil {
		return dataset.Null(), err
	}
	if p.current() != nil {
		return dataset.Null(), fmt.Errorf("unexpected token %q", p.current().text)
	}
	return normalizeNumeric(value), nil
}

type tokenKind int

const (
	tokenNumber tokenKind = iota
	tokenRef
	tokenOp
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

func tokenize(formula string) ([]token, error) {
	var tokens []token
	runes := []rune(formula)
	i := 0
	for i < len(runes) {
		ch := runes[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case (ch >= '0' && ch <= '9') || ch == '.':
			j := i + 1
			for j < len(runes) && ((runes[j] >= '0' && runes[j] <= '9') || runes[j] == '.') {
				j++
			}
			literal := string(runes[i:j])
			num, err := parseNumberLiteral(literal)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokenNumber, text: literal, num: num})
			i = j
		case (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z'):
			j := i + 1
			for j < len(runes) && ((runes[j] >= 'a' && runes[j] <= 'z') || (runes[j] >= 'A' && runes[j] <= 'Z')) {
				j++
			}
			tokens = append(tokens, token{kind: tokenRef, text: strings.ToUpper(string(runes[i:j]))})
			i = j
		case ch == '+' || ch == '-' || ch == '*' || ch == '/' || ch == '(' || ch == ')':
			tokens = append(tokens, token{kind: tokenOp, text: string(ch)})
			i++
		default:
			return nil, fmt.Errorf("invalid token %q", string(ch))
		}
	}
	return tokens, nil
}

func parseNumberLiteral(literal string) (float64, error) {
	dots := strings.Count(literal, ".")
	if dots > 1 || literal == "." || strings.HasPrefix(literal, ".") || strings.HasSuffix(literal, ".") {
		return 0, fmt.Errorf("invalid number %q", literal)
	}
	var value float64
	if _, err := fmt.Sscanf(literal, "%f", &value); err != nil {
		return 0, fmt.Errorf("invalid number %q", literal)
	}
	return value, nil
}

type parser struct {
	tokens []token
	pos    int
	row    []dataset.Value
}

func (p *parser) current() *token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	return &p.tokens[p.pos]
}

func (p *parser) advance() {
	p.pos++
}

func (p *parser) currentOp() string {
	tok := p.current()
	if tok == nil || tok.kind != tokenOp {
		return ""
	}
	return tok.text
}

func (p *parser) parseExpression() (float64, error) {
	value, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		op := p.currentOp()
		if op != "+" && op != "-" {
			return value, nil
		}
		p.advance()
		rhs, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if op == "+" {
			value += rhs
		} else {
			value -= rhs
		}
	}
}

func (p *parser) parseTerm() (float64, error) {
	value, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		op := p.currentOp()
		if op != "*" && op != "/" {
			return value, nil
		}
		p.advance()
		rhs, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		if op == "*" {
			value *= rhs
		} else {
			if rhs == 0 {
				return 0, fmt.Errorf("divide by zero")
			}
			value /= rhs
		}
	}
}

func (p *parser) parseFactor() (float64, error) {
	tok := p.current()
	if tok == nil {
		return 0, fmt.Errorf("expected value")
	}
	switch {
	case tok.kind == tokenOp && tok.text == "-":
		p.advance()
		value, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		return -value, nil
	case tok.kind == tokenOp && tok.text == "(":
		p.advance()
		value, err := p.parseExpression()
		if err != nil {
			return 0, err
		}
		if p.currentOp() != ")" {
			return 0, fmt.Errorf("missing ')'")
		}
		p.advance()
		return value, nil
	case tok.kind == tokenNumber:
		p.advance()
		return tok.num, nil
	case tok.kind == tokenRef:
		p.advance()
		return p.referenceValue(tok.text)
	default:
		return 0, fmt.Errorf("expected value, got %q", tok.text)
	}
}

func (p *parser) referenceValue(ref string) (float64, error) {
	index, err := dataset.ColumnLetterToIndex(ref)
	if err != nil {
		return 0, err
	}
	if index >= len(p.row) {
		return 0, fmt.Errorf("reference %s out of range", ref)
	}
	num, ok := p.row[index].Numeric()
	if !ok {
		return 0, fmt.Errorf("non-numeric reference %s", ref)
	}
	return num, nil
}

// normalizeNumeric maps results that are integral (within 1e-9) to integers
// and rounds everything else to 6 decimal places.
func normalizeNumeric(value float64) dataset.Value {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return dataset.Null()
	}
	rounded := math.Round(value)
	if math.Abs(value-rounded) < 1e-9 {
		return dataset.Number(rounded)
	}
	shifted := math.Round(value*1e6) / 1e6
	return dataset.Number(shifted)
}
