package deploy

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Operand roots a target condition may reference.
var conditionRoots = map[string]bool{
	"deviceid":        true,
	"moduleid":        true,
	"tags":            true,
	"properties":      true,
	"capabilities":    true,
	"status":          true,
	"connectionstate": true,
}

// Functions a target condition may call on a single operand.
var conditionFuncs = map[string]bool{
	"is_defined": true,
	"is_null":    true,
	"is_string":  true,
	"is_number":  true,
	"is_bool":    true,
	"is_object":  true,
	"is_array":   true,
}

// ConditionError reports a malformed target condition.
type ConditionError struct {
	Offset  int
	Message string
}

// Error implements the error interface.
func (e *ConditionError) Error() string {
	return fmt.Sprintf("at offset %d: %s", e.Offset, e.Message)
}

// ParseCondition checks expr against the device twin query condition
// grammar:
//
//	expr       = and { OR and }
//	and        = unary { AND unary }
//	unary      = NOT unary | primary
//	primary    = "(" expr ")" | func "(" path ")" | path cmp value | path [NOT] IN list
//	path       = root { "." ident }
//	cmp        = "=" | "!=" | "<>" | "<" | ">" | "<=" | ">="
//	value      = string | number | true | false | null
//
// Keywords are case-insensitive. The hub evaluates the condition; this
// only rejects what it would refuse to parse.
func ParseCondition(expr string) error {
	toks, err := lexCondition(expr)
	if err != nil {
		return err
	}
	p := &condParser{toks: toks}
	if err := p.expr(); err != nil {
		return err
	}
	if t := p.peek(); t.kind != tokEOF {
		return p.errorf(t, "unexpected %s", t)
	}
	return nil
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokIdent
	tokString
	tokNumber
	tokOp
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
	tokDot
)

type token struct {
	kind tokKind
	text string
	pos  int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of condition"
	}
	return fmt.Sprintf("%q", t.text)
}

func (t token) keyword(kw string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

func lexCondition(s string) ([]token, error) {
	var toks []token
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == '[':
			toks = append(toks, token{tokLBracket, "[", i})
			i++
		case c == ']':
			toks = append(toks, token{tokRBracket, "]", i})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		case c == '.' && !(i+1 < len(s) && isDigit(s[i+1]) && expectsValue(toks)):
			toks = append(toks, token{tokDot, ".", i})
			i++
		case c == '\'' || c == '"':
			end := strings.IndexByte(s[i+1:], c)
			if end < 0 {
				return nil, &ConditionError{Offset: i, Message: "unterminated string"}
			}
			toks = append(toks, token{tokString, s[i : i+end+2], i})
			i += end + 2
		case c == '=':
			toks = append(toks, token{tokOp, "=", i})
			i++
		case c == '!' || c == '<' || c == '>':
			op := string(c)
			if i+1 < len(s) && (s[i+1] == '=' || (c == '<' && s[i+1] == '>')) {
				op += string(s[i+1])
			}
			if op == "!" {
				return nil, &ConditionError{Offset: i, Message: `"!" must be followed by "="`}
			}
			toks = append(toks, token{tokOp, op, i})
			i += len(op)
		case isDigit(c) || c == '-' || c == '.':
			j := i + 1
		scan:
			for j < len(s) {
				switch {
				case isDigit(s[j]) || s[j] == '.' || s[j] == 'e' || s[j] == 'E':
				case (s[j] == '+' || s[j] == '-') && (s[j-1] == 'e' || s[j-1] == 'E'):
				default:
					break scan
				}
				j++
			}
			text := s[i:j]
			if _, err := strconv.ParseFloat(text, 64); err != nil {
				return nil, &ConditionError{Offset: i, Message: fmt.Sprintf("invalid number %q", text)}
			}
			toks = append(toks, token{tokNumber, text, i})
			i = j
		case isIdentStart(rune(c)):
			j := i + 1
			for j < len(s) && isIdentPart(rune(s[j])) {
				j++
			}
			toks = append(toks, token{tokIdent, s[i:j], i})
			i = j
		default:
			return nil, &ConditionError{Offset: i, Message: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(s)}), nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// expectsValue reports whether a literal may follow toks, which tells a
// leading-dot number apart from a path separator.
func expectsValue(toks []token) bool {
	if len(toks) == 0 {
		return true
	}
	switch toks[len(toks)-1].kind {
	case tokOp, tokComma, tokLBracket:
		return true
	}
	return false
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r) || r == '-'
}

type condParser struct {
	toks []token
	i    int
}

func (p *condParser) peek() token { return p.toks[p.i] }

func (p *condParser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *condParser) errorf(t token, format string, args ...any) error {
	return &ConditionError{Offset: t.pos, Message: fmt.Sprintf(format, args...)}
}

func (p *condParser) expect(kind tokKind, what string) error {
	if t := p.next(); t.kind != kind {
		return p.errorf(t, "expected %s, got %s", what, t)
	}
	return nil
}

func (p *condParser) expr() error {
	if err := p.and(); err != nil {
		return err
	}
	for p.peek().keyword("or") {
		p.next()
		if err := p.and(); err != nil {
			return err
		}
	}
	return nil
}

func (p *condParser) and() error {
	if err := p.unary(); err != nil {
		return err
	}
	for p.peek().keyword("and") {
		p.next()
		if err := p.unary(); err != nil {
			return err
		}
	}
	return nil
}

func (p *condParser) unary() error {
	if p.peek().keyword("not") {
		p.next()
		return p.unary()
	}
	return p.primary()
}

func (p *condParser) primary() error {
	t := p.peek()
	switch {
	case t.kind == tokLParen:
		p.next()
		if err := p.expr(); err != nil {
			return err
		}
		return p.expect(tokRParen, `")"`)
	case t.kind == tokIdent && conditionFuncs[strings.ToLower(t.text)]:
		p.next()
		if err := p.expect(tokLParen, `"("`); err != nil {
			return err
		}
		if err := p.path(); err != nil {
			return err
		}
		return p.expect(tokRParen, `")"`)
	case t.kind == tokIdent:
		return p.comparison()
	default:
		return p.errorf(t, "expected a condition, got %s", t)
	}
}

func (p *condParser) comparison() error {
	if err := p.path(); err != nil {
		return err
	}

	t := p.next()
	switch {
	case t.kind == tokOp:
		return p.value()
	case t.keyword("in"):
		return p.list()
	case t.keyword("nin"):
		return p.list()
	case t.keyword("not") && p.peek().keyword("in"):
		p.next()
		return p.list()
	default:
		return p.errorf(t, "expected a comparison operator, got %s", t)
	}
}

func (p *condParser) path() error {
	root := p.next()
	if root.kind != tokIdent {
		return p.errorf(root, "expected a twin field, got %s", root)
	}
	if !conditionRoots[strings.ToLower(root.text)] {
		return p.errorf(root, "unknown twin field %q (use deviceId, tags, properties or capabilities)", root.text)
	}
	for p.peek().kind == tokDot {
		p.next()
		seg := p.next()
		if seg.kind != tokIdent {
			return p.errorf(seg, "expected a field name after \".\", got %s", seg)
		}
	}
	return nil
}

func (p *condParser) value() error {
	t := p.next()
	switch {
	case t.kind == tokString, t.kind == tokNumber:
		return nil
	case t.keyword("true"), t.keyword("false"), t.keyword("null"):
		return nil
	default:
		return p.errorf(t, "expected a value, got %s", t)
	}
}

func (p *condParser) list() error {
	if err := p.expect(tokLBracket, `"["`); err != nil {
		return err
	}
	if p.peek().kind == tokRBracket {
		return p.errorf(p.peek(), "empty list")
	}
	for {
		if err := p.value(); err != nil {
			return err
		}
		if p.peek().kind == tokComma {
			p.next()
			continue
		}
		return p.expect(tokRBracket, `"]"`)
	}
}
