package workflow

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/agentwire/agentwire/pkg/a2a"
)

// ============================================================================
// CONDITION EVALUATION - conditional nodes and condition_* edges
// ============================================================================

// ConditionType names the supported condition evaluators.
type ConditionType string

const (
	ConditionAlways     ConditionType = "always"
	ConditionContains   ConditionType = "contains"
	ConditionEquals     ConditionType = "equals"
	ConditionStartsWith ConditionType = "starts_with"
	ConditionEndsWith   ConditionType = "ends_with"
	ConditionRegex      ConditionType = "regex"
	ConditionExpr       ConditionType = "expr"
)

// EvaluateCondition applies a condition to the input's text projection.
// The historical "javascript" type is rejected outright: arbitrary code in a
// workflow definition must never execute. "expr" covers the same use cases.
func EvaluateCondition(condType, condValue, input string) (bool, error) {
	switch ConditionType(condType) {
	case ConditionAlways, "":
		return true, nil
	case ConditionContains:
		return strings.Contains(input, condValue), nil
	case ConditionEquals:
		return input == condValue, nil
	case ConditionStartsWith:
		return strings.HasPrefix(input, condValue), nil
	case ConditionEndsWith:
		return strings.HasSuffix(input, condValue), nil
	case ConditionRegex:
		re, err := regexp.Compile(condValue)
		if err != nil {
			return false, fmt.Errorf("invalid condition regex: %w", err)
		}
		return re.MatchString(input), nil
	case ConditionExpr:
		return evalExpr(condValue, input)
	case "javascript":
		return false, fmt.Errorf("javascript conditions are not supported; use expr")
	default:
		return false, fmt.Errorf("%w: unknown condition type %q", a2a.ErrBadEnum, condType)
	}
}

// ============================================================================
// EXPR - a minimal boolean expression language over the node input
//
//   expr     := orExpr
//   orExpr   := andExpr { "||" andExpr }
//   andExpr  := unary { "&&" unary }
//   unary    := "!" unary | primary
//   primary  := "(" expr ")" | call | comparison
//   call     := ident "(" string ")"          contains, startsWith, endsWith
//   comparison := "input" "==" string | string "==" "input"
//
// The only variable is "input"; the only literals are double- or
// single-quoted strings. No arithmetic, no indexing, no side effects.
// ============================================================================

type exprParser struct {
	src   string
	pos   int
	input string
}

func evalExpr(src, input string) (bool, error) {
	p := &exprParser{src: src, input: input}
	result, err := p.parseOr()
	if err != nil {
		return false, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return false, fmt.Errorf("unexpected trailing input in expression at offset %d", p.pos)
	}
	return result, nil
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *exprParser) consume(tok string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

func (p *exprParser) parseOr() (bool, error) {
	left, err := p.parseAnd()
	if err != nil {
		return false, err
	}
	for p.consume("||") {
		right, err := p.parseAnd()
		if err != nil {
			return false, err
		}
		left = left || right
	}
	return left, nil
}

func (p *exprParser) parseAnd() (bool, error) {
	left, err := p.parseUnary()
	if err != nil {
		return false, err
	}
	for {
		p.skipSpace()
		// Distinguish "&&" from a stray "&".
		if !strings.HasPrefix(p.src[p.pos:], "&&") {
			return left, nil
		}
		p.pos += 2
		right, err := p.parseUnary()
		if err != nil {
			return false, err
		}
		left = left && right
	}
}

func (p *exprParser) parseUnary() (bool, error) {
	if p.consume("!") {
		v, err := p.parseUnary()
		return !v, err
	}
	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (bool, error) {
	if p.consume("(") {
		v, err := p.parseOr()
		if err != nil {
			return false, err
		}
		if !p.consume(")") {
			return false, fmt.Errorf("missing closing parenthesis at offset %d", p.pos)
		}
		return v, nil
	}

	p.skipSpace()
	ident := p.readIdent()
	switch ident {
	case "contains", "startsWith", "endsWith":
		arg, err := p.callArg(ident)
		if err != nil {
			return false, err
		}
		switch ident {
		case "contains":
			return strings.Contains(p.input, arg), nil
		case "startsWith":
			return strings.HasPrefix(p.input, arg), nil
		default:
			return strings.HasSuffix(p.input, arg), nil
		}
	case "input":
		if !p.consume("==") {
			return false, fmt.Errorf("expected == after input at offset %d", p.pos)
		}
		lit, err := p.readString()
		if err != nil {
			return false, err
		}
		return p.input == lit, nil
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "":
		// A bare string literal compared against input.
		lit, err := p.readString()
		if err != nil {
			return false, fmt.Errorf("expected expression at offset %d", p.pos)
		}
		if !p.consume("==") {
			return false, fmt.Errorf("expected == after string literal at offset %d", p.pos)
		}
		if ident := p.readIdent(); ident != "input" {
			return false, fmt.Errorf("string literal may only be compared to input")
		}
		return p.input == lit, nil
	default:
		return false, fmt.Errorf("unknown identifier %q in expression", ident)
	}
}

func (p *exprParser) readIdent() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		ch := p.src[p.pos]
		if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *exprParser) callArg(fn string) (string, error) {
	if !p.consume("(") {
		return "", fmt.Errorf("expected ( after %s", fn)
	}
	arg, err := p.readString()
	if err != nil {
		return "", err
	}
	if !p.consume(")") {
		return "", fmt.Errorf("expected ) after %s argument", fn)
	}
	return arg, nil
}

func (p *exprParser) readString() (string, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return "", fmt.Errorf("expected string literal at end of expression")
	}
	quote := p.src[p.pos]
	if quote != '"' && quote != '\'' {
		return "", fmt.Errorf("expected string literal at offset %d", p.pos)
	}
	p.pos++
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] != quote {
		p.pos++
	}
	if p.pos >= len(p.src) {
		return "", fmt.Errorf("unterminated string literal")
	}
	lit := p.src[start:p.pos]
	p.pos++
	return lit, nil
}
