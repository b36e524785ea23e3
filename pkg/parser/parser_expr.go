package parser

import (
	"fmt"

	"github.com/leapstack-labs/leapcql/pkg/cql"
)

// precedence orders binary operators, loosest first.
type precedence int

const (
	precNone precedence = iota
	precImplies
	precOr // or, xor
	precAnd
	precEquality   // = != ~ !~
	precComparison // relational, membership, timing
	precSetOp      // union, intersect, except
	precAdditive   // + - &
	precMultiplicative
	precPower // ^, right-associative
	precUnary
)

// precedenceOf returns the binding strength of a binary operator
// token, or precNone when the token is not a binary operator.
func precedenceOf(t TokenType) precedence {
	switch t {
	case TOKEN_IMPLIES:
		return precImplies
	case TOKEN_OR, TOKEN_XOR:
		return precOr
	case TOKEN_AND:
		return precAnd
	case TOKEN_EQ, TOKEN_NEQ, TOKEN_EQUIV, TOKEN_NEQUIV:
		return precEquality
	case TOKEN_LT, TOKEN_GT, TOKEN_LE, TOKEN_GE,
		TOKEN_IN, TOKEN_CONTAINS, TOKEN_INCLUDES, TOKEN_DURING,
		TOKEN_BETWEEN, TOKEN_IS, TOKEN_AS,
		TOKEN_BEFORE, TOKEN_AFTER,
		TOKEN_INCLUDED_IN, TOKEN_PROPERLY_INCLUDES, TOKEN_PROPERLY_INCLUDED_IN,
		TOKEN_STARTS_BEFORE, TOKEN_STARTS_AFTER,
		TOKEN_ENDS_BEFORE, TOKEN_ENDS_AFTER,
		TOKEN_OCCURS_BEFORE, TOKEN_OCCURS_AFTER,
		TOKEN_SAME_AS, TOKEN_SAME_OR_BEFORE, TOKEN_SAME_OR_AFTER,
		TOKEN_OVERLAPS, TOKEN_OVERLAPS_BEFORE, TOKEN_OVERLAPS_AFTER,
		TOKEN_MEETS, TOKEN_MEETS_BEFORE, TOKEN_MEETS_AFTER:
		return precComparison
	case TOKEN_UNION, TOKEN_INTERSECT, TOKEN_EXCEPT:
		return precSetOp
	case TOKEN_PLUS, TOKEN_MINUS, TOKEN_AMP:
		return precAdditive
	case TOKEN_STAR, TOKEN_SLASH, TOKEN_DIV, TOKEN_MOD:
		return precMultiplicative
	case TOKEN_CARET:
		return precPower
	}
	return precNone
}

// parseExpression parses a full expression.
func (p *Parser) parseExpression() cql.Expr {
	return p.parseBinaryExpr(precImplies)
}

// parseBinaryExpr is the precedence-climbing core: it parses a unary
// expression, then folds in binary operators at or above min.
func (p *Parser) parseBinaryExpr(min precedence) cql.Expr {
	left := p.parseUnary()
	if left == nil {
		return nil
	}

	for {
		prec := precedenceOf(p.token.Type)
		if prec < min {
			return left
		}

		switch p.token.Type {
		case TOKEN_BETWEEN:
			left = p.parseBetween(left)
		case TOKEN_IS:
			left = p.parseIsTest(left)
		case TOKEN_AS:
			left = p.parseCastTail(left, false)
		default:
			op := p.token.Type
			p.nextToken()
			next := prec + 1
			if op == TOKEN_CARET {
				next = prec
			}
			right := p.parseBinaryExpr(next)
			if right == nil {
				return nil
			}
			left = &cql.BinaryExpr{
				Op:    op,
				Left:  left,
				Right: right,
				Loc:   Span{Start: left.Pos(), End: right.End()},
			}
		}
		if left == nil {
			return nil
		}
	}
}

// parseUnary parses prefix operators and postfix chains. A postfix
// chain followed by a plain identifier becomes a single-source query
// with that identifier as the alias.
func (p *Parser) parseUnary() cql.Expr {
	start := p.token.Pos

	switch p.token.Type {
	case TOKEN_NOT, TOKEN_EXISTS:
		op := p.token.Type
		p.nextToken()
		// Comparisons bind tighter: not x = y means not (x = y)
		operand := p.parseBinaryExpr(precEquality)
		if operand == nil {
			return nil
		}
		return &cql.UnaryExpr{Op: op, Operand: operand, Loc: p.spanFrom(start)}

	case TOKEN_MINUS, TOKEN_DISTINCT, TOKEN_FLATTEN,
		TOKEN_START_OF, TOKEN_END_OF, TOKEN_SINGLETON_FROM,
		TOKEN_PREDECESSOR_OF, TOKEN_SUCCESSOR_OF:
		op := p.token.Type
		p.nextToken()
		operand := p.parseUnary()
		if operand == nil {
			return nil
		}
		return &cql.UnaryExpr{Op: op, Operand: operand, Loc: p.spanFrom(start)}

	case TOKEN_CAST:
		p.nextToken()
		operand := p.parseUnary()
		if operand == nil {
			return nil
		}
		if !p.check(TOKEN_AS) {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token.Type, TOKEN_AS))
			return nil
		}
		return p.parseCastTail(operand, true)
	}

	expr := p.parsePostfix(p.parsePrimary())
	if expr == nil {
		return nil
	}
	if p.check(TOKEN_IDENT) {
		return p.parseQueryTail(expr)
	}
	return expr
}

// parseBetween parses: operand between low and high. The bounds bind
// at additive level so the separating 'and' is not taken as a boolean
// conjunction.
func (p *Parser) parseBetween(operand cql.Expr) cql.Expr {
	p.nextToken() // consume 'between'

	low := p.parseBinaryExpr(precAdditive)
	if low == nil {
		return nil
	}
	if !p.expect(TOKEN_AND) {
		return nil
	}
	high := p.parseBinaryExpr(precAdditive)
	if high == nil {
		return nil
	}
	return &cql.BetweenExpr{
		Operand: operand,
		Low:     low,
		High:    high,
		Loc:     Span{Start: operand.Pos(), End: high.End()},
	}
}

// parseIsTest parses the operand of 'is': null, true, false (each
// optionally negated), or a type specifier.
func (p *Parser) parseIsTest(operand cql.Expr) cql.Expr {
	p.nextToken() // consume 'is'
	not := p.match(TOKEN_NOT)

	switch p.token.Type {
	case TOKEN_NULL:
		end := p.token.EndPos
		p.nextToken()
		return &cql.IsNullExpr{
			Operand: operand,
			Not:     not,
			Loc:     Span{Start: operand.Pos(), End: end},
		}
	case TOKEN_TRUE, TOKEN_FALSE:
		val := p.check(TOKEN_TRUE)
		end := p.token.EndPos
		p.nextToken()
		return &cql.IsBoolExpr{
			Operand: operand,
			Not:     not,
			Value:   val,
			Loc:     Span{Start: operand.Pos(), End: end},
		}
	}

	if not {
		p.addError("expected null, true, or false after 'is not'")
		return nil
	}
	t := p.parseTypeSpecifier()
	if t == nil {
		return nil
	}
	return &cql.IsExpr{
		Operand: operand,
		Type:    t,
		Loc:     Span{Start: operand.Pos(), End: p.prev.EndPos},
	}
}

// parseCastTail parses 'as T' after an operand. Strict casts come from
// the cast keyword form.
func (p *Parser) parseCastTail(operand cql.Expr, strict bool) cql.Expr {
	p.nextToken() // consume 'as'

	t := p.parseTypeSpecifier()
	if t == nil {
		return nil
	}
	return &cql.AsExpr{
		Operand: operand,
		Type:    t,
		Strict:  strict,
		Loc:     Span{Start: operand.Pos(), End: p.prev.EndPos},
	}
}
