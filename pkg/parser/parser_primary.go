package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapcql/pkg/cql"
	"github.com/leapstack-labs/leapcql/pkg/token"
)

// parsePrimary parses a primary expression: literals, references,
// constructors, conditionals, retrieves, and parenthesized expressions.
func (p *Parser) parsePrimary() cql.Expr {
	start := p.token.Pos

	switch p.token.Type {
	case TOKEN_NUMBER, TOKEN_QUANTITY:
		return p.parseNumber(start)

	case TOKEN_STRING:
		lit := &cql.Literal{Kind: cql.LiteralString, Value: p.token.Literal}
		p.nextToken()
		lit.Loc = p.spanFrom(start)
		return lit

	case TOKEN_DATE:
		value := strings.TrimPrefix(p.token.Literal, "@")
		p.nextToken()
		return &cql.Literal{Kind: cql.LiteralDate, Value: value, Loc: p.spanFrom(start)}

	case TOKEN_DATETIME:
		value := strings.TrimPrefix(p.token.Literal, "@")
		p.nextToken()
		return &cql.Literal{Kind: cql.LiteralDateTime, Value: value, Loc: p.spanFrom(start)}

	case TOKEN_TIME:
		value := strings.TrimPrefix(p.token.Literal, "@T")
		p.nextToken()
		return &cql.Literal{Kind: cql.LiteralTime, Value: value, Loc: p.spanFrom(start)}

	case TOKEN_TRUE, TOKEN_FALSE:
		value := p.token.Literal
		p.nextToken()
		return &cql.Literal{Kind: cql.LiteralBool, Value: value, Loc: p.spanFrom(start)}

	case TOKEN_NULL:
		p.nextToken()
		return &cql.Literal{Kind: cql.LiteralNull, Value: "null", Loc: p.spanFrom(start)}

	case TOKEN_IDENT:
		name := p.token.Literal
		p.nextToken()
		return &cql.IdentRef{Name: name, Loc: p.spanFrom(start)}

	case TOKEN_LPAREN:
		p.nextToken()
		expr := p.parseExpression()
		if expr == nil {
			return nil
		}
		if !p.expect(TOKEN_RPAREN) {
			return nil
		}
		return expr

	case TOKEN_LBRACKET:
		return p.parseRetrieve(start)

	case TOKEN_INTERVAL:
		return p.parseIntervalExpr(start)

	case TOKEN_LBRACE:
		return p.parseListExpr(start)

	case TOKEN_TUPLE:
		return p.parseTupleExpr(start)

	case TOKEN_IF:
		return p.parseIfExpr(start)

	case TOKEN_CASE:
		return p.parseCaseExpr(start)

	case TOKEN_FROM:
		return p.parseFromQuery()
	}

	p.addError(fmt.Sprintf(ErrExpectedExpr, p.token.Type))
	return nil
}

// parseNumber classifies a numeric token as Integer, Long, or Decimal.
// Quantity tokens (5 'mg') arrive from the lexer with the unit already
// attached.
func (p *Parser) parseNumber(start Position) cql.Expr {
	tok := p.token
	p.nextToken()

	if tok.Type == TOKEN_QUANTITY {
		return &cql.QuantityExpr{Value: tok.Literal, Unit: tok.Unit, Loc: p.spanFrom(start)}
	}

	lit := tok.Literal
	kind := cql.LiteralInteger
	if strings.Contains(lit, ".") {
		kind = cql.LiteralDecimal
	} else if strings.HasSuffix(lit, "L") {
		kind = cql.LiteralLong
		lit = strings.TrimSuffix(lit, "L")
	}
	return &cql.Literal{Kind: kind, Value: lit, Loc: p.spanFrom(start)}
}

// parsePostfix parses trailing member access, indexing, and calls.
// A call through a dot on a plain reference is a qualified invocation
// (C.ToInterval(x)); on anything else it is a fluent invocation and the
// receiver becomes the first argument.
func (p *Parser) parsePostfix(expr cql.Expr) cql.Expr {
	if expr == nil {
		return nil
	}

	for {
		switch p.token.Type {
		case TOKEN_DOT:
			p.nextToken()
			name, ok := p.parseName()
			if !ok {
				return nil
			}
			if p.check(TOKEN_LPAREN) {
				args, ok := p.parseArgs()
				if !ok {
					return nil
				}
				if ref, isRef := expr.(*cql.IdentRef); isRef {
					expr = &cql.FunctionCall{
						Library: ref.Name,
						Name:    name,
						Args:    args,
						Loc:     Span{Start: expr.Pos(), End: p.prev.EndPos},
					}
				} else {
					expr = &cql.FunctionCall{
						Name: name,
						Args: append([]cql.Expr{expr}, args...),
						Loc:  Span{Start: expr.Pos(), End: p.prev.EndPos},
					}
				}
			} else {
				expr = &cql.PropertyExpr{
					Source: expr,
					Name:   name,
					Loc:    Span{Start: expr.Pos(), End: p.prev.EndPos},
				}
			}

		case TOKEN_LBRACKET:
			p.nextToken()
			index := p.parseExpression()
			if index == nil {
				return nil
			}
			if !p.expect(TOKEN_RBRACKET) {
				return nil
			}
			expr = &cql.IndexExpr{
				Source: expr,
				Index:  index,
				Loc:    Span{Start: expr.Pos(), End: p.prev.EndPos},
			}

		case TOKEN_LPAREN:
			ref, isRef := expr.(*cql.IdentRef)
			if !isRef {
				return expr
			}
			args, ok := p.parseArgs()
			if !ok {
				return nil
			}
			expr = &cql.FunctionCall{
				Name: ref.Name,
				Args: args,
				Loc:  Span{Start: expr.Pos(), End: p.prev.EndPos},
			}

		default:
			return expr
		}
	}
}

// parseName accepts an identifier or a keyword used as a name, for
// property paths and tuple elements like e.code or Tuple { display: x }.
func (p *Parser) parseName() (string, bool) {
	if p.check(TOKEN_IDENT) || token.IsKeyword(p.token.Type) {
		name := p.token.Literal
		p.nextToken()
		return name, true
	}
	p.addError(fmt.Sprintf(ErrExpectedIdent, p.token.Type))
	return "", false
}

// parseArgs parses a parenthesized argument list.
func (p *Parser) parseArgs() ([]cql.Expr, bool) {
	if !p.expect(TOKEN_LPAREN) {
		return nil, false
	}
	var args []cql.Expr
	if !p.check(TOKEN_RPAREN) {
		for {
			arg := p.parseExpression()
			if arg == nil {
				return nil, false
			}
			args = append(args, arg)
			if !p.match(TOKEN_COMMA) {
				break
			}
		}
	}
	if !p.expect(TOKEN_RPAREN) {
		return nil, false
	}
	return args, true
}

// parseRetrieve parses a retrieve:
//
//	[Condition]
//	[Condition: "Diabetes"]
//	[MedicationRequest: status in "Active Statuses"]
func (p *Parser) parseRetrieve(start Position) cql.Expr {
	p.nextToken() // consume '['

	typeStart := p.token.Pos
	name, ok := p.parseIdent()
	if !ok {
		return nil
	}
	dataType := &cql.NamedType{Name: name}
	if p.check(TOKEN_DOT) && p.checkPeek(TOKEN_IDENT) {
		p.nextToken()
		dataType.Qualifier = dataType.Name
		dataType.Name = p.token.Literal
		p.nextToken()
	}
	dataType.Loc = p.spanFrom(typeStart)

	r := &cql.Retrieve{DataType: dataType}
	if p.match(TOKEN_COLON) {
		// An explicit code path overrides the model default:
		// [X: path in terminology]
		if (p.check(TOKEN_IDENT) || token.IsKeyword(p.token.Type)) && p.checkPeek(TOKEN_IN) {
			r.CodePath = p.token.Literal
			p.nextToken()
			p.nextToken()
		}
		r.Terms = p.parseExpression()
		if r.Terms == nil {
			return nil
		}
	}
	if !p.expect(TOKEN_RBRACKET) {
		return nil
	}
	r.Loc = p.spanFrom(start)
	return r
}

// parseIntervalExpr parses an interval constructor with bracket or
// paren boundaries: Interval[low, high), Interval(low, high].
func (p *Parser) parseIntervalExpr(start Position) cql.Expr {
	p.nextToken() // consume 'Interval'

	e := &cql.IntervalExpr{}
	switch p.token.Type {
	case TOKEN_LBRACKET:
		e.LowClosed = true
	case TOKEN_LPAREN:
	default:
		p.addError(fmt.Sprintf("unexpected token %s, expected [ or ( after Interval", p.token.Type))
		return nil
	}
	p.nextToken()

	e.Low = p.parseExpression()
	if e.Low == nil {
		return nil
	}
	if !p.expect(TOKEN_COMMA) {
		return nil
	}
	e.High = p.parseExpression()
	if e.High == nil {
		return nil
	}

	switch p.token.Type {
	case TOKEN_RBRACKET:
		e.HighClosed = true
	case TOKEN_RPAREN:
	default:
		p.addError(fmt.Sprintf("unexpected token %s, expected ] or ) closing interval", p.token.Type))
		return nil
	}
	p.nextToken()

	e.Loc = p.spanFrom(start)
	return e
}

// parseListExpr parses a list constructor: { 1, 2, 3 }.
func (p *Parser) parseListExpr(start Position) cql.Expr {
	p.nextToken() // consume '{'

	e := &cql.ListExpr{}
	if !p.check(TOKEN_RBRACE) {
		for {
			elem := p.parseExpression()
			if elem == nil {
				return nil
			}
			e.Elements = append(e.Elements, elem)
			if !p.match(TOKEN_COMMA) {
				break
			}
		}
	}
	if !p.expect(TOKEN_RBRACE) {
		return nil
	}
	e.Loc = p.spanFrom(start)
	return e
}

// parseTupleExpr parses a tuple constructor: Tuple { low: 1, high: 2 }.
func (p *Parser) parseTupleExpr(start Position) cql.Expr {
	p.nextToken() // consume 'Tuple'
	if !p.expect(TOKEN_LBRACE) {
		return nil
	}

	e := &cql.TupleExpr{}
	if !p.check(TOKEN_RBRACE) {
		for {
			elemStart := p.token.Pos
			name, ok := p.parseName()
			if !ok {
				return nil
			}
			if !p.expect(TOKEN_COLON) {
				return nil
			}
			value := p.parseExpression()
			if value == nil {
				return nil
			}
			e.Elements = append(e.Elements, &cql.TupleElement{
				Name:  name,
				Value: value,
				Loc:   p.spanFrom(elemStart),
			})
			if !p.match(TOKEN_COMMA) {
				break
			}
		}
	}
	if !p.expect(TOKEN_RBRACE) {
		return nil
	}
	e.Loc = p.spanFrom(start)
	return e
}

// parseIfExpr parses if/then/else.
func (p *Parser) parseIfExpr(start Position) cql.Expr {
	p.nextToken() // consume 'if'

	cond := p.parseExpression()
	if cond == nil {
		return nil
	}
	if !p.expect(TOKEN_THEN) {
		return nil
	}
	thenExpr := p.parseExpression()
	if thenExpr == nil {
		return nil
	}
	if !p.expect(TOKEN_ELSE) {
		return nil
	}
	elseExpr := p.parseExpression()
	if elseExpr == nil {
		return nil
	}
	return &cql.IfExpr{
		Condition: cond,
		Then:      thenExpr,
		Else:      elseExpr,
		Loc:       p.spanFrom(start),
	}
}

// parseCaseExpr parses both case forms: with a comparand
// (case x when 1 then ...) and standalone (case when x > 1 then ...).
func (p *Parser) parseCaseExpr(start Position) cql.Expr {
	p.nextToken() // consume 'case'

	e := &cql.CaseExpr{}
	if !p.check(TOKEN_WHEN) {
		e.Comparand = p.parseExpression()
		if e.Comparand == nil {
			return nil
		}
	}

	for p.check(TOKEN_WHEN) {
		itemStart := p.token.Pos
		p.nextToken()
		when := p.parseExpression()
		if when == nil {
			return nil
		}
		if !p.expect(TOKEN_THEN) {
			return nil
		}
		then := p.parseExpression()
		if then == nil {
			return nil
		}
		e.Items = append(e.Items, &cql.CaseItem{
			When: when,
			Then: then,
			Loc:  p.spanFrom(itemStart),
		})
	}
	if len(e.Items) == 0 {
		p.addError("case expression requires at least one when clause")
		return nil
	}

	if !p.expect(TOKEN_ELSE) {
		return nil
	}
	e.Else = p.parseExpression()
	if e.Else == nil {
		return nil
	}
	if !p.expect(TOKEN_END) {
		return nil
	}
	e.Loc = p.spanFrom(start)
	return e
}
