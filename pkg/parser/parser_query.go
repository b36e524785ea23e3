package parser

import (
	"fmt"

	"github.com/leapstack-labs/leapcql/pkg/cql"
)

// parseSourceExpr parses a query source: a primary with postfix
// operators but no query tail, so the identifier that follows stays
// available as the source alias.
func (p *Parser) parseSourceExpr() cql.Expr {
	return p.parsePostfix(p.parsePrimary())
}

// parseAliasedSource parses one aliased source: [Encounter] E.
func (p *Parser) parseAliasedSource() *cql.AliasedSource {
	start := p.token.Pos
	source := p.parseSourceExpr()
	if source == nil {
		return nil
	}
	alias, ok := p.parseIdent()
	if !ok {
		return nil
	}
	return &cql.AliasedSource{
		Source: source,
		Alias:  alias,
		Loc:    p.spanFrom(start),
	}
}

// parseQueryTail continues a single-source query after its source
// expression; the current token is the alias identifier.
func (p *Parser) parseQueryTail(source cql.Expr) cql.Expr {
	alias := p.token.Literal
	aliasEnd := p.token.EndPos
	p.nextToken()

	q := &cql.QueryExpr{
		Sources: []*cql.AliasedSource{{
			Source: source,
			Alias:  alias,
			Loc:    Span{Start: source.Pos(), End: aliasEnd},
		}},
	}
	p.parseQueryClauses(q)
	q.Loc = Span{Start: source.Pos(), End: p.prev.EndPos}
	return q
}

// parseFromQuery parses a multi-source query: from A a, B b ...
func (p *Parser) parseFromQuery() cql.Expr {
	start := p.token.Pos
	p.nextToken() // consume 'from'

	q := &cql.QueryExpr{}
	for {
		s := p.parseAliasedSource()
		if s == nil {
			return nil
		}
		q.Sources = append(q.Sources, s)
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	p.parseQueryClauses(q)
	q.Loc = p.spanFrom(start)
	return q
}

// parseQueryClauses parses the clause sequence of a query:
// let, with/without, where, return, aggregate, sort.
func (p *Parser) parseQueryClauses(q *cql.QueryExpr) {
	for p.check(TOKEN_LET) {
		p.nextToken()
		for {
			start := p.token.Pos
			name, ok := p.parseIdent()
			if !ok {
				return
			}
			if !p.expect(TOKEN_COLON) {
				return
			}
			expr := p.parseExpression()
			if expr == nil {
				return
			}
			q.Lets = append(q.Lets, &cql.LetClause{
				Name: name,
				Expr: expr,
				Loc:  p.spanFrom(start),
			})
			if !p.match(TOKEN_COMMA) {
				break
			}
		}
	}

	for p.check(TOKEN_WITH) || p.check(TOKEN_WITHOUT) {
		rel := p.parseRelationship()
		if rel == nil {
			return
		}
		q.Relationships = append(q.Relationships, rel)
	}

	if p.match(TOKEN_WHERE) {
		q.Where = p.parseExpression()
		if q.Where == nil {
			return
		}
	}

	if p.check(TOKEN_RETURN) {
		q.Return = p.parseReturnClause()
		if q.Return == nil {
			return
		}
	}

	if p.check(TOKEN_AGGREGATE) {
		q.Aggregate = p.parseAggregateClause()
		if q.Aggregate == nil {
			return
		}
	}

	if p.check(TOKEN_SORT) || p.check(TOKEN_SORT_BY) {
		q.Sort = p.parseSortClause()
	}
}

// parseRelationship parses: with/without source alias such that cond.
func (p *Parser) parseRelationship() *cql.RelationshipClause {
	start := p.token.Pos
	without := p.check(TOKEN_WITHOUT)
	p.nextToken()

	source := p.parseAliasedSource()
	if source == nil {
		return nil
	}
	if !p.check(TOKEN_SUCH_THAT) {
		p.addError(fmt.Sprintf("unexpected token %s, expected 'such that'", p.token.Type))
		return nil
	}
	p.nextToken()

	cond := p.parseExpression()
	if cond == nil {
		return nil
	}
	return &cql.RelationshipClause{
		Without:  without,
		Source:   source,
		SuchThat: cond,
		Loc:      p.spanFrom(start),
	}
}

// parseReturnClause parses: return [all|distinct] expression.
// Return is distinct unless 'all' is given.
func (p *Parser) parseReturnClause() *cql.ReturnClause {
	start := p.token.Pos
	p.nextToken() // consume 'return'

	c := &cql.ReturnClause{Distinct: true}
	if p.match(TOKEN_ALL) {
		c.All = true
		c.Distinct = false
	} else {
		p.match(TOKEN_DISTINCT)
	}

	c.Expr = p.parseExpression()
	if c.Expr == nil {
		return nil
	}
	c.Loc = p.spanFrom(start)
	return c
}

// parseAggregateClause parses:
// aggregate [distinct|all] id [starting init]: expression.
func (p *Parser) parseAggregateClause() *cql.AggregateClause {
	start := p.token.Pos
	p.nextToken() // consume 'aggregate'

	c := &cql.AggregateClause{}
	if p.match(TOKEN_DISTINCT) {
		c.Distinct = true
	} else {
		p.match(TOKEN_ALL)
	}

	id, ok := p.parseIdent()
	if !ok {
		return nil
	}
	c.Identifier = id

	// 'starting' is contextual, not a reserved word
	if p.check(TOKEN_IDENT) && p.token.Literal == "starting" {
		p.nextToken()
		c.Starting = p.parsePostfix(p.parsePrimary())
		if c.Starting == nil {
			return nil
		}
	}

	if !p.expect(TOKEN_COLON) {
		return nil
	}
	c.Expr = p.parseExpression()
	if c.Expr == nil {
		return nil
	}
	c.Loc = p.spanFrom(start)
	return c
}

// parseSortClause parses both sort forms: a bare direction applying to
// the elements themselves (sort desc) and an item list (sort by x asc, y).
func (p *Parser) parseSortClause() *cql.SortClause {
	start := p.token.Pos
	c := &cql.SortClause{}

	if p.check(TOKEN_SORT) {
		p.nextToken()
		itemStart := p.token.Pos
		dir := p.parseSortDirection()
		if dir == "" {
			p.addError(fmt.Sprintf("unexpected token %s, expected sort direction", p.token.Type))
			return nil
		}
		c.Items = append(c.Items, &cql.SortItem{
			Direction: dir,
			Loc:       Span{Start: itemStart, End: p.prev.EndPos},
		})
		c.Loc = p.spanFrom(start)
		return c
	}

	p.nextToken() // consume 'sort by'
	for {
		itemStart := p.token.Pos
		expr := p.parseExpression()
		if expr == nil {
			return nil
		}
		dir := p.parseSortDirection()
		if dir == "" {
			dir = "asc"
		}
		c.Items = append(c.Items, &cql.SortItem{
			Expr:      expr,
			Direction: dir,
			Loc:       p.spanFrom(itemStart),
		})
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	c.Loc = p.spanFrom(start)
	return c
}

// parseSortDirection consumes a direction keyword if present and
// returns its spelling, or "" when the next token is not a direction.
func (p *Parser) parseSortDirection() string {
	switch p.token.Type {
	case TOKEN_ASC, TOKEN_ASCENDING, TOKEN_DESC, TOKEN_DESCENDING:
		dir := p.token.Literal
		p.nextToken()
		return dir
	}
	return ""
}
