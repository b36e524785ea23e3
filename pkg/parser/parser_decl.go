package parser

import (
	"fmt"

	"github.com/leapstack-labs/leapcql/pkg/cql"
)

// parseLibraryHeader parses: library Name [version 'v'].
func (p *Parser) parseLibraryHeader(lib *cql.Library) {
	start := p.token.Pos
	p.nextToken() // consume 'library'

	name, ok := p.parseQualifiedIdent()
	if !ok {
		return
	}
	lib.Name = name
	lib.Version = p.parseVersion()
	lib.Loc = p.spanFrom(start)
}

// parseDefinition parses one library-level definition and appends it
// to the library.
func (p *Parser) parseDefinition(lib *cql.Library) {
	access := cql.AccessPublic
	if p.check(TOKEN_PUBLIC) {
		p.nextToken()
	} else if p.check(TOKEN_PRIVATE) {
		access = cql.AccessPrivate
		p.nextToken()
	}

	switch p.token.Type {
	case TOKEN_USING:
		if d := p.parseUsing(); d != nil {
			lib.Usings = append(lib.Usings, d)
		}
	case TOKEN_INCLUDE:
		if d := p.parseInclude(); d != nil {
			lib.Includes = append(lib.Includes, d)
		}
	case TOKEN_CODESYSTEM:
		if d := p.parseCodeSystem(access); d != nil {
			lib.CodeSystems = append(lib.CodeSystems, d)
		}
	case TOKEN_VALUESET:
		if d := p.parseValueSet(access); d != nil {
			lib.ValueSets = append(lib.ValueSets, d)
		}
	case TOKEN_CODE:
		if d := p.parseCode(access); d != nil {
			lib.Codes = append(lib.Codes, d)
		}
	case TOKEN_CONCEPT:
		if d := p.parseConcept(access); d != nil {
			lib.Concepts = append(lib.Concepts, d)
		}
	case TOKEN_PARAMETER:
		if d := p.parseParameter(access); d != nil {
			lib.Parameters = append(lib.Parameters, d)
		}
	case TOKEN_CONTEXT:
		if d := p.parseContext(); d != nil {
			lib.Statements = append(lib.Statements, d)
		}
	case TOKEN_DEFINE:
		if s := p.parseDefine(); s != nil {
			lib.Statements = append(lib.Statements, s)
		}
	default:
		p.addError(fmt.Sprintf("unexpected token %s, expected a definition", p.token.Type))
	}
}

// parseUsing parses: using Model [version 'v'].
func (p *Parser) parseUsing() *cql.UsingDef {
	start := p.token.Pos
	p.nextToken() // consume 'using'

	name, ok := p.parseIdent()
	if !ok {
		return nil
	}
	return &cql.UsingDef{
		Name:    name,
		Version: p.parseVersion(),
		Loc:     p.spanFrom(start),
	}
}

// parseInclude parses: include Path [version 'v'] [called Alias].
func (p *Parser) parseInclude() *cql.IncludeDef {
	start := p.token.Pos
	p.nextToken() // consume 'include'

	path, ok := p.parseQualifiedIdent()
	if !ok {
		return nil
	}
	d := &cql.IncludeDef{
		Path:    path,
		Version: p.parseVersion(),
		Alias:   path,
	}
	if p.match(TOKEN_CALLED) {
		alias, ok := p.parseIdent()
		if !ok {
			return nil
		}
		d.Alias = alias
	}
	d.Loc = p.spanFrom(start)
	return d
}

// parseCodeSystem parses: codesystem "Name": 'id' [version 'v'].
func (p *Parser) parseCodeSystem(access cql.AccessLevel) *cql.CodeSystemDef {
	start := p.token.Pos
	p.nextToken() // consume 'codesystem'

	name, ok := p.parseIdent()
	if !ok {
		return nil
	}
	if !p.expect(TOKEN_COLON) {
		return nil
	}
	if !p.check(TOKEN_STRING) {
		p.addError("expected codesystem id string literal")
		return nil
	}
	id := p.token.Literal
	p.nextToken()

	return &cql.CodeSystemDef{
		Name:    name,
		ID:      id,
		Version: p.parseVersion(),
		Access:  access,
		Loc:     p.spanFrom(start),
	}
}

// parseValueSet parses: valueset "Name": 'id' [version 'v'].
func (p *Parser) parseValueSet(access cql.AccessLevel) *cql.ValueSetDef {
	start := p.token.Pos
	p.nextToken() // consume 'valueset'

	name, ok := p.parseIdent()
	if !ok {
		return nil
	}
	if !p.expect(TOKEN_COLON) {
		return nil
	}
	if !p.check(TOKEN_STRING) {
		p.addError("expected valueset id string literal")
		return nil
	}
	id := p.token.Literal
	p.nextToken()

	return &cql.ValueSetDef{
		Name:    name,
		ID:      id,
		Version: p.parseVersion(),
		Access:  access,
		Loc:     p.spanFrom(start),
	}
}

// parseCode parses: code "Name": 'code' from "CodeSystem" [display 'd'].
func (p *Parser) parseCode(access cql.AccessLevel) *cql.CodeDef {
	start := p.token.Pos
	p.nextToken() // consume 'code'

	name, ok := p.parseIdent()
	if !ok {
		return nil
	}
	if !p.expect(TOKEN_COLON) {
		return nil
	}
	if !p.check(TOKEN_STRING) {
		p.addError("expected code string literal")
		return nil
	}
	code := p.token.Literal
	p.nextToken()

	if !p.expect(TOKEN_FROM) {
		return nil
	}
	system, ok := p.parseIdent()
	if !ok {
		return nil
	}

	d := &cql.CodeDef{
		Name:       name,
		Code:       code,
		CodeSystem: system,
		Access:     access,
	}
	if p.match(TOKEN_DISPLAY) {
		if p.check(TOKEN_STRING) {
			d.Display = p.token.Literal
			p.nextToken()
		} else {
			p.addError("expected display string literal")
		}
	}
	d.Loc = p.spanFrom(start)
	return d
}

// parseConcept parses: concept "Name": { "Code1", "Code2" } [display 'd'].
func (p *Parser) parseConcept(access cql.AccessLevel) *cql.ConceptDef {
	start := p.token.Pos
	p.nextToken() // consume 'concept'

	name, ok := p.parseIdent()
	if !ok {
		return nil
	}
	if !p.expect(TOKEN_COLON) {
		return nil
	}
	if !p.expect(TOKEN_LBRACE) {
		return nil
	}

	d := &cql.ConceptDef{Name: name, Access: access}
	for {
		code, ok := p.parseIdent()
		if !ok {
			return nil
		}
		d.Codes = append(d.Codes, code)
		if !p.match(TOKEN_COMMA) {
			break
		}
	}
	if !p.expect(TOKEN_RBRACE) {
		return nil
	}

	if p.match(TOKEN_DISPLAY) {
		if p.check(TOKEN_STRING) {
			d.Display = p.token.Literal
			p.nextToken()
		} else {
			p.addError("expected display string literal")
		}
	}
	d.Loc = p.spanFrom(start)
	return d
}

// parseParameter parses: parameter Name [Type] [default expr].
func (p *Parser) parseParameter(access cql.AccessLevel) *cql.ParameterDef {
	start := p.token.Pos
	p.nextToken() // consume 'parameter'

	name, ok := p.parseIdent()
	if !ok {
		return nil
	}
	d := &cql.ParameterDef{Name: name, Access: access}

	if p.isTypeStart() {
		d.Type = p.parseTypeSpecifier()
	}
	if p.match(TOKEN_DEFAULT) {
		d.Default = p.parseExpression()
		if d.Default == nil {
			return nil
		}
	}
	if d.Type == nil && d.Default == nil {
		p.addError("parameter requires a type or a default value")
		return nil
	}
	d.Loc = p.spanFrom(start)
	return d
}

// parseContext parses: context Name.
func (p *Parser) parseContext() *cql.ContextDef {
	start := p.token.Pos
	p.nextToken() // consume 'context'

	name, ok := p.parseIdent()
	if !ok {
		return nil
	}
	return &cql.ContextDef{
		Name: name,
		Loc:  p.spanFrom(start),
	}
}

// parseDefine parses an expression or function definition:
//
//	define [access] "Name": expr
//	define [access] [fluent] function Name(args) [returns T]: expr | external
func (p *Parser) parseDefine() cql.Stmt {
	start := p.token.Pos
	p.nextToken() // consume 'define'

	access := cql.AccessPublic
	if p.check(TOKEN_PUBLIC) {
		p.nextToken()
	} else if p.check(TOKEN_PRIVATE) {
		access = cql.AccessPrivate
		p.nextToken()
	}

	fluent := false
	if p.check(TOKEN_FLUENT) {
		fluent = true
		p.nextToken()
	}

	if fluent || p.check(TOKEN_FUNCTION) {
		return p.parseFunctionDef(start, access, fluent)
	}

	name, ok := p.parseIdent()
	if !ok {
		return nil
	}
	if !p.expect(TOKEN_COLON) {
		return nil
	}
	expr := p.parseExpression()
	if expr == nil {
		return nil
	}
	return &cql.ExpressionDef{
		Name:   name,
		Access: access,
		Expr:   expr,
		Loc:    p.spanFrom(start),
	}
}

// parseFunctionDef parses the function form of a define statement.
func (p *Parser) parseFunctionDef(start Position, access cql.AccessLevel, fluent bool) cql.Stmt {
	if !p.expect(TOKEN_FUNCTION) {
		return nil
	}
	name, ok := p.parseIdent()
	if !ok {
		return nil
	}
	if !p.expect(TOKEN_LPAREN) {
		return nil
	}

	d := &cql.FunctionDef{
		Name:   name,
		Access: access,
		Fluent: fluent,
	}
	if !p.check(TOKEN_RPAREN) {
		for {
			opStart := p.token.Pos
			opName, ok := p.parseIdent()
			if !ok {
				return nil
			}
			opType := p.parseTypeSpecifier()
			if opType == nil {
				return nil
			}
			d.Operands = append(d.Operands, &cql.OperandDef{
				Name: opName,
				Type: opType,
				Loc:  p.spanFrom(opStart),
			})
			if !p.match(TOKEN_COMMA) {
				break
			}
		}
	}
	if !p.expect(TOKEN_RPAREN) {
		return nil
	}

	if p.match(TOKEN_RETURNS) {
		d.Returns = p.parseTypeSpecifier()
		if d.Returns == nil {
			return nil
		}
	}
	if !p.expect(TOKEN_COLON) {
		return nil
	}

	if p.check(TOKEN_EXTERNAL) {
		d.External = true
		p.nextToken()
	} else {
		d.Body = p.parseExpression()
		if d.Body == nil {
			return nil
		}
	}
	d.Loc = p.spanFrom(start)
	return d
}

// ---------- Type Specifiers ----------

// isTypeStart returns true if the current token can begin a type
// specifier.
func (p *Parser) isTypeStart() bool {
	switch p.token.Type {
	case TOKEN_IDENT, TOKEN_LIST, TOKEN_INTERVAL:
		return true
	}
	return false
}

// parseTypeSpecifier parses a type reference: Integer, FHIR.Condition,
// List<T>, Interval<T>.
func (p *Parser) parseTypeSpecifier() cql.TypeSpecifier {
	start := p.token.Pos

	switch p.token.Type {
	case TOKEN_LIST:
		p.nextToken()
		if !p.expect(TOKEN_LT) {
			return nil
		}
		elem := p.parseTypeSpecifier()
		if elem == nil {
			return nil
		}
		if !p.expect(TOKEN_GT) {
			return nil
		}
		return &cql.ListType{Element: elem, Loc: p.spanFrom(start)}

	case TOKEN_INTERVAL:
		p.nextToken()
		if !p.expect(TOKEN_LT) {
			return nil
		}
		point := p.parseTypeSpecifier()
		if point == nil {
			return nil
		}
		if !p.expect(TOKEN_GT) {
			return nil
		}
		return &cql.IntervalType{Point: point, Loc: p.spanFrom(start)}

	case TOKEN_IDENT:
		t := &cql.NamedType{Name: p.token.Literal}
		p.nextToken()
		if p.check(TOKEN_DOT) && p.checkPeek(TOKEN_IDENT) {
			p.nextToken() // consume '.'
			t.Qualifier = t.Name
			t.Name = p.token.Literal
			p.nextToken()
		}
		t.Loc = p.spanFrom(start)
		return t

	default:
		p.addError(fmt.Sprintf("expected type specifier, got %s", p.token.Type))
		return nil
	}
}
