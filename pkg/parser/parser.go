// Package parser provides CQL parsing with statement-level error recovery.
//
// # Usage
//
//	lib, diags := parser.Parse(source)
//
// Parse always returns a library AST; when the input contains errors
// the AST covers the statements that parsed cleanly and diags carries
// one entry per problem, in source order.
//
// # Grammar Overview
//
//	library       → [library_decl] definition*
//	definition    → using | include | codesystem | valueset | code |
//	                concept | parameter | context | define
//	define        → "define" [access] (expression_def | function_def)
//	expression    → precedence climbing over implies < or/xor < and <
//	                equality < comparison/timing < union/intersect/except <
//	                additive < multiplicative < power < unary < postfix
package parser

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/leapcql/pkg/cql"
)

// Parser parses CQL into an AST.
type Parser struct {
	lexer  *Lexer
	token  Token // current token
	peek   Token // lookahead token
	peek2  Token // second lookahead token
	prev   Token // most recently consumed token
	errors []error
}

// NewParser creates a new parser for the given CQL input.
func NewParser(src string) *Parser {
	p := &Parser{
		lexer: NewLexer(src),
	}
	// Read three tokens to initialize current, peek, and peek2
	p.nextToken()
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses the source and returns the library AST together with
// every lexical and syntax diagnostic, ordered by source position.
func Parse(src string) (*cql.Library, []cql.Diagnostic) {
	p := NewParser(src)
	lib := p.ParseLibrary()
	return lib, p.Diagnostics()
}

// ParseLibrary parses a complete library.
func (p *Parser) ParseLibrary() *cql.Library {
	lib := &cql.Library{}

	if p.check(TOKEN_LIBRARY) {
		p.parseLibraryHeader(lib)
	}

	for !p.check(TOKEN_EOF) {
		before := len(p.errors)
		startTok := p.token

		p.parseDefinition(lib)

		// Recovery: a failed definition skips to the next statement
		// boundary so the rest of the library still parses.
		if len(p.errors) > before {
			if !p.atStatementBoundary() || sameToken(p.token, startTok) {
				p.synchronize()
			}
		} else if sameToken(p.token, startTok) {
			// No progress and no error recorded: force one
			p.addError(fmt.Sprintf("unexpected token %s", p.token.Type))
			p.synchronize()
		}
	}

	return lib
}

// Errors returns the accumulated parse errors.
func (p *Parser) Errors() []error {
	return p.errors
}

// Diagnostics converts lexer and parser errors into ordered
// diagnostics. Lexical errors come from the token stream, syntax
// errors from the parser; both are merged by source offset.
func (p *Parser) Diagnostics() []cql.Diagnostic {
	diags := make([]cql.Diagnostic, 0, len(p.errors)+len(p.lexer.Errors))

	for _, err := range p.lexer.Errors {
		if le, ok := err.(*LexError); ok {
			diags = append(diags, cql.Diagnostic{
				Severity: cql.SeverityError,
				Stage:    cql.StageLexical,
				Span:     Span{Start: le.Pos, End: le.Pos},
				Message:  le.Message,
			})
		}
	}
	for _, err := range p.errors {
		if pe, ok := err.(*ParseError); ok {
			diags = append(diags, cql.Diagnostic{
				Severity: cql.SeverityError,
				Stage:    cql.StageSyntax,
				Span:     Span{Start: pe.Pos, End: pe.Pos},
				Message:  pe.Message,
			})
		}
	}

	sort.SliceStable(diags, func(i, j int) bool {
		return diags[i].Span.Start.Offset < diags[j].Span.Start.Offset
	})
	return diags
}

// ---------- Token Helpers ----------

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.prev = p.token
	p.token = p.peek
	p.peek = p.peek2
	p.peek2 = p.lexer.NextToken()
}

// check returns true if the current token is of the given type.
func (p *Parser) check(t TokenType) bool {
	return p.token.Type == t
}

// checkPeek returns true if the peek token is of the given type.
func (p *Parser) checkPeek(t TokenType) bool {
	return p.peek.Type == t
}

// match consumes the current token if it matches and returns true.
func (p *Parser) match(t TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

// expect consumes the current token if it matches, otherwise adds an error.
func (p *Parser) expect(t TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, p.token.Type, t))
	return false
}

// addError adds a parse error at the current token.
func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, &ParseError{
		Pos:     p.token.Pos,
		Message: msg,
	})
}

// spanFrom builds a span from a start position to the end of the most
// recently consumed token.
func (p *Parser) spanFrom(start Position) Span {
	return Span{Start: start, End: p.prev.EndPos}
}

// sameToken reports whether two tokens are the same source token.
func sameToken(a, b Token) bool {
	return a.Pos.Offset == b.Pos.Offset && a.Type == b.Type
}

// ---------- Recovery ----------

// atStatementBoundary returns true if the current token can start a
// library-level definition.
func (p *Parser) atStatementBoundary() bool {
	switch p.token.Type {
	case TOKEN_DEFINE, TOKEN_CONTEXT, TOKEN_PARAMETER, TOKEN_VALUESET,
		TOKEN_CODESYSTEM, TOKEN_CODE, TOKEN_CONCEPT, TOKEN_USING,
		TOKEN_INCLUDE, TOKEN_PUBLIC, TOKEN_PRIVATE:
		return true
	}
	return false
}

// synchronize discards tokens until the next statement boundary or EOF.
// It always consumes at least one token so recovery makes progress.
func (p *Parser) synchronize() {
	p.nextToken()
	for !p.check(TOKEN_EOF) && !p.atStatementBoundary() {
		p.nextToken()
	}
}

// ---------- Identifier Helpers ----------

// parseIdent parses an identifier (plain or quoted) and returns its name.
func (p *Parser) parseIdent() (string, bool) {
	if p.check(TOKEN_IDENT) {
		name := p.token.Literal
		p.nextToken()
		return name, true
	}
	p.addError(fmt.Sprintf(ErrExpectedIdent, p.token.Type))
	return "", false
}

// parseQualifiedIdent parses a dotted identifier (Common.Base).
func (p *Parser) parseQualifiedIdent() (string, bool) {
	name, ok := p.parseIdent()
	if !ok {
		return "", false
	}
	for p.check(TOKEN_DOT) && p.checkPeek(TOKEN_IDENT) {
		p.nextToken() // consume '.'
		name += "." + p.token.Literal
		p.nextToken()
	}
	return name, true
}

// parseVersion parses an optional version clause: version 'v'.
func (p *Parser) parseVersion() string {
	if !p.check(TOKEN_VERSION) {
		return ""
	}
	p.nextToken()
	if p.check(TOKEN_STRING) {
		v := p.token.Literal
		p.nextToken()
		return v
	}
	p.addError("expected version string literal")
	return ""
}
