// Package parser provides CQL lexing and parsing with statement-level
// error recovery. This file provides token type aliases so parser code
// can use the TOKEN_* spelling throughout.
package parser

import "github.com/leapstack-labs/leapcql/pkg/token"

// TokenType is an alias for token.TokenType.
type TokenType = token.TokenType

// Token is an alias for token.Token.
type Token = token.Token

// Position is an alias for token.Position.
type Position = token.Position

// Span is an alias for token.Span.
type Span = token.Span

// LookupIdent is re-exported from the token package.
var LookupIdent = token.LookupIdent

//nolint:revive // TOKEN_* names are intentionally ALL_CAPS for token conventions
const (
	// Special tokens
	TOKEN_EOF     = token.EOF
	TOKEN_ILLEGAL = token.ILLEGAL

	// Literals
	TOKEN_IDENT    = token.IDENT
	TOKEN_NUMBER   = token.NUMBER
	TOKEN_QUANTITY = token.QUANTITY
	TOKEN_STRING   = token.STRING
	TOKEN_DATE     = token.DATE
	TOKEN_DATETIME = token.DATETIME
	TOKEN_TIME     = token.TIME

	// Operators
	TOKEN_PLUS     = token.PLUS
	TOKEN_MINUS    = token.MINUS
	TOKEN_STAR     = token.STAR
	TOKEN_SLASH    = token.SLASH
	TOKEN_CARET    = token.CARET
	TOKEN_AMP      = token.AMP
	TOKEN_EQ       = token.EQ
	TOKEN_NEQ      = token.NEQ
	TOKEN_EQUIV    = token.EQUIV
	TOKEN_NEQUIV   = token.NEQUIV
	TOKEN_LT       = token.LT
	TOKEN_GT       = token.GT
	TOKEN_LE       = token.LE
	TOKEN_GE       = token.GE
	TOKEN_DOT      = token.DOT
	TOKEN_COMMA    = token.COMMA
	TOKEN_COLON    = token.COLON
	TOKEN_LPAREN   = token.LPAREN
	TOKEN_RPAREN   = token.RPAREN
	TOKEN_LBRACKET = token.LBRACKET
	TOKEN_RBRACKET = token.RBRACKET
	TOKEN_LBRACE   = token.LBRACE
	TOKEN_RBRACE   = token.RBRACE

	// Keywords (alphabetical)
	TOKEN_AFTER       = token.AFTER
	TOKEN_AGGREGATE   = token.AGGREGATE
	TOKEN_ALL         = token.ALL
	TOKEN_AND         = token.AND
	TOKEN_AS          = token.AS
	TOKEN_ASC         = token.ASC
	TOKEN_ASCENDING   = token.ASCENDING
	TOKEN_BEFORE      = token.BEFORE
	TOKEN_BETWEEN     = token.BETWEEN
	TOKEN_BY          = token.BY
	TOKEN_CALLED      = token.CALLED
	TOKEN_CASE        = token.CASE
	TOKEN_CAST        = token.CAST
	TOKEN_CODE        = token.CODE
	TOKEN_CODESYSTEM  = token.CODESYSTEM
	TOKEN_CONCEPT     = token.CONCEPT
	TOKEN_CONTAINS    = token.CONTAINS
	TOKEN_CONTEXT     = token.CONTEXT
	TOKEN_DEFAULT     = token.DEFAULT
	TOKEN_DEFINE      = token.DEFINE
	TOKEN_DESC        = token.DESC
	TOKEN_DESCENDING  = token.DESCENDING
	TOKEN_DISPLAY     = token.DISPLAY
	TOKEN_DISTINCT    = token.DISTINCT
	TOKEN_DIV         = token.DIV
	TOKEN_DURING      = token.DURING
	TOKEN_ELSE        = token.ELSE
	TOKEN_END         = token.END
	TOKEN_EXCEPT      = token.EXCEPT
	TOKEN_EXISTS      = token.EXISTS
	TOKEN_EXTERNAL    = token.EXTERNAL
	TOKEN_FALSE       = token.FALSE
	TOKEN_FLATTEN     = token.FLATTEN
	TOKEN_FLUENT      = token.FLUENT
	TOKEN_FROM        = token.FROM
	TOKEN_FUNCTION    = token.FUNCTION
	TOKEN_IF          = token.IF
	TOKEN_IMPLIES     = token.IMPLIES
	TOKEN_IN          = token.IN
	TOKEN_INCLUDE     = token.INCLUDE
	TOKEN_INCLUDES    = token.INCLUDES
	TOKEN_INTERSECT   = token.INTERSECT
	TOKEN_INTERVAL    = token.INTERVAL
	TOKEN_IS          = token.IS
	TOKEN_LET         = token.LET
	TOKEN_LIBRARY     = token.LIBRARY
	TOKEN_LIST        = token.LIST
	TOKEN_MOD         = token.MOD
	TOKEN_NOT         = token.NOT
	TOKEN_NULL        = token.NULL
	TOKEN_OR          = token.OR
	TOKEN_PARAMETER   = token.PARAMETER
	TOKEN_PREDECESSOR = token.PREDECESSOR
	TOKEN_PRIVATE     = token.PRIVATE
	TOKEN_PUBLIC      = token.PUBLIC
	TOKEN_RETURN      = token.RETURN
	TOKEN_RETURNS     = token.RETURNS
	TOKEN_SINGLETON   = token.SINGLETON
	TOKEN_SORT        = token.SORT
	TOKEN_SUCCESSOR   = token.SUCCESSOR
	TOKEN_THEN        = token.THEN
	TOKEN_TO          = token.TO
	TOKEN_TRUE        = token.TRUE
	TOKEN_TUPLE       = token.TUPLE
	TOKEN_UNION       = token.UNION
	TOKEN_USING       = token.USING
	TOKEN_VALUESET    = token.VALUESET
	TOKEN_VERSION     = token.VERSION
	TOKEN_WHEN        = token.WHEN
	TOKEN_WHERE       = token.WHERE
	TOKEN_WITH        = token.WITH
	TOKEN_WITHOUT     = token.WITHOUT
	TOKEN_XOR         = token.XOR
)

// Phrase keyword tokens, registered dynamically by pkg/token.
//
//nolint:revive // Keep the TOKEN_* spelling for phrase operators too
var (
	TOKEN_SORT_BY              = token.SORT_BY
	TOKEN_SUCH_THAT            = token.SUCH_THAT
	TOKEN_START_OF             = token.START_OF
	TOKEN_END_OF               = token.END_OF
	TOKEN_SINGLETON_FROM       = token.SINGLETON_FROM
	TOKEN_PREDECESSOR_OF       = token.PREDECESSOR_OF
	TOKEN_SUCCESSOR_OF         = token.SUCCESSOR_OF
	TOKEN_INCLUDED_IN          = token.INCLUDED_IN
	TOKEN_PROPERLY_INCLUDES    = token.PROPERLY_INCLUDES
	TOKEN_PROPERLY_INCLUDED_IN = token.PROPERLY_INCLUDED_IN
	TOKEN_STARTS_BEFORE        = token.STARTS_BEFORE
	TOKEN_STARTS_AFTER         = token.STARTS_AFTER
	TOKEN_ENDS_BEFORE          = token.ENDS_BEFORE
	TOKEN_ENDS_AFTER           = token.ENDS_AFTER
	TOKEN_OCCURS_BEFORE        = token.OCCURS_BEFORE
	TOKEN_OCCURS_AFTER         = token.OCCURS_AFTER
	TOKEN_SAME_AS              = token.SAME_AS
	TOKEN_SAME_OR_BEFORE       = token.SAME_OR_BEFORE
	TOKEN_SAME_OR_AFTER        = token.SAME_OR_AFTER
	TOKEN_OVERLAPS_BEFORE      = token.OVERLAPS_BEFORE
	TOKEN_OVERLAPS_AFTER       = token.OVERLAPS_AFTER
	TOKEN_MEETS_BEFORE         = token.MEETS_BEFORE
	TOKEN_MEETS_AFTER          = token.MEETS_AFTER
	TOKEN_OVERLAPS             = token.OVERLAPS
	TOKEN_MEETS                = token.MEETS
)
