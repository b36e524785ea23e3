// Package token defines the token types for CQL parsing.
//
// Core tokens are defined as constants (IDs 0-999) for switch performance.
// Multi-word phrase keywords ("sort by", "starts before", ...) are
// registered dynamically via RegisterPhrase().
package token

import "fmt"

// TokenType represents the type of a lexical token.
//
//nolint:revive // Accept stutter as token.TokenType is clear and widely used
type TokenType int32

//nolint:revive // ALL_CAPS names follow the keyword spelling conventions
const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL

	// Literals
	IDENT    // identifier (plain, "quoted" or `backtick`)
	NUMBER   // 123, 45.67, 12L
	QUANTITY // 5 'mg'
	STRING   // 'hello'
	DATE     // @2024-01-15
	DATETIME // @2024-01-15T10:30:00.0Z
	TIME     // @T14:30:00

	// Operators
	PLUS     // +
	MINUS    // -
	STAR     // *
	SLASH    // /
	CARET    // ^
	AMP      // & (string concatenation)
	EQ       // =
	NEQ      // !=
	EQUIV    // ~
	NEQUIV   // !~
	LT       // <
	GT       // >
	LE       // <=
	GE       // >=
	DOT      // .
	COMMA    // ,
	COLON    // :
	LPAREN   // (
	RPAREN   // )
	LBRACKET // [
	RBRACKET // ]
	LBRACE   // {
	RBRACE   // }

	// Keywords (alphabetical, case-sensitive lowercase per CQL)
	AFTER
	AGGREGATE
	ALL
	AND
	AS
	ASC
	ASCENDING
	BEFORE
	BETWEEN
	BY
	CALLED
	CASE
	CAST
	CODE
	CODESYSTEM
	CONCEPT
	CONTAINS
	CONTEXT
	DEFAULT
	DEFINE
	DESC
	DESCENDING
	DISPLAY
	DISTINCT
	DIV
	DURING
	ELSE
	END
	EXCEPT
	EXISTS
	EXTERNAL
	FALSE
	FLATTEN
	FLUENT
	FROM
	FUNCTION
	IF
	IMPLIES
	IN
	INCLUDE
	INCLUDES
	INTERSECT
	INTERVAL
	IS
	LET
	LIBRARY
	LIST
	MOD
	NOT
	NULL
	OR
	PARAMETER
	PREDECESSOR
	PRIVATE
	PUBLIC
	RETURN
	RETURNS
	SINGLETON
	SORT
	SUCCESSOR
	THEN
	TO
	TRUE
	TUPLE
	UNION
	USING
	VALUESET
	VERSION
	WHEN
	WHERE
	WITH
	WITHOUT
	XOR

	// Sentinel - dynamic tokens start after this
	maxBuiltin TokenType = 999
)

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	// Check dynamic tokens first
	if name, ok := getDynamicName(t); ok {
		return name
	}
	// Then check builtin tokens
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", t)
}

// tokenNames maps builtin token types to their string representations.
var tokenNames = map[TokenType]string{
	EOF:     "EOF",
	ILLEGAL: "ILLEGAL",

	IDENT:    "IDENT",
	NUMBER:   "NUMBER",
	QUANTITY: "QUANTITY",
	STRING:   "STRING",
	DATE:     "DATE",
	DATETIME: "DATETIME",
	TIME:     "TIME",

	PLUS:     "+",
	MINUS:    "-",
	STAR:     "*",
	SLASH:    "/",
	CARET:    "^",
	AMP:      "&",
	EQ:       "=",
	NEQ:      "!=",
	EQUIV:    "~",
	NEQUIV:   "!~",
	LT:       "<",
	GT:       ">",
	LE:       "<=",
	GE:       ">=",
	DOT:      ".",
	COMMA:    ",",
	COLON:    ":",
	LPAREN:   "(",
	RPAREN:   ")",
	LBRACKET: "[",
	RBRACKET: "]",
	LBRACE:   "{",
	RBRACE:   "}",

	AFTER:       "after",
	AGGREGATE:   "aggregate",
	ALL:         "all",
	AND:         "and",
	AS:          "as",
	ASC:         "asc",
	ASCENDING:   "ascending",
	BEFORE:      "before",
	BETWEEN:     "between",
	BY:          "by",
	CALLED:      "called",
	CASE:        "case",
	CAST:        "cast",
	CODE:        "code",
	CODESYSTEM:  "codesystem",
	CONCEPT:     "concept",
	CONTAINS:    "contains",
	CONTEXT:     "context",
	DEFAULT:     "default",
	DEFINE:      "define",
	DESC:        "desc",
	DESCENDING:  "descending",
	DISPLAY:     "display",
	DISTINCT:    "distinct",
	DIV:         "div",
	DURING:      "during",
	ELSE:        "else",
	END:         "end",
	EXCEPT:      "except",
	EXISTS:      "exists",
	EXTERNAL:    "external",
	FALSE:       "false",
	FLATTEN:     "flatten",
	FLUENT:      "fluent",
	FROM:        "from",
	FUNCTION:    "function",
	IF:          "if",
	IMPLIES:     "implies",
	IN:          "in",
	INCLUDE:     "include",
	INCLUDES:    "includes",
	INTERSECT:   "intersect",
	INTERVAL:    "Interval",
	IS:          "is",
	LET:         "let",
	LIBRARY:     "library",
	LIST:        "List",
	MOD:         "mod",
	NOT:         "not",
	NULL:        "null",
	OR:          "or",
	PARAMETER:   "parameter",
	PREDECESSOR: "predecessor",
	PRIVATE:     "private",
	PUBLIC:      "public",
	RETURN:      "return",
	RETURNS:     "returns",
	SINGLETON:   "singleton",
	SORT:        "sort",
	SUCCESSOR:   "successor",
	THEN:        "then",
	TO:          "to",
	TRUE:        "true",
	TUPLE:       "Tuple",
	UNION:       "union",
	USING:       "using",
	VALUESET:    "valueset",
	VERSION:     "version",
	WHEN:        "when",
	WHERE:       "where",
	WITH:        "with",
	WITHOUT:     "without",
	XOR:         "xor",
}

// keywords maps keyword strings to their token types.
// CQL keywords are case-sensitive, so lookups use the exact spelling.
var keywords = map[string]TokenType{
	"after":       AFTER,
	"aggregate":   AGGREGATE,
	"all":         ALL,
	"and":         AND,
	"as":          AS,
	"asc":         ASC,
	"ascending":   ASCENDING,
	"before":      BEFORE,
	"between":     BETWEEN,
	"by":          BY,
	"called":      CALLED,
	"case":        CASE,
	"cast":        CAST,
	"code":        CODE,
	"codesystem":  CODESYSTEM,
	"concept":     CONCEPT,
	"contains":    CONTAINS,
	"context":     CONTEXT,
	"default":     DEFAULT,
	"define":      DEFINE,
	"desc":        DESC,
	"descending":  DESCENDING,
	"display":     DISPLAY,
	"distinct":    DISTINCT,
	"div":         DIV,
	"during":      DURING,
	"else":        ELSE,
	"end":         END,
	"except":      EXCEPT,
	"exists":      EXISTS,
	"external":    EXTERNAL,
	"false":       FALSE,
	"flatten":     FLATTEN,
	"fluent":      FLUENT,
	"from":        FROM,
	"function":    FUNCTION,
	"if":          IF,
	"implies":     IMPLIES,
	"in":          IN,
	"include":     INCLUDE,
	"includes":    INCLUDES,
	"intersect":   INTERSECT,
	"Interval":    INTERVAL,
	"is":          IS,
	"let":         LET,
	"library":     LIBRARY,
	"List":        LIST,
	"mod":         MOD,
	"not":         NOT,
	"null":        NULL,
	"or":          OR,
	"parameter":   PARAMETER,
	"predecessor": PREDECESSOR,
	"private":     PRIVATE,
	"public":      PUBLIC,
	"return":      RETURN,
	"returns":     RETURNS,
	"singleton":   SINGLETON,
	"sort":        SORT,
	"successor":   SUCCESSOR,
	"then":        THEN,
	"to":          TO,
	"true":        TRUE,
	"Tuple":       TUPLE,
	"union":       UNION,
	"using":       USING,
	"valueset":    VALUESET,
	"version":     VERSION,
	"when":        WHEN,
	"where":       WHERE,
	"with":        WITH,
	"without":     WITHOUT,
	"xor":         XOR,
}

// LookupIdent returns the token type for the given identifier.
// If the identifier is a keyword, the keyword token type is returned.
// Otherwise, IDENT is returned.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// IsKeyword returns true if the token type is a keyword.
func IsKeyword(t TokenType) bool {
	return t >= AFTER && t <= XOR
}

// IsOperator returns true if the token type is an operator.
func IsOperator(t TokenType) bool {
	return t >= PLUS && t <= RBRACE
}

// IsLiteral returns true if the token type is a literal.
func IsLiteral(t TokenType) bool {
	return t >= NUMBER && t <= TIME
}

// Token represents a lexical token with position information. Unit is
// set only on QUANTITY tokens, whose Literal carries the numeric
// value.
type Token struct {
	Type    TokenType
	Literal string
	Unit    string
	Pos     Position
	EndPos  Position
}

// Span returns the source range covered by the token.
func (t Token) Span() Span {
	return Span{Start: t.Pos, End: t.EndPos}
}
