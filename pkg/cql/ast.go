// Package cql defines the AST for CQL libraries along with the
// compiler options and diagnostic types shared by the pipeline stages.
package cql

import "github.com/leapstack-labs/leapcql/pkg/token"

// Node is the base interface for all AST nodes.
// Every node carries the exact source range it was parsed from.
type Node interface {
	// Pos returns the position of the first character of the node.
	Pos() token.Position
	// End returns the position of the character immediately after the node.
	End() token.Position
}

// Expr is a marker interface for expression nodes.
type Expr interface {
	Node
	exprNode()
}

// Stmt is a marker interface for library-level statements
// (expression definitions, function definitions, context declarations).
type Stmt interface {
	Node
	stmtNode()
}

// SpanOf returns the source range covered by a node.
func SpanOf(n Node) token.Span {
	if n == nil {
		return token.Span{}
	}
	return token.Span{Start: n.Pos(), End: n.End()}
}

// AccessLevel is the visibility of a library-level definition.
type AccessLevel string

// Access levels as they appear in emitted ELM.
const (
	AccessPublic  AccessLevel = "Public"
	AccessPrivate AccessLevel = "Private"
)

// ---------- Type Specifiers ----------

// TypeSpecifier is the interface for parsed type references.
type TypeSpecifier interface {
	Node
	typeNode()
}

// NamedType references a named type, optionally model-qualified
// (Integer, FHIR.Condition).
type NamedType struct {
	Qualifier string // optional model qualifier
	Name      string
	Loc       token.Span
}

func (*NamedType) typeNode() {}

// Pos implements Node.
func (t *NamedType) Pos() token.Position { return t.Loc.Start }

// End implements Node.
func (t *NamedType) End() token.Position { return t.Loc.End }

// ListType is a List<T> specifier.
type ListType struct {
	Element TypeSpecifier
	Loc     token.Span
}

func (*ListType) typeNode() {}

// Pos implements Node.
func (t *ListType) Pos() token.Position { return t.Loc.Start }

// End implements Node.
func (t *ListType) End() token.Position { return t.Loc.End }

// IntervalType is an Interval<T> specifier.
type IntervalType struct {
	Point TypeSpecifier
	Loc   token.Span
}

func (*IntervalType) typeNode() {}

// Pos implements Node.
func (t *IntervalType) Pos() token.Position { return t.Loc.Start }

// End implements Node.
func (t *IntervalType) End() token.Position { return t.Loc.End }
