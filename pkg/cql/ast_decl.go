package cql

import "github.com/leapstack-labs/leapcql/pkg/token"

// Library is the root of a parsed CQL library.
// Statements preserves source order, including context declarations,
// so later passes can assign each definition its governing context.
type Library struct {
	Name    string // empty for anonymous libraries
	Version string
	Loc     token.Span // span of the library declaration, if present

	Usings      []*UsingDef
	Includes    []*IncludeDef
	CodeSystems []*CodeSystemDef
	ValueSets   []*ValueSetDef
	Codes       []*CodeDef
	Concepts    []*ConceptDef
	Parameters  []*ParameterDef
	Statements  []Stmt
}

// Pos implements Node.
func (l *Library) Pos() token.Position { return l.Loc.Start }

// End implements Node.
func (l *Library) End() token.Position { return l.Loc.End }

// Identifier returns "name" or "name@version" for diagnostics and
// dependency-cache keys.
func (l *Library) Identifier() string {
	if l.Version == "" {
		return l.Name
	}
	return l.Name + "@" + l.Version
}

// UsingDef is a data model declaration: using FHIR version '4.0.1'.
type UsingDef struct {
	Name    string
	Version string
	Loc     token.Span
}

// Pos implements Node.
func (d *UsingDef) Pos() token.Position { return d.Loc.Start }

// End implements Node.
func (d *UsingDef) End() token.Position { return d.Loc.End }

// IncludeDef is a library include: include Common version '1.0' called C.
// Alias defaults to the included library name.
type IncludeDef struct {
	Path    string
	Version string
	Alias   string
	Loc     token.Span
}

// Pos implements Node.
func (d *IncludeDef) Pos() token.Position { return d.Loc.Start }

// End implements Node.
func (d *IncludeDef) End() token.Position { return d.Loc.End }

// CodeSystemDef declares a code system: codesystem "LOINC": 'http://loinc.org'.
type CodeSystemDef struct {
	Name    string
	ID      string
	Version string
	Access  AccessLevel
	Loc     token.Span
}

// Pos implements Node.
func (d *CodeSystemDef) Pos() token.Position { return d.Loc.Start }

// End implements Node.
func (d *CodeSystemDef) End() token.Position { return d.Loc.End }

// ValueSetDef declares a value set binding.
type ValueSetDef struct {
	Name    string
	ID      string
	Version string
	Access  AccessLevel
	Loc     token.Span
}

// Pos implements Node.
func (d *ValueSetDef) Pos() token.Position { return d.Loc.Start }

// End implements Node.
func (d *ValueSetDef) End() token.Position { return d.Loc.End }

// CodeDef declares a direct-reference code:
// code "Blood pressure": '85354-9' from "LOINC" display 'Blood pressure panel'.
type CodeDef struct {
	Name       string
	Code       string
	CodeSystem string // name of the codesystem definition
	Display    string
	Access     AccessLevel
	Loc        token.Span
}

// Pos implements Node.
func (d *CodeDef) Pos() token.Position { return d.Loc.Start }

// End implements Node.
func (d *CodeDef) End() token.Position { return d.Loc.End }

// ConceptDef groups code definitions: concept "HTN": { "Essential HTN" }.
type ConceptDef struct {
	Name    string
	Codes   []string // names of code definitions
	Display string
	Access  AccessLevel
	Loc     token.Span
}

// Pos implements Node.
func (d *ConceptDef) Pos() token.Position { return d.Loc.Start }

// End implements Node.
func (d *ConceptDef) End() token.Position { return d.Loc.End }

// ParameterDef declares a parameter with an optional type and default.
type ParameterDef struct {
	Name    string
	Type    TypeSpecifier // nil when only a default is given
	Default Expr          // nil when only a type is given
	Access  AccessLevel
	Loc     token.Span
}

// Pos implements Node.
func (d *ParameterDef) Pos() token.Position { return d.Loc.Start }

// End implements Node.
func (d *ParameterDef) End() token.Position { return d.Loc.End }

// ContextDef switches the governing context for subsequent statements.
type ContextDef struct {
	Name string
	Loc  token.Span
}

func (*ContextDef) stmtNode() {}

// Pos implements Node.
func (d *ContextDef) Pos() token.Position { return d.Loc.Start }

// End implements Node.
func (d *ContextDef) End() token.Position { return d.Loc.End }

// ExpressionDef is a named expression: define "InDemographic": ...
// Context is filled in during resolution from the nearest preceding
// context declaration, defaulting to "Unfiltered".
type ExpressionDef struct {
	Name    string
	Access  AccessLevel
	Expr    Expr
	Context string
	Loc     token.Span
}

func (*ExpressionDef) stmtNode() {}

// Pos implements Node.
func (d *ExpressionDef) Pos() token.Position { return d.Loc.Start }

// End implements Node.
func (d *ExpressionDef) End() token.Position { return d.Loc.End }

// OperandDef is a single function parameter.
type OperandDef struct {
	Name string
	Type TypeSpecifier
	Loc  token.Span
}

// Pos implements Node.
func (d *OperandDef) Pos() token.Position { return d.Loc.Start }

// End implements Node.
func (d *OperandDef) End() token.Position { return d.Loc.End }

// FunctionDef is a function definition. External functions have a nil
// Body; fluent functions may be invoked with method syntax.
type FunctionDef struct {
	Name     string
	Access   AccessLevel
	Fluent   bool
	External bool
	Operands []*OperandDef
	Returns  TypeSpecifier // nil when inferred
	Body     Expr          // nil for external functions
	Context  string
	Loc      token.Span
}

func (*FunctionDef) stmtNode() {}

// Pos implements Node.
func (d *FunctionDef) Pos() token.Position { return d.Loc.Start }

// End implements Node.
func (d *FunctionDef) End() token.Position { return d.Loc.End }
