package cql

import "github.com/leapstack-labs/leapcql/pkg/token"

// ---------- Literals ----------

// LiteralKind identifies the subtype of a literal token.
type LiteralKind int

// Literal subtypes.
const (
	LiteralInteger LiteralKind = iota
	LiteralLong
	LiteralDecimal
	LiteralString
	LiteralBool
	LiteralNull
	LiteralDate
	LiteralDateTime
	LiteralTime
)

// Literal is a literal value. Value holds the source spelling with
// quotes and the @ prefix stripped.
type Literal struct {
	Kind  LiteralKind
	Value string
	Loc   token.Span
}

func (*Literal) exprNode() {}

// Pos implements Node.
func (l *Literal) Pos() token.Position { return l.Loc.Start }

// End implements Node.
func (l *Literal) End() token.Position { return l.Loc.End }

// QuantityExpr is a quantity literal: 5 'mg'.
type QuantityExpr struct {
	Value string
	Unit  string
	Loc   token.Span
}

func (*QuantityExpr) exprNode() {}

// Pos implements Node.
func (q *QuantityExpr) Pos() token.Position { return q.Loc.Start }

// End implements Node.
func (q *QuantityExpr) End() token.Position { return q.Loc.End }

// ---------- References ----------

// IdentRef is an unqualified identifier reference. What it refers to
// (expression, parameter, value set, query alias, ...) is decided
// during resolution.
type IdentRef struct {
	Name string
	Loc  token.Span
}

func (*IdentRef) exprNode() {}

// Pos implements Node.
func (r *IdentRef) Pos() token.Position { return r.Loc.Start }

// End implements Node.
func (r *IdentRef) End() token.Position { return r.Loc.End }

// PropertyExpr is a member access: source.path.
type PropertyExpr struct {
	Source Expr
	Name   string
	Loc    token.Span
}

func (*PropertyExpr) exprNode() {}

// Pos implements Node.
func (e *PropertyExpr) Pos() token.Position { return e.Loc.Start }

// End implements Node.
func (e *PropertyExpr) End() token.Position { return e.Loc.End }

// IndexExpr is an indexer: source[index].
type IndexExpr struct {
	Source Expr
	Index  Expr
	Loc    token.Span
}

func (*IndexExpr) exprNode() {}

// Pos implements Node.
func (e *IndexExpr) Pos() token.Position { return e.Loc.Start }

// End implements Node.
func (e *IndexExpr) End() token.Position { return e.Loc.End }

// FunctionCall invokes a function, optionally through an include alias:
// AgeInYears(), C.ToInterval(period).
type FunctionCall struct {
	Library string // include alias, empty for local/system functions
	Name    string
	Args    []Expr
	Loc     token.Span
}

func (*FunctionCall) exprNode() {}

// Pos implements Node.
func (e *FunctionCall) Pos() token.Position { return e.Loc.Start }

// End implements Node.
func (e *FunctionCall) End() token.Position { return e.Loc.End }

// ---------- Operators ----------

// BinaryExpr is a binary operator application. Op is the operator
// token, including phrase operators like "starts before".
type BinaryExpr struct {
	Op    token.TokenType
	Left  Expr
	Right Expr
	Loc   token.Span
}

func (*BinaryExpr) exprNode() {}

// Pos implements Node.
func (e *BinaryExpr) Pos() token.Position { return e.Loc.Start }

// End implements Node.
func (e *BinaryExpr) End() token.Position { return e.Loc.End }

// UnaryExpr is a prefix operator application (not, -, exists,
// start of, end of, distinct, flatten, singleton from, ...).
type UnaryExpr struct {
	Op      token.TokenType
	Operand Expr
	Loc     token.Span
}

func (*UnaryExpr) exprNode() {}

// Pos implements Node.
func (e *UnaryExpr) Pos() token.Position { return e.Loc.Start }

// End implements Node.
func (e *UnaryExpr) End() token.Position { return e.Loc.End }

// BetweenExpr is the ternary between operator: x between 1 and 10.
type BetweenExpr struct {
	Operand Expr
	Low     Expr
	High    Expr
	Loc     token.Span
}

func (*BetweenExpr) exprNode() {}

// Pos implements Node.
func (e *BetweenExpr) Pos() token.Position { return e.Loc.Start }

// End implements Node.
func (e *BetweenExpr) End() token.Position { return e.Loc.End }

// IsExpr is a type test: operand is T.
type IsExpr struct {
	Operand Expr
	Type    TypeSpecifier
	Loc     token.Span
}

func (*IsExpr) exprNode() {}

// Pos implements Node.
func (e *IsExpr) Pos() token.Position { return e.Loc.Start }

// End implements Node.
func (e *IsExpr) End() token.Position { return e.Loc.End }

// IsNullExpr is a null test: operand is [not] null.
type IsNullExpr struct {
	Operand Expr
	Not     bool
	Loc     token.Span
}

func (*IsNullExpr) exprNode() {}

// Pos implements Node.
func (e *IsNullExpr) Pos() token.Position { return e.Loc.Start }

// End implements Node.
func (e *IsNullExpr) End() token.Position { return e.Loc.End }

// IsBoolExpr is a boolean test: operand is [not] true|false.
type IsBoolExpr struct {
	Operand Expr
	Not     bool
	Value   bool
	Loc     token.Span
}

func (*IsBoolExpr) exprNode() {}

// Pos implements Node.
func (e *IsBoolExpr) Pos() token.Position { return e.Loc.Start }

// End implements Node.
func (e *IsBoolExpr) End() token.Position { return e.Loc.End }

// AsExpr is a cast: operand as T. Strict casts (cast ... as) raise at
// runtime instead of yielding null.
type AsExpr struct {
	Operand Expr
	Type    TypeSpecifier
	Strict  bool
	Loc     token.Span
}

func (*AsExpr) exprNode() {}

// Pos implements Node.
func (e *AsExpr) Pos() token.Position { return e.Loc.Start }

// End implements Node.
func (e *AsExpr) End() token.Position { return e.Loc.End }

// ---------- Conditionals ----------

// IfExpr is if/then/else.
type IfExpr struct {
	Condition Expr
	Then      Expr
	Else      Expr
	Loc       token.Span
}

func (*IfExpr) exprNode() {}

// Pos implements Node.
func (e *IfExpr) Pos() token.Position { return e.Loc.Start }

// End implements Node.
func (e *IfExpr) End() token.Position { return e.Loc.End }

// CaseItem is one when/then arm of a case expression.
type CaseItem struct {
	When Expr
	Then Expr
	Loc  token.Span
}

// Pos implements Node.
func (i *CaseItem) Pos() token.Position { return i.Loc.Start }

// End implements Node.
func (i *CaseItem) End() token.Position { return i.Loc.End }

// CaseExpr is a case expression, with or without a comparand.
type CaseExpr struct {
	Comparand Expr // nil for the standalone form
	Items     []*CaseItem
	Else      Expr
	Loc       token.Span
}

func (*CaseExpr) exprNode() {}

// Pos implements Node.
func (e *CaseExpr) Pos() token.Position { return e.Loc.Start }

// End implements Node.
func (e *CaseExpr) End() token.Position { return e.Loc.End }

// ---------- Constructors ----------

// IntervalExpr is an interval constructor: Interval[low, high).
type IntervalExpr struct {
	Low        Expr
	High       Expr
	LowClosed  bool
	HighClosed bool
	Loc        token.Span
}

func (*IntervalExpr) exprNode() {}

// Pos implements Node.
func (e *IntervalExpr) Pos() token.Position { return e.Loc.Start }

// End implements Node.
func (e *IntervalExpr) End() token.Position { return e.Loc.End }

// ListExpr is a list constructor: { 1, 2, 3 }.
type ListExpr struct {
	Elements []Expr
	Loc      token.Span
}

func (*ListExpr) exprNode() {}

// Pos implements Node.
func (e *ListExpr) Pos() token.Position { return e.Loc.Start }

// End implements Node.
func (e *ListExpr) End() token.Position { return e.Loc.End }

// TupleElement is one name: value pair of a tuple constructor.
type TupleElement struct {
	Name  string
	Value Expr
	Loc   token.Span
}

// Pos implements Node.
func (e *TupleElement) Pos() token.Position { return e.Loc.Start }

// End implements Node.
func (e *TupleElement) End() token.Position { return e.Loc.End }

// TupleExpr is a tuple constructor: Tuple { low: 1, high: 2 }.
type TupleExpr struct {
	Elements []*TupleElement
	Loc      token.Span
}

func (*TupleExpr) exprNode() {}

// Pos implements Node.
func (e *TupleExpr) Pos() token.Position { return e.Loc.Start }

// End implements Node.
func (e *TupleExpr) End() token.Position { return e.Loc.End }

// ---------- Retrieve and Query ----------

// Retrieve is a data access expression: [Condition: "Diabetes"].
// Terminology is a reference to a value set, code, or concept; CodePath
// overrides the model's primary code path when given.
type Retrieve struct {
	DataType *NamedType
	CodePath string
	Terms    Expr // nil for unfiltered retrieves
	Loc      token.Span
}

func (*Retrieve) exprNode() {}

// Pos implements Node.
func (e *Retrieve) Pos() token.Position { return e.Loc.Start }

// End implements Node.
func (e *Retrieve) End() token.Position { return e.Loc.End }

// AliasedSource is one aliased query source.
type AliasedSource struct {
	Source Expr
	Alias  string
	Loc    token.Span
}

// Pos implements Node.
func (s *AliasedSource) Pos() token.Position { return s.Loc.Start }

// End implements Node.
func (s *AliasedSource) End() token.Position { return s.Loc.End }

// LetClause binds a name inside a query.
type LetClause struct {
	Name string
	Expr Expr
	Loc  token.Span
}

// Pos implements Node.
func (c *LetClause) Pos() token.Position { return c.Loc.Start }

// End implements Node.
func (c *LetClause) End() token.Position { return c.Loc.End }

// RelationshipClause is a with/without ... such that clause.
type RelationshipClause struct {
	Without  bool
	Source   *AliasedSource
	SuchThat Expr
	Loc      token.Span
}

// Pos implements Node.
func (c *RelationshipClause) Pos() token.Position { return c.Loc.Start }

// End implements Node.
func (c *RelationshipClause) End() token.Position { return c.Loc.End }

// ReturnClause is a return [all|distinct] expression clause.
type ReturnClause struct {
	Distinct bool
	All      bool
	Expr     Expr
	Loc      token.Span
}

// Pos implements Node.
func (c *ReturnClause) Pos() token.Position { return c.Loc.Start }

// End implements Node.
func (c *ReturnClause) End() token.Position { return c.Loc.End }

// AggregateClause is an aggregate [distinct] id [starting expr]: expr clause.
type AggregateClause struct {
	Distinct   bool
	Identifier string
	Starting   Expr // nil when no starting value is given
	Expr       Expr
	Loc        token.Span
}

// Pos implements Node.
func (c *AggregateClause) Pos() token.Position { return c.Loc.Start }

// End implements Node.
func (c *AggregateClause) End() token.Position { return c.Loc.End }

// SortItem is one sort by item. Expr is nil when the item is a bare
// direction (sort desc).
type SortItem struct {
	Expr      Expr
	Direction string // "asc", "ascending", "desc", "descending"
	Loc       token.Span
}

// Pos implements Node.
func (i *SortItem) Pos() token.Position { return i.Loc.Start }

// End implements Node.
func (i *SortItem) End() token.Position { return i.Loc.End }

// SortClause is a sort by clause.
type SortClause struct {
	Items []*SortItem
	Loc   token.Span
}

// Pos implements Node.
func (c *SortClause) Pos() token.Position { return c.Loc.Start }

// End implements Node.
func (c *SortClause) End() token.Position { return c.Loc.End }

// QueryExpr is a full query.
type QueryExpr struct {
	Sources       []*AliasedSource
	Lets          []*LetClause
	Relationships []*RelationshipClause
	Where         Expr
	Return        *ReturnClause
	Aggregate     *AggregateClause
	Sort          *SortClause
	Loc           token.Span
}

func (*QueryExpr) exprNode() {}

// Pos implements Node.
func (e *QueryExpr) Pos() token.Position { return e.Loc.Start }

// End implements Node.
func (e *QueryExpr) End() token.Position { return e.Loc.End }
