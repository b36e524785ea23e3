package compiler

import (
	"fmt"

	"github.com/leapstack-labs/leapcql/pkg/cql"
)

// DefaultContext is assigned to statements that have no preceding
// context declaration.
const DefaultContext = "Unfiltered"

// RefKind classifies what an identifier reference resolved to.
type RefKind int

// Reference kinds.
const (
	RefUnresolved RefKind = iota
	RefExpression
	RefFunction
	RefParameter
	RefValueSet
	RefCodeSystem
	RefCode
	RefConcept
	RefInclude
	RefAlias   // query source alias
	RefLet     // query let binding
	RefOperand // function operand
)

// Binding records the resolution of one reference node. Library is the
// include alias for cross-library references.
type Binding struct {
	Kind    RefKind
	Name    string
	Library string
}

// Resolution is the output of resolving one library: the symbol table,
// a binding per reference node, inferred result types, the contexts in
// first-use order, and the semantic diagnostics.
type Resolution struct {
	Library   *cql.Library
	Symbols   *SymbolTable
	Bindings  map[cql.Node]*Binding
	Receivers map[*cql.FunctionCall]*cql.IdentRef
	Types     map[cql.Expr]string
	Contexts  []string

	Diagnostics []cql.Diagnostic
}

// scope is one lexical scope for query aliases, let bindings, and
// function operands.
type scope struct {
	parent *scope
	names  map[string]RefKind
}

func (s *scope) lookup(name string) (RefKind, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if kind, ok := sc.names[name]; ok {
			return kind, true
		}
	}
	return RefUnresolved, false
}

// Resolver binds identifier references and assigns statement contexts.
type Resolver struct {
	lib   *cql.Library
	res   *Resolution
	scope *scope

	inProgress map[*cql.ExpressionDef]bool
}

// Resolve runs both passes over a parsed library: pass 1 registers all
// top-level names so forward references work, pass 2 binds every
// reference and assigns contexts.
func Resolve(lib *cql.Library) *Resolution {
	r := &Resolver{
		lib: lib,
		res: &Resolution{
			Library:   lib,
			Symbols:   NewSymbolTable(),
			Bindings:  make(map[cql.Node]*Binding),
			Receivers: make(map[*cql.FunctionCall]*cql.IdentRef),
			Types:     make(map[cql.Expr]string),
		},
		inProgress: make(map[*cql.ExpressionDef]bool),
	}
	r.declareAll()
	r.resolveAll()
	return r.res
}

// errorAt records a semantic diagnostic.
func (r *Resolver) errorAt(n cql.Node, format string, args ...any) {
	r.res.Diagnostics = append(r.res.Diagnostics, cql.Diagnostic{
		Severity: cql.SeverityError,
		Stage:    cql.StageSemantic,
		Span:     cql.SpanOf(n),
		Message:  fmt.Sprintf(format, args...),
	})
}

// ---------- Pass 1: Declarations ----------

func (r *Resolver) declare(name string, kind SymbolKind, access cql.AccessLevel, decl cql.Node) {
	existing, ok := r.res.Symbols.Define(&Symbol{
		Name:   name,
		Kind:   kind,
		Access: access,
		Decl:   decl,
	})
	if !ok {
		// Same-name functions are overloads, not redefinitions
		if kind == SymbolFunction && existing.Kind == SymbolFunction {
			return
		}
		r.errorAt(decl, "redefinition of %q (first defined as %s)", name, existing.Kind)
	}
}

func (r *Resolver) declareAll() {
	for _, d := range r.lib.Includes {
		r.declare(d.Alias, SymbolInclude, cql.AccessPublic, d)
	}
	for _, d := range r.lib.CodeSystems {
		r.declare(d.Name, SymbolCodeSystem, d.Access, d)
	}
	for _, d := range r.lib.ValueSets {
		r.declare(d.Name, SymbolValueSet, d.Access, d)
	}
	for _, d := range r.lib.Codes {
		r.declare(d.Name, SymbolCode, d.Access, d)
	}
	for _, d := range r.lib.Concepts {
		r.declare(d.Name, SymbolConcept, d.Access, d)
	}
	for _, d := range r.lib.Parameters {
		r.declare(d.Name, SymbolParameter, d.Access, d)
	}
	for _, s := range r.lib.Statements {
		switch d := s.(type) {
		case *cql.ExpressionDef:
			r.declare(d.Name, SymbolExpression, d.Access, d)
		case *cql.FunctionDef:
			r.declare(d.Name, SymbolFunction, d.Access, d)
		}
	}
}

// ---------- Pass 2: References and Contexts ----------

func (r *Resolver) resolveAll() {
	for _, d := range r.lib.Codes {
		if d.CodeSystem != "" {
			if sym, ok := r.res.Symbols.Lookup(d.CodeSystem); !ok || sym.Kind != SymbolCodeSystem {
				r.errorAt(d, "code %q references undefined codesystem %q", d.Name, d.CodeSystem)
			}
		}
	}
	for _, d := range r.lib.Concepts {
		for _, code := range d.Codes {
			if sym, ok := r.res.Symbols.Lookup(code); !ok || sym.Kind != SymbolCode {
				r.errorAt(d, "concept %q references undefined code %q", d.Name, code)
			}
		}
	}
	for _, d := range r.lib.Parameters {
		if d.Default != nil {
			r.resolveExpr(d.Default)
		}
	}

	context := DefaultContext
	seen := make(map[string]bool)
	useContext := func(name string) {
		if !seen[name] {
			seen[name] = true
			r.res.Contexts = append(r.res.Contexts, name)
		}
	}

	for _, s := range r.lib.Statements {
		switch d := s.(type) {
		case *cql.ContextDef:
			context = d.Name
		case *cql.ExpressionDef:
			d.Context = context
			useContext(context)
			r.resolveExpr(d.Expr)
			r.inferDefType(d)
		case *cql.FunctionDef:
			d.Context = context
			useContext(context)
			r.resolveFunction(d)
		}
	}
}

func (r *Resolver) resolveFunction(d *cql.FunctionDef) {
	if d.External {
		return
	}
	sc := &scope{parent: r.scope, names: make(map[string]RefKind)}
	for _, op := range d.Operands {
		sc.names[op.Name] = RefOperand
	}
	r.scope = sc
	r.resolveExpr(d.Body)
	r.scope = sc.parent
}

// resolveIdent binds a bare identifier against the local scope chain,
// then the library symbol table.
func (r *Resolver) resolveIdent(ref *cql.IdentRef) *Binding {
	if kind, ok := r.scope.lookup(ref.Name); ok {
		b := &Binding{Kind: kind, Name: ref.Name}
		r.res.Bindings[ref] = b
		return b
	}

	if sym, ok := r.res.Symbols.Lookup(ref.Name); ok {
		var kind RefKind
		switch sym.Kind {
		case SymbolExpression:
			kind = RefExpression
		case SymbolFunction:
			kind = RefFunction
		case SymbolParameter:
			kind = RefParameter
		case SymbolValueSet:
			kind = RefValueSet
		case SymbolCodeSystem:
			kind = RefCodeSystem
		case SymbolCode:
			kind = RefCode
		case SymbolConcept:
			kind = RefConcept
		case SymbolInclude:
			kind = RefInclude
		}
		b := &Binding{Kind: kind, Name: ref.Name}
		r.res.Bindings[ref] = b
		return b
	}

	r.errorAt(ref, "could not resolve identifier %q", ref.Name)
	b := &Binding{Kind: RefUnresolved, Name: ref.Name}
	r.res.Bindings[ref] = b
	return b
}

func (r *Resolver) includeAlias(name string) bool {
	sym, ok := r.res.Symbols.Lookup(name)
	return ok && sym.Kind == SymbolInclude
}

func (r *Resolver) resolveExpr(e cql.Expr) {
	switch n := e.(type) {
	case nil:
		return

	case *cql.Literal, *cql.QuantityExpr:

	case *cql.IdentRef:
		r.resolveIdent(n)

	case *cql.PropertyExpr:
		// A property on an include alias is a cross-library reference
		if src, ok := n.Source.(*cql.IdentRef); ok && r.includeAlias(src.Name) {
			r.res.Bindings[src] = &Binding{Kind: RefInclude, Name: src.Name}
			r.res.Bindings[n] = &Binding{Kind: RefExpression, Name: n.Name, Library: src.Name}
			return
		}
		r.resolveExpr(n.Source)

	case *cql.IndexExpr:
		r.resolveExpr(n.Source)
		r.resolveExpr(n.Index)

	case *cql.FunctionCall:
		r.resolveCall(n)

	case *cql.BinaryExpr:
		r.resolveExpr(n.Left)
		r.resolveExpr(n.Right)

	case *cql.UnaryExpr:
		r.resolveExpr(n.Operand)

	case *cql.BetweenExpr:
		r.resolveExpr(n.Operand)
		r.resolveExpr(n.Low)
		r.resolveExpr(n.High)

	case *cql.IsNullExpr:
		r.resolveExpr(n.Operand)

	case *cql.IsBoolExpr:
		r.resolveExpr(n.Operand)

	case *cql.IsExpr:
		r.resolveExpr(n.Operand)

	case *cql.AsExpr:
		r.resolveExpr(n.Operand)

	case *cql.IfExpr:
		r.resolveExpr(n.Condition)
		r.resolveExpr(n.Then)
		r.resolveExpr(n.Else)

	case *cql.CaseExpr:
		r.resolveExpr(n.Comparand)
		for _, item := range n.Items {
			r.resolveExpr(item.When)
			r.resolveExpr(item.Then)
		}
		r.resolveExpr(n.Else)

	case *cql.IntervalExpr:
		r.resolveExpr(n.Low)
		r.resolveExpr(n.High)

	case *cql.ListExpr:
		for _, el := range n.Elements {
			r.resolveExpr(el)
		}

	case *cql.TupleExpr:
		for _, el := range n.Elements {
			r.resolveExpr(el.Value)
		}

	case *cql.Retrieve:
		r.resolveExpr(n.Terms)

	case *cql.QueryExpr:
		r.resolveQuery(n)
	}
}

// resolveCall handles local, qualified, and fluent invocations. A
// qualifier that is not an include alias is a fluent receiver: the
// receiver value becomes the call's first argument.
func (r *Resolver) resolveCall(n *cql.FunctionCall) {
	if n.Library != "" {
		if r.includeAlias(n.Library) {
			r.res.Bindings[n] = &Binding{Kind: RefFunction, Name: n.Name, Library: n.Library}
		} else {
			recv := &cql.IdentRef{Name: n.Library, Loc: cql.SpanOf(n)}
			r.resolveIdent(recv)
			r.res.Receivers[n] = recv
			r.res.Bindings[n] = &Binding{Kind: RefFunction, Name: n.Name}
		}
	} else {
		// Undeclared names are assumed to be system functions
		r.res.Bindings[n] = &Binding{Kind: RefFunction, Name: n.Name}
	}
	for _, arg := range n.Args {
		r.resolveExpr(arg)
	}
}

func (r *Resolver) resolveQuery(q *cql.QueryExpr) {
	sc := &scope{parent: r.scope, names: make(map[string]RefKind)}

	// Sources are resolved in the enclosing scope; their aliases only
	// become visible to the query clauses.
	for _, src := range q.Sources {
		r.resolveExpr(src.Source)
	}
	for _, src := range q.Sources {
		sc.names[src.Alias] = RefAlias
	}
	r.scope = sc

	for _, let := range q.Lets {
		r.resolveExpr(let.Expr)
		sc.names[let.Name] = RefLet
	}
	for _, rel := range q.Relationships {
		r.resolveExpr(rel.Source.Source)
		relScope := &scope{parent: r.scope, names: map[string]RefKind{rel.Source.Alias: RefAlias}}
		r.scope = relScope
		r.resolveExpr(rel.SuchThat)
		r.scope = relScope.parent
	}
	r.resolveExpr(q.Where)
	if q.Return != nil {
		r.resolveExpr(q.Return.Expr)
	}
	if q.Aggregate != nil {
		r.resolveExpr(q.Aggregate.Starting)
		aggScope := &scope{parent: r.scope, names: map[string]RefKind{q.Aggregate.Identifier: RefLet}}
		r.scope = aggScope
		r.resolveExpr(q.Aggregate.Expr)
		r.scope = aggScope.parent
	}
	if q.Sort != nil {
		for _, item := range q.Sort.Items {
			r.resolveSortItem(item)
		}
	}

	r.scope = sc.parent
}

// resolveSortItem resolves a sort expression. Sort items may reference
// properties of the returned element directly, so unresolved bare
// identifiers are bound as element properties rather than errors.
func (r *Resolver) resolveSortItem(item *cql.SortItem) {
	if item.Expr == nil {
		return
	}
	if ref, ok := item.Expr.(*cql.IdentRef); ok {
		if _, found := r.scope.lookup(ref.Name); !found {
			if _, found := r.res.Symbols.Lookup(ref.Name); !found {
				r.res.Bindings[ref] = &Binding{Kind: RefUnresolved, Name: ref.Name}
				return
			}
		}
	}
	r.resolveExpr(item.Expr)
}
