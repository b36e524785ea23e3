package compiler

import (
	"strconv"

	"github.com/leapstack-labs/leapcql/pkg/cql"
	"github.com/leapstack-labs/leapcql/pkg/token"
)

// ELM schema constants.
const (
	elmSchemaID      = "urn:hl7-org:elm"
	elmSchemaVersion = "r1"
	systemTypesURI   = "urn:hl7-org:elm-types:r1"
)

// modelURIs maps data model names to their ELM URIs.
var modelURIs = map[string]string{
	"System": systemTypesURI,
	"FHIR":   "http://hl7.org/fhir",
	"QICore": "http://hl7.org/fhir/us/qicore",
	"QDM":    "urn:healthit-gov:qdm:v5_6",
	"USCore": "http://hl7.org/fhir/us/core",
}

// modelURI returns the URI for a model name, falling back to a urn
// derived from the name for models without a registered URI.
func modelURI(name string) string {
	if uri, ok := modelURIs[name]; ok {
		return uri
	}
	return "urn:model:" + name
}

// binaryOps maps binary operator tokens to ELM node types. Phrase
// operators that desugar into boundary extraction are handled
// separately.
var binaryOps = map[token.TokenType]string{
	token.PLUS:      "Add",
	token.MINUS:     "Subtract",
	token.STAR:      "Multiply",
	token.SLASH:     "Divide",
	token.DIV:       "TruncatedDivide",
	token.MOD:       "Modulo",
	token.CARET:     "Power",
	token.AMP:       "Concatenate",
	token.EQ:        "Equal",
	token.NEQ:       "NotEqual",
	token.EQUIV:     "Equivalent",
	token.LT:        "Less",
	token.GT:        "Greater",
	token.LE:        "LessOrEqual",
	token.GE:        "GreaterOrEqual",
	token.AND:       "And",
	token.OR:        "Or",
	token.XOR:       "Xor",
	token.IMPLIES:   "Implies",
	token.UNION:     "Union",
	token.INTERSECT: "Intersect",
	token.EXCEPT:    "Except",
	token.IN:        "In",
	token.CONTAINS:  "Contains",
	token.INCLUDES:  "Includes",
	token.DURING:    "IncludedIn",
	token.BEFORE:    "Before",
	token.AFTER:     "After",
}

// unaryOps maps prefix operator tokens to ELM node types.
var unaryOps = map[token.TokenType]string{
	token.NOT:      "Not",
	token.MINUS:    "Negate",
	token.EXISTS:   "Exists",
	token.DISTINCT: "Distinct",
	token.FLATTEN:  "Flatten",
}

// phraseBinaryOps maps phrase operator tokens to ELM node types for
// phrases that translate directly.
func phraseBinaryOps() map[token.TokenType]string {
	return map[token.TokenType]string{
		token.INCLUDED_IN:          "IncludedIn",
		token.PROPERLY_INCLUDES:    "ProperIncludes",
		token.PROPERLY_INCLUDED_IN: "ProperIncludedIn",
		token.OCCURS_BEFORE:        "Before",
		token.OCCURS_AFTER:         "After",
		token.SAME_AS:              "SameAs",
		token.SAME_OR_BEFORE:       "SameOrBefore",
		token.SAME_OR_AFTER:        "SameOrAfter",
		token.OVERLAPS:             "Overlaps",
		token.OVERLAPS_BEFORE:      "OverlapsBefore",
		token.OVERLAPS_AFTER:       "OverlapsAfter",
		token.MEETS:                "Meets",
		token.MEETS_BEFORE:         "MeetsBefore",
		token.MEETS_AFTER:          "MeetsAfter",
	}
}

// phraseUnaryOps maps phrase prefix tokens to ELM node types.
func phraseUnaryOps() map[token.TokenType]string {
	return map[token.TokenType]string{
		token.START_OF:       "Start",
		token.END_OF:         "End",
		token.SINGLETON_FROM: "SingletonFrom",
		token.PREDECESSOR_OF: "Predecessor",
		token.SUCCESSOR_OF:   "Successor",
	}
}

// Emitter converts a resolved library into the ELM JSON object model.
// Maps marshal with sorted keys, so equal inputs yield byte-equal
// output.
type Emitter struct {
	opts cql.CompilerOptions
	res  *Resolution

	phraseBinary map[token.TokenType]string
	phraseUnary  map[token.TokenType]string

	nextLocalID int
}

// NewEmitter creates an emitter for one resolved library.
func NewEmitter(opts cql.CompilerOptions, res *Resolution) *Emitter {
	return &Emitter{
		opts:         opts,
		res:          res,
		phraseBinary: phraseBinaryOps(),
		phraseUnary:  phraseUnaryOps(),
	}
}

// annotate attaches locator and localId attributes to an emitted node
// according to the options.
func (e *Emitter) annotate(m map[string]any, n cql.Node) map[string]any {
	if e.opts.DebugMode {
		e.nextLocalID++
		m["localId"] = strconv.Itoa(e.nextLocalID)
	}
	if e.opts.EmitLocators && n != nil {
		if span := cql.SpanOf(n); span.IsValid() {
			m["locator"] = span.Locator()
		}
	}
	return m
}

// section wraps defs in the {"def": [...]} shape, honoring the
// structural placeholder policy for empty sections.
func (e *Emitter) section(lib map[string]any, name string, defs []any) {
	if len(defs) == 0 {
		if e.opts.AlwaysEmitStructuralPlaceholders {
			lib[name] = map[string]any{"def": []any{}}
		}
		return
	}
	lib[name] = map[string]any{"def": defs}
}

// EmitLibrary emits the full ELM library object (the value of the
// top-level "library" key).
func (e *Emitter) EmitLibrary() map[string]any {
	lib := e.res.Library
	out := make(map[string]any)

	// identifier is always present, empty for anonymous libraries
	identifier := make(map[string]any)
	if lib.Name != "" {
		identifier["id"] = lib.Name
	}
	if lib.Version != "" {
		identifier["version"] = lib.Version
	}
	out["identifier"] = identifier

	out["schemaIdentifier"] = map[string]any{
		"id":      elmSchemaID,
		"version": elmSchemaVersion,
	}

	if e.opts.EmitAnnotations {
		// CqlToElmInfo comes first in the annotation array
		out["annotation"] = []any{map[string]any{
			"type":              "CqlToElmInfo",
			"translatorVersion": Version,
			"translatorOptions": e.opts.TranslatorOptions(),
		}}
	} else if e.opts.AlwaysEmitStructuralPlaceholders {
		out["annotation"] = []any{}
	}

	usings := []any{map[string]any{
		"localIdentifier": "System",
		"uri":             systemTypesURI,
	}}
	for _, d := range lib.Usings {
		def := map[string]any{
			"localIdentifier": d.Name,
			"uri":             modelURI(d.Name),
		}
		if d.Version != "" {
			def["version"] = d.Version
		}
		usings = append(usings, e.annotate(def, d))
	}
	e.section(out, "usings", usings)

	var includes []any
	for _, d := range lib.Includes {
		def := map[string]any{
			"localIdentifier": d.Alias,
			"path":            d.Path,
		}
		if d.Version != "" {
			def["version"] = d.Version
		}
		includes = append(includes, e.annotate(def, d))
	}
	e.section(out, "includes", includes)

	var parameters []any
	for _, d := range lib.Parameters {
		def := map[string]any{
			"name":        d.Name,
			"accessLevel": string(d.Access),
		}
		if d.Type != nil {
			def["parameterTypeSpecifier"] = e.emitTypeSpecifier(d.Type)
		}
		if d.Default != nil {
			def["default"] = e.emitExpr(d.Default)
		}
		parameters = append(parameters, e.annotate(def, d))
	}
	e.section(out, "parameters", parameters)

	var codeSystems []any
	for _, d := range lib.CodeSystems {
		def := map[string]any{
			"name":        d.Name,
			"id":          d.ID,
			"accessLevel": string(d.Access),
		}
		if d.Version != "" {
			def["version"] = d.Version
		}
		codeSystems = append(codeSystems, e.annotate(def, d))
	}
	e.section(out, "codeSystems", codeSystems)

	var valueSets []any
	for _, d := range lib.ValueSets {
		def := map[string]any{
			"name":        d.Name,
			"id":          d.ID,
			"accessLevel": string(d.Access),
		}
		if d.Version != "" {
			def["version"] = d.Version
		}
		valueSets = append(valueSets, e.annotate(def, d))
	}
	e.section(out, "valueSets", valueSets)

	var codes []any
	for _, d := range lib.Codes {
		def := map[string]any{
			"name":        d.Name,
			"id":          d.Code,
			"accessLevel": string(d.Access),
			"codeSystem":  map[string]any{"name": d.CodeSystem},
		}
		if d.Display != "" {
			def["display"] = d.Display
		}
		codes = append(codes, e.annotate(def, d))
	}
	e.section(out, "codes", codes)

	var concepts []any
	for _, d := range lib.Concepts {
		refs := make([]any, 0, len(d.Codes))
		for _, code := range d.Codes {
			refs = append(refs, map[string]any{"name": code})
		}
		def := map[string]any{
			"name":        d.Name,
			"accessLevel": string(d.Access),
			"code":        refs,
		}
		if d.Display != "" {
			def["display"] = d.Display
		}
		concepts = append(concepts, e.annotate(def, d))
	}
	e.section(out, "concepts", concepts)

	var contexts []any
	for _, name := range e.res.Contexts {
		contexts = append(contexts, map[string]any{"name": name})
	}
	e.section(out, "contexts", contexts)

	var statements []any
	for _, s := range lib.Statements {
		switch d := s.(type) {
		case *cql.ExpressionDef:
			statements = append(statements, e.emitExpressionDef(d))
		case *cql.FunctionDef:
			statements = append(statements, e.emitFunctionDef(d))
		}
	}
	e.section(out, "statements", statements)

	return out
}

func (e *Emitter) emitExpressionDef(d *cql.ExpressionDef) map[string]any {
	def := map[string]any{
		"type":        "ExpressionDef",
		"name":        d.Name,
		"context":     d.Context,
		"accessLevel": string(d.Access),
		"expression":  e.emitExpr(d.Expr),
	}
	if t, ok := e.res.Types[d.Expr]; ok {
		def["resultTypeName"] = "{" + systemTypesURI + "}" + t
	}
	return e.annotate(def, d)
}

func (e *Emitter) emitFunctionDef(d *cql.FunctionDef) map[string]any {
	operands := make([]any, 0, len(d.Operands))
	for _, op := range d.Operands {
		operands = append(operands, map[string]any{
			"name":                 op.Name,
			"operandTypeSpecifier": e.emitTypeSpecifier(op.Type),
		})
	}
	def := map[string]any{
		"type":        "FunctionDef",
		"name":        d.Name,
		"context":     d.Context,
		"accessLevel": string(d.Access),
		"operand":     operands,
	}
	if d.Fluent {
		def["fluent"] = true
	}
	if d.External {
		def["external"] = true
	} else {
		def["expression"] = e.emitExpr(d.Body)
	}
	if d.Returns != nil {
		def["resultTypeSpecifier"] = e.emitTypeSpecifier(d.Returns)
	}
	return e.annotate(def, d)
}

// ---------- Type Specifiers ----------

func (e *Emitter) emitTypeSpecifier(t cql.TypeSpecifier) map[string]any {
	switch n := t.(type) {
	case *cql.NamedType:
		return map[string]any{
			"type": "NamedTypeSpecifier",
			"name": e.qualifiedTypeName(n),
		}
	case *cql.ListType:
		return map[string]any{
			"type":        "ListTypeSpecifier",
			"elementType": e.emitTypeSpecifier(n.Element),
		}
	case *cql.IntervalType:
		return map[string]any{
			"type":      "IntervalTypeSpecifier",
			"pointType": e.emitTypeSpecifier(n.Point),
		}
	}
	return map[string]any{"type": "NamedTypeSpecifier", "name": "{" + systemTypesURI + "}Any"}
}

// qualifiedTypeName renders a type name in {uri}Name form. Unqualified
// system types resolve to the system model; other unqualified names
// resolve to the library's declared data model.
func (e *Emitter) qualifiedTypeName(n *cql.NamedType) string {
	if n.Qualifier != "" {
		return "{" + modelURI(n.Qualifier) + "}" + n.Name
	}
	if systemTypes[n.Name] {
		return "{" + systemTypesURI + "}" + n.Name
	}
	if model := e.defaultModel(); model != "" {
		return "{" + modelURI(model) + "}" + n.Name
	}
	return "{" + systemTypesURI + "}" + n.Name
}

// defaultModel returns the library's first declared data model.
func (e *Emitter) defaultModel() string {
	for _, u := range e.res.Library.Usings {
		if u.Name != "System" {
			return u.Name
		}
	}
	return ""
}

// ---------- Expressions ----------

func (e *Emitter) emitExpr(x cql.Expr) map[string]any {
	if x == nil {
		return nil
	}

	switch n := x.(type) {
	case *cql.Literal:
		return e.emitLiteral(n)

	case *cql.QuantityExpr:
		m := map[string]any{"type": "Quantity", "unit": n.Unit}
		if v, err := strconv.ParseFloat(n.Value, 64); err == nil {
			m["value"] = v
		} else {
			m["value"] = n.Value
		}
		return e.annotate(m, n)

	case *cql.IdentRef:
		return e.emitRef(n)

	case *cql.PropertyExpr:
		return e.emitProperty(n)

	case *cql.IndexExpr:
		return e.annotate(map[string]any{
			"type":    "Indexer",
			"operand": []any{e.emitExpr(n.Source), e.emitExpr(n.Index)},
		}, n)

	case *cql.FunctionCall:
		return e.emitCall(n)

	case *cql.BinaryExpr:
		return e.emitBinary(n)

	case *cql.UnaryExpr:
		return e.emitUnary(n)

	case *cql.BetweenExpr:
		// between desugars into a conjunction of bound comparisons
		low := map[string]any{
			"type":    "GreaterOrEqual",
			"operand": []any{e.emitExpr(n.Operand), e.emitExpr(n.Low)},
		}
		high := map[string]any{
			"type":    "LessOrEqual",
			"operand": []any{e.emitExpr(n.Operand), e.emitExpr(n.High)},
		}
		return e.annotate(map[string]any{
			"type":    "And",
			"operand": []any{low, high},
		}, n)

	case *cql.IsNullExpr:
		inner := map[string]any{"type": "IsNull", "operand": e.emitExpr(n.Operand)}
		if n.Not {
			return e.annotate(map[string]any{"type": "Not", "operand": inner}, n)
		}
		return e.annotate(inner, n)

	case *cql.IsBoolExpr:
		typ := "IsTrue"
		if !n.Value {
			typ = "IsFalse"
		}
		inner := map[string]any{"type": typ, "operand": e.emitExpr(n.Operand)}
		if n.Not {
			return e.annotate(map[string]any{"type": "Not", "operand": inner}, n)
		}
		return e.annotate(inner, n)

	case *cql.IsExpr:
		return e.annotate(map[string]any{
			"type":            "Is",
			"operand":         e.emitExpr(n.Operand),
			"isTypeSpecifier": e.emitTypeSpecifier(n.Type),
		}, n)

	case *cql.AsExpr:
		m := map[string]any{
			"type":            "As",
			"operand":         e.emitExpr(n.Operand),
			"asTypeSpecifier": e.emitTypeSpecifier(n.Type),
		}
		if n.Strict {
			m["strict"] = true
		}
		return e.annotate(m, n)

	case *cql.IfExpr:
		return e.annotate(map[string]any{
			"type":      "If",
			"condition": e.emitExpr(n.Condition),
			"then":      e.emitExpr(n.Then),
			"else":      e.emitExpr(n.Else),
		}, n)

	case *cql.CaseExpr:
		items := make([]any, 0, len(n.Items))
		for _, item := range n.Items {
			items = append(items, map[string]any{
				"when": e.emitExpr(item.When),
				"then": e.emitExpr(item.Then),
			})
		}
		m := map[string]any{
			"type":     "Case",
			"caseItem": items,
			"else":     e.emitExpr(n.Else),
		}
		if n.Comparand != nil {
			m["comparand"] = e.emitExpr(n.Comparand)
		}
		return e.annotate(m, n)

	case *cql.IntervalExpr:
		return e.annotate(map[string]any{
			"type":       "Interval",
			"low":        e.emitExpr(n.Low),
			"high":       e.emitExpr(n.High),
			"lowClosed":  n.LowClosed,
			"highClosed": n.HighClosed,
		}, n)

	case *cql.ListExpr:
		elements := make([]any, 0, len(n.Elements))
		for _, el := range n.Elements {
			elements = append(elements, e.emitExpr(el))
		}
		return e.annotate(map[string]any{"type": "List", "element": elements}, n)

	case *cql.TupleExpr:
		elements := make([]any, 0, len(n.Elements))
		for _, el := range n.Elements {
			elements = append(elements, map[string]any{
				"name":  el.Name,
				"value": e.emitExpr(el.Value),
			})
		}
		return e.annotate(map[string]any{"type": "Tuple", "element": elements}, n)

	case *cql.Retrieve:
		return e.emitRetrieve(n)

	case *cql.QueryExpr:
		return e.emitQuery(n)
	}

	return map[string]any{"type": "Null"}
}

func (e *Emitter) emitLiteral(n *cql.Literal) map[string]any {
	var m map[string]any
	switch n.Kind {
	case cql.LiteralNull:
		m = map[string]any{"type": "Null"}
	case cql.LiteralDate:
		m = map[string]any{"type": "Date", "value": n.Value}
	case cql.LiteralDateTime:
		m = map[string]any{"type": "DateTime", "value": n.Value}
	case cql.LiteralTime:
		m = map[string]any{"type": "Time", "value": n.Value}
	default:
		valueType := map[cql.LiteralKind]string{
			cql.LiteralInteger: "Integer",
			cql.LiteralLong:    "Long",
			cql.LiteralDecimal: "Decimal",
			cql.LiteralString:  "String",
			cql.LiteralBool:    "Boolean",
		}[n.Kind]
		m = map[string]any{
			"type":      "Literal",
			"valueType": "{" + systemTypesURI + "}" + valueType,
			"value":     n.Value,
		}
	}
	return e.annotate(m, n)
}

// emitRef renders an identifier reference as the node type its binding
// calls for. Unresolved references still emit a partial IdentifierRef
// node so downstream tooling sees the full shape.
func (e *Emitter) emitRef(n *cql.IdentRef) map[string]any {
	b, ok := e.res.Bindings[n]
	if !ok {
		b = &Binding{Kind: RefUnresolved, Name: n.Name}
	}

	var typ string
	switch b.Kind {
	case RefExpression:
		typ = "ExpressionRef"
	case RefParameter:
		typ = "ParameterRef"
	case RefValueSet:
		typ = "ValueSetRef"
	case RefCodeSystem:
		typ = "CodeSystemRef"
	case RefCode:
		typ = "CodeRef"
	case RefConcept:
		typ = "ConceptRef"
	case RefAlias:
		typ = "AliasRef"
	case RefLet:
		typ = "QueryLetRef"
	case RefOperand:
		typ = "OperandRef"
	case RefFunction:
		typ = "FunctionRef"
	default:
		typ = "IdentifierRef"
	}

	m := map[string]any{"type": typ, "name": b.Name}
	if b.Library != "" {
		m["libraryName"] = b.Library
	}
	return e.annotate(m, n)
}

func (e *Emitter) emitProperty(n *cql.PropertyExpr) map[string]any {
	// Cross-library reference bound during resolution
	if b, ok := e.res.Bindings[n]; ok && b.Library != "" {
		return e.annotate(map[string]any{
			"type":        "ExpressionRef",
			"name":        b.Name,
			"libraryName": b.Library,
		}, n)
	}

	m := map[string]any{"type": "Property", "path": n.Name}
	// A property on a query alias uses scope instead of a source node
	if src, ok := n.Source.(*cql.IdentRef); ok {
		if b, ok := e.res.Bindings[src]; ok && b.Kind == RefAlias {
			m["scope"] = b.Name
			return e.annotate(m, n)
		}
	}
	m["source"] = e.emitExpr(n.Source)
	return e.annotate(m, n)
}

func (e *Emitter) emitCall(n *cql.FunctionCall) map[string]any {
	operands := make([]any, 0, len(n.Args)+1)
	if recv, ok := e.res.Receivers[n]; ok {
		operands = append(operands, e.emitRef(recv))
	}
	for _, arg := range n.Args {
		operands = append(operands, e.emitExpr(arg))
	}

	m := map[string]any{
		"type":    "FunctionRef",
		"name":    n.Name,
		"operand": operands,
	}
	if b, ok := e.res.Bindings[n]; ok && b.Library != "" {
		m["libraryName"] = b.Library
	}
	if e.opts.AlwaysEmitStructuralPlaceholders {
		m["signature"] = []any{}
	}
	return e.annotate(m, n)
}

func (e *Emitter) emitBinary(n *cql.BinaryExpr) map[string]any {
	if typ, ok := binaryOps[n.Op]; ok {
		return e.annotate(map[string]any{
			"type":    typ,
			"operand": []any{e.emitExpr(n.Left), e.emitExpr(n.Right)},
		}, n)
	}
	if typ, ok := e.phraseBinary[n.Op]; ok {
		return e.annotate(map[string]any{
			"type":    typ,
			"operand": []any{e.emitExpr(n.Left), e.emitExpr(n.Right)},
		}, n)
	}

	// !~ has no dedicated ELM node: emit Not(Equivalent(...))
	if n.Op == token.NEQUIV {
		return e.annotate(map[string]any{
			"type": "Not",
			"operand": map[string]any{
				"type":    "Equivalent",
				"operand": []any{e.emitExpr(n.Left), e.emitExpr(n.Right)},
			},
		}, n)
	}

	// Boundary phrases compare an interval endpoint with the right
	// operand: a starts before b => Before(Start(a), b)
	boundary := func(boundaryType, cmp string) map[string]any {
		return e.annotate(map[string]any{
			"type": cmp,
			"operand": []any{
				map[string]any{"type": boundaryType, "operand": e.emitExpr(n.Left)},
				e.emitExpr(n.Right),
			},
		}, n)
	}
	switch n.Op {
	case token.STARTS_BEFORE:
		return boundary("Start", "Before")
	case token.STARTS_AFTER:
		return boundary("Start", "After")
	case token.ENDS_BEFORE:
		return boundary("End", "Before")
	case token.ENDS_AFTER:
		return boundary("End", "After")
	}

	return e.annotate(map[string]any{
		"type":    "Null",
		"operand": []any{e.emitExpr(n.Left), e.emitExpr(n.Right)},
	}, n)
}

func (e *Emitter) emitUnary(n *cql.UnaryExpr) map[string]any {
	typ, ok := unaryOps[n.Op]
	if !ok {
		typ, ok = e.phraseUnary[n.Op]
		if !ok {
			typ = "Null"
		}
	}
	return e.annotate(map[string]any{
		"type":    typ,
		"operand": e.emitExpr(n.Operand),
	}, n)
}

func (e *Emitter) emitRetrieve(n *cql.Retrieve) map[string]any {
	m := map[string]any{
		"type":     "Retrieve",
		"dataType": e.qualifiedTypeName(n.DataType),
	}
	if n.CodePath != "" {
		m["codeProperty"] = n.CodePath
	}
	if n.Terms != nil {
		m["codes"] = e.emitExpr(n.Terms)
	}
	return e.annotate(m, n)
}

func (e *Emitter) emitQuery(n *cql.QueryExpr) map[string]any {
	sources := make([]any, 0, len(n.Sources))
	for _, src := range n.Sources {
		sources = append(sources, e.annotate(map[string]any{
			"alias":      src.Alias,
			"expression": e.emitExpr(src.Source),
		}, src))
	}
	m := map[string]any{"type": "Query", "source": sources}

	if len(n.Lets) > 0 {
		lets := make([]any, 0, len(n.Lets))
		for _, let := range n.Lets {
			lets = append(lets, e.annotate(map[string]any{
				"identifier": let.Name,
				"expression": e.emitExpr(let.Expr),
			}, let))
		}
		m["let"] = lets
	}

	if len(n.Relationships) > 0 {
		rels := make([]any, 0, len(n.Relationships))
		for _, rel := range n.Relationships {
			typ := "With"
			if rel.Without {
				typ = "Without"
			}
			rels = append(rels, e.annotate(map[string]any{
				"type":       typ,
				"alias":      rel.Source.Alias,
				"expression": e.emitExpr(rel.Source.Source),
				"suchThat":   e.emitExpr(rel.SuchThat),
			}, rel))
		}
		m["relationship"] = rels
	}

	if n.Where != nil {
		m["where"] = e.emitExpr(n.Where)
	}
	if n.Return != nil {
		m["return"] = e.annotate(map[string]any{
			"distinct":   n.Return.Distinct,
			"expression": e.emitExpr(n.Return.Expr),
		}, n.Return)
	}
	if n.Aggregate != nil {
		agg := map[string]any{
			"identifier": n.Aggregate.Identifier,
			"distinct":   n.Aggregate.Distinct,
			"expression": e.emitExpr(n.Aggregate.Expr),
		}
		if n.Aggregate.Starting != nil {
			agg["starting"] = e.emitExpr(n.Aggregate.Starting)
		}
		m["aggregate"] = e.annotate(agg, n.Aggregate)
	}
	if n.Sort != nil {
		items := make([]any, 0, len(n.Sort.Items))
		for _, item := range n.Sort.Items {
			by := map[string]any{"direction": item.Direction}
			if item.Expr == nil {
				by["type"] = "ByDirection"
			} else if ref, ok := item.Expr.(*cql.IdentRef); ok {
				if b, found := e.res.Bindings[ref]; found && b.Kind == RefUnresolved {
					// A bare column name sorts by element property
					by["type"] = "ByColumn"
					by["path"] = ref.Name
				} else {
					by["type"] = "ByExpression"
					by["expression"] = e.emitExpr(item.Expr)
				}
			} else {
				by["type"] = "ByExpression"
				by["expression"] = e.emitExpr(item.Expr)
			}
			items = append(items, e.annotate(by, item))
		}
		m["sort"] = map[string]any{"by": items}
	}

	return e.annotate(m, n)
}
