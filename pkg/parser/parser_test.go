package parser_test

import (
	"testing"

	"github.com/leapstack-labs/leapcql/pkg/cql"
	"github.com/leapstack-labs/leapcql/pkg/parser"
	"github.com/leapstack-labs/leapcql/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseLib parses the input and fails the test on any diagnostic.
func parseLib(t *testing.T, src string) *cql.Library {
	t.Helper()
	lib, diags := parser.Parse(src)
	require.Empty(t, diags, "unexpected diagnostics: %v", diags)
	require.NotNil(t, lib)
	return lib
}

// parseExprDef parses a single define and returns its expression.
func parseExprDef(t *testing.T, expr string) cql.Expr {
	t.Helper()
	lib := parseLib(t, `define "X": `+expr)
	require.Len(t, lib.Statements, 1)
	def, ok := lib.Statements[0].(*cql.ExpressionDef)
	require.True(t, ok, "expected expression definition, got %T", lib.Statements[0])
	return def.Expr
}

// ---------- Header and Declaration Tests ----------

func TestParseLibraryHeader(t *testing.T) {
	lib := parseLib(t, `library CMS146 version '2.0.0'`)
	assert.Equal(t, "CMS146", lib.Name)
	assert.Equal(t, "2.0.0", lib.Version)
	assert.Equal(t, "CMS146@2.0.0", lib.Identifier())
}

func TestParseAnonymousLibrary(t *testing.T) {
	lib := parseLib(t, `define "One": 1`)
	assert.Empty(t, lib.Name)
	assert.Len(t, lib.Statements, 1)
}

func TestParseUsingAndInclude(t *testing.T) {
	lib := parseLib(t, `
library Deps version '1.0'
using FHIR version '4.0.1'
include Common version '2.1' called C
include Helpers
`)
	require.Len(t, lib.Usings, 1)
	assert.Equal(t, "FHIR", lib.Usings[0].Name)
	assert.Equal(t, "4.0.1", lib.Usings[0].Version)

	require.Len(t, lib.Includes, 2)
	assert.Equal(t, "Common", lib.Includes[0].Path)
	assert.Equal(t, "2.1", lib.Includes[0].Version)
	assert.Equal(t, "C", lib.Includes[0].Alias)

	// Alias defaults to the library name
	assert.Equal(t, "Helpers", lib.Includes[1].Path)
	assert.Equal(t, "Helpers", lib.Includes[1].Alias)
}

func TestParseTerminology(t *testing.T) {
	lib := parseLib(t, `
codesystem "LOINC": 'http://loinc.org' version '2.74'
valueset "Diabetes": 'urn:oid:2.16.840.1.113883.3.464.1003.103.12.1001'
code "Blood pressure": '85354-9' from "LOINC" display 'BP panel'
concept "BP": { "Blood pressure" } display 'Blood pressure'
`)
	require.Len(t, lib.CodeSystems, 1)
	assert.Equal(t, "LOINC", lib.CodeSystems[0].Name)
	assert.Equal(t, "http://loinc.org", lib.CodeSystems[0].ID)
	assert.Equal(t, "2.74", lib.CodeSystems[0].Version)

	require.Len(t, lib.ValueSets, 1)
	assert.Equal(t, "Diabetes", lib.ValueSets[0].Name)

	require.Len(t, lib.Codes, 1)
	assert.Equal(t, "85354-9", lib.Codes[0].Code)
	assert.Equal(t, "LOINC", lib.Codes[0].CodeSystem)
	assert.Equal(t, "BP panel", lib.Codes[0].Display)

	require.Len(t, lib.Concepts, 1)
	assert.Equal(t, []string{"Blood pressure"}, lib.Concepts[0].Codes)
}

func TestParseAccessModifiers(t *testing.T) {
	lib := parseLib(t, `
private valueset "Internal": 'urn:x'
valueset "Default": 'urn:y'
define private "Hidden": 1
define public "Shown": 2
`)
	require.Len(t, lib.ValueSets, 2)
	assert.Equal(t, cql.AccessPrivate, lib.ValueSets[0].Access)
	assert.Equal(t, cql.AccessPublic, lib.ValueSets[1].Access)

	require.Len(t, lib.Statements, 2)
	assert.Equal(t, cql.AccessPrivate, lib.Statements[0].(*cql.ExpressionDef).Access)
	assert.Equal(t, cql.AccessPublic, lib.Statements[1].(*cql.ExpressionDef).Access)
}

func TestParseParameter(t *testing.T) {
	lib := parseLib(t, `
parameter MeasurementPeriod Interval<DateTime>
parameter Threshold default 5
`)
	require.Len(t, lib.Parameters, 2)

	it, ok := lib.Parameters[0].Type.(*cql.IntervalType)
	require.True(t, ok)
	assert.Equal(t, "DateTime", it.Point.(*cql.NamedType).Name)
	assert.Nil(t, lib.Parameters[0].Default)

	assert.Nil(t, lib.Parameters[1].Type)
	require.NotNil(t, lib.Parameters[1].Default)
}

func TestParseParameterRequiresTypeOrDefault(t *testing.T) {
	_, diags := parser.Parse(`parameter Bare`)
	require.NotEmpty(t, diags)
	assert.Contains(t, diags[0].Message, "type or a default")
}

func TestParseContext(t *testing.T) {
	lib := parseLib(t, `
context Patient
define "A": 1
`)
	require.Len(t, lib.Statements, 2)
	ctx, ok := lib.Statements[0].(*cql.ContextDef)
	require.True(t, ok)
	assert.Equal(t, "Patient", ctx.Name)
}

// ---------- Function Definition Tests ----------

func TestParseFunctionDef(t *testing.T) {
	lib := parseLib(t, `define function "CumulativeDuration"(Intervals List<Interval<DateTime>>) returns Integer: 1`)
	require.Len(t, lib.Statements, 1)

	fn, ok := lib.Statements[0].(*cql.FunctionDef)
	require.True(t, ok)
	assert.Equal(t, "CumulativeDuration", fn.Name)
	assert.False(t, fn.Fluent)
	assert.False(t, fn.External)
	require.Len(t, fn.Operands, 1)
	assert.Equal(t, "Intervals", fn.Operands[0].Name)

	lt, ok := fn.Operands[0].Type.(*cql.ListType)
	require.True(t, ok)
	_, ok = lt.Element.(*cql.IntervalType)
	require.True(t, ok)

	assert.Equal(t, "Integer", fn.Returns.(*cql.NamedType).Name)
	require.NotNil(t, fn.Body)
}

func TestParseFluentAndExternalFunctions(t *testing.T) {
	lib := parseLib(t, `
define fluent function "toDays"(value Quantity) returns Integer: 1
define function "Native"(x Integer): external
`)
	require.Len(t, lib.Statements, 2)

	fluent := lib.Statements[0].(*cql.FunctionDef)
	assert.True(t, fluent.Fluent)
	assert.False(t, fluent.External)

	ext := lib.Statements[1].(*cql.FunctionDef)
	assert.True(t, ext.External)
	assert.Nil(t, ext.Body)
}

// ---------- Expression Tests ----------

func TestParseLiterals(t *testing.T) {
	tests := []struct {
		name  string
		expr  string
		kind  cql.LiteralKind
		value string
	}{
		{name: "integer", expr: "42", kind: cql.LiteralInteger, value: "42"},
		{name: "long", expr: "42L", kind: cql.LiteralLong, value: "42"},
		{name: "decimal", expr: "3.14", kind: cql.LiteralDecimal, value: "3.14"},
		{name: "string", expr: "'text'", kind: cql.LiteralString, value: "text"},
		{name: "bool", expr: "true", kind: cql.LiteralBool, value: "true"},
		{name: "null", expr: "null", kind: cql.LiteralNull, value: "null"},
		{name: "date", expr: "@2024-01-15", kind: cql.LiteralDate, value: "2024-01-15"},
		{name: "datetime", expr: "@2024-01-15T10:30:00", kind: cql.LiteralDateTime, value: "2024-01-15T10:30:00"},
		{name: "time", expr: "@T14:30:00", kind: cql.LiteralTime, value: "14:30:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lit, ok := parseExprDef(t, tt.expr).(*cql.Literal)
			require.True(t, ok)
			assert.Equal(t, tt.kind, lit.Kind)
			assert.Equal(t, tt.value, lit.Value)
		})
	}
}

func TestParseQuantity(t *testing.T) {
	q, ok := parseExprDef(t, "5 'mg'").(*cql.QuantityExpr)
	require.True(t, ok)
	assert.Equal(t, "5", q.Value)
	assert.Equal(t, "mg", q.Unit)
}

func TestParsePrecedence(t *testing.T) {
	// 1 + 2 * 3 parses as 1 + (2 * 3)
	add, ok := parseExprDef(t, "1 + 2 * 3").(*cql.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.PLUS, add.Op)

	mul, ok := add.Right.(*cql.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.STAR, mul.Op)
}

func TestParseBooleanPrecedence(t *testing.T) {
	// a or b and c parses as a or (b and c)
	or, ok := parseExprDef(t, "a or b and c").(*cql.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.OR, or.Op)

	and, ok := or.Right.(*cql.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.AND, and.Op)
}

func TestParsePowerIsRightAssociative(t *testing.T) {
	// 2 ^ 3 ^ 2 parses as 2 ^ (3 ^ 2)
	outer, ok := parseExprDef(t, "2 ^ 3 ^ 2").(*cql.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.CARET, outer.Op)

	inner, ok := outer.Right.(*cql.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.CARET, inner.Op)
}

func TestParseComparisonBindsTighterThanAnd(t *testing.T) {
	and, ok := parseExprDef(t, "1 < 2 and 3 >= 2").(*cql.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.AND, and.Op)
	assert.Equal(t, token.LT, and.Left.(*cql.BinaryExpr).Op)
	assert.Equal(t, token.GE, and.Right.(*cql.BinaryExpr).Op)
}

func TestParseNotBindsOverComparison(t *testing.T) {
	// not x = y parses as not (x = y)
	not, ok := parseExprDef(t, "not x = y").(*cql.UnaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.NOT, not.Op)
	assert.Equal(t, token.EQ, not.Operand.(*cql.BinaryExpr).Op)
}

func TestParsePhraseOperators(t *testing.T) {
	tests := []struct {
		name string
		expr string
		op   token.TokenType
	}{
		{name: "starts before", expr: "a starts before b", op: token.STARTS_BEFORE},
		{name: "same or after", expr: "a same or after b", op: token.SAME_OR_AFTER},
		{name: "included in", expr: "a included in b", op: token.INCLUDED_IN},
		{name: "overlaps", expr: "a overlaps b", op: token.OVERLAPS},
		{name: "during", expr: "a during b", op: token.DURING},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bin, ok := parseExprDef(t, tt.expr).(*cql.BinaryExpr)
			require.True(t, ok)
			assert.Equal(t, tt.op, bin.Op)
		})
	}
}

func TestParsePrefixPhraseOperators(t *testing.T) {
	// start of binds to the term, so the comparison survives
	bin, ok := parseExprDef(t, "start of a before end of b").(*cql.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.BEFORE, bin.Op)
	assert.Equal(t, token.START_OF, bin.Left.(*cql.UnaryExpr).Op)
	assert.Equal(t, token.END_OF, bin.Right.(*cql.UnaryExpr).Op)
}

func TestParseBetween(t *testing.T) {
	b, ok := parseExprDef(t, "x between 2 and 6").(*cql.BetweenExpr)
	require.True(t, ok)
	assert.IsType(t, &cql.IdentRef{}, b.Operand)
	assert.IsType(t, &cql.Literal{}, b.Low)
	assert.IsType(t, &cql.Literal{}, b.High)
}

func TestParseIsTests(t *testing.T) {
	isNull, ok := parseExprDef(t, "x is not null").(*cql.IsNullExpr)
	require.True(t, ok)
	assert.True(t, isNull.Not)

	isTrue, ok := parseExprDef(t, "x is true").(*cql.IsBoolExpr)
	require.True(t, ok)
	assert.True(t, isTrue.Value)
	assert.False(t, isTrue.Not)

	isType, ok := parseExprDef(t, "x is Integer").(*cql.IsExpr)
	require.True(t, ok)
	assert.Equal(t, "Integer", isType.Type.(*cql.NamedType).Name)
}

func TestParseCasts(t *testing.T) {
	soft, ok := parseExprDef(t, "x as Quantity").(*cql.AsExpr)
	require.True(t, ok)
	assert.False(t, soft.Strict)

	strict, ok := parseExprDef(t, "cast x as Quantity").(*cql.AsExpr)
	require.True(t, ok)
	assert.True(t, strict.Strict)
}

func TestParseIntervalConstructor(t *testing.T) {
	iv, ok := parseExprDef(t, "Interval[1, 10)").(*cql.IntervalExpr)
	require.True(t, ok)
	assert.True(t, iv.LowClosed)
	assert.False(t, iv.HighClosed)

	iv2, ok := parseExprDef(t, "Interval(@2024-01-01, @2024-12-31]").(*cql.IntervalExpr)
	require.True(t, ok)
	assert.False(t, iv2.LowClosed)
	assert.True(t, iv2.HighClosed)
}

func TestParseListAndTuple(t *testing.T) {
	list, ok := parseExprDef(t, "{ 1, 2, 3 }").(*cql.ListExpr)
	require.True(t, ok)
	assert.Len(t, list.Elements, 3)

	tup, ok := parseExprDef(t, "Tuple { low: 1, high: 2 }").(*cql.TupleExpr)
	require.True(t, ok)
	require.Len(t, tup.Elements, 2)
	assert.Equal(t, "low", tup.Elements[0].Name)
	assert.Equal(t, "high", tup.Elements[1].Name)
}

func TestParseIfAndCase(t *testing.T) {
	ifExpr, ok := parseExprDef(t, "if x > 1 then 'a' else 'b'").(*cql.IfExpr)
	require.True(t, ok)
	require.NotNil(t, ifExpr.Condition)
	require.NotNil(t, ifExpr.Then)
	require.NotNil(t, ifExpr.Else)

	caseExpr, ok := parseExprDef(t, "case x when 1 then 'a' when 2 then 'b' else 'c' end").(*cql.CaseExpr)
	require.True(t, ok)
	require.NotNil(t, caseExpr.Comparand)
	assert.Len(t, caseExpr.Items, 2)

	bare, ok := parseExprDef(t, "case when x > 1 then 'a' else 'b' end").(*cql.CaseExpr)
	require.True(t, ok)
	assert.Nil(t, bare.Comparand)
	assert.Len(t, bare.Items, 1)
}

func TestParseCalls(t *testing.T) {
	local, ok := parseExprDef(t, "AgeInYearsAt(@2024-01-01)").(*cql.FunctionCall)
	require.True(t, ok)
	assert.Empty(t, local.Library)
	assert.Equal(t, "AgeInYearsAt", local.Name)
	assert.Len(t, local.Args, 1)

	qualified, ok := parseExprDef(t, "Common.ToInterval(x)").(*cql.FunctionCall)
	require.True(t, ok)
	assert.Equal(t, "Common", qualified.Library)
	assert.Equal(t, "ToInterval", qualified.Name)
	assert.Len(t, qualified.Args, 1)
}

func TestParseFluentInvocation(t *testing.T) {
	// The receiver expression becomes the first argument
	call, ok := parseExprDef(t, "(x + 1).toDays()").(*cql.FunctionCall)
	require.True(t, ok)
	assert.Empty(t, call.Library)
	assert.Equal(t, "toDays", call.Name)
	require.Len(t, call.Args, 1)
	assert.IsType(t, &cql.BinaryExpr{}, call.Args[0])
}

func TestParsePropertyWithKeywordName(t *testing.T) {
	prop, ok := parseExprDef(t, "e.code").(*cql.PropertyExpr)
	require.True(t, ok)
	assert.Equal(t, "code", prop.Name)
}

// ---------- Retrieve and Query Tests ----------

func TestParseRetrieve(t *testing.T) {
	bare, ok := parseExprDef(t, "[Encounter]").(*cql.Retrieve)
	require.True(t, ok)
	assert.Equal(t, "Encounter", bare.DataType.Name)
	assert.Nil(t, bare.Terms)

	filtered, ok := parseExprDef(t, `[Condition: "Diabetes"]`).(*cql.Retrieve)
	require.True(t, ok)
	assert.Empty(t, filtered.CodePath)
	require.NotNil(t, filtered.Terms)

	qualified, ok := parseExprDef(t, `[FHIR.Condition: "Diabetes"]`).(*cql.Retrieve)
	require.True(t, ok)
	assert.Equal(t, "FHIR", qualified.DataType.Qualifier)
	assert.Equal(t, "Condition", qualified.DataType.Name)

	withPath, ok := parseExprDef(t, `[MedicationRequest: status in "Active Statuses"]`).(*cql.Retrieve)
	require.True(t, ok)
	assert.Equal(t, "status", withPath.CodePath)
	require.NotNil(t, withPath.Terms)
}

func TestParseSingleSourceQuery(t *testing.T) {
	q, ok := parseExprDef(t, `[Encounter: "Inpatient"] E where E.status = 'finished' return E`).(*cql.QueryExpr)
	require.True(t, ok)

	require.Len(t, q.Sources, 1)
	assert.Equal(t, "E", q.Sources[0].Alias)
	assert.IsType(t, &cql.Retrieve{}, q.Sources[0].Source)
	require.NotNil(t, q.Where)
	require.NotNil(t, q.Return)
	assert.True(t, q.Return.Distinct)
}

func TestParseMultiSourceQuery(t *testing.T) {
	q, ok := parseExprDef(t, `from [Encounter] E, [Condition] C where C.id = E.id return all C`).(*cql.QueryExpr)
	require.True(t, ok)
	require.Len(t, q.Sources, 2)
	assert.Equal(t, "E", q.Sources[0].Alias)
	assert.Equal(t, "C", q.Sources[1].Alias)
	require.NotNil(t, q.Return)
	assert.True(t, q.Return.All)
	assert.False(t, q.Return.Distinct)
}

func TestParseQueryRelationships(t *testing.T) {
	q, ok := parseExprDef(t, `[Encounter] E
with [Condition] C such that C.id = E.id
without [Procedure] P such that P.id = E.id`).(*cql.QueryExpr)
	require.True(t, ok)

	require.Len(t, q.Relationships, 2)
	assert.False(t, q.Relationships[0].Without)
	assert.Equal(t, "C", q.Relationships[0].Source.Alias)
	require.NotNil(t, q.Relationships[0].SuchThat)
	assert.True(t, q.Relationships[1].Without)
}

func TestParseQueryLet(t *testing.T) {
	q, ok := parseExprDef(t, `[Encounter] E let d: E.period, s: E.status where s = 'finished'`).(*cql.QueryExpr)
	require.True(t, ok)
	require.Len(t, q.Lets, 2)
	assert.Equal(t, "d", q.Lets[0].Name)
	assert.Equal(t, "s", q.Lets[1].Name)
}

func TestParseQuerySort(t *testing.T) {
	byItems, ok := parseExprDef(t, `[Encounter] E sort by start desc, id`).(*cql.QueryExpr)
	require.True(t, ok)
	require.NotNil(t, byItems.Sort)
	require.Len(t, byItems.Sort.Items, 2)
	assert.Equal(t, "desc", byItems.Sort.Items[0].Direction)
	assert.Equal(t, "asc", byItems.Sort.Items[1].Direction)
	require.NotNil(t, byItems.Sort.Items[0].Expr)

	bare, ok := parseExprDef(t, `("a" union "b") X sort desc`).(*cql.QueryExpr)
	require.True(t, ok)
	require.NotNil(t, bare.Sort)
	require.Len(t, bare.Sort.Items, 1)
	assert.Nil(t, bare.Sort.Items[0].Expr)
	assert.Equal(t, "desc", bare.Sort.Items[0].Direction)
}

func TestParseQueryAggregate(t *testing.T) {
	q, ok := parseExprDef(t, `({ 1, 2, 3 }) N aggregate R starting 0: R + N`).(*cql.QueryExpr)
	require.True(t, ok)
	require.NotNil(t, q.Aggregate)
	assert.Equal(t, "R", q.Aggregate.Identifier)
	require.NotNil(t, q.Aggregate.Starting)
	require.NotNil(t, q.Aggregate.Expr)
}

func TestParseExistsQuery(t *testing.T) {
	ex, ok := parseExprDef(t, `exists ([Encounter] E where E.status = 'finished')`).(*cql.UnaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.EXISTS, ex.Op)
	assert.IsType(t, &cql.QueryExpr{}, ex.Operand)
}

// ---------- Error Recovery Tests ----------

func TestRecoveryKeepsLaterStatements(t *testing.T) {
	lib, diags := parser.Parse(`
library Recovery version '1.0'
define "A": 1
define "B": 2 +
define "C": 3
define "D": 4
define "E": 5
`)
	require.NotEmpty(t, diags)
	assert.Len(t, lib.Statements, 4, "the four valid definitions survive")

	names := make([]string, 0, len(lib.Statements))
	for _, s := range lib.Statements {
		names = append(names, s.(*cql.ExpressionDef).Name)
	}
	assert.Equal(t, []string{"A", "C", "D", "E"}, names)
}

func TestRecoverySkipsGarbageBetweenStatements(t *testing.T) {
	lib, diags := parser.Parse(`
define "A": 1
) ) )
define "B": 2
`)
	require.NotEmpty(t, diags)
	assert.Len(t, lib.Statements, 2)
}

func TestDiagnosticsAreOrderedBySourcePosition(t *testing.T) {
	_, diags := parser.Parse(`
define "A": ]
define "B": +
`)
	require.GreaterOrEqual(t, len(diags), 2)
	for i := 1; i < len(diags); i++ {
		assert.LessOrEqual(t, diags[i-1].Span.Start.Offset, diags[i].Span.Start.Offset)
	}
}

func TestDiagnosticStages(t *testing.T) {
	_, diags := parser.Parse(`define "A": 'unterminated`)
	require.NotEmpty(t, diags)
	assert.Equal(t, cql.StageLexical, diags[0].Stage)
	assert.Equal(t, cql.SeverityError, diags[0].Severity)
}
