package compiler

import (
	"github.com/leapstack-labs/leapcql/pkg/cql"
	"github.com/leapstack-labs/leapcql/pkg/token"
)

// systemTypes is the set of system-model type names that can appear in
// a resultTypeName.
var systemTypes = map[string]bool{
	"Any":      true,
	"Boolean":  true,
	"Integer":  true,
	"Long":     true,
	"Decimal":  true,
	"String":   true,
	"Date":     true,
	"DateTime": true,
	"Time":     true,
	"Quantity": true,
	"Ratio":    true,
	"Code":     true,
	"Concept":  true,
}

// inferDefType records the inferred result type of an expression
// definition. Inference is best effort: unknown stays absent and is
// never an error.
func (r *Resolver) inferDefType(d *cql.ExpressionDef) {
	if t := r.inferType(d.Expr); t != "" {
		r.res.Types[d.Expr] = t
	}
}

// inferType returns the system type name of an expression, or "" when
// it cannot be determined.
func (r *Resolver) inferType(e cql.Expr) string {
	switch n := e.(type) {
	case nil:
		return ""

	case *cql.Literal:
		switch n.Kind {
		case cql.LiteralInteger:
			return "Integer"
		case cql.LiteralLong:
			return "Long"
		case cql.LiteralDecimal:
			return "Decimal"
		case cql.LiteralString:
			return "String"
		case cql.LiteralBool:
			return "Boolean"
		case cql.LiteralDate:
			return "Date"
		case cql.LiteralDateTime:
			return "DateTime"
		case cql.LiteralTime:
			return "Time"
		}
		return ""

	case *cql.QuantityExpr:
		return "Quantity"

	case *cql.IdentRef:
		return r.inferRefType(n)

	case *cql.BinaryExpr:
		return r.inferBinaryType(n)

	case *cql.UnaryExpr:
		switch n.Op {
		case token.NOT, token.EXISTS:
			return "Boolean"
		case token.MINUS, token.PREDECESSOR_OF, token.SUCCESSOR_OF:
			return r.inferType(n.Operand)
		}
		return ""

	case *cql.BetweenExpr, *cql.IsNullExpr, *cql.IsBoolExpr, *cql.IsExpr:
		return "Boolean"

	case *cql.AsExpr:
		if named, ok := n.Type.(*cql.NamedType); ok && named.Qualifier == "" && systemTypes[named.Name] {
			return named.Name
		}
		return ""

	case *cql.IfExpr:
		thenType := r.inferType(n.Then)
		if thenType != "" && thenType == r.inferType(n.Else) {
			return thenType
		}
		return ""

	case *cql.CaseExpr:
		var result string
		for _, item := range n.Items {
			t := r.inferType(item.Then)
			if t == "" || (result != "" && t != result) {
				return ""
			}
			result = t
		}
		if result != "" && result == r.inferType(n.Else) {
			return result
		}
		return ""
	}

	return ""
}

// inferRefType follows a reference to its declaration. A recursion
// guard keeps mutually recursive definitions from looping.
func (r *Resolver) inferRefType(ref *cql.IdentRef) string {
	b, ok := r.res.Bindings[ref]
	if !ok {
		return ""
	}
	sym, ok := r.res.Symbols.Lookup(b.Name)
	if !ok || b.Library != "" {
		return ""
	}

	switch b.Kind {
	case RefParameter:
		if p, ok := sym.Decl.(*cql.ParameterDef); ok {
			if t := declaredSystemType(p.Type); t != "" {
				return t
			}
			return r.inferType(p.Default)
		}
	case RefExpression:
		if d, ok := sym.Decl.(*cql.ExpressionDef); ok {
			if t, ok := r.res.Types[d.Expr]; ok {
				return t
			}
			if r.inProgress[d] {
				return ""
			}
			r.inProgress[d] = true
			t := r.inferType(d.Expr)
			delete(r.inProgress, d)
			if t != "" {
				r.res.Types[d.Expr] = t
			}
			return t
		}
	}
	return ""
}

func (r *Resolver) inferBinaryType(n *cql.BinaryExpr) string {
	switch n.Op {
	case token.AND, token.OR, token.XOR, token.IMPLIES,
		token.EQ, token.NEQ, token.EQUIV, token.NEQUIV,
		token.LT, token.GT, token.LE, token.GE,
		token.IN, token.CONTAINS, token.INCLUDES, token.DURING,
		token.BEFORE, token.AFTER:
		return "Boolean"

	case token.AMP:
		return "String"

	case token.SLASH:
		return "Decimal"

	case token.DIV:
		return "Integer"

	case token.PLUS, token.MINUS, token.STAR, token.MOD, token.CARET:
		left := r.inferType(n.Left)
		right := r.inferType(n.Right)
		switch {
		case left == right:
			return left
		case left == "Decimal" && isNumeric(right), right == "Decimal" && isNumeric(left):
			return "Decimal"
		case left == "Long" && isNumeric(right), right == "Long" && isNumeric(left):
			return "Long"
		}
		return ""
	}

	// Phrase timing operators all yield Boolean
	if token.IsDynamic(n.Op) {
		return "Boolean"
	}
	return ""
}

func isNumeric(t string) bool {
	return t == "Integer" || t == "Long" || t == "Decimal"
}

// declaredSystemType extracts the system type name from an explicit
// type specifier, when it is an unqualified system type.
func declaredSystemType(t cql.TypeSpecifier) string {
	named, ok := t.(*cql.NamedType)
	if !ok {
		return ""
	}
	if named.Qualifier == "" && systemTypes[named.Name] {
		return named.Name
	}
	return ""
}
