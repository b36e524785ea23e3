package compiler

import (
	"github.com/leapstack-labs/leapcql/pkg/cql"
)

// SymbolKind classifies a top-level library definition.
type SymbolKind int

// Symbol kinds.
const (
	SymbolExpression SymbolKind = iota
	SymbolFunction
	SymbolParameter
	SymbolValueSet
	SymbolCodeSystem
	SymbolCode
	SymbolConcept
	SymbolInclude
)

var symbolKindNames = map[SymbolKind]string{
	SymbolExpression: "expression",
	SymbolFunction:   "function",
	SymbolParameter:  "parameter",
	SymbolValueSet:   "valueset",
	SymbolCodeSystem: "codesystem",
	SymbolCode:       "code",
	SymbolConcept:    "concept",
	SymbolInclude:    "include",
}

func (k SymbolKind) String() string {
	if name, ok := symbolKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Symbol is one named top-level definition.
type Symbol struct {
	Name   string
	Kind   SymbolKind
	Access cql.AccessLevel
	Decl   cql.Node
}

// SymbolTable holds the top-level names of one library.
type SymbolTable struct {
	symbols map[string]*Symbol
	names   []string // insertion order
}

// NewSymbolTable creates an empty symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{symbols: make(map[string]*Symbol)}
}

// Define registers a symbol. On a duplicate name the existing symbol is
// returned and kept; the caller decides whether that is an error.
// Functions may share a name with other functions (overloads).
func (t *SymbolTable) Define(sym *Symbol) (*Symbol, bool) {
	if existing, ok := t.symbols[sym.Name]; ok {
		return existing, false
	}
	t.symbols[sym.Name] = sym
	t.names = append(t.names, sym.Name)
	return sym, true
}

// Lookup returns the symbol for a name.
func (t *SymbolTable) Lookup(name string) (*Symbol, bool) {
	sym, ok := t.symbols[name]
	return sym, ok
}

// Names returns all defined names in declaration order.
func (t *SymbolTable) Names() []string {
	return t.names
}
