package cql

import (
	"sort"
	"strings"
)

// CompilerOptions controls output shape and diagnostics detail.
// Options are fixed for the lifetime of a compilation; every
// combination is valid.
type CompilerOptions struct {
	// EmitAnnotations adds the CqlToElmInfo annotation and related
	// metadata to the emitted library.
	EmitAnnotations bool

	// EmitLocators adds "startLine:startCol-endLine:endCol" locator
	// strings to emitted nodes.
	EmitLocators bool

	// DebugMode assigns sequential localId attributes to emitted nodes.
	DebugMode bool

	// AlwaysEmitStructuralPlaceholders emits empty collections
	// (library sections, annotation and signature arrays) instead of
	// omitting them.
	AlwaysEmitStructuralPlaceholders bool

	// DisableListTraversal disables implicit traversal of list-typed
	// properties during path navigation.
	DisableListTraversal bool
}

// DefaultOptions returns the option set used when the caller does not
// specify one: annotations and locators on, everything else off.
func DefaultOptions() CompilerOptions {
	return CompilerOptions{
		EmitAnnotations: true,
		EmitLocators:    true,
	}
}

// TranslatorOptions renders the enabled options as the comma-joined,
// sorted list carried in the CqlToElmInfo annotation. Names follow the
// reference translator vocabulary so downstream tooling can compare
// outputs across implementations.
func (o CompilerOptions) TranslatorOptions() string {
	var names []string
	if o.EmitAnnotations {
		names = append(names, "EnableAnnotations")
	}
	if o.EmitLocators {
		names = append(names, "EnableLocators")
	}
	if o.DisableListTraversal {
		names = append(names, "DisableListTraversal")
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}
