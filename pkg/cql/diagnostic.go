package cql

import (
	"fmt"

	"github.com/leapstack-labs/leapcql/pkg/token"
)

// Severity classifies a diagnostic.
type Severity string

// Diagnostic severities.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Stage identifies the pipeline stage that produced a diagnostic.
type Stage string

// Pipeline stages.
const (
	StageLexical  Stage = "lexical"
	StageSyntax   Stage = "syntax"
	StageSemantic Stage = "semantic"
)

// Diagnostic is one problem found during compilation. Diagnostics are
// accumulated in source order and returned alongside best-effort
// output; they never abort the pipeline.
type Diagnostic struct {
	Severity Severity
	Stage    Stage
	Span     token.Span
	Message  string
}

func (d Diagnostic) String() string {
	if d.Span.IsValid() {
		return fmt.Sprintf("%s [%s] %s: %s", d.Severity, d.Stage, d.Span.Locator(), d.Message)
	}
	return fmt.Sprintf("%s [%s]: %s", d.Severity, d.Stage, d.Message)
}

// HasErrors reports whether any diagnostic has error severity.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
