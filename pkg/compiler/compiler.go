// Package compiler turns parsed CQL libraries into ELM JSON: a
// two-pass resolver binds references and assigns contexts, and a
// deterministic emitter produces the ELM object model.
package compiler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapcql/pkg/cql"
	"github.com/leapstack-labs/leapcql/pkg/parser"
)

// Version is the translator version reported in the CqlToElmInfo
// annotation.
const Version = "0.1.0"

// Result is the outcome of compiling one library: the parsed AST, the
// ELM object model (nil only on a fatal pipeline error), and every
// diagnostic in source order.
type Result struct {
	Library     *cql.Library
	ELM         map[string]any
	Diagnostics []cql.Diagnostic
}

// HasErrors reports whether any diagnostic is an error.
func (r *Result) HasErrors() bool {
	return cql.HasErrors(r.Diagnostics)
}

// JSON renders the ELM output. Maps marshal with sorted keys, so the
// same input and options always produce byte-equal output.
func (r *Result) JSON(indent bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(r.ELM); err != nil {
		return nil, fmt.Errorf("encoding ELM: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DependencyProvider resolves an included library to its compiled
// result. Implementations must be safe for concurrent use.
type DependencyProvider interface {
	Resolve(ctx context.Context, name, version string) (*Result, error)
}

// Compiler runs the full pipeline for one options set. It is safe for
// concurrent use.
type Compiler struct {
	opts     cql.CompilerOptions
	provider DependencyProvider
	logger   *slog.Logger
}

// New creates a compiler with the given options.
func New(opts cql.CompilerOptions) *Compiler {
	return &Compiler{
		opts:   opts,
		logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)})),
	}
}

// WithProvider sets the dependency provider used to compile includes.
func (c *Compiler) WithProvider(p DependencyProvider) *Compiler {
	c.provider = p
	return c
}

// WithLogger sets the logger.
func (c *Compiler) WithLogger(l *slog.Logger) *Compiler {
	if l != nil {
		c.logger = l
	}
	return c
}

// Options returns the compiler's option set.
func (c *Compiler) Options() cql.CompilerOptions {
	return c.opts
}

// Compile parses, resolves, and emits one library. Diagnostics are
// returned in the Result, not as the error; the error is reserved for
// pipeline failures such as context cancellation.
func (c *Compiler) Compile(ctx context.Context, source string) (*Result, error) {
	lib, diags := parser.Parse(source)

	if depDiag := c.fetchDependencies(ctx, lib); depDiag != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		diags = append(diags, *depDiag)
	}

	res := Resolve(lib)
	diags = append(diags, res.Diagnostics...)
	sort.SliceStable(diags, func(i, j int) bool {
		return diags[i].Span.Start.Offset < diags[j].Span.Start.Offset
	})

	elm := map[string]any{"library": NewEmitter(c.opts, res).EmitLibrary()}

	c.logger.Debug("compiled library",
		"library", lib.Identifier(),
		"statements", len(lib.Statements),
		"diagnostics", len(diags))

	return &Result{Library: lib, ELM: elm, Diagnostics: diags}, nil
}

// fetchDependencies compiles every include through the provider.
// Failures are aggregated into one semantic diagnostic so a broken
// dependency surfaces exactly once per requesting library.
func (c *Compiler) fetchDependencies(ctx context.Context, lib *cql.Library) *cql.Diagnostic {
	if len(lib.Includes) == 0 {
		return nil
	}

	var (
		failures []string
		firstBad *cql.IncludeDef
	)
	record := func(inc *cql.IncludeDef, msg string) {
		failures = append(failures, msg)
		if firstBad == nil {
			firstBad = inc
		}
	}

	for _, inc := range lib.Includes {
		if err := ctx.Err(); err != nil {
			record(inc, fmt.Sprintf("%s: %v", inc.Path, err))
			break
		}
		if c.provider == nil {
			record(inc, fmt.Sprintf("%s: no dependency provider configured", inc.Path))
			continue
		}
		dep, err := c.provider.Resolve(ctx, inc.Path, inc.Version)
		if err != nil {
			record(inc, fmt.Sprintf("%s: %v", inc.Path, err))
			continue
		}
		if dep.HasErrors() {
			record(inc, fmt.Sprintf("%s: compiled with errors", inc.Path))
		}
	}

	if len(failures) == 0 {
		return nil
	}
	return &cql.Diagnostic{
		Severity: cql.SeverityError,
		Stage:    cql.StageSemantic,
		Span:     cql.SpanOf(firstBad),
		Message:  "dependency unavailable: " + strings.Join(failures, "; "),
	}
}

// CompileString is a convenience wrapper using default options and no
// dependency provider.
func CompileString(ctx context.Context, source string) (*Result, error) {
	return New(cql.DefaultOptions()).Compile(ctx, source)
}
