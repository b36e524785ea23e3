// Package commands implements the leapcql subcommands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapcql/internal/cli/config"
	"github.com/leapstack-labs/leapcql/internal/loader"
	"github.com/leapstack-labs/leapcql/internal/registry"
	"github.com/leapstack-labs/leapcql/internal/state"
	"github.com/leapstack-labs/leapcql/pkg/compiler"
	"github.com/leapstack-labs/leapcql/pkg/cql"
)

// NewCompileCommand creates the compile command.
func NewCompileCommand() *cobra.Command {
	var (
		outPath string
		watch   bool
		compact bool
	)

	cmd := &cobra.Command{
		Use:   "compile <file.cql...|->",
		Short: "Compile CQL libraries to ELM JSON",
		Long: `Compile one or more CQL libraries to ELM JSON.

Each input file produces a .json file next to it, or at the path given
with -o. Pass "-" to read a single library from stdin and write ELM to
stdout. Includes are resolved against the library directory.`,
		Example: `  leapcql compile measures/DiabetesControl.cql
  leapcql compile --lib-dir shared -o out/measure.json measure.cql
  cat measure.cql | leapcql compile -
  leapcql compile --watch measures/*.cql`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.GetCurrentConfig()
			logger := config.GetLogger(cmd.Context())
			opts := emissionOptions(cmd, cfg)

			if args[0] == "-" {
				if len(args) != 1 {
					return errors.New(`"-" cannot be combined with file arguments`)
				}
				return compileStdin(cmd, cfg, logger, opts, outPath)
			}

			if watch {
				return watchAndCompile(cmd, cfg, logger, opts, args, outPath, !compact)
			}

			_, err := compileFiles(cmd.Context(), cmd.ErrOrStderr(), cfg, logger, opts, args, outPath, !compact)
			return err
		},
	}

	addEmissionFlags(cmd)
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (single input) or directory (multiple inputs)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Recompile when library sources change")
	cmd.Flags().BoolVar(&compact, "compact", false, "Emit ELM without indentation")

	return cmd
}

// addEmissionFlags registers the shared emission option flags.
func addEmissionFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("annotations", true, "Emit the CqlToElmInfo annotation")
	cmd.Flags().Bool("locators", true, "Emit source locators")
	cmd.Flags().Bool("debug", false, "Assign sequential localId attributes")
	cmd.Flags().Bool("placeholders", false, "Always emit empty structural collections")
	cmd.Flags().Bool("no-list-traversal", false, "Disable implicit list traversal in path navigation")
}

// emissionOptions merges configured defaults with explicitly set
// command flags.
func emissionOptions(cmd *cobra.Command, cfg *config.Config) cql.CompilerOptions {
	opts := cfg.CompilerOptions()
	flags := cmd.Flags()
	if flags.Changed("annotations") {
		opts.EmitAnnotations, _ = flags.GetBool("annotations")
	}
	if flags.Changed("locators") {
		opts.EmitLocators, _ = flags.GetBool("locators")
	}
	if flags.Changed("debug") {
		opts.DebugMode, _ = flags.GetBool("debug")
	}
	if flags.Changed("placeholders") {
		opts.AlwaysEmitStructuralPlaceholders, _ = flags.GetBool("placeholders")
	}
	if flags.Changed("no-list-traversal") {
		opts.DisableListTraversal, _ = flags.GetBool("no-list-traversal")
	}
	return opts
}

// toolchain bundles the wired pipeline for one command invocation.
type toolchain struct {
	compiler *compiler.Compiler
	loader   *loader.DirLoader
	registry *registry.Registry
	store    *state.Store
}

func (tc *toolchain) Close() {
	if tc.store != nil {
		tc.store.Close()
	}
}

// newToolchain wires loader, registry, cache, and compiler for the
// given library directories and loads the index. Libraries on an
// include cycle compile to a fatal diagnostic naming the cycle; the
// rest of the batch is unaffected.
func newToolchain(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts cql.CompilerOptions, extraDirs []string) (*toolchain, error) {
	dirs := []string{}
	seen := map[string]bool{}
	for _, dir := range append([]string{cfg.LibDir}, extraDirs...) {
		if dir == "" || seen[dir] {
			continue
		}
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}

	ld := loader.New(dirs...)
	comp := compiler.New(opts).WithLogger(logger)
	reg := registry.New(ld, comp).WithLogger(logger)
	comp.WithProvider(reg)

	tc := &toolchain{compiler: comp, loader: ld, registry: reg}

	if !cfg.NoCache && cfg.StatePath != "" {
		if dir := filepath.Dir(cfg.StatePath); dir != "." && dir != "" && cfg.StatePath != ":memory:" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
		store, err := state.Open(cfg.StatePath)
		if err != nil {
			return nil, err
		}
		tc.store = store
		reg.WithCache(store)
	}

	if err := tc.registry.Load(ctx); err != nil {
		tc.Close()
		return nil, err
	}
	return tc, nil
}

// fileResult is the outcome of compiling one input file.
type fileResult struct {
	path   string
	result *compiler.Result
	err    error
}

// compileFiles compiles the inputs concurrently and writes their ELM.
// It returns the per-file results (input order) and an error when any
// library produced error diagnostics.
func compileFiles(ctx context.Context, errOut io.Writer, cfg *config.Config, logger *slog.Logger, opts cql.CompilerOptions, files []string, outPath string, indent bool) ([]fileResult, error) {
	tc, err := newToolchain(ctx, cfg, logger, opts, inputDirs(files))
	if err != nil {
		return nil, err
	}
	defer tc.Close()

	if len(files) > 1 && outPath != "" {
		if err := os.MkdirAll(outPath, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	var run *state.Run
	if tc.store != nil {
		if run, err = tc.store.StartRun(ctx); err != nil {
			logger.Warn("failed to record run", "error", err)
		}
	}

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			res, err := compileOne(gctx, tc, path)
			results[i] = fileResult{path: path, result: res, err: err}
			if err != nil {
				return err
			}
			if !res.HasErrors() {
				return writeELM(res, outputPath(path, outPath, len(files) > 1), indent)
			}
			return nil
		})
	}
	groupErr := g.Wait()

	errCount := 0
	for _, fr := range results {
		if fr.result != nil {
			errCount += printDiagnostics(errOut, fr.path, fr.result.Diagnostics)
		}
	}

	if run != nil {
		if err := tc.store.FinishRun(ctx, run, len(files), errCount); err != nil {
			logger.Warn("failed to record run", "error", err)
		}
	}

	if groupErr != nil {
		return results, groupErr
	}
	if errCount > 0 {
		return results, fmt.Errorf("compilation failed with %d error(s)", errCount)
	}
	return results, nil
}

// compileOne compiles a single input file, through the registry when
// the file is an indexed library so dependents share the result.
func compileOne(ctx context.Context, tc *toolchain, path string) (*compiler.Result, error) {
	if src, ok := tc.loader.At(path); ok {
		return tc.registry.Compile(ctx, src)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return tc.compiler.Compile(ctx, string(content))
}

func compileStdin(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, opts cql.CompilerOptions, outPath string) error {
	ctx := cmd.Context()

	tc, err := newToolchain(ctx, cfg, logger, opts, nil)
	if err != nil {
		return err
	}
	defer tc.Close()

	source, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}

	res, err := tc.compiler.Compile(ctx, string(source))
	if err != nil {
		return err
	}

	errCount := printDiagnostics(cmd.ErrOrStderr(), "<stdin>", res.Diagnostics)
	if errCount > 0 {
		return fmt.Errorf("compilation failed with %d error(s)", errCount)
	}

	if outPath != "" {
		return writeELM(res, outPath, true)
	}
	elm, err := res.JSON(true)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(elm))
	return nil
}

// inputDirs returns the directories the input files live in, so their
// siblings are resolvable as includes.
func inputDirs(files []string) []string {
	var dirs []string
	seen := map[string]bool{}
	for _, f := range files {
		dir := filepath.Dir(f)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// outputPath decides where one input's ELM goes: -o verbatim for a
// single input, into the -o directory for multiple, next to the source
// otherwise.
func outputPath(input, outPath string, multi bool) string {
	jsonName := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + ".json"
	switch {
	case outPath == "":
		return filepath.Join(filepath.Dir(input), jsonName)
	case multi:
		return filepath.Join(outPath, jsonName)
	default:
		return outPath
	}
}

func writeELM(res *compiler.Result, path string, indent bool) error {
	elm, err := res.JSON(indent)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(elm, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// printDiagnostics writes diagnostics in file:line:col form and
// returns the error count.
func printDiagnostics(w io.Writer, name string, diags []cql.Diagnostic) int {
	errCount := 0
	for _, d := range diags {
		if d.Severity == cql.SeverityError {
			errCount++
		}
		if d.Span.IsValid() {
			_, _ = fmt.Fprintf(w, "%s:%d:%d: %s: %s\n", name, d.Span.Start.Line, d.Span.Start.Column, d.Severity, d.Message)
		} else {
			_, _ = fmt.Fprintf(w, "%s: %s: %s\n", name, d.Severity, d.Message)
		}
	}
	return errCount
}

// watchAndCompile compiles once, then recompiles the affected inputs
// whenever a library source changes.
func watchAndCompile(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, opts cql.CompilerOptions, files []string, outPath string, indent bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recompile := func(targets []string) {
		if len(targets) == 0 {
			return
		}
		if _, err := compileFiles(ctx, cmd.ErrOrStderr(), cfg, logger, opts, targets, outPath, indent); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		} else {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Compiled %d librar%s\n", len(targets), pluralYies(len(targets)))
		}
	}
	recompile(files)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	watched := map[string]bool{}
	for _, dir := range append([]string{cfg.LibDir}, inputDirs(files)...) {
		if dir == "" || watched[dir] {
			continue
		}
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		watched[dir] = true
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Watching for changes. Press Ctrl+C to stop.")

	var (
		debounce *time.Timer
		pending  = map[string]bool{}
	)
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".cql") {
				continue
			}
			pending[event.Name] = true
			if debounce == nil {
				debounce = time.AfterFunc(200*time.Millisecond, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				debounce.Reset(200 * time.Millisecond)
			}

		case <-fire:
			changed := make([]string, 0, len(pending))
			for path := range pending {
				changed = append(changed, path)
			}
			pending = map[string]bool{}
			debounce = nil
			recompile(affectedInputs(ctx, cfg, logger, opts, files, changed))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)
		}
	}
}

// affectedInputs narrows the input list to files whose libraries
// transitively include a changed library. Changes that cannot be
// mapped to an indexed library recompile everything.
func affectedInputs(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts cql.CompilerOptions, files, changed []string) []string {
	tc, err := newToolchain(ctx, cfg, logger, opts, inputDirs(files))
	if err != nil {
		return files
	}
	defer tc.Close()

	var changedIDs []string
	for _, path := range changed {
		src, ok := tc.loader.At(path)
		if !ok {
			return files
		}
		changedIDs = append(changedIDs, src.ID())
	}

	affected := map[string]bool{}
	for _, id := range tc.registry.Graph().AffectedBy(changedIDs) {
		affected[id] = true
	}

	var targets []string
	for _, f := range files {
		src, ok := tc.loader.At(f)
		if !ok || affected[src.ID()] {
			targets = append(targets, f)
		}
	}
	return targets
}

func pluralYies(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
