// Package registry compiles libraries on demand and serves them to the
// compiler as include dependencies. It deduplicates concurrent compiles
// of the same library, memoizes results, and validates the include
// graph up front: libraries on an include cycle compile to a single
// fatal diagnostic naming the cycle, while unrelated libraries are
// untouched.
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/leapstack-labs/leapcql/internal/dag"
	"github.com/leapstack-labs/leapcql/internal/loader"
	"github.com/leapstack-labs/leapcql/pkg/compiler"
	"github.com/leapstack-labs/leapcql/pkg/cql"
)

// Cache persists compiled ELM across runs. Only clean results are
// stored, so a hit can skip the pipeline entirely.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, elm []byte) error
}

// CycleError reports an include cycle, closed on the entry library.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "include cycle: " + strings.Join(e.Path, " -> ")
}

// includePattern matches include declarations: a bare or quoted path
// with an optional version.
var includePattern = regexp.MustCompile(`(?m)^\s*include\s+("(?:[^"\\]|\\.)*"|[A-Za-z_][A-Za-z0-9_.]*)(?:\s+version\s+'([^']*)')?`)

type chainKey struct{}

func chainFrom(ctx context.Context) []string {
	chain, _ := ctx.Value(chainKey{}).([]string)
	return chain
}

// Registry implements compiler.DependencyProvider over a library
// directory. It is safe for concurrent use after Load.
type Registry struct {
	loader   *loader.DirLoader
	compiler *compiler.Compiler
	cache    Cache
	logger   *slog.Logger

	group singleflight.Group

	mu      sync.RWMutex
	graph   *dag.Graph
	cycles  map[string]*CycleError
	results map[string]*compiler.Result
}

// New creates a registry over the given loader and compiler. The
// caller wires the registry back into the compiler as its provider.
func New(l *loader.DirLoader, c *compiler.Compiler) *Registry {
	return &Registry{
		loader:   l,
		compiler: c,
		logger:   slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)})),
		graph:    dag.NewGraph(),
		cycles:   make(map[string]*CycleError),
		results:  make(map[string]*compiler.Result),
	}
}

// WithCache sets the persistent result cache.
func (r *Registry) WithCache(cache Cache) *Registry {
	r.cache = cache
	return r
}

// WithLogger sets the logger.
func (r *Registry) WithLogger(l *slog.Logger) *Registry {
	if l != nil {
		r.logger = l
	}
	return r
}

// Load indexes the library directories and rebuilds the include graph.
// Every library on an include cycle is marked up front, so its compile
// result is a single fatal diagnostic naming the cycle and no compile
// ever recurses into one; libraries off the cycle are unaffected.
// Compiling through a registry that has not been loaded resolves
// nothing.
func (r *Registry) Load(ctx context.Context) error {
	if err := r.loader.Load(ctx); err != nil {
		return err
	}

	graph, err := r.buildGraph(ctx)
	if err != nil {
		return err
	}

	cycles := make(map[string]*CycleError)
	results := make(map[string]*compiler.Result)
	for _, lib := range graph.Libraries() {
		if path := graph.CycleThrough(lib.ID); path != nil {
			cerr := &CycleError{Path: path}
			cycles[lib.ID] = cerr
			results[lib.ID] = cycleResult(cerr)
			r.logger.Warn("include cycle", "library", lib.ID, "cycle", cerr.Error())
		}
	}

	r.mu.Lock()
	r.graph = graph
	r.cycles = cycles
	r.results = results
	r.mu.Unlock()
	return nil
}

// cycleResult is the compile outcome for a library on an include
// cycle: no ELM, one fatal semantic diagnostic naming the closed cycle
// path.
func cycleResult(cerr *CycleError) *compiler.Result {
	return &compiler.Result{
		Diagnostics: []cql.Diagnostic{{
			Severity: cql.SeverityError,
			Stage:    cql.StageSemantic,
			Message:  cerr.Error(),
		}},
	}
}

// buildGraph scans include declarations across every indexed source.
// Includes that resolve to an indexed library become edges; unresolved
// includes are left for the compiler to report per library.
func (r *Registry) buildGraph(ctx context.Context) (*dag.Graph, error) {
	graph := dag.NewGraph()
	sources := r.loader.List()

	for _, src := range sources {
		graph.AddLibrary(src.ID(), src)
	}
	for _, src := range sources {
		for _, inc := range scanIncludes(src.Content) {
			dep, err := r.loader.Resolve(ctx, inc.name, inc.version)
			if err != nil {
				continue
			}
			if err := graph.AddInclude(src.ID(), dep.ID()); err != nil {
				return nil, fmt.Errorf("indexing %s: %w", src.Path, err)
			}
		}
	}
	return graph, nil
}

type includeRef struct {
	name    string
	version string
}

func scanIncludes(content string) []includeRef {
	var refs []includeRef
	for _, m := range includePattern.FindAllStringSubmatch(content, -1) {
		name := m[1]
		if strings.HasPrefix(name, `"`) {
			name = strings.ReplaceAll(name[1:len(name)-1], `\"`, `"`)
		}
		refs = append(refs, includeRef{name: name, version: m[2]})
	}
	return refs
}

// Graph returns the include graph built by the last Load.
func (r *Registry) Graph() *dag.Graph {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.graph
}

// Resolve compiles an included library by name and version. It is the
// compiler.DependencyProvider entry point. Including a library that
// sits on a cycle fails with the CycleError, so the requesting library
// reports the unavailable dependency.
func (r *Registry) Resolve(ctx context.Context, name, version string) (*compiler.Result, error) {
	src, err := r.loader.Resolve(ctx, name, version)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	cerr := r.cycles[src.ID()]
	r.mu.RUnlock()
	if cerr != nil {
		return nil, cerr
	}

	return r.Compile(ctx, src)
}

// Compile returns the compiled result for a source, computing it at
// most once per Load. Libraries on an include cycle return their
// precomputed cycle result; a library already on the requesting chain
// is a cycle Load did not see.
func (r *Registry) Compile(ctx context.Context, src *loader.Source) (*compiler.Result, error) {
	id := src.ID()

	chain := chainFrom(ctx)
	for i, entry := range chain {
		if entry == id {
			return nil, &CycleError{Path: append(append([]string{}, chain[i:]...), id)}
		}
	}

	r.mu.RLock()
	cached, ok := r.results[id]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	v, err, _ := r.group.Do(id, func() (any, error) {
		next := context.WithValue(ctx, chainKey{}, append(append([]string{}, chain...), id))
		return r.compileOnce(next, src)
	})
	if err != nil {
		return nil, err
	}
	return v.(*compiler.Result), nil
}

func (r *Registry) compileOnce(ctx context.Context, src *loader.Source) (*compiler.Result, error) {
	id := src.ID()
	key := r.cacheKey(src)

	if r.cache != nil {
		elm, hit, err := r.cache.Get(ctx, key)
		if err != nil {
			r.logger.Warn("cache read failed", "library", id, "error", err)
		} else if hit {
			var decoded map[string]any
			if err := json.Unmarshal(elm, &decoded); err == nil {
				r.logger.Debug("cache hit", "library", id)
				res := &compiler.Result{ELM: decoded}
				r.remember(id, res)
				return res, nil
			}
			r.logger.Warn("discarding corrupt cache entry", "library", id)
		}
	}

	res, err := r.compiler.Compile(ctx, src.Content)
	if err != nil {
		return nil, err
	}

	if r.cache != nil && len(res.Diagnostics) == 0 {
		elm, err := res.JSON(false)
		if err == nil {
			if err := r.cache.Put(ctx, key, elm); err != nil {
				r.logger.Warn("cache write failed", "library", id, "error", err)
			}
		}
	}

	r.remember(id, res)
	return res, nil
}

func (r *Registry) remember(id string, res *compiler.Result) {
	r.mu.Lock()
	if _, exists := r.results[id]; !exists {
		r.results[id] = res
	}
	r.mu.Unlock()
}

// cacheKey derives the persistent cache key from everything that can
// change the output: identity, source text, options, and translator
// version.
func (r *Registry) cacheKey(src *loader.Source) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%+v\x00", src.Name, src.Version, compiler.Version, r.compiler.Options())
	h.Write([]byte(src.Content))
	return hex.EncodeToString(h.Sum(nil))
}
