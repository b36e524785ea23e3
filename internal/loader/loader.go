// Package loader indexes CQL library files on disk. It scans library
// directories for .cql files, reads the library declaration from each,
// and resolves include references by name and version without running
// the full parser.
package loader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Source is one CQL file found in a library directory.
type Source struct {
	// Name is the declared library identifier
	Name string
	// Version is the declared version, "" when undeclared
	Version string
	// Path is the absolute file path
	Path string
	// Content is the raw CQL text
	Content string
}

// ID returns the identifier used in include graphs: "name" or
// "name@version".
func (s *Source) ID() string {
	if s.Version == "" {
		return s.Name
	}
	return s.Name + "@" + s.Version
}

// headerPattern matches a library declaration: a bare or quoted
// identifier with an optional version string.
var headerPattern = regexp.MustCompile(`(?m)^\s*library\s+("(?:[^"\\]|\\.)*"|[A-Za-z_][A-Za-z0-9_]*)(?:\s+version\s+'([^']*)')?`)

// NotFoundError is returned when no indexed file declares the
// requested library.
type NotFoundError struct {
	Name    string
	Version string
}

func (e *NotFoundError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("library %s version '%s' not found", e.Name, e.Version)
	}
	return fmt.Sprintf("library %s not found", e.Name)
}

// DirLoader indexes the .cql files under one or more directories. It
// is safe for concurrent use after Load.
type DirLoader struct {
	dirs []string

	mu      sync.RWMutex
	sources map[string][]*Source // name -> versions, sorted
}

// New creates a loader over the given library directories.
func New(dirs ...string) *DirLoader {
	return &DirLoader{
		dirs:    dirs,
		sources: make(map[string][]*Source),
	}
}

// Load walks the library directories and rebuilds the index. Files
// without a library declaration are skipped; two files declaring the
// same name and version are an error.
func (l *DirLoader) Load(ctx context.Context) error {
	index := make(map[string][]*Source)

	for _, dir := range l.dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".cql") {
				return nil
			}

			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}

			src := parseHeader(path, string(content))
			if src == nil {
				return nil
			}

			for _, existing := range index[src.Name] {
				if existing.Version == src.Version {
					return fmt.Errorf("library %s declared in both %s and %s",
						src.ID(), existing.Path, src.Path)
				}
			}
			index[src.Name] = append(index[src.Name], src)
			return nil
		})
		if err != nil {
			return err
		}
	}

	for _, versions := range index {
		sort.Slice(versions, func(i, j int) bool {
			return compareVersions(versions[i].Version, versions[j].Version) < 0
		})
	}

	l.mu.Lock()
	l.sources = index
	l.mu.Unlock()
	return nil
}

// compareVersions orders version strings segment by segment, split on
// dots. Numeric segments compare numerically, so '10.0' sorts above
// '9.0'; anything non-numeric falls back to string comparison.
func compareVersions(a, b string) int {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var sa, sb string
		if i < len(as) {
			sa = as[i]
		}
		if i < len(bs) {
			sb = bs[i]
		}
		na, errA := strconv.Atoi(sa)
		nb, errB := strconv.Atoi(sb)
		if errA == nil && errB == nil {
			if na != nb {
				return na - nb
			}
			continue
		}
		if sa != sb {
			return strings.Compare(sa, sb)
		}
	}
	return 0
}

// parseHeader extracts the library declaration from CQL text. Returns
// nil when the file has no declaration.
func parseHeader(path, content string) *Source {
	matches := headerPattern.FindStringSubmatch(content)
	if matches == nil {
		return nil
	}

	name := matches[1]
	if strings.HasPrefix(name, `"`) {
		name = strings.ReplaceAll(name[1:len(name)-1], `\"`, `"`)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &Source{
		Name:    name,
		Version: matches[2],
		Path:    abs,
		Content: content,
	}
}

// Resolve returns the source for a library. An empty version matches
// the highest indexed version; a non-empty version must match exactly.
func (l *DirLoader) Resolve(ctx context.Context, name, version string) (*Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	versions := l.sources[name]
	l.mu.RUnlock()

	if len(versions) == 0 {
		return nil, &NotFoundError{Name: name, Version: version}
	}
	if version == "" {
		return versions[len(versions)-1], nil
	}
	for _, src := range versions {
		if src.Version == version {
			return src, nil
		}
	}
	return nil, &NotFoundError{Name: name, Version: version}
}

// List returns every indexed source sorted by name, then version.
func (l *DirLoader) List() []*Source {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.sources))
	for name := range l.sources {
		names = append(names, name)
	}
	sort.Strings(names)

	var all []*Source
	for _, name := range names {
		all = append(all, l.sources[name]...)
	}
	return all
}

// At returns the indexed source for a file path, used to map watch
// events back to libraries.
func (l *DirLoader) At(path string) (*Source, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, versions := range l.sources {
		for _, src := range versions {
			if src.Path == abs {
				return src, true
			}
		}
	}
	return nil, false
}

// Dirs returns the directories this loader watches.
func (l *DirLoader) Dirs() []string {
	return l.dirs
}
