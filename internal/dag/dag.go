// Package dag models the include graph of a set of CQL libraries.
// It supports cycle detection with path reconstruction, topological
// ordering (dependencies before dependents), and change propagation
// for watch-mode recompilation.
package dag

import (
	"fmt"
	"sort"
)

// Library is a node in the include graph.
type Library struct {
	// ID is the library identifier ("name" or "name@version")
	ID string
	// Data holds arbitrary per-library data (source path, result)
	Data any
}

// Graph is a directed graph of library includes. An edge runs from a
// dependency to its dependents, so topological order yields
// dependencies first.
type Graph struct {
	nodes      map[string]*Library
	dependents map[string][]string // dependency -> libraries including it
	includes   map[string][]string // library -> its includes
}

// NewGraph creates an empty include graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:      make(map[string]*Library),
		dependents: make(map[string][]string),
		includes:   make(map[string][]string),
	}
}

// AddLibrary registers a library. Re-adding an existing library
// updates its data.
func (g *Graph) AddLibrary(id string, data any) {
	if node, exists := g.nodes[id]; exists {
		node.Data = data
		return
	}
	g.nodes[id] = &Library{ID: id, Data: data}
	g.dependents[id] = []string{}
	g.includes[id] = []string{}
}

// AddInclude records that lib includes dep. Both libraries must be
// registered. Self-includes are rejected.
func (g *Graph) AddInclude(lib, dep string) error {
	if _, exists := g.nodes[lib]; !exists {
		return fmt.Errorf("library %q not registered", lib)
	}
	if _, exists := g.nodes[dep]; !exists {
		return fmt.Errorf("library %q not registered", dep)
	}
	if lib == dep {
		return fmt.Errorf("library %q includes itself", lib)
	}

	if !contains(g.includes[lib], dep) {
		g.includes[lib] = append(g.includes[lib], dep)
	}
	if !contains(g.dependents[dep], lib) {
		g.dependents[dep] = append(g.dependents[dep], lib)
	}
	return nil
}

// Library returns a registered library by identifier.
func (g *Graph) Library(id string) (*Library, bool) {
	node, exists := g.nodes[id]
	return node, exists
}

// Includes returns the direct includes of a library.
func (g *Graph) Includes(id string) []string {
	return g.includes[id]
}

// Dependents returns the libraries that directly include id.
func (g *Graph) Dependents(id string) []string {
	return g.dependents[id]
}

// Libraries returns all registered libraries sorted by identifier.
func (g *Graph) Libraries() []*Library {
	libs := make([]*Library, 0, len(g.nodes))
	for _, node := range g.nodes {
		libs = append(libs, node)
	}
	sort.Slice(libs, func(i, j int) bool {
		return libs[i].ID < libs[j].ID
	})
	return libs
}

// Size returns the number of registered libraries.
func (g *Graph) Size() int {
	return len(g.nodes)
}

// HasCycle reports whether the include graph contains a cycle and, if
// so, returns the cycle path closed on the entry library
// (A, B, C, A).
func (g *Graph) HasCycle() (bool, []string) {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	cameFrom := make(map[string]string)

	var cycle []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		onStack[id] = true

		for _, dep := range g.includes[id] {
			if !visited[dep] {
				cameFrom[dep] = id
				if dfs(dep) {
					return true
				}
			} else if onStack[dep] {
				cycle = []string{dep}
				for curr := id; curr != dep; curr = cameFrom[curr] {
					cycle = append([]string{curr}, cycle...)
				}
				cycle = append([]string{dep}, cycle...)
				return true
			}
		}

		onStack[id] = false
		return false
	}

	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if !visited[id] {
			if dfs(id) {
				return true, cycle
			}
		}
	}
	return false, nil
}

// CycleThrough returns the include path from id back to itself, closed
// on id (A, B, A), or nil when id is not part of any cycle.
func (g *Graph) CycleThrough(id string) []string {
	if _, exists := g.nodes[id]; !exists {
		return nil
	}

	visited := make(map[string]bool)
	var path []string

	var dfs func(curr string) bool
	dfs = func(curr string) bool {
		path = append(path, curr)
		for _, dep := range g.includes[curr] {
			if dep == id {
				return true
			}
			if !visited[dep] {
				visited[dep] = true
				if dfs(dep) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		return false
	}

	if dfs(id) {
		return append(path, id)
	}
	return nil
}

// TopologicalSort returns libraries in compile order: every library
// appears after all of its includes. Fails on a cycle.
func (g *Graph) TopologicalSort() ([]*Library, error) {
	if hasCycle, cycle := g.HasCycle(); hasCycle {
		return nil, fmt.Errorf("include cycle: %v", cycle)
	}

	visited := make(map[string]bool)
	var order []*Library

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, dep := range g.includes[id] {
			visit(dep)
		}
		order = append(order, g.nodes[id])
	}

	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		visit(id)
	}
	return order, nil
}

// AffectedBy returns the identifiers that need recompiling when the
// given libraries change: the changed libraries plus everything that
// transitively includes them, sorted.
func (g *Graph) AffectedBy(changed []string) []string {
	affected := make(map[string]bool)

	var mark func(id string)
	mark = func(id string) {
		if affected[id] {
			return
		}
		affected[id] = true
		for _, dependent := range g.dependents[id] {
			mark(dependent)
		}
	}

	for _, id := range changed {
		if _, exists := g.nodes[id]; exists {
			mark(id)
		}
	}

	result := make([]string, 0, len(affected))
	for id := range affected {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}

// Roots returns libraries nothing else includes, sorted. These are the
// top-level entry points of a library directory.
func (g *Graph) Roots() []string {
	var roots []string
	for id := range g.nodes {
		if len(g.dependents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	return roots
}

// Leaves returns libraries with no includes, sorted.
func (g *Graph) Leaves() []string {
	var leaves []string
	for id := range g.nodes {
		if len(g.includes[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	sort.Strings(leaves)
	return leaves
}

func contains(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}
