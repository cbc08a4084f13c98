package registry

import (
	"fmt"

	"github.com/bguidolim/mcs/internal/manifest"
)

// ResolveOrder returns the selected components plus their transitive
// dependencies, each preceded by everything it depends on. Ready
// components are emitted in declaration order, so the result is
// deterministic. A nil selection means every component.
//
// A dependency id not declared among components yields an
// *InvalidConfigurationError; a cycle yields a *DependencyCycleError.
func ResolveOrder(components []manifest.Component, selected []string) ([]manifest.Component, error) {
	index := make(map[string]int, len(components))
	for i, c := range components {
		index[c.ID] = i
	}

	if selected == nil {
		selected = make([]string, len(components))
		for i, c := range components {
			selected[i] = c.ID
		}
	}

	// Transitive closure of the selection.
	inSet := make(map[string]bool)
	stack := make([]string, 0, len(selected))
	for _, id := range selected {
		if _, ok := index[id]; !ok {
			return nil, &InvalidConfigurationError{Reason: fmt.Sprintf("unknown component %q", id)}
		}
		stack = append(stack, id)
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if inSet[id] {
			continue
		}
		inSet[id] = true
		for _, dep := range components[index[id]].Dependencies {
			if _, ok := index[dep]; !ok {
				return nil, &InvalidConfigurationError{
					Reason: fmt.Sprintf("dependency %q referenced by %q is not declared", dep, id),
				}
			}
			stack = append(stack, dep)
		}
	}

	// Kahn's algorithm over the induced subgraph.
	indegree := make(map[string]int, len(inSet))
	dependents := make(map[string][]string, len(inSet))
	for id := range inSet {
		for _, dep := range uniq(components[index[id]].Dependencies) {
			indegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	done := make(map[string]bool, len(inSet))
	order := make([]manifest.Component, 0, len(inSet))
	for len(order) < len(inSet) {
		next := -1
		for i, c := range components {
			if inSet[c.ID] && !done[c.ID] && indegree[c.ID] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, &DependencyCycleError{Cycle: findCycle(components, index, inSet, done)}
		}
		c := components[next]
		done[c.ID] = true
		order = append(order, c)
		for _, d := range dependents[c.ID] {
			indegree[d]--
		}
	}
	return order, nil
}

// findCycle walks dependency edges among unresolved components until an id
// repeats, and returns that loop with its first id repeated at the end.
func findCycle(components []manifest.Component, index map[string]int, inSet, done map[string]bool) []string {
	var start string
	for _, c := range components {
		if inSet[c.ID] && !done[c.ID] {
			start = c.ID
			break
		}
	}

	pos := make(map[string]int)
	var path []string
	id := start
	for {
		if at, seen := pos[id]; seen {
			cycle := append([]string{}, path[at:]...)
			return append(cycle, id)
		}
		pos[id] = len(path)
		path = append(path, id)

		// Every unresolved node has an unresolved dependency.
		for _, dep := range components[index[id]].Dependencies {
			if inSet[dep] && !done[dep] {
				id = dep
				break
			}
		}
	}
}

// Closure returns the ids of selected plus their transitive dependencies.
// Unknown ids are ignored.
func Closure(components []manifest.Component, selected []string) map[string]bool {
	index := make(map[string]int, len(components))
	for i, c := range components {
		index[c.ID] = i
	}
	out := make(map[string]bool)
	var visit func(string)
	visit = func(id string) {
		i, ok := index[id]
		if !ok || out[id] {
			return
		}
		out[id] = true
		for _, dep := range components[i].Dependencies {
			visit(dep)
		}
	}
	for _, id := range selected {
		visit(id)
	}
	return out
}

func uniq(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
