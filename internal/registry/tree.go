package registry

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/bguidolim/mcs/internal/manifest"
)

// BuildDependencyTree returns one root node per component that no other
// component depends on, with dependencies as children. Components reached
// twice are marked Deduped and not expanded again.
func BuildDependencyTree(p *Pack) []*DependencyNode {
	depended := make(map[string]bool)
	for _, c := range p.Components {
		for _, d := range c.Dependencies {
			depended[d] = true
		}
	}

	seen := make(map[string]bool)
	var roots []*DependencyNode
	for _, c := range p.Components {
		if depended[c.ID] {
			continue
		}
		roots = append(roots, buildNode(p, c, seen, map[string]bool{}))
	}
	// Components only reachable through a cycle have no root; list them flat.
	for _, c := range p.Components {
		if !seen[c.ID] {
			roots = append(roots, buildNode(p, c, seen, map[string]bool{}))
		}
	}
	return roots
}

func buildNode(p *Pack, c manifest.Component, seen, onPath map[string]bool) *DependencyNode {
	node := &DependencyNode{Component: c}
	if seen[c.ID] || onPath[c.ID] {
		node.Deduped = true
		return node
	}
	seen[c.ID] = true
	onPath[c.ID] = true
	defer delete(onPath, c.ID)

	for _, dep := range c.Dependencies {
		child, ok := p.Component(dep)
		if !ok {
			continue
		}
		node.Children = append(node.Children, buildNode(p, child, seen, onPath))
	}
	return node
}

// PrintTree prints a dependency node with box-drawing characters.
func PrintTree(w io.Writer, node *DependencyNode, prefix string, isRoot, isLast bool) {
	if node == nil {
		return
	}

	connector := "├── "
	if isLast {
		connector = "└── "
	}

	label := fmt.Sprintf("%s: %s", node.Component.Type, node.Component.Label())
	if node.Component.Required {
		label += " (required)"
	}
	if node.Deduped {
		label += " (see above)"
	}

	childPrefix := prefix
	if isRoot {
		fmt.Fprintf(w, "  %s\n", label)
	} else {
		fmt.Fprintf(w, "  %s%s%s\n", prefix, connector, label)
		if isLast {
			childPrefix += "    "
		} else {
			childPrefix += "│   "
		}
	}

	for i, child := range node.Children {
		PrintTree(w, child, childPrefix, false, i == len(node.Children)-1)
	}
}

// PrintPack prints a pack's header, component tree and a per-type summary.
func PrintPack(w io.Writer, p *Pack) {
	name := p.DisplayName
	if name == "" {
		name = p.ID
	}
	fmt.Fprintf(w, "%s (%s) v%s [%s]\n", name, p.ID, p.Version, p.Kind)
	if p.Description != "" {
		fmt.Fprintf(w, "  %s\n", p.Description)
	}
	fmt.Fprintln(w)

	for _, root := range BuildDependencyTree(p) {
		PrintTree(w, root, "", true, true)
	}
	fmt.Fprintln(w)

	counts := make(map[string]int)
	for _, c := range p.Components {
		counts[c.Type]++
	}
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = fmt.Sprintf("%d %s", counts[t], t)
	}
	if len(parts) > 0 {
		fmt.Fprintf(w, "  Components: %s\n", strings.Join(parts, ", "))
	}
	if len(p.Templates) > 0 {
		ids := make([]string, len(p.Templates))
		for i, t := range p.Templates {
			ids[i] = t.SectionIdentifier
		}
		fmt.Fprintf(w, "  Sections: %s\n", strings.Join(ids, ", "))
	}
}
