package registry

import (
	"fmt"
	"io/fs"

	"github.com/bguidolim/mcs/internal/manifest"
)

// SourceKind discriminates where a pack comes from.
type SourceKind int

const (
	// Compiled packs are embedded in the binary.
	Compiled SourceKind = iota
	// External packs live in a checkout on disk.
	External
)

func (k SourceKind) String() string {
	switch k {
	case Compiled:
		return "built-in"
	case External:
		return "external"
	default:
		return fmt.Sprintf("SourceKind(%d)", int(k))
	}
}

// Source is where a pack is loaded from. For Compiled sources FS holds the
// pack content; for External sources ManifestPath points at techpack.yaml.
type Source struct {
	Kind         SourceKind
	Name         string
	ManifestPath string
	FS           fs.FS
}

// CompiledSource returns a source for a pack embedded in the binary.
func CompiledSource(name string, fsys fs.FS) Source {
	return Source{Kind: Compiled, Name: name, FS: fsys}
}

// ExternalSource returns a source for a manifest on disk.
func ExternalSource(manifestPath string) Source {
	return Source{Kind: External, Name: manifestPath, ManifestPath: manifestPath}
}

// Pack is the normalized, source-independent form of a loaded pack.
type Pack struct {
	ID           string
	DisplayName  string
	Version      string
	Description  string
	Kind         SourceKind
	Origin       string // source name or checkout directory
	Components   []manifest.Component
	Templates    []manifest.Template
	Placeholders []manifest.Placeholder

	// Root holds the pack's content files (hook scripts, template files).
	Root fs.FS
}

// Component returns the component with the given id.
func (p *Pack) Component(id string) (manifest.Component, bool) {
	for _, c := range p.Components {
		if c.ID == id {
			return c, true
		}
	}
	return manifest.Component{}, false
}

// ComponentIDs returns component ids in declaration order.
func (p *Pack) ComponentIDs() []string {
	ids := make([]string, len(p.Components))
	for i, c := range p.Components {
		ids[i] = c.ID
	}
	return ids
}

// TemplateContent returns a template's text, reading ContentFile from the
// pack root when the template is not inline.
func (p *Pack) TemplateContent(t manifest.Template) (string, error) {
	if t.ContentFile == "" {
		return t.Content, nil
	}
	if p.Root == nil {
		return "", fmt.Errorf("pack %s has no content root for %s", p.ID, t.ContentFile)
	}
	data, err := fs.ReadFile(p.Root, t.ContentFile)
	if err != nil {
		return "", fmt.Errorf("reading template %s of pack %s: %w", t.ContentFile, p.ID, err)
	}
	return string(data), nil
}

// DependencyNode is a node in a pack's component dependency tree.
type DependencyNode struct {
	Component manifest.Component
	Children  []*DependencyNode
	Deduped   bool // true if this component was already shown earlier in the tree
}
