package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bguidolim/mcs/internal/manifest"
)

// Registry is an explicit set of loaded packs. It is built once per run
// and handed to whoever needs it.
type Registry struct {
	packs []*Pack
	byID  map[string]*Pack
	errs  []*LoadError
}

// New builds a registry from already-loaded packs. Later duplicates of an
// id are recorded as load errors.
func New(packs ...*Pack) *Registry {
	r := &Registry{byID: make(map[string]*Pack)}
	for _, p := range packs {
		r.add(p, p.Origin)
	}
	return r
}

// Load normalizes every source into a Pack. Sources that fail are recorded
// in Errors and skipped; the remaining packs still load.
func Load(sources []Source) *Registry {
	r := &Registry{byID: make(map[string]*Pack)}
	for _, src := range sources {
		p, err := LoadPack(src)
		if err != nil {
			r.errs = append(r.errs, &LoadError{Source: src.Name, Err: err})
			continue
		}
		r.add(p, src.Name)
	}
	return r
}

func (r *Registry) add(p *Pack, source string) {
	if _, dup := r.byID[p.ID]; dup {
		r.errs = append(r.errs, &LoadError{
			Source: source,
			Err:    &InvalidConfigurationError{Pack: p.ID, Reason: "pack id already registered by another source"},
		})
		return
	}
	r.byID[p.ID] = p
	r.packs = append(r.packs, p)
	sort.Slice(r.packs, func(i, j int) bool { return r.packs[i].ID < r.packs[j].ID })
}

// Get returns the pack with the given id.
func (r *Registry) Get(id string) (*Pack, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// Packs returns all loaded packs sorted by id.
func (r *Registry) Packs() []*Pack {
	return append([]*Pack(nil), r.packs...)
}

// IDs returns all loaded pack ids sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.packs))
	for i, p := range r.packs {
		ids[i] = p.ID
	}
	return ids
}

// Errors returns the per-source load failures.
func (r *Registry) Errors() []*LoadError {
	return append([]*LoadError(nil), r.errs...)
}

// LoadPack reads, validates and normalizes one source. Manifest and
// dependency problems are returned as *InvalidConfigurationError or
// *DependencyCycleError carrying the pack id.
func LoadPack(src Source) (*Pack, error) {
	var (
		tp     *manifest.TechPack
		root   fs.FS
		origin string
		err    error
	)

	switch src.Kind {
	case Compiled:
		if src.FS == nil {
			return nil, fmt.Errorf("compiled source %s has no content", src.Name)
		}
		root, origin = src.FS, src.Name
		tp, err = manifest.ParseFS(root, src.Name)
	case External:
		dir := filepath.Dir(src.ManifestPath)
		root, origin = os.DirFS(dir), dir
		var data []byte
		data, err = os.ReadFile(src.ManifestPath)
		if err != nil {
			return nil, fmt.Errorf("reading manifest %s: %w", src.ManifestPath, err)
		}
		tp, err = manifest.Parse(data, src.ManifestPath)
	default:
		return nil, fmt.Errorf("unknown source kind %v", src.Kind)
	}
	if err != nil {
		var invalid *manifest.InvalidError
		if errors.As(err, &invalid) {
			return nil, &InvalidConfigurationError{Pack: src.Name, Err: err}
		}
		return nil, err
	}

	p := &Pack{
		ID:           tp.Identifier,
		DisplayName:  tp.DisplayName,
		Version:      tp.Version,
		Description:  tp.Description,
		Kind:         src.Kind,
		Origin:       origin,
		Components:   tp.Components,
		Templates:    tp.Templates,
		Placeholders: tp.Placeholders,
		Root:         root,
	}
	if err := Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks that the pack's full component graph resolves.
func Validate(p *Pack) error {
	_, err := ResolveOrder(p.Components, nil)
	return WithPack(err, p.ID)
}

// WithPack stamps a resolver error with the pack id it belongs to.
func WithPack(err error, packID string) error {
	var cycle *DependencyCycleError
	if errors.As(err, &cycle) && cycle.Pack == "" {
		cycle.Pack = packID
	}
	var invalid *InvalidConfigurationError
	if errors.As(err, &invalid) && invalid.Pack == "" {
		invalid.Pack = packID
	}
	return err
}
