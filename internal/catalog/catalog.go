// Package catalog manages external pack checkouts. Each registered pack is
// a git clone under ~/.mcs/packs/<identifier>, listed in ~/.mcs/registry.yaml.
package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bguidolim/mcs/internal/manifest"
	"github.com/bguidolim/mcs/internal/platform"
	"github.com/bguidolim/mcs/internal/registry"
	"github.com/spf13/afero"
	"go.yaml.in/yaml/v3"
)

// DefaultMaxAge is how long a checkout may go without an update before it
// is reported as stale.
const DefaultMaxAge = 7 * 24 * time.Hour

// tmpPrefix names in-progress clones inside the packs directory.
const tmpPrefix = ".clone-"

// Entry is one registered external pack.
type Entry struct {
	Identifier string    `yaml:"identifier"`
	URL        string    `yaml:"url"`
	Ref        string    `yaml:"ref,omitempty"`
	Path       string    `yaml:"path"`
	UpdatedAt  time.Time `yaml:"updatedAt"`
}

// ManifestPath returns the location of the entry's techpack.yaml.
func (e Entry) ManifestPath() string {
	return filepath.Join(e.Path, manifest.FileName)
}

// IsStale reports whether the checkout was last updated more than maxAge
// before now.
func (e Entry) IsStale(now time.Time, maxAge time.Duration) bool {
	if e.UpdatedAt.IsZero() {
		return true
	}
	return now.Sub(e.UpdatedAt) > maxAge
}

type registryFile struct {
	Packs []Entry `yaml:"packs"`
}

// Git is the subset of git the catalog drives.
type Git interface {
	Clone(ctx context.Context, url, dir, ref string) error
	Pull(ctx context.Context, dir string) error
	Fetch(ctx context.Context, dir string) error
	Checkout(ctx context.Context, dir, ref string) error
	Head(ctx context.Context, dir string) (string, error)
	Branch(ctx context.Context, dir string) (string, error)
}

// Catalog is the set of registered external packs.
type Catalog struct {
	fs           afero.Fs
	git          Git
	registryPath string
	packsRoot    string
	now          func() time.Time
	entries      []Entry
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithClock overrides the time source used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) { c.now = now }
}

// Open loads the registry file at registryPath. A missing file is an empty
// catalog.
func Open(fsys afero.Fs, git Git, registryPath, packsRoot string, opts ...Option) (*Catalog, error) {
	c := &Catalog{
		fs:           fsys,
		git:          git,
		registryPath: registryPath,
		packsRoot:    packsRoot,
		now:          time.Now,
	}
	for _, o := range opts {
		o(c)
	}

	data, err := afero.ReadFile(fsys, registryPath)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("reading pack registry %s: %w", registryPath, err)
	}
	var rf registryFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing pack registry %s: %w", registryPath, err)
	}
	c.entries = rf.Packs
	c.sort()
	return c, nil
}

func (c *Catalog) sort() {
	sort.Slice(c.entries, func(i, j int) bool { return c.entries[i].Identifier < c.entries[j].Identifier })
}

func (c *Catalog) save() error {
	c.sort()
	data, err := yaml.Marshal(registryFile{Packs: c.entries})
	if err != nil {
		return fmt.Errorf("marshaling pack registry: %w", err)
	}
	if err := platform.WriteFileAtomic(c.fs, c.registryPath, data, 0644); err != nil {
		return fmt.Errorf("writing pack registry %s: %w", c.registryPath, err)
	}
	return nil
}

// List returns the registered packs sorted by identifier.
func (c *Catalog) List() []Entry {
	return append([]Entry(nil), c.entries...)
}

// Get returns the entry for id.
func (c *Catalog) Get(id string) (Entry, bool) {
	for _, e := range c.entries {
		if e.Identifier == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Sources returns one registry source per registered pack.
func (c *Catalog) Sources() []registry.Source {
	sources := make([]registry.Source, 0, len(c.entries))
	for _, e := range c.entries {
		sources = append(sources, registry.ExternalSource(e.ManifestPath()))
	}
	return sources
}

// Add clones url, reads the pack identifier from its manifest and moves the
// checkout into place. The clone lands in a temporary directory first so a
// failed or invalid clone never leaves a partial pack behind.
func (c *Catalog) Add(ctx context.Context, url, ref string) (Entry, error) {
	if url == "" {
		return Entry{}, fmt.Errorf("pack url is required")
	}
	if err := c.fs.MkdirAll(c.packsRoot, 0755); err != nil {
		return Entry{}, fmt.Errorf("creating packs directory: %w", err)
	}
	tmpDir, err := afero.TempDir(c.fs, c.packsRoot, tmpPrefix)
	if err != nil {
		return Entry{}, fmt.Errorf("creating clone directory: %w", err)
	}
	cleanup := func() { _ = c.fs.RemoveAll(tmpDir) }

	if err := c.git.Clone(ctx, url, tmpDir, ref); err != nil {
		cleanup()
		return Entry{}, fmt.Errorf("cloning %s: %w", url, err)
	}

	manifestPath := filepath.Join(tmpDir, manifest.FileName)
	data, err := afero.ReadFile(c.fs, manifestPath)
	if err != nil {
		cleanup()
		return Entry{}, fmt.Errorf("%s has no %s at its root: %w", url, manifest.FileName, err)
	}
	tp, err := manifest.Parse(data, url)
	if err != nil {
		cleanup()
		return Entry{}, err
	}
	if _, dup := c.Get(tp.Identifier); dup {
		cleanup()
		return Entry{}, fmt.Errorf("pack %q is already registered", tp.Identifier)
	}

	if ref == "" {
		if branch, err := c.git.Branch(ctx, tmpDir); err == nil && branch != "HEAD" {
			ref = branch
		}
	}

	dest := filepath.Join(c.packsRoot, tp.Identifier)
	// An unregistered leftover checkout is replaced.
	if err := c.fs.RemoveAll(dest); err != nil {
		cleanup()
		return Entry{}, fmt.Errorf("removing existing checkout %s: %w", dest, err)
	}
	if err := c.fs.Rename(tmpDir, dest); err != nil {
		cleanup()
		return Entry{}, fmt.Errorf("finalizing checkout of %s: %w", tp.Identifier, err)
	}

	e := Entry{
		Identifier: tp.Identifier,
		URL:        url,
		Ref:        ref,
		Path:       dest,
		UpdatedAt:  c.now().UTC(),
	}
	c.entries = append(c.entries, e)
	if err := c.save(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Remove unregisters id and deletes its checkout. Scopes that still use the
// pack are not touched.
func (c *Catalog) Remove(id string) error {
	idx := -1
	for i, e := range c.entries {
		if e.Identifier == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("pack %q is not registered", id)
	}
	path := c.entries[idx].Path
	c.entries = append(c.entries[:idx], c.entries[idx+1:]...)
	if err := c.save(); err != nil {
		return err
	}
	if err := c.fs.RemoveAll(path); err != nil {
		return fmt.Errorf("removing checkout %s: %w", path, err)
	}
	return nil
}

// Update pulls the latest revision of each id, or of every registered pack
// when ids is empty. Failures are collected per pack.
func (c *Catalog) Update(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		for _, e := range c.entries {
			ids = append(ids, e.Identifier)
		}
	}
	var failed []string
	for _, id := range ids {
		if err := c.Pull(ctx, id); err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", id, err))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("some packs failed to update:\n  %s", strings.Join(failed, "\n  "))
	}
	return nil
}

func (c *Catalog) entry(id string) (*Entry, error) {
	for i := range c.entries {
		if c.entries[i].Identifier == id {
			return &c.entries[i], nil
		}
	}
	return nil, fmt.Errorf("pack %q is not registered", id)
}

// Has reports whether id is a registered external pack.
func (c *Catalog) Has(id string) bool {
	_, ok := c.Get(id)
	return ok
}

// Checkout moves id's checkout to ref, fetching first so pinned commits
// newer than the clone are reachable.
func (c *Catalog) Checkout(ctx context.Context, id, ref string) error {
	e, err := c.entry(id)
	if err != nil {
		return err
	}
	if err := c.git.Fetch(ctx, e.Path); err != nil {
		return err
	}
	return c.git.Checkout(ctx, e.Path, ref)
}

// Pull returns id's checkout to its tracked ref and fast-forwards it.
func (c *Catalog) Pull(ctx context.Context, id string) error {
	e, err := c.entry(id)
	if err != nil {
		return err
	}
	if e.Ref != "" {
		if err := c.git.Checkout(ctx, e.Path, e.Ref); err != nil {
			return err
		}
	}
	if err := c.git.Pull(ctx, e.Path); err != nil {
		return err
	}
	e.UpdatedAt = c.now().UTC()
	return c.save()
}

// Head returns the commit id's checkout is at.
func (c *Catalog) Head(ctx context.Context, id string) (string, error) {
	e, err := c.entry(id)
	if err != nil {
		return "", err
	}
	return c.git.Head(ctx, e.Path)
}
