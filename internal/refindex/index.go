// Package refindex maintains the cross-scope reference index: which packs
// each project (and the global scope) uses. It lets the engine decide
// whether a machine-wide resource installed for a pack is still needed
// somewhere else before removing it.
package refindex

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/bguidolim/mcs/internal/platform"
	"github.com/spf13/afero"
	"go.yaml.in/yaml/v3"
)

// GlobalKey is the reserved path of the global scope. It is never pruned.
const GlobalKey = "__global__"

// CurrentVersion is the index format version written by this package.
const CurrentVersion = 1

// ErrUnreadable is returned when the index exists but cannot be parsed.
// Callers treat every pack as still referenced.
var ErrUnreadable = errors.New("reference index unreadable")

// Entry is one scope's pack usage.
type Entry struct {
	Path       string    `yaml:"path"`
	Packs      []string  `yaml:"packs"`
	LastSynced time.Time `yaml:"lastSynced"`
}

// Index is the decoded reference index.
type Index struct {
	IndexVersion int     `yaml:"indexVersion"`
	Projects     []Entry `yaml:"projects"`
}

// Set records the packs used by scope key. An empty pack list removes the entry.
func (x *Index) Set(key string, packs []string, now time.Time) {
	if len(packs) == 0 {
		x.Remove(key)
		return
	}
	sorted := append([]string(nil), packs...)
	sort.Strings(sorted)
	for i := range x.Projects {
		if x.Projects[i].Path == key {
			x.Projects[i].Packs = sorted
			x.Projects[i].LastSynced = now.UTC()
			return
		}
	}
	x.Projects = append(x.Projects, Entry{Path: key, Packs: sorted, LastSynced: now.UTC()})
	sort.Slice(x.Projects, func(i, j int) bool { return x.Projects[i].Path < x.Projects[j].Path })
}

// Remove drops scope key from the index.
func (x *Index) Remove(key string) {
	out := x.Projects[:0:0]
	for _, e := range x.Projects {
		if e.Path != key {
			out = append(out, e)
		}
	}
	x.Projects = out
}

// Get returns the entry of scope key.
func (x *Index) Get(key string) (Entry, bool) {
	for _, e := range x.Projects {
		if e.Path == key {
			return e, true
		}
	}
	return Entry{}, false
}

// ScopesUsing returns every scope other than except that lists pack.
func (x *Index) ScopesUsing(pack, except string) []string {
	var out []string
	for _, e := range x.Projects {
		if e.Path == except {
			continue
		}
		for _, p := range e.Packs {
			if p == pack {
				out = append(out, e.Path)
				break
			}
		}
	}
	return out
}

// Prune removes entries whose path no longer exists on fsys, except the
// global scope. It returns the removed paths.
func (x *Index) Prune(fsys afero.Fs) []string {
	var removed []string
	kept := x.Projects[:0:0]
	for _, e := range x.Projects {
		if e.Path != GlobalKey {
			if ok, err := platform.Exists(fsys, e.Path); err == nil && !ok {
				removed = append(removed, e.Path)
				continue
			}
		}
		kept = append(kept, e)
	}
	x.Projects = kept
	return removed
}

// Store reads and writes the index file.
type Store struct {
	fs   afero.Fs
	path string
}

// NewStore returns a store for the index at path.
func NewStore(fsys afero.Fs, path string) *Store {
	return &Store{fs: fsys, path: path}
}

// Path returns the index file path.
func (s *Store) Path() string { return s.path }

// Load reads the index. A missing file yields an empty index; a corrupt one
// returns an error wrapping ErrUnreadable.
func (s *Store) Load() (*Index, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Index{IndexVersion: CurrentVersion}, nil
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, s.path, err)
	}
	var x Index
	if err := yaml.Unmarshal(data, &x); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, s.path, err)
	}
	if x.IndexVersion > CurrentVersion {
		return nil, fmt.Errorf("%w: %s: version %d is newer than supported %d",
			ErrUnreadable, s.path, x.IndexVersion, CurrentVersion)
	}
	x.IndexVersion = CurrentVersion
	return &x, nil
}

// Save writes the index atomically.
func (s *Store) Save(x *Index) error {
	x.IndexVersion = CurrentVersion
	data, err := yaml.Marshal(x)
	if err != nil {
		return fmt.Errorf("marshaling reference index: %w", err)
	}
	if err := platform.WriteFileAtomic(s.fs, s.path, data, 0644); err != nil {
		return fmt.Errorf("writing reference index %s: %w", s.path, err)
	}
	return nil
}
