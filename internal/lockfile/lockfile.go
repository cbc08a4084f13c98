// Package lockfile pins external packs to exact revisions. The lockfile is
// a flat YAML map of pack id to git commit, written by `sync --update` and
// honored by `sync --lock`.
package lockfile

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/bguidolim/mcs/internal/platform"
	"github.com/spf13/afero"
	"go.yaml.in/yaml/v3"
)

// FileName is the lockfile name at the project root.
const FileName = "mcs.lock.yaml"

// Lockfile maps pack ids to pinned refs.
type Lockfile map[string]string

// IDs returns the pinned pack ids sorted.
func (l Lockfile) IDs() []string {
	ids := make([]string, 0, len(l))
	for id := range l {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Load reads the lockfile at path. A missing file yields an empty lockfile
// and exists=false.
func Load(fsys afero.Fs, path string) (lf Lockfile, exists bool, err error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if os.IsNotExist(err) {
			return Lockfile{}, false, nil
		}
		return nil, false, fmt.Errorf("reading lockfile %s: %w", path, err)
	}
	lf = Lockfile{}
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, true, fmt.Errorf("parsing lockfile %s: %w", path, err)
	}
	return lf, true, nil
}

// Save writes the lockfile atomically.
func Save(fsys afero.Fs, path string, lf Lockfile) error {
	data, err := yaml.Marshal(map[string]string(lf))
	if err != nil {
		return fmt.Errorf("marshaling lockfile: %w", err)
	}
	if err := platform.WriteFileAtomic(fsys, path, data, 0644); err != nil {
		return fmt.Errorf("writing lockfile %s: %w", path, err)
	}
	return nil
}

// Pinner moves pack checkouts between revisions.
type Pinner interface {
	// Has reports whether an external checkout exists for pack id.
	Has(id string) bool
	Checkout(ctx context.Context, id, ref string) error
	Pull(ctx context.Context, id string) error
	Head(ctx context.Context, id string) (string, error)
}

// CheckoutPinned moves every pinned pack to its recorded ref. Pins for
// packs without a checkout are returned as warnings.
func CheckoutPinned(ctx context.Context, lf Lockfile, p Pinner) ([]string, error) {
	var warnings []string
	for _, id := range lf.IDs() {
		if !p.Has(id) {
			warnings = append(warnings, fmt.Sprintf("pack %q is pinned in %s but not registered", id, FileName))
			continue
		}
		if err := p.Checkout(ctx, id, lf[id]); err != nil {
			return warnings, fmt.Errorf("checking out %s at %s: %w", id, lf[id], err)
		}
	}
	return warnings, nil
}

// Refresh pulls the latest revision of each external pack in ids and
// returns a lockfile pinning their new heads. Ids without a checkout
// (built-in packs) are skipped.
func Refresh(ctx context.Context, ids []string, p Pinner) (Lockfile, error) {
	lf := Lockfile{}
	for _, id := range ids {
		if !p.Has(id) {
			continue
		}
		if err := p.Pull(ctx, id); err != nil {
			return nil, fmt.Errorf("updating %s: %w", id, err)
		}
		head, err := p.Head(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("reading revision of %s: %w", id, err)
		}
		lf[id] = head
	}
	return lf, nil
}
