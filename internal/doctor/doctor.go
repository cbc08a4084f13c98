// Package doctor runs read-only health checks over one scope: stored state,
// the instructions document, owned settings keys, copied files, the
// reference index and external pack checkouts.
package doctor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/bguidolim/mcs/internal/catalog"
	"github.com/bguidolim/mcs/internal/compose"
	"github.com/bguidolim/mcs/internal/engine"
	"github.com/bguidolim/mcs/internal/integrations"
	"github.com/bguidolim/mcs/internal/platform"
	"github.com/bguidolim/mcs/internal/refindex"
	"github.com/bguidolim/mcs/internal/registry"
	"github.com/bguidolim/mcs/internal/scope"
	"github.com/bguidolim/mcs/internal/settings"
	"github.com/bguidolim/mcs/internal/state"
	"github.com/spf13/afero"
)

// Status is the outcome of one check.
type Status int

const (
	OK Status = iota
	Warn
	Fail
)

func (s Status) String() string {
	switch s {
	case OK:
		return "[ OK ]"
	case Warn:
		return "[WARN]"
	default:
		return "[FAIL]"
	}
}

// Result is one line of a check.
type Result struct {
	Status  Status
	Message string
}

// Check is a titled group of results.
type Check struct {
	Title   string
	Results []Result
}

func (c *Check) add(s Status, format string, args ...interface{}) {
	c.Results = append(c.Results, Result{Status: s, Message: fmt.Sprintf(format, args...)})
}

// Report is the outcome of a doctor run.
type Report struct {
	Scope  string
	Checks []*Check
}

func (r *Report) check(title string) *Check {
	c := &Check{Title: title}
	r.Checks = append(r.Checks, c)
	return c
}

// Count returns how many results have status s.
func (r *Report) Count(s Status) int {
	n := 0
	for _, c := range r.Checks {
		for _, res := range c.Results {
			if res.Status == s {
				n++
			}
		}
	}
	return n
}

// Healthy reports whether no check failed.
func (r *Report) Healthy() bool {
	return r.Count(Fail) == 0
}

// Print writes the report in the [ OK ] / [WARN] / [FAIL] format.
func (r *Report) Print(w io.Writer) {
	fmt.Fprintf(w, "Doctor: %s\n", r.Scope)
	for _, c := range r.Checks {
		fmt.Fprintf(w, "\n%s:\n", c.Title)
		for _, res := range c.Results {
			fmt.Fprintf(w, "  %s %s\n", res.Status, res.Message)
		}
	}
	fmt.Fprintf(w, "\n%d warning(s), %d failure(s)\n", r.Count(Warn), r.Count(Fail))
}

// Doctor holds the collaborators the checks read from.
type Doctor struct {
	Fs       afero.Fs
	Registry *registry.Registry
	Index    *refindex.Store
	Packs    []catalog.Entry
	Now      func() time.Time
	// LookupTool locates an external tool's binary. The tools check is
	// skipped when nil.
	LookupTool func(integrations.ToolName) (string, bool)
}

func (d *Doctor) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Check inspects sc without modifying anything.
func (d *Doctor) Check(sc scope.Scope, layout scope.Layout) *Report {
	r := &Report{Scope: sc.String()}

	st := d.checkState(r.check("Sync state"), layout)
	d.checkDocument(r.check("Instructions document"), sc, layout, st)
	d.checkSettings(r.check("Settings ownership"), layout)
	if st != nil {
		d.checkFiles(r.check("Copied files"), layout, st)
	}
	d.checkIndex(r.check("Reference index"), sc, st)
	d.checkPacks(r.check("Packs"))
	if d.LookupTool != nil {
		d.checkTools(r.check("External tools"))
	}
	return r
}

func (d *Doctor) checkTools(c *Check) {
	for _, tool := range integrations.AllTools() {
		if path, ok := d.LookupTool(tool); ok {
			c.add(OK, "%s: %s", tool, path)
		} else {
			c.add(Warn, "%s not found on PATH (%s)", integrations.Binary(tool), toolPurpose[tool])
		}
	}
}

var toolPurpose = map[integrations.ToolName]string{
	integrations.ClaudeCLI: "servers and plugins cannot be registered",
	integrations.BrewCLI:   "packages cannot be installed",
	integrations.GitCLI:    "external packs cannot be fetched",
}

func (d *Doctor) checkState(c *Check, layout scope.Layout) *state.SyncState {
	st, err := state.NewStore(d.Fs, layout.StatePath).Load()
	if err != nil {
		c.add(Fail, "%v", err)
		return nil
	}
	c.add(OK, "%s: %d pack(s) configured", layout.StatePath, len(st.ConfiguredPacks))

	for _, id := range st.ConfiguredPacks {
		if _, ok := d.Registry.Get(id); !ok {
			c.add(Warn, "pack %s is configured but not available; the next sync removes it", id)
		}
	}
	for id := range st.PackArtifacts {
		if !st.IsConfigured(id) {
			c.add(Warn, "artifacts recorded for %s, which is not configured", id)
		}
	}
	return st
}

func (d *Doctor) checkDocument(c *Check, sc scope.Scope, layout scope.Layout, st *state.SyncState) {
	data, err := afero.ReadFile(d.Fs, layout.DocPath)
	if err != nil {
		if os.IsNotExist(err) {
			c.add(OK, "%s not present", layout.DocPath)
			return
		}
		c.add(Fail, "reading %s: %v", layout.DocPath, err)
		return
	}
	text := string(data)

	problems := compose.Problems(text)
	for _, p := range problems {
		c.add(Fail, "%s %s", layout.DocPath, p)
	}
	if len(problems) == 0 {
		c.add(OK, "%s markers are paired", layout.DocPath)
	}
	if st == nil {
		return
	}

	present := make(map[string]compose.Section)
	for _, s := range compose.ParseSections(text) {
		present[s.ID] = s
	}
	for _, id := range st.ConfiguredPacks {
		p, ok := d.Registry.Get(id)
		if !ok {
			continue
		}
		want, err := engine.Desire(p, st.Excluded(id), engine.ScopeValues(p, st.ResolvedValues, sc), sc, layout)
		if err != nil {
			c.add(Fail, "%v", err)
			continue
		}
		rec := st.Record(id)
		for _, contrib := range want.Sections() {
			if !rec.Has(state.KindSection, contrib.ID) {
				continue
			}
			s, ok := present[contrib.ID]
			switch {
			case !ok:
				c.add(Warn, "section %s of %s is missing; run sync", contrib.ID, id)
			case compose.Outdated(s.Version, contrib.Version):
				c.add(Warn, "section %s is v%s, pack %s is v%s; run sync", contrib.ID, s.Version, id, contrib.Version)
			case !compose.SameContent(s.Content, contrib.Content):
				c.add(Warn, "section %s differs from pack %s content", contrib.ID, id)
			default:
				c.add(OK, "section %s is up to date", contrib.ID)
			}
		}
	}
}

func (d *Doctor) checkSettings(c *Check, layout scope.Layout) {
	doc, err := settings.LoadDocument(d.Fs, layout.SettingsPath)
	if err != nil {
		c.add(Fail, "%v", err)
		return
	}
	ledger, err := settings.LoadLedger(d.Fs, layout.LedgerPath)
	if err != nil {
		c.add(Fail, "%v", err)
		return
	}
	keys := ledger.Keys()
	missing := 0
	for _, k := range keys {
		if _, ok := doc.Lookup(k); !ok {
			owner, _ := ledger.Owner(k)
			c.add(Warn, "key %s owned by %s is missing from %s", k, owner.Pack, layout.SettingsPath)
			missing++
		}
	}
	if missing == 0 {
		c.add(OK, "%d owned key(s) present", len(keys))
	}
}

func (d *Doctor) checkFiles(c *Check, layout scope.Layout, st *state.SyncState) {
	total, missing := 0, 0
	for _, id := range st.ConfiguredPacks {
		for _, f := range st.Record(id).Files {
			total++
			dest := filepath.Join(layout.FileRoot, filepath.FromSlash(f))
			if ok, err := platform.Exists(d.Fs, dest); err != nil || !ok {
				c.add(Warn, "%s (pack %s) is missing", dest, id)
				missing++
			}
		}
	}
	if missing == 0 {
		c.add(OK, "%d recorded file(s) present", total)
	}
}

func (d *Doctor) checkIndex(c *Check, sc scope.Scope, st *state.SyncState) {
	if d.Index == nil {
		return
	}
	idx, err := d.Index.Load()
	if err != nil {
		c.add(Fail, "%v", err)
		return
	}
	stale := idx.Prune(d.Fs)
	for _, p := range stale {
		c.add(Warn, "stale entry %s; run doctor --fix", p)
	}
	if len(stale) == 0 {
		c.add(OK, "%s: %d scope(s), none stale", d.Index.Path(), len(idx.Projects))
	}
	if st == nil {
		return
	}
	entry, ok := idx.Get(sc.Key())
	if len(st.ConfiguredPacks) > 0 && (!ok || !sameSet(entry.Packs, st.ConfiguredPacks)) {
		c.add(Warn, "entry for %s does not match its configured packs; run sync", sc)
	}
}

func (d *Doctor) checkPacks(c *Check) {
	for _, le := range d.Registry.Errors() {
		c.add(Fail, "%v", le)
	}
	now := d.now()
	for _, e := range d.Packs {
		if e.IsStale(now, catalog.DefaultMaxAge) {
			c.add(Warn, "%s not updated since %s; run pack update", e.Identifier, e.UpdatedAt.Format(time.DateOnly))
		} else {
			c.add(OK, "%s is current", e.Identifier)
		}
	}
	if len(c.Results) == 0 {
		c.add(OK, "%d pack(s) loaded", len(d.Registry.IDs()))
	}
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, x := range a {
		seen[x] = true
	}
	for _, x := range b {
		if !seen[x] {
			return false
		}
	}
	return true
}

// Fix prunes stale reference index entries under the process lock and
// returns the removed paths. An unreadable index is left alone.
func (d *Doctor) Fix(lockPath string) ([]string, error) {
	if d.Index == nil {
		return nil, nil
	}
	lock, err := platform.AcquireLock(lockPath)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	idx, err := d.Index.Load()
	if err != nil {
		return nil, fmt.Errorf("not rewriting index: %w", err)
	}
	removed := idx.Prune(d.Fs)
	if len(removed) == 0 {
		return nil, nil
	}
	if err := d.Index.Save(idx); err != nil {
		return nil, err
	}
	return removed, nil
}
