package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/bguidolim/mcs/internal/installer"
	"github.com/bguidolim/mcs/internal/platform"
	"github.com/bguidolim/mcs/internal/refindex"
	"github.com/bguidolim/mcs/internal/registry"
	"github.com/bguidolim/mcs/internal/scope"
	"github.com/bguidolim/mcs/internal/settings"
	"github.com/bguidolim/mcs/internal/state"
	"github.com/spf13/afero"
)

// RepoNameKey is the placeholder always resolved to the scope's name.
const RepoNameKey = "REPO_NAME"

// Engine converges scopes. Its collaborators are injected so tests can run
// it against an in-memory filesystem and recorded commands.
type Engine struct {
	Registry  *registry.Registry
	Fs        afero.Fs
	Installer *installer.Installer
	Index     *refindex.Store

	// LockPath is the advisory lock taken by mutating runs. Empty disables
	// locking.
	LockPath string

	Log *slog.Logger
	Now func() time.Time
}

// Request describes one sync.
type Request struct {
	Scope  scope.Scope
	Layout scope.Layout

	// Packs is the desired pack set for the scope.
	Packs []string

	// Exclusions replaces the stored component exclusions of the packs it
	// names. Packs it does not name keep their stored exclusions.
	Exclusions map[string][]string

	// Values overrides resolved placeholder values.
	Values map[string]string

	// DryRun computes the plan without applying it, taking the lock or
	// writing anything.
	DryRun bool
}

// Sync converges req.Scope to req.Packs. Lock and persistence failures are
// returned as errors; artifact failures are only reported.
func (e *Engine) Sync(ctx context.Context, req Request) (*Report, error) {
	if !req.DryRun && e.LockPath != "" {
		lock, err := platform.AcquireLock(e.LockPath)
		if err != nil {
			return nil, err
		}
		defer lock.Release()
	}

	r, err := e.begin(req)
	if err != nil {
		return nil, err
	}
	r.plan()
	if req.DryRun {
		return r.report, nil
	}
	r.apply(ctx)
	if err := r.commit(); err != nil {
		return r.report, err
	}
	return r.report, nil
}

// Status loads the stored state of a scope without changing anything.
func (e *Engine) Status(layout scope.Layout) (*state.SyncState, error) {
	return state.NewStore(e.Fs, layout.StatePath).Load()
}

func (e *Engine) logger() *slog.Logger {
	if e.Log != nil {
		return e.Log
	}
	return slog.New(slog.DiscardHandler)
}

// run is the working set of a single sync.
type run struct {
	e      *Engine
	req    Request
	log    *slog.Logger
	store  *state.Store
	st     *state.SyncState
	idx    *refindex.Index
	idxErr error
	doc    *settings.Document
	ledger *settings.Ledger
	merger *settings.Merger
	text   string
	values map[string]string
	report *Report

	packs  []*packRun
	byID   map[string]*packRun
	claims map[state.Kind]map[string]string

	settingsDirty bool
	ledgerDirty   bool
	textDirty     bool
	pending       []pendingOp
}

// packRun tracks one pack through plan and apply.
type packRun struct {
	id       string
	version  string
	want     *Desired
	prev     *state.ArtifactRecord
	rec      *state.ArtifactRecord
	excluded []string
	removing bool
	failed   bool // pack-level error; the stored record is left untouched
	rep      *PackReport
}

// pendingOp is an applied change to a shared document that is only durable
// once the document is written.
type pendingOp struct {
	pr *packRun
	op Operation
}

func (e *Engine) begin(req Request) (*run, error) {
	r := &run{
		e:      e,
		req:    req,
		log:    e.logger().With("scope", req.Scope.String()),
		store:  state.NewStore(e.Fs, req.Layout.StatePath),
		byID:   make(map[string]*packRun),
		claims: make(map[state.Kind]map[string]string),
		report: &Report{Scope: req.Scope.String(), DryRun: req.DryRun},
	}

	st, err := r.store.Load()
	if err != nil {
		return nil, err
	}
	r.st = st

	r.idx = &refindex.Index{IndexVersion: refindex.CurrentVersion}
	if e.Index != nil {
		idx, err := e.Index.Load()
		if err != nil {
			r.idxErr = err
			r.warn(fmt.Sprintf("%v; shared resources will be kept", err))
		} else {
			r.idx = idx
		}
	}
	if !req.DryRun && r.idxErr == nil {
		for _, p := range r.idx.Prune(e.Fs) {
			r.log.Debug("pruned reference index entry", "path", p)
		}
	}

	if r.doc, err = settings.LoadDocument(e.Fs, req.Layout.SettingsPath); err != nil {
		return nil, err
	}
	if r.ledger, err = settings.LoadLedger(e.Fs, req.Layout.LedgerPath); err != nil {
		return nil, err
	}
	r.merger = settings.NewMerger(r.doc, r.ledger)

	data, err := afero.ReadFile(e.Fs, req.Layout.DocPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", req.Layout.DocPath, err)
	}
	r.text = string(data)

	r.values = make(map[string]string)
	for k, v := range st.ResolvedValues {
		r.values[k] = v
	}
	for k, v := range req.Values {
		r.values[k] = v
	}
	r.values[RepoNameKey] = req.Scope.Name()
	return r, nil
}

func (r *run) warn(msg string) {
	r.report.Warnings = append(r.report.Warnings, msg)
}

func (r *run) packValues(p *registry.Pack) map[string]string {
	return withDefaults(p, r.values)
}

// ScopeValues returns the placeholder values pack p resolves to in sc, given
// the values stored in the scope's state.
func ScopeValues(p *registry.Pack, stored map[string]string, sc scope.Scope) map[string]string {
	values := make(map[string]string, len(stored)+1)
	for k, v := range stored {
		values[k] = v
	}
	values[RepoNameKey] = sc.Name()
	return withDefaults(p, values)
}

func withDefaults(p *registry.Pack, values map[string]string) map[string]string {
	out := make(map[string]string, len(values)+len(p.Placeholders))
	for _, ph := range p.Placeholders {
		out[ph.Key] = ph.Default
	}
	for k, v := range values {
		out[k] = v
	}
	return out
}

func (r *run) exclusions(id string) []string {
	if v, ok := r.req.Exclusions[id]; ok {
		return v
	}
	return r.st.Excluded(id)
}

func uniqSorted(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// commit writes the shared documents' final state into the SyncState and
// persists it together with the reference index.
func (r *run) commit() error {
	for _, pr := range r.packs {
		if pr.failed {
			continue
		}
		switch {
		case pr.removing && pr.rec.IsEmpty():
			r.st.RemovePack(pr.id)
		case pr.removing:
			pr.rep.Warnings = append(pr.rep.Warnings,
				fmt.Sprintf("%d artifact(s) could not be removed; pack stays configured until they are", pr.rec.Count()))
			r.st.SetPack(pr.id, pr.rec)
		default:
			r.st.SetPack(pr.id, pr.rec)
			r.st.SetExcluded(pr.id, pr.excluded)
		}
	}

	r.st.ResolvedValues = make(map[string]string, len(r.values))
	for k, v := range r.values {
		if k != RepoNameKey {
			r.st.ResolvedValues[k] = v
		}
	}

	if err := r.store.Save(r.st); err != nil {
		return err
	}

	if r.e.Index == nil || r.idxErr != nil {
		return nil
	}
	now := time.Now
	if r.e.Now != nil {
		now = r.e.Now
	}
	r.idx.Set(r.req.Scope.Key(), r.st.ConfiguredPacks, now())
	if err := r.e.Index.Save(r.idx); err != nil {
		var pe *state.PersistenceError
		if errors.As(err, &pe) {
			return err
		}
		return &state.PersistenceError{Path: r.e.Index.Path(), Err: err}
	}
	return nil
}
