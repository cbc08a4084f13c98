package engine

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bguidolim/mcs/internal/compose"
	"github.com/bguidolim/mcs/internal/installer"
	"github.com/bguidolim/mcs/internal/platform"
	"github.com/bguidolim/mcs/internal/settings"
	"github.com/bguidolim/mcs/internal/state"
)

// plan splits packs into removals, additions and reconciliations, derives
// each desired record and fills the report with the operations that would
// converge the scope.
func (r *run) plan() {
	desired := uniqSorted(r.req.Packs)
	want := make(map[string]bool, len(desired))
	for _, id := range desired {
		want[id] = true
	}

	for _, id := range uniqSorted(r.st.ConfiguredPacks) {
		if want[id] {
			continue
		}
		prev := r.st.Record(id)
		pr := &packRun{
			id:       id,
			prev:     prev,
			rec:      prev.Clone(),
			removing: true,
			rep:      &PackReport{Pack: id, Status: StatusRemoved},
		}
		if p, ok := r.e.Registry.Get(id); ok {
			pr.version = p.Version
			pr.rep.Version = p.Version
		}
		r.addPack(pr)
	}

	for _, id := range desired {
		prev := r.st.Record(id)
		pr := &packRun{id: id, prev: prev, rec: prev.Clone(), rep: &PackReport{Pack: id}}
		if r.st.IsConfigured(id) {
			pr.rep.Status = StatusReconciled
		} else {
			pr.rep.Status = StatusAdded
		}
		r.addPack(pr)

		p, ok := r.e.Registry.Get(id)
		if !ok {
			pr.fail(fmt.Errorf("pack %q is not registered", id))
			continue
		}
		pr.version = p.Version
		pr.rep.Version = p.Version
		pr.excluded = r.exclusions(id)

		d, err := Desire(p, pr.excluded, r.packValues(p), r.req.Scope, r.req.Layout)
		if err != nil {
			pr.fail(err)
			continue
		}
		pr.want = d
		pr.rep.Warnings = append(pr.rep.Warnings, d.Warnings...)
	}

	r.seedClaims()
	for _, pr := range r.packs {
		if pr.failed {
			continue
		}
		r.planRemovals(pr)
		if !pr.removing {
			r.planAdditions(pr)
		}
		if pr.rep.Status == StatusReconciled && pr.rep.Changes() == 0 && len(pr.rep.Failures) == 0 {
			pr.rep.Status = StatusUnchanged
		}
	}
}

func (r *run) addPack(pr *packRun) {
	r.packs = append(r.packs, pr)
	r.byID[pr.id] = pr
	r.report.Packs = append(r.report.Packs, pr.rep)
}

func (pr *packRun) fail(err error) {
	pr.failed = true
	pr.rep.Status = StatusFailed
	pr.rep.Err = err
}

func (pr *packRun) op(k state.Kind, item string, op Op, note string) {
	pr.rep.Operations = append(pr.rep.Operations, Operation{Kind: k, Artifact: item, Op: op, Note: note})
}

func (pr *packRun) failure(k state.Kind, item string, op Op, err error) {
	pr.rep.Failures = append(pr.rep.Failures, &ApplyFailure{Pack: pr.id, Kind: k, Artifact: item, Op: op, Err: err})
}

// seedClaims records who owns what before anything new is claimed:
// artifacts a pack keeps, and everything held by packs that failed to load.
func (r *run) seedClaims() {
	for _, pr := range r.packs {
		if pr.removing {
			continue
		}
		for _, k := range state.Kinds {
			for _, item := range pr.prev.Items(k) {
				if pr.failed || pr.want.Record.Has(k, item) {
					r.claim(k, item, pr.id)
				}
			}
		}
	}
}

// claim assigns item to pack unless someone else already holds it, and
// returns the holder.
func (r *run) claim(k state.Kind, item, pack string) string {
	m := r.claims[k]
	if m == nil {
		m = make(map[string]string)
		r.claims[k] = m
	}
	if owner, ok := m[item]; ok {
		return owner
	}
	m[item] = pack
	return pack
}

// planRemovals schedules everything the pack recorded but no longer wants,
// in reverse install order.
func (r *run) planRemovals(pr *packRun) {
	for i := len(state.Kinds) - 1; i >= 0; i-- {
		k := state.Kinds[i]
		var gone []string
		if pr.removing {
			gone = pr.prev.Items(k)
		} else {
			_, gone = state.Diff(pr.prev, pr.want.Record, k)
		}
		for j := len(gone) - 1; j >= 0; j-- {
			r.planRemoval(pr, k, gone[j])
		}
		if k == state.KindSetting && !pr.removing {
			for _, key := range r.ledger.StaleKeys(pr.id, pr.want.SettingsKeys()) {
				if !pr.prev.Has(k, key) {
					r.planRemoval(pr, k, key)
				}
			}
		}
	}
}

func (r *run) planRemoval(pr *packRun, k state.Kind, item string) {
	o := Operation{Kind: k, Artifact: item, Op: OpRemove}
	switch {
	case k.Shared():
		if other := r.wantedInRun(k, item, pr.id); other != "" {
			o.keep, o.Note = true, "kept: still used by pack "+other
		} else if held, why := r.sharedHeld(pr.id); held {
			o.keep, o.Note = true, why
		}
	case k == state.KindSetting:
		if owner, ok := r.ledger.Owner(item); !ok || owner.Pack != pr.id {
			o.keep, o.Note = true, "not owned; left in place"
		}
	}
	pr.rep.Operations = append(pr.rep.Operations, o)
}

// sharedHeld reports whether another scope still uses pack, in which case
// its machine-wide resources stay. An unreadable index holds everything.
func (r *run) sharedHeld(pack string) (bool, string) {
	if r.idxErr != nil {
		return true, "kept: reference index unreadable"
	}
	users := r.idx.ScopesUsing(pack, r.req.Scope.Key())
	if len(users) == 0 {
		return false, ""
	}
	return true, fmt.Sprintf("kept: still used by %s", strings.Join(users, ", "))
}

// releases reports whether pack gives up key during this run.
func (r *run) releases(pack, key string) bool {
	other, ok := r.byID[pack]
	if !ok {
		return !r.st.IsConfigured(pack)
	}
	if other.failed {
		return false
	}
	return other.removing || !other.want.Record.Has(state.KindSetting, key)
}

// wantedInRun returns a pack other than pack that wants item in this run.
func (r *run) wantedInRun(k state.Kind, item, pack string) string {
	for _, other := range r.packs {
		if other.id == pack || other.removing || other.want == nil {
			continue
		}
		if other.want.Record.Has(k, item) {
			return other.id
		}
	}
	return ""
}

// releasedInRun reports whether a pack other than claimant held item and
// drops it in this run.
func (r *run) releasedInRun(k state.Kind, item, claimant string) bool {
	for _, other := range r.packs {
		if other.id == claimant || other.failed || !other.prev.Has(k, item) {
			continue
		}
		if other.removing || !other.want.Record.Has(k, item) {
			return true
		}
	}
	return false
}

// planAdditions schedules new and drifted artifacts in component order.
func (r *run) planAdditions(pr *packRun) {
	for _, a := range pr.want.order {
		inPrev := pr.prev.Has(a.kind, a.item)
		if !inPrev {
			if owner := r.claim(a.kind, a.item, pr.id); owner != pr.id {
				var err error = &ConflictError{Kind: a.kind, Artifact: a.item, Owner: owner}
				if a.kind == state.KindSetting {
					err = &settings.ConflictError{Key: a.item, Owner: owner, Claimant: pr.id}
				}
				pr.failure(a.kind, a.item, OpAdd, err)
				continue
			}
		}
		// Something another pack gives up this run is removed before
		// additions apply, so it has to be put back rather than skipped.
		handover := !inPrev && r.releasedInRun(a.kind, a.item, pr.id)

		switch a.kind {
		case state.KindPackage, state.KindServer, state.KindPlugin, state.KindShell:
			if !inPrev {
				pr.op(a.kind, a.item, OpAdd, "")
			}

		case state.KindFile:
			spec := pr.want.files[a.item]
			dest := filepath.Join(r.req.Layout.FileRoot, filepath.FromSlash(a.item))
			current := installer.FileCurrent(r.e.Fs, dest, spec.data)
			switch {
			case inPrev && !current:
				pr.op(a.kind, a.item, OpUpdate, "")
			case !inPrev && !current:
				if exists, _ := platform.Exists(r.e.Fs, dest); exists && !handover {
					pr.op(a.kind, a.item, OpSkip, "exists and is not managed")
					continue
				}
				pr.op(a.kind, a.item, OpAdd, "")
			case !inPrev:
				pr.op(a.kind, a.item, OpAdd, "already up to date")
			}

		case state.KindHook:
			has := r.doc.HasHook(a.item)
			switch {
			case !inPrev && has && !handover:
				pr.op(a.kind, a.item, OpSkip, "already registered")
			case !inPrev:
				pr.op(a.kind, a.item, OpAdd, "")
			case !has:
				pr.op(a.kind, a.item, OpUpdate, "")
			}

		case state.KindSetting:
			r.planSetting(pr, a.item, inPrev)

		case state.KindIgnore:
			has, err := installer.HasIgnoreEntry(r.e.Fs, r.req.Layout.IgnorePath, a.item)
			switch {
			case err != nil:
				pr.failure(a.kind, a.item, OpAdd, err)
			case !inPrev && has && !handover:
				pr.op(a.kind, a.item, OpSkip, "already present")
			case !inPrev:
				pr.op(a.kind, a.item, OpAdd, "")
			case !has:
				pr.op(a.kind, a.item, OpUpdate, "")
			}

		case state.KindSection:
			r.planSection(pr, a.item, inPrev)
		}
	}
}

func (r *run) planSetting(pr *packRun, key string, inPrev bool) {
	const k = state.KindSetting
	owner, owned := r.ledger.Owner(key)
	_, exists := r.doc.Lookup(key)

	if owned && owner.Pack != pr.id {
		if !r.releases(owner.Pack, key) {
			pr.failure(k, key, OpAdd, &settings.ConflictError{Key: key, Owner: owner.Pack, Claimant: pr.id})
			return
		}
		if r.st.IsConfigured(owner.Pack) {
			// The current owner removes it first.
			pr.op(k, key, OpAdd, "")
			return
		}
		owned = false
	}

	switch {
	case owned && !inPrev:
		pr.op(k, key, OpAdd, "")
	case owned && !exists:
		pr.op(k, key, OpUpdate, "")
	case owned:
	case exists && inPrev:
		pr.rep.Operations = append(pr.rep.Operations, Operation{Kind: k, Artifact: key, Op: OpRemove, Note: "user-owned", keep: true})
	case exists:
		pr.op(k, key, OpSkip, "user-owned")
	default:
		pr.op(k, key, OpAdd, "")
	}
}

func (r *run) planSection(pr *packRun, id string, inPrev bool) {
	const k = state.KindSection
	if probs := compose.Problems(r.text); len(probs) > 0 {
		msg := fmt.Sprintf("%s has damaged markers (section %q %s); section %q left unchanged",
			r.req.Layout.DocPath, probs[0].ID, probs[0].Reason, id)
		pr.rep.Warnings = append(pr.rep.Warnings, msg)
		pr.op(k, id, OpSkip, "damaged markers")
		return
	}
	c := pr.want.sections[id]
	var current *compose.Section
	for _, s := range compose.ParseSections(r.text) {
		if s.ID == id {
			s := s
			current = &s
			break
		}
	}
	switch {
	case current == nil && inPrev:
		pr.op(k, id, OpUpdate, "missing")
	case current == nil:
		pr.op(k, id, OpAdd, "")
	case compose.NeedsUpdate(*current, c):
		if inPrev {
			pr.op(k, id, OpUpdate, "")
		} else {
			pr.op(k, id, OpAdd, "replaces existing section")
		}
	case !inPrev:
		pr.op(k, id, OpAdd, "already up to date")
	}
}
