package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/bguidolim/mcs/internal/compose"
	"github.com/bguidolim/mcs/internal/installer"
	"github.com/bguidolim/mcs/internal/platform"
	"github.com/bguidolim/mcs/internal/settings"
	"github.com/bguidolim/mcs/internal/state"
)

// errUntracked marks an operation that succeeded without changing what
// the pack owns, so its record stays as it was.
var errUntracked = errors.New("untracked")

// apply executes the planned operations: every removal first, then
// additions and updates pack by pack. Each result updates the pack's
// working record; failures leave the record as it was.
func (r *run) apply(ctx context.Context) {
	for _, pr := range r.packs {
		if pr.failed {
			continue
		}
		for _, o := range pr.rep.Operations {
			if o.Op == OpRemove {
				r.applyOne(ctx, pr, o)
			}
		}
	}
	for _, pr := range r.packs {
		if pr.failed || pr.removing {
			continue
		}
		for _, o := range pr.rep.Operations {
			if o.Op == OpAdd || o.Op == OpUpdate {
				r.applyOne(ctx, pr, o)
			}
		}
	}
	r.flush()
}

func (r *run) applyOne(ctx context.Context, pr *packRun, o Operation) {
	log := r.log.With("pack", pr.id, "kind", string(o.Kind), "artifact", o.Artifact, "op", string(o.Op))

	err := r.exec(ctx, pr, o)
	switch {
	case errors.Is(err, errUntracked):
		log.Debug("applied without ownership change")
		return
	case err != nil:
		log.Warn("artifact failed", "error", err)
		pr.failure(o.Kind, o.Artifact, o.Op, err)
		return
	}
	log.Debug("applied")

	if o.Op == OpRemove {
		pr.rec.Remove(o.Kind, o.Artifact)
	} else {
		pr.rec.Add(o.Kind, o.Artifact)
	}
	switch o.Kind {
	case state.KindHook, state.KindSetting, state.KindSection:
		r.pending = append(r.pending, pendingOp{pr: pr, op: o})
	}
}

func (r *run) exec(ctx context.Context, pr *packRun, o Operation) error {
	in := r.e.Installer
	layout := r.req.Layout
	remove := o.Op == OpRemove
	if remove && o.keep {
		return nil
	}

	switch o.Kind {
	case state.KindPackage:
		if remove {
			return in.RemovePackage(ctx, o.Artifact)
		}
		return in.InstallPackage(ctx, o.Artifact)

	case state.KindServer:
		ref := state.ParseServerRef(o.Artifact)
		if remove {
			return in.UnregisterServer(ctx, ref.Scope, ref.Name)
		}
		return in.RegisterServer(ctx, ref.Scope, pr.want.servers[o.Artifact])

	case state.KindPlugin:
		if remove {
			return in.RemovePlugin(ctx, o.Artifact)
		}
		return in.InstallPlugin(ctx, o.Artifact)

	case state.KindFile:
		dest := filepath.Join(layout.FileRoot, filepath.FromSlash(o.Artifact))
		if remove {
			return installer.RemoveFile(r.e.Fs, dest, layout.FileRoot)
		}
		spec := pr.want.files[o.Artifact]
		return installer.WriteFile(r.e.Fs, dest, spec.data, spec.executable)

	case state.KindHook:
		r.settingsDirty = true
		if remove {
			r.doc.RemoveHook(o.Artifact)
			return nil
		}
		h := pr.want.hooks[o.Artifact]
		r.doc.AddHook(h.event, h.matcher, o.Artifact)
		return nil

	case state.KindSetting:
		return r.execSetting(pr, o)

	case state.KindIgnore:
		if remove {
			return installer.RemoveIgnoreEntry(r.e.Fs, layout.IgnorePath, o.Artifact)
		}
		return installer.AddIgnoreEntry(r.e.Fs, layout.IgnorePath, o.Artifact)

	case state.KindSection:
		return r.execSection(pr, o)

	case state.KindShell:
		if !remove {
			return in.RunShell(ctx, layout.WorkDir, pr.want.shells[o.Artifact].Run)
		}
		p, ok := r.e.Registry.Get(pr.id)
		if !ok {
			pr.rep.Warnings = append(pr.rep.Warnings,
				fmt.Sprintf("pack %s is no longer registered; undo of %s skipped", pr.id, o.Artifact))
			return nil
		}
		c, ok := p.Component(o.Artifact)
		if !ok || c.Shell == nil {
			return nil
		}
		return in.RunShell(ctx, layout.WorkDir, c.Shell.Undo)
	}
	return fmt.Errorf("unsupported artifact kind %q", o.Kind)
}

func (r *run) execSetting(pr *packRun, o Operation) error {
	key := o.Artifact
	switch o.Op {
	case OpRemove:
		if r.merger.Release(pr.id, key) {
			r.settingsDirty, r.ledgerDirty = true, true
		}
		return nil

	case OpUpdate:
		if _, err := r.doc.SetIfAbsent(key, pr.want.settings[key]); err != nil {
			return err
		}
		r.ledger.Set(key, pr.id, pr.version)
		r.settingsDirty, r.ledgerDirty = true, true
		return nil
	}

	if owner, ok := r.ledger.Owner(key); ok && owner.Pack != pr.id && !r.st.IsConfigured(owner.Pack) {
		r.ledger.Delete(key)
		r.ledgerDirty = true
	}
	out, err := r.merger.Claim(pr.id, pr.version, key, pr.want.settings[key])
	if err != nil {
		return err
	}
	r.ledgerDirty = true
	switch out {
	case settings.UserOwned:
		return errUntracked
	case settings.Written:
		r.settingsDirty = true
	}
	return nil
}

func (r *run) execSection(pr *packRun, o Operation) error {
	var (
		next string
		err  error
	)
	if o.Op == OpRemove {
		next, err = compose.RemoveSection(r.text, o.Artifact)
	} else {
		next, err = compose.UpsertSection(r.text, pr.want.sections[o.Artifact])
	}
	var unpaired *compose.UnpairedMarkerError
	if errors.As(err, &unpaired) {
		pr.rep.Warnings = append(pr.rep.Warnings, unpaired.Error())
		return errUntracked
	}
	if err != nil {
		return err
	}
	if next != r.text {
		r.text = next
		r.textDirty = true
	}
	return nil
}

// flush writes the shared documents. If one cannot be written, the
// operations that changed it are rolled back in their records and reported
// as failures.
func (r *run) flush() {
	layout := r.req.Layout

	var settingsErr, ledgerErr, textErr error
	if r.settingsDirty {
		settingsErr = settings.SaveDocument(r.e.Fs, layout.SettingsPath, r.doc)
	}
	if r.ledgerDirty && settingsErr == nil {
		ledgerErr = settings.SaveLedger(r.e.Fs, layout.LedgerPath, r.ledger)
	}
	if r.textDirty {
		textErr = platform.WriteFileAtomic(r.e.Fs, layout.DocPath, []byte(r.text), 0644)
	}

	for _, p := range r.pending {
		var err error
		switch p.op.Kind {
		case state.KindHook:
			err = settingsErr
		case state.KindSetting:
			err = settingsErr
			if err == nil {
				err = ledgerErr
			}
		case state.KindSection:
			err = textErr
		}
		if err == nil {
			continue
		}
		if p.op.Op == OpRemove {
			p.pr.rec.Add(p.op.Kind, p.op.Artifact)
		} else if p.op.Op == OpAdd {
			p.pr.rec.Remove(p.op.Kind, p.op.Artifact)
		}
		p.pr.failure(p.op.Kind, p.op.Artifact, p.op.Op, err)
	}
}
