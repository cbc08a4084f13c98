package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bguidolim/mcs/internal/engine"
	"github.com/bguidolim/mcs/internal/lockfile"
	"github.com/bguidolim/mcs/internal/picker"
	"github.com/bguidolim/mcs/internal/registry"
	"github.com/bguidolim/mcs/internal/scope"
	"github.com/bguidolim/mcs/internal/state"
	"github.com/bguidolim/mcs/internal/userdata"
	"github.com/spf13/cobra"
)

var (
	syncPacks         []string
	syncAll           bool
	syncCustomize     bool
	syncDryRun        bool
	syncGlobal        bool
	syncLock          bool
	syncUpdate        bool
	syncSet           []string
	syncAllowFailures bool
)

func init() {
	f := syncCmd.Flags()
	f.StringArrayVarP(&syncPacks, "pack", "p", nil, "Pack the scope should carry (repeatable); the scope ends up with exactly these")
	f.BoolVar(&syncAll, "all", false, "Select every available pack")
	f.BoolVar(&syncCustomize, "customize", false, "Choose packs and excluded components interactively")
	f.BoolVar(&syncDryRun, "dry-run", false, "Show the plan without changing anything")
	f.BoolVarP(&syncGlobal, "global", "g", false, "Sync the global scope instead of the current project")
	f.BoolVar(&syncLock, "lock", false, "Check out external packs at the revisions pinned in "+lockfile.FileName)
	f.BoolVar(&syncUpdate, "update", false, "Pull external packs and rewrite "+lockfile.FileName)
	f.StringArrayVar(&syncSet, "set", nil, "Placeholder value as KEY=VALUE (repeatable)")
	f.BoolVar(&syncAllowFailures, "allow-failures", false, "Exit 0 even if some artifacts failed")
	syncCmd.MarkFlagsMutuallyExclusive("pack", "all")
	syncCmd.MarkFlagsMutuallyExclusive("lock", "update")
	syncCmd.MarkFlagsMutuallyExclusive("dry-run", "update")
	rootCmd.AddCommand(syncCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync [dir]",
	Short: "Converge a scope to the selected packs",
	Long: `Installs what the selected packs declare and removes what deselected packs
left behind. Without --pack or --all the configured packs are reconciled; on a
terminal they can be reselected first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	values, err := parseValues(syncSet)
	if err != nil {
		return err
	}
	a, err := newApp()
	if err != nil {
		return err
	}
	dir := ""
	if len(args) == 1 {
		dir = args[0]
	}
	sc, layout, err := resolveScope(a.fs, dir, syncGlobal)
	if err != nil {
		return err
	}
	st, err := state.NewStore(a.fs, layout.StatePath).Load()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	// Pinning moves checkouts under the mcs home, so the lock is held from
	// here through the sync itself.
	holdsLock := false
	if syncLock || syncUpdate {
		lock, err := a.lock()
		if err != nil {
			return err
		}
		defer lock.Release()
		holdsLock = true

		ids := requestedPacks(syncPacks, syncAll, catalogIDs(a), st.ConfiguredPacks)
		if err := a.pin(ctx, out, cmd.ErrOrStderr(), sc, ids); err != nil {
			return err
		}
	}

	reg := a.loadRegistry()
	packs := requestedPacks(syncPacks, syncAll, reg.IDs(), st.ConfiguredPacks)

	p := picker.New(cmd.InOrStdin(), out)
	if len(syncPacks) == 0 && !syncAll && (syncCustomize || stdinIsTerminal(cmd)) {
		packs, err = p.Packs(selectable(reg, sc), st.ConfiguredPacks)
		if err != nil {
			return err
		}
	}
	packs = withCore(packs, sc)

	var exclusions map[string][]string
	if syncCustomize {
		exclusions = make(map[string][]string)
		for _, id := range packs {
			pk, ok := reg.Get(id)
			if !ok || len(pk.Components) == 0 {
				continue
			}
			ex, err := p.Exclusions(pk, st.Excluded(id))
			if err != nil {
				return err
			}
			exclusions[id] = ex
		}
	}

	eng := a.engine(layout)
	switch {
	case holdsLock:
		eng.LockPath = ""
	case !syncDryRun:
		if err := userdata.EnsureRoot(); err != nil {
			return err
		}
	}
	rep, err := eng.Sync(ctx, engine.Request{
		Scope:      sc,
		Layout:     layout,
		Packs:      packs,
		Exclusions: exclusions,
		Values:     values,
		DryRun:     syncDryRun,
	})
	if rep != nil {
		rep.Print(out)
	}
	if err != nil {
		return err
	}
	if rep.Failed() && !syncAllowFailures {
		return engine.ErrIncomplete
	}
	return nil
}

// pin applies --lock or --update to the external packs among ids.
func (a *app) pin(ctx context.Context, out, errOut io.Writer, sc scope.Scope, ids []string) error {
	path := a.lockfilePath(sc)
	if syncUpdate {
		lf, err := lockfile.Refresh(ctx, ids, a.catalog)
		if err != nil {
			return err
		}
		if err := lockfile.Save(a.fs, path, lf); err != nil {
			return err
		}
		fmt.Fprintf(out, "Pinned %d pack(s) in %s\n", len(lf), path)
		return nil
	}

	lf, exists, err := lockfile.Load(a.fs, path)
	if err != nil {
		return err
	}
	if !exists {
		fmt.Fprintf(errOut, "Warning: %s not found; packs stay at their current revisions\n", path)
		return nil
	}
	warnings, err := lockfile.CheckoutPinned(ctx, lf, a.catalog)
	for _, w := range warnings {
		fmt.Fprintf(errOut, "Warning: %s\n", w)
	}
	return err
}

// requestedPacks is the desired pack set from flags: every available pack
// for --all, the --pack list, or otherwise what the scope already has.
func requestedPacks(explicit []string, all bool, available, configured []string) []string {
	switch {
	case all:
		return append([]string(nil), available...)
	case len(explicit) > 0:
		return append([]string(nil), explicit...)
	default:
		return append([]string(nil), configured...)
	}
}

// withCore adds the core pack to project scopes.
func withCore(ids []string, sc scope.Scope) []string {
	if sc.Global {
		return ids
	}
	for _, id := range ids {
		if id == registry.CorePackID {
			return ids
		}
	}
	return append(ids, registry.CorePackID)
}

// selectable lists the packs offered by the picker. Core is implied for
// projects and not offered there.
func selectable(reg *registry.Registry, sc scope.Scope) []*registry.Pack {
	var out []*registry.Pack
	for _, p := range reg.Packs() {
		if !sc.Global && p.ID == registry.CorePackID {
			continue
		}
		out = append(out, p)
	}
	return out
}

func catalogIDs(a *app) []string {
	entries := a.catalog.List()
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.Identifier
	}
	return ids
}

// parseValues turns --set KEY=VALUE pairs into placeholder values.
func parseValues(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --set %q: expected KEY=VALUE", pair)
		}
		values[k] = v
	}
	return values, nil
}

func stdinIsTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.InOrStdin().(*os.File)
	return ok && picker.IsTerminal(f)
}
