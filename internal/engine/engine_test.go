package engine

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bguidolim/mcs/internal/compose"
	"github.com/bguidolim/mcs/internal/manifest"
	"github.com/bguidolim/mcs/internal/platform"
	"github.com/bguidolim/mcs/internal/refindex"
	"github.com/bguidolim/mcs/internal/registry"
	"github.com/bguidolim/mcs/internal/settings"
	"github.com/bguidolim/mcs/internal/state"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func iosPack(t *testing.T) *registry.Pack {
	return loadPack(t, iosManifest, map[string]string{"hooks/hook.sh": "#!/bin/sh\necho __REPO_NAME__\n"})
}

func docsPack(t *testing.T) *registry.Pack {
	return loadPack(t, docsManifest, nil)
}

func TestSync_FreshInstall(t *testing.T) {
	h := newHarness(t, iosPack(t))
	sc, l := h.project(t, "/work/app")

	rep := h.sync(t, sc, l, "ios")

	require.False(t, rep.Failed(), "failures: %v", rep.Failures())
	pr := rep.Pack("ios")
	require.NotNil(t, pr)
	assert.Equal(t, StatusAdded, pr.Status)

	st := h.state(t, l)
	assert.Equal(t, []string{"ios"}, st.ConfiguredPacks)
	rec := st.Record("ios")
	assert.Equal(t, []state.ServerRef{{Name: "xbuild", Scope: "local"}}, rec.MCPServers)
	assert.Equal(t, []string{"hooks/hook.sh"}, rec.Files)
	assert.Equal(t, []string{"node"}, rec.BrewPackages)
	assert.Equal(t, []string{"bash .claude/hooks/hook.sh"}, rec.HookCommands)
	assert.Equal(t, []string{".xcodebuildmcp"}, rec.GitignoreEntries)
	assert.Equal(t, []string{"ios"}, rec.TemplateSections)

	assert.Equal(t, "#!/bin/sh\necho app\n", h.read(t, "/work/app/.claude/hooks/hook.sh"))
	assert.Contains(t, h.read(t, "/work/app/.gitignore"), ".xcodebuildmcp")
	doc := h.read(t, l.DocPath)
	assert.Contains(t, doc, "<!-- begin:ios v1.0.0 -->")
	assert.Contains(t, doc, "Build app with xcodebuild.")

	settingsDoc, err := settings.LoadDocument(h.fs, l.SettingsPath)
	require.NoError(t, err)
	assert.True(t, settingsDoc.HasHook("bash .claude/hooks/hook.sh"))

	// Package before the service that depends on it.
	lines := h.runner.Lines()
	install := indexOf(lines, "brew install node")
	add := indexOfPrefix(lines, "claude mcp add -s local xbuild")
	require.GreaterOrEqual(t, install, 0)
	require.GreaterOrEqual(t, add, 0)
	assert.Less(t, install, add)

	idx, err := h.engine.Index.Load()
	require.NoError(t, err)
	e, ok := idx.Get("/work/app")
	require.True(t, ok)
	assert.Equal(t, []string{"ios"}, e.Packs)
}

func TestSync_Idempotent(t *testing.T) {
	h := newHarness(t, iosPack(t), docsPack(t))
	sc, l := h.project(t, "/work/app")

	first := h.sync(t, sc, l, "ios", "docs")
	require.False(t, first.Failed(), "failures: %v", first.Failures())
	require.NotZero(t, first.Changes())

	stateBefore := h.read(t, l.StatePath)
	docBefore := h.read(t, l.DocPath)
	h.runner.Reset()

	second := h.sync(t, sc, l, "ios", "docs")
	assert.Zero(t, second.Changes(), "second run planned %+v", second.Packs)
	assert.Empty(t, h.runner.Lines())
	assert.Equal(t, StatusUnchanged, second.Pack("ios").Status)
	assert.Equal(t, stateBefore, h.read(t, l.StatePath))
	assert.Equal(t, docBefore, h.read(t, l.DocPath))
}

func TestSync_AddPackLeavesOthersUntouched(t *testing.T) {
	h := newHarness(t, iosPack(t), docsPack(t))
	sc, l := h.project(t, "/work/app")
	h.sync(t, sc, l, "ios")
	iosBefore := h.state(t, l).Record("ios").Clone()
	h.runner.Reset()

	rep := h.sync(t, sc, l, "ios", "docs")

	assert.Equal(t, StatusUnchanged, rep.Pack("ios").Status)
	assert.Equal(t, StatusAdded, rep.Pack("docs").Status)
	assert.Zero(t, h.countCommands("claude mcp"), "ios service must not be re-registered")

	st := h.state(t, l)
	assert.Equal(t, []string{"docs", "ios"}, st.ConfiguredPacks)
	assert.Len(t, st.PackArtifacts, 2)
	assert.True(t, iosBefore.Equal(st.Record("ios")))
	assert.Equal(t, []string{"review@tools"}, st.Record("docs").Plugins)
}

func TestSync_ConvergenceEquivalence(t *testing.T) {
	selections := [][]string{{"ios"}, {"docs"}, {"ios", "docs"}, {}}

	for _, a := range selections {
		for _, b := range selections {
			name := strings.Join(a, "+") + "->" + strings.Join(b, "+")
			t.Run(name, func(t *testing.T) {
				via := newHarness(t, iosPack(t), docsPack(t))
				sc, l := via.project(t, "/work/app")
				via.sync(t, sc, l, a...)
				via.sync(t, sc, l, b...)

				direct := newHarness(t, iosPack(t), docsPack(t))
				dsc, dl := direct.project(t, "/work/app")
				direct.sync(t, dsc, dl, b...)

				got, want := via.state(t, l), direct.state(t, dl)
				assert.Equal(t, want.ConfiguredPacks, got.ConfiguredPacks)
				for _, id := range want.ConfiguredPacks {
					assert.True(t, want.Record(id).Equal(got.Record(id)), "record of %s differs", id)
				}
				assert.Equal(t, sections(direct.fs, dl.DocPath), sections(via.fs, l.DocPath))
				assert.JSONEq(t, settingsJSON(t, direct.fs, dl.SettingsPath), settingsJSON(t, via.fs, l.SettingsPath))
			})
		}
	}
}

// sharedPack declares artifacts that a sibling pack declares too: the same
// ignore entry, hook file destination, settings key and package.
func sharedPack(t *testing.T, id, value string) *registry.Pack {
	manifestYAML := `identifier: ` + id + `
version: 1.0.0
components:
  - id: jq
    type: package
    package: jq
  - id: hook
    type: file-copy
    file: {source: shared.sh, destination: hooks/shared.sh, hookEvent: Stop}
  - id: prefs
    type: settings-fragment
    settings:
      env: {SHARED: "` + value + `"}
  - id: ignores
    type: ignore-entries
    ignoreEntries: [".shared"]
`
	return loadPack(t, manifestYAML, map[string]string{"shared.sh": "echo " + value + "\n"})
}

func TestSync_ConvergenceEquivalence_SharedArtifacts(t *testing.T) {
	packs := func(t *testing.T) []*registry.Pack {
		return []*registry.Pack{sharedPack(t, "pa", "a"), sharedPack(t, "pb", "b")}
	}
	selections := [][]string{{"pa"}, {"pb"}, {}}

	for _, a := range selections {
		for _, b := range selections {
			name := strings.Join(a, "+") + "->" + strings.Join(b, "+")
			t.Run(name, func(t *testing.T) {
				via := newHarness(t, packs(t)...)
				sc, l := via.project(t, "/work/app")
				via.sync(t, sc, l, a...)
				rep := via.sync(t, sc, l, b...)
				require.False(t, rep.Failed(), "failures: %v", rep.Failures())

				direct := newHarness(t, packs(t)...)
				dsc, dl := direct.project(t, "/work/app")
				direct.sync(t, dsc, dl, b...)

				got, want := via.state(t, l), direct.state(t, dl)
				assert.Equal(t, want.ConfiguredPacks, got.ConfiguredPacks)
				for _, id := range want.ConfiguredPacks {
					assert.True(t, want.Record(id).Equal(got.Record(id)), "record of %s differs: %+v vs %+v", id, want.Record(id), got.Record(id))
				}
				assert.Equal(t, fileOrEmpty(direct.fs, dl.IgnorePath), fileOrEmpty(via.fs, l.IgnorePath))
				hook := filepath.Join(l.FileRoot, "hooks", "shared.sh")
				assert.Equal(t, fileOrEmpty(direct.fs, hook), fileOrEmpty(via.fs, hook))
				assert.JSONEq(t, settingsJSON(t, direct.fs, dl.SettingsPath), settingsJSON(t, via.fs, l.SettingsPath))
			})
		}
	}
}

func TestSync_HandoverKeepsSharedPackageInstalled(t *testing.T) {
	h := newHarness(t, sharedPack(t, "pa", "a"), sharedPack(t, "pb", "b"))
	sc, l := h.project(t, "/work/app")
	h.sync(t, sc, l, "pa")
	h.runner.Reset()

	rep := h.sync(t, sc, l, "pb")

	require.False(t, rep.Failed(), "failures: %v", rep.Failures())
	assert.Zero(t, h.countCommands("brew uninstall jq"))
	assert.Equal(t, []string{"jq"}, h.state(t, l).Record("pb").BrewPackages)
	assert.Equal(t, "echo b\n", h.read(t, filepath.Join(l.FileRoot, "hooks", "shared.sh")))
	assert.Contains(t, h.read(t, l.IgnorePath), ".shared")
}

func fileOrEmpty(fsys afero.Fs, path string) string {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return ""
	}
	return string(data)
}

func TestSync_RemovePackUnappliesArtifacts(t *testing.T) {
	h := newHarness(t, iosPack(t))
	sc, l := h.project(t, "/work/app")
	require.NoError(t, afero.WriteFile(h.fs, l.DocPath, []byte("My notes\n"), 0644))
	h.sync(t, sc, l, "ios")
	delete(h.runner.Fail, "brew list --versions")

	rep := h.sync(t, sc, l)

	assert.Equal(t, StatusRemoved, rep.Pack("ios").Status)
	assert.Empty(t, h.state(t, l).ConfiguredPacks)
	exists, _ := afero.Exists(h.fs, "/work/app/.claude/hooks/hook.sh")
	assert.False(t, exists)
	assert.NotContains(t, h.read(t, "/work/app/.gitignore"), ".xcodebuildmcp")
	assert.Equal(t, "My notes\n", h.read(t, l.DocPath))
	assert.Equal(t, 1, h.countCommands("claude mcp remove -s local xbuild"))
	assert.Equal(t, 1, h.countCommands("brew uninstall node"))

	idx, err := h.engine.Index.Load()
	require.NoError(t, err)
	_, ok := idx.Get("/work/app")
	assert.False(t, ok)
}

func TestSync_ReferenceCounting(t *testing.T) {
	h := newHarness(t, docsPack(t))
	s1, l1 := h.project(t, "/work/one")
	s2, l2 := h.project(t, "/work/two")
	h.sync(t, s1, l1, "docs")
	h.sync(t, s2, l2, "docs")
	h.runner.Reset()

	rep := h.sync(t, s1, l1)
	assert.Zero(t, h.countCommands("claude plugin uninstall"), "plugin still used by /work/two")
	assert.Empty(t, h.state(t, l1).ConfiguredPacks, "scope record is cleared even when the shared resource stays")
	var kept bool
	for _, op := range rep.Pack("docs").Operations {
		if op.Kind == state.KindPlugin && strings.Contains(op.Note, "/work/two") {
			kept = true
		}
	}
	assert.True(t, kept, "operation should explain why the plugin stays")

	h.sync(t, s2, l2)
	assert.Equal(t, 1, h.countCommands("claude plugin uninstall review@tools"))
}

func TestSync_UnreadableIndexKeepsSharedResources(t *testing.T) {
	h := newHarness(t, docsPack(t))
	sc, l := h.project(t, "/work/app")
	h.sync(t, sc, l, "docs")
	require.NoError(t, afero.WriteFile(h.fs, "/home/.mcs/projects.yaml", []byte("{{ not yaml"), 0644))
	h.runner.Reset()

	rep := h.sync(t, sc, l)

	assert.Zero(t, h.countCommands("claude plugin uninstall"))
	assert.NotEmpty(t, rep.Warnings)
	assert.Empty(t, h.state(t, l).ConfiguredPacks)
	assert.Equal(t, "{{ not yaml", h.read(t, "/home/.mcs/projects.yaml"), "unreadable index is not overwritten")
}

func TestSync_PrunesMissingScopes(t *testing.T) {
	h := newHarness(t, docsPack(t))
	gone, gl := h.project(t, "/work/gone")
	h.sync(t, gone, gl, "docs")
	require.NoError(t, h.fs.RemoveAll("/work/gone"))

	sc, l := h.project(t, "/work/app")
	h.sync(t, sc, l, "docs")
	h.runner.Reset()
	h.sync(t, sc, l)

	assert.Equal(t, 1, h.countCommands("claude plugin uninstall"), "deleted scope no longer holds the plugin")
}

func TestSync_SettingsOwnership(t *testing.T) {
	v1 := loadPack(t, `identifier: prefs
version: 1.0.0
components:
  - id: base
    type: settings-fragment
    settings: {env: {A: "1", B: "2"}, theme: dark}
`, nil)
	h := newHarness(t, v1)
	sc, l := h.project(t, "/work/app")
	require.NoError(t, afero.WriteFile(h.fs, l.SettingsPath, []byte(`{"theme": "light", "model": "opus"}`), 0644))

	rep := h.sync(t, sc, l, "prefs")
	require.False(t, rep.Failed())

	doc, err := settings.LoadDocument(h.fs, l.SettingsPath)
	require.NoError(t, err)
	theme, _ := doc.Lookup("theme")
	assert.Equal(t, "light", theme, "existing value wins")
	assert.Equal(t, []string{"env.A", "env.B"}, h.state(t, l).Record("prefs").SettingsKeys)

	// v2 stops declaring env.B.
	v2 := loadPack(t, `identifier: prefs
version: 2.0.0
components:
  - id: base
    type: settings-fragment
    settings: {env: {A: "1"}, theme: dark}
`, nil)
	h.engine.Registry = registry.New(v2)
	h.sync(t, sc, l, "prefs")

	doc, err = settings.LoadDocument(h.fs, l.SettingsPath)
	require.NoError(t, err)
	_, hasB := doc.Lookup("env.B")
	assert.False(t, hasB, "no longer declared key is removed")
	a, _ := doc.Lookup("env.A")
	assert.Equal(t, "1", a)

	// Removing the pack never touches user-owned keys.
	h.sync(t, sc, l)
	doc, err = settings.LoadDocument(h.fs, l.SettingsPath)
	require.NoError(t, err)
	theme, _ = doc.Lookup("theme")
	assert.Equal(t, "light", theme)
	model, _ := doc.Lookup("model")
	assert.Equal(t, "opus", model)
	_, hasA := doc.Lookup("env.A")
	assert.False(t, hasA)

	ledger, err := settings.LoadLedger(h.fs, l.LedgerPath)
	require.NoError(t, err)
	assert.Empty(t, ledger.Keys())
}

func TestSync_SettingsConflictBetweenPacks(t *testing.T) {
	first := loadPack(t, "identifier: first\nversion: 1.0.0\ncomponents:\n  - {id: s, type: settings-fragment, settings: {theme: dark}}\n", nil)
	second := loadPack(t, "identifier: second\nversion: 1.0.0\ncomponents:\n  - {id: s, type: settings-fragment, settings: {theme: light}}\n", nil)
	h := newHarness(t, first, second)
	sc, l := h.project(t, "/work/app")
	h.sync(t, sc, l, "first")

	rep := h.sync(t, sc, l, "first", "second")

	failures := rep.Pack("second").Failures
	require.Len(t, failures, 1)
	var conflict *settings.ConflictError
	require.ErrorAs(t, failures[0], &conflict)
	assert.Equal(t, "first", conflict.Owner)
	doc, err := settings.LoadDocument(h.fs, l.SettingsPath)
	require.NoError(t, err)
	theme, _ := doc.Lookup("theme")
	assert.Equal(t, "dark", theme)
}

func TestSync_ArtifactConflictSameRun(t *testing.T) {
	a := loadPack(t, "identifier: alpha\nversion: 1.0.0\ncomponents:\n  - {id: i, type: ignore-entries, ignoreEntries: [.cache]}\n", nil)
	b := loadPack(t, "identifier: beta\nversion: 1.0.0\ncomponents:\n  - {id: i, type: ignore-entries, ignoreEntries: [.cache]}\n", nil)
	h := newHarness(t, a, b)
	sc, l := h.project(t, "/work/app")

	rep := h.sync(t, sc, l, "beta", "alpha")

	assert.Empty(t, rep.Pack("alpha").Failures)
	require.Len(t, rep.Pack("beta").Failures, 1)
	var conflict *ConflictError
	require.ErrorAs(t, rep.Pack("beta").Failures[0], &conflict)
	assert.Equal(t, "alpha", conflict.Owner)

	st := h.state(t, l)
	assert.Equal(t, []string{".cache"}, st.Record("alpha").GitignoreEntries)
	assert.Empty(t, st.Record("beta").GitignoreEntries)
}

func TestSync_UnpairedMarkerLeavesDocumentUnchanged(t *testing.T) {
	h := newHarness(t, iosPack(t))
	sc, l := h.project(t, "/work/app")
	damaged := "intro\n<!-- begin:ios v0.9.0 -->\nold text\nuser notes after\n"
	require.NoError(t, afero.WriteFile(h.fs, l.DocPath, []byte(damaged), 0644))

	rep := h.sync(t, sc, l, "ios")

	assert.Equal(t, damaged, h.read(t, l.DocPath))
	require.NotEmpty(t, rep.Pack("ios").Warnings)
	assert.Contains(t, strings.Join(rep.Pack("ios").Warnings, "\n"), "damaged markers")
	assert.Empty(t, h.state(t, l).Record("ios").TemplateSections)
}

func TestSync_DamagedMarkerBlocksEverySection(t *testing.T) {
	h := newHarness(t, iosPack(t), docsPack(t))
	sc, l := h.project(t, "/work/app")
	damaged := "<!-- begin:notes v1.0.0 -->\nmy notes\n"
	require.NoError(t, afero.WriteFile(h.fs, l.DocPath, []byte(damaged), 0644))

	rep := h.sync(t, sc, l, "ios", "docs")

	assert.Equal(t, damaged, h.read(t, l.DocPath))
	for _, id := range []string{"ios", "docs"} {
		assert.Contains(t, strings.Join(rep.Pack(id).Warnings, "\n"), "damaged markers", id)
		assert.Empty(t, h.state(t, l).Record(id).TemplateSections, id)
	}
}

func TestSync_SectionPreservesUserText(t *testing.T) {
	h := newHarness(t, iosPack(t), docsPack(t))
	sc, l := h.project(t, "/work/app")
	h.sync(t, sc, l, "ios", "docs")

	doc := h.read(t, l.DocPath)
	doc = strings.Replace(doc, "<!-- begin:ios", "User preface\n\n<!-- begin:ios", 1) + "\nUser footer\n"
	require.NoError(t, afero.WriteFile(h.fs, l.DocPath, []byte(doc), 0644))

	v2 := loadPack(t, strings.Replace(iosManifest, "version: 1.0.0", "version: 1.1.0", 1),
		map[string]string{"hooks/hook.sh": "#!/bin/sh\necho __REPO_NAME__\n"})
	h.engine.Registry = registry.New(v2, docsPack(t))
	h.sync(t, sc, l, "ios", "docs")

	got := h.read(t, l.DocPath)
	assert.True(t, strings.HasPrefix(got, "User preface\n\n<!-- begin:ios v1.1.0 -->"), got)
	assert.True(t, strings.HasSuffix(got, "\nUser footer\n"), got)
	docsBefore := sectionContent(doc, "docs")
	docsAfter := sectionContent(got, "docs")
	assert.Equal(t, docsBefore, docsAfter)
}

func TestSync_DryRun(t *testing.T) {
	h := newHarness(t, iosPack(t))
	sc, l := h.project(t, "/work/app")

	rep, err := h.engine.Sync(context.Background(), Request{Scope: sc, Layout: l, Packs: []string{"ios"}, DryRun: true})
	require.NoError(t, err)

	assert.True(t, rep.DryRun)
	assert.NotZero(t, rep.Changes())
	assert.Empty(t, h.runner.Lines())
	for _, p := range []string{l.StatePath, l.DocPath, l.SettingsPath, "/home/.mcs/projects.yaml"} {
		exists, _ := afero.Exists(h.fs, p)
		assert.False(t, exists, "%s written during dry run", p)
	}
}

func TestSync_PartialFailureRetriesOnlyFailed(t *testing.T) {
	h := newHarness(t, iosPack(t))
	sc, l := h.project(t, "/work/app")
	h.runner.Fail["claude mcp add"] = errors.New("exit status 1")

	rep := h.sync(t, sc, l, "ios")

	require.True(t, rep.Failed())
	failures := rep.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, state.KindServer, failures[0].Kind)
	rec := h.state(t, l).Record("ios")
	assert.Empty(t, rec.MCPServers)
	assert.Equal(t, []string{"hooks/hook.sh"}, rec.Files, "successful artifacts are persisted")

	delete(h.runner.Fail, "claude mcp add")
	h.runner.Reset()
	retry := h.sync(t, sc, l, "ios")

	assert.False(t, retry.Failed())
	assert.Equal(t, 1, retry.Changes())
	assert.Equal(t, 1, h.countCommands("claude mcp add"))
}

func TestSync_FailedRemovalKeepsResidualRecord(t *testing.T) {
	h := newHarness(t, iosPack(t))
	sc, l := h.project(t, "/work/app")
	h.sync(t, sc, l, "ios")
	h.runner.Fail["claude mcp remove"] = errors.New("exit status 1")

	rep := h.sync(t, sc, l)

	assert.True(t, rep.Failed())
	st := h.state(t, l)
	assert.Equal(t, []string{"ios"}, st.ConfiguredPacks)
	rec := st.Record("ios")
	assert.Equal(t, 1, rec.Count())
	assert.Len(t, rec.MCPServers, 1)

	delete(h.runner.Fail, "claude mcp remove")
	h.sync(t, sc, l)
	assert.Empty(t, h.state(t, l).ConfiguredPacks)
}

func TestSync_CycleIsFatalForThatPackOnly(t *testing.T) {
	cyclic := &registry.Pack{
		ID:      "cyclic",
		Version: "1.0.0",
		Components: []manifest.Component{
			{ID: "a", Type: manifest.TypePackage, Package: "a", Dependencies: []string{"b"}},
			{ID: "b", Type: manifest.TypePackage, Package: "b", Dependencies: []string{"c"}},
			{ID: "c", Type: manifest.TypePackage, Package: "c", Dependencies: []string{"a"}},
		},
	}
	h := newHarness(t, cyclic, docsPack(t))
	sc, l := h.project(t, "/work/app")

	rep := h.sync(t, sc, l, "cyclic", "docs")

	pr := rep.Pack("cyclic")
	assert.Equal(t, StatusFailed, pr.Status)
	var cycle *registry.DependencyCycleError
	require.ErrorAs(t, pr.Err, &cycle)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, cycle.Cycle[:3])
	assert.Equal(t, []string{"docs"}, h.state(t, l).ConfiguredPacks)
}

func TestSync_UnknownPack(t *testing.T) {
	h := newHarness(t)
	sc, l := h.project(t, "/work/app")

	rep := h.sync(t, sc, l, "ghost")

	assert.True(t, rep.Failed())
	assert.Equal(t, StatusFailed, rep.Pack("ghost").Status)
	assert.Empty(t, h.state(t, l).ConfiguredPacks)
}

func TestSync_Exclusions(t *testing.T) {
	p := loadPack(t, `identifier: kit
version: 1.0.0
components:
  - {id: base, type: package, package: base, required: true}
  - {id: lib, type: package, package: lib}
  - {id: tool, type: package, package: tool, dependencies: [lib]}
  - {id: extra, type: package, package: extra}
`, nil)
	h := newHarness(t, p)
	sc, l := h.project(t, "/work/app")

	rep, err := h.engine.Sync(context.Background(), Request{
		Scope: sc, Layout: l, Packs: []string{"kit"},
		Exclusions: map[string][]string{"kit": {"base", "lib", "extra"}},
	})
	require.NoError(t, err)

	st := h.state(t, l)
	assert.Equal(t, []string{"base", "lib", "tool"}, st.Record("kit").BrewPackages)
	assert.Equal(t, []string{"base", "extra", "lib"}, st.Excluded("kit"))
	assert.Len(t, rep.Pack("kit").Warnings, 2, "required and dependency exclusions are reported")

	// Stored exclusions apply on the next run; clearing them installs extra.
	h.sync(t, sc, l, "kit")
	assert.NotContains(t, h.state(t, l).Record("kit").BrewPackages, "extra")

	_, err = h.engine.Sync(context.Background(), Request{
		Scope: sc, Layout: l, Packs: []string{"kit"},
		Exclusions: map[string][]string{"kit": nil},
	})
	require.NoError(t, err)
	assert.Contains(t, h.state(t, l).Record("kit").BrewPackages, "extra")
}

func TestSync_ShellActionUndo(t *testing.T) {
	h := newHarness(t, docsPack(t))
	sc, l := h.project(t, "/work/app")
	h.sync(t, sc, l, "docs")
	require.Equal(t, 1, h.countCommands("/bin/sh -c echo setup"))

	h.sync(t, sc, l, "docs")
	assert.Equal(t, 1, h.countCommands("/bin/sh -c echo setup"), "shell actions run once")

	h.sync(t, sc, l)
	assert.Equal(t, 1, h.countCommands("/bin/sh -c echo teardown"))
}

func TestSync_ExistingUnmanagedFileIsNotOverwritten(t *testing.T) {
	h := newHarness(t, iosPack(t))
	sc, l := h.project(t, "/work/app")
	dest := filepath.Join(l.FileRoot, "hooks", "hook.sh")
	require.NoError(t, afero.WriteFile(h.fs, dest, []byte("mine"), 0644))

	rep := h.sync(t, sc, l, "ios")

	assert.Equal(t, "mine", h.read(t, dest))
	assert.Empty(t, h.state(t, l).Record("ios").Files)
	var skipped bool
	for _, op := range rep.Pack("ios").Operations {
		skipped = skipped || (op.Kind == state.KindFile && op.Op == OpSkip)
	}
	assert.True(t, skipped)
}

func TestSync_GlobalScope(t *testing.T) {
	h := newHarness(t, iosPack(t))
	sc := scopeGlobal()
	l := globalLayout()

	rep := h.sync(t, sc, l, "ios")
	require.False(t, rep.Failed(), "failures: %v", rep.Failures())

	assert.Equal(t, 1, h.countCommands("claude mcp add -s user xbuild"))
	st := h.state(t, l)
	assert.Equal(t, []string{"bash " + filepath.Join("/home/.claude", "hooks/hook.sh")}, st.Record("ios").HookCommands)

	idx, err := h.engine.Index.Load()
	require.NoError(t, err)
	_, ok := idx.Get(refindex.GlobalKey)
	assert.True(t, ok)
}

func TestSync_LockHeld(t *testing.T) {
	h := newHarness(t, iosPack(t))
	sc, l := h.project(t, "/work/app")
	h.engine.LockPath = filepath.Join(t.TempDir(), "lock")

	held, err := platform.AcquireLock(h.engine.LockPath)
	require.NoError(t, err)
	defer held.Release()

	_, err = h.engine.Sync(context.Background(), Request{Scope: sc, Layout: l, Packs: []string{"ios"}})
	require.ErrorIs(t, err, platform.ErrLockHeld)
	exists, _ := afero.Exists(h.fs, l.StatePath)
	assert.False(t, exists)

	rep, err := h.engine.Sync(context.Background(), Request{Scope: sc, Layout: l, Packs: []string{"ios"}, DryRun: true})
	require.NoError(t, err, "dry runs do not take the lock")
	assert.NotZero(t, rep.Changes())
}

func TestSync_CorruptStateIsFatal(t *testing.T) {
	h := newHarness(t, iosPack(t))
	sc, l := h.project(t, "/work/app")
	require.NoError(t, afero.WriteFile(h.fs, l.StatePath, []byte("{broken"), 0644))

	_, err := h.engine.Sync(context.Background(), Request{Scope: sc, Layout: l, Packs: []string{"ios"}})
	require.Error(t, err)
	assert.Equal(t, "{broken", h.read(t, l.StatePath))
}

func TestSync_PersistenceFailure(t *testing.T) {
	h := newHarness(t, iosPack(t))
	sc, l := h.project(t, "/work/app")
	h.engine.Fs = afero.NewReadOnlyFs(h.fs)

	_, err := h.engine.Sync(context.Background(), Request{Scope: sc, Layout: l, Packs: []string{"ios"}})

	var pe *state.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, l.StatePath, pe.Path)
}

func indexOf(lines []string, want string) int {
	for i, l := range lines {
		if l == want {
			return i
		}
	}
	return -1
}

func indexOfPrefix(lines []string, prefix string) int {
	for i, l := range lines {
		if strings.HasPrefix(l, prefix) {
			return i
		}
	}
	return -1
}

// sections maps section ids to their content; section order is not part
// of the converged result.
func sections(fsys afero.Fs, path string) map[string]string {
	out := make(map[string]string)
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return out
	}
	for _, s := range compose.ParseSections(string(data)) {
		out[s.ID] = strings.TrimSpace(s.Content)
	}
	return out
}

func sectionContent(doc, id string) string {
	for _, s := range compose.ParseSections(doc) {
		if s.ID == id {
			return s.Content
		}
	}
	return ""
}

func settingsJSON(t *testing.T, fsys afero.Fs, path string) string {
	t.Helper()
	doc, err := settings.LoadDocument(fsys, path)
	require.NoError(t, err)
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return string(data)
}
