package engine

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
	"time"

	"github.com/bguidolim/mcs/internal/installer"
	"github.com/bguidolim/mcs/internal/integrations"
	"github.com/bguidolim/mcs/internal/refindex"
	"github.com/bguidolim/mcs/internal/registry"
	"github.com/bguidolim/mcs/internal/scope"
	"github.com/bguidolim/mcs/internal/state"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const (
	iosManifest = `identifier: ios
displayName: iOS
version: 1.0.0
components:
  - id: node
    type: package
    package: node
  - id: xcodebuild
    type: remote-service
    dependencies: [node]
    service: {name: xbuild, command: npx, args: ["-y", "xcodebuildmcp@latest"]}
  - id: session-hook
    type: file-copy
    file: {source: hooks/hook.sh, destination: hooks/hook.sh, executable: true, hookEvent: SessionStart}
  - id: ignores
    type: ignore-entries
    ignoreEntries: [".xcodebuildmcp"]
templates:
  - sectionIdentifier: ios
    content: "Build __REPO_NAME__ with xcodebuild."
`
	docsManifest = `identifier: docs
version: 2.1.0
components:
  - id: review
    type: plugin
    plugin: review@tools
  - id: prefs
    type: settings-fragment
    settings:
      env: {DOCS_MODE: "strict"}
      alwaysThinkingEnabled: true
  - id: setup
    type: shell-action
    shell: {run: "echo setup", undo: "echo teardown"}
templates:
  - sectionIdentifier: docs
    content: "Keep docs current."
`
)

func loadPack(t *testing.T, manifestYAML string, files map[string]string) *registry.Pack {
	t.Helper()
	fsys := fstest.MapFS{"techpack.yaml": {Data: []byte(manifestYAML)}}
	for p, content := range files {
		fsys[p] = &fstest.MapFile{Data: []byte(content)}
	}
	p, err := registry.LoadPack(registry.CompiledSource("test", fsys))
	require.NoError(t, err)
	return p
}

type harness struct {
	engine *Engine
	fs     afero.Fs
	runner *integrations.RecordingRunner
}

func newHarness(t *testing.T, packs ...*registry.Pack) *harness {
	t.Helper()
	fsys := afero.NewMemMapFs()
	r := integrations.NewRecordingRunner()
	// Nothing is installed until the engine installs it.
	r.Fail["brew list --versions"] = errors.New("exit status 1")

	in := &installer.Installer{
		Host:     integrations.NewHostCLI(r),
		Packages: integrations.NewBrew(r, ""),
		Shell:    integrations.NewShell(r),
	}
	return &harness{
		engine: &Engine{
			Registry:  registry.New(packs...),
			Fs:        fsys,
			Installer: in,
			Index:     refindex.NewStore(fsys, "/home/.mcs/projects.yaml"),
			Now:       func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
		},
		fs:     fsys,
		runner: r,
	}
}

func (h *harness) project(t *testing.T, dir string) (scope.Scope, scope.Layout) {
	t.Helper()
	require.NoError(t, h.fs.MkdirAll(dir, 0755))
	return scope.Scope{Path: dir}, scope.ProjectLayout(dir)
}

func (h *harness) sync(t *testing.T, sc scope.Scope, l scope.Layout, packs ...string) *Report {
	t.Helper()
	rep, err := h.engine.Sync(context.Background(), Request{Scope: sc, Layout: l, Packs: packs})
	require.NoError(t, err)
	return rep
}

func (h *harness) state(t *testing.T, l scope.Layout) *state.SyncState {
	t.Helper()
	st, err := h.engine.Status(l)
	require.NoError(t, err)
	return st
}

func (h *harness) read(t *testing.T, path string) string {
	t.Helper()
	data, err := afero.ReadFile(h.fs, path)
	require.NoError(t, err)
	return string(data)
}

func (h *harness) countCommands(prefix string) int {
	n := 0
	for _, l := range h.runner.Lines() {
		if len(l) >= len(prefix) && l[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func scopeGlobal() scope.Scope { return scope.GlobalScope() }

func globalLayout() scope.Layout {
	return scope.GlobalLayout("/home/.mcs", "/home/.claude", "/home/.config/git/ignore")
}
