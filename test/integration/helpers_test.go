//go:build integration

package integration_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bguidolim/mcs/internal/engine"
	"github.com/bguidolim/mcs/internal/installer"
	"github.com/bguidolim/mcs/internal/integrations"
	"github.com/bguidolim/mcs/internal/refindex"
	"github.com/bguidolim/mcs/internal/registry"
	"github.com/bguidolim/mcs/internal/userdata"
	"github.com/spf13/afero"
)

// testEnv holds paths to isolated test directories.
type testEnv struct {
	HomeDir   string // MCS_HOME: state, index, lock, registry
	ClaudeDir string // MCS_CLAUDE_HOME: global settings and instructions
	ConfigDir string // XDG_CONFIG_HOME: global git ignore
	PacksDir  string // pack checkouts written by tests
}

// setupTestEnv creates isolated temp directories and sets environment variables
// so every mcs path is sandboxed. The env vars are restored after the test.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		HomeDir:   t.TempDir(),
		ClaudeDir: t.TempDir(),
		ConfigDir: t.TempDir(),
		PacksDir:  t.TempDir(),
	}
	t.Setenv("MCS_HOME", env.HomeDir)
	t.Setenv("MCS_CLAUDE_HOME", env.ClaudeDir)
	t.Setenv("XDG_CONFIG_HOME", env.ConfigDir)
	return env
}

// newProject creates a git-marked project directory.
func newProject(t *testing.T, name string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	if err := os.MkdirAll(filepath.Join(dir, ".git"), 0755); err != nil {
		t.Fatalf("creating project %s: %v", dir, err)
	}
	return dir
}

// writePack writes a pack checkout with its manifest and extra files and
// returns it as an external source.
func writePack(t *testing.T, root, id, manifest string, files map[string]string) registry.Source {
	t.Helper()
	dir := filepath.Join(root, id)
	writeFile(t, filepath.Join(dir, "techpack.yaml"), manifest)
	for rel, content := range files {
		writeFile(t, filepath.Join(dir, rel), content)
	}
	return registry.ExternalSource(filepath.Join(dir, "techpack.yaml"))
}

// loadRegistry loads the built-in packs plus sources and fails on any load
// error.
func loadRegistry(t *testing.T, sources ...registry.Source) *registry.Registry {
	t.Helper()
	reg := registry.Load(append(registry.BuiltinSources(), sources...))
	for _, le := range reg.Errors() {
		t.Fatalf("loading packs: %v", le)
	}
	return reg
}

// newEngine returns an engine over the real filesystem with the real index
// and lock paths under MCS_HOME and commands recorded by runner.
func newEngine(t *testing.T, reg *registry.Registry, runner integrations.Runner) *engine.Engine {
	t.Helper()
	indexPath, err := userdata.IndexPath()
	if err != nil {
		t.Fatal(err)
	}
	lockPath, err := userdata.LockPath()
	if err != nil {
		t.Fatal(err)
	}
	fsys := afero.NewOsFs()
	return &engine.Engine{
		Registry:  reg,
		Fs:        fsys,
		Installer: installer.New(runner, ""),
		Index:     refindex.NewStore(fsys, indexPath),
		LockPath:  lockPath,
	}
}

// writeFile creates a file at the given path with the given content.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("creating dir %s: %v", dir, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// assertFileExists fails the test if the file does not exist.
func assertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file to exist: %s (error: %v)", path, err)
	}
}

// assertFileNotExists fails the test if the file exists.
func assertFileNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("expected file NOT to exist: %s", path)
	}
}

// assertFileContains fails if the file doesn't exist or doesn't contain substr.
func assertFileContains(t *testing.T, path, substr string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Errorf("reading %s: %v", path, err)
		return
	}
	if !strings.Contains(string(data), substr) {
		t.Errorf("file %s does not contain %q.\nContents:\n%s", path, substr, string(data))
	}
}

// assertFileNotContains fails if the file contains substr.
func assertFileNotContains(t *testing.T, path, substr string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if strings.Contains(string(data), substr) {
		t.Errorf("file %s still contains %q.\nContents:\n%s", path, substr, string(data))
	}
}

// containsLine reports whether any recorded command starts with prefix.
func containsLine(lines []string, prefix string) bool {
	for _, l := range lines {
		if strings.HasPrefix(l, prefix) {
			return true
		}
	}
	return false
}
