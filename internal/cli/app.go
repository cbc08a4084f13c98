package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bguidolim/mcs/internal/catalog"
	"github.com/bguidolim/mcs/internal/engine"
	"github.com/bguidolim/mcs/internal/installer"
	"github.com/bguidolim/mcs/internal/integrations"
	"github.com/bguidolim/mcs/internal/lockfile"
	"github.com/bguidolim/mcs/internal/platform"
	"github.com/bguidolim/mcs/internal/refindex"
	"github.com/bguidolim/mcs/internal/registry"
	"github.com/bguidolim/mcs/internal/scope"
	"github.com/bguidolim/mcs/internal/userdata"
	"github.com/spf13/afero"
)

// newRunner is swapped out by tests so no real tools are invoked.
var newRunner = func() integrations.Runner { return integrations.ExecRunner{} }

// app holds the collaborators shared by commands.
type app struct {
	fs       afero.Fs
	runner   integrations.Runner
	catalog  *catalog.Catalog
	reg      *registry.Registry
	index    *refindex.Store
	home     string
	lockPath string
}

// newApp wires the collaborators without touching the filesystem, so
// read-only commands leave no trace. The mcs home is created on first lock.
func newApp() (*app, error) {
	home, err := userdata.Root()
	if err != nil {
		return nil, err
	}
	registryPath, err := userdata.RegistryPath()
	if err != nil {
		return nil, err
	}
	packsRoot, err := userdata.PacksRoot()
	if err != nil {
		return nil, err
	}
	indexPath, err := userdata.IndexPath()
	if err != nil {
		return nil, err
	}
	lockPath, err := userdata.LockPath()
	if err != nil {
		return nil, err
	}

	fsys := afero.NewOsFs()
	runner := newRunner()
	git := integrations.NewGit(runner, integrations.Binary(integrations.GitCLI))
	cat, err := catalog.Open(fsys, git, registryPath, packsRoot)
	if err != nil {
		return nil, err
	}
	return &app{
		fs:       fsys,
		runner:   runner,
		catalog:  cat,
		index:    refindex.NewStore(fsys, indexPath),
		home:     home,
		lockPath: lockPath,
	}, nil
}

// lock creates the mcs home if needed and takes the process lock.
func (a *app) lock() (*platform.Lock, error) {
	if err := userdata.EnsureRoot(); err != nil {
		return nil, err
	}
	return platform.AcquireLock(a.lockPath)
}

// loadRegistry reads the built-in and registered packs. Packs that fail to
// load are logged and left out.
func (a *app) loadRegistry() *registry.Registry {
	sources := append(registry.BuiltinSources(), a.catalog.Sources()...)
	a.reg = registry.Load(sources)
	for _, le := range a.reg.Errors() {
		logger.Warn("pack not loaded", "source", le.Source, "err", le.Err)
	}
	return a.reg
}

// engine returns an engine for layout. loadRegistry must have run.
func (a *app) engine(layout scope.Layout) *engine.Engine {
	return &engine.Engine{
		Registry:  a.reg,
		Fs:        a.fs,
		Installer: installer.New(a.runner, layout.WorkDir),
		Index:     a.index,
		LockPath:  a.lockPath,
		Log:       logger,
	}
}

// lockfilePath is the project's mcs.lock.yaml, or the one in the mcs home
// for the global scope.
func (a *app) lockfilePath(sc scope.Scope) string {
	if sc.Global {
		return filepath.Join(a.home, lockfile.FileName)
	}
	return filepath.Join(sc.Path, lockfile.FileName)
}

// resolveScope returns the global scope, or the project containing dir
// (the working directory when dir is empty).
func resolveScope(fsys afero.Fs, dir string, global bool) (scope.Scope, scope.Layout, error) {
	sc := scope.GlobalScope()
	if !global {
		if dir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return scope.Scope{}, scope.Layout{}, fmt.Errorf("getting working directory: %w", err)
			}
			dir = wd
		}
		detected, err := scope.Detect(fsys, dir)
		if err != nil {
			return scope.Scope{}, scope.Layout{}, err
		}
		sc = detected
	}
	layout, err := scope.Resolve(sc)
	if err != nil {
		return scope.Scope{}, scope.Layout{}, err
	}
	return sc, layout, nil
}
