package scope

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bguidolim/mcs/internal/branding"
	"github.com/bguidolim/mcs/internal/integrations"
	"github.com/bguidolim/mcs/internal/refindex"
	"github.com/bguidolim/mcs/internal/userdata"
	"github.com/spf13/afero"
)

const (
	hostDirName      = ".claude"
	projectStateRel  = ".mcs-project"
	projectLedgerRel = ".mcs-settings-keys"
	projectSettings  = "settings.local.json"
	globalSettings   = "settings.json"
	gitignoreName    = ".gitignore"
)

// Scope is either a project directory or the global environment.
type Scope struct {
	Path   string // absolute project root; empty for global
	Global bool
}

// Project returns the project scope rooted at dir.
func Project(dir string) (Scope, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Scope{}, fmt.Errorf("resolving project path %s: %w", dir, err)
	}
	return Scope{Path: abs}, nil
}

// GlobalScope returns the global scope.
func GlobalScope() Scope {
	return Scope{Global: true}
}

// Key returns the reference index key of the scope.
func (s Scope) Key() string {
	if s.Global {
		return refindex.GlobalKey
	}
	return s.Path
}

// Name is the value of __REPO_NAME__ for the scope.
func (s Scope) Name() string {
	if s.Global {
		return "global"
	}
	return filepath.Base(s.Path)
}

func (s Scope) String() string {
	if s.Global {
		return "global"
	}
	return s.Path
}

// Detect walks up from dir to the first directory containing .git or
// .claude. Without one, dir itself is the project root.
func Detect(fsys afero.Fs, dir string) (Scope, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Scope{}, fmt.Errorf("resolving working directory: %w", err)
	}
	for cur := abs; ; {
		for _, marker := range []string{".git", hostDirName} {
			if _, err := fsys.Stat(filepath.Join(cur, marker)); err == nil {
				return Scope{Path: cur}, nil
			}
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}
	return Scope{Path: abs}, nil
}

// Layout lists where the engine keeps each managed file of a scope.
type Layout struct {
	StatePath    string
	SettingsPath string
	LedgerPath   string
	DocPath      string
	FileRoot     string // destination root of copied files
	IgnorePath   string
	ServerScope  string // registration scope passed to the host CLI
	WorkDir      string // working directory for host CLI and shell actions
}

// ProjectLayout returns the layout of a project rooted at root.
func ProjectLayout(root string) Layout {
	host := filepath.Join(root, hostDirName)
	return Layout{
		StatePath:    filepath.Join(host, projectStateRel),
		SettingsPath: filepath.Join(host, projectSettings),
		LedgerPath:   filepath.Join(host, projectLedgerRel),
		DocPath:      filepath.Join(root, branding.ProjectDocName()),
		FileRoot:     host,
		IgnorePath:   filepath.Join(root, gitignoreName),
		ServerScope:  integrations.ScopeLocal,
		WorkDir:      root,
	}
}

// GlobalLayout returns the global layout given the state root, the host
// tool's home directory and the user's global ignore file.
func GlobalLayout(stateRoot, hostHome, ignorePath string) Layout {
	home, _ := os.UserHomeDir()
	return Layout{
		StatePath:    filepath.Join(stateRoot, userdata.GlobalStateFile),
		SettingsPath: filepath.Join(hostHome, globalSettings),
		LedgerPath:   filepath.Join(stateRoot, userdata.GlobalLedgerFile),
		DocPath:      filepath.Join(hostHome, branding.HostDocName()),
		FileRoot:     hostHome,
		IgnorePath:   ignorePath,
		ServerScope:  integrations.ScopeUser,
		WorkDir:      home,
	}
}

// Resolve returns the layout of s using the user's real directories.
func Resolve(s Scope) (Layout, error) {
	if !s.Global {
		return ProjectLayout(s.Path), nil
	}
	root, err := userdata.Root()
	if err != nil {
		return Layout{}, err
	}
	host, err := userdata.HostHome()
	if err != nil {
		return Layout{}, err
	}
	ignore, err := userdata.GlobalIgnorePath()
	if err != nil {
		return Layout{}, err
	}
	return GlobalLayout(root, host, ignore), nil
}

// HookCommand returns the settings hook command for a copied file at
// rel (relative to the layout's FileRoot).
func (l Layout) HookCommand(s Scope, rel string) string {
	if s.Global {
		return "bash " + filepath.Join(l.FileRoot, rel)
	}
	return "bash " + filepath.ToSlash(filepath.Join(hostDirName, rel))
}
