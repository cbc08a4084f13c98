package userdata

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bguidolim/mcs/internal/branding"
)

// File and directory names under the mcs home directory.
const (
	GlobalStateFile  = "global-state.json"
	IndexFile        = "projects.yaml"
	LockFile         = "lock"
	RegistryFile     = "registry.yaml"
	PacksDir         = "packs"
	GlobalLedgerFile = "global-settings-keys"
)

// Permission constants.
const (
	DirPermSecure  os.FileMode = 0700
	FilePermSecure os.FileMode = 0600
	DirPermNormal  os.FileMode = 0755
	FilePermNormal os.FileMode = 0644
	FilePermExec   os.FileMode = 0755
)

// Root returns the mcs home directory.
// It checks the MCS_HOME environment variable first,
// then falls back to ~/.mcs.
func Root() (string, error) {
	if v := os.Getenv(branding.EnvVar("HOME")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, branding.HomeDir()), nil
}

// HostHome returns the host tool's global directory.
// It checks MCS_CLAUDE_HOME first, then falls back to ~/.claude.
func HostHome() (string, error) {
	if v := os.Getenv(branding.EnvVar("CLAUDE_HOME")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, branding.HostHomeDir()), nil
}

// GlobalIgnorePath returns the user-wide git ignore file
// ($XDG_CONFIG_HOME/git/ignore, defaulting to ~/.config/git/ignore).
func GlobalIgnorePath() (string, error) {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "git", "ignore"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "git", "ignore"), nil
}

func underRoot(name string) (string, error) {
	root, err := Root()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, name), nil
}

// GlobalStatePath returns the sync state file of the global scope.
func GlobalStatePath() (string, error) { return underRoot(GlobalStateFile) }

// IndexPath returns the cross-project reference index file.
func IndexPath() (string, error) { return underRoot(IndexFile) }

// LockPath returns the advisory process lock file.
func LockPath() (string, error) { return underRoot(LockFile) }

// RegistryPath returns the external pack registry file.
func RegistryPath() (string, error) { return underRoot(RegistryFile) }

// GlobalLedgerPath returns the settings ownership ledger of the global scope.
func GlobalLedgerPath() (string, error) { return underRoot(GlobalLedgerFile) }

// PacksRoot returns the directory holding external pack checkouts.
func PacksRoot() (string, error) { return underRoot(PacksDir) }

// PackDir returns the checkout directory of one external pack.
// For example, PackDir("ios") returns "<root>/packs/ios".
func PackDir(id string) (string, error) {
	root, err := PacksRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, id), nil
}

// EnsureRoot creates the mcs home directory with secure permissions.
func EnsureRoot() error {
	root, err := Root()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(root, DirPermSecure); err != nil {
		return fmt.Errorf("creating %s: %w", root, err)
	}
	return nil
}
