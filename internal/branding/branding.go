// Package branding provides compile-time identity values for the CLI.
//
// branding.yaml is embedded into the binary; it names the CLI, its home
// directory, and the host tool files the engine writes into.
package branding

import (
	_ "embed"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

//go:embed branding.yaml
var rawBranding []byte

var (
	once     sync.Once
	defaults brand
)

type brand struct {
	CLIName        string `yaml:"cli_name"`
	DisplayName    string `yaml:"display_name"`
	Description    string `yaml:"description"`
	HomeDir        string `yaml:"home_dir"`
	EnvPrefix      string `yaml:"env_prefix"`
	HostHomeDir    string `yaml:"host_home_dir"`
	HostDocName    string `yaml:"host_doc_name"`
	ProjectDocName string `yaml:"project_doc_name"`
}

func load() {
	once.Do(func() {
		// Hard defaults in case the embedded file is missing or empty.
		defaults = brand{
			CLIName:        "mcs",
			DisplayName:    "Managed Claude Stack",
			Description:    "Converges Claude Code configuration from composable tech packs",
			HomeDir:        ".mcs",
			EnvPrefix:      "MCS",
			HostHomeDir:    ".claude",
			HostDocName:    "CLAUDE.md",
			ProjectDocName: "CLAUDE.local.md",
		}
		_ = yaml.Unmarshal(rawBranding, &defaults)
	})
}

// CLIName returns the root command name (e.g., "mcs").
func CLIName() string { load(); return defaults.CLIName }

// DisplayName returns the human-readable product name.
func DisplayName() string { load(); return defaults.DisplayName }

// Description returns the short product description.
func Description() string { load(); return defaults.Description }

// HomeDir returns the dot-directory name under $HOME (e.g., ".mcs").
func HomeDir() string { load(); return defaults.HomeDir }

// EnvPrefix returns the environment variable prefix (e.g., "MCS").
func EnvPrefix() string { load(); return defaults.EnvPrefix }

// HostHomeDir returns the host tool's dot-directory (e.g., ".claude").
func HostHomeDir() string { load(); return defaults.HostHomeDir }

// HostDocName returns the global instructions document name.
func HostDocName() string { load(); return defaults.HostDocName }

// ProjectDocName returns the per-project instructions document name.
func ProjectDocName() string { load(); return defaults.ProjectDocName }

// EnvVar returns a fully qualified env var name, e.g., EnvVar("HOME") → "MCS_HOME".
func EnvVar(suffix string) string {
	load()
	return defaults.EnvPrefix + "_" + strings.ToUpper(suffix)
}
