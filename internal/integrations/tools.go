package integrations

import (
	"os/exec"

	"github.com/bguidolim/mcs/internal/config"
)

// ToolName identifies an external program the engine drives.
type ToolName string

const (
	ClaudeCLI ToolName = "claude"
	BrewCLI   ToolName = "brew"
	GitCLI    ToolName = "git"
)

// toolConfigKeys maps each tool to the config key overriding its binary.
var toolConfigKeys = map[ToolName]string{
	ClaudeCLI: config.KeyClaudeCLI,
	BrewCLI:   config.KeyBrewCLI,
	GitCLI:    config.KeyGitCLI,
}

// AllTools returns all external tools.
func AllTools() []ToolName {
	return []ToolName{ClaudeCLI, BrewCLI, GitCLI}
}

// Binary returns the configured binary for tool.
func Binary(tool ToolName) string {
	if v := config.Get(toolConfigKeys[tool]); v != "" {
		return v
	}
	return string(tool)
}

// Available reports whether tool's binary is on PATH.
func Available(tool ToolName) (string, bool) {
	path, err := exec.LookPath(Binary(tool))
	return path, err == nil
}
