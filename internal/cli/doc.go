// Package cli defines the Cobra command tree for mcs. Each file registers one
// top-level command (sync, status, pack, doctor, config, version, serve-mcp)
// with the root command. Commands wire the internal packages together and
// only handle flag parsing, output and prompting.
package cli
