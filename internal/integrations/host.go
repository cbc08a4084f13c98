package integrations

import (
	"context"
	"sort"
)

// Service registration scopes understood by the host CLI.
const (
	ScopeLocal = "local"
	ScopeUser  = "user"
)

// ServerSpec is a remote service registration.
type ServerSpec struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
	URL     string
}

// HostCLI drives the host tool's command line (`claude mcp`, `claude plugin`).
type HostCLI struct {
	runner Runner
	bin    string
	dir    string
}

// HostOption configures a HostCLI.
type HostOption func(*HostCLI)

// WithHostBinary overrides the host CLI binary name.
func WithHostBinary(bin string) HostOption {
	return func(h *HostCLI) {
		if bin != "" {
			h.bin = bin
		}
	}
}

// WithHostDir sets the working directory; local-scope registrations are
// keyed by the project directory the CLI runs in.
func WithHostDir(dir string) HostOption {
	return func(h *HostCLI) { h.dir = dir }
}

// NewHostCLI returns a host CLI driver.
func NewHostCLI(r Runner, opts ...HostOption) *HostCLI {
	h := &HostCLI{runner: r, bin: "claude"}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HostCLI) run(ctx context.Context, args ...string) error {
	_, err := h.runner.Run(ctx, Command{Name: h.bin, Args: args, Dir: h.dir})
	return err
}

// AddServer registers a service in scope.
func (h *HostCLI) AddServer(ctx context.Context, scope string, s ServerSpec) error {
	args := []string{"mcp", "add", "-s", scope}
	if s.URL != "" {
		args = append(args, "--transport", "http", s.Name, s.URL)
		return h.run(ctx, args...)
	}
	keys := make([]string, 0, len(s.Env))
	for k := range s.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-e", k+"="+s.Env[k])
	}
	args = append(args, s.Name, "--", s.Command)
	args = append(args, s.Args...)
	return h.run(ctx, args...)
}

// RemoveServer unregisters a service from scope.
func (h *HostCLI) RemoveServer(ctx context.Context, scope, name string) error {
	return h.run(ctx, "mcp", "remove", "-s", scope, name)
}

// InstallPlugin installs a plugin reference (name@marketplace).
func (h *HostCLI) InstallPlugin(ctx context.Context, ref string) error {
	return h.run(ctx, "plugin", "install", ref)
}

// UninstallPlugin removes a plugin reference.
func (h *HostCLI) UninstallPlugin(ctx context.Context, ref string) error {
	return h.run(ctx, "plugin", "uninstall", ref)
}
