package installer

import (
	"context"
	"fmt"

	"github.com/bguidolim/mcs/internal/integrations"
)

// Host registers services and plugins with the host tool.
type Host interface {
	AddServer(ctx context.Context, scope string, s integrations.ServerSpec) error
	RemoveServer(ctx context.Context, scope, name string) error
	InstallPlugin(ctx context.Context, ref string) error
	UninstallPlugin(ctx context.Context, ref string) error
}

// Packages installs system packages.
type Packages interface {
	IsInstalled(ctx context.Context, name string) (bool, error)
	Install(ctx context.Context, name string) error
	Uninstall(ctx context.Context, name string) error
}

// Shell runs shell-action scripts.
type Shell interface {
	Run(ctx context.Context, dir, script string) error
}

// Installer drives the external collaborators for one run.
type Installer struct {
	Host     Host
	Packages Packages
	Shell    Shell
}

// New returns an installer backed by real processes run through r, with
// binaries taken from configuration.
func New(r integrations.Runner, workDir string) *Installer {
	return &Installer{
		Host: integrations.NewHostCLI(r,
			integrations.WithHostBinary(integrations.Binary(integrations.ClaudeCLI)),
			integrations.WithHostDir(workDir)),
		Packages: integrations.NewBrew(r, integrations.Binary(integrations.BrewCLI)),
		Shell:    integrations.NewShell(r),
	}
}

// InstallPackage installs name unless it is already present.
func (in *Installer) InstallPackage(ctx context.Context, name string) error {
	ok, err := in.Packages.IsInstalled(ctx, name)
	if err != nil {
		return fmt.Errorf("checking package %s: %w", name, err)
	}
	if ok {
		return nil
	}
	if err := in.Packages.Install(ctx, name); err != nil {
		return fmt.Errorf("installing package %s: %w", name, err)
	}
	return nil
}

// RemovePackage uninstalls name if it is present.
func (in *Installer) RemovePackage(ctx context.Context, name string) error {
	ok, err := in.Packages.IsInstalled(ctx, name)
	if err != nil {
		return fmt.Errorf("checking package %s: %w", name, err)
	}
	if !ok {
		return nil
	}
	if err := in.Packages.Uninstall(ctx, name); err != nil {
		return fmt.Errorf("uninstalling package %s: %w", name, err)
	}
	return nil
}

// RegisterServer registers s in the given host scope.
func (in *Installer) RegisterServer(ctx context.Context, hostScope string, s integrations.ServerSpec) error {
	if err := in.Host.AddServer(ctx, hostScope, s); err != nil {
		return fmt.Errorf("registering server %s: %w", s.Name, err)
	}
	return nil
}

// UnregisterServer removes name from the given host scope.
func (in *Installer) UnregisterServer(ctx context.Context, hostScope, name string) error {
	if err := in.Host.RemoveServer(ctx, hostScope, name); err != nil {
		return fmt.Errorf("removing server %s: %w", name, err)
	}
	return nil
}

// InstallPlugin installs ref.
func (in *Installer) InstallPlugin(ctx context.Context, ref string) error {
	if err := in.Host.InstallPlugin(ctx, ref); err != nil {
		return fmt.Errorf("installing plugin %s: %w", ref, err)
	}
	return nil
}

// RemovePlugin uninstalls ref.
func (in *Installer) RemovePlugin(ctx context.Context, ref string) error {
	if err := in.Host.UninstallPlugin(ctx, ref); err != nil {
		return fmt.Errorf("uninstalling plugin %s: %w", ref, err)
	}
	return nil
}

// RunShell runs script in dir. An empty script is a no-op.
func (in *Installer) RunShell(ctx context.Context, dir, script string) error {
	if script == "" {
		return nil
	}
	if err := in.Shell.Run(ctx, dir, script); err != nil {
		return fmt.Errorf("running shell action: %w", err)
	}
	return nil
}
