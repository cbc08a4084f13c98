package integrations

import (
	"context"
	"errors"
)

// Brew drives the package manager.
type Brew struct {
	runner Runner
	bin    string
}

// NewBrew returns a package manager driver using bin (default "brew").
func NewBrew(r Runner, bin string) *Brew {
	if bin == "" {
		bin = "brew"
	}
	return &Brew{runner: r, bin: bin}
}

// IsInstalled reports whether a package is installed.
func (b *Brew) IsInstalled(ctx context.Context, name string) (bool, error) {
	_, err := b.runner.Run(ctx, Command{Name: b.bin, Args: []string{"list", "--versions", name}})
	if err == nil {
		return true, nil
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		return false, nil
	}
	return false, err
}

// Install installs a package.
func (b *Brew) Install(ctx context.Context, name string) error {
	_, err := b.runner.Run(ctx, Command{Name: b.bin, Args: []string{"install", name}})
	return err
}

// Uninstall removes a package.
func (b *Brew) Uninstall(ctx context.Context, name string) error {
	_, err := b.runner.Run(ctx, Command{Name: b.bin, Args: []string{"uninstall", name}})
	return err
}

// Shell runs shell-action scripts.
type Shell struct {
	runner Runner
	sh     string
}

// NewShell returns a shell driver using /bin/sh.
func NewShell(r Runner) *Shell {
	return &Shell{runner: r, sh: "/bin/sh"}
}

// Run executes script with dir as working directory.
func (s *Shell) Run(ctx context.Context, dir, script string) error {
	_, err := s.runner.Run(ctx, Command{Name: s.sh, Args: []string{"-c", script}, Dir: dir})
	return err
}
