package integrations

import (
	"context"
	"strings"
)

// Git drives git for external pack checkouts.
type Git struct {
	runner Runner
	bin    string
}

// NewGit returns a git driver using bin (default "git").
func NewGit(r Runner, bin string) *Git {
	if bin == "" {
		bin = "git"
	}
	return &Git{runner: r, bin: bin}
}

func (g *Git) run(ctx context.Context, dir string, args ...string) (string, error) {
	res, err := g.runner.Run(ctx, Command{Name: g.bin, Args: args, Dir: dir})
	return strings.TrimSpace(string(res.Stdout)), err
}

// Clone clones url into dir, checking out ref when given.
func (g *Git) Clone(ctx context.Context, url, dir, ref string) error {
	args := []string{"clone", "--quiet"}
	if ref != "" {
		args = append(args, "--branch", ref)
	}
	_, err := g.run(ctx, "", append(args, url, dir)...)
	return err
}

// Pull fast-forwards the checkout in dir.
func (g *Git) Pull(ctx context.Context, dir string) error {
	_, err := g.run(ctx, dir, "pull", "--ff-only", "--quiet")
	return err
}

// Fetch updates remote refs in dir.
func (g *Git) Fetch(ctx context.Context, dir string) error {
	_, err := g.run(ctx, dir, "fetch", "--quiet", "--tags", "origin")
	return err
}

// Checkout moves the checkout in dir to ref.
func (g *Git) Checkout(ctx context.Context, dir, ref string) error {
	_, err := g.run(ctx, dir, "checkout", "--quiet", ref)
	return err
}

// Head returns the commit the checkout in dir is at.
func (g *Git) Head(ctx context.Context, dir string) (string, error) {
	return g.run(ctx, dir, "rev-parse", "HEAD")
}

// RemoteURL returns the origin URL of the checkout in dir.
func (g *Git) RemoteURL(ctx context.Context, dir string) (string, error) {
	return g.run(ctx, dir, "remote", "get-url", "origin")
}

// Branch returns the branch checked out in dir.
func (g *Git) Branch(ctx context.Context, dir string) (string, error) {
	return g.run(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
}
