package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Repo runs git commands against one working tree.
type Repo struct {
	Dir string

	// Trace, when set, receives every command line before it runs.
	Trace func(cmd string)
}

// Open returns a Repo for dir without checking that it exists.
func Open(dir string) *Repo {
	return &Repo{Dir: dir}
}

// Exists reports whether dir holds a git working tree.
func (r *Repo) Exists() bool {
	info, err := os.Stat(filepath.Join(r.Dir, ".git"))
	return err == nil && info.IsDir()
}

// Clone clones url into the repo directory.
func (r *Repo) Clone(ctx context.Context, url string) error {
	if err := os.MkdirAll(filepath.Dir(r.Dir), 0o755); err != nil {
		return fmt.Errorf("git clone: %w", err)
	}
	_, err := r.run(ctx, filepath.Dir(r.Dir), "clone", url, r.Dir)
	return err
}

// Reset discards untracked files and local modifications.
func (r *Repo) Reset(ctx context.Context) error {
	if _, err := r.run(ctx, r.Dir, "clean", "-f", "-d"); err != nil {
		return err
	}
	_, err := r.run(ctx, r.Dir, "checkout", ".")
	return err
}

// Checkout switches the working tree to ref.
func (r *Repo) Checkout(ctx context.Context, ref string) error {
	_, err := r.run(ctx, r.Dir, "checkout", "--quiet", ref)
	return err
}

// Head returns the commit currently checked out.
func (r *Repo) Head(ctx context.Context) (string, error) {
	out, err := r.run(ctx, r.Dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (r *Repo) run(ctx context.Context, dir string, args ...string) (string, error) {
	if r.Trace != nil {
		r.Trace("git " + strings.Join(args, " "))
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("git %s failed: %w", args[0], err)
		}
		return "", fmt.Errorf("git %s failed: %w: %s", args[0], err, msg)
	}
	return stdout.String(), nil
}
