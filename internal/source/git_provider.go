package source

import (
	"context"
	"fmt"

	"defdoc/internal/config"
	"defdoc/internal/git"
)

// GitProvider checks versions out of a local clone of the native repository.
type GitProvider struct {
	repo    *git.Repo
	url     string
	current config.Version
	ready   bool
}

// NewGitProvider uses dir as the working tree, cloning url there on first use.
func NewGitProvider(dir, url string, trace func(string)) *GitProvider {
	repo := git.Open(dir)
	repo.Trace = trace
	return &GitProvider{repo: repo, url: url}
}

// prepare clones the repository or resets an existing clone to a clean state.
func (p *GitProvider) prepare(ctx context.Context) error {
	if p.ready {
		return nil
	}
	if p.repo.Exists() {
		if err := p.repo.Reset(ctx); err != nil {
			return fmt.Errorf("reset %s: %w", p.repo.Dir, err)
		}
	} else if err := p.repo.Clone(ctx, p.url); err != nil {
		return fmt.Errorf("clone %s: %w", p.url, err)
	}
	p.ready = true
	return nil
}

func (p *GitProvider) Checkout(ctx context.Context, v config.Version) error {
	if err := p.prepare(ctx); err != nil {
		return err
	}
	if err := p.repo.Checkout(ctx, v.Tag); err != nil {
		return fmt.Errorf("checkout %s: %w", v.Tag, err)
	}
	p.current = v
	return nil
}

func (p *GitProvider) ReadLines(path string) ([]string, error) {
	return readTree(p.repo.Dir, path, p.current.Tag)
}
