package resolver

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"defdoc/internal/config"
	"defdoc/internal/registry"
)

// Pass names, in execution order.
const (
	PassIdentity = "identity"
	PassLinks    = "links"
)

type PassStats struct {
	Attempted int
	Resolved  int
}

// PassResult describes one pass over the registry for one version.
type PassResult struct {
	Version  string
	Pass     string
	Stats    PassStats
	Duration time.Duration
	Err      error
}

type passFunc func(ctx context.Context, def *registry.Definition, v config.Version) error

// Chain runs the identity pass and then the links pass for a version.
// Within a pass up to jobs definitions are resolved concurrently; passes
// and versions are never interleaved.
type Chain struct {
	set  *Set
	jobs int
}

func NewChain(set *Set, jobs int) *Chain {
	if jobs < 1 {
		jobs = 1
	}
	return &Chain{set: set, jobs: jobs}
}

// Run resolves every definition against v. It stops at the first failing
// pass; the returned results include that pass with Err set.
func (c *Chain) Run(ctx context.Context, defs []*registry.Definition, v config.Version) ([]PassResult, error) {
	passes := []struct {
		name string
		fn   passFunc
	}{
		{PassIdentity, c.set.ResolveIdentity},
		{PassLinks, c.set.AddLinks},
	}

	var out []PassResult
	for _, p := range passes {
		res := c.runPass(ctx, p.name, p.fn, defs, v)
		out = append(out, res)
		if res.Err != nil {
			return out, res.Err
		}
	}
	return out, nil
}

func (c *Chain) runPass(ctx context.Context, name string, fn passFunc, defs []*registry.Definition, v config.Version) PassResult {
	started := time.Now()
	var attempted, resolved atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.jobs)
	for _, def := range defs {
		g.Go(func() error {
			attempted.Add(1)
			if err := fn(gctx, def, v); err != nil {
				return err
			}
			resolved.Add(1)
			return nil
		})
	}
	err := g.Wait()

	return PassResult{
		Version:  v.Short,
		Pass:     name,
		Stats:    PassStats{Attempted: int(attempted.Load()), Resolved: int(resolved.Load())},
		Duration: time.Since(started),
		Err:      err,
	}
}
