// Package pipeline runs a full generation: parse the managed binding files,
// resolve every definition against each configured version, then rewrite
// the binding files once.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"defdoc/internal/config"
	"defdoc/internal/crawler"
	"defdoc/internal/directive"
	"defdoc/internal/generator"
	"defdoc/internal/metrics"
	"defdoc/internal/registry"
	"defdoc/internal/resolver"
	"defdoc/internal/source"
	"defdoc/internal/storage"
)

// ErrStale is returned in check mode when a binding file is out of date.
var ErrStale = errors.New("generated documentation is out of date")

type Mode string

const (
	ModeInPlace   Mode = "in-place"
	ModeOutputDir Mode = "output-dir"
	ModeCheck     Mode = "check"
	ModeDryRun    Mode = "dry-run"
)

type Options struct {
	Mode      Mode
	OutputDir string // ModeOutputDir only
	Jobs      int
	// Out receives progress lines and diffs. Defaults to io.Discard.
	Out       io.Writer
}

// Generator wires the stages together. Metrics and Store are optional.
type Generator struct {
	Config  *config.Config
	Files   source.Provider
	Log     *zap.SugaredLogger
	Metrics *metrics.Recorder
	Store   storage.ReportStore
}

// Result is what a successful (or stale) run produced.
type Result struct {
	RunID    string
	Registry *registry.Registry
	Report   *Report
	Updates  []generator.FileUpdate
	Written  []string
	Stale    []string
	Warnings []resolver.Warning
}

func NewGenerator(cfg *config.Config, files source.Provider, log *zap.SugaredLogger) *Generator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Generator{Config: cfg, Files: files, Log: log}
}

// Run executes all stages. No binding file is written unless every
// definition resolved for every version.
func (g *Generator) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Mode == "" {
		opts.Mode = ModeInPlace
	}
	if opts.Mode == ModeOutputDir && opts.OutputDir == "" {
		return nil, errors.New("output directory required")
	}

	started := time.Now()
	res := &Result{RunID: uuid.NewString(), Registry: registry.New()}
	res.Report = NewReport(res.RunID, string(opts.Mode))
	for _, v := range g.Config.Versions {
		res.Report.Versions = append(res.Report.Versions, v.Short)
	}

	sources, err := g.parseStage(res)
	if err != nil {
		return res, err
	}
	g.scanStage(res)

	var mu sync.Mutex
	env := &resolver.Env{
		Files:    source.NewCache(g.Files),
		Registry: res.Registry,
		URLs:     resolver.URLsFromConfig(g.Config),
		Warn: func(w resolver.Warning) {
			mu.Lock()
			defer mu.Unlock()
			res.Warnings = append(res.Warnings, w)
		},
	}
	chain := resolver.NewChain(resolver.NewSet(env), opts.Jobs)
	for _, v := range g.Config.Versions {
		if err := g.resolveStage(ctx, env, chain, v, res, opts.Out); err != nil {
			return res, err
		}
	}
	g.recordWarnings(res)

	if err := g.rewriteStage(res, sources, opts); err != nil {
		return res, err
	}

	if g.Metrics != nil {
		g.Metrics.ObserveRegistry(res.Registry)
	}
	if g.Store != nil {
		run := storage.NewRun(res.Registry, res.Report.Versions, started)
		run.ID = res.RunID
		run.FinishedAt = time.Now()
		run.Warnings = len(res.Warnings)
		if err := g.Store.SaveRun(ctx, run); err != nil {
			return res, fmt.Errorf("save run report: %w", err)
		}
	}

	if opts.Mode == ModeCheck && len(res.Stale) > 0 {
		return res, fmt.Errorf("%w: %d file(s)", ErrStale, len(res.Stale))
	}
	return res, nil
}

// parseStage reads every managed file once and builds the registry. The
// returned sources are what rewriteStage renders from.
func (g *Generator) parseStage(res *Result) ([]generator.Source, error) {
	h := res.Report.BeginStage("parse")
	parser := directive.NewParser(res.Registry, g.Log)

	sources, err := g.updater(res).Load(g.managedPaths())
	if err == nil {
		for i, src := range sources {
			lines, _ := src.Lines()
			if err = parser.ParseFile(src.Path, g.Config.Bindings.Files[i].Header, lines); err != nil {
				break
			}
		}
	}
	if err == nil {
		err = res.Registry.Validate()
	}

	res.Report.definitions = res.Registry.Len()
	res.Report.EndStage(h, map[string]float64{
		"files":       float64(len(g.Config.Bindings.Files)),
		"definitions": float64(res.Registry.Len()),
		"unknown":     float64(parser.Unknown),
	}, err)
	if parser.Unknown > 0 {
		res.Report.AddSignal(ReportSignal{
			Code:     "unknown_directive",
			Stage:    "parse",
			Severity: "info",
			Message:  fmt.Sprintf("%d directive(s) with unknown keywords ignored", parser.Unknown),
		})
	}
	return sources, err
}

func (g *Generator) updater(res *Result) *generator.SourceUpdater {
	return generator.NewSourceUpdater(g.Config.Bindings.Root, res.Registry)
}

func (g *Generator) managedPaths() []string {
	paths := make([]string, 0, len(g.Config.Bindings.Files))
	for _, f := range g.Config.Bindings.Files {
		paths = append(paths, f.Path)
	}
	return paths
}

// scanStage flags binding files that carry directives but are not managed.
func (g *Generator) scanStage(res *Result) {
	h := res.Report.BeginStage("scan")
	found, err := crawler.NewCrawler().FindUnmanaged(g.Config.Bindings.Root, g.managedPaths())
	for _, u := range found {
		g.Log.Warnw("binding file has directives but is not managed", "file", u.Path, "directives", u.Directives)
		res.Report.AddSignal(ReportSignal{
			Code:     "unmanaged_file",
			Stage:    "scan",
			Severity: "warning",
			Message:  fmt.Sprintf("%s has %d directive(s) but is not in bindings.files", u.Path, u.Directives),
		})
	}
	if err != nil {
		// Scanning is advisory; a broken tree still fails later in parse or rewrite.
		g.Log.Debugw("scan failed", "error", err)
	}
	res.Report.EndStage(h, map[string]float64{"unmanaged": float64(len(found))}, nil)
}

func (g *Generator) resolveStage(ctx context.Context, env *resolver.Env, chain *resolver.Chain, v config.Version, res *Result, out io.Writer) error {
	h := res.Report.BeginStage("resolve " + v.Short)
	fmt.Fprintf(out, "🔎 Resolving %d definitions against %s (%s)...\n", res.Registry.Len(), v.Short, v.Tag)

	if err := env.Files.Checkout(ctx, v); err != nil {
		err = fmt.Errorf("checkout %s: %w", v.Tag, err)
		res.Report.EndStage(h, nil, err)
		return err
	}

	passes, err := chain.Run(ctx, res.Registry.All(), v)
	counters := map[string]float64{}
	for _, p := range passes {
		counters[p.Pass+"_resolved"] = float64(p.Stats.Resolved)
		if g.Metrics != nil {
			g.Metrics.ObservePass(p.Pass, p.Duration.Seconds())
		}
	}
	res.Report.EndStage(h, counters, err)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", v.Short, err)
	}
	return nil
}

// recordWarnings orders warnings by version then definition, since
// concurrent resolvers report them in any order, and logs them.
func (g *Generator) recordWarnings(res *Result) {
	versionPos := make(map[string]int, len(g.Config.Versions))
	for i, v := range g.Config.Versions {
		versionPos[v.Short] = i
	}
	sort.SliceStable(res.Warnings, func(i, j int) bool {
		a, b := res.Warnings[i], res.Warnings[j]
		if versionPos[a.Version] != versionPos[b.Version] {
			return versionPos[a.Version] < versionPos[b.Version]
		}
		if a.Definition.ID != b.Definition.ID {
			return a.Definition.ID < b.Definition.ID
		}
		return a.Reason < b.Reason
	})

	for _, w := range res.Warnings {
		g.Log.Warnw(w.Message, "reason", w.Reason, "definition", w.Definition.String(), "version", w.Version, "origin", w.Definition.Origin.String())
		res.Report.AddSignal(ReportSignal{
			Code:       w.Reason,
			Stage:      "resolve " + w.Version,
			Severity:   "warning",
			Message:    w.Message,
			Definition: w.Definition.Name,
		})
		if g.Metrics != nil {
			g.Metrics.Warning(w.Reason)
		}
	}
}

func (g *Generator) rewriteStage(res *Result, sources []generator.Source, opts Options) error {
	h := res.Report.BeginStage("rewrite")
	updater := g.updater(res)

	updates, err := updater.Render(sources)
	if err != nil {
		res.Report.EndStage(h, nil, err)
		return err
	}
	res.Updates = updates

	for _, u := range updates {
		if !u.Changed() {
			continue
		}
		res.Stale = append(res.Stale, u.Path)
		if opts.Mode == ModeCheck || opts.Mode == ModeDryRun {
			diff, err := u.Diff()
			if err != nil {
				res.Report.EndStage(h, nil, err)
				return err
			}
			fmt.Fprint(opts.Out, diff)
		}
	}
	res.Report.filesChanged = len(res.Stale)
	if g.Metrics != nil {
		g.Metrics.StaleFiles(len(res.Stale))
	}

	switch opts.Mode {
	case ModeInPlace:
		res.Written, err = updater.Write(updates, g.Config.Bindings.Root)
	case ModeOutputDir:
		res.Written, err = updater.Write(updates, opts.OutputDir)
	}
	if g.Metrics != nil {
		g.Metrics.FilesWritten(len(res.Written))
	}
	for _, p := range res.Written {
		fmt.Fprintf(opts.Out, "✍️  Updated %s\n", p)
	}

	res.Report.EndStage(h, map[string]float64{
		"files":   float64(len(updates)),
		"stale":   float64(len(res.Stale)),
		"written": float64(len(res.Written)),
	}, err)
	return err
}
