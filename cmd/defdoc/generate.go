package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"defdoc/internal/logging"
	"defdoc/internal/metrics"
	"defdoc/internal/pipeline"
	"defdoc/internal/source"
	"defdoc/internal/storage"
)

var generateOpts struct {
	snapshots   string
	outputDir   string
	check       bool
	dryRun      bool
	jobs        int
	dbPath      string
	metricsFile string
	reportFile  string
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Resolve every annotated definition and rewrite the binding files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := generateOpts

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := logging.Logger()
		out := cmd.OutOrStdout()

		var files source.Provider
		if opts.snapshots != "" {
			files = source.NewDirProvider(opts.snapshots)
		} else {
			files = source.NewGitProvider(cfg.Native.CheckoutDir, cfg.Native.RepoURL, func(line string) {
				log.Debugw("git", "cmd", line)
			})
		}

		g := pipeline.NewGenerator(cfg, files, log)
		if opts.metricsFile != "" {
			g.Metrics = metrics.New()
		}
		if opts.dbPath != "" {
			store, err := storage.NewSQLiteStore(opts.dbPath)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer store.Close()
			g.Store = store
		}

		runOpts := pipeline.Options{Mode: pipeline.ModeInPlace, Jobs: opts.jobs, Out: out}
		switch {
		case opts.check:
			runOpts.Mode = pipeline.ModeCheck
		case opts.dryRun:
			runOpts.Mode = pipeline.ModeDryRun
		case opts.outputDir != "":
			runOpts.Mode = pipeline.ModeOutputDir
			runOpts.OutputDir = opts.outputDir
		}

		start := time.Now()
		res, runErr := g.Run(cmd.Context(), runOpts)

		if res != nil && opts.reportFile != "" {
			if err := res.Report.Save(opts.reportFile); err != nil {
				log.Warnw("failed to save report", "path", opts.reportFile, "error", err)
			}
		}
		if g.Metrics != nil {
			if err := g.Metrics.WriteTextfile(opts.metricsFile); err != nil {
				log.Warnw("failed to write metrics", "path", opts.metricsFile, "error", err)
			}
		}
		if runErr != nil {
			if errors.Is(runErr, pipeline.ErrStale) {
				for _, p := range res.Stale {
					fmt.Fprintf(out, "❌ %s is out of date\n", p)
				}
			}
			return runErr
		}

		fmt.Fprintf(out, "✅ %d definitions, %d versions, %d file(s) changed, %d warning(s) in %v (run %s)\n",
			res.Registry.Len(), len(cfg.Versions), len(res.Stale), len(res.Warnings), time.Since(start).Round(time.Millisecond), res.RunID)
		return nil
	},
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&generateOpts.snapshots, "snapshots", "", "Read native sources from <dir>/<tag>/ instead of a git checkout")
	f.StringVarP(&generateOpts.outputDir, "output-dir", "o", "", "Write rewritten binding files under this directory instead of in place")
	f.BoolVar(&generateOpts.check, "check", false, "Fail if any binding file is out of date; write nothing")
	f.BoolVar(&generateOpts.dryRun, "dry-run", false, "Print the diff that would be applied; write nothing")
	f.IntVarP(&generateOpts.jobs, "jobs", "j", 1, "Definitions resolved concurrently within a pass")
	f.StringVarP(&generateOpts.dbPath, "db", "d", "", "Record the run in this SQLite database")
	f.StringVar(&generateOpts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
	f.StringVar(&generateOpts.reportFile, "report", "", "Write the JSON run report to this file")
	generateCmd.MarkFlagsMutuallyExclusive("check", "dry-run")
	generateCmd.MarkFlagsMutuallyExclusive("check", "output-dir")
	generateCmd.MarkFlagsMutuallyExclusive("dry-run", "output-dir")
}
