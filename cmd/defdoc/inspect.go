package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"defdoc/internal/storage"
)

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "Print the configured version table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "LABEL\tTAG\tDOCS")
		for _, v := range cfg.Versions {
			doc := v.Doc
			if doc == "" {
				doc = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", v.Short, v.Tag, doc)
		}
		return w.Flush()
	},
}

var linksOpts struct {
	dbPath string
	runID  string
}

var linksCmd = &cobra.Command{
	Use:   "links [name]",
	Short: "Print the link table recorded for a run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if linksOpts.dbPath == "" {
			return errors.New("--db is required")
		}
		store, err := storage.NewSQLiteStore(linksOpts.dbPath)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer store.Close()

		ctx := cmd.Context()
		runID := linksOpts.runID
		if runID == "" {
			if runID, err = store.LatestRun(ctx); err != nil {
				return err
			}
		}
		name := ""
		if len(args) > 0 {
			name = args[0]
		}

		rows, err := store.LoadLinks(ctx, runID, name)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return fmt.Errorf("no links recorded for %q in run %s", name, runID)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KIND\tNAME\tPUBLIC\tVERSION\tCATEGORY\tURL")
		for _, r := range rows {
			public := r.Public
			if public == "" {
				public = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", r.Kind, r.Name, public, r.Version, r.Category, r.URL)
		}
		return w.Flush()
	},
}

func init() {
	linksCmd.Flags().StringVarP(&linksOpts.dbPath, "db", "d", "", "SQLite database written by generate --db")
	linksCmd.Flags().StringVar(&linksOpts.runID, "run", "", "Run ID (default: latest)")
}
