package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"competitor-watch/app"
	"competitor-watch/config"
	"competitor-watch/services"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// opener baut die App für einen Befehl. Tests ersetzen ihn durch eine SQLite-Variante.
type opener func(ctx context.Context, verbose bool) (*app.App, error)

func defaultOpener(ctx context.Context, verbose bool) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger := zap.NewNop()
	if verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			return nil, err
		}
	}
	return app.New(ctx, cfg, logger)
}

func newRootCmd(open opener) *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:   "cwatch",
		Short: "competitor-watch: PubMed und ClinicalTrials.gov nach Wettbewerbern durchsuchen",
		Long: `cwatch holt Paper und Studien in Snapshots, normalisiert ihre Daten
und markiert Affiliationen und Sponsoren, die zu bekannten Wettbewerbern passen.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr")

	withApp := func(run func(cmd *cobra.Command, args []string, a *app.App) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd.Context(), verbose)
			if err != nil {
				return err
			}
			defer a.Close()
			return run(cmd, args, a)
		}
	}

	root.AddCommand(
		newPubMedCmd(withApp),
		newTrialsCmd(withApp),
		newProfileCmd(withApp),
		newTagCmd(withApp),
		newSeedCmd(withApp),
		newSnapshotsCmd(withApp),
		newMigrateCmd(withApp),
	)
	return root
}

type appRunner func(run func(cmd *cobra.Command, args []string, a *app.App) error) func(*cobra.Command, []string) error

func printReport(w io.Writer, r *services.RunReport) {
	fmt.Fprintf(w, "snapshot:      %s\n", r.SnapshotID)
	fmt.Fprintf(w, "source:        %s\n", r.Source)
	fmt.Fprintf(w, "query:         %s\n", r.Query)
	if r.Window != "" {
		fmt.Fprintf(w, "window:        %s\n", r.Window)
	}
	fmt.Fprintf(w, "fetched:       %d\n", r.Fetched)
	fmt.Fprintf(w, "filtered out:  %d\n", r.FilteredOut)
	fmt.Fprintf(w, "kept undated:  %d\n", r.KeptUndated)
	fmt.Fprintf(w, "ingested:      %d\n", r.Ingested)
	fmt.Fprintf(w, "mentions:      %d\n", r.Mentions)
	if r.FilterReason != "" {
		fmt.Fprintf(w, "filter:        %s\n", r.FilterReason)
	}
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "warning:       %s\n", warn)
	}
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
