package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"competitor-watch/app"
	"competitor-watch/services"

	"github.com/spf13/cobra"
)

func newPubMedCmd(withApp appRunner) *cobra.Command {
	var req services.PubMedRequest
	cmd := &cobra.Command{
		Use:   "pubmed <query>",
		Short: "PubMed-Suche in einen Snapshot laden",
		Long: `Sucht in PubMed, filtert auf das Zeitfenster (ohne Angabe die letzten
PUBMED_WINDOW_DAYS Tage), speichert die Treffer und markiert Wettbewerber.

Example:
  cwatch pubmed "guselkumab AND psoriasis" --start 2025-01-01 --end 2025-03-31`,
		Args: cobra.MinimumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			req.Query = joinArgs(args)
			report, err := a.Service.RunPubMed(cmd.Context(), req)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		}),
	}
	f := cmd.Flags()
	f.StringVar(&req.Start, "start", "", "window start (YYYY, YYYY-MM or YYYY-MM-DD)")
	f.StringVar(&req.End, "end", "", "window end")
	f.IntVar(&req.MaxResults, "max", 0, "maximum PMIDs to fetch (default PUBMED_RETMAX)")
	f.StringVar(&req.SnapshotID, "snapshot", "", "ingest into this snapshot id")
	f.BoolVar(&req.AddToLatest, "add-to-latest", false, "ingest into the most recent snapshot")
	f.StringVar(&req.Notes, "notes", "", "snapshot notes")
	return cmd
}

func newTrialsCmd(withApp appRunner) *cobra.Command {
	var req services.TrialsRequest
	cmd := &cobra.Command{
		Use:   "trials <condition>",
		Short: "ClinicalTrials.gov-Studien in einen Snapshot laden",
		Long: `Blättert durch die Studien einer Indikation, optional eingeschränkt auf eine
Intervention und ein Zeitfenster nach Erstveröffentlichung.

Example:
  cwatch trials psoriasis --intervention bimekizumab --max 200`,
		Args: cobra.MinimumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			req.Condition = joinArgs(args)
			report, err := a.Service.RunTrials(cmd.Context(), req)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		}),
	}
	f := cmd.Flags()
	f.StringVar(&req.Intervention, "intervention", "", "intervention search term")
	f.StringVar(&req.Start, "start", "", "window start")
	f.StringVar(&req.End, "end", "", "window end")
	f.IntVar(&req.MaxStudies, "max", 0, "maximum studies to page through (default CTGOV_MAX_STUDIES)")
	f.StringVar(&req.SnapshotID, "snapshot", "", "ingest into this snapshot id")
	f.BoolVar(&req.AddToLatest, "add-to-latest", false, "ingest into the most recent snapshot")
	return cmd
}

func newProfileCmd(withApp appRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Überwachungsprofile verwalten und ausführen",
	}

	var all bool
	run := &cobra.Command{
		Use:   "run [profile-id]",
		Short: "Profil ausführen (ohne ID das zuletzt angelegte aktive Profil)",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			ctx := cmd.Context()
			if all {
				reports, err := a.Service.RunActiveProfiles(ctx)
				if err != nil {
					return err
				}
				for i, r := range reports {
					if i > 0 {
						fmt.Fprintln(cmd.OutOrStdout())
					}
					printReport(cmd.OutOrStdout(), r)
				}
				return nil
			}

			var id uint
			if len(args) == 1 {
				n, err := strconv.ParseUint(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid profile id %q", args[0])
				}
				id = uint(n)
			} else {
				p, err := a.Store.LatestActiveProfile(ctx)
				if err != nil {
					return err
				}
				id = p.ProfileID
			}
			report, err := a.Service.RunProfile(ctx, id)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		}),
	}
	run.Flags().BoolVar(&all, "all", false, "run every active profile")

	var name, molecule, frequency string
	create := &cobra.Command{
		Use:   "create <query terms>",
		Short: "Neues aktives Profil anlegen",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			p, err := a.Store.CreateProfile(cmd.Context(), name, molecule, joinArgs(args), frequency)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "profile %d created: %s\n", p.ProfileID, p.Name)
			return nil
		}),
	}
	create.Flags().StringVar(&name, "name", "", "profile name")
	create.Flags().StringVar(&molecule, "molecule", "", "existing molecule name")
	create.Flags().StringVar(&frequency, "frequency", "daily", "run frequency")
	_ = create.MarkFlagRequired("name")

	list := &cobra.Command{
		Use:   "list",
		Short: "Profile auflisten",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			profiles, err := a.Store.Profiles(cmd.Context(), false)
			if err != nil {
				return err
			}
			for _, p := range profiles {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\tactive=%t\tlast=%s\t%s\n",
					p.ProfileID, p.Name, p.IsActive, p.LastSnapshotID, p.QueryTerms)
			}
			return nil
		}),
	}

	cmd.AddCommand(run, create, list)
	return cmd
}

func newTagCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "tag [snapshot-id]",
		Short: "Wettbewerber in einem Snapshot neu markieren (Standard: neuester)",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			ctx := cmd.Context()
			var id string
			if len(args) == 1 {
				id = args[0]
			} else {
				latest, ok, err := a.Store.LatestSnapshotID(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("no snapshots yet")
				}
				id = latest
			}
			if _, err := a.Store.Snapshot(ctx, id); err != nil {
				return err
			}
			n, err := a.Service.Tagger.Tag(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s: %d mentions\n", id, n)
			return nil
		}),
	}
}

func newSeedCmd(withApp appRunner) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Wettbewerber und Wirkstoffe aus der Roster-Datei laden",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			if path == "" {
				path = a.Config.RosterPath
			}
			roster, err := services.LoadRoster(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, ra := range roster.RedundantAliases() {
				fmt.Fprintf(out, "redundant alias: %s %q already matched by %q\n", ra.Competitor, ra.Alias, ra.CoveredBy)
			}
			if err := services.SeedRoster(cmd.Context(), a.Store, roster, a.Logger); err != nil {
				return err
			}
			fmt.Fprintf(out, "seeded %d competitors, %d molecules\n", len(roster.Competitors), len(roster.Molecules))
			return nil
		}),
	}
	cmd.Flags().StringVar(&path, "roster", "", "roster YAML (default ROSTER_PATH)")
	return cmd
}

func newSnapshotsCmd(withApp appRunner) *cobra.Command {
	var newOnly bool
	cmd := &cobra.Command{
		Use:   "snapshots [snapshot-id]",
		Short: "Snapshots auflisten oder die neuen Dokumente eines Snapshots zeigen",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				snaps, err := a.Store.ListSnapshots(ctx)
				if err != nil {
					return err
				}
				for _, s := range snaps {
					fmt.Fprintf(out, "%s\t%s\t%s\n", s.SnapshotID, s.CreatedAt.Format(time.RFC3339), s.Notes)
				}
				return nil
			}

			if newOnly {
				items, prev, err := a.Store.NewSincePrevious(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "new since %q: %d\n", prev, len(items))
				for _, it := range items {
					mark := " "
					if it.HasCompetitor {
						mark = "*"
					}
					fmt.Fprintf(out, "%s %s\t%s\t%s\n", mark, it.DocID, it.PublishedDate, it.Title)
				}
				return nil
			}

			docs, err := a.Store.TaggedDocuments(ctx, args[0])
			if err != nil {
				return err
			}
			for _, d := range docs {
				fmt.Fprintf(out, "%s\t%s\t%v\t%s\n", d.DocID, d.PublishedDate, d.Competitors, d.Title)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&newOnly, "new", false, "show documents not present in the previous snapshot")
	return cmd
}

func newMigrateCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Datenbankschema anlegen bzw. aktualisieren",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app.App) error {
			// app.New migriert bereits beim Öffnen
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", a.Config.DBDriver)
			return nil
		}),
	}
}
