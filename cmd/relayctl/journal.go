package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvmn-mentors/mentor-relay/internal/app"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply run journal migrations",
	Long: `Apply pending run journal migrations.

With --status the applied state of every migration is listed instead.
With --down the newest applied migration is reverted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetBool("status")
		down, _ := cmd.Flags().GetBool("down")
		if status && down {
			return fmt.Errorf("--status and --down are mutually exclusive")
		}

		relay, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer relay.Close()

		migrator, err := relay.Migrator()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		switch {
		case status:
			migrations, err := migrator.Status(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
			for _, m := range migrations {
				applied := "-"
				if m.IsApplied {
					applied = m.AppliedAt.Local().Format(time.DateTime)
				}
				fmt.Fprintf(tw, "%03d\t%s\t%s\n", m.Version, m.Name, applied)
			}
			return tw.Flush()

		case down:
			version, err := migrator.Rollback(cmd.Context())
			if err != nil {
				return err
			}
			if version == 0 {
				warning(out, "Nothing to revert")
				return nil
			}
			success(out, "Reverted migration %03d", version)
			return nil
		}

		applied, err := migrator.Migrate(cmd.Context())
		if err != nil {
			return err
		}
		if applied == 0 {
			success(out, "Schema is up to date")
			return nil
		}
		success(out, "Applied %d migration(s)", applied)
		return nil
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent batch runs of a mentor",
	RunE: func(cmd *cobra.Command, args []string) error {
		mentorID, _ := cmd.Flags().GetString("mentor")
		limit, _ := cmd.Flags().GetInt("limit")

		relay, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer relay.Close()

		if relay.Journal == nil {
			return app.ErrNoDatabase
		}
		runs, err := relay.Journal.RecentRuns(cmd.Context(), mentorID, limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "STARTED\tDURATION\tTOTAL\tSENT\tDUPLICATES\tFAILED\tSKIPPED")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
				r.StartedAt.Local().Format(time.DateTime),
				r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
				r.Total, r.Sent, r.Duplicates, r.Failed, r.Skipped,
			)
		}
		return tw.Flush()
	},
}

func init() {
	migrateCmd.Flags().Bool("status", false, "list migrations and their applied state")
	migrateCmd.Flags().Bool("down", false, "revert the newest applied migration")

	runsCmd.Flags().String("mentor", "", "mentor UUID")
	runsCmd.Flags().IntP("limit", "n", 20, "number of runs")
	_ = runsCmd.MarkFlagRequired("mentor")
}
