package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/Magalhaes24/scout/internal/model"
	"github.com/Magalhaes24/scout/internal/monitoring"
	"github.com/Magalhaes24/scout/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect run history",
	Long:  "Commands for listing and viewing recorded runs and their attempts.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := requireStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := requireStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		withAttempts, _ := cmd.Flags().GetBool("attempts")
		if !withAttempts {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(run)
		}

		attempts, err := st.ListAttempts(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "runs show attempts")
		}
		formatAttempts(os.Stdout, attempts)
		return nil
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run health and any alerts it would raise",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("history"); err != nil {
			return err
		}
		st, err := requireStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		since, _ := cmd.Flags().GetDuration("since")
		hours := int(since.Hours())
		if hours <= 0 {
			hours = cfg.Monitoring.LookbackWindowHours
		}

		snap, err := monitoring.NewCollector(st).Collect(ctx, hours)
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}
		alerts := monitoring.NewAlerter(cfg.Monitoring).Evaluate(snap)
		formatRunStats(os.Stdout, snap, alerts)

		if send, _ := cmd.Flags().GetBool("send"); send {
			monitoring.NewAlerter(cfg.Monitoring).SendAlerts(ctx, alerts)
		}
		return nil
	},
}

// -- runs watch --

var runsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Periodically check run health and post alerts to the webhook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("history"); err != nil {
			return err
		}
		if cfg.Monitoring.WebhookURL == "" {
			return eris.New("monitoring.webhook_url is required (SCOUT_MONITORING_WEBHOOK_URL)")
		}
		st, err := requireStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		newChecker(st).Run(ctx)
		return nil
	},
}

func newChecker(st monitoring.RunLister) *monitoring.Checker {
	return monitoring.NewChecker(
		monitoring.NewCollector(st),
		monitoring.NewAlerter(cfg.Monitoring),
		cfg.Monitoring,
	)
}

func init() {
	runsStatsCmd.Flags().Duration("since", 0, "time window for stats (default monitoring.lookback_window_hours)")
	runsStatsCmd.Flags().Bool("send", false, "post triggered alerts to monitoring.webhook_url")

	runsListCmd.Flags().String("status", "", "filter by run status (running, complete, cancelled, failed)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")
	runsListCmd.Flags().Int("offset", 0, "number of runs to skip")

	runsShowCmd.Flags().Bool("attempts", false, "list every recorded attempt instead of the run summary")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	runsCmd.AddCommand(runsWatchCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tPROCESSED\tOK\tSTARTED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t------\t---------\t--\t-------\t--------")

	for _, r := range runs {
		dur := "-"
		if r.FinishedAt != nil {
			dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}

		processed, ok := "-", "-"
		if r.Summary != nil {
			processed = fmt.Sprintf("%d/%d", r.Summary.Processed, r.Summary.Jobs)
			ok = fmt.Sprint(r.Summary.StatusCounts[string(model.StatusOK)])
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			r.Status,
			processed,
			ok,
			r.StartedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// formatAttempts writes one line per attempt to w.
func formatAttempts(out io.Writer, attempts []model.Attempt) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ROW\tPASS\tPLAYER\tSTATUS\tTIER\tVALUE\tMS")

	for _, a := range attempts {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d\n",
			a.RowIndex+1,
			a.Pass,
			a.Name,
			a.Status,
			a.Tier,
			a.RawValue,
			a.DurationMs,
		)
	}
	_ = w.Flush()
}

// formatRunStats writes a health snapshot and its alerts to w.
func formatRunStats(out io.Writer, s *monitoring.MetricsSnapshot, alerts []monitoring.Alert) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Window:\t%dh\n", s.LookbackHours)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.RunsTotal)
	_, _ = fmt.Fprintf(w, "  Complete:\t%d\n", s.RunsComplete)
	_, _ = fmt.Fprintf(w, "  Cancelled:\t%d\n", s.RunsCancelled)
	_, _ = fmt.Fprintf(w, "  Failed:\t%d\n", s.RunsFailed)
	_, _ = fmt.Fprintf(w, "  Running:\t%d\n", s.RunsRunning)
	_, _ = fmt.Fprintf(w, "Rows processed:\t%d\n", s.RowsProcessed)
	_, _ = fmt.Fprintf(w, "  ok:\t%d\n", s.RowsOK)
	_, _ = fmt.Fprintf(w, "  value_not_found:\t%d\n", s.RowsNoValue)
	_, _ = fmt.Fprintf(w, "  not_found:\t%d\n", s.RowsNotFound)
	_, _ = fmt.Fprintf(w, "  error:\t%d\n", s.RowsErrored)
	if s.RowsProcessed > 0 {
		_, _ = fmt.Fprintf(w, "Error rate:\t%.1f%%\n", s.RowErrorRate*100)
		_, _ = fmt.Fprintf(w, "Fallback share:\t%.1f%%\n", s.FallbackShare*100)
	}
	_ = w.Flush()

	for _, a := range alerts {
		_, _ = fmt.Fprintf(out, "ALERT [%s] %s\n", a.Severity, a.Message)
	}
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
