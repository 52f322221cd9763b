package main

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Magalhaes24/scout/internal/input"
	"github.com/Magalhaes24/scout/internal/model"
	"github.com/Magalhaes24/scout/internal/pipeline"
	"github.com/Magalhaes24/scout/internal/table"
)

var (
	runInput    string
	runOutput   string
	runStartRow int
	runWorkers  int
	runColumns  string
	runBackfill bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Resolve market values for every player in the input table",
	Long: "Seeds the output table from the input on first use, then resolves rows from --start-row " +
		"with a worker pool, retries rows the pool did not reach, and optionally backfills gaps. " +
		"Interrupting with Ctrl-C finishes in-flight lookups and saves before exiting.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("run"); err != nil {
			return err
		}

		outPath := runOutput
		if outPath == "" {
			outPath = cfg.Output.Path
		}
		repo := table.New(outPath)

		inPath, err := seedRepository(repo, runInput)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		var history pipeline.History
		if st != nil {
			defer st.Close() //nolint:errcheck
			history = st
		}

		workers := runWorkers
		if workers <= 0 {
			workers = pipeline.RecommendedWorkers(cfg.Pipeline.MaxWorkers, runtime.NumCPU())
		}

		runner := pipeline.NewRunner(repo, resolverFactory(), history, pipeline.Config{
			InputPath:          inPath,
			StartRow:           max(1, runStartRow),
			Workers:            workers,
			Columns:            table.ParseColumns(runColumns),
			Backfill:           runBackfill,
			BackfillBehindRows: cfg.Pipeline.BackfillBehindRows,
			BackfillDelay:      cfg.Pipeline.BackfillDelay(),
			CheckpointEvery:    cfg.Pipeline.CheckpointEvery,
			WriteEveryRow:      cfg.Pipeline.WriteEveryRow,
			ProgressLogEvery:   cfg.Pipeline.ProgressLogEvery,
			PollInterval:       cfg.Pipeline.PollInterval(),
		})

		summary, err := runner.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		if summary.Cancelled {
			zap.L().Warn("run interrupted; rerun with --start-row to resume",
				zap.Int("processed", summary.Processed),
				zap.Int("jobs", summary.Jobs),
			)
		} else {
			zap.L().Info("run complete",
				zap.String("output", repo.Path()),
				zap.Int("processed", summary.Processed),
				zap.Int("retried", summary.Retried),
				zap.Int("backfilled", summary.Backfilled),
			)
		}

		if st != nil && cfg.Monitoring.WebhookURL != "" {
			newChecker(st).Check(context.WithoutCancel(ctx))
		}

		// Print summary JSON to stdout
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			RunID string `json:"run_id,omitempty"`
			*model.Summary
		}{runner.RunID(), summary})
	},
}

// seedRepository creates the output table from the input table when it does
// not exist yet. An existing output table is the source of truth and the
// input is not read. It returns the input path used, if any.
func seedRepository(repo *table.Repository, inPath string) (string, error) {
	if _, err := os.Stat(repo.Path()); err == nil {
		return inPath, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", eris.Wrap(err, "stat output")
	}

	if inPath == "" {
		found, err := input.Find(".", cfg.Input.Stem)
		if err != nil {
			return "", err
		}
		inPath = found
	}

	ents, err := input.Load(inPath)
	if err != nil {
		return "", err
	}
	if _, err := repo.InitializeIfMissing(ents.Names, ents.Affiliations); err != nil {
		return "", err
	}
	return inPath, nil
}

func init() {
	runCmd.Flags().StringVar(&runInput, "input", "", "input table (.csv or .xlsx); defaults to <input.stem>.csv|.xlsx in the working directory")
	runCmd.Flags().StringVar(&runOutput, "output", "", "persisted market values table (default from output.path)")
	runCmd.Flags().IntVar(&runStartRow, "start-row", 1, "1-based row to start resolving from")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "parallel workers (0 = recommended for this machine)")
	runCmd.Flags().StringVar(&runColumns, "columns", "all", "columns to update: all, or a comma-separated list of headers")
	runCmd.Flags().BoolVar(&runBackfill, "backfill", false, "fill blank cells of earlier rows after the run")
	rootCmd.AddCommand(runCmd)
}
