package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Magalhaes24/scout/internal/model"
	"github.com/Magalhaes24/scout/internal/pipeline"
	"github.com/Magalhaes24/scout/internal/store"
)

var lookupAffiliation string

var lookupCmd = &cobra.Command{
	Use:   "lookup <name>",
	Short: "Resolve a single player and print the result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("lookup"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		job := model.Job{Name: args[0], Affiliation: lookupAffiliation}
		return lookup(ctx, os.Stdout, resolverFactory(), st, job)
	},
}

type lookupOutput struct {
	Name        string       `json:"name"`
	Affiliation string       `json:"affiliation"`
	Tier        model.Tier   `json:"tier"`
	Result      model.Result `json:"result"`
	Error       string       `json:"error,omitempty"`
}

// lookup resolves job with a fresh resolver, records it when st is non-nil
// and writes the outcome to out.
func lookup(ctx context.Context, out io.Writer, newResolver pipeline.ResolverFactory, st store.Store, job model.Job) error {
	r := newResolver()
	defer r.Close() //nolint:errcheck

	jr := pipeline.ResolveJob(ctx, r, job, time.Now)

	if st != nil {
		recordLookup(ctx, st, jr)
	}

	o := lookupOutput{Name: job.Name, Affiliation: job.Affiliation, Tier: jr.Tier, Result: jr.Result}
	if jr.Err != nil {
		o.Error = jr.Err.Error()
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(o)
}

func recordLookup(ctx context.Context, st store.Store, jr model.JobResult) {
	ctx = context.WithoutCancel(ctx)
	run, err := st.CreateRun(ctx, model.Run{InputPath: "lookup", Workers: 1, StartRow: 1})
	if err != nil {
		zap.L().Warn("lookup: record run", zap.Error(err))
		return
	}
	if err := st.RecordAttempt(ctx, model.AttemptFrom(run.ID, model.PassLookup, jr)); err != nil {
		zap.L().Warn("lookup: record attempt", zap.Error(err))
	}
	summary := &model.Summary{Jobs: 1, Processed: 1}
	summary.Count(jr.Result.Status, jr.Tier)
	if err := st.FinishRun(ctx, run.ID, model.RunStatusComplete, summary); err != nil {
		zap.L().Warn("lookup: finish run", zap.Error(err))
	}
}

func init() {
	lookupCmd.Flags().StringVar(&lookupAffiliation, "affiliation", "", "club the player is expected to belong to")
	rootCmd.AddCommand(lookupCmd)
}
