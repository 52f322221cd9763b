package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Magalhaes24/scout/internal/model"
	"github.com/Magalhaes24/scout/internal/table"
)

// History records runs and attempts. Implemented by store.Store.
type History interface {
	CreateRun(ctx context.Context, run model.Run) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, status model.RunStatus, summary *model.Summary) error
	RecordAttempt(ctx context.Context, attempt model.Attempt) error
}

// Config holds the parameters of one run.
type Config struct {
	InputPath          string
	StartRow           int
	Workers            int
	Columns            table.Columns
	Backfill           bool
	BackfillBehindRows int
	BackfillDelay      time.Duration
	CheckpointEvery    int
	WriteEveryRow      bool
	ProgressLogEvery   int
	PollInterval       time.Duration
}

// backfillColumns are the cells a backfill may fill regardless of the
// run's column selection.
var backfillColumns = table.Columns{
	model.ColMatchedAffiliation: true,
	model.ColURL:                true,
	model.ColRawValue:           true,
	model.ColValue:              true,
	model.ColUpdatedAt:          true,
	model.ColStatus:             true,
}

// Runner orchestrates the parallel, retry and backfill passes over one
// repository.
type Runner struct {
	repo        *table.Repository
	newResolver ResolverFactory
	history     History
	cfg         Config
	now         func() time.Time

	runID string
}

// NewRunner creates a Runner. history may be nil.
func NewRunner(repo *table.Repository, newResolver ResolverFactory, history History, cfg Config) *Runner {
	if cfg.Columns == nil {
		cfg.Columns = table.AllColumns()
	}
	if cfg.StartRow < 1 {
		cfg.StartRow = 1
	}
	return &Runner{
		repo:        repo,
		newResolver: newResolver,
		history:     history,
		cfg:         cfg,
		now:         time.Now,
	}
}

// RunID returns the history id of the current run, or "" without history.
func (r *Runner) RunID() string { return r.runID }

// Run loads the repository and executes every pass. The summary is returned
// even when the run was interrupted.
func (r *Runner) Run(ctx context.Context) (*model.Summary, error) {
	r.startRun(ctx)

	summary, err := r.run(ctx)
	status := model.RunStatusComplete
	switch {
	case err != nil:
		status = model.RunStatusFailed
	case summary.Cancelled:
		status = model.RunStatusCancelled
	}
	r.finishRun(ctx, status, summary)
	return summary, err
}

func (r *Runner) run(ctx context.Context) (*model.Summary, error) {
	summary := &model.Summary{}
	if err := r.repo.Load(); err != nil {
		return summary, eris.Wrap(err, "pipeline: load repository")
	}

	jobs := r.repo.JobsFrom(r.cfg.StartRow)
	summary.Jobs = len(jobs)
	zap.L().Info("pipeline: starting run",
		zap.Int("start_row", r.cfg.StartRow),
		zap.Int("jobs", len(jobs)),
		zap.Strings("columns", r.cfg.Columns.List()),
		zap.Bool("backfill", r.cfg.Backfill),
	)

	d := NewDispatcher(r.repo, r.newResolver, DispatchConfig{
		Columns:          r.cfg.Columns,
		CheckpointEvery:  r.cfg.CheckpointEvery,
		WriteEveryRow:    r.cfg.WriteEveryRow,
		ProgressLogEvery: r.cfg.ProgressLogEvery,
		PollInterval:     r.cfg.PollInterval,
	})
	d.now = r.now
	d.OnResult = func(jr model.JobResult) { r.record(ctx, model.PassParallel, jr) }

	outcome := d.Run(ctx, jobs, r.cfg.Workers)
	for _, jr := range outcome.Results {
		summary.Count(jr.Result.Status, jr.Tier)
	}
	summary.Processed = len(outcome.Results)
	summary.Cancelled = outcome.Cancelled

	if !outcome.Cancelled && len(outcome.Unresolved) > 0 {
		retried := r.retryMissing(ctx, pick(jobs, outcome.Unresolved))
		for _, jr := range retried {
			summary.Count(jr.Result.Status, jr.Tier)
		}
		summary.Retried = len(retried)
		summary.Processed += len(retried)
		summary.Cancelled = ctx.Err() != nil
	}

	if err := r.repo.Save(); err != nil {
		return summary, eris.Wrap(err, "pipeline: final write")
	}
	zap.L().Info("pipeline: final write", zap.String("path", r.repo.Path()))

	switch {
	case !r.cfg.Backfill:
		zap.L().Info("pipeline: backfill checker disabled")
	case summary.Cancelled:
		zap.L().Info("pipeline: backfill skipped after interrupt")
	default:
		n, err := r.backfill(ctx)
		summary.Backfilled = n
		summary.Cancelled = ctx.Err() != nil
		if err != nil {
			return summary, err
		}
	}

	zap.L().Info("pipeline: done",
		zap.Int("processed", summary.Processed),
		zap.Int("retried", summary.Retried),
		zap.Int("backfilled", summary.Backfilled),
		zap.Bool("cancelled", summary.Cancelled),
		zap.String("path", r.repo.Path()),
	)
	return summary, nil
}

// retryMissing resolves the jobs the parallel pass never returned, one at a
// time on a single resolver.
func (r *Runner) retryMissing(ctx context.Context, jobs []model.Job) []model.JobResult {
	zap.L().Info("pipeline: retrying missing rows sequentially", zap.Int("rows", len(jobs)))
	resolver := r.newResolver()
	defer func() {
		closeResolver(resolver, zap.L())
		zap.L().Info("pipeline: retry session closed")
	}()

	var results []model.JobResult
	for _, job := range jobs {
		if ctx.Err() != nil {
			zap.L().Warn("pipeline: interrupt received during retry")
			r.save("partial retry write")
			break
		}
		jr := ResolveJob(ctx, resolver, job, r.now)
		if err := r.repo.UpdateRow(job.Index, jr.Result.Fields(job), r.cfg.Columns); err != nil {
			zap.L().Error("pipeline: update row", zap.Int("row", job.Row()), zap.Error(err))
		}
		r.record(ctx, model.PassRetry, jr)
		results = append(results, jr)
		logResult(zap.L(), jr, zap.String("pass", string(model.PassRetry)))

		if r.cfg.WriteEveryRow {
			r.save("retry row write")
		}
	}
	return results
}

// backfill re-resolves rows still missing a URL or parsed value, starting a
// few rows before the run's start row, and fills only blank cells. Lookups
// are spaced by the backfill delay.
func (r *Runner) backfill(ctx context.Context) (int, error) {
	start := max(0, r.cfg.StartRow-1-r.cfg.BackfillBehindRows)
	zap.L().Info("pipeline: backfill checker starting", zap.Int("row", start+1))

	limiter := rate.NewLimiter(rate.Inf, 1)
	if r.cfg.BackfillDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(r.cfg.BackfillDelay), 1)
	}

	resolver := r.newResolver()
	defer func() {
		closeResolver(resolver, zap.L())
		zap.L().Info("pipeline: backfill session closed")
	}()

	updates := 0
	for idx := start; idx < r.repo.Len(); idx++ {
		row := r.repo.Row(idx)
		job := model.Job{Index: idx, Name: row[model.ColName], Affiliation: row[model.ColAffiliation]}
		if table.IsBlank(job.Name) {
			continue
		}
		if !table.IsBlank(row[model.ColURL]) && !table.IsBlank(row[model.ColValue]) {
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			zap.L().Warn("pipeline: interrupt received during backfill")
			r.save("partial backfill write")
			return updates, nil
		}

		zap.L().Info("pipeline: backfill checking row",
			zap.Int("row", job.Row()), zap.String("name", job.Name), zap.String("affiliation", job.Affiliation))
		jr := ResolveJob(ctx, resolver, job, r.now)
		r.record(ctx, model.PassBackfill, jr)
		if jr.Err != nil {
			zap.L().Warn("pipeline: backfill error", zap.Int("row", job.Row()), zap.Error(jr.Err))
			continue
		}

		if err := r.repo.MergeMissingFields(idx, jr.Result.Fields(job), backfillColumns); err != nil {
			return updates, eris.Wrap(err, "pipeline: backfill merge")
		}
		updates++
		if r.cfg.WriteEveryRow {
			r.save("backfill row write")
		}
	}

	if updates > 0 {
		if err := r.repo.Save(); err != nil {
			return updates, eris.Wrap(err, "pipeline: backfill final write")
		}
		zap.L().Info("pipeline: backfill final write", zap.Int("rows", updates))
	}
	return updates, nil
}

func (r *Runner) startRun(ctx context.Context) {
	if r.history == nil {
		return
	}
	run, err := r.history.CreateRun(ctx, model.Run{
		InputPath:  r.cfg.InputPath,
		OutputPath: r.repo.Path(),
		StartRow:   r.cfg.StartRow,
		Workers:    r.cfg.Workers,
		Status:     model.RunStatusRunning,
		StartedAt:  r.now(),
	})
	if err != nil {
		zap.L().Warn("pipeline: create run record", zap.Error(err))
		return
	}
	r.runID = run.ID
}

func (r *Runner) finishRun(ctx context.Context, status model.RunStatus, summary *model.Summary) {
	if r.history == nil || r.runID == "" {
		return
	}
	if err := r.history.FinishRun(context.WithoutCancel(ctx), r.runID, status, summary); err != nil {
		zap.L().Warn("pipeline: finish run record", zap.String("run_id", r.runID), zap.Error(err))
	}
}

// record stores an attempt. Failures are logged and never fail the run.
func (r *Runner) record(ctx context.Context, pass model.Pass, jr model.JobResult) {
	if r.history == nil || r.runID == "" {
		return
	}
	if err := r.history.RecordAttempt(context.WithoutCancel(ctx), model.AttemptFrom(r.runID, pass, jr)); err != nil {
		zap.L().Warn("pipeline: record attempt", zap.Int("row", jr.Job.Row()), zap.Error(err))
	}
}

func (r *Runner) save(reason string) {
	if err := r.repo.Save(); err != nil {
		zap.L().Error("pipeline: save failed", zap.String("reason", reason), zap.Error(err))
	}
}

// pick returns the jobs whose index is in indices, in indices order.
func pick(jobs []model.Job, indices []int) []model.Job {
	byIndex := make(map[int]model.Job, len(jobs))
	for _, j := range jobs {
		byIndex[j.Index] = j
	}
	out := make([]model.Job, 0, len(indices))
	for _, i := range indices {
		if j, ok := byIndex[i]; ok {
			out = append(out, j)
		}
	}
	return out
}

// RecommendedWorkers is the default pool size for a machine with cpus cores.
func RecommendedWorkers(maxWorkers, cpus int) int {
	if cpus <= 0 {
		cpus = 4
	}
	return max(2, min(maxWorkers, max(2, cpus-1)))
}
