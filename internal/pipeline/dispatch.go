// Package pipeline fans resolution jobs out to a worker pool, aggregates
// their results into the repository and runs the retry and backfill passes.
package pipeline

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Magalhaes24/scout/internal/model"
	"github.com/Magalhaes24/scout/internal/resilience"
	"github.com/Magalhaes24/scout/internal/table"
)

// Resolver resolves one entity. Each worker owns exactly one Resolver and
// closes it when the worker exits.
type Resolver interface {
	Resolve(ctx context.Context, name, affiliation string) (model.Result, model.Tier, error)
	Close() error
}

// ResolverFactory builds a fresh Resolver.
type ResolverFactory func() Resolver

// ParallelOutcome is what the parallel pass hands to the later passes.
type ParallelOutcome struct {
	Results    []model.JobResult
	Unresolved []int
	Cancelled  bool
}

// DispatchConfig tunes aggregation.
type DispatchConfig struct {
	Columns          table.Columns
	CheckpointEvery  int
	WriteEveryRow    bool
	ProgressLogEvery int
	PollInterval     time.Duration
}

// Dispatcher runs jobs on a bounded worker pool. Only the goroutine calling
// Run touches the repository.
type Dispatcher struct {
	repo        *table.Repository
	newResolver ResolverFactory
	cfg         DispatchConfig
	now         func() time.Time

	// OnResult is called on the aggregating goroutine for every result.
	OnResult func(model.JobResult)
}

// NewDispatcher creates a Dispatcher writing through repo.
func NewDispatcher(repo *table.Repository, newResolver ResolverFactory, cfg DispatchConfig) *Dispatcher {
	if cfg.Columns == nil {
		cfg.Columns = table.AllColumns()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 300 * time.Millisecond
	}
	return &Dispatcher{
		repo:        repo,
		newResolver: newResolver,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Run resolves jobs with up to workers concurrent resolvers. Cancelling ctx
// stops workers from taking new jobs; resolutions already in flight finish
// and are aggregated before Run returns.
func (d *Dispatcher) Run(ctx context.Context, jobs []model.Job, workers int) ParallelOutcome {
	var out ParallelOutcome
	if len(jobs) == 0 {
		zap.L().Info("pipeline: no rows to process from the selected start row")
		return out
	}
	workers = max(1, min(workers, len(jobs)))
	zap.L().Info("pipeline: starting parallel pass", zap.Int("jobs", len(jobs)), zap.Int("workers", workers))

	jobCh := make(chan model.Job, len(jobs))
	for _, j := range jobs {
		jobCh <- j
	}
	close(jobCh)
	resultCh := make(chan model.JobResult, len(jobs))

	var g errgroup.Group
	for id := 1; id <= workers; id++ {
		g.Go(func() error {
			d.work(ctx, id, jobCh, resultCh)
			return nil
		})
	}
	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	seen := make(map[int]bool, len(jobs))
	collect := func(jr model.JobResult) {
		seen[jr.Job.Index] = true
		out.Results = append(out.Results, jr)
		d.aggregate(jr, len(out.Results), len(jobs))
	}

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()
	interruptLogged := false

loop:
	for len(out.Results) < len(jobs) {
		select {
		case jr := <-resultCh:
			collect(jr)
		case <-done:
			for {
				select {
				case jr := <-resultCh:
					collect(jr)
				default:
					break loop
				}
			}
		case <-ticker.C:
			if ctx.Err() != nil && !interruptLogged {
				interruptLogged = true
				zap.L().Warn("pipeline: interrupt received, waiting for in-flight rows")
			}
		}
	}

	<-done
	zap.L().Info("pipeline: all worker sessions closed", zap.Int("workers", workers))

	for _, j := range jobs {
		if !seen[j.Index] {
			out.Unresolved = append(out.Unresolved, j.Index)
		}
	}
	slices.Sort(out.Unresolved)

	if ctx.Err() != nil {
		out.Cancelled = true
		d.save("partial write")
	}
	return out
}

func (d *Dispatcher) work(ctx context.Context, id int, jobs <-chan model.Job, results chan<- model.JobResult) {
	log := zap.L().With(zap.Int("worker", id))
	r := d.newResolver()
	defer closeResolver(r, log)

	for job := range jobs {
		if ctx.Err() != nil {
			log.Debug("pipeline: worker stopping", zap.Error(ctx.Err()))
			return
		}
		results <- ResolveJob(ctx, r, job, d.now)
	}
}

func (d *Dispatcher) aggregate(jr model.JobResult, processed, total int) {
	if err := d.repo.UpdateRow(jr.Job.Index, jr.Result.Fields(jr.Job), d.cfg.Columns); err != nil {
		zap.L().Error("pipeline: update row", zap.Int("row", jr.Job.Row()), zap.Error(err))
	}
	if d.OnResult != nil {
		d.OnResult(jr)
	}

	if jr.Result.Status.IsError() || (d.cfg.ProgressLogEvery > 0 && processed%d.cfg.ProgressLogEvery == 0) {
		logResult(zap.L(), jr, zap.Int("processed", processed), zap.Int("total", total))
	}

	switch {
	case d.cfg.WriteEveryRow:
		d.save("row write")
	case d.cfg.CheckpointEvery > 0 && processed%d.cfg.CheckpointEvery == 0:
		d.save("checkpoint")
	}
}

func (d *Dispatcher) save(reason string) {
	if err := d.repo.Save(); err != nil {
		zap.L().Error("pipeline: save failed", zap.String("reason", reason), zap.Error(err))
		return
	}
	zap.L().Debug("pipeline: saved", zap.String("reason", reason), zap.String("path", d.repo.Path()))
}

// ResolveJob runs one resolution and converts any error or panic into an
// error result, so every job yields exactly one JobResult. The resolution
// itself ignores cancellation of ctx.
func ResolveJob(ctx context.Context, r Resolver, job model.Job, now func() time.Time) (jr model.JobResult) {
	start := time.Now()
	jr = model.JobResult{Job: job, Tier: model.TierNone}

	defer func() {
		if v := recover(); v != nil {
			jr.Err = resilience.PanicError(v)
			jr.Result = model.ErrorResult(resilience.Kind(jr.Err), now())
			jr.Tier = model.TierNone
		}
		jr.Duration = time.Since(start)
	}()

	res, tier, err := r.Resolve(context.WithoutCancel(ctx), job.Name, job.Affiliation)
	if tier != "" {
		jr.Tier = tier
	}
	if err != nil {
		jr.Err = err
		jr.Result = model.ErrorResult(resilience.Kind(err), now())
		return jr
	}
	jr.Result = res
	return jr
}

func closeResolver(r Resolver, log *zap.Logger) {
	if err := r.Close(); err != nil {
		log.Debug("pipeline: close resolver", zap.Error(err))
	}
}

func logResult(log *zap.Logger, jr model.JobResult, fields ...zap.Field) {
	fields = append(fields,
		zap.Int("row", jr.Job.Row()),
		zap.String("tier", string(jr.Tier)),
		zap.String("status", string(jr.Result.Status)),
		zap.String("value", jr.Result.RawValue),
	)
	if jr.Err != nil {
		fields = append(fields, zap.Error(jr.Err))
	}
	log.Info("pipeline: processed", fields...)
}
