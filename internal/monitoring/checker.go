package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Magalhaes24/scout/internal/config"
)

const defaultCheckInterval = 5 * time.Minute

// Checker evaluates run health over the configured lookback window and
// posts whatever alerts fire.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	lookback  int
	interval  time.Duration
	log       *zap.Logger
}

// NewChecker builds a Checker. A non-positive check interval means five
// minutes.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		lookback:  cfg.LookbackWindowHours,
		interval:  interval,
		log:       zap.L().Named("monitoring"),
	}
}

// Interval is the delay between checks in Run.
func (c *Checker) Interval() time.Duration { return c.interval }

// Run checks immediately and then once per interval until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	c.log.Info("watching run health",
		zap.Duration("every", c.interval),
		zap.Int("lookback_hours", c.lookback),
	)
	defer c.log.Info("stopped watching run health")

	if ctx.Err() != nil {
		return
	}
	c.Check(ctx)

	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Check(ctx)
		}
	}
}

// Check collects one snapshot, evaluates it and sends the alerts that fire,
// returning them. A collection failure is logged and yields no alerts.
func (c *Checker) Check(ctx context.Context) []Alert {
	snap, err := c.collector.Collect(ctx, c.lookback)
	if err != nil {
		c.log.Error("collect run health", zap.Error(err))
		return nil
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		c.log.Debug("run health ok",
			zap.Int("runs", snap.RunsTotal),
			zap.Int("rows", snap.RowsProcessed),
		)
		return nil
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	c.log.Warn("run health alerts",
		zap.Int("raised", len(alerts)),
		zap.Int("delivered", sent),
	)
	return alerts
}
