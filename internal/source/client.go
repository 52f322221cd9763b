// Package source resolves a player and club to a profile link and market
// value by searching the external site: a fast markup tier first, and a
// scripted-browser tier when the fast tier cannot identify the club.
package source

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Magalhaes24/scout/internal/fetcher"
	"github.com/Magalhaes24/scout/internal/model"
	"github.com/Magalhaes24/scout/internal/money"
	"github.com/Magalhaes24/scout/internal/resilience"
)

// Tier is one fetch strategy.
type Tier interface {
	Name() model.Tier
	Search(ctx context.Context, name string) ([]model.Candidate, error)
	Close() error
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL           string
	UserAgent         string
	HTTPTimeout       time.Duration
	RequestsPerSecond float64
	MaxAttempts       int
	BreakerThreshold  int
	BreakerReset      time.Duration

	BrowserEnabled bool
	ResultsTimeout time.Duration
	ConsentWait    time.Duration
	NewDriver      DriverFactory
}

// DefaultBaseURL is the site searched when Options.BaseURL is empty.
const DefaultBaseURL = "https://www.transfermarkt.com"

// Client resolves entities. A Client is owned by one goroutine at a time;
// it holds its own HTTP fetcher, rate limiter, breaker and browser session.
type Client struct {
	fast     Tier
	fallback Tier
	breaker  *resilience.Breaker
	now      func() time.Time

	closeOnce sync.Once
}

// Option customizes a Client.
type Option func(*Client)

// WithClock overrides the clock used for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithTiers replaces the tiers built from Options. A nil fallback disables
// the fallback tier.
func WithTiers(fast, fallback Tier) Option {
	return func(c *Client) {
		c.fast = fast
		c.fallback = fallback
	}
}

// New builds a Client from opts.
func New(opts Options, optFns ...Option) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:         opts.UserAgent,
		Timeout:           opts.HTTPTimeout,
		RequestsPerSecond: opts.RequestsPerSecond,
		Retry:             resilience.RetryConfigFor(opts.MaxAttempts),
	})

	c := &Client{
		fast: NewHTTPTier(f, opts.BaseURL),
		now:  time.Now,
	}
	if opts.BrowserEnabled {
		c.fallback = NewBrowserTier(opts.BaseURL, opts.NewDriver, BrowserOptions{
			ResultsTimeout: opts.ResultsTimeout,
			ConsentWait:    opts.ConsentWait,
		})
	}

	bcfg := resilience.BreakerConfigFor(opts.BreakerThreshold, int(opts.BreakerReset/time.Second))
	bcfg.OnStateChange = func(from, to resilience.BreakerState) {
		zap.L().Warn("source: fast tier breaker state change",
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}
	c.breaker = resilience.NewBreaker(bcfg)

	for _, fn := range optFns {
		fn(c)
	}
	return c
}

// Resolve looks up one entity. The fast tier's failures are contained; the
// returned error is reserved for failures that should mark the row as an
// error (such as a browser that cannot start).
func (c *Client) Resolve(ctx context.Context, name, affiliation string) (model.Result, model.Tier, error) {
	candidates := c.searchFast(ctx, name)
	best := Select(name, affiliation, candidates)
	tier := model.TierFast

	if c.fallback != nil && needsFallback(name, best, candidates) {
		fb, err := c.fallback.Search(ctx, name)
		if err != nil {
			return model.Result{}, c.fallback.Name(), err
		}
		if fbBest := Select(name, affiliation, fb); fbBest != nil {
			best = fbBest
			tier = model.TierFallback
		}
	}

	if best == nil {
		return model.NewResult(nil, "", money.Parse, c.now()), tier, nil
	}
	return model.NewResult(&best.Candidate, best.MatchedLabel, money.Parse, c.now()), tier, nil
}

// Close releases the tiers exactly once. Close errors are logged and
// dropped.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		for _, t := range []Tier{c.fast, c.fallback} {
			if t == nil {
				continue
			}
			if err := t.Close(); err != nil {
				zap.L().Debug("source: close tier", zap.String("tier", string(t.Name())), zap.Error(err))
			}
		}
	})
	return nil
}

func (c *Client) searchFast(ctx context.Context, name string) []model.Candidate {
	if err := c.breaker.Allow(); err != nil {
		zap.L().Debug("source: fast tier skipped", zap.String("name", name), zap.Error(err))
		return nil
	}
	candidates, err := c.fast.Search(ctx, name)
	c.breaker.Record(fastFailure(err))
	if err != nil {
		zap.L().Debug("source: fast tier failed",
			zap.String("name", name),
			zap.String("kind", resilience.Kind(err)),
			zap.Error(err),
		)
		return nil
	}
	return candidates
}

// fastFailure filters errors that say nothing about the site's health.
func fastFailure(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// needsFallback reports whether the fast tier left the entity unresolved:
// no match, a match without value text, or no surviving candidate carrying
// any club label to judge the match by.
func needsFallback(name string, best *Scored, candidates []model.Candidate) bool {
	return best == nil || best.RawValue == "" || !anyLabeled(name, candidates)
}
