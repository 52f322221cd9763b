package fetcher

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Magalhaes24/scout/internal/resilience"
)

const defaultMaxBodyBytes = 8 << 20

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	// RequestsPerSecond <= 0 disables rate limiting.
	RequestsPerSecond float64
	Retry             resilience.RetryConfig
	MaxBodyBytes      int64
}

// AdaptiveLimiter wraps a rate.Limiter that slows down on 429 responses
// (halving, down to a quarter of the initial rate) and recovers by 20% per
// success (up to the initial rate).
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	initialRate rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an adaptive limiter starting at initialRate.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		initialRate: initialRate,
		minRate:     initialRate / 4,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows a request or ctx is done.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess raises the rate towards the initial rate.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.currentRate >= a.initialRate {
		return
	}
	a.currentRate = min(a.currentRate*1.2, a.initialRate)
	a.limiter.SetLimit(a.currentRate)
}

// OnRateLimit halves the rate.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currentRate = max(a.currentRate*0.5, a.minRate)
	a.limiter.SetLimit(a.currentRate)
	zap.L().Warn("fetcher: rate limited, slowing down",
		zap.Float64("rate", float64(a.currentRate)),
	)
}

// Limit returns the current rate.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// HTTPFetcher implements Fetcher with net/http, a per-fetcher adaptive rate
// limiter, transient-error retries and block detection. A fetcher is meant
// to be owned by a single resolution client.
type HTTPFetcher struct {
	client  *http.Client
	opts    HTTPOptions
	limiter *AdaptiveLimiter
}

// NewHTTPFetcher creates an HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 6 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:    opts,
		limiter: NewAdaptiveLimiter(limit, 1),
	}
}

// FetchText GETs rawURL, retrying transient failures per the retry config.
func (f *HTTPFetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	retry := f.opts.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("fetch", zap.String("url", rawURL))
	}
	return resilience.DoVal(ctx, retry, func(ctx context.Context) (string, error) {
		return f.fetchOnce(ctx, rawURL)
	})
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, rawURL string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "fetcher: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "fetcher: create request")
	}
	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", resilience.NewTransientError(eris.Wrap(err, "fetcher: get"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes))
	if err != nil {
		return "", resilience.NewTransientError(eris.Wrap(err, "fetcher: read body"), resp.StatusCode)
	}
	body := string(raw)

	if bt := DetectBlock(resp, body); bt != BlockNone {
		return "", resilience.WithKind(resilience.KindBlocked,
			eris.Errorf("fetcher: %s block (http %d) from %s", bt, resp.StatusCode, rawURL))
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		f.limiter.OnRateLimit()
	}
	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return "", resilience.NewTransientError(
			eris.Errorf("fetcher: http %d from %s", resp.StatusCode, rawURL), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("fetcher: unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	f.limiter.OnSuccess()
	return body, nil
}
