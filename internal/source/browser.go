package source

import (
	"context"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Magalhaes24/scout/internal/model"
	"github.com/Magalhaes24/scout/internal/resilience"
)

// Selector locates an element for Driver.Click. XPath selectors are matched
// with a document search, everything else as a CSS query.
type Selector struct {
	Query string
	XPath bool
}

// consentSelectors are tried in order to dismiss the cookie consent dialog.
var consentSelectors = []Selector{
	{Query: "button.accept-all"},
	{Query: "//button[@title='Accept & continue' or @aria-label='Accept & continue']", XPath: true},
	{Query: "//button[contains(.,'Accept & continue')]", XPath: true},
	{Query: "//button[contains(.,'Accept') or contains(.,'I Agree') or contains(.,'Agree')]", XPath: true},
	{Query: "#onetrust-accept-btn-handler"},
}

// Driver is a scriptable browser session. A driver is used by a single
// goroutine. Frame methods scope Click to an embedded frame of the current
// page until ExitFrame restores the main document.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	// Click waits up to wait for sel to become visible and clicks it. It
	// reports whether a click happened.
	Click(ctx context.Context, sel Selector, wait time.Duration) bool
	FrameCount(ctx context.Context) (int, error)
	EnterFrame(ctx context.Context, index int) error
	ExitFrame()
	WaitReady(ctx context.Context, query string, timeout time.Duration) error
	ResultRows(ctx context.Context) ([]ResultRow, error)
	Close() error
}

// DriverFactory launches a new browser session.
type DriverFactory func(ctx context.Context) (Driver, error)

// BrowserOptions configures the fallback tier.
type BrowserOptions struct {
	ResultsTimeout time.Duration
	ConsentWait    time.Duration
}

// BrowserTier is the fallback tier: the same search through a real browser,
// read with structural queries. The session is launched on first use and
// kept until Close.
type BrowserTier struct {
	baseURL string
	base    *url.URL
	launch  DriverFactory
	opts    BrowserOptions

	driver      Driver
	consentDone bool
}

// NewBrowserTier creates the fallback tier. No browser starts until the
// first Search.
func NewBrowserTier(baseURL string, launch DriverFactory, opts BrowserOptions) *BrowserTier {
	if opts.ResultsTimeout <= 0 {
		opts.ResultsTimeout = 2 * time.Second
	}
	if opts.ConsentWait <= 0 {
		opts.ConsentWait = time.Second
	}
	base, _ := url.Parse(baseURL)
	return &BrowserTier{baseURL: baseURL, base: base, launch: launch, opts: opts}
}

func (t *BrowserTier) Name() model.Tier { return model.TierFallback }

// Search runs the search in the browser. Only a failure to launch the
// browser is returned; navigation and rendering problems yield no
// candidates.
func (t *BrowserTier) Search(ctx context.Context, name string) ([]model.Candidate, error) {
	if err := t.ensureDriver(ctx); err != nil {
		return nil, err
	}

	searchURL := SearchURL(t.baseURL, name)
	if err := t.driver.Navigate(ctx, searchURL); err != nil {
		zap.L().Debug("source: browser navigation failed", zap.String("url", searchURL), zap.Error(err))
		return nil, nil
	}
	if !t.consentDone {
		t.consentDone = t.acceptConsent(ctx)
	}
	if err := t.driver.WaitReady(ctx, "body", t.opts.ResultsTimeout); err != nil {
		zap.L().Debug("source: browser results not ready", zap.String("url", searchURL), zap.Error(err))
		return nil, nil
	}

	rows, err := t.driver.ResultRows(ctx)
	if err != nil {
		zap.L().Debug("source: browser extraction failed", zap.String("url", searchURL), zap.Error(err))
		return nil, nil
	}
	return candidatesFrom(rows, t.base), nil
}

// Close ends the browser session if one was started. It is safe to call
// more than once.
func (t *BrowserTier) Close() error {
	if t.driver == nil {
		return nil
	}
	d := t.driver
	t.driver = nil
	return d.Close()
}

func (t *BrowserTier) ensureDriver(ctx context.Context) error {
	if t.driver != nil {
		return nil
	}
	if t.launch == nil {
		return resilience.WithKind(resilience.KindBrowser, eris.New("source: no browser driver configured"))
	}
	d, err := t.launch(ctx)
	if err != nil {
		return resilience.WithKind(resilience.KindBrowser, eris.Wrap(err, "source: launch browser"))
	}
	t.driver = d

	if err := d.Navigate(ctx, t.baseURL); err != nil {
		zap.L().Debug("source: browser home page failed", zap.Error(err))
		return nil
	}
	t.consentDone = t.acceptConsent(ctx)
	return nil
}

// acceptConsent tries the consent selectors in the main document, then in
// each embedded frame.
func (t *BrowserTier) acceptConsent(ctx context.Context) bool {
	if t.clickConsent(ctx) {
		return true
	}
	n, err := t.driver.FrameCount(ctx)
	if err != nil {
		return false
	}
	for i := 0; i < n; i++ {
		if t.consentInFrame(ctx, i) {
			return true
		}
	}
	return false
}

func (t *BrowserTier) consentInFrame(ctx context.Context, index int) bool {
	defer t.driver.ExitFrame()
	if err := t.driver.EnterFrame(ctx, index); err != nil {
		return false
	}
	return t.clickConsent(ctx)
}

func (t *BrowserTier) clickConsent(ctx context.Context) bool {
	for _, sel := range consentSelectors {
		if t.driver.Click(ctx, sel, t.opts.ConsentWait) {
			zap.L().Info("source: accepted cookie consent", zap.String("selector", sel.Query))
			return true
		}
	}
	return false
}
