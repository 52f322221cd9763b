// Package browser drives headless Chrome through the DevTools protocol for
// the fallback search tier.
package browser

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"

	"github.com/Magalhaes24/scout/internal/source"
)

// Options configures the browser process.
type Options struct {
	Headless        bool
	UserAgent       string
	PageLoadTimeout time.Duration
	// ExecPath overrides Chrome discovery.
	ExecPath string
}

// resultRowsJS snapshots every search result row, one per table row around
// a player profile link. It mirrors source.ParseResultRows.
const resultRowsJS = `(() => {
  const profile = 'a[href*="/profil/spieler/"]';
  const signals = 'a[href*="/verein/"], td.rechts.hauptlink';
  const rowOf = (a) => {
    const first = a.closest('tr');
    for (let tr = first; tr; tr = tr.parentElement ? tr.parentElement.closest('tr') : null) {
      if (tr.querySelector(signals)) return tr;
    }
    return first;
  };
  const texts = (scope, sel) => Array.from(scope.querySelectorAll(sel))
    .map((e) => (e.innerText || '').trim())
    .filter(Boolean);
  const seen = new Set();
  const out = [];
  for (const a of document.querySelectorAll(profile)) {
    const href = a.getAttribute('href');
    if (!href) continue;
    const row = rowOf(a);
    const scope = row || a;
    if (seen.has(scope)) continue;
    seen.add(scope);
    const imageLabels = [];
    for (const img of scope.querySelectorAll('img')) {
      for (const attr of ['title', 'alt']) {
        const v = (img.getAttribute(attr) || '').trim();
        if (v) imageLabels.push(v);
      }
    }
    out.push({
      href: a.href || href,
      linkText: (a.innerText || '').trim(),
      rowLinkTexts: texts(scope, profile),
      clubTexts: texts(scope, 'a[href*="/verein/"]'),
      imageLabels,
      valueCells: texts(scope, 'td.rechts.hauptlink'),
      text: scope.innerText || '',
    });
  }
  return out;
})()`

// ChromeDriver implements source.Driver with chromedp. It owns one browser
// process with a single tab.
type ChromeDriver struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	opts        Options

	frames []*cdp.Node
	frame  *cdp.Node
}

// Launcher returns a factory that starts a new browser per call.
func Launcher(opts Options) source.DriverFactory {
	return func(ctx context.Context) (source.Driver, error) {
		return Launch(ctx, opts)
	}
}

func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	out := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	out = append(out,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.WindowSize(1366, 900),
	)
	if opts.UserAgent != "" {
		out = append(out, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		out = append(out, chromedp.ExecPath(opts.ExecPath))
	}
	return out
}

// Launch starts Chrome. The browser lives until Close, independent of ctx,
// which only bounds the launch itself.
func Launch(ctx context.Context, opts Options) (*ChromeDriver, error) {
	if opts.PageLoadTimeout <= 0 {
		opts.PageLoadTimeout = 12 * time.Second
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "browser: launch")
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(opts)...)
	tabCtx, cancel := chromedp.NewContext(allocCtx)

	// The first Run starts the process and must use the tab context itself:
	// a derived context would tie the browser's lifetime to it.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(tabCtx) }()

	select {
	case err := <-started:
		if err != nil {
			cancel()
			allocCancel()
			return nil, eris.Wrap(err, "browser: start chrome")
		}
	case <-time.After(opts.PageLoadTimeout):
		cancel()
		allocCancel()
		return nil, eris.New("browser: chrome did not start in time")
	case <-ctx.Done():
		cancel()
		allocCancel()
		return nil, eris.Wrap(ctx.Err(), "browser: launch")
	}

	return &ChromeDriver{ctx: tabCtx, cancel: cancel, allocCancel: allocCancel, opts: opts}, nil
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx.
func (d *ChromeDriver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(d.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url and waits for the load event.
func (d *ChromeDriver) Navigate(ctx context.Context, url string) error {
	d.frames, d.frame = nil, nil
	if err := d.run(ctx, d.opts.PageLoadTimeout, chromedp.Navigate(url)); err != nil {
		return eris.Wrapf(err, "browser: navigate %s", url)
	}
	return nil
}

// Click waits for sel to be visible in the current document or frame and
// clicks it.
func (d *ChromeDriver) Click(ctx context.Context, sel source.Selector, wait time.Duration) bool {
	opts := []chromedp.QueryOption{chromedp.NodeVisible}
	if sel.XPath {
		opts = append(opts, chromedp.BySearch)
	} else {
		opts = append(opts, chromedp.ByQuery)
	}
	if d.frame != nil {
		opts = append(opts, chromedp.FromNode(d.frame))
	}
	return d.run(ctx, wait, chromedp.Click(sel.Query, opts...)) == nil
}

// FrameCount lists the iframes of the current page.
func (d *ChromeDriver) FrameCount(ctx context.Context) (int, error) {
	var nodes []*cdp.Node
	err := d.run(ctx, d.opts.PageLoadTimeout,
		chromedp.Nodes("iframe", &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return 0, eris.Wrap(err, "browser: list frames")
	}
	d.frames = nodes
	return len(nodes), nil
}

// EnterFrame scopes Click to the index-th iframe found by FrameCount.
func (d *ChromeDriver) EnterFrame(_ context.Context, index int) error {
	if index < 0 || index >= len(d.frames) {
		return eris.Errorf("browser: frame %d out of range (%d frames)", index, len(d.frames))
	}
	d.frame = d.frames[index]
	return nil
}

// ExitFrame returns to the main document.
func (d *ChromeDriver) ExitFrame() {
	d.frame = nil
}

// WaitReady waits up to timeout for query to exist in the main document.
func (d *ChromeDriver) WaitReady(ctx context.Context, query string, timeout time.Duration) error {
	if err := d.run(ctx, timeout, chromedp.WaitReady(query, chromedp.ByQuery)); err != nil {
		return eris.Wrapf(err, "browser: wait for %s", query)
	}
	return nil
}

// ResultRows snapshots the search result rows of the current page.
func (d *ChromeDriver) ResultRows(ctx context.Context) ([]source.ResultRow, error) {
	var rows []source.ResultRow
	if err := d.run(ctx, d.opts.PageLoadTimeout, chromedp.Evaluate(resultRowsJS, &rows)); err != nil {
		return nil, eris.Wrap(err, "browser: extract rows")
	}
	return rows, nil
}

// Close shuts the browser down.
func (d *ChromeDriver) Close() error {
	err := chromedp.Cancel(d.ctx)
	d.cancel()
	d.allocCancel()
	if err != nil {
		return eris.Wrap(err, "browser: close")
	}
	return nil
}

var _ source.Driver = (*ChromeDriver)(nil)
