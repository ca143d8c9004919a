package browser

import (
	"context"
	"fmt"
	"strconv"

	"github.com/chromedp/chromedp"
)

// Options configures the Chrome driver
type Options struct {
	Headless  bool
	UserAgent string
}

// ChromeDriver drives a headless Chrome process via the DevTools protocol
type ChromeDriver struct {
	allocCtx context.Context
	cancel   context.CancelFunc
}

// NewChromeDriver starts a Chrome allocator. The browser process itself is
// launched lazily by the first page.
func NewChromeDriver(ctx context.Context, opts Options) *ChromeDriver {
	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoSandbox,
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(1366, 900),
	}
	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Headless)
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	return &ChromeDriver{allocCtx: allocCtx, cancel: cancel}
}

func (d *ChromeDriver) NewPage(ctx context.Context) (Page, error) {
	tab, cancel := chromedp.NewContext(d.allocCtx)
	// Run with no actions forces the browser to start so a missing Chrome
	// binary fails here instead of on the first navigation.
	if err := chromedp.Run(tab); err != nil {
		cancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return &chromePage{tab: tab, cancel: cancel}, nil
}

func (d *ChromeDriver) Close() error {
	d.cancel()
	return nil
}

type chromePage struct {
	tab    context.Context
	cancel context.CancelFunc
}

// run executes actions on the tab while honouring the caller's deadline and
// cancellation, which live on a different context tree than the tab.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	if p.tab.Err() != nil {
		return ErrPageClosed
	}
	runCtx, cancel := context.WithCancel(p.tab)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var dcancel context.CancelFunc
		runCtx, dcancel = context.WithDeadline(runCtx, deadline)
		defer dcancel()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (p *chromePage) WaitForSelector(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (p *chromePage) Locator(selector string) Locator {
	return &chromeLocator{
		page: p,
		expr: fmt.Sprintf("Array.from(document.querySelectorAll(%s))", strconv.Quote(selector)),
	}
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}

// chromeLocator addresses elements through a JavaScript expression that
// evaluates to an array of elements. Chaining Nth and sub-locators only
// rewrites the expression; the DOM is queried fresh on every accessor.
type chromeLocator struct {
	page *chromePage
	expr string
}

func (l *chromeLocator) Nth(i int) Locator {
	return &chromeLocator{
		page: l.page,
		expr: fmt.Sprintf("[(%s)[%d]].filter(Boolean)", l.expr, i),
	}
}

func (l *chromeLocator) Locator(selector string) Locator {
	return &chromeLocator{
		page: l.page,
		expr: fmt.Sprintf("(%s).flatMap(e => Array.from(e.querySelectorAll(%s)))", l.expr, strconv.Quote(selector)),
	}
}

func (l *chromeLocator) Count(ctx context.Context) (int, error) {
	var n int
	err := l.page.run(ctx, chromedp.Evaluate(fmt.Sprintf("(%s).length", l.expr), &n))
	return n, err
}

func (l *chromeLocator) TextContent(ctx context.Context) (string, error) {
	js := fmt.Sprintf("(() => { const e = (%s)[0]; return e ? e.textContent : null; })()", l.expr)
	var text *string
	if err := l.page.run(ctx, chromedp.Evaluate(js, &text)); err != nil {
		return "", err
	}
	if text == nil {
		return "", ErrNotFound
	}
	return *text, nil
}

func (l *chromeLocator) AllTextContents(ctx context.Context) ([]string, error) {
	js := fmt.Sprintf("(%s).map(e => e.textContent === null ? \"\" : e.textContent)", l.expr)
	var texts []string
	if err := l.page.run(ctx, chromedp.Evaluate(js, &texts)); err != nil {
		return nil, err
	}
	return texts, nil
}

func (l *chromeLocator) GetAttribute(ctx context.Context, name string) (string, error) {
	js := fmt.Sprintf(
		"(() => { const e = (%s)[0]; if (!e) return null; const v = e.getAttribute(%s); return v === null ? \"\" : v; })()",
		l.expr, strconv.Quote(name))
	var value *string
	if err := l.page.run(ctx, chromedp.Evaluate(js, &value)); err != nil {
		return "", err
	}
	if value == nil {
		return "", ErrNotFound
	}
	return *value, nil
}

func (l *chromeLocator) Click(ctx context.Context) error {
	js := fmt.Sprintf(
		"(() => { const e = (%s)[0]; if (!e) return false; e.scrollIntoView({block: 'center'}); e.click(); return true; })()",
		l.expr)
	var clicked bool
	if err := l.page.run(ctx, chromedp.Evaluate(js, &clicked)); err != nil {
		return err
	}
	if !clicked {
		return ErrNotFound
	}
	return nil
}

func (l *chromeLocator) IsVisible(ctx context.Context) (bool, error) {
	js := fmt.Sprintf(
		"(() => { const e = (%s)[0]; if (!e) return false; const s = getComputedStyle(e); return s.display !== 'none' && s.visibility !== 'hidden' && e.offsetParent !== null; })()",
		l.expr)
	var visible bool
	if err := l.page.run(ctx, chromedp.Evaluate(js, &visible)); err != nil {
		return false, err
	}
	return visible, nil
}
