package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// StaticDriver serves pre-rendered HTML documents instead of driving a real
// browser. Tests point it at fixture pages; navigation failures can be
// injected to exercise retry paths.
type StaticDriver struct {
	mu    sync.Mutex
	pages map[string]string

	// NavigateFailures makes the next N navigations fail with a synthetic
	// timeout error before succeeding.
	NavigateFailures int

	clicks []string
	closed bool
}

// NewStaticDriver creates a driver serving the given url -> html documents
func NewStaticDriver(pages map[string]string) *StaticDriver {
	return &StaticDriver{pages: pages}
}

// Clicks returns the locator expressions clicked so far, in order
func (d *StaticDriver) Clicks() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.clicks...)
}

// Closed reports whether Close was called
func (d *StaticDriver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *StaticDriver) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &staticPage{driver: d}, nil
}

func (d *StaticDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *StaticDriver) recordClick(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clicks = append(d.clicks, path)
}

type staticPage struct {
	driver *StaticDriver
	mu     sync.Mutex
	doc    *goquery.Document
}

func (p *staticPage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.driver.mu.Lock()
	if p.driver.closed {
		p.driver.mu.Unlock()
		return ErrPageClosed
	}
	if p.driver.NavigateFailures > 0 {
		p.driver.NavigateFailures--
		p.driver.mu.Unlock()
		return fmt.Errorf("navigate %s: %w", url, context.DeadlineExceeded)
	}
	html, ok := p.driver.pages[url]
	p.driver.mu.Unlock()

	if !ok {
		return fmt.Errorf("navigate %s: %w", url, ErrNotFound)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	p.mu.Lock()
	p.doc = doc
	p.mu.Unlock()
	return nil
}

func (p *staticPage) document() (*goquery.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return nil, ErrPageClosed
	}
	return p.doc, nil
}

func (p *staticPage) WaitForSelector(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := p.document()
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("wait for %q: %w", selector, ErrNotFound)
	}
	return nil
}

func (p *staticPage) Locator(selector string) Locator {
	return &staticLocator{page: p, path: []locatorStep{{selector: selector}}}
}

func (p *staticPage) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := p.document()
	if err != nil {
		return nil, err
	}
	html, err := doc.Html()
	if err != nil {
		return nil, err
	}
	return []byte(html), nil
}

func (p *staticPage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc = nil
	return nil
}

// locatorStep is one link of a locator chain: a sub-query, an index, or both
type locatorStep struct {
	selector string
	nth      int
	hasNth   bool
}

type staticLocator struct {
	page *staticPage
	path []locatorStep
}

func (l *staticLocator) extend(step locatorStep) *staticLocator {
	path := append(append([]locatorStep(nil), l.path...), step)
	return &staticLocator{page: l.page, path: path}
}

func (l *staticLocator) Nth(i int) Locator {
	return l.extend(locatorStep{nth: i, hasNth: true})
}

func (l *staticLocator) Locator(selector string) Locator {
	return l.extend(locatorStep{selector: selector})
}

// resolve re-runs the locator chain against the current document
func (l *staticLocator) resolve() (*goquery.Selection, error) {
	doc, err := l.page.document()
	if err != nil {
		return nil, err
	}
	sel := doc.Selection
	for _, step := range l.path {
		if step.selector != "" {
			sel = sel.Find(step.selector)
		}
		if step.hasNth {
			sel = sel.Eq(step.nth)
		}
	}
	return sel, nil
}

func (l *staticLocator) describe() string {
	var parts []string
	for _, step := range l.path {
		if step.selector != "" {
			parts = append(parts, step.selector)
		}
		if step.hasNth {
			parts = append(parts, fmt.Sprintf("nth(%d)", step.nth))
		}
	}
	return strings.Join(parts, " > ")
}

func (l *staticLocator) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	sel, err := l.resolve()
	if err != nil {
		return 0, err
	}
	return sel.Length(), nil
}

func (l *staticLocator) TextContent(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sel, err := l.resolve()
	if err != nil {
		return "", err
	}
	if sel.Length() == 0 {
		return "", ErrNotFound
	}
	return sel.First().Text(), nil
}

func (l *staticLocator) AllTextContents(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sel, err := l.resolve()
	if err != nil {
		return nil, err
	}
	var texts []string
	sel.Each(func(_ int, s *goquery.Selection) {
		texts = append(texts, s.Text())
	})
	return texts, nil
}

func (l *staticLocator) GetAttribute(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sel, err := l.resolve()
	if err != nil {
		return "", err
	}
	if sel.Length() == 0 {
		return "", ErrNotFound
	}
	return sel.First().AttrOr(name, ""), nil
}

func (l *staticLocator) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sel, err := l.resolve()
	if err != nil {
		return err
	}
	if sel.Length() == 0 {
		return ErrNotFound
	}
	l.page.driver.recordClick(l.describe())
	return nil
}

func (l *staticLocator) IsVisible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	sel, err := l.resolve()
	if err != nil {
		return false, err
	}
	if sel.Length() == 0 {
		return false, nil
	}
	first := sel.First()
	if _, hidden := first.Attr("hidden"); hidden {
		return false, nil
	}
	style := first.AttrOr("style", "")
	if strings.Contains(strings.ReplaceAll(style, " ", ""), "display:none") {
		return false, nil
	}
	return true, nil
}
