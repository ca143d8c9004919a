// Package browser defines the headless-browser capability the scraper runs
// against, with a chromedp implementation for real runs and a static HTML
// implementation for tests.
package browser

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a locator matches no element
	ErrNotFound = errors.New("browser: no element matches locator")
	// ErrPageClosed is returned when the page or browser has been released
	ErrPageClosed = errors.New("browser: page closed")
)

// Driver owns a headless browser process. A driver is exclusively owned by
// one pipeline run and must be closed on every exit path.
type Driver interface {
	// NewPage opens a fresh page/tab
	NewPage(ctx context.Context) (Page, error)
	// Close tears down the browser and all its pages
	Close() error
}

// Page is one browser tab
type Page interface {
	// Navigate loads the URL and returns once the DOM is ready
	Navigate(ctx context.Context, url string) error
	// WaitForSelector blocks until at least one element matches
	WaitForSelector(ctx context.Context, selector string) error
	// Locator scopes a query to the page; it performs no I/O until used
	Locator(selector string) Locator
	// Screenshot captures the current viewport as PNG
	Screenshot(ctx context.Context) ([]byte, error)
	// Close releases the page
	Close() error
}

// Locator addresses zero or more elements. Locators are cheap values and
// may outlive the elements they address; every accessor re-queries the DOM.
type Locator interface {
	Count(ctx context.Context) (int, error)
	Nth(i int) Locator
	// Locator scopes a sub-query to the elements this locator addresses
	Locator(selector string) Locator
	TextContent(ctx context.Context) (string, error)
	AllTextContents(ctx context.Context) ([]string, error)
	// GetAttribute returns "" without error when the attribute is absent
	GetAttribute(ctx context.Context, name string) (string, error)
	Click(ctx context.Context) error
	IsVisible(ctx context.Context) (bool, error)
}
