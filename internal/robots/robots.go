// Package robots gates scraping behind the target's robots.txt. The search
// page is checked once per run; a disallow aborts the run before the browser
// launches, and any crawl-delay directive raises the per-card pacing.
package robots

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
)

const (
	cacheTTL     = 1 * time.Hour
	cacheCleanup = 10 * time.Minute
	fetchTimeout = 15 * time.Second
)

// Checker fetches, parses and caches robots.txt per host.
type Checker struct {
	cache      *cache.Cache
	httpClient *http.Client
	userAgent  string
}

func NewChecker(userAgent string) *Checker {
	return &Checker{
		cache:      cache.New(cacheTTL, cacheCleanup),
		httpClient: &http.Client{Timeout: fetchTimeout},
		userAgent:  userAgent,
	}
}

// CanFetch reports whether the URL may be fetched, and any crawl delay the
// site requests. A robots.txt that cannot be fetched allows by default.
func (c *Checker) CanFetch(ctx context.Context, rawURL string) (bool, time.Duration, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, 0, fmt.Errorf("parse URL: %w", err)
	}

	data, err := c.robotsData(ctx, parsed)
	if err != nil {
		return true, 0, nil
	}

	allowed := data.TestAgent(parsed.Path, c.userAgent)
	var delay time.Duration
	if group := data.FindGroup(c.userAgent); group != nil {
		delay = group.CrawlDelay
	}
	return allowed, delay, nil
}

func (c *Checker) robotsData(ctx context.Context, target *url.URL) (*robotstxt.RobotsData, error) {
	if cached, ok := c.cache.Get(target.Host); ok {
		return cached.(*robotstxt.RobotsData), nil
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", target.Scheme, target.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	c.cache.Set(target.Host, data, cache.DefaultExpiration)
	return data, nil
}
