// Package pipeline is the entry point for one sync run: it reads the feature
// flags, gates on robots.txt, drives the scrape, filters and reconciles each
// record, and emits the audit trail.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/masterscarnivals/sidelinesync/internal/audit"
	"github.com/masterscarnivals/sidelinesync/internal/browser"
	"github.com/masterscarnivals/sidelinesync/internal/clock"
	"github.com/masterscarnivals/sidelinesync/internal/extract"
	"github.com/masterscarnivals/sidelinesync/internal/filter"
	"github.com/masterscarnivals/sidelinesync/internal/model"
	"github.com/masterscarnivals/sidelinesync/internal/reconcile"
	"github.com/masterscarnivals/sidelinesync/internal/robots"
	"github.com/masterscarnivals/sidelinesync/internal/scrape"
	"github.com/masterscarnivals/sidelinesync/internal/store"
)

// ErrSyncBusy is returned when a sync is triggered while one is running
var ErrSyncBusy = errors.New("pipeline: a sync is already running")

// ErrScrapingDisallowed is returned when robots.txt forbids the search page
var ErrScrapingDisallowed = errors.New("pipeline: robots.txt disallows the search page")

// DriverFactory opens a fresh browser for one scrape attempt
type DriverFactory func(ctx context.Context) (browser.Driver, error)

// Deps carries everything a Controller needs. NewDriver and Robots default
// to real implementations built from the config when nil.
type Deps struct {
	Config    *model.Config
	Store     store.EventStore
	Audit     audit.Sink
	Clock     clock.Clock
	Log       *slog.Logger
	NewDriver DriverFactory
	Robots    *robots.Checker
	Registry  *Registry
}

// Controller runs the whole ingestion pipeline behind a single entry point
type Controller struct {
	cfg        *model.Config
	store      store.EventStore
	sink       audit.Sink
	clk        clock.Clock
	log        *slog.Logger
	newDriver  DriverFactory
	robots     *robots.Checker
	registry   *Registry
	reconciler *reconcile.Reconciler
}

func NewController(deps Deps) *Controller {
	cfg := deps.Config
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Audit == nil {
		deps.Audit = audit.Discard{}
	}
	if deps.NewDriver == nil {
		deps.NewDriver = func(ctx context.Context) (browser.Driver, error) {
			return browser.NewChromeDriver(ctx, browser.Options{
				Headless:  cfg.MySideline.Headless,
				UserAgent: cfg.MySideline.UserAgent,
			}), nil
		}
	}
	if deps.Robots == nil {
		deps.Robots = robots.NewChecker(cfg.MySideline.UserAgent)
	}
	if deps.Registry == nil {
		deps.Registry = NewRegistry()
	}
	return &Controller{
		cfg:        cfg,
		store:      deps.Store,
		sink:       deps.Audit,
		clk:        deps.Clock,
		log:        deps.Log,
		newDriver:  deps.NewDriver,
		robots:     deps.Robots,
		registry:   deps.Registry,
		reconciler: reconcile.New(deps.Store, deps.Audit, deps.Clock, deps.Log),
	}
}

// Registry exposes the run registry for correlation-id lookups
func (c *Controller) Registry() *Registry {
	return c.registry
}

// Sync performs one full run. At most one run is active at a time; a
// concurrent trigger gets a SYNC_BUSY outcome and ErrSyncBusy.
func (c *Controller) Sync(ctx context.Context) (*model.SyncSummary, error) {
	id, ok := c.registry.Begin()
	if !ok {
		c.sink.Emit(audit.SyncBusy, nil)
		return &model.SyncSummary{Success: false, Message: "a sync is already running"}, ErrSyncBusy
	}

	start := time.Now()
	summary, err := c.run(ctx, id)
	summary.CorrelationID = id
	summary.DurationMs = time.Since(start).Milliseconds()
	c.registry.Finish(id, summary)

	if err != nil {
		c.sink.Emit(audit.SyncFailed, map[string]any{
			"correlation_id": id,
			"error":          err.Error(),
		})
		return summary, err
	}
	c.sink.Emit(audit.SyncCompleted, map[string]any{
		"correlation_id": id,
		"processed":      summary.CarnivalsProcessed,
		"created":        summary.CarnivalsCreated,
		"updated":        summary.CarnivalsUpdated,
		"skipped":        summary.Skipped,
		"mock":           summary.Mock,
		"partial":        summary.Partial,
	})
	return summary, nil
}

func (c *Controller) run(ctx context.Context, id string) (*model.SyncSummary, error) {
	ms := c.cfg.MySideline
	summary := &model.SyncSummary{Mock: ms.UseMock}

	c.sink.Emit(audit.SyncStarted, map[string]any{
		"correlation_id": id,
		"mock":           ms.UseMock,
	})

	if !ms.EnableScraping {
		c.log.Info("scraping disabled, nothing to do")
		summary.Success = true
		summary.Message = "scraping disabled"
		return summary, nil
	}

	if ms.UseMock {
		return c.runMock(ctx, summary)
	}
	return c.runScrape(ctx, id, summary)
}

// runMock feeds the embedded fixture through the reconciler, bypassing the
// browser entirely.
func (c *Controller) runMock(ctx context.Context, summary *model.SyncSummary) (*model.SyncSummary, error) {
	events, err := MockEvents(c.clk.Now())
	if err != nil {
		return summary, err
	}
	summary.CarnivalsProcessed = len(events)
	for _, ev := range events {
		c.reconcileOne(ctx, ev, summary)
	}
	summary.Success = true
	return summary, nil
}

func (c *Controller) runScrape(ctx context.Context, id string, summary *model.SyncSummary) (*model.SyncSummary, error) {
	ms := c.cfg.MySideline

	pacer := scrape.NewPacer(ms.RequestDelay)
	allowed, crawlDelay, err := c.robots.CanFetch(ctx, ms.SearchURL)
	if err != nil {
		return summary, err
	}
	if !allowed {
		return summary, ErrScrapingDisallowed
	}
	if crawlDelay > 0 {
		pacer.Raise(crawlDelay)
		c.log.Info("robots.txt crawl delay honoured", "delay", crawlDelay)
	}

	result, err := c.scrapeWithRetry(ctx, id, pacer)
	if err != nil {
		return summary, err
	}

	summary.Partial = result.Partial
	summary.CarnivalsProcessed = result.CardsSeen
	summary.Skipped = result.Dropped
	for _, rec := range result.Records {
		if !filter.Relevant(rec.Card, rec.Event) {
			summary.Skipped++
			continue
		}
		c.reconcileOne(ctx, rec.Event, summary)
	}
	summary.Success = true
	return summary, nil
}

// scrapeWithRetry reruns the whole navigate-and-iterate pass on browser
// timeouts, with a fresh browser per attempt. Structural failures (the page
// rendered but held no recognisable cards) are not retried.
func (c *Controller) scrapeWithRetry(ctx context.Context, id string, pacer *scrape.Pacer) (*scrape.Result, error) {
	ms := c.cfg.MySideline
	artifacts := scrape.NewArtifacts(c.cfg.Output.ArtifactDir, id, c.log)

	var result *scrape.Result
	op := func() error {
		drv, err := c.newDriver(ctx)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("launch browser: %w", err))
		}
		orch := scrape.NewOrchestrator(c.extractor(), scrape.Options{
			SearchURL:      ms.SearchURL,
			RequestTimeout: ms.RequestTimeout,
			SoftDeadline:   ms.SoftDeadline,
			Pacer:          pacer,
			Artifacts:      artifacts,
		}, c.log)

		result, err = orch.Run(ctx, drv)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, context.DeadlineExceeded):
			c.log.Warn("scrape attempt timed out, retrying", "error", err)
			return err
		default:
			return backoff.Permanent(err)
		}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.Multiplier = 2
	policy.RandomizationFactor = 0

	retries := uint64(ms.RetryAttempts)
	if retries > 0 {
		retries--
	}
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, retries), ctx))
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		return nil, err
	}
	return result, nil
}

func (c *Controller) extractor() *extract.CardExtractor {
	return extract.NewCardExtractor(c.cfg.MySideline.EventURLPrefix, c.clk, c.log)
}

func (c *Controller) reconcileOne(ctx context.Context, ev *model.NormalisedEvent, summary *model.SyncSummary) {
	res, err := c.reconciler.Reconcile(ctx, ev)
	if err != nil {
		c.log.Error("reconcile failed", "title", ev.Title, "error", err)
		summary.Skipped++
		return
	}
	switch res.Action {
	case model.ActionInserted:
		summary.CarnivalsCreated++
	case model.ActionUpdated, model.ActionUpdatedClaimed:
		summary.CarnivalsUpdated++
	case model.ActionSkippedManual:
		summary.Skipped++
	}
}
