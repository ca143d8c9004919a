// Package scrape drives the headless browser over the MySideline search
// results: navigate, wait for the card list to render, then expand, extract
// and collapse each card in DOM order.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/masterscarnivals/sidelinesync/internal/browser"
	"github.com/masterscarnivals/sidelinesync/internal/extract"
	"github.com/masterscarnivals/sidelinesync/internal/model"
)

// ErrPageNotReady means the search page never rendered its document
// structure. This is the site-broken case and aborts the run; a rendered
// page with zero result cards is not an error.
var ErrPageNotReady = errors.New("scrape: search page not ready")

// selCard matches one collapsed result card on the search page
const selCard = "div.club-card"

// readyTokens are the words at least two cards must contain before the page
// counts as rendered. The search page paints skeleton cards first.
var readyTokens = []string{"masters", "rugby", "league", "tournament", "carnival"}

const (
	readyMinTokenCards = 2
	readyPollInterval  = 500 * time.Millisecond

	// defaultCardDelay is the inter-card pause used when no pacer is supplied
	defaultCardDelay = time.Second
)

// State tracks where a run is in its lifecycle
type State string

const (
	StateIdle            State = "idle"
	StateNavigating      State = "navigating"
	StateWaitingForReady State = "waiting_for_ready"
	StateIterating       State = "iterating"
	StateDraining        State = "draining"
	StateDone            State = "done"
	StateFailed          State = "failed"
)

// CardRecord pairs the raw scraped card with its normalised form, so the
// relevance filter downstream can see both.
type CardRecord struct {
	Card  *model.ScrapedCard
	Event *model.NormalisedEvent
}

// Result is the outcome of one orchestrated pass over the search page
type Result struct {
	Records   []CardRecord
	CardsSeen int
	Dropped   int
	// Partial is set when the soft deadline or a cancel stopped iteration
	// before every card was visited.
	Partial bool
}

// Options configures one orchestrator
type Options struct {
	SearchURL      string
	RequestTimeout time.Duration
	SoftDeadline   time.Duration
	Pacer          *Pacer
	Artifacts      *Artifacts
}

// Orchestrator owns the browser for the duration of one run
type Orchestrator struct {
	extractor *extract.CardExtractor
	opts      Options
	log       *slog.Logger

	mu    sync.Mutex
	state State
}

func NewOrchestrator(extractor *extract.CardExtractor, opts Options, log *slog.Logger) *Orchestrator {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if opts.SoftDeadline <= 0 {
		opts.SoftDeadline = 10 * time.Minute
	}
	if opts.Pacer == nil {
		opts.Pacer = NewPacer(defaultCardDelay)
	}
	return &Orchestrator{extractor: extractor, opts: opts, log: log, state: StateIdle}
}

// State reports the current run state
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Run executes one pass. The driver is exclusively owned by this call and is
// closed before it returns, on every path.
func (o *Orchestrator) Run(ctx context.Context, drv browser.Driver) (result *Result, err error) {
	defer func() {
		if cerr := drv.Close(); cerr != nil {
			o.log.Warn("browser close", "error", cerr)
		}
		if err != nil {
			o.setState(StateFailed)
		} else {
			o.setState(StateDone)
		}
	}()

	page, err := drv.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			o.log.Warn("page close", "error", cerr)
		}
	}()

	o.setState(StateNavigating)
	if err := o.navigate(ctx, page); err != nil {
		return nil, err
	}

	o.setState(StateWaitingForReady)
	if err := o.waitForReady(ctx, page); err != nil {
		// Logged, not fatal yet: iteration below decides whether anything
		// at all is on the page.
		o.log.Warn("search page readiness timed out", "error", err)
		o.opts.Artifacts.Screenshot(ctx, page, "not-ready")
	}

	return o.iterate(ctx, page)
}

func (o *Orchestrator) navigate(ctx context.Context, page browser.Page) error {
	navCtx, cancel := context.WithTimeout(ctx, o.opts.RequestTimeout)
	defer cancel()
	if err := page.Navigate(navCtx, o.opts.SearchURL); err != nil {
		return fmt.Errorf("navigate %s: %w", o.opts.SearchURL, err)
	}
	return nil
}

// waitForReady polls until the page holds a rendered card list: a body, at
// least one card, and at least two cards mentioning a known token.
func (o *Orchestrator) waitForReady(ctx context.Context, page browser.Page) error {
	deadline, cancel := context.WithTimeout(ctx, o.opts.RequestTimeout)
	defer cancel()

	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	for {
		if ready, _ := o.checkReady(deadline, page); ready {
			return nil
		}
		select {
		case <-deadline.Done():
			return fmt.Errorf("%w: %v", ErrPageNotReady, deadline.Err())
		case <-ticker.C:
		}
	}
}

func (o *Orchestrator) checkReady(ctx context.Context, page browser.Page) (bool, error) {
	if err := page.WaitForSelector(ctx, "body"); err != nil {
		return false, err
	}
	texts, err := page.Locator(selCard).AllTextContents(ctx)
	if err != nil || len(texts) == 0 {
		return false, err
	}

	withToken := 0
	for _, text := range texts {
		lower := strings.ToLower(text)
		for _, token := range readyTokens {
			if strings.Contains(lower, token) {
				withToken++
				break
			}
		}
	}
	return withToken >= readyMinTokenCards, nil
}

func (o *Orchestrator) iterate(ctx context.Context, page browser.Page) (*Result, error) {
	o.setState(StateIterating)

	cards := page.Locator(selCard)
	count, err := o.countCards(ctx, cards)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		// A rendered page with an empty result set is a legitimate outcome:
		// the site can simply have no carnivals open. Abort only when the
		// document structure never appeared at all.
		if berr := o.bodyPresent(ctx, page); berr != nil {
			o.opts.Artifacts.Screenshot(ctx, page, "no-cards")
			return nil, fmt.Errorf("%w: no document body", ErrPageNotReady)
		}
		o.log.Info("search page rendered with no result cards")
		return &Result{}, nil
	}

	result := &Result{CardsSeen: count}
	softDeadline := time.Now().Add(o.opts.SoftDeadline)

	for i := 0; i < count; i++ {
		if ctx.Err() != nil || time.Now().After(softDeadline) {
			o.setState(StateDraining)
			result.Partial = true
			o.log.Warn("stopping before all cards were visited",
				"visited", i, "total", count)
			break
		}
		o.processCard(ctx, cards.Nth(i), i, result)

		if err := o.opts.Pacer.Wait(ctx); err != nil {
			o.setState(StateDraining)
			result.Partial = true
			break
		}
	}
	return result, nil
}

func (o *Orchestrator) bodyPresent(ctx context.Context, page browser.Page) error {
	actionCtx, cancel := context.WithTimeout(ctx, o.opts.RequestTimeout)
	defer cancel()
	return page.WaitForSelector(actionCtx, "body")
}

func (o *Orchestrator) countCards(ctx context.Context, cards browser.Locator) (int, error) {
	actionCtx, cancel := context.WithTimeout(ctx, o.opts.RequestTimeout)
	defer cancel()
	count, err := cards.Count(actionCtx)
	if err != nil {
		return 0, fmt.Errorf("count cards: %w", err)
	}
	return count, nil
}

// processCard expands, extracts and collapses one card. Failures at any step
// drop the card at worst; they never abort the run.
func (o *Orchestrator) processCard(ctx context.Context, card browser.Locator, index int, result *Result) {
	actionCtx, cancel := context.WithTimeout(ctx, o.opts.RequestTimeout)
	defer cancel()

	if err := card.Click(actionCtx); err != nil {
		o.log.Warn("expand card", "index", index, "error", err)
	}

	scraped, err := o.extractor.ExtractCard(actionCtx, card)
	switch {
	case err != nil:
		o.log.Warn("extract card", "index", index, "error", err)
		result.Dropped++
	case scraped == nil:
		result.Dropped++
		if text, terr := card.TextContent(actionCtx); terr == nil {
			o.opts.Artifacts.CardText(index, text)
		}
	default:
		result.Records = append(result.Records, CardRecord{
			Card:  scraped,
			Event: o.extractor.Normalise(scraped),
		})
	}

	if err := card.Click(actionCtx); err != nil {
		o.log.Warn("collapse card", "index", index, "error", err)
	}
}
