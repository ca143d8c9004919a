package scrape

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/masterscarnivals/sidelinesync/internal/browser"
	"github.com/masterscarnivals/sidelinesync/internal/clock"
	"github.com/masterscarnivals/sidelinesync/internal/extract"
)

const searchURL = "https://profile.mysideline.com.au/register/clubsearch"

func card(title, eventType string) string {
	return fmt.Sprintf(`<div class="club-card">
		<h2>%s</h2>
		<ul class="details">
			<li><span class="label">Type</span><span class="value">%s</span></li>
		</ul>
		<button class="register-button">Register</button>
	</div>`, title, eventType)
}

func searchPage(cards ...string) string {
	body := ""
	for _, c := range cards {
		body += c
	}
	return "<html><body>" + body + "</body></html>"
}

func newTestOrchestrator(opts Options) *Orchestrator {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.NewFake(time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC))
	ex := extract.NewCardExtractor("https://profile.mysideline.com.au/register/clubsearch?criteria=", clk, log)
	if opts.SearchURL == "" {
		opts.SearchURL = searchURL
	}
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = 2 * time.Second
	}
	if opts.Pacer == nil {
		opts.Pacer = NewPacer(0)
	}
	return NewOrchestrator(ex, opts, log)
}

func TestRunExtractsCardsInOrder(t *testing.T) {
	drv := browser.NewStaticDriver(map[string]string{
		searchURL: searchPage(
			card("Bondi Masters Carnival 15/08/2025", "Masters"),
			card("Sydney Touch Gala", "Touch"),
			card("Brisbane Rugby League Tournament", "League"),
		),
	})
	o := newTestOrchestrator(Options{})

	res, err := o.Run(context.Background(), drv)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.CardsSeen != 3 {
		t.Errorf("CardsSeen = %d, want 3", res.CardsSeen)
	}
	if res.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1 (the Touch card)", res.Dropped)
	}
	if len(res.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(res.Records))
	}
	if res.Records[0].Event.Title != "Bondi Masters Carnival" {
		t.Errorf("first record = %q, DOM order lost", res.Records[0].Event.Title)
	}
	if res.Partial {
		t.Error("full pass reported partial")
	}
	if !drv.Closed() {
		t.Error("driver not released")
	}
	if o.State() != StateDone {
		t.Errorf("state = %q, want done", o.State())
	}

	// Every card is clicked twice: expand then collapse
	if clicks := drv.Clicks(); len(clicks) != 6 {
		t.Errorf("got %d clicks, want 6: %v", len(clicks), clicks)
	}
}

func TestRunEmptyResultSetSucceeds(t *testing.T) {
	// A rendered page holding no cards means the site has nothing open, not
	// that the scrape broke.
	drv := browser.NewStaticDriver(map[string]string{
		searchURL: `<html><body><div class="results"></div></body></html>`,
	})
	o := newTestOrchestrator(Options{RequestTimeout: 100 * time.Millisecond})

	res, err := o.Run(context.Background(), drv)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.CardsSeen != 0 || len(res.Records) != 0 || res.Dropped != 0 {
		t.Errorf("empty result set gave seen=%d records=%d dropped=%d",
			res.CardsSeen, len(res.Records), res.Dropped)
	}
	if res.Partial {
		t.Error("empty result set reported partial")
	}
	if o.State() != StateDone {
		t.Errorf("state = %q, want done", o.State())
	}
	if !drv.Closed() {
		t.Error("driver not released")
	}
}

func TestDefaultInterCardDelay(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	o := NewOrchestrator(nil, Options{SearchURL: searchURL}, log)
	if d := o.opts.Pacer.Delay(); d != time.Second {
		t.Errorf("default inter-card delay = %v, want 1s", d)
	}
}

func TestRunToleratesReadinessTimeout(t *testing.T) {
	// One token-bearing card is below the readiness threshold of two, so the
	// wait times out, but iteration still visits what is there.
	drv := browser.NewStaticDriver(map[string]string{
		searchURL: searchPage(card("Bondi Masters", "Masters")),
	})
	o := newTestOrchestrator(Options{RequestTimeout: 100 * time.Millisecond})

	res, err := o.Run(context.Background(), drv)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Records) != 1 {
		t.Errorf("got %d records, want 1", len(res.Records))
	}
}

func TestRunSoftDeadlinePartial(t *testing.T) {
	drv := browser.NewStaticDriver(map[string]string{
		searchURL: searchPage(
			card("Bondi Masters Carnival", "Masters"),
			card("Brisbane Rugby League Tournament", "League"),
		),
	})
	o := newTestOrchestrator(Options{SoftDeadline: time.Nanosecond})

	res, err := o.Run(context.Background(), drv)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Partial {
		t.Error("expired soft deadline should report partial")
	}
	if !drv.Closed() {
		t.Error("driver not released")
	}
}

func TestRunNavigateFailureReleasesDriver(t *testing.T) {
	drv := browser.NewStaticDriver(map[string]string{
		searchURL: searchPage(card("Bondi Masters", "Masters")),
	})
	drv.NavigateFailures = 1
	o := newTestOrchestrator(Options{RequestTimeout: 100 * time.Millisecond})

	if _, err := o.Run(context.Background(), drv); err == nil {
		t.Fatal("expected navigation error")
	}
	if !drv.Closed() {
		t.Error("driver not released on navigation failure")
	}
}

func TestRunWritesDroppedCardArtifacts(t *testing.T) {
	dir := t.TempDir()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	drv := browser.NewStaticDriver(map[string]string{
		searchURL: searchPage(
			card("Bondi Masters Carnival", "Masters"),
			card("Sydney Touch Gala", "Touch"),
			card("Brisbane Rugby League Tournament", "League"),
		),
	})
	o := newTestOrchestrator(Options{
		Artifacts: NewArtifacts(dir, "run-1", log),
	})

	if _, err := o.Run(context.Background(), drv); err != nil {
		t.Fatalf("Run: %v", err)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "run-1", "card-*.txt"))
	if len(matches) != 1 {
		t.Fatalf("got %d card artifacts, want 1", len(matches))
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if len(data) == 0 {
		t.Error("card artifact is empty")
	}
}

func TestPacerRaiseOnlyIncreases(t *testing.T) {
	p := NewPacer(time.Second)
	p.Raise(500 * time.Millisecond)
	if p.Delay() != time.Second {
		t.Errorf("Raise lowered the delay to %v", p.Delay())
	}
	p.Raise(3 * time.Second)
	if p.Delay() != 3*time.Second {
		t.Errorf("Raise did not take: %v", p.Delay())
	}
}

func TestPacerDisabled(t *testing.T) {
	p := NewPacer(0)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	for i := 0; i < 100; i++ {
		if err := p.Wait(ctx); err != nil {
			t.Fatalf("disabled pacer blocked: %v", err)
		}
	}
}
