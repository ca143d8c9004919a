package extract

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/masterscarnivals/sidelinesync/internal/browser"
	"github.com/masterscarnivals/sidelinesync/internal/clock"
	"github.com/masterscarnivals/sidelinesync/internal/model"
)

// Selectors within one expanded MySideline card
const (
	selLogoImage      = "img"
	selTitle          = "h2"
	selSubtitle       = "h3"
	selMapsAnchor     = `a[href*="maps.google.com"]`
	selParagraph      = "p"
	selDescriptorItem = "ul.details li"
	selDescLabel      = "span.label"
	selDescValue      = "span.value"
	selRegisterButton = "button.register-button"
	selAnchor         = "a"
)

const clubContactMarker = "Club Contact"

// CardExtractor turns one expanded card locator into a normalised carnival
// record. Field-level failures degrade to empty fields; only a missing
// title or a Touch classification drops the card.
type CardExtractor struct {
	eventURLPrefix string
	clk            clock.Clock
	log            *slog.Logger
}

func NewCardExtractor(eventURLPrefix string, clk clock.Clock, log *slog.Logger) *CardExtractor {
	if log == nil {
		log = slog.Default()
	}
	return &CardExtractor{eventURLPrefix: eventURLPrefix, clk: clk, log: log}
}

// Extract scrapes the card and normalises it. A nil, nil return means the
// card was rejected (no title, or a Touch event).
func (e *CardExtractor) Extract(ctx context.Context, card browser.Locator) (*model.NormalisedEvent, error) {
	scraped, err := e.ExtractCard(ctx, card)
	if err != nil {
		return nil, err
	}
	if scraped == nil {
		return nil, nil
	}
	return e.Normalise(scraped), nil
}

// ExtractCard pulls the raw ScrapedCard out of the DOM. It returns nil when
// the card is non-extractable.
func (e *CardExtractor) ExtractCard(ctx context.Context, card browser.Locator) (*model.ScrapedCard, error) {
	title := strings.TrimSpace(e.textOf(ctx, card.Locator(selTitle)))
	if title == "" {
		return nil, nil
	}

	sc := &model.ScrapedCard{
		RawTitle: title,
		Subtitle: strings.TrimSpace(e.textOf(ctx, card.Locator(selSubtitle))),
	}

	sc.LogoURL = e.logoURL(ctx, card)
	e.extractAddress(ctx, card, sc)
	sc.EventType = e.eventType(ctx, card)
	e.extractParagraphs(ctx, card, sc)
	sc.HasRegistration = e.visible(ctx, card.Locator(selRegisterButton))

	// Touch cards never become carnivals
	if sc.EventType == model.EventTypeTouch {
		return nil, nil
	}
	return sc, nil
}

// Normalise applies the title/date parser and state resolver and derives
// the registration link from the configured event URL prefix.
func (e *CardExtractor) Normalise(sc *model.ScrapedCard) *model.NormalisedEvent {
	td := ParseTitleDate(sc.RawTitle)
	title := td.CleanTitle
	if title == "" {
		title = sc.RawTitle
	}

	return &model.NormalisedEvent{
		Title:            title,
		Date:             td.Date,
		State:            ResolveState(sc.ComposedAddress),
		AddressParts:     sc.AddressLines,
		MapsURL:          sc.MapsURL,
		ScheduleDetails:  sc.ScheduleText,
		Organiser:        sc.Organiser,
		Social:           sc.Social,
		LogoURL:          sc.LogoURL,
		IsActive:         sc.HasRegistration,
		SourceID:         model.SourceMySideline,
		ScrapedAt:        e.clk.Now(),
		RegistrationLink: e.eventURLPrefix + url.QueryEscape(title),
	}
}

// logoURL prefers the lazy-load data-url over src
func (e *CardExtractor) logoURL(ctx context.Context, card browser.Locator) string {
	img := card.Locator(selLogoImage)
	if u := e.attrOf(ctx, img, "data-url"); u != "" {
		return u
	}
	return e.attrOf(ctx, img, "src")
}

func (e *CardExtractor) extractAddress(ctx context.Context, card browser.Locator, sc *model.ScrapedCard) {
	maps := card.Locator(selMapsAnchor)
	sc.MapsURL = e.attrOf(ctx, maps, "href")
	if sc.MapsURL == "" {
		return
	}

	lines, err := maps.Locator(selParagraph).AllTextContents(ctx)
	if err != nil {
		e.log.Debug("address lines unreadable", "error", err)
		return
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(sc.AddressLines) < 4 {
			sc.AddressLines = append(sc.AddressLines, line)
		}
	}
	sc.ComposedAddress = strings.Join(sc.AddressLines, ", ")
}

// eventType reads the descriptor list item labelled "Type"
func (e *CardExtractor) eventType(ctx context.Context, card browser.Locator) string {
	items := card.Locator(selDescriptorItem)
	n, err := items.Count(ctx)
	if err != nil {
		return ""
	}
	for i := 0; i < n; i++ {
		item := items.Nth(i)
		label := strings.TrimSpace(e.textOf(ctx, item.Locator(selDescLabel)))
		if !strings.EqualFold(label, "Type") {
			continue
		}
		value := strings.TrimSpace(e.textOf(ctx, item.Locator(selDescValue)))
		return canonicalEventType(value)
	}
	return ""
}

func canonicalEventType(value string) string {
	switch {
	case value == "":
		return ""
	case strings.EqualFold(value, model.EventTypeTouch):
		return model.EventTypeTouch
	case strings.EqualFold(value, model.EventTypeLeague):
		return model.EventTypeLeague
	case strings.EqualFold(value, model.EventTypeMasters):
		return model.EventTypeMasters
	default:
		return model.EventTypeOther
	}
}

// extractParagraphs walks the card's paragraphs once, picking up the
// schedule text and the "Club Contact" organiser block.
func (e *CardExtractor) extractParagraphs(ctx context.Context, card browser.Locator, sc *model.ScrapedCard) {
	paragraphs := card.Locator(selParagraph)
	texts, err := paragraphs.AllTextContents(ctx)
	if err != nil {
		e.log.Debug("paragraphs unreadable", "error", err)
		return
	}

	// Address paragraphs live inside the maps anchor; they must not be
	// mistaken for schedule text.
	addressLine := make(map[string]bool, len(sc.AddressLines))
	for _, line := range sc.AddressLines {
		addressLine[line] = true
	}

	for i, raw := range texts {
		text := strings.TrimSpace(raw)
		switch {
		case strings.Contains(text, clubContactMarker):
			e.extractOrganiser(ctx, paragraphs.Nth(i), text, sc)
		case sc.ScheduleText == "" && len(text) > 20 && !addressLine[text]:
			sc.ScheduleText = text
		}
	}
}

func (e *CardExtractor) extractOrganiser(ctx context.Context, block browser.Locator, text string, sc *model.ScrapedCard) {
	sc.Organiser.Name = betweenMarkers(text, "Name:", "Number:")
	sc.Organiser.Phone = strings.TrimSpace(e.textOf(ctx, block.Locator(`a[href^="tel:"]`)))
	sc.Organiser.Email = strings.TrimSpace(e.textOf(ctx, block.Locator(`a[href^="mailto:"]`)))

	anchors := block.Locator(selAnchor)
	n, err := anchors.Count(ctx)
	if err != nil {
		return
	}
	for i := 0; i < n; i++ {
		href := e.attrOf(ctx, anchors.Nth(i), "href")
		switch {
		case href == "":
		case sc.Social.Facebook == "" && strings.Contains(href, "facebook.com"):
			sc.Social.Facebook = href
		case sc.Social.Website == "" && strings.HasPrefix(href, "http") && !strings.Contains(href, "facebook.com"):
			sc.Social.Website = href
		}
	}
}

// betweenMarkers returns the trimmed text between from and the next to, or
// between from and the end of the string when to is absent.
func betweenMarkers(text, from, to string) string {
	start := strings.Index(text, from)
	if start < 0 {
		return ""
	}
	rest := text[start+len(from):]
	if end := strings.Index(rest, to); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// textOf reads text content, treating any failure as an empty field
func (e *CardExtractor) textOf(ctx context.Context, loc browser.Locator) string {
	text, err := loc.TextContent(ctx)
	if err != nil {
		return ""
	}
	return text
}

// attrOf reads an attribute, treating any failure as an empty field
func (e *CardExtractor) attrOf(ctx context.Context, loc browser.Locator, name string) string {
	value, err := loc.GetAttribute(ctx, name)
	if err != nil {
		return ""
	}
	return value
}

func (e *CardExtractor) visible(ctx context.Context, loc browser.Locator) bool {
	visible, err := loc.IsVisible(ctx)
	if err != nil {
		return false
	}
	return visible
}
