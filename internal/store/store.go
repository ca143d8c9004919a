// Package store persists carnival records and implements the capability
// set the reconciler consumes: lookup by duplicate-detection key, insert,
// whole update, and the claim-aware partial update.
package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/masterscarnivals/sidelinesync/internal/model"
)

var (
	// ErrNotFound is returned when no record matches a key or id
	ErrNotFound = errors.New("store: record not found")
	// ErrTransient marks failures worth retrying
	ErrTransient = errors.New("store: transient failure")
)

// IsTransient reports whether an error is worth retrying
func IsTransient(err error) bool {
	if errors.Is(err, ErrTransient) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

// Key is the duplicate-detection key: normalised title, the date bucketed
// to a UTC day, and the state code. Day is nil for dateless events, in
// which case matching falls back to (title, state).
type Key struct {
	NormTitle string
	Day       *time.Time
	State     string
}

var keySpaces = regexp.MustCompile(`\s+`)

// NormaliseTitle lowercases and collapses whitespace for key matching
func NormaliseTitle(title string) string {
	return keySpaces.ReplaceAllString(strings.ToLower(strings.TrimSpace(title)), " ")
}

// KeyFor computes the duplicate-detection key of a normalised event
func KeyFor(ev *model.NormalisedEvent) Key {
	return newKey(ev.Title, ev.Date, ev.State)
}

// KeyForStored computes the duplicate-detection key of a stored record
func KeyForStored(ev *model.StoredEvent) Key {
	return newKey(ev.Title, ev.Date, ev.State)
}

func newKey(title string, date *time.Time, state string) Key {
	key := Key{NormTitle: NormaliseTitle(title), State: state}
	if date != nil {
		day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
		key.Day = &day
	}
	return key
}

// String renders the key in a stable, comparable form
func (k Key) String() string {
	day := "-"
	if k.Day != nil {
		day = k.Day.Format("2006-01-02")
	}
	return k.NormTitle + "|" + day + "|" + k.State
}

// WithoutDay drops the day component for the dateless fallback match
func (k Key) WithoutDay() Key {
	return Key{NormTitle: k.NormTitle, State: k.State}
}

// EventStore is the capability set the reconciler consumes
type EventStore interface {
	// FindByKey returns the record matching the key, trying the dateless
	// fallback when an exact dated match is absent. ErrNotFound when none.
	FindByKey(ctx context.Context, key Key) (*model.StoredEvent, error)
	// Insert creates an imported record and returns its id
	Insert(ctx context.Context, ev *model.NormalisedEvent, now time.Time) (int64, error)
	// UpdateWhole overwrites every ingestion-owned field
	UpdateWhole(ctx context.Context, id int64, ev *model.NormalisedEvent, now time.Time) error
	// UpdateClaimed writes only claim-safe fields and reports which ones
	UpdateClaimed(ctx context.Context, id int64, ev *model.NormalisedEvent, claimedAt, now time.Time) ([]string, error)
}

// ChangedFields lists the canonical field names whose values differ between
// a stored record and an incoming event.
func ChangedFields(stored *model.StoredEvent, ev *model.NormalisedEvent) []string {
	var changed []string
	add := func(field string, differs bool) {
		if differs {
			changed = append(changed, field)
		}
	}

	add(model.FieldTitle, stored.Title != ev.Title)
	add(model.FieldDate, !sameDay(stored.Date, ev.Date))
	add(model.FieldState, stored.State != ev.State)
	add(model.FieldAddress, strings.Join(stored.AddressParts, "|") != strings.Join(ev.AddressParts, "|"))
	add(model.FieldMapsURL, stored.MapsURL != ev.MapsURL)
	add(model.FieldSchedule, stored.ScheduleDetails != ev.ScheduleDetails)
	add(model.FieldOrganiserName, stored.Organiser.Name != ev.Organiser.Name)
	add(model.FieldOrganiserPhone, stored.Organiser.Phone != ev.Organiser.Phone)
	add(model.FieldOrganiserEmail, stored.Organiser.Email != ev.Organiser.Email)
	add(model.FieldFacebook, stored.Social.Facebook != ev.Social.Facebook)
	add(model.FieldWebsite, stored.Social.Website != ev.Social.Website)
	add(model.FieldLogoURL, stored.LogoURL != ev.LogoURL)
	add(model.FieldIsActive, stored.IsActive != ev.IsActive)
	add(model.FieldRegistration, stored.RegistrationLink != ev.RegistrationLink)
	return changed
}

// ClaimSafeFields filters ChangedFields down to what a claimed record may
// still accept: fields the owner has not edited since claiming, plus the
// always-safe fills of an empty logo or maps URL.
func ClaimSafeFields(stored *model.StoredEvent, ev *model.NormalisedEvent, claimedAt time.Time) []string {
	var safe []string
	for _, field := range ChangedFields(stored, ev) {
		switch field {
		case model.FieldLogoURL:
			if stored.LogoURL == "" || !stored.UpdatedSince(field, claimedAt) {
				safe = append(safe, field)
			}
		case model.FieldMapsURL:
			if stored.MapsURL == "" || !stored.UpdatedSince(field, claimedAt) {
				safe = append(safe, field)
			}
		default:
			if !stored.UpdatedSince(field, claimedAt) {
				safe = append(safe, field)
			}
		}
	}
	return safe
}

func sameDay(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
