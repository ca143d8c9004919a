package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/masterscarnivals/sidelinesync/internal/model"
)

func openTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "carnivals.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t)
	day := time.Date(2025, time.September, 20, 0, 0, 0, 0, time.UTC)
	now := time.Date(2025, time.August, 1, 10, 30, 0, 0, time.UTC)

	ev := testEvent("QLD Masters Carnival", &day, "QLD")
	ev.AddressParts = []string{"Davies Park", "Brisbane QLD 4101"}
	ev.Organiser = model.Organiser{Name: "Jo Bloggs", Phone: "0400 000 000", Email: "jo@club.au"}
	ev.Social = model.Social{Facebook: "https://facebook.com/club", Website: "https://club.au"}
	ev.LogoURL = "https://cdn/logo.png"
	ev.RegistrationLink = "https://profile.mysideline.com.au/register/clubsearch/?criteria=QLD+Masters+Carnival"

	id, err := s.Insert(ctx, ev, now)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	found, err := s.FindByKey(ctx, KeyFor(ev))
	if err != nil {
		t.Fatalf("FindByKey: %v", err)
	}
	if found.ID != id {
		t.Errorf("ID = %d, want %d", found.ID, id)
	}
	if found.Title != ev.Title || found.State != "QLD" {
		t.Errorf("record mismatch: %+v", found)
	}
	if found.Date == nil || !found.Date.Equal(day) {
		t.Errorf("Date = %v, want %v", found.Date, day)
	}
	if len(found.AddressParts) != 2 || found.AddressParts[0] != "Davies Park" {
		t.Errorf("AddressParts = %v", found.AddressParts)
	}
	if found.Organiser != ev.Organiser || found.Social != ev.Social {
		t.Errorf("contact mismatch: %+v", found)
	}
	if !found.IsActive || found.IsManuallyEntered {
		t.Errorf("flags mismatch: %+v", found)
	}
	if found.LastMySidelineSync == nil || !found.LastMySidelineSync.Equal(now) {
		t.Errorf("LastMySidelineSync = %v", found.LastMySidelineSync)
	}
}

func TestSQLiteFindMissing(t *testing.T) {
	s := openTestDB(t)
	_, err := s.FindByKey(context.Background(), KeyFor(testEvent("Nope", nil, "NSW")))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteDatelessFallback(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t)
	now := time.Now().UTC()

	if _, err := s.Insert(ctx, testEvent("Perth Masters", nil, "WA"), now); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	day := time.Date(2025, time.October, 4, 0, 0, 0, 0, time.UTC)
	found, err := s.FindByKey(ctx, KeyFor(testEvent("Perth Masters", &day, "WA")))
	if err != nil {
		t.Fatalf("fallback find: %v", err)
	}
	if found.Date != nil {
		t.Errorf("expected stored dateless record, got date %v", found.Date)
	}
}

func TestSQLiteUpdateWholeMonotonicSync(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t)
	later := time.Date(2025, time.August, 2, 0, 0, 0, 0, time.UTC)

	ev := testEvent("Bondi Masters Carnival", nil, "NSW")
	id, err := s.Insert(ctx, ev, later)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := s.UpdateWhole(ctx, id, ev, later.Add(-time.Hour)); err != nil {
		t.Fatalf("UpdateWhole: %v", err)
	}
	found, err := s.FindByKey(ctx, KeyFor(ev))
	if err != nil {
		t.Fatalf("FindByKey: %v", err)
	}
	if !found.LastMySidelineSync.Equal(later) {
		t.Errorf("LastMySidelineSync went backwards: %v", found.LastMySidelineSync)
	}
}

func TestSQLiteUpdateClaimed(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t)
	now := time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC)
	claimed := now.Add(24 * time.Hour)

	ev := testEvent("Bondi Masters Carnival", nil, "NSW")
	ev.Organiser.Email = "import@club.au"
	id, err := s.Insert(ctx, ev, now)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Claim(ctx, id, "user-42", claimed); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := s.MarkUserEdit(ctx, id, model.FieldOrganiserEmail, claimed.Add(time.Hour)); err != nil {
		t.Fatalf("MarkUserEdit: %v", err)
	}

	next := testEvent("Bondi Masters Carnival", nil, "NSW")
	next.Organiser.Email = "scraped@club.au"
	next.Organiser.Phone = "0400 111 222"

	fields, err := s.UpdateClaimed(ctx, id, next, claimed, claimed.Add(48*time.Hour))
	if err != nil {
		t.Fatalf("UpdateClaimed: %v", err)
	}
	for _, f := range fields {
		if f == model.FieldOrganiserEmail {
			t.Error("user-edited email was written")
		}
	}

	found, err := s.FindByKey(ctx, KeyFor(next))
	if err != nil {
		t.Fatalf("FindByKey: %v", err)
	}
	if found.Organiser.Email != "import@club.au" {
		t.Errorf("email clobbered: %q", found.Organiser.Email)
	}
	if found.Organiser.Phone != "0400 111 222" {
		t.Errorf("phone not updated: %q", found.Organiser.Phone)
	}
	if found.ClaimedAt == nil || found.CreatedByUserID != "user-42" {
		t.Errorf("claim not recorded: %+v", found)
	}
}

func TestSQLiteClaimIsOneWay(t *testing.T) {
	ctx := context.Background()
	s := openTestDB(t)
	now := time.Now().UTC()

	id, err := s.Insert(ctx, testEvent("Bondi Masters Carnival", nil, "NSW"), now)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Claim(ctx, id, "first", now); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := s.Claim(ctx, id, "second", now.Add(time.Hour)); err == nil {
		t.Error("second claim should fail")
	}
}
