package store

import (
	"testing"
	"time"

	"github.com/masterscarnivals/sidelinesync/internal/model"
)

func TestNormaliseTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"QLD Masters Carnival", "qld masters carnival"},
		{"  QLD   Masters  Carnival  ", "qld masters carnival"},
		{"BONDI MASTERS", "bondi masters"},
	}
	for _, tt := range tests {
		if got := NormaliseTitle(tt.in); got != tt.want {
			t.Errorf("NormaliseTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestKeyBucketsToUTCDay(t *testing.T) {
	late := time.Date(2025, time.September, 20, 23, 45, 0, 0, time.UTC)
	early := time.Date(2025, time.September, 20, 0, 10, 0, 0, time.UTC)

	a := KeyFor(&model.NormalisedEvent{Title: "QLD Masters Carnival", Date: &late, State: "QLD"})
	b := KeyFor(&model.NormalisedEvent{Title: "qld masters carnival", Date: &early, State: "QLD"})
	if a.String() != b.String() {
		t.Errorf("keys differ: %q vs %q", a.String(), b.String())
	}
}

func TestKeyDatelessFallback(t *testing.T) {
	k := KeyFor(&model.NormalisedEvent{Title: "Perth Masters", State: "WA"})
	if k.Day != nil {
		t.Errorf("dateless key has day %v", k.Day)
	}
	if k.String() != "perth masters|-|WA" {
		t.Errorf("key = %q", k.String())
	}
}

func TestChangedFields(t *testing.T) {
	day := time.Date(2025, time.September, 20, 0, 0, 0, 0, time.UTC)
	stored := &model.StoredEvent{
		Title:     "QLD Masters Carnival",
		Date:      &day,
		State:     "QLD",
		Organiser: model.Organiser{Email: "old@club.au"},
	}
	ev := &model.NormalisedEvent{
		Title:     "QLD Masters Carnival",
		Date:      &day,
		State:     "QLD",
		Organiser: model.Organiser{Email: "new@club.au"},
		IsActive:  true,
	}

	changed := ChangedFields(stored, ev)
	want := map[string]bool{model.FieldOrganiserEmail: true, model.FieldIsActive: true}
	if len(changed) != len(want) {
		t.Fatalf("ChangedFields = %v, want keys %v", changed, want)
	}
	for _, f := range changed {
		if !want[f] {
			t.Errorf("unexpected changed field %q", f)
		}
	}
}

func TestClaimSafeFields(t *testing.T) {
	claimed := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	stored := &model.StoredEvent{
		Title:     "QLD Masters Carnival",
		State:     "QLD",
		Organiser: model.Organiser{Email: "owner@club.au"},
		LogoURL:   "",
		MapsURL:   "https://maps.google.com/?q=old",
		FieldUpdatedAt: map[string]time.Time{
			// Owner edited the email after claiming
			model.FieldOrganiserEmail: claimed.Add(time.Hour),
			// Maps URL was edited too, and it is non-empty, so it stays
			model.FieldMapsURL: claimed.Add(time.Hour),
		},
	}
	ev := &model.NormalisedEvent{
		Title:     "QLD Masters Carnival",
		State:     "QLD",
		Organiser: model.Organiser{Email: "scraped@club.au", Phone: "0400 000 000"},
		LogoURL:   "https://cdn/logo.png",
		MapsURL:   "https://maps.google.com/?q=new",
	}

	safe := ClaimSafeFields(stored, ev, claimed)
	got := map[string]bool{}
	for _, f := range safe {
		got[f] = true
	}
	if got[model.FieldOrganiserEmail] {
		t.Error("owner-edited email must not be claim-safe")
	}
	if got[model.FieldMapsURL] {
		t.Error("owner-edited non-empty maps URL must not be claim-safe")
	}
	if !got[model.FieldLogoURL] {
		t.Error("empty logo URL should always be fillable")
	}
	if !got[model.FieldOrganiserPhone] {
		t.Error("untouched phone should be claim-safe")
	}
}
