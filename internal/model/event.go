package model

import "time"

// Canonical field names shared between the reconciler and the event store.
// The store tracks a per-field updated-at timestamp under these names; the
// reconciler uses them to decide what a claimed record may still accept.
const (
	FieldTitle          = "title"
	FieldDate           = "date"
	FieldState          = "state"
	FieldAddress        = "address"
	FieldMapsURL        = "maps_url"
	FieldSchedule       = "schedule_details"
	FieldOrganiserName  = "organiser_name"
	FieldOrganiserPhone = "organiser_phone"
	FieldOrganiserEmail = "organiser_email"
	FieldFacebook       = "facebook"
	FieldWebsite        = "website"
	FieldLogoURL        = "logo_url"
	FieldIsActive       = "is_active"
	FieldRegistration   = "registration_link"
	FieldLastSync       = "last_mysideline_sync"
)

// NormalisedEvent is a cleaned, classified carnival record ready for
// reconciliation. Produced per run and discarded.
type NormalisedEvent struct {
	Title            string     `json:"title" yaml:"title"`
	Date             *time.Time `json:"date,omitempty" yaml:"date,omitempty"`
	State            string     `json:"state,omitempty" yaml:"state,omitempty"`
	AddressParts     []string   `json:"address_parts,omitempty" yaml:"address_parts,omitempty"`
	MapsURL          string     `json:"maps_url,omitempty" yaml:"maps_url,omitempty"`
	ScheduleDetails  string     `json:"schedule_details,omitempty" yaml:"schedule_details,omitempty"`
	Organiser        Organiser  `json:"organiser" yaml:"organiser,omitempty"`
	Social           Social     `json:"social" yaml:"social,omitempty"`
	LogoURL          string     `json:"logo_url,omitempty" yaml:"logo_url,omitempty"`
	IsActive         bool       `json:"is_active" yaml:"is_active"`
	SourceID         string     `json:"source_id" yaml:"source_id,omitempty"`
	ScrapedAt        time.Time  `json:"scraped_at" yaml:"scraped_at,omitempty"`
	RegistrationLink string     `json:"registration_link,omitempty" yaml:"registration_link,omitempty"`
}

// StoredEvent is the slice of a persisted carnival record the pipeline is
// allowed to read and write. Records with IsManuallyEntered set are never
// touched by ingestion.
type StoredEvent struct {
	ID                 int64
	Title              string
	Date               *time.Time
	State              string
	AddressParts       []string
	MapsURL            string
	ScheduleDetails    string
	Organiser          Organiser
	Social             Social
	LogoURL            string
	IsActive           bool
	IsManuallyEntered  bool
	ClaimedAt          *time.Time
	CreatedByUserID    string
	RegistrationLink   string
	LastMySidelineSync *time.Time

	// FieldUpdatedAt records when each canonical field last changed.
	// Compared against ClaimedAt to enforce claimed-no-clobber.
	FieldUpdatedAt map[string]time.Time
}

// UpdatedSince reports whether the named field changed after the given time.
// Fields with no recorded timestamp are treated as untouched.
func (e *StoredEvent) UpdatedSince(field string, since time.Time) bool {
	ts, ok := e.FieldUpdatedAt[field]
	if !ok {
		return false
	}
	return ts.After(since)
}
