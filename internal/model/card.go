package model

// EventType values observed on MySideline cards
const (
	EventTypeTouch   = "Touch"
	EventTypeLeague  = "League"
	EventTypeMasters = "Masters"
	EventTypeOther   = "Other"
)

// SourceMySideline identifies records imported by this pipeline
const SourceMySideline = "mysideline"

// Organiser holds the club contact details extracted from a card
type Organiser struct {
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Phone string `json:"phone,omitempty" yaml:"phone,omitempty"`
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
}

// Social holds the outbound links extracted from a card
type Social struct {
	Facebook string `json:"facebook,omitempty" yaml:"facebook,omitempty"`
	Website  string `json:"website,omitempty" yaml:"website,omitempty"`
}

// ScrapedCard is the raw, identifier-free record extracted from a single
// rendered MySideline card. It lives only for the duration of a run.
type ScrapedCard struct {
	RawTitle        string    `json:"raw_title"`
	Subtitle        string    `json:"subtitle,omitempty"`
	LogoURL         string    `json:"logo_url,omitempty"`
	AddressLines    []string  `json:"address_lines,omitempty"` // positional, at most 4
	ComposedAddress string    `json:"composed_address,omitempty"`
	MapsURL         string    `json:"maps_url,omitempty"`
	ScheduleText    string    `json:"schedule_text,omitempty"`
	EventType       string    `json:"event_type,omitempty"` // one of the EventType constants, or ""
	Organiser       Organiser `json:"organiser"`
	Social          Social    `json:"social"`
	HasRegistration bool      `json:"has_registration"`
}
