package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/masterscarnivals/sidelinesync/internal/model"
)

// Memory is an in-process EventStore used by tests and mock mode
type Memory struct {
	mu     sync.Mutex
	nextID int64
	events map[int64]*model.StoredEvent

	// FailNext makes the next N calls fail with a transient error
	FailNext int
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{nextID: 1, events: make(map[int64]*model.StoredEvent)}
}

func (m *Memory) failInjected() error {
	if m.FailNext > 0 {
		m.FailNext--
		return fmt.Errorf("injected: %w", ErrTransient)
	}
	return nil
}

func (m *Memory) FindByKey(ctx context.Context, key Key) (*model.StoredEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failInjected(); err != nil {
		return nil, err
	}

	if ev := m.findLocked(key); ev != nil {
		return copyStored(ev), nil
	}
	if key.Day != nil {
		if ev := m.findLocked(key.WithoutDay()); ev != nil {
			return copyStored(ev), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) findLocked(key Key) *model.StoredEvent {
	want := key.String()
	for _, ev := range m.events {
		if KeyForStored(ev).String() == want {
			return ev
		}
	}
	return nil
}

func (m *Memory) Insert(ctx context.Context, ev *model.NormalisedEvent, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failInjected(); err != nil {
		return 0, err
	}

	id := m.nextID
	m.nextID++
	stored := &model.StoredEvent{ID: id, FieldUpdatedAt: make(map[string]time.Time)}
	applyEvent(stored, ev)
	stored.LastMySidelineSync = &now
	m.events[id] = stored
	return id, nil
}

func (m *Memory) UpdateWhole(ctx context.Context, id int64, ev *model.NormalisedEvent, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failInjected(); err != nil {
		return err
	}

	stored, ok := m.events[id]
	if !ok {
		return ErrNotFound
	}
	applyEvent(stored, ev)
	stored.LastMySidelineSync = maxTime(stored.LastMySidelineSync, now)
	return nil
}

func (m *Memory) UpdateClaimed(ctx context.Context, id int64, ev *model.NormalisedEvent, claimedAt, now time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failInjected(); err != nil {
		return nil, err
	}

	stored, ok := m.events[id]
	if !ok {
		return nil, ErrNotFound
	}

	fields := ClaimSafeFields(stored, ev, claimedAt)
	for _, field := range fields {
		applyField(stored, ev, field)
	}
	stored.LastMySidelineSync = maxTime(stored.LastMySidelineSync, now)
	return append(fields, model.FieldLastSync), nil
}

// MarkUserEdit simulates the owning user changing a field at the given
// time, as the surrounding web application would.
func (m *Memory) MarkUserEdit(id int64, field string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stored, ok := m.events[id]; ok {
		if stored.FieldUpdatedAt == nil {
			stored.FieldUpdatedAt = make(map[string]time.Time)
		}
		stored.FieldUpdatedAt[field] = at
	}
}

// Claim marks a record as claimed by a user at the given time
func (m *Memory) Claim(id int64, userID string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stored, ok := m.events[id]; ok && stored.ClaimedAt == nil && !stored.IsManuallyEntered {
		stored.ClaimedAt = &at
		stored.CreatedByUserID = userID
	}
}

// Put stores a record verbatim, for test setup
func (m *Memory) Put(ev *model.StoredEvent) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev.ID == 0 {
		ev.ID = m.nextID
		m.nextID++
	} else if ev.ID >= m.nextID {
		m.nextID = ev.ID + 1
	}
	if ev.FieldUpdatedAt == nil {
		ev.FieldUpdatedAt = make(map[string]time.Time)
	}
	m.events[ev.ID] = ev
	return ev.ID
}

// Get returns a copy of the record, for assertions
func (m *Memory) Get(id int64) (*model.StoredEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	if !ok {
		return nil, false
	}
	return copyStored(ev), true
}

// Len reports the number of stored records
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// applyEvent overwrites every ingestion-owned field
func applyEvent(stored *model.StoredEvent, ev *model.NormalisedEvent) {
	stored.Title = ev.Title
	stored.Date = copyTime(ev.Date)
	stored.State = ev.State
	stored.AddressParts = append([]string(nil), ev.AddressParts...)
	stored.MapsURL = ev.MapsURL
	stored.ScheduleDetails = ev.ScheduleDetails
	stored.Organiser = ev.Organiser
	stored.Social = ev.Social
	stored.LogoURL = ev.LogoURL
	stored.IsActive = ev.IsActive
	stored.RegistrationLink = ev.RegistrationLink
}

func applyField(stored *model.StoredEvent, ev *model.NormalisedEvent, field string) {
	switch field {
	case model.FieldTitle:
		stored.Title = ev.Title
	case model.FieldDate:
		stored.Date = copyTime(ev.Date)
	case model.FieldState:
		stored.State = ev.State
	case model.FieldAddress:
		stored.AddressParts = append([]string(nil), ev.AddressParts...)
	case model.FieldMapsURL:
		stored.MapsURL = ev.MapsURL
	case model.FieldSchedule:
		stored.ScheduleDetails = ev.ScheduleDetails
	case model.FieldOrganiserName:
		stored.Organiser.Name = ev.Organiser.Name
	case model.FieldOrganiserPhone:
		stored.Organiser.Phone = ev.Organiser.Phone
	case model.FieldOrganiserEmail:
		stored.Organiser.Email = ev.Organiser.Email
	case model.FieldFacebook:
		stored.Social.Facebook = ev.Social.Facebook
	case model.FieldWebsite:
		stored.Social.Website = ev.Social.Website
	case model.FieldLogoURL:
		stored.LogoURL = ev.LogoURL
	case model.FieldIsActive:
		stored.IsActive = ev.IsActive
	case model.FieldRegistration:
		stored.RegistrationLink = ev.RegistrationLink
	}
}

func copyStored(ev *model.StoredEvent) *model.StoredEvent {
	out := *ev
	out.Date = copyTime(ev.Date)
	out.ClaimedAt = copyTime(ev.ClaimedAt)
	out.LastMySidelineSync = copyTime(ev.LastMySidelineSync)
	out.AddressParts = append([]string(nil), ev.AddressParts...)
	out.FieldUpdatedAt = make(map[string]time.Time, len(ev.FieldUpdatedAt))
	for k, v := range ev.FieldUpdatedAt {
		out.FieldUpdatedAt[k] = v
	}
	return &out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// maxTime keeps lastMySidelineSync monotonically non-decreasing
func maxTime(current *time.Time, candidate time.Time) *time.Time {
	if current != nil && current.After(candidate) {
		return current
	}
	return &candidate
}
