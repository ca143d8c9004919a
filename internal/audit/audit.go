// Package audit emits the structured trail that makes sync runs
// reconstructable after the fact. Every lifecycle transition and every
// per-event decision goes through a Sink.
package audit

import (
	"log/slog"
	"sync"
)

// Audit kinds recorded over a sync run.
const (
	SyncStarted         = "SYNC_STARTED"
	SyncCompleted       = "SYNC_COMPLETED"
	SyncFailed          = "SYNC_FAILED"
	SyncBusy            = "SYNC_BUSY"
	EventImported       = "EVENT_IMPORTED"
	EventUpdated        = "EVENT_UPDATED"
	EventUpdatedClaimed = "EVENT_UPDATED_CLAIMED"
	EventConflictManual = "EVENT_CONFLICT_MANUAL"
)

// Sink receives audit records. Implementations must be safe for
// concurrent use.
type Sink interface {
	Emit(kind string, payload map[string]any)
}

// Logger writes audit records to a structured logger.
type Logger struct {
	log *slog.Logger
}

func NewLogger(log *slog.Logger) *Logger {
	return &Logger{log: log}
}

func (l *Logger) Emit(kind string, payload map[string]any) {
	attrs := make([]any, 0, 2+2*len(payload))
	attrs = append(attrs, "kind", kind)
	for k, v := range payload {
		attrs = append(attrs, k, v)
	}
	l.log.Info("audit", attrs...)
}

// Record is one captured audit entry.
type Record struct {
	Kind    string
	Payload map[string]any
}

// Memory collects records in order, for tests and the admin recent-runs
// view.
type Memory struct {
	mu      sync.Mutex
	records []Record
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Emit(kind string, payload map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[string]any, len(payload))
	for k, v := range payload {
		cp[k] = v
	}
	m.records = append(m.records, Record{Kind: kind, Payload: cp})
}

// Records returns a snapshot of everything emitted so far.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}

// Kinds returns just the kind of each record, in emission order.
func (m *Memory) Kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.records))
	for i, r := range m.records {
		out[i] = r.Kind
	}
	return out
}

// Fanout forwards every record to each sink in turn.
type Fanout []Sink

func (f Fanout) Emit(kind string, payload map[string]any) {
	for _, s := range f {
		s.Emit(kind, payload)
	}
}

// Discard drops every record.
type Discard struct{}

func (Discard) Emit(string, map[string]any) {}
