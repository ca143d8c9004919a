package audit

import (
	"sync"
	"testing"
)

func TestMemoryRecordsInOrder(t *testing.T) {
	m := NewMemory()
	m.Emit(SyncStarted, map[string]any{"correlation_id": "abc"})
	m.Emit(EventImported, map[string]any{"id": int64(1)})
	m.Emit(SyncCompleted, nil)

	kinds := m.Kinds()
	want := []string{SyncStarted, EventImported, SyncCompleted}
	if len(kinds) != len(want) {
		t.Fatalf("got %d records, want %d", len(kinds), len(want))
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("record %d = %q, want %q", i, kinds[i], want[i])
		}
	}
	if got := m.Records()[0].Payload["correlation_id"]; got != "abc" {
		t.Errorf("payload correlation_id = %v", got)
	}
}

func TestMemoryCopiesPayload(t *testing.T) {
	m := NewMemory()
	payload := map[string]any{"fields": "title"}
	m.Emit(EventUpdated, payload)
	payload["fields"] = "mutated"

	if got := m.Records()[0].Payload["fields"]; got != "title" {
		t.Errorf("stored payload was mutated: %v", got)
	}
}

func TestMemoryConcurrentEmit(t *testing.T) {
	m := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Emit(EventImported, map[string]any{"id": int64(1)})
		}()
	}
	wg.Wait()
	if len(m.Records()) != 20 {
		t.Errorf("got %d records, want 20", len(m.Records()))
	}
}

func TestFanout(t *testing.T) {
	a, b := NewMemory(), NewMemory()
	Fanout{a, b}.Emit(SyncBusy, nil)
	if len(a.Records()) != 1 || len(b.Records()) != 1 {
		t.Errorf("fanout missed a sink: %d/%d", len(a.Records()), len(b.Records()))
	}
}
