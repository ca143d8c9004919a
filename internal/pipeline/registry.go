package pipeline

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/masterscarnivals/sidelinesync/internal/model"
)

const (
	summaryTTL     = 24 * time.Hour
	summaryCleanup = time.Hour
)

// Registry enforces the single-flight rule: at most one sync runs at a time,
// and a second trigger is rejected rather than queued. Finished summaries are
// kept for a day, queryable by correlation id.
type Registry struct {
	running chan struct{}
	recent  *cache.Cache
}

func NewRegistry() *Registry {
	return &Registry{
		running: make(chan struct{}, 1),
		recent:  cache.New(summaryTTL, summaryCleanup),
	}
}

// Begin claims the run slot. It returns a fresh correlation id, or ok=false
// when a run is already active.
func (r *Registry) Begin() (id string, ok bool) {
	select {
	case r.running <- struct{}{}:
		return newCorrelationID(), true
	default:
		return "", false
	}
}

// Finish releases the run slot and records the summary.
func (r *Registry) Finish(id string, summary *model.SyncSummary) {
	r.recent.Set(id, summary, cache.DefaultExpiration)
	<-r.running
}

// Lookup returns the summary of a recent run by correlation id.
func (r *Registry) Lookup(id string) (*model.SyncSummary, bool) {
	v, ok := r.recent.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*model.SyncSummary), true
}

func newCorrelationID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "sync-unknown"
	}
	return "sync-" + hex.EncodeToString(b[:])
}
