package pipeline

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/masterscarnivals/sidelinesync/internal/model"
)

//go:embed mock_events.yaml
var mockEventsYAML []byte

type mockFixture struct {
	Events []*model.NormalisedEvent `yaml:"events"`
}

// MockEvents returns the embedded fixture records used in mock mode, with
// ScrapedAt stamped at the given time.
func MockEvents(scrapedAt time.Time) ([]*model.NormalisedEvent, error) {
	var fixture mockFixture
	if err := yaml.Unmarshal(mockEventsYAML, &fixture); err != nil {
		return nil, fmt.Errorf("parse mock fixture: %w", err)
	}
	for _, ev := range fixture.Events {
		ev.ScrapedAt = scrapedAt
	}
	return fixture.Events, nil
}
