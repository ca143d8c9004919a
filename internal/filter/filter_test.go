package filter

import (
	"testing"

	"github.com/masterscarnivals/sidelinesync/internal/model"
)

func TestRelevant(t *testing.T) {
	tests := []struct {
		name     string
		card     model.ScrapedCard
		event    model.NormalisedEvent
		want     bool
	}{
		{
			name:  "plain masters carnival",
			event: model.NormalisedEvent{Title: "Bondi Masters Carnival"},
			want:  true,
		},
		{
			name:  "title too short",
			event: model.NormalisedEvent{Title: "Cup"},
			want:  false,
		},
		{
			name:  "touch in title",
			event: model.NormalisedEvent{Title: "Sydney Touch Masters"},
			want:  false,
		},
		{
			name:  "touch in title case insensitive",
			event: model.NormalisedEvent{Title: "Sydney TOUCH Masters"},
			want:  false,
		},
		{
			name:  "touch in subtitle",
			card:  model.ScrapedCard{Subtitle: "Incorporating Touch Divisions"},
			event: model.NormalisedEvent{Title: "Bondi Masters Carnival"},
			want:  false,
		},
		{
			name: "touch in organiser email",
			event: model.NormalisedEvent{
				Title:     "Bondi Masters Carnival",
				Organiser: model.Organiser{Email: "admin@bonditouch.org.au"},
			},
			want: false,
		},
		{
			name: "touch in facebook link",
			event: model.NormalisedEvent{
				Title:  "Bondi Masters Carnival",
				Social: model.Social{Facebook: "https://facebook.com/touchfooty"},
			},
			want: false,
		},
		{
			name: "touch in website",
			event: model.NormalisedEvent{
				Title:  "Bondi Masters Carnival",
				Social: model.Social{Website: "https://touchfooty.com.au"},
			},
			want: false,
		},
		{
			name: "clean contact details pass",
			event: model.NormalisedEvent{
				Title:     "Bondi Masters Carnival",
				Organiser: model.Organiser{Email: "admin@bondimasters.org.au"},
				Social:    model.Social{Website: "https://bondimasters.org.au"},
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Relevant(&tt.card, &tt.event); got != tt.want {
				t.Errorf("Relevant() = %v, want %v", got, tt.want)
			}
		})
	}
}
