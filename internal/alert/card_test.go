package alert

import (
	"encoding/json"
	"testing"

	"limitedwatch/internal/market"
)

func TestCard(t *testing.T) {
	c := market.Candidate{
		ID:           "1001",
		Name:         "Sparkle Time Fedora",
		Price:        800,
		RAP:          1000,
		Demand:       json.RawMessage(`3`),
		Trend:        json.RawMessage(`"Stable"`),
		Reduction:    20,
		ThumbnailURL: "https://img/1001",
	}
	card := Card(c)

	if card.Title != c.Name || card.URL != "https://www.roblox.com/catalog/1001" {
		t.Fatalf("unexpected title/url: %+v", card)
	}
	if card.Color != 0xD40074 || card.Marker != market.SeverityHigh.Marker {
		t.Fatalf("unexpected severity %#x %q", card.Color, card.Marker)
	}
	if card.Footer != "Rolimons Item Tracking" || card.ImageURL != "https://img/1001" {
		t.Fatalf("unexpected footer/image: %+v", card)
	}

	want := map[string]string{
		"Price":     "800",
		"RAP":       "1000",
		"Reduction": "20.00%",
		"Demand":    "High",
		"Trend":     "Stable",
	}
	if len(card.Lines) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(card.Lines))
	}
	for _, l := range card.Lines {
		if want[l.Label] != l.Value {
			t.Fatalf("line %s = %q, want %q", l.Label, l.Value, want[l.Label])
		}
	}
}
