// Package alert renders candidates as chat cards.
package alert

import (
	"strconv"

	"limitedwatch/internal/market"
	kit "limitedwatch/internal/transport"
)

const (
	CatalogURLPrefix = "https://www.roblox.com/catalog/"
	Footer           = "Rolimons Item Tracking"
)

// CatalogURL is the canonical item page.
func CatalogURL(id string) string { return CatalogURLPrefix + id }

// Card builds the notification for one candidate.
func Card(c market.Candidate) kit.Card {
	sev := c.Severity()
	return kit.Card{
		Title: c.Name,
		URL:   CatalogURL(c.ID),
		Lines: []kit.CardLine{
			{Label: "Price", Value: FormatAmount(c.Price)},
			{Label: "RAP", Value: FormatAmount(c.RAP)},
			{Label: "Reduction", Value: strconv.FormatFloat(c.Reduction, 'f', 2, 64) + "%"},
			{Label: "Demand", Value: market.DemandLabel(c.Demand)},
			{Label: "Trend", Value: market.TrendLabel(c.Trend)},
		},
		Color:    sev.Color,
		Marker:   sev.Marker,
		ImageURL: c.ThumbnailURL,
		Footer:   Footer,
	}
}

// FormatAmount prints whole amounts without decimals.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
