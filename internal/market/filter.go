package market

import (
	"encoding/json"

	"limitedwatch/internal/feed"
)

// Candidate is a record that passed the criteria, with its reduction.
type Candidate struct {
	ID           string
	Name         string
	Price        float64
	RAP          float64
	Demand       json.RawMessage
	Trend        json.RawMessage
	Reduction    float64
	ThumbnailURL string
}

func (c Candidate) Severity() Severity { return SeverityFor(c.Reduction) }

// SelectCandidates returns the records matching crit, in catalog order.
func SelectCandidates(cat *feed.Catalog, crit Criteria) []Candidate {
	if cat == nil {
		return nil
	}
	var out []Candidate
	for _, rec := range cat.Items {
		if c, ok := evaluate(rec, crit); ok {
			out = append(out, c)
		}
	}
	return out
}

func evaluate(rec feed.Record, crit Criteria) (Candidate, bool) {
	if rec.IsProjected() || rec.Price == nil || !rec.HasDemand() {
		return Candidate{}, false
	}
	price := *rec.Price
	if price <= float64(crit.MinPrice) || price > float64(crit.PriceLimit) {
		return Candidate{}, false
	}
	var rap float64
	if rec.RAP != nil {
		rap = *rec.RAP
	}
	red := ReductionPercent(price, rap)
	if red < crit.ReductionThreshold {
		return Candidate{}, false
	}
	if crit.DemandFilter {
		tier, ok := DemandTier(rec.Demand)
		if !ok || tier < crit.DesiredDemand {
			return Candidate{}, false
		}
	}
	return Candidate{
		ID:           rec.ID,
		Name:         rec.Name,
		Price:        price,
		RAP:          rap,
		Demand:       rec.Demand,
		Trend:        rec.Trend,
		Reduction:    red,
		ThumbnailURL: rec.Thumbnail,
	}, true
}
