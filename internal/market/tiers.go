package market

import (
	"encoding/json"
	"strconv"
	"strings"
)

var demandLabels = []string{"Terrible", "Low", "Normal", "High", "Amazing"}

var trendLabels = []string{"Lowering", "Unstable", "Stable", "Raising", "Fluctuating"}

// DemandTier returns the numeric tier of a demand value. Upstream sends
// numbers; labels are accepted too.
func DemandTier(v json.RawMessage) (int, bool) {
	return tierOf(v, demandLabels)
}

// DemandLabel renders a demand value for humans.
func DemandLabel(v json.RawMessage) string { return labelOf(v, demandLabels) }

// TrendLabel renders a trend value for humans.
func TrendLabel(v json.RawMessage) string { return labelOf(v, trendLabels) }

func tierOf(v json.RawMessage, labels []string) (int, bool) {
	if len(v) == 0 {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(v, &n); err == nil {
		return int(n), true
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		for i, l := range labels {
			if strings.EqualFold(strings.TrimSpace(s), l) {
				return i, true
			}
		}
	}
	return 0, false
}

func labelOf(v json.RawMessage, labels []string) string {
	if len(v) == 0 {
		return "None"
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	var n float64
	if err := json.Unmarshal(v, &n); err == nil {
		if i := int(n); float64(i) == n && i >= 0 && i < len(labels) {
			return labels[i]
		}
		if n < 0 {
			return "None"
		}
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return string(v)
}
