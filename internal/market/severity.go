package market

// Severity buckets a reduction for display.
type Severity struct {
	Name   string
	Color  uint32
	Marker string
}

var (
	SeverityCritical = Severity{Name: "critical", Color: 0xED023D, Marker: "🟥"}
	SeverityHigh     = Severity{Name: "high", Color: 0xD40074, Marker: "🟪"}
	SeverityElevated = Severity{Name: "elevated", Color: 0xE60000, Marker: "🔴"}
	SeverityNotable  = Severity{Name: "notable", Color: 0xFFA500, Marker: "🟧"}
	SeverityNeutral  = Severity{Name: "neutral", Color: 0xFFFFFF, Marker: "⬜"}
)

// SeverityFor maps a reduction to its bucket. Lower bounds are inclusive.
func SeverityFor(reduction float64) Severity {
	switch {
	case reduction >= 50:
		return SeverityCritical
	case reduction >= 20:
		return SeverityHigh
	case reduction >= 10:
		return SeverityElevated
	case reduction >= 5:
		return SeverityNotable
	default:
		return SeverityNeutral
	}
}
