package feed

import "fmt"

// FetchError reports a failed download: transport failure, timeout or a
// non-2xx status.
type FetchError struct {
	URL        string
	StatusCode int // 0 when no response arrived
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("feed: fetch %s: http %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("feed: fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a body that does not carry a usable item table.
type ParseError struct {
	Reason   string
	ItemID   string // set when a single record broke the contract
	Position int    // -1 unless a field position is at fault
	Err      error
}

func (e *ParseError) Error() string {
	msg := "feed: parse: " + e.Reason
	if e.ItemID != "" {
		msg += fmt.Sprintf(" (item %s", e.ItemID)
		if e.Position >= 0 {
			msg += fmt.Sprintf(", position %d", e.Position)
		}
		msg += ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseErr(reason string, err error) *ParseError {
	return &ParseError{Reason: reason, Position: -1, Err: err}
}
