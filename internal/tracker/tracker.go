// Package tracker remembers which items were already announced and which
// chat messages carry those announcements. State lives in memory only.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"limitedwatch/internal/market"
	kit "limitedwatch/internal/transport"
)

// Deleter removes a previously sent message.
type Deleter interface {
	Delete(ctx context.Context, ref kit.MessageRef) error
}

// Tracker holds the reported set and the sent-message log.
type Tracker struct {
	mu       sync.Mutex
	reported map[string]struct{}
	sent     []kit.MessageRef
}

func New() *Tracker {
	return &Tracker{reported: map[string]struct{}{}}
}

// MarkAndFilterNew returns the candidates not reported before and marks
// them reported before any delivery happens.
func (t *Tracker) MarkAndFilterNew(cands []market.Candidate) []market.Candidate {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []market.Candidate
	for _, c := range cands {
		if _, seen := t.reported[c.ID]; seen {
			continue
		}
		t.reported[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}

func (t *Tracker) RecordSent(ref kit.MessageRef) {
	t.mu.Lock()
	t.sent = append(t.sent, ref)
	t.mu.Unlock()
}

// ClearAll deletes every logged message and empties the log. Deletion
// failures do not stop the rest; they come back joined.
func (t *Tracker) ClearAll(ctx context.Context, d Deleter) (int, error) {
	t.mu.Lock()
	refs := t.sent
	t.sent = nil
	t.mu.Unlock()

	var errs []error
	for _, ref := range refs {
		if err := d.Delete(ctx, ref); err != nil {
			errs = append(errs, fmt.Errorf("message %d: %w", ref.MessageID, err))
		}
	}
	return len(refs), errors.Join(errs...)
}

type Stats struct {
	Reported int
	Sent     int
}

func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{Reported: len(t.reported), Sent: len(t.sent)}
}
