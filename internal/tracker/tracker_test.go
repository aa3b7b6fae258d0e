package tracker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"limitedwatch/internal/market"
	kit "limitedwatch/internal/transport"
)

type fakeDeleter struct {
	fail    map[int]bool
	deleted []int
}

func (f *fakeDeleter) Delete(_ context.Context, ref kit.MessageRef) error {
	if f.fail[ref.MessageID] {
		return errors.New("gone")
	}
	f.deleted = append(f.deleted, ref.MessageID)
	return nil
}

func cands(ids ...string) []market.Candidate {
	out := make([]market.Candidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, market.Candidate{ID: id})
	}
	return out
}

func TestMarkAndFilterNew(t *testing.T) {
	tr := New()
	if got := tr.MarkAndFilterNew(cands("a", "b")); len(got) != 2 {
		t.Fatalf("expected 2 new, got %d", len(got))
	}
	got := tr.MarkAndFilterNew(cands("b", "c", "a"))
	if len(got) != 1 || got[0].ID != "c" {
		t.Fatalf("expected only c, got %+v", got)
	}
	if tr.MarkAndFilterNew(cands("a", "b", "c")) != nil {
		t.Fatalf("expected nothing new")
	}
	if s := tr.Stats(); s.Reported != 3 {
		t.Fatalf("expected 3 reported, got %d", s.Reported)
	}
}

func TestClearAllBestEffort(t *testing.T) {
	tr := New()
	for _, id := range []int{1, 2, 3} {
		tr.RecordSent(kit.MessageRef{ChatID: 9, MessageID: id})
	}
	d := &fakeDeleter{fail: map[int]bool{2: true}}

	n, err := tr.ClearAll(context.Background(), d)
	if n != 3 {
		t.Fatalf("expected 3 attempted, got %d", n)
	}
	if err == nil || !strings.Contains(err.Error(), "message 2") {
		t.Fatalf("expected joined failure for message 2, got %v", err)
	}
	if len(d.deleted) != 2 || d.deleted[0] != 1 || d.deleted[1] != 3 {
		t.Fatalf("unexpected deletions %v", d.deleted)
	}
	if s := tr.Stats(); s.Sent != 0 {
		t.Fatalf("log must be emptied, got %d", s.Sent)
	}

	n, err = tr.ClearAll(context.Background(), d)
	if n != 0 || err != nil {
		t.Fatalf("second clear: n=%d err=%v", n, err)
	}
}

func TestClearKeepsReportedSet(t *testing.T) {
	tr := New()
	tr.MarkAndFilterNew(cands("a"))
	tr.RecordSent(kit.MessageRef{MessageID: 1})
	_, _ = tr.ClearAll(context.Background(), &fakeDeleter{})
	if got := tr.MarkAndFilterNew(cands("a")); len(got) != 0 {
		t.Fatalf("clear must not forget reported items")
	}
}

func TestSettingsConcurrent(t *testing.T) {
	s := NewSettings(market.DefaultCriteria())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(v int) {
			defer wg.Done()
			s.SetPriceLimit(int64(v))
		}(i)
		go func() {
			defer wg.Done()
			_ = s.Snapshot()
		}()
	}
	wg.Wait()

	c := s.SetReductionThreshold(25)
	if c.ReductionThreshold != 25 || s.Snapshot().DesiredDemand != market.DefaultDesiredDemand {
		t.Fatalf("unexpected criteria %+v", c)
	}
}
