package tracker

import (
	"sync"

	"limitedwatch/internal/market"
)

// Settings guards the live criteria. Commands write, the poller snapshots.
type Settings struct {
	mu   sync.RWMutex
	crit market.Criteria
}

func NewSettings(c market.Criteria) *Settings {
	return &Settings{crit: c}
}

func (s *Settings) Snapshot() market.Criteria {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.crit
}

func (s *Settings) Replace(c market.Criteria) {
	s.mu.Lock()
	s.crit = c
	s.mu.Unlock()
}

func (s *Settings) SetPriceLimit(v int64) market.Criteria {
	return s.update(func(c *market.Criteria) { c.PriceLimit = v })
}

func (s *Settings) SetDesiredDemand(v int) market.Criteria {
	return s.update(func(c *market.Criteria) { c.DesiredDemand = v })
}

func (s *Settings) SetReductionThreshold(v float64) market.Criteria {
	return s.update(func(c *market.Criteria) { c.ReductionThreshold = v })
}

func (s *Settings) update(fn func(c *market.Criteria)) market.Criteria {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.crit)
	return s.crit
}
