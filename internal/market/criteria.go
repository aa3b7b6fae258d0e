package market

import (
	"errors"
	"fmt"
)

const (
	DefaultPriceLimit         = 5000
	DefaultDesiredDemand      = 2
	DefaultReductionThreshold = 10
	DefaultMinPrice           = 100
)

// Criteria decides which catalog records become candidates.
type Criteria struct {
	PriceLimit         int64
	DesiredDemand      int
	ReductionThreshold float64
	// MinPrice is an exclusive floor.
	MinPrice int64
	// DemandFilter applies DesiredDemand as a predicate. Off by default.
	DemandFilter bool
}

func DefaultCriteria() Criteria {
	return Criteria{
		PriceLimit:         DefaultPriceLimit,
		DesiredDemand:      DefaultDesiredDemand,
		ReductionThreshold: DefaultReductionThreshold,
		MinPrice:           DefaultMinPrice,
	}
}

var ErrInvalidCriteria = errors.New("invalid criteria")

func (c Criteria) Validate() error {
	if c.PriceLimit < 0 {
		return fmt.Errorf("%w: price limit %d is negative", ErrInvalidCriteria, c.PriceLimit)
	}
	if c.MinPrice < 0 {
		return fmt.Errorf("%w: min price %d is negative", ErrInvalidCriteria, c.MinPrice)
	}
	return nil
}
