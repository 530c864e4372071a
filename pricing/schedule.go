// Package pricing maps timestamps to exchange rates through an ordered list
// of half-open tiers.
package pricing

import (
	"fmt"
	"sort"

	"github.com/holiman/uint256"
)

// Tier is the interval [Start, End) priced at Rate. Rates are fixed-point
// and divided by the schedule divisor when quoting.
type Tier struct {
	Start int64  `yaml:"start" json:"start"`
	End   int64  `yaml:"end" json:"end"`
	Rate  uint64 `yaml:"rate" json:"rate"`
}

// Contains reports whether t falls in the tier.
func (t Tier) Contains(ts int64) bool { return ts >= t.Start && ts < t.End }

// Schedule is an immutable, validated tier list.
type Schedule struct {
	tiers   []Tier
	divisor uint64
}

// NewSchedule validates tiers and builds a schedule. Tiers must be in order,
// non-empty, contiguous and carry a positive rate.
func NewSchedule(tiers []Tier, divisor uint64) (*Schedule, error) {
	if len(tiers) == 0 {
		return nil, ErrNoTiers
	}
	if divisor == 0 {
		return nil, ErrZeroDivisor
	}
	for i, t := range tiers {
		if t.End <= t.Start || t.Rate == 0 {
			return nil, fmt.Errorf("%w: tier %d [%d, %d) rate %d", ErrInvalidTier, i, t.Start, t.End, t.Rate)
		}
		if i > 0 && tiers[i-1].End != t.Start {
			return nil, fmt.Errorf("%w: tier %d ends at %d, tier %d starts at %d",
				ErrTierGap, i-1, tiers[i-1].End, i, t.Start)
		}
	}
	cp := make([]Tier, len(tiers))
	copy(cp, tiers)
	return &Schedule{tiers: cp, divisor: divisor}, nil
}

// Uniform builds back-to-back tiers of equal length starting at start, one
// per rate.
func Uniform(start, period int64, divisor uint64, rates ...uint64) (*Schedule, error) {
	if len(rates) == 0 {
		return nil, ErrNoTiers
	}
	if period <= 0 {
		return nil, fmt.Errorf("%w: period %d", ErrInvalidTier, period)
	}
	tiers := make([]Tier, len(rates))
	for i, r := range rates {
		s := start + int64(i)*period
		tiers[i] = Tier{Start: s, End: s + period, Rate: r}
	}
	return NewSchedule(tiers, divisor)
}

// Tiers returns a copy of the tier list.
func (s *Schedule) Tiers() []Tier {
	cp := make([]Tier, len(s.tiers))
	copy(cp, s.tiers)
	return cp
}

// Start is the first priced timestamp.
func (s *Schedule) Start() int64 { return s.tiers[0].Start }

// End is the first timestamp past the last tier.
func (s *Schedule) End() int64 { return s.tiers[len(s.tiers)-1].End }

// Divisor is the fixed-point divisor applied to rates.
func (s *Schedule) Divisor() uint64 { return s.divisor }

// FirstRate is the rate of the earliest tier.
func (s *Schedule) FirstRate() uint64 { return s.tiers[0].Rate }

// TierAt returns the index of the tier containing ts.
func (s *Schedule) TierAt(ts int64) (int, bool) {
	if ts < s.Start() || ts >= s.End() {
		return -1, false
	}
	// First tier whose end lies beyond ts; boundaries belong to the later tier.
	i := sort.Search(len(s.tiers), func(i int) bool { return s.tiers[i].End > ts })
	return i, true
}

// PriceAt returns the rate in effect at ts, or false outside the schedule.
func (s *Schedule) PriceAt(ts int64) (uint64, bool) {
	i, ok := s.TierAt(ts)
	if !ok {
		return 0, false
	}
	return s.tiers[i].Rate, true
}

// Convert returns value * rate / divisor.
func (s *Schedule) Convert(value *uint256.Int, rate uint64) (*uint256.Int, error) {
	product, overflow := new(uint256.Int).MulOverflow(value, uint256.NewInt(rate))
	if overflow {
		return nil, fmt.Errorf("%w: %s * %d", ErrOverflow, value.Dec(), rate)
	}
	return product.Div(product, uint256.NewInt(s.divisor)), nil
}

// Quote converts value at the rate in effect at ts.
func (s *Schedule) Quote(value *uint256.Int, ts int64) (*uint256.Int, error) {
	rate, ok := s.PriceAt(ts)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnavailable, ts)
	}
	return s.Convert(value, rate)
}
