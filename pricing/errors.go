package pricing

import "errors"

var (
	// ErrUnavailable indicates the timestamp lies outside every tier.
	ErrUnavailable = errors.New("pricing: no tier covers timestamp")

	// ErrNoTiers indicates an empty tier list.
	ErrNoTiers = errors.New("pricing: no tiers")

	// ErrInvalidTier indicates a tier with end <= start or a zero rate.
	ErrInvalidTier = errors.New("pricing: invalid tier")

	// ErrTierGap indicates consecutive tiers that do not meet exactly.
	ErrTierGap = errors.New("pricing: tiers are not contiguous")

	// ErrZeroDivisor indicates a zero rate divisor.
	ErrZeroDivisor = errors.New("pricing: zero rate divisor")

	// ErrOverflow indicates value * rate exceeds 2^256-1.
	ErrOverflow = errors.New("pricing: quote overflow")
)
