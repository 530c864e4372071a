// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
)

// Amount is a base-unit quantity. In text it is a decimal integer with an
// optional power-of-ten suffix, so 227000e18 is 227000 whole units of an
// 18-decimal token.
type Amount struct {
	v uint256.Int
}

// NewAmount wraps v.
func NewAmount(v *uint256.Int) Amount {
	var a Amount
	if v != nil {
		a.v = *v
	}
	return a
}

// ParseAmount parses the text form of an amount.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "_", ""))
	mantissa, exp, scaled := s, "", false
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		mantissa, exp, scaled = s[:i], s[i+1:], true
	}
	if mantissa == "" {
		return Amount{}, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	v, err := uint256.FromDecimal(mantissa)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q: %w", ErrInvalidAmount, s, err)
	}
	if scaled {
		n, err := strconv.ParseUint(exp, 10, 8)
		if err != nil || n > 77 {
			return Amount{}, fmt.Errorf("%w: exponent in %q", ErrInvalidAmount, s)
		}
		scale := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(n))
		if _, overflow := v.MulOverflow(v, scale); overflow {
			return Amount{}, fmt.Errorf("%w: %q overflows", ErrInvalidAmount, s)
		}
	}
	return Amount{v: *v}, nil
}

// MustParseAmount is ParseAmount for constants. It panics on error.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Int returns a copy of the amount.
func (a Amount) Int() *uint256.Int {
	v := a.v
	return &v
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a.v.IsZero() }

// String returns the plain decimal form.
func (a Amount) String() string { return a.v.Dec() }

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) { return []byte(a.v.Dec()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
