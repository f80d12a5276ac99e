// Package decimal wraps shopspring/decimal in a narrow Weight type used
// to scale fractional objective weights into the solver's integer units
// without float drift. Adapted from the teacher's pkg/decimal: Price
// becomes Weight, and Quantity/Money/PnL/margin/fee arithmetic (no
// logistics analog) is dropped.
package decimal

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Weight represents a fixed-precision objective weight, e.g. the caller's
// fractional certificate_penalty_weight or click_to_eat_penalty_weight before it
// is scaled into the solver's integer objective.
type Weight struct {
	value decimal.Decimal
}

// NewWeight creates a new Weight from a string.
func NewWeight(s string) (Weight, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Weight{}, fmt.Errorf("invalid weight: %w", err)
	}
	return Weight{value: d}, nil
}

// NewWeightFromFloat creates a Weight from a float64 using decimal
// arithmetic, so 0.1 + 0.2 stays exactly 0.3 through later scaling.
func NewWeightFromFloat(f float64) Weight {
	return Weight{value: decimal.NewFromFloat(f)}
}

// Add adds two weights.
func (w Weight) Add(other Weight) Weight {
	return Weight{value: w.value.Add(other.value)}
}

// Sub subtracts two weights.
func (w Weight) Sub(other Weight) Weight {
	return Weight{value: w.value.Sub(other.value)}
}

// MulInt scales a weight by an integer factor, used to move a fractional
// weight into the solver's integer objective units before rounding.
func (w Weight) MulInt(factor int64) Weight {
	return Weight{value: w.value.Mul(decimal.NewFromInt(factor))}
}

// Div divides one weight by another.
func (w Weight) Div(divisor Weight) (Weight, error) {
	if divisor.value.IsZero() {
		return Weight{}, fmt.Errorf("division by zero")
	}
	return Weight{value: w.value.Div(divisor.value)}, nil
}

// Cmp compares two weights.
func (w Weight) Cmp(other Weight) int {
	return w.value.Cmp(other.value)
}

// IsZero reports whether the weight is zero.
func (w Weight) IsZero() bool {
	return w.value.IsZero()
}

// IsNegative reports whether the weight is negative.
func (w Weight) IsNegative() bool {
	return w.value.IsNegative()
}

// String returns a fixed 8-decimal string representation.
func (w Weight) String() string {
	return w.value.StringFixed(8)
}

// Float64 returns a float64 approximation; callers needing exactness
// should stay in Weight/decimal.Decimal space instead.
func (w Weight) Float64() float64 {
	f, _ := w.value.Float64()
	return f
}

// Round rounds to the given number of decimal places.
func (w Weight) Round(places int32) Weight {
	return Weight{value: w.value.Round(places)}
}

// RoundDown truncates to the given number of decimal places.
func (w Weight) RoundDown(places int32) Weight {
	return Weight{value: w.value.Truncate(places)}
}

// IntPart rounds the weight to the nearest integer objective unit. Scale
// the weight by MulInt first (e.g. by 100 for two decimal places of
// precision) so fractional weights still separate in the integer
// objective instead of collapsing to 0 or 1.
func (w Weight) IntPart() int {
	return int(w.value.Round(0).IntPart())
}
