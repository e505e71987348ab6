// Package matcher provides the primitives the reconciliation passes are
// built from: pure tolerance predicates for dates and amounts, explicit
// consumption tracking over a ledger, first-fit candidate search, and
// the grouping used by the aggregation fallback.
//
// Everything here is deterministic and side-effect free. The matcher
// never marks anything consumed; the orchestrator owns that decision and
// applies it through the UnconsumedSet it passes into each call.
package matcher

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ToleranceMode selects how two amounts are compared
type ToleranceMode string

const (
	// ToleranceAbsolute compares amounts against a fixed epsilon, used
	// for currency-rounding noise (typically one cent)
	ToleranceAbsolute ToleranceMode = "absolute"
	// TolerancePercent compares the difference relative to the larger
	// amount, used for settlement-fee shrinkage
	TolerancePercent ToleranceMode = "percent"
)

// IsValid checks if the tolerance mode is valid
func (m ToleranceMode) IsValid() bool {
	return m == ToleranceAbsolute || m == TolerancePercent
}

// AmountTolerance decides whether two decimal amounts refer to the same
// economic value. Value is an absolute epsilon in ToleranceAbsolute mode
// and a ratio of the larger amount (0.01 = 1%) in TolerancePercent mode.
type AmountTolerance struct {
	Mode  ToleranceMode   `json:"mode"`
	Value decimal.Decimal `json:"value"`
}

// AbsoluteTolerance returns an absolute-epsilon tolerance
func AbsoluteTolerance(epsilon decimal.Decimal) AmountTolerance {
	return AmountTolerance{Mode: ToleranceAbsolute, Value: epsilon}
}

// PercentTolerance returns a relative tolerance; ratio 0.01 means 1%
func PercentTolerance(ratio decimal.Decimal) AmountTolerance {
	return AmountTolerance{Mode: TolerancePercent, Value: ratio}
}

// OneCentTolerance is the default tolerance for ledgers that only differ
// by rounding
func OneCentTolerance() AmountTolerance {
	return AbsoluteTolerance(decimal.New(1, -2))
}

// Validate checks if the amount tolerance is valid
func (t AmountTolerance) Validate() error {
	if !t.Mode.IsValid() {
		return fmt.Errorf("invalid tolerance mode: %q", t.Mode)
	}

	if t.Value.IsNegative() {
		return fmt.Errorf("tolerance value cannot be negative: %s", t.Value.String())
	}

	if t.Mode == TolerancePercent && t.Value.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("percent tolerance must be a ratio between 0 and 1, got %s", t.Value.String())
	}

	return nil
}

// String returns a human-readable description of the tolerance
func (t AmountTolerance) String() string {
	if t.Mode == TolerancePercent {
		return fmt.Sprintf("%s%%", t.Value.Mul(decimal.NewFromInt(100)).String())
	}
	return fmt.Sprintf("±%s", t.Value.String())
}

// AmountsClose reports whether two amounts are the same economic value
// under the tolerance. Two zero amounts always match; exactly one zero
// amount never matches, which also guards the percent-mode division.
func (t AmountTolerance) AmountsClose(a, b decimal.Decimal) bool {
	if a.IsZero() && b.IsZero() {
		return true
	}
	if a.IsZero() || b.IsZero() {
		return false
	}

	diff := a.Sub(b).Abs()

	switch t.Mode {
	case TolerancePercent:
		larger := decimal.Max(a, b)
		return diff.Div(larger).LessThanOrEqual(t.Value)
	default:
		return diff.LessThanOrEqual(t.Value)
	}
}

// DatesClose reports whether two calendar dates fall within maxDays of
// each other. A zero time means the source date never parsed; that is
// evidence of no match, so it always returns false rather than erroring.
func DatesClose(d1, d2 time.Time, maxDays int) bool {
	if d1.IsZero() || d2.IsZero() {
		return false
	}

	return DayGap(d1, d2) <= maxDays
}

// DayGap returns the absolute difference between two dates in whole
// calendar days
func DayGap(d1, d2 time.Time) int {
	diff := d1.Sub(d2)
	if diff < 0 {
		diff = -diff
	}
	return int(diff.Hours() / 24)
}
