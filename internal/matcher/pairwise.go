package matcher

import (
	"time"

	"github.com/shopspring/decimal"
)

// FirstFit scans the candidate set's unconsumed entries in ledger order
// and returns the index of the first one whose date and amount both fall
// within tolerance of the probe. The boolean is false when no candidate
// qualifies.
//
// The tie-break is deliberately first-fit, not best-fit: when several
// unconsumed candidates satisfy tolerance the earliest in ledger order
// wins. Changing this policy changes reconciliation outcomes and needs
// product sign-off.
//
// FirstFit has no side effects; the caller decides whether to consume
// the returned candidate.
func FirstFit(probeDate time.Time, probeAmount decimal.Decimal, candidates *UnconsumedSet, maxDays int, tol AmountTolerance) (int, bool) {
	for _, i := range candidates.Remaining() {
		candidate := candidates.Entry(i)

		if !DatesClose(probeDate, candidate.Date, maxDays) {
			continue
		}
		if !tol.AmountsClose(probeAmount, candidate.Amount) {
			continue
		}

		return i, true
	}

	return 0, false
}

// FirstFitExact is the extended-window variant: the date window is
// widened but the amounts must be exactly equal. Loosening both
// dimensions at once invites false positives, so the wider window only
// captures clerical posting delays where the money agrees to the cent.
func FirstFitExact(probeDate time.Time, probeAmount decimal.Decimal, candidates *UnconsumedSet, maxDays int) (int, bool) {
	for _, i := range candidates.Remaining() {
		candidate := candidates.Entry(i)

		if !DatesClose(probeDate, candidate.Date, maxDays) {
			continue
		}
		if !probeAmount.Equal(candidate.Amount) {
			continue
		}

		return i, true
	}

	return 0, false
}
