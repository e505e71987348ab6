package reconciler

import (
	"github.com/shopspring/decimal"

	"ledger-audit-service/internal/models"
)

// MatchStatus classifies how (or whether) a group of entries was
// explained by the opposite ledger
type MatchStatus string

const (
	// StatusMatched means the direct pass found a one-to-one
	// correspondence within the default tolerances
	StatusMatched MatchStatus = "MATCHED"
	// StatusMatchedExtendedTolerance means the amounts agree exactly but
	// the dates only meet the extended window
	StatusMatchedExtendedTolerance MatchStatus = "MATCHED_EXTENDED_TOLERANCE"
	// StatusMatchedAggregated means several entries on one side sum to
	// one entry on the other
	StatusMatchedAggregated MatchStatus = "MATCHED_AGGREGATED"
	// StatusUnmatched means no pass found a correspondence; the entry is
	// a residual finding, not an error
	StatusUnmatched MatchStatus = "UNMATCHED"
)

// String returns the string representation of MatchStatus
func (s MatchStatus) String() string {
	return string(s)
}

// IsMatched reports whether the status represents any kind of successful
// correspondence
func (s MatchStatus) IsMatched() bool {
	return s == StatusMatched || s == StatusMatchedExtendedTolerance || s == StatusMatchedAggregated
}

// MatchRecord is the classification of one economic event (or group of
// events) produced by a reconciliation run.
//
// Every input entry appears in exactly one record's LeftEntries or
// RightEntries across a run: nothing is used twice and nothing is
// silently dropped. For unmatched records the side that produced no
// corresponding data is empty.
type MatchRecord struct {
	Status       MatchStatus          `json:"status"`
	LeftEntries  []models.LedgerEntry `json:"left_entries,omitempty"`
	RightEntries []models.LedgerEntry `json:"right_entries,omitempty"`
	LeftTotal    decimal.Decimal      `json:"left_total"`
	RightTotal   decimal.Decimal      `json:"right_total"`
	DayGap       int                  `json:"day_gap"`
	Note         string               `json:"note,omitempty"`
}

// AmountDifference returns the absolute difference between the two
// sides' compared totals
func (r MatchRecord) AmountDifference() decimal.Decimal {
	return r.LeftTotal.Sub(r.RightTotal).Abs()
}

// RunSummary aggregates one run's classification counts and totals for
// report rendering. It is assembled once at the end of a run and never
// mutated afterwards.
type RunSummary struct {
	LeftTotal  int `json:"left_total"`
	RightTotal int `json:"right_total"`

	Matched           int `json:"matched"`
	ExtendedTolerance int `json:"extended_tolerance"`
	Aggregated        int `json:"aggregated"`
	UnmatchedLeft     int `json:"unmatched_left"`
	UnmatchedRight    int `json:"unmatched_right"`

	MatchedAmount   decimal.Decimal `json:"matched_amount"`
	UnmatchedAmount decimal.Decimal `json:"unmatched_amount"`
}

// Result is the complete output of a reconciliation run
type Result struct {
	Records []MatchRecord `json:"records"`
	Summary RunSummary    `json:"summary"`
}

// summarize derives the run summary from the final record list
func summarize(records []MatchRecord, leftCount, rightCount int) RunSummary {
	summary := RunSummary{
		LeftTotal:       leftCount,
		RightTotal:      rightCount,
		MatchedAmount:   decimal.Zero,
		UnmatchedAmount: decimal.Zero,
	}

	for _, record := range records {
		switch record.Status {
		case StatusMatched:
			summary.Matched++
		case StatusMatchedExtendedTolerance:
			summary.ExtendedTolerance++
		case StatusMatchedAggregated:
			summary.Aggregated++
		case StatusUnmatched:
			if len(record.LeftEntries) > 0 {
				summary.UnmatchedLeft++
			} else {
				summary.UnmatchedRight++
			}
		}

		if record.Status.IsMatched() {
			summary.MatchedAmount = summary.MatchedAmount.Add(record.LeftTotal)
		} else {
			summary.UnmatchedAmount = summary.UnmatchedAmount.Add(record.LeftTotal).Add(record.RightTotal)
		}
	}

	return summary
}
