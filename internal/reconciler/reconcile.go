package reconciler

import (
	"fmt"

	"ledger-audit-service/internal/matcher"
	"ledger-audit-service/internal/models"
	apperrors "ledger-audit-service/pkg/errors"
	"ledger-audit-service/pkg/logger"
)

// Orchestrator runs the fixed pass sequence over two ledgers. It holds
// no state between runs; the consumption sets live inside each
// Reconcile call, so independent runs may execute concurrently as long
// as each owns its own ledger slices.
type Orchestrator struct {
	config *Config
	logger logger.Logger
}

// NewOrchestrator creates an orchestrator for the given tolerances.
// An invalid configuration is rejected here, before any pass can run.
func NewOrchestrator(config *Config, log logger.Logger) (*Orchestrator, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigError("reconciliation tolerances", err)
	}

	if log == nil {
		log = logger.GetGlobalLogger()
	}

	return &Orchestrator{
		config: config.Clone(),
		logger: log.WithComponent("reconciler"),
	}, nil
}

// Config returns a copy of the orchestrator's configuration
func (o *Orchestrator) Config() *Config {
	return o.config.Clone()
}

// Reconcile classifies every entry of both ledgers into exactly one
// MatchRecord. Passes run in a fixed order (direct, extended-tolerance
// exact amount, left aggregation, right aggregation, residual) and each
// pass only sees what the previous one left unconsumed. Within a pass,
// probes follow ledger order and matching is first-fit, so identical
// inputs always produce identical output.
func (o *Orchestrator) Reconcile(left, right []models.LedgerEntry) (*Result, error) {
	leftSet := matcher.NewUnconsumedSet(left)
	rightSet := matcher.NewUnconsumedSet(right)

	tracker := logger.StartRun(o.logger, len(left), len(right))

	var records []MatchRecord

	records = o.directPass(leftSet, rightSet, records)
	tracker.Pass("direct", leftSet.RemainingCount(), rightSet.RemainingCount())

	records = o.extendedPass(leftSet, rightSet, records)
	tracker.Pass("extended_tolerance", leftSet.RemainingCount(), rightSet.RemainingCount())

	records = o.aggregationPass(leftSet, rightSet, false, records)
	tracker.Pass("left_aggregation", leftSet.RemainingCount(), rightSet.RemainingCount())

	records = o.aggregationPass(rightSet, leftSet, true, records)
	tracker.Pass("right_aggregation", leftSet.RemainingCount(), rightSet.RemainingCount())

	records = o.residualPass(leftSet, rightSet, records)

	summary := summarize(records, len(left), len(right))
	tracker.Complete(len(records), summary.UnmatchedLeft+summary.UnmatchedRight)

	return &Result{Records: records, Summary: summary}, nil
}

// directPass pairs each unmatched left entry with the first unconsumed
// right entry inside the default date window and amount tolerance
func (o *Orchestrator) directPass(leftSet, rightSet *matcher.UnconsumedSet, records []MatchRecord) []MatchRecord {
	for i := 0; i < leftSet.Len(); i++ {
		if leftSet.Consumed(i) {
			continue
		}
		probe := leftSet.Entry(i)

		j, ok := matcher.FirstFit(probe.Date, probe.Amount, rightSet, o.config.DateToleranceDays, o.config.AmountTolerance)
		if !ok {
			continue
		}

		candidate := rightSet.Entry(j)
		leftSet.Consume(i)
		rightSet.Consume(j)

		gap := matcher.DayGap(probe.Date, candidate.Date)
		records = append(records, MatchRecord{
			Status:       StatusMatched,
			LeftEntries:  []models.LedgerEntry{probe},
			RightEntries: []models.LedgerEntry{candidate},
			LeftTotal:    probe.Amount,
			RightTotal:   candidate.Amount,
			DayGap:       gap,
			Note: fmt.Sprintf("direct match within %d-day window, amount difference %s",
				o.config.DateToleranceDays, probe.Amount.Sub(candidate.Amount).Abs().String()),
		})
	}
	return records
}

// extendedPass retries unmatched left entries with the wider date window
// but insists on exact amount equality
func (o *Orchestrator) extendedPass(leftSet, rightSet *matcher.UnconsumedSet, records []MatchRecord) []MatchRecord {
	for i := 0; i < leftSet.Len(); i++ {
		if leftSet.Consumed(i) {
			continue
		}
		probe := leftSet.Entry(i)

		j, ok := matcher.FirstFitExact(probe.Date, probe.Amount, rightSet, o.config.ExtendedDateToleranceDays)
		if !ok {
			continue
		}

		candidate := rightSet.Entry(j)
		leftSet.Consume(i)
		rightSet.Consume(j)

		gap := matcher.DayGap(probe.Date, candidate.Date)
		records = append(records, MatchRecord{
			Status:       StatusMatchedExtendedTolerance,
			LeftEntries:  []models.LedgerEntry{probe},
			RightEntries: []models.LedgerEntry{candidate},
			LeftTotal:    probe.Amount,
			RightTotal:   candidate.Amount,
			DayGap:       gap,
			Note: fmt.Sprintf("exact amount %s matched %d days apart (extended %d-day window)",
				probe.Amount.String(), gap, o.config.ExtendedDateToleranceDays),
		})
	}
	return records
}

// aggregationPass groups the remaining entries of the grouping side by
// (grouping key, date) and retries the tolerance match using each
// group's summed amount against the opposite side's remaining singles.
// Groups that still find no counterpart stay unconsumed for the residual
// pass. When swapped is true the grouping side is the right ledger.
func (o *Orchestrator) aggregationPass(groupSet, singleSet *matcher.UnconsumedSet, swapped bool, records []MatchRecord) []MatchRecord {
	for _, group := range matcher.GroupRemaining(groupSet) {
		members := group.Entries(groupSet)
		sum := models.SumAmounts(members)
		date := members[0].Date

		j, ok := matcher.FirstFit(date, sum, singleSet, o.config.DateToleranceDays, o.config.AmountTolerance)
		if !ok {
			continue
		}

		single := singleSet.Entry(j)
		singleSet.Consume(j)
		for _, i := range group.Indices {
			groupSet.Consume(i)
		}

		gap := matcher.DayGap(date, single.Date)
		note := fmt.Sprintf("%d entries summing to %s matched single entry of %s",
			len(members), sum.String(), single.Amount.String())

		record := MatchRecord{
			Status:       StatusMatchedAggregated,
			LeftEntries:  []models.LedgerEntry{single},
			RightEntries: members,
			LeftTotal:    single.Amount,
			RightTotal:   sum,
			DayGap:       gap,
			Note:         note,
		}
		if !swapped {
			record.LeftEntries, record.RightEntries = members, []models.LedgerEntry{single}
			record.LeftTotal, record.RightTotal = sum, single.Amount
		}

		records = append(records, record)
	}
	return records
}

// residualPass turns every entry still unconsumed on either side into
// its own UNMATCHED record, so nothing is ever silently dropped
func (o *Orchestrator) residualPass(leftSet, rightSet *matcher.UnconsumedSet, records []MatchRecord) []MatchRecord {
	for _, i := range leftSet.Remaining() {
		entry := leftSet.Entry(i)
		leftSet.Consume(i)
		records = append(records, MatchRecord{
			Status:      StatusUnmatched,
			LeftEntries: []models.LedgerEntry{entry},
			LeftTotal:   entry.Amount,
			Note:        fmt.Sprintf("no %s entry corresponds to this %s entry", sideName(rightSet), entry.Source),
		})
	}

	for _, j := range rightSet.Remaining() {
		entry := rightSet.Entry(j)
		rightSet.Consume(j)
		records = append(records, MatchRecord{
			Status:       StatusUnmatched,
			RightEntries: []models.LedgerEntry{entry},
			RightTotal:   entry.Amount,
			Note:         fmt.Sprintf("no %s entry corresponds to this %s entry", sideName(leftSet), entry.Source),
		})
	}

	return records
}

// sideName names a ledger side by its entries' source, for residual notes
func sideName(set *matcher.UnconsumedSet) string {
	if set.Len() == 0 {
		return "opposite-ledger"
	}
	return set.Entry(0).Source.String()
}

// Reconcile is a convenience wrapper that builds a one-shot orchestrator
// around the given configuration
func Reconcile(left, right []models.LedgerEntry, config *Config) (*Result, error) {
	orch, err := NewOrchestrator(config, nil)
	if err != nil {
		return nil, err
	}
	return orch.Reconcile(left, right)
}
