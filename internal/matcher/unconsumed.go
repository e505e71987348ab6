package matcher

import (
	"ledger-audit-service/internal/models"
)

// UnconsumedSet tracks which entries of one ledger are still available
// to a matching pass. Consumption lives here, not on the entries, so a
// ledger slice can back any number of independent runs.
//
// Entries keep their original ledger order; Remaining iterates in that
// order, which is what makes first-fit matching deterministic.
type UnconsumedSet struct {
	entries  []models.LedgerEntry
	consumed []bool
	left     int
}

// NewUnconsumedSet creates a set over the given ledger with every entry
// unconsumed. The slice is copied; the caller's ledger is never mutated.
func NewUnconsumedSet(entries []models.LedgerEntry) *UnconsumedSet {
	copied := make([]models.LedgerEntry, len(entries))
	copy(copied, entries)

	return &UnconsumedSet{
		entries:  copied,
		consumed: make([]bool, len(copied)),
		left:     len(copied),
	}
}

// Len returns the total number of entries in the underlying ledger
func (s *UnconsumedSet) Len() int {
	return len(s.entries)
}

// RemainingCount returns how many entries are still unconsumed
func (s *UnconsumedSet) RemainingCount() int {
	return s.left
}

// Entry returns the entry at the given ledger index
func (s *UnconsumedSet) Entry(i int) models.LedgerEntry {
	return s.entries[i]
}

// Consumed reports whether the entry at the given index has been used
func (s *UnconsumedSet) Consumed(i int) bool {
	return s.consumed[i]
}

// Consume marks the entry at the given index as used. Consuming an
// already-consumed entry is a no-op.
func (s *UnconsumedSet) Consume(i int) {
	if !s.consumed[i] {
		s.consumed[i] = true
		s.left--
	}
}

// Remaining returns the indices of all unconsumed entries in ledger order
func (s *UnconsumedSet) Remaining() []int {
	indices := make([]int, 0, s.left)
	for i := range s.entries {
		if !s.consumed[i] {
			indices = append(indices, i)
		}
	}
	return indices
}

// RemainingEntries returns the unconsumed entries in ledger order
func (s *UnconsumedSet) RemainingEntries() []models.LedgerEntry {
	entries := make([]models.LedgerEntry, 0, s.left)
	for i := range s.entries {
		if !s.consumed[i] {
			entries = append(entries, s.entries[i])
		}
	}
	return entries
}
