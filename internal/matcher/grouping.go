package matcher

import (
	"fmt"

	"ledger-audit-service/internal/models"
)

// EntryGroup is a set of unconsumed entries from one side that share a
// grouping key and date and are candidates for aggregated matching
// against a single opposite-side entry.
type EntryGroup struct {
	// Key is the partition key: "groupKey|date", or the date alone when
	// the entries carry no grouping key.
	Key string
	// Indices are the member positions in the originating UnconsumedSet,
	// in ledger order.
	Indices []int
}

// Entries resolves the group members against the set they came from
func (g EntryGroup) Entries(set *UnconsumedSet) []models.LedgerEntry {
	entries := make([]models.LedgerEntry, 0, len(g.Indices))
	for _, i := range g.Indices {
		entries = append(entries, set.Entry(i))
	}
	return entries
}

// GroupRemaining partitions the set's unconsumed entries by
// (grouping key, date), falling back to the date alone for entries with
// no grouping key (the receivables side). Groups are returned in
// first-appearance order so aggregation passes are deterministic.
//
// Only groups with at least two members are returned: singletons were
// already probed by the pairwise passes, and re-offering them here would
// only duplicate work.
func GroupRemaining(set *UnconsumedSet) []EntryGroup {
	byKey := make(map[string]*EntryGroup)
	var order []string

	for _, i := range set.Remaining() {
		entry := set.Entry(i)

		key := entry.DayKey()
		if entry.GroupKey != "" {
			key = fmt.Sprintf("%s|%s", entry.GroupKey, entry.DayKey())
		}

		group, ok := byKey[key]
		if !ok {
			group = &EntryGroup{Key: key}
			byKey[key] = group
			order = append(order, key)
		}
		group.Indices = append(group.Indices, i)
	}

	groups := make([]EntryGroup, 0, len(order))
	for _, key := range order {
		if group := byKey[key]; len(group.Indices) > 1 {
			groups = append(groups, *group)
		}
	}
	return groups
}
