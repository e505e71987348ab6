package matcher

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ledger-audit-service/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAmountTolerance_Validate(t *testing.T) {
	tests := []struct {
		name      string
		tolerance AmountTolerance
		wantError bool
	}{
		{"one cent absolute", OneCentTolerance(), false},
		{"one percent", PercentTolerance(dec("0.01")), false},
		{"zero absolute", AbsoluteTolerance(decimal.Zero), false},
		{"full percent boundary", PercentTolerance(dec("1")), false},
		{"negative absolute", AbsoluteTolerance(dec("-0.01")), true},
		{"percent above one", PercentTolerance(dec("1.5")), true},
		{"unknown mode", AmountTolerance{Mode: "banded", Value: dec("1")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tolerance.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestAmountsClose_Percent(t *testing.T) {
	onePercent := PercentTolerance(dec("0.01"))

	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"equal amounts", "100.00", "100.00", true},
		{"exactly on the boundary", "100.00", "101.00", true},
		{"just beyond the boundary", "100.00", "101.01", false},
		{"symmetric", "101.00", "100.00", true},
		{"both zero", "0", "0.00", true},
		{"one zero", "0", "50.00", false},
		{"zero vs tiny", "0", "0.01", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := onePercent.AmountsClose(dec(tt.a), dec(tt.b))
			if got != tt.want {
				t.Errorf("AmountsClose(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestAmountsClose_Absolute(t *testing.T) {
	oneCent := OneCentTolerance()

	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"equal", "10.00", "10.00", true},
		{"one cent apart", "10.00", "10.01", true},
		{"two cents apart", "10.00", "10.02", false},
		{"both zero", "0", "0", true},
		{"one zero within epsilon", "0", "0.01", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := oneCent.AmountsClose(dec(tt.a), dec(tt.b))
			if got != tt.want {
				t.Errorf("AmountsClose(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestDatesClose(t *testing.T) {
	base := day(2025, 6, 10)

	tests := []struct {
		name    string
		d1, d2  time.Time
		maxDays int
		want    bool
	}{
		{"same day", base, base, 0, true},
		{"two days apart within window", base, day(2025, 6, 12), 2, true},
		{"three days apart beyond window", base, day(2025, 6, 13), 2, false},
		{"order does not matter", day(2025, 6, 12), base, 2, true},
		{"zero first date", time.Time{}, base, 30, false},
		{"zero second date", base, time.Time{}, 30, false},
		{"both zero", time.Time{}, time.Time{}, 30, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DatesClose(tt.d1, tt.d2, tt.maxDays)
			if got != tt.want {
				t.Errorf("DatesClose() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDayGap(t *testing.T) {
	if got := DayGap(day(2025, 6, 10), day(2025, 6, 23)); got != 13 {
		t.Errorf("DayGap() = %d, want 13", got)
	}
	if got := DayGap(day(2025, 6, 23), day(2025, 6, 10)); got != 13 {
		t.Errorf("DayGap() reversed = %d, want 13", got)
	}
	if got := DayGap(day(2025, 6, 10), day(2025, 6, 10)); got != 0 {
		t.Errorf("DayGap() same day = %d, want 0", got)
	}
}

func makeEntries(amounts ...string) []models.LedgerEntry {
	entries := make([]models.LedgerEntry, 0, len(amounts))
	for _, a := range amounts {
		entries = append(entries, models.NewLedgerEntry(day(2025, 6, 10), dec(a), models.SourceBank))
	}
	return entries
}

func TestUnconsumedSet(t *testing.T) {
	set := NewUnconsumedSet(makeEntries("10.00", "20.00", "30.00"))

	if set.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", set.Len())
	}
	if set.RemainingCount() != 3 {
		t.Fatalf("RemainingCount() = %d, want 3", set.RemainingCount())
	}

	set.Consume(1)

	if !set.Consumed(1) {
		t.Error("index 1 should be consumed")
	}
	if set.Consumed(0) || set.Consumed(2) {
		t.Error("other indices should remain unconsumed")
	}
	if set.RemainingCount() != 2 {
		t.Errorf("RemainingCount() = %d, want 2", set.RemainingCount())
	}

	remaining := set.Remaining()
	if len(remaining) != 2 || remaining[0] != 0 || remaining[1] != 2 {
		t.Errorf("Remaining() = %v, want [0 2]", remaining)
	}

	// Consuming twice does not double-count
	set.Consume(1)
	if set.RemainingCount() != 2 {
		t.Errorf("RemainingCount() after repeat Consume = %d, want 2", set.RemainingCount())
	}

	entries := set.RemainingEntries()
	if len(entries) != 2 {
		t.Fatalf("RemainingEntries() len = %d, want 2", len(entries))
	}
	if !entries[0].Amount.Equal(dec("10.00")) || !entries[1].Amount.Equal(dec("30.00")) {
		t.Errorf("RemainingEntries() amounts wrong: %v", entries)
	}
}

func TestUnconsumedSet_CopiesInput(t *testing.T) {
	input := makeEntries("10.00", "20.00")
	set := NewUnconsumedSet(input)

	input[0] = models.NewLedgerEntry(day(2025, 1, 1), dec("999"), models.SourceCard)

	if !set.Entry(0).Amount.Equal(dec("10.00")) {
		t.Error("set should not observe later mutation of the input slice")
	}
}

func TestFirstFit(t *testing.T) {
	entries := []models.LedgerEntry{
		models.NewLedgerEntry(day(2025, 6, 8), dec("100.00"), models.SourceReceivables),
		models.NewLedgerEntry(day(2025, 6, 10), dec("100.50"), models.SourceReceivables),
		models.NewLedgerEntry(day(2025, 6, 10), dec("100.40"), models.SourceReceivables),
	}
	set := NewUnconsumedSet(entries)
	onePercent := PercentTolerance(dec("0.01"))

	// All three candidates qualify; the earliest input index wins
	index, found := FirstFit(day(2025, 6, 10), dec("100.00"), set, 2, onePercent)
	if !found {
		t.Fatal("expected a match")
	}
	if index != 0 {
		t.Errorf("FirstFit index = %d, want 0 (first in input order)", index)
	}

	set.Consume(index)

	// Second probe skips the consumed entry
	index, found = FirstFit(day(2025, 6, 10), dec("100.50"), set, 2, onePercent)
	if !found || index != 1 {
		t.Errorf("FirstFit after consume = (%d, %v), want (1, true)", index, found)
	}
}

func TestFirstFit_NoCandidate(t *testing.T) {
	entries := []models.LedgerEntry{
		models.NewLedgerEntry(day(2025, 6, 1), dec("100.00"), models.SourceReceivables),
	}
	set := NewUnconsumedSet(entries)
	onePercent := PercentTolerance(dec("0.01"))

	// Date too far
	if _, found := FirstFit(day(2025, 6, 10), dec("100.00"), set, 2, onePercent); found {
		t.Error("expected no match beyond the date window")
	}

	// Amount too far
	if _, found := FirstFit(day(2025, 6, 1), dec("150.00"), set, 2, onePercent); found {
		t.Error("expected no match beyond the amount tolerance")
	}
}

func TestFirstFitExact(t *testing.T) {
	entries := []models.LedgerEntry{
		models.NewLedgerEntry(day(2025, 6, 23), dec("100.01"), models.SourceReceivables),
		models.NewLedgerEntry(day(2025, 6, 23), dec("100.00"), models.SourceReceivables),
	}
	set := NewUnconsumedSet(entries)

	// Near-equal amounts do not qualify, only exact equality
	index, found := FirstFitExact(day(2025, 6, 10), dec("100.00"), set, 15)
	if !found {
		t.Fatal("expected an exact match at day gap 13")
	}
	if index != 1 {
		t.Errorf("FirstFitExact index = %d, want 1", index)
	}

	// Beyond the extended window
	if _, found := FirstFitExact(day(2025, 5, 1), dec("100.00"), set, 15); found {
		t.Error("expected no match beyond the extended window")
	}
}

func TestGroupRemaining(t *testing.T) {
	entries := []models.LedgerEntry{
		models.NewLedgerEntry(day(2025, 6, 10), dec("50.00"), models.SourceReceivables).WithGroupKey("A"),
		models.NewLedgerEntry(day(2025, 6, 10), dec("70.00"), models.SourceReceivables).WithGroupKey("A"),
		models.NewLedgerEntry(day(2025, 6, 10), dec("30.00"), models.SourceReceivables).WithGroupKey("B"),
		models.NewLedgerEntry(day(2025, 6, 11), dec("40.00"), models.SourceReceivables).WithGroupKey("A"),
	}
	set := NewUnconsumedSet(entries)

	groups := GroupRemaining(set)

	// Only the (A, 2025-06-10) pair has more than one member
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if got := groups[0].Indices; len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("group indices = %v, want [0 1]", got)
	}

	total := models.SumAmounts(groups[0].Entries(set))
	if !total.Equal(dec("120.00")) {
		t.Errorf("group total = %s, want 120.00", total)
	}
}

func TestGroupRemaining_DateOnlyWhenNoKey(t *testing.T) {
	entries := []models.LedgerEntry{
		models.NewLedgerEntry(day(2025, 6, 10), dec("50.00"), models.SourceBank),
		models.NewLedgerEntry(day(2025, 6, 10), dec("70.00"), models.SourceBank),
		models.NewLedgerEntry(day(2025, 6, 11), dec("30.00"), models.SourceBank),
	}
	set := NewUnconsumedSet(entries)

	groups := GroupRemaining(set)
	if len(groups) != 1 {
		t.Fatalf("expected 1 date-grouped group, got %d", len(groups))
	}
	if len(groups[0].Indices) != 2 {
		t.Errorf("group size = %d, want 2", len(groups[0].Indices))
	}
}

func TestGroupRemaining_SkipsConsumed(t *testing.T) {
	entries := []models.LedgerEntry{
		models.NewLedgerEntry(day(2025, 6, 10), dec("50.00"), models.SourceBank),
		models.NewLedgerEntry(day(2025, 6, 10), dec("70.00"), models.SourceBank),
	}
	set := NewUnconsumedSet(entries)
	set.Consume(0)

	if groups := GroupRemaining(set); len(groups) != 0 {
		t.Errorf("expected no groups once only one member remains, got %d", len(groups))
	}
}
