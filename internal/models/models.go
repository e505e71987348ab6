// Package models defines the common record shapes consumed by the
// reconciliation core: the LedgerEntry value object produced by the
// ingestion adapters, plus the parsing and normalization helpers those
// adapters share.
//
// A LedgerEntry is immutable after creation. Whether an entry has been
// consumed during a reconciliation run is tracked externally by the
// orchestrator, never on the entry itself, so the same entry slice can
// back repeated runs with different tolerances.
package models

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LedgerSource identifies which ledger an entry came from
type LedgerSource string

const (
	// SourceBank is the bank-reported incoming-payment ledger
	SourceBank LedgerSource = "BANK"
	// SourceCard is the card-acquirer settlement ledger
	SourceCard LedgerSource = "CARD"
	// SourceReceivables is the internally computed receivables ledger
	SourceReceivables LedgerSource = "RECEIVABLES"
)

// String returns the string representation of LedgerSource
func (s LedgerSource) String() string {
	return string(s)
}

// IsValid checks if the ledger source is valid
func (s LedgerSource) IsValid() bool {
	return s == SourceBank || s == SourceCard || s == SourceReceivables
}

// LedgerEntry represents one reported economic event from a single ledger.
//
// Date carries a calendar date only; ingestion adapters normalize away
// any time-of-day component before the core sees the entry. Amount is
// always non-negative in this domain. GroupKey is used only for
// aggregation grouping (payer name extracted from a free-text
// description, or empty when the ledger carries no usable key) and never
// for identity matching. Reference is an opaque identifier surfaced in
// output for traceability.
type LedgerEntry struct {
	Date      time.Time       `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
	Source    LedgerSource    `json:"source"`
	GroupKey  string          `json:"group_key,omitempty"`
	Reference string          `json:"reference,omitempty"`
}

// NewLedgerEntry creates a new LedgerEntry instance
func NewLedgerEntry(date time.Time, amount decimal.Decimal, source LedgerSource) LedgerEntry {
	return LedgerEntry{
		Date:   truncateToDay(date),
		Amount: amount,
		Source: source,
	}
}

// WithGroupKey returns a copy of the entry carrying the given grouping key
func (e LedgerEntry) WithGroupKey(key string) LedgerEntry {
	e.GroupKey = key
	return e
}

// WithReference returns a copy of the entry carrying the given reference
func (e LedgerEntry) WithReference(ref string) LedgerEntry {
	e.Reference = ref
	return e
}

// Validate performs basic validation on the LedgerEntry
func (e LedgerEntry) Validate() error {
	if e.Date.IsZero() {
		return fmt.Errorf("ledger entry date cannot be zero")
	}

	if e.Amount.IsNegative() {
		return fmt.Errorf("ledger entry amount cannot be negative: %s", e.Amount.String())
	}

	if !e.Source.IsValid() {
		return fmt.Errorf("invalid ledger source: %s", e.Source)
	}

	return nil
}

// String returns a string representation of the LedgerEntry
func (e LedgerEntry) String() string {
	return fmt.Sprintf("LedgerEntry{Source: %s, Date: %s, Amount: %s, Key: %q, Ref: %q}",
		e.Source, e.Date.Format("2006-01-02"), e.Amount.String(), e.GroupKey, e.Reference)
}

// Equals compares two LedgerEntry values for equality
func (e LedgerEntry) Equals(other LedgerEntry) bool {
	return e.Source == other.Source &&
		e.Date.Equal(other.Date) &&
		e.Amount.Equal(other.Amount) &&
		e.GroupKey == other.GroupKey &&
		e.Reference == other.Reference
}

// DayKey returns the entry date as a yyyy-mm-dd string, the canonical
// grouping form used by the aggregation passes
func (e LedgerEntry) DayKey() string {
	return e.Date.Format("2006-01-02")
}

// MarshalJSON implements custom JSON marshaling for LedgerEntry
func (e LedgerEntry) MarshalJSON() ([]byte, error) {
	type Alias LedgerEntry
	return json.Marshal(&struct {
		Date   string `json:"date"`
		Amount string `json:"amount"`
		Alias
	}{
		Date:   e.Date.Format("2006-01-02"),
		Amount: e.Amount.String(),
		Alias:  (Alias)(e),
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for LedgerEntry
func (e *LedgerEntry) UnmarshalJSON(data []byte) error {
	type Alias LedgerEntry
	aux := &struct {
		Date   string `json:"date"`
		Amount string `json:"amount"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	e.Amount, err = decimal.NewFromString(aux.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount format: %w", err)
	}

	e.Date = ParseDate(aux.Date)
	if e.Date.IsZero() {
		return fmt.Errorf("invalid date format: %q", aux.Date)
	}

	return nil
}

// SumAmounts returns the decimal sum of the given entries' amounts
func SumAmounts(entries []LedgerEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return total
}

// dateFormats are the calendar forms the source ledgers actually use,
// tried in order. Day-first formats come first because the bank and
// receivables exports are day-first.
var dateFormats = []string{
	"02/01/2006",
	"2006-01-02",
	"02-01-2006",
	"02/01/06",
}

// ParseDate converts a date string into a calendar date, trying each of
// the accepted formats in turn. It returns the zero time when no format
// matches; downstream a parse failure is evidence of no match, not an
// error.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}

	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return truncateToDay(t)
		}
	}

	return time.Time{}
}

// truncateToDay drops any time-of-day component, keeping UTC midnight
func truncateToDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseAmount parses a decimal currency value from string, normalizing
// currency symbols and Brazilian separators ("1.234,56") as well as the
// plain dotted form ("1234.56").
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	s = strings.ReplaceAll(s, "R$", "")
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "\"", "")
	s = strings.TrimSpace(s)

	// Comma-decimal form: dots are thousands separators.
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format %q: %w", s, err)
	}

	return d, nil
}

// payerPatterns extract the sender name from an incoming-transfer
// description. The first two match "Name - <tax id>" for personal and
// company tax numbers; the last matches the name directly after the
// transfer prefix.
var payerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`- ([^-]+) - \d{3}\.\d{3}\.\d{3}-\d{2}`),
	regexp.MustCompile(`- ([^-]+) - \d{2}\.\d{3}\.\d{3}/\d{4}-\d{2}`),
	regexp.MustCompile(`Transferência recebida pelo Pix - ([^-]+) -`),
}

// ExtractPayerName derives a normalized grouping key from a free-text
// transfer description. When no pattern matches it falls back to the
// first 50 characters of the description, so callers always get a
// stable, non-empty key for a non-empty description.
func ExtractPayerName(description string) string {
	for _, pattern := range payerPatterns {
		if m := pattern.FindStringSubmatch(description); m != nil {
			return NormalizeGroupKey(m[1])
		}
	}

	fallback := []rune(strings.TrimSpace(description))
	if len(fallback) > 50 {
		fallback = fallback[:50]
	}
	return NormalizeGroupKey(string(fallback))
}

// NormalizeGroupKey canonicalizes a grouping key: trimmed, single
// spaces, upper case
func NormalizeGroupKey(key string) string {
	return strings.ToUpper(strings.Join(strings.Fields(key), " "))
}
