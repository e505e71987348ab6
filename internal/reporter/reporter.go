// Package reporter renders reconciliation and audit results for people
// and for machines.
//
// Supported output formats:
//   - Console: human-readable summary and finding lists
//   - JSON: the full result structure for programmatic consumption
//   - CSV: one row per record, for spreadsheet review
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"ledger-audit-service/internal/auditor"
	"ledger-audit-service/internal/models"
	"ledger-audit-service/internal/reconciler"
)

// OutputFormat selects how results are rendered
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds rendering options
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// IncludeMatched controls whether matched records appear in the
	// detailed listings. Summaries always count them.
	IncludeMatched bool `json:"include_matched"`

	// SortByAmount orders unmatched listings largest-first instead of
	// input order
	SortByAmount bool `json:"sort_by_amount"`

	// MaxUnmatchedListed caps the console unmatched listing; zero means
	// no cap
	MaxUnmatchedListed int `json:"max_unmatched_listed"`

	// Labels for the two sides, e.g. "bank" and "receivables"
	LeftLabel  string `json:"left_label"`
	RightLabel string `json:"right_label"`

	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns the options used by the CLI by default
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:             FormatConsole,
		IncludeMatched:     false,
		SortByAmount:       false,
		MaxUnmatchedListed: 50,
		LeftLabel:          "left",
		RightLabel:         "right",
		CSVDelimiter:       ',',
		CSVHeaders:         true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.MaxUnmatchedListed < 0 {
		return fmt.Errorf("max unmatched listed cannot be negative: %d", c.MaxUnmatchedListed)
	}
	return nil
}

// ReportGenerator renders results in the configured format
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a generator with the given configuration.
// A nil config uses DefaultReportConfig.
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{config: config}, nil
}

// GenerateReport renders a reconciliation result to the writer
func (rg *ReportGenerator) GenerateReport(result *reconciler.Result, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("reconciliation result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.consoleReport(result, writer)
	case FormatJSON:
		return rg.jsonReport(result, writer)
	case FormatCSV:
		return rg.csvReport(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

func (rg *ReportGenerator) consoleReport(result *reconciler.Result, writer io.Writer) error {
	summary := result.Summary

	fmt.Fprintf(writer, "RECONCILIATION REPORT\n")
	fmt.Fprintf(writer, "Generated: %s\n\n", time.Now().Format(time.RFC3339))

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	fmt.Fprintf(writer, "%s entries:  %d\n", titleCase(rg.config.LeftLabel), summary.LeftTotal)
	fmt.Fprintf(writer, "%s entries: %d\n\n", titleCase(rg.config.RightLabel), summary.RightTotal)

	matched := summary.Matched + summary.ExtendedTolerance + summary.Aggregated
	fmt.Fprintf(writer, "Matched records:        %d\n", matched)
	fmt.Fprintf(writer, "  Direct:               %d\n", summary.Matched)
	fmt.Fprintf(writer, "  Extended tolerance:   %d\n", summary.ExtendedTolerance)
	fmt.Fprintf(writer, "  Aggregated:           %d\n", summary.Aggregated)
	fmt.Fprintf(writer, "Unmatched %s:  %d\n", paddedLabel(rg.config.LeftLabel), summary.UnmatchedLeft)
	fmt.Fprintf(writer, "Unmatched %s:  %d\n\n", paddedLabel(rg.config.RightLabel), summary.UnmatchedRight)

	fmt.Fprintf(writer, "=== FINANCIAL SUMMARY ===\n")
	fmt.Fprintf(writer, "Matched amount:   %s\n", summary.MatchedAmount.StringFixed(2))
	fmt.Fprintf(writer, "Unmatched amount: %s\n\n", summary.UnmatchedAmount.StringFixed(2))

	if rg.config.IncludeMatched {
		fmt.Fprintf(writer, "=== MATCHED RECORDS ===\n")
		for _, record := range result.Records {
			if record.Status.IsMatched() {
				rg.printRecord(record, writer)
			}
		}
		fmt.Fprintf(writer, "\n")
	}

	unmatched := unmatchedRecords(result.Records)
	if len(unmatched) > 0 {
		if rg.config.SortByAmount {
			sort.SliceStable(unmatched, func(i, j int) bool {
				return unmatched[i].LeftTotal.Add(unmatched[i].RightTotal).
					GreaterThan(unmatched[j].LeftTotal.Add(unmatched[j].RightTotal))
			})
		}

		fmt.Fprintf(writer, "=== UNMATCHED RECORDS ===\n")
		fmt.Fprintf(writer, "Total: %d\n\n", len(unmatched))
		limit := rg.config.MaxUnmatchedListed
		for i, record := range unmatched {
			rg.printRecord(record, writer)
			if limit > 0 && i >= limit-1 && len(unmatched) > limit {
				fmt.Fprintf(writer, "  ... and %d more\n", len(unmatched)-limit)
				break
			}
		}
	}

	return nil
}

func (rg *ReportGenerator) printRecord(record reconciler.MatchRecord, writer io.Writer) {
	fmt.Fprintf(writer, "  [%s]", record.Status)
	if len(record.LeftEntries) > 0 {
		fmt.Fprintf(writer, " %s: %s", rg.config.LeftLabel, describeEntries(record.LeftEntries))
	}
	if len(record.RightEntries) > 0 {
		fmt.Fprintf(writer, " %s: %s", rg.config.RightLabel, describeEntries(record.RightEntries))
	}
	if record.DayGap > 0 {
		fmt.Fprintf(writer, " (day gap: %d)", record.DayGap)
	}
	if record.Note != "" {
		fmt.Fprintf(writer, ": %s", record.Note)
	}
	fmt.Fprintf(writer, "\n")
}

func describeEntries(entries []models.LedgerEntry) string {
	if len(entries) == 1 {
		e := entries[0]
		s := fmt.Sprintf("%s %s", e.Date.Format("2006-01-02"), e.Amount.StringFixed(2))
		if e.Reference != "" {
			s += fmt.Sprintf(" (ref %s)", e.Reference)
		}
		return s
	}

	total := models.SumAmounts(entries)
	return fmt.Sprintf("%d entries totalling %s", len(entries), total.StringFixed(2))
}

func (rg *ReportGenerator) jsonReport(result *reconciler.Result, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func (rg *ReportGenerator) csvReport(result *reconciler.Result, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter
	defer csvWriter.Flush()

	if rg.config.CSVHeaders {
		headers := []string{
			"Status",
			"Left_Date",
			"Left_Total",
			"Left_Entries",
			"Left_References",
			"Right_Date",
			"Right_Total",
			"Right_Entries",
			"Right_References",
			"Day_Gap",
			"Amount_Difference",
			"Note",
		}
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, record := range result.Records {
		if !rg.config.IncludeMatched && record.Status.IsMatched() {
			continue
		}

		row := []string{
			record.Status.String(),
			firstDate(record.LeftEntries),
			record.LeftTotal.StringFixed(2),
			fmt.Sprintf("%d", len(record.LeftEntries)),
			joinReferences(record.LeftEntries),
			firstDate(record.RightEntries),
			record.RightTotal.StringFixed(2),
			fmt.Sprintf("%d", len(record.RightEntries)),
			joinReferences(record.RightEntries),
			fmt.Sprintf("%d", record.DayGap),
			record.AmountDifference().StringFixed(2),
			record.Note,
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("failed to write record row: %w", err)
		}
	}

	return csvWriter.Error()
}

// GenerateAuditReport renders a field audit result to the writer
func (rg *ReportGenerator) GenerateAuditReport(summary *auditor.RunSummary, results []auditor.FieldResult, writer io.Writer) error {
	if summary == nil {
		return fmt.Errorf("audit summary cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.auditConsoleReport(summary, results, writer)
	case FormatJSON:
		encoder := json.NewEncoder(writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(map[string]interface{}{
			"summary": summary,
			"results": results,
		})
	case FormatCSV:
		return rg.auditCSVReport(results, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

func (rg *ReportGenerator) auditConsoleReport(summary *auditor.RunSummary, results []auditor.FieldResult, writer io.Writer) error {
	fmt.Fprintf(writer, "FIELD AUDIT REPORT\n")
	fmt.Fprintf(writer, "Generated: %s\n\n", summary.AuditTime.Format(time.RFC3339))

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	fmt.Fprintf(writer, "Records audited:    %d\n", summary.TotalRecords)
	fmt.Fprintf(writer, "Records matching:   %d (%.1f%%)\n",
		summary.MatchingRecords, percentage(summary.MatchingRecords, summary.TotalRecords))
	fmt.Fprintf(writer, "Records mismatched: %d\n", summary.MismatchedRecords)
	fmt.Fprintf(writer, "Fields checked:     %d\n", summary.TotalFields)
	fmt.Fprintf(writer, "Fields matching:    %d (%.1f%%)\n",
		summary.MatchingFields, percentage(summary.MatchingFields, summary.TotalFields))
	fmt.Fprintf(writer, "Tolerance:          %s%%\n\n",
		summary.Tolerance.Mul(decimal.NewFromInt(100)).StringFixed(2))

	var mismatches []auditor.FieldResult
	for _, r := range results {
		if !r.Match {
			mismatches = append(mismatches, r)
		}
	}

	if len(mismatches) > 0 {
		fmt.Fprintf(writer, "=== MISMATCHES ===\n")
		for _, r := range mismatches {
			fmt.Fprintf(writer, "  key=%s field=%s left=%q right=%q", r.Key, r.FieldName, r.LeftValue, r.RightValue)
			if r.Note != "" {
				fmt.Fprintf(writer, ": %s", r.Note)
			}
			fmt.Fprintf(writer, "\n")
		}
	}

	return nil
}

func (rg *ReportGenerator) auditCSVReport(results []auditor.FieldResult, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter
	defer csvWriter.Flush()

	if rg.config.CSVHeaders {
		headers := []string{"Key", "Field", "Left_Value", "Right_Value", "Match", "Difference", "Percent_Diff", "Note"}
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, r := range results {
		difference, percentDiff := "", ""
		if r.Difference != nil {
			difference = r.Difference.StringFixed(2)
		}
		if r.PercentDiff != nil {
			percentDiff = r.PercentDiff.StringFixed(2)
		}

		row := []string{
			r.Key,
			r.FieldName,
			r.LeftValue,
			r.RightValue,
			fmt.Sprintf("%t", r.Match),
			difference,
			percentDiff,
			r.Note,
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("failed to write result row: %w", err)
		}
	}

	return csvWriter.Error()
}

// Helper functions

func unmatchedRecords(records []reconciler.MatchRecord) []reconciler.MatchRecord {
	var out []reconciler.MatchRecord
	for _, record := range records {
		if !record.Status.IsMatched() {
			out = append(out, record)
		}
	}
	return out
}

func firstDate(entries []models.LedgerEntry) string {
	if len(entries) == 0 {
		return ""
	}
	return entries[0].Date.Format("2006-01-02")
}

func joinReferences(entries []models.LedgerEntry) string {
	var refs []string
	for _, e := range entries {
		if e.Reference != "" {
			refs = append(refs, e.Reference)
		}
	}
	return strings.Join(refs, ";")
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}

// titleCase upper-cases the first rune; labels may be non-ASCII
// (e.g. "cartão")
func titleCase(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func paddedLabel(s string) string {
	runes := []rune(s)
	if len(runes) >= 12 {
		return string(runes[:12])
	}
	return s + strings.Repeat(" ", 12-len(runes))
}
