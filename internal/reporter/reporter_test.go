package reporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ledger-audit-service/internal/auditor"
	"ledger-audit-service/internal/models"
	"ledger-audit-service/internal/reconciler"
)

func sampleResult() *reconciler.Result {
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	matchedLeft := models.NewLedgerEntry(day, decimal.RequireFromString("150.00"), models.SourceBank).
		WithReference("abc123")
	matchedRight := models.NewLedgerEntry(day, decimal.RequireFromString("150.00"), models.SourceReceivables).
		WithReference("1001")
	unmatchedLeft := models.NewLedgerEntry(day, decimal.RequireFromString("75.25"), models.SourceBank).
		WithReference("def456")

	records := []reconciler.MatchRecord{
		{
			Status:       reconciler.StatusMatched,
			LeftEntries:  []models.LedgerEntry{matchedLeft},
			RightEntries: []models.LedgerEntry{matchedRight},
			LeftTotal:    matchedLeft.Amount,
			RightTotal:   matchedRight.Amount,
		},
		{
			Status:      reconciler.StatusUnmatched,
			LeftEntries: []models.LedgerEntry{unmatchedLeft},
			LeftTotal:   unmatchedLeft.Amount,
			Note:        "no counterpart found",
		},
	}

	return &reconciler.Result{
		Records: records,
		Summary: reconciler.RunSummary{
			LeftTotal:       2,
			RightTotal:      1,
			Matched:         1,
			UnmatchedLeft:   1,
			MatchedAmount:   decimal.RequireFromString("150.00"),
			UnmatchedAmount: decimal.RequireFromString("75.25"),
		},
	}
}

func TestNewReportGenerator(t *testing.T) {
	tests := []struct {
		name        string
		config      *ReportConfig
		expectError bool
	}{
		{
			name:        "default config",
			config:      nil,
			expectError: false,
		},
		{
			name:        "valid config",
			config:      DefaultReportConfig(),
			expectError: false,
		},
		{
			name: "invalid format",
			config: &ReportConfig{
				Format: "invalid",
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generator, err := NewReportGenerator(tt.config)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if generator == nil {
					t.Errorf("expected generator but got nil")
				}
			}
		})
	}
}

func TestOutputFormatValidation(t *testing.T) {
	tests := []struct {
		format OutputFormat
		valid  bool
	}{
		{FormatConsole, true},
		{FormatJSON, true},
		{FormatCSV, true},
		{"invalid", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			if got := tt.format.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestGenerateReport_NilResult(t *testing.T) {
	generator, _ := NewReportGenerator(nil)

	var buf bytes.Buffer
	if err := generator.GenerateReport(nil, &buf); err == nil {
		t.Error("expected error for nil result")
	}
}

func TestConsoleReport(t *testing.T) {
	config := DefaultReportConfig()
	config.LeftLabel = "bank"
	config.RightLabel = "receivables"

	generator, err := NewReportGenerator(config)
	if err != nil {
		t.Fatalf("NewReportGenerator() error = %v", err)
	}

	var buf bytes.Buffer
	if err := generator.GenerateReport(sampleResult(), &buf); err != nil {
		t.Fatalf("GenerateReport() error = %v", err)
	}

	output := buf.String()

	for _, want := range []string{
		"RECONCILIATION REPORT",
		"=== SUMMARY ===",
		"Bank entries:  2",
		"Matched records:        1",
		"=== UNMATCHED RECORDS ===",
		"no counterpart found",
		"75.25",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("console output missing %q\n%s", want, output)
		}
	}

	// Matched detail listing is off by default
	if strings.Contains(output, "=== MATCHED RECORDS ===") {
		t.Error("console output should not list matched records by default")
	}
}

func TestConsoleReport_AccentedLabels(t *testing.T) {
	config := DefaultReportConfig()
	config.LeftLabel = "cartão"
	config.RightLabel = "contas a receber"

	generator, err := NewReportGenerator(config)
	if err != nil {
		t.Fatalf("NewReportGenerator() error = %v", err)
	}

	var buf bytes.Buffer
	if err := generator.GenerateReport(sampleResult(), &buf); err != nil {
		t.Fatalf("GenerateReport() error = %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "Cartão entries:") {
		t.Errorf("accented label not capitalized intact:\n%s", output)
	}
	if strings.Contains(output, "�") {
		t.Errorf("output contains a replacement character:\n%s", output)
	}
}

func TestConsoleReport_UnmatchedListingCap(t *testing.T) {
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	var records []reconciler.MatchRecord
	for _, ref := range []string{"r1", "r2", "r3"} {
		entry := models.NewLedgerEntry(day, decimal.RequireFromString("10.00"), models.SourceBank).
			WithReference(ref)
		records = append(records, reconciler.MatchRecord{
			Status:      reconciler.StatusUnmatched,
			LeftEntries: []models.LedgerEntry{entry},
			LeftTotal:   entry.Amount,
		})
	}
	result := &reconciler.Result{
		Records: records,
		Summary: reconciler.RunSummary{LeftTotal: 3, UnmatchedLeft: 3},
	}

	config := DefaultReportConfig()
	config.MaxUnmatchedListed = 2

	generator, err := NewReportGenerator(config)
	if err != nil {
		t.Fatalf("NewReportGenerator() error = %v", err)
	}

	var buf bytes.Buffer
	if err := generator.GenerateReport(result, &buf); err != nil {
		t.Fatalf("GenerateReport() error = %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "ref r2") {
		t.Errorf("second record missing from capped listing:\n%s", output)
	}
	if strings.Contains(output, "ref r3") {
		t.Errorf("third record should be cut by the cap:\n%s", output)
	}
	if !strings.Contains(output, "... and 1 more") {
		t.Errorf("truncation marker missing:\n%s", output)
	}
}

func TestReportConfig_RejectsNegativeListingCap(t *testing.T) {
	config := DefaultReportConfig()
	config.MaxUnmatchedListed = -1

	if _, err := NewReportGenerator(config); err == nil {
		t.Error("expected error for negative listing cap")
	}
}

func TestJSONReport(t *testing.T) {
	config := DefaultReportConfig()
	config.Format = FormatJSON

	generator, err := NewReportGenerator(config)
	if err != nil {
		t.Fatalf("NewReportGenerator() error = %v", err)
	}

	var buf bytes.Buffer
	if err := generator.GenerateReport(sampleResult(), &buf); err != nil {
		t.Fatalf("GenerateReport() error = %v", err)
	}

	var decoded reconciler.Result
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("JSON output does not decode: %v", err)
	}

	if len(decoded.Records) != 2 {
		t.Errorf("expected 2 records in JSON, got %d", len(decoded.Records))
	}
	if decoded.Summary.Matched != 1 {
		t.Errorf("expected 1 matched in JSON summary, got %d", decoded.Summary.Matched)
	}
}

func TestCSVReport(t *testing.T) {
	config := DefaultReportConfig()
	config.Format = FormatCSV

	generator, err := NewReportGenerator(config)
	if err != nil {
		t.Fatalf("NewReportGenerator() error = %v", err)
	}

	var buf bytes.Buffer
	if err := generator.GenerateReport(sampleResult(), &buf); err != nil {
		t.Fatalf("GenerateReport() error = %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("CSV output does not parse: %v", err)
	}

	// Header plus the single unmatched record
	if len(rows) != 2 {
		t.Fatalf("expected 2 CSV rows, got %d", len(rows))
	}
	if rows[0][0] != "Status" {
		t.Errorf("expected Status header, got %q", rows[0][0])
	}
	if rows[1][0] != string(reconciler.StatusUnmatched) {
		t.Errorf("expected unmatched row, got %q", rows[1][0])
	}
}

func TestCSVReport_IncludeMatched(t *testing.T) {
	config := DefaultReportConfig()
	config.Format = FormatCSV
	config.IncludeMatched = true

	generator, _ := NewReportGenerator(config)

	var buf bytes.Buffer
	if err := generator.GenerateReport(sampleResult(), &buf); err != nil {
		t.Fatalf("GenerateReport() error = %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("CSV output does not parse: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 records, got %d rows", len(rows))
	}
}

func sampleAudit() (*auditor.RunSummary, []auditor.FieldResult) {
	diff := decimal.RequireFromString("5.00")
	pct := decimal.RequireFromString("5.00")

	summary := &auditor.RunSummary{
		TotalRecords:      2,
		MatchingRecords:   1,
		MismatchedRecords: 1,
		TotalFields:       2,
		MatchingFields:    1,
		MismatchedFields:  1,
		Tolerance:         decimal.RequireFromString("0.01"),
		AuditTime:         time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}

	results := []auditor.FieldResult{
		{Key: "1001", FieldName: "amount", LeftValue: "100.00", RightValue: "100.00", Match: true},
		{
			Key: "1002", FieldName: "amount", LeftValue: "100.00", RightValue: "105.00",
			Match: false, Difference: &diff, PercentDiff: &pct,
			Note: "difference 5.00 (5.00%) exceeds tolerance of 1.00%",
		},
	}

	return summary, results
}

func TestAuditConsoleReport(t *testing.T) {
	generator, _ := NewReportGenerator(nil)

	summary, results := sampleAudit()

	var buf bytes.Buffer
	if err := generator.GenerateAuditReport(summary, results, &buf); err != nil {
		t.Fatalf("GenerateAuditReport() error = %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"FIELD AUDIT REPORT",
		"Records audited:    2",
		"Tolerance:          1.00%",
		"=== MISMATCHES ===",
		"key=1002",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("audit output missing %q\n%s", want, output)
		}
	}

	if strings.Contains(output, "key=1001") {
		t.Error("matching fields should not appear in the mismatch list")
	}
}

func TestAuditCSVReport(t *testing.T) {
	config := DefaultReportConfig()
	config.Format = FormatCSV

	generator, _ := NewReportGenerator(config)

	summary, results := sampleAudit()

	var buf bytes.Buffer
	if err := generator.GenerateAuditReport(summary, results, &buf); err != nil {
		t.Fatalf("GenerateAuditReport() error = %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("CSV output does not parse: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 results, got %d rows", len(rows))
	}
	if rows[2][4] != "false" {
		t.Errorf("expected mismatch row Match=false, got %q", rows[2][4])
	}
}

func TestAuditReport_NilSummary(t *testing.T) {
	generator, _ := NewReportGenerator(nil)

	var buf bytes.Buffer
	if err := generator.GenerateAuditReport(nil, nil, &buf); err == nil {
		t.Error("expected error for nil summary")
	}
}
