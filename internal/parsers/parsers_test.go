package parsers

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"ledger-audit-service/internal/models"
	"ledger-audit-service/internal/reconciler"
	apperrors "ledger-audit-service/pkg/errors"
)

func createTempCSVFile(t *testing.T, content string) string {
	t.Helper()

	tmpFile, err := os.CreateTemp(t.TempDir(), "test_*.csv")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		tmpFile.Close()
		t.Fatalf("Failed to write temp file: %v", err)
	}
	tmpFile.Close()

	return tmpFile.Name()
}

func TestRowError(t *testing.T) {
	err := &RowError{
		Line:    5,
		Field:   "Valor",
		Value:   "abc",
		Message: "invalid amount",
	}

	expected := `row error at line 5 (Valor="abc"): invalid amount`
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestBankStatementParser_ParseEntries(t *testing.T) {
	content := `Data,Valor,Identificador,Descrição
10/06/2025,"150,00",abc123,Transferência recebida pelo Pix - MARIA SILVA - 123.456.789-01
10/06/2025,"99,90",def456,Compra no débito - Padaria Central
11/06/2025,"80,50",ghi789,Transferência recebida pelo Pix - JOAO SOUZA - 987.654.321-09
`
	path := createTempCSVFile(t, content)

	parser := NewBankStatementParser(nil)
	entries, stats, err := parser.ParseEntries(path)
	if err != nil {
		t.Fatalf("ParseEntries() error = %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries after Pix filter, got %d", len(entries))
	}

	if stats.RecordsSkipped != 1 {
		t.Errorf("Expected 1 skipped record, got %d", stats.RecordsSkipped)
	}

	first := entries[0]
	if !first.Amount.Equal(decimal.RequireFromString("150.00")) {
		t.Errorf("Expected amount 150.00, got %s", first.Amount)
	}
	if first.Source != models.SourceBank {
		t.Errorf("Expected source %s, got %s", models.SourceBank, first.Source)
	}
	if first.GroupKey != "MARIA SILVA" {
		t.Errorf("Expected group key MARIA SILVA, got %q", first.GroupKey)
	}
	if first.Reference != "abc123" {
		t.Errorf("Expected reference abc123, got %q", first.Reference)
	}
	if first.DayKey() != "2025-06-10" {
		t.Errorf("Expected day 2025-06-10, got %s", first.DayKey())
	}
}

func TestBankStatementParser_BadRowIsErrorNotAbort(t *testing.T) {
	content := `Data,Valor,Identificador,Descrição
not-a-date,"150,00",abc123,Transferência recebida pelo Pix - MARIA SILVA -
10/06/2025,"80,50",def456,Transferência recebida pelo Pix - JOAO SOUZA -
`
	path := createTempCSVFile(t, content)

	parser := NewBankStatementParser(nil)
	entries, stats, err := parser.ParseEntries(path)
	if err != nil {
		t.Fatalf("ParseEntries() error = %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("Expected 1 valid entry, got %d", len(entries))
	}
	if stats.ErrorCount != 1 {
		t.Errorf("Expected 1 row error, got %d", stats.ErrorCount)
	}
	if !stats.HasErrors() {
		t.Error("Expected HasErrors() to be true")
	}
}

func TestBankStatementParser_MissingColumn(t *testing.T) {
	content := `Data,Identificador,Descrição
10/06/2025,abc123,Transferência recebida pelo Pix - MARIA SILVA -
`
	path := createTempCSVFile(t, content)

	parser := NewBankStatementParser(nil)
	_, _, err := parser.ParseEntries(path)
	if err == nil {
		t.Fatal("Expected error for missing Valor column")
	}

	auditErr, ok := apperrors.AsAuditError(err)
	if !ok {
		t.Fatalf("Expected AuditError, got %T", err)
	}
	if auditErr.Code != apperrors.CodeMissingColumn {
		t.Errorf("Expected code %s, got %s", apperrors.CodeMissingColumn, auditErr.Code)
	}
}

func TestBankStatementParser_FileNotFound(t *testing.T) {
	parser := NewBankStatementParser(nil)
	_, _, err := parser.ParseEntries("/nonexistent/statement.csv")
	if err == nil {
		t.Fatal("Expected error for missing file")
	}

	if !apperrors.IsCategory(err, apperrors.CategoryFile) {
		t.Errorf("Expected file category error, got %v", err)
	}
}

func TestBankStatementParser_EmptyFile(t *testing.T) {
	path := createTempCSVFile(t, "")

	parser := NewBankStatementParser(nil)
	_, _, err := parser.ParseEntries(path)
	if err == nil {
		t.Fatal("Expected error for empty file")
	}

	auditErr, ok := apperrors.AsAuditError(err)
	if !ok {
		t.Fatalf("Expected AuditError, got %T", err)
	}
	if auditErr.Code != apperrors.CodeEmptyInput {
		t.Errorf("Expected code %s, got %s", apperrors.CodeEmptyInput, auditErr.Code)
	}
}

func TestBankStatementParser_Cancellation(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("Data,Valor,Identificador,Descrição\n")
	for i := 0; i < 100; i++ {
		sb.WriteString(`10/06/2025,"150,00",id,Transferência recebida pelo Pix - MARIA -` + "\n")
	}
	path := createTempCSVFile(t, sb.String())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	parser := NewBankStatementParser(nil)
	_, _, err := parser.ParseEntriesWithContext(ctx, path)
	if err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestCardSettlementParser_ParseEntries(t *testing.T) {
	// The settlement export quotes date cells because they contain commas
	content := `Identificador,Data e hora,Valor (R$),Líquido (R$),Meio - Meio
tx001,"2 Jun, 2025 · 14:32","1.234,56","1.200,00",Crédito
tx002,"3 Jun, 2025 · 09:15","89,90","87,50",Débito
tx003,"3 Jun, 2025 · 10:00","50,00","50,00",Pix
`
	path := createTempCSVFile(t, content)

	parser := NewCardSettlementParser(nil)
	entries, stats, err := parser.ParseEntries(path)
	if err != nil {
		t.Fatalf("ParseEntries() error = %v", err)
	}

	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if stats.RecordsValid != 3 {
		t.Errorf("Expected 3 valid records, got %d", stats.RecordsValid)
	}

	first := entries[0]
	if !first.Amount.Equal(decimal.RequireFromString("1234.56")) {
		t.Errorf("Expected amount 1234.56, got %s", first.Amount)
	}
	if first.Source != models.SourceCard {
		t.Errorf("Expected source %s, got %s", models.SourceCard, first.Source)
	}
	if first.DayKey() != "2025-06-02" {
		t.Errorf("Expected day 2025-06-02, got %s", first.DayKey())
	}
}

func TestCardSettlementParser_MethodFilter(t *testing.T) {
	content := `Identificador,Data e hora,Valor (R$),Meio - Meio
tx001,"2 Jun, 2025 · 14:32","100,00",Crédito
tx002,"3 Jun, 2025 · 09:15","200,00",Pix
tx003,"3 Jun, 2025 · 10:00","300,00",Débito
`
	path := createTempCSVFile(t, content)

	config := DefaultCardConfig()
	config.MethodFilter = MethodCard

	parser := NewCardSettlementParser(config)
	entries, stats, err := parser.ParseEntries(path)
	if err != nil {
		t.Fatalf("ParseEntries() error = %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("Expected 2 card entries, got %d", len(entries))
	}
	if stats.RecordsSkipped != 1 {
		t.Errorf("Expected 1 skipped Pix record, got %d", stats.RecordsSkipped)
	}
}

func TestClassifyMethod(t *testing.T) {
	tests := []struct {
		label string
		want  PaymentMethod
	}{
		{"Crédito", MethodCard},
		{"Credito", MethodCard},
		{"Débito", MethodCard},
		{"debito", MethodCard},
		{"Pix", MethodPix},
		{"Boleto", MethodPix},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if got := ClassifyMethod(tt.label); got != tt.want {
				t.Errorf("ClassifyMethod(%q) = %v, want %v", tt.label, got, tt.want)
			}
		})
	}
}

func TestReceivablesParser_ParseEntries(t *testing.T) {
	content := `N° OS,CLIENTE,DATA PGTO,PIX,CARTÃO
1001,Maria Silva,10/06/2025,"150,00",
1002,Joao Souza,10/06/2025,,"80,50"
1003,Ana Costa,11/06/2025,"0,00","30,00"
1004,Pedro Lima,11/06/2025,"75,25",
`
	path := createTempCSVFile(t, content)

	parser := NewReceivablesParser(nil)
	entries, stats, err := parser.ParseEntries(path)
	if err != nil {
		t.Fatalf("ParseEntries() error = %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("Expected 2 Pix entries, got %d", len(entries))
	}
	if stats.RecordsSkipped != 2 {
		t.Errorf("Expected 2 skipped rows without Pix amounts, got %d", stats.RecordsSkipped)
	}

	first := entries[0]
	if first.Source != models.SourceReceivables {
		t.Errorf("Expected source %s, got %s", models.SourceReceivables, first.Source)
	}
	if first.GroupKey != "" {
		t.Errorf("Expected empty group key on receivables entries, got %q", first.GroupKey)
	}
	if first.Reference != "1001" {
		t.Errorf("Expected reference 1001, got %q", first.Reference)
	}
}

func TestReceivablesParser_SameDayOrdersAggregateAcrossClients(t *testing.T) {
	// One 300.00 deposit covers two same-day orders from different
	// clients. With no grouping key the orders partition by date alone,
	// so the pair aggregates against the single deposit.
	content := `N° OS,CLIENTE,DATA PGTO,PIX,CARTÃO
1001,Alice Prado,10/06/2025,"180,00",
1002,Bruno Dias,10/06/2025,"120,00",
`
	path := createTempCSVFile(t, content)

	entries, _, err := NewReceivablesParser(nil).ParseEntries(path)
	if err != nil {
		t.Fatalf("ParseEntries() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}

	deposit := models.NewLedgerEntry(entries[0].Date, decimal.RequireFromString("300.00"), models.SourceBank).
		WithGroupKey("OFICINA CLIENTE")

	result, err := reconciler.Reconcile([]models.LedgerEntry{deposit}, entries, nil)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	if result.Summary.Aggregated != 1 {
		t.Fatalf("Expected 1 aggregated record, got %d (records: %+v)", result.Summary.Aggregated, result.Records)
	}
	if result.Summary.UnmatchedLeft != 0 || result.Summary.UnmatchedRight != 0 {
		t.Errorf("Expected no unmatched entries, got %d left, %d right",
			result.Summary.UnmatchedLeft, result.Summary.UnmatchedRight)
	}
}

func TestReceivablesParser_CardColumn(t *testing.T) {
	content := `N° OS,CLIENTE,DATA PGTO,PIX,CARTÃO
1001,Maria Silva,10/06/2025,"150,00",
1002,Joao Souza,10/06/2025,,"80,50"
`
	path := createTempCSVFile(t, content)

	parser := NewReceivablesParser(CardReceivablesConfig())
	entries, _, err := parser.ParseEntries(path)
	if err != nil {
		t.Fatalf("ParseEntries() error = %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("Expected 1 card entry, got %d", len(entries))
	}
	if !entries[0].Amount.Equal(decimal.RequireFromString("80.50")) {
		t.Errorf("Expected amount 80.50, got %s", entries[0].Amount)
	}
}

func TestReceivablesParser_SkipsEmptyRows(t *testing.T) {
	content := `N° OS,CLIENTE,DATA PGTO,PIX
1001,Maria Silva,10/06/2025,"150,00"
,,,
1002,Joao Souza,11/06/2025,"60,00"
`
	path := createTempCSVFile(t, content)

	parser := NewReceivablesParser(nil)
	entries, _, err := parser.ParseEntries(path)
	if err != nil {
		t.Fatalf("ParseEntries() error = %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries with blank row skipped, got %d", len(entries))
	}
}

func TestParseStats_String(t *testing.T) {
	stats := NewParseStats()
	stats.TotalLines = 10
	stats.RecordsParsed = 9
	stats.RecordsValid = 7
	stats.RecordsSkipped = 1
	stats.AddError(&RowError{Line: 4, Field: "Valor", Message: "invalid amount"})

	got := stats.String()
	want := "parsed 10 lines, 9 records (7 valid, 1 skipped), 1 errors"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	samples := stats.SampleErrors(5)
	if len(samples) != 1 {
		t.Errorf("Expected 1 sample error, got %d", len(samples))
	}
}
