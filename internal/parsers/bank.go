package parsers

import (
	"context"
	"io"
	"strings"

	"ledger-audit-service/internal/models"
	"ledger-audit-service/pkg/logger"
)

// BankConfig describes one bank's statement layout. The defaults match
// the Nubank-style export the finance team works from.
type BankConfig struct {
	DateColumn        string
	AmountColumn      string
	DescriptionColumn string
	IdentifierColumn  string

	// DescriptionFilters keeps only rows whose description contains
	// every listed substring. Empty means keep everything.
	DescriptionFilters []string
}

// DefaultBankConfig keeps only incoming Pix transfers, which is what
// the receivables ledger records on its side
func DefaultBankConfig() *BankConfig {
	return &BankConfig{
		DateColumn:         "Data",
		AmountColumn:       "Valor",
		DescriptionColumn:  "Descrição",
		IdentifierColumn:   "Identificador",
		DescriptionFilters: []string{"Transferência recebida", "Pix"},
	}
}

// BankStatementParser reads bank statement CSVs into ledger entries
type BankStatementParser struct {
	*baseParser
	bankConfig *BankConfig
}

// NewBankStatementParser creates a parser for the given bank layout.
// A nil config uses DefaultBankConfig.
func NewBankStatementParser(bankConfig *BankConfig) *BankStatementParser {
	if bankConfig == nil {
		bankConfig = DefaultBankConfig()
	}
	return &BankStatementParser{
		baseParser: newBaseParser(DefaultParseConfig(), "bank_parser"),
		bankConfig: bankConfig,
	}
}

// ParseEntries parses a bank statement file into ledger entries
func (p *BankStatementParser) ParseEntries(path string) ([]models.LedgerEntry, *ParseStats, error) {
	return p.ParseEntriesWithContext(context.Background(), path)
}

// ParseEntriesWithContext parses with cancellation support. Rows that
// fail the description filter are counted as skipped, not as errors.
func (p *BankStatementParser) ParseEntriesWithContext(ctx context.Context, path string) ([]models.LedgerEntry, *ParseStats, error) {
	file, reader, err := p.openFile(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	pc := newParseContext(ctx)
	stats := NewParseStats()

	required := []string{
		p.bankConfig.DateColumn,
		p.bankConfig.AmountColumn,
		p.bankConfig.DescriptionColumn,
	}
	if err := p.readHeaders(reader, pc, path, required); err != nil {
		return nil, stats, err
	}

	var entries []models.LedgerEntry

	for {
		if pc.isCancelled() {
			return entries, stats, ctx.Err()
		}

		record, err := p.readRecord(reader, pc)
		if err != nil {
			if err == io.EOF {
				break
			}
			stats.AddError(&RowError{
				Line:    pc.LineNumber,
				Message: "failed to read record",
				Err:     err,
			})
			continue
		}

		stats.RecordsParsed++

		entry, rowErr, keep := p.entryFromRecord(record, pc)
		if rowErr != nil {
			p.logger.WithFields(logger.Fields{
				"line":  rowErr.Line,
				"field": rowErr.Field,
			}).Warn("Skipping unparseable bank statement row")
			stats.AddError(rowErr)
			continue
		}
		if !keep {
			stats.RecordsSkipped++
			continue
		}

		entries = append(entries, entry)
		stats.RecordsValid++
	}

	stats.TotalLines = pc.LineNumber

	p.logger.WithFields(logger.Fields{
		"file_path": path,
		"entries":   len(entries),
		"skipped":   stats.RecordsSkipped,
		"errors":    stats.ErrorCount,
	}).Info("Parsed bank statement")

	return entries, stats, nil
}

// entryFromRecord builds one ledger entry from a statement row. The
// third return value is false when the row is filtered out.
func (p *BankStatementParser) entryFromRecord(record []string, pc *parseContext) (models.LedgerEntry, *RowError, bool) {
	description, rowErr := p.fieldValue(record, pc, p.bankConfig.DescriptionColumn)
	if rowErr != nil {
		return models.LedgerEntry{}, rowErr, false
	}

	if !p.matchesFilters(description) {
		return models.LedgerEntry{}, nil, false
	}

	dateStr, rowErr := p.fieldValue(record, pc, p.bankConfig.DateColumn)
	if rowErr != nil {
		return models.LedgerEntry{}, rowErr, false
	}

	date := models.ParseDate(dateStr)
	if date.IsZero() {
		return models.LedgerEntry{}, &RowError{
			Line:    pc.LineNumber,
			Field:   p.bankConfig.DateColumn,
			Value:   dateStr,
			Message: "unrecognized date format",
		}, false
	}

	amountStr, rowErr := p.fieldValue(record, pc, p.bankConfig.AmountColumn)
	if rowErr != nil {
		return models.LedgerEntry{}, rowErr, false
	}

	amount, err := models.ParseAmount(amountStr)
	if err != nil {
		return models.LedgerEntry{}, &RowError{
			Line:    pc.LineNumber,
			Field:   p.bankConfig.AmountColumn,
			Value:   amountStr,
			Message: "invalid amount",
			Err:     err,
		}, false
	}

	entry := models.NewLedgerEntry(date, amount, models.SourceBank).
		WithGroupKey(models.ExtractPayerName(description))

	if p.bankConfig.IdentifierColumn != "" {
		if id, idErr := p.fieldValue(record, pc, p.bankConfig.IdentifierColumn); idErr == nil {
			entry = entry.WithReference(id)
		}
	}

	return entry, nil, true
}

// matchesFilters requires every configured substring to appear in the
// description
func (p *BankStatementParser) matchesFilters(description string) bool {
	for _, filter := range p.bankConfig.DescriptionFilters {
		if !strings.Contains(description, filter) {
			return false
		}
	}
	return true
}
