package parsers

import (
	"context"
	"io"

	"ledger-audit-service/internal/models"
	"ledger-audit-service/pkg/logger"
)

// ReceivablesConfig describes the receivables ledger layout. The
// AmountColumn selects which payment-method column to reconcile; the
// ledger splits each service order's total across method columns.
//
// Receivables entries carry no grouping key. One bank deposit can cover
// orders from several clients, so aggregation on this side partitions
// by payment date alone.
type ReceivablesConfig struct {
	DateColumn      string
	AmountColumn    string
	ReferenceColumn string
}

// DefaultReceivablesConfig reconciles the Pix column of the ledger
func DefaultReceivablesConfig() *ReceivablesConfig {
	return &ReceivablesConfig{
		DateColumn:      "DATA PGTO",
		AmountColumn:    "PIX",
		ReferenceColumn: "N° OS",
	}
}

// CardReceivablesConfig reconciles the card column instead
func CardReceivablesConfig() *ReceivablesConfig {
	config := DefaultReceivablesConfig()
	config.AmountColumn = "CARTÃO"
	return config
}

// ReceivablesParser reads the receivables ledger CSV into ledger
// entries. Rows whose selected amount column is blank or zero are
// skipped: the service order was paid by some other method.
type ReceivablesParser struct {
	*baseParser
	recConfig *ReceivablesConfig
}

// NewReceivablesParser creates a parser for the ledger layout. A nil
// config uses DefaultReceivablesConfig.
func NewReceivablesParser(recConfig *ReceivablesConfig) *ReceivablesParser {
	if recConfig == nil {
		recConfig = DefaultReceivablesConfig()
	}
	return &ReceivablesParser{
		baseParser: newBaseParser(DefaultParseConfig(), "receivables_parser"),
		recConfig:  recConfig,
	}
}

// ParseEntries parses a receivables ledger file into ledger entries
func (p *ReceivablesParser) ParseEntries(path string) ([]models.LedgerEntry, *ParseStats, error) {
	return p.ParseEntriesWithContext(context.Background(), path)
}

// ParseEntriesWithContext parses with cancellation support
func (p *ReceivablesParser) ParseEntriesWithContext(ctx context.Context, path string) ([]models.LedgerEntry, *ParseStats, error) {
	file, reader, err := p.openFile(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	pc := newParseContext(ctx)
	stats := NewParseStats()

	required := []string{
		p.recConfig.DateColumn,
		p.recConfig.AmountColumn,
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
			}).Warn("Skipping unparseable receivables row")
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
		"file_path":     path,
		"amount_column": p.recConfig.AmountColumn,
		"entries":       len(entries),
		"skipped":       stats.RecordsSkipped,
		"errors":        stats.ErrorCount,
	}).Info("Parsed receivables ledger")

	return entries, stats, nil
}

func (p *ReceivablesParser) entryFromRecord(record []string, pc *parseContext) (models.LedgerEntry, *RowError, bool) {
	amountStr, rowErr := p.fieldValue(record, pc, p.recConfig.AmountColumn)
	if rowErr != nil {
		return models.LedgerEntry{}, rowErr, false
	}

	if amountStr == "" {
		return models.LedgerEntry{}, nil, false
	}

	amount, err := models.ParseAmount(amountStr)
	if err != nil {
		return models.LedgerEntry{}, &RowError{
			Line:    pc.LineNumber,
			Field:   p.recConfig.AmountColumn,
			Value:   amountStr,
			Message: "invalid amount",
			Err:     err,
		}, false
	}

	if amount.IsZero() {
		return models.LedgerEntry{}, nil, false
	}

	dateStr, rowErr := p.fieldValue(record, pc, p.recConfig.DateColumn)
	if rowErr != nil {
		return models.LedgerEntry{}, rowErr, false
	}

	date := models.ParseDate(dateStr)
	if date.IsZero() {
		return models.LedgerEntry{}, &RowError{
			Line:    pc.LineNumber,
			Field:   p.recConfig.DateColumn,
			Value:   dateStr,
			Message: "unrecognized date format",
		}, false
	}

	entry := models.NewLedgerEntry(date, amount, models.SourceReceivables)

	if p.recConfig.ReferenceColumn != "" {
		if ref, refErr := p.fieldValue(record, pc, p.recConfig.ReferenceColumn); refErr == nil {
			entry = entry.WithReference(ref)
		}
	}

	return entry, nil, true
}
