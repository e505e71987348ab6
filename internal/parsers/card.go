package parsers

import (
	"context"
	"io"
	"strings"
	"time"

	"ledger-audit-service/internal/models"
	"ledger-audit-service/pkg/logger"
)

// cardDateTimeFormat matches the acquirer's settlement export, e.g.
// "2 Jun, 2025 · 14:32"
const cardDateTimeFormat = "2 Jan, 2006 · 15:04"

// PaymentMethod classifies a settlement row by how the customer paid
type PaymentMethod string

const (
	MethodCard PaymentMethod = "CARD"
	MethodPix  PaymentMethod = "PIX"
	MethodAny  PaymentMethod = ""
)

// cardMethods are the acquirer's labels that count as card payments,
// with and without accents
var cardMethods = map[string]bool{
	"crédito": true,
	"credito": true,
	"débito":  true,
	"debito":  true,
}

// ClassifyMethod maps the acquirer's method label onto card or Pix
func ClassifyMethod(label string) PaymentMethod {
	if cardMethods[strings.ToLower(strings.TrimSpace(label))] {
		return MethodCard
	}
	return MethodPix
}

// CardConfig describes the settlement report layout
type CardConfig struct {
	DateTimeColumn   string
	AmountColumn     string
	IdentifierColumn string
	MethodColumn     string

	// MethodFilter keeps only rows of one payment method. MethodAny
	// keeps everything.
	MethodFilter PaymentMethod
}

// DefaultCardConfig matches the acquirer's standard export
func DefaultCardConfig() *CardConfig {
	return &CardConfig{
		DateTimeColumn:   "Data e hora",
		AmountColumn:     "Valor (R$)",
		IdentifierColumn: "Identificador",
		MethodColumn:     "Meio - Meio",
		MethodFilter:     MethodAny,
	}
}

// CardSettlementParser reads acquirer settlement CSVs into ledger
// entries. Settlement amounts use Brazilian notation with quoted
// thousands, e.g. `"1.234,56"`.
type CardSettlementParser struct {
	*baseParser
	cardConfig *CardConfig
}

// NewCardSettlementParser creates a parser for the settlement layout.
// A nil config uses DefaultCardConfig.
func NewCardSettlementParser(cardConfig *CardConfig) *CardSettlementParser {
	if cardConfig == nil {
		cardConfig = DefaultCardConfig()
	}
	return &CardSettlementParser{
		baseParser: newBaseParser(DefaultParseConfig(), "card_parser"),
		cardConfig: cardConfig,
	}
}

// ParseEntries parses a settlement file into ledger entries
func (p *CardSettlementParser) ParseEntries(path string) ([]models.LedgerEntry, *ParseStats, error) {
	return p.ParseEntriesWithContext(context.Background(), path)
}

// ParseEntriesWithContext parses with cancellation support
func (p *CardSettlementParser) ParseEntriesWithContext(ctx context.Context, path string) ([]models.LedgerEntry, *ParseStats, error) {
	file, reader, err := p.openFile(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	pc := newParseContext(ctx)
	stats := NewParseStats()

	required := []string{
		p.cardConfig.DateTimeColumn,
		p.cardConfig.AmountColumn,
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
			}).Warn("Skipping unparseable settlement row")
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
	}).Info("Parsed card settlement report")

	return entries, stats, nil
}

func (p *CardSettlementParser) entryFromRecord(record []string, pc *parseContext) (models.LedgerEntry, *RowError, bool) {
	if p.cardConfig.MethodFilter != MethodAny && p.cardConfig.MethodColumn != "" {
		label, rowErr := p.fieldValue(record, pc, p.cardConfig.MethodColumn)
		if rowErr != nil {
			return models.LedgerEntry{}, rowErr, false
		}
		if ClassifyMethod(label) != p.cardConfig.MethodFilter {
			return models.LedgerEntry{}, nil, false
		}
	}

	dateStr, rowErr := p.fieldValue(record, pc, p.cardConfig.DateTimeColumn)
	if rowErr != nil {
		return models.LedgerEntry{}, rowErr, false
	}

	date, err := time.Parse(cardDateTimeFormat, dateStr)
	if err != nil {
		// Some exports use the plain date formats instead
		date = models.ParseDate(dateStr)
		if date.IsZero() {
			return models.LedgerEntry{}, &RowError{
				Line:    pc.LineNumber,
				Field:   p.cardConfig.DateTimeColumn,
				Value:   dateStr,
				Message: "unrecognized date format",
				Err:     err,
			}, false
		}
	}

	amountStr, rowErr := p.fieldValue(record, pc, p.cardConfig.AmountColumn)
	if rowErr != nil {
		return models.LedgerEntry{}, rowErr, false
	}

	amount, err := models.ParseAmount(amountStr)
	if err != nil {
		return models.LedgerEntry{}, &RowError{
			Line:    pc.LineNumber,
			Field:   p.cardConfig.AmountColumn,
			Value:   amountStr,
			Message: "invalid amount",
			Err:     err,
		}, false
	}

	entry := models.NewLedgerEntry(date, amount, models.SourceCard)

	if p.cardConfig.IdentifierColumn != "" {
		if id, idErr := p.fieldValue(record, pc, p.cardConfig.IdentifierColumn); idErr == nil {
			entry = entry.WithReference(id)
		}
	}

	return entry, nil, true
}
