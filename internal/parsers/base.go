// Package parsers reads the three CSV extracts the reconciliation works
// from: bank statements, card settlement reports, and the receivables
// ledger. Each parser normalizes its extract into models.LedgerEntry
// values and reports per-row failures through ParseStats instead of
// aborting the whole file.
//
// The extracts come from Brazilian systems, so the defaults expect
// Portuguese column names, comma decimal separators, and day-first
// dates. All of that is configurable per parser.
package parsers

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	apperrors "ledger-audit-service/pkg/errors"
	"ledger-audit-service/pkg/logger"
)

// RowError records one row that could not be turned into a ledger entry
type RowError struct {
	Line    int
	Field   string
	Value   string
	Message string
	Err     error
}

func (e *RowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("row error at line %d (%s=%q): %s: %v",
			e.Line, e.Field, e.Value, e.Message, e.Err)
	}
	return fmt.Sprintf("row error at line %d (%s=%q): %s",
		e.Line, e.Field, e.Value, e.Message)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// ParseConfig holds the CSV-level settings shared by all parsers
type ParseConfig struct {
	HasHeader        bool
	Delimiter        rune
	TrimLeadingSpace bool
	SkipEmptyRows    bool
	ValidateEncoding bool
}

// DefaultParseConfig returns the settings the extracts normally need
func DefaultParseConfig() *ParseConfig {
	return &ParseConfig{
		HasHeader:        true,
		Delimiter:        ',',
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
		ValidateEncoding: true,
	}
}

// baseParser provides file opening, header mapping, and row iteration
// shared by the concrete parsers
type baseParser struct {
	config *ParseConfig
	logger logger.Logger
}

func newBaseParser(config *ParseConfig, component string) *baseParser {
	if config == nil {
		config = DefaultParseConfig()
	}
	return &baseParser{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent(component),
	}
}

// parseContext holds per-file state during one parse
type parseContext struct {
	LineNumber int
	Headers    []string
	HeaderMap  map[string]int
	ctx        context.Context
}

func newParseContext(ctx context.Context) *parseContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &parseContext{
		HeaderMap: make(map[string]int),
		ctx:       ctx,
	}
}

func (pc *parseContext) isCancelled() bool {
	select {
	case <-pc.ctx.Done():
		return true
	default:
		return false
	}
}

// columnIndex resolves a header name to its position, falling back to a
// case-insensitive match. Returns -1 when absent.
func (pc *parseContext) columnIndex(name string) int {
	if index, exists := pc.HeaderMap[name]; exists {
		return index
	}

	lower := strings.ToLower(name)
	for header, index := range pc.HeaderMap {
		if strings.ToLower(header) == lower {
			return index
		}
	}

	return -1
}

// openFile opens the CSV and wires up a configured reader
func (bp *baseParser) openFile(path string) (*os.File, *csv.Reader, error) {
	bp.logger.WithField("file_path", path).Debug("Opening CSV file")

	file, err := os.Open(path)
	if err != nil {
		bp.logger.WithError(err).WithField("file_path", path).Error("Failed to open CSV file")
		if os.IsNotExist(err) {
			return nil, nil, apperrors.FileError(apperrors.CodeFileNotFound, path, err)
		}
		return nil, nil, apperrors.FileError(apperrors.CodeFileUnreadable, path, err)
	}

	if bp.config.ValidateEncoding {
		if err := bp.validateEncoding(file, path); err != nil {
			file.Close()
			return nil, nil, err
		}
		if _, err := file.Seek(0, 0); err != nil {
			file.Close()
			return nil, nil, apperrors.FileError(apperrors.CodeFileUnreadable, path, err)
		}
	}

	reader := csv.NewReader(file)
	reader.Comma = bp.config.Delimiter
	reader.TrimLeadingSpace = bp.config.TrimLeadingSpace
	reader.FieldsPerRecord = -1

	return file, reader, nil
}

// validateEncoding rejects files that are not valid UTF-8. The extracts
// travel through spreadsheet tools that occasionally save Latin-1.
func (bp *baseParser) validateEncoding(file *os.File, path string) error {
	scanner := bufio.NewScanner(file)
	line := 0

	for scanner.Scan() && line < 100 {
		line++
		if !utf8.Valid(scanner.Bytes()) {
			return apperrors.ParseError(
				apperrors.CodeInvalidFormat, path, line, "encoding", "",
				fmt.Errorf("invalid UTF-8 encoding"),
			).WithSuggestion("Save the file as UTF-8 and try again")
		}
	}

	if err := scanner.Err(); err != nil {
		return apperrors.FileError(apperrors.CodeFileUnreadable, path, err)
	}

	return nil
}

// readHeaders consumes the header row and verifies required columns
func (bp *baseParser) readHeaders(reader *csv.Reader, pc *parseContext, path string, required []string) error {
	if !bp.config.HasHeader {
		pc.Headers = append(pc.Headers, required...)
		bp.buildHeaderMap(pc)
		return nil
	}

	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return apperrors.New(apperrors.CategoryParse, apperrors.CodeEmptyInput,
				fmt.Sprintf("file %s contains no rows", path)).
				WithSuggestion("Ensure the file contains a header row and data rows")
		}
		return apperrors.ParseError(apperrors.CodeInvalidFormat, path, 1, "headers", "", err)
	}

	pc.LineNumber++
	pc.Headers = make([]string, len(headers))
	for i, h := range headers {
		pc.Headers[i] = strings.TrimSpace(h)
	}
	bp.buildHeaderMap(pc)

	var missing []string
	for _, name := range required {
		if pc.columnIndex(name) == -1 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		bp.logger.WithFields(logger.Fields{
			"missing_columns":   missing,
			"available_columns": pc.Headers,
		}).Error("Required columns are missing")

		return apperrors.ParseError(
			apperrors.CodeMissingColumn, path, pc.LineNumber, "headers",
			strings.Join(missing, ", "), nil,
		).WithSuggestion(fmt.Sprintf("Ensure the CSV contains these columns: %s", strings.Join(missing, ", ")))
	}

	return nil
}

func (bp *baseParser) buildHeaderMap(pc *parseContext) {
	pc.HeaderMap = make(map[string]int, len(pc.Headers))
	for i, header := range pc.Headers {
		pc.HeaderMap[header] = i
	}
}

// readRecord returns the next non-empty row, or io.EOF at end of file
func (bp *baseParser) readRecord(reader *csv.Reader, pc *parseContext) ([]string, error) {
	for {
		record, err := reader.Read()
		if err != nil {
			return nil, err
		}

		pc.LineNumber++

		if bp.config.SkipEmptyRows && isEmptyRecord(record) {
			continue
		}

		return record, nil
	}
}

func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// fieldValue retrieves a named column from a row, trimmed
func (bp *baseParser) fieldValue(record []string, pc *parseContext, name string) (string, *RowError) {
	index := pc.columnIndex(name)
	if index == -1 {
		return "", &RowError{
			Line:    pc.LineNumber,
			Field:   name,
			Message: "column not found in headers",
		}
	}

	if index >= len(record) {
		return "", &RowError{
			Line:    pc.LineNumber,
			Field:   name,
			Message: fmt.Sprintf("row has %d fields, column is at index %d", len(record), index),
		}
	}

	return strings.TrimSpace(record[index]), nil
}

// ParseStats summarizes one file parse: how many rows were seen, how
// many produced entries, and what went wrong with the rest
type ParseStats struct {
	TotalLines     int
	RecordsParsed  int
	RecordsValid   int
	RecordsSkipped int
	ErrorCount     int
	Errors         []*RowError
}

// NewParseStats creates an empty ParseStats
func NewParseStats() *ParseStats {
	return &ParseStats{
		Errors: make([]*RowError, 0),
	}
}

// AddError records a failed row
func (ps *ParseStats) AddError(err *RowError) {
	ps.Errors = append(ps.Errors, err)
	ps.ErrorCount++
}

// HasErrors reports whether any rows failed
func (ps *ParseStats) HasErrors() bool {
	return ps.ErrorCount > 0
}

func (ps *ParseStats) String() string {
	return fmt.Sprintf("parsed %d lines, %d records (%d valid, %d skipped), %d errors",
		ps.TotalLines, ps.RecordsParsed, ps.RecordsValid, ps.RecordsSkipped, ps.ErrorCount)
}

// SampleErrors returns up to maxSamples row errors for logging
func (ps *ParseStats) SampleErrors(maxSamples int) []string {
	if len(ps.Errors) == 0 {
		return nil
	}

	limit := len(ps.Errors)
	if maxSamples > 0 && maxSamples < limit {
		limit = maxSamples
	}

	samples := make([]string, 0, limit)
	for i := 0; i < limit; i++ {
		samples = append(samples, ps.Errors[i].Error())
	}
	return samples
}
