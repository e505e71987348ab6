// Package auditor implements the generic field-by-field audit of two
// row sets joined by a shared key: a source extract on the left, a
// generated report on the right. Each mapped field pair is compared with
// a rule picked by field-name heuristics: percentage tolerance for
// amount-like fields, calendar equality for date-like fields, and
// case-normalized text equality for everything else.
//
// Absence of data is a reportable finding, never a crash: a missing row,
// a missing field, or an unparsable value produces a failing
// FieldResult with an explanatory note.
package auditor

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledger-audit-service/internal/models"
	apperrors "ledger-audit-service/pkg/errors"
	"ledger-audit-service/pkg/logger"
)

// Row is one record of a row set, keyed by column name
type Row map[string]string

// FieldMapping names one left-column to right-column pair to compare.
// Mappings are ordered; results come back in mapping order per row.
type FieldMapping struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// FieldResult is the comparison outcome for one field of one
// key-matched row pair
type FieldResult struct {
	Key         string           `json:"key"`
	FieldName   string           `json:"field_name"`
	LeftValue   string           `json:"left_value"`
	RightValue  string           `json:"right_value"`
	Match       bool             `json:"match"`
	Difference  *decimal.Decimal `json:"difference,omitempty"`
	PercentDiff *decimal.Decimal `json:"percent_diff,omitempty"`
	Note        string           `json:"note,omitempty"`
}

// RunSummary aggregates one audit run. It is created once per
// invocation and never mutated after the run completes.
type RunSummary struct {
	TotalRecords      int             `json:"total_records"`
	MatchingRecords   int             `json:"matching_records"`
	MismatchedRecords int             `json:"mismatched_records"`
	TotalFields       int             `json:"total_fields"`
	MatchingFields    int             `json:"matching_fields"`
	MismatchedFields  int             `json:"mismatched_fields"`
	Tolerance         decimal.Decimal `json:"tolerance"`
	AuditTime         time.Time       `json:"audit_time"`
}

// Auditor compares row sets with a configured numeric tolerance
type Auditor struct {
	tolerance decimal.Decimal
	logger    logger.Logger
}

// NewAuditor creates an auditor with the given numeric tolerance ratio
// (0.01 = 1%). Negative tolerances are rejected before anything runs.
func NewAuditor(tolerance decimal.Decimal, log logger.Logger) (*Auditor, error) {
	if tolerance.IsNegative() {
		return nil, apperrors.ConfigError(
			fmt.Sprintf("audit tolerance cannot be negative: %s", tolerance.String()), nil)
	}

	if log == nil {
		log = logger.GetGlobalLogger()
	}

	return &Auditor{
		tolerance: tolerance,
		logger:    log.WithComponent("auditor"),
	}, nil
}

// AuditFields compares every mapped field of every left row against the
// right row sharing its key. Left rows are processed in input order;
// when several right rows share a key the first one wins. A left row
// with no right counterpart yields one failing result per mapped field,
// preserving the one-record-one-verdict accounting used by the summary.
func (a *Auditor) AuditFields(left, right []Row, keyField string, mapping []FieldMapping) (*RunSummary, []FieldResult, error) {
	if strings.TrimSpace(keyField) == "" {
		return nil, nil, apperrors.ValidationError(apperrors.CodeMissingField, "key_field", keyField)
	}

	if len(mapping) == 0 {
		return nil, nil, apperrors.New(apperrors.CategoryAudit, apperrors.CodeEmptyInput,
			"field mapping cannot be empty")
	}

	rightByKey := indexByKey(right, keyField)

	var results []FieldResult
	matchingRecords := 0
	mismatchedRecords := 0

	for _, leftRow := range left {
		key := strings.TrimSpace(leftRow[keyField])

		rightRow, found := rightByKey[key]
		if !found || key == "" {
			mismatchedRecords++
			for _, m := range mapping {
				results = append(results, FieldResult{
					Key:       key,
					FieldName: m.Right,
					LeftValue: leftRow[m.Left],
					Match:     false,
					Note:      fmt.Sprintf("no row with %s=%q found on the right side", keyField, key),
				})
			}
			continue
		}

		recordResults := a.auditRecord(key, leftRow, rightRow, mapping)
		results = append(results, recordResults...)

		recordMatches := true
		for _, r := range recordResults {
			if !r.Match {
				recordMatches = false
				break
			}
		}
		if recordMatches {
			matchingRecords++
		} else {
			mismatchedRecords++
		}
	}

	matchingFields := 0
	for _, r := range results {
		if r.Match {
			matchingFields++
		}
	}

	summary := &RunSummary{
		TotalRecords:      len(left),
		MatchingRecords:   matchingRecords,
		MismatchedRecords: mismatchedRecords,
		TotalFields:       len(results),
		MatchingFields:    matchingFields,
		MismatchedFields:  len(results) - matchingFields,
		Tolerance:         a.tolerance,
		AuditTime:         time.Now(),
	}

	a.logger.WithFields(logger.Fields{
		"records":         summary.TotalRecords,
		"matching":        summary.MatchingRecords,
		"fields_checked":  summary.TotalFields,
		"fields_matching": summary.MatchingFields,
	}).Info("Field audit completed")

	return summary, results, nil
}

// auditRecord compares the mapped fields of one joined row pair
func (a *Auditor) auditRecord(key string, leftRow, rightRow Row, mapping []FieldMapping) []FieldResult {
	results := make([]FieldResult, 0, len(mapping))

	for _, m := range mapping {
		leftValue, leftOK := leftRow[m.Left]
		if !leftOK {
			results = append(results, FieldResult{
				Key:       key,
				FieldName: m.Left,
				Match:     false,
				Note:      fmt.Sprintf("field %q not present in the left row", m.Left),
			})
			continue
		}

		rightValue, rightOK := rightRow[m.Right]
		if !rightOK {
			results = append(results, FieldResult{
				Key:       key,
				FieldName: m.Right,
				LeftValue: leftValue,
				Match:     false,
				Note:      fmt.Sprintf("field %q not present in the right row", m.Right),
			})
			continue
		}

		var result FieldResult
		switch fieldKind(m.Right) {
		case kindAmount:
			result = a.compareAmounts(leftValue, rightValue, m.Right)
		case kindDate:
			result = compareDates(leftValue, rightValue, m.Right)
		default:
			result = compareText(leftValue, rightValue, m.Right)
		}
		result.Key = key

		results = append(results, result)
	}

	return results
}

// compareAmounts compares two numeric values under the percentage
// tolerance. Empty values count as zero, matching how the source
// extracts leave paid-nothing cells blank; an unparsable value is a
// failing finding.
func (a *Auditor) compareAmounts(leftValue, rightValue, field string) FieldResult {
	result := FieldResult{
		FieldName:  field,
		LeftValue:  leftValue,
		RightValue: rightValue,
	}

	leftAmount, err := parseAmountOrZero(leftValue)
	if err != nil {
		result.Note = fmt.Sprintf("left value is not numeric: %v", err)
		return result
	}

	rightAmount, err := parseAmountOrZero(rightValue)
	if err != nil {
		result.Note = fmt.Sprintf("right value is not numeric: %v", err)
		return result
	}

	difference := leftAmount.Sub(rightAmount).Abs()
	percentDiff := decimal.Zero

	larger := decimal.Max(leftAmount, rightAmount)
	if larger.IsPositive() {
		percentDiff = difference.Div(larger).Mul(decimal.NewFromInt(100))
	}

	tolerancePct := a.tolerance.Mul(decimal.NewFromInt(100))
	result.Match = percentDiff.LessThanOrEqual(tolerancePct)
	result.Difference = &difference
	result.PercentDiff = &percentDiff

	result.Note = fmt.Sprintf("difference %s (%s%%)", difference.StringFixed(2), percentDiff.StringFixed(2))
	if !result.Match {
		result.Note += fmt.Sprintf(" exceeds tolerance of %s%%", tolerancePct.StringFixed(2))
	}

	return result
}

// compareDates requires exact calendar equality after normalization.
// Two absent dates agree; one absent or unparsable date is a failing
// finding.
func compareDates(leftValue, rightValue, field string) FieldResult {
	result := FieldResult{
		FieldName:  field,
		LeftValue:  leftValue,
		RightValue: rightValue,
	}

	leftDate := models.ParseDate(leftValue)
	rightDate := models.ParseDate(rightValue)

	switch {
	case leftDate.IsZero() && rightDate.IsZero():
		result.Match = strings.TrimSpace(leftValue) == "" && strings.TrimSpace(rightValue) == ""
		if !result.Match {
			result.Note = "neither value parses as a date"
		} else {
			result.Note = "both dates absent"
		}
	case leftDate.IsZero() || rightDate.IsZero():
		result.Note = "one side is missing or unparsable"
	case leftDate.Equal(rightDate):
		result.Match = true
		result.Note = "dates identical"
	default:
		result.Note = fmt.Sprintf("left %s vs right %s",
			leftDate.Format("2006-01-02"), rightDate.Format("2006-01-02"))
	}

	return result
}

// compareText requires case-normalized exact equality
func compareText(leftValue, rightValue, field string) FieldResult {
	leftNorm := strings.ToUpper(strings.TrimSpace(leftValue))
	rightNorm := strings.ToUpper(strings.TrimSpace(rightValue))

	result := FieldResult{
		FieldName:  field,
		LeftValue:  leftValue,
		RightValue: rightValue,
		Match:      leftNorm == rightNorm,
	}

	if result.Match {
		result.Note = "values identical"
	} else {
		result.Note = fmt.Sprintf("left %q vs right %q", leftNorm, rightNorm)
	}

	return result
}

type comparisonKind int

const (
	kindText comparisonKind = iota
	kindAmount
	kindDate
)

// amountKeywords mark a field as money-valued; dateKeywords mark it as
// a calendar date. Both cover the English names and the Portuguese
// column names the source extracts use.
var (
	amountKeywords = []string{
		"AMOUNT", "VALUE", "TOTAL", "PAID", "BALANCE", "CASH", "CARD", "CHANGE",
		"VALOR", "PAGO", "DEVEDOR", "CARTÃO", "DINHEIRO", "PIX", "TROCO",
	}
	dateKeywords = []string{"DATE", "DATA"}
)

// fieldKind picks the comparison rule from the field name
func fieldKind(field string) comparisonKind {
	upper := strings.ToUpper(field)

	for _, keyword := range amountKeywords {
		if strings.Contains(upper, keyword) {
			return kindAmount
		}
	}

	for _, keyword := range dateKeywords {
		if strings.Contains(upper, keyword) {
			return kindDate
		}
	}

	return kindText
}

// parseAmountOrZero treats blank cells as zero, the way the source
// extracts leave untouched money columns empty
func parseAmountOrZero(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	return models.ParseAmount(s)
}

// indexByKey builds a first-wins lookup of rows by the key field
func indexByKey(rows []Row, keyField string) map[string]Row {
	index := make(map[string]Row, len(rows))
	for _, row := range rows {
		key := strings.TrimSpace(row[keyField])
		if key == "" {
			continue
		}
		if _, exists := index[key]; !exists {
			index[key] = row
		}
	}
	return index
}
