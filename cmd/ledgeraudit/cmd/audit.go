package cmd

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ledger-audit-service/cmd/ledgeraudit/config"
	"ledger-audit-service/internal/auditor"
	"ledger-audit-service/internal/reporter"
	apperrors "ledger-audit-service/pkg/errors"
)

// Flags for the audit command
var (
	auditLeftFile     string
	auditRightFile    string
	auditKeyField     string
	auditFieldMap     []string
	auditTolerance    float64
	auditOutputFormat string
	auditOutputFile   string
)

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit a generated report field by field against its source",
	Long: `Audit joins two CSV files on a shared key field and compares mapped
field pairs row by row. Amount-like fields are compared under a
percentage tolerance, date-like fields must agree on the calendar day,
and everything else is compared as case-normalized text.

Field mappings are given as LEFT=RIGHT pairs; the comparison rule is
picked from the right-hand field name.

Examples:
  ledgeraudit audit --left-file ordens.csv --right-file gerado.csv \
    --key-field "N° OS" --map "Valor Pago=amount_paid" --map "Data=sale_date"

  ledgeraudit audit --left-file a.csv --right-file b.csv \
    --key-field id --map "total=total,customer=customer" --tolerance 0.5`,

	PreRunE: validateAuditFlags,
	RunE:    runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().StringVar(&auditLeftFile, "left-file", "", "path to the source CSV (required)")
	auditCmd.Flags().StringVar(&auditRightFile, "right-file", "", "path to the generated CSV (required)")
	auditCmd.Flags().StringVarP(&auditKeyField, "key-field", "k", "", "join key column present in both files (required)")
	auditCmd.Flags().StringSliceVarP(&auditFieldMap, "map", "m", nil, "field mapping LEFT=RIGHT (repeatable)")
	auditCmd.Flags().Float64VarP(&auditTolerance, "tolerance", "t", 1.0, "numeric tolerance percentage")
	auditCmd.Flags().StringVarP(&auditOutputFormat, "output-format", "f", "console", "output format: console, json, csv")
	auditCmd.Flags().StringVarP(&auditOutputFile, "output-file", "o", "", "output file path (default: stdout)")

	auditCmd.MarkFlagRequired("left-file")
	auditCmd.MarkFlagRequired("right-file")
	auditCmd.MarkFlagRequired("key-field")
	auditCmd.MarkFlagRequired("map")
}

func validateAuditFlags(cmd *cobra.Command, args []string) error {
	if err := validateFileExists(auditLeftFile, "left file"); err != nil {
		return err
	}
	if err := validateFileExists(auditRightFile, "right file"); err != nil {
		return err
	}

	if strings.TrimSpace(auditKeyField) == "" {
		return fmt.Errorf("key-field is required")
	}
	if len(auditFieldMap) == 0 {
		return fmt.Errorf("at least one --map LEFT=RIGHT pair is required")
	}

	if _, err := parseFieldMappings(auditFieldMap); err != nil {
		return err
	}

	if auditTolerance < 0 {
		return fmt.Errorf("tolerance cannot be negative")
	}

	validFormats := map[string]bool{"console": true, "json": true, "csv": true}
	if !validFormats[auditOutputFormat] {
		return fmt.Errorf("invalid output format %q, valid formats: console, json, csv", auditOutputFormat)
	}

	return nil
}

func runAudit(cmd *cobra.Command, args []string) error {
	mapping, err := parseFieldMappings(auditFieldMap)
	if err != nil {
		return err
	}

	leftRows, err := readRows(auditLeftFile)
	if err != nil {
		return err
	}
	rightRows, err := readRows(auditRightFile)
	if err != nil {
		return err
	}

	tolerance := decimal.NewFromFloat(auditTolerance).Div(decimal.NewFromInt(100))
	fieldAuditor, err := auditor.NewAuditor(tolerance, nil)
	if err != nil {
		return err
	}

	summary, results, err := fieldAuditor.AuditFields(leftRows, rightRows, auditKeyField, mapping)
	if err != nil {
		return err
	}

	reportConfig, err := config.CreateReportConfig(auditOutputFormat, "source", "generated", false, false)
	if err != nil {
		return err
	}

	generator, err := reporter.NewReportGenerator(reportConfig)
	if err != nil {
		return err
	}

	output, closeOutput, err := openOutput(auditOutputFile)
	if err != nil {
		return err
	}
	defer closeOutput()

	if err := generator.GenerateAuditReport(summary, results, output); err != nil {
		return err
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "\nAudited %d records, %d matching, %d mismatched.\n",
			summary.TotalRecords, summary.MatchingRecords, summary.MismatchedRecords)
	}

	return nil
}

// parseFieldMappings parses LEFT=RIGHT pairs into an ordered mapping
func parseFieldMappings(pairs []string) ([]auditor.FieldMapping, error) {
	mapping := make([]auditor.FieldMapping, 0, len(pairs))

	for _, pair := range pairs {
		left, right, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("invalid field mapping %q, expected LEFT=RIGHT", pair)
		}

		left = strings.TrimSpace(left)
		right = strings.TrimSpace(right)
		if left == "" || right == "" {
			return nil, fmt.Errorf("invalid field mapping %q, both sides must be non-empty", pair)
		}

		mapping = append(mapping, auditor.FieldMapping{Left: left, Right: right})
	}

	return mapping, nil
}

// readRows loads a CSV file into header-keyed rows
func readRows(path string) ([]auditor.Row, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.FileError(apperrors.CodeFileNotFound, path, err)
		}
		return nil, apperrors.FileError(apperrors.CodeFileUnreadable, path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, apperrors.ParseError(apperrors.CodeInvalidFormat, path, 0, "", "", err)
	}

	if len(records) == 0 {
		return nil, apperrors.New(apperrors.CategoryParse, apperrors.CodeEmptyInput,
			fmt.Sprintf("file %s contains no rows", path))
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}

	rows := make([]auditor.Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(auditor.Row, len(headers))
		for i, header := range headers {
			if i < len(record) {
				row[header] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}
