package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ledger-audit-service/cmd/ledgeraudit/config"
	"ledger-audit-service/internal/models"
	"ledger-audit-service/internal/parsers"
	"ledger-audit-service/internal/reconciler"
	"ledger-audit-service/internal/reporter"
	"ledger-audit-service/pkg/logger"
)

// Flags for the reconcile command
var (
	bankFile        string
	cardFile        string
	receivablesFile string

	outputFormat string
	outputFile   string

	dateTolerance         int
	extendedDateTolerance int
	amountToleranceMode   string
	amountToleranceValue  float64

	includeMatched bool
	sortByAmount   bool
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile bank and card entries against the receivables ledger",
	Long: `Reconcile compares incoming bank transfers (and optionally card
settlements) against the receivables ledger to classify every entry as
matched or unmatched.

Matching runs in passes: direct one-to-one matching within the date and
amount tolerances, extended-window matching for exact amounts, then
aggregation of same-day groups on either side. Whatever remains is
reported as unmatched.

Examples:
  # Bank transfers vs receivables Pix column
  ledgeraudit reconcile --bank-file extrato.csv --receivables-file recebimentos.csv

  # Also reconcile card settlements vs the card column
  ledgeraudit reconcile --bank-file extrato.csv --receivables-file rec.csv --card-file cartao.csv

  # Custom tolerances and JSON output
  ledgeraudit reconcile --bank-file extrato.csv --receivables-file rec.csv \
    --date-tolerance 3 --amount-tolerance 0.5 --output-format json --output-file result.json

  # Absolute one-cent tolerance
  ledgeraudit reconcile --bank-file extrato.csv --receivables-file rec.csv \
    --amount-tolerance-mode abs --amount-tolerance 0.01`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringVarP(&bankFile, "bank-file", "b", "", "path to the bank statement CSV (required)")
	reconcileCmd.Flags().StringVarP(&receivablesFile, "receivables-file", "r", "", "path to the receivables ledger CSV (required)")
	reconcileCmd.Flags().StringVarP(&cardFile, "card-file", "c", "", "path to the card settlement CSV (optional second run)")

	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")

	reconcileCmd.Flags().IntVarP(&dateTolerance, "date-tolerance", "d", 2, "date matching tolerance in days")
	reconcileCmd.Flags().IntVar(&extendedDateTolerance, "extended-date-tolerance", 15, "extended date window for exact-amount matches")
	reconcileCmd.Flags().StringVar(&amountToleranceMode, "amount-tolerance-mode", config.ToleranceModePercent, "amount tolerance mode: pct or abs")
	reconcileCmd.Flags().Float64VarP(&amountToleranceValue, "amount-tolerance", "a", 1.0, "amount tolerance (percent in pct mode, currency in abs mode)")

	reconcileCmd.Flags().BoolVar(&includeMatched, "include-matched", false, "list matched records in the report")
	reconcileCmd.Flags().BoolVar(&sortByAmount, "sort-by-amount", false, "sort unmatched records largest-first")

	reconcileCmd.MarkFlagRequired("bank-file")
	reconcileCmd.MarkFlagRequired("receivables-file")

	viper.BindPFlag("bank-file", reconcileCmd.Flags().Lookup("bank-file"))
	viper.BindPFlag("receivables-file", reconcileCmd.Flags().Lookup("receivables-file"))
	viper.BindPFlag("card-file", reconcileCmd.Flags().Lookup("card-file"))
	viper.BindPFlag("output-format", reconcileCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", reconcileCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("date-tolerance", reconcileCmd.Flags().Lookup("date-tolerance"))
	viper.BindPFlag("extended-date-tolerance", reconcileCmd.Flags().Lookup("extended-date-tolerance"))
	viper.BindPFlag("amount-tolerance-mode", reconcileCmd.Flags().Lookup("amount-tolerance-mode"))
	viper.BindPFlag("amount-tolerance", reconcileCmd.Flags().Lookup("amount-tolerance"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	// Viper values win so the config file and environment can override
	bankFile = viper.GetString("bank-file")
	receivablesFile = viper.GetString("receivables-file")
	cardFile = viper.GetString("card-file")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	dateTolerance = viper.GetInt("date-tolerance")
	extendedDateTolerance = viper.GetInt("extended-date-tolerance")
	amountToleranceMode = viper.GetString("amount-tolerance-mode")
	amountToleranceValue = viper.GetFloat64("amount-tolerance")

	if bankFile == "" {
		return fmt.Errorf("bank-file is required")
	}
	if receivablesFile == "" {
		return fmt.Errorf("receivables-file is required")
	}

	if err := validateFileExists(bankFile, "bank statement file"); err != nil {
		return err
	}
	if err := validateFileExists(receivablesFile, "receivables ledger file"); err != nil {
		return err
	}
	if cardFile != "" {
		if err := validateFileExists(cardFile, "card settlement file"); err != nil {
			return err
		}
	}

	validFormats := map[string]bool{"console": true, "json": true, "csv": true}
	if !validFormats[outputFormat] {
		return fmt.Errorf("invalid output format %q, valid formats: console, json, csv", outputFormat)
	}

	if dateTolerance < 0 {
		return fmt.Errorf("date tolerance cannot be negative")
	}
	if extendedDateTolerance < dateTolerance {
		return fmt.Errorf("extended date tolerance (%d) cannot be smaller than the date tolerance (%d)",
			extendedDateTolerance, dateTolerance)
	}
	if amountToleranceValue < 0 {
		return fmt.Errorf("amount tolerance cannot be negative")
	}

	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	log := logger.GetGlobalLogger().WithComponent("cli")

	reconcilerConfig, err := config.CreateReconcilerConfig(
		dateTolerance, extendedDateTolerance, amountToleranceMode, amountToleranceValue)
	if err != nil {
		return err
	}

	output, closeOutput, err := openOutput(outputFile)
	if err != nil {
		return err
	}
	defer closeOutput()

	// Run one: bank transfers vs the receivables Pix column
	bankEntries, bankStats, err := config.CreateBankParser().ParseEntries(bankFile)
	if err != nil {
		return err
	}
	logParseStats(log, "bank statement", bankStats)

	pixEntries, pixStats, err := config.CreateReceivablesParser(false).ParseEntries(receivablesFile)
	if err != nil {
		return err
	}
	logParseStats(log, "receivables (Pix)", pixStats)

	if err := reconcileAndReport(reconcilerConfig, bankEntries, pixEntries, "bank", "receivables", output); err != nil {
		return err
	}

	// Run two: card settlements vs the receivables card column
	if cardFile != "" {
		cardEntries, cardStats, err := config.CreateCardParser(parsers.MethodCard).ParseEntries(cardFile)
		if err != nil {
			return err
		}
		logParseStats(log, "card settlement", cardStats)

		cardLedger, cardLedgerStats, err := config.CreateReceivablesParser(true).ParseEntries(receivablesFile)
		if err != nil {
			return err
		}
		logParseStats(log, "receivables (card)", cardLedgerStats)

		fmt.Fprintf(output, "\n")
		if err := reconcileAndReport(reconcilerConfig, cardEntries, cardLedger, "card", "receivables", output); err != nil {
			return err
		}
	}

	return nil
}

func reconcileAndReport(reconcilerConfig *reconciler.Config, left, right []models.LedgerEntry, leftLabel, rightLabel string, output io.Writer) error {
	orchestrator, err := reconciler.NewOrchestrator(reconcilerConfig, nil)
	if err != nil {
		return err
	}

	result, err := orchestrator.Reconcile(left, right)
	if err != nil {
		return err
	}

	reportConfig, err := config.CreateReportConfig(outputFormat, leftLabel, rightLabel, includeMatched, sortByAmount)
	if err != nil {
		return err
	}

	generator, err := reporter.NewReportGenerator(reportConfig)
	if err != nil {
		return err
	}

	return generator.GenerateReport(result, output)
}

// openOutput returns the report destination and a close function
func openOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return file, func() { file.Close() }, nil
}

func logParseStats(log logger.Logger, what string, stats *parsers.ParseStats) {
	entry := log.WithFields(logger.Fields{
		"valid":   stats.RecordsValid,
		"skipped": stats.RecordsSkipped,
		"errors":  stats.ErrorCount,
	})

	if stats.HasErrors() {
		entry.WithField("samples", stats.SampleErrors(3)).Warnf("Parsed %s with row errors", what)
		return
	}
	entry.Debugf("Parsed %s", what)
}
