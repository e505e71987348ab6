// Package config assembles the component configurations the CLI
// commands need from flag values.
package config

import (
	"fmt"

	"github.com/shopspring/decimal"

	"ledger-audit-service/internal/matcher"
	"ledger-audit-service/internal/parsers"
	"ledger-audit-service/internal/reconciler"
	"ledger-audit-service/internal/reporter"
	"ledger-audit-service/pkg/logger"
)

// ToleranceModeFlag values accepted by --amount-tolerance-mode
const (
	ToleranceModePercent  = "pct"
	ToleranceModeAbsolute = "abs"
)

// CreateAmountTolerance builds an amount tolerance from the CLI flag
// pair. In percent mode the value is given as a percentage (1.0 = 1%);
// in absolute mode it is a currency amount.
func CreateAmountTolerance(mode string, value float64) (matcher.AmountTolerance, error) {
	if value < 0 {
		return matcher.AmountTolerance{}, fmt.Errorf("amount tolerance cannot be negative: %v", value)
	}

	switch mode {
	case ToleranceModePercent:
		ratio := decimal.NewFromFloat(value).Div(decimal.NewFromInt(100))
		return matcher.PercentTolerance(ratio), nil
	case ToleranceModeAbsolute:
		return matcher.AbsoluteTolerance(decimal.NewFromFloat(value)), nil
	default:
		return matcher.AmountTolerance{}, fmt.Errorf("invalid tolerance mode %q, use %q or %q",
			mode, ToleranceModePercent, ToleranceModeAbsolute)
	}
}

// CreateReconcilerConfig builds the orchestrator configuration from the
// CLI tolerance flags
func CreateReconcilerConfig(dateTolerance, extendedDateTolerance int, toleranceMode string, toleranceValue float64) (*reconciler.Config, error) {
	amountTolerance, err := CreateAmountTolerance(toleranceMode, toleranceValue)
	if err != nil {
		return nil, err
	}

	config := reconciler.DefaultConfig()
	config.DateToleranceDays = dateTolerance
	config.ExtendedDateToleranceDays = extendedDateTolerance
	config.AmountTolerance = amountTolerance

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// CreateReportConfig builds reporting options for the given format and
// side labels
func CreateReportConfig(format, leftLabel, rightLabel string, includeMatched, sortByAmount bool) (*reporter.ReportConfig, error) {
	config := reporter.DefaultReportConfig()
	config.LeftLabel = leftLabel
	config.RightLabel = rightLabel
	config.IncludeMatched = includeMatched
	config.SortByAmount = sortByAmount

	switch format {
	case "console":
		config.Format = reporter.FormatConsole
	case "json":
		config.Format = reporter.FormatJSON
	case "csv":
		config.Format = reporter.FormatCSV
		// CSV is record data; matched rows are usually wanted there
		config.IncludeMatched = true
	default:
		return nil, fmt.Errorf("invalid output format %q, valid formats: console, json, csv", format)
	}

	return config, nil
}

// CreateBankParser builds the bank statement parser with the standard
// incoming-Pix layout
func CreateBankParser() *parsers.BankStatementParser {
	return parsers.NewBankStatementParser(parsers.DefaultBankConfig())
}

// CreateCardParser builds the settlement parser, optionally restricted
// to one payment method
func CreateCardParser(methodFilter parsers.PaymentMethod) *parsers.CardSettlementParser {
	cardConfig := parsers.DefaultCardConfig()
	cardConfig.MethodFilter = methodFilter
	return parsers.NewCardSettlementParser(cardConfig)
}

// CreateReceivablesParser builds the receivables parser for the Pix or
// card column of the ledger
func CreateReceivablesParser(cardColumn bool) *parsers.ReceivablesParser {
	if cardColumn {
		return parsers.NewReceivablesParser(parsers.CardReceivablesConfig())
	}
	return parsers.NewReceivablesParser(parsers.DefaultReceivablesConfig())
}

// CreateLoggerConfig builds the logger configuration from the verbosity
// flag
func CreateLoggerConfig(verbose bool) *logger.Config {
	if verbose {
		return logger.DebugConfig()
	}
	return logger.DefaultConfig()
}
