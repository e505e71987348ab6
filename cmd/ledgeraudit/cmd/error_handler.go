package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	apperrors "ledger-audit-service/pkg/errors"
	"ledger-audit-service/pkg/logger"
)

// CLIErrorHandler translates failures into user-facing messages and
// exit codes
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError prints a user-friendly message and returns the exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Error("Command failed")

	if auditErr, ok := apperrors.AsAuditError(err); ok {
		return h.handleAuditError(auditErr)
	}

	return h.handleGenericError(err)
}

func (h *CLIErrorHandler) handleAuditError(err *apperrors.AuditError) int {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		fmt.Fprintf(os.Stderr, "\nContext:\n")
		for key, value := range err.Context {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", key, value)
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(os.Stderr, "\n%s\n", h.categoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(os.Stderr, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.ExitCode()
}

func (h *CLIErrorHandler) handleGenericError(err error) int {
	if h.isFileNotFoundError(err) {
		fmt.Fprintf(os.Stderr, "Error: File not found\n")
		fmt.Fprintf(os.Stderr, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	}

	if h.isPermissionError(err) {
		fmt.Fprintf(os.Stderr, "Error: Permission denied\n")
		fmt.Fprintf(os.Stderr, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	if !h.verbose {
		fmt.Fprintf(os.Stderr, "\nRun with --verbose for more detail\n")
	}

	return 1
}

func (h *CLIErrorHandler) categoryHelp(category apperrors.ErrorCategory) string {
	switch category {
	case apperrors.CategoryFile:
		return `File error help:
• Check if the file exists and is readable
• Verify the file path is correct (use absolute paths if needed)
• Ensure you have proper permissions to access the file`

	case apperrors.CategoryParse:
		return `Parse error help:
• Verify the CSV file format and column headers
• Ensure the file uses UTF-8 encoding
• Check amounts use either 1234.56 or 1.234,56 notation
• Use 'ledgeraudit reconcile --help' for examples of expected formats`

	case apperrors.CategoryValidation:
		return `Validation error help:
• Check that all required fields have values
• Verify dates use DD/MM/YYYY or YYYY-MM-DD
• Ensure amounts are non-negative decimal numbers`

	case apperrors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• Use 'ledgeraudit reconcile --help' to see all available options`

	case apperrors.CategoryAudit:
		return `Audit error help:
• Verify the key field exists in both files
• Check your --map LEFT=RIGHT field pairs
• Try adjusting the tolerance (--tolerance)`

	default:
		return `For more help:
• Use 'ledgeraudit --help' for general help
• Use 'ledgeraudit <command> --help' for command-specific help`
	}
}

func (h *CLIErrorHandler) isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory")
}

func (h *CLIErrorHandler) isPermissionError(err error) bool {
	return os.IsPermission(err) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}
