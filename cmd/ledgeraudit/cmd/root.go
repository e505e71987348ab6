package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ledger-audit-service/cmd/ledgeraudit/config"
	"ledger-audit-service/pkg/logger"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ledgeraudit",
	Short: "Financial ledger reconciliation and audit tool",
	Long: `Ledgeraudit reconciles the company's receivables ledger against
bank statements and card settlement reports, and audits generated
reports field by field against their source extracts.

Examples:
  ledgeraudit reconcile --bank-file extrato.csv --receivables-file recebimentos.csv
  ledgeraudit reconcile --bank-file extrato.csv --receivables-file rec.csv --card-file cartao.csv
  ledgeraudit audit --left-file source.csv --right-file generated.csv --key-field "N° OS" --map "Valor Pago=amount_paid"
  ledgeraudit version`,
	Version: getVersionString(),
}

// Execute runs the root command and maps failures to exit codes
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return NewCLIErrorHandler().HandleError(err)
	}
	return 0
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)

	// Subcommand errors go through the CLI error handler
	rootCmd.SilenceErrors = true
}

// initConfig reads in config file and LEDGERAUDIT_* environment variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)

		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(1)
		}

		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}

	viper.SetEnvPrefix("LEDGERAUDIT")
	viper.AutomaticEnv()
}

// initLogger installs the global logger honoring the verbosity flag
func initLogger() {
	log, err := logger.NewLogger(config.CreateLoggerConfig(viper.GetBool("verbose")))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %s\n", err)
		os.Exit(1)
	}
	logger.SetGlobalLogger(log)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ledgeraudit %s\n", getVersionString())
	},
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
