package main

import (
	"os"

	"ledger-audit-service/cmd/ledgeraudit/cmd"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, date)

	os.Exit(cmd.Execute())
}
