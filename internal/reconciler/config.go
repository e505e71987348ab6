// Package reconciler sequences the multi-pass reconciliation of two
// ledgers: a direct tolerance pass, an extended-window exact-amount
// pass, aggregation fallbacks on each side, and a residual pass that
// classifies whatever is left. It owns the consumption state between
// passes and assembles the final classified record list.
//
// A run is a pure, finite computation: given identical ledgers and an
// identical configuration it produces identical output. Either all five
// passes complete and every entry is classified, or the run aborts
// before the first pass on a configuration error; partially reconciled
// state is never returned.
//
// Example usage:
//
//	cfg := reconciler.DefaultConfig()
//	cfg.DateToleranceDays = 2
//
//	orch, err := reconciler.NewOrchestrator(cfg, log)
//	if err != nil {
//		return err
//	}
//	result, err := orch.Reconcile(bankEntries, receivableEntries)
package reconciler

import (
	"fmt"

	"ledger-audit-service/internal/matcher"

	"github.com/shopspring/decimal"
)

// Config holds the tolerance parameters for one reconciliation run.
// All decisions are deterministic given a fixed Config and input order.
type Config struct {
	// DateToleranceDays is the date window for the direct and
	// aggregation passes
	DateToleranceDays int `json:"date_tolerance_days"`

	// ExtendedDateToleranceDays is the wider window for the
	// exact-amount fallback pass; it captures settlement posting delays
	ExtendedDateToleranceDays int `json:"extended_date_tolerance_days"`

	// AmountTolerance decides when two amounts are the same value
	AmountTolerance matcher.AmountTolerance `json:"amount_tolerance"`
}

// DefaultConfig returns the tolerances used for routine monthly runs:
// a two-day settlement lag and 1% amount shrinkage, with a fifteen-day
// window for exact-amount stragglers.
func DefaultConfig() *Config {
	return &Config{
		DateToleranceDays:         2,
		ExtendedDateToleranceDays: 15,
		AmountTolerance:           matcher.PercentTolerance(decimal.New(1, -2)),
	}
}

// StrictConfig returns a configuration that only accepts same-day,
// cent-exact correspondence
func StrictConfig() *Config {
	return &Config{
		DateToleranceDays:         0,
		ExtendedDateToleranceDays: 0,
		AmountTolerance:           matcher.AbsoluteTolerance(decimal.Zero),
	}
}

// Validate checks the configuration before any pass runs. A bad
// tolerance aborts the run here; no partial classification is possible.
func (c *Config) Validate() error {
	if c.DateToleranceDays < 0 {
		return fmt.Errorf("date tolerance days cannot be negative: %d", c.DateToleranceDays)
	}

	if c.ExtendedDateToleranceDays < 0 {
		return fmt.Errorf("extended date tolerance days cannot be negative: %d", c.ExtendedDateToleranceDays)
	}

	if c.ExtendedDateToleranceDays < c.DateToleranceDays {
		return fmt.Errorf("extended date tolerance (%d) cannot be narrower than the default tolerance (%d)",
			c.ExtendedDateToleranceDays, c.DateToleranceDays)
	}

	if err := c.AmountTolerance.Validate(); err != nil {
		return fmt.Errorf("invalid amount tolerance: %w", err)
	}

	return nil
}

// Clone creates a copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}
