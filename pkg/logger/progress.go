package logger

import (
	"time"
)

// RunTracker logs the progress of one reconciliation run at pass
// boundaries: how many entries each pass consumed and what it left for
// the next one. The core never logs mid-pass, so this is the only
// logging surface a run touches.
type RunTracker struct {
	logger     Logger
	startTime  time.Time
	leftTotal  int
	rightTotal int
	prevLeft   int
	prevRight  int
}

// StartRun begins tracking a reconciliation run over ledgers of the
// given sizes
func StartRun(log Logger, leftTotal, rightTotal int) *RunTracker {
	if log == nil {
		log = GetGlobalLogger()
	}

	tracker := &RunTracker{
		logger:     log.WithComponent("run_tracker"),
		startTime:  time.Now(),
		leftTotal:  leftTotal,
		rightTotal: rightTotal,
		prevLeft:   leftTotal,
		prevRight:  rightTotal,
	}

	tracker.logger.WithFields(Fields{
		"left_entries":  leftTotal,
		"right_entries": rightTotal,
	}).Info("Starting reconciliation run")

	return tracker
}

// Pass records the completion of one matching pass and the consumption
// state it left behind
func (t *RunTracker) Pass(name string, remainingLeft, remainingRight int) {
	t.logger.WithFields(Fields{
		"pass":            name,
		"consumed_left":   t.prevLeft - remainingLeft,
		"consumed_right":  t.prevRight - remainingRight,
		"remaining_left":  remainingLeft,
		"remaining_right": remainingRight,
	}).Debug("Pass completed")

	t.prevLeft = remainingLeft
	t.prevRight = remainingRight
}

// Complete logs the final classification statistics for the run
func (t *RunTracker) Complete(records, unmatched int) {
	t.logger.WithFields(Fields{
		"left_entries":  t.leftTotal,
		"right_entries": t.rightTotal,
		"records":       records,
		"unmatched":     unmatched,
		"duration":      time.Since(t.startTime).String(),
	}).Info("Reconciliation run completed")
}
