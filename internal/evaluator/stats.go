package evaluator

import "sync/atomic"

// DegradedModeThreshold is the drop-rate threshold from spec.md §7:
// "a DegradedMode flag is raised if the drop rate exceeds a threshold."
const DegradedModeThreshold = 0.05

// Evaluator tracks drop statistics across the events a daemon processes.
// spec.md §7's propagation policy ("errors inside the evaluator are
// non-fatal — the offending event is dropped and counted") is satisfied
// by calling RecordDrop on every dropped event; DegradedMode reports the
// resulting flag instead of leaving it as a bare concept.
type Evaluator struct {
	processed atomic.Uint64
	dropped   atomic.Uint64
}

// RecordProcessed counts one event that was resolved and injected
// without error.
func (e *Evaluator) RecordProcessed() {
	e.processed.Add(1)
}

// RecordDrop counts one event dropped after an evaluator or injection
// error.
func (e *Evaluator) RecordDrop() {
	e.dropped.Add(1)
}

// DropRate returns the fraction of events dropped so far, or 0 if none
// have been recorded yet.
func (e *Evaluator) DropRate() float64 {
	dropped := e.dropped.Load()
	total := e.processed.Load() + dropped
	if total == 0 {
		return 0
	}
	return float64(dropped) / float64(total)
}

// DegradedMode reports whether the drop rate has crossed
// DegradedModeThreshold.
func (e *Evaluator) DegradedMode() bool {
	return e.DropRate() > DegradedModeThreshold
}
