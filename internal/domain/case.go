package domain

import "time"

// Case one vacancy process (one spreadsheet row).
// Phases is indexed in phase-schema order; a nil entry means the phase was never reached.
type Case struct {
	PropertyCode string
	Contact      string
	CreatedAt    *time.Time
	Phases       []*time.Time

	Timing Timing
}

// Timing values derived from the raw phase timestamps
type Timing struct {
	StartAt *time.Time
	EndAt   *time.Time // EndReal, or the derivation "now" for open cases
	EndReal *time.Time

	Finalized     bool
	TotalDuration *time.Duration // nil when a bound is missing or the difference is negative

	TerminalPhase string // first end candidate present, "" when none
}

// At phase timestamp by schema index; out of range reads as absent.
func (c *Case) At(i int) *time.Time {
	if i < 0 || i >= len(c.Phases) {
		return nil
	}
	return c.Phases[i]
}

// AnyPhase reports whether at least one phase timestamp is present.
func (c *Case) AnyPhase() bool {
	for _, t := range c.Phases {
		if t != nil {
			return true
		}
	}
	return false
}
