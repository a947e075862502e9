package reduce

import (
	"fmt"
	"io"
)

// FailureLedger records science frames that could not be reduced, by cause.
// It only grows during a run and never aborts it.
type FailureLedger struct {
	MissingNorms  []string `json:"missing_norms" yaml:"missing_norms"`
	MissingShifts []string `json:"missing_shifts" yaml:"missing_shifts"`
	ToolFailures  []string `json:"tool_failures" yaml:"tool_failures"`
}

// NewFailureLedger returns a ledger with empty, non-nil sets.
func NewFailureLedger() FailureLedger {
	return FailureLedger{
		MissingNorms:  []string{},
		MissingShifts: []string{},
		ToolFailures:  []string{},
	}
}

// Record files filename under the set matching a terminal failure state.
// Other states are ignored.
func (l *FailureLedger) Record(filename string, state FrameState) {
	switch state {
	case StateNormMissing:
		l.MissingNorms = append(l.MissingNorms, filename)
	case StateShiftMissing:
		l.MissingShifts = append(l.MissingShifts, filename)
	case StateFailed:
		l.ToolFailures = append(l.ToolFailures, filename)
	}
}

// Total is the number of failed frames across all causes.
func (l FailureLedger) Total() int {
	return len(l.MissingNorms) + len(l.MissingShifts) + len(l.ToolFailures)
}

// Empty reports whether no frame failed.
func (l FailureLedger) Empty() bool { return l.Total() == 0 }

// WriteSummary prints the failure counts. Zero counts are printed too.
func (l FailureLedger) WriteSummary(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"SubtractAndCenter: %d failures\n-- Missing Norms: %d\n-- Missing Shifts: %d\n-- Tool Failures: %d\n",
		l.Total(), len(l.MissingNorms), len(l.MissingShifts), len(l.ToolFailures))
	return err
}
