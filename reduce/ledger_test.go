package reduce

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailureLedger_SummaryPrintsZeroCounts(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFailureLedger().WriteSummary(&buf))
	assert.Equal(t, "SubtractAndCenter: 0 failures\n-- Missing Norms: 0\n-- Missing Shifts: 0\n-- Tool Failures: 0\n", buf.String())
}

func TestFailureLedger_Record(t *testing.T) {
	l := NewFailureLedger()
	l.Record("a.fits", StateNormMissing)
	l.Record("b.fits", StateShiftMissing)
	l.Record("c.fits", StateFailed)
	l.Record("d.fits", StateDone)
	l.Record("e.fits", StateShiftMissing)

	assert.Equal(t, 4, l.Total())
	assert.False(t, l.Empty())
	assert.Equal(t, []string{"b.fits", "e.fits"}, l.MissingShifts)

	var buf bytes.Buffer
	require.NoError(t, l.WriteSummary(&buf))
	assert.Equal(t, "SubtractAndCenter: 4 failures\n-- Missing Norms: 1\n-- Missing Shifts: 2\n-- Tool Failures: 1\n", buf.String())
}
