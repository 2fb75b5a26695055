package stimuli_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sarchlab/hcistim/stimuli"
)

func TestReservationTableKindsAreIndependent(t *testing.T) {
	rsv := stimuli.NewReservationTable()

	rsv.Reserve(stimuli.AccessWrite, 16)

	assert.True(t, rsv.Contains(stimuli.AccessWrite, 16))
	assert.False(t, rsv.Contains(stimuli.AccessRead, 16))
}

// The table only grows: there is no release operation, so a reservation
// holds for the rest of the run.
func TestReservationTableIsMonotonic(t *testing.T) {
	rsv := stimuli.NewReservationTable()

	for addr := uint64(0); addr < 40; addr += 4 {
		rsv.Reserve(stimuli.AccessWrite, addr)
	}

	rsv.Reserve(stimuli.AccessWrite, 16)
	rsv.Reserve(stimuli.AccessRead, 16)

	assert.Equal(t, 10, rsv.Count(stimuli.AccessWrite))
	assert.Equal(t, 1, rsv.Count(stimuli.AccessRead))
}
