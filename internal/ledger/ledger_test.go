package ledger

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_RecordCompletion(t *testing.T) {
	var l Ledger

	assert.Equal(t, 1, l.RecordCompletion("T001"))
	assert.Equal(t, 2, l.RecordCompletion("T002"))
	assert.Equal(t, 2, l.TasksCompleted)
	assert.Equal(t, "T002", l.LastTaskID)
	assert.Equal(t, []string{"T001", "T002"}, l.Pending)
}

func TestLedger_RecordBatch_AcceptsDuplicatesAndUnknownIDs(t *testing.T) {
	var l Ledger
	l.RecordBatch([]string{"T001", "T001", "not-a-task"})

	assert.Equal(t, 3, l.TasksCompleted)
	assert.Equal(t, 3, l.SinceCheckpoint())

	l.RecordBatch(nil)
	assert.Equal(t, 3, l.TasksCompleted)
}

func TestLedger_Checkpoint(t *testing.T) {
	var l Ledger
	l.RecordBatch([]string{"T001", "T002"})

	delta := l.Checkpoint()
	assert.Equal(t, []string{"T001", "T002"}, delta)
	assert.Equal(t, 2, l.LastCheckpointTask)
	assert.Zero(t, l.SinceCheckpoint())
	assert.Empty(t, l.Pending)
	assert.Equal(t, []string{"T001", "T002"}, l.History)

	// An empty checkpoint yields an empty, non-nil delta.
	delta = l.Checkpoint()
	require.NotNil(t, delta)
	assert.Empty(t, delta)
}

func TestLedger_Due(t *testing.T) {
	var l Ledger
	for i := 1; i <= 19; i++ {
		l.RecordCompletion(fmt.Sprintf("T%03d", i))
	}
	assert.False(t, l.Due(20))

	l.RecordCompletion("T020")
	assert.True(t, l.Due(20))
	assert.False(t, l.Due(0))
}

func TestLedger_CounterInvariant(t *testing.T) {
	var l Ledger
	ops := []func(){
		func() { l.RecordCompletion("a") },
		func() { l.Checkpoint() },
		func() { l.RecordBatch([]string{"b", "c"}) },
		func() { l.RecordCompletion("") },
		func() { l.Checkpoint() },
		func() { l.Checkpoint() },
	}
	for _, op := range ops {
		op()
		assert.GreaterOrEqual(t, l.TasksCompleted, l.LastCheckpointTask)
	}
}

func TestLedger_Clone(t *testing.T) {
	var l Ledger
	l.RecordCompletion("T001")

	c := l.Clone()
	c.RecordCompletion("T002")

	assert.Equal(t, 1, l.TasksCompleted)
	assert.Equal(t, []string{"T001"}, l.Pending)
	assert.Equal(t, []string{"T001", "T002"}, c.Pending)
}
