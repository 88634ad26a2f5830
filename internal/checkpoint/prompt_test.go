package checkpoint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContinuationPrompt(t *testing.T) {
	w, _ := newTestWriter(t, &memoryLog{})
	p := approvedProject(4)
	p.Ledger.RecordCompletion("T001")
	current := "T002"

	cp, err := w.Create(context.Background(), p, Request{CurrentTaskID: &current, Issues: []string{"rate limiter untested"}})
	require.NoError(t, err)

	prompt := ContinuationPrompt(p, cp)

	assert.Contains(t, prompt, "todo-app")
	assert.Contains(t, prompt, "Current phase: backend_dev")
	assert.Contains(t, prompt, "Progress: 25% (1 of 4 tasks completed)")
	assert.Contains(t, prompt, "Last completed task: T001")
	assert.Contains(t, prompt, "Current task: T002")
	assert.Contains(t, prompt, "- rate limiter untested")
	assert.Contains(t, prompt, "Next command: generate_api_tests")
	assert.Contains(t, prompt, "Last checkpoint: #1 (manual)")
	assert.Contains(t, prompt, "T002 [high] Task T002")
	assert.NotContains(t, prompt, "T001 [high]")
	assert.Contains(t, prompt, "decision_matrix, spec_kit")
}

func TestContinuationPrompt_NoCheckpoint(t *testing.T) {
	p := approvedProject(0)
	prompt := ContinuationPrompt(p, nil)

	assert.Contains(t, prompt, "Last checkpoint: none")
	assert.Contains(t, prompt, "Last completed task: none")
	assert.Contains(t, prompt, "## Outstanding issues\n- none")
	assert.Contains(t, prompt, "Progress: 0% (0 of 0 tasks completed)")
	assert.NotContains(t, prompt, "## Remaining tasks")
}

func TestContinuationPrompt_IsPure(t *testing.T) {
	p := approvedProject(3)
	before := p.Clone()

	first := ContinuationPrompt(p, nil)
	second := ContinuationPrompt(p, nil)

	assert.Equal(t, first, second)
	assert.Equal(t, before, p)
}
