package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/devforge/internal/checkpoint"
	"github.com/fyrsmithlabs/devforge/internal/logging"
	"github.com/fyrsmithlabs/devforge/internal/store"
	"github.com/fyrsmithlabs/devforge/internal/workflow"
)

// seedProject writes a project in the backend_dev phase with one checkpoint.
func seedProject(t *testing.T, root string) {
	t.Helper()
	ctx := context.Background()
	fs, err := store.NewFileStore(root, logging.NewNop())
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	matrix := &workflow.DecisionMatrix{Questions: []workflow.Question{
		{ID: "arch_01", Category: "architecture", Question: "Monolith or microservices?"},
	}}
	p := workflow.NewProject("shop", "web-app", "An online store", []string{"cart"}, matrix, now)
	kit := &workflow.SpecKit{GeneratedAt: now}
	for _, id := range []string{"T001", "T002", "T003", "T004"} {
		kit.Tasks = append(kit.Tasks, workflow.Task{ID: id, Title: "Task " + id, Type: "backend"})
	}
	p.ApproveArchitecture([]workflow.Answer{{QuestionID: "arch_01", Answer: "Monolith"}}, kit, now)
	p.Ledger.RecordBatch([]string{"T001"})
	p.AddIssues([]string{"flaky migration"})

	cp := &checkpoint.Checkpoint{
		ID:               "cp-1",
		Project:          "shop",
		Sequence:         1,
		Timestamp:        now,
		Phase:            p.CurrentPhase.String(),
		CompletedTaskIDs: p.Ledger.Checkpoint(),
		Issues:           []string{"flaky migration"},
		TasksCompleted:   1,
		OverallProgress:  p.OverallProgress(),
	}
	p.Progress.CheckpointCount = 1
	p.Progress.CurrentTaskID = "T002"
	require.NoError(t, fs.AppendCheckpoint(ctx, "shop", cp))
	require.NoError(t, fs.SaveSnapshot(ctx, p, cp))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:    dev")
	assert.Contains(t, out, "Commit:")
}

func TestStatusCmd(t *testing.T) {
	root := t.TempDir()
	seedProject(t, root)

	out, err := execute(t, "status", "shop", "--output-dir", root)

	require.NoError(t, err)
	assert.Contains(t, out, "shop")
	assert.Contains(t, out, "backend_dev")
	assert.Contains(t, out, "1 / 4")
	assert.Contains(t, out, "Current task")
	assert.Contains(t, out, "T002")
	assert.NotContains(t, out, "T001 Task")
	assert.Contains(t, out, "flaky migration")
	assert.Contains(t, out, "spec_kit")
}

func TestStatusCmd_ListsProjects(t *testing.T) {
	root := t.TempDir()

	out, err := execute(t, "status", "--output-dir", root)
	require.NoError(t, err)
	assert.Contains(t, out, "no projects")

	seedProject(t, root)
	out, err = execute(t, "status", "--output-dir", root)
	require.NoError(t, err)
	assert.Contains(t, out, "shop")
	assert.Contains(t, out, "backend_dev")
	assert.Contains(t, out, "25%")
}

func TestStatusCmd_Errors(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "missing project", args: []string{"status", "ghost", "--output-dir", root}, wantErr: "no saved state"},
		{name: "invalid name", args: []string{"status", "../etc", "--output-dir", root}, wantErr: "invalid"},
		{name: "too many arguments", args: []string{"status", "a", "b", "--output-dir", root}, wantErr: "accepts at most 1 arg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResumeCmd(t *testing.T) {
	root := t.TempDir()
	seedProject(t, root)

	t.Run("prints the continuation prompt", func(t *testing.T) {
		out, err := execute(t, "resume", "shop", "--output-dir", root)
		require.NoError(t, err)
		assert.Contains(t, out, "# Continuation Prompt: shop")
	})

	t.Run("lists checkpoints", func(t *testing.T) {
		out, err := execute(t, "resume", "shop", "--history", "--output-dir", root)
		require.NoError(t, err)
		assert.Contains(t, out, "#1")
		assert.Contains(t, out, "1 tasks")
		assert.Contains(t, out, "manual")
	})

	t.Run("missing project", func(t *testing.T) {
		_, err := execute(t, "resume", "ghost", "--output-dir", root)
		require.Error(t, err)
	})
}

func TestProgressBar(t *testing.T) {
	assert.Contains(t, progressBar(50, 10), "█████░░░░░")
	assert.Contains(t, progressBar(150, 4), "████")
	assert.Contains(t, progressBar(-3, 4), "░░░░")
	assert.Contains(t, progressBar(-3, 4), "0%")
}
