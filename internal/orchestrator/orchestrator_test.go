package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/devforge/internal/blueprint"
	"github.com/fyrsmithlabs/devforge/internal/checkpoint"
	"github.com/fyrsmithlabs/devforge/internal/events"
	"github.com/fyrsmithlabs/devforge/internal/generate"
	"github.com/fyrsmithlabs/devforge/internal/knowledge"
	"github.com/fyrsmithlabs/devforge/internal/logging"
	"github.com/fyrsmithlabs/devforge/internal/store"
	"github.com/fyrsmithlabs/devforge/internal/telemetry"
	"github.com/fyrsmithlabs/devforge/internal/workflow"
)

var fixedNow = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

var errBoom = errors.New("boom")

type fakeMatrix struct {
	mu  sync.Mutex
	err error
}

func (f *fakeMatrix) Generate(_ context.Context, req generate.MatrixRequest) (*workflow.DecisionMatrix, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &workflow.DecisionMatrix{Questions: []workflow.Question{
		{ID: "arch_01", Category: "architecture", Question: "Monolith or microservices?", Options: []string{"Monolith", "Microservices"}, Recommendation: "Monolith"},
		{ID: "db_01", Category: "database", Question: "Which database?", Options: []string{"PostgreSQL", "SQLite"}},
	}}, nil
}

type fakeSpecKit struct {
	tasks int
	calls int
	err   error
}

func (f *fakeSpecKit) Generate(_ context.Context, p *workflow.Project, _ []workflow.Answer, now time.Time) (*workflow.SpecKit, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	kit := &workflow.SpecKit{
		Constitution: workflow.Constitution{Principles: []workflow.Principle{{Name: "Simplicity", Description: "Keep it small"}}},
		Specification: workflow.Specification{
			Overview: p.Description,
			UserStories: []workflow.UserStory{{
				ID: "US-1", AsA: "user", IWant: "to add todos", SoThat: "I remember things",
				AcceptanceCriteria: []string{"a todo can be created"},
			}},
		},
		TechnicalPlan: workflow.TechnicalPlan{
			Architecture: "Monolith",
			Endpoints: []workflow.Endpoint{
				{Method: "GET", Path: "/todos", Description: "List todos"},
				{Method: "POST", Path: "/todos", Description: "Create a todo", RequiresAuth: true},
			},
		},
		GeneratedAt: now,
	}
	for i := 1; i <= f.tasks; i++ {
		kit.Tasks = append(kit.Tasks, workflow.Task{
			ID: fmt.Sprintf("T%03d", i), Title: fmt.Sprintf("Task %d", i), Type: "backend", Priority: "medium", EstimatedHours: 1,
		})
	}
	return kit, nil
}

// faultyStore wraps a FileStore and fails selected operations.
type faultyStore struct {
	*store.FileStore

	mu         sync.Mutex
	failWrite  string // path prefix
	failAppend bool
	failSave   bool
}

func (s *faultyStore) set(fn func(s *faultyStore)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (s *faultyStore) WriteFile(ctx context.Context, project, rel string, data []byte) (string, error) {
	s.mu.Lock()
	fail := s.failWrite != "" && strings.HasPrefix(rel, s.failWrite)
	s.mu.Unlock()
	if fail {
		return "", errBoom
	}
	return s.FileStore.WriteFile(ctx, project, rel, data)
}

func (s *faultyStore) AppendCheckpoint(ctx context.Context, project string, cp *checkpoint.Checkpoint) error {
	s.mu.Lock()
	fail := s.failAppend
	s.mu.Unlock()
	if fail {
		return errBoom
	}
	return s.FileStore.AppendCheckpoint(ctx, project, cp)
}

func (s *faultyStore) SaveSnapshot(ctx context.Context, p *workflow.Project, last *checkpoint.Checkpoint) error {
	s.mu.Lock()
	fail := s.failSave
	s.mu.Unlock()
	if fail {
		return errBoom
	}
	return s.FileStore.SaveSnapshot(ctx, p, last)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type harness struct {
	o       *Orchestrator
	store   *faultyStore
	matrix  *fakeMatrix
	specKit *fakeSpecKit
	events  *recordingPublisher
	logger  *logging.TestLogger
	root    string
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	return newHarnessAt(t, t.TempDir(), opts...)
}

func newHarnessAt(t *testing.T, root string, opts ...Option) *harness {
	t.Helper()
	logger := logging.NewTestLogger()
	fs, err := store.NewFileStore(root, logger.Logger)
	require.NoError(t, err)

	h := &harness{
		store:   &faultyStore{FileStore: fs},
		matrix:  &fakeMatrix{},
		specKit: &fakeSpecKit{tasks: 40},
		events:  &recordingPublisher{},
		logger:  logger,
		root:    root,
	}
	clock := func() time.Time { return fixedNow }
	writer, err := checkpoint.NewWriter(h.store, logger.Logger, checkpoint.WithClock(clock))
	require.NoError(t, err)

	opts = append([]Option{WithClock(clock), WithPublisher(h.events)}, opts...)
	h.o, err = New(h.store, writer, h.matrix, h.specKit, logger.Logger, opts...)
	require.NoError(t, err)
	return h
}

func (h *harness) start(t *testing.T, name string) {
	t.Helper()
	_, err := h.o.StartProject(context.Background(), StartProjectRequest{
		Name: name, Type: "api", Description: "A todo API", Requirements: []string{"CRUD todos", "auth"},
	})
	require.NoError(t, err)
}

func (h *harness) approve(t *testing.T, name string) {
	t.Helper()
	h.start(t, name)
	_, err := h.o.ApproveArchitecture(context.Background(), name, []workflow.Answer{{QuestionID: "arch_01", Answer: "Monolith"}})
	require.NoError(t, err)
}

func (h *harness) project(t *testing.T, name string) *workflow.Project {
	t.Helper()
	p, ok := h.o.Project(name)
	require.True(t, ok, "project %s not registered", name)
	return p
}

func (h *harness) exists(name, rel string) bool {
	_, err := os.Stat(filepath.Join(h.root, name, rel))
	return err == nil
}

func TestNew_RequiresCollaborators(t *testing.T) {
	fs, err := store.NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	writer, err := checkpoint.NewWriter(fs, nil)
	require.NoError(t, err)

	_, err = New(nil, writer, &fakeMatrix{}, &fakeSpecKit{}, nil)
	assert.Error(t, err)
	_, err = New(fs, nil, &fakeMatrix{}, &fakeSpecKit{}, nil)
	assert.Error(t, err)
	_, err = New(fs, writer, nil, &fakeSpecKit{}, nil)
	assert.Error(t, err)
	_, err = New(fs, writer, &fakeMatrix{}, nil, nil)
	assert.Error(t, err)

	o, err := New(fs, writer, &fakeMatrix{}, &fakeSpecKit{}, nil, WithThreshold(0))
	require.NoError(t, err)
	assert.Equal(t, checkpoint.DefaultThreshold, o.Threshold())
}

func TestStartProject(t *testing.T) {
	h := newHarness(t)
	report, err := h.o.StartProject(context.Background(), StartProjectRequest{
		Name: "todo-app", Type: "api", Description: "A todo API", Requirements: []string{"CRUD todos", " ", "auth"},
	})
	require.NoError(t, err)

	assert.Equal(t, CmdStartProject, report.Command)
	assert.Equal(t, workflow.PhaseDecisionMatrix, report.Phase)
	require.NotNil(t, report.Matrix)
	assert.NotEmpty(t, report.Matrix.Questions)
	assert.Contains(t, report.Text, "approve_architecture")
	assert.Equal(t, []string{decisionMatrixPath}, report.Files)

	p := h.project(t, "todo-app")
	assert.Equal(t, workflow.PhaseDecisionMatrix, p.CurrentPhase)
	assert.Equal(t, []workflow.Phase{workflow.PhaseRequirements}, p.CompletedPhases)
	assert.Equal(t, []string{"CRUD todos", "auth"}, p.Requirements)
	assert.Equal(t, []string{decisionMatrixPath}, p.Artifacts[workflow.ArtifactDecisionMatrix].Paths)

	assert.True(t, h.exists("todo-app", decisionMatrixPath))
	assert.True(t, h.exists("todo-app", "PROJECT.yaml"))
	assert.True(t, h.exists("todo-app", ".devforge/state.json"))
	assert.Equal(t, []string{"workflow.start_project"}, h.events.types())
	assert.NotContains(t, report.Text, "replaced the saved state")
}

func TestStartProject_Conflict(t *testing.T) {
	h := newHarness(t)
	h.start(t, "todo-app")

	_, err := h.o.StartProject(context.Background(), StartProjectRequest{Name: "todo-app", Requirements: []string{"x"}})
	var conflict *workflow.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "todo-app", conflict.Project)
}

func TestStartProject_ReplacesUnloadedSavedState(t *testing.T) {
	root := t.TempDir()
	h := newHarnessAt(t, root)
	h.approve(t, "todo-app")
	ctx := context.Background()
	_, err := h.o.CompleteTask(ctx, "todo-app", "T001")
	require.NoError(t, err)

	restarted := newHarnessAt(t, root)
	report, err := restarted.o.StartProject(ctx, StartProjectRequest{Name: "todo-app", Requirements: []string{"x"}})
	require.NoError(t, err)
	assert.Contains(t, report.Text, "Note: replaced the saved state of 'todo-app' on disk")
	assert.Contains(t, report.Text, CmdResumeProject)
	restarted.logger.AssertCommandLogged(t, CmdStartProject, zapcore.WarnLevel, "replaced saved project state")

	snap, err := restarted.store.LoadSnapshot(ctx, "todo-app")
	require.NoError(t, err)
	assert.Equal(t, workflow.PhaseDecisionMatrix, snap.Project.CurrentPhase)
	assert.Zero(t, snap.Project.Ledger.TasksCompleted)
}

func TestStartProject_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		req   StartProjectRequest
		field string
	}{
		{"no requirements", StartProjectRequest{Name: "a", Requirements: []string{"  "}}, "requirements"},
		{"bad name", StartProjectRequest{Name: "../etc", Requirements: []string{"x"}}, "project_name"},
		{"empty name", StartProjectRequest{Requirements: []string{"x"}}, "project_name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.o.StartProject(context.Background(), tt.req)
			var invalid *workflow.InvalidInputError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.field, invalid.Field)
			assert.Empty(t, h.o.Registry().Names())
		})
	}
}

func TestStartProject_GeneratorFailureThenRetry(t *testing.T) {
	h := newHarness(t)
	h.matrix.err = errBoom

	_, err := h.o.StartProject(context.Background(), StartProjectRequest{Name: "todo-app", Requirements: []string{"x"}})
	require.ErrorIs(t, err, errBoom)
	assert.Empty(t, h.o.Registry().Names())
	assert.False(t, h.exists("todo-app", ".devforge/state.json"))
	h.logger.AssertCommandLogged(t, CmdStartProject, zapcore.ErrorLevel, "command failed")

	h.matrix.err = nil
	h.start(t, "todo-app")
	assert.Equal(t, workflow.PhaseDecisionMatrix, h.project(t, "todo-app").CurrentPhase)
}

func TestApproveArchitecture_BeforeStart(t *testing.T) {
	h := newHarness(t)
	_, err := h.o.ApproveArchitecture(context.Background(), "todo-app", []workflow.Answer{{QuestionID: "arch_01", Answer: "Monolith"}})

	require.True(t, workflow.IsPrecondition(err))
	assert.Contains(t, err.Error(), "Project 'todo-app' not started")
	assert.Contains(t, err.Error(), "start_project")
	assert.Empty(t, h.o.Registry().Names())
	assert.Zero(t, h.specKit.calls)
}

func TestApproveArchitecture(t *testing.T) {
	h := newHarness(t)
	h.start(t, "todo-app")

	report, err := h.o.ApproveArchitecture(context.Background(), "todo-app", []workflow.Answer{
		{QuestionID: "arch_01", Answer: "Monolith"},
		{QuestionID: "db_01", Answer: ""},
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.PhaseBackendDev, report.Phase)
	assert.Contains(t, report.Text, "40 tasks")
	assert.Contains(t, report.Text, "generate_api_tests")

	p := h.project(t, "todo-app")
	assert.Equal(t, []workflow.Phase{workflow.PhaseRequirements, workflow.PhaseDecisionMatrix, workflow.PhaseSpecKit}, p.CompletedPhases)
	require.NotNil(t, p.SpecKit)
	require.NotNil(t, p.Progress)
	assert.Equal(t, 40, p.Progress.TotalTasks)
	assert.Equal(t, []workflow.Answer{{QuestionID: "arch_01", Answer: "Monolith"}}, p.DecisionMatrix.Answers)
	assert.True(t, p.Artifacts.Has(workflow.ArtifactSpecKit))
	for _, f := range []string{"docs/CONSTITUTION.md", "docs/SPECIFICATION.md", "docs/TECHNICAL_PLAN.md", "docs/TASKS.md"} {
		assert.True(t, h.exists("todo-app", f), f)
	}
}

func TestApproveArchitecture_Rejections(t *testing.T) {
	h := newHarness(t)
	h.start(t, "todo-app")

	_, err := h.o.ApproveArchitecture(context.Background(), "todo-app", []workflow.Answer{{QuestionID: "arch_01", Answer: " "}})
	var invalid *workflow.InvalidInputError
	require.ErrorAs(t, err, &invalid)
	assert.Nil(t, h.project(t, "todo-app").SpecKit)

	_, err = h.o.ApproveArchitecture(context.Background(), "todo-app", []workflow.Answer{{QuestionID: "arch_01", Answer: "Monolith"}})
	require.NoError(t, err)

	_, err = h.o.ApproveArchitecture(context.Background(), "todo-app", []workflow.Answer{{QuestionID: "arch_01", Answer: "Microservices"}})
	require.True(t, workflow.IsPrecondition(err))
	assert.Equal(t, 1, h.specKit.calls)
	assert.Equal(t, "Monolith", h.project(t, "todo-app").DecisionMatrix.Answers[0].Answer)
}

func TestGenerateAPITests(t *testing.T) {
	h := newHarness(t)
	h.approve(t, "todo-app")

	report, err := h.o.GenerateAPITests(context.Background(), "todo-app")
	require.NoError(t, err)
	assert.Equal(t, workflow.PhaseAPITesting, report.Phase)
	assert.Contains(t, report.Files, "postman/collection.json")
	assert.Contains(t, report.Text, "newman run")

	p := h.project(t, "todo-app")
	assert.True(t, p.Artifacts.Has(workflow.ArtifactPostman))
	assert.Equal(t, workflow.PhaseAPITesting, p.CurrentPhase)
	assert.Equal(t, workflow.PhaseBackendDev, p.CompletedPhases[len(p.CompletedPhases)-1])
	for _, env := range generate.Environments {
		assert.True(t, h.exists("todo-app", "postman/"+env+".environment.json"), env)
	}
}

func TestGenerateAPITests_RequiresSpecKit(t *testing.T) {
	h := newHarness(t)
	h.start(t, "todo-app")

	_, err := h.o.GenerateAPITests(context.Background(), "todo-app")
	require.True(t, workflow.IsPrecondition(err))
	assert.Equal(t, "spec-kit not generated; call approve_architecture first", err.Error())
}

func TestGenerateAPITests_RollbackAndRetry(t *testing.T) {
	t.Run("generator failure", func(t *testing.T) {
		calls := 0
		h := newHarness(t, WithAPITestGenerator(func(p *workflow.Project) ([]generate.File, error) {
			calls++
			if calls == 1 {
				return nil, errBoom
			}
			return generate.APITestFiles(p)
		}))
		h.approve(t, "todo-app")
		before := h.project(t, "todo-app")

		_, err := h.o.GenerateAPITests(context.Background(), "todo-app")
		require.ErrorIs(t, err, errBoom)
		after := h.project(t, "todo-app")
		assert.False(t, after.Artifacts.Has(workflow.ArtifactPostman))
		assert.Equal(t, before.CurrentPhase, after.CurrentPhase)
		assert.Equal(t, before.CompletedPhases, after.CompletedPhases)

		_, err = h.o.GenerateAPITests(context.Background(), "todo-app")
		require.NoError(t, err)
		assert.Equal(t, workflow.PhaseAPITesting, h.project(t, "todo-app").CurrentPhase)
	})

	t.Run("durable write failure", func(t *testing.T) {
		h := newHarness(t)
		h.approve(t, "todo-app")
		h.store.set(func(s *faultyStore) { s.failWrite = "postman/" })

		_, err := h.o.GenerateAPITests(context.Background(), "todo-app")
		require.ErrorIs(t, err, errBoom)
		assert.False(t, h.project(t, "todo-app").Artifacts.Has(workflow.ArtifactPostman))

		h.store.set(func(s *faultyStore) { s.failWrite = "" })
		_, err = h.o.GenerateAPITests(context.Background(), "todo-app")
		require.NoError(t, err)
	})

	t.Run("snapshot failure", func(t *testing.T) {
		h := newHarness(t)
		h.approve(t, "todo-app")
		h.store.set(func(s *faultyStore) { s.failSave = true })

		_, err := h.o.GenerateAPITests(context.Background(), "todo-app")
		require.ErrorIs(t, err, errBoom)
		p := h.project(t, "todo-app")
		assert.Equal(t, workflow.PhaseBackendDev, p.CurrentPhase)
		assert.False(t, p.Artifacts.Has(workflow.ArtifactPostman))

		snap, err := h.store.LoadSnapshot(context.Background(), "todo-app")
		require.NoError(t, err)
		assert.Equal(t, workflow.PhaseBackendDev, snap.Project.CurrentPhase)
	})
}

func TestAskFrontendQuestions(t *testing.T) {
	h := newHarness(t)
	_, err := h.o.AskFrontendQuestions(context.Background(), "todo-app")
	assert.True(t, workflow.IsNotFound(err))

	h.start(t, "todo-app")
	report, err := h.o.AskFrontendQuestions(context.Background(), "todo-app")
	require.NoError(t, err)
	assert.Contains(t, report.Text, "platform")
	assert.Contains(t, report.Text, "generate_frontend_prompt")
	assert.Equal(t, workflow.PhaseDecisionMatrix, h.project(t, "todo-app").CurrentPhase)
}

func TestGenerateFrontendPrompt(t *testing.T) {
	h := newHarness(t)
	h.approve(t, "todo-app")

	_, err := h.o.GenerateFrontendPrompt(context.Background(), "todo-app", workflow.FrontendAnswers{Platform: "photoshop"})
	var invalid *workflow.InvalidInputError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "platform", invalid.Field)

	report, err := h.o.GenerateFrontendPrompt(context.Background(), "todo-app", workflow.FrontendAnswers{
		Platform: "lovable", DesignStyle: "minimal", ColorScheme: "dark", PrimaryColor: "purple", UIFramework: "tailwind",
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.PhaseFrontendPrompt, report.Phase)
	assert.Contains(t, report.Text, "## Main Prompt")
	assert.True(t, h.exists("todo-app", frontendPromptPath))

	p := h.project(t, "todo-app")
	assert.True(t, p.Artifacts.Has(workflow.ArtifactFrontendPrompt))
	assert.Equal(t, workflow.PhaseAPITesting, p.CompletedPhases[len(p.CompletedPhases)-1])
}

func TestGenerateBDDTestsAndCompleteProject(t *testing.T) {
	h := newHarness(t)
	h.approve(t, "todo-app")

	_, err := h.o.CompleteProject(context.Background(), "todo-app")
	require.True(t, workflow.IsPrecondition(err))
	assert.Contains(t, err.Error(), "generate_bdd_tests")

	report, err := h.o.GenerateBDDTests(context.Background(), "todo-app")
	require.NoError(t, err)
	assert.Equal(t, workflow.PhaseBDDTesting, report.Phase)
	assert.Contains(t, report.Files, "tests/step-definitions/steps.ts")
	assert.True(t, h.exists("todo-app", "cucumber.js"))

	p := h.project(t, "todo-app")
	assert.Equal(t, workflow.PhaseFrontendIntegration, p.CompletedPhases[len(p.CompletedPhases)-1])

	report, err = h.o.CompleteProject(context.Background(), "todo-app")
	require.NoError(t, err)
	assert.Equal(t, workflow.PhaseComplete, report.Phase)
	require.NotNil(t, report.Checkpoint)
	assert.Equal(t, 1, report.Checkpoint.Sequence)

	p = h.project(t, "todo-app")
	assert.Equal(t, workflow.PhaseComplete, p.CurrentPhase)
	assert.Equal(t, workflow.PhaseBDDTesting, p.CompletedPhases[len(p.CompletedPhases)-1])

	_, err = h.o.CompleteProject(context.Background(), "todo-app")
	assert.True(t, workflow.IsPrecondition(err))
}

func TestCompleteTask_AutomaticCheckpoint(t *testing.T) {
	h := newHarness(t)
	h.approve(t, "todo-app")
	ctx := context.Background()

	for i := 1; i <= 19; i++ {
		report, err := h.o.CompleteTask(ctx, "todo-app", fmt.Sprintf("T%03d", i))
		require.NoError(t, err)
		assert.Nil(t, report.Checkpoint)
	}

	status, err := h.o.Status(ctx, "todo-app")
	require.NoError(t, err)
	assert.False(t, status.Status.CheckpointNeeded)
	assert.Equal(t, 19, status.Status.TasksSinceCheckpoint)
	assert.Contains(t, status.Text, `"checkpointNeeded": false`)

	report, err := h.o.CompleteTask(ctx, "todo-app", "T020")
	require.NoError(t, err)
	require.NotNil(t, report.Checkpoint)
	assert.True(t, report.Checkpoint.Auto)
	assert.Contains(t, report.Text, "Automatic checkpoint #1")

	p := h.project(t, "todo-app")
	assert.Equal(t, 20, p.Ledger.TasksCompleted)
	assert.Equal(t, 20, p.Ledger.LastCheckpointTask)
	assert.Zero(t, p.Ledger.SinceCheckpoint())
	assert.Equal(t, 50, p.Progress.OverallProgress)

	cps, err := h.store.Checkpoints(ctx, "todo-app")
	require.NoError(t, err)
	require.Len(t, cps, 1)
	assert.Len(t, cps[0].CompletedTaskIDs, 20)

	prompt, err := h.store.ContinuationPrompt(ctx, "todo-app")
	require.NoError(t, err)
	assert.Contains(t, prompt, "Last completed task: T020")
}

func TestCompleteTask_WarnsBeforeThreshold(t *testing.T) {
	h := newHarness(t, WithThreshold(6))
	h.approve(t, "todo-app")

	report, err := h.o.CompleteTask(context.Background(), "todo-app", "T001")
	require.NoError(t, err)
	assert.Contains(t, report.Text, "A checkpoint will be saved in 5 tasks")
	assert.Contains(t, report.Text, "Next task: T002")

	h.logger.AssertCommandLogged(t, CmdCompleteTask, logging.TraceLevel, "task recorded")
	h.logger.AssertField(t, "task recorded", "task_id", "T001")
	for _, e := range h.logger.ForProject("todo-app") {
		assert.NotEmpty(t, e.ContextMap()["command"], e.Message)
	}
}

func TestCompleteTask_CheckpointFailureRollsBack(t *testing.T) {
	h := newHarness(t, WithThreshold(3))
	h.approve(t, "todo-app")
	ctx := context.Background()

	for _, id := range []string{"T001", "T002"} {
		_, err := h.o.CompleteTask(ctx, "todo-app", id)
		require.NoError(t, err)
	}

	h.store.set(func(s *faultyStore) { s.failAppend = true })
	_, err := h.o.CompleteTask(ctx, "todo-app", "T003")
	require.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "task T003 not recorded")

	p := h.project(t, "todo-app")
	assert.Equal(t, 2, p.Ledger.TasksCompleted)
	assert.Zero(t, p.Ledger.LastCheckpointTask)
	assert.Zero(t, p.Progress.CheckpointCount)

	h.store.set(func(s *faultyStore) { s.failAppend = false })
	report, err := h.o.CompleteTask(ctx, "todo-app", "T003")
	require.NoError(t, err)
	require.NotNil(t, report.Checkpoint)
	assert.Equal(t, 1, report.Checkpoint.Sequence)

	p = h.project(t, "todo-app")
	assert.Equal(t, 3, p.Ledger.TasksCompleted)
	assert.Equal(t, 3, p.Ledger.LastCheckpointTask)
}

func TestCompleteTask_PromptFollowsCommittedState(t *testing.T) {
	h := newHarness(t, WithThreshold(3))
	h.approve(t, "todo-app")
	ctx := context.Background()

	for _, id := range []string{"T001", "T002"} {
		_, err := h.o.CompleteTask(ctx, "todo-app", id)
		require.NoError(t, err)
	}

	// A directory at the temp path fails the state.json write after the
	// automatic checkpoint has been appended.
	blocker := filepath.Join(h.root, "todo-app", ".devforge", "state.json.tmp")
	require.NoError(t, os.MkdirAll(filepath.Join(blocker, "x"), 0o755))

	_, err := h.o.CompleteTask(ctx, "todo-app", "T003")
	require.Error(t, err)

	prompt, err := h.store.ContinuationPrompt(ctx, "todo-app")
	require.NoError(t, err)
	assert.Contains(t, prompt, "Last completed task: T002")
	assert.Contains(t, prompt, "Last checkpoint: none")

	require.NoError(t, os.RemoveAll(blocker))
	report, err := h.o.CompleteTask(ctx, "todo-app", "T003")
	require.NoError(t, err)
	require.NotNil(t, report.Checkpoint)

	prompt, err = h.store.ContinuationPrompt(ctx, "todo-app")
	require.NoError(t, err)
	assert.Contains(t, prompt, "Last completed task: T003")
	assert.Contains(t, prompt, "Last checkpoint: #1")
}

func TestCompleteTask_Rejections(t *testing.T) {
	h := newHarness(t)
	h.start(t, "todo-app")

	_, err := h.o.CompleteTask(context.Background(), "todo-app", "T001")
	require.True(t, workflow.IsPrecondition(err))
	assert.Contains(t, err.Error(), "progress state not initialized")

	_, err = h.o.CompleteTask(context.Background(), "todo-app", "")
	var invalid *workflow.InvalidInputError
	assert.ErrorAs(t, err, &invalid)
}

func TestCompleteTask_ConcurrentCallsSerialize(t *testing.T) {
	h := newHarness(t)
	h.approve(t, "todo-app")

	var wg sync.WaitGroup
	for i := 1; i <= 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.o.CompleteTask(context.Background(), "todo-app", fmt.Sprintf("T%03d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	p := h.project(t, "todo-app")
	assert.Equal(t, 40, p.Ledger.TasksCompleted)
	assert.Equal(t, 40, p.Ledger.LastCheckpointTask)
	assert.Equal(t, 2, p.Progress.CheckpointCount)
}

func TestCreateCheckpoint(t *testing.T) {
	h := newHarness(t)
	h.approve(t, "todo-app")
	current := "T004"

	report, err := h.o.CreateCheckpoint(context.Background(), CheckpointRequest{
		Name:             "todo-app",
		CompletedTaskIDs: []string{"T001", "T002", "T002", "X999"},
		CurrentTaskID:    &current,
		Issues:           []string{"flaky migration", ""},
	})
	require.NoError(t, err)
	require.NotNil(t, report.Checkpoint)
	assert.False(t, report.Checkpoint.Auto)
	assert.Equal(t, 4, report.Checkpoint.TasksCompleted)
	assert.Equal(t, 10, report.Checkpoint.OverallProgress)
	assert.Contains(t, report.Text, "Continuation Prompt: todo-app")
	assert.Contains(t, report.Text, "flaky migration")

	p := h.project(t, "todo-app")
	assert.Equal(t, 4, p.Ledger.LastCheckpointTask)
	assert.Equal(t, "T004", p.Progress.CurrentTaskID)
	assert.Equal(t, []string{"flaky migration"}, p.Issues)
	assert.True(t, h.exists("todo-app", continuationPath))
}

func TestCreateCheckpoint_RequiresProgress(t *testing.T) {
	h := newHarness(t)
	h.start(t, "todo-app")

	_, err := h.o.CreateCheckpoint(context.Background(), CheckpointRequest{Name: "todo-app"})
	require.True(t, workflow.IsPrecondition(err))

	cps, err := h.store.Checkpoints(context.Background(), "todo-app")
	require.NoError(t, err)
	assert.Empty(t, cps)
}

func TestStatus(t *testing.T) {
	h := newHarness(t)
	_, err := h.o.Status(context.Background(), "todo-app")
	require.True(t, workflow.IsNotFound(err))
	assert.Equal(t, "Project 'todo-app' not found", err.Error())

	h.approve(t, "todo-app")
	report, err := h.o.Status(context.Background(), "todo-app")
	require.NoError(t, err)
	st := report.Status
	require.NotNil(t, st)
	assert.Equal(t, "todo-app", st.ProjectName)
	assert.Equal(t, workflow.PhaseBackendDev, st.CurrentPhase)
	assert.Equal(t, 40, st.TotalTasks)
	assert.Equal(t, 20, st.CheckpointThreshold)
	assert.Equal(t, CmdGenerateAPITests, st.NextCommand)
	assert.True(t, st.Artifacts.Has(workflow.ArtifactSpecKit))
	assert.Contains(t, report.Text, `"tasksSinceCheckpoint": 0`)
}

func TestResumeProject(t *testing.T) {
	root := t.TempDir()
	h := newHarnessAt(t, root)
	h.approve(t, "todo-app")
	ctx := context.Background()
	for i := 1; i <= 22; i++ {
		_, err := h.o.CompleteTask(ctx, "todo-app", fmt.Sprintf("T%03d", i))
		require.NoError(t, err)
	}

	// A fresh process sees the project on disk but not in memory.
	restarted := newHarnessAt(t, root)
	_, err := restarted.o.Status(ctx, "todo-app")
	require.True(t, workflow.IsPrecondition(err))
	assert.Contains(t, err.Error(), "resume_project")

	report, err := restarted.o.ResumeProject(ctx, "todo-app")
	require.NoError(t, err)
	assert.Equal(t, workflow.PhaseBackendDev, report.Phase)
	assert.Contains(t, report.Text, "Project 'todo-app' resumed")
	assert.Contains(t, report.Text, "Last checkpoint: #1 (automatic)")

	p := restarted.project(t, "todo-app")
	assert.Equal(t, 22, p.Ledger.TasksCompleted)
	assert.Equal(t, 20, p.Ledger.LastCheckpointTask)
	assert.Equal(t, "T022", p.Ledger.LastTaskID)

	// Resuming an active project leaves it alone.
	report, err = restarted.o.ResumeProject(ctx, "todo-app")
	require.NoError(t, err)
	assert.Contains(t, report.Text, "already active")

	// Work continues where it stopped.
	for i := 23; i <= 40; i++ {
		_, err := restarted.o.CompleteTask(ctx, "todo-app", fmt.Sprintf("T%03d", i))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, restarted.project(t, "todo-app").Progress.CheckpointCount)
}

func TestResumeProject_NotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.o.ResumeProject(context.Background(), "ghost")
	assert.True(t, workflow.IsNotFound(err))
}

func TestCheckKnowledgeBase_Disabled(t *testing.T) {
	h := newHarness(t)
	report, err := h.o.CheckKnowledgeBase(context.Background(), KnowledgeRequest{
		Name: "todo-app", Description: "A todo list application",
	})
	require.NoError(t, err)
	require.NotNil(t, report.Knowledge)
	assert.False(t, report.Knowledge.Enabled)
	assert.Contains(t, report.Text, "not configured")
}

type stubKnowledge struct{ err error }

func (s stubKnowledge) Check(context.Context, string, string, []string) (*knowledge.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &knowledge.Result{Enabled: true, Found: true, Keywords: []string{"todo"}, Matches: []knowledge.Match{{Source: "todo.md"}}}, nil
}

func TestCheckKnowledgeBase_Injected(t *testing.T) {
	h := newHarness(t, WithKnowledgeBase(stubKnowledge{}))
	report, err := h.o.CheckKnowledgeBase(context.Background(), KnowledgeRequest{Name: "todo-app"})
	require.NoError(t, err)
	assert.True(t, report.Knowledge.Found)
	assert.Contains(t, report.Text, "todo.md")

	h = newHarness(t, WithKnowledgeBase(stubKnowledge{err: errBoom}))
	_, err = h.o.CheckKnowledgeBase(context.Background(), KnowledgeRequest{Name: "todo-app"})
	assert.ErrorIs(t, err, errBoom)
}

func TestGenerateUIBlueprint_WithoutProject(t *testing.T) {
	h := newHarness(t)
	report, err := h.o.GenerateUIBlueprint(context.Background(), BlueprintRequest{
		Name:     "todo-app",
		Platform: "react",
		Screens:  []blueprint.Screen{{Name: "Home", Route: "/home", Components: []string{"Container", "Text", "Button"}}},
	})
	require.NoError(t, err)
	require.NotNil(t, report.Blueprint)
	assert.ElementsMatch(t, []string{"AppBar", "Column", "Container", "Text", "Button"}, report.Blueprint.Catalog)
	assert.Contains(t, report.Files, "ui/screens.tsx")
	assert.Empty(t, h.o.Registry().Names())
}

func TestGenerateUIBlueprint_RecordsArtifact(t *testing.T) {
	h := newHarness(t)
	h.start(t, "todo-app")

	_, err := h.o.GenerateUIBlueprint(context.Background(), BlueprintRequest{Name: "todo-app", Platform: "cobol"})
	var invalid *workflow.InvalidInputError
	require.ErrorAs(t, err, &invalid)

	report, err := h.o.GenerateUIBlueprint(context.Background(), BlueprintRequest{
		Name:     "todo-app",
		Platform: "flutter",
		Screens:  []blueprint.Screen{{Name: "Home"}},
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.PhaseDecisionMatrix, report.Phase)

	p := h.project(t, "todo-app")
	assert.True(t, p.Artifacts.Has(workflow.ArtifactUIBlueprint))
	assert.Equal(t, workflow.PhaseDecisionMatrix, p.CurrentPhase)
}

func TestPhaseMonotonicity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	name := "todo-app"

	steps := []func() error{
		func() error { _, err := h.o.StartProject(ctx, StartProjectRequest{Name: name, Requirements: []string{"x"}}); return err },
		func() error { _, err := h.o.GenerateAPITests(ctx, name); return err },
		func() error {
			_, err := h.o.ApproveArchitecture(ctx, name, []workflow.Answer{{QuestionID: "arch_01", Answer: "Monolith"}})
			return err
		},
		func() error { _, err := h.o.CompleteTask(ctx, name, "T001"); return err },
		func() error { _, err := h.o.GenerateAPITests(ctx, name); return err },
		func() error { _, err := h.o.AskFrontendQuestions(ctx, name); return err },
		func() error {
			_, err := h.o.GenerateFrontendPrompt(ctx, name, workflow.FrontendAnswers{Platform: "v0"})
			return err
		},
		func() error { _, err := h.o.GenerateAPITests(ctx, name); return err },
		func() error { _, err := h.o.GenerateBDDTests(ctx, name); return err },
		func() error { _, err := h.o.CreateCheckpoint(ctx, CheckpointRequest{Name: name}); return err },
		func() error { _, err := h.o.CompleteProject(ctx, name); return err },
	}

	prevLen := 0
	reachedSpecKit := false
	for i, step := range steps {
		_ = step()
		p, ok := h.o.Project(name)
		require.True(t, ok, "step %d", i)

		assert.GreaterOrEqual(t, len(p.CompletedPhases), prevLen, "step %d", i)
		prevLen = len(p.CompletedPhases)
		assert.GreaterOrEqual(t, p.Ledger.TasksCompleted, p.Ledger.LastCheckpointTask, "step %d", i)
		assert.True(t, p.CurrentPhase.Valid())
		if p.SpecKit != nil {
			reachedSpecKit = true
		}
		if reachedSpecKit {
			assert.Greater(t, p.CurrentPhase.Index(), workflow.PhaseDecisionMatrix.Index(), "step %d", i)
		}
	}
	assert.Equal(t, workflow.PhaseComplete, h.project(t, name).CurrentPhase)
}

func TestEventsAndTelemetry(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	h := newHarness(t, WithTelemetry(tel.TracerProvider(), tel.MeterProvider()))
	h.events.err = errBoom

	h.approve(t, "todo-app")
	_, err := h.o.GenerateAPITests(context.Background(), "todo-app")
	require.NoError(t, err)
	_, _ = h.o.GenerateBDDTests(context.Background(), "missing")

	assert.Equal(t, []string{"workflow.start_project", "workflow.approve_architecture", "workflow.generate_api_tests"}, h.events.types())
	h.logger.AssertLogged(t, zapcore.WarnLevel, "failed to publish workflow event")

	tel.AssertSpanExists(t, "orchestrator.start_project")
	tel.AssertSpanExists(t, "orchestrator.generate_api_tests")
	assert.Equal(t, int64(4), tel.CounterValue(t, "devforge.workflow.commands"))
}
