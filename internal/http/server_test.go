package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/devforge/internal/checkpoint"
	"github.com/fyrsmithlabs/devforge/internal/dispatch"
	"github.com/fyrsmithlabs/devforge/internal/generate"
	"github.com/fyrsmithlabs/devforge/internal/logging"
	"github.com/fyrsmithlabs/devforge/internal/orchestrator"
	"github.com/fyrsmithlabs/devforge/internal/store"
	"github.com/fyrsmithlabs/devforge/internal/workflow"
)

type stubMatrix struct{}

func (stubMatrix) Generate(_ context.Context, _ generate.MatrixRequest) (*workflow.DecisionMatrix, error) {
	return &workflow.DecisionMatrix{Questions: []workflow.Question{
		{ID: "arch_01", Category: "architecture", Question: "Monolith or microservices?", Options: []string{"Monolith", "Microservices"}},
	}}, nil
}

type stubSpecKit struct{}

func (stubSpecKit) Generate(_ context.Context, p *workflow.Project, _ []workflow.Answer, now time.Time) (*workflow.SpecKit, error) {
	kit := &workflow.SpecKit{
		Specification: workflow.Specification{Overview: p.Description},
		TechnicalPlan: workflow.TechnicalPlan{Architecture: "Monolith"},
		GeneratedAt:   now,
	}
	for i := 1; i <= 5; i++ {
		kit.Tasks = append(kit.Tasks, workflow.Task{ID: fmt.Sprintf("T%03d", i), Title: fmt.Sprintf("Task %d", i), Type: "backend"})
	}
	return kit, nil
}

type failingPrompts struct{}

func (failingPrompts) ContinuationPrompt(context.Context, string) (string, error) {
	return "", fmt.Errorf("disk on fire")
}

func setupTestServer(t *testing.T) (*Server, *logging.TestLogger) {
	t.Helper()
	logger := logging.NewTestLogger()

	fs, err := store.NewFileStore(t.TempDir(), logger.Logger)
	require.NoError(t, err)
	writer, err := checkpoint.NewWriter(fs, logger.Logger)
	require.NoError(t, err)
	o, err := orchestrator.New(fs, writer, stubMatrix{}, stubSpecKit{}, logger.Logger)
	require.NoError(t, err)
	d, err := dispatch.New(o, logger.Logger)
	require.NoError(t, err)

	server, err := NewServer(d, fs, logger.Logger, &Config{Host: "127.0.0.1", Port: 9090, Version: "test"})
	require.NoError(t, err)
	return server, logger
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func command(t *testing.T, s *Server, name, body string) (int, CommandResponse) {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/v1/commands/"+name, body)
	var resp CommandResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec.Code, resp
}

func TestNewServer(t *testing.T) {
	logger := logging.NewNop()
	fs, err := store.NewFileStore(t.TempDir(), logger)
	require.NoError(t, err)
	d, err := dispatch.New(&orchestrator.Orchestrator{}, logger)
	require.NoError(t, err)

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(d, fs, logger, nil)
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1", server.config.Host)
		assert.Equal(t, 9090, server.config.Port)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(d, fs, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when dispatcher is nil", func(t *testing.T) {
		_, err := NewServer(nil, fs, logger, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dispatcher cannot be nil")
	})

	t.Run("returns error when prompt source is nil", func(t *testing.T) {
		_, err := NewServer(d, nil, logger, nil)
		require.Error(t, err)
	})
}

func TestHandleHealth(t *testing.T) {
	server, _ := setupTestServer(t)

	rec := do(t, server, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test", resp.Version)
	assert.Equal(t, 13, resp.Commands)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestHandleListCommands(t *testing.T) {
	server, _ := setupTestServer(t)

	rec := do(t, server, http.MethodGet, "/api/v1/commands", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var cmds []CommandInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cmds))
	require.Len(t, cmds, 13)
	assert.Equal(t, "approve_architecture", cmds[0].Name)
	assert.Equal(t, "start_project", cmds[len(cmds)-1].Name)
	for _, c := range cmds {
		assert.NotEmpty(t, c.Description, c.Name)
	}
}

func TestHandleCommand(t *testing.T) {
	server, logger := setupTestServer(t)

	code, resp := command(t, server, "start_project",
		`{"project_name":"shop","project_type":"web-app","description":"An online store","requirements":["cart"]}`)
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, resp.Error)
	assert.Equal(t, "start_project", resp.Command)
	assert.Contains(t, resp.Text, "Project 'shop' started")
	require.NotNil(t, resp.Report)
	require.NotNil(t, resp.Report.Matrix)
	assert.Len(t, resp.Report.Matrix.Questions, 1)

	code, resp = command(t, server, "start_project", `{"project_name":"shop","requirements":["cart"]}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.True(t, resp.Error)
	assert.Contains(t, resp.Text, "already active")

	code, resp = command(t, server, "generate_bdd_tests", `{"project_name":"shop"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.True(t, strings.HasPrefix(resp.Text, "Error: "), resp.Text)

	code, resp = command(t, server, "approve_architecture",
		`{"project_name":"shop","decision_matrix_answers":[{"questionId":"arch_01","answer":"Monolith"}]}`)
	assert.Equal(t, http.StatusOK, code, resp.Text)
	assert.Contains(t, resp.Text, "Spec-kit generated: 5 tasks")

	code, resp = command(t, server, "complete_task", `{"project_name":"shop","task_id":"T001"}`)
	assert.Equal(t, http.StatusOK, code, resp.Text)

	logger.AssertLogged(t, zapcore.InfoLevel, "http request")
}

func TestHandleCommand_Errors(t *testing.T) {
	tests := []struct {
		name     string
		command  string
		body     string
		wantCode int
		wantText string
	}{
		{
			name:     "unknown command",
			command:  "deploy",
			body:     `{}`,
			wantCode: http.StatusNotFound,
			wantText: `Error: unknown command "deploy"`,
		},
		{
			name:     "wrong argument type",
			command:  "complete_task",
			body:     `{"project_name":["shop"]}`,
			wantCode: http.StatusBadRequest,
			wantText: "Error: invalid arguments for complete_task:",
		},
		{
			name:     "invalid input",
			command:  "start_project",
			body:     `{"project_name":"shop","requirements":[]}`,
			wantCode: http.StatusBadRequest,
			wantText: "Error: invalid requirements:",
		},
		{
			name:     "project not found",
			command:  "get_workflow_status",
			body:     `{"project_name":"ghost"}`,
			wantCode: http.StatusNotFound,
			wantText: "Error: Project 'ghost' not found.",
		},
		{
			name:     "not started",
			command:  "generate_api_tests",
			body:     `{"project_name":"ghost"}`,
			wantCode: http.StatusConflict,
			wantText: "Error: Project 'ghost' not started; call start_project first",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := setupTestServer(t)

			code, resp := command(t, server, tt.command, tt.body)

			assert.Equal(t, tt.wantCode, code)
			assert.True(t, resp.Error)
			assert.True(t, strings.HasPrefix(resp.Text, tt.wantText), resp.Text)
			assert.Nil(t, resp.Report)
		})
	}
}

func TestHandleCommand_InvalidJSON(t *testing.T) {
	server, _ := setupTestServer(t)

	rec := do(t, server, http.MethodPost, "/api/v1/commands/start_project", "not json")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["message"], "JSON object")
}

func TestHandleContinuation(t *testing.T) {
	server, _ := setupTestServer(t)

	rec := do(t, server, http.MethodGet, "/api/v1/projects/shop/continuation", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	code, _ := command(t, server, "start_project", `{"project_name":"shop","requirements":["cart"]}`)
	require.Equal(t, http.StatusOK, code)

	rec = do(t, server, http.MethodGet, "/api/v1/projects/shop/continuation", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ContinuationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "shop", resp.Project)
	assert.Contains(t, resp.Prompt, "# Continuation Prompt: shop")

	rec = do(t, server, http.MethodGet, "/api/v1/projects/..bad/continuation", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleContinuation_ReadFailure(t *testing.T) {
	logger := logging.NewTestLogger()
	d, err := dispatch.New(&orchestrator.Orchestrator{}, logger.Logger)
	require.NoError(t, err)
	server, err := NewServer(d, failingPrompts{}, logger.Logger, nil)
	require.NoError(t, err)

	rec := do(t, server, http.MethodGet, "/api/v1/projects/shop/continuation", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk on fire")
	logger.AssertLogged(t, zapcore.ErrorLevel, "failed to read continuation prompt")
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)

	do(t, server, http.MethodGet, "/health", "")
	command(t, server, "get_workflow_status", `{"project_name":"ghost"}`)

	rec := do(t, server, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `devforge_http_requests_total{method="GET",route="/health",status="200"} 1`)
	assert.Contains(t, body, `devforge_http_requests_total{method="POST",route="/api/v1/commands/:name",status="404"} 1`)
	assert.Contains(t, body, "go_goroutines")
}
