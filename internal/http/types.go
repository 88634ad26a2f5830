package http

import (
	"github.com/fyrsmithlabs/devforge/internal/orchestrator"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Commands int    `json:"commands"`
}

// CommandInfo describes one command in GET /api/v1/commands.
type CommandInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CommandResponse is the response body for POST /api/v1/commands/:name.
type CommandResponse struct {
	Command string               `json:"command"`
	Text    string               `json:"text"`
	Error   bool                 `json:"error"`
	Report  *orchestrator.Report `json:"report,omitempty"`
}

// ContinuationResponse is the response body for
// GET /api/v1/projects/:name/continuation.
type ContinuationResponse struct {
	Project string `json:"project"`
	Prompt  string `json:"prompt"`
}
