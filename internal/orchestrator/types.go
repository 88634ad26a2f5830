package orchestrator

import (
	"github.com/fyrsmithlabs/devforge/internal/blueprint"
	"github.com/fyrsmithlabs/devforge/internal/knowledge"
	"github.com/fyrsmithlabs/devforge/internal/workflow"
)

// StartProjectRequest registers a new project.
type StartProjectRequest struct {
	Name         string
	Type         string
	Description  string
	Requirements []string
}

// CheckpointRequest records a manual checkpoint.
type CheckpointRequest struct {
	Name             string
	CompletedTaskIDs []string
	CurrentTaskID    *string
	Issues           []string
}

// KnowledgeRequest asks whether documentation exists for a project.
type KnowledgeRequest struct {
	Name        string
	Description string
	Keywords    []string
}

// BlueprintRequest describes the screens of a UI blueprint.
type BlueprintRequest struct {
	Name     string
	Platform string
	Screens  []blueprint.Screen
}

// Report is the outcome of a command. Text is the self-describing response
// shown to the caller.
type Report struct {
	Command string         `json:"command"`
	Project string         `json:"project"`
	Phase   workflow.Phase `json:"phase,omitempty"`
	Text    string         `json:"text"`
	Files   []string       `json:"files,omitempty"`

	// Exactly one of these is set for commands that produce structured data.
	Matrix     *workflow.DecisionMatrix `json:"decisionMatrix,omitempty"`
	Status     *Status                  `json:"status,omitempty"`
	Knowledge  *knowledge.Result        `json:"knowledge,omitempty"`
	Blueprint  *blueprint.Blueprint     `json:"blueprint,omitempty"`
	Checkpoint *CheckpointSummary       `json:"checkpoint,omitempty"`
}

// CheckpointSummary describes a checkpoint written by a command.
type CheckpointSummary struct {
	ID              string `json:"id"`
	Sequence        int    `json:"sequence"`
	Auto            bool   `json:"auto"`
	TasksCompleted  int    `json:"tasksCompleted"`
	OverallProgress int    `json:"overallProgress"`
}

// Status is the get_workflow_status report.
type Status struct {
	ProjectName          string               `json:"projectName"`
	ProjectType          string               `json:"projectType"`
	CurrentPhase         workflow.Phase       `json:"currentPhase"`
	CompletedPhases      []workflow.Phase     `json:"completedPhases"`
	OverallProgress      int                  `json:"overallProgress"`
	TotalTasks           int                  `json:"totalTasks"`
	TasksCompleted       int                  `json:"tasksCompleted"`
	LastCheckpointTask   int                  `json:"lastCheckpointTask"`
	TasksSinceCheckpoint int                  `json:"tasksSinceCheckpoint"`
	CheckpointThreshold  int                  `json:"checkpointThreshold"`
	CheckpointNeeded     bool                 `json:"checkpointNeeded"`
	CheckpointCount      int                  `json:"checkpointCount"`
	LastCheckpointID     string               `json:"lastCheckpointId,omitempty"`
	CurrentTaskID        string               `json:"currentTaskId,omitempty"`
	Artifacts            workflow.ArtifactSet `json:"artifacts"`
	Issues               []string             `json:"issues"`
	NextCommand          string               `json:"nextCommand,omitempty"`
	NextStep             string               `json:"nextStep"`
}
