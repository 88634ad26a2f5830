package dispatch

import (
	"github.com/fyrsmithlabs/devforge/internal/blueprint"
	"github.com/fyrsmithlabs/devforge/internal/workflow"
)

// ProjectInput is the argument of commands that only name a project.
type ProjectInput struct {
	ProjectName string `json:"project_name" jsonschema:"name of the project"`
}

// StartProjectInput is the argument of start_project.
type StartProjectInput struct {
	ProjectName  string   `json:"project_name" jsonschema:"unique project name, used as its directory name"`
	ProjectType  string   `json:"project_type,omitempty" jsonschema:"kind of project, e.g. web-app, api or mobile-app"`
	Description  string   `json:"description,omitempty" jsonschema:"what the project is for"`
	Requirements []string `json:"requirements" jsonschema:"functional requirements, at least one"`
}

// ApproveArchitectureInput is the argument of approve_architecture.
type ApproveArchitectureInput struct {
	ProjectName           string            `json:"project_name" jsonschema:"name of the project"`
	DecisionMatrixAnswers []workflow.Answer `json:"decision_matrix_answers" jsonschema:"answers to the decision matrix questions"`
}

// FrontendPromptInput is the argument of generate_frontend_prompt.
type FrontendPromptInput struct {
	ProjectName     string                   `json:"project_name" jsonschema:"name of the project"`
	FrontendAnswers workflow.FrontendAnswers `json:"frontend_answers" jsonschema:"answers to ask_frontend_questions"`
}

// CreateCheckpointInput is the argument of create_checkpoint.
type CreateCheckpointInput struct {
	ProjectName       string   `json:"project_name" jsonschema:"name of the project"`
	CompletedTaskIDs  []string `json:"completed_task_ids" jsonschema:"ids of tasks completed since the last checkpoint"`
	CurrentTaskID     *string  `json:"current_task_id,omitempty" jsonschema:"task currently in progress"`
	IssuesEncountered []string `json:"issues_encountered,omitempty" jsonschema:"problems worth remembering in the next session"`
}

// CompleteTaskInput is the argument of complete_task.
type CompleteTaskInput struct {
	ProjectName string `json:"project_name" jsonschema:"name of the project"`
	TaskID      string `json:"task_id" jsonschema:"id of the completed task, e.g. TASK-001"`
}

// KnowledgeBaseInput is the argument of check_knowledge_base.
type KnowledgeBaseInput struct {
	ProjectName        string   `json:"project_name" jsonschema:"name of the project"`
	ProjectDescription string   `json:"project_description" jsonschema:"short description used to search the knowledge base"`
	Keywords           []string `json:"keywords,omitempty" jsonschema:"extra search terms; extracted from the description when empty"`
}

// UIBlueprintInput is the argument of generate_ui_blueprint.
type UIBlueprintInput struct {
	ProjectName string             `json:"project_name" jsonschema:"name of the project"`
	Platform    string             `json:"platform" jsonschema:"target platform: react, flutter, react-native, web, angular or console"`
	Screens     []blueprint.Screen `json:"screens" jsonschema:"screens to lay out"`
}
