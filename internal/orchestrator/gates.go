package orchestrator

import (
	"fmt"

	"github.com/fyrsmithlabs/devforge/internal/workflow"
)

// Command names, as exposed by the dispatcher.
const (
	CmdStartProject           = "start_project"
	CmdApproveArchitecture    = "approve_architecture"
	CmdGenerateAPITests       = "generate_api_tests"
	CmdAskFrontendQuestions   = "ask_frontend_questions"
	CmdGenerateFrontendPrompt = "generate_frontend_prompt"
	CmdGenerateBDDTests       = "generate_bdd_tests"
	CmdCreateCheckpoint       = "create_checkpoint"
	CmdGetWorkflowStatus      = "get_workflow_status"
	CmdCompleteTask           = "complete_task"
	CmdCheckKnowledgeBase     = "check_knowledge_base"
	CmdGenerateUIBlueprint    = "generate_ui_blueprint"
	CmdResumeProject          = "resume_project"
	CmdCompleteProject        = "complete_project"
)

// Gate checks that a project holds what a command depends on. Gates only
// read the project.
type Gate func(p *workflow.Project) error

// gates lists the preconditions of every command that operates on a
// registered project. Commands absent from the table only need the project
// to exist.
var gates = map[string][]Gate{
	CmdApproveArchitecture:    {requireDecisionMatrix, requireNoSpecKit},
	CmdGenerateAPITests:       {requireSpecKit},
	CmdGenerateFrontendPrompt: {requireSpecKit},
	CmdGenerateBDDTests:       {requireSpecKit},
	CmdCreateCheckpoint:       {requireProgress},
	CmdCompleteTask:           {requireProgress},
	CmdCompleteProject:        {requireProgress, requireBDDTests, requireNotComplete},
}

// checkGates runs the gates of command in order and returns the first
// failure.
func checkGates(command string, p *workflow.Project) error {
	for _, gate := range gates[command] {
		if err := gate(p); err != nil {
			return err
		}
	}
	return nil
}

func requireDecisionMatrix(p *workflow.Project) error {
	return p.RequireDecisionMatrix()
}

func requireSpecKit(p *workflow.Project) error {
	return p.RequireSpecKit()
}

func requireProgress(p *workflow.Project) error {
	return p.RequireProgress()
}

func requireBDDTests(p *workflow.Project) error {
	return p.RequireArtifact(workflow.ArtifactBDDTests, CmdGenerateBDDTests)
}

// requireNoSpecKit keeps approve_architecture single-shot: the spec-kit is
// created exactly once.
func requireNoSpecKit(p *workflow.Project) error {
	if p.SpecKit != nil {
		return &workflow.PreconditionError{
			Project: p.Name,
			Missing: fmt.Sprintf("architecture for '%s' is already approved and the spec-kit exists", p.Name),
			Next:    CmdGetWorkflowStatus,
		}
	}
	return nil
}

func requireNotComplete(p *workflow.Project) error {
	if p.CurrentPhase == workflow.PhaseComplete {
		return &workflow.PreconditionError{
			Project: p.Name,
			Missing: fmt.Sprintf("project '%s' is already complete", p.Name),
		}
	}
	return nil
}
