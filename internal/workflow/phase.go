package workflow

import "fmt"

// Phase is a named stage of the project workflow.
type Phase string

const (
	PhaseRequirements        Phase = "requirements"
	PhaseDecisionMatrix      Phase = "decision_matrix"
	PhaseSpecKit             Phase = "spec_kit"
	PhaseBackendDev          Phase = "backend_dev"
	PhaseAPITesting          Phase = "api_testing"
	PhaseFrontendPrompt      Phase = "frontend_prompt"
	PhaseFrontendIntegration Phase = "frontend_integration"
	PhaseBDDTesting          Phase = "bdd_testing"
	PhaseComplete            Phase = "complete"
)

var phaseOrder = []Phase{
	PhaseRequirements,
	PhaseDecisionMatrix,
	PhaseSpecKit,
	PhaseBackendDev,
	PhaseAPITesting,
	PhaseFrontendPrompt,
	PhaseFrontendIntegration,
	PhaseBDDTesting,
	PhaseComplete,
}

// Phases returns every phase in documented order.
func Phases() []Phase {
	return append([]Phase(nil), phaseOrder...)
}

// ParsePhase converts a tag into a Phase, rejecting unknown tags.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown phase %q", s)
	}
	return p, nil
}

// Valid reports whether p is one of the fixed phase tags.
func (p Phase) Valid() bool {
	return p.Index() >= 0
}

// Index returns the documented position of p, or -1.
func (p Phase) Index() int {
	for i, candidate := range phaseOrder {
		if candidate == p {
			return i
		}
	}
	return -1
}

func (p Phase) String() string {
	return string(p)
}

// NextCommand returns the command that moves a project out of p.
func (p Phase) NextCommand() string {
	switch p {
	case PhaseRequirements:
		return "start_project"
	case PhaseDecisionMatrix:
		return "approve_architecture"
	case PhaseSpecKit, PhaseBackendDev:
		return "generate_api_tests"
	case PhaseAPITesting:
		return "ask_frontend_questions"
	case PhaseFrontendPrompt, PhaseFrontendIntegration:
		return "generate_bdd_tests"
	case PhaseBDDTesting:
		return "complete_project"
	default:
		return ""
	}
}

// NextStep describes what the driving agent should do in phase p.
func (p Phase) NextStep() string {
	switch p {
	case PhaseDecisionMatrix:
		return "Answer the decision matrix questions, then call approve_architecture."
	case PhaseSpecKit, PhaseBackendDev:
		return "Implement the backend tasks from docs/TASKS.md (call complete_task per task), then call generate_api_tests."
	case PhaseAPITesting:
		return "Run the Postman collection, then call ask_frontend_questions and generate_frontend_prompt."
	case PhaseFrontendPrompt, PhaseFrontendIntegration:
		return "Build and integrate the frontend from docs/FRONTEND_PROMPT.md, then call generate_bdd_tests."
	case PhaseBDDTesting:
		return "Make the BDD scenarios pass, then call complete_project."
	case PhaseComplete:
		return "The project is complete. No further workflow commands are required."
	default:
		return "Call start_project with the project requirements."
	}
}
