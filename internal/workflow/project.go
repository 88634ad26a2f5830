package workflow

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fyrsmithlabs/devforge/internal/ledger"
)

// Project is the root aggregate, keyed by its name.
type Project struct {
	Name            string          `json:"name"`
	Type            string          `json:"type"`
	Description     string          `json:"description"`
	Requirements    []string        `json:"requirements"`
	CurrentPhase    Phase           `json:"currentPhase"`
	CompletedPhases []Phase         `json:"completedPhases"`
	DecisionMatrix  *DecisionMatrix `json:"decisionMatrix,omitempty"`
	SpecKit         *SpecKit        `json:"specKit,omitempty"`
	Progress        *Progress       `json:"progress,omitempty"`
	Artifacts       ArtifactSet     `json:"artifacts"`
	Ledger          ledger.Ledger   `json:"ledger"`
	Issues          []string        `json:"issues,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// NewProject creates a project that has left requirements gathering and is
// waiting on its decision matrix.
func NewProject(name, projectType, description string, requirements []string, matrix *DecisionMatrix, now time.Time) *Project {
	p := &Project{
		Name:            name,
		Type:            projectType,
		Description:     description,
		Requirements:    append([]string(nil), requirements...),
		CurrentPhase:    PhaseDecisionMatrix,
		CompletedPhases: []Phase{PhaseRequirements},
		DecisionMatrix:  matrix,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	p.Artifacts.Mark(ArtifactDecisionMatrix, now)
	return p
}

// RequireDecisionMatrix fails unless a decision matrix is on file.
func (p *Project) RequireDecisionMatrix() error {
	if p.DecisionMatrix == nil || len(p.DecisionMatrix.Questions) == 0 {
		return &PreconditionError{Project: p.Name, Missing: "decision matrix not generated", Next: "start_project"}
	}
	return nil
}

// RequireSpecKit fails unless the spec-kit has been generated.
func (p *Project) RequireSpecKit() error {
	if p.SpecKit == nil {
		return &PreconditionError{Project: p.Name, Missing: "spec-kit not generated", Next: "approve_architecture"}
	}
	return nil
}

// RequireProgress fails unless durable progress state exists.
func (p *Project) RequireProgress() error {
	if p.Progress == nil {
		return &PreconditionError{Project: p.Name, Missing: "progress state not initialized", Next: "approve_architecture"}
	}
	return nil
}

// RequireArtifact fails unless kind has been generated by command next.
func (p *Project) RequireArtifact(kind ArtifactKind, next string) error {
	if !p.Artifacts.Has(kind) {
		return &PreconditionError{Project: p.Name, Missing: fmt.Sprintf("%s not generated", kind), Next: next}
	}
	return nil
}

// ApproveArchitecture attaches the answers, stores the spec-kit, creates the
// progress state and moves the project to backend development. paths are
// the spec-kit documents written for it.
func (p *Project) ApproveArchitecture(answers []Answer, kit *SpecKit, now time.Time, paths ...string) {
	p.DecisionMatrix.Answers = append([]Answer(nil), answers...)
	p.DecisionMatrix.AnsweredAt = &now
	p.SpecKit = kit
	p.Progress = &Progress{TotalTasks: len(kit.Tasks)}
	p.Artifacts.Mark(ArtifactSpecKit, now, paths...)
	p.advance(PhaseBackendDev, now, PhaseDecisionMatrix, PhaseSpecKit)
}

// RecordAPITests moves the project to API testing.
func (p *Project) RecordAPITests(now time.Time, paths ...string) {
	p.Artifacts.Mark(ArtifactPostman, now, paths...)
	p.advance(PhaseAPITesting, now, PhaseBackendDev)
}

// RecordFrontendPrompt moves the project to the frontend prompt phase.
func (p *Project) RecordFrontendPrompt(now time.Time, paths ...string) {
	p.Artifacts.Mark(ArtifactFrontendPrompt, now, paths...)
	p.advance(PhaseFrontendPrompt, now, PhaseAPITesting)
}

// RecordBDDTests moves the project to BDD testing.
func (p *Project) RecordBDDTests(now time.Time, paths ...string) {
	p.Artifacts.Mark(ArtifactBDDTests, now, paths...)
	p.advance(PhaseBDDTesting, now, PhaseFrontendIntegration)
}

// RecordUIBlueprint records a blueprint without changing phase.
func (p *Project) RecordUIBlueprint(now time.Time, paths ...string) {
	p.Artifacts.Mark(ArtifactUIBlueprint, now, paths...)
	p.UpdatedAt = now
}

// Complete marks the workflow finished.
func (p *Project) Complete(now time.Time) {
	p.advance(PhaseComplete, now, PhaseBDDTesting)
}

func (p *Project) advance(to Phase, now time.Time, completed ...Phase) {
	p.CompletedPhases = append(p.CompletedPhases, completed...)
	p.CurrentPhase = to
	p.UpdatedAt = now
}

// AddIssues appends non-blank issues.
func (p *Project) AddIssues(issues []string) []string {
	added := make([]string, 0, len(issues))
	for _, issue := range issues {
		if strings.TrimSpace(issue) == "" {
			continue
		}
		added = append(added, issue)
	}
	p.Issues = append(p.Issues, added...)
	return added
}

// OverallProgress returns the completed share of spec-kit tasks, capped at 100.
func (p *Project) OverallProgress() int {
	if p.SpecKit == nil || len(p.SpecKit.Tasks) == 0 {
		return 0
	}
	pct := int(math.Round(float64(p.Ledger.TasksCompleted) * 100 / float64(len(p.SpecKit.Tasks))))
	return min(pct, 100)
}

// PendingTasks returns up to n spec-kit tasks whose ids are not in the
// ledger history. The ledger counts rather than validates, so this is a
// best effort view.
func (p *Project) PendingTasks(n int) []Task {
	if p.SpecKit == nil {
		return nil
	}
	seen := make(map[string]bool, len(p.Ledger.History))
	for _, id := range p.Ledger.History {
		seen[id] = true
	}
	var out []Task
	for _, task := range p.SpecKit.Tasks {
		if seen[task.ID] {
			continue
		}
		out = append(out, task)
		if len(out) == n {
			break
		}
	}
	return out
}

// Clone returns a deep copy that can be mutated without affecting p.
func (p *Project) Clone() *Project {
	c := *p
	c.Requirements = append([]string(nil), p.Requirements...)
	c.CompletedPhases = append([]Phase(nil), p.CompletedPhases...)
	c.Issues = append([]string(nil), p.Issues...)
	c.Artifacts = p.Artifacts.Clone()
	c.Ledger = p.Ledger.Clone()

	if p.DecisionMatrix != nil {
		dm := *p.DecisionMatrix
		dm.Questions = append([]Question(nil), p.DecisionMatrix.Questions...)
		dm.Answers = append([]Answer(nil), p.DecisionMatrix.Answers...)
		c.DecisionMatrix = &dm
	}
	if p.Progress != nil {
		pr := *p.Progress
		c.Progress = &pr
	}
	// The spec-kit is immutable once generated and can be shared.
	return &c
}
