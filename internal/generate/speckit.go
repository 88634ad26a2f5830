package generate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fyrsmithlabs/devforge/internal/llm"
	"github.com/fyrsmithlabs/devforge/internal/workflow"
)

const specKitMaxTokens = 8192

// ErrNoTasks is returned when the model produced a spec-kit without tasks.
var ErrNoTasks = errors.New("spec-kit has no tasks")

// SpecKitGenerator asks a model for the constitution, specification,
// technical plan and task breakdown of an approved project.
type SpecKitGenerator struct {
	gen llm.TextGenerator
}

// NewSpecKitGenerator creates a SpecKitGenerator.
func NewSpecKitGenerator(gen llm.TextGenerator) *SpecKitGenerator {
	return &SpecKitGenerator{gen: gen}
}

// Generate returns the spec-kit for p given the approved answers.
func (g *SpecKitGenerator) Generate(ctx context.Context, p *workflow.Project, answers []workflow.Answer, now time.Time) (*workflow.SpecKit, error) {
	text, err := g.gen.GenerateText(ctx, specKitPrompt(p, answers), specKitMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("generating spec-kit: %w", err)
	}

	var kit workflow.SpecKit
	if err := llm.DecodeJSON(text, &kit); err != nil {
		return nil, fmt.Errorf("parsing spec-kit: %w", err)
	}
	if err := normalizeTasks(&kit); err != nil {
		return nil, err
	}
	for i := range kit.TechnicalPlan.Endpoints {
		ep := &kit.TechnicalPlan.Endpoints[i]
		ep.Method = strings.ToUpper(strings.TrimSpace(ep.Method))
		if ep.Method == "" {
			ep.Method = "GET"
		}
		if !strings.HasPrefix(ep.Path, "/") {
			ep.Path = "/" + ep.Path
		}
	}
	kit.GeneratedAt = now
	return &kit, nil
}

// normalizeTasks drops untitled tasks, numbers tasks without an id and
// defaults type and priority. Task ids stay unique.
func normalizeTasks(kit *workflow.SpecKit) error {
	tasks := make([]workflow.Task, 0, len(kit.Tasks))
	seen := make(map[string]bool)
	for _, t := range kit.Tasks {
		t.Title = strings.TrimSpace(t.Title)
		if t.Title == "" {
			continue
		}
		if t.ID == "" || seen[t.ID] {
			t.ID = nextTaskID(seen, len(tasks)+1)
		}
		seen[t.ID] = true
		if t.Type == "" {
			t.Type = "backend"
		}
		if t.Priority == "" {
			t.Priority = "medium"
		}
		tasks = append(tasks, t)
	}
	if len(tasks) == 0 {
		return ErrNoTasks
	}
	kit.Tasks = tasks
	return nil
}

func nextTaskID(seen map[string]bool, n int) string {
	for {
		id := fmt.Sprintf("T%03d", n)
		if !seen[id] {
			return id
		}
		n++
	}
}

func specKitPrompt(p *workflow.Project, answers []workflow.Answer) string {
	questions := make(map[string]string)
	if p.DecisionMatrix != nil {
		for _, q := range p.DecisionMatrix.Questions {
			questions[q.ID] = q.Question
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a senior software architect. Write the spec-kit for the %s project %q.\n\n", p.Type, p.Name)
	fmt.Fprintf(&b, "Description:\n%s\n\nRequirements:\n", p.Description)
	for _, r := range p.Requirements {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	b.WriteString("\nApproved architecture decisions:\n")
	for _, a := range answers {
		q := questions[a.QuestionID]
		if q == "" {
			q = a.QuestionID
		}
		fmt.Fprintf(&b, "- %s: %s\n", q, a.Answer)
	}
	b.WriteString(`
Respond ONLY with a JSON object of this shape:
{
  "constitution": {"principles": [{"name": "...", "description": "..."}]},
  "specification": {
    "overview": "...",
    "userStories": [{"id": "US001", "asA": "...", "iWant": "...", "soThat": "...", "acceptanceCriteria": ["..."]}]
  },
  "technicalPlan": {
    "architecture": "...",
    "stack": ["..."],
    "endpoints": [{"method": "POST", "path": "/api/todos", "description": "...", "requiresAuth": true, "requestBody": "{\"title\":\"string\"}", "status": 201}],
    "dataModels": [{"name": "Todo", "fields": ["id: uuid", "title: string"]}]
  },
  "tasks": [{"id": "T001", "title": "...", "type": "backend", "priority": "high", "estimatedHours": 2, "dependencies": []}]
}
Break the work into small tasks of at most 4 hours each, ordered by dependency.
`)
	return b.String()
}

// SpecKitFiles renders the spec-kit as markdown documents under docs/.
func SpecKitFiles(projectName string, kit *workflow.SpecKit) []File {
	return []File{
		{Path: "docs/CONSTITUTION.md", Content: []byte(RenderConstitution(projectName, kit.Constitution))},
		{Path: "docs/SPECIFICATION.md", Content: []byte(RenderSpecification(kit.Specification))},
		{Path: "docs/TECHNICAL_PLAN.md", Content: []byte(RenderTechnicalPlan(kit.TechnicalPlan))},
		{Path: "docs/TASKS.md", Content: []byte(RenderTasks(kit.Tasks))},
	}
}

// RenderConstitution renders the project constitution.
func RenderConstitution(projectName string, c workflow.Constitution) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Project Constitution: %s\n\n## Principles\n\n", projectName)
	for i, p := range c.Principles {
		fmt.Fprintf(&b, "%d. **%s**: %s\n", i+1, p.Name, p.Description)
	}
	return b.String()
}

// RenderSpecification renders the functional specification.
func RenderSpecification(s workflow.Specification) string {
	var b strings.Builder
	b.WriteString("# Specification\n\n")
	if s.Overview != "" {
		fmt.Fprintf(&b, "## Overview\n\n%s\n\n", s.Overview)
	}
	b.WriteString("## User Stories\n\n")
	for _, us := range s.UserStories {
		fmt.Fprintf(&b, "### %s\n\nAs a %s, I want %s so that %s.\n\n", us.ID, us.AsA, us.IWant, us.SoThat)
		if len(us.AcceptanceCriteria) > 0 {
			b.WriteString("**Acceptance Criteria:**\n")
			for _, ac := range us.AcceptanceCriteria {
				fmt.Fprintf(&b, "- %s\n", ac)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// RenderTechnicalPlan renders the architecture, stack, endpoints and models.
func RenderTechnicalPlan(p workflow.TechnicalPlan) string {
	var b strings.Builder
	b.WriteString("# Technical Plan\n\n")
	fmt.Fprintf(&b, "## Architecture\n\n%s\n\n", p.Architecture)
	if len(p.Stack) > 0 {
		fmt.Fprintf(&b, "**Stack:** %s\n\n", strings.Join(p.Stack, ", "))
	}
	if len(p.Endpoints) > 0 {
		b.WriteString("## API Endpoints\n\n| Method | Path | Auth | Description |\n|---|---|---|---|\n")
		for _, ep := range p.Endpoints {
			auth := "no"
			if ep.RequiresAuth {
				auth = "yes"
			}
			fmt.Fprintf(&b, "| %s | `%s` | %s | %s |\n", ep.Method, ep.Path, auth, ep.Description)
		}
		b.WriteString("\n")
	}
	if len(p.DataModels) > 0 {
		b.WriteString("## Data Models\n\n")
		for _, m := range p.DataModels {
			fmt.Fprintf(&b, "### %s\n\n", m.Name)
			for _, f := range m.Fields {
				fmt.Fprintf(&b, "- %s\n", f)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// RenderTasks renders the task breakdown.
func RenderTasks(tasks []workflow.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Task Breakdown\n\nTotal tasks: %d\n\n", len(tasks))
	for _, t := range tasks {
		fmt.Fprintf(&b, "## %s: %s\n\n", t.ID, t.Title)
		fmt.Fprintf(&b, "- **Type:** %s\n- **Priority:** %s\n- **Estimated:** %gh\n", t.Type, t.Priority, t.EstimatedHours)
		if len(t.Dependencies) > 0 {
			fmt.Fprintf(&b, "- **Depends on:** %s\n", strings.Join(t.Dependencies, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// TaskSummary counts tasks per type and totals their estimates.
type TaskSummary struct {
	Total          int
	EstimatedHours float64
	ByType         map[string]int
}

// SummarizeTasks builds a TaskSummary.
func SummarizeTasks(tasks []workflow.Task) TaskSummary {
	s := TaskSummary{Total: len(tasks), ByType: make(map[string]int)}
	for _, t := range tasks {
		s.EstimatedHours += t.EstimatedHours
		s.ByType[t.Type]++
	}
	return s
}

// Types returns the task types in sorted order.
func (s TaskSummary) Types() []string {
	out := make([]string, 0, len(s.ByType))
	for t := range s.ByType {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
