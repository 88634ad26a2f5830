package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/devforge/internal/llm"
	"github.com/fyrsmithlabs/devforge/internal/workflow"
)

const matrixMaxTokens = 4096

// ErrNoQuestions is returned when the model produced an empty decision matrix.
var ErrNoQuestions = errors.New("decision matrix has no questions")

// MatrixRequest describes the project a decision matrix is generated for.
type MatrixRequest struct {
	Name         string
	Type         string
	Description  string
	Requirements []string
}

// MatrixGenerator asks a model for the architecture questions of a project.
type MatrixGenerator struct {
	gen llm.TextGenerator
}

// NewMatrixGenerator creates a MatrixGenerator.
func NewMatrixGenerator(gen llm.TextGenerator) *MatrixGenerator {
	return &MatrixGenerator{gen: gen}
}

// Generate returns the decision matrix for req. Questions without an id are
// numbered, duplicate ids are suffixed.
func (g *MatrixGenerator) Generate(ctx context.Context, req MatrixRequest) (*workflow.DecisionMatrix, error) {
	text, err := g.gen.GenerateText(ctx, matrixPrompt(req), matrixMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("generating decision matrix: %w", err)
	}

	var out struct {
		Questions []workflow.Question `json:"questions"`
	}
	if err := llm.DecodeJSON(text, &out); err != nil {
		return nil, fmt.Errorf("parsing decision matrix: %w", err)
	}

	questions := make([]workflow.Question, 0, len(out.Questions))
	seen := make(map[string]bool)
	for _, q := range out.Questions {
		q.Question = strings.TrimSpace(q.Question)
		if q.Question == "" {
			continue
		}
		if q.ID == "" {
			q.ID = fmt.Sprintf("q_%02d", len(questions)+1)
		}
		if seen[q.ID] {
			base, n := q.ID, 2
			for seen[fmt.Sprintf("%s_%d", base, n)] {
				n++
			}
			q.ID = fmt.Sprintf("%s_%d", base, n)
		}
		seen[q.ID] = true
		if q.Category == "" {
			q.Category = "general"
		}
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	return &workflow.DecisionMatrix{Questions: questions}, nil
}

func matrixPrompt(req MatrixRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a senior software architect planning a new %s project named %q.\n\n", req.Type, req.Name)
	fmt.Fprintf(&b, "Description:\n%s\n\nRequirements:\n", req.Description)
	for _, r := range req.Requirements {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	b.WriteString(`
Produce the architecture decisions the team must make before planning.
Cover architecture style, technology stack, data storage, authentication,
deployment and testing. Ask 6 to 12 questions.

Respond ONLY with a JSON object of this shape:
{
  "questions": [
    {
      "id": "arch_01",
      "category": "architecture",
      "question": "Which architecture pattern should the backend follow?",
      "options": ["Monolith", "Modular monolith", "Microservices"],
      "recommendation": "Modular monolith",
      "rationale": "Why this option fits the requirements"
    }
  ]
}
`)
	return b.String()
}

// RenderMatrix renders the questions for the user, followed by an example
// approve_architecture call.
func RenderMatrix(project string, m *workflow.DecisionMatrix) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Decision matrix for %s (%d questions)\n\n", project, len(m.Questions))
	for i, q := range m.Questions {
		fmt.Fprintf(&b, "%d. [%s] %s (id: %s)\n", i+1, strings.ToUpper(q.Category), q.Question, q.ID)
		if len(q.Options) > 0 {
			fmt.Fprintf(&b, "   Options: %s\n", strings.Join(q.Options, ", "))
		}
		if q.Recommendation != "" {
			fmt.Fprintf(&b, "   Recommended: %s\n", q.Recommendation)
		}
	}
	b.WriteString("\nNext step: answer each question and call approve_architecture, for example:\n")
	fmt.Fprintf(&b, "{\n  \"project_name\": %q,\n  \"decision_matrix_answers\": [\n", project)
	for i, q := range m.Questions {
		if i == 2 {
			b.WriteString("    ...\n")
			break
		}
		answer := q.Recommendation
		if answer == "" && len(q.Options) > 0 {
			answer = q.Options[0]
		}
		fmt.Fprintf(&b, "    { \"questionId\": %q, \"answer\": %q }\n", q.ID, answer)
	}
	b.WriteString("  ]\n}\n")
	return b.String()
}
