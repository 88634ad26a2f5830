package workflow

import "time"

// Question is one architecture decision put to the user.
type Question struct {
	ID             string   `json:"id"`
	Category       string   `json:"category"`
	Question       string   `json:"question"`
	Options        []string `json:"options"`
	Recommendation string   `json:"recommendation,omitempty"`
	Rationale      string   `json:"rationale,omitempty"`
}

// Answer is the user's choice for one question.
type Answer struct {
	QuestionID string `json:"questionId" jsonschema:"id of the decision matrix question"`
	Answer     string `json:"answer" jsonschema:"chosen option or free-text answer"`
}

// DecisionMatrix holds the generated questions and, once approved, the answers.
// The question set never changes after generation.
type DecisionMatrix struct {
	Questions  []Question `json:"questions"`
	Answers    []Answer   `json:"answers,omitempty"`
	AnsweredAt *time.Time `json:"answeredAt,omitempty"`
}

// Principle is one rule in the project constitution.
type Principle struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Constitution lists the non-negotiable engineering principles.
type Constitution struct {
	Principles []Principle `json:"principles"`
}

// UserStory is one requirement in user-story form.
type UserStory struct {
	ID                 string   `json:"id"`
	AsA                string   `json:"asA"`
	IWant              string   `json:"iWant"`
	SoThat             string   `json:"soThat"`
	AcceptanceCriteria []string `json:"acceptanceCriteria"`
}

// Specification is the functional specification.
type Specification struct {
	Overview    string      `json:"overview"`
	UserStories []UserStory `json:"userStories"`
}

// Endpoint is one HTTP operation in the technical plan.
type Endpoint struct {
	Method       string `json:"method"`
	Path         string `json:"path"`
	Description  string `json:"description"`
	RequiresAuth bool   `json:"requiresAuth,omitempty"`
	RequestBody  string `json:"requestBody,omitempty"`
	Status       int    `json:"status,omitempty"`
}

// DataModel is one persisted entity.
type DataModel struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
}

// TechnicalPlan is the architecture and API plan.
type TechnicalPlan struct {
	Architecture string      `json:"architecture"`
	Stack        []string    `json:"stack"`
	Endpoints    []Endpoint  `json:"endpoints"`
	DataModels   []DataModel `json:"dataModels"`
}

// Task is one unit of implementation work. Tasks never change after the
// spec-kit is generated; completion is tracked by id in the ledger.
type Task struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Type           string   `json:"type"`
	Priority       string   `json:"priority"`
	EstimatedHours float64  `json:"estimatedHours"`
	Dependencies   []string `json:"dependencies,omitempty"`
}

// SpecKit bundles the planning artifacts produced once per project.
type SpecKit struct {
	Constitution  Constitution  `json:"constitution"`
	Specification Specification `json:"specification"`
	TechnicalPlan TechnicalPlan `json:"technicalPlan"`
	Tasks         []Task        `json:"tasks"`
	GeneratedAt   time.Time     `json:"generatedAt"`
}

// Progress is the durable progress state created with the spec-kit and
// updated by every checkpoint.
type Progress struct {
	OverallProgress  int        `json:"overallProgress"`
	TotalTasks       int        `json:"totalTasks"`
	CheckpointCount  int        `json:"checkpointCount"`
	LastCheckpointID string     `json:"lastCheckpointId,omitempty"`
	LastCheckpointAt *time.Time `json:"lastCheckpointAt,omitempty"`
	CurrentTaskID    string     `json:"currentTaskId,omitempty"`
}

// FrontendAnswers are the user's answers to the frontend questionnaire.
type FrontendAnswers struct {
	Platform     string   `json:"platform" jsonschema:"target builder: google-stitch, lovable, v0, bolt or generic"`
	DesignStyle  string   `json:"designStyle,omitempty" jsonschema:"modern, minimal, colorful, professional or playful"`
	ColorScheme  string   `json:"colorScheme,omitempty" jsonschema:"light, dark or auto"`
	PrimaryColor string   `json:"primaryColor,omitempty" jsonschema:"primary brand color, e.g. #3B82F6"`
	UIFramework  string   `json:"uiFramework,omitempty" jsonschema:"tailwind, mui, chakra or ant-design"`
	Features     []string `json:"features,omitempty" jsonschema:"extra frontend features to include"`
}
