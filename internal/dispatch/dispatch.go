// Package dispatch maps external command names to workflow operations.
//
// The table is built once and never modified. Every call returns a
// well-formed Response: unknown names, malformed arguments and workflow
// failures are rendered as "Error: <message>" text instead of Go errors, so
// transports can forward the result without inspecting it.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/devforge/internal/logging"
	"github.com/fyrsmithlabs/devforge/internal/orchestrator"
	"github.com/fyrsmithlabs/devforge/internal/workflow"
)

// Workflow is the set of operations the dispatcher routes to.
// *orchestrator.Orchestrator implements it.
type Workflow interface {
	StartProject(ctx context.Context, req orchestrator.StartProjectRequest) (*orchestrator.Report, error)
	ApproveArchitecture(ctx context.Context, name string, answers []workflow.Answer) (*orchestrator.Report, error)
	GenerateAPITests(ctx context.Context, name string) (*orchestrator.Report, error)
	AskFrontendQuestions(ctx context.Context, name string) (*orchestrator.Report, error)
	GenerateFrontendPrompt(ctx context.Context, name string, answers workflow.FrontendAnswers) (*orchestrator.Report, error)
	GenerateBDDTests(ctx context.Context, name string) (*orchestrator.Report, error)
	CreateCheckpoint(ctx context.Context, req orchestrator.CheckpointRequest) (*orchestrator.Report, error)
	CompleteTask(ctx context.Context, name, taskID string) (*orchestrator.Report, error)
	Status(ctx context.Context, name string) (*orchestrator.Report, error)
	CheckKnowledgeBase(ctx context.Context, req orchestrator.KnowledgeRequest) (*orchestrator.Report, error)
	GenerateUIBlueprint(ctx context.Context, req orchestrator.BlueprintRequest) (*orchestrator.Report, error)
	ResumeProject(ctx context.Context, name string) (*orchestrator.Report, error)
	CompleteProject(ctx context.Context, name string) (*orchestrator.Report, error)
}

var _ Workflow = (*orchestrator.Orchestrator)(nil)

// ErrUnknownCommand is returned for names with no registered command.
var ErrUnknownCommand = errors.New("unknown command")

// Response is the rendered result of a dispatched command.
type Response struct {
	Command string               `json:"command"`
	Text    string               `json:"text"`
	IsError bool                 `json:"error"`
	Report  *orchestrator.Report `json:"report,omitempty"`

	// Err is the failure behind an error response.
	Err error `json:"-"`
}

// Command describes one dispatchable operation.
type Command struct {
	Name        string
	Description string
	// Input is the zero value of the command's argument type.
	Input any

	run func(ctx context.Context, args json.RawMessage) (*orchestrator.Report, error)
}

// Dispatcher routes command names to workflow operations.
type Dispatcher struct {
	commands map[string]Command
	logger   *logging.Logger
}

// New builds the command table over wf.
func New(wf Workflow, logger *logging.Logger) (*Dispatcher, error) {
	if wf == nil {
		return nil, errors.New("workflow is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	d := &Dispatcher{
		commands: make(map[string]Command),
		logger:   logger.Named("dispatch"),
	}
	for _, c := range table(wf) {
		d.commands[c.Name] = c
	}
	return d, nil
}

// Commands returns the command descriptions sorted by name.
func (d *Dispatcher) Commands() []Command {
	out := make([]Command, 0, len(d.commands))
	for _, c := range d.commands {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns the command registered under name.
func (d *Dispatcher) Lookup(name string) (Command, bool) {
	c, ok := d.commands[name]
	return c, ok
}

// Dispatch runs the command called name with JSON-encoded args.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args json.RawMessage) Response {
	ctx = logging.WithCommand(ctx, name)
	cmd, ok := d.commands[name]
	if !ok {
		d.logger.Info(ctx, "unknown command")
		return failure(name, fmt.Errorf("%w %q", ErrUnknownCommand, name))
	}
	if len(bytes.TrimSpace(args)) == 0 || bytes.Equal(bytes.TrimSpace(args), []byte("null")) {
		args = json.RawMessage("{}")
	}

	report, err := cmd.run(ctx, args)
	if err != nil {
		var argErr *ArgumentError
		if errors.As(err, &argErr) {
			d.logger.Info(ctx, "invalid command arguments", zap.Error(argErr.Err))
		}
		return failure(name, err)
	}
	return Response{Command: name, Text: report.Text, Report: report}
}

// ArgumentError reports arguments that could not be decoded into the
// command's input type.
type ArgumentError struct {
	Command string
	Err     error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %v", e.Command, e.Err)
}

func (e *ArgumentError) Unwrap() error { return e.Err }

func failure(name string, err error) Response {
	return Response{Command: name, Text: Render(err), IsError: true, Err: err}
}

// Render formats err as the text returned to callers. Not-found errors gain
// a pointer to the command that creates or loads the project.
func Render(err error) string {
	var nf *workflow.NotFoundError
	if errors.As(err, &nf) {
		return fmt.Sprintf("Error: %s. Call start_project to create it or resume_project to load it from disk.", nf.Error())
	}
	return "Error: " + err.Error()
}

// bind adapts a typed handler to the raw-argument form stored in the table.
func bind[In any](name, description string, fn func(ctx context.Context, in In) (*orchestrator.Report, error)) Command {
	var zero In
	return Command{
		Name:        name,
		Description: description,
		Input:       zero,
		run: func(ctx context.Context, args json.RawMessage) (*orchestrator.Report, error) {
			var in In
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, &ArgumentError{Command: name, Err: err}
			}
			return fn(ctx, in)
		},
	}
}
