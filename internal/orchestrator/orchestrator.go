package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/devforge/internal/blueprint"
	"github.com/fyrsmithlabs/devforge/internal/checkpoint"
	"github.com/fyrsmithlabs/devforge/internal/config"
	"github.com/fyrsmithlabs/devforge/internal/events"
	"github.com/fyrsmithlabs/devforge/internal/generate"
	"github.com/fyrsmithlabs/devforge/internal/knowledge"
	"github.com/fyrsmithlabs/devforge/internal/logging"
	"github.com/fyrsmithlabs/devforge/internal/store"
	"github.com/fyrsmithlabs/devforge/internal/workflow"
)

const (
	instrumentationName = "github.com/fyrsmithlabs/devforge/internal/orchestrator"

	// complete_task warns once the tasks since the last checkpoint are
	// within this many of the threshold.
	checkpointWarningMargin = 5
)

// Store is the durable state the orchestrator commits to.
type Store interface {
	checkpoint.Log
	WriteFile(ctx context.Context, project, rel string, data []byte) (string, error)
	SaveSnapshot(ctx context.Context, p *workflow.Project, last *checkpoint.Checkpoint) error
	LoadSnapshot(ctx context.Context, name string) (*store.Snapshot, error)
}

// MatrixGenerator produces the decision matrix of a new project.
type MatrixGenerator interface {
	Generate(ctx context.Context, req generate.MatrixRequest) (*workflow.DecisionMatrix, error)
}

// SpecKitGenerator produces the spec-kit of an approved project.
type SpecKitGenerator interface {
	Generate(ctx context.Context, p *workflow.Project, answers []workflow.Answer, now time.Time) (*workflow.SpecKit, error)
}

// KnowledgeBase answers whether documentation exists for a project.
type KnowledgeBase interface {
	Check(ctx context.Context, projectName, description string, keywords []string) (*knowledge.Result, error)
}

// FileGenerator renders the files of a template-driven artifact.
type FileGenerator func(p *workflow.Project) ([]generate.File, error)

// Orchestrator executes workflow commands against the project registry.
type Orchestrator struct {
	registry  *store.Registry
	store     Store
	matrix    MatrixGenerator
	specKit   SpecKitGenerator
	knowledge KnowledgeBase
	writer    *checkpoint.Writer
	publisher events.Publisher
	blueprint *blueprint.Generator
	apiTests  FileGenerator
	bddTests  FileGenerator
	threshold int
	now       func() time.Time
	logger    *logging.Logger

	lastMu sync.Mutex
	last   map[string]*checkpoint.Checkpoint

	tracer          trace.Tracer
	commandCounter  metric.Int64Counter
	commandDuration metric.Float64Histogram
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithThreshold sets the number of completed tasks that triggers an
// automatic checkpoint. Values below 1 keep the default.
func WithThreshold(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.threshold = n
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithKnowledgeBase sets the knowledge base used by check_knowledge_base.
func WithKnowledgeBase(kb KnowledgeBase) Option {
	return func(o *Orchestrator) { o.knowledge = kb }
}

// WithPublisher sets the workflow event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithRegistry shares a project registry between orchestrators.
func WithRegistry(r *store.Registry) Option {
	return func(o *Orchestrator) { o.registry = r }
}

// WithBlueprintGenerator replaces the UI blueprint generator.
func WithBlueprintGenerator(g *blueprint.Generator) Option {
	return func(o *Orchestrator) { o.blueprint = g }
}

// WithAPITestGenerator replaces the Postman collection generator.
func WithAPITestGenerator(g FileGenerator) Option {
	return func(o *Orchestrator) { o.apiTests = g }
}

// WithBDDGenerator replaces the BDD feature generator.
func WithBDDGenerator(g FileGenerator) Option {
	return func(o *Orchestrator) { o.bddTests = g }
}

// WithTelemetry replaces the global tracer and meter providers.
func WithTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) Option {
	return func(o *Orchestrator) {
		o.tracer = tp.Tracer(instrumentationName)
		o.initMetrics(mp.Meter(instrumentationName))
	}
}

// New creates an Orchestrator. The store, the checkpoint writer and both
// LLM-backed generators are required.
func New(st Store, writer *checkpoint.Writer, matrix MatrixGenerator, specKit SpecKitGenerator, logger *logging.Logger, opts ...Option) (*Orchestrator, error) {
	switch {
	case st == nil:
		return nil, errors.New("store is required")
	case writer == nil:
		return nil, errors.New("checkpoint writer is required")
	case matrix == nil:
		return nil, errors.New("decision matrix generator is required")
	case specKit == nil:
		return nil, errors.New("spec-kit generator is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	o := &Orchestrator{
		registry:  store.NewRegistry(),
		store:     st,
		matrix:    matrix,
		specKit:   specKit,
		writer:    writer,
		publisher: events.Nop{},
		apiTests:  generate.APITestFiles,
		bddTests:  func(p *workflow.Project) ([]generate.File, error) { return generate.BDDFiles(p), nil },
		threshold: checkpoint.DefaultThreshold,
		now:       time.Now,
		logger:    logger.Named("orchestrator"),
		last:      make(map[string]*checkpoint.Checkpoint),
		tracer:    otel.Tracer(instrumentationName),
	}
	o.initMetrics(otel.Meter(instrumentationName))

	for _, opt := range opts {
		opt(o)
	}
	if o.blueprint == nil {
		o.blueprint = blueprint.NewGenerator(blueprint.DefaultCatalog(), o.now)
	}
	if o.knowledge == nil {
		// A disabled knowledge base never fails to construct.
		kb, err := knowledge.New(config.KnowledgeConfig{}, nil, logger)
		if err != nil {
			return nil, err
		}
		o.knowledge = kb
	}
	return o, nil
}

func (o *Orchestrator) initMetrics(meter metric.Meter) {
	var err error

	o.commandCounter, err = meter.Int64Counter(
		"devforge.workflow.commands",
		metric.WithDescription("Workflow commands executed, labeled by command and outcome"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		o.logger.Warn(context.Background(), "failed to create command counter", zap.Error(err))
	}

	o.commandDuration, err = meter.Float64Histogram(
		"devforge.workflow.command.duration",
		metric.WithDescription("Workflow command latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		o.logger.Warn(context.Background(), "failed to create command duration histogram", zap.Error(err))
	}
}

// Threshold returns the automatic checkpoint threshold.
func (o *Orchestrator) Threshold() int {
	return o.threshold
}

// Registry returns the project registry.
func (o *Orchestrator) Registry() *store.Registry {
	return o.registry
}

// Project returns a copy of the committed state of name.
func (o *Orchestrator) Project(name string) (*workflow.Project, bool) {
	p, ok := o.registry.Get(name)
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// run wraps a command with its span, metrics and error logging.
func (o *Orchestrator) run(ctx context.Context, command, project string, fn func(ctx context.Context) (*Report, error)) (*Report, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator."+command)
	defer span.End()
	span.SetAttributes(attribute.String("command", command), attribute.String("project", project))

	ctx = logging.WithCommand(logging.WithProject(ctx, project), command)
	start := time.Now()
	report, err := fn(ctx)
	outcome := outcomeOf(err)

	attrs := metric.WithAttributes(attribute.String("command", command), attribute.String("outcome", outcome))
	if o.commandCounter != nil {
		o.commandCounter.Add(ctx, 1, attrs)
	}
	if o.commandDuration != nil {
		o.commandDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if outcome == "error" {
			o.logger.Error(ctx, "command failed", zap.Error(err))
		} else {
			o.logger.Info(ctx, "command rejected", zap.String("reason", outcome), zap.Error(err))
		}
		return nil, err
	}

	report.Command = command
	if report.Project == "" {
		report.Project = project
	}
	span.SetAttributes(attribute.String("phase", report.Phase.String()))
	o.logger.Info(ctx, "command completed",
		zap.String("phase", report.Phase.String()),
		zap.Int("files", len(report.Files)))
	return report, nil
}

func outcomeOf(err error) string {
	var (
		invalid  *workflow.InvalidInputError
		conflict *workflow.ConflictError
	)
	switch {
	case err == nil:
		return "ok"
	case workflow.IsPrecondition(err):
		return "precondition"
	case workflow.IsNotFound(err):
		return "not_found"
	case errors.As(err, &invalid):
		return "invalid_input"
	case errors.As(err, &conflict):
		return "conflict"
	default:
		return "error"
	}
}

// lookup returns the committed project for name. A project that exists on
// disk but is not loaded yields a precondition error pointing at
// resume_project; an unknown project yields missing(name).
func (o *Orchestrator) lookup(ctx context.Context, name string, missing func(string) error) (*workflow.Project, error) {
	if err := workflow.ValidateName(name); err != nil {
		return nil, err
	}
	if p, ok := o.registry.Get(name); ok {
		return p, nil
	}
	if _, err := o.store.LoadSnapshot(ctx, name); err == nil {
		return nil, &workflow.PreconditionError{
			Project: name,
			Missing: fmt.Sprintf("Project '%s' is saved on disk but not loaded", name),
			Next:    CmdResumeProject,
		}
	}
	return nil, missing(name)
}

func notFound(name string) error {
	return &workflow.NotFoundError{Project: name}
}

// writeFiles persists generated files under the project directory and
// returns their project-relative paths.
func (o *Orchestrator) writeFiles(ctx context.Context, project string, files []generate.File) ([]string, error) {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := o.store.WriteFile(ctx, project, f.Path, f.Content); err != nil {
			return nil, fmt.Errorf("writing %s: %w", f.Path, err)
		}
		paths = append(paths, f.Path)
	}
	return paths, nil
}

// commit persists next and swaps it into the registry. cp is the checkpoint
// written by the command, if any.
func (o *Orchestrator) commit(ctx context.Context, command string, next *workflow.Project, cp *checkpoint.Checkpoint) error {
	last := cp
	if last == nil {
		last = o.lastCheckpoint(next.Name)
	}
	if err := o.store.SaveSnapshot(ctx, next, last); err != nil {
		return fmt.Errorf("saving project state: %w", err)
	}

	o.registry.Put(next)
	if cp != nil {
		o.setLastCheckpoint(next.Name, cp)
	}
	o.publish(ctx, command, next, nil)
	return nil
}

func (o *Orchestrator) lastCheckpoint(name string) *checkpoint.Checkpoint {
	o.lastMu.Lock()
	defer o.lastMu.Unlock()
	return o.last[name]
}

func (o *Orchestrator) setLastCheckpoint(name string, cp *checkpoint.Checkpoint) {
	o.lastMu.Lock()
	defer o.lastMu.Unlock()
	if cp == nil {
		delete(o.last, name)
		return
	}
	o.last[name] = cp
}

// publish emits a workflow event. Failures are logged and never fail the
// command, which is already committed.
func (o *Orchestrator) publish(ctx context.Context, command string, p *workflow.Project, data map[string]any) {
	e := events.NewEvent("workflow."+command, p.Name, o.now())
	e.Phase = p.CurrentPhase.String()
	e.Progress = p.OverallProgress()
	e.Data = data
	if err := o.publisher.Publish(ctx, e); err != nil {
		o.logger.Warn(ctx, "failed to publish workflow event", zap.String("type", e.Type), zap.Error(err))
	}
}

func summarize(cp *checkpoint.Checkpoint) *CheckpointSummary {
	if cp == nil {
		return nil
	}
	return &CheckpointSummary{
		ID:              cp.ID,
		Sequence:        cp.Sequence,
		Auto:            cp.Auto,
		TasksCompleted:  cp.TasksCompleted,
		OverallProgress: cp.OverallProgress,
	}
}
