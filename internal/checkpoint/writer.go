package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/devforge/internal/logging"
	"github.com/fyrsmithlabs/devforge/internal/secrets"
	"github.com/fyrsmithlabs/devforge/internal/workflow"
)

const instrumentationName = "github.com/fyrsmithlabs/devforge/internal/checkpoint"

// Log is the durable, append-only checkpoint log.
type Log interface {
	AppendCheckpoint(ctx context.Context, project string, cp *Checkpoint) error
}

// Writer creates checkpoints.
type Writer struct {
	log      Log
	logger   *logging.Logger
	scrubber secrets.Scrubber
	now      func() time.Time

	tracer         trace.Tracer
	createdCounter metric.Int64Counter
	errorCounter   metric.Int64Counter
}

// Option configures a Writer.
type Option func(*Writer)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

// WithScrubber sets the scrubber applied to reported issues.
func WithScrubber(s secrets.Scrubber) Option {
	return func(w *Writer) { w.scrubber = s }
}

// WithTelemetry replaces the global tracer and meter providers.
func WithTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) Option {
	return func(w *Writer) {
		w.tracer = tp.Tracer(instrumentationName)
		w.initMetrics(mp.Meter(instrumentationName))
	}
}

// NewWriter creates a Writer that appends to log.
func NewWriter(log Log, logger *logging.Logger, opts ...Option) (*Writer, error) {
	if log == nil {
		return nil, errors.New("checkpoint log is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	w := &Writer{
		log:      log,
		logger:   logger.Named("checkpoint"),
		scrubber: secrets.NoopScrubber{},
		now:      time.Now,
		tracer:   otel.Tracer(instrumentationName),
	}
	w.initMetrics(otel.Meter(instrumentationName))

	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func (w *Writer) initMetrics(meter metric.Meter) {
	var err error

	w.createdCounter, err = meter.Int64Counter(
		"devforge.checkpoint.created",
		metric.WithDescription("Checkpoints written, labeled by whether they were automatic"),
		metric.WithUnit("{checkpoint}"),
	)
	if err != nil {
		w.logger.Warn(context.Background(), "failed to create checkpoint counter", zap.Error(err))
	}

	w.errorCounter, err = meter.Int64Counter(
		"devforge.checkpoint.errors",
		metric.WithDescription("Checkpoint writes that failed"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		w.logger.Warn(context.Background(), "failed to create checkpoint error counter", zap.Error(err))
	}
}

// Create records a checkpoint for p. p must be a clone owned by the caller:
// its ledger is advanced, its progress recomputed and req.Issues appended.
// If the log append fails, p is left partially updated and must be discarded.
func (w *Writer) Create(ctx context.Context, p *workflow.Project, req Request) (*Checkpoint, error) {
	ctx, span := w.tracer.Start(ctx, "checkpoint.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("project", p.Name),
		attribute.Bool("auto", req.Auto),
	)

	if err := p.RequireProgress(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	now := w.now()
	issues := p.AddIssues(secrets.ScrubAll(w.scrubber, req.Issues))
	delta := p.Ledger.Checkpoint()

	cp := &Checkpoint{
		ID:               uuid.New().String(),
		Project:          p.Name,
		Sequence:         p.Progress.CheckpointCount + 1,
		Timestamp:        now,
		Phase:            p.CurrentPhase.String(),
		CompletedTaskIDs: delta,
		CurrentTaskID:    req.CurrentTaskID,
		Issues:           issues,
		TasksCompleted:   p.Ledger.TasksCompleted,
		OverallProgress:  p.OverallProgress(),
		Auto:             req.Auto,
	}

	p.Progress.OverallProgress = cp.OverallProgress
	p.Progress.CheckpointCount = cp.Sequence
	p.Progress.LastCheckpointID = cp.ID
	p.Progress.LastCheckpointAt = &now
	if req.CurrentTaskID != nil {
		p.Progress.CurrentTaskID = *req.CurrentTaskID
	}
	p.UpdatedAt = now

	if err := w.log.AppendCheckpoint(ctx, p.Name, cp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if w.errorCounter != nil {
			w.errorCounter.Add(ctx, 1)
		}
		return nil, fmt.Errorf("failed to write checkpoint: %w", err)
	}

	if w.createdCounter != nil {
		w.createdCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("auto", req.Auto)))
	}

	w.logger.Info(ctx, "saved checkpoint",
		zap.String("id", cp.ID),
		zap.Int("sequence", cp.Sequence),
		zap.Int("tasks_completed", cp.TasksCompleted),
		zap.Int("delta", len(delta)),
		zap.Bool("auto", cp.Auto),
	)

	span.SetAttributes(attribute.String("checkpoint_id", cp.ID))
	return cp, nil
}
