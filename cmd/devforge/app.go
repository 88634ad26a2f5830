package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/devforge/internal/checkpoint"
	"github.com/fyrsmithlabs/devforge/internal/config"
	"github.com/fyrsmithlabs/devforge/internal/dispatch"
	"github.com/fyrsmithlabs/devforge/internal/events"
	"github.com/fyrsmithlabs/devforge/internal/generate"
	"github.com/fyrsmithlabs/devforge/internal/knowledge"
	"github.com/fyrsmithlabs/devforge/internal/llm"
	"github.com/fyrsmithlabs/devforge/internal/logging"
	"github.com/fyrsmithlabs/devforge/internal/orchestrator"
	"github.com/fyrsmithlabs/devforge/internal/secrets"
	"github.com/fyrsmithlabs/devforge/internal/store"
	"github.com/fyrsmithlabs/devforge/internal/telemetry"
)

// loadConfig reads the configuration and applies command-line overrides.
func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.LoadWithFile(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.outputDir != "" {
		cfg.Storage.OutputDir = opts.outputDir
	}
	return cfg, nil
}

// newLogger builds the process logger. Output goes to stderr because stdout
// carries the MCP protocol.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	lc, err := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(lc, nil)
}

// app wires the server components shared by the serve and http commands.
type app struct {
	cfg        *config.Config
	logger     *logging.Logger
	tel        *telemetry.Telemetry
	store      *store.FileStore
	knowledge  *knowledge.Base
	publisher  events.Publisher
	dispatcher *dispatch.Dispatcher
}

// newApp initializes dependencies in order: telemetry, the LLM client, the
// project store, the knowledge base, the event publisher and finally the
// orchestrator and dispatcher. The LLM credential is resolved before
// anything is written.
func newApp(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*app, error) {
	cred, err := llm.ResolveCredential(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("no AI credential available: %w", err)
	}
	logger.Info(ctx, "resolved AI credential",
		zap.String("provider", cred.Provider),
		zap.String("source", cred.Source))

	a := &app{cfg: cfg, logger: logger}

	a.tel, err = telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	gen, err := llm.NewGenerator(ctx, cfg.LLM, logger)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	a.store, err = store.NewFileStore(cfg.Storage.OutputDir, logger)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to open project store: %w", err)
	}

	a.knowledge, err = knowledge.New(cfg.Knowledge, nil, logger)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to initialize knowledge base: %w", err)
	}

	a.publisher = events.Nop{}
	if cfg.Events.NATSURL != "" {
		pub, err := events.Connect(cfg.Events.NATSURL, cfg.Events.SubjectPrefix, logger)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.Events.NATSURL, err)
		}
		a.publisher = pub
	}

	scrubber, err := secrets.New(nil)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to initialize secret scrubber: %w", err)
	}
	writer, err := checkpoint.NewWriter(a.store, logger, checkpoint.WithScrubber(scrubber))
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	o, err := orchestrator.New(a.store, writer,
		generate.NewMatrixGenerator(gen),
		generate.NewSpecKitGenerator(gen),
		logger,
		orchestrator.WithThreshold(cfg.Workflow.CheckpointThreshold),
		orchestrator.WithKnowledgeBase(a.knowledge),
		orchestrator.WithPublisher(a.publisher),
	)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	a.dispatcher, err = dispatch.New(o, logger)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	logger.Info(ctx, "devforge initialized",
		zap.String("output_dir", a.store.Root()),
		zap.Int("checkpoint_threshold", o.Threshold()),
		zap.Bool("knowledge_base", a.knowledge.Enabled()),
		zap.Bool("events", cfg.Events.NATSURL != ""))
	return a, nil
}

// watchKnowledge reindexes the knowledge base when its sources change,
// until ctx is done.
func (a *app) watchKnowledge(ctx context.Context) {
	if !a.knowledge.Enabled() || !a.cfg.Knowledge.Watch {
		return
	}
	go func() {
		err := a.knowledge.Watch(ctx, knowledge.DefaultDebounce, func(n int, err error) {
			if err != nil {
				a.logger.Warn(ctx, "knowledge base reindex failed", zap.Error(err))
				return
			}
			a.logger.Info(ctx, "knowledge base reindexed", zap.Int("documents", n))
		})
		if err != nil {
			a.logger.Warn(ctx, "knowledge base watcher stopped", zap.Error(err))
		}
	}()
}

// Close releases the publisher and flushes telemetry.
func (a *app) Close(ctx context.Context) {
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.tel != nil {
		errs = append(errs, a.tel.Shutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn(ctx, "shutdown incomplete", zap.Error(err))
	}
}
