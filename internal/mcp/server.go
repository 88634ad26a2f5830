package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/devforge/internal/dispatch"
	"github.com/fyrsmithlabs/devforge/internal/logging"
	"github.com/fyrsmithlabs/devforge/internal/orchestrator"
)

// Server exposes every dispatcher command as an MCP tool.
type Server struct {
	mcp        *mcp.Server
	dispatcher *dispatch.Dispatcher
	metrics    *Metrics
	logger     *logging.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "devforge").
	Name string

	// Version is the server version reported to clients.
	Version string

	// MeterProvider receives tool metrics. Defaults to the global provider.
	MeterProvider metric.MeterProvider
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "devforge",
		Version: "dev",
	}
}

// NewServer creates an MCP server routing tool calls through d.
func NewServer(cfg *Config, d *dispatch.Dispatcher, logger *logging.Logger) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if d == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	mp := cfg.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	logger = logger.Named("mcp")

	s := &Server{
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    cfg.Name,
				Version: cfg.Version,
			},
			nil,
		),
		dispatcher: d,
		metrics:    NewMetrics(mp.Meter(instrumentationName), logger),
		logger:     logger,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	return s, nil
}

// Run serves MCP over stdin/stdout until ctx is done or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info(ctx, "starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// Connect serves a single session over t. Used for in-process clients.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, t, nil)
}

func (s *Server) registerTools() error {
	regs := []error{
		addTool[dispatch.StartProjectInput](s, orchestrator.CmdStartProject),
		addTool[dispatch.ApproveArchitectureInput](s, orchestrator.CmdApproveArchitecture),
		addTool[dispatch.ProjectInput](s, orchestrator.CmdGenerateAPITests),
		addTool[dispatch.ProjectInput](s, orchestrator.CmdAskFrontendQuestions),
		addTool[dispatch.FrontendPromptInput](s, orchestrator.CmdGenerateFrontendPrompt),
		addTool[dispatch.ProjectInput](s, orchestrator.CmdGenerateBDDTests),
		addTool[dispatch.CreateCheckpointInput](s, orchestrator.CmdCreateCheckpoint),
		addTool[dispatch.CompleteTaskInput](s, orchestrator.CmdCompleteTask),
		addTool[dispatch.ProjectInput](s, orchestrator.CmdGetWorkflowStatus),
		addTool[dispatch.KnowledgeBaseInput](s, orchestrator.CmdCheckKnowledgeBase),
		addTool[dispatch.UIBlueprintInput](s, orchestrator.CmdGenerateUIBlueprint),
		addTool[dispatch.ProjectInput](s, orchestrator.CmdResumeProject),
		addTool[dispatch.ProjectInput](s, orchestrator.CmdCompleteProject),
	}
	if err := errors.Join(regs...); err != nil {
		return err
	}
	if got, want := len(regs), len(s.dispatcher.Commands()); got != want {
		return fmt.Errorf("registered %d tools for %d commands", got, want)
	}
	return nil
}

// addTool registers the dispatcher command name as a tool whose input
// schema is inferred from In.
func addTool[In any](s *Server, name string) error {
	cmd, ok := s.dispatcher.Lookup(name)
	if !ok {
		return fmt.Errorf("command %q is not registered", name)
	}
	if _, ok := cmd.Input.(In); !ok {
		return fmt.Errorf("command %q takes %T, not the tool input type", name, cmd.Input)
	}

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        name,
		Description: cmd.Description,
	}, func(ctx context.Context, req *mcp.CallToolRequest, args In) (*mcp.CallToolResult, any, error) {
		s.metrics.IncrementActive(ctx, name)
		defer s.metrics.DecrementActive(ctx, name)
		start := time.Now()

		raw, err := json.Marshal(args)
		if err != nil {
			s.metrics.RecordInvocation(ctx, name, time.Since(start), err)
			return nil, nil, fmt.Errorf("encoding arguments for %s: %w", name, err)
		}

		resp := s.dispatcher.Dispatch(ctx, name, raw)
		s.metrics.RecordInvocation(ctx, name, time.Since(start), resp.Err)
		if resp.IsError {
			s.logger.Debug(ctx, "tool returned error", zap.String("tool", name), zap.String("text", resp.Text))
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: resp.Text}},
			IsError: resp.IsError,
		}, nil, nil
	})
	return nil
}
