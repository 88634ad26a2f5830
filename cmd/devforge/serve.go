package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/devforge/internal/config"
	"github.com/fyrsmithlabs/devforge/internal/logging"
	"github.com/fyrsmithlabs/devforge/internal/mcp"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the workflow commands as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
				server, err := mcp.NewServer(&mcp.Config{
					Name:    a.cfg.Server.Name,
					Version: version,
				}, a.dispatcher, a.logger)
				if err != nil {
					return fmt.Errorf("failed to create MCP server: %w", err)
				}
				return server.Run(ctx)
			})
		},
	}
}

// runWithApp loads configuration, builds the app and runs fn until ctx is
// cancelled. The logger is flushed on every exit path.
func runWithApp(ctx context.Context, opts *options, fn func(context.Context, *app) error) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx = logging.WithRequestID(ctx, "startup")
	logStart(ctx, logger, cfg)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))

	a.watchKnowledge(ctx)
	return fn(ctx, a)
}

func logStart(ctx context.Context, logger *logging.Logger, cfg *config.Config) {
	logger.Info(ctx, "starting devforge",
		zap.String("version", version),
		zap.String("commit", gitCommit),
		zap.String("output_dir", cfg.Storage.OutputDir))
}
