// Package logging provides structured logging with OpenTelemetry integration.
//
// The package wraps Zap with:
//   - a custom Trace level (-2, below Debug)
//   - stderr output plus an optional OpenTelemetry bridge
//   - context field injection (trace_id, project, command, request id)
//   - secret redaction in the encoder
//   - sampling keyed on level, command and message (errors are never sampled)
//
// Logs go to stderr because the MCP stdio transport owns stdout.
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithProject(ctx, "todo-app")
//	ctx = logging.WithCommand(ctx, "complete_task")
//	logger.Info(ctx, "task completed", zap.String("task_id", "T001"))
//
// Tests use NewTestLogger, which records entries in memory:
//
//	logger := logging.NewTestLogger()
//	o, _ := orchestrator.New(fs, writer, matrix, kit, logger.Logger)
//	logger.AssertCommandLogged(t, "complete_task", logging.TraceLevel, "task recorded")
package logging
