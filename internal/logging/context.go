package logging

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const maxContextValueLen = 128

// Field keys added by ContextFields.
const (
	projectKey = "project"
	commandKey = "command"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	if project := ProjectFromContext(ctx); project != "" {
		fields = append(fields, zap.String(projectKey, project))
	}
	if command := CommandFromContext(ctx); command != "" {
		fields = append(fields, zap.String(commandKey, command))
	}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}

	return fields
}

type projectCtxKey struct{}
type commandCtxKey struct{}
type requestCtxKey struct{}
type loggerCtxKey struct{}

// sanitize truncates v and drops invalid UTF-8 so caller-supplied names
// cannot bloat or corrupt log lines.
func sanitize(v string) string {
	if len(v) > maxContextValueLen {
		v = v[:maxContextValueLen]
	}
	return strings.ToValidUTF8(v, "")
}

// WithProject tags the context with a project name.
func WithProject(ctx context.Context, project string) context.Context {
	if project == "" {
		return ctx
	}
	return context.WithValue(ctx, projectCtxKey{}, sanitize(project))
}

// ProjectFromContext extracts the project name from context.
func ProjectFromContext(ctx context.Context) string {
	if p, ok := ctx.Value(projectCtxKey{}).(string); ok {
		return p
	}
	return ""
}

// WithCommand tags the context with the command being executed.
func WithCommand(ctx context.Context, command string) context.Context {
	if command == "" {
		return ctx
	}
	return context.WithValue(ctx, commandCtxKey{}, sanitize(command))
}

// CommandFromContext extracts the command name from context.
func CommandFromContext(ctx context.Context) string {
	if c, ok := ctx.Value(commandCtxKey{}).(string); ok {
		return c
	}
	return ""
}

// WithRequestID tags the context with a transport request id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, sanitize(requestID))
}

// RequestIDFromContext extracts request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return r
	}
	return ""
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
