package logging

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/devforge/internal/config"
)

func TestNewLogger(t *testing.T) {
	cfg := NewDefaultConfig()

	logger, err := NewLogger(cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Equal(t, cfg, logger.config)
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output.Stderr = false

	_, err := NewLogger(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one output")
}

func TestFromSettings(t *testing.T) {
	cfg, err := FromSettings("trace", "console")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)

	_, err = FromSettings("loud", "json")
	assert.Error(t, err)

	_, err = FromSettings("info", "xml")
	assert.Error(t, err)
}

func TestLogger_ContextAwareMethods(t *testing.T) {
	core, observed := observer.New(TraceLevel)
	logger := &Logger{zap: zap.New(core), config: NewDefaultConfig()}

	ctx := WithProject(context.Background(), "todo-app")
	ctx = WithCommand(ctx, "complete_task")

	tests := []struct {
		name  string
		log   func()
		level zapcore.Level
	}{
		{name: "trace", log: func() { logger.Trace(ctx, "msg") }, level: TraceLevel},
		{name: "debug", log: func() { logger.Debug(ctx, "msg") }, level: zapcore.DebugLevel},
		{name: "info", log: func() { logger.Info(ctx, "msg") }, level: zapcore.InfoLevel},
		{name: "warn", log: func() { logger.Warn(ctx, "msg") }, level: zapcore.WarnLevel},
		{name: "error", log: func() { logger.Error(ctx, "msg") }, level: zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			observed.TakeAll()
			tt.log()

			logs := observed.All()
			require.Len(t, logs, 1)
			assert.Equal(t, tt.level, logs[0].Level)

			fields := logs[0].ContextMap()
			assert.Equal(t, "todo-app", fields["project"])
			assert.Equal(t, "complete_task", fields["command"])
		})
	}
}

func TestContextFields_Empty(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
}

func TestWithProject_Sanitizes(t *testing.T) {
	ctx := WithProject(context.Background(), strings.Repeat("p", 300))
	assert.Len(t, ProjectFromContext(ctx), maxContextValueLen)

	ctx = WithProject(context.Background(), "bad\xffname")
	assert.Equal(t, "badname", ProjectFromContext(ctx))

	assert.Equal(t, context.Background(), WithCommand(context.Background(), ""))
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	logger := NewTestLogger()
	ctx := WithLogger(context.Background(), logger.Logger)
	FromContext(ctx).Info(ctx, "from context")
	logger.AssertLogged(t, zapcore.InfoLevel, "from context")
}

func TestLogger_NamedAndWith(t *testing.T) {
	logger := NewTestLogger()
	child := logger.Named("checkpoint").With(zap.String("component", "writer"))
	child.Info(context.Background(), "saved")

	entries := logger.FilterMessage("saved").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "checkpoint", entries[0].LoggerName)
	logger.AssertField(t, "saved", "component", "writer")
}

func TestRedactingEncoder(t *testing.T) {
	enc, err := NewRedactingEncoder(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	buf, err := enc.EncodeEntry(zapcore.Entry{Message: "call"}, []zapcore.Field{
		zap.String("api_key", "sk-123"),
		zap.String("header", "Bearer abc.def"),
		zap.String("project", "todo-app"),
	})
	require.NoError(t, err)

	out := buf.String()
	assert.NotContains(t, out, "sk-123")
	assert.NotContains(t, out, "abc.def")
	assert.Contains(t, out, "todo-app")
}

func TestRedactingEncoder_BadPattern(t *testing.T) {
	_, err := NewRedactingEncoder(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), RedactionConfig{
		Enabled:  true,
		Patterns: []string{"("},
	})
	assert.Error(t, err)
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{in: "trace", want: TraceLevel},
		{in: "WARN", want: zapcore.WarnLevel},
		{in: " debug ", want: zapcore.DebugLevel},
		{in: "", want: zapcore.InfoLevel},
		{in: "fatal", want: zapcore.InfoLevel, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			lvl, err := LevelFromString(tt.in)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, lvl)
		})
	}
}

func TestSampledCore_ErrorsNeverSampled(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	cfg := NewDefaultConfig().Sampling
	cfg.Levels = map[zapcore.Level]LevelSamplingConfig{
		zapcore.InfoLevel: {Initial: 1, Thereafter: 0},
	}
	logger := zap.New(newSampledCore(core, cfg))

	for i := 0; i < 5; i++ {
		logger.Info("repeated")
		logger.Error("failure")
		logger.Debug("unrated")
	}

	assert.Equal(t, 1, observed.FilterMessage("repeated").Len())
	assert.Equal(t, 5, observed.FilterMessage("failure").Len())
	assert.Equal(t, 5, observed.FilterMessage("unrated").Len())
}

func TestSampledCore_KeysOnCommand(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cfg := SamplingConfig{
		Enabled: true,
		Tick:    config.Duration(time.Second),
		Levels:  map[zapcore.Level]LevelSamplingConfig{zapcore.InfoLevel: {Initial: 2, Thereafter: 3}},
	}
	logger := &Logger{zap: zap.New(newCommandSampler(core, cfg, func() time.Time { return now })), config: NewDefaultConfig()}

	busy := WithCommand(WithProject(context.Background(), "todo-app"), "complete_task")
	for i := 0; i < 8; i++ {
		logger.Info(busy, "command completed")
	}
	// The 1st, 2nd, 5th and 8th pass.
	assert.Equal(t, 4, observed.FilterMessage("command completed").Len())

	other := WithCommand(context.Background(), "create_checkpoint")
	logger.Info(other, "command completed")
	require.Len(t, observed.FilterField(zap.String("command", "create_checkpoint")).All(), 1)

	// A child tagged with the same command shares the count; the 9th is dropped.
	child := logger.With(zap.String("command", "complete_task"))
	child.Info(context.Background(), "command completed")
	assert.Equal(t, 5, observed.FilterMessage("command completed").Len())

	now = now.Add(time.Second)
	logger.Info(busy, "command completed")
	assert.Equal(t, 6, observed.FilterMessage("command completed").Len())
}

func TestSampledCore_Disabled(t *testing.T) {
	core, _ := observer.New(zapcore.DebugLevel)
	assert.Same(t, core, newSampledCore(core, SamplingConfig{}))
}

func TestTestLogger_ContextAssertions(t *testing.T) {
	logger := NewTestLogger()
	ctx := WithCommand(WithProject(context.Background(), "todo-app"), "complete_task")

	logger.Trace(ctx, "task recorded", zap.String("task_id", "T001"))
	logger.Info(WithProject(context.Background(), "other"), "project loaded")
	logger.Info(ctx, "credential resolved",
		Secret("api_key", config.Secret("sk-123")),
		RedactedString("token", "abc"),
		zap.String("source", "ANTHROPIC_API_KEY"))

	logger.AssertCommandLogged(t, "complete_task", TraceLevel, "task recorded")
	logger.AssertField(t, "task recorded", "task_id", "T001")
	assert.Len(t, logger.ForProject("todo-app"), 2)
	assert.Len(t, logger.ForProject("other"), 1)
	logger.AssertNoSecrets(t)

	logger.Reset()
	assert.Empty(t, logger.All())
}
