package logging

import (
	"reflect"
	"regexp"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger records every entry, trace included, without sampling.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger creates a recording logger.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(TraceLevel)
	return &TestLogger{
		Logger: &Logger{
			zap:    zap.New(core),
			config: NewDefaultConfig(),
		},
		observed: observed,
	}
}

// All returns all logged entries.
func (t *TestLogger) All() []observer.LoggedEntry {
	return t.observed.All()
}

// FilterMessage returns entries matching message substring.
func (t *TestLogger) FilterMessage(msg string) *observer.ObservedLogs {
	return t.observed.FilterMessage(msg)
}

// ForProject returns the entries tagged with project.
func (t *TestLogger) ForProject(project string) []observer.LoggedEntry {
	return t.observed.FilterField(zap.String(projectKey, project)).All()
}

// Reset clears all logged entries.
func (t *TestLogger) Reset() {
	t.observed.TakeAll()
}

// AssertLogged verifies a log at level containing message was logged.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, msgContains string) {
	tb.Helper()
	if t.find(level, "", msgContains) {
		return
	}
	tb.Errorf("expected log at %v containing %q, logs: %+v", level, msgContains, t.observed.All())
}

// AssertCommandLogged is AssertLogged limited to entries carrying the
// command field of the context they were logged with.
func (t *TestLogger) AssertCommandLogged(tb testing.TB, command string, level zapcore.Level, msgContains string) {
	tb.Helper()
	if t.find(level, command, msgContains) {
		return
	}
	tb.Errorf("expected %s log at %v containing %q, logs: %+v", command, level, msgContains, t.observed.All())
}

func (t *TestLogger) find(level zapcore.Level, command, msgContains string) bool {
	for _, entry := range t.observed.All() {
		if entry.Level != level || !strings.Contains(entry.Message, msgContains) {
			continue
		}
		if command == "" {
			return true
		}
		if v, ok := commandField(entry.Context); ok && v == command {
			return true
		}
	}
	return false
}

// AssertField verifies a field with key and value exists in message.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, expected any) {
	tb.Helper()
	for _, entry := range t.observed.FilterMessage(msg).All() {
		for _, field := range entry.Context {
			if field.Key != key {
				continue
			}
			if field.Type == zapcore.StringType && field.String == expected {
				return
			}
			if reflect.DeepEqual(field.Interface, expected) {
				return
			}
		}
	}
	tb.Errorf("field %q=%v not found in message %q", key, expected, msg)
}

// AssertNoSecrets fails when a string field named by the redaction settings
// holds clear text, or when any message or string field matches a
// redaction pattern. Values built with RedactedString pass.
func (t *TestLogger) AssertNoSecrets(tb testing.TB) {
	tb.Helper()
	rc := t.config.Redaction
	patterns := make([]*regexp.Regexp, 0, len(rc.Patterns))
	for _, p := range rc.Patterns {
		patterns = append(patterns, regexp.MustCompile(p))
	}
	leaks := func(s string) bool {
		for _, re := range patterns {
			if re.MatchString(s) {
				return true
			}
		}
		return false
	}

	for _, entry := range t.observed.All() {
		if leaks(entry.Message) {
			tb.Errorf("sensitive pattern in message: %q", entry.Message)
		}
		for _, field := range entry.Context {
			if field.Type != zapcore.StringType {
				continue
			}
			if leaks(field.String) {
				tb.Errorf("sensitive pattern in field %q: %q", field.Key, field.String)
			}
			key := strings.ToLower(field.Key)
			for _, name := range rc.Fields {
				if strings.Contains(key, name) && field.String != "" && !strings.HasPrefix(field.String, "[REDACTED") {
					tb.Errorf("sensitive field %q not redacted: %q", field.Key, field.String)
				}
			}
		}
	}
}
