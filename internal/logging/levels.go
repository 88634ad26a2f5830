package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// TraceLevel sits below Debug. Per-task ledger updates are logged here so a
// long complete_task run stays quiet at debug.
const TraceLevel = zapcore.Level(-2)

// levelNames are the values accepted by the logging.level setting.
var levelNames = map[string]zapcore.Level{
	"trace": TraceLevel,
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
}

// LevelFromString parses a logging.level value. It is case-insensitive and
// an empty value means info.
func LevelFromString(level string) (zapcore.Level, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	if l, ok := levelNames[level]; ok {
		return l, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown level %q (expected trace, debug, info, warn or error)", level)
}
