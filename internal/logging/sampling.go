package logging

import (
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

// commandSampler thins repeated entries below error level. Counts are kept
// per level, command and message, so a burst of "command completed" from
// complete_task does not drop the same message logged by another command.
type commandSampler struct {
	zapcore.Core
	command string
	state   *samplerState
}

type sampleKey struct {
	level   zapcore.Level
	command string
	msg     string
}

type samplerState struct {
	mu      sync.Mutex
	tick    time.Duration
	levels  map[zapcore.Level]LevelSamplingConfig
	now     func() time.Time
	resetAt time.Time
	counts  map[sampleKey]int
}

func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	return newCommandSampler(core, cfg, time.Now)
}

func newCommandSampler(core zapcore.Core, cfg SamplingConfig, now func() time.Time) zapcore.Core {
	if !cfg.Enabled {
		return core
	}
	return &commandSampler{
		Core: core,
		state: &samplerState{
			tick:   cfg.Tick.Duration(),
			levels: cfg.Levels,
			now:    now,
			counts: make(map[sampleKey]int),
		},
	}
}

// With keeps the command of a child logger built with zap.String("command", ...).
func (c *commandSampler) With(fields []zapcore.Field) zapcore.Core {
	command := c.command
	if v, ok := commandField(fields); ok {
		command = v
	}
	return &commandSampler{Core: c.Core.With(fields), command: command, state: c.state}
}

// Check defers the decision to Write, where the context fields are known.
func (c *commandSampler) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return ce.AddCore(e, c)
}

func (c *commandSampler) Write(e zapcore.Entry, fields []zapcore.Field) error {
	command := c.command
	if v, ok := commandField(fields); ok {
		command = v
	}
	if !c.state.allow(sampleKey{level: e.Level, command: command, msg: e.Message}) {
		return nil
	}
	return c.Core.Write(e, fields)
}

// allow reports whether the n-th entry for k within the current tick passes.
// Error and above always pass, as do levels without a rate.
func (s *samplerState) allow(k sampleKey) bool {
	if k.level >= zapcore.ErrorLevel {
		return true
	}
	rate, ok := s.levels[k.level]
	if !ok {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if !now.Before(s.resetAt) {
		clear(s.counts)
		s.resetAt = now.Add(s.tick)
	}
	s.counts[k]++
	n := s.counts[k]
	if n <= rate.Initial {
		return true
	}
	return rate.Thereafter > 0 && (n-rate.Initial)%rate.Thereafter == 0
}

// commandField returns the last "command" string field, matching the
// precedence of duplicate keys in the encoded line.
func commandField(fields []zapcore.Field) (string, bool) {
	for i := len(fields) - 1; i >= 0; i-- {
		if fields[i].Key == commandKey && fields[i].Type == zapcore.StringType {
			return fields[i].String, true
		}
	}
	return "", false
}
