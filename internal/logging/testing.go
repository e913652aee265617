package logging

import (
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger is a Logger whose entries are kept in memory, so tests can
// check what was logged and that no validated text was.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger records every entry at TraceLevel and above, including
// the per-call collaborator entries.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(TraceLevel)
	return &TestLogger{
		Logger:   &Logger{zap: zap.New(core)},
		observed: observed,
	}
}

// All returns every recorded entry.
func (t *TestLogger) All() []observer.LoggedEntry {
	return t.observed.All()
}

// FilterMessage returns entries whose message equals msg.
func (t *TestLogger) FilterMessage(msg string) *observer.ObservedLogs {
	return t.observed.FilterMessage(msg)
}

// Reset drops recorded entries.
func (t *TestLogger) Reset() {
	t.observed.TakeAll()
}

// matching returns the entries at level whose message contains substr.
func (t *TestLogger) matching(level zapcore.Level, substr string) []observer.LoggedEntry {
	var out []observer.LoggedEntry
	for _, entry := range t.observed.All() {
		if entry.Level == level && strings.Contains(entry.Message, substr) {
			out = append(out, entry)
		}
	}
	return out
}

// AssertLogged fails tb unless an entry at level contains msgContains.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, msgContains string) {
	tb.Helper()
	if len(t.matching(level, msgContains)) == 0 {
		tb.Errorf("no %v entry containing %q among %d entries", level, msgContains, len(t.observed.All()))
	}
}

// AssertNotLogged fails tb if an entry at level contains msgContains, for
// example a collaborator warning on a request rejected before detection.
func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, msgContains string) {
	tb.Helper()
	if n := len(t.matching(level, msgContains)); n > 0 {
		tb.Errorf("%d unexpected %v entries containing %q", n, level, msgContains)
	}
}

// AssertField fails tb unless an entry with message msg carries key=expected.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, expected interface{}) {
	tb.Helper()
	for _, entry := range t.observed.FilterMessage(msg).All() {
		if v, ok := entry.ContextMap()[key]; ok && reflect.DeepEqual(v, expected) {
			return
		}
	}
	tb.Errorf("field %q=%v not found in message %q", key, expected, msg)
}

// AssertNoText fails tb if text appears in any recorded message or field.
// Validated texts must only ever be logged by length.
func (t *TestLogger) AssertNoText(tb testing.TB, text string) {
	tb.Helper()
	if text == "" {
		return
	}
	for _, entry := range t.observed.All() {
		if strings.Contains(entry.Message, text) {
			tb.Errorf("text leaked into message %q", entry.Message)
		}
		for key, v := range entry.ContextMap() {
			if s, ok := v.(string); ok && strings.Contains(s, text) {
				tb.Errorf("text leaked into field %q", key)
			}
		}
	}
}
