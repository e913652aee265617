package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// TraceLevel sits below Debug. Collaborator calls are logged here with
// text lengths and span counts, never the text.
const TraceLevel = zapcore.Level(-2)

// LevelNames are the accepted logging.level values, quietest last.
var LevelNames = []string{"trace", "debug", "info", "warn", "error"}

// LevelFromString parses a logging.level value. Case and surrounding
// space are ignored.
func LevelFromString(level string) (zapcore.Level, error) {
	name := strings.ToLower(strings.TrimSpace(level))
	if name == "trace" {
		return TraceLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("unknown level %q (want one of %s)", level, strings.Join(LevelNames, ", "))
	}
	return l, nil
}
