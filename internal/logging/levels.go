package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// TraceLevel sits below Debug. Providers log full prompts and event
// payloads at this level.
const TraceLevel = zapcore.Level(-2)

// levelAliases are the names observability.log_level accepts on top of
// zap's own.
var levelAliases = map[string]zapcore.Level{
	"trace":   TraceLevel,
	"warning": zapcore.WarnLevel,
}

// LevelFromString parses a configured level name. Case and surrounding
// blanks are ignored, so COUNCIL_OBSERVABILITY_LOG_LEVEL=DEBUG works.
func LevelFromString(level string) (zapcore.Level, error) {
	name := strings.ToLower(strings.TrimSpace(level))
	if l, ok := levelAliases[name]; ok {
		return l, nil
	}
	l, err := zapcore.ParseLevel(name)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
	return l, nil
}
