// Package envconfig holds the ambient, process-wide tunables that are
// genuinely environmental rather than per-request: log verbosity, the
// default kernel-build option overrides, and the default context budget.
// Callers (cmd/moondream) let explicit flags override these defaults.
package envconfig

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// LogLevel reports the configured slog level.
// Configurable via MOONDREAM_DEBUG: unset/false = INFO, true/1 = DEBUG.
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("MOONDREAM_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}
	return level
}

// ExtraBuildOptions returns extra OpenCL program build options appended
// after the canonical option set, for driver-specific tuning.
// Configurable via MOONDREAM_CL_OPTS (space separated).
func ExtraBuildOptions() []string {
	s := Var("MOONDREAM_CL_OPTS")
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}

// DefaultMaxContext is the context length both commands assign to
// model.Config.MaxContext. Configurable via MOONDREAM_MAX_CONTEXT.
func DefaultMaxContext() int {
	const fallback = 2048
	s := Var("MOONDREAM_MAX_CONTEXT")
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// Var reads an environment variable, trimming surrounding whitespace and quotes.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
