// Package debug provides the process logger setup and category-based debug
// logging for the gateway.
//
// Two orthogonal controls:
//   - Categories (WHAT to debug): controlled via VEDA_DEBUG env or config
//   - Levels (HOW MUCH detail): controlled via VEDA_LOG_LEVEL env or config
//
// Usage:
//
//	debug.Log("broker", "request", "operation", "token", "status", 200)
//	if debug.Enabled("auth") { /* expensive formatting */ }
//
// Categories: auth, broker, storage, gateway, transport, config, all.
// Levels: ERROR, WARN, INFO, DEBUG, TRACE.
//
// Secrets never go through this package. Callers log ids, never the
// credential values that go with them.
package debug

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
)

// LevelTrace is below slog.LevelDebug for maximum verbosity.
const LevelTrace = slog.LevelDebug - 4

// categories holds the set of enabled debug categories.
// Access is read-only after Init(), so no synchronization needed.
var categories map[string]bool

func init() {
	categories = parseCategories(os.Getenv("VEDA_DEBUG"))
}

// Init configures the debug system and installs the default slog logger.
// Environment overrides config. format is "text" (default) or "json".
func Init(configCategories, configLevel, format string) {
	Setup(os.Stderr, configCategories, configLevel, format)
}

// Setup is Init with an explicit output, used by tests.
func Setup(w io.Writer, configCategories, configLevel, format string) {
	cats := os.Getenv("VEDA_DEBUG")
	if cats == "" {
		cats = configCategories
	}
	categories = parseCategories(cats)

	level := os.Getenv("VEDA_LOG_LEVEL")
	if level == "" {
		level = configLevel
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// Enabled reports whether debug output is active for the given category.
func Enabled(category string) bool {
	return categories["all"] || categories[category]
}

// Log emits a debug message for the given category.
// If the category is not enabled, this is a no-op.
func Log(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a trace-level message for the given category.
// Only visible when VEDA_LOG_LEVEL=TRACE.
func Trace(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Log(context.Background(), LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// ParseLevel converts a level string to a slog.Level.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "INFO", "":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Categories returns the sorted list of enabled categories.
func Categories() []string {
	result := make([]string, 0, len(categories))
	for k := range categories {
		result = append(result, k)
	}
	sort.Strings(result)
	return result
}

// Truncate returns s truncated to maxLen bytes, with "..." appended if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	if s == "" {
		return m
	}
	for _, cat := range strings.Split(s, ",") {
		cat = strings.TrimSpace(strings.ToLower(cat))
		if cat != "" {
			m[cat] = true
		}
	}
	return m
}
