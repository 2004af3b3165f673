// Package logging builds the process-wide zap logger and hands out named
// child loggers per subsystem. Campaign attempt records and state transitions
// all flow through here so runs stay greppable per category.
package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names the subsystems that log. Child loggers are cached so the
// same *zap.Logger is returned for repeated lookups.
type Category string

const (
	CategoryMain     Category = "main"
	CategoryCampaign Category = "campaign"
	CategoryBrowser  Category = "browser"
	CategoryQueries  Category = "queries"
	CategoryProgress Category = "progress"
	CategoryPacing   Category = "pacing"
	CategoryStore    Category = "store"
)

var (
	mu       sync.RWMutex
	root     = zap.NewNop()
	children = make(map[Category]*zap.Logger)
)

// Init builds the root logger. level is one of debug/info/warn/error;
// anything else falls back to info. When json is false a console encoder is
// used, which is what you want when tailing a long daemon run.
func Init(level string, json bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if !json {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	mu.Lock()
	root = logger
	children = make(map[Category]*zap.Logger)
	mu.Unlock()
	return logger, nil
}

// SetRoot replaces the root logger. Tests use this with zaptest or a Nop
// logger; production code goes through Init.
func SetRoot(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mu.Lock()
	root = logger
	children = make(map[Category]*zap.Logger)
	mu.Unlock()
}

// Get returns the named child logger for a category.
func Get(cat Category) *zap.Logger {
	mu.RLock()
	if l, ok := children[cat]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := children[cat]; ok {
		return l
	}
	l := root.Named(string(cat))
	children[cat] = l
	return l
}

// Sync flushes buffered entries. Safe to call on shutdown paths.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
