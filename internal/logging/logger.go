// Package logging builds the harness's zap loggers.
// Each pipeline stage logs through a named child logger for its category;
// a category switched off in config gets a no-op logger.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cornersweep/internal/config"
)

// Category represents a pipeline stage.
type Category string

const (
	CategoryDispatch  Category = "dispatch"  // worker pool, per-item outcomes
	CategorySimulator Category = "simulator" // subprocess execution, version check
	CategoryNormalize Category = "normalize" // result and measured table shaping
	CategoryEvaluate  Category = "evaluate"  // error computation
	CategoryReport    Category = "report"    // verdicts and artifacts
	CategoryStore     Category = "store"     // run ledger
)

// AllCategories lists every category in pipeline order.
var AllCategories = []Category{
	CategoryDispatch,
	CategorySimulator,
	CategoryNormalize,
	CategoryEvaluate,
	CategoryReport,
	CategoryStore,
}

// ParseLevel maps a config level name to a zap level. Unknown names are info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
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

// New builds the root logger. verbose forces debug level.
func New(cfg config.LoggingConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Format != "json" {
		zc = zap.NewDevelopmentConfig()
		zc.Development = false
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(ParseLevel(cfg.Level))
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	zc.DisableStacktrace = true
	zc.OutputPaths = []string{"stderr"}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		zc.OutputPaths = append(zc.OutputPaths, cfg.File)
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// Loggers hands out per-category child loggers.
type Loggers struct {
	root *zap.Logger
	cfg  config.LoggingConfig
}

// NewLoggers wraps root. A nil root logs nothing.
func NewLoggers(root *zap.Logger, cfg config.LoggingConfig) *Loggers {
	if root == nil {
		root = zap.NewNop()
	}
	return &Loggers{root: root, cfg: cfg}
}

// Root returns the uncategorized logger.
func (l *Loggers) Root() *zap.Logger {
	return l.root
}

// Get returns the logger for a category.
func (l *Loggers) Get(category Category) *zap.Logger {
	if !l.cfg.IsCategoryEnabled(string(category)) {
		return zap.NewNop()
	}
	return l.root.Named(string(category))
}

// Sync flushes the root logger.
func (l *Loggers) Sync() {
	_ = l.root.Sync()
}
