package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"cornersweep/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("WARN"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("info"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("chatty"))
}

func TestCategoriesAreNamedChildren(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	loggers := NewLoggers(zap.New(core), config.LoggingConfig{})

	for _, cat := range AllCategories {
		loggers.Get(cat).Info("hello")
	}

	entries := logs.All()
	require.Len(t, entries, len(AllCategories))
	for i, cat := range AllCategories {
		assert.Equal(t, string(cat), entries[i].LoggerName)
	}
}

func TestDisabledCategoryIsSilent(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	loggers := NewLoggers(zap.New(core), config.LoggingConfig{
		Categories: map[string]bool{"dispatch": false},
	})

	loggers.Get(CategoryDispatch).Info("dropped")
	loggers.Get(CategoryReport).Info("kept")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "kept", logs.All()[0].Message)
}

func TestNilRootIsNop(t *testing.T) {
	loggers := NewLoggers(nil, config.LoggingConfig{})
	assert.NotPanics(t, func() {
		loggers.Get(CategoryStore).Info("nothing")
		loggers.Sync()
	})
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "sweep.log")
	logger, err := New(config.LoggingConfig{Level: "warn", Format: "json", File: path}, false)
	require.NoError(t, err)

	logger.Info("below level")
	logger.Warn("written", zap.String("device", "npn"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.False(t, strings.Contains(out, "below level"))
	assert.Contains(t, out, `"msg":"written"`)
	assert.Contains(t, out, `"device":"npn"`)
}

func TestNewVerboseForcesDebug(t *testing.T) {
	logger, err := New(config.LoggingConfig{Level: "error"}, true)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}
