package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitLevels(t *testing.T) {
	cases := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, parseLevel(tc.in), "level %q", tc.in)
	}

	logger, err := Init("debug", true)
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	SetRoot(nil)
}

func TestGetCachesChildPerCategory(t *testing.T) {
	SetRoot(zap.NewNop())
	defer SetRoot(nil)

	first := Get(CategoryCampaign)
	second := Get(CategoryCampaign)
	require.NotNil(t, first)
	assert.Same(t, first, second, "repeated lookups must return the cached child")
	assert.NotSame(t, first, Get(CategoryBrowser))
}

func TestSetRootInvalidatesChildren(t *testing.T) {
	SetRoot(zap.NewNop())
	stale := Get(CategoryQueries)

	core, logs := observer.New(zapcore.InfoLevel)
	SetRoot(zap.New(core))
	defer SetRoot(nil)

	fresh := Get(CategoryQueries)
	require.NotSame(t, stale, fresh)

	fresh.Info("hello")
	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "queries", entries[0].LoggerName)
}
