package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetLevelControlsEnabled(t *testing.T) {
	defer SetLevel(INFO)

	SetLevel(WARN)
	require.False(t, enabled(DEBUG))
	require.False(t, enabled(INFO))
	require.True(t, enabled(WARN))
	require.True(t, enabled(ERROR))

	SetLevel(DEBUG)
	require.True(t, enabled(DEBUG))
}

func TestLoggingCallsDoNotPanicAtAnyLevel(t *testing.T) {
	defer SetLevel(INFO)

	SetLevel(DEBUG)
	require.NotPanics(t, func() {
		Debug("debug %d", 1)
		Info("info %s", "x")
		Warn("warn %v", true)
		Error("error: %v", "boom")
	})
}

func TestSlogLevelMapping(t *testing.T) {
	require.Equal(t, "DEBUG", slogLevel(DEBUG).String())
	require.Equal(t, "WARN", slogLevel(WARN).String())
	require.Equal(t, "ERROR", slogLevel(ERROR).String())
	require.Equal(t, "INFO", slogLevel(INFO).String())
}
