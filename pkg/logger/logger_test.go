package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"INFO", zapcore.InfoLevel},
		{"info", zapcore.InfoLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"WARNING", zapcore.WarnLevel},
		{"warn", zapcore.WarnLevel},
		{"ERROR", zapcore.ErrorLevel},
		{"CRITICAL", zapcore.DPanicLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	l, err := New(Config{Level: "DEBUG", Encoding: "console"})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	_, err = New(Config{Level: "nope"})
	assert.Error(t, err)
}

func TestInitReplacesGlobal(t *testing.T) {
	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })

	first, err := Init(Config{Level: "DEBUG", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	assert.Same(t, first, zap.L())
	assert.True(t, zap.L().Core().Enabled(zapcore.DebugLevel))

	second, err := Init(Config{Level: "WARNING", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	assert.Same(t, second, zap.L())
	assert.False(t, zap.L().Core().Enabled(zapcore.InfoLevel))

	_, err = Init(Config{Level: "loud"})
	require.Error(t, err)
	assert.Same(t, second, zap.L())
}
