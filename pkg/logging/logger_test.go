package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, LevelInfo, cfg.Level)
	assert.False(t, cfg.Pretty)
	assert.NotNil(t, cfg.Output)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{" error ", LevelError, false},
		{"trace", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToZerolog(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, toZerolog(LevelDebug))
	assert.Equal(t, zerolog.WarnLevel, toZerolog(LevelWarn))
	assert.Equal(t, zerolog.ErrorLevel, toZerolog(LevelError))
	assert.Equal(t, zerolog.InfoLevel, toZerolog("bogus"))
}

func TestSetup_ServiceField(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Output: buf, Service: "relaxflow-admin"})

	logger.Info().Str("collection", "users").Msg("listing fetched")

	out := buf.String()
	assert.Contains(t, out, `"service":"relaxflow-admin"`)
	assert.Contains(t, out, `"collection":"users"`)
	assert.Contains(t, out, "listing fetched")
}

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := NewLogger("cli")
	logger.Info().Msg("test message")

	assert.Contains(t, buf.String(), `"component":"cli"`)
	assert.Contains(t, buf.String(), "test message")
}

func TestLogLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelWarn, Output: buf})
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	logger := NewLogger("test")
	logger.Debug().Msg("debug message")
	logger.Info().Msg("info message")
	logger.Warn().Msg("warn message")
	logger.Error().Msg("error message")

	out := buf.String()
	assert.False(t, strings.Contains(out, "debug message"))
	assert.False(t, strings.Contains(out, "info message"))
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message")
}
