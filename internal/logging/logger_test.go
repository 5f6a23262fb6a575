// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestSetup_JSON(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	logger := Setup(Config{Level: "warn", Format: FormatJSON, Output: &buf})

	logger.Info().Msg("hidden")
	logger.Warn().Str("page", "3").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"message":"shown"`)
	assert.Contains(t, out, `"page":"3"`)
}

func TestSetup_Console(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	logger := Setup(Config{Level: "info", Format: FormatConsole, Output: &buf})
	logger.Info().Str("file", "a.pdf").Msg("converted")

	out := buf.String()
	assert.Contains(t, out, "converted")
	assert.Contains(t, out, "a.pdf")
	assert.NotContains(t, out, `"message"`)
}

func TestNewLogger_Component(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	Setup(Config{Level: "debug", Format: FormatJSON, Output: &buf})

	l := NewLogger("quota")
	l.Debug().Msg("x")
	assert.Contains(t, buf.String(), `"component":"quota"`)
}
