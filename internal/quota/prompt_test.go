// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package quota

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminalPrompter_Confirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"s\n", true},
		{"sí\n", true},
		{"n\n", false},
		{"maybe\n", false},
		{"\n", false},
		{"", false},
	}

	notice := Notice{
		Limit:   25,
		Wait:    2*time.Hour + 3*time.Minute + 4*time.Second,
		ResetAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.Local),
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			p := &TerminalPrompter{In: strings.NewReader(tt.input), Out: &out}

			got, err := p.Confirm(context.Background(), notice)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			assert.Contains(t, out.String(), "Daily limit reached: 25 requests")
			assert.Contains(t, out.String(), "2 hours, 3 minutes and 4 seconds")
			assert.Contains(t, out.String(), "2026-03-02 09:00:00")
		})
	}
}

func TestTerminalPrompter_ContextCancel(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &TerminalPrompter{In: r, Out: io.Discard}
	ok, err := p.Confirm(ctx, Notice{Limit: 1, Wait: time.Minute, ResetAt: time.Now()})
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormatWait(t *testing.T) {
	assert.Equal(t, "0 hours, 0 minutes and 0 seconds", FormatWait(0))
	assert.Equal(t, "23 hours, 59 minutes and 59 seconds", FormatWait(Window-time.Second))
	assert.Equal(t, "1 hours, 0 minutes and 2 seconds", FormatWait(time.Hour+1500*time.Millisecond))
}
