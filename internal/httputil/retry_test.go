// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		header string
		want   time.Duration
		wantOK bool
	}{
		{name: "absent", header: "", wantOK: false},
		{name: "seconds", header: "30", want: 30 * time.Second, wantOK: true},
		{name: "fractional seconds", header: "1.5", want: 1500 * time.Millisecond, wantOK: true},
		{name: "zero", header: "0", wantOK: false},
		{name: "http date", header: now.Add(2 * time.Minute).Format(http.TimeFormat), want: 2 * time.Minute, wantOK: true},
		{name: "date in the past", header: now.Add(-time.Minute).Format(http.TimeFormat), wantOK: false},
		{name: "garbage", header: "soon", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set("Retry-After", tt.header)
			}
			got, ok := RetryAfter(h, now)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

type trackingBody struct {
	io.Reader
	closed bool
}

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}

func TestErrorBody(t *testing.T) {
	body := &trackingBody{Reader: strings.NewReader("  rate limited  \n")}
	got := ErrorBody(&http.Response{Body: body})
	assert.Equal(t, "rate limited", got)
	assert.True(t, body.closed)

	long := &trackingBody{Reader: strings.NewReader(strings.Repeat("x", maxErrorBody*2))}
	assert.Len(t, ErrorBody(&http.Response{Body: long}), maxErrorBody)
}
