// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package isolate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pdiddy/pdf2md/internal/vision"
)

const (
	kindQuota   = "quota"
	kindRequest = "request"
)

// Response is what a worker writes to stdout. Error classification crosses
// the process boundary intact so the parent can tell quota errors apart.
type Response struct {
	Text  string     `json:"text,omitempty"`
	Error *WireError `json:"error,omitempty"`
}

// WireError is the serialised form of a vision error.
type WireError struct {
	Kind         string `json:"kind"`
	Message      string `json:"message"`
	StatusCode   int    `json:"status_code,omitempty"`
	RetryAfterMS int64  `json:"retry_after_ms,omitempty"`
}

// NewResponse encodes the outcome of a client call.
func NewResponse(text string, err error) Response {
	if err == nil {
		return Response{Text: text}
	}

	var qe *vision.QuotaError
	if errors.As(err, &qe) {
		return Response{Error: &WireError{
			Kind:         kindQuota,
			Message:      qe.Message,
			RetryAfterMS: qe.RetryAfter.Milliseconds(),
		}}
	}

	we := &WireError{Kind: kindRequest, Message: err.Error()}
	var re *vision.RequestError
	if errors.As(err, &re) {
		we.Message = re.Message
		we.StatusCode = re.StatusCode
	}
	return Response{Error: we}
}

// Result decodes the response back into text or a vision error.
func (r Response) Result() (string, error) {
	if r.Error == nil {
		return r.Text, nil
	}
	if r.Error.Kind == kindQuota {
		return "", &vision.QuotaError{
			RetryAfter: time.Duration(r.Error.RetryAfterMS) * time.Millisecond,
			Message:    r.Error.Message,
		}
	}
	return "", &vision.RequestError{StatusCode: r.Error.StatusCode, Message: r.Error.Message}
}

// Serve is the worker side: it reads one request from in, calls client and
// writes one Response to out. It returns an error only when the exchange
// itself fails.
func Serve(ctx context.Context, client vision.Client, in io.Reader, out io.Writer) error {
	var req vision.Request
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return fmt.Errorf("decoding worker request: %w", err)
	}

	text, err := client.Call(ctx, req)
	if err := json.NewEncoder(out).Encode(NewResponse(text, err)); err != nil {
		return fmt.Errorf("encoding worker response: %w", err)
	}
	return nil
}
