// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package vision defines the contract for vision-capable language models and
// the error classification shared by every backend. Backends decide once, at
// the adapter boundary, whether a failure is a quota error (retryable after a
// wait) or anything else.
package vision

import (
	"context"
	"fmt"
	"time"
)

const (
	MIMEPDF = "application/pdf"
	MIMEPNG = "image/png"
)

// Payload is the document or image submitted with a prompt.
type Payload struct {
	Data     []byte `json:"data"`
	MIMEType string `json:"mime_type"`
}

// Request is one model call.
type Request struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Payload
}

// Client sends one request to a vision model and returns the text response.
// Implementations return *QuotaError for rate-limit and quota failures.
type Client interface {
	Call(ctx context.Context, req Request) (string, error)
}

// Backend is a Client holding resources that must be released.
type Backend interface {
	Client
	Close() error
}

// QuotaError reports that the provider rejected the call for quota or rate
// reasons. RetryAfter is the provider-suggested delay, zero when absent.
type QuotaError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *QuotaError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("quota exceeded (retry after %s): %s", e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("quota exceeded: %s", e.Message)
}

// RequestError is any non-quota failure. It is not retried.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("vision request failed: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("vision request failed: %s", e.Message)
}

// TimeoutError reports that a call did not finish before its hard deadline
// and was abandoned or killed.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("vision call timed out after %s", e.After)
}
