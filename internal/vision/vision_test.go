// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/pdiddy/pdf2md/pkg/types"
)

func TestComposePrompt(t *testing.T) {
	assert.Equal(t, "Transcribe. The text is in French.", ComposePrompt(" Transcribe. ", "French"))
	assert.Equal(t, "Transcribe.", ComposePrompt("Transcribe.", ""))
	assert.Equal(t, DefaultInstruction+" The text is in Spanish.", ComposePrompt("", DefaultLanguage))
}

func TestClassifyGoogleError(t *testing.T) {
	withRetry, err := status.New(codes.ResourceExhausted, "quota exceeded").
		WithDetails(&errdetails.RetryInfo{RetryDelay: durationpb.New(37 * time.Second)})
	require.NoError(t, err)

	tests := []struct {
		name      string
		err       error
		wantQuota bool
		wantAfter time.Duration
	}{
		{
			name:      "resource exhausted with retry info",
			err:       withRetry.Err(),
			wantQuota: true,
			wantAfter: 37 * time.Second,
		},
		{
			name:      "resource exhausted without retry info",
			err:       status.Error(codes.ResourceExhausted, "quota exceeded"),
			wantQuota: true,
		},
		{
			name:      "http 429",
			err:       &googleapi.Error{Code: http.StatusTooManyRequests, Message: "slow down"},
			wantQuota: true,
		},
		{
			name: "invalid argument",
			err:  status.Error(codes.InvalidArgument, "bad image"),
		},
		{
			name: "http 500",
			err:  &googleapi.Error{Code: http.StatusInternalServerError, Message: "boom"},
		},
		{
			name: "plain error",
			err:  errors.New("connection reset"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyGoogleError(tt.err)

			var qe *QuotaError
			var re *RequestError
			if tt.wantQuota {
				require.ErrorAs(t, got, &qe)
				assert.Equal(t, tt.wantAfter, qe.RetryAfter)
				return
			}
			require.ErrorAs(t, got, &re)
			assert.NotEmpty(t, re.Message)
		})
	}
}

func TestVertexClient_Call(t *testing.T) {
	var gotModel string
	var gotParts []genai.Part
	v := &VertexClient{
		generate: func(_ context.Context, model string, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
			gotModel = model
			gotParts = parts
			return &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{
					Content: &genai.Content{Parts: []genai.Part{genai.Text("# Title\n"), genai.Text("Body")}},
				}},
			}, nil
		},
	}

	text, err := v.Call(context.Background(), Request{
		Model:   "gemini-1.5-pro",
		Prompt:  "extract",
		Payload: Payload{Data: []byte("%PDF"), MIMEType: MIMEPDF},
	})
	require.NoError(t, err)
	assert.Equal(t, "# Title\nBody", text)
	assert.Equal(t, "gemini-1.5-pro", gotModel)
	require.Len(t, gotParts, 2)
	assert.Equal(t, genai.Text("extract"), gotParts[0])
	assert.Equal(t, genai.Blob{MIMEType: MIMEPDF, Data: []byte("%PDF")}, gotParts[1])
	assert.NoError(t, v.Close())
}

func TestVertexClient_CallQuota(t *testing.T) {
	v := &VertexClient{
		generate: func(context.Context, string, ...genai.Part) (*genai.GenerateContentResponse, error) {
			return nil, status.Error(codes.ResourceExhausted, "429 quota")
		},
	}
	_, err := v.Call(context.Background(), Request{})
	var qe *QuotaError
	assert.ErrorAs(t, err, &qe)
}

func TestResponseText_Empty(t *testing.T) {
	_, err := responseText(&genai.GenerateContentResponse{})
	var re *RequestError
	assert.ErrorAs(t, err, &re)
}

func TestOpenAIClient_Call(t *testing.T) {
	tests := []struct {
		name     string
		mime     string
		wantType string
	}{
		{name: "image payload", mime: MIMEPNG, wantType: "image_url"},
		{name: "pdf payload", mime: MIMEPDF, wantType: "file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got chatRequest
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/chat/completions", r.URL.Path)
				assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"choices":[{"message":{"content":"## Page"}}]}`))
			}))
			defer ts.Close()

			c := NewOpenAIClient(ts.URL+"/v1/", "sk-test")
			text, err := c.Call(context.Background(), Request{
				Model:   "llava",
				Prompt:  "extract",
				Payload: Payload{Data: []byte("img"), MIMEType: tt.mime},
			})
			require.NoError(t, err)
			assert.Equal(t, "## Page", text)

			require.Len(t, got.Messages, 1)
			parts := got.Messages[0].Content
			require.Len(t, parts, 2)
			assert.Equal(t, "extract", parts[0].Text)
			assert.Equal(t, tt.wantType, parts[1].Type)

			wantURL := "data:" + tt.mime + ";base64," + base64.StdEncoding.EncodeToString([]byte("img"))
			if tt.wantType == "file" {
				assert.Equal(t, wantURL, parts[1].File.FileData)
			} else {
				assert.Equal(t, wantURL, parts[1].ImageURL.URL)
			}
		})
	}
}

func TestOpenAIClient_Errors(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantQuota bool
		wantAfter time.Duration
		wantCode  int
	}{
		{
			name: "429 with retry-after",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Retry-After", "12")
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantQuota: true,
			wantAfter: 12 * time.Second,
		},
		{
			name: "429 without retry-after",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantQuota: true,
		},
		{
			name: "500",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "model crashed", http.StatusInternalServerError)
			},
			wantCode: http.StatusInternalServerError,
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{"choices":[]}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()

			_, err := NewOpenAIClient(ts.URL, "").Call(context.Background(), Request{Payload: Payload{MIMEType: MIMEPNG}})
			require.Error(t, err)

			if tt.wantQuota {
				var qe *QuotaError
				require.ErrorAs(t, err, &qe)
				assert.Equal(t, tt.wantAfter, qe.RetryAfter)
				return
			}
			var re *RequestError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, tt.wantCode, re.StatusCode)
		})
	}
}

func TestNewBackend(t *testing.T) {
	_, err := NewBackend(context.Background(), types.VisionConfig{Backend: "carrier-pigeon"})
	assert.ErrorContains(t, err, "unknown vision backend")

	_, err = NewBackend(context.Background(), types.VisionConfig{Backend: types.BackendOpenAI})
	assert.ErrorContains(t, err, "endpoint is required")

	_, err = NewBackend(context.Background(), types.VisionConfig{Backend: types.BackendVertex})
	assert.ErrorContains(t, err, "project and location")

	b, err := NewBackend(context.Background(), types.VisionConfig{Backend: types.BackendOpenAI, Endpoint: "http://localhost:11434/v1"})
	require.NoError(t, err)
	assert.NoError(t, b.Close())
}

func TestErrorMessages(t *testing.T) {
	assert.Contains(t, (&QuotaError{RetryAfter: time.Second, Message: "x"}).Error(), "retry after 1s")
	assert.Contains(t, (&RequestError{StatusCode: 400, Message: "bad"}).Error(), "status 400")
	assert.Contains(t, (&TimeoutError{After: time.Minute}).Error(), "1m0s")
}
