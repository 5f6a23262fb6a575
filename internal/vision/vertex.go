// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vision

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
)

// VertexClient calls Gemini models on Vertex AI.
type VertexClient struct {
	client *genai.Client

	// generate is the model call; tests substitute it.
	generate func(ctx context.Context, model string, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// NewVertexClient creates a Vertex AI client for project and location.
// credentialsFile is optional; application default credentials are used
// when it is empty.
func NewVertexClient(ctx context.Context, project, location, credentialsFile string) (*VertexClient, error) {
	if project == "" || location == "" {
		return nil, fmt.Errorf("vertex: project and location cannot be empty")
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := genai.NewClient(ctx, project, location, opts...)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	v := &VertexClient{client: client}
	v.generate = func(ctx context.Context, model string, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
		return client.GenerativeModel(model).GenerateContent(ctx, parts...)
	}
	return v, nil
}

// Call sends the prompt and payload as one user turn.
func (v *VertexClient) Call(ctx context.Context, req Request) (string, error) {
	resp, err := v.generate(ctx, req.Model,
		genai.Text(req.Prompt),
		genai.Blob{MIMEType: req.MIMEType, Data: req.Data},
	)
	if err != nil {
		return "", classifyGoogleError(err)
	}
	return responseText(resp)
}

// Close releases the underlying connection.
func (v *VertexClient) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", &RequestError{Message: "response contained no candidates"}
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String(), nil
}

// classifyGoogleError maps a Google API failure to QuotaError or RequestError.
// RESOURCE_EXHAUSTED and HTTP 429 are quota errors; a RetryInfo detail, when
// present, supplies the suggested delay.
func classifyGoogleError(err error) error {
	if ae, ok := apierror.FromError(err); ok {
		if ae.GRPCStatus().Code() == codes.ResourceExhausted || ae.HTTPCode() == http.StatusTooManyRequests {
			qe := &QuotaError{Message: ae.Error()}
			if ri := ae.Details().RetryInfo; ri != nil {
				qe.RetryAfter = ri.GetRetryDelay().AsDuration()
			}
			return qe
		}
		return &RequestError{StatusCode: max(ae.HTTPCode(), 0), Message: ae.Error()}
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusTooManyRequests {
			return &QuotaError{Message: gerr.Message}
		}
		return &RequestError{StatusCode: gerr.Code, Message: gerr.Message}
	}

	return &RequestError{Message: err.Error()}
}
