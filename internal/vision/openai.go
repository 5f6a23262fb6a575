// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/pdf2md/internal/httputil"
)

// OpenAIClient calls an OpenAI-compatible chat completions endpoint. It
// serves hosted APIs and locally hosted models (Ollama, LM Studio, vLLM).
type OpenAIClient struct {
	Endpoint string // base URL, e.g. "http://localhost:11434/v1"
	APIKey   string
	Client   *http.Client
}

// NewOpenAIClient creates a client for endpoint. apiKey may be empty for
// local servers.
func NewOpenAIClient(endpoint, apiKey string) *OpenAIClient {
	return &OpenAIClient{
		Endpoint: strings.TrimRight(endpoint, "/"),
		APIKey:   apiKey,
		Client:   &http.Client{},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
	File     *filePart `json:"file,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type filePart struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Call posts the prompt with the payload attached as a data URL. PDFs are
// sent as a file part, images as an image_url part.
func (c *OpenAIClient) Call(ctx context.Context, req Request) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", req.MIMEType, base64.StdEncoding.EncodeToString(req.Data))

	attachment := contentPart{Type: "image_url", ImageURL: &imageURL{URL: dataURL}}
	if req.MIMEType == MIMEPDF {
		attachment = contentPart{Type: "file", File: &filePart{Filename: "document.pdf", FileData: dataURL}}
	}

	body, err := json.Marshal(chatRequest{
		Model: req.Model,
		Messages: []chatMessage{{
			Role:    "user",
			Content: []contentPart{{Type: "text", Text: req.Prompt}, attachment},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &RequestError{Message: err.Error()}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter, _ := httputil.RetryAfter(resp.Header, time.Now())
		return "", &QuotaError{RetryAfter: retryAfter, Message: httputil.ErrorBody(resp)}
	case resp.StatusCode != http.StatusOK:
		return "", &RequestError{StatusCode: resp.StatusCode, Message: httputil.ErrorBody(resp)}
	}
	defer resp.Body.Close()

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", &RequestError{Message: fmt.Sprintf("decoding response: %v", err)}
	}
	if len(cr.Choices) == 0 {
		return "", &RequestError{Message: "response contained no choices"}
	}
	return cr.Choices[0].Message.Content, nil
}

// Close is a no-op; the HTTP client holds no per-client resources.
func (c *OpenAIClient) Close() error { return nil }
