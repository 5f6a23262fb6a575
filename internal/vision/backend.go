// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vision

import (
	"context"
	"fmt"

	"github.com/pdiddy/pdf2md/pkg/types"
)

// NewBackend builds the backend selected by cfg.
func NewBackend(ctx context.Context, cfg types.VisionConfig) (Backend, error) {
	switch cfg.Backend {
	case types.BackendVertex, "":
		c, err := NewVertexClient(ctx, cfg.Project, cfg.Location, cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		return c, nil
	case types.BackendOpenAI:
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("openai backend: endpoint is required")
		}
		return NewOpenAIClient(cfg.Endpoint, cfg.APIKey), nil
	default:
		return nil, fmt.Errorf("unknown vision backend %q (want vertex or openai)", cfg.Backend)
	}
}
