package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/luckcal/food-analyzer/pkg/client"
	"github.com/luckcal/food-analyzer/pkg/types"
)

// DefaultModel is a vision model that handles food photos reasonably well
const DefaultModel = "llava:13b"

// Client classifies food photos with a local Ollama vision model
type Client struct {
	client *api.Client
	model  string
	logger *zap.Logger
}

// NewClient creates a new Ollama client
func NewClient(ollamaURL, model string, logger *zap.Logger) (*Client, error) {
	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid URL %q: scheme and host are required", ollamaURL)
	}

	// Drop any path such as /api/chat; the SDK adds its own
	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}

	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		client: api.NewClient(baseURL, http.DefaultClient),
		model:  model,
		logger: logger,
	}, nil
}

// Analyze asks the model for the same JSON object the HTTP service returns
func (c *Client) Analyze(ctx context.Context, req client.Request) (*types.Analysis, error) {
	if req.Payload == nil || len(req.Payload.Data) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	streamFalse := false
	chatReq := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: client.BuildPrompt(req.Attributes),
				Images:  []api.ImageData{api.ImageData(req.Payload.Data)},
			},
		},
		Stream: &streamFalse,
		Format: json.RawMessage(`"json"`),
		Options: map[string]any{
			"temperature": 0.2,
		},
	}

	var responseContent strings.Builder
	err := c.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		responseContent.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		var statusErr api.StatusError
		if errors.As(err, &statusErr) {
			return nil, fmt.Errorf("%w: status %d: %s", client.ErrRejected, statusErr.StatusCode, statusErr.ErrorMessage)
		}
		return nil, fmt.Errorf("ollama chat error: %w", err)
	}

	raw := client.SanitizeModelJSON(responseContent.String())
	c.logger.Debug("ollama response",
		zap.String("request_id", req.AttemptID),
		zap.String("model", c.model),
		zap.Int("bytes", len(raw)))

	analysis, err := types.ParseAnalysis([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse model output: %w", err)
	}
	return analysis, nil
}
