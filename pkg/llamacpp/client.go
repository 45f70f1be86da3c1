package llamacpp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/luckcal/food-analyzer/pkg/client"
	"github.com/luckcal/food-analyzer/pkg/types"
)

// DefaultURL is where llama-server listens by default
const DefaultURL = "http://localhost:8080"

const completionsPath = "/v1/chat/completions"

// maxResponseBytes bounds the completion body
const maxResponseBytes = 4 << 20

// Client classifies food photos with a vision model served by llama.cpp
// (or any other OpenAI-compatible chat completions server)
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// OpenAI-compatible message format
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // Can be string or []ContentPart
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type ResponseFormat struct {
	Type string `json:"type"`
}

// OpenAI-compatible chat completion request
type ChatCompletionRequest struct {
	Model          string          `json:"model,omitempty"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
	Stream         bool            `json:"stream"`
}

// OpenAI-compatible chat completion response
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage,omitempty"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// NewClient creates a client for the server at serverURL. The model name
// may be empty when the server hosts a single model.
func NewClient(serverURL, model string, logger *zap.Logger) (*Client, error) {
	if serverURL == "" {
		serverURL = DefaultURL
	}
	if !strings.HasPrefix(serverURL, "http://") && !strings.HasPrefix(serverURL, "https://") {
		return nil, fmt.Errorf("unsupported server URL %q (only http and https are supported)", serverURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:    strings.TrimSuffix(strings.TrimSuffix(serverURL, "/"), completionsPath),
		model:      model,
		httpClient: &http.Client{},
		logger:     logger,
	}, nil
}

// Analyze sends the payload as a data URL and decodes the model's JSON answer
func (c *Client) Analyze(ctx context.Context, req client.Request) (*types.Analysis, error) {
	if req.Payload == nil || len(req.Payload.Data) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	chatReq := ChatCompletionRequest{
		Model: c.model,
		Messages: []Message{
			{
				Role: "user",
				Content: []ContentPart{
					{Type: "text", Text: client.BuildPrompt(req.Attributes)},
					{Type: "image_url", ImageURL: &ImageURL{
						URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(req.Payload.Data),
					}},
				},
			},
		},
		Temperature:    0.2,
		MaxTokens:      1024,
		ResponseFormat: &ResponseFormat{Type: "json_object"},
		Stream:         false,
	}

	respBody, err := c.sendRequest(ctx, chatReq)
	if err != nil {
		return nil, err
	}

	var resp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: completion envelope: %v", client.ErrMalformedResponse, err)
	}

	text := messageText(resp)
	if text == "" {
		return nil, fmt.Errorf("%w: no text content in completion", client.ErrMalformedResponse)
	}

	c.logger.Debug("llama.cpp response",
		zap.String("request_id", req.AttemptID),
		zap.String("model", resp.Model),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))

	analysis, err := types.ParseAnalysis([]byte(client.SanitizeModelJSON(text)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse model output: %w", err)
	}
	return analysis, nil
}

// messageText extracts the text of the first choice (string or parts form)
func messageText(resp ChatCompletionResponse) string {
	if len(resp.Choices) == 0 {
		return ""
	}
	switch content := resp.Choices[0].Message.Content.(type) {
	case string:
		return content
	case []interface{}:
		for _, item := range content {
			if partMap, ok := item.(map[string]interface{}); ok {
				if text, ok := partMap["text"].(string); ok && text != "" {
					return text
				}
			}
		}
	}
	return ""
}

func (c *Client) sendRequest(ctx context.Context, payload ChatCompletionRequest) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsPath, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d: %s", client.ErrRejected, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}
