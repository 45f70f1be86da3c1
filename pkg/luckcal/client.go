// Package luckcal talks to the food classification service over HTTP.
package luckcal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"go.uber.org/zap"

	"github.com/luckcal/food-analyzer/pkg/client"
	"github.com/luckcal/food-analyzer/pkg/types"
)

const (
	// AnalyzePath is appended to the configured endpoint
	AnalyzePath = "/analyze"
	// PayloadFilename is the fixed filename of the image part
	PayloadFilename = "food.jpg"

	maxResponseBytes = 1 << 20
)

// Form field names of the multipart request
const (
	FieldImage    = "image"
	FieldGender   = "gender"
	FieldAgeGroup = "age_group"
	FieldMealTime = "meal_time"
	FieldGoal     = "goal"
)

// Client posts photos to the analysis endpoint
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the transport. The client should not set its own
// Timeout; the caller's context bounds each call.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a client for the service at serverURL
func NewClient(serverURL string, opts ...Option) (*Client, error) {
	serverURL = strings.TrimSpace(serverURL)
	if serverURL == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	if !strings.HasPrefix(serverURL, "http://") && !strings.HasPrefix(serverURL, "https://") {
		return nil, fmt.Errorf("unsupported server URL %q (only http and https are supported)", serverURL)
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(strings.TrimSuffix(serverURL, "/"), AnalyzePath),
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c, nil
}

// Endpoint returns the full analyze URL
func (c *Client) Endpoint() string {
	return c.baseURL + AnalyzePath
}

// Analyze uploads the payload and attributes and decodes the assessment
func (c *Client) Analyze(ctx context.Context, req client.Request) (*types.Analysis, error) {
	if req.Payload == nil || len(req.Payload.Data) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	body, contentType, err := buildForm(req)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	respBody, err := c.sendRequest(ctx, body, contentType, req.AttemptID)
	if err != nil {
		return nil, err
	}

	analysis, err := types.ParseAnalysis(respBody)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return analysis, nil
}

func buildForm(req client.Request) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FieldImage, PayloadFilename))
	h.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(req.Payload.Data); err != nil {
		return nil, "", err
	}

	fields := []struct{ name, value string }{
		{FieldGender, string(req.Attributes.Sex)},
		{FieldAgeGroup, string(req.Attributes.AgeGroup)},
		{FieldMealTime, string(req.Attributes.MealTime)},
		{FieldGoal, string(req.Attributes.Goal)},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func (c *Client) sendRequest(ctx context.Context, body io.Reader, contentType, attemptID string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	if attemptID != "" {
		httpReq.Header.Set("X-Request-ID", attemptID)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("analysis rejected",
			zap.String("request_id", attemptID),
			zap.Int("status", resp.StatusCode),
			zap.Int("body_bytes", len(respBody)))
		return nil, fmt.Errorf("%w: status %d: %s", client.ErrRejected, resp.StatusCode, snippet(respBody))
	}

	return respBody, nil
}

func snippet(b []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
