package llamacpp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/luckcal/food-analyzer/pkg/client"
	"github.com/luckcal/food-analyzer/pkg/types"
)

func testRequest() client.Request {
	return client.Request{
		AttemptID:  "attempt-3",
		Payload:    &types.Payload{Data: []byte{0xFF, 0xD8, 0xFF, 0xD9}},
		Attributes: types.DefaultAttributes(),
	}
}

func completionServer(t *testing.T, status int, content interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != completionsPath {
			http.NotFound(w, r)
			return
		}
		var req ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad completion request: %v", err)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Error("Expected json_object response format")
		}
		parts, _ := req.Messages[0].Content.([]interface{})
		if len(parts) != 2 {
			t.Errorf("Expected text and image parts, got %d", len(parts))
		} else if img, _ := parts[1].(map[string]interface{}); img != nil {
			url, _ := img["image_url"].(map[string]interface{})["url"].(string)
			if !strings.HasPrefix(url, "data:image/jpeg;base64,") {
				t.Errorf("Unexpected image url %q", url)
			}
		}

		w.WriteHeader(status)
		if status >= http.StatusBadRequest {
			w.Write([]byte(`{"error": "model not loaded"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"model": "qwen2-vl",
			"choices": []interface{}{
				map[string]interface{}{
					"index":   0,
					"message": map[string]interface{}{"role": "assistant", "content": content},
				},
			},
		})
	}))
}

func TestAnalyzeStringContent(t *testing.T) {
	srv := completionServer(t, http.StatusOK, "```json\n{\"food\": \"ramen\", \"confidence\": 64, \"nutrition\": {\"sodium\": 2100}, \"advice\": \"Skip the soup.\",}\n```")
	defer srv.Close()

	c, err := NewClient(srv.URL, "", nil)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	a, err := c.Analyze(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if a.Food != "ramen" || a.Confidence != 64 || a.Nutrition == nil || a.Nutrition.Sodium != 2100 {
		t.Errorf("Unexpected analysis %+v", a)
	}
}

func TestAnalyzePartsContent(t *testing.T) {
	parts := []interface{}{map[string]interface{}{"type": "text", "text": `{"food": "salad", "confidence": 90, "advice": "Good."}`}}
	srv := completionServer(t, http.StatusOK, parts)
	defer srv.Close()

	c, _ := NewClient(srv.URL+completionsPath, "qwen2-vl", nil)
	a, err := c.Analyze(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if a.Food != "salad" || a.Nutrition != nil {
		t.Errorf("Unexpected analysis %+v", a)
	}
}

func TestAnalyzeRejected(t *testing.T) {
	srv := completionServer(t, http.StatusServiceUnavailable, nil)
	defer srv.Close()

	c, _ := NewClient(srv.URL, "", nil)
	if _, err := c.Analyze(context.Background(), testRequest()); !errors.Is(err, client.ErrRejected) {
		t.Fatalf("Expected ErrRejected, got %v", err)
	}
}

func TestAnalyzeEmptyContent(t *testing.T) {
	srv := completionServer(t, http.StatusOK, "")
	defer srv.Close()

	c, _ := NewClient(srv.URL, "", nil)
	if _, err := c.Analyze(context.Background(), testRequest()); !errors.Is(err, client.ErrMalformedResponse) {
		t.Fatalf("Expected ErrMalformedResponse, got %v", err)
	}
}

func TestNewClient(t *testing.T) {
	c, err := NewClient("", "", nil)
	if err != nil || c.baseURL != DefaultURL {
		t.Errorf("Expected default URL, got %q (%v)", c.baseURL, err)
	}
	if _, err := NewClient("ftp://host", "", nil); err == nil {
		t.Error("Expected error for ftp URL")
	}
}
