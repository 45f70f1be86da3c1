package luckcal

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/luckcal/food-analyzer/pkg/client"
	"github.com/luckcal/food-analyzer/pkg/types"
)

func testRequest() client.Request {
	return client.Request{
		AttemptID: "attempt-1",
		Payload:   &types.Payload{Data: []byte{0xFF, 0xD8, 0xFF, 0xD9}, Width: 640, Height: 320},
		Attributes: types.Attributes{
			Sex:      types.SexFemale,
			AgeGroup: types.AgeTeen,
			MealTime: types.MealDinner,
			Goal:     types.GoalDiet,
		},
	}
}

func TestAnalyzeSendsMultipartForm(t *testing.T) {
	var captured struct {
		method, path, filename, contentType string
		image                               []byte
		fields                              map[string]string
		requestID                           string
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.requestID = r.Header.Get("X-Request-ID")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("server could not parse multipart: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile(FieldImage)
		if err != nil {
			t.Errorf("missing image part: %v", err)
			http.Error(w, "no image", http.StatusBadRequest)
			return
		}
		defer file.Close()
		captured.filename = header.Filename
		captured.contentType = header.Header.Get("Content-Type")
		captured.image, _ = io.ReadAll(file)
		captured.fields = map[string]string{
			FieldGender:   r.FormValue(FieldGender),
			FieldAgeGroup: r.FormValue(FieldAgeGroup),
			FieldMealTime: r.FormValue(FieldMealTime),
			FieldGoal:     r.FormValue(FieldGoal),
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"food":"salad","confidence":91,"advice":"Good choice."}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	req := testRequest()
	analysis, err := c.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if captured.method != http.MethodPost || captured.path != AnalyzePath {
		t.Errorf("Expected POST %s, got %s %s", AnalyzePath, captured.method, captured.path)
	}
	if captured.filename != PayloadFilename {
		t.Errorf("Expected filename %s, got %s", PayloadFilename, captured.filename)
	}
	if captured.contentType != "image/jpeg" {
		t.Errorf("Expected image/jpeg part, got %s", captured.contentType)
	}
	if !bytes.Equal(captured.image, req.Payload.Data) {
		t.Errorf("Image part mismatch: %v", captured.image)
	}
	if captured.requestID != "attempt-1" {
		t.Errorf("Expected X-Request-ID attempt-1, got %q", captured.requestID)
	}

	expected := map[string]string{
		FieldGender:   "female",
		FieldAgeGroup: "teen",
		FieldMealTime: "dinner",
		FieldGoal:     "diet",
	}
	for k, v := range expected {
		if captured.fields[k] != v {
			t.Errorf("Field %s: expected %q, got %q", k, v, captured.fields[k])
		}
	}

	if analysis.Food != "salad" || analysis.Confidence != 91 || analysis.Nutrition != nil {
		t.Errorf("Unexpected analysis %+v", analysis)
	}
}

func TestAnalyzeRejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	_, err := c.Analyze(context.Background(), testRequest())
	if !errors.Is(err, client.ErrRejected) {
		t.Fatalf("Expected ErrRejected, got %v", err)
	}
}

func TestAnalyzeMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>gateway</html>"))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	_, err := c.Analyze(context.Background(), testRequest())
	if !errors.Is(err, client.ErrMalformedResponse) {
		t.Fatalf("Expected ErrMalformedResponse, got %v", err)
	}
}

func TestAnalyzeHonorsContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	c, _ := NewClient(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Analyze(ctx, testRequest())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected context deadline error, got %v", err)
	}
}

func TestAnalyzeEmptyPayload(t *testing.T) {
	c, _ := NewClient("http://localhost:1")
	req := testRequest()
	req.Payload = nil
	if _, err := c.Analyze(context.Background(), req); err == nil {
		t.Error("Expected error for empty payload")
	}
}

func TestNewClientEndpoint(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://api.example.com", "https://api.example.com/analyze"},
		{"https://api.example.com/", "https://api.example.com/analyze"},
		{"https://api.example.com/analyze", "https://api.example.com/analyze"},
		{"http://localhost:8000/v1", "http://localhost:8000/v1/analyze"},
	}
	for _, tt := range tests {
		c, err := NewClient(tt.in)
		if err != nil {
			t.Fatalf("NewClient(%q) failed: %v", tt.in, err)
		}
		if c.Endpoint() != tt.want {
			t.Errorf("NewClient(%q).Endpoint() = %q, expected %q", tt.in, c.Endpoint(), tt.want)
		}
	}

	for _, bad := range []string{"", "ftp://example.com", "example.com"} {
		if _, err := NewClient(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}
