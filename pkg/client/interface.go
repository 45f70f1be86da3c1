package client

import (
	"context"
	"errors"

	"github.com/luckcal/food-analyzer/pkg/types"
)

var (
	// ErrRejected is returned when the service answers with a non-success status
	ErrRejected = errors.New("analysis rejected by server")
	// ErrMalformedResponse is returned when a success response cannot be decoded
	ErrMalformedResponse = types.ErrMalformedResponse
)

// Request carries one analysis attempt to a backend
type Request struct {
	AttemptID  string
	Payload    *types.Payload
	Attributes types.Attributes
}

// AnalysisClient sends a normalized photo to a classification backend.
// Implementations must stop as soon as ctx is done.
type AnalysisClient interface {
	Analyze(ctx context.Context, req Request) (*types.Analysis, error)
}
