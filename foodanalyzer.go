// Package foodanalyzer estimates the nutrition of a dish from a photo.
//
// A Session wires the pieces together: the photo is normalized to a small
// JPEG, sent with the user's attributes to a classification backend, and the
// answer is interpreted for display. The user can then rate the advice.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		foodanalyzer "github.com/luckcal/food-analyzer"
//	)
//
//	func main() {
//		session, err := foodanalyzer.New(foodanalyzer.DefaultConfig(), nil)
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer session.Close()
//
//		if err := session.LoadImage("lunch.jpg"); err != nil {
//			log.Fatal(err)
//		}
//
//		result, err := session.Analyze(context.Background())
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Printf("%s (%d%%, %s)\n", result.Food, result.Confidence, result.ConfidenceLevel.Label())
//	}
//
// The components live in separate packages:
//
//  1. Processing (pkg/processing): decoding, downscaling and JPEG encoding
//  2. Controller (pkg/controller): attempt lifecycle and timeout handling
//  3. Interpret (pkg/interpret): confidence bands and nutrient risk
//  4. Feedback (pkg/feedback): thumbs up/down with a reason
//
// Backends are the LuckCal HTTP service (pkg/luckcal) and local vision
// models served by Ollama (pkg/ollama) or llama.cpp (pkg/llamacpp).
package foodanalyzer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/luckcal/food-analyzer/internal/config"
	"github.com/luckcal/food-analyzer/internal/history"
	"github.com/luckcal/food-analyzer/pkg/client"
	"github.com/luckcal/food-analyzer/pkg/controller"
	"github.com/luckcal/food-analyzer/pkg/feedback"
	"github.com/luckcal/food-analyzer/pkg/interpret"
	"github.com/luckcal/food-analyzer/pkg/llamacpp"
	"github.com/luckcal/food-analyzer/pkg/luckcal"
	"github.com/luckcal/food-analyzer/pkg/ollama"
	"github.com/luckcal/food-analyzer/pkg/processing"
	"github.com/luckcal/food-analyzer/pkg/types"
)

// Version of the food analyzer library
const Version = "1.0.0"

// Config is the session configuration
type Config = config.Config

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return config.Default()
}

// LoadConfig reads a configuration file, falling back to defaults when it does not exist
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// Session is one user's analysis session
type Session struct {
	config      *config.Config
	processor   *processing.Processor
	controller  *controller.Controller
	interpreter *interpret.Interpreter
	journal     *history.Journal
	logger      *zap.Logger

	imageName string
}

// NewBackend builds the analysis client selected by cfg
func NewBackend(cfg *Config, logger *zap.Logger) (client.AnalysisClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Client.Backend {
	case config.BackendHTTP:
		c, err := luckcal.NewClient(cfg.Client.Endpoint, luckcal.WithLogger(logger.Named("luckcal")))
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.BackendOllama:
		c, err := ollama.NewClient(cfg.Client.OllamaURL, cfg.Client.Model, logger.Named("ollama"))
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.BackendLlamaCpp:
		c, err := llamacpp.NewClient(cfg.Client.LlamaCppURL, cfg.Client.Model, logger.Named("llamacpp"))
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Client.Backend)
}

// New creates a session using the backend configured in cfg
func New(cfg *Config, logger *zap.Logger, opts ...controller.Option) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	backend, err := NewBackend(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend: %w", err)
	}
	return NewWithClient(cfg, backend, logger, opts...)
}

// NewWithClient creates a session around an existing backend
func NewWithClient(cfg *Config, backend client.AnalysisClient, logger *zap.Logger, opts ...controller.Option) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	processor := processing.NewProcessorWithConfig(processing.Config{
		MaxDimension:    cfg.Normalizer.MaxDimension,
		Quality:         cfg.Normalizer.Quality,
		MaxSourcePixels: cfg.Normalizer.MaxSourcePixels,
	})

	ctrlOpts := append([]controller.Option{
		controller.WithTimeout(cfg.Timeout()),
		controller.WithLogger(logger),
	}, opts...)

	s := &Session{
		config:      cfg,
		processor:   processor,
		controller:  controller.New(processor, backend, ctrlOpts...),
		interpreter: interpret.NewWithLimits(cfg.NutrientLimits()),
		logger:      logger,
	}

	if cfg.History.Path != "" {
		journal, err := history.Open(cfg.History.Path, logger.Named("history"))
		if err != nil {
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
		s.journal = journal
	}

	return s, nil
}

// Close releases the journal, if any
func (s *Session) Close() error {
	if s.journal == nil {
		return nil
	}
	return s.journal.Close()
}

// LoadImage selects a photo from a file path or URL
func (s *Session) LoadImage(source string) error {
	img, err := s.processor.LoadImageSmart(source)
	if err != nil {
		return err
	}
	return s.SelectImage(img)
}

// SelectImage selects a photo already in memory
func (s *Session) SelectImage(img types.RawImage) error {
	if err := s.controller.SelectImage(img); err != nil {
		return err
	}
	s.imageName = img.Name
	return nil
}

// SetAttributes sets the attributes sent with the next analysis
func (s *Session) SetAttributes(attrs types.Attributes) error {
	return s.controller.SetAttributes(attrs)
}

// Analyze runs one attempt and returns the interpreted result. Failed
// attempts still produce a result; the error is only set when no attempt
// could be started.
func (s *Session) Analyze(ctx context.Context) (interpret.Result, error) {
	outcome, ok := s.controller.Analyze(ctx)
	if !ok {
		if !s.controller.Snapshot().HasImage {
			return interpret.Result{}, controller.ErrNoImage
		}
		return interpret.Result{}, controller.ErrBusy
	}

	snap := s.controller.Snapshot()
	if s.journal != nil {
		if err := s.journal.RecordOutcome(ctx, snap.AttemptID, s.imageName, snap.Attributes, outcome); err != nil {
			s.logger.Warn("failed to journal attempt", zap.String("request_id", snap.AttemptID), zap.Error(err))
		}
	}

	return s.interpreter.Interpret(outcome), nil
}

// Result returns the interpreted result of the last finished attempt
func (s *Session) Result() (interpret.Result, bool) {
	snap := s.controller.Snapshot()
	if snap.Outcome == nil {
		return interpret.Result{}, false
	}
	return s.interpreter.Interpret(*snap.Outcome), true
}

// Like records positive feedback
func (s *Session) Like(ctx context.Context) error {
	return s.recordFeedback(ctx, s.controller.Like())
}

// Dislike records negative feedback
func (s *Session) Dislike(ctx context.Context) error {
	return s.recordFeedback(ctx, s.controller.Dislike())
}

// Explain records the reason for negative feedback
func (s *Session) Explain(ctx context.Context, reason feedback.Reason) error {
	return s.recordFeedback(ctx, s.controller.Explain(reason))
}

func (s *Session) recordFeedback(ctx context.Context, err error) error {
	if err != nil {
		return err
	}
	if s.journal == nil {
		return nil
	}
	snap := s.controller.Snapshot()
	if err := s.journal.SetFeedback(ctx, snap.AttemptID, snap.Feedback); err != nil {
		s.logger.Warn("failed to journal feedback", zap.String("request_id", snap.AttemptID), zap.Error(err))
	}
	return nil
}

// Feedback returns the feedback on the current result
func (s *Session) Feedback() feedback.State {
	return s.controller.Snapshot().Feedback
}

// Reset clears the photo, result and feedback
func (s *Session) Reset() error {
	if err := s.controller.Reset(); err != nil {
		return err
	}
	s.imageName = ""
	return nil
}

// Config returns the session configuration
func (s *Session) Config() *Config {
	return s.config
}

// Snapshot returns the controller state
func (s *Session) Snapshot() controller.Snapshot {
	return s.controller.Snapshot()
}

// SavePayload writes the JPEG sent with the last attempt
func (s *Session) SavePayload(filePath string) error {
	return s.processor.SavePayload(s.controller.Snapshot().Payload, filePath)
}

// History returns the most recent journaled attempts
func (s *Session) History(ctx context.Context, limit int) ([]*history.Entry, error) {
	if s.journal == nil {
		return nil, nil
	}
	return s.journal.Recent(ctx, limit)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
