// Package controller owns the lifecycle of analysis attempts: it normalizes
// the selected photo, submits it with the user's attributes, races the call
// against a timeout and records the outcome and the user's feedback on it.
//
// At most one attempt is in flight per controller. Every transition runs
// under one mutex, so events are applied one at a time and a late loser of
// the timeout/response race never changes state.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/luckcal/food-analyzer/internal/logging"
	"github.com/luckcal/food-analyzer/pkg/client"
	"github.com/luckcal/food-analyzer/pkg/feedback"
	"github.com/luckcal/food-analyzer/pkg/types"
)

// DefaultTimeout bounds the wait for the analysis service
const DefaultTimeout = 35 * time.Second

var (
	// ErrBusy is returned when an operation is not allowed while an attempt is in flight
	ErrBusy = errors.New("analysis in progress")
	// ErrNoOutcome is returned for feedback before any attempt has finished
	ErrNoOutcome = errors.New("no analysis result yet")
	// ErrTimeout is the cancellation cause when the service did not answer in time
	ErrTimeout = errors.New("analysis timed out")
	// ErrNoImage is returned when selecting an empty image
	ErrNoImage = errors.New("no image data")
)

// State of the controller
type State int

const (
	Idle State = iota
	Preparing
	Submitting
	AwaitingResponse
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Preparing:
		return "preparing"
	case Submitting:
		return "submitting"
	case AwaitingResponse:
		return "awaiting-response"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// InFlight reports whether an attempt is running
func (s State) InFlight() bool {
	return s == Preparing || s == Submitting || s == AwaitingResponse
}

// Terminal reports whether the last attempt has finished
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed
}

// Normalizer turns raw photo bytes into a transmission payload
type Normalizer interface {
	Normalize(raw []byte) (*types.Payload, error)
}

// Snapshot is a copy of the controller state handed to renderers
type Snapshot struct {
	State      State
	AttemptID  string
	HasImage   bool
	Attributes types.Attributes
	Payload    *types.Payload
	Outcome    *types.Outcome
	Feedback   feedback.State
}

// Option configures a Controller
type Option func(*Controller)

// WithTimeout overrides the 35 second service timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver registers a callback receiving a snapshot after every
// transition, in transition order. The callback must not call back into
// the controller.
func WithObserver(fn func(Snapshot)) Option {
	return func(c *Controller) { c.observer = fn }
}

type attempt struct {
	id      string
	started time.Time
	done    chan struct{}
	settled bool
	outcome types.Outcome
	timer   *time.Timer
	cancel  context.CancelCauseFunc
}

// Controller drives analysis attempts for one session
type Controller struct {
	normalizer Normalizer
	client     client.AnalysisClient
	timeout    time.Duration
	logger     *zap.Logger
	observer   func(Snapshot)

	mu       sync.Mutex
	notifyMu sync.Mutex

	state    State
	image    types.RawImage
	attrs    types.Attributes
	payload  *types.Payload
	outcome  *types.Outcome
	feedback feedback.State
	current  *attempt
}

// New creates an idle controller with default attributes
func New(normalizer Normalizer, analysisClient client.AnalysisClient, opts ...Option) *Controller {
	c := &Controller{
		normalizer: normalizer,
		client:     analysisClient,
		timeout:    DefaultTimeout,
		logger:     zap.NewNop(),
		attrs:      types.DefaultAttributes(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("controller")
	return c
}

// Timeout returns the configured service timeout
func (c *Controller) Timeout() time.Duration {
	return c.timeout
}

// SelectImage replaces the selected photo and discards the previous result
func (c *Controller) SelectImage(img types.RawImage) error {
	if img.Empty() {
		return ErrNoImage
	}

	c.mu.Lock()
	if c.state.InFlight() {
		c.mu.Unlock()
		return ErrBusy
	}
	c.image = img
	c.clearResultLocked()
	c.unlockAndNotify()
	return nil
}

// SetAttributes replaces the categorical attributes used by the next attempt
func (c *Controller) SetAttributes(attrs types.Attributes) error {
	if err := attrs.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.state.InFlight() {
		c.mu.Unlock()
		return ErrBusy
	}
	c.attrs = attrs
	c.unlockAndNotify()
	return nil
}

// Attributes returns the current attributes
func (c *Controller) Attributes() types.Attributes {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attrs
}

// Start begins an attempt. It is a no-op returning false when no image is
// selected or an attempt is already in flight. The returned channel is
// closed once the attempt has an outcome.
func (c *Controller) Start(ctx context.Context) (<-chan struct{}, bool) {
	c.mu.Lock()
	if c.image.Empty() || c.state.InFlight() {
		state := c.state
		c.mu.Unlock()
		c.logger.Debug("analyze ignored", zap.Stringer("state", state))
		return nil, false
	}

	att := &attempt{
		id:      uuid.NewString(),
		started: time.Now(),
		done:    make(chan struct{}),
	}
	c.current = att
	c.payload = nil
	c.outcome = nil
	c.feedback = feedback.State{}
	c.state = Preparing

	raw := c.image.Data
	attrs := c.attrs
	logging.WithOperation(c.logger, "controller.analyze", att.id).Info("analysis started",
		zap.String("sex", string(attrs.Sex)),
		zap.String("age_group", string(attrs.AgeGroup)),
		zap.String("meal_time", string(attrs.MealTime)),
		zap.String("goal", string(attrs.Goal)),
		zap.Int("image_bytes", len(raw)))
	c.unlockAndNotify()

	go c.run(ctx, att, raw, attrs)
	return att.done, true
}

// Analyze starts an attempt and waits for its outcome. The bool is false
// when the attempt could not be started.
func (c *Controller) Analyze(ctx context.Context) (types.Outcome, bool) {
	done, ok := c.Start(ctx)
	if !ok {
		return types.Outcome{}, false
	}
	<-done
	return c.outcomeOf(done), true
}

func (c *Controller) outcomeOf(done <-chan struct{}) types.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && c.current.done == done {
		return c.current.outcome
	}
	if c.outcome != nil {
		return *c.outcome
	}
	return types.Outcome{}
}

// Reset returns to Idle, dropping the image, the outcome and the feedback.
// Attributes are kept.
func (c *Controller) Reset() error {
	c.mu.Lock()
	if c.state.InFlight() {
		c.mu.Unlock()
		return ErrBusy
	}
	c.image = types.RawImage{}
	c.clearResultLocked()
	c.unlockAndNotify()
	return nil
}

func (c *Controller) clearResultLocked() {
	c.current = nil
	c.payload = nil
	c.outcome = nil
	c.feedback = feedback.State{}
	c.state = Idle
}

// Like records positive feedback on the current outcome
func (c *Controller) Like() error {
	return c.applyFeedback(feedback.State.Like)
}

// Dislike records negative feedback on the current outcome
func (c *Controller) Dislike() error {
	return c.applyFeedback(feedback.State.Dislike)
}

// Explain attaches a reason to negative feedback
func (c *Controller) Explain(reason feedback.Reason) error {
	return c.applyFeedback(func(s feedback.State) (feedback.State, error) {
		return s.Explain(reason)
	})
}

func (c *Controller) applyFeedback(transition func(feedback.State) (feedback.State, error)) error {
	c.mu.Lock()
	if c.outcome == nil || !c.state.Terminal() {
		c.mu.Unlock()
		return ErrNoOutcome
	}
	next, err := transition(c.feedback)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.feedback = next
	if c.current != nil {
		logging.WithOperation(c.logger, "controller.feedback", c.current.id).Info("feedback recorded",
			zap.Stringer("feedback", next))
	}
	c.unlockAndNotify()
	return nil
}

// Snapshot returns a copy of the current state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:      c.state,
		HasImage:   !c.image.Empty(),
		Attributes: c.attrs,
		Payload:    c.payload,
		Feedback:   c.feedback,
	}
	if c.current != nil {
		snap.AttemptID = c.current.id
	}
	if c.outcome != nil {
		o := *c.outcome
		snap.Outcome = &o
	}
	return snap
}

// unlockAndNotify releases c.mu and hands the observer the state it saw.
// notifyMu is taken before c.mu is released so snapshots arrive in order.
func (c *Controller) unlockAndNotify() {
	if c.observer == nil {
		c.mu.Unlock()
		return
	}
	snap := c.snapshotLocked()
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()
	c.observer(snap)
}

func (c *Controller) run(ctx context.Context, att *attempt, raw []byte, attrs types.Attributes) {
	log := logging.WithOperation(c.logger, "controller.analyze", att.id)

	payload, err := c.normalizer.Normalize(raw)
	if err != nil {
		log.Warn("image could not be normalized", zap.Error(err))
		c.settle(att, types.Failed(types.ReasonImageUnreadable,
			logging.NewOperationError("controller.normalize", att.id, err)))
		return
	}
	log.Debug("image normalized",
		zap.Int("width", payload.Width),
		zap.Int("height", payload.Height),
		zap.Bool("resized", payload.Resized),
		zap.Int("payload_bytes", len(payload.Data)))

	if !c.advance(att, payload) {
		return
	}

	reqCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if !c.arm(att, cancel) {
		return
	}

	analysis, err := c.client.Analyze(reqCtx, client.Request{
		AttemptID:  att.id,
		Payload:    payload,
		Attributes: attrs,
	})
	if err != nil {
		reason := classify(reqCtx, err)
		c.settle(att, types.Failed(reason, logging.NewOperationError("controller.submit", att.id, err)))
		return
	}
	c.settle(att, types.Succeeded(analysis))
}

// advance moves Preparing to Submitting
func (c *Controller) advance(att *attempt, payload *types.Payload) bool {
	c.mu.Lock()
	if c.current != att || att.settled {
		c.mu.Unlock()
		return false
	}
	c.payload = payload
	c.state = Submitting
	c.unlockAndNotify()
	return true
}

// arm moves Submitting to AwaitingResponse and starts the timeout
func (c *Controller) arm(att *attempt, cancel context.CancelCauseFunc) bool {
	c.mu.Lock()
	if c.current != att || att.settled {
		c.mu.Unlock()
		return false
	}
	att.cancel = cancel
	att.timer = time.AfterFunc(c.timeout, func() { c.expire(att) })
	c.state = AwaitingResponse
	c.unlockAndNotify()
	return true
}

// expire fires when the timeout wins the race
func (c *Controller) expire(att *attempt) {
	c.mu.Lock()
	if c.current != att || att.settled {
		c.mu.Unlock()
		return
	}
	if att.cancel != nil {
		att.cancel(ErrTimeout)
	}
	c.settleLocked(att, types.Failed(types.ReasonTimeout,
		logging.NewOperationError("controller.await", att.id, ErrTimeout)))
}

// settle records the outcome of att unless another event already did
func (c *Controller) settle(att *attempt, outcome types.Outcome) {
	c.mu.Lock()
	if c.current != att || att.settled {
		c.mu.Unlock()
		logging.WithOperation(c.logger, "controller.settle", att.id).Debug("late completion dropped",
			zap.Stringer("outcome", outcome))
		return
	}
	c.settleLocked(att, outcome)
}

// settleLocked must be called with c.mu held; it releases it
func (c *Controller) settleLocked(att *attempt, outcome types.Outcome) {
	att.settled = true
	att.outcome = outcome
	if att.timer != nil {
		att.timer.Stop()
	}

	c.outcome = &outcome
	c.feedback = feedback.State{}
	if outcome.IsSuccess() {
		c.state = Succeeded
	} else {
		c.state = Failed
	}
	close(att.done)

	log := logging.WithOperation(c.logger, "controller.analyze", att.id)
	fields := []zap.Field{
		zap.Stringer("outcome", outcome),
		zap.Duration("elapsed", time.Since(att.started)),
	}
	if outcome.IsSuccess() {
		log.Info("analysis succeeded", fields...)
	} else {
		log.Warn("analysis failed", append(fields, zap.Error(outcome.Err))...)
	}

	c.unlockAndNotify()
}

func classify(ctx context.Context, err error) types.FailureReason {
	switch {
	case errors.Is(context.Cause(ctx), ErrTimeout):
		return types.ReasonTimeout
	case errors.Is(err, client.ErrRejected):
		return types.ReasonServerRejected
	case errors.Is(err, client.ErrMalformedResponse):
		return types.ReasonInvalidResponse
	}
	return types.ReasonNetworkError
}
