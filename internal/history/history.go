// Package history keeps an optional local journal of analysis attempts and
// the feedback given on them.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/luckcal/food-analyzer/pkg/feedback"
	"github.com/luckcal/food-analyzer/pkg/types"
)

//go:embed schema.sql
var schemaFS embed.FS

// ErrNotFound is returned when an attempt id is not in the journal
var ErrNotFound = errors.New("attempt not found")

// Entry is one journaled attempt
type Entry struct {
	AttemptID  string
	CreatedAt  time.Time
	ImageName  string
	Attributes types.Attributes
	Succeeded  bool
	Reason     types.FailureReason
	Food       string
	Confidence int
	Nutrition  *types.Nutrition
	Advice     string
	Feedback   feedback.State
}

// Journal stores entries in SQLite
type Journal struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens or creates the journal at dbPath
func Open(dbPath string, logger *zap.Logger) (*Journal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error enabling WAL mode: %w", err)
	}

	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing schema: %w", err)
	}

	logger.Debug("history journal opened", zap.String("path", dbPath))
	return &Journal{db: db, logger: logger}, nil
}

func initializeSchema(db *sql.DB) error {
	schemaBytes, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("error reading schema file: %w", err)
	}

	if _, err := db.Exec(string(schemaBytes)); err != nil {
		return fmt.Errorf("error executing schema: %w", err)
	}
	return nil
}

// Close closes the database
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores the outcome of an attempt. Recording the same id again
// replaces the outcome and keeps any feedback.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.AttemptID == "" {
		return fmt.Errorf("attempt id is required")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	var n types.Nutrition
	hasNutrition := e.Nutrition != nil
	if hasNutrition {
		n = *e.Nutrition
	}

	query := `
		INSERT INTO attempts (
			id, created_at, image_name, sex, age_group, meal_time, goal,
			succeeded, failure_reason, food, confidence, has_nutrition,
			calories, protein, carbs, fat, fiber, sugar, sodium, advice,
			feedback, feedback_reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			succeeded = excluded.succeeded,
			failure_reason = excluded.failure_reason,
			food = excluded.food,
			confidence = excluded.confidence,
			has_nutrition = excluded.has_nutrition,
			calories = excluded.calories,
			protein = excluded.protein,
			carbs = excluded.carbs,
			fat = excluded.fat,
			fiber = excluded.fiber,
			sugar = excluded.sugar,
			sodium = excluded.sodium,
			advice = excluded.advice
	`

	_, err := j.db.ExecContext(ctx, query,
		e.AttemptID, e.CreatedAt.UnixMilli(), e.ImageName,
		string(e.Attributes.Sex), string(e.Attributes.AgeGroup),
		string(e.Attributes.MealTime), string(e.Attributes.Goal),
		e.Succeeded, string(e.Reason), e.Food, e.Confidence, hasNutrition,
		n.Calories, n.Protein, n.Carbs, n.Fat, n.Fiber, n.Sugar, n.Sodium, e.Advice,
		e.Feedback.Kind.String(), string(e.Feedback.Reason),
	)
	if err != nil {
		return fmt.Errorf("error recording attempt: %w", err)
	}

	j.logger.Debug("attempt journaled",
		zap.String("request_id", e.AttemptID),
		zap.Bool("succeeded", e.Succeeded))
	return nil
}

// RecordOutcome builds an entry from an outcome and stores it
func (j *Journal) RecordOutcome(ctx context.Context, attemptID, imageName string, attrs types.Attributes, o types.Outcome) error {
	e := Entry{
		AttemptID:  attemptID,
		ImageName:  imageName,
		Attributes: attrs,
		Succeeded:  o.IsSuccess(),
		Reason:     o.Reason,
	}
	if o.IsSuccess() {
		e.Food = o.Analysis.Food
		e.Confidence = o.Analysis.Confidence
		e.Nutrition = o.Analysis.Nutrition
		e.Advice = o.Analysis.Advice
	}
	return j.Record(ctx, e)
}

// SetFeedback updates the feedback of a journaled attempt
func (j *Journal) SetFeedback(ctx context.Context, attemptID string, fb feedback.State) error {
	res, err := j.db.ExecContext(ctx,
		`UPDATE attempts SET feedback = ?, feedback_reason = ? WHERE id = ?`,
		fb.Kind.String(), string(fb.Reason), attemptID)
	if err != nil {
		return fmt.Errorf("error updating feedback: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error updating feedback: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, attemptID)
	}
	return nil
}

// Get returns one entry
func (j *Journal) Get(ctx context.Context, attemptID string) (*Entry, error) {
	row := j.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, attemptID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, attemptID)
	}
	return e, err
}

// Recent returns up to limit entries, newest first
func (j *Journal) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	rows, err := j.db.QueryContext(ctx, selectColumns+` ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying attempts: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

const selectColumns = `
	SELECT id, created_at, image_name, sex, age_group, meal_time, goal,
		succeeded, failure_reason, food, confidence, has_nutrition,
		calories, protein, carbs, fat, fiber, sugar, sodium, advice,
		feedback, feedback_reason
	FROM attempts`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var (
		e            Entry
		createdAt    int64
		sex, age     string
		meal, goal   string
		reason       string
		hasNutrition bool
		n            types.Nutrition
		kind, fbWhy  string
	)
	err := s.Scan(
		&e.AttemptID, &createdAt, &e.ImageName, &sex, &age, &meal, &goal,
		&e.Succeeded, &reason, &e.Food, &e.Confidence, &hasNutrition,
		&n.Calories, &n.Protein, &n.Carbs, &n.Fat, &n.Fiber, &n.Sugar, &n.Sodium, &e.Advice,
		&kind, &fbWhy,
	)
	if err != nil {
		return nil, err
	}

	e.CreatedAt = time.UnixMilli(createdAt)
	e.Attributes = types.Attributes{
		Sex:      types.Sex(sex),
		AgeGroup: types.AgeGroup(age),
		MealTime: types.MealTime(meal),
		Goal:     types.Goal(goal),
	}
	e.Reason = types.FailureReason(reason)
	if hasNutrition {
		e.Nutrition = &n
	}
	e.Feedback = feedback.State{Kind: kindOf(kind), Reason: feedback.Reason(fbWhy)}
	return &e, nil
}

func kindOf(s string) feedback.Kind {
	for _, k := range []feedback.Kind{feedback.Positive, feedback.NegativeUnreasoned, feedback.NegativeReasoned} {
		if k.String() == s {
			return k
		}
	}
	return feedback.Unset
}
