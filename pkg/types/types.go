package types

import (
	"errors"
	"fmt"
)

// ErrInvalidAttribute is returned when a categorical attribute is outside its set
var ErrInvalidAttribute = errors.New("invalid attribute")

// RawImage is the image as selected by the user, not yet decoded
type RawImage struct {
	Data []byte
	Name string
}

// Empty reports whether no image bytes are present
func (r RawImage) Empty() bool {
	return len(r.Data) == 0
}

// Payload is the normalized image sent to the analysis service
type Payload struct {
	Data         []byte
	Width        int
	Height       int
	SourceWidth  int
	SourceHeight int
	Resized      bool
}

// Sex of the person eating
type Sex string

const (
	SexMale        Sex = "male"
	SexFemale      Sex = "female"
	SexUndisclosed Sex = "undisclosed"
)

// AgeGroup of the person eating
type AgeGroup string

const (
	AgeInfant AgeGroup = "infant"
	AgeChild  AgeGroup = "child"
	AgeTeen   AgeGroup = "teen"
	AgeAdult  AgeGroup = "adult"
)

// MealTime the dish is eaten at
type MealTime string

const (
	MealBreakfast MealTime = "breakfast"
	MealLunch     MealTime = "lunch"
	MealDinner    MealTime = "dinner"
	MealLateNight MealTime = "late-night"
)

// Goal is the dietary goal of the person eating
type Goal string

const (
	GoalDiet     Goal = "diet"
	GoalMaintain Goal = "maintain"
	GoalBulk     Goal = "bulk"
)

// Attributes are the categorical inputs sent alongside the image
type Attributes struct {
	Sex      Sex      `json:"sex"`
	AgeGroup AgeGroup `json:"age_group"`
	MealTime MealTime `json:"meal_time"`
	Goal     Goal     `json:"goal"`
}

// DefaultAttributes returns the values a new session starts with
func DefaultAttributes() Attributes {
	return Attributes{
		Sex:      SexUndisclosed,
		AgeGroup: AgeAdult,
		MealTime: MealBreakfast,
		Goal:     GoalMaintain,
	}
}

// Validate checks every field against its set. Fields are independent.
func (a Attributes) Validate() error {
	if _, err := ParseSex(string(a.Sex)); err != nil {
		return err
	}
	if _, err := ParseAgeGroup(string(a.AgeGroup)); err != nil {
		return err
	}
	if _, err := ParseMealTime(string(a.MealTime)); err != nil {
		return err
	}
	if _, err := ParseGoal(string(a.Goal)); err != nil {
		return err
	}
	return nil
}

// ParseSex validates a sex value
func ParseSex(s string) (Sex, error) {
	switch v := Sex(s); v {
	case SexMale, SexFemale, SexUndisclosed:
		return v, nil
	}
	return "", fmt.Errorf("%w: sex %q", ErrInvalidAttribute, s)
}

// ParseAgeGroup validates an age group value
func ParseAgeGroup(s string) (AgeGroup, error) {
	switch v := AgeGroup(s); v {
	case AgeInfant, AgeChild, AgeTeen, AgeAdult:
		return v, nil
	}
	return "", fmt.Errorf("%w: age group %q", ErrInvalidAttribute, s)
}

// ParseMealTime validates a meal time value
func ParseMealTime(s string) (MealTime, error) {
	switch v := MealTime(s); v {
	case MealBreakfast, MealLunch, MealDinner, MealLateNight:
		return v, nil
	}
	return "", fmt.Errorf("%w: meal time %q", ErrInvalidAttribute, s)
}

// ParseGoal validates a goal value
func ParseGoal(s string) (Goal, error) {
	switch v := Goal(s); v {
	case GoalDiet, GoalMaintain, GoalBulk:
		return v, nil
	}
	return "", fmt.Errorf("%w: goal %q", ErrInvalidAttribute, s)
}

// Nutrition holds per-dish nutrient quantities.
// Units: kcal, g, g, g, g, g, mg.
type Nutrition struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
	Fiber    float64 `json:"fiber"`
	Sugar    float64 `json:"sugar"`
	Sodium   float64 `json:"sodium"`
}

// Nutrient names a field of Nutrition
type Nutrient string

const (
	NutrientCalories Nutrient = "calories"
	NutrientProtein  Nutrient = "protein"
	NutrientCarbs    Nutrient = "carbs"
	NutrientFat      Nutrient = "fat"
	NutrientFiber    Nutrient = "fiber"
	NutrientSugar    Nutrient = "sugar"
	NutrientSodium   Nutrient = "sodium"
)

// Nutrients lists every nutrient in display order
func Nutrients() []Nutrient {
	return []Nutrient{
		NutrientCalories, NutrientProtein, NutrientCarbs, NutrientFat,
		NutrientFiber, NutrientSugar, NutrientSodium,
	}
}

// Value returns the quantity of a nutrient
func (n Nutrition) Value(name Nutrient) (float64, bool) {
	switch name {
	case NutrientCalories:
		return n.Calories, true
	case NutrientProtein:
		return n.Protein, true
	case NutrientCarbs:
		return n.Carbs, true
	case NutrientFat:
		return n.Fat, true
	case NutrientFiber:
		return n.Fiber, true
	case NutrientSugar:
		return n.Sugar, true
	case NutrientSodium:
		return n.Sodium, true
	}
	return 0, false
}

// Unit returns the display unit of a nutrient
func (name Nutrient) Unit() string {
	switch name {
	case NutrientCalories:
		return "kcal"
	case NutrientSodium:
		return "mg"
	}
	return "g"
}

// Analysis is a successful response from the classification service
type Analysis struct {
	Food       string     `json:"food"`
	Confidence int        `json:"confidence"`
	Nutrition  *Nutrition `json:"nutrition,omitempty"`
	Advice     string     `json:"advice"`
}

// FailureReason classifies why an attempt failed
type FailureReason string

const (
	ReasonImageUnreadable FailureReason = "image-unreadable"
	ReasonTimeout         FailureReason = "timeout"
	ReasonNetworkError    FailureReason = "network-error"
	ReasonServerRejected  FailureReason = "server-rejected"
	ReasonInvalidResponse FailureReason = "invalid-response"
)

// OutcomeKind tags an Outcome
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota + 1
	OutcomeFailure
)

// Outcome is the result of one attempt: either an Analysis or a failure reason
type Outcome struct {
	Kind     OutcomeKind
	Analysis *Analysis
	Reason   FailureReason
	Err      error
}

// Succeeded builds a success outcome
func Succeeded(a *Analysis) Outcome {
	return Outcome{Kind: OutcomeSuccess, Analysis: a}
}

// Failed builds a failure outcome; err is the underlying cause and may be nil
func Failed(reason FailureReason, err error) Outcome {
	return Outcome{Kind: OutcomeFailure, Reason: reason, Err: err}
}

// IsSuccess reports whether the outcome carries an analysis
func (o Outcome) IsSuccess() bool {
	return o.Kind == OutcomeSuccess && o.Analysis != nil
}

// String gives a short form for logs
func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeSuccess:
		if o.Analysis == nil {
			return "success"
		}
		return fmt.Sprintf("success(%s, %d%%)", o.Analysis.Food, o.Analysis.Confidence)
	case OutcomeFailure:
		return fmt.Sprintf("failure(%s)", o.Reason)
	}
	return "none"
}
