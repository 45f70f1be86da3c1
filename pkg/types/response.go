package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Placeholders used when the service omits a field
const (
	UnknownFood   = "Food not recognized"
	MissingAdvice = "Could not generate advice."
)

// ErrMalformedResponse is returned when a response body is not a JSON object
var ErrMalformedResponse = errors.New("malformed analysis response")

// confidence values beyond this are not representable as display percentages
const confidenceBound = 1e9

// rawAnalysis mirrors the service response with every field left untyped so
// that mistyped fields can be defaulted instead of failing the decode
type rawAnalysis struct {
	Food       interface{} `json:"food"`
	Confidence interface{} `json:"confidence"`
	Nutrition  interface{} `json:"nutrition"`
	Advice     interface{} `json:"advice"`
}

// ParseAnalysis decodes a service response, defaulting missing or mistyped fields
func ParseAnalysis(body []byte) (*Analysis, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrMalformedResponse
	}

	var raw rawAnalysis
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return &Analysis{
		Food:       stringOr(raw.Food, UnknownFood),
		Confidence: confidenceOf(raw.Confidence),
		Nutrition:  nutritionOf(raw.Nutrition),
		Advice:     stringOr(raw.Advice, MissingAdvice),
	}, nil
}

func stringOr(v interface{}, fallback string) string {
	s, ok := v.(string)
	if !ok || s == "" {
		return fallback
	}
	return s
}

// confidenceOf floors the value so integer thresholds classify it the same
// way as the fractional number would
func confidenceOf(v interface{}) int {
	f, ok := numberOf(v)
	if !ok {
		return 0
	}
	f = math.Floor(f)
	if f > confidenceBound {
		f = confidenceBound
	}
	if f < -confidenceBound {
		f = -confidenceBound
	}
	return int(f)
}

func nutritionOf(v interface{}) *Nutrition {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	field := func(name Nutrient) float64 {
		f, ok := numberOf(m[string(name)])
		if !ok || f < 0 {
			return 0
		}
		return f
	}
	return &Nutrition{
		Calories: field(NutrientCalories),
		Protein:  field(NutrientProtein),
		Carbs:    field(NutrientCarbs),
		Fat:      field(NutrientFat),
		Fiber:    field(NutrientFiber),
		Sugar:    field(NutrientSugar),
		Sodium:   field(NutrientSodium),
	}
}

// numberOf accepts JSON numbers only; strings such as "85" are mistyped
func numberOf(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	case float64:
		return n, true
	}
	return 0, false
}
