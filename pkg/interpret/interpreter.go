// Package interpret turns analysis outcomes into display-ready results.
package interpret

import (
	"github.com/luckcal/food-analyzer/pkg/types"
)

// Confidence thresholds, in percent
const (
	MediumConfidence = 60
	HighConfidence   = 80
)

// ModerateRiskRatio is the fraction of a limit above which a value is moderate risk
const ModerateRiskRatio = 0.7

// DefaultSodiumLimit is the per-dish sodium reference in mg
const DefaultSodiumLimit = 1000

// Display texts
const (
	FailedFood    = "Analysis failed"
	TimeoutAdvice = "The AI response was delayed. Please try again."
	RetryAdvice   = "Please retake the photo or try a different dish."
	Disclaimer    = "AI estimate; the actual dish may differ."
)

// ConfidenceLevel bands a confidence percentage
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// Label is the short qualifier shown next to the percentage
func (l ConfidenceLevel) Label() string {
	switch l {
	case ConfidenceLow:
		return "uncertain"
	case ConfidenceMedium:
		return "caution"
	case ConfidenceHigh:
		return "reliable"
	}
	return ""
}

// RiskLevel bands a nutrient value against a reference limit
type RiskLevel string

const (
	RiskLow      RiskLevel = "low-risk"
	RiskModerate RiskLevel = "moderate-risk"
	RiskHigh     RiskLevel = "high-risk"
)

// ClassifyConfidence partitions every integer into exactly one level
func ClassifyConfidence(c int) ConfidenceLevel {
	switch {
	case c < MediumConfidence:
		return ConfidenceLow
	case c < HighConfidence:
		return ConfidenceMedium
	}
	return ConfidenceHigh
}

// ClassifyRisk bands v against limit: above the limit is high, above 70% of
// it is moderate, anything else is low
func ClassifyRisk(v, limit float64) RiskLevel {
	switch {
	case v > limit:
		return RiskHigh
	case v > limit*ModerateRiskRatio:
		return RiskModerate
	}
	return RiskLow
}

// NutrientRisk is the risk band of one nutrient
type NutrientRisk struct {
	Nutrient types.Nutrient
	Value    float64
	Limit    float64
	Level    RiskLevel
}

// Result is what the renderer shows for one attempt
type Result struct {
	Food            string
	Confidence      int
	ConfidenceLevel ConfidenceLevel
	// Nutrition is nil unless ShowNutrition is set
	Nutrition     *types.Nutrition
	ShowNutrition bool
	Risks         []NutrientRisk
	Advice        string
	Disclaimer    string
	Failed        bool
	Reason        types.FailureReason
}

// Interpreter maps outcomes to results
type Interpreter struct {
	limits map[types.Nutrient]float64
}

// New creates an interpreter with the default sodium reference
func New() *Interpreter {
	return NewWithLimits(nil)
}

// NewWithLimits creates an interpreter with extra or overriding nutrient
// limits. Sodium keeps its default unless overridden.
func NewWithLimits(limits map[types.Nutrient]float64) *Interpreter {
	merged := map[types.Nutrient]float64{
		types.NutrientSodium: DefaultSodiumLimit,
	}
	for k, v := range limits {
		if v > 0 {
			merged[k] = v
		}
	}
	return &Interpreter{limits: merged}
}

// Interpret builds the display result for an outcome
func (i *Interpreter) Interpret(o types.Outcome) Result {
	if !o.IsSuccess() {
		return failedResult(o.Reason)
	}

	a := o.Analysis
	res := Result{
		Food:            a.Food,
		Confidence:      a.Confidence,
		ConfidenceLevel: ClassifyConfidence(a.Confidence),
		Advice:          a.Advice,
		Disclaimer:      Disclaimer,
	}

	// Nutrient numbers are withheld when the dish itself is uncertain
	if a.Nutrition != nil && a.Confidence >= MediumConfidence {
		n := *a.Nutrition
		res.Nutrition = &n
		res.ShowNutrition = true
		res.Risks = i.risks(n)
	}

	return res
}

func (i *Interpreter) risks(n types.Nutrition) []NutrientRisk {
	var out []NutrientRisk
	for _, name := range types.Nutrients() {
		limit, ok := i.limits[name]
		if !ok {
			continue
		}
		v, _ := n.Value(name)
		out = append(out, NutrientRisk{
			Nutrient: name,
			Value:    v,
			Limit:    limit,
			Level:    ClassifyRisk(v, limit),
		})
	}
	return out
}

// Risk returns the band of one nutrient, if it was classified
func (r Result) Risk(name types.Nutrient) (RiskLevel, bool) {
	for _, risk := range r.Risks {
		if risk.Nutrient == name {
			return risk.Level, true
		}
	}
	return "", false
}

func failedResult(reason types.FailureReason) Result {
	advice := RetryAdvice
	if reason == types.ReasonTimeout {
		advice = TimeoutAdvice
	}
	return Result{
		Food:            FailedFood,
		Confidence:      0,
		ConfidenceLevel: ClassifyConfidence(0),
		Advice:          advice,
		Disclaimer:      Disclaimer,
		Failed:          true,
		Reason:          reason,
	}
}
