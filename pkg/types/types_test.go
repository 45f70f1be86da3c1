package types

import (
	"errors"
	"testing"
)

func TestDefaultAttributes(t *testing.T) {
	attrs := DefaultAttributes()

	if attrs.Sex != SexUndisclosed {
		t.Errorf("Expected sex %q, got %q", SexUndisclosed, attrs.Sex)
	}
	if attrs.AgeGroup != AgeAdult {
		t.Errorf("Expected age group %q, got %q", AgeAdult, attrs.AgeGroup)
	}
	if attrs.MealTime != MealBreakfast {
		t.Errorf("Expected meal time %q, got %q", MealBreakfast, attrs.MealTime)
	}
	if attrs.Goal != GoalMaintain {
		t.Errorf("Expected goal %q, got %q", GoalMaintain, attrs.Goal)
	}
	if err := attrs.Validate(); err != nil {
		t.Errorf("Default attributes should validate, got %v", err)
	}
}

func TestAttributesValidate(t *testing.T) {
	tests := []struct {
		name  string
		attrs Attributes
		ok    bool
	}{
		{"all valid", Attributes{SexFemale, AgeTeen, MealLateNight, GoalBulk}, true},
		{"bad sex", Attributes{"unknown", AgeTeen, MealLunch, GoalBulk}, false},
		{"bad age", Attributes{SexMale, "senior", MealLunch, GoalBulk}, false},
		{"bad meal", Attributes{SexMale, AgeChild, "brunch", GoalBulk}, false},
		{"bad goal", Attributes{SexMale, AgeChild, MealDinner, "cut"}, false},
		{"empty", Attributes{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.attrs.Validate()
			if tt.ok && err != nil {
				t.Errorf("Expected valid, got %v", err)
			}
			if !tt.ok {
				if err == nil {
					t.Error("Expected error, got nil")
				} else if !errors.Is(err, ErrInvalidAttribute) {
					t.Errorf("Expected ErrInvalidAttribute, got %v", err)
				}
			}
		})
	}
}

func TestOutcomeConstructors(t *testing.T) {
	ok := Succeeded(&Analysis{Food: "bibimbap", Confidence: 90})
	if !ok.IsSuccess() {
		t.Error("Succeeded outcome should report success")
	}
	if ok.Reason != "" || ok.Err != nil {
		t.Error("Success outcome must not carry a failure reason")
	}

	cause := errors.New("dial tcp: refused")
	failed := Failed(ReasonNetworkError, cause)
	if failed.IsSuccess() {
		t.Error("Failed outcome should not report success")
	}
	if failed.Analysis != nil {
		t.Error("Failure outcome must not carry an analysis")
	}
	if failed.String() != "failure(network-error)" {
		t.Errorf("Unexpected string form %q", failed.String())
	}
}

func TestNutrientUnits(t *testing.T) {
	if NutrientCalories.Unit() != "kcal" {
		t.Errorf("Expected kcal, got %s", NutrientCalories.Unit())
	}
	if NutrientSodium.Unit() != "mg" {
		t.Errorf("Expected mg, got %s", NutrientSodium.Unit())
	}
	if NutrientFiber.Unit() != "g" {
		t.Errorf("Expected g, got %s", NutrientFiber.Unit())
	}

	n := Nutrition{Sodium: 1800}
	if v, ok := n.Value(NutrientSodium); !ok || v != 1800 {
		t.Errorf("Expected sodium 1800, got %v (%v)", v, ok)
	}
	if _, ok := n.Value("iron"); ok {
		t.Error("Unknown nutrient should not resolve")
	}
}
