package client

import (
	"strings"
	"testing"

	"github.com/luckcal/food-analyzer/pkg/types"
)

func TestBuildPromptIncludesAttributes(t *testing.T) {
	prompt := BuildPrompt(types.Attributes{
		Sex:      types.SexMale,
		AgeGroup: types.AgeChild,
		MealTime: types.MealLateNight,
		Goal:     types.GoalBulk,
	})
	for _, want := range []string{"sex=male", "age group=child", "Meal time: late-night", "Goal: bulk"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Prompt missing %q", want)
		}
	}
}

func TestSanitizeModelJSON(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"Sure! {\"a\":1} hope it helps", `{"a":1}`},
		{"{\"a\":[1,2,],}", `{"a":[1,2]}`},
		{"{/* note */\"a\":1}", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := SanitizeModelJSON(tt.in); got != tt.want {
			t.Errorf("SanitizeModelJSON(%q) = %q, expected %q", tt.in, got, tt.want)
		}
	}
}
