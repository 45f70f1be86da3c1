package client

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/luckcal/food-analyzer/pkg/types"
)

// BuildPrompt renders the classification prompt for the given attributes
func BuildPrompt(attrs types.Attributes) string {
	return fmt.Sprintf(promptTemplate, attrs.Sex, attrs.AgeGroup, attrs.MealTime, attrs.Goal)
}

const promptTemplate = `You are a nutrition assistant looking at a photo of a single dish.

Person: sex=%s, age group=%s. Meal time: %s. Goal: %s.

Return JSON only:
{
  "food": "dish name",
  "confidence": 0,
  "nutrition": {"calories": 0, "protein": 0, "carbs": 0, "fat": 0, "fiber": 0, "sugar": 0, "sodium": 0},
  "advice": "one or two sentences"
}

RULES
- confidence is an integer percentage 0-100 of how sure you are about the dish.
- nutrition is for the visible portion: calories in kcal, sodium in mg, everything else in grams.
- advice must take the person, the meal time and the goal into account.
- If the photo does not show food, use "food": "unknown" and "confidence": 0.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// SanitizeModelJSON removes code fences, comments, and trailing commas from
// model output and keeps the outermost object
func SanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
