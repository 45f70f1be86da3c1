package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/luckcal/food-analyzer/internal/utils"
	"github.com/luckcal/food-analyzer/pkg/interpret"
	"github.com/luckcal/food-analyzer/pkg/types"
)

// render prints one interpreted result as plain text
func render(w io.Writer, source string, payload *types.Payload, res interpret.Result) {
	fmt.Fprintf(w, "== %s\n", source)
	if payload != nil {
		fmt.Fprintf(w, "   sent %dx%d JPEG (%s), source %dx%d\n",
			payload.Width, payload.Height, utils.FormatFileSize(int64(len(payload.Data))),
			payload.SourceWidth, payload.SourceHeight)
	}

	if res.Failed {
		fmt.Fprintf(w, "   %s (%s)\n", res.Food, res.Reason)
		fmt.Fprintf(w, "   %s\n\n", res.Advice)
		return
	}

	fmt.Fprintf(w, "   %s\n", res.Food)
	fmt.Fprintf(w, "   confidence %d%% (%s)\n", res.Confidence, res.ConfidenceLevel.Label())

	if res.ShowNutrition {
		for _, name := range types.Nutrients() {
			v, _ := res.Nutrition.Value(name)
			line := fmt.Sprintf("   %-9s %8.1f %s", name, v, name.Unit())
			for _, risk := range res.Risks {
				if risk.Nutrient == name {
					line += fmt.Sprintf("  [%s, limit %.0f %s]", risk.Level, risk.Limit, name.Unit())
				}
			}
			fmt.Fprintln(w, line)
		}
	} else if res.ConfidenceLevel == interpret.ConfidenceLow {
		fmt.Fprintln(w, "   nutrition hidden: the dish could not be identified reliably")
	}

	fmt.Fprintf(w, "   advice: %s\n", strings.TrimSpace(res.Advice))
	fmt.Fprintf(w, "   %s\n\n", res.Disclaimer)
}
