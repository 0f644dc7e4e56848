// Package render turns computed phrases into HTML: each block shows its
// result with a tooltip holding the explanation tree and the dice rolled.
package render

//go:generate templ generate

import (
	"context"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/engine"
)

// tooltipParts returns what a formula's tooltip shows: its explanation
// tokens, unless suppressed, and its rolls.
func tooltipParts(f *engine.Formula) ([]engine.Token, []engine.RollRecord) {
	var tokens []engine.Token
	if f.ExplanationEnabled() {
		tokens = f.Tokens()
	}
	return tokens, f.Rolls()
}

// HTML renders c to a string.
func HTML(ctx context.Context, c templ.Component) (string, error) {
	out, err := templ.ToGoHTML(ctx, c)
	return string(out), err
}

// faces lists the rolled faces, marking dropped ones with parentheses.
func faces(die engine.DieResult) string {
	if len(die.Kept) == 0 {
		die.Kept = die.Results
	}
	kept := map[int]int{}
	for _, v := range die.Kept {
		kept[v]++
	}
	parts := make([]string, 0, len(die.Results))
	for _, v := range die.Results {
		if kept[v] > 0 {
			kept[v]--
			parts = append(parts, strconv.Itoa(v))
			continue
		}
		parts = append(parts, "("+strconv.Itoa(v)+")")
	}
	return strings.Join(parts, ", ")
}
