package render

import (
	"context"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/dice"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/engine"
)

func computed(t *testing.T, text string, props map[string]any, rt *engine.Runtime) *engine.Phrase {
	t.Helper()
	p := engine.NewPhrase(text)
	if err := p.Compute(context.Background(), rt, props, engine.Options{Explain: true}); err != nil {
		t.Fatalf("Compute(%q) error = %v", text, err)
	}
	return p
}

func TestPhraseRendersTooltip(t *testing.T) {
	p := computed(t, "Hit for ${str + 2}$ <b>damage</b>", map[string]any{"str": 3}, nil)

	got, err := HTML(context.Background(), Phrase(p))
	if err != nil {
		t.Fatalf("HTML() error = %v", err)
	}
	for _, want := range []string{
		`<span class="phrase">Hit for `,
		`<span class="phrase-formula" data-formula="form0">5`,
		`<span class="phrase-tooltip" role="tooltip">`,
		`<span class="phrase-explain-display" data-handle="str">str</span> <span class="phrase-explain-value">3</span>`,
		` &lt;b&gt;damage&lt;/b&gt;</span>`,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("HTML() = %s\nmissing %s", got, want)
		}
	}
}

func TestPhraseHiddenAndErrorBlocks(t *testing.T) {
	p := computed(t, "${#1+1}$ ${1 +}$", nil, nil)

	got, err := HTML(context.Background(), Phrase(p))
	if err != nil {
		t.Fatalf("HTML() error = %v", err)
	}
	if strings.Contains(got, "phrase-tooltip") {
		t.Fatalf("HTML() = %s, want no tooltips", got)
	}
	if !strings.Contains(got, `class="phrase-formula phrase-error"`) {
		t.Fatalf("HTML() = %s, want an error block", got)
	}
}

func TestTooltipListsRolls(t *testing.T) {
	rt := &engine.Runtime{Roller: dice.NewRoller(1, nil)}
	p := computed(t, "${[3d1kh2] + 1}$", nil, rt)

	got, err := HTML(context.Background(), Tooltip(p.Formulas()[0].Formula))
	if err != nil {
		t.Fatalf("HTML() error = %v", err)
	}
	want := `<li><span class="phrase-roll-formula">3d1kh2</span> <span class="phrase-roll-total">2</span> <span class="phrase-roll-die" data-sides="1">1, 1, (1)</span></li>`
	if !strings.Contains(got, want) {
		t.Fatalf("HTML() = %s\nmissing %s", got, want)
	}
}

func TestFaces(t *testing.T) {
	tests := []struct {
		die  engine.DieResult
		want string
	}{
		{die: engine.DieResult{Results: []int{4, 2}}, want: "4, 2"},
		{die: engine.DieResult{Results: []int{4, 2, 6}, Kept: []int{4, 6}}, want: "4, (2), 6"},
	}
	for _, tt := range tests {
		if got := faces(tt.die); got != tt.want {
			t.Errorf("faces(%v) = %q, want %q", tt.die, got, tt.want)
		}
	}
}

func TestEmptyComponents(t *testing.T) {
	for _, got := range []string{
		mustHTML(t, Explanation(nil)),
		mustHTML(t, Rolls(nil)),
		mustHTML(t, Tooltip(engine.NewFormula("1"))),
	} {
		if got != "" {
			t.Fatalf("expected empty render, got %q", got)
		}
	}
}

func mustHTML(t *testing.T, c templ.Component) string {
	t.Helper()
	var b strings.Builder
	if err := c.Render(context.Background(), &b); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	return b.String()
}

func TestPhraseHiddenBlockMarkup(t *testing.T) {
	p := computed(t, "${#2*3}$", nil, nil)
	got, err := HTML(context.Background(), Phrase(p))
	if err != nil {
		t.Fatalf("HTML() error = %v", err)
	}
	want := `<span class="phrase"><span class="phrase-formula phrase-hidden" data-formula="form0">6 </span></span>`
	if got != want {
		t.Fatalf("HTML() = %s, want %s", got, want)
	}
}
