package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func computePhrase(t *testing.T, rt *Runtime, text string, props map[string]any, opts Options) *Phrase {
	t.Helper()
	p := NewPhrase(text)
	if err := p.Compute(context.Background(), rt, props, opts); err != nil {
		t.Fatalf("Compute(%q) error = %v", text, err)
	}
	return p
}

func TestPhrase_PlainFormula(t *testing.T) {
	p := computePhrase(t, nil, "You gain ${2+3}$ points", nil, Options{})

	if got := p.Result(); got != "You gain 5 points" {
		t.Fatalf("Result() = %q, want %q", got, "You gain 5 points")
	}
	formulas := p.Formulas()
	if len(formulas) != 1 {
		t.Fatalf("Formulas() = %d, want 1", len(formulas))
	}
	if got := formulas[0].Formula.Result(); got != 5 {
		t.Fatalf("formula result = %#v, want 5", got)
	}
	if got := p.Formula(); got != "You gain ${2+3}$ points" {
		t.Fatalf("Formula() = %q", got)
	}
	if got := p.Build(); got != "You gain ${form0}$ points" {
		t.Fatalf("Build() = %q", got)
	}
}

func TestPhrase_Segments(t *testing.T) {
	p := computePhrase(t, nil, "${1+1}$ and ${3}$!", nil, Options{})

	segments := p.Segments()
	var texts []string
	for _, seg := range segments {
		texts = append(texts, seg.Text)
	}
	if diff := cmp.Diff([]string{"2", " and ", "3", "!"}, texts); diff != "" {
		t.Fatalf("segment text mismatch (-want +got):\n%s", diff)
	}
	if segments[0].Entry == nil || segments[0].Entry.ID != "form0" || segments[1].Entry != nil {
		t.Fatalf("segments = %+v", segments)
	}
}

func TestPhrase_NoBlocks(t *testing.T) {
	p := computePhrase(t, nil, "just text", nil, Options{})
	if p.Result() != "just text" || p.Value() != "just text" {
		t.Fatalf("Result() = %q, Value() = %v", p.Result(), p.Value())
	}
}

func TestPhrase_ValueIsTypedForSingleBlock(t *testing.T) {
	p := computePhrase(t, nil, "${1 < 2}$", nil, Options{})
	if got := p.Value(); got != true {
		t.Fatalf("Value() = %#v, want true", got)
	}
}

func TestPhrase_PropsAndDottedPaths(t *testing.T) {
	props := map[string]any{
		"str":   "3",
		"stats": map[string]any{"dex": 2, "wis": map[string]any{"mod": "-1"}},
		"name":  "Ayla",
	}
	p := computePhrase(t, nil, "${name}$: ${str + stats.dex + stats.wis.mod}$", props, Options{})
	if got := p.Result(); got != "Ayla: 4" {
		t.Fatalf("Result() = %q, want %q", got, "Ayla: 4")
	}
	if got := p.Parsed(); got != "name: str + stats.dex + stats.wis.mod" {
		t.Fatalf("Parsed() = %q", got)
	}
}

func TestPhrase_LocalVarsThreadWithinPhraseOnly(t *testing.T) {
	p := computePhrase(t, nil, "${x:=5}$ and ${x*2}$", nil, Options{})
	if got := p.Result(); got != "5 and 10" {
		t.Fatalf("Result() = %q, want %q", got, "5 and 10")
	}
	if got := p.LocalVars()["x"]; got != 5 {
		t.Fatalf("LocalVars()[x] = %#v, want 5", got)
	}

	sibling := NewPhrase("${x}$")
	err := sibling.ComputeStatic(context.Background(), nil, nil, Options{AvailableKeys: []string{"x"}})
	if !IsUnresolvable(err) {
		t.Fatalf("sibling error = %v, want unresolvable", err)
	}
}

func TestPhrase_NestedBlocks(t *testing.T) {
	p := computePhrase(t, nil, "total ${ ${1+1}$ * 3 }$", nil, Options{})
	if got := p.Result(); got != "total 6" {
		t.Fatalf("Result() = %q, want %q", got, "total 6")
	}
	formulas := p.Formulas()
	if len(formulas) != 2 || formulas[0].ID != "form0" || formulas[1].ID != "form1" {
		t.Fatalf("Formulas() = %+v", formulas)
	}
	if got := formulas[0].Formula.Raw(); got != " ${1+1}$ * 3 " {
		t.Fatalf("outer raw = %q", got)
	}
	if got := p.Formula(); got != "total ${ ${1+1}$ * 3 }$" {
		t.Fatalf("Formula() = %q", got)
	}
}

func TestPhrase_RollBlock(t *testing.T) {
	roller := &fixedRoller{face: 1}
	p := computePhrase(t, &Runtime{Roller: roller}, "${[1d1]+2}$", nil, Options{})

	if got := p.Value(); got != 3 {
		t.Fatalf("Value() = %#v, want 3", got)
	}
	rolls := p.Rolls()
	if len(rolls) != 1 || rolls[0].Formula != "1d1" {
		t.Fatalf("Rolls() = %+v, want one roll with formula 1d1", rolls)
	}
	if !p.HasDice() {
		t.Fatal("HasDice() = false, want true")
	}
}

func TestPhrase_RollWithVariables(t *testing.T) {
	roller := &fixedRoller{face: 2}
	props := map[string]any{"count": "3"}
	p := computePhrase(t, &Runtime{Roller: roller}, "${[:count:d6]}$", props, Options{})

	if got := p.Value(); got != 6 {
		t.Fatalf("Value() = %#v, want 6", got)
	}
	if got := p.Rolls()[0].Formula; got != ":count:d6 → 3d6" {
		t.Fatalf("roll formula = %q", got)
	}
}

func TestPhrase_NegativeRollIsParenthesized(t *testing.T) {
	roller := &fixedRoller{face: -2}
	p := computePhrase(t, &Runtime{Roller: roller}, "${10-[1d4]}$", nil, Options{})
	if got := p.Value(); got != 12 {
		t.Fatalf("Value() = %#v, want 12", got)
	}
}

func TestPhrase_RollTableDraw(t *testing.T) {
	roller := &fixedRoller{tables: map[string][]string{"Loot": {"Gold", "Sword"}}}
	p := computePhrase(t, &Runtime{Roller: roller}, "You find ${[#Loot|1]}$", nil, Options{})

	if got := p.Result(); got != "You find Sword" {
		t.Fatalf("Result() = %q", got)
	}
	if len(p.Rolls()) != 0 {
		t.Fatalf("Rolls() = %+v, want none for table entries", p.Rolls())
	}
}

func TestPhrase_MissingRollTableWarns(t *testing.T) {
	notifier := &fakeNotifier{}
	roller := &fixedRoller{tables: map[string][]string{"Loot": {"Gold"}}}
	p := computePhrase(t, &Runtime{Roller: roller, Notifier: notifier}, "You find ${[#Lot]}$", nil, Options{})

	if got := p.Result(); got != "You find ERROR" {
		t.Fatalf("Result() = %q", got)
	}
	if len(notifier.sent) != 1 || !strings.Contains(notifier.sent[0].message, "Did you mean Loot?") {
		t.Fatalf("notifications = %+v, want a suggestion for Loot", notifier.sent)
	}
}

func TestPhrase_InlinePrompt(t *testing.T) {
	prompter := &fakePrompter{answers: map[string]any{"Bonus": "+5"}}
	p := computePhrase(t, &Runtime{Prompter: prompter}, "${?{Bonus|+5,Plus five|+0,None} + 1}$", nil, Options{})

	f := p.Formulas()[0].Formula
	if got := f.LocalVars()["Bonus"]; got != "+5" {
		t.Fatalf("Bonus = %#v, want %q", got, "+5")
	}
	if got := f.Parsed(); got != "Bonus + 1" {
		t.Fatalf("Parsed() = %q, want %q", got, "Bonus + 1")
	}
	if got := p.Value(); got != 6 {
		t.Fatalf("Value() = %#v, want 6", got)
	}

	if len(prompter.requests) != 1 {
		t.Fatalf("prompts = %d, want 1", len(prompter.requests))
	}
	want := []Field{{
		Name:    "Bonus",
		Label:   "Bonus",
		Type:    "select",
		Default: "+5",
		Choices: []Choice{{Value: "+5", Label: "Plus five"}, {Value: "+0", Label: "None"}},
	}}
	if diff := cmp.Diff(want, prompter.requests[0].Fields); diff != "" {
		t.Fatalf("dialog fields mismatch (-want +got):\n%s", diff)
	}
}

func TestPhrase_InlinePromptsShareOneDialog(t *testing.T) {
	prompter := &fakePrompter{answers: map[string]any{"a": "2", "b": "3"}}
	p := computePhrase(t, &Runtime{Prompter: prompter}, "${?{a:First[number]} * ?{b|1} + ?{a}}$", nil, Options{})

	if got := p.Value(); got != 8 {
		t.Fatalf("Value() = %#v, want 8", got)
	}
	if len(prompter.requests) != 1 {
		t.Fatalf("prompts = %d, want 1", len(prompter.requests))
	}
	fields := prompter.requests[0].Fields
	if len(fields) != 2 {
		t.Fatalf("fields = %+v, want 2 deduplicated", fields)
	}
	if fields[0].Label != "First" || fields[0].Type != "number" {
		t.Fatalf("field a = %+v", fields[0])
	}
	if fields[1].Default != "1" || fields[1].Type != "text" {
		t.Fatalf("field b = %+v", fields[1])
	}
}

func TestPhrase_DismissedPromptFallsBackToDefault(t *testing.T) {
	prompter := &fakePrompter{closed: true}
	p := computePhrase(t, &Runtime{Prompter: prompter}, "${?{mod} + 1}$", nil, Options{Default: 0})
	if got := p.Value(); got != 1 {
		t.Fatalf("Value() = %#v, want 1", got)
	}

	q := NewPhrase("${?{mod} + 1}$")
	err := q.Compute(context.Background(), &Runtime{Prompter: prompter}, nil, Options{})
	if !IsUnresolvable(err) {
		t.Fatalf("error = %v, want unresolvable without a default", err)
	}
}

func TestPhrase_PromptTemplate(t *testing.T) {
	prompter := &fakePrompter{answers: map[string]any{"bonus": "3"}}
	rt := &Runtime{
		Prompter: prompter,
		Templates: fakeTemplates{templates: map[string]PromptTemplate{
			"Attack": {Name: "Attack", Title: "Attack roll", Fields: []Field{{Name: "bonus", Type: "number"}}},
		}},
	}
	p := computePhrase(t, rt, "${?#{Attack}bonus * 2}$", nil, Options{})

	if got := p.Value(); got != 6 {
		t.Fatalf("Value() = %#v, want 6", got)
	}
	if !p.Hidden() {
		t.Fatal("Hidden() = false, want true after a template prompt")
	}
	if got := prompter.requests[0].Template; got != "Attack" {
		t.Fatalf("dialog template = %q", got)
	}
}

func TestPhrase_MissingPromptTemplateWarns(t *testing.T) {
	notifier := &fakeNotifier{}
	rt := &Runtime{
		Notifier:  notifier,
		Templates: fakeTemplates{templates: map[string]PromptTemplate{"Attack": {Name: "Attack"}}},
	}
	p := computePhrase(t, rt, "${?#{Atack}}$", nil, Options{})

	if got := p.Value(); got != "Atack" {
		t.Fatalf("Value() = %#v, want the template name", got)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].severity != SeverityWarn {
		t.Fatalf("notifications = %+v, want one warning", notifier.sent)
	}
	if !strings.Contains(notifier.sent[0].message, "Attack") {
		t.Fatalf("warning %q does not suggest Attack", notifier.sent[0].message)
	}
}

func TestPhrase_Sigils(t *testing.T) {
	p := computePhrase(t, nil, "${#!1+1}$ ${!#2}$ ${3}$", nil, Options{Explain: true})
	formulas := p.Formulas()
	if !formulas[0].Formula.Hidden() || formulas[0].Formula.ExplanationEnabled() {
		t.Fatalf("first formula flags = hidden %v explanation %v", formulas[0].Formula.Hidden(), formulas[0].Formula.ExplanationEnabled())
	}
	if !formulas[1].Formula.Hidden() || formulas[1].Formula.ExplanationEnabled() {
		t.Fatal("second formula should be hidden without explanation")
	}
	if formulas[2].Formula.Hidden() || !formulas[2].Formula.ExplanationEnabled() {
		t.Fatal("third formula should be visible with explanation")
	}
	if got := p.Result(); got != "2 2 3" {
		t.Fatalf("Result() = %q", got)
	}
}

func TestPhrase_EvaluationFaultBecomesError(t *testing.T) {
	p := computePhrase(t, nil, "a ${(1 + }$ b", nil, Options{})
	if got := p.Result(); got != "a ERROR b" {
		t.Fatalf("Result() = %q, want %q", got, "a ERROR b")
	}
}

func TestPhrase_UnresolvablePropagates(t *testing.T) {
	p := NewPhrase("${hp + 1}$")
	err := p.Compute(context.Background(), nil, map[string]any{}, Options{AvailableKeys: []string{"hp"}})
	var unresolvable *UnresolvableError
	if !errors.As(err, &unresolvable) {
		t.Fatalf("error = %v, want UnresolvableError", err)
	}
	if unresolvable.Token != "hp" || unresolvable.Formula != "hp + 1" {
		t.Fatalf("error = %+v", unresolvable)
	}
}

func TestPhrase_DefaultReplacesMissing(t *testing.T) {
	p := computePhrase(t, nil, "${hp + 1}$", nil, Options{Default: 0, AvailableKeys: []string{"hp"}})
	if got := p.Value(); got != 1 {
		t.Fatalf("Value() = %#v, want 1", got)
	}
}

func TestPhrase_EscapedLiteral(t *testing.T) {
	p := computePhrase(t, nil, `${'it\'s ' + name}$`, map[string]any{"name": "mine"}, Options{})
	if got := p.Result(); got != "it's mine" {
		t.Fatalf("Result() = %q", got)
	}
}

func TestPhrase_StaticRequiresInput(t *testing.T) {
	for _, text := range []string{"${[1d6]}$", "${?{x}}$", "${?#{T}}$", "${setPropertyInEntity('self', 'hp', '1')}$"} {
		p := NewPhrase(text)
		err := p.ComputeStatic(context.Background(), &Runtime{Roller: &fixedRoller{}}, nil, Options{})
		if !errors.Is(err, ErrRequiresInput) {
			t.Fatalf("ComputeStatic(%q) error = %v, want ErrRequiresInput", text, err)
		}
	}
}

func TestPhrase_ScriptBlocks(t *testing.T) {
	tests := []struct {
		name    string
		scripts ScriptRunner
		opts    Options
		want    any
	}{
		{name: "disabled", want: "ERROR"},
		{name: "number", scripts: &fakeScripts{result: 42}, want: 42},
		{name: "string", scripts: &fakeScripts{result: "it's"}, want: "it's"},
		{name: "nil", scripts: &fakeScripts{}, want: "undefined"},
		{name: "object", scripts: &fakeScripts{result: map[string]any{"a": 1}}, want: "[object]"},
		{name: "failure uses default", scripts: &fakeScripts{err: errors.New("boom")}, opts: Options{Default: 0}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := computePhrase(t, &Runtime{Scripts: tt.scripts}, "%{return x}%", nil, tt.opts)
			if got := p.Value(); got != tt.want {
				t.Fatalf("Value() = %#v, want %#v", got, tt.want)
			}
			if got := p.Formula(); got != "%{return x}%" {
				t.Fatalf("Formula() = %q", got)
			}
		})
	}
}

func TestPhrase_Explanation(t *testing.T) {
	props := map[string]any{
		"str":  "3",
		"gear": map[string]any{"0": map[string]any{"bonus": 2}},
	}
	p := computePhrase(t, nil, "${str + str * sameRow('bonus')}$", props, Options{Explain: true, Reference: "gear.0"})

	want := []Token{{
		Display: "str + str * sameRow('bonus')",
		Value:   9,
		Children: []Token{
			{Display: "str", Handle: "str", Value: 3},
			{Display: `sameRow("bonus")`, Handle: "sameRow", Value: 2},
		},
	}}
	if diff := cmp.Diff(want, p.Tokens()); diff != "" {
		t.Fatalf("Tokens() mismatch (-want +got):\n%s", diff)
	}
}

func TestPhrase_ExplanationSuppressed(t *testing.T) {
	p := computePhrase(t, nil, "${!1+1}$", nil, Options{Explain: true})
	if got := p.Tokens(); len(got) != 0 {
		t.Fatalf("Tokens() = %+v, want none", got)
	}
}
