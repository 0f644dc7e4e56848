package engine

import (
	"context"
	"fmt"
	"maps"
	"regexp"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/louisbranch/sheetphrase/internal/services/phrase/engine")

// Phrase is free text with embedded formula and script blocks.
type Phrase struct {
	raw       string
	build     string
	formulas  map[string]*Formula
	kinds     map[string]BlockKind
	order     []string
	localVars map[string]any
	computed  bool
}

// FormulaEntry pairs a placeholder id with its formula.
type FormulaEntry struct {
	ID      string
	Kind    BlockKind
	Formula *Formula
}

// NewPhrase returns a phrase for raw text.
func NewPhrase(raw string) *Phrase {
	return &Phrase{
		raw:       raw,
		build:     raw,
		formulas:  map[string]*Formula{},
		kinds:     map[string]BlockKind{},
		localVars: map[string]any{},
	}
}

// Compute evaluates every block of the phrase in order, suspending on
// prompts and rolls through rt. Local variables assigned by a block are
// visible to the blocks after it.
func (p *Phrase) Compute(ctx context.Context, rt *Runtime, props map[string]any, opts Options) error {
	return p.traced(ctx, rt, props, opts, false)
}

// ComputeStatic evaluates the phrase without suspending; prompts, rolls and
// entity mutations fail with ErrRequiresInput.
func (p *Phrase) ComputeStatic(ctx context.Context, rt *Runtime, props map[string]any, opts Options) error {
	return p.traced(ctx, rt, props, opts, true)
}

func (p *Phrase) traced(ctx context.Context, rt *Runtime, props map[string]any, opts Options, static bool) error {
	ctx, span := tracer.Start(ctx, "phrase.compute")
	defer span.End()
	span.SetAttributes(attribute.Bool("phrase.static", static))

	err := p.compute(newEvalContext(ctx, rt, props, opts, static))
	span.SetAttributes(attribute.Int("phrase.formulas", len(p.order)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (p *Phrase) compute(ec *evalContext) error {
	if p.computed {
		return nil
	}
	locals := maps.Clone(ec.opts.LocalVars)
	if locals == nil {
		locals = map[string]any{}
	}
	build, err := p.expand(ec, p.raw, locals, true)
	if err != nil {
		return err
	}
	p.build = build
	p.localVars = locals
	p.computed = true
	return nil
}

// expand replaces every top-level block of text. Top-level blocks of the
// phrase become placeholders; nested blocks are replaced by their results.
// Each block gets its id before its own nested blocks are expanded, so ids
// follow outermost-first discovery order.
func (p *Phrase) expand(ec *evalContext, text string, locals map[string]any, topLevel bool) (string, error) {
	blocks := ExtractBlocks(text)
	if len(blocks) == 0 {
		return text, nil
	}
	var b strings.Builder
	last := 0
	for _, block := range blocks {
		b.WriteString(text[last:block.Start])
		last = block.End

		id := "form" + strconv.Itoa(len(p.order))
		p.order = append(p.order, id)
		p.kinds[id] = block.Kind

		f, err := p.computeBlock(ec, block, locals)
		if err != nil {
			return "", err
		}
		p.formulas[id] = f
		maps.Copy(locals, f.localVars)

		if topLevel {
			b.WriteString(placeholder(id))
		} else {
			b.WriteString(FormatValue(f.Result()))
		}
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

func (p *Phrase) computeBlock(ec *evalContext, block Block, locals map[string]any) (*Formula, error) {
	ctx, span := tracer.Start(ec.ctx, "formula.compute")
	defer span.End()
	span.SetAttributes(attribute.String("formula.kind", block.Kind.String()))

	inner := block.Inner()
	source := inner
	if hasBlocks(inner) {
		expanded, err := p.expand(ec, inner, locals, false)
		if err != nil {
			return nil, err
		}
		source = expanded
	}

	child := *ec
	child.ctx = ctx
	child.opts.LocalVars = maps.Clone(locals)

	var f *Formula
	switch block.Kind {
	case BlockScript:
		f = newDerivedFormula(inner, child.runScript(source))
	default:
		f = newDerivedFormula(inner, source)
	}
	if err := f.compute(&child); err != nil {
		if !IsUnresolvable(err) {
			span.RecordError(err)
		}
		return nil, err
	}
	return f, nil
}

// runScript evaluates a script block and renders its result as a literal
// the formula evaluator can parse back.
func (ec *evalContext) runScript(code string) string {
	if ec.rt.Scripts == nil {
		ec.rt.logf("script block failed: %v", ErrScriptsDisabled)
		return scriptFallback(ec.opts.Default)
	}
	result, err := ec.rt.Scripts.RunScript(ec.ctx, code, ec.opts.Trigger, ec.opts.Linked)
	if err != nil {
		ec.rt.logf("script block failed: %v", err)
		return scriptFallback(ec.opts.Default)
	}
	return scriptLiteral(result)
}

func scriptFallback(def any) string {
	if def == nil {
		return quoteLiteral(ErrorSentinel)
	}
	return scriptLiteral(def)
}

func scriptLiteral(value any) string {
	switch v := value.(type) {
	case nil:
		return quoteLiteral("undefined")
	case bool:
		return strconv.FormatBool(v)
	case int, int64, float64:
		return FormatValue(v)
	case map[string]any, []any:
		return quoteLiteral("[object]")
	case string:
		return quoteLiteral(v)
	default:
		if n, ok := toFloat(v); ok {
			return formatFloat(n)
		}
		return quoteLiteral(fmt.Sprint(v))
	}
}

var placeholderRef = regexp.MustCompile(`\$\{(form\d+)\}\$`)

func placeholder(id string) string {
	return formulaOpen + id + formulaClose
}

// Computed reports whether the phrase finished computing.
func (p *Phrase) Computed() bool { return p.computed }

// Raw returns the phrase as written.
func (p *Phrase) Raw() string { return p.raw }

// Build returns the phrase with each top-level block replaced by its
// placeholder.
func (p *Phrase) Build() string { return p.build }

// Formula returns the phrase with each placeholder replaced by the raw text
// of its block.
func (p *Phrase) Formula() string {
	return p.render(func(id string, f *Formula) string {
		if p.kinds[id] == BlockScript {
			return scriptOpen + f.Raw() + scriptClose
		}
		return formulaOpen + f.Raw() + formulaClose
	})
}

// Parsed returns the phrase with each placeholder replaced by the
// preprocessed text of its formula.
func (p *Phrase) Parsed() string {
	return p.render(func(_ string, f *Formula) string { return f.Parsed() })
}

// Result returns the phrase with each placeholder replaced by its result.
func (p *Phrase) Result() string {
	return p.render(func(_ string, f *Formula) string { return FormatValue(f.Result()) })
}

// Value returns the typed result when the phrase is exactly one block, and
// the displayed result otherwise.
func (p *Phrase) Value() any {
	if len(p.order) > 0 && p.build == placeholder(p.order[0]) {
		return p.formulas[p.order[0]].Result()
	}
	return p.Result()
}

// Formulas returns every computed formula in placeholder order, nested
// blocks included.
func (p *Phrase) Formulas() []FormulaEntry {
	out := make([]FormulaEntry, 0, len(p.order))
	for _, id := range p.order {
		f, ok := p.formulas[id]
		if !ok {
			continue
		}
		out = append(out, FormulaEntry{ID: id, Kind: p.kinds[id], Formula: f})
	}
	return out
}

// LocalVars returns the local variables in scope after the last block.
func (p *Phrase) LocalVars() map[string]any { return maps.Clone(p.localVars) }

// Rolls returns the rolls of every formula in order.
func (p *Phrase) Rolls() []RollRecord {
	var out []RollRecord
	for _, entry := range p.Formulas() {
		out = append(out, entry.Formula.Rolls()...)
	}
	return out
}

// HasDice reports whether any block rolled dice.
func (p *Phrase) HasDice() bool {
	for _, f := range p.formulas {
		if f.HasDice() {
			return true
		}
	}
	return false
}

// Hidden reports whether any top-level block asked to be hidden.
func (p *Phrase) Hidden() bool {
	for _, f := range p.formulas {
		if f.Hidden() {
			return true
		}
	}
	return false
}

// Tokens returns the explanation trees of every formula in order.
func (p *Phrase) Tokens() []Token {
	var out []Token
	for _, entry := range p.Formulas() {
		if entry.Formula.ExplanationEnabled() {
			out = append(out, entry.Formula.Tokens()...)
		}
	}
	return out
}

// Segment is one run of a computed phrase: literal text, or a top-level
// block when Entry is set.
type Segment struct {
	Text  string
	Entry *FormulaEntry
}

// Segments splits the built phrase into literal runs and top-level blocks, in
// order. The Text of a block segment is its displayed result.
func (p *Phrase) Segments() []Segment {
	var out []Segment
	last := 0
	for _, m := range placeholderRef.FindAllStringSubmatchIndex(p.build, -1) {
		id := p.build[m[2]:m[3]]
		f, ok := p.formulas[id]
		if !ok {
			continue
		}
		if m[0] > last {
			out = append(out, Segment{Text: p.build[last:m[0]]})
		}
		out = append(out, Segment{
			Text:  FormatValue(f.Result()),
			Entry: &FormulaEntry{ID: id, Kind: p.kinds[id], Formula: f},
		})
		last = m[1]
	}
	if last < len(p.build) {
		out = append(out, Segment{Text: p.build[last:]})
	}
	return out
}

func (p *Phrase) render(value func(id string, f *Formula) string) string {
	if len(p.order) == 0 {
		return p.build
	}
	pairs := make([]string, 0, 2*len(p.order))
	for _, id := range p.order {
		f, ok := p.formulas[id]
		if !ok {
			continue
		}
		pairs = append(pairs, placeholder(id), value(id, f))
	}
	return strings.NewReplacer(pairs...).Replace(p.build)
}
