package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
)

// maxDepth bounds nested computations (sub-phrases, cross-entity lookups).
const maxDepth = 32

var errTooDeep = errors.New("nested computation too deep")

// RollRecord pairs the text of a roll block with the roll it produced.
type RollRecord struct {
	Formula string
	Roll    Roll
}

// Formula is one evaluable unit. It is built from raw text and computed at
// most once; a Formula is never reused for a different property bag.
type Formula struct {
	raw    string
	source string

	parsed    string
	result    any
	computed  bool
	localVars map[string]any
	hasDice   bool
	tokens    []Token
	rolls     []RollRecord

	sigilsRead  bool
	body        string
	hidden      bool
	explanation bool
}

// NewFormula returns a formula for raw, the content of a ${...}$ block
// without its delimiters.
func NewFormula(raw string) *Formula {
	return &Formula{raw: raw, source: raw, explanation: true, localVars: map[string]any{}}
}

// newDerivedFormula computes source while reporting raw, used when nested
// blocks or a script were resolved before the formula itself.
func newDerivedFormula(raw, source string) *Formula {
	f := NewFormula(raw)
	f.source = source
	return f
}

func (f *Formula) Raw() string    { return f.raw }
func (f *Formula) Parsed() string { return f.parsed }

// Result is the evaluated value: a number, a bool or a string. It is nil
// until the formula computed.
func (f *Formula) Result() any { return f.result }

func (f *Formula) Computed() bool            { return f.computed }
func (f *Formula) LocalVars() map[string]any { return maps.Clone(f.localVars) }
func (f *Formula) HasDice() bool             { return f.hasDice }
func (f *Formula) Tokens() []Token           { return f.tokens }
func (f *Formula) Rolls() []RollRecord       { return f.rolls }
func (f *Formula) Hidden() bool              { return f.hidden }
func (f *Formula) ExplanationEnabled() bool  { return f.explanation }

// Compute evaluates the formula, suspending on prompts, prompt templates,
// rolls and entity mutations through rt.
func (f *Formula) Compute(ctx context.Context, rt *Runtime, props map[string]any, opts Options) error {
	return f.compute(newEvalContext(ctx, rt, props, opts, false))
}

// ComputeStatic evaluates the formula without suspending. Prompts, prompt
// templates, rolls and entity mutations fail with ErrRequiresInput.
func (f *Formula) ComputeStatic(ctx context.Context, rt *Runtime, props map[string]any, opts Options) error {
	return f.compute(newEvalContext(ctx, rt, props, opts, true))
}

// evalContext is the state shared by one computation and all the nested
// computations it triggers.
type evalContext struct {
	ctx    context.Context
	rt     *Runtime
	props  map[string]any
	opts   Options
	static bool
	depth  int
}

func newEvalContext(ctx context.Context, rt *Runtime, props map[string]any, opts Options, static bool) *evalContext {
	if rt == nil {
		rt = &Runtime{}
	}
	if props == nil {
		props = map[string]any{}
	}
	return &evalContext{ctx: ctx, rt: rt, props: props, opts: opts, static: static}
}

// nested derives the context of a sub-computation: same props and
// collaborators, its own local variables, one level deeper.
func (ec *evalContext) nested(locals map[string]any) (*evalContext, error) {
	if ec.depth+1 > maxDepth {
		return nil, errTooDeep
	}
	child := *ec
	child.depth++
	child.opts.LocalVars = locals
	child.opts.Explain = false
	return &child, nil
}

// subPhrase computes text as a phrase in a nested context and returns its
// displayed result.
func (ec *evalContext) subPhrase(text string, locals map[string]any) (string, error) {
	if !hasBlocks(text) {
		return text, nil
	}
	child, err := ec.nested(locals)
	if err != nil {
		return "", err
	}
	p := NewPhrase(text)
	if err := p.compute(child); err != nil {
		return "", err
	}
	return p.Result(), nil
}

func (f *Formula) readSigils() {
	if f.sigilsRead {
		return
	}
	f.sigilsRead = true
	body := strings.TrimLeft(f.source, " \t")
	for range 2 {
		switch {
		case strings.HasPrefix(body, "#") && !f.hidden:
			f.hidden = true
			body = body[1:]
		case strings.HasPrefix(body, "!") && f.explanation:
			f.explanation = false
			body = body[1:]
		}
	}
	f.body = body
}

func (f *Formula) compute(ec *evalContext) error {
	if f.computed {
		return nil
	}
	if err := ec.ctx.Err(); err != nil {
		return err
	}
	f.readSigils()

	s := newScope(ec.props, ec.opts.LocalVars, CoercionPolicy{
		Default:     ec.opts.Default,
		MustResolve: keySet(ec.opts.AvailableKeys),
	})
	s.formula = f.raw

	text, texts := IsolateLiterals(f.body, nil)
	s.texts = texts

	for _, stage := range []func(*Formula, *scope, string) (string, error){
		ec.resolveTemplates,
		ec.resolvePrompts,
		ec.resolveRolls,
	} {
		next, err := stage(f, s, text)
		if err != nil {
			if perr := ec.fault(f, err); perr != nil {
				return perr
			}
			f.parsed = text
			f.result = ErrorSentinel
			f.computed = true
			return nil
		}
		text = next
	}
	f.parsed = text

	result, err := ec.evaluate(f, s, text)
	if err != nil {
		return err
	}
	f.result = result
	f.computed = true
	return nil
}

// fault logs an evaluation fault and reports whether it must propagate
// instead of degrading to the error sentinel.
func (ec *evalContext) fault(f *Formula, err error) error {
	switch {
	case IsUnresolvable(err),
		errors.Is(err, ErrRequiresInput),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}
	ec.rt.logf("formula %q failed: %v", f.raw, err)
	return nil
}

func (f *Formula) String() string {
	return fmt.Sprintf("${%s}$", f.raw)
}
