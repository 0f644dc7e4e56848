package engine

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var templateRef = regexp.MustCompile(`\?#\{([^{}]*)\}`)

// resolveTemplates replaces every ?#{Name} reference by rendering the named
// prompt template. Submitted values become local variables and the reference
// disappears from the text; an unknown template is reported and replaced by a
// literal of its name.
func (ec *evalContext) resolveTemplates(f *Formula, s *scope, text string) (string, error) {
	matches := templateRef.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}
	if ec.static {
		return "", ErrRequiresInput
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m[0]])
		last = m[1]
		name := strings.TrimSpace(text[m[2]:m[3]])

		tpl, err := ec.lookupTemplate(name)
		if errors.Is(err, ErrTemplateNotFound) {
			ec.reportMissingTemplate(name)
			b.WriteString(quoteLiteral(name))
			continue
		}
		if err != nil {
			return "", fmt.Errorf("load prompt template %s: %w", name, err)
		}

		values, err := ec.prompt(DialogRequest{Title: tpl.Title, Template: tpl.Name, Fields: tpl.Fields})
		if err != nil {
			if !errors.Is(err, ErrDialogClosed) {
				return "", err
			}
			for _, field := range tpl.Fields {
				s.require(field.Name)
			}
		}
		for key, value := range values {
			s.setLocal(key, value)
			f.localVars[key] = value
		}
		f.hidden = true
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

func (ec *evalContext) lookupTemplate(name string) (PromptTemplate, error) {
	if ec.rt.Templates == nil {
		return PromptTemplate{}, ErrTemplateNotFound
	}
	return ec.rt.Templates.PromptTemplate(ec.ctx, name)
}

func (ec *evalContext) reportMissingTemplate(name string) {
	var names []string
	if ec.rt.Templates != nil {
		names, _ = ec.rt.Templates.TemplateNames(ec.ctx)
	}
	p := ec.rt.printer()
	msg := p.Sprintf(msgTemplateMissing, name)
	if suggestion := Suggest(name, names); suggestion != "" {
		msg += " " + p.Sprintf(msgDidYouMean, suggestion)
	}
	ec.rt.logf("prompt template %q not found", name)
	ec.rt.notify(ec.ctx, SeverityWarn, msg)
}

func (ec *evalContext) prompt(req DialogRequest) (map[string]any, error) {
	if ec.static || ec.rt.Prompter == nil {
		return nil, ErrRequiresInput
	}
	return ec.rt.Prompter.Prompt(ec.ctx, req)
}

// inlinePrompt is one ?{...} occurrence.
type inlinePrompt struct {
	start, end int
	field      Field
}

// resolvePrompts collects every inline prompt of the formula into a single
// dialog, then substitutes each occurrence by its variable name.
func (ec *evalContext) resolvePrompts(f *Formula, s *scope, text string) (string, error) {
	found := scanInlinePrompts(text)
	if len(found) == 0 {
		return text, nil
	}
	if ec.static {
		return "", ErrRequiresInput
	}

	var (
		fields []Field
		seen   = map[string]bool{}
	)
	for i := range found {
		field, err := ec.buildField(text[found[i].start+2:found[i].end-1], s)
		if err != nil {
			return "", err
		}
		found[i].field = field
		if seen[field.Name] {
			continue
		}
		seen[field.Name] = true
		fields = append(fields, field)
	}

	values, err := ec.prompt(DialogRequest{Fields: fields})
	if err != nil {
		if !errors.Is(err, ErrDialogClosed) {
			return "", err
		}
		for _, field := range fields {
			s.require(field.Name)
		}
	}
	for _, field := range fields {
		value, ok := values[field.Name]
		if !ok {
			continue
		}
		s.setLocal(field.Name, value)
		f.localVars[field.Name] = value
	}

	var b strings.Builder
	last := 0
	for _, p := range found {
		b.WriteString(text[last:p.start])
		b.WriteString(p.field.Name)
		last = p.end
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

// scanInlinePrompts finds the top-level ?{...} spans of text.
func scanInlinePrompts(text string) []inlinePrompt {
	var out []inlinePrompt
	for i := 0; i+1 < len(text); i++ {
		if text[i] != '?' || text[i+1] != '{' {
			continue
		}
		depth := 0
		for j := i + 1; j < len(text); j++ {
			switch text[j] {
			case '{':
				depth++
			case '}':
				depth--
			}
			if depth == 0 {
				out = append(out, inlinePrompt{start: i, end: j + 1})
				i = j
				break
			}
		}
	}
	return out
}

// buildField parses name[:display][[type]]|key[,label]|... into a dialog
// field. The display name, keys and labels are computed as phrases so they
// may reference props.
func (ec *evalContext) buildField(spec string, s *scope) (Field, error) {
	parts := splitTopLevel(spec, '|')
	head := strings.TrimSpace(parts[0])

	var field Field
	if open := strings.LastIndex(head, "["); open >= 0 && strings.HasSuffix(head, "]") {
		field.Type = strings.TrimSpace(head[open+1 : len(head)-1])
		head = strings.TrimSpace(head[:open])
	}
	name, display, hasDisplay := strings.Cut(head, ":")
	field.Name = strings.TrimSpace(name)
	field.Label = field.Name
	if hasDisplay {
		label, err := ec.subPhrase(strings.TrimSpace(display), s.locals)
		if err != nil {
			return Field{}, err
		}
		field.Label = label
	}

	var choices []Choice
	for _, part := range parts[1:] {
		key, label, hasLabel := strings.Cut(part, ",")
		value, err := ec.subPhrase(strings.TrimSpace(key), s.locals)
		if err != nil {
			return Field{}, err
		}
		choice := Choice{Value: value, Label: value}
		if hasLabel {
			choice.Label, err = ec.subPhrase(strings.TrimSpace(label), s.locals)
			if err != nil {
				return Field{}, err
			}
		}
		choices = append(choices, choice)
	}
	switch len(choices) {
	case 0:
	case 1:
		field.Default = choices[0].Value
	default:
		field.Choices = choices
		field.Default = choices[0].Value
		if field.Type == "" {
			field.Type = "select"
		}
	}
	if field.Type == "" {
		field.Type = "text"
	}
	return field, nil
}

// splitTopLevel splits text on sep outside of braces, brackets and quotes.
func splitTopLevel(text string, sep byte) []string {
	var (
		parts []string
		depth int
		start int
	)
	for i := 0; i < len(text); i++ {
		switch c := text[i]; {
		case c == '\'' || c == '"':
			if end := scanQuoted(text, i, c); end > 0 {
				i = end
			}
		case c == '{' || c == '[' || c == '(':
			depth++
		case c == '}' || c == ']' || c == ')':
			depth--
		case c == sep && depth == 0:
			parts = append(parts, text[start:i])
			start = i + 1
		}
	}
	return append(parts, text[start:])
}

var rollVar = regexp.MustCompile(`:([A-Za-z_$][\w.$]*):`)

// resolveRolls replaces every top-level [...] roll block by its outcome.
// Nested roll blocks resolve first.
func (ec *evalContext) resolveRolls(f *Formula, s *scope, text string) (string, error) {
	spans := scanBrackets(text)
	if len(spans) == 0 {
		return text, nil
	}
	if ec.static {
		return "", ErrRequiresInput
	}
	if ec.rt.Roller == nil {
		return "", fmt.Errorf("roll %s: no dice engine configured", text[spans[0][0]:spans[0][1]])
	}

	var b strings.Builder
	last := 0
	for _, span := range spans {
		b.WriteString(text[last:span[0]])
		last = span[1]

		inner, err := ec.resolveRolls(f, s, text[span[0]+1:span[1]-1])
		if err != nil {
			return "", err
		}
		replacement, err := ec.roll(f, s, inner)
		if err != nil {
			return "", err
		}
		b.WriteString(replacement)
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

func (ec *evalContext) roll(f *Formula, s *scope, inner string) (string, error) {
	var (
		roll   Roll
		rolled string
		err    error
	)
	if table, ok := strings.CutPrefix(strings.TrimSpace(inner), "#"); ok {
		name, selectorText, hasSelector := strings.Cut(table, "|")
		name = strings.TrimSpace(name)
		var selector *int
		if hasSelector && strings.TrimSpace(selectorText) != "" {
			n, err := ec.selector(selectorText, s)
			if err != nil {
				return "", err
			}
			selector = &n
		}
		rolled = inner
		roll, err = ec.rt.Roller.DrawTable(ec.ctx, name, selector)
	} else {
		rolled, err = ec.subPhrase(rollVar.ReplaceAllString(inner, "$${$1}$$"), s.locals)
		if err != nil {
			return "", err
		}
		roll, err = ec.rt.Roller.Roll(ec.ctx, rolled)
	}
	if errors.Is(err, ErrTableNotFound) {
		ec.reportMissingTable(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(inner), "#")))
	}
	if err != nil {
		return "", fmt.Errorf("roll %s: %w", inner, err)
	}
	f.hasDice = true

	if len(roll.Entries) > 0 {
		name := freshLiteralName(s.texts, new(int))
		s.texts[name] = strings.Join(roll.Entries, ", ")
		return name, nil
	}

	record := RollRecord{Formula: inner, Roll: roll}
	if rolled != inner {
		record.Formula = inner + " → " + rolled
	}
	f.rolls = append(f.rolls, record)

	total := formatFloat(roll.Total)
	if roll.Total < 0 {
		total = "(" + total + ")"
	}
	return total, nil
}

func (ec *evalContext) reportMissingTable(ref string) {
	name, _, _ := strings.Cut(ref, "|")
	name = strings.TrimSpace(name)
	names, _ := ec.rt.Roller.TableNames(ec.ctx)
	p := ec.rt.printer()
	msg := p.Sprintf(msgTableMissing, name)
	if suggestion := Suggest(name, names); suggestion != "" {
		msg += " " + p.Sprintf(msgDidYouMean, suggestion)
	}
	ec.rt.logf("roll table %q not found", name)
	ec.rt.notify(ec.ctx, SeverityWarn, msg)
}

func (ec *evalContext) selector(text string, s *scope) (int, error) {
	child, err := ec.nested(s.locals)
	if err != nil {
		return 0, err
	}
	sel := NewFormula(strings.TrimSpace(text))
	if err := sel.compute(child); err != nil {
		return 0, err
	}
	n, ok := toFloat(sel.Result())
	if !ok {
		return 0, fmt.Errorf("roll table selector %q is not a number", text)
	}
	return int(n), nil
}

// scanBrackets returns the [start, end) spans of the top-level bracket
// pairs of text, skipping quoted literals.
func scanBrackets(text string) [][2]int {
	var (
		spans [][2]int
		depth int
		start int
	)
	for i := 0; i < len(text); i++ {
		switch c := text[i]; c {
		case '\'', '"':
			if end := scanQuoted(text, i, c); end > 0 {
				i = end
			}
		case '[':
			if depth == 0 {
				start = i
			}
			depth++
		case ']':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				spans = append(spans, [2]int{start, i + 1})
			}
		}
	}
	return spans
}
