package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type fakePrompter struct {
	answers  map[string]any
	closed   bool
	requests []DialogRequest
}

func (p *fakePrompter) Prompt(_ context.Context, req DialogRequest) (map[string]any, error) {
	p.requests = append(p.requests, req)
	if p.closed {
		return nil, ErrDialogClosed
	}
	out := map[string]any{}
	for _, field := range req.Fields {
		if v, ok := p.answers[field.Name]; ok {
			out[field.Name] = v
		}
	}
	return out, nil
}

// fixedRoller returns the same face for every die and echoes the formula.
type fixedRoller struct {
	face    float64
	tables  map[string][]string
	formula []string
}

func (r *fixedRoller) Roll(_ context.Context, formula string) (Roll, error) {
	r.formula = append(r.formula, formula)
	count := 1
	if n, _, ok := strings.Cut(formula, "d"); ok && n != "" {
		fmt.Sscanf(n, "%d", &count)
	}
	return Roll{Formula: formula, Total: r.face * float64(count)}, nil
}

func (r *fixedRoller) DrawTable(_ context.Context, table string, selector *int) (Roll, error) {
	entries, ok := r.tables[table]
	if !ok {
		return Roll{}, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	idx := 0
	if selector != nil {
		idx = *selector % len(entries)
	}
	return Roll{Formula: table, Entries: []string{entries[idx]}}, nil
}

func (r *fixedRoller) TableNames(context.Context) ([]string, error) {
	return sortedKeys(r.tables), nil
}

type fakeTemplates struct {
	templates map[string]PromptTemplate
}

func (s fakeTemplates) PromptTemplate(_ context.Context, name string) (PromptTemplate, error) {
	tpl, ok := s.templates[name]
	if !ok {
		return PromptTemplate{}, ErrTemplateNotFound
	}
	return tpl, nil
}

func (s fakeTemplates) TemplateNames(context.Context) ([]string, error) {
	names := make([]string, 0, len(s.templates))
	for name := range s.templates {
		names = append(names, name)
	}
	return names, nil
}

type notification struct {
	severity Severity
	message  string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *fakeNotifier) Notify(_ context.Context, severity Severity, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{severity: severity, message: message})
}

type fakeEntity struct {
	name    string
	props   map[string]any
	updates map[string]any
}

func newFakeEntity(name string, props map[string]any) *fakeEntity {
	return &fakeEntity{name: name, props: props, updates: map[string]any{}}
}

func (e *fakeEntity) Name() string          { return e.name }
func (e *fakeEntity) Props() map[string]any { return e.props }

func (e *fakeEntity) Update(_ context.Context, path string, value any) error {
	e.updates[path] = value
	return nil
}

type fakeResolver map[string]Entity

func (r fakeResolver) ResolveEntity(_ context.Context, token string, _ Entity) (Entity, error) {
	e, ok := r[token]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, token)
	}
	return e, nil
}

type fakeScripts struct {
	result any
	err    error
	code   string
}

func (s *fakeScripts) RunScript(_ context.Context, code string, _, _ Entity) (any, error) {
	s.code = code
	return s.result, s.err
}
