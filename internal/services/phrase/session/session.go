// Package session holds the per-request collaborators of a phrase
// computation run by a non-interactive caller: prompt answers supplied up
// front and the notifications raised along the way.
package session

import (
	"context"
	"sync"

	"github.com/louisbranch/sheetphrase/internal/services/phrase/engine"
)

// Answers implements engine.Prompter with values supplied before the
// computation starts. A field with no answer takes its default; a dialog
// with a field that has neither is treated as dismissed.
type Answers struct {
	mu       sync.Mutex
	values   map[string]any
	requests []engine.DialogRequest
}

// NewAnswers returns a prompter answering from values, keyed by field name.
func NewAnswers(values map[string]any) *Answers {
	if values == nil {
		values = map[string]any{}
	}
	return &Answers{values: values}
}

// Prompt answers req or returns engine.ErrDialogClosed.
func (a *Answers) Prompt(ctx context.Context, req engine.DialogRequest) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, req)

	out := make(map[string]any, len(req.Fields))
	for _, field := range req.Fields {
		if value, ok := a.values[field.Name]; ok {
			out[field.Name] = value
			continue
		}
		if field.Default != nil {
			out[field.Name] = field.Default
			continue
		}
		return nil, engine.ErrDialogClosed
	}
	return out, nil
}

// Requests returns the dialogs shown so far.
func (a *Answers) Requests() []engine.DialogRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]engine.DialogRequest(nil), a.requests...)
}

// Notice is one notification raised by a computation.
type Notice struct {
	Severity engine.Severity `json:"severity"`
	Message  string          `json:"message"`
}

// Notices implements engine.Notifier by collecting notifications.
type Notices struct {
	mu   sync.Mutex
	list []Notice
}

// Notify records a notification.
func (n *Notices) Notify(_ context.Context, severity engine.Severity, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.list = append(n.list, Notice{Severity: severity, Message: message})
}

// List returns the notifications in the order they were raised.
func (n *Notices) List() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notice(nil), n.list...)
}
