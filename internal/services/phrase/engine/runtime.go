package engine

import (
	"context"
	"log"

	"github.com/louisbranch/sheetphrase/internal/platform/i18n/catalog"
	"golang.org/x/text/message"
)

// Entity is an addressable holder of a property bag, such as a character or
// an item. The engine reads Props and only writes through Update.
type Entity interface {
	Name() string
	Props() map[string]any
	Update(ctx context.Context, path string, value any) error
}

// EntityResolver locates entities by token. Tokens are "selected", "target",
// "attached" (the parent of the triggering entity) or a literal entity name.
// "self" and "item" never reach the resolver; they map to the trigger and the
// linked entity of the current computation.
type EntityResolver interface {
	ResolveEntity(ctx context.Context, token string, trigger Entity) (Entity, error)
}

// Choice is one selectable value of a dialog field.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label,omitempty"`
}

// Field describes a single dialog input.
type Field struct {
	Name    string   `json:"name"`
	Label   string   `json:"label,omitempty"`
	Type    string   `json:"type,omitempty"`
	Default any      `json:"default,omitempty"`
	Choices []Choice `json:"choices,omitempty"`
}

// DialogRequest is one dialog shown to the user. Template is set when the
// dialog renders a named prompt template.
type DialogRequest struct {
	Title    string
	Template string
	Fields   []Field
}

// Prompter suspends the computation until the user submits the dialog. A
// dismissed dialog returns ErrDialogClosed.
type Prompter interface {
	Prompt(ctx context.Context, req DialogRequest) (map[string]any, error)
}

// PromptTemplate is a named, reusable form definition.
type PromptTemplate struct {
	Name   string  `json:"name"`
	Title  string  `json:"title,omitempty"`
	Fields []Field `json:"fields"`
}

// TemplateSource serves prompt templates by name.
type TemplateSource interface {
	PromptTemplate(ctx context.Context, name string) (PromptTemplate, error)
	TemplateNames(ctx context.Context) ([]string, error)
}

// DieResult captures the faces rolled for one dice term.
type DieResult struct {
	Sides   int
	Results []int
	Kept    []int
}

// Roll is the outcome of a dice expression or a roll-table draw. Entries is
// set instead of a meaningful Total when a table draw produced labels.
type Roll struct {
	Formula string
	Total   float64
	Dice    []DieResult
	Entries []string
}

// Roller is the dice engine. DrawTable returns ErrTableNotFound for unknown
// tables; a nil selector lets the table roll its own draw formula.
type Roller interface {
	Roll(ctx context.Context, formula string) (Roll, error)
	DrawTable(ctx context.Context, table string, selector *int) (Roll, error)
	TableNames(ctx context.Context) ([]string, error)
}

// Severity is a notification level.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// ParseSeverity validates a severity name.
func ParseSeverity(value string) (Severity, error) {
	switch Severity(value) {
	case SeverityInfo, SeverityWarn, SeverityError:
		return Severity(value), nil
	default:
		return "", ErrUnknownSeverity
	}
}

// Notifier receives user-visible notifications.
type Notifier interface {
	Notify(ctx context.Context, severity Severity, message string)
}

// ScriptRunner evaluates a script block with the triggering and linked
// entities bound and nothing else in scope.
type ScriptRunner interface {
	RunScript(ctx context.Context, code string, trigger, linked Entity) (any, error)
}

// Runtime carries the collaborators of one computation. Nil collaborators
// disable the features that need them.
type Runtime struct {
	Entities  EntityResolver
	Prompter  Prompter
	Roller    Roller
	Templates TemplateSource
	Notifier  Notifier
	Scripts   ScriptRunner
	Logger    *log.Logger
	// Printer localizes user-visible warnings. Defaults to the base locale.
	Printer *message.Printer
}

func (rt *Runtime) logf(format string, args ...any) {
	if rt != nil && rt.Logger != nil {
		rt.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func (rt *Runtime) printer() *message.Printer {
	if rt != nil && rt.Printer != nil {
		return rt.Printer
	}
	return catalog.Printer(catalog.BaseLocale)
}

func (rt *Runtime) notify(ctx context.Context, severity Severity, message string) {
	if rt == nil || rt.Notifier == nil {
		return
	}
	rt.Notifier.Notify(ctx, severity, message)
}

// Options tunes a single computation.
type Options struct {
	// Reference is the dotted path of the dynamic-table row the phrase lives
	// in, used by sameRow and sameRowRef.
	Reference string
	// Default replaces any reference that cannot be resolved. Nil means none.
	Default any
	// AvailableKeys lists references that must resolve; a missing value for
	// one of them raises an UnresolvableError when no default applies.
	AvailableKeys []string
	// Trigger is the entity the phrase is computed for; Linked is the item
	// that triggered it, if any.
	Trigger Entity
	Linked  Entity
	// LocalVars seeds the local variables visible to the first block.
	LocalVars map[string]any
	// Explain requests explanation trees.
	Explain bool
}
