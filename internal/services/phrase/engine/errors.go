package engine

import (
	"errors"
	"fmt"
)

// ErrorSentinel is the result assigned to a formula whose evaluation faulted.
const ErrorSentinel = "ERROR"

var (
	// ErrRequiresInput indicates a static computation met a prompt, template,
	// roll or mutation it is not allowed to resolve.
	ErrRequiresInput = errors.New("computation requires user input")

	// ErrDialogClosed is returned by a Prompter when the dialog was dismissed
	// without being submitted.
	ErrDialogClosed = errors.New("dialog closed without submitting")

	// ErrScriptsDisabled is reported when a script block is met and no script
	// runner is configured.
	ErrScriptsDisabled = errors.New("script blocks are disabled")

	// ErrUnknownSeverity indicates notify() was called with a severity outside
	// info, warn and error.
	ErrUnknownSeverity = errors.New("unknown notification severity")

	// ErrEntityNotFound is returned by entity resolvers when a token names no entity.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrTemplateNotFound is returned by template sources for unknown names.
	ErrTemplateNotFound = errors.New("prompt template not found")

	// ErrTableNotFound is returned by rollers when a roll table does not exist.
	ErrTableNotFound = errors.New("roll table not found")
)

// UnresolvableError reports a reference with no value and no applicable
// default. It is the only failure that escapes the expression evaluator and
// the only one convergence retries.
type UnresolvableError struct {
	Token   string
	Formula string
	Scope   map[string]any
}

func (e *UnresolvableError) Error() string {
	if e.Formula == "" {
		return fmt.Sprintf("unresolvable reference %q", e.Token)
	}
	return fmt.Sprintf("unresolvable reference %q in formula %q", e.Token, e.Formula)
}

// IsUnresolvable reports whether err carries an UnresolvableError.
func IsUnresolvable(err error) bool {
	var target *UnresolvableError
	return errors.As(err, &target)
}

func unresolvable(token string, s *scope) error {
	formula := ""
	var snapshot map[string]any
	if s != nil {
		formula = s.formula
		snapshot = s.snapshot()
	}
	return &UnresolvableError{Token: token, Formula: formula, Scope: snapshot}
}
