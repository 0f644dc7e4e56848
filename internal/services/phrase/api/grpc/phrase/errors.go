package phrase

import (
	"errors"
	"strings"

	apperrors "github.com/louisbranch/sheetphrase/internal/platform/errors"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/dice"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/engine"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/sheet"
)

// handleError converts a computation error into a gRPC status with a
// localized message. Cancellation survives the wrapping since HandleError
// walks the cause chain.
func handleError(err error, locale string) error {
	if err == nil {
		return nil
	}
	return apperrors.HandleError(domainError(err), locale)
}

func domainError(err error) *apperrors.Error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	var unresolvable *engine.UnresolvableError
	if errors.As(err, &unresolvable) {
		return apperrors.New(apperrors.CodeUnresolvableReference, err.Error(),
			apperrors.WithDetail("Token", unresolvable.Token), apperrors.WithCause(err))
	}

	switch {
	case errors.Is(err, engine.ErrRequiresInput):
		return apperrors.New(apperrors.CodePromptRequired, err.Error(), apperrors.WithCause(err))
	case errors.Is(err, engine.ErrDialogClosed):
		return apperrors.New(apperrors.CodePromptDismissed, err.Error(), apperrors.WithCause(err))
	case errors.Is(err, engine.ErrScriptsDisabled):
		return apperrors.New(apperrors.CodeScriptsDisabled, err.Error(), apperrors.WithCause(err))
	case errors.Is(err, engine.ErrEntityNotFound):
		return withDetail(apperrors.CodeEntityNotFound, "Entity", err, engine.ErrEntityNotFound)
	case errors.Is(err, engine.ErrTemplateNotFound):
		return withDetail(apperrors.CodeTemplateNotFound, "Template", err, engine.ErrTemplateNotFound)
	case errors.Is(err, engine.ErrTableNotFound):
		return withDetail(apperrors.CodeRollTableNotFound, "Table", err, engine.ErrTableNotFound)
	case errors.Is(err, sheet.ErrInvalidSheet):
		return withDetail(apperrors.CodeSheetInvalid, "Reason", err, sheet.ErrInvalidSheet)
	case errors.Is(err, dice.ErrMissingDice):
		return apperrors.New(apperrors.CodeDiceMissing, err.Error(), apperrors.WithCause(err))
	case errors.Is(err, dice.ErrInvalidDiceSpec):
		return apperrors.New(apperrors.CodeDiceInvalidSpec, err.Error(), apperrors.WithCause(err))
	case errors.Is(err, dice.ErrInvalidNotation):
		return withDetail(apperrors.CodeDiceInvalidNotation, "Notation", err, dice.ErrInvalidNotation)
	}
	return apperrors.New(apperrors.CodeUnknown, err.Error(), apperrors.WithCause(err))
}

// withDetail records the text a wrapped sentinel was annotated with, as in
// "entity not found: Goblin", under key.
func withDetail(code apperrors.Code, key string, err, sentinel error) *apperrors.Error {
	detail := err.Error()
	if _, after, ok := strings.Cut(detail, sentinel.Error()+": "); ok {
		detail = after
	}
	return apperrors.New(code, err.Error(), apperrors.WithDetail(key, detail), apperrors.WithCause(err))
}
