// Package errors carries phrase failures across the gRPC boundary with
// machine-readable codes and localized messages.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code. Codes double as message keys in the
// "errors" catalog namespace.
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	// Phrase computation
	CodePhraseEmpty           Code = "PHRASE_EMPTY"
	CodeUnresolvableReference Code = "UNRESOLVABLE_REFERENCE"
	CodePromptRequired        Code = "PROMPT_REQUIRED"
	CodePromptDismissed       Code = "PROMPT_DISMISSED"
	CodeScriptsDisabled       Code = "SCRIPTS_DISABLED"

	// Sheets
	CodeSheetInvalid Code = "SHEET_INVALID"

	// Stored collaborators
	CodeEntityNotFound    Code = "ENTITY_NOT_FOUND"
	CodeTemplateNotFound  Code = "TEMPLATE_NOT_FOUND"
	CodeRollTableNotFound Code = "ROLL_TABLE_NOT_FOUND"

	// Dice
	CodeDiceMissing         Code = "DICE_MISSING"
	CodeDiceInvalidSpec     Code = "DICE_INVALID_SPEC"
	CodeDiceInvalidNotation Code = "DICE_INVALID_NOTATION"
)

// GRPCCode maps a code to its gRPC status code. Input the caller can fix is
// InvalidArgument; a phrase that needs something the call cannot supply is
// FailedPrecondition.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodePhraseEmpty,
		CodeSheetInvalid,
		CodeDiceMissing,
		CodeDiceInvalidSpec,
		CodeDiceInvalidNotation:
		return codes.InvalidArgument
	case CodeUnresolvableReference,
		CodePromptRequired,
		CodePromptDismissed,
		CodeScriptsDisabled:
		return codes.FailedPrecondition
	case CodeEntityNotFound,
		CodeTemplateNotFound,
		CodeRollTableNotFound:
		return codes.NotFound
	default:
		return codes.Internal
	}
}
