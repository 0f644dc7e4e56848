package errors

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// HandleError converts err into a gRPC status error for locale. Context
// errors keep their canonical codes, coded errors carry localized details and
// anything else is Internal.
func HandleError(err error, locale string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		resolved, message := Localize(locale, appErr.Code, appErr.Details)
		return appErr.Status(resolved, message).Err()
	}
	return status.Error(codes.Internal, "an unexpected error occurred")
}

// CodeOf returns the code of the first *Error in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
