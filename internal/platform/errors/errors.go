package errors

import (
	"maps"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/status"
)

// Domain is the ErrorInfo domain of every sheetphrase error.
const Domain = "github.com/louisbranch/sheetphrase"

// Error is a coded failure. Message is for logs; Details fill the localized
// message template and travel as ErrorInfo metadata.
type Error struct {
	Code    Code
	Message string
	Details map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message == "" && e.Cause != nil {
		return e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// Option configures an Error.
type Option func(*Error)

// WithCause records the underlying error.
func WithCause(err error) Option {
	return func(e *Error) { e.Cause = err }
}

// WithDetail adds one template value, such as the missing entity name.
func WithDetail(key, value string) Option {
	return func(e *Error) {
		if e.Details == nil {
			e.Details = map[string]string{}
		}
		e.Details[key] = value
	}
}

// New creates an error with code and a log message.
func New(code Code, message string, opts ...Option) *Error {
	e := &Error{Code: code, Message: message}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Status renders e as a gRPC status with ErrorInfo and the user message
// attached. The status message stays the log message.
func (e *Error) Status(locale, userMessage string) *status.Status {
	st := status.New(e.Code.GRPCCode(), e.Error())
	detailed, err := st.WithDetails(
		&errdetails.ErrorInfo{
			Reason:   string(e.Code),
			Domain:   Domain,
			Metadata: maps.Clone(e.Details),
		},
		&errdetails.LocalizedMessage{
			Locale:  locale,
			Message: userMessage,
		},
	)
	if err != nil {
		return st
	}
	return detailed
}
