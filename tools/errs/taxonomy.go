package errs

// Frame-level error taxonomy. Codes in the 44xx range mirror the websocket
// application close-code space; 5000 is the generic internal failure.
var (
	// ErrAuthRejected closes the connection; everything below keeps it alive.
	ErrAuthRejected = NewCodeError(4401, "authentication rejected")

	ErrMalformedFrame = NewCodeError(4400, "malformed frame")
	ErrValidation     = NewCodeError(4422, "validation failed")
	ErrForbidden      = NewCodeError(4403, "forbidden")
	ErrInternal       = NewCodeError(5000, "internal error")
)
