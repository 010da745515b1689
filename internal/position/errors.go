package position

// Kind distinguishes why a fix could not be obtained.
type Kind string

const (
	Denied      Kind = "denied"
	Unavailable Kind = "unavailable"
	Timeout     Kind = "timeout"
)

// Error is the position taxonomy surfaced to callers for user-facing
// messaging.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	msg := "position " + string(e.Kind)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// KindOf extracts the taxonomy kind from an error chain, Unavailable when
// the error is not position-typed.
func KindOf(err error) Kind {
	if perr, ok := err.(*Error); ok {
		return perr.Kind
	}
	return Unavailable
}
