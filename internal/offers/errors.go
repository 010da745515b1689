package offers

import "errors"

// AcceptKind distinguishes why an acceptance attempt failed. From the
// driver's point of view the UI collapses these into "could not accept";
// the split exists for logging and tests.
type AcceptKind string

const (
	AlreadyTaken   AcceptKind = "already_taken"
	ServerRejected AcceptKind = "server_rejected"
	NetworkFailure AcceptKind = "network_failure"
)

type AcceptError struct {
	Kind  AcceptKind
	Cause error
}

func (e *AcceptError) Error() string {
	msg := "accept " + string(e.Kind)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *AcceptError) Unwrap() error { return e.Cause }

// AsAcceptError extracts the taxonomy from an error chain.
func AsAcceptError(err error) (*AcceptError, bool) {
	var aerr *AcceptError
	ok := errors.As(err, &aerr)
	return aerr, ok
}
