package control

import "errors"

// Domain errors for the control package.
var (
	// ErrUnreachable is returned when a speaker cannot be contacted
	// within the caller's deadline.
	ErrUnreachable = errors.New("control: speaker unreachable")

	// ErrRejected is returned when a speaker answers a command with
	// anything other than an acknowledgement.
	ErrRejected = errors.New("control: command rejected")

	// ErrBadResponse is returned when a speaker's response cannot be
	// decoded.
	ErrBadResponse = errors.New("control: malformed response")
)
