package speaker

import "errors"

// Domain errors for the speaker package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, speaker.ErrSpeakerNotFound) {
//	    // handle not found case
//	}
var (
	// ErrSpeakerNotFound is returned when a speaker ID does not exist.
	ErrSpeakerNotFound = errors.New("speaker: not found")

	// ErrSpeakerExists is returned when registering a speaker with an ID
	// that is already present.
	ErrSpeakerExists = errors.New("speaker: already exists")

	// ErrInvalidSpeaker is returned when speaker validation fails.
	ErrInvalidSpeaker = errors.New("speaker: invalid")

	// ErrInvalidAddress is returned when a network address is empty.
	ErrInvalidAddress = errors.New("speaker: invalid address")

	// ErrGroupNotFound is returned when no current group has the
	// requested master.
	ErrGroupNotFound = errors.New("speaker: group not found")
)
