// Package control defines the boundary toward the device control service:
// the component that talks to a physical speaker and parses its response.
//
// The coordinator core consumes this boundary through narrow interfaces;
// the HTTP implementation in client.go is the reference transport. All
// duck-typed fields from the wire are converted to the tagged
// speaker.StatusSnapshot model here, so internal logic never inspects
// untyped data.
package control

import (
	"context"

	"github.com/nerrad567/soundmesh-core/internal/speaker"
)

// PollKind selects which poll a tick issues. Status polls carry playback
// and topology state; health polls additionally refresh low-churn device
// attributes (name, firmware) and are scheduled far less often to bound
// request volume.
type PollKind string

// PollKind constants.
const (
	PollStatus   PollKind = "status"
	PollTopology PollKind = "topology"
	PollHealth   PollKind = "health"
)

// Status is the decoded result of one poll. The snapshot is always
// complete; Name and Firmware are populated on health polls only.
type Status struct {
	Snapshot speaker.StatusSnapshot
	Name     string
	Firmware string
}

// Controller executes commands against a speaker at a given address.
// Every call must complete or fail within the caller-supplied context.
//
// Success of a command means the device accepted it, not that the next
// poll will reflect it instantly: transitions are requested here and
// confirmed by polling.
type Controller interface {
	// Poll fetches the speaker's current state.
	Poll(ctx context.Context, address string, kind PollKind) (Status, error)

	// SetVolume sets the absolute volume level (0.0 - 1.0).
	SetVolume(ctx context.Context, address string, level float64) error

	// SetMute sets the mute state.
	SetMute(ctx context.Context, address string, muted bool) error

	// RequestJoin asks the speaker at slaveAddress to join the group
	// mastered by the speaker at masterAddress.
	RequestJoin(ctx context.Context, slaveAddress, masterAddress string) error

	// RequestLeave asks the speaker at address to leave its group.
	RequestLeave(ctx context.Context, address string) error

	// RequestDisband asks the master at masterAddress to dissolve its
	// group, returning every member to solo.
	RequestDisband(ctx context.Context, masterAddress string) error
}
