package group

import (
	"context"
	"fmt"
	"math"

	"github.com/nerrad567/soundmesh-core/internal/speaker"
)

// Commander is the slice of the device control service a group operation
// needs.
type Commander interface {
	SetVolume(ctx context.Context, address string, level float64) error
	SetMute(ctx context.Context, address string, muted bool) error
}

// Operation is one group-wide command, applied independently to each
// member during fan-out.
type Operation interface {
	// Name identifies the operation in reports and logs.
	Name() string

	// Apply executes the operation against a single member.
	Apply(ctx context.Context, cmd Commander, sp speaker.Speaker) error
}

// VolumeOperation raises or lowers the whole group while preserving the
// relative balance between rooms: every member moves by the same delta
// (Target - Reference) from its own current volume, rather than being
// forced to one absolute level.
//
// Reference is typically the master's volume at the moment the user
// started dragging the group slider.
type VolumeOperation struct {
	Target    float64
	Reference float64
}

// Name identifies the operation.
func (VolumeOperation) Name() string { return "set_volume" }

// Apply sends the member's new volume: its last known volume shifted by
// the group delta, clamped to the valid range. A member with no snapshot
// yet gets the absolute target, there being no old level to shift.
func (op VolumeOperation) Apply(ctx context.Context, cmd Commander, sp speaker.Speaker) error {
	old := op.Target
	if sp.LastSnapshot != nil {
		old = sp.LastSnapshot.Volume
	}
	level := clampVolume(old + op.Target - op.Reference)
	if err := cmd.SetVolume(ctx, sp.Address, level); err != nil {
		return fmt.Errorf("setting volume to %.2f: %w", level, err)
	}
	return nil
}

// MuteOperation mutes or unmutes the whole group. Unlike volume, mute is
// absolute: every member gets the same target state.
type MuteOperation struct {
	Muted bool
}

// Name identifies the operation.
func (op MuteOperation) Name() string {
	if op.Muted {
		return "mute"
	}
	return "unmute"
}

// Apply sends the absolute mute state to the member.
func (op MuteOperation) Apply(ctx context.Context, cmd Commander, sp speaker.Speaker) error {
	if err := cmd.SetMute(ctx, sp.Address, op.Muted); err != nil {
		return fmt.Errorf("setting mute to %t: %w", op.Muted, err)
	}
	return nil
}

func clampVolume(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
