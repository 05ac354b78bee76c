package speaker

import "time"

// Speaker represents one network audio endpoint known to the coordinator.
type Speaker struct {
	// Identity
	ID   string `json:"id"`   // assigned by the device itself, immutable
	Name string `json:"name"` // display name, refreshed on health polls

	// Address is the current network address. Devices on DHCP may move;
	// the address is updated out-of-band via provisioning, never treated
	// as identity.
	Address string `json:"address"`

	// LastSnapshot is the most recent successfully polled state,
	// or nil if the speaker has never been polled.
	LastSnapshot *StatusSnapshot `json:"last_snapshot,omitempty"`

	// Unreachable is set after consecutive poll failures exceed the
	// configured threshold and cleared on the next successful poll.
	Unreachable bool `json:"unreachable"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates a complete independent copy of the Speaker.
// The snapshot pointer is cloned so modifications to the copy
// do not affect the original. This is essential for registry isolation.
func (s *Speaker) DeepCopy() *Speaker {
	if s == nil {
		return nil
	}

	cpy := *s // Shallow copy of value fields

	if s.LastSnapshot != nil {
		snap := *s.LastSnapshot
		cpy.LastSnapshot = &snap
	}

	return &cpy
}

// StatusSnapshot is the immutable result of one successful poll.
// A snapshot is replaced wholesale; it is never updated field by field,
// so a poll either yields a complete new snapshot or no update happens.
type StatusSnapshot struct {
	PlayState PlayState `json:"play_state"`
	Volume    float64   `json:"volume"` // 0.0 - 1.0
	Muted     bool      `json:"muted"`
	Source    string    `json:"source"`

	// GroupField is the raw role indicator as reported by the device.
	// Internal logic never branches on it directly; use DetectRole.
	GroupField string `json:"group_field"`

	// MasterID is present only when the device reports itself a slave.
	MasterID *string `json:"master_id,omitempty"`

	ObservedAt time.Time `json:"observed_at"`
}

// PlayState represents the playback state of a speaker.
type PlayState string

// PlayState constants.
const (
	PlayStatePlaying PlayState = "playing"
	PlayStatePaused  PlayState = "paused"
	PlayStateIdle    PlayState = "idle"
	PlayStateLoading PlayState = "loading"
)

// AllPlayStates returns all valid play state values.
func AllPlayStates() []PlayState {
	return []PlayState{
		PlayStatePlaying, PlayStatePaused, PlayStateIdle, PlayStateLoading,
	}
}

// Role is a speaker's place in the multiroom topology, always derived
// from its latest snapshot and never stored independently.
type Role string

// Role constants.
const (
	RoleSolo   Role = "solo"
	RoleMaster Role = "master"
	RoleSlave  Role = "slave"
)

// Group is the derived aggregate of speakers whose snapshots agree on a
// shared master. It is reconstructed on every read and never persisted.
type Group struct {
	MasterID  string   `json:"master_id"`
	MemberIDs []string `json:"member_ids"` // master + slaves, sorted by id
}
