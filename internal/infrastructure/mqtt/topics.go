package mqtt

import "fmt"

// Topic prefixes for the SoundMesh MQTT namespace.
//
// All topics live under soundmesh/{category}/...
const (
	// TopicPrefixSpeaker is the base for per-speaker state topics.
	TopicPrefixSpeaker = "soundmesh/speaker"

	// TopicPrefixProvisioning is the base for provisioning exchange topics.
	TopicPrefixProvisioning = "soundmesh/provisioning"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "soundmesh/system"
)

// Topics provides builders for SoundMesh MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.SpeakerState("spk-kitchen")
//	// Returns: "soundmesh/speaker/spk-kitchen/state"
type Topics struct{}

// SpeakerState returns the topic for a speaker's published status snapshots.
//
// Example: soundmesh/speaker/spk-kitchen/state
func (Topics) SpeakerState(speakerID string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefixSpeaker, speakerID)
}

// SpeakerEvent returns the topic for speaker lifecycle events such as
// registration and removal.
//
// Example: soundmesh/speaker/spk-kitchen/event
func (Topics) SpeakerEvent(speakerID string) string {
	return fmt.Sprintf("%s/%s/event", TopicPrefixSpeaker, speakerID)
}

// ProvisioningMissing returns the topic missing-speaker notices are
// published to for the provisioning system.
//
// Topic: soundmesh/provisioning/missing
func (Topics) ProvisioningMissing() string {
	return fmt.Sprintf("%s/missing", TopicPrefixProvisioning)
}

// ProvisioningAddress returns the topic the provisioning system publishes
// refreshed speaker addresses on.
//
// Topic: soundmesh/provisioning/address
func (Topics) ProvisioningAddress() string {
	return fmt.Sprintf("%s/address", TopicPrefixProvisioning)
}

// SystemStatus returns the system status topic. The coordinator publishes
// online/offline payloads here and the LWT targets the same topic.
//
// Topic: soundmesh/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllSpeakerStates returns a pattern matching every speaker state topic.
//
// Pattern: soundmesh/speaker/+/state
func (Topics) AllSpeakerStates() string {
	return fmt.Sprintf("%s/+/state", TopicPrefixSpeaker)
}

// AllSpeakerEvents returns a pattern matching every speaker event topic.
//
// Pattern: soundmesh/speaker/+/event
func (Topics) AllSpeakerEvents() string {
	return fmt.Sprintf("%s/+/event", TopicPrefixSpeaker)
}

// AllTopics returns a pattern matching all SoundMesh topics.
// Use with caution, this receives ALL traffic.
//
// Pattern: soundmesh/#
func (Topics) AllTopics() string {
	return "soundmesh/#"
}
