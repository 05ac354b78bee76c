// Package recovery turns persistent unreachability of a grouped speaker
// into a one-shot provisioning request.
//
// When the poller declares a speaker unreachable and that speaker is
// still a member of a current group, the resolver publishes the
// speaker's identity and last known name for an operator to act on
// (typically by supplying the device's new address). The notification is
// latched: continued unreachability does not re-publish, preventing
// notification storms. The latch clears only when the speaker is
// deregistered, so a re-registered device gets a fresh shot.
package recovery

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/soundmesh-core/internal/speaker"
)

// storeTimeout bounds the sqlite write when persisting a recovered
// address.
const storeTimeout = time.Second

// MQTT topics of the provisioning boundary.
const (
	// TopicMissing carries missing-device notifications to the
	// provisioning collaborator.
	TopicMissing = "soundmesh/provisioning/missing"

	// TopicAddress carries address updates back from the collaborator.
	TopicAddress = "soundmesh/provisioning/address"
)

// Publisher is the slice of the MQTT client the resolver needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Membership answers whether a speaker currently belongs to any group.
type Membership interface {
	IsGroupMember(id string) bool
}

// Directory is the slice of the registry the resolver needs.
type Directory interface {
	LookupByID(id string) (*speaker.Speaker, error)
	UpdateAddress(id, newAddress string) error
}

// Logger defines the logging interface used by the Resolver.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MissingNotice is the payload published on TopicMissing.
type MissingNotice struct {
	SpeakerID     string    `json:"speaker_id"`
	LastKnownName string    `json:"last_known_name"`
	ReportedAt    time.Time `json:"reported_at"`
}

// AddressUpdate is the payload expected on TopicAddress.
type AddressUpdate struct {
	SpeakerID string `json:"speaker_id"`
	Address   string `json:"address"`
}

// Resolver emits missing-device notifications and applies address
// updates arriving from the provisioning collaborator.
//
// All methods are safe for concurrent use.
type Resolver struct {
	membership Membership
	directory  Directory
	pub        Publisher
	store      speaker.Store // optional; persists recovered addresses
	logger     Logger

	mu       sync.Mutex
	notified map[string]struct{}
}

// NewResolver creates a missing-device resolver. The store may be nil.
func NewResolver(membership Membership, directory Directory, pub Publisher) *Resolver {
	return &Resolver{
		membership: membership,
		directory:  directory,
		pub:        pub,
		logger:     noopLogger{},
		notified:   make(map[string]struct{}),
	}
}

// SetLogger sets the logger for the resolver.
func (r *Resolver) SetLogger(logger Logger) {
	r.logger = logger
}

// SetStore sets an optional store that persists recovered addresses.
func (r *Resolver) SetStore(store speaker.Store) {
	r.store = store
}

// SpeakerUnreachable evaluates an unreachability event from the poller.
//
// A notification is published only when the speaker is still a current
// group member and has not been reported before. An ungrouped speaker
// going dark is not an operator-actionable event; its next successful
// poll resolves it.
func (r *Resolver) SpeakerUnreachable(id string) {
	r.mu.Lock()
	if _, done := r.notified[id]; done {
		r.mu.Unlock()
		return
	}
	// Latch before publishing: a broker hiccup must not turn repeated
	// unreachability into a notification storm.
	r.notified[id] = struct{}{}
	r.mu.Unlock()

	if !r.membership.IsGroupMember(id) {
		r.mu.Lock()
		delete(r.notified, id)
		r.mu.Unlock()
		r.logger.Debug("unreachable speaker is not grouped, skipping notification", "speaker_id", id)
		return
	}

	sp, err := r.directory.LookupByID(id)
	if err != nil {
		r.logger.Warn("unreachable speaker vanished before notification", "speaker_id", id)
		return
	}

	notice := MissingNotice{
		SpeakerID:     id,
		LastKnownName: sp.Name,
		ReportedAt:    time.Now().UTC(),
	}
	payload, err := json.Marshal(notice)
	if err != nil {
		r.logger.Error("encoding missing-device notice", "speaker_id", id, "error", err)
		return
	}

	if err := r.pub.Publish(TopicMissing, payload, 1, false); err != nil {
		r.logger.Error("publishing missing-device notice", "speaker_id", id, "error", err)
		return
	}
	r.logger.Warn("missing device reported to provisioning",
		"speaker_id", id,
		"last_known_name", sp.Name,
	)
}

// Forget clears the notification latch for a speaker. Called on
// deregistration so a re-registered device can be reported again.
func (r *Resolver) Forget(id string) {
	r.mu.Lock()
	delete(r.notified, id)
	r.mu.Unlock()
}

// HandleAddressUpdate processes a provisioning address update. It is
// shaped as an MQTT message handler and wired to TopicAddress.
func (r *Resolver) HandleAddressUpdate(_ string, payload []byte) error {
	var update AddressUpdate
	if err := json.Unmarshal(payload, &update); err != nil {
		return fmt.Errorf("decoding address update: %w", err)
	}
	if update.SpeakerID == "" || update.Address == "" {
		return fmt.Errorf("address update missing speaker_id or address")
	}

	if err := r.directory.UpdateAddress(update.SpeakerID, update.Address); err != nil {
		return fmt.Errorf("applying address update: %w", err)
	}
	if r.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := r.store.UpdateAddress(ctx, update.SpeakerID, update.Address); err != nil {
			r.logger.Warn("persisting recovered address", "speaker_id", update.SpeakerID, "error", err)
		}
	}

	r.logger.Info("speaker address recovered",
		"speaker_id", update.SpeakerID,
		"address", update.Address,
	)
	return nil
}
