package speaker

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
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

// SnapshotHook is invoked after a snapshot write is accepted. The Speaker
// passed is a deep copy; the hook may retain it. Hooks run synchronously
// on the updating goroutine and must not call back into the Registry.
type SnapshotHook func(Speaker)

// Registry is the in-memory table of known speakers, indexed by ID and by
// network address. It is the sole writer of Speaker records; every consumer
// (group derivation, polling, API) reads through its operations.
//
// Runtime state is deliberately not persisted: everything a record holds
// beyond identity is rebuilt from live polling after a restart.
//
// All public methods are thread-safe. Reads return deep copies, so callers
// never observe a half-updated record.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]*Speaker
	byAddr map[string]string // address -> speaker ID
	hooks  []SnapshotHook
	logger Logger
}

// NewRegistry creates an empty speaker registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]*Speaker),
		byAddr: make(map[string]string),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// OnSnapshot registers a hook called after every accepted snapshot update.
// Hooks must be registered before polling starts; registration is not
// synchronised against concurrent updates.
func (r *Registry) OnSnapshot(hook SnapshotHook) {
	r.hooks = append(r.hooks, hook)
}

// Register inserts a new speaker.
//
// Returns ErrSpeakerExists if the ID is already present and
// ErrInvalidSpeaker/ErrInvalidAddress if identity fields are missing.
func (r *Registry) Register(sp *Speaker) error {
	if sp == nil || strings.TrimSpace(sp.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidSpeaker)
	}
	if strings.TrimSpace(sp.Address) == "" {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, sp.Address)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[sp.ID]; ok {
		return fmt.Errorf("%w: %s", ErrSpeakerExists, sp.ID)
	}

	now := time.Now().UTC()
	stored := sp.DeepCopy()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	r.byID[stored.ID] = stored
	r.byAddr[stored.Address] = stored.ID

	r.logger.Info("speaker registered", "speaker_id", stored.ID, "name", stored.Name, "address", stored.Address)
	return nil
}

// UpdateSnapshot replaces a speaker's last snapshot atomically.
//
// Writes are monotonic in ObservedAt: a poll that started earlier but
// completed later must not overwrite a newer snapshot, so a write whose
// ObservedAt would regress time is discarded. Overtakes are expected under
// concurrent polling and are counted at debug level, not treated as errors.
//
// An unknown ID is a no-op with a logged warning, since deregistration can
// race with an in-flight poll completion.
func (r *Registry) UpdateSnapshot(id string, snap StatusSnapshot) {
	r.mu.Lock()

	sp, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		r.logger.Warn("snapshot for unknown speaker dropped", "speaker_id", id)
		return
	}

	if sp.LastSnapshot != nil && snap.ObservedAt.Before(sp.LastSnapshot.ObservedAt) {
		r.mu.Unlock()
		r.logger.Debug("stale snapshot discarded",
			"speaker_id", id,
			"observed_at", snap.ObservedAt,
			"current", sp.LastSnapshot.ObservedAt,
		)
		return
	}

	sp.LastSnapshot = &snap
	sp.UpdatedAt = time.Now().UTC()
	notified := *sp.DeepCopy()
	r.mu.Unlock()

	for _, hook := range r.hooks {
		hook(notified)
	}
}

// UpdateAddress records a speaker's new network address, detected
// out-of-band by provisioning. Identity and group membership are
// unaffected.
func (r *Registry) UpdateAddress(id, newAddress string) error {
	if strings.TrimSpace(newAddress) == "" {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, newAddress)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sp, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSpeakerNotFound, id)
	}

	delete(r.byAddr, sp.Address)
	sp.Address = newAddress
	sp.UpdatedAt = time.Now().UTC()
	r.byAddr[newAddress] = id

	r.logger.Info("speaker address updated", "speaker_id", id, "address", newAddress)
	return nil
}

// UpdateName refreshes a speaker's display name, as reported by a health
// poll. An unknown ID is a no-op, matching UpdateSnapshot semantics.
func (r *Registry) UpdateName(id, name string) {
	if strings.TrimSpace(name) == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sp, ok := r.byID[id]
	if !ok || sp.Name == name {
		return
	}
	sp.Name = name
	sp.UpdatedAt = time.Now().UTC()
	r.logger.Debug("speaker name refreshed", "speaker_id", id, "name", name)
}

// SetUnreachable flags or clears a speaker's unreachable state.
// An unknown ID is a no-op, matching UpdateSnapshot semantics.
func (r *Registry) SetUnreachable(id string, unreachable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sp, ok := r.byID[id]
	if !ok {
		return
	}
	if sp.Unreachable == unreachable {
		return
	}
	sp.Unreachable = unreachable
	sp.UpdatedAt = time.Now().UTC()

	if unreachable {
		r.logger.Warn("speaker marked unreachable", "speaker_id", id, "name", sp.Name)
	} else {
		r.logger.Info("speaker reachable again", "speaker_id", id, "name", sp.Name)
	}
}

// LookupByID retrieves a speaker by ID.
// Returns ErrSpeakerNotFound if the speaker does not exist.
// The returned speaker is a deep copy; callers can safely modify it.
func (r *Registry) LookupByID(id string) (*Speaker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sp, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSpeakerNotFound, id)
	}
	return sp.DeepCopy(), nil
}

// LookupByAddress retrieves a speaker by its current network address.
// Returns ErrSpeakerNotFound if no speaker has that address.
func (r *Registry) LookupByAddress(address string) (*Speaker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byAddr[address]
	if !ok {
		return nil, fmt.Errorf("%w: address %s", ErrSpeakerNotFound, address)
	}
	return r.byID[id].DeepCopy(), nil
}

// All returns every registered speaker, sorted by ID.
// The returned speakers are deep copies; callers can safely modify them.
func (r *Registry) All() []Speaker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	speakers := make([]Speaker, 0, len(r.byID))
	for _, sp := range r.byID {
		speakers = append(speakers, *sp.DeepCopy())
	}
	sort.Slice(speakers, func(i, j int) bool { return speakers[i].ID < speakers[j].ID })
	return speakers
}

// Deregister removes a speaker from the table.
// Returns ErrSpeakerNotFound if the ID does not exist.
//
// Cancelling the speaker's polling loop is the caller's responsibility;
// the registry holds no reference to scheduling state.
func (r *Registry) Deregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sp, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSpeakerNotFound, id)
	}

	delete(r.byAddr, sp.Address)
	delete(r.byID, id)

	r.logger.Info("speaker deregistered", "speaker_id", id, "name", sp.Name)
	return nil
}

// Count returns the number of registered speakers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
