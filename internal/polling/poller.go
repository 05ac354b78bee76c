// Package polling runs one adaptive polling loop per registered speaker.
//
// Each loop decides how soon to re-poll from the speaker's activity: a
// playing speaker is polled at the base interval, an idle one at a
// multiple of it, with independent longer-period re-polls for group
// topology drift and low-churn device attributes. Failures back off
// exponentially, and after a configurable number of consecutive failures
// the speaker is marked unreachable and handed to the missing-device
// resolver.
//
// Loops are fully independent: scheduling state is owned by the loop
// goroutine, all shared state flows through the registry's operations,
// and a slow poll of one speaker never delays any other. Deregistering a
// speaker cancels its loop immediately.
package polling

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/soundmesh-core/internal/control"
	"github.com/nerrad567/soundmesh-core/internal/speaker"
)

// Controller is the slice of the device control service the poller needs.
type Controller interface {
	Poll(ctx context.Context, address string, kind control.PollKind) (control.Status, error)
}

// Notifier receives unreachability events. Evaluation (group membership,
// one-shot latching) is the notifier's concern, not the poller's.
type Notifier interface {
	SpeakerUnreachable(id string)
}

// Logger defines the logging interface used by the Manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopNotifier drops unreachability events.
type noopNotifier struct{}

func (noopNotifier) SpeakerUnreachable(string) {}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Manager owns the polling loops, one goroutine per speaker.
//
// All public methods are thread-safe.
type Manager struct {
	cfg      Config
	ctrl     Controller
	registry *speaker.Registry
	notifier Notifier
	store    speaker.Store // optional; persists name refreshes
	logger   Logger

	mu      sync.Mutex
	ctx     context.Context // set by Start; parent of every loop
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager creates a polling manager. The notifier and store may be nil.
func NewManager(cfg Config, ctrl Controller, registry *speaker.Registry, notifier Notifier) *Manager {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Manager{
		cfg:      cfg.withDefaults(),
		ctrl:     ctrl,
		registry: registry,
		notifier: notifier,
		logger:   noopLogger{},
		cancels:  make(map[string]context.CancelFunc),
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// SetStore sets an optional store that receives display-name refreshes
// observed by health polls.
func (m *Manager) SetStore(store speaker.Store) {
	m.store = store
}

// Start launches a polling loop for every currently registered speaker.
// Speakers registered later are picked up via Add.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	m.ctx = ctx
	m.mu.Unlock()

	speakers := m.registry.All()
	for _, sp := range speakers {
		if err := m.Add(sp.ID); err != nil {
			m.logger.Error("starting polling loop", "speaker_id", sp.ID, "error", err)
		}
	}
	m.logger.Info("polling started", "speakers", len(speakers), "base_interval", m.cfg.BaseInterval)
}

// Add starts a polling loop for one speaker. It is a no-op if a loop for
// the ID is already running.
func (m *Manager) Add(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx == nil {
		return fmt.Errorf("polling: manager not started")
	}
	if _, ok := m.cancels[id]; ok {
		return nil
	}

	loopCtx, cancel := context.WithCancel(m.ctx)
	m.cancels[id] = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(loopCtx, id)
	}()
	return nil
}

// Remove cancels a speaker's polling loop immediately. Safe to call for
// IDs that have no loop.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	cancel, ok := m.cancels[id]
	delete(m.cancels, id)
	m.mu.Unlock()

	if ok {
		cancel()
		m.logger.Debug("polling loop cancelled", "speaker_id", id)
	}
}

// Close stops every loop and waits for them to exit.
func (m *Manager) Close() {
	m.mu.Lock()
	for id, cancel := range m.cancels {
		cancel()
		delete(m.cancels, id)
	}
	m.mu.Unlock()

	m.wg.Wait()
	m.logger.Info("polling stopped")
}

// loopState is the per-speaker scheduling state, owned exclusively by the
// loop goroutine.
type loopState struct {
	failures      int
	lastPlayingAt time.Time
	lastSnapshot  *speaker.StatusSnapshot
	lastTopology  time.Time
	lastHealth    time.Time
}

// run is the polling loop for one speaker. The first poll fires
// immediately so a fresh registration becomes visible without waiting a
// full interval.
func (m *Manager) run(ctx context.Context, id string) {
	state := &loopState{}
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		now := time.Now().UTC()
		kind := state.dueKind(m.cfg, now)
		delay := m.pollOnce(ctx, id, kind, state, now)
		timer.Reset(delay)
	}
}

// pollOnce issues exactly one poll and returns the delay until the next.
func (m *Manager) pollOnce(ctx context.Context, id string, kind control.PollKind, state *loopState, now time.Time) time.Duration {
	sp, err := m.registry.LookupByID(id)
	if err != nil {
		// Deregistered while the timer was pending; the loop will be
		// cancelled shortly. Back off to the idle interval meanwhile.
		return m.cfg.idleInterval()
	}

	pollCtx, cancel := context.WithTimeout(ctx, m.cfg.PollTimeout)
	status, err := m.ctrl.Poll(pollCtx, sp.Address, kind)
	cancel()

	if err != nil {
		return m.handleFailure(id, state, err)
	}
	return m.handleSuccess(id, kind, status, state, now)
}

// handleSuccess feeds the poll result into the registry and computes the
// next delay from the observed activity.
func (m *Manager) handleSuccess(id string, kind control.PollKind, status control.Status, state *loopState, now time.Time) time.Duration {
	if state.failures > 0 {
		state.failures = 0
		m.registry.SetUnreachable(id, false)
	}

	snap := status.Snapshot
	m.registry.UpdateSnapshot(id, snap)

	if snap.PlayState == speaker.PlayStatePlaying && playbackAdvanced(state.lastSnapshot, &snap) {
		state.lastPlayingAt = now
	}
	state.lastSnapshot = &snap

	switch kind {
	case control.PollTopology:
		state.lastTopology = now
	case control.PollHealth:
		state.lastHealth = now
		state.lastTopology = now // a health poll carries topology too
		m.applyHealth(id, status)
	}

	return m.cfg.statusDelay(now, state.lastPlayingAt, snap.PlayState)
}

// handleFailure applies exponential backoff and flags persistent
// unreachability exactly once per failure streak.
func (m *Manager) handleFailure(id string, state *loopState, err error) time.Duration {
	state.failures++
	m.logger.Debug("poll failed", "speaker_id", id, "consecutive", state.failures, "error", err)

	if state.failures == m.cfg.MaxFailures {
		m.registry.SetUnreachable(id, true)
		m.notifier.SpeakerUnreachable(id)
	}

	return m.cfg.backoffDelay(state.failures)
}

// applyHealth propagates low-churn attributes from a health poll.
func (m *Manager) applyHealth(id string, status control.Status) {
	if status.Name == "" {
		return
	}
	m.registry.UpdateName(id, status.Name)
	if m.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := m.store.UpdateName(ctx, id, status.Name); err != nil {
			m.logger.Warn("persisting speaker name", "speaker_id", id, "error", err)
		}
	}
}

// dueKind picks the poll for this tick. Health polls have the longest
// period and take precedence when due, then topology; the tick always
// issues exactly one request.
func (s *loopState) dueKind(cfg Config, now time.Time) control.PollKind {
	if now.Sub(s.lastHealth) >= cfg.healthInterval() {
		return control.PollHealth
	}
	if now.Sub(s.lastTopology) >= cfg.topologyInterval() {
		return control.PollTopology
	}
	return control.PollStatus
}

// statusDelay returns the next poll delay for a healthy speaker.
//
// The fast interval applies only while the last snapshot reports playing
// and playback activity has been observed within the idle timeout. A
// wedged device that reports "playing" forever without any other state
// change stops refreshing lastPlayingAt and therefore falls back to the
// idle interval once the timeout elapses.
func (c Config) statusDelay(now, lastPlayingAt time.Time, playState speaker.PlayState) time.Duration {
	if playState == speaker.PlayStatePlaying && !lastPlayingAt.IsZero() && now.Sub(lastPlayingAt) < c.IdleTimeout {
		return c.BaseInterval
	}
	return c.idleInterval()
}

// backoffDelay returns the delay after the given number of consecutive
// failures: base * 2^(failures-1), capped at MaxBackoff.
func (c Config) backoffDelay(failures int) time.Duration {
	delay := c.BaseInterval
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	if delay > c.MaxBackoff {
		return c.MaxBackoff
	}
	return delay
}

// playbackAdvanced reports whether the new snapshot shows playback
// activity beyond what the previous one showed. Identical consecutive
// snapshots do not count as activity; that is what lets a stale "playing"
// flag age out.
func playbackAdvanced(prev, next *speaker.StatusSnapshot) bool {
	if prev == nil {
		return true
	}
	if prev.PlayState != next.PlayState {
		return true
	}
	return prev.Source != next.Source ||
		prev.Volume != next.Volume ||
		prev.Muted != next.Muted ||
		prev.GroupField != next.GroupField
}
