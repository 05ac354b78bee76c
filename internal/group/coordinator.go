// Package group executes group-wide operations as a bounded fan-out
// across current members.
//
// Membership is resolved from the live group view at call time, never
// from a caller-supplied list, so an operation cannot act on a group
// that has already changed shape. Each member call runs concurrently
// under its own timeout; a slow or failed member delays only its own
// result. Partial failure is the expected steady state of a best-effort
// cluster and is reported structurally, never escalated to a total
// failure.
package group

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/soundmesh-core/internal/speaker"
)

// defaultMemberTimeout bounds each member call when the configured
// timeout is zero.
const defaultMemberTimeout = 5 * time.Second

// Grouper is the slice of the device control service used for group
// formation requests. These are requests only: the resulting transition
// is confirmed by the next successful poll, never assumed.
type Grouper interface {
	RequestJoin(ctx context.Context, slaveAddress, masterAddress string) error
	RequestLeave(ctx context.Context, address string) error
	RequestDisband(ctx context.Context, masterAddress string) error
}

// Logger defines the logging interface used by the Coordinator.
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

// OperationFailure describes one member that did not accept an operation.
type OperationFailure struct {
	SpeakerID string `json:"speaker_id"`
	Error     string `json:"error"`
}

// OperationReport is the structural outcome of a group fan-out.
// Succeeded and Failed partition the membership as resolved at call
// time; membership may have drifted by completion, which is reported,
// not prevented.
type OperationReport struct {
	ID        string             `json:"id"`
	Operation string             `json:"operation"`
	MasterID  string             `json:"master_id"`
	Succeeded []string           `json:"succeeded"`
	Failed    []OperationFailure `json:"failed"`
	StartedAt time.Time          `json:"started_at"`
	Duration  time.Duration      `json:"duration"`
}

// Partial reports whether the operation succeeded for some members and
// failed for others.
func (r *OperationReport) Partial() bool {
	return len(r.Succeeded) > 0 && len(r.Failed) > 0
}

// Coordinator executes group-wide operations and forwards group
// formation requests.
type Coordinator struct {
	groups   *speaker.Groups
	registry *speaker.Registry
	cmd      Commander
	grouper  Grouper
	timeout  time.Duration
	logger   Logger
}

// NewCoordinator creates a group operation coordinator.
// A non-positive timeout falls back to the default member timeout.
func NewCoordinator(groups *speaker.Groups, registry *speaker.Registry, cmd Commander, grouper Grouper, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = defaultMemberTimeout
	}
	return &Coordinator{
		groups:   groups,
		registry: registry,
		cmd:      cmd,
		grouper:  grouper,
		timeout:  timeout,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the coordinator.
func (c *Coordinator) SetLogger(logger Logger) {
	c.logger = logger
}

// memberResult carries one member's outcome off its goroutine.
type memberResult struct {
	speakerID string
	err       error
}

// ApplyToGroup fans the operation out to every current member of the
// group mastered by masterID.
//
// Returns speaker.ErrGroupNotFound if no current group has that master.
// Per-member failures, including a member deregistered mid-flight, are
// collected into the report rather than returned.
func (c *Coordinator) ApplyToGroup(ctx context.Context, masterID string, op Operation) (*OperationReport, error) {
	grp, err := c.groups.GroupOf(masterID)
	if err != nil {
		return nil, fmt.Errorf("resolving group %s: %w", masterID, err)
	}

	report := &OperationReport{
		ID:        uuid.NewString(),
		Operation: op.Name(),
		MasterID:  masterID,
		StartedAt: time.Now().UTC(),
	}

	results := make(chan memberResult, len(grp.MemberIDs))
	var wg sync.WaitGroup

	for _, id := range grp.MemberIDs {
		sp, err := c.registry.LookupByID(id)
		if err != nil {
			// Deregistered between resolution and dispatch; a normal
			// per-member failure, not a crash.
			results <- memberResult{speakerID: id, err: err}
			continue
		}

		wg.Add(1)
		go func(sp speaker.Speaker) {
			defer wg.Done()
			memberCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			results <- memberResult{speakerID: sp.ID, err: op.Apply(memberCtx, c.cmd, sp)}
		}(*sp)
	}

	wg.Wait()
	close(results)

	for res := range results {
		if res.err != nil {
			report.Failed = append(report.Failed, OperationFailure{
				SpeakerID: res.speakerID,
				Error:     res.err.Error(),
			})
			continue
		}
		report.Succeeded = append(report.Succeeded, res.speakerID)
	}
	sort.Strings(report.Succeeded)
	sort.Slice(report.Failed, func(i, j int) bool {
		return report.Failed[i].SpeakerID < report.Failed[j].SpeakerID
	})
	report.Duration = time.Since(report.StartedAt)

	c.logger.Info("group operation completed",
		"operation", report.Operation,
		"master_id", masterID,
		"succeeded", len(report.Succeeded),
		"failed", len(report.Failed),
		"duration", report.Duration,
	)
	return report, nil
}

// Join requests that slaveID join the group mastered by masterID.
func (c *Coordinator) Join(ctx context.Context, slaveID, masterID string) error {
	if slaveID == masterID {
		return fmt.Errorf("%w: speaker cannot join itself", speaker.ErrInvalidSpeaker)
	}

	slave, err := c.registry.LookupByID(slaveID)
	if err != nil {
		return fmt.Errorf("resolving slave: %w", err)
	}
	master, err := c.registry.LookupByID(masterID)
	if err != nil {
		return fmt.Errorf("resolving master: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.grouper.RequestJoin(ctx, slave.Address, master.Address); err != nil {
		return fmt.Errorf("join request %s -> %s: %w", slaveID, masterID, err)
	}
	c.logger.Info("join requested", "slave_id", slaveID, "master_id", masterID)
	return nil
}

// Leave requests that the speaker leave its current group.
func (c *Coordinator) Leave(ctx context.Context, id string) error {
	sp, err := c.registry.LookupByID(id)
	if err != nil {
		return fmt.Errorf("resolving speaker: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.grouper.RequestLeave(ctx, sp.Address); err != nil {
		return fmt.Errorf("leave request %s: %w", id, err)
	}
	c.logger.Info("leave requested", "speaker_id", id)
	return nil
}

// Disband requests that the master dissolve its group. The master must
// currently lead a group.
func (c *Coordinator) Disband(ctx context.Context, masterID string) error {
	if _, err := c.groups.GroupOf(masterID); err != nil {
		if errors.Is(err, speaker.ErrGroupNotFound) {
			return fmt.Errorf("disband %s: %w", masterID, err)
		}
		return err
	}

	master, err := c.registry.LookupByID(masterID)
	if err != nil {
		return fmt.Errorf("resolving master: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.grouper.RequestDisband(ctx, master.Address); err != nil {
		return fmt.Errorf("disband request %s: %w", masterID, err)
	}
	c.logger.Info("disband requested", "master_id", masterID)
	return nil
}
