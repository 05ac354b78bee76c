package speaker

import (
	"context"
	"time"
)

// Record is the configured identity of a speaker as owned by the
// configuration layer: which speakers exist, their names, and their last
// known addresses. Runtime state (snapshots, roles, reachability) is never
// written back; it is rebuilt from live polling after restart.
type Record struct {
	ID        string
	Name      string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store defines the interface for speaker configuration persistence.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Store interface {
	// List retrieves all configured speakers.
	List(ctx context.Context) ([]Record, error)

	// Create inserts a new speaker record.
	// Returns ErrSpeakerExists if the ID is already present.
	Create(ctx context.Context, rec *Record) error

	// UpdateAddress persists a speaker's new network address.
	// Returns ErrSpeakerNotFound if the ID does not exist.
	UpdateAddress(ctx context.Context, id, address string) error

	// UpdateName persists a speaker's display name, refreshed from
	// health polls.
	UpdateName(ctx context.Context, id, name string) error

	// Delete removes a speaker record by ID.
	// Returns ErrSpeakerNotFound if the ID does not exist.
	Delete(ctx context.Context, id string) error
}

// SeedRegistry loads every stored record into the registry. Called once
// at startup before polling begins.
func SeedRegistry(ctx context.Context, store Store, registry *Registry) error {
	records, err := store.List(ctx)
	if err != nil {
		return err
	}

	for i := range records {
		rec := records[i]
		sp := &Speaker{
			ID:        rec.ID,
			Name:      rec.Name,
			Address:   rec.Address,
			CreatedAt: rec.CreatedAt,
		}
		if err := registry.Register(sp); err != nil {
			return err
		}
	}
	return nil
}
