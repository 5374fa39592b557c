// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/artpar/fieldschema/core/schema"
	"github.com/artpar/fieldschema/domain/audit"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// SnapshotStore persists the latest schema snapshot per module.
type SnapshotStore interface {
	// Load returns the stored snapshot. Returns an error matching
	// schema.ErrNotFound when the module has never been saved.
	Load(ctx context.Context, module string) (schema.Snapshot, error)

	// Save replaces the stored snapshot for snap.Module. Saving a version
	// older than the stored one is ignored.
	Save(ctx context.Context, snap schema.Snapshot) error

	// List returns the modules that have a stored snapshot, sorted.
	List(ctx context.Context) ([]string, error)
}

// AuditStore persists the schema change log.
type AuditStore interface {
	// Record appends an entry.
	Record(ctx context.Context, e audit.Entry) error

	// List returns matching entries, newest first.
	List(ctx context.Context, f audit.Filter) ([]audit.Entry, error)
}

// MutationRecorder persists a snapshot and its audit entry atomically.
// Stores that can do both in one transaction implement it.
type MutationRecorder interface {
	RecordMutation(ctx context.Context, snap schema.Snapshot, e audit.Entry) error
}

// MutationMetrics observes schema store activity.
type MutationMetrics interface {
	// Mutation counts one attempted operation. Outcome is "ok" or the error
	// class ("validation", "permission", "not_found").
	Mutation(module, op, outcome string)

	// Fields reports the current field count of a module.
	Fields(module string, n int)
}
