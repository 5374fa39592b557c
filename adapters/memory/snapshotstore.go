// Package memory provides in-memory implementations of the storage ports,
// used by tests and by the CLI when no database is configured.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/artpar/fieldschema/core/schema"
	"github.com/artpar/fieldschema/domain/audit"
	"github.com/artpar/fieldschema/ports"
)

// SnapshotStore is an in-memory implementation of ports.SnapshotStore.
type SnapshotStore struct {
	mu    sync.RWMutex
	snaps map[string]schema.Snapshot // by module
	saves int
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		snaps: make(map[string]schema.Snapshot),
	}
}

// Load returns the stored snapshot for a module.
func (s *SnapshotStore) Load(ctx context.Context, module string) (schema.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snaps[module]
	if !ok {
		return schema.Snapshot{}, &schema.NotFoundError{Kind: "snapshot", ID: module}
	}
	return snap.Clone(), nil
}

// Save stores a snapshot unless a newer version is already held.
func (s *SnapshotStore) Save(ctx context.Context, snap schema.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.snaps[snap.Module]; ok && cur.Version > snap.Version {
		return nil
	}
	s.snaps[snap.Module] = snap.Clone()
	s.saves++
	return nil
}

// List returns the modules with a stored snapshot.
func (s *SnapshotStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.snaps))
	for name := range s.snaps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Saves returns how many snapshots have been written (for testing).
func (s *SnapshotStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// Ensure interface compliance.
var _ ports.SnapshotStore = (*SnapshotStore)(nil)

// AuditStore is an in-memory implementation of ports.AuditStore.
type AuditStore struct {
	mu      sync.RWMutex
	entries []audit.Entry // oldest first
}

// NewAuditStore creates a new in-memory audit store.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

// Record appends an entry.
func (s *AuditStore) Record(ctx context.Context, e audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, e)
	return nil
}

// List returns matching entries, newest first.
func (s *AuditStore) List(ctx context.Context, f audit.Filter) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []audit.Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if !f.Matches(e) {
			continue
		}
		result = append(result, e)
		if f.Limit > 0 && len(result) == f.Limit {
			break
		}
	}
	return result, nil
}

// Ensure interface compliance.
var _ ports.AuditStore = (*AuditStore)(nil)
