package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/artpar/fieldschema/core/schema"
	"github.com/artpar/fieldschema/domain/audit"
	"github.com/artpar/fieldschema/ports"
)

// SnapshotStore implements ports.SnapshotStore using SQLite. It also
// implements ports.MutationRecorder so a snapshot and its audit entry are
// written in one transaction.
type SnapshotStore struct {
	db *DB
}

// NewSnapshotStore creates a new snapshot store.
func NewSnapshotStore(db *DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// Ensure interface compliance.
var (
	_ ports.SnapshotStore    = (*SnapshotStore)(nil)
	_ ports.MutationRecorder = (*SnapshotStore)(nil)
)

// Load retrieves the latest snapshot of a module.
func (s *SnapshotStore) Load(ctx context.Context, module string) (schema.Snapshot, error) {
	var data string
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT data FROM snapshots WHERE module = ?`,
		module,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return schema.Snapshot{}, &schema.NotFoundError{Kind: "snapshot", ID: module}
		}
		return schema.Snapshot{}, err
	}
	return schema.DecodeSnapshot([]byte(data))
}

// Save upserts a snapshot. Older versions never replace newer ones.
func (s *SnapshotStore) Save(ctx context.Context, snap schema.Snapshot) error {
	return saveSnapshot(ctx, s.db.DB, snap)
}

// List returns the modules with a stored snapshot.
func (s *SnapshotStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.DB.QueryContext(ctx, `SELECT module FROM snapshots ORDER BY module`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// RecordMutation saves snap and appends e atomically.
func (s *SnapshotStore) RecordMutation(ctx context.Context, snap schema.Snapshot, e audit.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := saveSnapshot(ctx, tx, snap); err != nil {
		return err
	}
	if err := insertEntry(ctx, tx, e); err != nil {
		return err
	}
	return tx.Commit()
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveSnapshot(ctx context.Context, db execer, snap schema.Snapshot) error {
	data, err := snap.Encode()
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO snapshots (module, version, updated_at, data)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(module) DO UPDATE SET
		   version = excluded.version,
		   updated_at = excluded.updated_at,
		   data = excluded.data,
		   saved_at = CURRENT_TIMESTAMP
		 WHERE excluded.version >= snapshots.version`,
		snap.Module, snap.Version, formatTime(snap.UpdatedAt), string(data),
	)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.Module, err)
	}
	return nil
}

func encodeField(f *schema.Field) (sql.NullString, error) {
	if f == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(f)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeField(s sql.NullString) (*schema.Field, error) {
	if !s.Valid {
		return nil, nil
	}
	var f schema.Field
	if err := json.Unmarshal([]byte(s.String), &f); err != nil {
		return nil, err
	}
	return &f, nil
}
