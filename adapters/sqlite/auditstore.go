package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/artpar/fieldschema/domain/audit"
	"github.com/artpar/fieldschema/ports"
)

// AuditStore implements ports.AuditStore using SQLite.
type AuditStore struct {
	db *DB
}

// NewAuditStore creates a new audit store.
func NewAuditStore(db *DB) *AuditStore {
	return &AuditStore{db: db}
}

// Ensure interface compliance.
var _ ports.AuditStore = (*AuditStore)(nil)

// Record appends an entry.
func (s *AuditStore) Record(ctx context.Context, e audit.Entry) error {
	return insertEntry(ctx, s.db.DB, e)
}

// List returns matching entries, newest first.
func (s *AuditStore) List(ctx context.Context, f audit.Filter) ([]audit.Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.Module != "" {
		where = append(where, "module = ?")
		args = append(args, f.Module)
	}
	if f.FieldID != "" {
		where = append(where, "field_id = ?")
		args = append(args, f.FieldID)
	}
	if f.Actor != "" {
		where = append(where, "actor = ?")
		args = append(args, f.Actor)
	}
	if !f.Since.IsZero() {
		where = append(where, "at >= ?")
		args = append(args, formatTime(f.Since))
	}

	query := `SELECT id, module, action, section_id, field_id, field_key, actor, version, before_json, after_json, at FROM audit_log`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			e             audit.Entry
			before, after sql.NullString
			at            string
		)
		if err := rows.Scan(&e.ID, &e.Module, &e.Action, &e.SectionID, &e.FieldID, &e.FieldKey, &e.Actor, &e.Version, &before, &after, &at); err != nil {
			return nil, err
		}
		if e.Before, err = decodeField(before); err != nil {
			return nil, fmt.Errorf("decode audit %s: %w", e.ID, err)
		}
		if e.After, err = decodeField(after); err != nil {
			return nil, fmt.Errorf("decode audit %s: %w", e.ID, err)
		}
		if e.At, err = parseTime(at); err != nil {
			return nil, fmt.Errorf("decode audit %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func insertEntry(ctx context.Context, db execer, e audit.Entry) error {
	before, err := encodeField(e.Before)
	if err != nil {
		return fmt.Errorf("encode audit %s: %w", e.ID, err)
	}
	after, err := encodeField(e.After)
	if err != nil {
		return fmt.Errorf("encode audit %s: %w", e.ID, err)
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO audit_log (id, module, action, section_id, field_id, field_key, actor, version, before_json, after_json, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Module, e.Action, e.SectionID, e.FieldID, e.FieldKey, e.Actor, e.Version, before, after, formatTime(e.At),
	)
	if err != nil {
		return fmt.Errorf("record audit %s: %w", e.ID, err)
	}
	return nil
}
