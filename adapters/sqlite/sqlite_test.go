package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/artpar/fieldschema/adapters/sqlite"
	"github.com/artpar/fieldschema/core/schema"
	"github.com/artpar/fieldschema/domain/audit"
)

func setupTestDB(t *testing.T) *sqlite.DB {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "fieldschema-test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testSnapshot(version int64) schema.Snapshot {
	vis := schema.Visibility{"admin": true, "teacher": false}
	return schema.Snapshot{
		Module:    "class",
		Roles:     []string{"admin", "teacher"},
		Version:   version,
		UpdatedAt: time.Date(2024, 6, 1, 9, 30, 0, 123456000, time.UTC),
		Sections: []schema.Section{
			{
				ID:       "class-details",
				Name:     "Class Details",
				Expanded: true,
				Fields: []schema.Field{
					{ID: "class-details.room", Key: "room", Label: "Room", Type: schema.FieldTypeText, System: true, Visibility: vis},
					{ID: "fld_1", Key: "capacity", Label: "Capacity", Type: schema.FieldTypeNumber, Order: 1, Visibility: vis},
				},
			},
		},
	}
}

// -----------------------------------------------------------------------------
// DB Tests
// -----------------------------------------------------------------------------

func TestMigrate_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	versions, err := db.Migrations()
	if err != nil {
		t.Fatalf("Migrations() error = %v", err)
	}
	if len(versions) != 1 || versions[0] != "001_init" {
		t.Errorf("Migrations() = %v, want [001_init]", versions)
	}
}

func TestOpen_Memory(t *testing.T) {
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) error = %v", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	store := sqlite.NewSnapshotStore(db)
	if err := store.Save(context.Background(), testSnapshot(1)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
}

// -----------------------------------------------------------------------------
// SnapshotStore Tests
// -----------------------------------------------------------------------------

func TestSnapshotStore_SaveLoad(t *testing.T) {
	store := sqlite.NewSnapshotStore(setupTestDB(t))
	ctx := context.Background()

	if _, err := store.Load(ctx, "class"); !errors.Is(err, schema.ErrNotFound) {
		t.Errorf("Load() before save error = %v, want ErrNotFound", err)
	}

	want := testSnapshot(4)
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(ctx, "class")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	wantData, _ := want.Encode()
	gotData, _ := got.Encode()
	if string(wantData) != string(gotData) {
		t.Errorf("Load() =\n%s\nwant\n%s", gotData, wantData)
	}
}

func TestSnapshotStore_VersionOrdering(t *testing.T) {
	store := sqlite.NewSnapshotStore(setupTestDB(t))
	ctx := context.Background()

	tests := []struct {
		name    string
		version int64
		want    int64
	}{
		{"insert", 2, 2},
		{"older ignored", 1, 2},
		{"newer applied", 7, 7},
		{"same version applied", 7, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.Save(ctx, testSnapshot(tt.version)); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			got, err := store.Load(ctx, "class")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got.Version != tt.want {
				t.Errorf("Version = %d, want %d", got.Version, tt.want)
			}
		})
	}
}

func TestSnapshotStore_List(t *testing.T) {
	store := sqlite.NewSnapshotStore(setupTestDB(t))
	ctx := context.Background()

	for _, m := range []string{"teacher", "class"} {
		snap := testSnapshot(1)
		snap.Module = m
		if err := store.Save(ctx, snap); err != nil {
			t.Fatalf("Save(%s) error = %v", m, err)
		}
	}

	got, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 || got[0] != "class" || got[1] != "teacher" {
		t.Errorf("List() = %v, want [class teacher]", got)
	}
}

func TestSnapshotStore_RecordMutation(t *testing.T) {
	db := setupTestDB(t)
	store := sqlite.NewSnapshotStore(db)
	log := sqlite.NewAuditStore(db)
	ctx := context.Background()

	snap := testSnapshot(1)
	after := snap.Sections[0].Fields[1]
	entry := audit.Entry{
		ID:        "aud_1",
		Module:    "class",
		Action:    audit.ActionFieldAdded,
		SectionID: "class-details",
		FieldID:   after.ID,
		FieldKey:  after.Key,
		Actor:     "admin",
		Version:   1,
		After:     &after,
		At:        snap.UpdatedAt,
	}
	if err := store.RecordMutation(ctx, snap, entry); err != nil {
		t.Fatalf("RecordMutation() error = %v", err)
	}

	if _, err := store.Load(ctx, "class"); err != nil {
		t.Errorf("snapshot not saved: %v", err)
	}
	entries, err := log.List(ctx, audit.Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 || entries[0].After == nil || entries[0].After.Key != "capacity" {
		t.Fatalf("entries = %+v", entries)
	}

	// A duplicate audit id fails the transaction and leaves the snapshot alone.
	if err := store.RecordMutation(ctx, testSnapshot(2), entry); err == nil {
		t.Fatal("RecordMutation() with duplicate id error = nil")
	}
	got, _ := store.Load(ctx, "class")
	if got.Version != 1 {
		t.Errorf("Version = %d after failed transaction, want 1", got.Version)
	}
}

// -----------------------------------------------------------------------------
// AuditStore Tests
// -----------------------------------------------------------------------------

func TestAuditStore_List(t *testing.T) {
	log := sqlite.NewAuditStore(setupTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	before := schema.Field{ID: "f1", Key: "room", Label: "Room", Type: schema.FieldTypeText}
	after := before
	after.Label = "Room No"

	entries := []audit.Entry{
		{ID: "a1", Module: "class", Action: audit.ActionFieldAdded, FieldID: "f1", Actor: "alice", Version: 1, After: &before, At: base},
		{ID: "a2", Module: "class", Action: audit.ActionFieldEdited, FieldID: "f1", Actor: "bob", Version: 2, Before: &before, After: &after, At: base.Add(time.Hour)},
		{ID: "a3", Module: "teacher", Action: audit.ActionFieldDeleted, FieldID: "f9", Actor: "alice", Version: 5, Before: &before, At: base.Add(90 * time.Minute)},
	}
	for _, e := range entries {
		if err := log.Record(ctx, e); err != nil {
			t.Fatalf("Record(%s) error = %v", e.ID, err)
		}
	}

	tests := []struct {
		name   string
		filter audit.Filter
		want   []string
	}{
		{"all", audit.Filter{}, []string{"a3", "a2", "a1"}},
		{"module", audit.Filter{Module: "class"}, []string{"a2", "a1"}},
		{"field", audit.Filter{FieldID: "f1"}, []string{"a2", "a1"}},
		{"actor", audit.Filter{Actor: "alice"}, []string{"a3", "a1"}},
		{"since", audit.Filter{Since: base.Add(time.Hour)}, []string{"a3", "a2"}},
		{"limit", audit.Filter{Limit: 1}, []string{"a3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := log.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("List() returned %d entries, want %d", len(got), len(tt.want))
			}
			for i, e := range got {
				if e.ID != tt.want[i] {
					t.Errorf("List()[%d].ID = %q, want %q", i, e.ID, tt.want[i])
				}
			}
		})
	}

	edited, _ := log.List(ctx, audit.Filter{Actor: "bob"})
	e := edited[0]
	if e.Before == nil || e.After == nil || e.After.Label != "Room No" {
		t.Errorf("edit entry fields = %v/%v", e.Before, e.After)
	}
	if !e.At.Equal(base.Add(time.Hour)) {
		t.Errorf("At = %v, want %v", e.At, base.Add(time.Hour))
	}
	if changes := e.Changes(); len(changes) != 1 || changes[0].Attribute != "label" {
		t.Errorf("Changes() = %+v", changes)
	}
}

func TestAuditStore_List_BadTimestamp(t *testing.T) {
	tests := []struct {
		name string
		at   string
	}{
		{"empty", ""},
		{"date only", "2024-06-01"},
		{"sqlite default", "2024-06-01 09:30:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupTestDB(t)
			store := sqlite.NewAuditStore(db)
			ctx := context.Background()

			_, err := db.ExecContext(ctx,
				`INSERT INTO audit_log (id, module, action, version, at) VALUES (?, ?, ?, ?, ?)`,
				"aud_bad", "class", audit.ActionFieldAdded, 1, tt.at)
			if err != nil {
				t.Fatalf("insert: %v", err)
			}

			entries, err := store.List(ctx, audit.Filter{Module: "class"})
			if err == nil {
				t.Errorf("List() = %+v, want timestamp error", entries)
			}
		})
	}
}
