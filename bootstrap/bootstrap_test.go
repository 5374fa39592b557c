package bootstrap_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/artpar/fieldschema/adapters/clock"
	"github.com/artpar/fieldschema/adapters/idgen"
	"github.com/artpar/fieldschema/app"
	"github.com/artpar/fieldschema/bootstrap"
	"github.com/artpar/fieldschema/config"
	"github.com/artpar/fieldschema/core/schema"
	"github.com/artpar/fieldschema/domain/audit"
)

const libraryYAML = `
module: library
roles: [admin, librarian]
sections:
  - id: book
    name: Book
    fields:
      - { label: Title, type: text, required: true, visibility: { admin: true, librarian: true } }
      - { label: ISBN, type: text, visibility: { admin: true, librarian: true } }
`

func testOptions() bootstrap.Options {
	return bootstrap.Options{
		LogOutput: io.Discard,
		Clock:     clock.NewStepping(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC), time.Second),
		IDGen:     idgen.NewSequential("fld_"),
	}
}

func memoryConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte("database:\n  driver: memory\n" + yaml))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func sqliteConfig(t *testing.T, path string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte("database:\n  driver: sqlite\n  dsn: " + path + "\n"))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func writeModule(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("write module: %v", err)
	}
}

func TestNew_EmbeddedModules(t *testing.T) {
	a, err := bootstrap.New(context.Background(), memoryConfig(t, ""), testOptions())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	got := strings.Join(a.Modules(), ",")
	if got != "attendance,class,student,teacher" {
		t.Errorf("Modules() = %s, want attendance,class,student,teacher", got)
	}

	store, err := a.Store("teacher")
	if err != nil {
		t.Fatalf("Store(teacher) error = %v", err)
	}
	f, err := store.FieldByKey("personal-info", "first_name")
	if err != nil || !f.System {
		t.Errorf("first_name = %+v, %v", f, err)
	}

	saved, err := a.Snapshots.Load(context.Background(), "teacher")
	if err != nil {
		t.Fatalf("seed snapshot not saved: %v", err)
	}
	if saved.FieldCount() != store.Snapshot().FieldCount() {
		t.Errorf("saved %d fields, store has %d", saved.FieldCount(), store.Snapshot().FieldCount())
	}

	if _, err := a.Store("library"); !errors.Is(err, schema.ErrNotFound) {
		t.Errorf("Store(library) error = %v, want ErrNotFound", err)
	}
}

func TestNew_PersistsAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fieldschema.db")
	ctx := app.WithActor(context.Background(), "admin@school")

	a, err := bootstrap.New(ctx, sqliteConfig(t, path), testOptions())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	store, _ := a.Store("class")
	added, err := store.AddField(ctx, "class-details", app.FieldInput{
		Label:       "Wing",
		Type:        schema.FieldTypeDropdown,
		Constraints: schema.Constraints{Options: []string{"North", "South"}},
		Visibility:  schema.Visibility{"admin": true, "teacher": true},
	})
	if err != nil {
		t.Fatalf("AddField() error = %v", err)
	}
	if err := store.ReorderField(ctx, "class-details", added.ID, 0); err != nil {
		t.Fatalf("ReorderField() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	b, err := bootstrap.New(context.Background(), sqliteConfig(t, path), testOptions())
	if err != nil {
		t.Fatalf("second New() error = %v", err)
	}
	defer b.Close()

	restored, _ := b.Store("class")
	if restored.Version() != 2 {
		t.Errorf("Version() = %d, want 2", restored.Version())
	}
	f, err := restored.FieldByKey("class-details", "wing")
	if err != nil {
		t.Fatalf("FieldByKey(wing) error = %v", err)
	}
	if f.ID != added.ID || f.Order != 0 || f.System {
		t.Errorf("restored field = %+v", f)
	}

	entries, err := b.Audit.List(context.Background(), audit.Filter{Module: "class"})
	if err != nil {
		t.Fatalf("Audit.List() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("audit entries = %d, want 2", len(entries))
	}
	if entries[0].Action != audit.ActionFieldReordered || entries[1].Actor != "admin@school" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestNew_ModulesDir(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "library.yaml", libraryYAML)

	a, err := bootstrap.New(context.Background(), memoryConfig(t, "modules:\n  dir: "+dir+"\n  embedded: false\n"), testOptions())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if got := a.Modules(); len(got) != 1 || got[0] != "library" {
		t.Errorf("Modules() = %v, want [library]", got)
	}
	if e := a.Registry.List(); len(e) != 1 || e[0].Source != dir {
		t.Errorf("registry entries = %+v", e)
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantMsg string
	}{
		{"conflicts with embedded", "teacher.yaml", "module: teacher\nroles: [admin]\n", "teacher"},
		{"invalid definition", "broken.yaml", "module: broken\nroles: []\n", "broken.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeModule(t, dir, tt.file, tt.content)

			_, err := bootstrap.New(context.Background(), memoryConfig(t, "modules:\n  dir: "+dir+"\n"), testOptions())
			if err == nil {
				t.Fatal("New() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want containing %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestNew_AuditDisabled(t *testing.T) {
	a, err := bootstrap.New(context.Background(), memoryConfig(t, "audit:\n  enabled: false\n"), testOptions())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if a.Audit != nil {
		t.Error("Audit should be nil when disabled")
	}
	store, _ := a.Store("class")
	if err := store.SetExpanded(context.Background(), "subjects", false); err != nil {
		t.Fatalf("SetExpanded() error = %v", err)
	}
	saved, _ := a.Snapshots.Load(context.Background(), "class")
	if sec, _ := saved.Section("subjects"); sec.Expanded {
		t.Error("toggle not persisted")
	}
}

func TestApp_LoadModulesDir(t *testing.T) {
	a, err := bootstrap.New(context.Background(), memoryConfig(t, ""), testOptions())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	dir := t.TempDir()
	writeModule(t, dir, "library.yaml", libraryYAML)
	writeModule(t, dir, "class.yaml", "module: class\nroles: [admin]\n")

	added, err := a.LoadModulesDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("LoadModulesDir() error = %v", err)
	}
	if len(added) != 1 || added[0] != "library" {
		t.Errorf("added = %v, want [library]", added)
	}
	if _, err := a.Store("library"); err != nil {
		t.Errorf("Store(library) error = %v", err)
	}
	if e, _ := a.Registry.Get("class"); len(e.Roles) != 2 {
		t.Error("already loaded class module was replaced")
	}
}

func TestApp_ValidateRecord(t *testing.T) {
	cfg := memoryConfig(t, "metrics:\n  enabled: true\n")
	a, err := bootstrap.New(context.Background(), cfg, testOptions())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	tests := []struct {
		name      string
		sectionID string
		role      string
		data      map[string]any
		wantValid bool
		wantField string
	}{
		{
			name:      "valid subject",
			sectionID: "subjects",
			data: map[string]any{
				"subject_name": "Mathematics", "subject_code": "MATH",
				"subject_type": "Core", "periods_per_week": 6,
			},
			wantValid: true,
		},
		{
			name:      "periods above max",
			sectionID: "subjects",
			data: map[string]any{
				"subject_name": "Mathematics", "subject_code": "MATH",
				"subject_type": "Core", "periods_per_week": 61,
			},
			wantField: "periods_per_week",
		},
		{
			name:      "option not allowed",
			sectionID: "class-details",
			role:      "teacher",
			data: map[string]any{
				"class_name": "X", "class_code": "10", "academic_year": "2024-25",
				"medium": "French", "syllabus_type": "CBSE",
			},
			wantField: "medium",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := a.ValidateRecord("class", tt.sectionID, tt.role, tt.data)
			if err != nil {
				t.Fatalf("ValidateRecord() error = %v", err)
			}
			if result.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v (%v)", result.Valid, tt.wantValid, result.Errors)
			}
			if tt.wantField != "" && len(result.ErrorsFor(tt.wantField)) == 0 {
				t.Errorf("no error for %s: %v", tt.wantField, result.Errors)
			}
		})
	}

	if _, err := a.ValidateRecord("class", "subjects", "parent", nil); !errors.Is(err, schema.ErrValidation) {
		t.Errorf("unknown role error = %v", err)
	}
	if _, err := a.ValidateRecord("class", "nope", "", nil); !errors.Is(err, schema.ErrNotFound) {
		t.Errorf("unknown section error = %v", err)
	}
}

func TestApp_Watch(t *testing.T) {
	modDir := t.TempDir()
	path := filepath.Join(t.TempDir(), "fieldschema.yaml")
	write := func(content string) {
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("database:\n  driver: memory\n")

	h, err := config.NewHolder(path, bootstrap.SetupLogger(config.LoggingConfig{}, io.Discard))
	if err != nil {
		t.Fatalf("NewHolder() error = %v", err)
	}
	defer h.Stop()

	a, err := bootstrap.New(context.Background(), h.Get(), testOptions())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()
	a.Watch(context.Background(), h)

	writeModule(t, modDir, "library.yaml", libraryYAML)
	write("database:\n  driver: memory\nmodules:\n  dir: " + modDir + "\n")
	if err := h.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	if _, err := a.Store("library"); err != nil {
		t.Errorf("library not loaded after reload: %v", err)
	}
}

func TestApp_Refresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fieldschema.db")
	ctx := app.WithActor(context.Background(), "office@school")

	var logs strings.Builder
	optsA := testOptions()
	optsA.LogOutput = &logs
	a, err := bootstrap.New(context.Background(), sqliteConfig(t, path), optsA)
	if err != nil {
		t.Fatalf("New(a) error = %v", err)
	}
	defer a.Close()

	b, err := bootstrap.New(context.Background(), sqliteConfig(t, path), testOptions())
	if err != nil {
		t.Fatalf("New(b) error = %v", err)
	}
	defer b.Close()

	changes, err := a.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(changes) != 0 {
		t.Fatalf("Refresh() before any write = %+v, want none", changes)
	}

	store, _ := b.Store("student")
	if _, err := store.AddField(ctx, "personal-info", app.FieldInput{
		Label:      "Locker Number",
		Type:       schema.FieldTypeText,
		Visibility: schema.Visibility{"admin": true, "teacher": true, "parent": true},
	}); err != nil {
		t.Fatalf("AddField() error = %v", err)
	}

	changes, err = a.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("Refresh() returned %d changes, want 1", len(changes))
	}
	c := changes[0]
	tests := []struct {
		name string
		got  any
		want any
	}{
		{"module", c.Module, "student"},
		{"from", c.From, int64(0)},
		{"to", c.To, int64(1)},
		{"entries", len(c.Entries), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
	if len(c.Entries) == 1 && c.Entries[0].Actor != "office@school" {
		t.Errorf("entry actor = %q, want office@school", c.Entries[0].Actor)
	}

	refreshed, _ := a.Store("student")
	if _, err := refreshed.FieldByKey("personal-info", "locker_number"); err != nil {
		t.Errorf("FieldByKey(locker_number) after refresh error = %v", err)
	}
	if !strings.Contains(logs.String(), `"message":"schema changed"`) || !strings.Contains(logs.String(), `added text field \"House\"`) {
		t.Errorf("log missing schema change:\n%s", logs.String())
	}

	if changes, _ := a.Refresh(context.Background()); len(changes) != 0 {
		t.Errorf("second Refresh() = %+v, want none", changes)
	}
}

func TestSetupLogger(t *testing.T) {
	var buf strings.Builder
	logger := bootstrap.SetupLogger(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	logger.Info().Str("module", "class").Msg("ready")

	out := buf.String()
	if !strings.Contains(out, `"module":"class"`) || !strings.Contains(out, `"message":"ready"`) {
		t.Errorf("log output = %s", out)
	}
}
