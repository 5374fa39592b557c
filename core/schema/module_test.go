package schema

import (
	"errors"
	"strings"
	"testing"
)

func testModule() Module {
	vis := func() Visibility { return allVisible(teacherRoles...) }
	return Module{
		Name:  "teacher",
		Roles: teacherRoles,
		Sections: []Section{
			{
				ID:   "personal-info",
				Name: "Personal Information",
				Tab:  "profile",
				Fields: []Field{
					{Label: "First Name", Type: FieldTypeText, Required: true, Visibility: vis()},
					{Label: "Gender", Type: FieldTypeDropdown, Constraints: Constraints{Options: []string{"Male", "Female", "Other"}}, Visibility: vis()},
					{Key: "dob", Label: "Date of Birth", Type: FieldTypeDate, Visibility: vis()},
				},
			},
			{
				ID:   "employment",
				Name: "Employment Details",
				Tab:  "employment",
				Fields: []Field{
					{ID: "emp-id", Label: "Employee ID", Type: FieldTypeText, Visibility: vis()},
				},
			},
		},
	}
}

func TestModule_HasRole(t *testing.T) {
	mod := testModule()
	if !mod.HasRole("principal") {
		t.Error("HasRole(principal) = false, want true")
	}
	if mod.HasRole("parent") {
		t.Error("HasRole(parent) = true, want false")
	}
}

func TestModule_Tabs(t *testing.T) {
	mod := testModule()
	mod.Sections = append(mod.Sections, Section{ID: "contact", Name: "Contact", Tab: "profile"}, Section{ID: "misc", Name: "Misc"})

	got := mod.Tabs()
	if len(got) != 2 || got[0] != "profile" || got[1] != "employment" {
		t.Errorf("Tabs() = %v, want [profile employment]", got)
	}
}

func TestSeedField(t *testing.T) {
	f := SeedField("personal-info", Field{Label: "Blood Group", Type: FieldTypeText}, 4)

	if f.Key != "blood_group" {
		t.Errorf("Key = %q, want %q", f.Key, "blood_group")
	}
	if f.ID != "personal-info.blood_group" {
		t.Errorf("ID = %q, want %q", f.ID, "personal-info.blood_group")
	}
	if !f.System {
		t.Error("seed field should be a system field")
	}
	if f.Order != 4 {
		t.Errorf("Order = %d, want 4", f.Order)
	}

	explicit := SeedField("s", Field{ID: "x1", Key: "dob", Label: "Date of Birth", Type: FieldTypeDate}, 0)
	if explicit.ID != "x1" || explicit.Key != "dob" {
		t.Errorf("explicit id/key overwritten: %q/%q", explicit.ID, explicit.Key)
	}

	file := SeedField("s", Field{Label: "Resume", Type: FieldTypeFile, Constraints: Constraints{AllowedExtensions: []string{".PDF"}}}, 0)
	if file.Constraints.AllowedExtensions[0] != "pdf" {
		t.Errorf("extensions not normalized: %v", file.Constraints.AllowedExtensions)
	}
}

func TestModule_Seed(t *testing.T) {
	sections, err := testModule().Seed()
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if len(sections) != 2 {
		t.Fatalf("Seed() returned %d sections, want 2", len(sections))
	}

	personal := sections[0]
	if !personal.Expanded {
		t.Error("seeded sections should start expanded")
	}
	wantKeys := []string{"first_name", "gender", "dob"}
	for i, f := range personal.Fields {
		if f.Key != wantKeys[i] {
			t.Errorf("field %d key = %q, want %q", i, f.Key, wantKeys[i])
		}
		if f.Order != i {
			t.Errorf("field %d order = %d, want %d", i, f.Order, i)
		}
		if !f.System {
			t.Errorf("field %q is not a system field", f.Key)
		}
	}
	if sections[1].Fields[0].ID != "emp-id" {
		t.Errorf("explicit seed id lost: %q", sections[1].Fields[0].ID)
	}
}

func TestModule_SeedErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(m *Module)
		wantMsg string
	}{
		{
			name:    "duplicate section id",
			mutate:  func(m *Module) { m.Sections[1].ID = "personal-info" },
			wantMsg: "duplicate section id",
		},
		{
			name:    "duplicate section name",
			mutate:  func(m *Module) { m.Sections[1].Name = "Personal Information" },
			wantMsg: "duplicate section name",
		},
		{
			name: "duplicate field key",
			mutate: func(m *Module) {
				m.Sections[0].Fields[1].Label = "First  Name"
			},
			wantMsg: "duplicate field",
		},
		{
			name: "field id reused across sections",
			mutate: func(m *Module) {
				m.Sections[1].Fields[0].ID = "personal-info.first_name"
			},
			wantMsg: "used in sections",
		},
		{
			name: "dropdown without options",
			mutate: func(m *Module) {
				m.Sections[0].Fields[1].Constraints = Constraints{}
			},
			wantMsg: "options",
		},
		{
			name: "visibility missing a role",
			mutate: func(m *Module) {
				delete(m.Sections[0].Fields[0].Visibility, "teacherSelf")
			},
			wantMsg: "teacherSelf",
		},
		{
			name: "label without key characters",
			mutate: func(m *Module) {
				m.Sections[0].Fields[0].Label = "???"
			},
			wantMsg: "key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod := testModule()
			tt.mutate(&mod)
			_, err := mod.Seed()
			if err == nil {
				t.Fatal("Seed() error = nil, want error")
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("error should match ErrValidation: %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Seed() error = %q, want containing %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestModule_SeedDoesNotMutateDefinition(t *testing.T) {
	mod := testModule()
	if _, err := mod.Seed(); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if mod.Sections[0].Fields[0].Key != "" || mod.Sections[0].Fields[0].System {
		t.Error("Seed() mutated the module definition")
	}
}
