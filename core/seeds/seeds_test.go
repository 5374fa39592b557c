package seeds

import (
	"errors"
	"testing"

	"github.com/artpar/fieldschema/core/schema"
)

func TestModules(t *testing.T) {
	mods, err := Modules()
	if err != nil {
		t.Fatalf("Modules() error = %v", err)
	}

	wantRoles := map[string][]string{
		"attendance": {"admin", "teacher"},
		"class":      {"admin", "teacher"},
		"student":    {"admin", "teacher", "parent"},
		"teacher":    {"admin", "principal", "teacherSelf"},
	}
	if len(mods) != len(wantRoles) {
		t.Fatalf("Modules() returned %d modules, want %d", len(mods), len(wantRoles))
	}

	for _, m := range mods {
		want, ok := wantRoles[m.Name]
		if !ok {
			t.Errorf("unexpected module %q", m.Name)
			continue
		}
		if len(m.Roles) != len(want) {
			t.Errorf("%s roles = %v, want %v", m.Name, m.Roles, want)
			continue
		}
		for i := range want {
			if m.Roles[i] != want[i] {
				t.Errorf("%s roles = %v, want %v", m.Name, m.Roles, want)
				break
			}
		}
	}
}

func TestModule_TeacherPersonalInformation(t *testing.T) {
	mod, err := Module("teacher")
	if err != nil {
		t.Fatalf("Module(teacher) error = %v", err)
	}

	sections, err := mod.Seed()
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	personal := sections[0]
	if personal.Name != "Personal Information" || personal.Tab != "profile" {
		t.Fatalf("first section = %q (%s), want Personal Information (profile)", personal.Name, personal.Tab)
	}

	keys := []string{"first_name", "last_name", "gender", "dob"}
	for i, k := range keys {
		if personal.Fields[i].Key != k {
			t.Errorf("Fields[%d].Key = %q, want %q", i, personal.Fields[i].Key, k)
		}
		if !personal.Fields[i].System {
			t.Errorf("Fields[%d] should be a system field", i)
		}
	}

	gender := personal.Fields[2]
	if gender.Type != schema.FieldTypeDropdown || len(gender.Constraints.Options) != 3 {
		t.Errorf("gender = %+v", gender)
	}

	aadhar, ok := personal.FieldByKey("aadhar_number")
	if !ok {
		t.Fatal("aadhar_number not seeded")
	}
	if aadhar.Visibility["principal"] || !aadhar.Visibility["admin"] {
		t.Errorf("aadhar visibility = %v, want admin only", aadhar.Visibility)
	}
	if aadhar.Placeholder == "" {
		t.Error("aadhar placeholder missing")
	}

	if got := mod.Tabs(); len(got) != 6 {
		t.Errorf("Tabs() = %v, want 6 tabs", got)
	}
}

func TestModule_StudentDocuments(t *testing.T) {
	mod, err := Module("student")
	if err != nil {
		t.Fatalf("Module(student) error = %v", err)
	}
	sections, err := mod.Seed()
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	var docs schema.Section
	for _, s := range sections {
		if s.ID == "documents" {
			docs = s
		}
	}
	tc, ok := docs.FieldByKey("tc")
	if !ok {
		t.Fatal("tc not seeded")
	}
	if tc.ID != "documents.tc" {
		t.Errorf("tc id = %q, want documents.tc", tc.ID)
	}
	if len(tc.Constraints.AllowedExtensions) != 1 || tc.Constraints.AllowedExtensions[0] != "pdf" {
		t.Errorf("tc extensions = %v", tc.Constraints.AllowedExtensions)
	}
}

func TestModule_Attendance(t *testing.T) {
	mod, err := Module("attendance")
	if err != nil {
		t.Fatalf("Module(attendance) error = %v", err)
	}
	sections, err := mod.Seed()
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	wantKeys := map[string][]string{
		"daily-attendance": {"date", "status", "reason"},
		"class-summary":    {"class", "section", "present_count"},
		"student-summary":  {"student_name", "attendance_percentage"},
		"settings":         {},
	}
	if len(sections) != len(wantKeys) {
		t.Fatalf("Seed() returned %d sections, want %d", len(sections), len(wantKeys))
	}
	for _, sec := range sections {
		want, ok := wantKeys[sec.ID]
		if !ok {
			t.Errorf("unexpected section %q", sec.ID)
			continue
		}
		if len(sec.Fields) != len(want) {
			t.Errorf("%s has %d fields, want %d", sec.ID, len(sec.Fields), len(want))
			continue
		}
		for i, k := range want {
			if sec.Fields[i].Key != k {
				t.Errorf("%s Fields[%d].Key = %q, want %q", sec.ID, i, sec.Fields[i].Key, k)
			}
		}
	}

	status, ok := sections[0].FieldByKey("status")
	if !ok {
		t.Fatal("status not seeded")
	}
	if got := status.Constraints.Options; len(got) != 3 || got[2] != "Late" {
		t.Errorf("status options = %v, want [Present Absent Late]", got)
	}
	if got := mod.Tabs(); len(got) != 4 || got[0] != "daily" {
		t.Errorf("Tabs() = %v, want [daily class student settings]", got)
	}
}

func TestModule_Unknown(t *testing.T) {
	_, err := Module("library")
	if !errors.Is(err, schema.ErrNotFound) {
		t.Errorf("Module(library) error = %v, want ErrNotFound", err)
	}
}
