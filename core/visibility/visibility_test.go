package visibility

import (
	"testing"

	"github.com/artpar/fieldschema/core/schema"
)

func fields() []schema.Field {
	return []schema.Field{
		{ID: "c", Key: "religion", Order: 2, Visibility: schema.Visibility{"admin": true, "principal": true, "teacherSelf": false}},
		{ID: "a", Key: "first_name", Order: 0, System: true, Visibility: schema.Visibility{"admin": true, "principal": true, "teacherSelf": true}},
		{ID: "d", Key: "aadhar", Order: 3, Visibility: schema.Visibility{"admin": true, "principal": false, "teacherSelf": false}},
		{ID: "b", Key: "nickname", Order: 1, Visibility: schema.Visibility{"admin": false, "principal": false, "teacherSelf": true}},
	}
}

func TestIsVisible(t *testing.T) {
	f := fields()[0]

	tests := []struct {
		role string
		want bool
	}{
		{"admin", true},
		{"principal", true},
		{"teacherSelf", false},
		{"parent", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			if got := IsVisible(f, tt.role); got != tt.want {
				t.Errorf("IsVisible(%q) = %v, want %v", tt.role, got, tt.want)
			}
		})
	}

	if IsVisible(schema.Field{}, "admin") {
		t.Error("field without matrix should be hidden")
	}
}

func TestFilterVisible(t *testing.T) {
	tests := []struct {
		role string
		want []string
	}{
		{"admin", []string{"first_name", "religion", "aadhar"}},
		{"principal", []string{"first_name", "religion"}},
		{"teacherSelf", []string{"first_name", "nickname"}},
		{"parent", nil},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			got := FilterVisible(fields(), tt.role)
			if len(got) != len(tt.want) {
				t.Fatalf("FilterVisible(%q) returned %d fields, want %d", tt.role, len(got), len(tt.want))
			}
			for i, k := range tt.want {
				if got[i].Key != k {
					t.Errorf("FilterVisible(%q)[%d] = %q, want %q", tt.role, i, got[i].Key, k)
				}
			}
		})
	}
}

func TestFilterVisible_DoesNotMutateInput(t *testing.T) {
	in := fields()
	out := FilterVisible(in, "admin")
	out[0].Visibility["admin"] = false

	if in[0].Key != "religion" {
		t.Error("input was reordered")
	}
	if !in[1].Visibility["admin"] {
		t.Error("output shares visibility maps with input")
	}
}

func TestVisibleSections(t *testing.T) {
	sections := []schema.Section{
		{ID: "personal", Name: "Personal", Fields: fields()},
		{ID: "bank", Name: "Bank", Fields: []schema.Field{
			{ID: "x", Key: "ifsc", Visibility: schema.Visibility{"admin": true, "principal": false, "teacherSelf": false}},
		}},
	}

	got := VisibleSections(sections, "teacherSelf")
	if len(got) != 1 || got[0].ID != "personal" {
		t.Fatalf("VisibleSections(teacherSelf) = %+v, want only personal", got)
	}
	if len(got[0].Fields) != 2 {
		t.Errorf("personal has %d visible fields, want 2", len(got[0].Fields))
	}
	if len(sections[0].Fields) != 4 {
		t.Error("input section was modified")
	}

	if got := VisibleSections(sections, "admin"); len(got) != 2 {
		t.Errorf("VisibleSections(admin) returned %d sections, want 2", len(got))
	}
}

func TestCanEdit(t *testing.T) {
	for _, f := range fields() {
		if got := CanEdit(f); got == f.System {
			t.Errorf("CanEdit(%s) = %v with system=%v", f.Key, got, f.System)
		}
	}
}

func TestAudience(t *testing.T) {
	got := Audience(fields(), []string{"admin", "principal", "teacherSelf", "parent"})
	want := map[string]int{"admin": 3, "principal": 2, "teacherSelf": 2, "parent": 0}
	for role, n := range want {
		if got[role] != n {
			t.Errorf("Audience[%s] = %d, want %d", role, got[role], n)
		}
	}
}
