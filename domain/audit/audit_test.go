package audit_test

import (
	"strings"
	"testing"
	"time"

	"github.com/artpar/fieldschema/core/schema"
	"github.com/artpar/fieldschema/domain/audit"
)

func nickname() *schema.Field {
	return &schema.Field{
		ID:         "f-1",
		Key:        "nickname",
		Label:      "Nickname",
		Type:       schema.FieldTypeText,
		Visibility: schema.Visibility{"admin": true, "principal": true, "teacherSelf": true},
		Order:      13,
	}
}

func TestEntry_Changes(t *testing.T) {
	before := nickname()
	after := nickname()
	after.Label = "Preferred Name"
	after.Required = true
	after.Visibility["teacherSelf"] = false

	e := audit.Entry{Action: audit.ActionFieldEdited, Before: before, After: after}
	changes := e.Changes()

	want := map[string][2]string{
		"label":      {"Nickname", "Preferred Name"},
		"required":   {"false", "true"},
		"visibility": {"admin,principal,teacherSelf", "admin,principal"},
	}
	if len(changes) != len(want) {
		t.Fatalf("Changes() = %+v, want %d entries", changes, len(want))
	}
	for _, c := range changes {
		w, ok := want[c.Attribute]
		if !ok {
			t.Errorf("unexpected change %q", c.Attribute)
			continue
		}
		if c.Old != w[0] || c.New != w[1] {
			t.Errorf("%s: %q -> %q, want %q -> %q", c.Attribute, c.Old, c.New, w[0], w[1])
		}
	}
}

func TestEntry_ChangesAdditionHasNone(t *testing.T) {
	e := audit.Entry{Action: audit.ActionFieldAdded, After: nickname()}
	if got := e.Changes(); got != nil {
		t.Errorf("Changes() = %v, want nil", got)
	}
}

func TestEntry_Summary(t *testing.T) {
	moved := nickname()
	moved.Order = 0
	edited := nickname()
	edited.Hint = "what colleagues call you"

	tests := []struct {
		name  string
		entry audit.Entry
		want  string
	}{
		{"added", audit.Entry{Action: audit.ActionFieldAdded, After: nickname()}, `added text field "Nickname"`},
		{"deleted", audit.Entry{Action: audit.ActionFieldDeleted, Before: nickname()}, `deleted field "Nickname"`},
		{"reordered", audit.Entry{Action: audit.ActionFieldReordered, Before: nickname(), After: moved}, `moved "Nickname" from position 14 to 1`},
		{"edited", audit.Entry{Action: audit.ActionFieldEdited, Before: nickname(), After: edited}, `edited "Nickname": hint`},
		{"edited no-op", audit.Entry{Action: audit.ActionFieldEdited, Before: nickname(), After: nickname()}, `edited "Nickname" (no changes)`},
		{"toggled", audit.Entry{Action: audit.ActionSectionToggled, SectionID: "contact-info"}, "toggled section contact-info"},
		{"unknown", audit.Entry{Action: "custom.thing"}, "custom.thing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.Summary(); got != tt.want {
				t.Errorf("Summary() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFilter_Matches(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	e := audit.Entry{Module: "teacher", FieldID: "f-1", Actor: "admin@school", At: now}

	tests := []struct {
		name   string
		filter audit.Filter
		want   bool
	}{
		{"empty", audit.Filter{}, true},
		{"module", audit.Filter{Module: "teacher"}, true},
		{"other module", audit.Filter{Module: "student"}, false},
		{"field", audit.Filter{FieldID: "f-1"}, true},
		{"actor", audit.Filter{Actor: "someone"}, false},
		{"since before", audit.Filter{Since: now.Add(-time.Hour)}, true},
		{"since after", audit.Filter{Since: now.Add(time.Hour)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(e); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_SummaryConstraints(t *testing.T) {
	before := nickname()
	after := nickname()
	max := 20
	after.Constraints.MaxLength = &max

	got := audit.Entry{Action: audit.ActionFieldEdited, Before: before, After: after}.Summary()
	if !strings.Contains(got, "constraints") {
		t.Errorf("Summary() = %q, want constraints mentioned", got)
	}
}
