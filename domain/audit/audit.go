// Package audit provides value types for the schema change log.
// Entries are recorded after every applied mutation and never modified.
package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/artpar/fieldschema/core/schema"
)

// Action names match the event names published by schema stores.
const (
	ActionFieldAdded     = "field.added"
	ActionFieldEdited    = "field.edited"
	ActionFieldDeleted   = "field.deleted"
	ActionFieldReordered = "field.reordered"
	ActionSectionToggled = "section.toggled"
)

// Entry is one recorded schema change (immutable value type).
type Entry struct {
	ID        string
	Module    string
	Action    string
	SectionID string
	FieldID   string
	FieldKey  string
	Actor     string

	// Version is the snapshot version the change produced.
	Version int64

	Before *schema.Field
	After  *schema.Field

	At time.Time
}

// Filter narrows an audit listing. Zero values match everything.
type Filter struct {
	Module  string
	FieldID string
	Actor   string
	Since   time.Time

	// Limit caps the number of entries returned, newest first. 0 means no limit.
	Limit int
}

// Matches reports whether e passes the filter (ignoring Limit).
func (f Filter) Matches(e Entry) bool {
	if f.Module != "" && e.Module != f.Module {
		return false
	}
	if f.FieldID != "" && e.FieldID != f.FieldID {
		return false
	}
	if f.Actor != "" && e.Actor != f.Actor {
		return false
	}
	if !f.Since.IsZero() && e.At.Before(f.Since) {
		return false
	}
	return true
}

// Change is one attribute that differs between Before and After.
type Change struct {
	Attribute string
	Old       string
	New       string
}

// Changes lists the attributes an edit touched. Additions and deletions
// report no changes; use Summary for those.
func (e Entry) Changes() []Change {
	if e.Before == nil || e.After == nil {
		return nil
	}
	b, a := e.Before, e.After

	var out []Change
	add := func(attr, old, cur string) {
		if old != cur {
			out = append(out, Change{Attribute: attr, Old: old, New: cur})
		}
	}
	add("label", b.Label, a.Label)
	add("required", fmt.Sprint(b.Required), fmt.Sprint(a.Required))
	add("order", fmt.Sprint(b.Order), fmt.Sprint(a.Order))
	add("placeholder", b.Placeholder, a.Placeholder)
	add("hint", b.Hint, a.Hint)
	if !b.Constraints.Equal(a.Constraints) {
		add("constraints", describeConstraints(b.Constraints), describeConstraints(a.Constraints))
	}
	if !b.Visibility.Equal(a.Visibility) {
		add("visibility", strings.Join(b.Visibility.Visible(), ","), strings.Join(a.Visibility.Visible(), ","))
	}
	return out
}

// Summary returns a one-line description for log listings.
func (e Entry) Summary() string {
	switch e.Action {
	case ActionFieldAdded:
		if e.After != nil {
			return fmt.Sprintf("added %s field %q", e.After.Type, e.After.Label)
		}
	case ActionFieldDeleted:
		if e.Before != nil {
			return fmt.Sprintf("deleted field %q", e.Before.Label)
		}
	case ActionFieldReordered:
		if e.Before != nil && e.After != nil {
			return fmt.Sprintf("moved %q from position %d to %d", e.After.Label, e.Before.Order+1, e.After.Order+1)
		}
	case ActionSectionToggled:
		return fmt.Sprintf("toggled section %s", e.SectionID)
	case ActionFieldEdited:
		changes := e.Changes()
		parts := make([]string, 0, len(changes))
		for _, c := range changes {
			parts = append(parts, c.Attribute)
		}
		label := e.FieldKey
		if e.After != nil {
			label = e.After.Label
		}
		if len(parts) == 0 {
			return fmt.Sprintf("edited %q (no changes)", label)
		}
		return fmt.Sprintf("edited %q: %s", label, strings.Join(parts, ", "))
	}
	return e.Action
}

func describeConstraints(c schema.Constraints) string {
	keys := c.Keys()
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, string(k))
	}
	return strings.Join(parts, ",")
}
