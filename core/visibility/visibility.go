// Package visibility resolves which fields a role may see.
//
// Lookups fail closed: a role with no entry in a field's matrix, including
// a role the module does not recognize, sees nothing.
package visibility

import (
	"sort"

	"github.com/artpar/fieldschema/core/schema"
)

// IsVisible reports whether role may see f.
func IsVisible(f schema.Field, role string) bool {
	if f.Visibility == nil {
		return false
	}
	return f.Visibility[role]
}

// FilterVisible returns copies of the fields role may see, sorted by order.
// The input is not modified.
func FilterVisible(fields []schema.Field, role string) []schema.Field {
	out := make([]schema.Field, 0, len(fields))
	for _, f := range fields {
		if IsVisible(f, role) {
			out = append(out, f.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Order < out[j].Order
	})
	return out
}

// VisibleSections returns the sections with only the fields role may see.
// Sections left with no fields are dropped.
func VisibleSections(sections []schema.Section, role string) []schema.Section {
	var out []schema.Section
	for _, s := range sections {
		fields := FilterVisible(s.Fields, role)
		if len(fields) == 0 {
			continue
		}
		sec := s
		sec.Fields = fields
		out = append(out, sec)
	}
	return out
}

// CanEdit reports whether an editor should offer edit and delete for f.
// Only custom fields are editable; system fields may still be reordered.
func CanEdit(f schema.Field) bool {
	return f.Editable()
}

// Audience returns, for each role, how many of the fields it may see.
func Audience(fields []schema.Field, roles []string) map[string]int {
	counts := make(map[string]int, len(roles))
	for _, role := range roles {
		counts[role] = 0
		for _, f := range fields {
			if IsVisible(f, role) {
				counts[role]++
			}
		}
	}
	return counts
}
