package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Section is a named, ordered group of fields within a module, such as
// "Personal Information" under the teacher profile tab.
type Section struct {
	ID   string `yaml:"id" json:"id" validate:"required"`
	Name string `yaml:"name" json:"name" validate:"required"`

	// Tab groups sections on the same editor screen (profile, employment, ...).
	Tab string `yaml:"tab,omitempty" json:"tab,omitempty"`

	// Fields are kept sorted by Order; Order is the source of truth.
	Fields []Field `yaml:"fields" json:"fields" validate:"dive"`

	// Expanded is editor state only.
	Expanded bool `yaml:"expanded,omitempty" json:"expanded"`
}

// Clone returns a deep copy of the section.
func (s Section) Clone() Section {
	out := s
	out.Fields = make([]Field, len(s.Fields))
	for i, f := range s.Fields {
		out.Fields[i] = f.Clone()
	}
	return out
}

// Sorted returns a copy of the fields ordered by Order.
func (s Section) Sorted() []Field {
	fields := make([]Field, len(s.Fields))
	for i, f := range s.Fields {
		fields[i] = f.Clone()
	}
	sort.SliceStable(fields, func(i, j int) bool {
		return fields[i].Order < fields[j].Order
	})
	return fields
}

// IndexOf returns the slice index of the field with the given id, or -1.
func (s Section) IndexOf(fieldID string) int {
	for i, f := range s.Fields {
		if f.ID == fieldID {
			return i
		}
	}
	return -1
}

// FieldByKey returns the field with the given key.
func (s Section) FieldByKey(key string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f.Clone(), true
		}
	}
	return Field{}, false
}

// Renumber sorts Fields by Order (stable) and rewrites Order as 0..n-1.
func (s *Section) Renumber() {
	sort.SliceStable(s.Fields, func(i, j int) bool {
		return s.Fields[i].Order < s.Fields[j].Order
	})
	for i := range s.Fields {
		s.Fields[i].Order = i
	}
}

// Validate checks every section invariant: identity, valid fields, unique
// ids and keys, and a dense 0..n-1 order.
func (s Section) Validate(roles []string) error {
	if strings.TrimSpace(s.ID) == "" {
		return NewValidationError("section", "section id is required")
	}
	if strings.TrimSpace(s.Name) == "" {
		return NewValidationError(s.ID, "section name is required")
	}

	var errs []string
	ids := make(map[string]bool, len(s.Fields))
	keys := make(map[string]bool, len(s.Fields))
	orders := make(map[int]bool, len(s.Fields))

	for _, f := range s.Fields {
		if err := f.Validate(roles); err != nil {
			errs = append(errs, err.Error())
		}
		if f.ID == "" {
			errs = append(errs, fmt.Sprintf("field %q has no id", f.Key))
		} else if ids[f.ID] {
			errs = append(errs, fmt.Sprintf("duplicate field id %q", f.ID))
		}
		ids[f.ID] = true

		if keys[f.Key] {
			errs = append(errs, fmt.Sprintf("duplicate field key %q", f.Key))
		}
		keys[f.Key] = true

		if f.Order < 0 || f.Order >= len(s.Fields) || orders[f.Order] {
			errs = append(errs, fmt.Sprintf("field %q has order %d outside dense range 0..%d", f.Key, f.Order, len(s.Fields)-1))
		}
		orders[f.Order] = true
	}

	if len(errs) > 0 {
		return NewValidationError(s.ID, "%s", strings.Join(errs, "; "))
	}
	return nil
}
