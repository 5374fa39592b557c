package schema

import (
	"fmt"
	"strings"
)

// Module is the configuration of one business entity's field schema
// (class, student, teacher, ...). It is static input: the recognized roles
// and the seed system fields.
type Module struct {
	// Name identifies the module (e.g., "teacher").
	Name string `yaml:"module" json:"module" validate:"required,identifier"`

	// Description for documentation.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Roles is the closed set of audiences for visibility matrices.
	Roles []string `yaml:"roles" json:"roles" validate:"required,min=1,unique,dive,identifier"`

	// Sections holds the seed system fields per section.
	Sections []Section `yaml:"sections" json:"sections" validate:"dive"`
}

// HasRole reports whether role is recognized by the module.
func (m Module) HasRole(role string) bool {
	for _, r := range m.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Tabs returns the distinct section tabs in first-appearance order.
func (m Module) Tabs() []string {
	var tabs []string
	seen := make(map[string]bool)
	for _, s := range m.Sections {
		if s.Tab == "" || seen[s.Tab] {
			continue
		}
		seen[s.Tab] = true
		tabs = append(tabs, s.Tab)
	}
	return tabs
}

// SeedField prepares one seed field: key derived from the label when absent,
// id defaulted to "<section>.<key>", marked as system, placed at order.
func SeedField(sectionID string, f Field, order int) Field {
	out := f.Clone()
	if out.Key == "" {
		out.Key = DeriveKey(out.Label)
	}
	if out.ID == "" {
		out.ID = sectionID + "." + out.Key
	}
	out.System = true
	out.Order = order
	out.Constraints = out.Constraints.Normalize()
	return out
}

// Seed returns the module's sections with every seed field prepared and
// validated. It is the initial state of a schema store.
func (m Module) Seed() ([]Section, error) {
	sections := make([]Section, 0, len(m.Sections))
	ids := make(map[string]bool, len(m.Sections))
	names := make(map[string]bool, len(m.Sections))
	fieldIDs := make(map[string]string)

	var errs []string
	for _, s := range m.Sections {
		if ids[s.ID] {
			errs = append(errs, fmt.Sprintf("duplicate section id %q", s.ID))
		}
		ids[s.ID] = true
		if names[s.Name] {
			errs = append(errs, fmt.Sprintf("duplicate section name %q", s.Name))
		}
		names[s.Name] = true

		seeded := Section{ID: s.ID, Name: s.Name, Tab: s.Tab, Expanded: true}
		seeded.Fields = make([]Field, 0, len(s.Fields))
		for i, f := range s.Fields {
			sf := SeedField(s.ID, f, i)
			if owner, dup := fieldIDs[sf.ID]; dup {
				errs = append(errs, fmt.Sprintf("field id %q used in sections %q and %q", sf.ID, owner, s.ID))
			}
			fieldIDs[sf.ID] = s.ID
			seeded.Fields = append(seeded.Fields, sf)
		}

		if err := seeded.Validate(m.Roles); err != nil {
			errs = append(errs, err.Error())
		}
		sections = append(sections, seeded)
	}

	if len(errs) > 0 {
		return nil, NewValidationError(m.Name, "invalid seed: %s", strings.Join(errs, "; "))
	}
	return sections, nil
}
