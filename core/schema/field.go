package schema

import (
	"fmt"
	"sort"
	"strings"
)

// FieldType represents the data-entry type of a field.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeTextarea FieldType = "textarea"
	FieldTypeNumber   FieldType = "number"
	FieldTypeDate     FieldType = "date"
	FieldTypeDropdown FieldType = "dropdown"
	FieldTypeCheckbox FieldType = "checkbox"
	FieldTypeToggle   FieldType = "toggle"
	FieldTypeFile     FieldType = "file"
)

// Valid reports whether t is a registered field type.
func (t FieldType) Valid() bool {
	_, ok := shapes[t]
	return ok
}

// Visibility maps each recognized role of a module to whether it may see a
// field. A valid matrix has an explicit entry for every role.
type Visibility map[string]bool

// Clone returns a copy of v.
func (v Visibility) Clone() Visibility {
	if v == nil {
		return nil
	}
	out := make(Visibility, len(v))
	for role, ok := range v {
		out[role] = ok
	}
	return out
}

// Visible returns the roles that may see the field, sorted.
func (v Visibility) Visible() []string {
	var roles []string
	for role, ok := range v {
		if ok {
			roles = append(roles, role)
		}
	}
	sort.Strings(roles)
	return roles
}

// Equal reports whether both matrices hold the same entries.
func (v Visibility) Equal(o Visibility) bool {
	if len(v) != len(o) {
		return false
	}
	for role, ok := range v {
		other, exists := o[role]
		if !exists || other != ok {
			return false
		}
	}
	return true
}

// Validate checks that v has an entry for exactly the given roles.
func (v Visibility) Validate(roles []string) error {
	result := ValidationResult{Valid: true}
	known := make(map[string]bool, len(roles))
	for _, role := range roles {
		known[role] = true
		if _, ok := v[role]; !ok {
			result.AddError(role, "missing_role", nil, "visibility entry is missing")
		}
	}

	var unknown []string
	for role := range v {
		if !known[role] {
			unknown = append(unknown, role)
		}
	}
	sort.Strings(unknown)
	for _, role := range unknown {
		result.AddError(role, "unknown_role", nil, "is not a recognized role")
	}

	if !result.Valid {
		return &ValidationError{Field: "visibility", Message: "must list exactly the recognized roles", Causes: result.Errors}
	}
	return nil
}

// Field defines one data-entry field of a section.
type Field struct {
	// ID is opaque and stable for the life of the field.
	ID string `yaml:"id,omitempty" json:"id"`

	// Key is the machine name, unique within its section. Derived once from
	// Label at creation and never recomputed.
	Key string `yaml:"key,omitempty" json:"key"`

	Label string    `yaml:"label" json:"label" validate:"required"`
	Type  FieldType `yaml:"type" json:"type" validate:"required"`

	Constraints Constraints `yaml:"constraints,omitempty" json:"constraints"`
	Required    bool        `yaml:"required,omitempty" json:"required"`
	Visibility  Visibility  `yaml:"visibility" json:"visibility"`

	// System marks fields seeded by the module definition. They can be
	// reordered and have their visibility changed but are otherwise locked.
	System bool `yaml:"system,omitempty" json:"is_system"`

	// Order is the dense position of the field within its section.
	Order int `yaml:"order,omitempty" json:"order"`

	// Presentation hints.
	Placeholder string `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	Hint        string `yaml:"hint,omitempty" json:"hint,omitempty"`
}

// Clone returns a deep copy of the field.
func (f Field) Clone() Field {
	out := f
	out.Constraints = f.Constraints.Clone()
	out.Visibility = f.Visibility.Clone()
	return out
}

// Editable reports whether label, constraints and required may change.
func (f Field) Editable() bool {
	return !f.System
}

// Validate checks the field definition against the module's roles.
func (f Field) Validate(roles []string) error {
	name := f.Key
	if name == "" {
		name = f.Label
	}

	if strings.TrimSpace(f.Label) == "" {
		return NewValidationError("label", "label is required")
	}
	if !ValidKey(f.Key) {
		return NewValidationError(name, "key %q must be lower-case letters, digits and underscores", f.Key)
	}
	if !f.Type.Valid() {
		return NewValidationError(name, "unknown field type %q", f.Type)
	}
	if err := ValidateConstraints(f.Type, f.Constraints); err != nil {
		return prefixed(name, err)
	}
	if err := f.Visibility.Validate(roles); err != nil {
		return prefixed(name, err)
	}
	return nil
}

// prefixed rewrites a ValidationError so its Field names the offending field.
func prefixed(name string, err error) error {
	ve, ok := err.(*ValidationError)
	if !ok {
		return err
	}
	return &ValidationError{
		Field:   name,
		Message: fmt.Sprintf("%s: %s", ve.Field, ve.Message),
		Causes:  ve.Causes,
	}
}
