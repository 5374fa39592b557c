package schema

import "fmt"

// ConstraintRule describes one constraint key accepted by a field type.
type ConstraintRule struct {
	Key      ConstraintKey
	Required bool

	// Check validates the key. It receives the whole bag so cross-key rules
	// (min <= max) can be expressed on the later key. Only called when the key
	// is set.
	Check func(Constraints) []ConstraintError
}

// ConstraintShape is the set of constraint keys a field type accepts.
type ConstraintShape struct {
	Type  FieldType
	Rules []ConstraintRule
}

// Accepts reports whether the shape recognizes key k.
func (s ConstraintShape) Accepts(k ConstraintKey) bool {
	_, ok := s.Rule(k)
	return ok
}

// Rule returns the rule for key k.
func (s ConstraintShape) Rule(k ConstraintKey) (ConstraintRule, bool) {
	for _, r := range s.Rules {
		if r.Key == k {
			return r, true
		}
	}
	return ConstraintRule{}, false
}

// fieldTypes lists the registered types in presentation order.
var fieldTypes = []FieldType{
	FieldTypeText,
	FieldTypeTextarea,
	FieldTypeNumber,
	FieldTypeDate,
	FieldTypeDropdown,
	FieldTypeCheckbox,
	FieldTypeToggle,
	FieldTypeFile,
}

// shapes is the closed registry of field types. Adding a type is a code change.
var shapes = map[FieldType]ConstraintShape{
	FieldTypeText: {Type: FieldTypeText, Rules: []ConstraintRule{
		{Key: KeyMaxLength, Check: checkMaxLength},
	}},
	FieldTypeTextarea: {Type: FieldTypeTextarea, Rules: []ConstraintRule{
		{Key: KeyMaxLength, Check: checkMaxLength},
	}},
	FieldTypeNumber: {Type: FieldTypeNumber, Rules: []ConstraintRule{
		{Key: KeyMin, Check: checkMin},
		{Key: KeyMax, Check: checkMax},
	}},
	FieldTypeDate: {Type: FieldTypeDate, Rules: []ConstraintRule{
		{Key: KeyMinDate, Check: checkMinDate},
		{Key: KeyMaxDate, Check: checkMaxDate},
	}},
	FieldTypeDropdown: {Type: FieldTypeDropdown, Rules: []ConstraintRule{
		{Key: KeyOptions, Required: true, Check: checkOptions},
		{Key: KeyAllowMultiple},
	}},
	FieldTypeCheckbox: {Type: FieldTypeCheckbox, Rules: []ConstraintRule{
		{Key: KeyDefaultChecked},
	}},
	FieldTypeToggle: {Type: FieldTypeToggle, Rules: []ConstraintRule{
		{Key: KeyDefaultChecked},
	}},
	FieldTypeFile: {Type: FieldTypeFile, Rules: []ConstraintRule{
		{Key: KeyAllowedExtensions, Check: checkExtensions},
		{Key: KeyMaxSizeBytes, Check: checkMaxSize},
		{Key: KeyAllowMultiple},
	}},
}

// FieldTypes returns every registered field type.
func FieldTypes() []FieldType {
	return append([]FieldType(nil), fieldTypes...)
}

// Describe returns the constraint shape of field type t.
func Describe(t FieldType) (ConstraintShape, bool) {
	s, ok := shapes[t]
	return s, ok
}

// ValidateConstraints checks c against the shape declared for t. It reports
// every problem at once: unknown keys, missing required keys and per-key rule
// failures.
func ValidateConstraints(t FieldType, c Constraints) error {
	shape, ok := Describe(t)
	if !ok {
		return NewValidationError("type", "unknown field type %q", t)
	}

	result := ValidationResult{Valid: true}

	for _, k := range c.Keys() {
		if !shape.Accepts(k) {
			result.AddError(string(k), "accepted", nil, fmt.Sprintf("not accepted by %s fields", t))
		}
	}

	for _, rule := range shape.Rules {
		if !c.Has(rule.Key) {
			if rule.Required {
				result.AddError(string(rule.Key), "required", nil, fmt.Sprintf("is required for %s fields", t))
			}
			continue
		}
		if rule.Check == nil {
			continue
		}
		if errs := rule.Check(c); len(errs) > 0 {
			result.Valid = false
			result.Errors = append(result.Errors, errs...)
		}
	}

	if !result.Valid {
		return &ValidationError{Field: "constraints", Message: fmt.Sprintf("invalid constraints for %s field", t), Causes: result.Errors}
	}
	return nil
}
