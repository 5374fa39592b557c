// Package validation checks submitted values against field definitions.
// Definition-level checks (constraints bags, visibility) live in schema;
// this package covers what a form submits.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/artpar/fieldschema/core/schema"
)

// File describes an uploaded file.
type File struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Ext returns the normalized extension of the file name.
func (f File) Ext() string {
	return schema.NormalizeExtension(path.Ext(f.Name))
}

// Validator validates submitted records against a fixed set of fields.
type Validator struct {
	fields []schema.Field
	byKey  map[string]schema.Field
}

// New creates a validator for the given fields.
func New(fields []schema.Field) *Validator {
	v := &Validator{}
	v.UpdateFields(fields)
	return v
}

// UpdateFields replaces the validator's field set.
func (v *Validator) UpdateFields(fields []schema.Field) {
	v.fields = make([]schema.Field, len(fields))
	v.byKey = make(map[string]schema.Field, len(fields))
	for i, f := range fields {
		v.fields[i] = f.Clone()
		v.byKey[f.Key] = v.fields[i]
	}
}

// Validate checks a complete submission. Unknown keys are rejected and
// every field is checked, so missing required values are reported.
func (v *Validator) Validate(data map[string]any) schema.ValidationResult {
	result := schema.ValidationResult{Valid: true}
	v.rejectUnknown(&result, data)

	for _, f := range v.fields {
		addValueErrors(&result, ValidateValue(f, data[f.Key]))
	}
	return result
}

// ValidatePartial checks only the keys present in data. Unknown keys are
// still rejected.
func (v *Validator) ValidatePartial(data map[string]any) schema.ValidationResult {
	result := schema.ValidationResult{Valid: true}
	v.rejectUnknown(&result, data)

	for _, f := range v.fields {
		value, ok := data[f.Key]
		if !ok {
			continue
		}
		addValueErrors(&result, ValidateValue(f, value))
	}
	return result
}

func (v *Validator) rejectUnknown(result *schema.ValidationResult, data map[string]any) {
	var unknown []string
	for key := range data {
		if _, ok := v.byKey[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		result.AddError(key, "unknown_field", key,
			fmt.Sprintf("unknown field '%s' - not defined in schema", key))
	}
}

func addValueErrors(result *schema.ValidationResult, err error) {
	var ve *schema.ValueError
	if errors.As(err, &ve) {
		result.Valid = false
		result.Errors = append(result.Errors, ve.Errors...)
	}
}

// ValidateRecord validates a complete submission against fields.
func ValidateRecord(fields []schema.Field, data map[string]any) schema.ValidationResult {
	return New(fields).Validate(data)
}

// ValidateValue checks one value against f. It returns nil or a
// *schema.ValueError listing every failed check.
//
// Empty means nil, a blank string or an empty list. A boolean false is a
// value, so a required checkbox accepts false.
func ValidateValue(f schema.Field, value any) error {
	result := schema.ValidationResult{Valid: true}

	if isEmpty(value) {
		if f.Required {
			result.AddError(f.Key, "required", nil, "field is required")
		}
		return asError(f, result)
	}

	switch f.Type {
	case schema.FieldTypeText, schema.FieldTypeTextarea:
		validateText(&result, f, value)
	case schema.FieldTypeNumber:
		validateNumber(&result, f, value)
	case schema.FieldTypeDate:
		validateDate(&result, f, value)
	case schema.FieldTypeDropdown:
		validateDropdown(&result, f, value)
	case schema.FieldTypeCheckbox, schema.FieldTypeToggle:
		if _, ok := toBool(value); !ok {
			result.AddError(f.Key, "type", value, "must be a boolean")
		}
	case schema.FieldTypeFile:
		validateFile(&result, f, value)
	default:
		result.AddError(f.Key, "type", value, fmt.Sprintf("unknown field type %q", f.Type))
	}

	return asError(f, result)
}

func asError(f schema.Field, result schema.ValidationResult) error {
	if result.Valid {
		return nil
	}
	return &schema.ValueError{Field: f.Key, Errors: result.Errors}
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []string:
		return len(v) == 0
	case []any:
		return len(v) == 0
	case []File:
		return len(v) == 0
	}
	return false
}

func validateText(result *schema.ValidationResult, f schema.Field, value any) {
	s, ok := value.(string)
	if !ok {
		result.AddError(f.Key, "type", value, "must be a string")
		return
	}
	if max := f.Constraints.MaxLength; max != nil && utf8.RuneCountInString(s) > *max {
		result.AddError(f.Key, "max_length", s, fmt.Sprintf("must be at most %d characters", *max))
	}
}

func validateNumber(result *schema.ValidationResult, f schema.Field, value any) {
	n, ok := toFloat(value)
	if !ok {
		result.AddError(f.Key, "type", value, "must be a number")
		return
	}
	if min := f.Constraints.Min; min != nil && n < *min {
		result.AddError(f.Key, "min", n, fmt.Sprintf("must be at least %v", *min))
	}
	if max := f.Constraints.Max; max != nil && n > *max {
		result.AddError(f.Key, "max", n, fmt.Sprintf("must be at most %v", *max))
	}
}

func validateDate(result *schema.ValidationResult, f schema.Field, value any) {
	d, ok := toDate(value)
	if !ok {
		result.AddError(f.Key, "type", value, "must be a date in YYYY-MM-DD format")
		return
	}
	// YYYY-MM-DD compares correctly as a string.
	if min := f.Constraints.MinDate; min != "" && d < min {
		result.AddError(f.Key, "min_date", d, fmt.Sprintf("must be on or after %s", min))
	}
	if max := f.Constraints.MaxDate; max != "" && d > max {
		result.AddError(f.Key, "max_date", d, fmt.Sprintf("must be on or before %s", max))
	}
}

func validateDropdown(result *schema.ValidationResult, f schema.Field, value any) {
	var selected []string
	if s, ok := value.(string); ok {
		selected = []string{s}
	} else if list, ok := toStrings(value); ok {
		if !f.Constraints.AllowMultiple {
			result.AddError(f.Key, "allow_multiple", value, "only one option may be selected")
			return
		}
		selected = list
	} else {
		result.AddError(f.Key, "type", value, "must be one of the options")
		return
	}

	for _, s := range selected {
		if !containsString(f.Constraints.Options, s) {
			result.AddError(f.Key, "options", s,
				fmt.Sprintf("must be one of: %s", strings.Join(f.Constraints.Options, ", ")))
		}
	}
}

func validateFile(result *schema.ValidationResult, f schema.Field, value any) {
	files, multiple, ok := toFiles(value)
	if !ok {
		result.AddError(f.Key, "type", value, "must be a file")
		return
	}
	if multiple && !f.Constraints.AllowMultiple {
		result.AddError(f.Key, "allow_multiple", len(files), "only one file may be attached")
		return
	}

	allowed := f.Constraints.Normalize().AllowedExtensions
	for _, file := range files {
		if strings.TrimSpace(file.Name) == "" {
			result.AddError(f.Key, "type", file, "file name is required")
			continue
		}
		if len(allowed) > 0 && !containsString(allowed, file.Ext()) {
			result.AddError(f.Key, "allowed_extensions", file.Name,
				fmt.Sprintf("file type must be one of: %s", strings.Join(allowed, ", ")))
		}
		if file.Size < 0 {
			result.AddError(f.Key, "type", file.Size, "file size cannot be negative")
		}
		if max := f.Constraints.MaxSizeBytes; max != nil && file.Size > *max {
			result.AddError(f.Key, "max_size_bytes", file.Size,
				fmt.Sprintf("file %s exceeds %d bytes", file.Name, *max))
		}
	}
}

func toFloat(value any) (float64, bool) {
	var n float64
	switch v := value.(type) {
	case int:
		n = float64(v)
	case int8:
		n = float64(v)
	case int16:
		n = float64(v)
	case int32:
		n = float64(v)
	case int64:
		n = float64(v)
	case uint:
		n = float64(v)
	case uint8:
		n = float64(v)
	case uint16:
		n = float64(v)
	case uint32:
		n = float64(v)
	case uint64:
		n = float64(v)
	case float32:
		n = float64(v)
	case float64:
		n = v
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func toDate(value any) (string, bool) {
	switch v := value.(type) {
	case time.Time:
		return v.Format(schema.DateLayout), true
	case string:
		t, err := time.Parse(schema.DateLayout, strings.TrimSpace(v))
		if err != nil {
			return "", false
		}
		return t.Format(schema.DateLayout), true
	}
	return "", false
}

func toBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

func toStrings(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

// toFiles reports the files in value and whether it was a list.
func toFiles(value any) ([]File, bool, bool) {
	switch v := value.(type) {
	case File:
		return []File{v}, false, true
	case *File:
		if v == nil {
			return nil, false, false
		}
		return []File{*v}, false, true
	case string:
		return []File{{Name: v}}, false, true
	case []File:
		return v, true, true
	case []string:
		out := make([]File, len(v))
		for i, name := range v {
			out[i] = File{Name: name}
		}
		return out, true, true
	case []any:
		out := make([]File, 0, len(v))
		for _, item := range v {
			files, multiple, ok := toFiles(item)
			if !ok || multiple {
				return nil, false, false
			}
			out = append(out, files...)
		}
		return out, true, true
	}
	return nil, false, false
}

// containsString checks if a string is in a slice.
func containsString(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
