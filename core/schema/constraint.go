package schema

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"
)

// DateLayout is the format of date values and date bounds.
const DateLayout = "2006-01-02"

// ConstraintKey names one entry of a constraints bag.
type ConstraintKey string

const (
	// Choice constraints
	KeyOptions       ConstraintKey = "options"
	KeyAllowMultiple ConstraintKey = "allow_multiple"

	// Numeric constraints
	KeyMin ConstraintKey = "min"
	KeyMax ConstraintKey = "max"

	// String constraints
	KeyMaxLength ConstraintKey = "max_length"

	// Date constraints
	KeyMinDate ConstraintKey = "min_date"
	KeyMaxDate ConstraintKey = "max_date"

	// File constraints
	KeyAllowedExtensions ConstraintKey = "allowed_extensions"
	KeyMaxSizeBytes      ConstraintKey = "max_size_bytes"

	// Boolean constraints
	KeyDefaultChecked ConstraintKey = "default_checked"
)

// Constraints is the type-specific bag attached to a field. Which keys may be
// set depends on the field type; see Describe.
type Constraints struct {
	Options           []string `yaml:"options,omitempty" json:"options,omitempty"`
	AllowMultiple     bool     `yaml:"allow_multiple,omitempty" json:"allow_multiple,omitempty"`
	Min               *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max               *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	MaxLength         *int     `yaml:"max_length,omitempty" json:"max_length,omitempty"`
	MinDate           string   `yaml:"min_date,omitempty" json:"min_date,omitempty"`
	MaxDate           string   `yaml:"max_date,omitempty" json:"max_date,omitempty"`
	AllowedExtensions []string `yaml:"allowed_extensions,omitempty" json:"allowed_extensions,omitempty"`
	MaxSizeBytes      *int64   `yaml:"max_size_bytes,omitempty" json:"max_size_bytes,omitempty"`
	DefaultChecked    bool     `yaml:"default_checked,omitempty" json:"default_checked,omitempty"`
}

// Keys returns the keys that carry a value, in declaration order.
func (c Constraints) Keys() []ConstraintKey {
	var keys []ConstraintKey
	if len(c.Options) > 0 {
		keys = append(keys, KeyOptions)
	}
	if c.AllowMultiple {
		keys = append(keys, KeyAllowMultiple)
	}
	if c.Min != nil {
		keys = append(keys, KeyMin)
	}
	if c.Max != nil {
		keys = append(keys, KeyMax)
	}
	if c.MaxLength != nil {
		keys = append(keys, KeyMaxLength)
	}
	if c.MinDate != "" {
		keys = append(keys, KeyMinDate)
	}
	if c.MaxDate != "" {
		keys = append(keys, KeyMaxDate)
	}
	if len(c.AllowedExtensions) > 0 {
		keys = append(keys, KeyAllowedExtensions)
	}
	if c.MaxSizeBytes != nil {
		keys = append(keys, KeyMaxSizeBytes)
	}
	if c.DefaultChecked {
		keys = append(keys, KeyDefaultChecked)
	}
	return keys
}

// Has reports whether key k carries a value.
func (c Constraints) Has(k ConstraintKey) bool {
	for _, key := range c.Keys() {
		if key == k {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the bag.
func (c Constraints) Clone() Constraints {
	out := c
	if c.Options != nil {
		out.Options = append([]string(nil), c.Options...)
	}
	if c.AllowedExtensions != nil {
		out.AllowedExtensions = append([]string(nil), c.AllowedExtensions...)
	}
	if c.Min != nil {
		v := *c.Min
		out.Min = &v
	}
	if c.Max != nil {
		v := *c.Max
		out.Max = &v
	}
	if c.MaxLength != nil {
		v := *c.MaxLength
		out.MaxLength = &v
	}
	if c.MaxSizeBytes != nil {
		v := *c.MaxSizeBytes
		out.MaxSizeBytes = &v
	}
	return out
}

// Equal reports whether both bags hold the same values. Empty and nil lists
// are treated as equal.
func (c Constraints) Equal(o Constraints) bool {
	a, b := c.Normalize(), o.Normalize()
	if len(a.Options) == 0 {
		a.Options = nil
	}
	if len(b.Options) == 0 {
		b.Options = nil
	}
	if len(a.AllowedExtensions) == 0 {
		a.AllowedExtensions = nil
	}
	if len(b.AllowedExtensions) == 0 {
		b.AllowedExtensions = nil
	}
	return reflect.DeepEqual(a, b)
}

// Normalize returns a copy with file extensions lower-cased and stripped of
// surrounding whitespace and leading dots. Options are kept verbatim.
func (c Constraints) Normalize() Constraints {
	out := c.Clone()
	for i, ext := range out.AllowedExtensions {
		out.AllowedExtensions[i] = NormalizeExtension(ext)
	}
	return out
}

// NormalizeExtension lower-cases ext and removes whitespace and a leading dot.
func NormalizeExtension(ext string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
}

// ConstraintError represents a single constraint failure, either in a
// constraints bag or in a submitted value.
type ConstraintError struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Value      any    `json:"value,omitempty"`
	Message    string `json:"message"`
}

func (e ConstraintError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult holds all validation errors for a request.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ConstraintError `json:"errors,omitempty"`
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(field, constraint string, value any, message string) {
	r.Valid = false
	r.Errors = append(r.Errors, ConstraintError{
		Field:      field,
		Constraint: constraint,
		Value:      value,
		Message:    message,
	})
}

// Error returns a combined error message.
func (r ValidationResult) Error() string {
	if r.Valid {
		return ""
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// ErrorsFor returns the errors reported against one field.
func (r ValidationResult) ErrorsFor(field string) []ConstraintError {
	var out []ConstraintError
	for _, e := range r.Errors {
		if e.Field == field {
			out = append(out, e)
		}
	}
	return out
}

func checkOptions(c Constraints) []ConstraintError {
	var errs []ConstraintError
	seen := make(map[string]bool, len(c.Options))
	for i, opt := range c.Options {
		if strings.TrimSpace(opt) == "" {
			errs = append(errs, ConstraintError{
				Field: string(KeyOptions), Constraint: "not_empty", Value: i,
				Message: fmt.Sprintf("option %d is blank", i+1),
			})
			continue
		}
		if seen[opt] {
			errs = append(errs, ConstraintError{
				Field: string(KeyOptions), Constraint: "unique", Value: opt,
				Message: fmt.Sprintf("duplicate option %q", opt),
			})
		}
		seen[opt] = true
	}
	return errs
}

func checkFinite(k ConstraintKey, v *float64) []ConstraintError {
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return []ConstraintError{{Field: string(k), Constraint: "finite", Value: *v, Message: "must be a finite number"}}
	}
	return nil
}

func checkMin(c Constraints) []ConstraintError {
	return checkFinite(KeyMin, c.Min)
}

func checkMax(c Constraints) []ConstraintError {
	if errs := checkFinite(KeyMax, c.Max); errs != nil {
		return errs
	}
	if c.Min != nil && !math.IsNaN(*c.Min) && *c.Min > *c.Max {
		return []ConstraintError{{
			Field: string(KeyMax), Constraint: "range", Value: *c.Max,
			Message: fmt.Sprintf("must be at least min (%v)", *c.Min),
		}}
	}
	return nil
}

func checkMaxLength(c Constraints) []ConstraintError {
	if *c.MaxLength <= 0 {
		return []ConstraintError{{Field: string(KeyMaxLength), Constraint: "positive", Value: *c.MaxLength, Message: "must be a positive integer"}}
	}
	return nil
}

func checkDate(k ConstraintKey, v string) (time.Time, []ConstraintError) {
	t, err := time.Parse(DateLayout, v)
	if err != nil {
		return time.Time{}, []ConstraintError{{Field: string(k), Constraint: "format", Value: v, Message: "must be a date in YYYY-MM-DD format"}}
	}
	return t, nil
}

func checkMinDate(c Constraints) []ConstraintError {
	_, errs := checkDate(KeyMinDate, c.MinDate)
	return errs
}

func checkMaxDate(c Constraints) []ConstraintError {
	max, errs := checkDate(KeyMaxDate, c.MaxDate)
	if errs != nil || c.MinDate == "" {
		return errs
	}
	min, err := time.Parse(DateLayout, c.MinDate)
	if err == nil && min.After(max) {
		return []ConstraintError{{
			Field: string(KeyMaxDate), Constraint: "range", Value: c.MaxDate,
			Message: fmt.Sprintf("must not be before min_date (%s)", c.MinDate),
		}}
	}
	return nil
}

func checkExtensions(c Constraints) []ConstraintError {
	var errs []ConstraintError
	seen := make(map[string]bool, len(c.AllowedExtensions))
	for i, raw := range c.AllowedExtensions {
		ext := NormalizeExtension(raw)
		if ext == "" {
			errs = append(errs, ConstraintError{
				Field: string(KeyAllowedExtensions), Constraint: "not_empty", Value: i,
				Message: fmt.Sprintf("extension %d is blank", i+1),
			})
			continue
		}
		if !isAlnum(ext) {
			errs = append(errs, ConstraintError{
				Field: string(KeyAllowedExtensions), Constraint: "format", Value: raw,
				Message: fmt.Sprintf("extension %q must be alphanumeric", raw),
			})
			continue
		}
		if seen[ext] {
			errs = append(errs, ConstraintError{
				Field: string(KeyAllowedExtensions), Constraint: "unique", Value: raw,
				Message: fmt.Sprintf("duplicate extension %q", ext),
			})
		}
		seen[ext] = true
	}
	return errs
}

func checkMaxSize(c Constraints) []ConstraintError {
	if *c.MaxSizeBytes <= 0 {
		return []ConstraintError{{Field: string(KeyMaxSizeBytes), Constraint: "positive", Value: *c.MaxSizeBytes, Message: "must be a positive integer"}}
	}
	return nil
}

func isAlnum(s string) bool {
	for _, c := range s {
		if !isLetter(c) && !isDigit(c) {
			return false
		}
	}
	return s != ""
}
