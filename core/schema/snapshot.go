package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Snapshot is the serializable state of one module's schema store. It is
// what persistence adapters save after every successful mutation.
type Snapshot struct {
	Module    string    `json:"module" yaml:"module"`
	Roles     []string  `json:"roles" yaml:"roles"`
	Version   int64     `json:"version" yaml:"version"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
	Sections  []Section `json:"sections" yaml:"sections"`
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Roles = append([]string(nil), s.Roles...)
	out.Sections = make([]Section, len(s.Sections))
	for i, sec := range s.Sections {
		out.Sections[i] = sec.Clone()
	}
	return out
}

// Section returns the section with the given id.
func (s Snapshot) Section(id string) (Section, bool) {
	for _, sec := range s.Sections {
		if sec.ID == id {
			return sec.Clone(), true
		}
	}
	return Section{}, false
}

// FieldCount returns the number of fields across all sections.
func (s Snapshot) FieldCount() int {
	n := 0
	for _, sec := range s.Sections {
		n += len(sec.Fields)
	}
	return n
}

// Validate checks every invariant of the snapshot.
func (s Snapshot) Validate() error {
	if s.Module == "" {
		return NewValidationError("module", "module name is required")
	}
	if len(s.Roles) == 0 {
		return NewValidationError(s.Module, "at least one role is required")
	}

	var errs []string
	ids := make(map[string]bool, len(s.Sections))
	names := make(map[string]bool, len(s.Sections))
	fieldIDs := make(map[string]bool)
	for _, sec := range s.Sections {
		if ids[sec.ID] {
			errs = append(errs, fmt.Sprintf("duplicate section id %q", sec.ID))
		}
		ids[sec.ID] = true
		if names[sec.Name] {
			errs = append(errs, fmt.Sprintf("duplicate section name %q", sec.Name))
		}
		names[sec.Name] = true

		for _, f := range sec.Fields {
			if fieldIDs[f.ID] {
				errs = append(errs, fmt.Sprintf("field id %q appears in more than one section", f.ID))
			}
			fieldIDs[f.ID] = true
		}

		if err := sec.Validate(s.Roles); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return NewValidationError(s.Module, "invalid snapshot: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Encode serializes the snapshot as JSON.
func (s Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// DecodeSnapshot parses and validates a JSON snapshot.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	for i := range snap.Sections {
		if snap.Sections[i].Fields == nil {
			snap.Sections[i].Fields = []Field{}
		}
	}
	if err := snap.Validate(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
