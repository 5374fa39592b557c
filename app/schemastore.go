// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/artpar/fieldschema/core/events"
	"github.com/artpar/fieldschema/core/schema"
	"github.com/artpar/fieldschema/ports"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Operation names used in logs, metrics and permission errors.
const (
	OpAdd     = "add"
	OpEdit    = "edit"
	OpDelete  = "delete"
	OpReorder = "reorder"
	OpToggle  = "toggle"
)

// FieldInput describes a custom field to add.
type FieldInput struct {
	Label       string
	Type        schema.FieldType
	Constraints schema.Constraints
	Required    bool
	Visibility  schema.Visibility
	Placeholder string
	Hint        string
}

// FieldPatch describes an edit. Nil members are left unchanged. There is no
// key: keys are frozen at creation.
type FieldPatch struct {
	Label       *string
	Type        *schema.FieldType
	Constraints *schema.Constraints
	Required    *bool
	Visibility  schema.Visibility
	Placeholder *string
	Hint        *string
}

// Recorder makes a schema change durable. The store calls it before the
// change becomes visible; an error cancels the change.
type Recorder interface {
	Record(ctx context.Context, ev events.Event) error
}

// SchemaStoreDeps contains dependencies for SchemaStore. All are optional.
type SchemaStoreDeps struct {
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Events   *events.Bus
	Recorder Recorder // nil keeps the schema in memory only
	Metrics  ports.MutationMetrics
	Logger   zerolog.Logger
}

// SchemaStore owns the field schema of one module. It is the only writer of
// that schema: every mutation is serialized, validated against a copy of the
// affected section and either committed whole or rejected with the store
// unchanged.
//
// Each change is handed to the Recorder before it is applied, then published
// on the bus with the new snapshot. Recorder and bus handlers run while the
// store is locked and must not call back into it.
type SchemaStore struct {
	mu       sync.Mutex
	module   string
	roles    []string
	sections []schema.Section
	version  int64
	updated  time.Time

	clock   ports.Clock
	idGen   ports.IDGenerator
	events   *events.Bus
	recorder Recorder
	metrics  ports.MutationMetrics
	logger   zerolog.Logger
}

// NewSchemaStore creates a store holding the module's seed system fields.
func NewSchemaStore(mod schema.Module, deps SchemaStoreDeps) (*SchemaStore, error) {
	sections, err := mod.Seed()
	if err != nil {
		return nil, err
	}

	s := newStore(mod, deps)
	s.sections = sections
	s.updated = s.clock.Now()
	s.metrics.Fields(s.module, s.fieldCount())
	return s, nil
}

// RestoreSchemaStore creates a store from a persisted snapshot. Seed system
// fields missing from the snapshot (added to the module definition since it
// was saved) are appended to their sections. System fields no longer in the
// definition become custom fields so they can be edited or deleted.
func RestoreSchemaStore(mod schema.Module, snap schema.Snapshot, deps SchemaStoreDeps) (*SchemaStore, error) {
	if snap.Module != mod.Name {
		return nil, schema.NewValidationError("module", "snapshot belongs to module %q, not %q", snap.Module, mod.Name)
	}
	if !sameRoles(snap.Roles, mod.Roles) {
		return nil, schema.NewValidationError("roles", "snapshot roles %v do not match module roles %v", snap.Roles, mod.Roles)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	seed, err := mod.Seed()
	if err != nil {
		return nil, err
	}
	sections, changed, err := reconcile(snap.Clone().Sections, seed)
	if err != nil {
		return nil, err
	}

	s := newStore(mod, deps)
	s.sections = sections
	s.version = snap.Version
	s.updated = snap.UpdatedAt
	if changed {
		s.version++
		s.updated = s.clock.Now()
		s.logger.Info().Int64("version", s.version).Msg("snapshot reconciled with module seed")
	}
	s.metrics.Fields(s.module, s.fieldCount())
	return s, nil
}

func newStore(mod schema.Module, deps SchemaStoreDeps) *SchemaStore {
	s := &SchemaStore{
		module:  mod.Name,
		roles:   append([]string(nil), mod.Roles...),
		clock:   deps.Clock,
		idGen:   deps.IDGen,
		events:   deps.Events,
		recorder: deps.Recorder,
		metrics:  deps.Metrics,
		logger:   deps.Logger.With().Str("service", "schema").Str("module", mod.Name).Logger(),
	}
	if s.clock == nil {
		s.clock = systemClock{}
	}
	if s.idGen == nil {
		s.idGen = uuidGen{}
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	return s
}

// reconcile appends seed fields and sections absent from sections and
// demotes system fields the seed no longer has.
func reconcile(sections, seed []schema.Section) ([]schema.Section, bool, error) {
	changed := false

	seeded := make(map[string]bool)
	for _, sec := range seed {
		for _, f := range sec.Fields {
			seeded[f.ID] = true
		}
	}
	for i := range sections {
		for j := range sections[i].Fields {
			if f := &sections[i].Fields[j]; f.System && !seeded[f.ID] {
				f.System = false
				changed = true
			}
		}
	}

	for _, seedSec := range seed {
		idx := -1
		for i, sec := range sections {
			if sec.ID == seedSec.ID {
				idx = i
				break
			}
		}
		if idx < 0 {
			sections = append(sections, seedSec.Clone())
			changed = true
			continue
		}

		sec := &sections[idx]
		for _, sf := range seedSec.Fields {
			if sec.IndexOf(sf.ID) >= 0 {
				continue
			}
			if existing, ok := sec.FieldByKey(sf.Key); ok {
				if existing.System {
					continue
				}
				return nil, false, schema.NewValidationError(sf.Key,
					"system field %q conflicts with custom field %q (%s) in section %q", sf.ID, existing.Label, existing.ID, sec.ID)
			}
			f := sf.Clone()
			f.Order = len(sec.Fields)
			sec.Fields = append(sec.Fields, f)
			changed = true
		}
	}
	return sections, changed, nil
}

func sameRoles(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, r := range a {
		set[r] = true
	}
	for _, r := range b {
		if !set[r] {
			return false
		}
	}
	return true
}

// AddField appends a custom field to a section.
func (s *SchemaStore) AddField(ctx context.Context, sectionID string, in FieldInput) (schema.Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	si, err := s.sectionIndex(sectionID)
	if err != nil {
		return schema.Field{}, s.reject(OpAdd, sectionID, "", err)
	}
	sec := s.sections[si].Clone()

	label := strings.TrimSpace(in.Label)
	if label == "" {
		return schema.Field{}, s.reject(OpAdd, sectionID, "", schema.NewValidationError("label", "label is required"))
	}
	key := schema.DeriveKey(label)
	if key == "" {
		return schema.Field{}, s.reject(OpAdd, sectionID, "",
			schema.NewValidationError("label", "label %q must contain letters or digits", label))
	}
	if existing, ok := sec.FieldByKey(key); ok {
		return schema.Field{}, s.reject(OpAdd, sectionID, "",
			schema.NewValidationError(key, "key %q is already used by %q in section %q", key, existing.Label, sec.Name))
	}

	f := schema.Field{
		Key:         key,
		Label:       label,
		Type:        in.Type,
		Constraints: in.Constraints.Normalize(),
		Required:    in.Required,
		Visibility:  in.Visibility.Clone(),
		Order:       len(sec.Fields),
		Placeholder: in.Placeholder,
		Hint:        in.Hint,
	}
	if err := f.Validate(s.roles); err != nil {
		return schema.Field{}, s.reject(OpAdd, sectionID, "", err)
	}
	f.ID = s.idGen.New()

	sec.Fields = append(sec.Fields, f)
	if err := sec.Validate(s.roles); err != nil {
		return schema.Field{}, s.reject(OpAdd, sectionID, f.ID, err)
	}

	after := f.Clone()
	if err := s.commit(ctx, events.FieldAdded, si, sec, nil, &after, true); err != nil {
		return schema.Field{}, s.reject(OpAdd, sectionID, f.ID, err)
	}
	return f.Clone(), nil
}

// EditField applies a patch to a field. System fields only accept changes
// to visibility and presentation hints.
func (s *SchemaStore) EditField(ctx context.Context, fieldID string, p FieldPatch) (schema.Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	si, fi, err := s.fieldIndex(fieldID)
	if err != nil {
		return schema.Field{}, s.reject(OpEdit, "", fieldID, err)
	}
	sec := s.sections[si].Clone()
	cur := sec.Fields[fi]

	if cur.System && touchesLocked(cur, p) {
		return schema.Field{}, s.reject(OpEdit, sec.ID, fieldID, &schema.PermissionError{FieldID: cur.ID, Key: cur.Key, Op: OpEdit})
	}
	if p.Type != nil && *p.Type != cur.Type {
		return schema.Field{}, s.reject(OpEdit, sec.ID, fieldID,
			schema.NewValidationError(cur.Key, "type cannot change from %s to %s; delete the field and add a new one", cur.Type, *p.Type))
	}

	next := cur.Clone()
	if p.Label != nil {
		next.Label = strings.TrimSpace(*p.Label)
		if next.Label == "" {
			return schema.Field{}, s.reject(OpEdit, sec.ID, fieldID, schema.NewValidationError("label", "label is required"))
		}
	}
	if p.Constraints != nil {
		next.Constraints = p.Constraints.Normalize()
	}
	if p.Required != nil {
		next.Required = *p.Required
	}
	if p.Visibility != nil {
		next.Visibility = p.Visibility.Clone()
	}
	if p.Placeholder != nil {
		next.Placeholder = *p.Placeholder
	}
	if p.Hint != nil {
		next.Hint = *p.Hint
	}

	if err := next.Validate(s.roles); err != nil {
		return schema.Field{}, s.reject(OpEdit, sec.ID, fieldID, err)
	}
	if sameDefinition(next, cur) {
		return cur.Clone(), nil
	}

	sec.Fields[fi] = next
	if err := sec.Validate(s.roles); err != nil {
		return schema.Field{}, s.reject(OpEdit, sec.ID, fieldID, err)
	}

	before, after := cur.Clone(), next.Clone()
	if err := s.commit(ctx, events.FieldEdited, si, sec, &before, &after, true); err != nil {
		return schema.Field{}, s.reject(OpEdit, sec.ID, fieldID, err)
	}
	return next.Clone(), nil
}

// touchesLocked reports whether p changes an attribute locked on system fields.
func touchesLocked(cur schema.Field, p FieldPatch) bool {
	switch {
	case p.Label != nil && strings.TrimSpace(*p.Label) != cur.Label:
		return true
	case p.Type != nil && *p.Type != cur.Type:
		return true
	case p.Constraints != nil && !p.Constraints.Equal(cur.Constraints):
		return true
	case p.Required != nil && *p.Required != cur.Required:
		return true
	}
	return false
}

func sameDefinition(a, b schema.Field) bool {
	return a.Label == b.Label &&
		a.Required == b.Required &&
		a.Placeholder == b.Placeholder &&
		a.Hint == b.Hint &&
		a.Constraints.Equal(b.Constraints) &&
		a.Visibility.Equal(b.Visibility)
}

// DeleteField removes a custom field and re-densifies its section.
func (s *SchemaStore) DeleteField(ctx context.Context, fieldID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	si, fi, err := s.fieldIndex(fieldID)
	if err != nil {
		return s.reject(OpDelete, "", fieldID, err)
	}
	sec := s.sections[si].Clone()
	cur := sec.Fields[fi]
	if cur.System {
		return s.reject(OpDelete, sec.ID, fieldID, &schema.PermissionError{FieldID: cur.ID, Key: cur.Key, Op: OpDelete})
	}

	sec.Fields = append(sec.Fields[:fi], sec.Fields[fi+1:]...)
	sec.Renumber()
	if err := sec.Validate(s.roles); err != nil {
		return s.reject(OpDelete, sec.ID, fieldID, err)
	}

	before := cur.Clone()
	if err := s.commit(ctx, events.FieldDeleted, si, sec, &before, nil, true); err != nil {
		return s.reject(OpDelete, sec.ID, fieldID, err)
	}
	return nil
}

// ReorderField moves a field to newIndex within its section, clamped to the
// section bounds. Every other field keeps its relative order.
func (s *SchemaStore) ReorderField(ctx context.Context, sectionID, fieldID string, newIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	si, err := s.sectionIndex(sectionID)
	if err != nil {
		return s.reject(OpReorder, sectionID, fieldID, err)
	}
	sec := s.sections[si].Clone()
	sec.Renumber()
	fi := sec.IndexOf(fieldID)
	if fi < 0 {
		return s.reject(OpReorder, sectionID, fieldID, &schema.NotFoundError{Kind: "field", ID: fieldID})
	}

	if newIndex < 0 {
		newIndex = 0
	}
	if newIndex > len(sec.Fields)-1 {
		newIndex = len(sec.Fields) - 1
	}
	if newIndex == fi {
		return nil
	}

	moved := sec.Fields[fi]
	rest := append(append([]schema.Field{}, sec.Fields[:fi]...), sec.Fields[fi+1:]...)
	fields := make([]schema.Field, 0, len(sec.Fields))
	fields = append(fields, rest[:newIndex]...)
	fields = append(fields, moved)
	fields = append(fields, rest[newIndex:]...)
	for i := range fields {
		fields[i].Order = i
	}
	sec.Fields = fields

	if err := sec.Validate(s.roles); err != nil {
		return s.reject(OpReorder, sectionID, fieldID, err)
	}

	before, after := moved.Clone(), sec.Fields[newIndex].Clone()
	if err := s.commit(ctx, events.FieldReordered, si, sec, &before, &after, true); err != nil {
		return s.reject(OpReorder, sectionID, fieldID, err)
	}
	return nil
}

// SetExpanded records whether a section is expanded in the editor. It is
// kept in snapshots but does not change the schema version.
func (s *SchemaStore) SetExpanded(ctx context.Context, sectionID string, expanded bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	si, err := s.sectionIndex(sectionID)
	if err != nil {
		return s.reject(OpToggle, sectionID, "", err)
	}
	if s.sections[si].Expanded == expanded {
		return nil
	}
	sec := s.sections[si].Clone()
	sec.Expanded = expanded

	if err := s.commit(ctx, events.SectionToggled, si, sec, nil, nil, false); err != nil {
		return s.reject(OpToggle, sectionID, "", err)
	}
	return nil
}

// commit records the change, swaps in the new section, then notifies
// metrics and subscribers. If the recorder fails the store is left as it
// was. Callers hold s.mu.
func (s *SchemaStore) commit(ctx context.Context, name string, si int, sec schema.Section, before, after *schema.Field, bump bool) error {
	next := make([]schema.Section, len(s.sections))
	copy(next, s.sections)
	next[si] = sec

	version := s.version
	if bump {
		version++
	}
	updated := s.clock.Now()

	fieldID := ""
	switch {
	case after != nil:
		fieldID = after.ID
	case before != nil:
		fieldID = before.ID
	}

	ev := events.Event{
		Name:      name,
		Module:    s.module,
		SectionID: sec.ID,
		FieldID:   fieldID,
		Actor:     ActorFrom(ctx),
		Before:    before,
		After:     after,
		Snapshot:  s.snapshotOf(next, version, updated),
		At:        updated,
	}
	if s.recorder != nil {
		if err := s.recorder.Record(ctx, ev); err != nil {
			return fmt.Errorf("persist %s v%d: %w", name, version, err)
		}
	}

	s.sections = next
	s.version = version
	s.updated = updated

	op := opFor(name)
	s.metrics.Mutation(s.module, op, "ok")
	s.metrics.Fields(s.module, s.fieldCount())

	s.logger.Debug().
		Str("op", op).
		Str("section", sec.ID).
		Str("field", fieldID).
		Int64("version", s.version).
		Msg("schema updated")

	if s.events != nil && s.events.HasSubscribers(name) {
		s.events.Publish(ctx, ev)
	}
	return nil
}

// reject records a failed operation and returns err unchanged.
func (s *SchemaStore) reject(op, sectionID, fieldID string, err error) error {
	s.metrics.Mutation(s.module, op, Outcome(err))
	s.logger.Info().
		Err(err).
		Str("op", op).
		Str("section", sectionID).
		Str("field", fieldID).
		Msg("schema change rejected")
	return err
}

// Outcome classifies an operation result for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, schema.ErrValidation):
		return "validation"
	case errors.Is(err, schema.ErrPermission):
		return "permission"
	case errors.Is(err, schema.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func opFor(event string) string {
	switch event {
	case events.FieldAdded:
		return OpAdd
	case events.FieldEdited:
		return OpEdit
	case events.FieldDeleted:
		return OpDelete
	case events.FieldReordered:
		return OpReorder
	case events.SectionToggled:
		return OpToggle
	}
	return event
}

func (s *SchemaStore) sectionIndex(id string) (int, error) {
	for i, sec := range s.sections {
		if sec.ID == id {
			return i, nil
		}
	}
	return -1, &schema.NotFoundError{Kind: "section", ID: id}
}

func (s *SchemaStore) fieldIndex(id string) (int, int, error) {
	for si, sec := range s.sections {
		if fi := sec.IndexOf(id); fi >= 0 {
			return si, fi, nil
		}
	}
	return -1, -1, &schema.NotFoundError{Kind: "field", ID: id}
}

func (s *SchemaStore) fieldCount() int {
	n := 0
	for _, sec := range s.sections {
		n += len(sec.Fields)
	}
	return n
}

func (s *SchemaStore) snapshotLocked() schema.Snapshot {
	return s.snapshotOf(s.sections, s.version, s.updated)
}

func (s *SchemaStore) snapshotOf(sections []schema.Section, version int64, updated time.Time) schema.Snapshot {
	return schema.Snapshot{
		Module:    s.module,
		Roles:     s.roles,
		Version:   version,
		UpdatedAt: updated,
		Sections:  sections,
	}.Clone()
}

// -----------------------------------------------------------------------------
// Reads. All return deep copies.
// -----------------------------------------------------------------------------

// Module returns the module name.
func (s *SchemaStore) Module() string {
	return s.module
}

// Roles returns the recognized roles.
func (s *SchemaStore) Roles() []string {
	return append([]string(nil), s.roles...)
}

// Version returns the schema version, incremented by every field mutation.
func (s *SchemaStore) Version() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Snapshot returns the full serializable state.
func (s *SchemaStore) Snapshot() schema.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Sections returns every section in definition order.
func (s *SchemaStore) Sections() []schema.Section {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]schema.Section, len(s.sections))
	for i, sec := range s.sections {
		out[i] = sec.Clone()
	}
	return out
}

// SectionsByTab returns the sections shown on one editor tab.
func (s *SchemaStore) SectionsByTab(tab string) []schema.Section {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []schema.Section
	for _, sec := range s.sections {
		if sec.Tab == tab {
			out = append(out, sec.Clone())
		}
	}
	return out
}

// Section returns one section.
func (s *SchemaStore) Section(id string) (schema.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	si, err := s.sectionIndex(id)
	if err != nil {
		return schema.Section{}, err
	}
	return s.sections[si].Clone(), nil
}

// Field returns one field by id.
func (s *SchemaStore) Field(id string) (schema.Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	si, fi, err := s.fieldIndex(id)
	if err != nil {
		return schema.Field{}, err
	}
	return s.sections[si].Fields[fi].Clone(), nil
}

// FieldByKey returns the field with key in a section.
func (s *SchemaStore) FieldByKey(sectionID, key string) (schema.Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	si, err := s.sectionIndex(sectionID)
	if err != nil {
		return schema.Field{}, err
	}
	f, ok := s.sections[si].FieldByKey(key)
	if !ok {
		return schema.Field{}, &schema.NotFoundError{Kind: "field", ID: sectionID + "/" + key}
	}
	return f, nil
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type uuidGen struct{}

func (uuidGen) New() string { return uuid.NewString() }

type nopMetrics struct{}

func (nopMetrics) Mutation(module, op, outcome string) {}
func (nopMetrics) Fields(module string, n int)         {}
