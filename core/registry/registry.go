// Package registry manages module definitions and conflict detection.
// It ensures two definitions never claim the same module name and provides
// lookup for the stores built on top of them.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/artpar/fieldschema/core/schema"
)

// Entry is a registered module definition and where it came from.
type Entry struct {
	Module schema.Module

	// Source is "embedded" or the file or directory the definition was read from.
	Source string
}

// Registry manages registered module definitions.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Entry
}

// New creates a new registry.
func New() *Registry {
	return &Registry{
		modules: make(map[string]Entry),
	}
}

// Register validates and registers a module definition.
// Returns a *ConflictError if the name is already taken.
func (r *Registry) Register(mod schema.Module, source string) error {
	return r.RegisterAll([]schema.Module{mod}, source)
}

// RegisterAll registers a batch of definitions from one source. Either all
// are registered or none: every invalid definition and every conflict is
// reported.
func (r *Registry) RegisterAll(mods []schema.Module, source string) error {
	var invalid []string
	for _, mod := range mods {
		if err := schema.Validate(mod); err != nil {
			invalid = append(invalid, fmt.Sprintf("module %q: %v", mod.Name, err))
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid module definitions from %s:\n  - %s", source, strings.Join(invalid, "\n  - "))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var conflicts []Conflict
	seen := make(map[string]bool, len(mods))
	for _, mod := range mods {
		if existing, ok := r.modules[mod.Name]; ok {
			conflicts = append(conflicts, Conflict{Name: mod.Name, Existing: existing.Source, Incoming: source})
			continue
		}
		if seen[mod.Name] {
			conflicts = append(conflicts, Conflict{Name: mod.Name, Existing: source, Incoming: source})
		}
		seen[mod.Name] = true
	}
	if len(conflicts) > 0 {
		return &ConflictError{Conflicts: conflicts}
	}

	for _, mod := range mods {
		r.modules[mod.Name] = Entry{Module: mod, Source: source}
	}
	return nil
}

// Unregister removes a module from the registry.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[name]; !exists {
		return &schema.NotFoundError{Kind: "module", ID: name}
	}
	delete(r.modules, name)
	return nil
}

// Get returns a registered module by name.
func (r *Registry) Get(name string) (schema.Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.modules[name]
	return e.Module, ok
}

// Lookup returns a registered module or a *schema.NotFoundError.
func (r *Registry) Lookup(name string) (schema.Module, error) {
	mod, ok := r.Get(name)
	if !ok {
		return schema.Module{}, &schema.NotFoundError{Kind: "module", ID: name}
	}
	return mod, nil
}

// List returns all registered entries sorted by module name.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, 0, len(r.modules))
	for _, e := range r.modules {
		entries = append(entries, e)
	}

	// Sort by name for consistent ordering
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Module.Name < entries[j].Module.Name
	})

	return entries
}

// Names returns the registered module names, sorted.
func (r *Registry) Names() []string {
	entries := r.List()
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Module.Name
	}
	return names
}

// Conflict is one module name claimed twice.
type Conflict struct {
	Name     string
	Existing string
	Incoming string
}

func (c Conflict) Error() string {
	return fmt.Sprintf("module %q from %s already registered from %s", c.Name, c.Incoming, c.Existing)
}

// ConflictError represents one or more module name conflicts.
type ConflictError struct {
	Conflicts []Conflict
}

// Error returns the conflict error message.
func (e *ConflictError) Error() string {
	var msgs []string
	for _, c := range e.Conflicts {
		msgs = append(msgs, c.Error())
	}
	return fmt.Sprintf("module conflicts detected:\n  - %s", strings.Join(msgs, "\n  - "))
}

// HasConflicts returns true if there are any conflicts.
func (e *ConflictError) HasConflicts() bool {
	return len(e.Conflicts) > 0
}
