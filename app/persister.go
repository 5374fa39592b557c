package app

import (
	"context"
	"fmt"

	"github.com/artpar/fieldschema/core/events"
	"github.com/artpar/fieldschema/domain/audit"
	"github.com/artpar/fieldschema/ports"
	"github.com/rs/zerolog"
)

// PersisterDeps contains dependencies for the Persister.
type PersisterDeps struct {
	Snapshots ports.SnapshotStore
	Audit     ports.AuditStore // optional; nil disables the change log
	IDGen     ports.IDGenerator
	Logger    zerolog.Logger
}

// Persister writes the snapshot carried by each schema event to durable
// storage and appends an audit entry for field changes. It is the Recorder
// the schema stores call before applying a change.
type Persister struct {
	snapshots ports.SnapshotStore
	audit     ports.AuditStore
	idGen     ports.IDGenerator
	logger    zerolog.Logger
}

// NewPersister creates a persister.
func NewPersister(deps PersisterDeps) *Persister {
	p := &Persister{
		snapshots: deps.Snapshots,
		audit:     deps.Audit,
		idGen:     deps.IDGen,
		logger:    deps.Logger.With().Str("service", "persister").Logger(),
	}
	if p.idGen == nil {
		p.idGen = uuidGen{}
	}
	return p
}

// Record persists one event.
func (p *Persister) Record(ctx context.Context, ev events.Event) error {
	if ev.Name == events.SectionToggled || p.audit == nil {
		if err := p.snapshots.Save(ctx, ev.Snapshot); err != nil {
			return fmt.Errorf("save snapshot %s v%d: %w", ev.Module, ev.Snapshot.Version, err)
		}
		return nil
	}

	entry := p.entry(ev)

	if rec, ok := p.snapshots.(ports.MutationRecorder); ok {
		if err := rec.RecordMutation(ctx, ev.Snapshot, entry); err != nil {
			return fmt.Errorf("record %s on %s: %w", ev.Name, ev.Module, err)
		}
	} else {
		if err := p.snapshots.Save(ctx, ev.Snapshot); err != nil {
			return fmt.Errorf("save snapshot %s v%d: %w", ev.Module, ev.Snapshot.Version, err)
		}
		if err := p.audit.Record(ctx, entry); err != nil {
			return fmt.Errorf("record audit %s: %w", entry.ID, err)
		}
	}

	p.logger.Debug().
		Str("module", ev.Module).
		Str("action", ev.Name).
		Int64("version", ev.Snapshot.Version).
		Msg("schema change persisted")
	return nil
}

func (p *Persister) entry(ev events.Event) audit.Entry {
	e := audit.Entry{
		ID:        p.idGen.New(),
		Module:    ev.Module,
		Action:    ev.Name,
		SectionID: ev.SectionID,
		FieldID:   ev.FieldID,
		Actor:     ev.Actor,
		Version:   ev.Snapshot.Version,
		Before:    ev.Before,
		After:     ev.After,
		At:        ev.At,
	}
	switch {
	case ev.After != nil:
		e.FieldKey = ev.After.Key
	case ev.Before != nil:
		e.FieldKey = ev.Before.Key
	}
	return e
}
