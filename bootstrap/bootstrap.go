// Package bootstrap wires all dependencies: configuration, logging, module
// definitions, storage, metrics and one schema store per module.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/artpar/fieldschema/adapters/clock"
	"github.com/artpar/fieldschema/adapters/idgen"
	"github.com/artpar/fieldschema/adapters/memory"
	"github.com/artpar/fieldschema/adapters/metrics"
	"github.com/artpar/fieldschema/adapters/sqlite"
	"github.com/artpar/fieldschema/app"
	"github.com/artpar/fieldschema/config"
	"github.com/artpar/fieldschema/core/events"
	"github.com/artpar/fieldschema/core/registry"
	"github.com/artpar/fieldschema/core/schema"
	"github.com/artpar/fieldschema/core/seeds"
	"github.com/artpar/fieldschema/core/validation"
	"github.com/artpar/fieldschema/core/visibility"
	"github.com/artpar/fieldschema/domain/audit"
	"github.com/artpar/fieldschema/ports"
	"github.com/rs/zerolog"
)

// Module sources recorded in the registry.
const (
	SourceEmbedded = "embedded"
)

// App represents the running application.
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	DB        *sqlite.DB // nil for the memory driver
	Metrics   *metrics.Collector
	Registry  *registry.Registry
	Events    *events.Bus
	Snapshots ports.SnapshotStore
	Audit     ports.AuditStore // nil when auditing is disabled

	clock     ports.Clock
	idGen     ports.IDGenerator
	persister *app.Persister

	mu     sync.RWMutex
	stores map[string]*app.SchemaStore
}

// Options provides optional overrides for application initialization.
type Options struct {
	// LogOutput receives log lines. Defaults to os.Stderr.
	LogOutput io.Writer

	// Clock and IDGen default to the real clock and prefixed UUIDs.
	Clock ports.Clock
	IDGen ports.IDGenerator
}

// New creates and initializes the application.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.IDGen == nil {
		opts.IDGen = idgen.UUID{Prefix: "fld_"}
	}

	logger := SetupLogger(cfg.Logging, opts.LogOutput)
	logger.Debug().Msg("initializing fieldschema")

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: registry.New(),
		Events:   events.NewBus(logger.With().Str("component", "events").Logger()),
		clock:    opts.Clock,
		idGen:    opts.IDGen,
		stores:   make(map[string]*app.SchemaStore),
	}

	if err := a.initStorage(); err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New(cfg.Metrics.Namespace)
		logger.Debug().Str("namespace", cfg.Metrics.Namespace).Msg("prometheus metrics enabled")
	}

	a.persister = app.NewPersister(app.PersisterDeps{
		Snapshots: a.Snapshots,
		Audit:     a.Audit,
		IDGen:     idgen.UUID{Prefix: "aud_"},
		Logger:    logger,
	})

	if err := a.loadModules(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) initStorage() error {
	switch a.Config.Database.Driver {
	case "memory":
		a.Snapshots = memory.NewSnapshotStore()
		if a.Config.Audit.IsEnabled() {
			a.Audit = memory.NewAuditStore()
		}
		a.Logger.Debug().Msg("using in-memory storage")
		return nil

	case "sqlite":
		db, err := sqlite.Open(a.Config.Database.DSN)
		if err != nil {
			return err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return fmt.Errorf("migrate: %w", err)
		}
		a.DB = db
		a.Snapshots = sqlite.NewSnapshotStore(db)
		if a.Config.Audit.IsEnabled() {
			a.Audit = sqlite.NewAuditStore(db)
		}
		a.Logger.Debug().Str("dsn", a.Config.Database.DSN).Msg("database initialized")
		return nil
	}
	return fmt.Errorf("unknown database driver %q", a.Config.Database.Driver)
}

func (a *App) loadModules(ctx context.Context) error {
	if a.Config.Modules.LoadEmbedded() {
		mods, err := seeds.Modules()
		if err != nil {
			return fmt.Errorf("load embedded modules: %w", err)
		}
		if err := a.Registry.RegisterAll(mods, SourceEmbedded); err != nil {
			return fmt.Errorf("register embedded modules: %w", err)
		}
	}
	if dir := a.Config.Modules.Dir; dir != "" {
		mods, err := schema.ParseDir(dir)
		if err != nil {
			return fmt.Errorf("load modules from %s: %w", dir, err)
		}
		if err := a.Registry.RegisterAll(mods, dir); err != nil {
			return fmt.Errorf("register modules from %s: %w", dir, err)
		}
	}

	for _, name := range a.Registry.Names() {
		if err := a.openStore(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// openStore restores the module's schema from storage, or seeds it on first
// run, and saves the result.
func (a *App) openStore(ctx context.Context, name string) error {
	mod, err := a.Registry.Lookup(name)
	if err != nil {
		return err
	}

	deps := a.storeDeps()
	var store *app.SchemaStore
	snap, err := a.Snapshots.Load(ctx, name)
	switch {
	case err == nil:
		store, err = app.RestoreSchemaStore(mod, snap, deps)
		if err != nil {
			return fmt.Errorf("restore %s: %w", name, err)
		}
	case errors.Is(err, schema.ErrNotFound):
		store, err = app.NewSchemaStore(mod, deps)
		if err != nil {
			return fmt.Errorf("seed %s: %w", name, err)
		}
		a.Logger.Info().Str("module", name).Msg("seeded module schema")
	default:
		return fmt.Errorf("load snapshot %s: %w", name, err)
	}

	if err := a.Snapshots.Save(ctx, store.Snapshot()); err != nil {
		return fmt.Errorf("save snapshot %s: %w", name, err)
	}

	a.mu.Lock()
	a.stores[name] = store
	a.mu.Unlock()

	a.Logger.Debug().
		Str("module", name).
		Int64("version", store.Version()).
		Msg("schema store ready")
	return nil
}

func (a *App) storeDeps() app.SchemaStoreDeps {
	deps := app.SchemaStoreDeps{
		Clock:    a.clock,
		IDGen:    a.idGen,
		Events:   a.Events,
		Recorder: a.persister,
		Logger:   a.Logger,
	}
	if a.Metrics != nil {
		deps.Metrics = a.Metrics
	}
	return deps
}

// SchemaChange describes a module schema that moved on in storage.
type SchemaChange struct {
	Module string
	From   int64
	To     int64

	// Entries are the audited changes between From and To, oldest first.
	// Empty when auditing is disabled.
	Entries []audit.Entry
}

// Refresh reloads every module whose stored snapshot is newer than the one
// held in memory, such as after another process wrote to the same database.
// Stores returned by Store before the refresh keep the old schema.
func (a *App) Refresh(ctx context.Context) ([]SchemaChange, error) {
	var changes []SchemaChange
	for _, name := range a.Modules() {
		cur, err := a.Store(name)
		if err != nil {
			return changes, err
		}
		snap, err := a.Snapshots.Load(ctx, name)
		if err != nil {
			return changes, fmt.Errorf("load snapshot %s: %w", name, err)
		}
		held := cur.Snapshot()
		if snap.Version < held.Version || (snap.Version == held.Version && !snap.UpdatedAt.After(held.UpdatedAt)) {
			continue
		}

		mod, err := a.Registry.Lookup(name)
		if err != nil {
			return changes, err
		}
		store, err := app.RestoreSchemaStore(mod, snap, a.storeDeps())
		if err != nil {
			return changes, fmt.Errorf("restore %s: %w", name, err)
		}
		if store.Version() != snap.Version {
			if err := a.Snapshots.Save(ctx, store.Snapshot()); err != nil {
				return changes, fmt.Errorf("save snapshot %s: %w", name, err)
			}
		}

		a.mu.Lock()
		a.stores[name] = store
		a.mu.Unlock()

		c := SchemaChange{Module: name, From: held.Version, To: store.Version()}
		if a.Audit != nil && c.To > c.From {
			entries, err := a.Audit.List(ctx, audit.Filter{Module: name, Limit: int(c.To - c.From)})
			if err != nil {
				return changes, fmt.Errorf("list audit %s: %w", name, err)
			}
			for i := len(entries) - 1; i >= 0; i-- {
				if entries[i].Version > c.From {
					c.Entries = append(c.Entries, entries[i])
				}
			}
		}
		changes = append(changes, c)

		summaries := make([]string, len(c.Entries))
		for i, e := range c.Entries {
			summaries[i] = e.Summary()
		}
		a.Logger.Info().
			Str("module", name).
			Int64("from", c.From).
			Int64("to", c.To).
			Strs("changes", summaries).
			Msg("schema changed")
	}
	return changes, nil
}

// Store returns the schema store of a module.
func (a *App) Store(module string) (*app.SchemaStore, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s, ok := a.stores[module]
	if !ok {
		return nil, &schema.NotFoundError{Kind: "module", ID: module}
	}
	return s, nil
}

// Modules returns the names of all loaded modules, sorted.
func (a *App) Modules() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, 0, len(a.stores))
	for name := range a.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateRecord checks a submitted record against one section. When role
// is set, only the fields that role can see are accepted.
func (a *App) ValidateRecord(module, sectionID, role string, data map[string]any) (schema.ValidationResult, error) {
	store, err := a.Store(module)
	if err != nil {
		return schema.ValidationResult{}, err
	}
	sec, err := store.Section(sectionID)
	if err != nil {
		return schema.ValidationResult{}, err
	}

	fields := sec.Sorted()
	if role != "" {
		if !contains(store.Roles(), role) {
			return schema.ValidationResult{}, schema.NewValidationError("role", "unknown role %q for module %s", role, module)
		}
		fields = visibility.FilterVisible(fields, role)
	}

	result := validation.New(fields).Validate(data)
	if a.Metrics != nil {
		a.Metrics.ValueCheck(module, result.Valid)
	}
	return result, nil
}

// Watch applies reloadable settings whenever the holder reloads: the log
// level and new module definitions in modules.dir.
func (a *App) Watch(ctx context.Context, h *config.Holder) {
	h.OnChange(func(cfg *config.Config) {
		if a.Metrics != nil {
			a.Metrics.ConfigReloads.Inc()
		}
		if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			zerolog.SetGlobalLevel(level)
		}
		if cfg.Modules.Dir == "" {
			return
		}
		added, err := a.LoadModulesDir(ctx, cfg.Modules.Dir)
		if err != nil {
			if a.Metrics != nil {
				a.Metrics.ConfigReloadErrors.Inc()
			}
			a.Logger.Error().Err(err).Str("dir", cfg.Modules.Dir).Msg("module reload failed")
			return
		}
		if a.Metrics != nil {
			a.Metrics.ConfigLastReload.SetToCurrentTime()
		}
		if len(added) > 0 {
			a.Logger.Info().Strs("modules", added).Msg("modules loaded")
		}
	})
}

// LoadModulesDir registers module definitions from dir that are not yet
// loaded and opens their stores. Definitions of already loaded modules are
// left unchanged until restart.
func (a *App) LoadModulesDir(ctx context.Context, dir string) ([]string, error) {
	mods, err := schema.ParseDir(dir)
	if err != nil {
		return nil, err
	}

	var fresh []schema.Module
	for _, mod := range mods {
		if _, ok := a.Registry.Get(mod.Name); ok {
			a.Logger.Debug().Str("module", mod.Name).Msg("module already loaded, skipping")
			continue
		}
		fresh = append(fresh, mod)
	}
	if err := a.Registry.RegisterAll(fresh, dir); err != nil {
		return nil, err
	}

	added := make([]string, 0, len(fresh))
	for _, mod := range fresh {
		if err := a.openStore(ctx, mod.Name); err != nil {
			return added, err
		}
		added = append(added, mod.Name)
	}
	return added, nil
}

// Close releases the database connection.
func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

// SetupLogger builds the application logger from logging configuration.
// The level is applied globally so a config reload can change it.
func SetupLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
