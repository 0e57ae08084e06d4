// Package engine owns a user's progress aggregate: it loads and persists it
// through a storage backend, applies tutorial, achievement, level and energy
// rules, and publishes events to subscribers.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/levelup/internal/achievements"
	"github.com/abhisek/levelup/internal/catalog"
	"github.com/abhisek/levelup/internal/levels"
	"github.com/abhisek/levelup/internal/progress"
	"github.com/abhisek/levelup/internal/store"
	"github.com/abhisek/levelup/internal/tutorial"
)

// DefaultAutosaveInterval is how often the aggregate is saved.
const DefaultAutosaveInterval = 5 * time.Second

// ErrPersistenceSuspended is returned by Save before a successful
// Initialize, or after the initial load failed. Saving resumes after a
// successful Initialize, ImportData or ClearAllData.
var ErrPersistenceSuspended = errors.New("persistence suspended after failed load")

// Engine is the progression engine for one user.
type Engine struct {
	mu sync.Mutex

	backend  store.Backend
	userID   string
	key      string
	log      *zap.Logger
	now      func() time.Time
	interval time.Duration
	xp       levels.XPRule

	catalog   *catalog.Catalog
	evaluator *achievements.Evaluator
	levels    *levels.Manager
	tutorials *tutorial.Tracker

	data        *progress.Data
	session     *session
	initialized bool
	destroyed   bool
	suspended   bool

	bus *bus

	stop chan struct{}
	done chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithAutosaveInterval sets the autosave interval. 0 disables autosave.
func WithAutosaveInterval(d time.Duration) Option {
	return func(e *Engine) { e.interval = d }
}

// WithCatalog sets the static definitions. Default: catalog.Default().
func WithCatalog(c *catalog.Catalog) Option {
	return func(e *Engine) { e.catalog = c }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithXPRule sets the experience-to-level rule. Default: levels.DefaultXPRule.
func WithXPRule(r levels.XPRule) Option {
	return func(e *Engine) { e.xp = r }
}

// StorageKey is the backend key holding userID's aggregate.
func StorageKey(userID string) string {
	return "progress/" + userID
}

// New creates an engine for userID over backend. Call Initialize before
// use; until then Save returns ErrPersistenceSuspended.
func New(backend store.Backend, userID string, opts ...Option) *Engine {
	e := &Engine{
		backend:  backend,
		userID:   userID,
		key:      StorageKey(userID),
		log:      zap.NewNop(),
		now:      time.Now,
		interval: DefaultAutosaveInterval,
		xp:       levels.DefaultXPRule,
		// Defaults must not reach the backend until the stored snapshot
		// has been read.
		suspended: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.catalog == nil {
		e.catalog = catalog.Default()
	}
	e.log = e.log.With(zap.String("user", userID))
	e.bus = &bus{log: e.log}

	warnings, err := e.catalog.Validate()
	for _, w := range warnings {
		e.log.Warn("catalog warning", zap.String("detail", w))
	}
	if err != nil {
		e.log.Error("catalog has invalid definitions", zap.Error(err))
	}

	e.evaluator = achievements.NewEvaluator(e.catalog.Achievements)
	e.levels = levels.NewManager(e.catalog.Levels)
	e.tutorials = tutorial.NewTracker(e.catalog.Tutorials)
	e.data = progress.New(userID, e.now())
	return e
}

// UserID returns the user this engine serves.
func (e *Engine) UserID() string { return e.userID }

// Catalog returns the engine's static definitions.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// Subscribe registers fn for events of kind. The returned func removes it.
func (e *Engine) Subscribe(kind EventKind, fn Handler) func() {
	return e.bus.subscribe(kind, fn)
}

// SubscribeAll registers fn for every event.
func (e *Engine) SubscribeAll(fn Handler) func() {
	return e.bus.subscribe("", fn)
}

// txn collects the events of one locked mutation so they can be published
// after the lock is released.
type txn struct {
	e      *Engine
	d      *progress.Data
	now    time.Time
	events []Event
}

func (tx *txn) emit(kind EventKind, payload any) {
	tx.events = append(tx.events, Event{Kind: kind, At: tx.now, Payload: payload})
}

// update runs fn under the engine lock and publishes its events afterwards.
func (e *Engine) update(fn func(tx *txn) bool) bool {
	e.mu.Lock()
	tx := &txn{e: e, d: e.data, now: e.now().UTC()}
	ok := fn(tx)
	e.mu.Unlock()
	e.bus.publish(tx.events...)
	return ok
}

// Initialize loads the persisted aggregate, merges it over defaults, starts
// a session and the autosave loop. A storage failure is reported through an
// error event and the returned error; the engine continues from defaults.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	if e.initialized {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	raw, loadErr := e.backend.Get(ctx, e.key)
	if loadErr != nil {
		loadErr = fmt.Errorf("load progress: %w", loadErr)
	}

	var res progress.MergeResult
	base := progress.New(e.userID, e.now())
	restored := false
	if loadErr == nil && raw != nil {
		var err error
		res, err = progress.Merge(base, raw)
		if err != nil {
			loadErr = fmt.Errorf("load progress: %w", err)
			base = progress.New(e.userID, e.now())
		} else {
			restored = true
		}
	}

	var started bool
	e.update(func(tx *txn) bool {
		if e.initialized {
			return false
		}
		started = true
		e.initialized = true
		e.data = base
		tx.d = base
		e.suspended = loadErr != nil
		if loadErr != nil {
			e.log.Error("load failed, continuing from defaults", zap.Error(loadErr))
			tx.emit(EventError, ErrorPayload{Op: "load", Err: loadErr})
		}
		for _, f := range res.Defaulted {
			e.log.Warn("persisted field has the wrong shape, keeping default", zap.String("field", f))
		}
		if res.Newer != "" {
			e.log.Warn("progress was written by a newer version", zap.String("version", res.Newer), zap.String("supported", progress.ProfileVersion))
		}
		if res.MigratedFrom != "" {
			e.log.Info("migrated progress", zap.String("from", res.MigratedFrom), zap.String("to", progress.ProfileVersion))
		}

		e.session = newSession(tx.now)
		e.syncSessionLocked(tx.now)
		tx.emit(EventInitialized, InitializedPayload{
			UserID:       e.userID,
			SessionID:    e.session.id,
			Restored:     restored,
			Defaulted:    res.Defaulted,
			MigratedFrom: res.MigratedFrom,
		})
		tx.evaluate()
		return true
	})
	if started {
		e.startAutosave()
	}
	return loadErr
}

// Save writes the aggregate to the backend. The result is informational:
// failures are also logged and published as an error event, and the
// in-memory state is unaffected either way.
func (e *Engine) Save(ctx context.Context) error {
	e.mu.Lock()
	now := e.now().UTC()
	if e.suspended {
		e.mu.Unlock()
		return e.fail("save", ErrPersistenceSuspended, now)
	}
	e.data.LastUpdated = now
	e.syncSessionLocked(now)
	snap := e.data.Clone()
	e.mu.Unlock()

	raw, err := json.Marshal(snap)
	if err != nil {
		return e.fail("save", fmt.Errorf("encode progress: %w", err), now)
	}
	if err := e.backend.Set(ctx, e.key, raw); err != nil {
		return e.fail("save", fmt.Errorf("save progress: %w", err), now)
	}
	e.log.Debug("saved progress", zap.Int("bytes", len(raw)))
	e.bus.publish(Event{Kind: EventSaved, At: now, Payload: SavedPayload{Bytes: len(raw)}})
	return nil
}

func (e *Engine) fail(op string, err error, at time.Time) error {
	e.log.Error(op+" failed", zap.Error(err))
	e.bus.publish(Event{Kind: EventError, At: at, Payload: ErrorPayload{Op: op, Err: err}})
	return err
}

// ExportData returns a deep copy of the aggregate. Callers may mutate it
// freely.
func (e *Engine) ExportData() progress.Data {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncSessionLocked(e.now().UTC())
	return *e.data.Clone()
}

// ExportJSON returns ExportData encoded as indented JSON.
func (e *Engine) ExportJSON() ([]byte, error) {
	d := e.ExportData()
	raw, err := json.MarshalIndent(&d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	return raw, nil
}

// ImportData shallow-merges p into the aggregate and saves immediately.
// The user id is never replaced. The returned error reports only the save.
func (e *Engine) ImportData(ctx context.Context, p progress.Partial) error {
	e.update(func(tx *txn) bool {
		tx.d.Apply(p.Clone())
		e.suspended = false
		tx.emit(EventDataImported, ImportPayload{Fields: partialFields(p)})
		tx.evaluate()
		return true
	})
	return e.Save(ctx)
}

// ImportJSON validates raw against the snapshot schema, then imports it.
func (e *Engine) ImportJSON(ctx context.Context, raw []byte) error {
	p, err := progress.DecodePartial(raw)
	if err != nil {
		return err
	}
	return e.ImportData(ctx, p)
}

// ClearAllData clears the backend and resets the aggregate to defaults for
// the same user, starting a fresh session.
func (e *Engine) ClearAllData(ctx context.Context) error {
	clearErr := e.backend.Clear(ctx)
	if clearErr != nil {
		clearErr = e.fail("clear", fmt.Errorf("clear storage: %w", clearErr), e.now().UTC())
	}
	e.update(func(tx *txn) bool {
		e.data = progress.New(e.userID, tx.now)
		tx.d = e.data
		e.suspended = false
		e.session = newSession(tx.now)
		e.syncSessionLocked(tx.now)
		tx.emit(EventDataCleared, nil)
		return true
	})
	return clearErr
}

// Destroy ends the session, stops autosave, flushes once and releases all
// subscribers. It is safe to call more than once.
func (e *Engine) Destroy(ctx context.Context) error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return nil
	}
	e.destroyed = true
	e.mu.Unlock()

	e.stopAutosave()
	e.EndSession()
	err := e.Save(ctx)
	e.bus.reset()
	return err
}

func partialFields(p progress.Partial) []string {
	var fields []string
	if p.ProfileVersion != nil {
		fields = append(fields, "profileVersion")
	}
	if p.CreatedAt != nil {
		fields = append(fields, "createdAt")
	}
	if p.UserProfile != nil {
		fields = append(fields, "userProfile")
	}
	if p.TutorialProgress != nil {
		fields = append(fields, "tutorialProgress")
	}
	if p.LearningMetrics != nil {
		fields = append(fields, "learningMetrics")
	}
	if p.FeatureUsage != nil {
		fields = append(fields, "featureUsage")
	}
	if p.AnalyticsData != nil {
		fields = append(fields, "analyticsData")
	}
	return fields
}
