package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"emberd/internal/catalog"
	"emberd/internal/runtime"
	"emberd/internal/transfer"
	"emberd/pkg/types"
)

// Engine coordinates catalog, transfers, backend probing, and chat serving.
type Engine struct {
	cfg       EngineConfig
	store     *catalog.Store
	transfers *transfer.Manager
	backends  BackendSource
	factory   runtime.Factory
	events    *fanout

	mu          sync.RWMutex
	state       ActivationState
	gen         uint64
	actCancel   context.CancelFunc
	active      *ActiveSession
	fallback    *fallbackResponder
	lastErr     string
	backendErrs []BackendFailure
	activations uint64
	started     time.Time

	queueCh chan struct{}
	genCh   chan struct{}
}

// New builds an engine with default tuning.
func New(store *catalog.Store, transfers *transfer.Manager, backends BackendSource, factory runtime.Factory) *Engine {
	return NewWithConfig(store, transfers, backends, factory, EngineConfig{})
}

// NewWithConfig builds an engine with explicit tuning.
func NewWithConfig(store *catalog.Store, transfers *transfer.Manager, backends BackendSource, factory runtime.Factory, cfg EngineConfig) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:       cfg,
		store:     store,
		transfers: transfers,
		backends:  backends,
		factory:   factory,
		events:    newFanout(),
		state:     StateIdle,
		started:   time.Now(),
		queueCh:   make(chan struct{}, cfg.MaxQueueDepth),
		genCh:     make(chan struct{}, 1),
	}
}

// Reconcile rebuilds the catalog snapshot from a directory scan merged with
// the curated catalog. An unreadable curated catalog degrades to local-only
// operation rather than failing the call.
func (e *Engine) Reconcile(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	scan, err := catalog.ScanDir(e.store.Dir())
	if err != nil {
		return err
	}
	curated, err := catalog.CuratedFor(e.cfg.CatalogPath, e.cfg.NPUCatalogPath, e.backends.HasNPU())
	if err != nil {
		log.Printf("engine event=catalog_unreadable err=%v", err)
		e.publish("catalog_unreadable", "", map[string]any{"error": err.Error()})
		curated = nil
	}
	recs := catalog.Reconcile(scan, curated)
	e.store.Replace(recs)
	catalogRecords.Set(float64(len(recs)))
	log.Printf("engine event=reconcile_done records=%d partials=%d", len(recs), len(scan.Partials))
	e.publish("reconcile_done", "", map[string]any{"records": len(recs)})
	return nil
}

// Models returns the current catalog snapshot.
func (e *Engine) Models() []types.ModelRecord { return e.store.All() }

// Backends returns the ranked probe candidates under the engine's
// configured preference.
func (e *Engine) Backends() []types.BackendDescriptor {
	return e.backends.Ranked(e.cfg.PreferNPU)
}

// RemoveArtifact deletes a model's bytes on explicit user request and
// clears any recorded verification verdict.
func (e *Engine) RemoveArtifact(id string) error {
	if _, ok := e.store.Get(id); !ok {
		return ErrModelNotFound(id)
	}
	e.mu.RLock()
	activeID := ""
	if e.active != nil {
		activeID = e.active.Model.ID
	}
	e.mu.RUnlock()
	if activeID == id {
		if err := e.Deactivate(context.Background()); err != nil {
			return err
		}
	}
	if job, ok := e.transfers.Lookup(e.store.TargetPath(id)); ok && !job.State().Terminal() {
		job.Cancel()
		<-job.Done()
	}
	if err := e.store.RemoveArtifact(id); err != nil {
		return err
	}
	e.publish("artifact_removed", id, nil)
	return nil
}

func (e *Engine) resolveRecord(id string) (types.ModelRecord, error) {
	if id == "" {
		id = e.cfg.DefaultModel
	}
	if id == "" {
		return types.ModelRecord{}, ErrModelNotFound("")
	}
	rec, ok := e.store.Get(id)
	if !ok {
		return types.ModelRecord{}, ErrModelNotFound(id)
	}
	return rec, nil
}

// acquireActive pins the serving session against close. The caller must
// call refs.Done() when its generation finishes. Returns nil when nothing
// is serving.
func (e *Engine) acquireActive() *ActiveSession {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.active == nil {
		return nil
	}
	e.active.refs.Add(1)
	return e.active
}

// drainAndClose waits for in-flight generations against s to finish, then
// closes the session. Bounded by DrainTimeout.
func (e *Engine) drainAndClose(s *ActiveSession) {
	if s == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		s.refs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(e.cfg.DrainTimeout):
		log.Printf("engine event=drain_timeout model=%q backend=%s", s.Model.ID, s.Backend.Kind)
	}
	if s.Session != nil {
		if err := s.Session.Close(); err != nil {
			log.Printf("engine event=session_close_error model=%q err=%v", s.Model.ID, err)
		}
	}
}

// Deactivate clears the serving session or fallback responder. Idempotent.
func (e *Engine) Deactivate(ctx context.Context) error {
	e.mu.Lock()
	if e.active == nil && e.fallback == nil && e.actCancel == nil {
		e.mu.Unlock()
		return nil
	}
	e.gen++
	if e.actCancel != nil {
		e.actCancel()
		e.actCancel = nil
	}
	old := e.active
	modelID := ""
	if old != nil {
		modelID = old.Model.ID
	}
	e.active = nil
	e.fallback = nil
	e.state = StateDraining
	e.mu.Unlock()

	e.drainAndClose(old)

	e.mu.Lock()
	if e.state == StateDraining {
		e.state = StateIdle
	}
	e.mu.Unlock()

	fallbackActive.Set(0)
	log.Printf("engine event=deactivate model=%q", modelID)
	e.publish("deactivate", modelID, nil)
	return ctx.Err()
}

// Ready reports whether chat can be served right now.
func (e *Engine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.active != nil || e.fallback != nil
}

// Close shuts the engine down: deactivates, cancels transfers, stops any
// spawned runtime processes, and closes event subscriptions.
func (e *Engine) Close() error {
	err := e.Deactivate(context.Background())
	e.transfers.CancelAll()
	if s, ok := e.factory.(interface{ StopAll() }); ok {
		s.StopAll()
	}
	e.events.closeAll()
	return err
}
