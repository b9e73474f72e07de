package engine

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"emberd/internal/runtime"
	"emberd/pkg/types"
)

// RequestActivation validates the model id, then runs the activation
// pipeline in the background and returns an operation id immediately.
// The pipeline deliberately runs on a detached context so an aborted HTTP
// request does not abort a switch already underway.
func (e *Engine) RequestActivation(modelID string, preferNPU *bool) (string, error) {
	rec, err := e.resolveRecord(modelID)
	if err != nil {
		return "", err
	}
	op := uuid.NewString()
	log.Printf("engine event=activate_requested op=%s model=%q", op, rec.ID)
	go func() {
		if err := e.Activate(context.Background(), rec.ID, preferNPU); err != nil {
			log.Printf("engine event=activate_finished op=%s model=%q err=%v", op, rec.ID, err)
			return
		}
		log.Printf("engine event=activate_finished op=%s model=%q err=<nil>", op, rec.ID)
	}()
	return op, nil
}

// Activate runs the full pipeline synchronously: catalog lookup, artifact
// acquisition, then backend probing in preference order. On success the
// session is committed and any previous session is drained and closed. If
// every backend refuses, the engine devolves to the fallback responder and
// an ErrExhaustedBackends is returned for the caller's information. A newer
// activation supersedes this one at whatever phase it is in.
func (e *Engine) Activate(ctx context.Context, modelID string, preferNPU *bool) error {
	gen, actCtx, cancel := e.beginActivation()
	defer cancel()
	runCtx, stopJoin := joinContexts(ctx, actCtx)
	defer stopJoin()

	rec, err := e.resolveRecord(modelID)
	if err != nil {
		return e.failActivation(gen, modelID, err)
	}
	log.Printf("engine event=activate_start model=%q generation=%d", rec.ID, gen)
	e.publish("activate_start", rec.ID, map[string]any{"generation": gen})

	rec, err = e.ensureArtifact(runCtx, gen, rec)
	if err != nil {
		if actCtx.Err() != nil {
			err = supersededError{id: rec.ID}
		}
		return e.failActivation(gen, rec.ID, err)
	}

	prefer := e.cfg.PreferNPU
	if preferNPU != nil {
		prefer = *preferNPU
	}

	e.setStateIfCurrent(gen, StateProbing)
	ranked := e.backends.Ranked(prefer)
	failures := make([]BackendFailure, 0, len(ranked))
	for _, cand := range ranked {
		if err := runCtx.Err(); err != nil {
			if actCtx.Err() != nil {
				err = supersededError{id: rec.ID}
			}
			return e.failActivation(gen, rec.ID, err)
		}
		if !e.factory.Supports(cand.Kind) {
			failures = append(failures, BackendFailure{
				Backend: string(cand.Kind),
				Error:   "runtime does not support this backend",
			})
			probeFailuresTotal.WithLabelValues(string(cand.Kind)).Inc()
			continue
		}
		e.publish("probe_start", rec.ID, map[string]any{"backend": string(cand.Kind)})
		start := time.Now()
		sess, err := e.factory.Open(runCtx, rec, cand.Kind)
		if err != nil {
			failures = append(failures, BackendFailure{Backend: string(cand.Kind), Error: err.Error()})
			probeFailuresTotal.WithLabelValues(string(cand.Kind)).Inc()
			log.Printf("engine event=probe_failed model=%q backend=%s err=%v", rec.ID, cand.Kind, err)
			e.publish("probe_failed", rec.ID, map[string]any{"backend": string(cand.Kind), "error": err.Error()})
			continue
		}
		if !e.commitActive(gen, rec, cand, sess, failures) {
			if cerr := sess.Close(); cerr != nil {
				log.Printf("engine event=session_close_error model=%q err=%v", rec.ID, cerr)
			}
			return supersededError{id: rec.ID}
		}
		log.Printf("engine event=activate_ready model=%q backend=%s dur_ms=%d", rec.ID, cand.Kind, time.Since(start).Milliseconds())
		e.saveLastUsed(rec.ID, string(cand.Kind))
		return nil
	}

	ferr := ErrExhaustedBackends(rec.ID, failures)
	if !e.commitFallback(gen, rec, failures) {
		return supersededError{id: rec.ID}
	}
	log.Printf("engine event=activate_fallback model=%q backends_tried=%d", rec.ID, len(failures))
	return ferr
}

// beginActivation claims a new generation. Any activation already in
// flight is cancelled; the current serving session keeps serving until a
// commit replaces it.
func (e *Engine) beginActivation() (uint64, context.Context, context.CancelFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen++
	gen := e.gen
	if e.actCancel != nil {
		e.actCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.actCancel = cancel
	e.state = StateCatalogLookup
	e.lastErr = ""
	e.backendErrs = nil
	return gen, ctx, cancel
}

func (e *Engine) setStateIfCurrent(gen uint64, s ActivationState) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		return false
	}
	e.state = s
	return true
}

// failActivation records err for gen and restores the serving state. A
// stale generation is reported as superseded instead.
func (e *Engine) failActivation(gen uint64, modelID string, err error) error {
	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		activationsTotal.WithLabelValues("superseded").Inc()
		return supersededError{id: modelID}
	}
	e.lastErr = err.Error()
	switch {
	case e.active != nil:
		e.state = StateActive
	case e.fallback != nil:
		e.state = StateFallback
	default:
		e.state = StateIdle
	}
	e.mu.Unlock()
	activationsTotal.WithLabelValues("error").Inc()
	log.Printf("engine event=activate_error model=%q err=%v", modelID, err)
	e.publish("activate_error", modelID, map[string]any{"error": err.Error()})
	return err
}

// commitActive installs the session as the serving one, provided gen is
// still current. The previous session or fallback responder is replaced;
// the old session drains in the background.
func (e *Engine) commitActive(gen uint64, rec types.ModelRecord, cand types.BackendDescriptor, sess runtime.Session, failures []BackendFailure) bool {
	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		activationsTotal.WithLabelValues("superseded").Inc()
		return false
	}
	old := e.active
	e.active = &ActiveSession{
		Model:   rec,
		Backend: cand,
		Session: sess,
		Since:   time.Now(),
		gen:     gen,
	}
	e.fallback = nil
	e.state = StateActive
	e.lastErr = ""
	e.backendErrs = failures
	e.activations++
	e.mu.Unlock()

	if old != nil {
		go e.drainAndClose(old)
	}
	activationsTotal.WithLabelValues("active").Inc()
	fallbackActive.Set(0)
	e.publish("activate_ready", rec.ID, map[string]any{"backend": string(cand.Kind)})
	return true
}

// commitFallback installs the scripted responder after every backend
// refused, provided gen is still current.
func (e *Engine) commitFallback(gen uint64, rec types.ModelRecord, failures []BackendFailure) bool {
	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		activationsTotal.WithLabelValues("superseded").Inc()
		return false
	}
	old := e.active
	e.active = nil
	e.fallback = newFallbackResponder(rec.ID, failures)
	e.state = StateFallback
	e.lastErr = ""
	e.backendErrs = failures
	e.activations++
	e.mu.Unlock()

	if old != nil {
		go e.drainAndClose(old)
	}
	activationsTotal.WithLabelValues("fallback").Inc()
	fallbackActive.Set(1)
	e.publish("activate_fallback", rec.ID, map[string]any{"backends_tried": len(failures)})
	return true
}

// joinContexts returns a context that is done when either parent is done.
// The returned stop releases both registrations and must be called.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
