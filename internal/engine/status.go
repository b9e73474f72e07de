package engine

import (
	"time"

	"emberd/pkg/types"
)

// Status projects the engine's state for GET /status. includeSanity adds
// the environment checks, which touch the filesystem and runtime.
func (e *Engine) Status(includeSanity bool) types.StatusResponse {
	e.mu.RLock()
	resp := types.StatusResponse{
		State:            string(e.state),
		QueueLen:         len(e.queueCh),
		Inflight:         len(e.genCh),
		MaxQueueDepth:    cap(e.queueCh),
		ActivationsTotal: e.activations,
		LastError:        e.lastErr,
		UptimeSeconds:    int64(time.Since(e.started).Seconds()),
		ServerTimeUnix:   time.Now().Unix(),
	}
	if e.active != nil {
		resp.ActiveModel = e.active.Model.ID
		resp.ActiveBackend = string(e.active.Backend.Kind)
	}
	if e.fallback != nil {
		resp.FallbackActive = true
		resp.FallbackReason = e.fallback.reason
	}
	if len(e.backendErrs) > 0 {
		resp.BackendErrors = make(map[string]string, len(e.backendErrs))
		for _, f := range e.backendErrs {
			resp.BackendErrors[f.Backend] = f.Error
		}
	}
	e.mu.RUnlock()

	resp.Transfers = e.transfers.Statuses()
	if includeSanity {
		report := e.Sanity()
		resp.Sanity = &report
	}
	return resp
}
