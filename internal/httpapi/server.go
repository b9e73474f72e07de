package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"emberd/internal/engine"
	"emberd/pkg/types"
)

// Service is the engine surface the HTTP layer depends on.
type Service interface {
	Models() []types.ModelRecord
	Backends() []types.BackendDescriptor
	Status(includeSanity bool) types.StatusResponse
	RequestActivation(modelID string, preferNPU *bool) (string, error)
	Deactivate(ctx context.Context) error
	RemoveArtifact(id string) error
	Chat(ctx context.Context, req types.ChatRequest, w io.Writer, flush func()) error
	Subscribe() (<-chan engine.Event, func())
	Ready() bool
}

// NewMux builds the daemon's HTTP router.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}
	r.Use(nosniff)
	r.Use(MetricsMiddleware)

	r.Get("/models", handleListModels(svc))
	r.Get("/backends", handleListBackends(svc))
	r.Get("/status", handleStatus(svc))
	r.Post("/activate", handleActivate(svc))
	r.Post("/deactivate", handleDeactivate(svc))
	r.Delete("/models/{id}/artifact", handleRemoveArtifact(svc))
	r.Post("/chat", handleChat(svc))
	r.Get("/events", handleEvents(svc))
	r.Get("/healthz", handleHealthz())
	r.Get("/readyz", handleReadyz(svc))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	MountSwagger(r)
	return r
}

func nosniff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("httpapi event=encode_failed err=%v", err)
	}
}

// handleListModels returns the merged catalog.
//
//	@Summary	List catalog models
//	@Tags		models
//	@Produce	json
//	@Success	200	{object}	types.ModelsResponse
//	@Router		/models [get]
func handleListModels(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(types.ModelsResponse{Models: svc.Models()}); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "encode response")
		}
	}
}

// handleListBackends returns detected backends in ranked order.
//
//	@Summary	List detected backends
//	@Tags		backends
//	@Produce	json
//	@Success	200	{object}	types.BackendsResponse
//	@Router		/backends [get]
func handleListBackends(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(types.BackendsResponse{Backends: svc.Backends()}); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "encode response")
		}
	}
}

// handleStatus reports the engine state. ?sanity=1 adds environment checks.
//
//	@Summary	Engine status
//	@Tags		status
//	@Produce	json
//	@Param		sanity	query		string	false	"include environment checks when 1 or true"
//	@Success	200		{object}	types.StatusResponse
//	@Router		/status [get]
func handleStatus(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("sanity")
		withSanity := q == "1" || q == "true"
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(svc.Status(withSanity)); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "encode response")
		}
	}
}

// handleActivate accepts an activation request and runs it in the background.
// The response carries an operation id; progress is visible on /status and /events.
//
//	@Summary	Activate a model
//	@Tags		models
//	@Accept		json
//	@Produce	json
//	@Param		request	body		types.ActivateRequest	true	"activation request"
//	@Success	202		{object}	types.ActivateResponse
//	@Failure	400		{object}	types.ErrorResponse
//	@Failure	404		{object}	types.ErrorResponse
//	@Router		/activate [post]
func handleActivate(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.ActivateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		op, err := svc.RequestActivation(strings.TrimSpace(req.Model), req.PreferNPU)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, types.ActivateResponse{OpID: op, State: svc.Status(false).State})
	}
}

// handleDeactivate drains and closes the serving session.
//
//	@Summary	Deactivate the active model
//	@Tags		models
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Router		/deactivate [post]
func handleDeactivate(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if err := svc.Deactivate(ctx); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"state": svc.Status(false).State})
	}
}

// handleRemoveArtifact deletes a model's local bytes on explicit request.
// This is also how a failed verification verdict is cleared.
//
//	@Summary	Remove a model's downloaded artifact
//	@Tags		models
//	@Produce	json
//	@Param		id	path		string	true	"model id (filename)"
//	@Success	200	{object}	map[string]string
//	@Failure	404	{object}	types.ErrorResponse
//	@Router		/models/{id}/artifact [delete]
func handleRemoveArtifact(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			writeJSONError(w, http.StatusBadRequest, "model id is required")
			return
		}
		if err := svc.RemoveArtifact(id); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"removed": id})
	}
}

// handleChat streams a generation as NDJSON: one JSON object per token,
// then a final object with done=true.
//
//	@Summary	Chat with the active model
//	@Tags		chat
//	@Accept		json
//	@Produce	json
//	@Param		request	body	types.ChatRequest	true	"chat request"
//	@Success	200		"NDJSON token stream"
//	@Failure	409		{object}	types.ErrorResponse
//	@Failure	429		{object}	types.ErrorResponse
//	@Router		/chat [post]
func handleChat(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Prompt) == "" {
			writeJSONError(w, http.StatusBadRequest, "prompt is required")
			return
		}

		lvl := requestLogLevel(r)
		logChatStart(r, lvl, len(req.Prompt))

		w.Header().Set("Content-Type", "application/x-ndjson")
		var flush func()
		if f, ok := w.(http.Flusher); ok {
			flush = f.Flush
		}
		out := io.Writer(w)
		if lvl >= LevelDebug {
			out = io.MultiWriter(w, &loggingLineWriter{})
		}

		joined, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		ctx := joined
		if chatTimeout > 0 {
			var tcancel context.CancelFunc
			ctx, tcancel = context.WithTimeout(joined, time.Duration(chatTimeout)*time.Second)
			defer tcancel()
		}

		start := time.Now()
		if err := svc.Chat(ctx, req, out, flush); err != nil {
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				// Client went away or the server is shutting down.
				return
			}
			status := writeServiceError(w, err)
			logChatEnd(r, lvl, status, start, err)
			return
		}
		logChatEnd(r, lvl, http.StatusOK, start, nil)
	}
}

func logChatStart(r *http.Request, lvl LogLevel, promptLen int) {
	if lvl < LevelInfo {
		return
	}
	if zlog != nil {
		ev := zlog.Info().Str("path", r.URL.Path).Int("prompt_len", promptLen)
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			ev = ev.Str("request_id", rid)
		}
		ev.Msg("chat start")
		return
	}
	log.Printf("chat start path=%s prompt_len=%d", r.URL.Path, promptLen)
}

func logChatEnd(r *http.Request, lvl LogLevel, status int, start time.Time, err error) {
	if lvl < LevelInfo {
		return
	}
	dur := time.Since(start)
	if zlog != nil {
		ev := zlog.Info().Str("path", r.URL.Path).Int("status", status).Dur("dur", dur)
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			ev = ev.Str("request_id", rid)
		}
		if err != nil {
			ev = ev.Err(err)
		}
		ev.Msg("chat end")
		return
	}
	if err != nil {
		log.Printf("chat end path=%s status=%d dur=%s err=%v", r.URL.Path, status, dur, err)
		return
	}
	log.Printf("chat end path=%s status=%d dur=%s", r.URL.Path, status, dur)
}

// handleEvents streams engine lifecycle events as NDJSON until the client
// disconnects or the server shuts down.
//
//	@Summary	Stream engine events
//	@Tags		status
//	@Produce	json
//	@Success	200	"NDJSON event stream"
//	@Router		/events [get]
func handleEvents(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, ok := w.(http.Flusher)
		if !ok {
			writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}
		ch, cancel := svc.Subscribe()
		defer cancel()

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		f.Flush()

		enc := json.NewEncoder(w)
		for {
			select {
			case <-r.Context().Done():
				return
			case <-serverBaseCtx.Done():
				return
			case ev, open := <-ch:
				if !open {
					return
				}
				if err := enc.Encode(ev); err != nil {
					return
				}
				f.Flush()
			}
		}
	}
}

// handleHealthz reports process liveness.
//
//	@Summary	Liveness probe
//	@Tags		status
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Router		/healthz [get]
func handleHealthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// handleReadyz reports readiness: the engine must be past its boot phase.
//
//	@Summary	Readiness probe
//	@Tags		status
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Failure	503	{object}	map[string]string
//	@Router		/readyz [get]
func handleReadyz(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !svc.Ready() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
