package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"emberd/internal/engine"
	"emberd/internal/runtime"
	"emberd/internal/transfer"
	"emberd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusForError maps well-known engine, transfer, and runtime errors to
// HTTP status codes. Unknown errors become 500.
func statusForError(err error) int {
	switch {
	case engine.IsModelNotFound(err):
		return http.StatusNotFound
	case engine.IsTooBusy(err):
		return http.StatusTooManyRequests
	case engine.IsIntegrityFailed(err):
		return http.StatusConflict
	case engine.IsNoSource(err):
		return http.StatusConflict
	case engine.IsNoActiveSession(err):
		return http.StatusConflict
	case transfer.IsDisk(err):
		return http.StatusInsufficientStorage
	case transfer.IsNetwork(err) || transfer.IsServer(err):
		return http.StatusBadGateway
	case runtime.IsDependencyUnavailable(err):
		return http.StatusServiceUnavailable
	}
	var he HTTPError
	if errors.As(err, &he) {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// writeServiceError maps err and writes it, bumping the backpressure
// counter for busy rejections.
func writeServiceError(w http.ResponseWriter, err error) int {
	status := statusForError(err)
	if status == http.StatusTooManyRequests {
		IncrementBackpressure("generation_queue")
	}
	writeJSONError(w, status, err.Error())
	return status
}
