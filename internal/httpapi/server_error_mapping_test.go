package httpapi

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"emberd/internal/engine"
	"emberd/internal/runtime"
)

func postChat(t *testing.T, svc Service) *httptest.ResponseRecorder {
	t.Helper()
	r := NewMux(svc)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString(`{"prompt":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestChat_ModelNotFoundMaps404(t *testing.T) {
	w := postChat(t, &mockService{chatErr: engine.ErrModelNotFound("m-missing")})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestChat_TooBusyMaps429(t *testing.T) {
	w := postChat(t, &mockService{chatErr: engine.ErrTooBusy()})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}

func TestChat_IntegrityFailureMaps409(t *testing.T) {
	w := postChat(t, &mockService{chatErr: engine.ErrIntegrity("a.gguf", errors.New("sha256 mismatch"))})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestChat_NoSourceMaps409(t *testing.T) {
	w := postChat(t, &mockService{chatErr: engine.ErrNoSource("a.gguf")})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestChat_DependencyUnavailableMaps503(t *testing.T) {
	w := postChat(t, &mockService{chatErr: runtime.ErrDependencyUnavailable("llama adapter not initialized")})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestStatusForError_HTTPErrorPassthrough(t *testing.T) {
	if got := statusForError(mockHTTPError{msg: "gone", code: http.StatusGone}); got != http.StatusGone {
		t.Fatalf("expected 410, got %d", got)
	}
}

func TestStatusForError_UnknownMaps500(t *testing.T) {
	if got := statusForError(errors.New("boom")); got != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", got)
	}
}
