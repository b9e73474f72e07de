package e2e

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"emberd/internal/backend"
	"emberd/internal/catalog"
	"emberd/internal/engine"
	"emberd/internal/httpapi"
	"emberd/internal/runtime"
	"emberd/internal/transfer"
	"emberd/pkg/types"
)

// stubFactory is a runtime adapter that loads instantly on any backend and
// generates a short scripted token stream, so the full activation and chat
// pipeline runs without model weights or GPU libraries.
type stubFactory struct {
	mu      sync.Mutex
	opened  int
	openErr error
	gate    chan struct{}
	tokens  []string
}

func (f *stubFactory) Name() string                         { return "stub" }
func (f *stubFactory) Available() (bool, string)            { return true, "stub runtime" }
func (f *stubFactory) Supports(kind types.BackendKind) bool { return true }

func (f *stubFactory) Open(ctx context.Context, rec types.ModelRecord, kind types.BackendKind) (runtime.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opened++
	return &stubSession{factory: f, model: rec.ID, backend: kind}, nil
}

type stubSession struct {
	factory *stubFactory
	model   string
	backend types.BackendKind
}

func (s *stubSession) Model() string              { return s.model }
func (s *stubSession) Backend() types.BackendKind { return s.backend }
func (s *stubSession) Close() error               { return nil }

func (s *stubSession) Generate(ctx context.Context, req types.ChatRequest, onToken runtime.TokenFunc) (runtime.Result, error) {
	if gate := s.factory.gate; gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return runtime.Result{}, ctx.Err()
		}
	}
	toks := s.factory.tokens
	if len(toks) == 0 {
		toks = []string{"Hello", " from ", s.model}
	}
	var b strings.Builder
	for _, tok := range toks {
		if err := onToken(tok); err != nil {
			return runtime.Result{}, err
		}
		b.WriteString(tok)
	}
	return runtime.Result{
		Content:          b.String(),
		FinishReason:     "stop",
		PromptTokens:     1,
		CompletionTokens: len(toks),
	}, nil
}

func hexSum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// newTestServer boots the real stack over a models directory: store, transfer
// manager, backend detector, the given runtime factory, engine, HTTP mux.
func newTestServer(t *testing.T, dir string, factory runtime.Factory, cfg engine.EngineConfig) (*httptest.Server, *engine.Engine) {
	t.Helper()
	store := catalog.NewStore(dir)
	eng := engine.NewWithConfig(store, transfer.New(), backend.NewDetector(), factory, cfg)
	if err := eng.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })
	srv := httptest.NewServer(httpapi.NewMux(eng))
	t.Cleanup(srv.Close)
	return srv, eng
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

// waitForState polls /status until the engine reports the wanted state.
func waitForState(t *testing.T, baseURL, want string) types.StatusResponse {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var st types.StatusResponse
	for {
		resp, body := httpGet(t, baseURL+"/status")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("/status status=%d body=%s", resp.StatusCode, string(body))
		}
		if err := json.Unmarshal(body, &st); err != nil {
			t.Fatalf("/status json: %v body=%s", err, string(body))
		}
		if st.State == want {
			return st
		}
		if time.Now().After(deadline) {
			t.Fatalf("state did not reach %q in time; last=%q lastErr=%q", want, st.State, st.LastError)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
