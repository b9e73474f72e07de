//go:build llama

package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"

	"emberd/internal/config"
	"emberd/pkg/types"
)

// llamaBuilt reports that this binary carries the cgo llama bindings.
var llamaBuilt = true

// localFactory runs inference in-process through llama.cpp bindings.
type localFactory struct {
	ctxSize   int
	threads   int
	gpuLayers int
}

// NewLocalFactory returns the in-process adapter. In binaries built without
// the llama tag the stub variant of this constructor applies.
func NewLocalFactory(cfg config.RuntimeConfig) Factory {
	return &localFactory{ctxSize: cfg.CtxSize, threads: cfg.Threads, gpuLayers: cfg.GPULayers}
}

func (f *localFactory) Name() string { return "local" }

func (f *localFactory) Available() (bool, string) { return true, "llama.cpp bindings built in" }

// Supports: the bindings drive CPU plus the GPU offload paths llama.cpp was
// compiled with. Vulkan and the NPU-class backends are out of reach for
// this binding generation.
func (f *localFactory) Supports(kind types.BackendKind) bool {
	switch kind {
	case types.BackendCPU, types.BackendCUDA, types.BackendMetal:
		return true
	}
	return false
}

func (f *localFactory) Open(ctx context.Context, rec types.ModelRecord, backend types.BackendKind) (Session, error) {
	if !f.Supports(backend) {
		return nil, ErrBackendUnsupported(f.Name(), backend)
	}
	if strings.TrimSpace(rec.Path) == "" {
		return nil, errors.New("model " + rec.ID + " has no local artifact")
	}
	mo := []llama.ModelOption{
		llama.SetContext(f.ctxSize),
	}
	if backend.IsGPUClass() {
		// 999 offloads all layers; llama.cpp clamps to the model's count.
		mo = append(mo, llama.SetGPULayers(zn(f.gpuLayers, 999)))
	}
	m, err := llama.New(rec.Path, mo...)
	if err != nil {
		return nil, err
	}
	// Loading validates the file and allocates; it does not execute. One
	// inert token proves the selected compute path before the session is
	// handed out.
	if _, err := m.Predict(" ", llama.SetTokens(1), llama.SetThreads(zn(f.threads, 4))); err != nil {
		m.Free()
		return nil, fmt.Errorf("compute probe on %s: %w", backend, err)
	}
	return &localSession{model: m, threads: f.threads, id: rec.ID, backend: backend}, nil
}

// localSession owns the loaded model.
type localSession struct {
	model   *llama.LLama
	threads int
	id      string
	backend types.BackendKind
}

func (s *localSession) Model() string              { return s.id }
func (s *localSession) Backend() types.BackendKind { return s.backend }

func (s *localSession) Generate(ctx context.Context, req types.ChatRequest, onToken TokenFunc) (Result, error) {
	if s.model == nil {
		return Result{}, errors.New("llama model not initialized")
	}
	var content strings.Builder
	s.model.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		content.WriteString(tok)
		return onToken(tok) == nil
	})
	text, err := s.model.Predict(req.Prompt, predictOptions(req, s.threads)...)
	if err != nil {
		if ctx.Err() != nil {
			return Result{Content: content.String()}, ctx.Err()
		}
		return Result{Content: content.String()}, err
	}
	return Result{Content: text, FinishReason: "stop"}, nil
}

func (s *localSession) Close() error {
	if s.model != nil {
		s.model.Free()
		s.model = nil
	}
	return nil
}

func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func zf(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}

// predictOptions converts a chat request into go-llama.cpp options, falling
// back to the binding defaults for unset knobs.
func predictOptions(req types.ChatRequest, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(zn(req.MaxTokens, 512)),
		llama.SetThreads(zn(threads, 4)),
		llama.SetTopP(zf(float32(req.TopP), llama.DefaultOptions.TopP)),
		llama.SetTopK(zn(req.TopK, llama.DefaultOptions.TopK)),
		llama.SetTemperature(zf(float32(req.Temperature), llama.DefaultOptions.Temperature)),
		llama.SetPenalty(zf(float32(req.RepeatPenalty), llama.DefaultOptions.Penalty)),
	}
	if req.Seed != 0 {
		po = append(po, llama.SetSeed(int(req.Seed)))
	}
	if len(req.Stop) > 0 {
		po = append(po, llama.SetStopWords(req.Stop...))
	}
	return po
}
