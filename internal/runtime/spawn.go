package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"emberd/internal/config"
	"emberd/pkg/types"
)

const (
	spawnPortStart    = 8750
	spawnPortEnd      = 8799
	spawnReadyTimeout = 30 * time.Second
)

// spawnFactory launches one llama-server subprocess per activated model and
// talks to it over loopback with the same streaming client the server
// adapter uses.
type spawnFactory struct {
	bin       string
	host      string
	ctxSize   int
	threads   int
	gpuLayers int
	client    *http.Client

	mu    sync.Mutex
	procs map[string]*procInfo // key: model path
}

type procInfo struct {
	cmd     *exec.Cmd
	baseURL string
	pid     int
	backend types.BackendKind
}

func newSpawnFactory(cfg config.RuntimeConfig) *spawnFactory {
	bin := strings.TrimSpace(cfg.LlamaBin)
	if bin == "" {
		bin = discoverServerBin()
	}
	// Timeout stays 0: completion streams are long-lived and every request
	// carries a context.
	return &spawnFactory{
		bin:       bin,
		host:      "127.0.0.1",
		ctxSize:   cfg.CtxSize,
		threads:   cfg.Threads,
		gpuLayers: cfg.GPULayers,
		client:    &http.Client{Timeout: 0},
		procs:     make(map[string]*procInfo),
	}
}

func (f *spawnFactory) Name() string { return "spawn" }

func (f *spawnFactory) Available() (bool, string) {
	if f.bin == "" {
		return false, "llama-server binary not found"
	}
	if fi, err := os.Stat(f.bin); err != nil || fi.IsDir() {
		return false, fmt.Sprintf("llama-server not usable at %s", f.bin)
	}
	return true, f.bin
}

// Supports: llama-server drives CPU and the GPU paths it was compiled for.
// NPU-class backends need a dedicated serving stack, reachable through the
// server adapter instead.
func (f *spawnFactory) Supports(kind types.BackendKind) bool {
	switch kind {
	case types.BackendCPU, types.BackendCUDA, types.BackendVulkan, types.BackendMetal:
		return true
	}
	return false
}

// gpuLayersFor maps a backend to the -ngl argument. 999 means "offload all
// layers"; llama-server clamps it to the model's layer count.
func (f *spawnFactory) gpuLayersFor(kind types.BackendKind) int {
	if !kind.IsGPUClass() {
		return 0
	}
	if f.gpuLayers > 0 {
		return f.gpuLayers
	}
	return 999
}

func (f *spawnFactory) Open(ctx context.Context, rec types.ModelRecord, backend types.BackendKind) (Session, error) {
	if !f.Supports(backend) {
		return nil, ErrBackendUnsupported(f.Name(), backend)
	}
	if ok, detail := f.Available(); !ok {
		return nil, ErrDependencyUnavailable(detail)
	}
	if strings.TrimSpace(rec.Path) == "" {
		return nil, fmt.Errorf("model %s has no local artifact", rec.ID)
	}
	baseURL, err := f.ensureProcess(ctx, rec.Path, backend)
	if err != nil {
		return nil, err
	}
	return &spawnSession{
		serverSession: serverSession{
			client:  f.client,
			baseURL: baseURL,
			model:   rec.ID,
			backend: backend,
		},
		factory:   f,
		modelPath: rec.Path,
	}, nil
}

// spawnSession is a server session whose Close also stops the subprocess,
// releasing the model's memory.
type spawnSession struct {
	serverSession
	factory   *spawnFactory
	modelPath string
}

func (s *spawnSession) Close() error { return s.factory.Stop(s.modelPath) }

// ensureProcess starts (or reuses) the llama-server for a model path and
// waits for readiness. A process started for a different backend is
// restarted so the offload arguments match.
func (f *spawnFactory) ensureProcess(ctx context.Context, modelPath string, backend types.BackendKind) (string, error) {
	f.mu.Lock()
	if p := f.procs[modelPath]; p != nil {
		base := p.baseURL
		sameBackend := p.backend == backend
		f.mu.Unlock()
		if sameBackend && f.isHealthy(base, time.Second) {
			return base, nil
		}
		_ = f.Stop(modelPath)
	} else {
		f.mu.Unlock()
	}

	port, err := pickPortInRange(f.host, spawnPortStart, spawnPortEnd)
	if err != nil {
		port, err = pickFreePort(f.host)
	}
	if err != nil {
		return "", err
	}
	baseURL := fmt.Sprintf("http://%s:%d", f.host, port)

	cmd := exec.Command(f.bin, f.buildArgs(modelPath, port, backend)...)
	cmd.Dir = filepath.Dir(modelPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return "", ErrDependencyUnavailable(fmt.Sprintf("start llama-server: %v", err))
	}
	log.Printf("adapter=spawn event=start model=%q backend=%s pid=%d port=%d", modelPath, backend, cmd.Process.Pid, port)

	f.mu.Lock()
	f.procs[modelPath] = &procInfo{cmd: cmd, baseURL: baseURL, pid: cmd.Process.Pid, backend: backend}
	f.mu.Unlock()

	// Early-exit watcher: a crash during model load must surface instead
	// of timing out.
	waitErrCh := make(chan error, 1)
	go func() { waitErrCh <- cmd.Wait() }()

	deadline := time.Now().Add(spawnReadyTimeout)
	for {
		select {
		case werr := <-waitErrCh:
			f.dropProc(modelPath)
			tail := stderr.String()
			if len(tail) > 4096 {
				tail = tail[len(tail)-4096:]
			}
			log.Printf("adapter=spawn event=exit_early model=%q pid=%d err=%v", modelPath, cmd.Process.Pid, werr)
			return "", fmt.Errorf("llama-server exited before ready: %v; stderr tail: %s", werr, tail)
		case <-ctx.Done():
			_ = f.Stop(modelPath)
			return "", ctx.Err()
		default:
		}
		if time.Now().After(deadline) {
			_ = f.Stop(modelPath)
			log.Printf("adapter=spawn event=timeout model=%q pid=%d", modelPath, cmd.Process.Pid)
			return "", fmt.Errorf("llama-server not ready in time: %s", baseURL)
		}
		if f.isHealthy(baseURL, time.Second) {
			log.Printf("adapter=spawn event=ready model=%q pid=%d url=%s", modelPath, cmd.Process.Pid, baseURL)
			return baseURL, nil
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func (f *spawnFactory) buildArgs(modelPath string, port int, backend types.BackendKind) []string {
	args := []string{
		"-m", modelPath,
		"--host", f.host,
		"--port", strconv.Itoa(port),
		"-ngl", strconv.Itoa(f.gpuLayersFor(backend)),
	}
	if f.ctxSize > 0 {
		args = append(args, "-c", strconv.Itoa(f.ctxSize))
	}
	if f.threads > 0 {
		args = append(args, "-t", strconv.Itoa(f.threads))
	}
	return args
}

func (f *spawnFactory) isHealthy(baseURL string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (f *spawnFactory) dropProc(modelPath string) {
	f.mu.Lock()
	delete(f.procs, modelPath)
	f.mu.Unlock()
}

// Stop terminates the subprocess for a model path: SIGTERM first, Kill
// after a grace period.
func (f *spawnFactory) Stop(modelPath string) error {
	f.mu.Lock()
	p := f.procs[modelPath]
	f.mu.Unlock()
	if p == nil || p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	_ = p.cmd.Process.Signal(syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		_, _ = p.cmd.Process.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		_ = p.cmd.Process.Kill()
		<-done
	}
	f.dropProc(modelPath)
	log.Printf("adapter=spawn event=stop model=%q pid=%d", modelPath, p.pid)
	return nil
}

// StopAll terminates every managed subprocess. Best effort, used on
// shutdown.
func (f *spawnFactory) StopAll() {
	f.mu.Lock()
	paths := make([]string, 0, len(f.procs))
	for k := range f.procs {
		paths = append(paths, k)
	}
	f.mu.Unlock()
	for _, p := range paths {
		_ = f.Stop(p)
	}
}

func pickPortInRange(host string, start, end int) (int, error) {
	for p := start; p <= end; p++ {
		l, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, p))
		if err != nil {
			continue
		}
		_ = l.Close()
		return p, nil
	}
	return 0, fmt.Errorf("no free port in range %d-%d", start, end)
}

func pickFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", host+":0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	addr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0, errors.New("unexpected listener address type")
	}
	return addr.Port, nil
}

// discoverServerBin looks for a llama-server binary in common install
// locations. Environment variables are deliberately not consulted; callers
// override with the runtime.llama_bin setting.
func discoverServerBin() string {
	home, _ := os.UserHomeDir()
	candidates := []string{
		filepath.Join(home, "apps", "llama.cpp", "build", "bin", "llama-server"),
		filepath.Join(home, ".local", "bin", "llama-server"),
		"/usr/local/bin/llama-server",
		"/opt/homebrew/bin/llama-server",
	}
	for _, p := range candidates {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	if lp, err := exec.LookPath("llama-server"); err == nil {
		return lp
	}
	return ""
}
