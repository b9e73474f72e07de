package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"emberd/internal/backend"
	"emberd/internal/catalog"
	"emberd/internal/common/fsutil"
	"emberd/internal/config"
	"emberd/internal/engine"
	"emberd/internal/httpapi"
	"emberd/internal/runtime"
	"emberd/internal/transfer"
)

func main() {
	// Flags with environment variable defaults
	defaultAddr := ":8090"
	if v := os.Getenv("EMBERD_ADDR"); v != "" {
		defaultAddr = v
	}
	defaultModels := "~/models/llm"
	if v := os.Getenv("EMBERD_MODELS_DIR"); v != "" {
		defaultModels = v
	}

	addr := flag.String("addr", defaultAddr, "HTTP listen address, e.g. :8090")
	modelsDir := flag.String("models-dir", defaultModels, "Directory to scan for *.gguf model files")
	stateDir := flag.String("state-dir", "", "Directory for daemon state (default <models-dir>/.emberd)")
	catalogPath := flag.String("catalog", "", "Curated catalog YAML path (empty = built-in)")
	npuCatalogPath := flag.String("npu-catalog", "", "Alternate curated catalog used on NPU hosts")
	defaultModel := flag.String("default-model", "", "Model id to activate when a request omits one")
	preferNPU := flag.Bool("prefer-npu", true, "Try NPU-class backends before GPU ones")
	autoActivate := flag.Bool("auto-activate-last", true, "Re-activate the last active model on startup")
	rateLimitBps := flag.Int64("rate-limit-bps", 0, "Download bandwidth cap in bytes/s (0 = unlimited)")
	maxQueueDepth := flag.Int("max-queue-depth", 0, "Chat admission queue depth (0 = default)")
	maxWaitS := flag.Int("max-wait-s", 0, "Seconds a chat request may wait for admission (0 = default)")
	maxBodyBytes := flag.Int64("max-body-bytes", 0, "Request body cap in bytes (0 = default 1MiB)")
	chatTimeoutS := flag.Int64("chat-timeout-s", 0, "Per-request chat timeout in seconds (0 = none)")
	corsOrigins := flag.String("cors-origins", "", "Comma-separated allowed CORS origins (empty disables CORS)")
	runtimeMode := flag.String("runtime", "", "Runtime adapter: auto, local, spawn, or server")
	serverURL := flag.String("runtime-server-url", "", "Base URL of an existing llama server (server mode)")
	llamaBin := flag.String("llama-bin", "", "Path to llama-server for spawn mode (empty = discover)")
	jsonLogs := flag.Bool("log-json", false, "Emit structured JSON logs for the HTTP layer")
	configPath := flag.String("config", "", "Config file (.yaml/.json/.toml); explicit flags win")
	flag.Parse()

	var cfg config.Config
	haveFile := *configPath != ""
	if haveFile {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("load config %s: %v", *configPath, err)
		}
		cfg = loaded
	}

	// Explicit flags override the file; file values override flag defaults.
	explicit := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	pickString := func(name, flagVal, fileVal string) string {
		if explicit[name] || fileVal == "" {
			return flagVal
		}
		return fileVal
	}
	pickInt := func(name string, flagVal, fileVal int) int {
		if explicit[name] || fileVal == 0 {
			return flagVal
		}
		return fileVal
	}
	pickInt64 := func(name string, flagVal, fileVal int64) int64 {
		if explicit[name] || fileVal == 0 {
			return flagVal
		}
		return fileVal
	}
	pickBool := func(name string, flagVal, fileVal bool) bool {
		if explicit[name] || !haveFile {
			return flagVal
		}
		return fileVal
	}

	cfg.Addr = pickString("addr", *addr, cfg.Addr)
	cfg.ModelsDir = pickString("models-dir", *modelsDir, cfg.ModelsDir)
	cfg.StateDir = pickString("state-dir", *stateDir, cfg.StateDir)
	cfg.CatalogPath = pickString("catalog", *catalogPath, cfg.CatalogPath)
	cfg.NPUCatalogPath = pickString("npu-catalog", *npuCatalogPath, cfg.NPUCatalogPath)
	cfg.DefaultModel = pickString("default-model", *defaultModel, cfg.DefaultModel)
	cfg.PreferNPU = pickBool("prefer-npu", *preferNPU, cfg.PreferNPU)
	cfg.AutoActivateLast = pickBool("auto-activate-last", *autoActivate, cfg.AutoActivateLast)
	cfg.RateLimitBps = pickInt64("rate-limit-bps", *rateLimitBps, cfg.RateLimitBps)
	cfg.MaxQueueDepth = pickInt("max-queue-depth", *maxQueueDepth, cfg.MaxQueueDepth)
	cfg.MaxWaitS = pickInt("max-wait-s", *maxWaitS, cfg.MaxWaitS)
	cfg.MaxBodyBytes = pickInt64("max-body-bytes", *maxBodyBytes, cfg.MaxBodyBytes)
	cfg.ChatTimeoutS = pickInt64("chat-timeout-s", *chatTimeoutS, cfg.ChatTimeoutS)
	cfg.Runtime.Mode = pickString("runtime", *runtimeMode, cfg.Runtime.Mode)
	cfg.Runtime.ServerURL = pickString("runtime-server-url", *serverURL, cfg.Runtime.ServerURL)
	cfg.Runtime.LlamaBin = pickString("llama-bin", *llamaBin, cfg.Runtime.LlamaBin)
	if explicit["cors-origins"] {
		cfg.CORSOrigins = splitCSV(*corsOrigins)
		cfg.CORSEnabled = len(cfg.CORSOrigins) > 0
	}

	dir, err := fsutil.ExpandHome(cfg.ModelsDir)
	if err != nil {
		log.Fatalf("resolve models dir: %v", err)
	}
	if err := fsutil.EnsureDir(dir); err != nil {
		log.Fatalf("create models dir %s: %v", dir, err)
	}
	if cfg.StateDir == "" {
		cfg.StateDir = filepath.Join(dir, ".emberd")
	} else if cfg.StateDir, err = fsutil.ExpandHome(cfg.StateDir); err != nil {
		log.Fatalf("resolve state dir: %v", err)
	}

	store := catalog.NewStore(dir)
	transfers := transfer.NewWithConfig(transfer.ManagerConfig{RateLimitBps: cfg.RateLimitBps})
	detector := backend.NewDetector()
	factory, err := runtime.NewFactory(cfg.Runtime)
	if err != nil {
		log.Fatalf("runtime: %v", err)
	}

	eng := engine.NewWithConfig(store, transfers, detector, factory, engine.EngineConfig{
		DefaultModel:     cfg.DefaultModel,
		PreferNPU:        cfg.PreferNPU,
		CatalogPath:      cfg.CatalogPath,
		NPUCatalogPath:   cfg.NPUCatalogPath,
		StateDir:         cfg.StateDir,
		AutoActivateLast: cfg.AutoActivateLast,
		MaxQueueDepth:    cfg.MaxQueueDepth,
		MaxWait:          time.Duration(cfg.MaxWaitS) * time.Second,
	})

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	if err := eng.Reconcile(baseCtx); err != nil {
		log.Fatalf("catalog reconcile: %v", err)
	}
	eng.AutoActivateLast(baseCtx)

	httpapi.SetBaseContext(baseCtx)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetChatTimeoutSeconds(cfg.ChatTimeoutS)
	if cfg.CORSEnabled || len(cfg.CORSOrigins) > 0 {
		httpapi.SetCORSOptions(true, cfg.CORSOrigins,
			[]string{"GET", "POST", "DELETE", "OPTIONS"},
			[]string{"Content-Type", "X-Log-Level"})
	}
	if *jsonLogs {
		httpapi.SetLogger(zerolog.New(os.Stderr).With().Timestamp().Logger())
	}

	mux := httpapi.NewMux(eng)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("emberd listening on %s (models dir: %s, runtime: %s)", cfg.Addr, dir, factory.Name())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancelBase()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown error: %v", err)
	}
	if err := eng.Close(); err != nil {
		log.Printf("engine close error: %v", err)
	}
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
