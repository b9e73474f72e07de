package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "addr: :9999\nmodels_dir: /tmp\nprefer_npu: true\ndefault_model: m1\nrate_limit_bps: 1024\nruntime:\n  mode: spawn\n  llama_bin: /usr/local/bin/llama-server\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.ModelsDir != "/tmp" || !cfg.PreferNPU || cfg.DefaultModel != "m1" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.RateLimitBps != 1024 {
		t.Fatalf("rate_limit_bps: %d", cfg.RateLimitBps)
	}
	if cfg.Runtime.Mode != "spawn" || cfg.Runtime.LlamaBin != "/usr/local/bin/llama-server" {
		t.Fatalf("runtime cfg: %+v", cfg.Runtime)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","models_dir":"/m","catalog_path":"/etc/ember/catalog.yaml","max_queue_depth":8,"runtime":{"server_url":"http://127.0.0.1:9001"}}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.ModelsDir != "/m" || cfg.CatalogPath != "/etc/ember/catalog.yaml" || cfg.MaxQueueDepth != 8 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Runtime.ServerURL != "http://127.0.0.1:9001" {
		t.Fatalf("runtime cfg: %+v", cfg.Runtime)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\nmodels_dir=\"/x\"\nnpu_catalog_path=\"/etc/ember/npu.yaml\"\nauto_activate_last=true\n[runtime]\nmode=\"local\"\nctx_size=4096\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.ModelsDir != "/x" || cfg.NPUCatalogPath != "/etc/ember/npu.yaml" || !cfg.AutoActivateLast {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Runtime.Mode != "local" || cfg.Runtime.CtxSize != 4096 {
		t.Fatalf("runtime cfg: %+v", cfg.Runtime)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
}

func TestLoad_NonexistentFile(t *testing.T) {
	if _, err := Load("/definitely/not/a/real/file-12345.yaml"); err == nil {
		t.Fatalf("expected error for nonexistent file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "bad.yaml", "addr: :8080\n: broken\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected YAML unmarshal error")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "bad.json", `{ "addr": ":8080", "models_dir": }`)
	if _, err := Load(p); err == nil {
		t.Fatalf("expected JSON unmarshal error")
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "bad.toml", "addr=:8080\nmodels_dir\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected TOML unmarshal error")
	}
}
