package emberctl

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"emberd/internal/transfer"
	"emberd/pkg/types"
)

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

func writeCatalog(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, "catalog.yaml")
	writeFile(t, p, []byte(body))
	return p
}

func TestHashPrintsDigestAndPath(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "blob.bin")
	writeFile(t, p, []byte("abc"))

	var buf bytes.Buffer
	if err := fnHash(context.Background(), p, &buf); err != nil {
		t.Fatalf("fnHash: %v", err)
	}
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if !strings.Contains(buf.String(), want) {
		t.Fatalf("output %q missing digest %s", buf.String(), want)
	}
	if !strings.Contains(buf.String(), p) {
		t.Fatalf("output %q missing path", buf.String())
	}
}

func TestCatalogMergesScanAndCurated(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "local.gguf"), []byte("weights"))
	cat := writeCatalog(t, t.TempDir(), "- file: remote.gguf\n  name: Remote Model\n  url: https://example.invalid/remote.gguf\n")

	cfg := &Config{ModelsDir: dir, CatalogPath: cat}
	var buf bytes.Buffer
	if err := fnCatalog(cfg, &buf); err != nil {
		t.Fatalf("fnCatalog: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"local.gguf", "remote.gguf", "fetched", "not_fetched"} {
		if !strings.Contains(out, want) {
			t.Fatalf("catalog output missing %q:\n%s", want, out)
		}
	}
}

func TestCatalogJSONRoundTrips(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "local.gguf"), []byte("weights"))

	cat := writeCatalog(t, t.TempDir(), "- file: remote.gguf\n  url: https://example.invalid/remote.gguf\n")
	cfg := &Config{ModelsDir: dir, JSON: true, CatalogPath: cat}
	var buf bytes.Buffer
	if err := fnCatalog(cfg, &buf); err != nil {
		t.Fatalf("fnCatalog: %v", err)
	}
	var recs []types.ModelRecord
	if err := json.Unmarshal(buf.Bytes(), &recs); err != nil {
		t.Fatalf("output is not valid json: %v\n%s", err, buf.String())
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
}

func TestCatalogFailsLoudOnUnreadableCatalog(t *testing.T) {
	cfg := &Config{ModelsDir: t.TempDir(), CatalogPath: filepath.Join(t.TempDir(), "missing.yaml")}
	if err := fnCatalog(cfg, &bytes.Buffer{}); err == nil {
		t.Fatal("expected an error for a missing catalog file")
	}
}

func TestBackendsAlwaysListsCPU(t *testing.T) {
	cfg := &Config{PreferNPU: true}
	var buf bytes.Buffer
	if err := fnBackends(cfg, false, &buf); err != nil {
		t.Fatalf("fnBackends: %v", err)
	}
	if !strings.Contains(buf.String(), "cpu") {
		t.Fatalf("backends output missing cpu:\n%s", buf.String())
	}
}

func TestBackendsJSON(t *testing.T) {
	cfg := &Config{JSON: true}
	var buf bytes.Buffer
	if err := fnBackends(cfg, true, &buf); err != nil {
		t.Fatalf("fnBackends: %v", err)
	}
	var list []types.BackendDescriptor
	if err := json.Unmarshal(buf.Bytes(), &list); err != nil {
		t.Fatalf("output is not valid json: %v\n%s", err, buf.String())
	}
	if len(list) == 0 {
		t.Fatal("expected at least the cpu backend")
	}
}

func TestFetchDownloadsVerifiesAndPromotes(t *testing.T) {
	body := bytes.Repeat([]byte("weights!"), 512)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/remote.gguf":
			_, _ = w.Write(body)
		case "/tokenizer.json":
			_, _ = w.Write([]byte(`{"vocab":[]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	cat := writeCatalog(t, t.TempDir(), fmt.Sprintf(
		"- file: remote.gguf\n  name: Remote Model\n  url: %s/remote.gguf\n  sha256: %s\n  size_bytes: %d\n  aux_urls:\n    - %s/tokenizer.json\n",
		srv.URL, hexSum(body), len(body), srv.URL))
	cfg := &Config{ModelsDir: dir, CatalogPath: cat}

	var buf bytes.Buffer
	if err := fnFetch(context.Background(), cfg, "remote.gguf", &buf); err != nil {
		t.Fatalf("fnFetch: %v\n%s", err, buf.String())
	}

	final := filepath.Join(dir, "remote.gguf")
	got, err := os.ReadFile(final)
	if err != nil {
		t.Fatalf("read fetched artifact: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("artifact bytes differ: got %d want %d", len(got), len(body))
	}
	if _, err := os.Stat(final + transfer.PartSuffix); !os.IsNotExist(err) {
		t.Fatalf("partial file should be gone after promote: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "tokenizer.json")); err != nil {
		t.Fatalf("aux file missing: %v", err)
	}
	if !strings.Contains(buf.String(), "fetched remote.gguf") {
		t.Fatalf("output missing fetch confirmation:\n%s", buf.String())
	}

	// A second fetch sees the complete artifact and does nothing.
	buf.Reset()
	if err := fnFetch(context.Background(), cfg, "remote.gguf", &buf); err != nil {
		t.Fatalf("second fnFetch: %v", err)
	}
	if !strings.Contains(buf.String(), "already fetched") {
		t.Fatalf("second fetch should short-circuit:\n%s", buf.String())
	}
}

func TestFetchUnknownModel(t *testing.T) {
	cfg := &Config{ModelsDir: t.TempDir()}
	err := fnFetch(context.Background(), cfg, "nope.gguf", &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "model not found") {
		t.Fatalf("err = %v, want model not found", err)
	}
}

func TestFetchWithoutSource(t *testing.T) {
	dir := t.TempDir()
	// A curated record with no url: nothing to download from.
	cat := writeCatalog(t, t.TempDir(), "- file: remote.gguf\n  url: \"\"\n")
	cfg := &Config{ModelsDir: dir, CatalogPath: cat}
	err := fnFetch(context.Background(), cfg, "remote.gguf", &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "no download source") {
		t.Fatalf("err = %v, want no download source", err)
	}
}

func TestFetchIntegrityMismatchKeepsPartial(t *testing.T) {
	body := []byte("these bytes will not match the declared hash")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	cat := writeCatalog(t, t.TempDir(), fmt.Sprintf(
		"- file: bad.gguf\n  url: %s/bad.gguf\n  sha256: %s\n  size_bytes: %d\n",
		srv.URL, strings.Repeat("0", 64), len(body)))
	cfg := &Config{ModelsDir: dir, CatalogPath: cat}

	err := fnFetch(context.Background(), cfg, "bad.gguf", &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "bytes kept") {
		t.Fatalf("err = %v, want an integrity error that names the kept bytes", err)
	}
	final := filepath.Join(dir, "bad.gguf")
	if _, serr := os.Stat(final); !os.IsNotExist(serr) {
		t.Fatal("failed bytes must never reach the final path")
	}
	if _, serr := os.Stat(final + transfer.PartSuffix); serr != nil {
		t.Fatalf("failed bytes should be retained at the partial path: %v", serr)
	}
}

func TestVerifyAgainstCatalogHash(t *testing.T) {
	dir := t.TempDir()
	body := []byte("verified weights")
	writeFile(t, filepath.Join(dir, "model.gguf"), body)
	cat := writeCatalog(t, t.TempDir(), fmt.Sprintf("- file: model.gguf\n  url: https://example.invalid/model.gguf\n  sha256: %s\n", hexSum(body)))
	cfg := &Config{ModelsDir: dir, CatalogPath: cat}

	var buf bytes.Buffer
	if err := fnVerify(context.Background(), cfg, "model.gguf", &buf); err != nil {
		t.Fatalf("fnVerify: %v", err)
	}
	if !strings.Contains(buf.String(), "catalog match") {
		t.Fatalf("output missing match confirmation:\n%s", buf.String())
	}
}

func TestVerifyReportsMismatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "model.gguf"), []byte("tampered"))
	cat := writeCatalog(t, t.TempDir(), fmt.Sprintf("- file: model.gguf\n  url: https://example.invalid/model.gguf\n  sha256: %s\n", strings.Repeat("a", 64)))
	cfg := &Config{ModelsDir: dir, CatalogPath: cat}

	err := fnVerify(context.Background(), cfg, "model.gguf", &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "mismatch") {
		t.Fatalf("err = %v, want mismatch", err)
	}
}

func TestVerifyWithoutCatalogHash(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "model.gguf"), []byte("weights"))
	cfg := &Config{ModelsDir: dir, CatalogPath: writeCatalog(t, t.TempDir(), "[]\n")}

	var buf bytes.Buffer
	if err := fnVerify(context.Background(), cfg, "model.gguf", &buf); err != nil {
		t.Fatalf("fnVerify: %v", err)
	}
	if !strings.Contains(buf.String(), "declares no hash") {
		t.Fatalf("output should note the missing catalog hash:\n%s", buf.String())
	}
}

func TestVerifyRejectsPartialDownload(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "model.gguf"+transfer.PartSuffix), []byte("half"))
	cat := writeCatalog(t, t.TempDir(), "- file: model.gguf\n  url: https://example.invalid/model.gguf\n")
	cfg := &Config{ModelsDir: dir, CatalogPath: cat}

	err := fnVerify(context.Background(), cfg, "model.gguf", &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "partially downloaded") {
		t.Fatalf("err = %v, want partial download refusal", err)
	}
}

func TestRemoveDeletesLocalBytes(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "model.gguf")
	writeFile(t, p, []byte("weights"))
	cfg := &Config{ModelsDir: dir, CatalogPath: writeCatalog(t, t.TempDir(), "[]\n")}

	var buf bytes.Buffer
	if err := fnRemove(cfg, "model.gguf", &buf); err != nil {
		t.Fatalf("fnRemove: %v", err)
	}
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Fatalf("artifact should be deleted, stat = %v", err)
	}
	if !strings.Contains(buf.String(), "removed local bytes") {
		t.Fatalf("output missing removal confirmation:\n%s", buf.String())
	}
}

func TestRemoveUnknownModel(t *testing.T) {
	cfg := &Config{ModelsDir: t.TempDir()}
	err := fnRemove(cfg, "nope.gguf", &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "model not found") {
		t.Fatalf("err = %v, want model not found", err)
	}
}

func TestHumanBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{668788096, "637.8 MiB"},
		{3 << 30, "3.0 GiB"},
	}
	for _, c := range cases {
		if got := humanBytes(c.in); got != c.want {
			t.Fatalf("humanBytes(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}
