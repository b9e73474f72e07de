package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"emberd/pkg/types"
)

func writeFileSized(t *testing.T, path string, n int) {
	t.Helper()
	if err := os.WriteFile(path, make([]byte, n), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestScanDirFiltersArtifacts(t *testing.T) {
	dir := t.TempDir()
	writeFileSized(t, filepath.Join(dir, "a.gguf"), 10)
	writeFileSized(t, filepath.Join(dir, "b.GGUF"), 20)
	writeFileSized(t, filepath.Join(dir, "c.onnx"), 30)
	writeFileSized(t, filepath.Join(dir, "notes.txt"), 5)
	writeFileSized(t, filepath.Join(dir, "weights.bin"), 5)
	writeFileSized(t, filepath.Join(dir, "d.gguf.part"), 7)
	writeFileSized(t, filepath.Join(dir, "junk.part"), 3)
	if err := os.Mkdir(filepath.Join(dir, "sub.gguf"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	res, err := ScanDir(dir)
	if err != nil {
		t.Fatalf("ScanDir: %v", err)
	}
	if len(res.Records) != 3 {
		t.Fatalf("records = %d, want 3", len(res.Records))
	}
	for i := 1; i < len(res.Records); i++ {
		if res.Records[i-1].ID >= res.Records[i].ID {
			t.Fatalf("records not sorted: %q >= %q", res.Records[i-1].ID, res.Records[i].ID)
		}
	}
	for _, rec := range res.Records {
		if !rec.Local || rec.Availability != types.AvailabilityFetched {
			t.Fatalf("record %s: local=%v availability=%s", rec.ID, rec.Local, rec.Availability)
		}
		if rec.Path == "" || rec.SizeBytes == 0 {
			t.Fatalf("record %s missing path or size", rec.ID)
		}
	}
	if len(res.Partials) != 1 || res.Partials["d.gguf"] != 7 {
		t.Fatalf("partials = %v, want d.gguf:7", res.Partials)
	}
}

func TestScanDirMissingDirIsEmpty(t *testing.T) {
	res, err := ScanDir(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("ScanDir on missing dir: %v", err)
	}
	if len(res.Records) != 0 || len(res.Partials) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestFilenameHeuristics(t *testing.T) {
	cases := []struct {
		file   string
		family string
		quant  string
		flavor string
	}{
		{"tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf", "tinyllama", "Q4_K_M", "chat"},
		{"qwen2.5-0.5b-instruct-q4_k_m.gguf", "qwen", "q4_k_m", "instruct"},
		{"phi-2.Q8_0.gguf", "phi", "Q8_0", ""},
		{"mistral-7b-v0.1.f16.gguf", "mistral", "f16", ""},
		{"codellama-7b-instruct.Q5_K_S.gguf", "codellama", "Q5_K_S", "instruct"},
		{"model-int8.onnx", "", "int8", ""},
		{"mystery.gguf", "", "", ""},
	}
	for _, tc := range cases {
		if got := familyOf(tc.file); got != tc.family {
			t.Errorf("familyOf(%s) = %q, want %q", tc.file, got, tc.family)
		}
		if got := quantOf(tc.file); got != tc.quant {
			t.Errorf("quantOf(%s) = %q, want %q", tc.file, got, tc.quant)
		}
		if got := flavorOf(tc.file); got != tc.flavor {
			t.Errorf("flavorOf(%s) = %q, want %q", tc.file, got, tc.flavor)
		}
	}
}
