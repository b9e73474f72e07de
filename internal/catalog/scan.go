package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"emberd/internal/common/fsutil"
	"emberd/internal/transfer"
	"emberd/pkg/types"
)

// artifactExts are the artifact formats the scanner recognizes.
var artifactExts = map[string]bool{
	".gguf": true,
	".onnx": true,
}

// ScanResult is the outcome of one models directory scan.
type ScanResult struct {
	// Records holds one entry per complete artifact, sorted by ID.
	Records []types.ModelRecord
	// Partials maps artifact filename to the size of its partial download
	// file. Partial files never become records on their own here; the
	// reconciler attaches them.
	Partials map[string]int64
}

// ScanDir inventories a models directory. A missing directory yields an
// empty result, not an error, so a first boot before any download works.
func ScanDir(dir string) (ScanResult, error) {
	res := ScanResult{Partials: map[string]int64{}}
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return res, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return res, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return res, nil
		}
		return res, fmt.Errorf("read models dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		lower := strings.ToLower(name)
		if strings.HasSuffix(lower, transfer.PartSuffix) {
			inner := name[:len(name)-len(transfer.PartSuffix)]
			if artifactExts[strings.ToLower(filepath.Ext(inner))] {
				if fi, ierr := e.Info(); ierr == nil {
					res.Partials[inner] = fi.Size()
				}
			}
			continue
		}
		if !artifactExts[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		res.Records = append(res.Records, recordFromFile(name, filepath.Join(abs, name), fi.Size()))
	}
	sort.Slice(res.Records, func(i, j int) bool { return res.Records[i].ID < res.Records[j].ID })
	return res, nil
}

// recordFromFile builds a record for a complete artifact on disk. Metadata
// is guessed from the filename; a curated entry overrides it during
// reconcile.
func recordFromFile(name, path string, size int64) types.ModelRecord {
	return types.ModelRecord{
		ID:           name,
		Name:         displayName(name),
		Family:       familyOf(name),
		Quant:        quantOf(name),
		Kind:         flavorOf(name),
		Path:         path,
		SizeBytes:    size,
		Availability: types.AvailabilityFetched,
		Local:        true,
	}
}
