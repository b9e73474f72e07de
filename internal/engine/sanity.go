package engine

import (
	"os"
	"path/filepath"

	"emberd/internal/common/fsutil"
	"emberd/pkg/types"
)

// Sanity runs non-destructive environment checks without mutating engine
// state: models dir writability and usage, catalog presence, runtime
// availability.
func (e *Engine) Sanity() types.SanityReport {
	report := types.SanityReport{ModelsDir: e.store.Dir()}

	if err := checkDirWritable(e.store.Dir()); err != nil {
		report.Error = err.Error()
	} else {
		report.ModelsDirWritable = true
	}

	if n, err := fsutil.DirSize(e.store.Dir()); err == nil {
		report.ModelsDirBytes = n
	}

	report.CatalogFound = e.store.Len() > 0

	ok, detail := e.factory.Available()
	report.RuntimeAvailable = ok
	report.RuntimeDetail = detail
	return report
}

func checkDirWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	probe := filepath.Join(dir, ".emberd-write-check")
	f, err := os.Create(probe)
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Remove(probe)
}
