package engine

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"time"

	"emberd/internal/common/fsutil"
)

const lastUsedFile = "last_model.json"

type lastUsedRecord struct {
	Model         string `json:"model"`
	Backend       string `json:"backend,omitempty"`
	ActivatedUnix int64  `json:"activated_unix"`
}

// saveLastUsed persists the last successfully activated model so it can be
// brought back on the next boot. Best effort; failures are logged only.
func (e *Engine) saveLastUsed(model, backendKind string) {
	if e.cfg.StateDir == "" {
		return
	}
	rec := lastUsedRecord{Model: model, Backend: backendKind, ActivatedUnix: time.Now().Unix()}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(e.cfg.StateDir, 0o755); err != nil {
		log.Printf("engine event=lastused_save_error err=%v", err)
		return
	}
	path := filepath.Join(e.cfg.StateDir, lastUsedFile)
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		log.Printf("engine event=lastused_save_error err=%v", err)
	}
}

func (e *Engine) loadLastUsed() (lastUsedRecord, bool) {
	if e.cfg.StateDir == "" {
		return lastUsedRecord{}, false
	}
	data, err := os.ReadFile(filepath.Join(e.cfg.StateDir, lastUsedFile))
	if err != nil {
		return lastUsedRecord{}, false
	}
	var rec lastUsedRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		log.Printf("engine event=lastused_parse_error err=%v", err)
		return lastUsedRecord{}, false
	}
	return rec, rec.Model != ""
}

// AutoActivateLast re-activates the previously active model if configured
// to and the record still exists. Runs the pipeline in the background.
func (e *Engine) AutoActivateLast(ctx context.Context) {
	if !e.cfg.AutoActivateLast {
		return
	}
	rec, ok := e.loadLastUsed()
	if !ok {
		return
	}
	if _, found := e.store.Get(rec.Model); !found {
		log.Printf("engine event=autoactivate_skipped model=%q reason=not_in_catalog", rec.Model)
		return
	}
	if err := ctx.Err(); err != nil {
		return
	}
	op, err := e.RequestActivation(rec.Model, nil)
	if err != nil {
		log.Printf("engine event=autoactivate_error model=%q err=%v", rec.Model, err)
		return
	}
	log.Printf("engine event=autoactivate model=%q op=%s", rec.Model, op)
}
