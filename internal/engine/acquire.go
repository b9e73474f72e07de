package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"emberd/internal/common/fsutil"
	"emberd/internal/integrity"
	"emberd/internal/transfer"
	"emberd/pkg/types"
)

// ensureArtifact makes rec's bytes present, verified, and at their final
// path. Local activatable records are verified at most once; remote records
// are transferred (resuming any partial), verified against the catalog
// checksum while still at the partial path, and only then promoted. A
// checksum mismatch keeps the bytes on disk and refuses activation until
// the user removes the artifact.
func (e *Engine) ensureArtifact(ctx context.Context, gen uint64, rec types.ModelRecord) (types.ModelRecord, error) {
	if rec.Availability == types.AvailabilityVerifiedFailed {
		return rec, ErrIntegrity(rec.ID, fmt.Errorf("artifact previously failed verification; remove it to retry"))
	}
	if rec.Local && rec.Availability.Activatable() {
		return e.verifyLocal(ctx, gen, rec)
	}
	if rec.URL == "" {
		return rec, ErrNoSource(rec.ID)
	}
	return e.fetchRemote(ctx, gen, rec)
}

// verifyLocal checks a pre-existing file against the catalog checksum the
// first time it is activated. Hashless records are trusted as-is.
func (e *Engine) verifyLocal(ctx context.Context, gen uint64, rec types.ModelRecord) (types.ModelRecord, error) {
	if rec.SHA256 == "" || rec.Availability == types.AvailabilityVerifiedOk {
		return rec, nil
	}
	e.setStateIfCurrent(gen, StateVerifying)
	e.publish("verify_start", rec.ID, nil)
	start := time.Now()
	if err := integrity.Verify(ctx, rec.Path, rec.SHA256); err != nil {
		if integrity.IsMismatch(err) {
			_ = e.store.MarkVerification(rec.ID, false)
			log.Printf("engine event=verify_failed model=%q err=%v", rec.ID, err)
			e.publish("verify_failed", rec.ID, map[string]any{"error": err.Error()})
			return rec, ErrIntegrity(rec.ID, err)
		}
		return rec, err
	}
	_ = e.store.MarkVerification(rec.ID, true)
	log.Printf("engine event=verify_ok model=%q dur_ms=%d", rec.ID, time.Since(start).Milliseconds())
	e.publish("verify_ok", rec.ID, nil)
	if cur, ok := e.store.Get(rec.ID); ok {
		return cur, nil
	}
	return rec, nil
}

// fetchRemote downloads the main artifact and any auxiliary files, then
// verifies and promotes the partial. The main transfer job is shared: a
// concurrent activation of the same model attaches to it instead of
// issuing a second download.
func (e *Engine) fetchRemote(ctx context.Context, gen uint64, rec types.ModelRecord) (types.ModelRecord, error) {
	e.setStateIfCurrent(gen, StateTransferPending)
	target := e.store.TargetPath(rec.ID)

	job, attached, err := e.transfers.StartOrResume(transfer.Request{
		Model:         rec.ID,
		URL:           rec.URL,
		TargetPath:    target,
		ExpectedBytes: rec.SizeBytes,
	})
	if err != nil {
		return rec, err
	}
	e.setStateIfCurrent(gen, StateTransferring)
	progress := job.Events()
	e.publish("transfer_start", rec.ID, map[string]any{"job": job.ID, "attached": attached})

	// Forward the job's throttled progress to event subscribers. The
	// channel closes with the job, after its terminal event.
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		for p := range progress {
			if p.State != transfer.StateInProgress {
				continue
			}
			e.publish("transfer_progress", rec.ID, map[string]any{
				"job":         job.ID,
				"bytes_done":  p.BytesDone,
				"total_bytes": p.TotalBytes,
				"rate_bps":    p.Rate,
			})
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, werr := job.Wait(gctx)
		return werr
	})
	for _, aux := range rec.AuxURLs {
		aux := aux
		g.Go(func() error { return e.fetchAux(gctx, rec.ID, aux) })
	}
	if err := g.Wait(); err != nil {
		// The main job may still be live when an aux transfer failed;
		// the forwarding goroutine ends whenever the job does.
		return rec, err
	}
	<-progressDone
	e.publish("transfer_done", rec.ID, map[string]any{"job": job.ID})

	if rec.SHA256 != "" {
		e.setStateIfCurrent(gen, StateVerifying)
		e.publish("verify_start", rec.ID, nil)
		if err := integrity.Verify(ctx, target+transfer.PartSuffix, rec.SHA256); err != nil {
			if integrity.IsMismatch(err) {
				_ = e.store.MarkVerification(rec.ID, false)
				log.Printf("engine event=verify_failed model=%q err=%v", rec.ID, err)
				e.publish("verify_failed", rec.ID, map[string]any{"error": err.Error()})
				return rec, ErrIntegrity(rec.ID, err)
			}
			if cur, ok := e.promotedElsewhere(rec.ID, err); ok {
				return cur, nil
			}
			return rec, err
		}
	}

	promoted, err := e.store.PromotePartial(rec.ID)
	if err != nil {
		if cur, ok := e.promotedElsewhere(rec.ID, err); ok {
			return cur, nil
		}
		return rec, err
	}
	if rec.SHA256 != "" {
		_ = e.store.MarkVerification(rec.ID, true)
		if cur, ok := e.store.Get(rec.ID); ok {
			promoted = cur
		}
	}
	log.Printf("engine event=artifact_ready model=%q path=%q bytes=%d", promoted.ID, promoted.Path, promoted.SizeBytes)
	e.publish("artifact_ready", rec.ID, map[string]any{"bytes": promoted.SizeBytes})
	return promoted, nil
}

// promotedElsewhere reports whether a concurrent activation sharing the
// same transfer job already verified and promoted the partial, which makes
// a not-exist error on the partial path benign.
func (e *Engine) promotedElsewhere(id string, err error) (types.ModelRecord, bool) {
	if !errors.Is(err, fs.ErrNotExist) {
		return types.ModelRecord{}, false
	}
	cur, ok := e.store.Get(id)
	if !ok || !cur.Local || !cur.Availability.Activatable() {
		return types.ModelRecord{}, false
	}
	return cur, true
}

// fetchAux downloads a sidecar file (tokenizer, config) next to the model
// artifact. Aux files carry no checksum; an existing file is kept.
func (e *Engine) fetchAux(ctx context.Context, modelID, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("aux url %q: %w", rawURL, err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return fmt.Errorf("aux url %q has no file name", rawURL)
	}
	target := filepath.Join(e.store.Dir(), name)
	if fsutil.PathExists(target) {
		return nil
	}
	job, _, err := e.transfers.StartOrResume(transfer.Request{
		Model:      modelID,
		URL:        rawURL,
		TargetPath: target,
	})
	if err != nil {
		return err
	}
	if _, err := job.Wait(ctx); err != nil {
		return err
	}
	if err := os.Rename(target+transfer.PartSuffix, target); err != nil {
		// Another activation sharing the job may have renamed it first.
		if errors.Is(err, fs.ErrNotExist) && fsutil.PathExists(target) {
			return nil
		}
		return err
	}
	return nil
}
