package emberctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"emberd/internal/backend"
	"emberd/internal/catalog"
	"emberd/internal/common/fsutil"
	"emberd/internal/integrity"
	"emberd/internal/transfer"
	"emberd/pkg/types"
)

// loadStore scans the models directory and merges the curated catalog into
// a fresh store, the same merge the daemon performs at startup. Unlike the
// daemon, which degrades to scan results when its catalog file is broken,
// an unreadable catalog is a hard error here: the operator pointed at it
// explicitly and silently ignoring it would make every later hash check lie.
func loadStore(cfg *Config) (*catalog.Store, error) {
	dir, err := fsutil.ExpandHome(cfg.ModelsDir)
	if err != nil {
		return nil, fmt.Errorf("resolve models dir: %w", err)
	}
	store := catalog.NewStore(dir)
	scan, err := catalog.ScanDir(dir)
	if err != nil {
		return nil, err
	}
	det := backend.NewDetector()
	curated, err := catalog.CuratedFor(cfg.CatalogPath, cfg.NPUCatalogPath, det.HasNPU())
	if err != nil {
		return nil, err
	}
	store.Replace(catalog.Reconcile(scan, curated))
	return store, nil
}

func fnCatalog(cfg *Config, out io.Writer) error {
	store, err := loadStore(cfg)
	if err != nil {
		return err
	}
	recs := store.All()
	if cfg.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAVAILABILITY\tSIZE\tCURATED\tNAME")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%v\t%s\n", r.ID, r.Availability, humanBytes(r.SizeBytes), r.Curated, r.Name)
	}
	return tw.Flush()
}

func fnBackends(cfg *Config, includeUnavailable bool, out io.Writer) error {
	det := backend.NewDetector()
	probed := det.Detect()
	list := backend.Rank(probed, cfg.PreferNPU)
	if includeUnavailable {
		for _, b := range probed {
			if !b.Available {
				list = append(list, b)
			}
		}
	}
	if cfg.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tAVAILABLE\tWEIGHT\tDETAIL")
	for _, b := range list {
		fmt.Fprintf(tw, "%s\t%v\t%d\t%s\n", b.Kind, b.Available, b.Weight, b.Detail)
	}
	return tw.Flush()
}

// fnFetch downloads one model artifact the way the daemon's activation path
// does: resume from the partial file when one exists, verify the partial
// bytes against the catalog hash, then promote into the final path. Ctrl-C
// cancels the transfer but keeps the partial file so a rerun resumes.
func fnFetch(ctx context.Context, cfg *Config, modelID string, out io.Writer) error {
	store, err := loadStore(cfg)
	if err != nil {
		return err
	}
	rec, ok := store.Get(modelID)
	if !ok {
		return fmt.Errorf("model not found: %s", modelID)
	}
	if rec.Local && rec.Availability.Activatable() {
		fmt.Fprintf(out, "%s already fetched (%s, %s)\n", rec.ID, humanBytes(rec.SizeBytes), rec.Availability)
		return nil
	}
	if rec.Availability == types.AvailabilityVerifiedFailed {
		return fmt.Errorf("%s failed verification earlier; its bytes are kept for inspection, run 'emberctl rm %s' to clear them", rec.ID, rec.ID)
	}
	if rec.URL == "" {
		return fmt.Errorf("%s is not local and the catalog lists no download source", rec.ID)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tm := transfer.NewWithConfig(transfer.ManagerConfig{RateLimitBps: cfg.RateLimitBps})
	target := store.TargetPath(rec.ID)
	job, _, err := tm.StartOrResume(transfer.Request{
		Model:         rec.ID,
		URL:           rec.URL,
		TargetPath:    target,
		ExpectedBytes: rec.SizeBytes,
	})
	if err != nil {
		return err
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for p := range job.Events() {
			printProgress(out, p)
		}
	}()

	if _, err := job.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			job.Cancel()
			<-job.Done()
		}
		<-drained
		if errors.Is(err, transfer.ErrCancelled) || ctx.Err() != nil {
			return fmt.Errorf("fetch interrupted; partial bytes kept, rerun 'emberctl fetch %s' to resume", rec.ID)
		}
		return err
	}
	<-drained

	if rec.SHA256 != "" {
		fmt.Fprintf(out, "verifying sha256 of %s\n", rec.ID)
		if err := integrity.Verify(ctx, target+transfer.PartSuffix, rec.SHA256); err != nil {
			if integrity.IsMismatch(err) {
				_ = store.MarkVerification(rec.ID, false)
				return fmt.Errorf("%w; bytes kept at %s for inspection, run 'emberctl rm %s' to clear them", err, target+transfer.PartSuffix, rec.ID)
			}
			return err
		}
	}
	promoted, err := store.PromotePartial(rec.ID)
	if err != nil {
		return err
	}
	if rec.SHA256 != "" {
		_ = store.MarkVerification(rec.ID, true)
	}
	fmt.Fprintf(out, "fetched %s -> %s (%s)\n", promoted.ID, promoted.Path, humanBytes(promoted.SizeBytes))

	for _, aux := range rec.AuxURLs {
		if err := fetchAux(ctx, tm, store.Dir(), aux, out); err != nil {
			return fmt.Errorf("aux %s: %w", aux, err)
		}
	}
	return nil
}

// fetchAux downloads a sidecar file (tokenizer, config) next to the model
// artifact. Aux files carry no checksum; an existing file is kept.
func fetchAux(ctx context.Context, tm *transfer.Manager, dir, rawURL string, out io.Writer) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return fmt.Errorf("no usable filename in url")
	}
	target := filepath.Join(dir, name)
	if fsutil.PathExists(target) {
		return nil
	}
	job, _, err := tm.StartOrResume(transfer.Request{Model: name, URL: rawURL, TargetPath: target})
	if err != nil {
		return err
	}
	if _, err := job.Wait(ctx); err != nil {
		return err
	}
	if err := os.Rename(target+transfer.PartSuffix, target); err != nil {
		if errors.Is(err, fs.ErrNotExist) && fsutil.PathExists(target) {
			return nil
		}
		return err
	}
	fmt.Fprintf(out, "fetched aux %s\n", name)
	return nil
}

// fnVerify recomputes the hash of a complete local artifact. It never
// mutates availability: a one-shot process has nothing durable to mark, and
// the daemon re-verifies on its own activation path anyway.
func fnVerify(ctx context.Context, cfg *Config, modelID string, out io.Writer) error {
	store, err := loadStore(cfg)
	if err != nil {
		return err
	}
	rec, ok := store.Get(modelID)
	if !ok {
		return fmt.Errorf("model not found: %s", modelID)
	}
	if !rec.Local || rec.Path == "" {
		if fsutil.PathExists(store.TargetPath(rec.ID) + transfer.PartSuffix) {
			return fmt.Errorf("%s is only partially downloaded; finish it with 'emberctl fetch %s' first", rec.ID, rec.ID)
		}
		return fmt.Errorf("%s has no local bytes to verify", rec.ID)
	}
	sum, err := integrity.Sum(ctx, rec.Path)
	if err != nil {
		return err
	}
	if rec.SHA256 == "" {
		fmt.Fprintf(out, "%s  %s (catalog declares no hash)\n", sum, rec.Path)
		return nil
	}
	if !strings.EqualFold(sum, rec.SHA256) {
		return fmt.Errorf("%s: sha256 mismatch: got %s, catalog declares %s", rec.ID, sum, rec.SHA256)
	}
	fmt.Fprintf(out, "%s  %s (catalog match)\n", sum, rec.Path)
	return nil
}

func fnHash(ctx context.Context, file string, out io.Writer) error {
	p, err := fsutil.ExpandHome(file)
	if err != nil {
		return err
	}
	sum, err := integrity.Sum(ctx, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s  %s\n", sum, p)
	return nil
}

func fnRemove(cfg *Config, modelID string, out io.Writer) error {
	store, err := loadStore(cfg)
	if err != nil {
		return err
	}
	rec, ok := store.Get(modelID)
	if !ok {
		return fmt.Errorf("model not found: %s", modelID)
	}
	hadBytes := rec.Local || fsutil.PathExists(store.TargetPath(rec.ID)+transfer.PartSuffix)
	if err := store.RemoveArtifact(rec.ID); err != nil {
		return err
	}
	if hadBytes {
		fmt.Fprintf(out, "removed local bytes of %s\n", rec.ID)
	} else {
		fmt.Fprintf(out, "%s had no local bytes\n", rec.ID)
	}
	return nil
}

func printProgress(out io.Writer, p transfer.Progress) {
	restarts := ""
	if p.Restarts > 0 {
		restarts = fmt.Sprintf("  (restarted %d)", p.Restarts)
	}
	if p.TotalBytes > 0 {
		pct := float64(p.BytesDone) / float64(p.TotalBytes) * 100
		fmt.Fprintf(out, "%s %s  %5.1f%%  %s / %s  %s/s%s\n",
			p.Model, p.State, pct, humanBytes(p.BytesDone), humanBytes(p.TotalBytes), humanBytes(int64(p.Rate)), restarts)
		return
	}
	fmt.Fprintf(out, "%s %s  %s  %s/s%s\n",
		p.Model, p.State, humanBytes(p.BytesDone), humanBytes(int64(p.Rate)), restarts)
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
