package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"emberd/internal/transfer"
	"emberd/pkg/types"
)

// Store holds the current catalog snapshot. Replace swaps the snapshot
// atomically; readers always see either the old or the new catalog, never a
// mix. The store also owns the rename of a completed partial file into its
// final artifact path.
type Store struct {
	dir string

	mu   sync.RWMutex
	recs map[string]types.ModelRecord
}

// NewStore creates an empty store rooted at the models directory. The
// directory path must already be resolved (no "~").
func NewStore(modelsDir string) *Store {
	return &Store{dir: modelsDir, recs: make(map[string]types.ModelRecord)}
}

// Dir returns the models directory the store is rooted at.
func (s *Store) Dir() string { return s.dir }

// TargetPath is the final artifact path for a record ID.
func (s *Store) TargetPath(id string) string { return filepath.Join(s.dir, id) }

// Replace installs a freshly reconciled snapshot. Verification verdicts are
// sticky: a record that was verified keeps its verdict as long as the bytes
// it was computed over are unchanged, so reconciles stay idempotent and a
// failed artifact cannot silently become activatable again.
func (s *Store) Replace(recs []types.ModelRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[string]types.ModelRecord, len(recs))
	for _, rec := range recs {
		if old, ok := s.recs[rec.ID]; ok {
			carryVerdict(&rec, old)
		}
		next[rec.ID] = rec
	}
	s.recs = next
}

// carryVerdict transfers a sticky verification verdict from the previous
// snapshot onto the incoming record when the underlying bytes are the same.
func carryVerdict(rec *types.ModelRecord, old types.ModelRecord) {
	if rec.SHA256 != old.SHA256 {
		return
	}
	switch old.Availability {
	case types.AvailabilityVerifiedOk:
		if rec.Availability == types.AvailabilityFetched &&
			rec.Path == old.Path && rec.SizeBytes == old.SizeBytes {
			rec.Availability = types.AvailabilityVerifiedOk
		}
	case types.AvailabilityVerifiedFailed:
		switch {
		case old.Local && rec.Availability == types.AvailabilityFetched &&
			rec.Path == old.Path && rec.SizeBytes == old.SizeBytes:
			rec.Availability = types.AvailabilityVerifiedFailed
		case !old.Local && rec.Availability == types.AvailabilityPartial &&
			rec.BytesDone == old.BytesDone:
			// The failed partial was not touched; more bytes would mean a
			// retry is in flight and the verdict no longer applies.
			rec.Availability = types.AvailabilityVerifiedFailed
		}
	}
}

// All returns the snapshot sorted by ID.
func (s *Store) All() []types.ModelRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.ModelRecord, 0, len(s.recs))
	for _, rec := range s.recs {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns one record by ID.
func (s *Store) Get(id string) (types.ModelRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[id]
	return rec, ok
}

// Len reports the number of records in the snapshot.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recs)
}

// MarkVerification records an integrity verdict for a record. A failed
// verdict never deletes anything; the artifact stays on disk until an
// explicit RemoveArtifact.
func (s *Store) MarkVerification(id string, ok bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, found := s.recs[id]
	if !found {
		return fmt.Errorf("mark verification %s: unknown record", id)
	}
	if ok {
		rec.Availability = types.AvailabilityVerifiedOk
	} else {
		rec.Availability = types.AvailabilityVerifiedFailed
	}
	s.recs[id] = rec
	return nil
}

// PromotePartial renames a record's completed partial file into its final
// artifact path and updates the record to a complete local artifact. The
// caller verifies the partial bytes first; only bytes that passed (or carry
// no declared hash) ever reach the final path.
func (s *Store) PromotePartial(id string) (types.ModelRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return types.ModelRecord{}, fmt.Errorf("promote %s: unknown record", id)
	}
	final := filepath.Join(s.dir, id)
	if err := os.Rename(final+transfer.PartSuffix, final); err != nil {
		return types.ModelRecord{}, fmt.Errorf("promote %s: %w", id, err)
	}
	fi, err := os.Stat(final)
	if err != nil {
		return types.ModelRecord{}, fmt.Errorf("promote %s: stat: %w", id, err)
	}
	rec.Path = final
	rec.SizeBytes = fi.Size()
	rec.Local = true
	rec.BytesDone = 0
	rec.Availability = types.AvailabilityFetched
	s.recs[id] = rec
	return rec, nil
}

// RemoveArtifact deletes a record's local bytes, both final and partial.
// This is the explicit operator action that clears a failed verification.
// Curated records revert to not_fetched; records that only existed because
// a file was on disk are dropped entirely.
func (s *Store) RemoveArtifact(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return fmt.Errorf("remove %s: unknown record", id)
	}
	final := filepath.Join(s.dir, id)
	paths := []string{final, final + transfer.PartSuffix}
	if rec.Path != "" && rec.Path != final {
		paths = append(paths, rec.Path)
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", id, err)
		}
	}
	if !rec.Curated {
		delete(s.recs, id)
		return nil
	}
	rec.Path = ""
	rec.SizeBytes = 0
	rec.Local = false
	rec.BytesDone = 0
	rec.Availability = types.AvailabilityNotFetched
	s.recs[id] = rec
	return nil
}
