package catalog

import (
	"sort"

	"emberd/pkg/types"
)

// Reconcile merges a directory scan with curated entries into the canonical
// record list. Identity is the artifact filename; each filename yields
// exactly one record no matter how many sources mention it. Local facts win
// for path and size, curated data supplies display metadata, URLs and the
// expected hash. The result is sorted by ID, so reconciling the same inputs
// twice produces the same output.
func Reconcile(scan ScanResult, curated []CuratedEntry) []types.ModelRecord {
	byID := make(map[string]*types.ModelRecord, len(scan.Records)+len(curated))
	for _, rec := range scan.Records {
		r := rec
		byID[r.ID] = &r
	}

	for _, ce := range curated {
		if ce.File == "" {
			continue
		}
		if r, ok := byID[ce.File]; ok {
			applyCurated(r, ce)
			continue
		}
		r := recordFromCurated(ce)
		byID[ce.File] = &r
	}

	for file, n := range scan.Partials {
		r, ok := byID[file]
		if !ok {
			// A partial download nothing else knows about, likely from a
			// catalog that has since changed. Surface it so the operator
			// can see the disk usage.
			rec := recordFromFile(file, "", 0)
			rec.Local = false
			rec.Availability = types.AvailabilityPartial
			rec.BytesDone = n
			byID[file] = &rec
			continue
		}
		if r.Local {
			// Complete artifact plus a stale partial: the artifact wins.
			continue
		}
		r.Availability = types.AvailabilityPartial
		r.BytesDone = n
	}

	out := make([]types.ModelRecord, 0, len(byID))
	for _, r := range byID {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// applyCurated overlays curated metadata onto a locally scanned record.
// Path and size stay local; everything descriptive defers to the catalog.
func applyCurated(r *types.ModelRecord, ce CuratedEntry) {
	r.Curated = true
	r.URL = ce.URL
	r.AuxURLs = append([]string(nil), ce.AuxURLs...)
	r.SHA256 = ce.SHA256
	if ce.Name != "" {
		r.Name = ce.Name
	}
	if ce.Family != "" {
		r.Family = ce.Family
	}
	if ce.Quant != "" {
		r.Quant = ce.Quant
	}
	if ce.Kind != "" {
		r.Kind = ce.Kind
	}
	if ce.Description != "" {
		r.Description = ce.Description
	}
}

func recordFromCurated(ce CuratedEntry) types.ModelRecord {
	r := types.ModelRecord{
		ID:           ce.File,
		Name:         ce.Name,
		Family:       ce.Family,
		Quant:        ce.Quant,
		Kind:         ce.Kind,
		Description:  ce.Description,
		URL:          ce.URL,
		AuxURLs:      append([]string(nil), ce.AuxURLs...),
		SHA256:       ce.SHA256,
		SizeBytes:    ce.SizeBytes,
		Availability: types.AvailabilityNotFetched,
		Curated:      true,
	}
	if r.Name == "" {
		r.Name = displayName(ce.File)
	}
	if r.Family == "" {
		r.Family = familyOf(ce.File)
	}
	if r.Quant == "" {
		r.Quant = quantOf(ce.File)
	}
	if r.Kind == "" {
		r.Kind = flavorOf(ce.File)
	}
	return r
}
