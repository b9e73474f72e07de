// Package catalog maintains the merged model catalog: what the models
// directory holds, what the curated catalog offers remotely, and how far
// along any partial download is. It is structured into small files by
// concern:
//
//   - scan.go: models directory scan (complete artifacts and partials).
//   - heuristics.go: metadata guessed from artifact filenames.
//   - curated.go: curated catalog files, builtin fallback, NPU variant.
//   - reconcile.go: merge of scan results and curated entries.
//   - store.go: snapshot store, verification verdicts, promotion of
//     completed partial files, artifact removal.
//
// Record identity is the artifact filename. A record backed by both a local
// file and a curated entry keeps the local path and size; the curated side
// contributes display metadata, download URLs and the expected hash.
package catalog
