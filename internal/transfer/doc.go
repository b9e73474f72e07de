// Package transfer performs resumable, chunked downloads of model artifacts
// with throttled progress reporting. It is structured into small files by
// concern:
//
//   - manager.go: Manager type, single-flight job registry, StartOrResume.
//   - job.go: Job lifecycle, the streaming copy loop, resume and
//     restart-from-zero handling.
//   - events.go: Progress event type, subscription and throttled emission.
//   - errors.go: transfer error kinds (network, disk, server) and helpers.
//   - client.go: shared HTTP client and bounded request retries.
//   - metrics.go: Prometheus counters and gauges.
//
// Every job writes to a partial file next to its final path (the ".part"
// suffix), so an interrupted download resumes from the persisted length on
// the next StartOrResume, including across process restarts. The partial
// file is never deleted on failure. Ownership of a completed partial file
// passes to the catalog layer, which verifies and renames it.
package transfer
