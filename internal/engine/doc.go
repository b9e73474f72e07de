// Package engine owns the activation lifecycle: looking a model up in the
// catalog, acquiring its artifact, probing detected backends in preference
// order, and serving chat from the resulting session or from the scripted
// fallback responder when every backend refused. It is structured into small
// files by concern:
//
//   - engine.go: Engine type, construction, catalog reconcile, shutdown.
//   - activate.go: the activation pipeline and generation bookkeeping.
//   - acquire.go: artifact acquisition (transfer, verify, promote).
//   - chat.go: admission-controlled NDJSON chat streaming.
//   - fallback.go: scripted responder used when no backend works.
//   - admission.go: queue and single-inflight admission control.
//   - status.go, sanity.go: observability projections.
//   - lastused.go: last-activated persistence and boot auto-activation.
//   - errors.go, events.go, metrics.go, types.go, config.go: support.
//
// Exactly one model serves chat at a time. Activations are serialized by a
// generation counter: whichever activation started last wins, and a stale
// activation that finishes late discards its session instead of committing.
package engine
