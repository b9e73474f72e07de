// Package runtime turns an activatable model record plus a chosen backend
// into a live inference session. Placement policy stays out of this package:
// the engine decides which backend to try, the adapters here only report
// whether they can drive it and open sessions.
//
// Three adapters exist, selected by the runtime.mode setting:
//
//   - server: talk to an already running OpenAI-compatible server
//     (server.go).
//   - spawn: launch a llama-server subprocess per activated model and talk
//     to it over loopback (spawn.go).
//   - local: in-process inference through llama.cpp bindings, only in
//     binaries built with the llama tag (local.go, local_stub.go).
//
// "auto" picks server when a URL is configured, spawn when a llama-server
// binary can be found, and local otherwise.
package runtime
