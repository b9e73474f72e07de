// Package httpapi exposes the engine over HTTP: catalog listing, backend
// inspection, activation control, NDJSON chat and event streaming, health
// probes, and Prometheus metrics. Handlers consume the engine through the
// Service interface so tests can run against a mock.
package httpapi
