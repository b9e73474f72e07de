package engine

import (
	"errors"
	"fmt"
	"strings"
)

type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string {
	id := e.id
	if id == "" {
		id = "(unspecified)"
	}
	return fmt.Sprintf("model not found: %s", id)
}

// ErrModelNotFound reports an identifier with no catalog record.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

func IsModelNotFound(err error) bool {
	var t modelNotFoundError
	return errors.As(err, &t)
}

type noSourceError struct{ id string }

func (e noSourceError) Error() string {
	return fmt.Sprintf("model %s has no local artifact and no download source", e.id)
}

// ErrNoSource reports a record that is neither local nor downloadable.
func ErrNoSource(id string) error { return noSourceError{id: id} }

func IsNoSource(err error) bool {
	var t noSourceError
	return errors.As(err, &t)
}

type tooBusyError struct{}

func (tooBusyError) Error() string { return "too busy: generation queue full or wait timed out" }

func ErrTooBusy() error { return tooBusyError{} }

func IsTooBusy(err error) bool {
	var t tooBusyError
	return errors.As(err, &t)
}

type integrityError struct {
	id  string
	err error
}

func (e integrityError) Error() string {
	return fmt.Sprintf("integrity check failed for %s: %v", e.id, e.err)
}

func (e integrityError) Unwrap() error { return e.err }

// ErrIntegrity wraps a checksum mismatch for a model artifact. The artifact
// is kept on disk; activation stays refused until the user removes it.
func ErrIntegrity(id string, err error) error { return integrityError{id: id, err: err} }

func IsIntegrityFailed(err error) bool {
	var t integrityError
	return errors.As(err, &t)
}

type noActiveSessionError struct{}

func (noActiveSessionError) Error() string { return "no active model session" }

func ErrNoActiveSession() error { return noActiveSessionError{} }

func IsNoActiveSession(err error) bool {
	var t noActiveSessionError
	return errors.As(err, &t)
}

type supersededError struct{ id string }

func (e supersededError) Error() string {
	return fmt.Sprintf("activation of %s superseded by a newer request", e.id)
}

func IsSuperseded(err error) bool {
	var t supersededError
	return errors.As(err, &t)
}

// BackendFailure records why one backend was not used during probing.
type BackendFailure struct {
	Backend string `json:"backend"`
	Error   string `json:"error"`
}

type exhaustedBackendsError struct {
	id       string
	failures []BackendFailure
}

func (e exhaustedBackendsError) Error() string {
	parts := make([]string, 0, len(e.failures))
	for _, f := range e.failures {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Backend, f.Error))
	}
	return fmt.Sprintf("no usable backend for %s [%s]", e.id, strings.Join(parts, "; "))
}

// ErrExhaustedBackends reports that every probe candidate refused the model.
// The engine devolves to the fallback responder; this error is informational.
func ErrExhaustedBackends(id string, failures []BackendFailure) error {
	return exhaustedBackendsError{id: id, failures: failures}
}

func IsExhaustedBackends(err error) bool {
	var t exhaustedBackendsError
	return errors.As(err, &t)
}

// BackendFailures extracts the per-backend failure list, if err carries one.
func BackendFailures(err error) []BackendFailure {
	var t exhaustedBackendsError
	if errors.As(err, &t) {
		return t.failures
	}
	return nil
}
