package runtime

import (
	"context"
	"errors"
	"fmt"

	"emberd/pkg/types"
)

// TokenFunc receives generated fragments in order. Returning an error stops
// generation.
type TokenFunc func(token string) error

// Result is the aggregate outcome of one generation.
type Result struct {
	Content          string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
}

// Session is a model loaded onto one backend, ready to generate. Sessions
// are not safe for concurrent Generate calls; the engine serializes access.
type Session interface {
	Model() string
	Backend() types.BackendKind
	Generate(ctx context.Context, req types.ChatRequest, onToken TokenFunc) (Result, error)
	Close() error
}

// Factory opens sessions. Implementations must be safe for concurrent use.
type Factory interface {
	// Name identifies the adapter in logs and status output.
	Name() string
	// Available reports whether the adapter can work on this host at all,
	// with a short detail for diagnostics.
	Available() (bool, string)
	// Supports reports whether the adapter can drive the given backend.
	Supports(kind types.BackendKind) bool
	// Open loads the record's artifact onto the backend. A failed Open
	// leaves no session behind.
	Open(ctx context.Context, rec types.ModelRecord, backend types.BackendKind) (Session, error)
}

type dependencyUnavailableError struct{ Reason string }

func (e *dependencyUnavailableError) Error() string {
	return fmt.Sprintf("runtime dependency unavailable: %s", e.Reason)
}

// ErrDependencyUnavailable marks a missing runtime prerequisite: a binary,
// a library, or an unreachable server.
func ErrDependencyUnavailable(reason string) error {
	return &dependencyUnavailableError{Reason: reason}
}

// IsDependencyUnavailable reports whether err marks a missing prerequisite.
func IsDependencyUnavailable(err error) bool {
	var t *dependencyUnavailableError
	return errors.As(err, &t)
}

type backendUnsupportedError struct {
	Adapter string
	Backend types.BackendKind
}

func (e *backendUnsupportedError) Error() string {
	return fmt.Sprintf("adapter %s cannot drive backend %s", e.Adapter, e.Backend)
}

// ErrBackendUnsupported marks a backend the adapter cannot drive, as opposed
// to one that failed while loading.
func ErrBackendUnsupported(adapter string, kind types.BackendKind) error {
	return &backendUnsupportedError{Adapter: adapter, Backend: kind}
}

// IsBackendUnsupported reports whether err marks an unsupported backend.
func IsBackendUnsupported(err error) bool {
	var t *backendUnsupportedError
	return errors.As(err, &t)
}
