//go:build !llama

package runtime

// Stub for binaries built without the llama tag. Default builds and CI stay
// CGO-free; the real adapter lives in local.go.

import (
	"context"

	"emberd/internal/config"
	"emberd/pkg/types"
)

// llamaBuilt reports that this binary carries the cgo llama bindings.
var llamaBuilt = false

type localFactory struct{}

// NewLocalFactory returns the in-process adapter. Without the llama build
// tag it refuses to open sessions rather than fake them.
func NewLocalFactory(config.RuntimeConfig) Factory { return &localFactory{} }

func (f *localFactory) Name() string { return "local" }

func (f *localFactory) Available() (bool, string) {
	return false, "llama support not built (missing 'llama' build tag)"
}

func (f *localFactory) Supports(types.BackendKind) bool { return false }

func (f *localFactory) Open(context.Context, types.ModelRecord, types.BackendKind) (Session, error) {
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
