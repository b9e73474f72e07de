package engine

import (
	"sync"
	"time"

	"emberd/internal/runtime"
	"emberd/pkg/types"
)

// ActivationState is the observable phase of the activation pipeline.
// During a model switch the previous session keeps serving chat, so the
// pipeline state and the serving session are reported separately.
type ActivationState string

const (
	StateIdle            ActivationState = "idle"
	StateCatalogLookup   ActivationState = "catalog_lookup"
	StateTransferPending ActivationState = "transfer_pending"
	StateTransferring    ActivationState = "transferring"
	StateVerifying       ActivationState = "verifying"
	StateProbing         ActivationState = "backend_probe"
	StateActive          ActivationState = "active"
	StateFallback        ActivationState = "fallback"
	StateDraining        ActivationState = "draining"
)

// ActiveSession is a committed model session serving chat.
type ActiveSession struct {
	Model   types.ModelRecord
	Backend types.BackendDescriptor
	Session runtime.Session
	Since   time.Time

	gen uint64
	// refs counts in-flight generations against this session. The session
	// is closed only after it has been unlinked and refs drained.
	refs sync.WaitGroup
}

// BackendSource yields probe candidates in preference order. The concrete
// implementation is backend.Detector; tests substitute a fixed list.
type BackendSource interface {
	Ranked(preferNPU bool) []types.BackendDescriptor
	HasNPU() bool
}
