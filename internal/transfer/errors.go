package transfer

import (
	"errors"
	"fmt"
)

// Kind classifies a failed transfer by its root cause.
type Kind string

const (
	// KindNetwork covers request issuance, connection loss and short reads.
	KindNetwork Kind = "network"
	// KindDisk covers local filesystem failures around the partial file.
	KindDisk Kind = "disk"
	// KindServer covers responses the protocol cannot recover from, such as
	// a range request answered twice with a full body.
	KindServer Kind = "server"
)

// Sentinel results for jobs that did not run to completion. Wait returns
// these so callers can tell a deliberate stop from a failure.
var (
	ErrCancelled = errors.New("transfer cancelled")
	ErrPaused    = errors.New("transfer paused")
)

type transferError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *transferError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transfer %s error: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("transfer %s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *transferError) Unwrap() error { return e.Err }

func errNetwork(op string, err error) error { return &transferError{Kind: KindNetwork, Op: op, Err: err} }
func errDisk(op string, err error) error    { return &transferError{Kind: KindDisk, Op: op, Err: err} }
func errServer(op string, err error) error  { return &transferError{Kind: KindServer, Op: op, Err: err} }

// IsNetwork reports whether err is a transfer error of kind network.
func IsNetwork(err error) bool { return kindOf(err) == KindNetwork }

// IsDisk reports whether err is a transfer error of kind disk.
func IsDisk(err error) bool { return kindOf(err) == KindDisk }

// IsServer reports whether err is a transfer error of kind server.
func IsServer(err error) bool { return kindOf(err) == KindServer }

// KindOf returns the kind of a transfer error, or "" for nil and foreign
// errors.
func KindOf(err error) Kind { return kindOf(err) }

func kindOf(err error) Kind {
	var te *transferError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}
