// Package chainerrors declares the error taxonomy shared by every core
// component: validation, storage, orphan, duplicate, protocol, timeout and
// fatal outcomes. Components return these types instead of ad-hoc strings so
// callers (peer layer, RPC adapters, tests) can branch with errors.As/Is.
package chainerrors

import "fmt"

// Reason enumerates the context-free and contextual verification failures
// named in the verifier design.
type Reason string

const (
	ReasonInvalidPoW        Reason = "invalid_pow"
	ReasonInvalidTarget     Reason = "invalid_target"
	ReasonInvalidTimestamp  Reason = "invalid_timestamp"
	ReasonInvalidFee        Reason = "invalid_fee"
	ReasonInvalidBalance    Reason = "invalid_balance"
	ReasonInvalidSpend      Reason = "invalid_spend"
	ReasonUnknownRoot       Reason = "unknown_root"
	ReasonStaleRoot         Reason = "stale_root"
	ReasonNullifierSeen     Reason = "nullifier_seen"
	ReasonInvalidMint       Reason = "invalid_mint"
	ReasonInvalidBurn       Reason = "invalid_burn"
	ReasonInvalidRoot       Reason = "invalid_root"
	ReasonInvalidSize       Reason = "invalid_size"
	ReasonInvalidProof      Reason = "invalid_proof"
	ReasonDuplicate         Reason = "duplicate"
	ReasonUnknownParent     Reason = "unknown_parent"
	ReasonOrphan            Reason = "orphan"
	ReasonMalformed         Reason = "malformed"
)

// ValidationError is returned by the verifier for any context-free or
// contextual check failure. It is non-fatal: callers demerit the peer or
// return a 400-class response, but the node keeps running.
type ValidationError struct {
	Reason  Reason
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("validation error: %s", e.Reason)
	}
	return fmt.Sprintf("validation error: %s: %s", e.Reason, e.Message)
}

func NewValidation(reason Reason, message string) *ValidationError {
	return &ValidationError{Reason: reason, Message: message}
}

// StorageError wraps an underlying IO, codec, or versioning failure from the
// keyed storage layer.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

func NewStorage(op string, err error) *StorageError {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// OrphanError signals that a block's parent header is not yet known. It is
// non-fatal; the block is parked in the orphan pool.
type OrphanError struct {
	MissingParent [32]byte
}

func (e *OrphanError) Error() string { return fmt.Sprintf("orphan: missing parent %x", e.MissingParent) }

// DuplicateError signals that a block or transaction is already known. It is
// an idempotent no-op from the caller's point of view.
type DuplicateError struct {
	Hash [32]byte
}

func (e *DuplicateError) Error() string { return fmt.Sprintf("duplicate: %x", e.Hash) }

// ProtocolError signals a peer sent a malformed or policy-violating message.
// The peer layer is expected to drop the offending peer.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string { return fmt.Sprintf("protocol error: %s", e.Message) }

// TimeoutError signals a per-request timeout in the syncer. It bubbles up as
// a retry, never as a fatal condition.
type TimeoutError struct {
	Op string
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("timeout: %s", e.Op) }

// FatalError signals an invariant violation the engine cannot recover from,
// e.g. a tree root mismatch after a commit that previously verified. The
// caller is expected to halt the node.
type FatalError struct {
	Invariant string
	Err       error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fatal: %s: %v", e.Invariant, e.Err)
	}
	return fmt.Sprintf("fatal: %s", e.Invariant)
}
func (e *FatalError) Unwrap() error { return e.Err }

// Sentinel values for errors.Is checks against the keyed storage layer.
var (
	ErrNotFound       = fmt.Errorf("chainerrors: not found")
	ErrCorrupt        = fmt.Errorf("chainerrors: corrupt value")
	ErrVersionMismatch = fmt.Errorf("chainerrors: version mismatch")
	ErrTxAborted      = fmt.Errorf("chainerrors: transaction aborted")
)
