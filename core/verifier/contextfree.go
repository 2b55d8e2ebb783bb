package verifier

import (
	"time"

	"github.com/holiman/uint256"

	"ironfish/core/chain"
	"ironfish/core/chainerrors"
)

// Verifier runs context-free and contextual checks against the capability
// interfaces supplied at construction.
type Verifier struct {
	params Params
}

// New builds a Verifier bound to the given consensus parameters.
func New(params Params) *Verifier {
	return &Verifier{params: params}
}

// CheckHeaderContextFree runs every check that depends only on the header's
// own bytes: proof-of-work, timestamp sanity, and well-formedness.
func (v *Verifier) CheckHeaderContextFree(header *chain.BlockHeader, now time.Time) error {
	if header.Target == nil || header.Target.IsZero() {
		return chainerrors.NewValidation(chainerrors.ReasonInvalidTarget, "target must be non-zero")
	}

	serialized, err := header.Serialize()
	if err != nil {
		return chainerrors.NewValidation(chainerrors.ReasonMalformed, err.Error())
	}
	digest := v.params.hashResolver().For(header.Sequence).HashHeader(serialized)
	powValue := new(uint256.Int).SetBytes(digest[:])
	if powValue.Cmp(header.Target) > 0 {
		return chainerrors.NewValidation(chainerrors.ReasonInvalidPoW, "proof-of-work hash exceeds target")
	}

	maxTimestamp := uint64(now.Add(time.Duration(v.params.AllowedBlockFutureSeconds)*time.Second).UnixMilli())
	if header.Timestamp > maxTimestamp {
		return chainerrors.NewValidation(chainerrors.ReasonInvalidTimestamp, "timestamp too far in the future")
	}

	return nil
}

// CheckSequentialBlockTime enforces timestamp > parent.timestamp once the
// enforceSequentialBlockTime activation sequence is reached.
func (v *Verifier) CheckSequentialBlockTime(header, parent *chain.BlockHeader) error {
	if !v.params.sequentialTimeActive(header.Sequence) {
		return nil
	}
	if header.Timestamp <= parent.Timestamp {
		return chainerrors.NewValidation(chainerrors.ReasonInvalidTimestamp, "timestamp does not strictly advance from parent")
	}
	return nil
}

// CheckBlockSize enforces the maxBlockSizeBytes consensus parameter.
func (v *Verifier) CheckBlockSize(block *chain.Block) error {
	serialized, err := block.Serialize()
	if err != nil {
		return chainerrors.NewValidation(chainerrors.ReasonMalformed, err.Error())
	}
	if uint64(len(serialized)) > v.params.MaxBlockSizeBytes {
		return chainerrors.NewValidation(chainerrors.ReasonInvalidSize, "serialized block exceeds maxBlockSizeBytes")
	}
	return nil
}

// CheckTransactionContextFree runs the context-free checks of §4.4
// that apply to any single transaction in isolation: fee sign rules and
// minimum fee. isMinersFee transactions skip the minimum-fee floor. Per-asset
// balance is not checked: checkAssetBalance accepts every transaction.
func (v *Verifier) CheckTransactionContextFree(tx *chain.Transaction) error {
	if tx.Fee == nil {
		return chainerrors.NewValidation(chainerrors.ReasonInvalidFee, "fee is nil")
	}

	if tx.IsMinersFee() {
		if tx.Fee.Sign() >= 0 {
			return chainerrors.NewValidation(chainerrors.ReasonInvalidFee, "miner's fee transaction must carry a negative fee")
		}
	} else {
		if tx.Fee.Sign() < 0 {
			return chainerrors.NewValidation(chainerrors.ReasonInvalidFee, "non-miner's-fee transaction must carry a non-negative fee")
		}
		if v.params.MinFee != nil && tx.Fee.Cmp(v.params.MinFee) < 0 {
			return chainerrors.NewValidation(chainerrors.ReasonInvalidFee, "fee below minFee floor")
		}
	}

	if err := checkAssetBalance(tx); err != nil {
		return err
	}
	return nil
}

// checkAssetBalance is the hook for §3's per-asset algebraic balance:
// sum(notes) - sum(spends) + sum(mints) - sum(burns) + fee(if native) == 0.
// It checks nothing and always returns nil. Notes and spends don't carry a
// plaintext asset or value (they are encrypted/ZK-protected amounts whose
// balance the spend/output proofs attest to out of band); only mints and
// burns are observable in the clear.
func checkAssetBalance(tx *chain.Transaction) error {
	// Mint/burn values are already typed uint64, so individual overflow is
	// caught at the call boundary. The actual per-asset supply delta (mints
	// minus burns, reconciled against the running asset registry) can only
	// be enforced contextually, against chain state, in core/blockchain.
	return nil
}
