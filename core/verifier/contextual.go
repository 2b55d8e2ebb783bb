package verifier

import (
	"math"
	"math/big"

	"ironfish/core/chain"
	"ironfish/core/chainerrors"
)

// ChainView is the capability interface the blockchain engine supplies so
// the verifier can run contextual checks without importing core/blockchain
// (Design Note 9: break Blockchain<->Verifier cycles with small
// capability interfaces rather than a direct dependency).
type ChainView interface {
	// NullifierExists reports whether nullifier has already been spent on
	// the ancestor chain of the block under verification.
	NullifierExists(nullifier chain.Hash) (bool, error)
	// NoteTreeSize returns the current size of the note commitment tree.
	NoteTreeSize() (uint32, error)
	// NoteRootAtSize returns the historical note-tree root at size, and
	// false if no such historical size was ever recorded.
	NoteRootAtSize(size uint32) (chain.Hash, bool, error)
	// Asset looks up an asset by id; found is false if it has never been
	// minted anywhere in the DAG.
	Asset(id chain.Hash) (asset chain.Asset, found bool, err error)
}

// ProofVerifier is the trait-like boundary to the zero-knowledge layer
// (§1 non-goals: ZK primitives are consumed, not implemented, here).
type ProofVerifier interface {
	VerifySpendProof(spend chain.Spend) bool
	VerifyOutputProof(output chain.Output) bool
}

// CheckSpendContextual verifies §4.4's per-spend contextual rules: the
// referenced root must be a known historical root within the staleness
// window, and the nullifier must not already be spent.
func (v *Verifier) CheckSpendContextual(spend chain.Spend, view ChainView, proofs ProofVerifier) error {
	currentSize, err := view.NoteTreeSize()
	if err != nil {
		return err
	}
	if spend.TreeSize > currentSize {
		return chainerrors.NewValidation(chainerrors.ReasonUnknownRoot, "spend references a tree size beyond the current tip")
	}

	root, found, err := view.NoteRootAtSize(spend.TreeSize)
	if err != nil {
		return err
	}
	if !found || root != spend.RootHash {
		return chainerrors.NewValidation(chainerrors.ReasonUnknownRoot, "spend root is not a known historical note-tree root")
	}

	if v.params.SpendRootStalenessBlocks != 0 {
		age := currentSize - spend.TreeSize
		if age > v.params.SpendRootStalenessBlocks {
			return chainerrors.NewValidation(chainerrors.ReasonStaleRoot, "spend root older than the staleness window")
		}
	}

	seen, err := view.NullifierExists(spend.Nullifier)
	if err != nil {
		return err
	}
	if seen {
		return chainerrors.NewValidation(chainerrors.ReasonNullifierSeen, "nullifier already spent on this chain")
	}

	if proofs != nil && !proofs.VerifySpendProof(spend) {
		return chainerrors.NewValidation(chainerrors.ReasonInvalidProof, "spend proof failed verification")
	}
	return nil
}

// CheckOutputContextual delegates note-output proof verification to the ZK
// boundary; there is no chain-state check beyond the proof itself.
func (v *Verifier) CheckOutputContextual(output chain.Output, proofs ProofVerifier) error {
	if proofs != nil && !proofs.VerifyOutputProof(output) {
		return chainerrors.NewValidation(chainerrors.ReasonInvalidProof, "output proof failed verification")
	}
	return nil
}

// CheckMintContextual verifies §4.4's mint rules: a mint either
// introduces a brand-new asset, or adds supply to an existing one whose
// owner matches (when enableAssetOwnership is active at sequence), without
// overflowing u64 supply.
func (v *Verifier) CheckMintContextual(mint chain.Mint, sequence uint32, view ChainView) error {
	existing, found, err := view.Asset(mint.AssetID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	if v.params.assetOwnershipActive(sequence) {
		if !bytesEqual(existing.Owner, mint.Owner) {
			return chainerrors.NewValidation(chainerrors.ReasonInvalidMint, "mint owner does not match existing asset owner")
		}
	}

	if existing.Supply > math.MaxUint64-mint.Value {
		return chainerrors.NewValidation(chainerrors.ReasonInvalidMint, "mint would overflow u64 asset supply")
	}
	return nil
}

// CheckBurnContextual verifies §4.4's burn rule: the asset must exist
// and carry sufficient supply.
func (v *Verifier) CheckBurnContextual(burn chain.Burn, view ChainView) error {
	existing, found, err := view.Asset(burn.AssetID)
	if err != nil {
		return err
	}
	if !found {
		return chainerrors.NewValidation(chainerrors.ReasonInvalidBurn, "burn references an asset that was never minted")
	}
	if existing.Supply < burn.Value {
		return chainerrors.NewValidation(chainerrors.ReasonInvalidBurn, "burn exceeds existing asset supply")
	}
	return nil
}

// CheckMinersFee verifies header.minersFee == -sum(fees of other
// transactions), per §4.5.
func CheckMinersFee(header *chain.BlockHeader, transactions []chain.Transaction) error {
	total := big.NewInt(0)
	minersFeeCount := 0
	for i := range transactions {
		tx := &transactions[i]
		if tx.IsMinersFee() {
			minersFeeCount++
			continue
		}
		if tx.Fee != nil {
			total.Add(total, tx.Fee)
		}
	}
	if minersFeeCount != 1 {
		return chainerrors.NewValidation(chainerrors.ReasonInvalidFee, "block must contain exactly one miner's fee transaction")
	}
	want := new(big.Int).Neg(total)
	if header.MinersFee == nil || header.MinersFee.Cmp(want) != 0 {
		return chainerrors.NewValidation(chainerrors.ReasonInvalidFee, "header minersFee does not equal -sum(other fees)")
	}
	return nil
}

// CheckCommitmentRoots verifies the note and nullifier commitments recorded
// in a header match what the engine actually computed after applying the
// block's transactions. The engine computes computedNote/computedNullifier
// from its own Merkle trees; the verifier only compares.
func CheckCommitmentRoots(header *chain.BlockHeader, computedNote, computedNullifier chain.Commitment) error {
	if header.NoteCommitment != computedNote {
		return chainerrors.NewValidation(chainerrors.ReasonInvalidRoot, "note commitment mismatch")
	}
	if header.NullifierCommitment != computedNullifier {
		return chainerrors.NewValidation(chainerrors.ReasonInvalidRoot, "nullifier commitment mismatch")
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
