// Package verifier implements the context-free and contextual validity
// checks for headers, transactions and blocks. It takes its capability
// interfaces from the engine rather than importing it, the way
// core/consensus.go wires in txPool/networkAdapter/securityAdapter instead
// of depending on their packages directly, so blockchain and verifier never
// form an import cycle.
package verifier

import (
	"math/big"

	"ironfish/internal/fishhash"
)

// Params is the subset of consensus parameters (§6) the verifier
// needs. It is populated from the node's configuration at construction.
type Params struct {
	AllowedBlockFutureSeconds  uint64
	MaxBlockSizeBytes          uint64
	MinFee                     *big.Int
	EnableAssetOwnershipAt     uint32 // 0 disables the check entirely
	EnforceSequentialTimeAt    uint32 // 0 disables the check entirely
	FishHashActivationSequence uint32 // 0 disables the blake3 upgrade
	SpendRootStalenessBlocks   uint32 // max (currentTreeSize - spend.TreeSize) a spend may reference
}

func (p Params) assetOwnershipActive(sequence uint32) bool {
	return p.EnableAssetOwnershipAt != 0 && sequence >= p.EnableAssetOwnershipAt
}

func (p Params) sequentialTimeActive(sequence uint32) bool {
	return p.EnforceSequentialTimeAt != 0 && sequence >= p.EnforceSequentialTimeAt
}

func (p Params) hashResolver() fishhash.Resolver {
	return fishhash.NewResolver(p.FishHashActivationSequence)
}
