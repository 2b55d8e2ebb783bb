package syncer

import (
	"ironfish/core/blockchain"
	"ironfish/core/chain"
)

// ChainEngine is the subset of *blockchain.Engine the syncer needs, kept as
// a capability interface per Design Note 9 so this package stays testable
// without a live badger-backed engine.
type ChainEngine interface {
	Head() (chain.Hash, bool, error)
	HasBlock(hash chain.Hash) (bool, error)
	AddBlock(block chain.Block) (blockchain.AddBlockResult, error)
}

var _ ChainEngine = (*blockchain.Engine)(nil)
