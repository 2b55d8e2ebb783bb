package blockchain

import (
	"ironfish/core/chain"
	"ironfish/core/kv"
)

// ForkInfo summarizes a side branch for observability, the way
// core/chain_fork_manager.go's ForkInfo{Parent,Length} does for CLI output —
// generalized from a parent-hex/length pair to a head hash and the
// branch's cumulative work, since this engine tracks every stored header
// rather than only unlinked fork blocks.
type ForkInfo struct {
	HeadHash  chain.Hash
	Sequence  uint32
	WorkTotal string
}

// ListForks returns every stored header that is not on the main chain but
// has no children (i.e. a branch tip), for diagnostics and tests.
func (e *Engine) ListForks() ([]ForkInfo, error) {
	var result []ForkInfo
	err := e.db.View(func(tx *kv.Txn) error {
		return e.stores.headers.Iterate(tx, nil, func(entry kv.Entry[chain.Hash, StoredHeader]) error {
			sh := entry.Value
			if sh.OnMainChain {
				return nil
			}
			hasChild, err := e.hasAnyChildTx(tx, entry.Key)
			if err != nil {
				return err
			}
			if hasChild {
				return nil
			}
			result = append(result, ForkInfo{
				HeadHash:  entry.Key,
				Sequence:  sh.Header.Sequence,
				WorkTotal: sh.WorkTotal.String(),
			})
			return nil
		})
	})
	return result, err
}
