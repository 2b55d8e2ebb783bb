package blockchain

import (
	"errors"

	"ironfish/core/chain"
	"ironfish/core/chainerrors"
	"ironfish/core/kv"
	"ironfish/core/verifier"
)

// txChainView adapts a single kv.Txn plus the engine's live trees into the
// verifier.ChainView capability interface, the way core/chain_fork_manager.go
// hands its ledger lookups to the validator without a direct import of the
// validator package.
type txChainView struct {
	e  *Engine
	tx *kv.Txn
}

func (v *txChainView) NullifierExists(nullifier chain.Hash) (bool, error) {
	return v.e.stores.nullifiers.Has(v.tx, nullifier)
}

func (v *txChainView) NoteTreeSize() (uint32, error) {
	return v.e.noteTree.Size(v.tx)
}

func (v *txChainView) NoteRootAtSize(size uint32) (chain.Hash, bool, error) {
	current, err := v.e.noteTree.Size(v.tx)
	if err != nil {
		return chain.Hash{}, false, err
	}
	if size > current {
		return chain.Hash{}, false, nil
	}
	root, err := v.e.noteTree.RootHash(v.tx, &size)
	if err != nil {
		return chain.Hash{}, false, err
	}
	return root, true, nil
}

func (v *txChainView) Asset(id chain.Hash) (chain.Asset, bool, error) {
	asset, err := v.e.stores.assets.Get(v.tx, id)
	if errors.Is(err, chainerrors.ErrNotFound) {
		return chain.Asset{}, false, nil
	}
	if err != nil {
		return chain.Asset{}, false, err
	}
	return asset, true, nil
}

// ChainView methods below let external callers (mempool, RPC) query live
// chain state without holding a kv.Txn of their own.

func (e *Engine) NullifierExists(nullifier chain.Hash) (bool, error) {
	return e.stores.nullifiers.Has(nil, nullifier)
}

func (e *Engine) NoteTreeSize() (uint32, error) {
	return e.noteTree.Size(nil)
}

func (e *Engine) NoteRootAtSize(size uint32) (chain.Hash, bool, error) {
	view := &txChainView{e: e, tx: nil}
	return view.NoteRootAtSize(size)
}

func (e *Engine) Asset(id chain.Hash) (chain.Asset, bool, error) {
	view := &txChainView{e: e, tx: nil}
	return view.Asset(id)
}

// GetBlock returns the full block stored for hash, on any branch (a
// header-only fork still persists its block body). found is false if hash
// is unknown.
func (e *Engine) GetBlock(hash chain.Hash) (chain.Block, bool, error) {
	known, err := e.stores.blocks.Has(nil, hash)
	if err != nil {
		return chain.Block{}, false, err
	}
	if !known {
		return chain.Block{}, false, nil
	}
	block, err := e.loadBlock(nil, hash)
	if err != nil {
		return chain.Block{}, false, err
	}
	return block, true, nil
}

// ComputeSyncPath returns the minimum-cost path from fromHash to the
// current head along the header DAG: blocks to disconnect (fromHash's own
// branch, head-downward) then blocks to connect (their common ancestor
// upward to the head). A fromHash the engine does not know (including
// chain.ZeroHash, passed by a subscriber with no prior head) gets a nil
// disconnect path and a connect path that walks the whole main chain from
// genesis; a known fromHash gets only the path from its common ancestor
// with the head. It powers the chain
// processor's (§4.8) replay of missed events for a reattaching
// subscriber.
func (e *Engine) ComputeSyncPath(fromHash chain.Hash) (disconnectPath, connectPath []chain.Hash, err error) {
	head, ok, err := e.Head()
	if err != nil || !ok {
		return nil, nil, err
	}
	if fromHash == head {
		return nil, nil, nil
	}

	known, err := e.HasBlock(fromHash)
	if err != nil {
		return nil, nil, err
	}
	if !known {
		connectPath, err = e.mainChainPathTo(head)
		return nil, connectPath, err
	}

	err = e.db.View(func(tx *kv.Txn) error {
		_, disconnect, connect, innerErr := e.computeReorgPath(tx, fromHash, head)
		disconnectPath, connectPath = disconnect, connect
		return innerErr
	})
	return disconnectPath, connectPath, err
}

// mainChainPathTo walks the main chain backward from head to genesis and
// returns it in genesis-first order.
func (e *Engine) mainChainPathTo(head chain.Hash) ([]chain.Hash, error) {
	var path []chain.Hash
	cursor := head
	for {
		sh, err := e.stores.headers.Get(nil, cursor)
		if err != nil {
			return nil, err
		}
		path = append(path, cursor)
		if sh.Header.IsGenesis() {
			break
		}
		cursor = sh.Header.PreviousBlockHash
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

var _ verifier.ChainView = (*txChainView)(nil)
var _ verifier.ChainView = (*Engine)(nil)

// connectBlock applies block's transactions to the live note/nullifier
// trees and asset registry. The spend, output, mint and burn rules of
// §4.4 are checked for the whole block before any write; the commitment
// roots and the miner's fee are checked after the writes, so a failure
// there relies on the caller discarding tx.
func (e *Engine) connectBlock(tx *kv.Txn, block chain.Block, hash chain.Hash) error {
	view := &txChainView{e: e, tx: tx}

	for i := range block.Transactions {
		t := &block.Transactions[i]
		for _, spend := range t.Spends {
			if err := e.verifier.CheckSpendContextual(spend, view, e.proofVerifier); err != nil {
				return err
			}
		}
		for _, output := range t.Notes {
			if err := e.verifier.CheckOutputContextual(output, e.proofVerifier); err != nil {
				return err
			}
		}
		for _, mint := range t.Mints {
			if err := e.verifier.CheckMintContextual(mint, block.Header.Sequence, view); err != nil {
				return err
			}
		}
		for _, burn := range t.Burns {
			if err := e.verifier.CheckBurnContextual(burn, view); err != nil {
				return err
			}
		}
	}

	for i := range block.Transactions {
		t := &block.Transactions[i]
		txHash, err := t.Hash()
		if err != nil {
			return err
		}

		for _, spend := range t.Spends {
			if err := e.stores.nullifiers.Put(tx, spend.Nullifier, hash); err != nil {
				return err
			}
			if _, err := e.nullTree.Add(tx, spend.Nullifier); err != nil {
				return err
			}
		}
		for _, output := range t.Notes {
			if _, err := e.noteTree.Add(tx, output.MerkleHash); err != nil {
				return err
			}
		}
		for _, mint := range t.Mints {
			if err := e.applyMint(tx, mint, txHash, hash, block.Header.Sequence); err != nil {
				return err
			}
		}
		for _, burn := range t.Burns {
			if err := e.applyBurn(tx, burn); err != nil {
				return err
			}
		}

		txBytes, err := t.Serialize()
		if err != nil {
			return err
		}
		if err := e.stores.txIndex.Put(tx, txHash, TxIndexEntry{BlockHash: hash, Sequence: block.Header.Sequence, Bytes: txBytes}); err != nil {
			return err
		}
	}

	noteSize, err := e.noteTree.Size(tx)
	if err != nil {
		return err
	}
	noteRoot, err := e.noteTree.RootHash(tx, &noteSize)
	if err != nil {
		return err
	}
	nullSize, err := e.nullTree.Size(tx)
	if err != nil {
		return err
	}
	nullRoot, err := e.nullTree.RootHash(tx, &nullSize)
	if err != nil {
		return err
	}

	if err := verifier.CheckCommitmentRoots(&block.Header,
		chain.Commitment{Root: noteRoot, Size: noteSize},
		chain.Commitment{Root: nullRoot, Size: nullSize},
	); err != nil {
		return err
	}
	if err := verifier.CheckMinersFee(&block.Header, block.Transactions); err != nil {
		return err
	}

	sh, err := e.stores.headers.Get(tx, hash)
	if err != nil {
		return err
	}
	sh.OnMainChain = true
	return e.stores.headers.Put(tx, hash, sh)
}

func (e *Engine) applyMint(tx *kv.Txn, mint chain.Mint, txHash, blockHash chain.Hash, sequence uint32) error {
	existing, err := e.stores.assets.Get(tx, mint.AssetID)
	if errors.Is(err, chainerrors.ErrNotFound) {
		return e.stores.assets.Put(tx, mint.AssetID, chain.Asset{
			ID:                     mint.AssetID,
			Creator:                mint.Creator,
			Owner:                  mint.Owner,
			Name:                   mint.Name,
			Metadata:               mint.Metadata,
			Nonce:                  mint.Nonce,
			Supply:                 mint.Value,
			CreatedTransactionHash: txHash,
			FirstBlockHash:         blockHash,
			HasFirstBlock:          true,
			FirstSequence:          sequence,
		})
	}
	if err != nil {
		return err
	}
	existing.Supply += mint.Value
	if len(mint.TransferOwnershipTo) > 0 {
		existing.Owner = mint.TransferOwnershipTo
	}
	return e.stores.assets.Put(tx, mint.AssetID, existing)
}

func (e *Engine) applyBurn(tx *kv.Txn, burn chain.Burn) error {
	existing, err := e.stores.assets.Get(tx, burn.AssetID)
	if err != nil {
		return err
	}
	existing.Supply -= burn.Value
	return e.stores.assets.Put(tx, burn.AssetID, existing)
}

// disconnectBlock reverts exactly the mutations connectBlock applied,
// truncating the commitment trees back to their pre-block sizes the way
// core/chain_fork_manager.go's rollback walks a fork back to its fork
// point.
func (e *Engine) disconnectBlock(tx *kv.Txn, block chain.Block, hash chain.Hash, stored StoredHeader) error {
	if err := e.noteTree.Truncate(tx, stored.NoteTreeSizeBefore); err != nil {
		return err
	}
	if err := e.nullTree.Truncate(tx, stored.NullTreeSizeBefore); err != nil {
		return err
	}

	for i := range block.Transactions {
		t := &block.Transactions[i]
		txHash, err := t.Hash()
		if err != nil {
			return err
		}

		for _, spend := range t.Spends {
			if err := e.stores.nullifiers.Delete(tx, spend.Nullifier); err != nil {
				return err
			}
		}
		for _, burn := range t.Burns {
			if err := e.revertBurn(tx, burn); err != nil {
				return err
			}
		}
		for _, mint := range t.Mints {
			if err := e.revertMint(tx, mint, hash); err != nil {
				return err
			}
		}
		if err := e.stores.txIndex.Delete(tx, txHash); err != nil {
			return err
		}
	}

	sh, err := e.stores.headers.Get(tx, hash)
	if err != nil {
		return err
	}
	sh.OnMainChain = false
	return e.stores.headers.Put(tx, hash, sh)
}

func (e *Engine) revertMint(tx *kv.Txn, mint chain.Mint, blockHash chain.Hash) error {
	existing, err := e.stores.assets.Get(tx, mint.AssetID)
	if err != nil {
		return err
	}
	if existing.HasFirstBlock && existing.FirstBlockHash == blockHash {
		return e.stores.assets.Delete(tx, mint.AssetID)
	}
	existing.Supply -= mint.Value
	return e.stores.assets.Put(tx, mint.AssetID, existing)
}

func (e *Engine) revertBurn(tx *kv.Txn, burn chain.Burn) error {
	existing, err := e.stores.assets.Get(tx, burn.AssetID)
	if err != nil {
		return err
	}
	existing.Supply += burn.Value
	return e.stores.assets.Put(tx, burn.AssetID, existing)
}

// computeReorgPath walks back from oldHead and newHead in lockstep by
// sequence number until they meet at a common ancestor, the standard
// symmetric-difference algorithm for chain reorganization.
func (e *Engine) computeReorgPath(tx *kv.Txn, oldHead, newHead chain.Hash) (ancestor chain.Hash, disconnectPath, connectPath []chain.Hash, err error) {
	oldStored, err := e.stores.headers.Get(tx, oldHead)
	if err != nil {
		return chain.Hash{}, nil, nil, err
	}
	newStored, err := e.stores.headers.Get(tx, newHead)
	if err != nil {
		return chain.Hash{}, nil, nil, err
	}

	oldCursor, oldSeq := oldHead, oldStored.Header.Sequence
	newCursor, newSeq := newHead, newStored.Header.Sequence

	var disconnect []chain.Hash
	var connect []chain.Hash

	for oldSeq > newSeq {
		disconnect = append(disconnect, oldCursor)
		parent, err := e.stores.headers.Get(tx, oldCursor)
		if err != nil {
			return chain.Hash{}, nil, nil, err
		}
		oldCursor = parent.Header.PreviousBlockHash
		oldSeq--
	}
	for newSeq > oldSeq {
		connect = append(connect, newCursor)
		parent, err := e.stores.headers.Get(tx, newCursor)
		if err != nil {
			return chain.Hash{}, nil, nil, err
		}
		newCursor = parent.Header.PreviousBlockHash
		newSeq--
	}

	for oldCursor != newCursor {
		disconnect = append(disconnect, oldCursor)
		connect = append(connect, newCursor)

		oldParent, err := e.stores.headers.Get(tx, oldCursor)
		if err != nil {
			return chain.Hash{}, nil, nil, err
		}
		newParent, err := e.stores.headers.Get(tx, newCursor)
		if err != nil {
			return chain.Hash{}, nil, nil, err
		}
		oldCursor = oldParent.Header.PreviousBlockHash
		newCursor = newParent.Header.PreviousBlockHash
	}

	// connect must run from the ancestor upward; it was built head-downward.
	for i, j := 0, len(connect)-1; i < j; i, j = i+1, j-1 {
		connect[i], connect[j] = connect[j], connect[i]
	}

	return oldCursor, disconnect, connect, nil
}
