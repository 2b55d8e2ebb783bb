// Package blockchain implements the block DAG storage, fork choice, reorg
// and note/nullifier index maintenance of the engine (spec component L5).
// Storage schema and fork bookkeeping follow the shape of
// core/chain_fork_manager.go (parent-keyed fork map, ledger-as-source-of-
// truth) and core/orphan/orphan_node.go (archive + recycle), generalized
// from sequence-number comparison and an in-memory block slice to a
// hash-keyed DAG persisted in core/kv with cumulative-work fork choice.
package blockchain

import (
	"math/big"

	"ironfish/core/chain"
	"ironfish/core/chainerrors"
	"ironfish/core/kv"
)

// StoredHeader is a header plus the engine bookkeeping needed to
// reconstruct fork choice and reorg without re-walking the whole DAG.
type StoredHeader struct {
	Header             chain.BlockHeader
	WorkTotal          *big.Int
	NoteTreeSizeBefore uint32
	NullTreeSizeBefore uint32
	OnMainChain        bool
}

type storedHeaderWire struct {
	HeaderBytes        []byte
	WorkTotal          *big.Int
	NoteTreeSizeBefore uint32
	NullTreeSizeBefore uint32
	OnMainChain        bool
}

type storedHeaderCodec struct{}

func (storedHeaderCodec) EncodeValue(v StoredHeader) ([]byte, error) {
	hb, err := v.Header.Serialize()
	if err != nil {
		return nil, err
	}
	work := v.WorkTotal
	if work == nil {
		work = big.NewInt(0)
	}
	return rlpEncode(storedHeaderWire{
		HeaderBytes:        hb,
		WorkTotal:          work,
		NoteTreeSizeBefore: v.NoteTreeSizeBefore,
		NullTreeSizeBefore: v.NullTreeSizeBefore,
		OnMainChain:        v.OnMainChain,
	})
}

func (storedHeaderCodec) DecodeValue(b []byte) (StoredHeader, error) {
	var w storedHeaderWire
	if err := rlpDecode(b, &w); err != nil {
		return StoredHeader{}, err
	}
	h, err := chain.DeserializeHeader(w.HeaderBytes)
	if err != nil {
		return StoredHeader{}, err
	}
	return StoredHeader{
		Header:             h,
		WorkTotal:          w.WorkTotal,
		NoteTreeSizeBefore: w.NoteTreeSizeBefore,
		NullTreeSizeBefore: w.NullTreeSizeBefore,
		OnMainChain:        w.OnMainChain,
	}, nil
}

// TxIndexEntry records where a confirmed transaction lives.
type TxIndexEntry struct {
	BlockHash chain.Hash
	Sequence  uint32
	Bytes     []byte
}

type txIndexWire struct {
	BlockHash chain.Hash
	Sequence  uint32
	Bytes     []byte
}

type txIndexCodec struct{}

func (txIndexCodec) EncodeValue(v TxIndexEntry) ([]byte, error) {
	return rlpEncode(txIndexWire{BlockHash: v.BlockHash, Sequence: v.Sequence, Bytes: v.Bytes})
}
func (txIndexCodec) DecodeValue(b []byte) (TxIndexEntry, error) {
	var w txIndexWire
	if err := rlpDecode(b, &w); err != nil {
		return TxIndexEntry{}, err
	}
	return TxIndexEntry{BlockHash: w.BlockHash, Sequence: w.Sequence, Bytes: w.Bytes}, nil
}

type assetCodec struct{}

func (assetCodec) EncodeValue(a chain.Asset) ([]byte, error) {
	return rlpEncode(assetWire{
		ID: a.ID, Creator: a.Creator, Owner: a.Owner, Name: a.Name, Metadata: a.Metadata,
		Nonce: a.Nonce, Supply: a.Supply, CreatedTransactionHash: a.CreatedTransactionHash,
		FirstBlockHash: a.FirstBlockHash, HasFirstBlock: a.HasFirstBlock, FirstSequence: a.FirstSequence,
	})
}
func (assetCodec) DecodeValue(b []byte) (chain.Asset, error) {
	var w assetWire
	if err := rlpDecode(b, &w); err != nil {
		return chain.Asset{}, err
	}
	return chain.Asset{
		ID: w.ID, Creator: w.Creator, Owner: w.Owner, Name: w.Name, Metadata: w.Metadata,
		Nonce: w.Nonce, Supply: w.Supply, CreatedTransactionHash: w.CreatedTransactionHash,
		FirstBlockHash: w.FirstBlockHash, HasFirstBlock: w.HasFirstBlock, FirstSequence: w.FirstSequence,
	}, nil
}

type assetWire struct {
	ID                     chain.Hash
	Creator                []byte
	Owner                  []byte
	Name                   string
	Metadata               string
	Nonce                  byte
	Supply                 uint64
	CreatedTransactionHash chain.Hash
	FirstBlockHash         chain.Hash
	HasFirstBlock          bool
	FirstSequence          uint32
}

type hashValueCodec struct{}

func (hashValueCodec) EncodeValue(h chain.Hash) ([]byte, error) { return h[:], nil }
func (hashValueCodec) DecodeValue(b []byte) (chain.Hash, error) {
	var h chain.Hash
	if len(b) != 32 {
		return h, chainerrors.ErrCorrupt
	}
	copy(h[:], b)
	return h, nil
}

type metaCodec struct{}

func (metaCodec) EncodeValue(h chain.Hash) ([]byte, error) { return h[:], nil }
func (metaCodec) DecodeValue(b []byte) (chain.Hash, error) {
	var h chain.Hash
	if len(b) != 32 {
		return h, chainerrors.ErrCorrupt
	}
	copy(h[:], b)
	return h, nil
}

// stores bundles every kv.Store the engine persists to.
type stores struct {
	headers    *kv.Store[chain.Hash, StoredHeader]
	children   *kv.Store[kv.Pair[chain.Hash, chain.Hash], kv.Null]
	bySequence *kv.Store[kv.Pair[uint32, chain.Hash], kv.Null]
	txIndex    *kv.Store[chain.Hash, TxIndexEntry]
	assets     *kv.Store[chain.Hash, chain.Asset]
	meta       *kv.Store[string, chain.Hash]
	nullifiers *kv.Store[chain.Hash, chain.Hash] // nullifier -> block hash it was spent in
	blocks     *kv.Store[chain.Hash, []byte]     // block hash -> full serialized block
}

const (
	prefixHeaders    = 0x01
	prefixChildren   = 0x02
	prefixBySequence = 0x03
	prefixTxIndex    = 0x04
	prefixAssets     = 0x05
	prefixMeta       = 0x06
	prefixNullifiers = 0x07
	prefixBlocks     = 0x08
	prefixNoteTree   = 0x10
	prefixNoteMeta   = 0x11
	prefixNullTree   = 0x12
	prefixNullMeta   = 0x13
)

func newStores(db *kv.Database) *stores {
	return &stores{
		headers: kv.NewStore[chain.Hash, StoredHeader](db, "headers", prefixHeaders, kv.Hash32Key{}, storedHeaderCodec{}),
		children: kv.NewStore[kv.Pair[chain.Hash, chain.Hash], kv.Null](db, "hashToNextHash", prefixChildren,
			kv.Composite2Key[chain.Hash, chain.Hash]{AWidth: 32, A: kv.Hash32Key{}, B: kv.Hash32Key{}}, kv.NullValue{}),
		bySequence: kv.NewStore[kv.Pair[uint32, chain.Hash], kv.Null](db, "sequenceToHashes", prefixBySequence,
			kv.Composite2Key[uint32, chain.Hash]{AWidth: 4, A: kv.Uint32BEKey{}, B: kv.Hash32Key{}}, kv.NullValue{}),
		txIndex:    kv.NewStore[chain.Hash, TxIndexEntry](db, "transactions", prefixTxIndex, kv.Hash32Key{}, txIndexCodec{}),
		assets:     kv.NewStore[chain.Hash, chain.Asset](db, "assets", prefixAssets, kv.Hash32Key{}, assetCodec{}),
		meta:       kv.NewStore[string, chain.Hash](db, "meta", prefixMeta, kv.StringKey{}, metaCodec{}),
		nullifiers: kv.NewStore[chain.Hash, chain.Hash](db, "nullifiers", prefixNullifiers, kv.Hash32Key{}, hashValueCodec{}),
		blocks:     kv.NewStore[chain.Hash, []byte](db, "blocks", prefixBlocks, kv.Hash32Key{}, kv.RawValue{}),
	}
}
