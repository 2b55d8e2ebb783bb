package blockchain

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ironfish/core/chain"
	"ironfish/core/chainerrors"
	"ironfish/core/kv"
	"ironfish/core/merkle"
	"ironfish/core/verifier"
)

// ResultStatus classifies the outcome of AddBlock, per §4.5.
type ResultStatus int

const (
	Added ResultStatus = iota
	AddedAsFork
	AlreadyAdded
	Orphan
	Invalid
)

func (s ResultStatus) String() string {
	switch s {
	case Added:
		return "Added"
	case AddedAsFork:
		return "AddedAsFork"
	case AlreadyAdded:
		return "AlreadyAdded"
	case Orphan:
		return "Orphan"
	case Invalid:
		return "Invalid"
	default:
		return "Unknown"
	}
}

// AddBlockResult is the outcome of a single AddBlock call.
type AddBlockResult struct {
	Status        ResultStatus
	MissingParent chain.Hash
	Err           error
}

// MinerFeeSigner is the boundary to the wallet/ZK spend-authority layer
// (§4.5 createMinersFee). The engine never implements signing itself.
type MinerFeeSigner interface {
	CreateMinersFee(fee *big.Int, sequence uint32, spendingKey []byte) (chain.Transaction, error)
}

// Engine is the blockchain engine of spec component L5.
type Engine struct {
	db     *kv.Database
	stores *stores

	noteTree *merkle.Tree
	nullTree *merkle.Tree

	verifier      *verifier.Verifier
	proofVerifier verifier.ProofVerifier
	signer        MinerFeeSigner
	logger        *logrus.Logger

	mu      sync.Mutex // serializes addBlockLocked, i.e. every state change of AddBlock (§5); event emission and orphan draining run after it is released
	orphanP *orphanPool

	subMu       sync.Mutex
	subscribers map[int]EventHandler
	nextSubID   int
}

// Options configures a new Engine.
type Options struct {
	DB            *kv.Database
	Verifier      *verifier.Verifier
	ProofVerifier verifier.ProofVerifier
	Signer        MinerFeeSigner
	Logger        *logrus.Logger
}

// New constructs an Engine bound to db, with its note and nullifier trees
// declared under dedicated store prefixes.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		db:            opts.DB,
		stores:        newStores(opts.DB),
		noteTree:      merkle.New(opts.DB, prefixNoteTree, prefixNoteMeta, nil),
		nullTree:      merkle.New(opts.DB, prefixNullTree, prefixNullMeta, nil),
		verifier:      opts.Verifier,
		proofVerifier: opts.ProofVerifier,
		signer:        opts.Signer,
		logger:        logger,
		orphanP:       newOrphanPool(),
		subscribers:   make(map[int]EventHandler),
	}
}

var metaHeadKey = "head"
var metaLatestKey = "latest"
var metaGenesisKey = "genesis"

// Head returns the current main-chain tip, and false if no block has ever
// been added.
func (e *Engine) Head() (chain.Hash, bool, error) {
	h, err := e.stores.meta.Get(nil, metaHeadKey)
	if errors.Is(err, chainerrors.ErrNotFound) {
		return chain.Hash{}, false, nil
	}
	if err != nil {
		return chain.Hash{}, false, err
	}
	return h, true, nil
}

// HasBlock reports whether a header with this hash is stored, regardless
// of main/fork status.
func (e *Engine) HasBlock(hash chain.Hash) (bool, error) {
	return e.stores.headers.Has(nil, hash)
}

// ArchivedOrphans returns every orphan block rejected as invalid once its
// missing parent arrived. They are kept only for operator inspection, not
// reconsidered for connection.
func (e *Engine) ArchivedOrphans() []chain.Block {
	return e.orphanP.Archived()
}

// GetHeader returns the stored header for hash.
func (e *Engine) GetHeader(hash chain.Hash) (chain.BlockHeader, bool, error) {
	sh, err := e.stores.headers.Get(nil, hash)
	if errors.Is(err, chainerrors.ErrNotFound) {
		return chain.BlockHeader{}, false, nil
	}
	if err != nil {
		return chain.BlockHeader{}, false, err
	}
	return sh.Header, true, nil
}

// IsHeadChain reports whether hash is on the current main chain.
func (e *Engine) IsHeadChain(hash chain.Hash) (bool, error) {
	sh, err := e.stores.headers.Get(nil, hash)
	if errors.Is(err, chainerrors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return sh.OnMainChain, nil
}

// GetHeadersAtSequence returns every stored header at the given sequence,
// across all forks.
func (e *Engine) GetHeadersAtSequence(sequence uint32) ([]chain.BlockHeader, error) {
	prefix := kv.Uint32BEKey{}.EncodeKey(sequence)
	var out []chain.BlockHeader
	err := e.stores.bySequence.Iterate(nil, prefix, func(entry kv.Entry[kv.Pair[uint32, chain.Hash], kv.Null]) error {
		sh, err := e.stores.headers.Get(nil, entry.Key.B)
		if err != nil {
			return err
		}
		out = append(out, sh.Header)
		return nil
	})
	return out, err
}

// CreateMinersFee delegates to the injected wallet/ZK boundary.
func (e *Engine) CreateMinersFee(fee *big.Int, sequence uint32, spendingKey []byte) (chain.Transaction, error) {
	if e.signer == nil {
		return chain.Transaction{}, chainerrors.NewValidation(chainerrors.ReasonMalformed, "no miner's-fee signer configured")
	}
	return e.signer.CreateMinersFee(fee, sequence, spendingKey)
}

func (e *Engine) hasAnyChildTx(tx *kv.Txn, parent chain.Hash) (bool, error) {
	found := false
	prefix := kv.Hash32Key{}.EncodeKey(parent)
	err := e.stores.children.Iterate(tx, prefix, func(kv.Entry[kv.Pair[chain.Hash, chain.Hash], kv.Null]) error {
		found = true
		return kv.StopIteration
	})
	if err != nil && !errors.Is(err, kv.StopIteration) {
		return false, err
	}
	return found, nil
}

// AddBlock runs the algorithm of §4.5.
func (e *Engine) AddBlock(block chain.Block) (AddBlockResult, error) {
	result, hash, connected, disconnected, err := e.addBlockLocked(block)
	if err != nil {
		return AddBlockResult{}, err
	}

	for _, b := range disconnected {
		e.emitDisconnect(b)
	}
	for _, b := range connected {
		e.emitConnect(b)
	}
	if result.Status == Added || result.Status == AddedAsFork {
		e.drainOrphans(hash)
	}
	return result, nil
}

func (e *Engine) addBlockLocked(block chain.Block) (result AddBlockResult, hash chain.Hash, connectedBlocks, disconnectedBlocks []chain.Block, outerErr error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var err error
	hash, err = block.Hash()
	if err != nil {
		result = AddBlockResult{Status: Invalid, Err: err}
		return
	}

	if already, herr := e.stores.headers.Has(nil, hash); herr != nil {
		outerErr = herr
		return
	} else if already {
		result = AddBlockResult{Status: AlreadyAdded}
		return
	}

	header := block.Header
	var parentStored StoredHeader
	var hasParent bool
	if header.IsGenesis() {
		if header.PreviousBlockHash != chain.ZeroHash {
			result = AddBlockResult{Status: Invalid, Err: chainerrors.NewValidation(chainerrors.ReasonMalformed, "genesis previousBlockHash must be zero")}
			return
		}
	} else {
		parentStored, err = e.stores.headers.Get(nil, header.PreviousBlockHash)
		if errors.Is(err, chainerrors.ErrNotFound) {
			e.orphanP.Add(hash, header.PreviousBlockHash, block)
			result = AddBlockResult{Status: Orphan, MissingParent: header.PreviousBlockHash}
			return
		}
		if err != nil {
			outerErr = err
			return
		}
		hasParent = true
	}

	if err = e.checkContextFree(&block); err != nil {
		result = AddBlockResult{Status: Invalid, Err: err}
		return
	}

	if hasParent {
		if err = e.verifier.CheckSequentialBlockTime(&header, &parentStored.Header); err != nil {
			result = AddBlockResult{Status: Invalid, Err: err}
			return
		}
	}

	expectedWork := chain.Work(header.Target)
	if header.Work == nil || header.Work.Cmp(expectedWork) != 0 {
		result = AddBlockResult{Status: Invalid, Err: chainerrors.NewValidation(chainerrors.ReasonInvalidTarget, "header work does not match 2**256/(target+1)")}
		return
	}

	workTotal := new(big.Int).Set(expectedWork)
	noteSizeBefore, nullSizeBefore := uint32(0), uint32(0)
	if hasParent {
		workTotal.Add(workTotal, parentStored.WorkTotal)
		noteSizeBefore = parentStored.Header.NoteCommitment.Size
		nullSizeBefore = parentStored.Header.NullifierCommitment.Size
	}

	currentHead, hasHead, err := e.Head()
	if err != nil {
		outerErr = err
		return
	}

	becomesHead := !hasHead
	if hasHead {
		var headStored StoredHeader
		headStored, err = e.stores.headers.Get(nil, currentHead)
		if err != nil {
			outerErr = err
			return
		}
		if workTotal.Cmp(headStored.WorkTotal) > 0 {
			becomesHead = true
		} else if workTotal.Cmp(headStored.WorkTotal) == 0 && lessHash(hash, currentHead) {
			becomesHead = true
		}
	}

	sh := StoredHeader{
		Header:             header,
		WorkTotal:          workTotal,
		NoteTreeSizeBefore: noteSizeBefore,
		NullTreeSizeBefore: nullSizeBefore,
		OnMainChain:        false,
	}

	if !becomesHead {
		if err = e.db.Transaction(func(tx *kv.Txn) error {
			return e.persistHeaderOnly(tx, hash, block, header, sh, hasParent)
		}); err != nil {
			outerErr = err
			return
		}
		result = AddBlockResult{Status: AddedAsFork}
		return
	}

	txErr := e.db.Transaction(func(tx *kv.Txn) error {
		if err := e.persistHeaderOnly(tx, hash, block, header, sh, hasParent); err != nil {
			return err
		}

		if !hasHead {
			if err := e.connectBlock(tx, block, hash); err != nil {
				return err
			}
			connectedBlocks = append(connectedBlocks, block)
			return e.setHead(tx, hash)
		}

		_, disconnectPath, connectPath, err := e.computeReorgPath(tx, currentHead, hash)
		if err != nil {
			return err
		}

		for _, dHash := range disconnectPath {
			dStored, err := e.stores.headers.Get(tx, dHash)
			if err != nil {
				return err
			}
			dBlock, err := e.loadBlock(tx, dHash)
			if err != nil {
				return err
			}
			if err := e.disconnectBlock(tx, dBlock, dHash, dStored); err != nil {
				return err
			}
			disconnectedBlocks = append(disconnectedBlocks, dBlock)
		}

		for _, cHash := range connectPath {
			var cBlock chain.Block
			if cHash == hash {
				cBlock = block
			} else {
				var err error
				cBlock, err = e.loadBlock(tx, cHash)
				if err != nil {
					return err
				}
			}
			if err := e.connectBlock(tx, cBlock, cHash); err != nil {
				return err
			}
			connectedBlocks = append(connectedBlocks, cBlock)
		}

		return e.setHead(tx, hash)
	})

	if txErr != nil {
		connectedBlocks, disconnectedBlocks = nil, nil
		var ve *chainerrors.ValidationError
		if errors.As(txErr, &ve) {
			result = AddBlockResult{Status: Invalid, Err: txErr}
			return
		}
		outerErr = txErr
		return
	}

	result = AddBlockResult{Status: Added}
	return
}

func lessHash(a, b chain.Hash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func (e *Engine) checkContextFree(block *chain.Block) error {
	if err := e.verifier.CheckHeaderContextFree(&block.Header, time.Now()); err != nil {
		return err
	}
	if err := e.verifier.CheckBlockSize(block); err != nil {
		return err
	}
	for i := range block.Transactions {
		if err := e.verifier.CheckTransactionContextFree(&block.Transactions[i]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) persistHeaderOnly(tx *kv.Txn, hash chain.Hash, block chain.Block, header chain.BlockHeader, sh StoredHeader, hasParent bool) error {
	if err := e.stores.headers.Put(tx, hash, sh); err != nil {
		return err
	}
	if hasParent {
		if err := e.stores.children.Put(tx, kv.Pair[chain.Hash, chain.Hash]{A: header.PreviousBlockHash, B: hash}, kv.Null{}); err != nil {
			return err
		}
	}
	blockBytes, err := block.Serialize()
	if err != nil {
		return err
	}
	if err := e.stores.blocks.Put(tx, hash, blockBytes); err != nil {
		return err
	}
	return e.stores.bySequence.Put(tx, kv.Pair[uint32, chain.Hash]{A: header.Sequence, B: hash}, kv.Null{})
}

func (e *Engine) setHead(tx *kv.Txn, hash chain.Hash) error {
	if err := e.stores.meta.Put(tx, metaHeadKey, hash); err != nil {
		return err
	}
	return e.stores.meta.Put(tx, metaLatestKey, hash)
}

func (e *Engine) loadBlock(tx *kv.Txn, hash chain.Hash) (chain.Block, error) {
	raw, err := e.stores.blocks.Get(tx, hash)
	if err != nil {
		return chain.Block{}, err
	}
	return chain.DeserializeBlock(raw)
}

func (e *Engine) drainOrphans(parentHash chain.Hash) {
	ready := e.orphanP.DrainReadyFor(parentHash)
	for _, b := range ready {
		result, err := e.AddBlock(b)
		if err != nil {
			e.logger.WithError(err).Warn("blockchain: failed to connect drained orphan")
			continue
		}
		if result.Status == Invalid {
			hash, herr := b.Hash()
			if herr == nil {
				e.orphanP.Archive(hash, b)
			}
			e.logger.WithError(result.Err).Warn("blockchain: drained orphan rejected as invalid, archived")
		}
	}
}
