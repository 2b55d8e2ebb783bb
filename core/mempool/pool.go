package mempool

import (
	"bytes"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ironfish/core/blockchain"
	"ironfish/core/chain"
	"ironfish/core/chainerrors"
	"ironfish/core/verifier"
)

// RejectReason classifies why accept() refused a transaction (§4.6).
type RejectReason string

const (
	RejectAlreadyInPool   RejectReason = "already_in_pool"
	RejectRecentlyEvicted RejectReason = "evicted_recently"
	RejectInvalid         RejectReason = "invalid"
	RejectExpired         RejectReason = "expired"
	RejectFeeBelowFloor   RejectReason = "fee_below_floor"
	RejectPoolFull        RejectReason = "pool_full"
)

// AcceptResult is the outcome of a single accept() call.
type AcceptResult struct {
	Accepted bool
	Reason   RejectReason
	Err      error
}

// EvictReason classifies why a previously-accepted transaction left the pool.
type EvictReason string

const (
	EvictConfirmed EvictReason = "confirmed"
	EvictDuplicate EvictReason = "duplicate"
	EvictExpired   EvictReason = "expired"
	EvictCapacity  EvictReason = "capacity"
)

// EvictionHandler receives eviction notifications, mirroring the engine's
// own connect/disconnect subscriber contract (core/blockchain/events.go).
type EvictionHandler interface {
	OnEvict(tx chain.Transaction, hash chain.Hash, reason EvictReason)
}

type pendingTx struct {
	tx      chain.Transaction
	hash    chain.Hash
	size    uint64
	addedAt time.Time
}

func (p *pendingTx) feeRate() *big.Rat {
	if p.size == 0 {
		return new(big.Rat).SetInt(p.tx.Fee)
	}
	return new(big.Rat).SetFrac(p.tx.Fee, new(big.Int).SetUint64(p.size))
}

// feeRateLess orders ascending by fee-per-byte with hash tie-break, so the
// priority queue's front is always the worst (first to evict) transaction.
func feeRateLess(a, b *pendingTx) bool {
	cmp := a.feeRate().Cmp(b.feeRate())
	if cmp != 0 {
		return cmp < 0
	}
	return bytes.Compare(a.hash[:], b.hash[:]) < 0
}

// Options configures a new Pool.
type Options struct {
	Verifier           *verifier.Verifier
	ChainView          verifier.ChainView
	MaxSize            int
	RecentlyEvictedFor time.Duration
	FeeEstimator       *FeeEstimator
	Logger             *logrus.Logger
}

// Pool is the pending-transaction store of spec component L6: acceptance,
// eviction, expiration and fee-rate ordering for block template assembly.
type Pool struct {
	mu sync.RWMutex

	verifier *verifier.Verifier
	chain    verifier.ChainView

	maxSize            int
	recentlyEvictedFor time.Duration

	byHash       map[chain.Hash]*pendingTx
	byNullifier  map[chain.Hash]chain.Hash // nullifier -> holding tx hash
	byExpiration map[uint32]map[chain.Hash]struct{}
	evictQueue   *PriorityQueue[*pendingTx, chain.Hash]
	evictedAt    map[chain.Hash]time.Time

	feeEstimator *FeeEstimator
	logger       *logrus.Logger

	subMu       sync.Mutex
	subscribers map[int]EvictionHandler
	nextSubID   int
}

// New constructs an empty Pool.
func New(opts Options) *Pool {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	feeEstimator := opts.FeeEstimator
	if feeEstimator == nil {
		feeEstimator = NewFeeEstimator(DefaultNumBlocks, DefaultNumSamples, big.NewInt(1))
	}
	return &Pool{
		verifier:           opts.Verifier,
		chain:              opts.ChainView,
		maxSize:            opts.MaxSize,
		recentlyEvictedFor: opts.RecentlyEvictedFor,
		byHash:             make(map[chain.Hash]*pendingTx),
		byNullifier:        make(map[chain.Hash]chain.Hash),
		byExpiration:       make(map[uint32]map[chain.Hash]struct{}),
		evictQueue:         NewPriorityQueue[*pendingTx, chain.Hash](feeRateLess, func(p *pendingTx) chain.Hash { return p.hash }),
		evictedAt:          make(map[chain.Hash]time.Time),
		feeEstimator:       feeEstimator,
		logger:             logger,
		subscribers:        make(map[int]EvictionHandler),
	}
}

// Size reports the number of pending transactions.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byHash)
}

// Has reports whether hash is currently pending.
func (p *Pool) Has(hash chain.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.byHash[hash]
	return ok
}

// SuggestedFee reports the fee-estimator's suggested fee for a transaction
// landing within percentile of recently connected blocks (§4.6).
func (p *Pool) SuggestedFee(percentile int) *big.Int {
	return p.feeEstimator.GetSuggestedFee(percentile)
}

// Accept runs §4.6's accept() pipeline against headSequence, the
// sequence of the chain's current head.
func (p *Pool) Accept(tx chain.Transaction, headSequence uint32) AcceptResult {
	hash, err := tx.Hash()
	if err != nil {
		return AcceptResult{Reason: RejectInvalid, Err: err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byHash[hash]; exists {
		return AcceptResult{Reason: RejectAlreadyInPool}
	}

	p.expireEvictionMemoryLocked(time.Now())
	if _, evicted := p.evictedAt[hash]; evicted {
		return AcceptResult{Reason: RejectRecentlyEvicted}
	}

	if err := p.verifier.CheckTransactionContextFree(&tx); err != nil {
		var ve *chainerrors.ValidationError
		if errors.As(err, &ve) && ve.Reason == chainerrors.ReasonInvalidFee {
			return AcceptResult{Reason: RejectFeeBelowFloor, Err: err}
		}
		return AcceptResult{Reason: RejectInvalid, Err: err}
	}

	if tx.ExpirationSequence != 0 && tx.ExpirationSequence <= headSequence {
		return AcceptResult{Reason: RejectExpired}
	}

	for _, spend := range tx.Spends {
		if holder, ok := p.byNullifier[spend.Nullifier]; ok && holder != hash {
			return AcceptResult{Reason: RejectInvalid, Err: chainerrors.NewValidation(chainerrors.ReasonNullifierSeen, "nullifier already held by a pending transaction")}
		}
		seen, err := p.chain.NullifierExists(spend.Nullifier)
		if err != nil {
			return AcceptResult{Reason: RejectInvalid, Err: err}
		}
		if seen {
			return AcceptResult{Reason: RejectInvalid, Err: chainerrors.NewValidation(chainerrors.ReasonNullifierSeen, "nullifier already spent on chain")}
		}
	}

	serialized, err := tx.Serialize()
	if err != nil {
		return AcceptResult{Reason: RejectInvalid, Err: err}
	}
	candidate := &pendingTx{tx: tx, hash: hash, size: uint64(len(serialized)), addedAt: time.Now()}

	if p.maxSize > 0 && len(p.byHash) >= p.maxSize {
		worst, ok := p.evictQueue.Peek()
		if ok && !feeRateLess(worst, candidate) {
			return AcceptResult{Reason: RejectPoolFull}
		}
		if ok {
			p.removeLocked(worst.hash, EvictCapacity)
		}
	}

	p.insertLocked(candidate)
	return AcceptResult{Accepted: true}
}

func (p *Pool) insertLocked(tx *pendingTx) {
	p.byHash[tx.hash] = tx
	p.evictQueue.Push(tx)
	for _, spend := range tx.tx.Spends {
		p.byNullifier[spend.Nullifier] = tx.hash
	}
	if tx.tx.ExpirationSequence != 0 {
		set := p.byExpiration[tx.tx.ExpirationSequence]
		if set == nil {
			set = make(map[chain.Hash]struct{})
			p.byExpiration[tx.tx.ExpirationSequence] = set
		}
		set[tx.hash] = struct{}{}
	}
}

// removeLocked drops tx from every index and records it as recently evicted.
func (p *Pool) removeLocked(hash chain.Hash, reason EvictReason) {
	tx, ok := p.byHash[hash]
	if !ok {
		return
	}
	delete(p.byHash, hash)
	p.evictQueue.Remove(hash)
	for _, spend := range tx.tx.Spends {
		if p.byNullifier[spend.Nullifier] == hash {
			delete(p.byNullifier, spend.Nullifier)
		}
	}
	if tx.tx.ExpirationSequence != 0 {
		if set := p.byExpiration[tx.tx.ExpirationSequence]; set != nil {
			delete(set, hash)
			if len(set) == 0 {
				delete(p.byExpiration, tx.tx.ExpirationSequence)
			}
		}
	}
	if p.recentlyEvictedFor > 0 {
		p.evictedAt[hash] = time.Now()
	}
	p.emit(tx.tx, hash, reason)
}

func (p *Pool) expireEvictionMemoryLocked(now time.Time) {
	if p.recentlyEvictedFor <= 0 {
		return
	}
	for hash, at := range p.evictedAt {
		if now.Sub(at) > p.recentlyEvictedFor {
			delete(p.evictedAt, hash)
		}
	}
}

// OnConnectBlock implements blockchain.EventHandler, evicting confirmed,
// duplicate and now-expired transactions whenever the chain head advances.
func (p *Pool) OnConnectBlock(ev blockchain.ConnectEvent) {
	p.evictByHeadAdvance(ev.Block)
}

// OnDisconnectBlock implements blockchain.EventHandler, re-inserting a
// disconnected block's non-miner transactions as pending.
func (p *Pool) OnDisconnectBlock(ev blockchain.DisconnectEvent) {
	p.onDisconnectBlock(ev.Block)
}

var _ blockchain.EventHandler = (*Pool)(nil)

// evictByHeadAdvance implements §4.6's evictByHeadAdvance: any pending
// transaction whose nullifier was just confirmed, any exact duplicate of a
// confirmed transaction, and any transaction expired by the new head
// sequence, all leave the pool.
func (p *Pool) evictByHeadAdvance(block chain.Block) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range block.Transactions {
		t := &block.Transactions[i]
		if confirmedHash, err := t.Hash(); err == nil {
			if _, ok := p.byHash[confirmedHash]; ok {
				p.removeLocked(confirmedHash, EvictDuplicate)
			}
		}
		for _, spend := range t.Spends {
			if holder, ok := p.byNullifier[spend.Nullifier]; ok {
				p.removeLocked(holder, EvictConfirmed)
			}
		}
	}

	head := block.Header.Sequence
	for seq, set := range p.byExpiration {
		if seq > head {
			continue
		}
		for hash := range set {
			p.removeLocked(hash, EvictExpired)
		}
	}

	p.feeEstimator.OnBlockConnected(block)
}

// onDisconnectBlock implements §4.6's onDisconnectBlock: every
// non-miner transaction returns to pending status unless its nullifier is
// already held by another pending transaction.
func (p *Pool) onDisconnectBlock(block chain.Block) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range block.Transactions {
		t := &block.Transactions[i]
		if t.IsMinersFee() {
			continue
		}
		hash, err := t.Hash()
		if err != nil {
			continue
		}
		if _, exists := p.byHash[hash]; exists {
			continue
		}
		conflict := false
		for _, spend := range t.Spends {
			if _, held := p.byNullifier[spend.Nullifier]; held {
				conflict = true
				break
			}
		}
		if conflict {
			continue
		}
		serialized, err := t.Serialize()
		if err != nil {
			continue
		}
		p.insertLocked(&pendingTx{tx: *t, hash: hash, size: uint64(len(serialized)), addedAt: time.Now()})
	}
}

// OrderedForTemplate implements §4.6's orderedForTemplate: a greedy,
// fee-rate-descending selection bounded by maxBytes and maxCount.
func (p *Pool) OrderedForTemplate(maxBytes uint64, maxCount int) []chain.Transaction {
	p.mu.RLock()
	snapshot := make([]*pendingTx, 0, len(p.byHash))
	for _, tx := range p.byHash {
		snapshot = append(snapshot, tx)
	}
	p.mu.RUnlock()

	sortDescendingByFeeRate(snapshot)

	out := make([]chain.Transaction, 0, len(snapshot))
	var totalBytes uint64
	for _, tx := range snapshot {
		if maxCount > 0 && len(out) >= maxCount {
			break
		}
		if maxBytes > 0 && totalBytes+tx.size > maxBytes {
			continue
		}
		out = append(out, tx.tx)
		totalBytes += tx.size
	}
	return out
}

func sortDescendingByFeeRate(txs []*pendingTx) {
	// insertion sort is adequate: template assembly runs once per block,
	// against a pool sized in the thousands at most.
	for i := 1; i < len(txs); i++ {
		for j := i; j > 0 && feeRateLess(txs[j-1], txs[j]); j-- {
			txs[j-1], txs[j] = txs[j], txs[j-1]
		}
	}
}

// Subscribe registers handler to receive future eviction events. It returns
// an unsubscribe function.
func (p *Pool) Subscribe(handler EvictionHandler) (unsubscribe func()) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	id := p.nextSubID
	p.nextSubID++
	p.subscribers[id] = handler
	return func() {
		p.subMu.Lock()
		defer p.subMu.Unlock()
		delete(p.subscribers, id)
	}
}

func (p *Pool) emit(tx chain.Transaction, hash chain.Hash, reason EvictReason) {
	p.subMu.Lock()
	handlers := make([]EvictionHandler, 0, len(p.subscribers))
	for _, h := range p.subscribers {
		handlers = append(handlers, h)
	}
	p.subMu.Unlock()
	for _, h := range handlers {
		h.OnEvict(tx, hash, reason)
	}
}
