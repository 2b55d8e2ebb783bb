package mempool

import (
	"math/big"
	"sort"
	"sync"

	"ironfish/core/chain"
)

// Defaults per §4.6: sample the 3 lowest-fee transactions from each of
// the last 10 connected blocks.
const (
	DefaultNumBlocks  = 10
	DefaultNumSamples = 3
)

// FeeEstimator maintains a sliding window of the lowest-fee transactions
// from recently connected blocks and answers percentile fee queries from it,
// the way a node suggests a fee to a wallet preparing a new transaction.
type FeeEstimator struct {
	mu sync.Mutex

	numBlocks  int
	numSamples int
	defaultFee *big.Int

	// samples is a FIFO of fee samples, oldest first; blockCounts records
	// how many of the trailing entries each of the last numBlocks blocks
	// contributed, so the window can dequeue exactly one block's worth at
	// a time as new blocks connect.
	samples     []*big.Int
	blockCounts []int
}

// NewFeeEstimator builds an estimator over the last numBlocks blocks,
// sampling numSamples lowest-fee transactions per block. defaultFee is
// returned until the window has observed numBlocks blocks.
func NewFeeEstimator(numBlocks, numSamples int, defaultFee *big.Int) *FeeEstimator {
	if numBlocks <= 0 {
		numBlocks = DefaultNumBlocks
	}
	if numSamples <= 0 {
		numSamples = DefaultNumSamples
	}
	if defaultFee == nil {
		defaultFee = big.NewInt(1)
	}
	return &FeeEstimator{numBlocks: numBlocks, numSamples: numSamples, defaultFee: defaultFee}
}

// OnBlockConnected samples block's numSamples lowest-fee non-miner
// transactions and slides the window forward by one block.
func (f *FeeEstimator) OnBlockConnected(block chain.Block) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fees := make([]*big.Int, 0, len(block.Transactions))
	for i := range block.Transactions {
		t := &block.Transactions[i]
		if t.IsMinersFee() || t.Fee == nil {
			continue
		}
		fees = append(fees, t.Fee)
	}
	sort.Slice(fees, func(i, j int) bool { return fees[i].Cmp(fees[j]) < 0 })
	if len(fees) > f.numSamples {
		fees = fees[:f.numSamples]
	}

	if len(f.blockCounts) == f.numBlocks {
		drop := f.blockCounts[0]
		f.blockCounts = f.blockCounts[1:]
		f.samples = f.samples[drop:]
	}
	f.blockCounts = append(f.blockCounts, len(fees))
	f.samples = append(f.samples, fees...)
}

// GetSuggestedFee returns the fee at percentile (0-100) across the current
// sample window, or defaultFee if fewer than numBlocks blocks have been
// observed yet. The pick is sorted[floor(percentile*n/100)], clamped to the
// last index; where percentile*n/100 is a whole number this is one position
// above the textbook nearest-rank index.
func (f *FeeEstimator) GetSuggestedFee(percentile int) *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.blockCounts) < f.numBlocks || len(f.samples) == 0 {
		return new(big.Int).Set(f.defaultFee)
	}

	sorted := make([]*big.Int, len(f.samples))
	copy(sorted, f.samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Cmp(sorted[j]) < 0 })

	if percentile < 0 {
		percentile = 0
	}
	if percentile > 100 {
		percentile = 100
	}
	rank := (percentile * len(sorted)) / 100
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return new(big.Int).Set(sorted[rank])
}
