package mempool

import (
	"math/big"
	"testing"

	"ironfish/core/chain"
	"ironfish/core/verifier"
)

// fakeChainView is a bare-bones verifier.ChainView for mempool tests that
// never need real Merkle state, only nullifier-existence control.
type fakeChainView struct {
	spent map[chain.Hash]bool
}

func newFakeChainView() *fakeChainView { return &fakeChainView{spent: make(map[chain.Hash]bool)} }

func (f *fakeChainView) NullifierExists(n chain.Hash) (bool, error) { return f.spent[n], nil }
func (f *fakeChainView) NoteTreeSize() (uint32, error)              { return 0, nil }
func (f *fakeChainView) NoteRootAtSize(uint32) (chain.Hash, bool, error) {
	return chain.Hash{}, false, nil
}
func (f *fakeChainView) Asset(chain.Hash) (chain.Asset, bool, error) { return chain.Asset{}, false, nil }

var _ verifier.ChainView = (*fakeChainView)(nil)

func testPool(view verifier.ChainView, maxSize int) *Pool {
	v := verifier.New(verifier.Params{MinFee: big.NewInt(0)})
	return New(Options{Verifier: v, ChainView: view, MaxSize: maxSize})
}

func sampleTx(fee int64, expires uint32, nullifierByte byte) chain.Transaction {
	var nullifier, merkleHash chain.Hash
	nullifier[0] = nullifierByte
	merkleHash[0] = nullifierByte + 100
	return chain.Transaction{
		Version:            1,
		Spends:             []chain.Spend{{Nullifier: nullifier}},
		Notes:              []chain.Output{{MerkleHash: merkleHash}},
		Fee:                big.NewInt(fee),
		ExpirationSequence: expires,
	}
}

func TestAcceptRejectsDuplicate(t *testing.T) {
	p := testPool(newFakeChainView(), 0)
	tx := sampleTx(10, 0, 1)

	if res := p.Accept(tx, 1); !res.Accepted {
		t.Fatalf("first accept failed: %+v", res)
	}
	res := p.Accept(tx, 1)
	if res.Accepted || res.Reason != RejectAlreadyInPool {
		t.Fatalf("want RejectAlreadyInPool, got %+v", res)
	}
}

func TestAcceptRejectsExpired(t *testing.T) {
	p := testPool(newFakeChainView(), 0)
	tx := sampleTx(10, 5, 1)

	res := p.Accept(tx, 5)
	if res.Accepted || res.Reason != RejectExpired {
		t.Fatalf("want RejectExpired, got %+v", res)
	}
}

func TestAcceptRejectsFeeBelowFloor(t *testing.T) {
	v := verifier.New(verifier.Params{MinFee: big.NewInt(100)})
	p := New(Options{Verifier: v, ChainView: newFakeChainView()})

	res := p.Accept(sampleTx(5, 0, 1), 0)
	if res.Accepted || res.Reason != RejectFeeBelowFloor {
		t.Fatalf("want RejectFeeBelowFloor, got %+v", res)
	}
}

func TestAcceptRejectsNullifierAlreadySpentOnChain(t *testing.T) {
	view := newFakeChainView()
	tx := sampleTx(10, 0, 1)
	view.spent[tx.Spends[0].Nullifier] = true

	p := testPool(view, 0)
	res := p.Accept(tx, 0)
	if res.Accepted || res.Reason != RejectInvalid {
		t.Fatalf("want RejectInvalid, got %+v", res)
	}
}

func TestAcceptRejectsNullifierAlreadyPending(t *testing.T) {
	p := testPool(newFakeChainView(), 0)
	first := sampleTx(10, 0, 1)
	if res := p.Accept(first, 0); !res.Accepted {
		t.Fatalf("first accept failed: %+v", res)
	}

	second := first
	second.Notes = []chain.Output{{MerkleHash: chain.Hash{200}}}
	second.Fee = big.NewInt(20)
	res := p.Accept(second, 0)
	if res.Accepted || res.Reason != RejectInvalid {
		t.Fatalf("want RejectInvalid (pending nullifier conflict), got %+v", res)
	}
}

func TestAcceptEvictsLowestFeeRateWhenFull(t *testing.T) {
	p := testPool(newFakeChainView(), 2)

	if res := p.Accept(sampleTx(1, 0, 1), 0); !res.Accepted {
		t.Fatalf("accept low-fee tx: %+v", res)
	}
	if res := p.Accept(sampleTx(2, 0, 2), 0); !res.Accepted {
		t.Fatalf("accept mid-fee tx: %+v", res)
	}

	var lowHash chain.Hash
	{
		tx := sampleTx(1, 0, 1)
		h, _ := tx.Hash()
		lowHash = h
	}

	res := p.Accept(sampleTx(100, 0, 3), 0)
	if !res.Accepted {
		t.Fatalf("high-fee tx should evict the lowest-fee pending tx: %+v", res)
	}
	if p.Has(lowHash) {
		t.Fatalf("lowest-fee tx should have been evicted")
	}
	if p.Size() != 2 {
		t.Fatalf("pool size = %d, want 2", p.Size())
	}
}

func TestAcceptRejectsWhenFullAndFeeRateTooLow(t *testing.T) {
	p := testPool(newFakeChainView(), 1)

	if res := p.Accept(sampleTx(10, 0, 1), 0); !res.Accepted {
		t.Fatalf("accept: %+v", res)
	}
	res := p.Accept(sampleTx(1, 0, 2), 0)
	if res.Accepted || res.Reason != RejectPoolFull {
		t.Fatalf("want RejectPoolFull, got %+v", res)
	}
}

func TestEvictByHeadAdvanceRemovesConfirmedAndExpired(t *testing.T) {
	p := testPool(newFakeChainView(), 0)

	confirmed := sampleTx(10, 0, 1)
	expiring := sampleTx(10, 3, 2)
	survivor := sampleTx(10, 0, 3)

	for _, tx := range []chain.Transaction{confirmed, expiring, survivor} {
		if res := p.Accept(tx, 0); !res.Accepted {
			t.Fatalf("accept %+v: %+v", tx, res)
		}
	}

	block := chain.Block{
		Header:       chain.BlockHeader{Sequence: 3},
		Transactions: []chain.Transaction{confirmed},
	}
	p.evictByHeadAdvance(block)

	confirmedHash, _ := confirmed.Hash()
	expiringHash, _ := expiring.Hash()
	survivorHash, _ := survivor.Hash()

	if p.Has(confirmedHash) {
		t.Fatalf("confirmed tx should have been evicted")
	}
	if p.Has(expiringHash) {
		t.Fatalf("expired tx should have been evicted")
	}
	if !p.Has(survivorHash) {
		t.Fatalf("survivor tx should still be pending")
	}
}

func TestOnDisconnectBlockReinsertsNonMinerTransactions(t *testing.T) {
	p := testPool(newFakeChainView(), 0)

	minersFee := chain.Transaction{
		Fee:   big.NewInt(-5),
		Notes: []chain.Output{{MerkleHash: chain.Hash{1}}},
	}
	regular := sampleTx(10, 0, 9)

	block := chain.Block{
		Header:       chain.BlockHeader{Sequence: 2},
		Transactions: []chain.Transaction{minersFee, regular},
	}
	p.onDisconnectBlock(block)

	regularHash, _ := regular.Hash()
	if !p.Has(regularHash) {
		t.Fatalf("non-miner tx should have been re-inserted as pending")
	}
	if p.Size() != 1 {
		t.Fatalf("pool size = %d, want 1 (miner's fee tx excluded)", p.Size())
	}
}

func TestOrderedForTemplateOrdersByFeeRateDescending(t *testing.T) {
	p := testPool(newFakeChainView(), 0)

	low := sampleTx(1, 0, 1)
	high := sampleTx(100, 0, 2)
	mid := sampleTx(10, 0, 3)

	for _, tx := range []chain.Transaction{low, high, mid} {
		if res := p.Accept(tx, 0); !res.Accepted {
			t.Fatalf("accept: %+v", res)
		}
	}

	ordered := p.OrderedForTemplate(0, 0)
	if len(ordered) != 3 {
		t.Fatalf("len(ordered) = %d, want 3", len(ordered))
	}
	highHash, _ := high.Hash()
	gotFirst, _ := ordered[0].Hash()
	if gotFirst != highHash {
		t.Fatalf("highest fee-rate tx should sort first")
	}
}

func TestFeeEstimatorUsesDefaultBelowWindow(t *testing.T) {
	est := NewFeeEstimator(10, 3, big.NewInt(7))
	if got := est.GetSuggestedFee(50); got.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("got %v, want default 7", got)
	}
}

func TestFeeEstimatorSlidesWindowAndReportsPercentile(t *testing.T) {
	est := NewFeeEstimator(2, 2, big.NewInt(0))

	block := func(fees ...int64) chain.Block {
		txs := make([]chain.Transaction, len(fees))
		for i, f := range fees {
			txs[i] = chain.Transaction{Fee: big.NewInt(f)}
		}
		return chain.Block{Transactions: txs}
	}

	est.OnBlockConnected(block(10, 20, 30))
	est.OnBlockConnected(block(5, 15))

	got := est.GetSuggestedFee(0)
	if got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("p0 = %v, want 5", got)
	}

	est.OnBlockConnected(block(100, 200))
	got = est.GetSuggestedFee(0)
	if got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("after slide, p0 = %v, want 5 (oldest block's samples dropped)", got)
	}
}
