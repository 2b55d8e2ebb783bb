package chainprocessor

import (
	"errors"
	"testing"
	"time"

	"ironfish/core/blockchain"
	"ironfish/core/chain"
)

type fakeEngine struct {
	head      chain.Hash
	hasHead   bool
	blocks    map[chain.Hash]chain.Block
	mainChain []chain.Hash // genesis-first
}

func newFakeEngine(mainChain []chain.Hash, blocks map[chain.Hash]chain.Block) *fakeEngine {
	e := &fakeEngine{blocks: blocks, mainChain: mainChain}
	if len(mainChain) > 0 {
		e.head = mainChain[len(mainChain)-1]
		e.hasHead = true
	}
	return e
}

func (e *fakeEngine) Head() (chain.Hash, bool, error) { return e.head, e.hasHead, nil }

func (e *fakeEngine) GetBlock(hash chain.Hash) (chain.Block, bool, error) {
	b, ok := e.blocks[hash]
	return b, ok, nil
}

// ComputeSyncPath treats fromHash as always on the main chain (or the zero
// hash, meaning "from genesis"); it has no forks to resolve, mirroring the
// simple case the engine's own implementation handles without a reorg.
func (e *fakeEngine) ComputeSyncPath(fromHash chain.Hash) (disconnect, connect []chain.Hash, err error) {
	if fromHash == e.head {
		return nil, nil, nil
	}
	if fromHash == chain.ZeroHash {
		return nil, append([]chain.Hash{}, e.mainChain...), nil
	}
	for i, h := range e.mainChain {
		if h == fromHash {
			return nil, append([]chain.Hash{}, e.mainChain[i+1:]...), nil
		}
	}
	return nil, nil, errors.New("unknown hash")
}

var _ Engine = (*fakeEngine)(nil)

func blockWithHash(h chain.Hash, prev chain.Hash, sequence uint32) chain.Block {
	return chain.Block{Header: chain.BlockHeader{
		Sequence:          sequence,
		PreviousBlockHash: prev,
		NoteCommitment:    chain.Commitment{Root: h},
	}}
}

type fakeSubscriber struct {
	id        string
	head      chain.Hash
	hasHead   bool
	connects  []chain.Hash
	disconnects []chain.Hash
	delay     time.Duration
	failOn    chain.Hash
}

func (s *fakeSubscriber) ID() string                 { return s.id }
func (s *fakeSubscriber) Head() (chain.Hash, bool)   { return s.head, s.hasHead }

func (s *fakeSubscriber) OnConnect(block chain.Block) error {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	h := block.Header.NoteCommitment.Root
	if h == s.failOn {
		return errors.New("boom")
	}
	s.connects = append(s.connects, h)
	s.head = h
	s.hasHead = true
	return nil
}

func (s *fakeSubscriber) OnDisconnect(block chain.Block) error {
	s.disconnects = append(s.disconnects, block.Header.NoteCommitment.Root)
	return nil
}

var _ Subscriber = (*fakeSubscriber)(nil)

func hashByte(b byte) chain.Hash {
	var h chain.Hash
	h[0] = b
	return h
}

func TestAttachReplaysCatchUpPathForNewSubscriber(t *testing.T) {
	h1, h2, h3 := hashByte(1), hashByte(2), hashByte(3)
	blocks := map[chain.Hash]chain.Block{
		h1: blockWithHash(h1, chain.ZeroHash, 1),
		h2: blockWithHash(h2, h1, 2),
		h3: blockWithHash(h3, h2, 3),
	}
	engine := newFakeEngine([]chain.Hash{h1, h2, h3}, blocks)
	p := New(engine, Options{})

	sub := &fakeSubscriber{id: "wallet"}
	if err := p.Attach(sub); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if len(sub.connects) != 3 || sub.connects[0] != h1 || sub.connects[2] != h3 {
		t.Fatalf("expected genesis-to-head replay, got %+v", sub.connects)
	}
}

func TestAttachAtCurrentHeadReplaysNothing(t *testing.T) {
	h1 := hashByte(1)
	blocks := map[chain.Hash]chain.Block{h1: blockWithHash(h1, chain.ZeroHash, 1)}
	engine := newFakeEngine([]chain.Hash{h1}, blocks)
	p := New(engine, Options{})

	sub := &fakeSubscriber{id: "indexer", head: h1, hasHead: true}
	if err := p.Attach(sub); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if len(sub.connects) != 0 {
		t.Fatalf("expected no replay, got %+v", sub.connects)
	}
}

func TestAttachResumesFromSubscriberHead(t *testing.T) {
	h1, h2, h3 := hashByte(1), hashByte(2), hashByte(3)
	blocks := map[chain.Hash]chain.Block{
		h1: blockWithHash(h1, chain.ZeroHash, 1),
		h2: blockWithHash(h2, h1, 2),
		h3: blockWithHash(h3, h2, 3),
	}
	engine := newFakeEngine([]chain.Hash{h1, h2, h3}, blocks)
	p := New(engine, Options{})

	sub := &fakeSubscriber{id: "wallet", head: h1, hasHead: true}
	if err := p.Attach(sub); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if len(sub.connects) != 2 || sub.connects[0] != h2 || sub.connects[1] != h3 {
		t.Fatalf("expected replay from h2, got %+v", sub.connects)
	}
}

func TestLiveConnectFansOutToAllSubscribers(t *testing.T) {
	h1 := hashByte(1)
	engine := newFakeEngine(nil, map[chain.Hash]chain.Block{})
	p := New(engine, Options{})

	walletSub := &fakeSubscriber{id: "wallet"}
	indexSub := &fakeSubscriber{id: "indexer"}
	_ = p.Attach(walletSub)
	_ = p.Attach(indexSub)

	block := blockWithHash(h1, chain.ZeroHash, 1)
	p.OnConnectBlock(blockchain.ConnectEvent{Block: block})

	if len(walletSub.connects) != 1 || walletSub.connects[0] != h1 {
		t.Fatalf("wallet missed live connect: %+v", walletSub.connects)
	}
	if len(indexSub.connects) != 1 || indexSub.connects[0] != h1 {
		t.Fatalf("indexer missed live connect: %+v", indexSub.connects)
	}
}

func TestLiveDisconnectDeliveredInOrder(t *testing.T) {
	engine := newFakeEngine(nil, map[chain.Hash]chain.Block{})
	p := New(engine, Options{})
	sub := &fakeSubscriber{id: "wallet"}
	_ = p.Attach(sub)

	h1, h2 := hashByte(1), hashByte(2)
	p.OnDisconnectBlock(blockchain.DisconnectEvent{Block: blockWithHash(h2, h1, 2)})
	p.OnDisconnectBlock(blockchain.DisconnectEvent{Block: blockWithHash(h1, chain.ZeroHash, 1)})

	if len(sub.disconnects) != 2 || sub.disconnects[0] != h2 || sub.disconnects[1] != h1 {
		t.Fatalf("expected disconnects in head-first order, got %+v", sub.disconnects)
	}
}

func TestDetachStopsFurtherDelivery(t *testing.T) {
	engine := newFakeEngine(nil, map[chain.Hash]chain.Block{})
	p := New(engine, Options{})
	sub := &fakeSubscriber{id: "wallet"}
	_ = p.Attach(sub)
	p.Detach("wallet")

	p.OnConnectBlock(blockchain.ConnectEvent{Block: blockWithHash(hashByte(1), chain.ZeroHash, 1)})

	if len(sub.connects) != 0 {
		t.Fatalf("detached subscriber should not receive events, got %+v", sub.connects)
	}
}

func TestDeliverTimesOutSlowSubscriber(t *testing.T) {
	engine := newFakeEngine(nil, map[chain.Hash]chain.Block{})
	p := New(engine, Options{DeliveryTimeout: 10 * time.Millisecond})
	sub := &fakeSubscriber{id: "slow", delay: 50 * time.Millisecond}
	_ = p.Attach(sub)

	err := p.deliver(sub, blockWithHash(hashByte(1), chain.ZeroHash, 1), true)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestBroadcastContinuesAfterOneSubscriberFails(t *testing.T) {
	engine := newFakeEngine(nil, map[chain.Hash]chain.Block{})
	p := New(engine, Options{})
	failing := &fakeSubscriber{id: "failing", failOn: hashByte(1)}
	ok := &fakeSubscriber{id: "ok"}
	_ = p.Attach(failing)
	_ = p.Attach(ok)

	p.OnConnectBlock(blockchain.ConnectEvent{Block: blockWithHash(hashByte(1), chain.ZeroHash, 1)})

	if len(failing.connects) != 0 {
		t.Fatalf("failing subscriber should not have recorded a connect")
	}
	if len(ok.connects) != 1 {
		t.Fatalf("healthy subscriber should still receive the event, got %+v", ok.connects)
	}
}
