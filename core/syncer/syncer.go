package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ironfish/core/blockchain"
	"ironfish/core/chain"
)

type requestKind int

const (
	kindForward requestKind = iota
	kindBackward
)

type inFlightRequest struct {
	correlationID uuid.UUID
	peerID        string
	kind          requestKind
}

// Options configures a new Syncer.
type Options struct {
	MaxBlocksPerResponse int
	PollInterval         time.Duration
	Logger               *logrus.Logger
}

// Syncer drives engine's head toward the heaviest tip among registry's
// peers, one block batch at a time (§4.7).
type Syncer struct {
	engine   ChainEngine
	registry PeerRegistry
	transport Transport
	logger   *logrus.Logger

	maxBlocksPerResponse int
	pollInterval         time.Duration

	mu         sync.Mutex
	state      State
	activePeer Peer
	current    *inFlightRequest
	backwardBuffer []chain.Block

	blockRequestDone chan struct{}
	blockSyncDone    chan struct{}

	active bool
	quit   chan struct{}
}

// New constructs an Idle Syncer.
func New(engine ChainEngine, registry PeerRegistry, transport Transport, opts Options) *Syncer {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	maxBlocks := opts.MaxBlocksPerResponse
	if maxBlocks <= 0 {
		maxBlocks = 64
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = time.Second
	}
	return &Syncer{
		engine:               engine,
		registry:             registry,
		transport:            transport,
		logger:               logger,
		maxBlocksPerResponse: maxBlocks,
		pollInterval:         poll,
		state:                Idle,
		blockRequestDone:     make(chan struct{}),
		blockSyncDone:        make(chan struct{}),
	}
}

// State reports the syncer's current state.
func (s *Syncer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// BlockRequestPromise resolves when the currently in-flight request (if
// any) completes, matching §4.7's blockRequestPromise signal.
func (s *Syncer) BlockRequestPromise() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blockRequestDone
}

// BlockSyncPromise resolves after the next full connect cycle.
func (s *Syncer) BlockSyncPromise() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blockSyncDone
}

func (s *Syncer) completeBlockRequestLocked() {
	close(s.blockRequestDone)
	s.blockRequestDone = make(chan struct{})
}

func (s *Syncer) completeBlockSyncLocked() {
	close(s.blockSyncDone)
	s.blockSyncDone = make(chan struct{})
}

// Start launches the background polling loop, the way
// core/blockchain_synchronization.go's SyncManager.Start does.
func (s *Syncer) Start(ctx context.Context) {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.quit = make(chan struct{})
	s.mu.Unlock()

	go s.loop(ctx)
	s.logger.Info("syncer started")
}

// Stop halts the polling loop; any in-flight request is left to complete
// idempotently via Deliver (§4.7's "shutdown drains in-flight").
func (s *Syncer) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	close(s.quit)
	s.active = false
	s.mu.Unlock()
	s.logger.Info("syncer stopped")
}

func (s *Syncer) loop(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.quit:
			return
		case <-ticker.C:
			s.mu.Lock()
			canStart := s.state == Idle || s.state == Synced
			s.mu.Unlock()
			if canStart {
				if err := s.BeginSync(ctx); err != nil {
					s.logger.Warnf("syncer: %v", err)
				}
			}
		}
	}
}

// selectPeer picks the peer with the highest-sequence known tip.
func (s *Syncer) selectPeer() Peer {
	peers := s.registry.Peers()
	var best Peer
	var bestSeq uint32
	for _, p := range peers {
		_, seq := p.Tip()
		if best == nil || seq > bestSeq {
			best, bestSeq = p, seq
		}
	}
	return best
}

// BeginSync starts one RequestingFromHead cycle if the syncer is Idle or
// re-checking from Synced, against the best-known peer.
func (s *Syncer) BeginSync(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Idle && s.state != Synced {
		s.mu.Unlock()
		return nil
	}
	peer := s.selectPeer()
	if peer == nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	head, _, err := s.engine.Head()
	if err != nil {
		return err
	}

	id := uuid.New()
	s.mu.Lock()
	s.activePeer = peer
	s.state = RequestingFromHead
	s.current = &inFlightRequest{correlationID: id, peerID: peer.ID(), kind: kindForward}
	s.mu.Unlock()

	return s.transport.RequestBlocksForward(ctx, peer, id, head, s.maxBlocksPerResponse)
}

// Deliver feeds a response back into the syncer. Responses whose
// correlation ID doesn't match the currently tracked in-flight request for
// peerID are stale and ignored idempotently (§4.7).
func (s *Syncer) Deliver(peerID string, correlationID uuid.UUID, blocks []chain.Block, err error) {
	s.mu.Lock()
	if s.current == nil || s.current.correlationID != correlationID || s.current.peerID != peerID {
		s.mu.Unlock()
		return
	}
	req := *s.current
	s.current = nil
	s.completeBlockRequestLocked()
	s.mu.Unlock()

	if err != nil {
		s.registry.Demerit(peerID, classifyError(err))
		s.toIdle()
		return
	}
	if len(blocks) > s.maxBlocksPerResponse {
		s.registry.Demerit(peerID, InvalidResponse)
		s.toIdle()
		return
	}

	// Deliver carries no caller context; the original request's context
	// already completed by the time a response lands, so any further
	// requests chained from it start fresh.
	background := context.Background()
	switch req.kind {
	case kindForward:
		s.handleForwardBlocks(background, blocks)
	case kindBackward:
		s.handleBackwardBlocks(background, blocks)
	}
}

func classifyError(err error) ErrorKind {
	if se, ok := err.(*SyncError); ok {
		return se.Kind
	}
	return InvalidResponse
}

func (s *Syncer) handleForwardBlocks(ctx context.Context, blocks []chain.Block) {
	if len(blocks) == 0 {
		s.finishCycle()
		return
	}

	for i := range blocks {
		result, err := s.engine.AddBlock(blocks[i])
		if err != nil {
			s.logger.Warnf("syncer: addBlock error: %v", err)
			s.toIdle()
			return
		}
		switch result.Status {
		case blockchain.Added, blockchain.AlreadyAdded:
			continue
		case blockchain.AddedAsFork, blockchain.Orphan:
			s.beginSyncBackward(ctx, blocks[i])
			return
		case blockchain.Invalid:
			s.mu.Lock()
			peer := s.activePeer
			s.mu.Unlock()
			if peer != nil {
				s.registry.Demerit(peer.ID(), InvalidResponse)
			}
			s.toIdle()
			return
		}
	}

	s.requestMoreForward(ctx)
}

func (s *Syncer) beginSyncBackward(ctx context.Context, orphan chain.Block) {
	s.mu.Lock()
	s.state = SyncingBackward
	s.backwardBuffer = []chain.Block{orphan}
	peer := s.activePeer
	anchor := orphan.Header.PreviousBlockHash
	id := uuid.New()
	s.current = &inFlightRequest{correlationID: id, peerID: peer.ID(), kind: kindBackward}
	s.mu.Unlock()

	if err := s.transport.RequestBlocksBackward(ctx, peer, id, anchor, s.maxBlocksPerResponse); err != nil {
		s.logger.Warnf("syncer: request backward: %v", err)
		s.toIdle()
	}
}

func (s *Syncer) handleBackwardBlocks(ctx context.Context, blocks []chain.Block) {
	if len(blocks) == 0 {
		s.mu.Lock()
		peer := s.activePeer
		s.mu.Unlock()
		if peer != nil {
			s.registry.Demerit(peer.ID(), BlocksUnavailable)
		}
		s.toIdle()
		return
	}

	s.mu.Lock()
	s.backwardBuffer = append(s.backwardBuffer, blocks...)
	last := s.backwardBuffer[len(s.backwardBuffer)-1]
	peer := s.activePeer
	s.mu.Unlock()

	if last.Header.IsGenesis() {
		s.beginConnectForward(ctx)
		return
	}
	linked, err := s.engine.HasBlock(last.Header.PreviousBlockHash)
	if err != nil {
		s.toIdle()
		return
	}
	if linked {
		s.beginConnectForward(ctx)
		return
	}

	id := uuid.New()
	anchor := last.Header.PreviousBlockHash
	s.mu.Lock()
	s.current = &inFlightRequest{correlationID: id, peerID: peer.ID(), kind: kindBackward}
	s.mu.Unlock()
	if err := s.transport.RequestBlocksBackward(ctx, peer, id, anchor, s.maxBlocksPerResponse); err != nil {
		s.logger.Warnf("syncer: request backward: %v", err)
		s.toIdle()
	}
}

func (s *Syncer) beginConnectForward(ctx context.Context) {
	s.mu.Lock()
	s.state = ConnectingForward
	buffer := make([]chain.Block, len(s.backwardBuffer))
	copy(buffer, s.backwardBuffer)
	s.backwardBuffer = nil
	peer := s.activePeer
	s.mu.Unlock()

	// buffer was collected tip-first (orphan first, older ancestors
	// appended); connecting runs ancestor -> tip.
	for i, j := 0, len(buffer)-1; i < j; i, j = i+1, j-1 {
		buffer[i], buffer[j] = buffer[j], buffer[i]
	}

	for i := range buffer {
		result, err := s.engine.AddBlock(buffer[i])
		if err != nil || result.Status == blockchain.Invalid {
			if peer != nil {
				s.registry.Demerit(peer.ID(), InvalidResponse)
			}
			s.toIdle()
			return
		}
	}

	s.mu.Lock()
	s.completeBlockSyncLocked()
	s.mu.Unlock()

	s.requestMoreForward(ctx)
}

func (s *Syncer) requestMoreForward(ctx context.Context) {
	head, _, err := s.engine.Head()
	if err != nil {
		s.toIdle()
		return
	}

	s.mu.Lock()
	peer := s.activePeer
	s.state = RequestingFromHead
	id := uuid.New()
	s.current = &inFlightRequest{correlationID: id, peerID: peer.ID(), kind: kindForward}
	s.mu.Unlock()

	if err := s.transport.RequestBlocksForward(ctx, peer, id, head, s.maxBlocksPerResponse); err != nil {
		s.logger.Warnf("syncer: request forward: %v", err)
		s.toIdle()
	}
}

// finishCycle runs when a peer reports no more blocks beyond the current
// head: the syncer becomes Synced if it now matches the majority of known
// peer tips, or Idle otherwise (to retry against a different peer later).
func (s *Syncer) finishCycle() {
	s.mu.Lock()
	s.completeBlockSyncLocked()
	s.mu.Unlock()

	if s.isSyncedWithMajority() {
		s.mu.Lock()
		s.state = Synced
		s.activePeer = nil
		s.mu.Unlock()
		return
	}
	s.toIdle()
}

func (s *Syncer) isSyncedWithMajority() bool {
	head, ok, err := s.engine.Head()
	if err != nil || !ok {
		return false
	}
	peers := s.registry.Peers()
	if len(peers) == 0 {
		return true
	}
	matching := 0
	for _, p := range peers {
		tip, _ := p.Tip()
		if tip == head {
			matching++
		}
	}
	return matching*2 > len(peers)
}

func (s *Syncer) toIdle() {
	s.mu.Lock()
	s.state = Idle
	s.activePeer = nil
	s.current = nil
	s.backwardBuffer = nil
	s.mu.Unlock()
}
