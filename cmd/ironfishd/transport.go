package main

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ironfish/core/chain"
	"ironfish/core/syncer"
)

// noopPeerRegistry reports no connected peers. Peer discovery and
// connection management are a P2P transport's job, a named external
// collaborator per §1 non-goals; ironfishd wires a syncer.Syncer so
// the state machine is exercised, but never grows its own network stack.
type noopPeerRegistry struct{}

func (noopPeerRegistry) Peers() []syncer.Peer                        { return nil }
func (noopPeerRegistry) Demerit(peerID string, kind syncer.ErrorKind) {}

// loggingTransport logs what it would have sent, standing in for the real
// peer wire protocol.
type loggingTransport struct {
	logger *logrus.Logger
}

func (t *loggingTransport) RequestBlocksForward(ctx context.Context, peer syncer.Peer, correlationID uuid.UUID, from chain.Hash, maxBlocks int) error {
	t.logger.Debugf("would request up to %d blocks forward from %x (peer %s, correlation %s)", maxBlocks, from, peer.ID(), correlationID)
	return nil
}

func (t *loggingTransport) RequestBlocksBackward(ctx context.Context, peer syncer.Peer, correlationID uuid.UUID, from chain.Hash, maxBlocks int) error {
	t.logger.Debugf("would request up to %d blocks backward from %x (peer %s, correlation %s)", maxBlocks, from, peer.ID(), correlationID)
	return nil
}
