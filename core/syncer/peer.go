package syncer

import (
	"context"

	"github.com/google/uuid"

	"ironfish/core/chain"
)

// Peer identifies a connected node and its last-known tip. The network
// block-type tag of §4.7 (Gossip vs Syncing) lives at the transport
// layer, not here — it influences priority and logging, never validity.
type Peer interface {
	ID() string
	Tip() (hash chain.Hash, sequence uint32)
}

// Transport is the boundary to the P2P layer (§1 non-goal: this
// package never opens a socket). RequestBlocksForward/Backward issue a
// correlated request and return once the request has been sent; the
// response arrives later via Syncer.Deliver, the way an async peer
// connection would.
type Transport interface {
	RequestBlocksForward(ctx context.Context, peer Peer, correlationID uuid.UUID, from chain.Hash, maxBlocks int) error
	RequestBlocksBackward(ctx context.Context, peer Peer, correlationID uuid.UUID, from chain.Hash, maxBlocks int) error
}

// PeerRegistry supplies the set of currently connected peers and receives
// demerit signals for peers that misbehave.
type PeerRegistry interface {
	Peers() []Peer
	Demerit(peerID string, kind ErrorKind)
}
