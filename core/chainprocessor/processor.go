// Package chainprocessor implements the reducer of spec component L8: it
// consumes the blockchain engine's connect/disconnect events and drives
// subscriber callbacks (wallet, indexers) in strict order, replaying the
// minimum-cost path from a reattaching subscriber's own persisted head up
// to the chain's current head. It generalizes
// core/chain_fork_manager.go's ancestor-walk fork bookkeeping into a
// standalone fan-out component, per Design Note 9's "message bus, no
// synchronous re-entrancy into the engine" guidance.
package chainprocessor

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ironfish/core/blockchain"
	"ironfish/core/chain"
)

// Subscriber receives ordered connect/disconnect callbacks. Implementations
// must be idempotent under replay: Attach may redeliver a connect the
// subscriber already applied if its persisted head lags the event it most
// recently saw.
type Subscriber interface {
	ID() string
	// Head returns the subscriber's own persisted head hash, and false if
	// it has never processed a block.
	Head() (chain.Hash, bool)
	OnConnect(block chain.Block) error
	OnDisconnect(block chain.Block) error
}

// Engine is the subset of *blockchain.Engine the processor needs.
type Engine interface {
	Head() (chain.Hash, bool, error)
	GetBlock(hash chain.Hash) (chain.Block, bool, error)
	ComputeSyncPath(fromHash chain.Hash) (disconnectPath, connectPath []chain.Hash, err error)
}

var _ Engine = (*blockchain.Engine)(nil)

// Options configures a new Processor.
type Options struct {
	// DeliveryTimeout bounds each subscriber callback; zero disables the
	// bound (not recommended outside tests).
	DeliveryTimeout time.Duration
	Logger          *logrus.Logger
}

// Processor fans engine events out to subscribers, synchronously and in
// order (§5: subscriber callbacks are a suspension point of the single
// logical sequencer, not a separate one). Callbacks run on the caller's
// goroutine; with DeliveryTimeout set, each runs on its own goroutine and
// the caller waits for it up to the timeout.
type Processor struct {
	engine  Engine
	logger  *logrus.Logger
	timeout time.Duration

	mu          sync.Mutex
	subscribers map[string]Subscriber
}

// New constructs a Processor bound to engine.
func New(engine Engine, opts Options) *Processor {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Processor{
		engine:      engine,
		logger:      logger,
		timeout:     opts.DeliveryTimeout,
		subscribers: make(map[string]Subscriber),
	}
}

// Attach registers sub and replays every connect/disconnect it missed
// between its own persisted head and the engine's current head before
// returning. sub is registered before the replay starts, so live events
// delivered via OnConnectBlock/OnDisconnectBlock while the replay runs
// also reach it.
func (p *Processor) Attach(sub Subscriber) error {
	head, hasHead := sub.Head()

	p.mu.Lock()
	p.subscribers[sub.ID()] = sub
	p.mu.Unlock()

	if !hasHead {
		head = chain.ZeroHash
	}

	disconnect, connect, err := p.engine.ComputeSyncPath(head)
	if err != nil {
		return err
	}

	for _, h := range disconnect {
		if err := p.replay(sub, h, false); err != nil {
			return err
		}
	}
	for _, h := range connect {
		if err := p.replay(sub, h, true); err != nil {
			return err
		}
	}
	return nil
}

// Detach unregisters a subscriber; it stops receiving further events.
func (p *Processor) Detach(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.subscribers, id)
}

func (p *Processor) replay(sub Subscriber, hash chain.Hash, connect bool) error {
	block, found, err := p.engine.GetBlock(hash)
	if err != nil {
		return err
	}
	if !found {
		// The engine stores no block under this hash (fork blocks keep
		// their bodies too, so only an unknown hash lands here); nothing
		// to deliver.
		return nil
	}
	return p.deliver(sub, block, connect)
}

// OnConnectBlock implements blockchain.EventHandler.
func (p *Processor) OnConnectBlock(ev blockchain.ConnectEvent) {
	p.broadcast(ev.Block, true)
}

// OnDisconnectBlock implements blockchain.EventHandler.
func (p *Processor) OnDisconnectBlock(ev blockchain.DisconnectEvent) {
	p.broadcast(ev.Block, false)
}

var _ blockchain.EventHandler = (*Processor)(nil)

func (p *Processor) broadcast(block chain.Block, connect bool) {
	p.mu.Lock()
	subs := make([]Subscriber, 0, len(p.subscribers))
	for _, s := range p.subscribers {
		subs = append(subs, s)
	}
	p.mu.Unlock()

	for _, sub := range subs {
		if err := p.deliver(sub, block, connect); err != nil {
			p.logger.Warnf("chainprocessor: subscriber %s delivery failed: %v", sub.ID(), err)
		}
	}
}

// deliver runs one callback synchronously, bounded by timeout (§5:
// "emission is synchronous; subscribers run on the engine's executor with
// a timeout").
func (p *Processor) deliver(sub Subscriber, block chain.Block, connect bool) error {
	if p.timeout <= 0 {
		if connect {
			return sub.OnConnect(block)
		}
		return sub.OnDisconnect(block)
	}

	done := make(chan error, 1)
	go func() {
		if connect {
			done <- sub.OnConnect(block)
		} else {
			done <- sub.OnDisconnect(block)
		}
	}()
	select {
	case err := <-done:
		return err
	case <-time.After(p.timeout):
		return fmt.Errorf("chainprocessor: subscriber %s timed out", sub.ID())
	}
}
