package blockchain

import "ironfish/core/chain"

// ConnectEvent is emitted when a block becomes part of the main chain.
type ConnectEvent struct {
	Block chain.Block
}

// DisconnectEvent is emitted when a block is removed from the main chain
// during a reorg.
type DisconnectEvent struct {
	Block chain.Block
}

// EventHandler receives connect/disconnect notifications. Handlers run
// synchronously on the engine's call stack with no re-entrancy into the
// engine (Design Note 9): a handler that needs to reject something does so
// out of band, never by calling back into addBlock.
type EventHandler interface {
	OnConnectBlock(ConnectEvent)
	OnDisconnectBlock(DisconnectEvent)
}

// Subscribe registers handler to receive future connect/disconnect events.
// It returns an unsubscribe function.
func (e *Engine) Subscribe(handler EventHandler) (unsubscribe func()) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	id := e.nextSubID
	e.nextSubID++
	e.subscribers[id] = handler
	return func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		delete(e.subscribers, id)
	}
}

func (e *Engine) emitConnect(block chain.Block) {
	e.subMu.Lock()
	handlers := make([]EventHandler, 0, len(e.subscribers))
	for _, h := range e.subscribers {
		handlers = append(handlers, h)
	}
	e.subMu.Unlock()
	for _, h := range handlers {
		h.OnConnectBlock(ConnectEvent{Block: block})
	}
}

func (e *Engine) emitDisconnect(block chain.Block) {
	e.subMu.Lock()
	handlers := make([]EventHandler, 0, len(e.subscribers))
	for _, h := range e.subscribers {
		handlers = append(handlers, h)
	}
	e.subMu.Unlock()
	for _, h := range handlers {
		h.OnDisconnectBlock(DisconnectEvent{Block: block})
	}
}
