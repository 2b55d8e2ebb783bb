// Package mempool implements pending-transaction acceptance, eviction and
// fee estimation (spec component L6). The lookup-map-plus-queue shape
// follows core/txpool_stub.go and core/txpool_addtx.go's TxPool, generalized
// from an unbounded append-only slice to a capacity-bounded, fee-ordered
// structure with nullifier and expiration secondary indexes.
package mempool

import "container/heap"

// PriorityQueue is a generic priority queue parameterized by a comparator
// and an identity function, giving O(log n) arbitrary removal by key on top
// of the usual O(log n) push/pop. Ties under less are broken by insertion
// order, so two equally-ranked pushes never reorder relative to each other.
type PriorityQueue[T any, K comparable] struct {
	h        *pqHeap[T, K]
	identity func(T) K
}

// NewPriorityQueue builds an empty queue ordered by less: less(a, b) true
// means a sorts before b, i.e. a pops first.
func NewPriorityQueue[T any, K comparable](less func(a, b T) bool, identity func(T) K) *PriorityQueue[T, K] {
	return &PriorityQueue[T, K]{
		h:        &pqHeap[T, K]{less: less, index: make(map[K]*pqItem[T, K])},
		identity: identity,
	}
}

func (q *PriorityQueue[T, K]) Len() int { return q.h.Len() }

// Push inserts v, replacing any existing entry with the same identity.
func (q *PriorityQueue[T, K]) Push(v T) {
	key := q.identity(v)
	if existing, ok := q.h.index[key]; ok {
		heap.Remove(q.h, existing.index)
		delete(q.h.index, key)
	}
	item := &pqItem[T, K]{value: v, key: key, seq: q.h.nextSeq}
	q.h.nextSeq++
	heap.Push(q.h, item)
	q.h.index[key] = item
}

// Pop removes and returns the front element.
func (q *PriorityQueue[T, K]) Pop() (T, bool) {
	if q.h.Len() == 0 {
		var zero T
		return zero, false
	}
	item := heap.Pop(q.h).(*pqItem[T, K])
	delete(q.h.index, item.key)
	return item.value, true
}

// Peek returns the front element without removing it.
func (q *PriorityQueue[T, K]) Peek() (T, bool) {
	if q.h.Len() == 0 {
		var zero T
		return zero, false
	}
	return q.h.items[0].value, true
}

// Remove deletes the element identified by key, if present.
func (q *PriorityQueue[T, K]) Remove(key K) (T, bool) {
	item, ok := q.h.index[key]
	if !ok {
		var zero T
		return zero, false
	}
	heap.Remove(q.h, item.index)
	delete(q.h.index, key)
	return item.value, true
}

func (q *PriorityQueue[T, K]) Contains(key K) bool {
	_, ok := q.h.index[key]
	return ok
}

type pqItem[T any, K comparable] struct {
	value T
	key   K
	seq   uint64
	index int
}

// pqHeap is the container/heap.Interface backing implementation; callers
// never touch it directly.
type pqHeap[T any, K comparable] struct {
	items   []*pqItem[T, K]
	index   map[K]*pqItem[T, K]
	less    func(a, b T) bool
	nextSeq uint64
}

func (h *pqHeap[T, K]) Len() int { return len(h.items) }

func (h *pqHeap[T, K]) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if h.less(a.value, b.value) {
		return true
	}
	if h.less(b.value, a.value) {
		return false
	}
	return a.seq < b.seq
}

func (h *pqHeap[T, K]) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

func (h *pqHeap[T, K]) Push(x any) {
	item := x.(*pqItem[T, K])
	item.index = len(h.items)
	h.items = append(h.items, item)
}

func (h *pqHeap[T, K]) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	return item
}
