// Package merkle implements the append-only, fixed-height binary
// commitment trees used for notes and nullifiers. Only leaves are
// persisted; roots and witnesses are folded on demand with a caller-supplied
// combine function, the way core/merkle_tree_operations.go folds sibling
// pairs with sha256 — generalized here to an injectable combine function
// and a real height-bound sparse tree instead of a rebuild-the-whole-tree
// helper.
package merkle

import (
	"crypto/sha256"
	"errors"
	"sync"

	"ironfish/core/chainerrors"
	"ironfish/core/kv"
)

// TreeDepth is the fixed height H referenced throughout §4.2.
const TreeDepth = 32

// Hash is a 32-byte tree node or leaf digest.
type Hash = [32]byte

// CombineFunc folds two child hashes at a given depth (0 = leaf level) into
// their parent hash. Depth is included so a combine function may use
// domain separation per level.
type CombineFunc func(depth uint8, left, right Hash) Hash

// DefaultCombine is the sha256-based combine function used when callers do
// not need a circuit-specific hash, grounded on merkle_tree_operations.go's
// sha256 folding.
func DefaultCombine(depth uint8, left, right Hash) Hash {
	buf := make([]byte, 1+len(left)+len(right))
	buf[0] = depth
	copy(buf[1:], left[:])
	copy(buf[1+len(left):], right[:])
	return sha256.Sum256(buf)
}

// Side identifies which side of a parent node a sibling hash sits on.
type Side uint8

const (
	SideRight Side = iota // sibling is to the right of the path node
	SideLeft
)

// AuthStep is one level of a Merkle authentication path.
type AuthStep struct {
	Side    Side
	Sibling Hash
}

// Witness proves that a leaf was committed at a particular tree size.
type Witness struct {
	AuthPath []AuthStep
	RootHash Hash
	TreeSize uint32
}

// Tree is an append-only binary Merkle tree of height TreeDepth, backed by
// a kv.Store of leaves keyed by index plus a size counter. Internal nodes
// above the leaf level are never persisted; they are folded on demand,
// which keeps truncate (reorg) and historical-root queries trivially
// correct at the cost of an O(size) fold per call — acceptable at node
// scale and far simpler than maintaining the spine/sibling cache spec
// §4.2's design notes describe as an option, not a requirement.
type Tree struct {
	db      *kv.Database
	leaves  *kv.Store[uint32, Hash]
	meta    *kv.Store[string, uint32]
	combine CombineFunc
	zero    [TreeDepth + 1]Hash

	mu sync.RWMutex
}

type hashValueCodec struct{}

func (hashValueCodec) EncodeValue(h Hash) ([]byte, error) { return h[:], nil }
func (hashValueCodec) DecodeValue(b []byte) (Hash, error) {
	var h Hash
	if len(b) != 32 {
		return h, chainerrors.ErrCorrupt
	}
	copy(h[:], b)
	return h, nil
}

type uint32MetaCodec struct{}

func (uint32MetaCodec) EncodeValue(v uint32) ([]byte, error) {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}, nil
}
func (uint32MetaCodec) DecodeValue(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, chainerrors.ErrCorrupt
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

// New declares a tree's leaf and size stores against db under two adjacent
// store prefixes, and precomputes the per-depth zero hashes once.
func New(db *kv.Database, leavesPrefix, metaPrefix byte, combine CombineFunc) *Tree {
	if combine == nil {
		combine = DefaultCombine
	}
	t := &Tree{
		db:      db,
		leaves:  kv.NewStore[uint32, Hash](db, "merkle-leaves", leavesPrefix, kv.Uint32BEKey{}, hashValueCodec{}),
		meta:    kv.NewStore[string, uint32](db, "merkle-meta", metaPrefix, kv.StringKey{}, uint32MetaCodec{}),
		combine: combine,
	}
	t.zero[0] = Hash{}
	for d := 1; d <= TreeDepth; d++ {
		t.zero[d] = combine(uint8(d-1), t.zero[d-1], t.zero[d-1])
	}
	return t
}

// Size returns the current number of committed leaves.
func (t *Tree) Size(tx *kv.Txn) (uint32, error) {
	v, err := t.meta.Get(tx, "size")
	if errors.Is(err, chainerrors.ErrNotFound) {
		return 0, nil
	}
	return v, err
}

// Add appends leaf as the next committed node and returns the new size.
// Per §4.2, the previously-filled left subtrees are never touched —
// this holds here because rootHash(size) is a pure function of
// leaves[0:size] and the zero-padding scheme, independent of what comes
// after index size-1.
func (t *Tree) Add(tx *kv.Txn, leaf Hash) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	size, err := t.Size(tx)
	if err != nil {
		return 0, err
	}
	if err := t.leaves.Put(tx, size, leaf); err != nil {
		return 0, err
	}
	newSize := size + 1
	if err := t.meta.Put(tx, "size", newSize); err != nil {
		return 0, err
	}
	return newSize, nil
}

// Truncate drops leaves [size, current) restoring the exact pre-insert
// state used during reorg disconnects.
func (t *Tree) Truncate(tx *kv.Txn, size uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	current, err := t.Size(tx)
	if err != nil {
		return err
	}
	if size > current {
		return chainerrors.NewValidation(chainerrors.ReasonMalformed, "truncate size exceeds current size")
	}
	for i := size; i < current; i++ {
		if err := t.leaves.Delete(tx, i); err != nil {
			return err
		}
	}
	return t.meta.Put(tx, "size", size)
}

func (t *Tree) leavesUpTo(tx *kv.Txn, size uint32) ([]Hash, error) {
	out := make([]Hash, size)
	for i := uint32(0); i < size; i++ {
		h, err := t.leaves.Get(tx, i)
		if err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}

// RootHash returns the root at the given historical size, or the current
// size if size is nil.
func (t *Tree) RootHash(tx *kv.Txn, size *uint32) (Hash, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	sz, err := t.resolveSize(tx, size)
	if err != nil {
		return Hash{}, err
	}
	leaves, err := t.leavesUpTo(tx, sz)
	if err != nil {
		return Hash{}, err
	}
	root, _ := t.fold(leaves, 0)
	return root, nil
}

func (t *Tree) resolveSize(tx *kv.Txn, size *uint32) (uint32, error) {
	if size != nil {
		return *size, nil
	}
	return t.Size(tx)
}

// fold computes the root of leaves, and if trackIndex is within range,
// also returns the authentication path for that index. Pass trackIndex ==
// ^uint32(0) (no valid index) to skip path tracking.
func (t *Tree) fold(leaves []Hash, trackIndex uint32) (Hash, []AuthStep) {
	if len(leaves) == 0 {
		return t.zero[TreeDepth], nil
	}
	level := make([]Hash, len(leaves))
	copy(level, leaves)

	var path []AuthStep
	tracking := trackIndex < uint32(len(leaves))
	if tracking {
		path = make([]AuthStep, 0, TreeDepth)
	}
	idx := trackIndex

	for depth := uint8(0); depth < TreeDepth; depth++ {
		if tracking {
			var step AuthStep
			if idx%2 == 0 {
				step.Side = SideRight
				if int(idx)+1 < len(level) {
					step.Sibling = level[idx+1]
				} else {
					step.Sibling = t.zero[depth]
				}
			} else {
				step.Side = SideLeft
				step.Sibling = level[idx-1]
			}
			path = append(path, step)
		}

		next := make([]Hash, (len(level)+1)/2)
		for i := range next {
			left := level[2*i]
			var right Hash
			if 2*i+1 < len(level) {
				right = level[2*i+1]
			} else {
				right = t.zero[depth]
			}
			next[i] = t.combine(depth, left, right)
		}
		level = next
		idx /= 2
	}
	return level[0], path
}

// Witness produces an authentication path for the leaf at index, proving
// membership at the given historical tree size.
func (t *Tree) Witness(tx *kv.Txn, index uint32, size *uint32) (Witness, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	sz, err := t.resolveSize(tx, size)
	if err != nil {
		return Witness{}, err
	}
	if index >= sz {
		return Witness{}, chainerrors.NewValidation(chainerrors.ReasonMalformed, "witness index out of range")
	}
	leaves, err := t.leavesUpTo(tx, sz)
	if err != nil {
		return Witness{}, err
	}
	root, path := t.fold(leaves, index)
	return Witness{AuthPath: path, RootHash: root, TreeSize: sz}, nil
}

// Verify recomputes the root by folding leafHash with w's authentication
// path using combine, and reports whether it equals w.RootHash.
func Verify(combine CombineFunc, leafHash Hash, w Witness) bool {
	if combine == nil {
		combine = DefaultCombine
	}
	cur := leafHash
	for depth, step := range w.AuthPath {
		if step.Side == SideRight {
			cur = combine(uint8(depth), cur, step.Sibling)
		} else {
			cur = combine(uint8(depth), step.Sibling, cur)
		}
	}
	return cur == w.RootHash
}
