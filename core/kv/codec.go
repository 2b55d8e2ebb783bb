package kv

import (
	"encoding/binary"
	"fmt"
)

// KeyCodec encodes and decodes the logical key of a store into the
// lexicographically-ordered byte string badger actually sorts on. Composite
// keys encode each component in a fixed order so range scans over a leading
// component stay contiguous.
type KeyCodec[K any] interface {
	EncodeKey(K) []byte
	DecodeKey([]byte) (K, error)
}

// ValueCodec encodes and decodes the logical value of a store into a
// self-describing byte string.
type ValueCodec[V any] interface {
	EncodeValue(V) ([]byte, error)
	DecodeValue([]byte) (V, error)
}

// BytesKey is the identity codec for byte-string keys such as block and
// transaction hashes.
type BytesKey struct{}

func (BytesKey) EncodeKey(k []byte) []byte { return k }
func (BytesKey) DecodeKey(b []byte) ([]byte, error) {
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Hash32Key encodes a fixed 32-byte array, used for block hashes, asset ids,
// and nullifiers.
type Hash32Key struct{}

func (Hash32Key) EncodeKey(k [32]byte) []byte { return k[:] }
func (Hash32Key) DecodeKey(b []byte) ([32]byte, error) {
	var out [32]byte
	if len(b) != 32 {
		return out, fmt.Errorf("kv: expected 32-byte key, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

// Uint32BEKey encodes a uint32 big-endian so lexicographic byte order equals
// numeric order. Used for the sequence->hashes secondary index.
type Uint32BEKey struct{}

func (Uint32BEKey) EncodeKey(k uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, k)
	return b
}
func (Uint32BEKey) DecodeKey(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("kv: expected 4-byte key, got %d", len(b))
	}
	return binary.BigEndian.Uint32(b), nil
}

// StringKey encodes a plain UTF-8 string, used for the meta store's named
// scalars ("head", "latest", "genesis").
type StringKey struct{}

func (StringKey) EncodeKey(k string) []byte { return []byte(k) }
func (StringKey) DecodeKey(b []byte) (string, error) { return string(b), nil }

// Composite2Key concatenates a fixed-length first component with the second
// component's own encoding, so a prefix scan on A alone still returns a
// contiguous range. A must encode to a constant width.
type Composite2Key[A, B any] struct {
	AWidth int
	A      KeyCodec[A]
	B      KeyCodec[B]
}

type Pair[A, B any] struct {
	A A
	B B
}

func (c Composite2Key[A, B]) EncodeKey(k Pair[A, B]) []byte {
	ab := c.A.EncodeKey(k.A)
	if len(ab) != c.AWidth {
		panic(fmt.Sprintf("kv: composite key component width mismatch: got %d want %d", len(ab), c.AWidth))
	}
	bb := c.B.EncodeKey(k.B)
	out := make([]byte, 0, len(ab)+len(bb))
	out = append(out, ab...)
	out = append(out, bb...)
	return out
}

func (c Composite2Key[A, B]) DecodeKey(b []byte) (Pair[A, B], error) {
	var zero Pair[A, B]
	if len(b) < c.AWidth {
		return zero, fmt.Errorf("kv: composite key too short")
	}
	a, err := c.A.DecodeKey(b[:c.AWidth])
	if err != nil {
		return zero, err
	}
	bv, err := c.B.DecodeKey(b[c.AWidth:])
	if err != nil {
		return zero, err
	}
	return Pair[A, B]{A: a, B: bv}, nil
}

// RawValue stores the value bytes verbatim, for stores whose value codec
// lives one layer up (e.g. RLP-encoded chain types).
type RawValue struct{}

func (RawValue) EncodeValue(v []byte) ([]byte, error) { return v, nil }
func (RawValue) DecodeValue(b []byte) ([]byte, error) {
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// NullValue is the value codec for set-semantics secondary indexes: presence
// of the key is the fact, the value carries no information.
type NullValue struct{}

type Null struct{}

func (NullValue) EncodeValue(Null) ([]byte, error) { return []byte{}, nil }
func (NullValue) DecodeValue([]byte) (Null, error) { return Null{}, nil }
