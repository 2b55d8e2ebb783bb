package fishhash

import "testing"

func TestResolverDisabledAlwaysSHA256(t *testing.T) {
	r := NewResolver(0)
	for _, seq := range []uint32{0, 1, 1000, 1 << 20} {
		if r.For(seq).Name() != SHA256.Name() {
			t.Fatalf("sequence %d: got %s, want sha256", seq, r.For(seq).Name())
		}
	}
}

func TestResolverActivatesAtSequence(t *testing.T) {
	r := NewResolver(100)
	if r.For(99).Name() != SHA256.Name() {
		t.Fatalf("sequence 99 should still be sha256, got %s", r.For(99).Name())
	}
	if r.For(100).Name() != Blake3.Name() {
		t.Fatalf("sequence 100 should be blake3, got %s", r.For(100).Name())
	}
	if r.For(101).Name() != Blake3.Name() {
		t.Fatalf("sequence 101 should be blake3, got %s", r.For(101).Name())
	}
}

func TestStrategiesProduceDistinctHashes(t *testing.T) {
	data := []byte("header bytes")
	if SHA256.HashHeader(data) == Blake3.HashHeader(data) {
		t.Fatal("sha256 and blake3 strategies collided on the same input")
	}
}
