// Package fishhash resolves the proof-of-work hash function for a given
// block sequence. Iron Fish activates a blake3-based hash ("FishHash") at a
// configured sequence; headers before that sequence hash with sha256. The
// strategy is selected once per header by sequence number, never by string
// comparison, the way core/consensus_difficulty.go keeps a single numeric
// knob (curDifficulty) instead of branching on a mode string.
package fishhash

import (
	"crypto/sha256"

	"lukechampine.com/blake3"
)

// Hash is a 32-byte proof-of-work digest.
type Hash = [32]byte

// Strategy computes the proof-of-work hash of a serialized header.
type Strategy interface {
	HashHeader(serializedHeader []byte) Hash
	Name() string
}

type sha256Strategy struct{}

func (sha256Strategy) HashHeader(b []byte) Hash { return sha256.Sum256(b) }
func (sha256Strategy) Name() string             { return "sha256" }

type blake3Strategy struct{}

func (blake3Strategy) HashHeader(b []byte) Hash { return blake3.Sum256(b) }
func (blake3Strategy) Name() string             { return "fishhash-blake3" }

// SHA256 is the original proof-of-work strategy.
var SHA256 Strategy = sha256Strategy{}

// Blake3 is the FishHash upgrade strategy.
var Blake3 Strategy = blake3Strategy{}

// Resolver picks the active strategy for a header sequence.
type Resolver struct {
	activationSequence uint32
}

// NewResolver builds a Resolver that activates Blake3 at and after
// activationSequence. activationSequence == 0 means the upgrade is
// disabled: every sequence hashes with sha256.
func NewResolver(activationSequence uint32) Resolver {
	return Resolver{activationSequence: activationSequence}
}

// For returns the strategy active at sequence.
func (r Resolver) For(sequence uint32) Strategy {
	if r.activationSequence != 0 && sequence >= r.activationSequence {
		return Blake3
	}
	return SHA256
}
