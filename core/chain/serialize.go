package chain

import (
	"crypto/sha256"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"ironfish/core/chainerrors"
)

// SignedBigInt wraps a possibly-negative *big.Int so it can be carried
// through go-ethereum's rlp codec, which only knows how to encode
// non-negative integers natively. Fee and MinersFee are signed per §3.
type SignedBigInt struct {
	*big.Int
}

type signedBigIntWire struct {
	Neg bool
	Mag *big.Int
}

// EncodeRLP implements rlp.Encoder.
func (s SignedBigInt) EncodeRLP(w io.Writer) error {
	v := s.Int
	if v == nil {
		v = big.NewInt(0)
	}
	return rlp.Encode(w, signedBigIntWire{Neg: v.Sign() < 0, Mag: new(big.Int).Abs(v)})
}

// DecodeRLP implements rlp.Decoder.
func (s *SignedBigInt) DecodeRLP(stream *rlp.Stream) error {
	var wire signedBigIntWire
	if err := stream.Decode(&wire); err != nil {
		return err
	}
	v := new(big.Int).Set(wire.Mag)
	if wire.Neg {
		v.Neg(v)
	}
	s.Int = v
	return nil
}

// rlpHeader mirrors BlockHeader's fields with wire-safe types.
type rlpHeader struct {
	Sequence            uint32
	PreviousBlockHash   Hash
	NoteCommitmentRoot  Hash
	NoteCommitmentSize  uint32
	NullCommitmentRoot  Hash
	NullCommitmentSize  uint32
	Target              []byte
	Randomness          uint64
	Timestamp           uint64
	Graffiti            Hash
	MinersFee           SignedBigInt
	Work                *big.Int
}

func (h *BlockHeader) toWire() rlpHeader {
	target := h.Target
	if target == nil {
		target = new(uint256.Int)
	}
	work := h.Work
	if work == nil {
		work = big.NewInt(0)
	}
	return rlpHeader{
		Sequence:           h.Sequence,
		PreviousBlockHash:  h.PreviousBlockHash,
		NoteCommitmentRoot: h.NoteCommitment.Root,
		NoteCommitmentSize: h.NoteCommitment.Size,
		NullCommitmentRoot: h.NullifierCommitment.Root,
		NullCommitmentSize: h.NullifierCommitment.Size,
		Target:             target.Bytes(),
		Randomness:         h.Randomness,
		Timestamp:          h.Timestamp,
		Graffiti:           h.Graffiti,
		MinersFee:          SignedBigInt{h.MinersFee},
		Work:               work,
	}
}

func (w rlpHeader) toHeader() BlockHeader {
	return BlockHeader{
		Sequence:            w.Sequence,
		PreviousBlockHash:   w.PreviousBlockHash,
		NoteCommitment:      Commitment{Root: w.NoteCommitmentRoot, Size: w.NoteCommitmentSize},
		NullifierCommitment: Commitment{Root: w.NullCommitmentRoot, Size: w.NullCommitmentSize},
		Target:              new(uint256.Int).SetBytes(w.Target),
		Randomness:          w.Randomness,
		Timestamp:           w.Timestamp,
		Graffiti:            w.Graffiti,
		MinersFee:           w.MinersFee.Int,
		Work:                w.Work,
	}
}

// Serialize produces the canonical byte-exact encoding of a header.
func (h *BlockHeader) Serialize() ([]byte, error) {
	b, err := rlp.EncodeToBytes(h.toWire())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chainerrors.ErrCorrupt, err)
	}
	return b, nil
}

// DeserializeHeader is total over valid input; malformed input yields a
// wrapped chainerrors.ErrCorrupt.
func DeserializeHeader(b []byte) (BlockHeader, error) {
	var w rlpHeader
	if err := rlp.DecodeBytes(b, &w); err != nil {
		return BlockHeader{}, fmt.Errorf("%w: %v", chainerrors.ErrCorrupt, err)
	}
	return w.toHeader(), nil
}

// Hash returns the block hash: H(serializedHeader).
func (h *BlockHeader) Hash() (Hash, error) {
	b, err := h.Serialize()
	if err != nil {
		return Hash{}, err
	}
	return sha256.Sum256(b), nil
}

// rlpTransactionFull mirrors Transaction including the binding signature,
// for wire/storage serialization.
type rlpTransactionFull struct {
	Version              uint8
	Spends               []Spend
	Notes                []Output
	Mints                []Mint
	Burns                []Burn
	Fee                  SignedBigInt
	ExpirationSequence   uint32
	PublicKeyRandomness  []byte
	BindingSignature     []byte
}

// rlpTransactionUnsigned mirrors Transaction without the binding signature,
// used to compute transactionHash per §4.3.
type rlpTransactionUnsigned struct {
	Version              uint8
	Spends               []Spend
	Notes                []Output
	Mints                []Mint
	Burns                []Burn
	Fee                  SignedBigInt
	ExpirationSequence   uint32
	PublicKeyRandomness  []byte
}

func (tx *Transaction) toWireFull() rlpTransactionFull {
	fee := tx.Fee
	if fee == nil {
		fee = big.NewInt(0)
	}
	return rlpTransactionFull{
		Version:             tx.Version,
		Spends:              nonNilSpends(tx.Spends),
		Notes:               nonNilOutputs(tx.Notes),
		Mints:               nonNilMints(tx.Mints),
		Burns:               nonNilBurns(tx.Burns),
		Fee:                 SignedBigInt{fee},
		ExpirationSequence:  tx.ExpirationSequence,
		PublicKeyRandomness: tx.PublicKeyRandomness,
		BindingSignature:    tx.BindingSignature,
	}
}

func (tx *Transaction) toWireUnsigned() rlpTransactionUnsigned {
	full := tx.toWireFull()
	return rlpTransactionUnsigned{
		Version:             full.Version,
		Spends:              full.Spends,
		Notes:               full.Notes,
		Mints:               full.Mints,
		Burns:               full.Burns,
		Fee:                 full.Fee,
		ExpirationSequence:  full.ExpirationSequence,
		PublicKeyRandomness: full.PublicKeyRandomness,
	}
}

// rlp does not encode a nil slice the same way it encodes an empty one in
// every decoder, so normalize to empty slices before encoding.
func nonNilSpends(s []Spend) []Spend {
	if s == nil {
		return []Spend{}
	}
	return s
}
func nonNilOutputs(s []Output) []Output {
	if s == nil {
		return []Output{}
	}
	return s
}
func nonNilMints(s []Mint) []Mint {
	if s == nil {
		return []Mint{}
	}
	return s
}
func nonNilBurns(s []Burn) []Burn {
	if s == nil {
		return []Burn{}
	}
	return s
}

// Serialize produces the canonical byte-exact encoding of a transaction,
// including its binding signature.
func (tx *Transaction) Serialize() ([]byte, error) {
	b, err := rlp.EncodeToBytes(tx.toWireFull())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chainerrors.ErrCorrupt, err)
	}
	return b, nil
}

// DeserializeTransaction is total over valid input.
func DeserializeTransaction(b []byte) (Transaction, error) {
	var w rlpTransactionFull
	if err := rlp.DecodeBytes(b, &w); err != nil {
		return Transaction{}, fmt.Errorf("%w: %v", chainerrors.ErrCorrupt, err)
	}
	return Transaction{
		Version:             w.Version,
		Spends:              w.Spends,
		Notes:               w.Notes,
		Mints:               w.Mints,
		Burns:               w.Burns,
		Fee:                 w.Fee.Int,
		ExpirationSequence:  w.ExpirationSequence,
		BindingSignature:    w.BindingSignature,
		PublicKeyRandomness: w.PublicKeyRandomness,
	}, nil
}

// Hash returns H(serializedTransaction without bindingSignature), per
// §4.3. UnsignedHash is the same value, named separately because both a
// hash and a signing variant over identical bytes are called out.
func (tx *Transaction) Hash() (Hash, error) {
	b, err := rlp.EncodeToBytes(tx.toWireUnsigned())
	if err != nil {
		return Hash{}, fmt.Errorf("%w: %v", chainerrors.ErrCorrupt, err)
	}
	return sha256.Sum256(b), nil
}

// UnsignedHash is an alias of Hash kept for callers that sign before a
// binding signature exists.
func (tx *Transaction) UnsignedHash() (Hash, error) { return tx.Hash() }

// rlpBlock mirrors Block for wire serialization.
type rlpBlock struct {
	Header       rlpHeader
	Transactions []rlpTransactionFull
}

// Serialize produces the canonical byte-exact encoding of a full block.
func (b *Block) Serialize() ([]byte, error) {
	txs := make([]rlpTransactionFull, len(b.Transactions))
	for i := range b.Transactions {
		txs[i] = b.Transactions[i].toWireFull()
	}
	enc, err := rlp.EncodeToBytes(rlpBlock{Header: b.Header.toWire(), Transactions: txs})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chainerrors.ErrCorrupt, err)
	}
	return enc, nil
}

// DeserializeBlock is total over valid input.
func DeserializeBlock(raw []byte) (Block, error) {
	var w rlpBlock
	if err := rlp.DecodeBytes(raw, &w); err != nil {
		return Block{}, fmt.Errorf("%w: %v", chainerrors.ErrCorrupt, err)
	}
	txs := make([]Transaction, len(w.Transactions))
	for i, wt := range w.Transactions {
		txs[i] = Transaction{
			Version:             wt.Version,
			Spends:              wt.Spends,
			Notes:               wt.Notes,
			Mints:               wt.Mints,
			Burns:               wt.Burns,
			Fee:                 wt.Fee.Int,
			ExpirationSequence:  wt.ExpirationSequence,
			BindingSignature:    wt.BindingSignature,
			PublicKeyRandomness: wt.PublicKeyRandomness,
		}
	}
	return Block{Header: w.Header.toHeader(), Transactions: txs}, nil
}

// Hash returns the block's hash, i.e. its header's hash.
func (b *Block) Hash() (Hash, error) { return b.Header.Hash() }
