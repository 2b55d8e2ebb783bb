// Package chain declares the canonical domain types named in §3 —
// headers, blocks, transactions, spends, outputs, mints, burns and assets —
// plus their byte-exact serialization and hashing. It follows
// core/common_structs.go's one-file-of-struct-declarations habit, scoped
// to a single coherent domain instead of a node/token catalog.
package chain

import (
	"math/big"

	"github.com/holiman/uint256"
)

// Hash is a 32-byte content hash: a block hash, transaction hash, note
// commitment, nullifier, or asset id.
type Hash = [32]byte

// ZeroHash is the all-zero sentinel used as the genesis header's
// previousBlockHash (§9 "Genesis bootstrap").
var ZeroHash Hash

// Commitment pairs a Merkle root with the tree size it was computed at,
// used for both the note and nullifier commitments in a header.
type Commitment struct {
	Root Hash
	Size uint32
}

// BlockHeader is the canonical block header of §3.
type BlockHeader struct {
	Sequence             uint32
	PreviousBlockHash    Hash
	NoteCommitment       Commitment
	NullifierCommitment  Commitment
	Target               *uint256.Int
	Randomness           uint64
	Timestamp            uint64 // unix millis
	Graffiti             Hash
	MinersFee            *big.Int // signed
	Work                 *big.Int
}

// IsGenesis reports whether h is positioned as the first header in the
// chain, per §3's "sequence == 1 iff header is genesis" invariant.
func (h *BlockHeader) IsGenesis() bool {
	return h.Sequence == 1
}

// Block is a header plus its ordered transactions. The first transaction
// is always the miner's fee transaction (§3).
type Block struct {
	Header       BlockHeader
	Transactions []Transaction
}

// Spend references a note being destroyed and the nullifier that prevents
// it from being spent twice.
type Spend struct {
	Nullifier  Hash
	RootHash   Hash
	TreeSize   uint32
	Proof      []byte
	Commitment Hash
}

// Output is an encrypted note being created; MerkleHash is the leaf
// inserted into the note tree.
type Output struct {
	MerkleHash Hash
	Ciphertext []byte
	Proof      []byte
}

// Mint creates new supply of an asset, or (if the asset already exists)
// increases its supply.
type Mint struct {
	AssetID             Hash
	Value               uint64
	Creator             []byte
	Name                string
	Metadata            string
	Nonce               byte
	Owner               []byte
	TransferOwnershipTo []byte // empty means no ownership transfer
}

// Burn destroys existing supply of an asset.
type Burn struct {
	AssetID Hash
	Value   uint64
}

// Transaction is the canonical transaction of §3.
type Transaction struct {
	Version              uint8
	Spends               []Spend
	Notes                []Output
	Mints                []Mint
	Burns                []Burn
	Fee                  *big.Int // signed
	ExpirationSequence   uint32
	BindingSignature     []byte
	PublicKeyRandomness  []byte
}

// IsMinersFee reports whether tx is the distinguished fee transaction of a
// block: negative fee, no spends, exactly one note (§4.3).
func (tx *Transaction) IsMinersFee() bool {
	return tx.Fee != nil && tx.Fee.Sign() < 0 && len(tx.Spends) == 0 && len(tx.Notes) == 1
}

// Asset is the registry record tracked outside of any single transaction.
type Asset struct {
	ID                      Hash
	Creator                 []byte
	Owner                   []byte
	Name                    string
	Metadata                string
	Nonce                   byte
	Supply                  uint64
	CreatedTransactionHash  Hash
	FirstBlockHash          Hash
	HasFirstBlock           bool
	FirstSequence           uint32
}

// Work computes 2**256 / (target+1), the monotone function of a block's
// PoW target used for fork choice (§3).
func Work(target *uint256.Int) *big.Int {
	tPlus1 := new(big.Int).Add(target.ToBig(), big.NewInt(1))
	numerator := new(big.Int).Lsh(big.NewInt(1), 256)
	return new(big.Int).Div(numerator, tPlus1)
}
