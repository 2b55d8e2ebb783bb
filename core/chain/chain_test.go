package chain

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
)

func sampleHeader() BlockHeader {
	var prev, graffiti, noteRoot, nullRoot Hash
	prev[0] = 1
	graffiti[0] = 2
	noteRoot[0] = 3
	nullRoot[0] = 4
	return BlockHeader{
		Sequence:            42,
		PreviousBlockHash:   prev,
		NoteCommitment:      Commitment{Root: noteRoot, Size: 10},
		NullifierCommitment: Commitment{Root: nullRoot, Size: 3},
		Target:              uint256.NewInt(123456789),
		Randomness:          9876543210,
		Timestamp:           1700000000000,
		Graffiti:            graffiti,
		MinersFee:           big.NewInt(-2000000000),
		Work:                big.NewInt(5555),
	}
}

func sampleTransaction() Transaction {
	var nullifier, root, commitment, merkleHash, assetID Hash
	nullifier[0] = 9
	root[0] = 8
	commitment[0] = 7
	merkleHash[0] = 6
	assetID[0] = 5
	return Transaction{
		Version: 1,
		Spends: []Spend{{
			Nullifier:  nullifier,
			RootHash:   root,
			TreeSize:   4,
			Proof:      []byte{0xde, 0xad},
			Commitment: commitment,
		}},
		Notes: []Output{{
			MerkleHash: merkleHash,
			Ciphertext: []byte{0xbe, 0xef},
			Proof:      []byte{0xfa, 0xce},
		}},
		Mints: []Mint{{
			AssetID:  assetID,
			Value:    100,
			Creator:  []byte("creator"),
			Name:     "custom asset",
			Metadata: "{}",
			Nonce:    1,
		}},
		Burns:               []Burn{{AssetID: assetID, Value: 10}},
		Fee:                 big.NewInt(3),
		ExpirationSequence:  50,
		BindingSignature:    []byte("binding-signature-bytes"),
		PublicKeyRandomness: []byte("pk-randomness"),
	}
}

func TestHeaderSerializeRoundTrip(t *testing.T) {
	h := sampleHeader()
	b, err := h.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	got, err := DeserializeHeader(b)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if got.Sequence != h.Sequence || got.PreviousBlockHash != h.PreviousBlockHash {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, h)
	}
	if got.Target.Cmp(h.Target) != 0 {
		t.Fatalf("target mismatch: %v vs %v", got.Target, h.Target)
	}
	if got.MinersFee.Cmp(h.MinersFee) != 0 {
		t.Fatalf("minersFee mismatch: %v vs %v", got.MinersFee, h.MinersFee)
	}

	b2, err := h.Serialize()
	if err != nil {
		t.Fatalf("serialize2: %v", err)
	}
	if string(b) != string(b2) {
		t.Fatal("serialize is not deterministic")
	}
}

func TestHeaderHashStable(t *testing.T) {
	h := sampleHeader()
	h1, err := h.Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	b, err := h.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	got, err := DeserializeHeader(b)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	h2, err := got.Hash()
	if err != nil {
		t.Fatalf("hash2: %v", err)
	}
	if h1 != h2 {
		t.Fatal("hash(header) != hash(deserialize(serialize(header)))")
	}
}

func TestSignedBigIntRoundTripsNegativeAndPositive(t *testing.T) {
	h := sampleHeader()
	h.MinersFee = big.NewInt(-2_000_000_000_000)
	b, err := h.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	got, err := DeserializeHeader(b)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if got.MinersFee.Sign() >= 0 {
		t.Fatalf("sign lost in round trip: %v", got.MinersFee)
	}
	if got.MinersFee.Cmp(h.MinersFee) != 0 {
		t.Fatalf("got %v, want %v", got.MinersFee, h.MinersFee)
	}

	h.MinersFee = big.NewInt(2_000_000_000_000)
	b, err = h.Serialize()
	if err != nil {
		t.Fatalf("serialize positive: %v", err)
	}
	got, err = DeserializeHeader(b)
	if err != nil {
		t.Fatalf("deserialize positive: %v", err)
	}
	if got.MinersFee.Sign() <= 0 || got.MinersFee.Cmp(h.MinersFee) != 0 {
		t.Fatalf("got %v, want %v", got.MinersFee, h.MinersFee)
	}
}

func TestTransactionSerializeRoundTrip(t *testing.T) {
	tx := sampleTransaction()
	b, err := tx.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	got, err := DeserializeTransaction(b)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if len(got.Spends) != 1 || got.Spends[0].Nullifier != tx.Spends[0].Nullifier {
		t.Fatalf("spends mismatch: %+v", got.Spends)
	}
	if len(got.Notes) != 1 || got.Notes[0].MerkleHash != tx.Notes[0].MerkleHash {
		t.Fatalf("notes mismatch: %+v", got.Notes)
	}
	if len(got.Mints) != 1 || got.Mints[0].Name != tx.Mints[0].Name {
		t.Fatalf("mints mismatch: %+v", got.Mints)
	}
	if len(got.Burns) != 1 || got.Burns[0].Value != tx.Burns[0].Value {
		t.Fatalf("burns mismatch: %+v", got.Burns)
	}
	if got.Fee.Cmp(tx.Fee) != 0 {
		t.Fatalf("fee mismatch: %v vs %v", got.Fee, tx.Fee)
	}
	if string(got.BindingSignature) != string(tx.BindingSignature) {
		t.Fatal("binding signature lost in round trip")
	}
}

func TestTransactionHashExcludesBindingSignature(t *testing.T) {
	tx := sampleTransaction()
	h1, err := tx.Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	tampered := tx
	tampered.BindingSignature = []byte("a completely different signature")
	h2, err := tampered.Hash()
	if err != nil {
		t.Fatalf("hash2: %v", err)
	}
	if h1 != h2 {
		t.Fatal("transaction hash changed when only the binding signature changed")
	}

	tampered2 := tx
	tampered2.Fee = big.NewInt(tx.Fee.Int64() + 1)
	h3, err := tampered2.Hash()
	if err != nil {
		t.Fatalf("hash3: %v", err)
	}
	if h1 == h3 {
		t.Fatal("transaction hash did not change when fee changed")
	}
}

func TestTransactionHashDeterministicAcrossRoundTrip(t *testing.T) {
	tx := sampleTransaction()
	h1, err := tx.Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	b, err := tx.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	got, err := DeserializeTransaction(b)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	h2, err := got.Hash()
	if err != nil {
		t.Fatalf("hash2: %v", err)
	}
	if h1 != h2 {
		t.Fatal("hash(tx) != hash(deserialize(serialize(tx)))")
	}
}

func TestBlockSerializeRoundTripAndHash(t *testing.T) {
	block := Block{
		Header:       sampleHeader(),
		Transactions: []Transaction{sampleTransaction(), sampleTransaction()},
	}
	b, err := block.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	got, err := DeserializeBlock(b)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if len(got.Transactions) != 2 {
		t.Fatalf("got %d transactions, want 2", len(got.Transactions))
	}
	h1, err := block.Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h2, err := got.Hash()
	if err != nil {
		t.Fatalf("hash2: %v", err)
	}
	if h1 != h2 {
		t.Fatal("block hash changed across round trip")
	}
}

func TestIsMinersFeeAndIsGenesis(t *testing.T) {
	h := sampleHeader()
	h.Sequence = 1
	if !h.IsGenesis() {
		t.Fatal("sequence 1 should be genesis")
	}
	h.Sequence = 2
	if h.IsGenesis() {
		t.Fatal("sequence 2 should not be genesis")
	}

	var noteHash Hash
	noteHash[0] = 0xaa
	fee := Transaction{Fee: big.NewInt(-100), Notes: []Output{{MerkleHash: noteHash}}}
	if !fee.IsMinersFee() {
		t.Fatal("expected miner's fee transaction to be recognized")
	}

	ordinary := sampleTransaction()
	if ordinary.IsMinersFee() {
		t.Fatal("ordinary transaction misclassified as miner's fee")
	}
}

func TestWorkIsMonotoneInInverseTarget(t *testing.T) {
	small := uint256.NewInt(100)
	large := uint256.NewInt(1_000_000)
	workSmallTarget := Work(small)
	workLargeTarget := Work(large)
	if workSmallTarget.Cmp(workLargeTarget) <= 0 {
		t.Fatal("a smaller target must imply more work")
	}
}
