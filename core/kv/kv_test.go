package kv

import (
	"context"
	"errors"
	"testing"

	"ironfish/core/chainerrors"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(Options{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStorePutGetRoundTrip(t *testing.T) {
	db := openTestDB(t)
	s := NewStore[[32]byte, []byte](db, "headers", 0x01, Hash32Key{}, RawValue{})

	var key [32]byte
	key[0] = 7
	want := []byte("header bytes")

	if err := db.Transaction(func(tx *Txn) error { return s.Put(tx, key, want) }); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.Get(nil, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	db := openTestDB(t)
	s := NewStore[[32]byte, []byte](db, "headers", 0x01, Hash32Key{}, RawValue{})
	var key [32]byte
	_, err := s.Get(nil, key)
	if !errors.Is(err, chainerrors.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestAbortedTransactionLeavesNoTrace(t *testing.T) {
	db := openTestDB(t)
	s := NewStore[[32]byte, []byte](db, "headers", 0x01, Hash32Key{}, RawValue{})
	var key [32]byte
	key[0] = 9

	err := db.Transaction(func(tx *Txn) error {
		if perr := s.Put(tx, key, []byte("v")); perr != nil {
			return perr
		}
		return errors.New("force abort")
	})
	if err == nil {
		t.Fatal("expected transaction error")
	}
	if _, gerr := s.Get(nil, key); !errors.Is(gerr, chainerrors.ErrNotFound) {
		t.Fatalf("aborted write became visible: %v", gerr)
	}
}

func TestIteratePrefix(t *testing.T) {
	db := openTestDB(t)
	type seqKey = Pair[uint32, [32]byte]
	codec := Composite2Key[uint32, [32]byte]{AWidth: 4, A: Uint32BEKey{}, B: Hash32Key{}}
	s := NewStore[seqKey, []byte](db, "bySequence", 0x02, codec, RawValue{})

	var h1, h2, h3 [32]byte
	h1[0], h2[0], h3[0] = 1, 2, 3

	err := db.Transaction(func(tx *Txn) error {
		if err := s.Put(tx, seqKey{A: 5, B: h1}, []byte("a")); err != nil {
			return err
		}
		if err := s.Put(tx, seqKey{A: 5, B: h2}, []byte("b")); err != nil {
			return err
		}
		return s.Put(tx, seqKey{A: 6, B: h3}, []byte("c"))
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	prefix := Uint32BEKey{}.EncodeKey(5)
	var seen int
	if err := s.Iterate(nil, prefix, func(e Entry[seqKey, []byte]) error {
		if e.Key.A != 5 {
			t.Fatalf("leaked key from other prefix: %+v", e.Key)
		}
		seen++
		return nil
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if seen != 2 {
		t.Fatalf("got %d entries at sequence 5, want 2", seen)
	}
}

type noopMigration struct {
	id   uint32
	kind DBKind
	ran  *bool
}

func (m noopMigration) ID() uint32        { return m.id }
func (m noopMigration) Database() DBKind  { return m.kind }
func (m noopMigration) Prepare(context.Context, *Database) error { return nil }
func (m noopMigration) Forward(_ context.Context, _ *Database, _ *Txn, _ bool, _ string) error {
	*m.ran = true
	return nil
}
func (m noopMigration) Backward(context.Context, *Database, *Txn, bool, string) error { return nil }

func TestMigrationRunnerAppliesOnceAndFiltersByKind(t *testing.T) {
	db := openTestDB(t)
	var blockchainRan, walletRan bool
	runner := NewRunner(DBKindBlockchain, nil,
		noopMigration{id: 1, kind: DBKindBlockchain, ran: &blockchainRan},
		noopMigration{id: 1, kind: DBKindWallet, ran: &walletRan},
	)
	if err := runner.Run(context.Background(), db); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !blockchainRan {
		t.Fatal("blockchain migration did not run")
	}
	if walletRan {
		t.Fatal("wallet migration ran against a blockchain-kind runner")
	}

	v, err := runner.CurrentVersion(db)
	if err != nil {
		t.Fatalf("current version: %v", err)
	}
	if v != 1 {
		t.Fatalf("version = %d, want 1", v)
	}

	blockchainRan = false
	if err := runner.Run(context.Background(), db); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if blockchainRan {
		t.Fatal("already-applied migration re-ran")
	}
}

// TestAllMigrationsStampsFreshBlockchainDatabase covers the registered
// migration list a real node runs at open time: AllMigrations() applied
// through a DBKindBlockchain runner must leave a fresh database at
// version 1 and never touch a wallet-kind database.
func TestAllMigrationsStampsFreshBlockchainDatabase(t *testing.T) {
	db := openTestDB(t)
	runner := NewRunner(DBKindBlockchain, nil, AllMigrations()...)
	if err := runner.Run(context.Background(), db); err != nil {
		t.Fatalf("run: %v", err)
	}
	v, err := runner.CurrentVersion(db)
	if err != nil {
		t.Fatalf("current version: %v", err)
	}
	if v != 1 {
		t.Fatalf("version after migration0001InitialSchema = %d, want 1", v)
	}

	walletDB := openTestDB(t)
	walletRunner := NewRunner(DBKindWallet, nil, AllMigrations()...)
	if err := walletRunner.Run(context.Background(), walletDB); err != nil {
		t.Fatalf("wallet run: %v", err)
	}
	wv, err := walletRunner.CurrentVersion(walletDB)
	if err != nil {
		t.Fatalf("wallet current version: %v", err)
	}
	if wv != 0 {
		t.Fatalf("wallet version = %d, want 0 (no wallet migrations registered)", wv)
	}
}
