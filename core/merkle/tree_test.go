package merkle

import (
	"crypto/sha256"
	"testing"

	"ironfish/core/kv"
)

func openTestTree(t *testing.T) (*Tree, *kv.Database) {
	t.Helper()
	db, err := kv.Open(kv.Options{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db, 0x10, 0x11, DefaultCombine), db
}

func leafHash(s string) Hash { return sha256.Sum256([]byte(s)) }

func TestAddAndRootDeterministic(t *testing.T) {
	tree, db := openTestTree(t)
	leaves := []string{"a", "b", "c", "d", "e"}

	var lastSize uint32
	err := db.Transaction(func(tx *kv.Txn) error {
		for _, l := range leaves {
			sz, err := tree.Add(tx, leafHash(l))
			if err != nil {
				return err
			}
			lastSize = sz
		}
		return nil
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if lastSize != uint32(len(leaves)) {
		t.Fatalf("size = %d, want %d", lastSize, len(leaves))
	}

	root1, err := tree.RootHash(nil, nil)
	if err != nil {
		t.Fatalf("root: %v", err)
	}

	// Rebuild an identical tree from scratch; roots for the same size and
	// leaves must match (§4.2 determinism).
	tree2, db2 := openTestTree(t)
	err = db2.Transaction(func(tx *kv.Txn) error {
		for _, l := range leaves {
			if _, err := tree2.Add(tx, leafHash(l)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("add2: %v", err)
	}
	root2, err := tree2.RootHash(nil, nil)
	if err != nil {
		t.Fatalf("root2: %v", err)
	}
	if root1 != root2 {
		t.Fatalf("roots diverged for identical insertion order")
	}
}

func TestWitnessRoundTrip(t *testing.T) {
	tree, db := openTestTree(t)
	leaves := []string{"a", "b", "c", "d", "e", "f", "g"}
	hashes := make([]Hash, len(leaves))
	for i, l := range leaves {
		hashes[i] = leafHash(l)
	}

	err := db.Transaction(func(tx *kv.Txn) error {
		for _, h := range hashes {
			if _, err := tree.Add(tx, h); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	for i := range hashes {
		w, err := tree.Witness(nil, uint32(i), nil)
		if err != nil {
			t.Fatalf("witness(%d): %v", i, err)
		}
		if len(w.AuthPath) != TreeDepth {
			t.Fatalf("auth path length = %d, want %d", len(w.AuthPath), TreeDepth)
		}
		if !Verify(DefaultCombine, hashes[i], w) {
			t.Fatalf("verify failed for leaf %d", i)
		}
	}
}

func TestTruncateRestoresPriorState(t *testing.T) {
	tree, db := openTestTree(t)
	leaves := []string{"a", "b", "c"}

	var rootAfterTwo Hash
	err := db.Transaction(func(tx *kv.Txn) error {
		for i, l := range leaves {
			if _, err := tree.Add(tx, leafHash(l)); err != nil {
				return err
			}
			if i == 1 {
				two := uint32(2)
				r, err := tree.RootHash(tx, &two)
				if err != nil {
					return err
				}
				rootAfterTwo = r
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := db.Transaction(func(tx *kv.Txn) error { return tree.Truncate(tx, 2) }); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	size, err := tree.Size(nil)
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if size != 2 {
		t.Fatalf("size after truncate = %d, want 2", size)
	}
	root, err := tree.RootHash(nil, nil)
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	if root != rootAfterTwo {
		t.Fatalf("root after truncate does not match historical root at size 2")
	}
}

func TestVerifyRejectsWrongLeaf(t *testing.T) {
	tree, db := openTestTree(t)
	err := db.Transaction(func(tx *kv.Txn) error {
		_, err := tree.Add(tx, leafHash("a"))
		return err
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	w, err := tree.Witness(nil, 0, nil)
	if err != nil {
		t.Fatalf("witness: %v", err)
	}
	if Verify(DefaultCombine, leafHash("not-a"), w) {
		t.Fatal("verify accepted a mismatched leaf")
	}
}
