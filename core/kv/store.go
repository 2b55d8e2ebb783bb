// Package kv provides typed, ordered, transactional persistence for every
// other core component, backed by badger. Stores are declared with a
// (name, keyCodec, valueCodec) the way ledger.go declared its in-memory
// maps, but keys are real badger keys prefixed by a short store tag so
// many logical stores share one physical database.
package kv

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"ironfish/core/chainerrors"
)

// Database owns the on-disk badger engine, a monotonically increasing
// schema version, and every Store declared against it.
type Database struct {
	bdb    *badger.DB
	logger *logrus.Logger
	path   string
}

// Options configures Open.
type Options struct {
	Path      string
	InMemory  bool
	Logger    *logrus.Logger
	ValueLogSize int64
}

// Open creates or opens the on-disk database at opts.Path. A nil logger
// falls back to logrus.New(), matching the common constructor habit
// across this codebase.
func Open(opts Options) (*Database, error) {
	lg := opts.Logger
	if lg == nil {
		lg = logrus.New()
	}
	bopts := badger.DefaultOptions(opts.Path)
	bopts = bopts.WithLogger(badgerLogAdapter{lg})
	if opts.InMemory {
		bopts = bopts.WithInMemory(true)
	}
	if opts.ValueLogSize > 0 {
		bopts = bopts.WithValueLogFileSize(opts.ValueLogSize)
	}
	bdb, err := badger.Open(bopts)
	if err != nil {
		return nil, chainerrors.NewStorage("open", err)
	}
	lg.WithField("path", opts.Path).Info("kv: database opened")
	return &Database{bdb: bdb, logger: lg, path: opts.Path}, nil
}

// Close flushes and releases the underlying badger files.
func (d *Database) Close() error {
	if err := d.bdb.Close(); err != nil {
		return chainerrors.NewStorage("close", err)
	}
	return nil
}

// Store is a typed, ordered table within the database, identified by a
// short prefix so range scans over one store never see another store's
// keys.
type Store[K any, V any] struct {
	db       *Database
	name     string
	prefix   []byte
	keyCodec KeyCodec[K]
	valCodec ValueCodec[V]
}

// NewStore declares a store. prefix must be unique within the database; it
// is prepended to every encoded key.
func NewStore[K any, V any](db *Database, name string, prefix byte, kc KeyCodec[K], vc ValueCodec[V]) *Store[K, V] {
	return &Store[K, V]{db: db, name: name, prefix: []byte{prefix}, keyCodec: kc, valCodec: vc}
}

func (s *Store[K, V]) fullKey(k K) []byte {
	enc := s.keyCodec.EncodeKey(k)
	out := make([]byte, 0, len(s.prefix)+len(enc))
	out = append(out, s.prefix...)
	out = append(out, enc...)
	return out
}

// Txn is a transactional scope shared by every store declared against the
// same Database. Writes made through a Txn are invisible to concurrent
// readers until Commit succeeds; Abort restores prior state atomically
// (badger discards the pending writeset).
type Txn struct {
	btxn *badger.Txn
	db   *Database
}

// Transaction opens a read-write transaction and runs fn. If fn returns a
// non-nil error, or commit fails, all writes are discarded and the error is
// returned as-is (validation errors) or wrapped as chainerrors.StorageError
// (commit failures).
func (d *Database) Transaction(fn func(*Txn) error) error {
	txn := d.bdb.NewTransaction(true)
	defer txn.Discard()
	scope := &Txn{btxn: txn, db: d}
	if err := fn(scope); err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		return chainerrors.NewStorage("commit", err)
	}
	return nil
}

// View opens a read-only transaction observing a consistent snapshot.
func (d *Database) View(fn func(*Txn) error) error {
	txn := d.bdb.NewTransaction(false)
	defer txn.Discard()
	return fn(&Txn{btxn: txn, db: d})
}

// Get looks up key within tx's snapshot (or a fresh read-only snapshot if
// tx is nil). Returns chainerrors.ErrNotFound if the key is absent.
func (s *Store[K, V]) Get(tx *Txn, key K) (V, error) {
	var zero V
	fk := s.fullKey(key)
	get := func(btxn *badger.Txn) (V, error) {
		item, err := btxn.Get(fk)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return zero, chainerrors.ErrNotFound
		}
		if err != nil {
			return zero, chainerrors.NewStorage("get", err)
		}
		var out V
		verr := item.Value(func(val []byte) error {
			decoded, derr := s.valCodec.DecodeValue(val)
			if derr != nil {
				return fmt.Errorf("%w: %v", chainerrors.ErrCorrupt, derr)
			}
			out = decoded
			return nil
		})
		if verr != nil {
			return zero, verr
		}
		return out, nil
	}
	if tx != nil {
		return get(tx.btxn)
	}
	var out V
	var outErr error
	_ = s.db.View(func(t *Txn) error {
		out, outErr = get(t.btxn)
		return nil
	})
	return out, outErr
}

// Put writes key/value within tx. tx must not be nil; all writes go through
// an explicit transaction per §4.1.
func (s *Store[K, V]) Put(tx *Txn, key K, value V) error {
	enc, err := s.valCodec.EncodeValue(value)
	if err != nil {
		return fmt.Errorf("%w: %v", chainerrors.ErrCorrupt, err)
	}
	if err := tx.btxn.Set(s.fullKey(key), enc); err != nil {
		return chainerrors.NewStorage("put", err)
	}
	return nil
}

// Delete removes key within tx. Deleting an absent key is a no-op.
func (s *Store[K, V]) Delete(tx *Txn, key K) error {
	if err := tx.btxn.Delete(s.fullKey(key)); err != nil {
		return chainerrors.NewStorage("delete", err)
	}
	return nil
}

// Has reports whether key exists, observing tx's snapshot if non-nil.
func (s *Store[K, V]) Has(tx *Txn, key K) (bool, error) {
	fk := s.fullKey(key)
	check := func(btxn *badger.Txn) (bool, error) {
		_, err := btxn.Get(fk)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}
		if err != nil {
			return false, chainerrors.NewStorage("has", err)
		}
		return true, nil
	}
	if tx != nil {
		return check(tx.btxn)
	}
	var ok bool
	var outErr error
	_ = s.db.View(func(t *Txn) error {
		ok, outErr = check(t.btxn)
		return nil
	})
	return ok, outErr
}

// Entry is one key/value pair yielded by Iterate.
type Entry[K any, V any] struct {
	Key   K
	Value V
}

// Iterate scans every key with the given logical key prefix (encoded via
// keyCodec against a partial key is the caller's responsibility — callers
// typically iterate the whole store by passing a zero-length rawPrefix, or a
// composite store's leading component encoded with that component's own
// key codec, e.g. Uint32BEKey{}.EncodeKey). Scanning stops and
// returns an error if visit returns one; returning kv.StopIteration ends the
// scan cleanly.
func (s *Store[K, V]) Iterate(tx *Txn, rawPrefix []byte, visit func(Entry[K, V]) error) error {
	fullPrefix := make([]byte, 0, len(s.prefix)+len(rawPrefix))
	fullPrefix = append(fullPrefix, s.prefix...)
	fullPrefix = append(fullPrefix, rawPrefix...)

	run := func(btxn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = fullPrefix
		it := btxn.NewIterator(opts)
		defer it.Close()
		for it.Seek(fullPrefix); it.ValidForPrefix(fullPrefix); it.Next() {
			item := it.Item()
			rawKey := item.KeyCopy(nil)[len(s.prefix):]
			key, err := s.keyCodec.DecodeKey(rawKey)
			if err != nil {
				return fmt.Errorf("%w: %v", chainerrors.ErrCorrupt, err)
			}
			var value V
			verr := item.Value(func(val []byte) error {
				decoded, derr := s.valCodec.DecodeValue(val)
				if derr != nil {
					return fmt.Errorf("%w: %v", chainerrors.ErrCorrupt, derr)
				}
				value = decoded
				return nil
			})
			if verr != nil {
				return verr
			}
			if err := visit(Entry[K, V]{Key: key, Value: value}); err != nil {
				if errors.Is(err, StopIteration) {
					return nil
				}
				return err
			}
		}
		return nil
	}
	if tx != nil {
		return run(tx.btxn)
	}
	return s.db.View(func(t *Txn) error { return run(t.btxn) })
}

// StopIteration is returned by an Iterate visitor to end the scan without
// propagating an error.
var StopIteration = errors.New("kv: stop iteration")

// Clear removes every key in the store matching rawPrefix (nil clears the
// whole store) within tx.
func (s *Store[K, V]) Clear(tx *Txn, rawPrefix []byte) error {
	var keys [][]byte
	if err := s.Iterate(tx, rawPrefix, func(e Entry[K, V]) error {
		keys = append(keys, s.fullKey(e.Key))
		return nil
	}); err != nil {
		return err
	}
	for _, k := range keys {
		if err := tx.btxn.Delete(k); err != nil {
			return chainerrors.NewStorage("clear", err)
		}
	}
	return nil
}

type badgerLogAdapter struct{ lg *logrus.Logger }

func (a badgerLogAdapter) Errorf(f string, args ...interface{})   { a.lg.Errorf(f, args...) }
func (a badgerLogAdapter) Warningf(f string, args ...interface{}) { a.lg.Warnf(f, args...) }
func (a badgerLogAdapter) Infof(f string, args ...interface{})    { a.lg.Debugf(f, args...) }
func (a badgerLogAdapter) Debugf(f string, args ...interface{})   { a.lg.Debugf(f, args...) }
