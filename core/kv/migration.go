package kv

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"ironfish/core/chainerrors"
)

// DBKind names the logical database a migration affects, matching spec
// §4.1's "wallet" or "blockchain" distinction. This module only ever opens
// blockchain-kind databases, but migrations declare their kind so a shared
// runner can filter a mixed migration list the way the real node does.
type DBKind string

const (
	DBKindWallet     DBKind = "wallet"
	DBKindBlockchain DBKind = "blockchain"
)

// schemaVersionPrefix is reserved for the runner's own bookkeeping and must
// not collide with any domain store prefix declared by a caller package.
const schemaVersionPrefix byte = 0xFF

var versionStore = NewStore[string, uint32](nil, "__schema_version", schemaVersionPrefix, StringKey{}, uint32ValueCodec{})

type uint32ValueCodec struct{}

func (uint32ValueCodec) EncodeValue(v uint32) ([]byte, error) {
	b := make([]byte, 4)
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
	return b, nil
}
func (uint32ValueCodec) DecodeValue(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("kv: bad version value width %d", len(b))
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

// Migration is one forward/backward schema step. Prepare runs once before
// Forward/Backward and may open auxiliary resources; it receives the
// database so it can declare temporary stores to build against before the
// real transaction begins.
type Migration interface {
	ID() uint32
	Database() DBKind
	Prepare(ctx context.Context, db *Database) error
	Forward(ctx context.Context, db *Database, tx *Txn, dryRun bool, passphrase string) error
	Backward(ctx context.Context, db *Database, tx *Txn, dryRun bool, passphrase string) error
}

// Runner applies the registered migration list in ID order, skipping
// migrations for a different DBKind and migrations already applied.
type Runner struct {
	kind       DBKind
	migrations []Migration
	logger     *logrus.Logger
}

// NewRunner sorts migrations by ID once so Run always applies them in a
// deterministic forward order.
func NewRunner(kind DBKind, logger *logrus.Logger, migrations ...Migration) *Runner {
	if logger == nil {
		logger = logrus.New()
	}
	filtered := make([]Migration, 0, len(migrations))
	for _, m := range migrations {
		if m.Database() == kind {
			filtered = append(filtered, m)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].ID() < filtered[j].ID() })
	return &Runner{kind: kind, migrations: filtered, logger: logger}
}

// CurrentVersion returns the schema version stored in db, or 0 if the
// database has never been migrated.
func (r *Runner) CurrentVersion(db *Database) (uint32, error) {
	storeForDB := bindStore(versionStore, db)
	v, err := storeForDB.Get(nil, "version")
	if errors.Is(err, chainerrors.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return v, nil
}

// Run applies every unapplied migration in order, each inside its own
// storage transaction so a crash mid-migration cannot leave the schema
// version out of sync with the data it describes.
func (r *Runner) Run(ctx context.Context, db *Database) error {
	current, err := r.CurrentVersion(db)
	if err != nil {
		return err
	}
	vs := bindStore(versionStore, db)
	for _, m := range r.migrations {
		if m.ID() <= current {
			continue
		}
		if err := m.Prepare(ctx, db); err != nil {
			return chainerrors.NewStorage(fmt.Sprintf("migration %d prepare", m.ID()), err)
		}
		err := db.Transaction(func(tx *Txn) error {
			if err := m.Forward(ctx, db, tx, false, ""); err != nil {
				return err
			}
			return vs.Put(tx, "version", m.ID())
		})
		if err != nil {
			return chainerrors.NewStorage(fmt.Sprintf("migration %d forward", m.ID()), err)
		}
		r.logger.WithFields(logrus.Fields{"migration": m.ID(), "kind": r.kind}).Info("kv: migration applied")
		current = m.ID()
	}
	return nil
}

// bindStore rebinds a Store declared with a nil Database (used for the
// package-level versionStore singleton) to a concrete Database instance.
func bindStore[K any, V any](s *Store[K, V], db *Database) *Store[K, V] {
	bound := *s
	bound.db = db
	return &bound
}
