package kv

import "context"

// migration0001InitialSchema is the baseline migration for a freshly
// created blockchain database. Stores in this package are plain badger
// key prefixes declared at construction time by their owning package
// (blockchain.newStores, merkle.New), not objects that
// need an explicit DDL-style create, so Forward has nothing to write; its
// only job is to stamp a fresh database at version 1 so CurrentVersion
// stops returning 0 and future migrations have a floor to compare against.
type migration0001InitialSchema struct{}

func (migration0001InitialSchema) ID() uint32       { return 1 }
func (migration0001InitialSchema) Database() DBKind { return DBKindBlockchain }

func (migration0001InitialSchema) Prepare(context.Context, *Database) error { return nil }

func (migration0001InitialSchema) Forward(context.Context, *Database, *Txn, bool, string) error {
	return nil
}

func (migration0001InitialSchema) Backward(context.Context, *Database, *Txn, bool, string) error {
	return nil
}

// AllMigrations returns every migration this package knows about,
// regardless of which logical database they target. NewRunner filters by
// DBKind on construction, so callers can pass this list straight through.
func AllMigrations() []Migration {
	return []Migration{
		migration0001InitialSchema{},
	}
}
