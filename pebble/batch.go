// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pebble

import (
	"github.com/ava-labs/avalanchego/database"
	"github.com/cockroachdb/pebble"
)

var _ database.Batch = (*batch)(nil)

// batch stages writes in a pebble batch. The embedded ops are kept so the
// batch can be replayed onto another writer.
type batch struct {
	database.BatchOps

	db    *Database
	batch *pebble.Batch
}

func (b *batch) Put(key, value []byte) error {
	if err := b.batch.Set(key, value, nil); err != nil {
		return err
	}
	return b.BatchOps.Put(key, value)
}

func (b *batch) Delete(key []byte) error {
	if err := b.batch.Delete(key, nil); err != nil {
		return err
	}
	return b.BatchOps.Delete(key)
}

func (b *batch) Write() error {
	if b.db.isClosed() {
		return database.ErrClosed
	}
	return b.batch.Commit(b.db.writes)
}

func (b *batch) Reset() {
	b.batch.Reset()
	b.BatchOps.Reset()
}

func (b *batch) Inner() database.Batch {
	return b
}
