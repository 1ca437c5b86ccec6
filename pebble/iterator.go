// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pebble

import (
	"slices"

	"github.com/ava-labs/avalanchego/database"
	"github.com/cockroachdb/pebble"
)

var _ database.Iterator = (*iterator)(nil)

type iterator struct {
	db *Database
	it *pebble.Iterator

	started  bool
	released bool
	err      error

	key   []byte
	value []byte
}

func (i *iterator) Next() bool {
	if i.it == nil || i.released || i.err != nil {
		return false
	}
	if i.db.isClosed() {
		i.err = database.ErrClosed
		i.key, i.value = nil, nil
		return false
	}

	var valid bool
	if i.started {
		valid = i.it.Next()
	} else {
		valid = i.it.First()
		i.started = true
	}
	if !valid {
		i.key, i.value = nil, nil
		return false
	}
	i.key = slices.Clone(i.it.Key())
	i.value = slices.Clone(i.it.Value())
	return true
}

func (i *iterator) Error() error {
	if i.err != nil {
		return i.err
	}
	if i.it == nil || i.released {
		return nil
	}
	return i.it.Error()
}

func (i *iterator) Key() []byte {
	return i.key
}

func (i *iterator) Value() []byte {
	return i.value
}

func (i *iterator) Release() {
	if i.it == nil || i.released {
		return
	}
	i.released = true
	if err := i.it.Close(); err != nil && i.err == nil {
		i.err = err
	}
}
