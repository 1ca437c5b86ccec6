// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"bytes"
	"sync"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/google/btree"

	"github.com/ava-labs/praos/fragment"
)

const tableDegree = 16

type entry[K, V any] struct {
	key   K
	value V
}

// table is an ordered map whose clones share nodes until one of the
// copies is written to. Cloning is O(1) and a write copies only the path
// to the changed entry, so ledgers derived from each other share most of
// their state.
//
// A table reachable from a published Ledger is only read and cloned.
// Writes go to the clone held by the working copy.
type table[K, V any] struct {
	// lock serializes clones, which reset the copy-on-write context of
	// the source tree.
	lock *sync.Mutex
	tree *btree.BTreeG[entry[K, V]]
}

func newTable[K, V any](compare func(a, b K) int) table[K, V] {
	return table[K, V]{
		lock: &sync.Mutex{},
		tree: btree.NewG[entry[K, V]](tableDegree, func(a, b entry[K, V]) bool {
			return compare(a.key, b.key) < 0
		}),
	}
}

func newIDTable[V any]() table[ids.ID, V] {
	return newTable[ids.ID, V](compareIDs)
}

func newUtxoTable[V any]() table[fragment.UtxoPointer, V] {
	return newTable[fragment.UtxoPointer, V](compareUtxoPointers)
}

func (t table[K, V]) clone() table[K, V] {
	t.lock.Lock()
	defer t.lock.Unlock()

	return table[K, V]{
		lock: &sync.Mutex{},
		tree: t.tree.Clone(),
	}
}

// get returns the zero value if [k] is not present.
func (t table[K, V]) get(k K) (V, bool) {
	e, ok := t.tree.Get(entry[K, V]{key: k})
	return e.value, ok
}

func (t table[K, V]) has(k K) bool {
	return t.tree.Has(entry[K, V]{key: k})
}

func (t table[K, V]) set(k K, v V) {
	t.tree.ReplaceOrInsert(entry[K, V]{key: k, value: v})
}

func (t table[K, V]) delete(k K) {
	t.tree.Delete(entry[K, V]{key: k})
}

func (t table[K, V]) len() int {
	return t.tree.Len()
}

// ascend calls [f] on every entry in key order until it returns false.
func (t table[K, V]) ascend(f func(K, V) bool) {
	t.tree.Ascend(func(e entry[K, V]) bool {
		return f(e.key, e.value)
	})
}

func (t table[K, V]) keys() []K {
	keys := make([]K, 0, t.len())
	t.ascend(func(k K, _ V) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

func compareIDs(a, b ids.ID) int {
	return bytes.Compare(a[:], b[:])
}

func compareUtxoPointers(a, b fragment.UtxoPointer) int {
	if c := compareIDs(a.FragmentID, b.FragmentID); c != 0 {
		return c
	}
	return int(a.OutputIndex) - int(b.OutputIndex)
}
