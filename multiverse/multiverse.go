// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package multiverse keeps the states of every block a node knows about,
// across all the forks it follows, until they are garbage collected.
package multiverse

import (
	"sync"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/set"

	"github.com/ava-labs/praos/block"
)

type entry[T any] struct {
	value       T
	chainLength block.ChainLength
	roots       int
}

// Multiverse indexes values of type [T] by block identifier and groups
// them by chain length. Entries stay alive while a GCRoot holds them or
// while they are recent enough.
type Multiverse[T any] struct {
	mu sync.RWMutex

	entries map[ids.ID]*entry[T]
	lengths map[block.ChainLength]set.Set[ids.ID]
	highest block.ChainLength
}

func New[T any]() *Multiverse[T] {
	return &Multiverse[T]{
		entries: make(map[ids.ID]*entry[T]),
		lengths: make(map[block.ChainLength]set.Set[ids.ID]),
	}
}

// Insert stores [value] for [id] at [chainLength] and returns a root
// holding it. Inserting a known id keeps the stored value.
func (m *Multiverse[T]) Insert(chainLength block.ChainLength, id ids.ID, value T) *GCRoot[T] {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		e = &entry[T]{value: value, chainLength: chainLength}
		m.entries[id] = e
		bucket, ok := m.lengths[chainLength]
		if !ok {
			bucket = set.NewSet[ids.ID](1)
			m.lengths[chainLength] = bucket
		}
		bucket.Add(id)
		if chainLength > m.highest {
			m.highest = chainLength
		}
	}
	e.roots++
	return &GCRoot[T]{m: m, id: id}
}

func (m *Multiverse[T]) Get(id ids.ID) (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	if !ok {
		var zero T
		return zero, false
	}
	return e.value, true
}

// GetRef returns a new root on [id].
func (m *Multiverse[T]) GetRef(id ids.ID) (*GCRoot[T], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, false
	}
	e.roots++
	return &GCRoot[T]{m: m, id: id}, true
}

// GC drops the entries more than [depth] chain lengths below the highest
// one that no root holds. It returns the dropped ids.
func (m *Multiverse[T]) GC(depth uint32) []ids.ID {
	m.mu.Lock()
	defer m.mu.Unlock()

	var dropped []ids.ID
	for length, bucket := range m.lengths {
		if uint64(length)+uint64(depth) >= uint64(m.highest) {
			continue
		}
		for id := range bucket {
			if m.entries[id].roots > 0 {
				continue
			}
			delete(m.entries, id)
			bucket.Remove(id)
			dropped = append(dropped, id)
		}
		if bucket.Len() == 0 {
			delete(m.lengths, length)
		}
	}
	return dropped
}

func (m *Multiverse[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}

func (m *Multiverse[T]) release(id ids.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[id]; ok && e.roots > 0 {
		e.roots--
	}
}

// GCRoot keeps an entry from being collected until released.
type GCRoot[T any] struct {
	m    *Multiverse[T]
	id   ids.ID
	once sync.Once
}

func (r *GCRoot[T]) ID() ids.ID { return r.id }

// Value returns the entry the root holds.
func (r *GCRoot[T]) Value() T {
	v, _ := r.m.Get(r.id)
	return v
}

// Release can be called more than once.
func (r *GCRoot[T]) Release() {
	r.once.Do(func() { r.m.release(r.id) })
}
