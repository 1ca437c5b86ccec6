// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package blockchain

import (
	"time"

	"github.com/ava-labs/praos/block"
)

type Selection uint8

const (
	PreferCurrent Selection = iota
	PreferCandidate
)

// approximateCommonAncestor walks both refs back along their epoch
// links until they meet and returns the chain length of the meeting
// point, which is within an epoch of the real common ancestor. Refs of
// the first epoch have no epoch link and meet at block0.
func approximateCommonAncestor(a *Ref, b *Ref) (block.ChainLength, bool) {
	if a.ID() == b.header.Parent() {
		return a.ChainLength(), true
	}
	if a.header.Parent() == b.ID() {
		return b.ChainLength(), true
	}
	sameBlock0 := a.ledger.Block0ID() == b.ledger.Block0ID()
	for a != nil && b != nil {
		if a.ID() == b.ID() {
			return a.ChainLength(), true
		}
		if a.ChainLength() < b.ChainLength() {
			b = b.previousEpoch
		} else {
			a = a.previousEpoch
		}
	}
	return 0, sameBlock0
}

// SelectChain decides whether the node should move from [current] to
// [candidate]. A candidate wins when it is longer, not dated in the
// future and forks off [current] less than the epoch stability depth
// ago.
func SelectChain(current *Ref, candidate *Ref, now time.Time) Selection {
	elapsed, err := candidate.Elapsed(now)
	if err != nil || elapsed < 0 {
		return PreferCurrent
	}
	if current.ChainLength() >= candidate.ChainLength() {
		return PreferCurrent
	}
	common, ok := approximateCommonAncestor(current, candidate)
	if !ok {
		return PreferCurrent
	}
	depth := uint64(current.ledger.Settings().EpochStabilityDepth)
	if uint64(common)+depth < uint64(current.ChainLength()) {
		return PreferCurrent
	}
	return PreferCandidate
}
