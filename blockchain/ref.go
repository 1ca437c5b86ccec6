// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package blockchain

import (
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"go.uber.org/atomic"

	"github.com/ava-labs/praos/block"
	"github.com/ava-labs/praos/chaintime"
	"github.com/ava-labs/praos/leadership"
	"github.com/ava-labs/praos/ledger"
	"github.com/ava-labs/praos/multiverse"
)

// Ref is the state of the chain after one block: the ledger it produced
// and the schedule of its epoch. A Ref never changes once created.
type Ref struct {
	ledger     *ledger.Ledger
	leadership *leadership.Leadership
	params     ledger.Parameters
	timeFrame  *chaintime.TimeFrame
	header     *block.Header
	rewards    *ledger.EpochRewardsInfo

	// previousEpoch is the last Ref of the epoch before this one.
	previousEpoch *Ref
}

func (r *Ref) Ledger() *ledger.Ledger             { return r.ledger }
func (r *Ref) Leadership() *leadership.Leadership { return r.leadership }
func (r *Ref) Parameters() ledger.Parameters      { return r.params }
func (r *Ref) TimeFrame() *chaintime.TimeFrame    { return r.timeFrame }
func (r *Ref) Header() *block.Header              { return r.header }
func (r *Ref) ID() ids.ID                         { return r.header.ID() }
func (r *Ref) ChainLength() block.ChainLength     { return r.header.ChainLength() }
func (r *Ref) Date() chaintime.BlockDate          { return r.header.Date() }
func (r *Ref) LastRefPreviousEpoch() *Ref         { return r.previousEpoch }

// EpochRewardsInfo is set on the first Ref of an epoch whose transition
// distributed rewards.
func (r *Ref) EpochRewardsInfo() *ledger.EpochRewardsInfo { return r.rewards }

// Time is the start of the slot of the block.
func (r *Ref) Time() (time.Time, error) {
	date := r.Date()
	slot, err := r.ledger.Era().ToSlot(date.Epoch, date.Slot)
	if err != nil {
		return time.Time{}, err
	}
	return r.timeFrame.SlotStart(slot), nil
}

// Elapsed is the time since the slot of the block began. It is negative
// for blocks dated in the future.
func (r *Ref) Elapsed(now time.Time) (time.Duration, error) {
	t, err := r.Time()
	if err != nil {
		return 0, err
	}
	return now.Sub(t), nil
}

type tip struct {
	ref  *Ref
	root *multiverse.GCRoot[*Ref]
}

// Branch is the tip of one fork. A branch keeps its tip from being
// collected from the multiverse.
type Branch struct {
	refs *multiverse.Multiverse[*Ref]
	tip  atomic.Pointer[tip]
}

func newBranch(refs *multiverse.Multiverse[*Ref], ref *Ref) *Branch {
	b := &Branch{refs: refs}
	b.tip.Store(b.hold(ref))
	return b
}

func (b *Branch) hold(ref *Ref) *tip {
	root, _ := b.refs.GetRef(ref.ID())
	return &tip{ref: ref, root: root}
}

func (b *Branch) Ref() *Ref {
	return b.tip.Load().ref
}

// UpdateRef moves the branch to [ref] and returns the previous tip.
func (b *Branch) UpdateRef(ref *Ref) *Ref {
	old := b.tip.Swap(b.hold(ref))
	if old.root != nil {
		old.root.Release()
	}
	return old.ref
}

// CompareAndSwap moves the branch to [ref] only if its tip is still
// [old].
func (b *Branch) CompareAndSwap(old *Ref, ref *Ref) bool {
	current := b.tip.Load()
	if current.ref != old {
		return false
	}
	next := b.hold(ref)
	if !b.tip.CompareAndSwap(current, next) {
		if next.root != nil {
			next.root.Release()
		}
		return false
	}
	if current.root != nil {
		current.root.Release()
	}
	return true
}
