// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"github.com/ava-labs/avalanchego/ids"
	"golang.org/x/exp/maps"

	"github.com/ava-labs/praos/address"
	"github.com/ava-labs/praos/fragment"

	safemath "github.com/ava-labs/avalanchego/utils/math"
)

// PoolStake is the stake delegated to one pool, by account.
type PoolStake struct {
	Total    uint64
	Accounts map[ids.ID]uint64
}

// StakeDistribution splits the ledger value between pools. Unassigned is
// the value not delegated to anything, Dangling the value delegated to
// pools that are no longer registered.
type StakeDistribution struct {
	Unassigned uint64
	Dangling   uint64
	Pools      map[ids.ID]*PoolStake
}

// Total is the stake eligible for leadership.
func (d *StakeDistribution) Total() (uint64, error) {
	var (
		total uint64
		err   error
	)
	for _, p := range d.Pools {
		if total, err = safemath.Add(total, p.Total); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// PoolIDs returns the pools holding stake in ascending order.
func (d *StakeDistribution) PoolIDs() []ids.ID {
	return sortedIDs(maps.Keys(d.Pools))
}

func (d *StakeDistribution) PoolStake(pool ids.ID) uint64 {
	if p, ok := d.Pools[pool]; ok {
		return p.Total
	}
	return 0
}

func (d *StakeDistribution) add(account ids.ID, delegation ids.ID, value uint64, pools table[ids.ID, Pool]) error {
	var err error
	switch {
	case delegation == ids.Empty:
		d.Unassigned, err = safemath.Add(d.Unassigned, value)
	case !pools.has(delegation):
		d.Dangling, err = safemath.Add(d.Dangling, value)
	default:
		p, ok := d.Pools[delegation]
		if !ok {
			p = &PoolStake{Accounts: make(map[ids.ID]uint64)}
			d.Pools[delegation] = p
		}
		if p.Total, err = safemath.Add(p.Total, value); err != nil {
			return err
		}
		p.Accounts[account], err = safemath.Add(p.Accounts[account], value)
	}
	return err
}

// StakeDistribution computes the stake of every registered pool. Group
// utxos count toward the delegation of their group account, Single and
// legacy utxos are never assigned.
func (l *Ledger) StakeDistribution() (*StakeDistribution, error) {
	d := &StakeDistribution{Pools: make(map[ids.ID]*PoolStake, l.pools.len())}
	for _, pool := range l.pools.keys() {
		d.Pools[pool] = &PoolStake{Accounts: make(map[ids.ID]uint64)}
	}
	var err error
	l.accounts.ascend(func(id ids.ID, acct Account) bool {
		err = d.add(id, acct.Delegation, acct.Value, l.pools)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	l.multisig.ascend(func(id ids.ID, acct MultisigAccount) bool {
		err = d.add(id, acct.Delegation, acct.Value, l.pools)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	l.utxos.ascend(func(_ fragment.UtxoPointer, out fragment.Output) bool {
		var delegation ids.ID
		if out.Address.Kind == address.KindGroup {
			group, _ := l.accounts.get(out.Address.Group)
			delegation = group.Delegation
		}
		err = d.add(out.Address.Group, delegation, out.Value, l.pools)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	l.legacy.ascend(func(_ fragment.UtxoPointer, out fragment.LegacyOutput) bool {
		err = d.add(ids.Empty, ids.Empty, out.Value, l.pools)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}
