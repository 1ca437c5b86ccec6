// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"github.com/ava-labs/avalanchego/ids"
	"golang.org/x/exp/maps"

	"github.com/ava-labs/praos/params"

	safemath "github.com/ava-labs/avalanchego/utils/math"
)

// PoolRewards is what one pool earned in an epoch: the owners' tax and
// the value shared among delegators.
type PoolRewards struct {
	Taxed      uint64
	Delegators uint64
}

// EpochRewardsInfo reports a reward distribution.
type EpochRewardsInfo struct {
	Epoch uint32
	// Drawn is the value taken from the reward pot.
	Drawn uint64
	// Fees is the value collected from the fee pot.
	Fees uint64
	// Treasury is the value sent to the treasury.
	Treasury uint64
	Pools    map[ids.ID]PoolRewards
	Accounts map[ids.ID]uint64
}

func newEpochRewardsInfo(epoch uint32) *EpochRewardsInfo {
	return &EpochRewardsInfo{
		Epoch:    epoch,
		Pools:    make(map[ids.ID]PoolRewards),
		Accounts: make(map[ids.ID]uint64),
	}
}

// DistributeRewards pays out the epoch that ends with the ledger's date.
// The collected fees, joined by the contribution of the reward pot, are
// taxed for the treasury first. What remains is split among pools by the
// number of blocks each produced. Every pool pays its owners' tax and
// shares the rest among its delegators in proportion to their stake in
// [dist]. Integer division dust goes to the treasury.
func (l *Ledger) DistributeRewards(dist *StakeDistribution, p Parameters) (*Ledger, *EpochRewardsInfo, error) {
	c := l.clone()
	info := newEpochRewardsInfo(l.date.Epoch + 1)

	info.Fees = c.pots.Fees
	c.pots.Fees = 0
	var total uint64
	if p.FeesGoTo == params.FeesGoToTreasury {
		if err := c.toTreasury(info, info.Fees); err != nil {
			return nil, nil, err
		}
	} else {
		total = info.Fees
	}

	var totalBlocks uint64
	c.leadersLog.ascend(func(_ ids.ID, n uint32) bool {
		totalBlocks += uint64(n)
		return true
	})
	if totalBlocks == 0 {
		if err := c.toTreasury(info, total); err != nil {
			return nil, nil, err
		}
		return c, info, nil
	}

	if p.RewardParams != nil {
		contribution, err := p.RewardParams.Contribution(info.Epoch)
		if err != nil {
			return nil, nil, err
		}
		info.Drawn = min(contribution, c.pots.Rewards)
		c.pots.Rewards -= info.Drawn
		if total, err = safemath.Add(total, info.Drawn); err != nil {
			return nil, nil, err
		}
	}

	taxed, rest, err := p.TreasuryTax.Cut(total)
	if err != nil {
		return nil, nil, err
	}
	if err := c.toTreasury(info, taxed); err != nil {
		return nil, nil, err
	}

	log := c.leadersLog
	c.leadersLog = newIDTable[uint32]()
	unit := rest / totalBlocks
	if err := c.toTreasury(info, rest-unit*totalBlocks); err != nil {
		return nil, nil, err
	}
	for _, pool := range log.keys() {
		blocks, _ := log.get(pool)
		reward := unit * uint64(blocks)
		state, registered := c.pools.get(pool)
		stake, staked := dist.Pools[pool]
		if !registered || !staked || stake.Total == 0 {
			if err := c.toTreasury(info, reward); err != nil {
				return nil, nil, err
			}
			continue
		}
		if err := c.rewardPool(info, pool, state, stake, reward); err != nil {
			return nil, nil, err
		}
	}
	return c, info, nil
}

func (l *Ledger) rewardPool(info *EpochRewardsInfo, id ids.ID, pool Pool, stake *PoolStake, reward uint64) error {
	taxed, after, err := pool.Registration.Rewards.Cut(reward)
	if err != nil {
		return err
	}

	owners := pool.Registration.Owners
	share := taxed / uint64(len(owners))
	for i, owner := range owners {
		v := share
		if i == 0 {
			v += taxed - share*uint64(len(owners))
		}
		if err := l.reward(info, owner.ID(), v); err != nil {
			return err
		}
	}

	var distributed uint64
	for _, account := range sortedIDs(maps.Keys(stake.Accounts)) {
		v, err := params.MulDiv(after, stake.Accounts[account], stake.Total)
		if err != nil {
			return err
		}
		if v == 0 {
			continue
		}
		if err := l.reward(info, account, v); err != nil {
			return err
		}
		distributed += v
	}
	if err := l.toTreasury(info, after-distributed); err != nil {
		return err
	}

	pool.LastRewards = PoolLastRewards{Epoch: info.Epoch, Taxed: taxed, AfterTax: after}
	l.pools.set(id, pool)
	info.Pools[id] = PoolRewards{Taxed: taxed, Delegators: distributed}
	return nil
}

// reward credits a multisig account if one is declared under [id] and
// an account otherwise, creating it when needed.
func (l *Ledger) reward(info *EpochRewardsInfo, id ids.ID, v uint64) error {
	if v == 0 {
		return nil
	}
	if acct, ok := l.multisig.get(id); ok {
		value, err := safemath.Add(acct.Value, v)
		if err != nil {
			return err
		}
		acct.Value = value
		l.multisig.set(id, acct)
	} else {
		acct, _ := l.accounts.get(id)
		acct, err := acct.credit(v)
		if err != nil {
			return err
		}
		acct.Rewards += v
		l.accounts.set(id, acct)
	}
	info.Accounts[id] += v
	return nil
}

func (l *Ledger) toTreasury(info *EpochRewardsInfo, v uint64) error {
	treasury, err := safemath.Add(l.pots.Treasury, v)
	if err != nil {
		return err
	}
	l.pots.Treasury = treasury
	info.Treasury += v
	return nil
}
