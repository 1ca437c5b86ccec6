// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/set"

	"github.com/ava-labs/praos/chaintime"
	"github.com/ava-labs/praos/fragment"
	"github.com/ava-labs/praos/params"

	safemath "github.com/ava-labs/avalanchego/utils/math"
)

// Account is a balance spendable by the key the account is named after.
// Counter is the spending counter: it increases with every spend so an
// account witness cannot be replayed.
type Account struct {
	Value   uint64
	Counter uint32
	// Delegation is the pool the account stake goes to, ids.Empty if the
	// stake is not delegated.
	Delegation ids.ID
	// Rewards is the total value credited by reward distributions.
	Rewards uint64
}

func (a Account) credit(v uint64) (Account, error) {
	value, err := safemath.Add(a.Value, v)
	if err != nil {
		return a, err
	}
	a.Value = value
	return a, nil
}

// MultisigAccount is a balance spendable by a quorum of the declaration
// owners.
type MultisigAccount struct {
	Declaration *fragment.MultisigDeclaration
	Value       uint64
	Counter     uint32
	Delegation  ids.ID
}

// Pool is a registered stake pool.
type Pool struct {
	Registration *fragment.PoolRegistration
	// RegistrationID is the digest of the current registration. It only
	// differs from the pool id after an update.
	RegistrationID ids.ID
	LastRewards    PoolLastRewards
}

type PoolLastRewards struct {
	Epoch    uint32
	Taxed    uint64
	AfterTax uint64
}

// Pots hold value that belongs to no account.
type Pots struct {
	Fees     uint64
	Treasury uint64
	Rewards  uint64
}

func (p Pots) total() (uint64, error) {
	t, err := safemath.Add(p.Fees, p.Treasury)
	if err != nil {
		return 0, err
	}
	return safemath.Add(t, p.Rewards)
}

// Proposal is a pending update proposal and the BFT leaders that voted
// for it.
type Proposal struct {
	Proposer ids.ID
	Changes  params.ConfigParams
	Date     chaintime.BlockDate
	Votes    set.Set[ids.ID]
}

// VotePlanState records the votes cast on a vote plan. Choices counts,
// per proposal, the votes for each option.
type VotePlanState struct {
	Plan    *fragment.VotePlan
	Voters  []set.Set[ids.ID]
	Choices [][]uint64
	Tallied bool
}

func (v *VotePlanState) clone() *VotePlanState {
	c := &VotePlanState{
		Plan:    v.Plan,
		Voters:  make([]set.Set[ids.ID], len(v.Voters)),
		Choices: make([][]uint64, len(v.Choices)),
		Tallied: v.Tallied,
	}
	for i := range v.Voters {
		c.Voters[i] = set.Of(v.Voters[i].List()...)
	}
	for i := range v.Choices {
		c.Choices[i] = append([]uint64(nil), v.Choices[i]...)
	}
	return c
}
