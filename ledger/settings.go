// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"fmt"
	"slices"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/praos/address"
	"github.com/ava-labs/praos/params"
)

const (
	DefaultActiveSlotsCoeff    params.Milli = 100
	DefaultBftSlotsRatio       params.Milli = 220
	DefaultMaxTxPerBlock       uint32       = 100
	DefaultEpochStabilityDepth uint32       = 102_400
	DefaultProposalExpiration  uint32       = 100
)

// Settings are the parameters of the ledger that update proposals may
// change after block0. A Settings value is never mutated once it is
// attached to a ledger, [Apply] returns a modified copy.
type Settings struct {
	Consensus           params.ConsensusVersion
	BftLeaders          []ids.ID
	ActiveSlotsCoeff    params.Milli
	BftSlotsRatio       params.Milli
	MaxTxPerBlock       uint32
	EpochStabilityDepth uint32
	Fees                params.LinearFee
	ProposalExpiration  uint32
	TreasuryTax         params.TaxType
	// RewardParams is nil when no reward is drawn from the reward pot.
	RewardParams *params.RewardParams
	FeesGoTo     params.FeesGoTo
	Committees   []ids.ID
}

func NewSettings() *Settings {
	return &Settings{
		Consensus:           params.ConsensusBft,
		ActiveSlotsCoeff:    DefaultActiveSlotsCoeff,
		BftSlotsRatio:       DefaultBftSlotsRatio,
		MaxTxPerBlock:       DefaultMaxTxPerBlock,
		EpochStabilityDepth: DefaultEpochStabilityDepth,
		ProposalExpiration:  DefaultProposalExpiration,
		TreasuryTax:         params.ZeroTax(),
		FeesGoTo:            params.FeesGoToRewards,
	}
}

func (s *Settings) clone() *Settings {
	c := *s
	c.BftLeaders = slices.Clone(s.BftLeaders)
	c.Committees = slices.Clone(s.Committees)
	if s.RewardParams != nil {
		rp := *s.RewardParams
		c.RewardParams = &rp
	}
	return &c
}

// Apply returns a copy of the settings with [changes] applied in order.
// Parameters that can only be set in block0 are rejected.
func (s *Settings) Apply(changes params.ConfigParams) (*Settings, error) {
	c := s.clone()
	for _, change := range changes {
		switch v := change.(type) {
		case params.Consensus:
			c.Consensus = params.ConsensusVersion(v)
		case params.ActiveSlotsCoeff:
			c.ActiveSlotsCoeff = params.Milli(v)
		case params.BftSlotsRatio:
			c.BftSlotsRatio = params.Milli(v)
		case params.MaxNumberOfTransactionsPerBlock:
			c.MaxTxPerBlock = uint32(v)
		case params.EpochStabilityDepth:
			c.EpochStabilityDepth = uint32(v)
		case params.AddBftLeader:
			if !slices.Contains(c.BftLeaders, ids.ID(v)) {
				c.BftLeaders = append(c.BftLeaders, ids.ID(v))
			}
		case params.RemoveBftLeader:
			c.BftLeaders = slices.DeleteFunc(c.BftLeaders, func(id ids.ID) bool { return id == ids.ID(v) })
		case params.Fee:
			c.Fees = params.LinearFee(v)
		case params.ProposalExpiration:
			c.ProposalExpiration = uint32(v)
		case params.TreasuryParams:
			c.TreasuryTax = params.TaxType(v)
		case params.Rewards:
			rp := params.RewardParams(v)
			c.RewardParams = &rp
		case params.FeesDestination:
			c.FeesGoTo = params.FeesGoTo(v)
		case params.AddCommitteeID:
			if !slices.Contains(c.Committees, ids.ID(v)) {
				c.Committees = append(c.Committees, ids.ID(v))
			}
		case params.RemoveCommitteeID:
			c.Committees = slices.DeleteFunc(c.Committees, func(id ids.ID) bool { return id == ids.ID(v) })
		default:
			return nil, fmt.Errorf("%w: tag %d", ErrReadOnlySetting, change.Tag())
		}
	}
	return c, nil
}

func (s *Settings) IsBftLeader(id ids.ID) bool {
	return slices.Contains(s.BftLeaders, id)
}

func (s *Settings) IsCommitteeMember(id ids.ID) bool {
	return slices.Contains(s.Committees, id)
}

// Parameters is the subset of the settings that fragment application and
// reward distribution read. It is fixed for the duration of an epoch.
type Parameters struct {
	Fees         params.LinearFee
	TreasuryTax  params.TaxType
	RewardParams *params.RewardParams
	FeesGoTo     params.FeesGoTo
}

// StaticParameters can only be set in block0.
type StaticParameters struct {
	Block0ID       ids.ID
	Block0Date     uint64
	Discrimination address.Discrimination
	KESUpdateSpeed uint32
	SlotDuration   uint8
	SlotsPerEpoch  uint32
}
