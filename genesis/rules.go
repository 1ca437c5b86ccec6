// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package genesis

import (
	"fmt"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/praos/address"
	"github.com/ava-labs/praos/params"
)

// Rules is the blockchain configuration written into the block0 Initial
// fragment.
type Rules struct {
	Block0Date          uint64   `yaml:"block0_date"`
	Discrimination      string   `yaml:"discrimination"`
	Consensus           string   `yaml:"block0_consensus"`
	SlotsPerEpoch       uint32   `yaml:"slots_per_epoch"`
	SlotDuration        uint8    `yaml:"slot_duration"`
	EpochStabilityDepth uint32   `yaml:"epoch_stability_depth,omitempty"`
	LeaderIDs           []string `yaml:"consensus_leader_ids"`
	ActiveSlotsCoeff    string   `yaml:"consensus_genesis_praos_active_slot_coeff,omitempty"`
	BftSlotsRatio       string   `yaml:"bft_slots_ratio,omitempty"`
	MaxTransactions     uint32   `yaml:"max_number_of_transactions_per_block,omitempty"`
	KESUpdateSpeed      uint32   `yaml:"kes_update_speed"`
	ProposalExpiration  uint32   `yaml:"proposal_expiration,omitempty"`
	FeesGoTo            string   `yaml:"fees_go_to,omitempty"`
	CommitteeIDs        []string `yaml:"committees,omitempty"`

	LinearFees  *params.LinearFee `yaml:"linear_fees,omitempty"`
	Treasury    *uint64           `yaml:"treasury,omitempty"`
	TreasuryTax *params.TaxType   `yaml:"treasury_parameters,omitempty"`
	RewardPot   *uint64           `yaml:"total_reward_supply,omitempty"`
	Rewards     *RewardRules      `yaml:"reward_parameters,omitempty"`
}

// RewardRules selects the reward contribution curve.
type RewardRules struct {
	Halving     bool   `yaml:"halving"`
	Constant    uint64 `yaml:"constant"`
	Numerator   uint64 `yaml:"ratio_numerator"`
	Denominator uint64 `yaml:"ratio_denominator"`
	EpochStart  uint32 `yaml:"epoch_start"`
	EpochRate   uint32 `yaml:"epoch_rate"`
}

func NewDefaultRules() *Rules {
	return &Rules{
		Discrimination: address.Test.String(),
		Consensus:      params.ConsensusBft.String(),
		SlotsPerEpoch:  720,
		SlotDuration:   5,
		KESUpdateSpeed: 12 * 3600,
	}
}

func parseDiscrimination(s string) (address.Discrimination, error) {
	switch s {
	case address.Production.String():
		return address.Production, nil
	case address.Test.String():
		return address.Test, nil
	default:
		return 0, fmt.Errorf("%w: %q", address.ErrUnknownDiscrimination, s)
	}
}

// ConfigParams converts the rules into block0 configuration parameters.
func (r *Rules) ConfigParams() (params.ConfigParams, error) {
	discrimination, err := parseDiscrimination(r.Discrimination)
	if err != nil {
		return nil, err
	}
	consensus, err := params.ParseConsensusVersion(r.Consensus)
	if err != nil {
		return nil, err
	}
	if len(r.LeaderIDs) == 0 {
		return nil, ErrNoLeaders
	}
	cp := params.ConfigParams{
		params.Block0Date(r.Block0Date),
		params.Discrimination(discrimination),
		params.Consensus(consensus),
		params.SlotsPerEpoch(r.SlotsPerEpoch),
		params.SlotDuration(r.SlotDuration),
		params.KESUpdateSpeed(r.KESUpdateSpeed),
	}
	for _, s := range r.LeaderIDs {
		id, err := ids.FromString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: leader %q: %w", ErrInvalidKey, s, err)
		}
		cp = append(cp, params.AddBftLeader(id))
	}
	if r.EpochStabilityDepth != 0 {
		cp = append(cp, params.EpochStabilityDepth(r.EpochStabilityDepth))
	}
	if r.ActiveSlotsCoeff != "" {
		f, err := params.ParseMilli(r.ActiveSlotsCoeff)
		if err != nil {
			return nil, err
		}
		cp = append(cp, params.ActiveSlotsCoeff(f))
	}
	if r.BftSlotsRatio != "" {
		d, err := params.ParseMilli(r.BftSlotsRatio)
		if err != nil {
			return nil, err
		}
		cp = append(cp, params.BftSlotsRatio(d))
	}
	if r.MaxTransactions != 0 {
		cp = append(cp, params.MaxNumberOfTransactionsPerBlock(r.MaxTransactions))
	}
	if r.ProposalExpiration != 0 {
		cp = append(cp, params.ProposalExpiration(r.ProposalExpiration))
	}
	if r.FeesGoTo != "" {
		dest, err := params.ParseFeesGoTo(r.FeesGoTo)
		if err != nil {
			return nil, err
		}
		cp = append(cp, params.FeesDestination(dest))
	}
	for _, s := range r.CommitteeIDs {
		id, err := ids.FromString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: committee %q: %w", ErrInvalidKey, s, err)
		}
		cp = append(cp, params.AddCommitteeID(id))
	}
	if r.LinearFees != nil {
		cp = append(cp, params.Fee(*r.LinearFees))
	}
	if r.Treasury != nil {
		cp = append(cp, params.TreasuryAdd(*r.Treasury))
	}
	if r.TreasuryTax != nil {
		cp = append(cp, params.TreasuryParams(*r.TreasuryTax))
	}
	if r.RewardPot != nil {
		cp = append(cp, params.RewardPot(*r.RewardPot))
	}
	if r.Rewards != nil {
		kind := params.RewardLinear
		if r.Rewards.Halving {
			kind = params.RewardHalving
		}
		cp = append(cp, params.Rewards(params.RewardParams{
			Kind:       kind,
			Constant:   r.Rewards.Constant,
			Ratio:      params.Ratio{Numerator: r.Rewards.Numerator, Denominator: r.Rewards.Denominator},
			EpochStart: r.Rewards.EpochStart,
			EpochRate:  r.Rewards.EpochRate,
		}))
	}
	return cp, nil
}
