// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package params

import (
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/praos/address"
	"github.com/ava-labs/praos/codec"
)

func allParams() ConfigParams {
	return ConfigParams{
		Block0Date(1_700_000_000),
		Discrimination(address.Test),
		Consensus(ConsensusGenesisPraos),
		SlotsPerEpoch(100),
		SlotDuration(1),
		EpochStabilityDepth(10),
		ActiveSlotsCoeff(100),
		MaxNumberOfTransactionsPerBlock(255),
		BftSlotsRatio(220),
		AddBftLeader(ids.GenerateTestID()),
		RemoveBftLeader(ids.GenerateTestID()),
		Fee{Constant: 2, Coefficient: 1, Certificate: 4},
		ProposalExpiration(5),
		KESUpdateSpeed(43200),
		TreasuryAdd(1_000),
		TreasuryParams{Fixed: 10, Ratio: Ratio{Numerator: 1, Denominator: 10}, MaxLimit: 100},
		RewardPot(1_000_000),
		Rewards{Kind: RewardHalving, Constant: 100, Ratio: Ratio{Numerator: 1, Denominator: 2}, EpochStart: 1, EpochRate: 3},
		FeesDestination(FeesGoToTreasury),
		AddCommitteeID(ids.GenerateTestID()),
		RemoveCommitteeID(ids.GenerateTestID()),
	}
}

func TestConfigParamsRoundTrip(t *testing.T) {
	require := require.New(t)

	c := allParams()
	p := codec.NewWriter(c.Size(), c.Size())
	c.Marshal(p)
	require.NoError(p.Err())
	require.Len(p.Bytes(), c.Size())

	rp := codec.NewReader(p.Bytes(), len(p.Bytes()))
	decoded, err := UnmarshalConfigParams(rp)
	require.NoError(err)
	require.NoError(rp.Done())
	require.Equal(c, decoded)
}

func TestTagLenWord(t *testing.T) {
	require := require.New(t)

	p := codec.NewWriter(16, 16)
	MarshalParam(p, Block0Date(0))
	require.NoError(p.Err())
	// tag 1, len 8: 1<<6 | 8
	require.Equal([]byte{0x00, 0x48}, p.Bytes()[:2])
}

func TestUnmarshalParamErrors(t *testing.T) {
	tests := []struct {
		name    string
		bytes   []byte
		wantErr error
	}{
		{
			name:    "unknown tag",
			bytes:   []byte{0x01, 0xc1, 0x00}, // tag 7, len 1
			wantErr: ErrInvalidTag,
		},
		{
			name:    "wrong size",
			bytes:   []byte{0x00, 0x41, 0x00}, // tag 1, len 1
			wantErr: ErrSizeInvalid,
		},
		{
			name:    "bad discrimination",
			bytes:   []byte{0x00, 0x81, 0x07}, // tag 2, len 1
			wantErr: ErrStructureInvalid,
		},
		{
			name:    "bad consensus",
			bytes:   []byte{0x00, 0xc2, 0x00, 0x09}, // tag 3, len 2
			wantErr: ErrStructureInvalid,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := codec.NewReader(tt.bytes, len(tt.bytes))
			_, err := UnmarshalParam(p)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseStrings(t *testing.T) {
	require := require.New(t)

	c, err := ParseConsensusVersion("bft")
	require.NoError(err)
	require.Equal(ConsensusBft, c)
	c, err = ParseConsensusVersion("genesis_praos")
	require.NoError(err)
	require.Equal(ConsensusGenesisPraos, c)
	_, err = ParseConsensusVersion("pow")
	require.ErrorIs(err, ErrUnknownString)

	f, err := ParseFeesGoTo("treasury")
	require.NoError(err)
	require.Equal(FeesGoToTreasury, f)
	_, err = ParseFeesGoTo("burn")
	require.ErrorIs(err, ErrUnknownString)

	m, err := ParseMilli("0.25")
	require.NoError(err)
	require.Equal(Milli(250), m)
	m, err = ParseMilli("2")
	require.NoError(err)
	require.Equal(2*MilliOne, m)
	_, err = ParseMilli("0.0001")
	require.ErrorIs(err, ErrUnknownString)
	_, err = ParseMilli("half")
	require.ErrorIs(err, ErrUnknownString)
}

func TestTaxCut(t *testing.T) {
	tests := []struct {
		name      string
		tax       TaxType
		value     uint64
		wantTaxed uint64
	}{
		{"zero", ZeroTax(), 100, 0},
		{"fixed only", TaxType{Fixed: 10, Ratio: Ratio{0, 1}}, 100, 10},
		{"fixed larger than value", TaxType{Fixed: 500, Ratio: Ratio{1, 2}}, 100, 100},
		{"fixed then ratio", TaxType{Fixed: 10, Ratio: Ratio{1, 10}}, 110, 20},
		{"ratio limited", TaxType{Fixed: 0, Ratio: Ratio{1, 2}, MaxLimit: 5}, 100, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			taxed, rest, err := tt.tax.Cut(tt.value)
			require.NoError(err)
			require.Equal(tt.wantTaxed, taxed)
			require.Equal(tt.value-tt.wantTaxed, rest)
		})
	}
}

func TestRewardContribution(t *testing.T) {
	tests := []struct {
		name   string
		params RewardParams
		epoch  uint32
		want   uint64
	}{
		{
			name:   "linear before start",
			params: RewardParams{Kind: RewardLinear, Constant: 100, Ratio: Ratio{10, 1}, EpochStart: 2, EpochRate: 1},
			epoch:  1,
			want:   0,
		},
		{
			name:   "linear first zone",
			params: RewardParams{Kind: RewardLinear, Constant: 100, Ratio: Ratio{10, 1}, EpochStart: 0, EpochRate: 1},
			epoch:  0,
			want:   100,
		},
		{
			name:   "linear third zone",
			params: RewardParams{Kind: RewardLinear, Constant: 100, Ratio: Ratio{10, 1}, EpochStart: 0, EpochRate: 2},
			epoch:  5,
			want:   80,
		},
		{
			name:   "linear exhausted",
			params: RewardParams{Kind: RewardLinear, Constant: 100, Ratio: Ratio{10, 1}, EpochStart: 0, EpochRate: 1},
			epoch:  50,
			want:   0,
		},
		{
			name:   "halving",
			params: RewardParams{Kind: RewardHalving, Constant: 1000, Ratio: Ratio{1, 2}, EpochStart: 0, EpochRate: 1},
			epoch:  3,
			want:   125,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			got, err := tt.params.Contribution(tt.epoch)
			require.NoError(err)
			require.Equal(tt.want, got)
		})
	}
}

func TestLinearFee(t *testing.T) {
	require := require.New(t)

	f := LinearFee{Constant: 2, Coefficient: 3, Certificate: 10}
	fee, err := f.Calculate(false, 1, 2)
	require.NoError(err)
	require.Equal(uint64(11), fee)

	fee, err = f.Calculate(true, 1, 2)
	require.NoError(err)
	require.Equal(uint64(21), fee)

	_, err = LinearFee{Coefficient: ^uint64(0)}.Calculate(false, 2, 0)
	require.Error(err)
}

func TestMulDiv(t *testing.T) {
	require := require.New(t)

	v, err := MulDiv(^uint64(0), 3, 4)
	require.NoError(err)
	require.Equal(^uint64(0)/4*3+2, v)

	_, err = MulDiv(1, 1, 0)
	require.ErrorIs(err, ErrRatioOverflow)
}
