// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/praos/address"
	"github.com/ava-labs/praos/block"
	"github.com/ava-labs/praos/chaintime"
	"github.com/ava-labs/praos/crypto/ed25519"
	"github.com/ava-labs/praos/fragment"
	"github.com/ava-labs/praos/params"
)

func newKey(t *testing.T) ed25519.PrivateKey {
	sk, err := ed25519.GeneratePrivateKey()
	require.NoError(t, err)
	return sk
}

func newFragment(t *testing.T, c fragment.Content) *fragment.Fragment {
	f, err := fragment.New(c)
	require.NoError(t, err)
	return f
}

// signed computes the sign data hash of [tx], lets [sign] fill in its
// witnesses and authentication and wraps it in a fragment.
func signed(t *testing.T, tx *fragment.Transaction, sign func(hash ids.ID)) *fragment.Fragment {
	hash, err := tx.SignDataHash()
	require.NoError(t, err)
	sign(hash)
	return newFragment(t, tx)
}

func initialParams(leaders ...ids.ID) params.ConfigParams {
	cp := params.ConfigParams{
		params.Block0Date(0),
		params.Discrimination(address.Test),
		params.SlotDuration(1),
		params.SlotsPerEpoch(100),
		params.KESUpdateSpeed(100),
	}
	for _, l := range leaders {
		cp = append(cp, params.AddBftLeader(l))
	}
	return cp
}

func initial(t *testing.T, cp params.ConfigParams) *fragment.Fragment {
	return newFragment(t, &fragment.Initial{Params: cp})
}

func outputs(t *testing.T, outs ...fragment.Output) *fragment.Fragment {
	return newFragment(t, &fragment.Transaction{Outputs: outs})
}

func TestNewLedger(t *testing.T) {
	require := require.New(t)

	leader := newKey(t).PublicKey().ID()
	block0 := ids.GenerateTestID()
	l, err := New(block0, []*fragment.Fragment{initial(t, initialParams(leader))})
	require.NoError(err)
	require.Equal(block.ChainLength(0), l.ChainLength())
	require.Equal(chaintime.BlockDate{}, l.Date())
	require.Equal(params.ConsensusBft, l.Consensus())
	require.Equal([]ids.ID{leader}, l.Settings().BftLeaders)
	require.Equal(block0, l.Block0ID())
	require.Equal(block0, l.Nonce())
	require.Equal(address.Test, l.Discrimination())
	require.Equal(uint32(100), l.Era().SlotsPerEpoch())
	require.Equal(DefaultMaxTxPerBlock, l.Settings().MaxTxPerBlock)

	total, err := l.TotalValue()
	require.NoError(err)
	require.Zero(total)
}

func TestNewLedgerErrors(t *testing.T) {
	leader := ids.GenerateTestID()
	without := func(tag params.Tag) params.ConfigParams {
		var cp params.ConfigParams
		for _, p := range initialParams(leader) {
			if p.Tag() != tag {
				cp = append(cp, p)
			}
		}
		return cp
	}
	good := initial(t, initialParams(leader))

	tests := []struct {
		name      string
		fragments func() []*fragment.Fragment
		err       error
	}{
		{
			name:      "no fragment",
			fragments: func() []*fragment.Fragment { return nil },
			err:       ErrInitialMessageMissing,
		},
		{
			name: "no initial first",
			fragments: func() []*fragment.Fragment {
				return []*fragment.Fragment{outputs(t, fragment.Output{Address: address.Multisig(address.Test, leader), Value: 1}), good}
			},
			err: ErrExpectingInitialMessage,
		},
		{
			name: "no date",
			fragments: func() []*fragment.Fragment {
				return []*fragment.Fragment{initial(t, without(params.TagBlock0Date))}
			},
			err: ErrInitialMessageNoDate,
		},
		{
			name: "no discrimination",
			fragments: func() []*fragment.Fragment {
				return []*fragment.Fragment{initial(t, without(params.TagDiscrimination))}
			},
			err: ErrInitialMessageNoDiscrim,
		},
		{
			name: "no slot duration",
			fragments: func() []*fragment.Fragment {
				return []*fragment.Fragment{initial(t, without(params.TagSlotDuration))}
			},
			err: ErrInitialMessageNoSlotDur,
		},
		{
			name: "no slots per epoch",
			fragments: func() []*fragment.Fragment {
				return []*fragment.Fragment{initial(t, without(params.TagSlotsPerEpoch))}
			},
			err: ErrInitialMessageNoSlotsEpoch,
		},
		{
			name: "no kes update speed",
			fragments: func() []*fragment.Fragment {
				return []*fragment.Fragment{initial(t, without(params.TagKESUpdateSpeed))}
			},
			err: ErrInitialMessageNoKesSpeed,
		},
		{
			name: "no leader",
			fragments: func() []*fragment.Fragment {
				return []*fragment.Fragment{initial(t, without(params.TagAddBftLeader))}
			},
			err: ErrInitialMessageNoLeader,
		},
		{
			name: "duplicate date",
			fragments: func() []*fragment.Fragment {
				return []*fragment.Fragment{initial(t, append(initialParams(leader), params.Block0Date(5)))}
			},
			err: ErrInitialMessageDuplicate,
		},
		{
			name: "two initials",
			fragments: func() []*fragment.Fragment {
				return []*fragment.Fragment{good, good}
			},
			err: ErrInitialMessageMany,
		},
		{
			name: "transaction with input",
			fragments: func() []*fragment.Fragment {
				tx := &fragment.Transaction{Inputs: []fragment.Input{fragment.AccountInput(leader, 0)}}
				return []*fragment.Fragment{good, newFragment(t, tx)}
			},
			err: ErrTransactionHasInput,
		},
		{
			name: "update proposal",
			fragments: func() []*fragment.Fragment {
				tx := &fragment.Transaction{
					Certificate: &fragment.UpdateProposal{Proposer: leader, Changes: params.ConfigParams{}},
					Auth:        fragment.AccountSignature{},
				}
				return []*fragment.Fragment{good, newFragment(t, tx)}
			},
			err: ErrHasUpdateProposal,
		},
		{
			name: "pool retirement",
			fragments: func() []*fragment.Fragment {
				tx := &fragment.Transaction{
					Certificate: &fragment.PoolRetirement{Pool: leader},
					Auth:        fragment.OwnersSignature{},
				}
				return []*fragment.Fragment{good, newFragment(t, tx)}
			},
			err: ErrHasPoolManagement,
		},
		{
			name: "multisig output without declaration",
			fragments: func() []*fragment.Fragment {
				return []*fragment.Fragment{good, outputs(t, fragment.Output{Address: address.Multisig(address.Test, leader), Value: 1})}
			},
			err: ErrMultisigAccountNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			_, err := New(ids.GenerateTestID(), tt.fragments())
			require.ErrorIs(err, ErrBlock0)
			require.ErrorIs(err, tt.err)
		})
	}
}

func TestApplyEmptyBlock(t *testing.T) {
	require := require.New(t)

	l, err := New(ids.GenerateTestID(), []*fragment.Fragment{initial(t, initialParams(ids.GenerateTestID()))})
	require.NoError(err)

	date := chaintime.BlockDate{Epoch: 0, Slot: 1}
	next, err := l.ApplyBlock(l.Parameters(), nil, block.ContentEvalContext{Date: date, ChainLength: 1})
	require.NoError(err)
	require.Equal(date, next.Date())
	require.Equal(block.ChainLength(1), next.ChainLength())
	require.Equal(l.Nonce(), next.Nonce())

	// The receiver is left untouched.
	require.Equal(chaintime.BlockDate{}, l.Date())
	require.Equal(block.ChainLength(0), l.ChainLength())

	_, err = next.ApplyBlock(next.Parameters(), nil, block.ContentEvalContext{Date: date, ChainLength: 2})
	var dateErr *NonMonotonicDateError
	require.ErrorAs(err, &dateErr)
	require.Equal(date, dateErr.ChainDate)

	_, err = next.ApplyBlock(next.Parameters(), nil, block.ContentEvalContext{Date: chaintime.BlockDate{Slot: 2}, ChainLength: 3})
	var lengthErr *WrongChainLengthError
	require.ErrorAs(err, &lengthErr)
	require.Equal(block.ChainLength(3), lengthErr.Actual)
	require.Equal(block.ChainLength(2), lengthErr.Expected)
	require.ErrorIs(err, ErrWrongChainLength)
}

func TestApplyPraosBlock(t *testing.T) {
	require := require.New(t)

	l, err := New(ids.GenerateTestID(), []*fragment.Fragment{initial(t, initialParams(ids.GenerateTestID()))})
	require.NoError(err)

	pool := ids.GenerateTestID()
	ctx := block.ContentEvalContext{
		Date:        chaintime.BlockDate{Slot: 1},
		ChainLength: 1,
		Praos:       &block.PraosEvalContext{Nonce: ids.GenerateTestID(), Pool: pool},
	}
	next, err := l.ApplyBlock(l.Parameters(), nil, ctx)
	require.NoError(err)
	require.NotEqual(l.Nonce(), next.Nonce())
	require.Equal(map[ids.ID]uint32{pool: 1}, next.LeadersLog())
	require.Empty(l.LeadersLog())
}

func TestBlock0OnlyFragments(t *testing.T) {
	require := require.New(t)

	good := initial(t, initialParams(ids.GenerateTestID()))
	l, err := New(ids.GenerateTestID(), []*fragment.Fragment{good})
	require.NoError(err)

	_, err = l.ApplyFragment(l.Parameters(), good, chaintime.BlockDate{Slot: 1})
	require.ErrorIs(err, ErrBlock0OnlyFragmentReceived)

	old := newFragment(t, &fragment.OldUtxoDeclaration{Outputs: []fragment.LegacyOutput{{Address: ids.GenerateTestID(), Value: 1}}})
	_, err = l.ApplyFragment(l.Parameters(), old, chaintime.BlockDate{Slot: 1})
	require.ErrorIs(err, ErrBlock0OnlyFragmentReceived)
}

func TestTooManyFragments(t *testing.T) {
	require := require.New(t)

	cp := append(initialParams(ids.GenerateTestID()), params.MaxNumberOfTransactionsPerBlock(1))
	l, err := New(ids.GenerateTestID(), []*fragment.Fragment{initial(t, cp)})
	require.NoError(err)

	f := newFragment(t, &fragment.Transaction{})
	_, err = l.ApplyBlock(l.Parameters(), []*fragment.Fragment{f, f}, block.ContentEvalContext{Date: chaintime.BlockDate{Slot: 1}, ChainLength: 1})
	require.ErrorIs(err, ErrTooManyFragments)
}

func TestSettingsApply(t *testing.T) {
	require := require.New(t)

	a, b := ids.GenerateTestID(), ids.GenerateTestID()
	s := NewSettings()
	next, err := s.Apply(params.ConfigParams{
		params.AddBftLeader(a),
		params.AddBftLeader(b),
		params.AddBftLeader(a),
		params.RemoveBftLeader(b),
		params.Consensus(params.ConsensusGenesisPraos),
		params.Fee(params.LinearFee{Constant: 2, Coefficient: 1}),
	})
	require.NoError(err)
	require.Equal([]ids.ID{a}, next.BftLeaders)
	require.Equal(params.ConsensusGenesisPraos, next.Consensus)
	require.Equal(uint64(2), next.Fees.Constant)
	require.Empty(s.BftLeaders)
	require.Equal(params.ConsensusBft, s.Consensus)

	_, err = s.Apply(params.ConfigParams{params.SlotsPerEpoch(10)})
	require.ErrorIs(err, ErrReadOnlySetting)
}

func TestErrorsMatchSentinels(t *testing.T) {
	require := require.New(t)

	var err error = &UtxoValueNotMatchingError{Expected: 1, Value: 2}
	require.ErrorIs(err, ErrUtxoValueNotMatching)
	require.Contains(err.Error(), "utxo holds 2")
	require.ErrorIs(&NotBalancedError{}, ErrNotBalanced)
}
