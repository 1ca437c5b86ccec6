// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package leadership

import (
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/praos/address"
	"github.com/ava-labs/praos/block"
	"github.com/ava-labs/praos/chaintime"
	"github.com/ava-labs/praos/crypto/ed25519"
	"github.com/ava-labs/praos/crypto/kes"
	"github.com/ava-labs/praos/crypto/vrf"
	"github.com/ava-labs/praos/fragment"
	"github.com/ava-labs/praos/ledger"
	"github.com/ava-labs/praos/params"
)

type prover vrf.PrivateKey

func (p prover) Prove(input []byte) (vrf.Proof, vrf.Output, error) {
	return vrf.Prove(vrf.PrivateKey(p), input)
}

type env struct {
	bft     ed25519.PrivateKey
	vrf     vrf.PrivateKey
	kes     kes.PrivateKey
	pool    ids.ID
	idle    ids.ID
	ledger  *ledger.Ledger
	contents *block.Contents
}

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

// newEnv builds a ledger with a BFT leader, a pool holding [stake] and
// a second pool without stake.
func newEnv(t *testing.T, stake uint64, cp ...params.Param) *env {
	require := require.New(t)

	e := &env{bft: newKey(t), kes: newKey(t)}
	var err error
	e.vrf, err = vrf.GeneratePrivateKey()
	require.NoError(err)

	owner := newKey(t)
	reg := &fragment.PoolRegistration{
		ManagementThreshold: 1,
		Owners:              []ed25519.PublicKey{owner.PublicKey()},
		Rewards:             params.ZeroTax(),
		VRF:                 e.vrf.PublicKey(),
		KES:                 e.kes.PublicKey(),
	}
	e.pool, err = reg.ID()
	require.NoError(err)
	idle := *reg
	idle.Serial[0] = 1
	e.idle, err = idle.ID()
	require.NoError(err)

	initial := params.ConfigParams{
		params.Block0Date(0),
		params.Discrimination(address.Test),
		params.SlotDuration(1),
		params.SlotsPerEpoch(100),
		params.KESUpdateSpeed(10),
		params.AddBftLeader(e.bft.PublicKey().ID()),
	}
	initial = append(initial, cp...)
	account := newKey(t)
	fragments := []*fragment.Fragment{
		newFragment(t, &fragment.Initial{Params: initial}),
		newFragment(t, &fragment.Transaction{Certificate: reg, Auth: fragment.OwnersSignature{}}),
		newFragment(t, &fragment.Transaction{Certificate: &idle, Auth: fragment.OwnersSignature{}}),
	}
	if stake > 0 {
		fragments = append(fragments,
			newFragment(t, &fragment.Transaction{
				Outputs: []fragment.Output{{Address: address.Account(address.Test, account.PublicKey()), Value: stake}},
			}),
			newFragment(t, &fragment.Transaction{
				Certificate: &fragment.StakeDelegation{Account: account.PublicKey().ID(), Pool: e.pool},
				Auth:        fragment.AccountSignature{},
			}),
		)
	}
	e.ledger, err = ledger.New(ids.GenerateTestID(), fragments)
	require.NoError(err)
	e.contents, err = block.NewContents()
	require.NoError(err)
	return e
}

func praos(f, d params.Milli) []params.Param {
	return []params.Param{
		params.Consensus(params.ConsensusGenesisPraos),
		params.ActiveSlotsCoeff(f),
		params.BftSlotsRatio(d),
	}
}

func (e *env) common(t *testing.T, version block.Version, date chaintime.BlockDate) *block.CommonStage {
	stage, err := block.NewHeaderBuilder(version, e.contents).ParentID(ids.GenerateTestID(), 0)
	require.NoError(t, err)
	return stage.Date(date)
}

func (e *env) bftHeader(t *testing.T, date chaintime.BlockDate, signer ed25519.PrivateKey) *block.Header {
	require := require.New(t)

	data, err := e.common(t, block.VersionBft, date).Bft()
	require.NoError(err)
	stage := data.Leader(signer.PublicKey())
	h, err := stage.Sign(ed25519.Sign(stage.AuthBytes(), signer))
	require.NoError(err)
	return h
}

func (e *env) praosHeader(t *testing.T, date chaintime.BlockDate, pool ids.ID, proof vrf.Proof, period uint32) *block.Header {
	require := require.New(t)

	data, err := e.common(t, block.VersionGenesisPraos, date).GenesisPraos()
	require.NoError(err)
	stage := data.Leader(pool, proof)
	h, err := stage.Sign(kes.Sign(e.kes, period, stage.AuthBytes()))
	require.NoError(err)
	return h
}

func TestVerifyBft(t *testing.T) {
	require := require.New(t)

	e := newEnv(t, 0)
	l, err := New(0, e.ledger)
	require.NoError(err)
	require.Equal(params.ConsensusBft, l.Consensus())
	require.Nil(l.StakeDistribution())

	date := chaintime.BlockDate{Slot: 3}
	require.NoError(l.Verify(e.bftHeader(t, date, e.bft)))

	require.ErrorIs(l.Verify(e.bftHeader(t, date, newKey(t))), ErrInvalidLeader)
	require.ErrorIs(l.Verify(e.bftHeader(t, chaintime.BlockDate{Epoch: 1}, e.bft)), ErrEpochMismatch)

	// A header signed by the leader over other bytes.
	data, err := e.common(t, block.VersionBft, date).Bft()
	require.NoError(err)
	forged, err := data.Leader(e.bft.PublicKey()).Sign(ed25519.Sign([]byte("other"), e.bft))
	require.NoError(err)
	require.ErrorIs(l.Verify(forged), ErrInvalidLeaderSignature)

	vrfProof, _, err := prover(e.vrf).Prove([]byte{})
	require.NoError(err)
	require.ErrorIs(l.Verify(e.praosHeader(t, date, e.pool, vrfProof, 0)), ErrIncompatibleBlockVersion)
}

func TestBftRotation(t *testing.T) {
	require := require.New(t)

	second := newKey(t)
	e := newEnv(t, 0, params.AddBftLeader(second.PublicKey().ID()))
	l, err := New(0, e.ledger)
	require.NoError(err)

	leaders := e.ledger.Settings().BftLeaders
	for slot := uint32(0); slot < 4; slot++ {
		require.Equal(leaders[int(slot)%2], l.BftLeaderAt(slot))
	}
	for _, key := range []ed25519.PrivateKey{e.bft, second} {
		var won int
		for slot := uint32(0); slot < 10; slot++ {
			out, err := l.IsLeaderForDate(Leader{Bft: key.PublicKey()}, chaintime.BlockDate{Slot: slot})
			require.NoError(err)
			if out.Kind == OutputBft {
				won++
				require.Equal(key.PublicKey(), out.Bft)
				require.NoError(l.Verify(e.bftHeader(t, chaintime.BlockDate{Slot: slot}, key)))
			}
		}
		require.Equal(5, won)
	}
}

func TestPraosLeader(t *testing.T) {
	require := require.New(t)

	e := newEnv(t, 1000, praos(params.MilliOne, 0)...)
	l, err := New(0, e.ledger)
	require.NoError(err)
	require.Equal(params.ConsensusGenesisPraos, l.Consensus())
	require.Equal(e.ledger.Nonce(), l.Nonce())
	total, err := l.StakeDistribution().Total()
	require.NoError(err)
	require.Equal(uint64(1000), total)

	leader := Leader{Pool: e.pool, VRF: prover(e.vrf)}
	date := chaintime.BlockDate{Slot: 25}
	out, err := l.IsLeaderForDate(leader, date)
	require.NoError(err)
	require.Equal(OutputGenesisPraos, out.Kind)
	require.Equal(e.pool, out.Pool)

	period, err := l.KESPeriod(date)
	require.NoError(err)
	require.Equal(uint32(2), period)
	require.NoError(l.Verify(e.praosHeader(t, date, e.pool, out.Proof, period)))

	require.ErrorIs(l.Verify(e.praosHeader(t, date, e.pool, out.Proof, period+1)), ErrInvalidKESPeriod)
	require.ErrorIs(l.Verify(e.praosHeader(t, date, ids.GenerateTestID(), out.Proof, period)), ErrUnknownPool)
	require.ErrorIs(l.Verify(e.praosHeader(t, chaintime.BlockDate{Slot: 26}, e.pool, out.Proof, period)), ErrInvalidVRFProof)
	require.ErrorIs(l.Verify(e.bftHeader(t, date, e.bft)), ErrIncompatibleBlockVersion)

	// Signed with the right period but over other bytes.
	data, err := e.common(t, block.VersionGenesisPraos, date).GenesisPraos()
	require.NoError(err)
	forged, err := data.Leader(e.pool, out.Proof).Sign(kes.Sign(e.kes, period, []byte("other")))
	require.NoError(err)
	require.ErrorIs(l.Verify(forged), ErrInvalidKESSignature)
}

func TestPraosWithoutStakeIsNotEligible(t *testing.T) {
	require := require.New(t)

	e := newEnv(t, 1000, praos(params.MilliOne, 0)...)
	l, err := New(0, e.ledger)
	require.NoError(err)

	// The idle pool shares the VRF key but has no stake delegated.
	date := chaintime.BlockDate{Slot: 7}
	out, err := l.IsLeaderForDate(Leader{Pool: e.idle, VRF: prover(e.vrf)}, date)
	require.NoError(err)
	require.Equal(OutputNone, out.Kind)

	winning, err := l.IsLeaderForDate(Leader{Pool: e.pool, VRF: prover(e.vrf)}, date)
	require.NoError(err)
	require.Equal(OutputGenesisPraos, winning.Kind)
	require.ErrorIs(l.Verify(e.praosHeader(t, date, e.idle, winning.Proof, 0)), ErrNotEligible)

	out, err = l.IsLeaderForDate(Leader{Pool: e.pool}, date)
	require.NoError(err)
	require.Equal(OutputNone, out.Kind)
}

func TestBftSlotsInPraosEpoch(t *testing.T) {
	require := require.New(t)

	e := newEnv(t, 1000, praos(params.MilliOne, 500)...)
	l, err := New(0, e.ledger)
	require.NoError(err)
	for slot := uint32(0); slot < 10; slot++ {
		require.Equal(slot%2 == 1, l.IsBftSlot(slot), "slot %d", slot)
	}

	all := newEnv(t, 1000, praos(params.MilliOne, params.MilliOne)...)
	l, err = New(0, all.ledger)
	require.NoError(err)
	for slot := uint32(0); slot < 10; slot++ {
		require.True(l.IsBftSlot(slot))
	}
}

func TestPraosWithoutStakeFallsBackToBft(t *testing.T) {
	require := require.New(t)

	e := newEnv(t, 0, praos(params.MilliOne, 0)...)
	l, err := New(0, e.ledger)
	require.NoError(err)
	total, err := l.StakeDistribution().Total()
	require.NoError(err)
	require.Zero(total)

	for slot := uint32(0); slot < 10; slot++ {
		require.True(l.IsBftSlot(slot))
	}
	out, err := l.IsLeaderForDate(Leader{Bft: e.bft.PublicKey(), Pool: e.pool, VRF: prover(e.vrf)}, chaintime.BlockDate{Slot: 4})
	require.NoError(err)
	require.Equal(OutputBft, out.Kind)
	require.NoError(l.Verify(e.bftHeader(t, chaintime.BlockDate{Slot: 4}, e.bft)))
}

func TestIsLeaderForOtherEpoch(t *testing.T) {
	e := newEnv(t, 0)
	l, err := New(2, e.ledger)
	require.NoError(t, err)
	_, err = l.IsLeaderForDate(Leader{Bft: e.bft.PublicKey()}, chaintime.BlockDate{Epoch: 1})
	require.ErrorIs(t, err, ErrEpochMismatch)
}
