// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package leadership

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/praos/block"
	"github.com/ava-labs/praos/chaintime"
	"github.com/ava-labs/praos/consts"
	"github.com/ava-labs/praos/crypto/ed25519"
	"github.com/ava-labs/praos/crypto/kes"
	"github.com/ava-labs/praos/crypto/vrf"
	"github.com/ava-labs/praos/ledger"
	"github.com/ava-labs/praos/params"

	safemath "github.com/ava-labs/avalanchego/utils/math"
)

type pool struct {
	stake uint64
	vrf   vrf.PublicKey
	kes   kes.PublicKey
}

// Leadership is the block production schedule of one epoch. It is built
// from the ledger holding the stake snapshot of the epoch and never
// changes afterwards.
type Leadership struct {
	epoch     uint32
	consensus params.ConsensusVersion
	era       *chaintime.TimeEra
	timeFrame *chaintime.TimeFrame
	params    ledger.Parameters
	static    ledger.StaticParameters

	bftLeaders []ids.ID

	nonce        ids.ID
	activeSlots  params.Milli
	bftRatio     params.Milli
	distribution *ledger.StakeDistribution
	pools        map[ids.ID]pool
	totalStake   uint64
}

// New captures the schedule of [epoch] from [l]. For Genesis Praos,
// [l] must be the ledger holding the stake snapshot the epoch is
// elected from.
func New(epoch uint32, l *ledger.Ledger) (*Leadership, error) {
	settings := l.Settings()
	ld := &Leadership{
		epoch:      epoch,
		consensus:  settings.Consensus,
		era:        l.Era(),
		timeFrame:  l.TimeFrame(),
		params:     l.Parameters(),
		static:     l.Static(),
		bftLeaders: settings.BftLeaders,
	}
	if len(ld.bftLeaders) == 0 {
		return nil, ErrNoBftLeader
	}
	switch ld.consensus {
	case params.ConsensusBft:
		return ld, nil
	case params.ConsensusGenesisPraos:
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownConsensus, ld.consensus)
	}

	dist, err := l.StakeDistribution()
	if err != nil {
		return nil, err
	}
	ld.nonce = l.Nonce()
	ld.activeSlots = settings.ActiveSlotsCoeff
	ld.bftRatio = settings.BftSlotsRatio
	ld.distribution = dist
	ld.pools = make(map[ids.ID]pool, len(dist.Pools))
	for id, stake := range dist.Pools {
		state, ok := l.Pool(id)
		if !ok {
			continue
		}
		ld.pools[id] = pool{
			stake: stake.Total,
			vrf:   state.Registration.VRF,
			kes:   state.Registration.KES,
		}
		if ld.totalStake, err = safemath.Add(ld.totalStake, stake.Total); err != nil {
			return nil, err
		}
	}
	return ld, nil
}

func (l *Leadership) Epoch() uint32                      { return l.epoch }
func (l *Leadership) Consensus() params.ConsensusVersion { return l.consensus }
func (l *Leadership) Era() *chaintime.TimeEra            { return l.era }
func (l *Leadership) TimeFrame() *chaintime.TimeFrame    { return l.timeFrame }
func (l *Leadership) Parameters() ledger.Parameters      { return l.params }
func (l *Leadership) Nonce() ids.ID                      { return l.nonce }

// StakeDistribution is nil for BFT epochs.
func (l *Leadership) StakeDistribution() *ledger.StakeDistribution {
	return l.distribution
}

// BftLeaderAt returns the BFT leader of [slot].
func (l *Leadership) BftLeaderAt(slot uint32) ids.ID {
	return l.bftLeaders[int(slot)%len(l.bftLeaders)]
}

// IsBftSlot reports whether [slot] of the epoch is produced by a BFT
// leader. Slot N is a BFT slot when floor((N+1)*d) > floor(N*d). Every
// slot is a BFT slot when no pool holds stake.
func (l *Leadership) IsBftSlot(slot uint32) bool {
	if l.consensus == params.ConsensusBft || l.totalStake == 0 {
		return true
	}
	d := uint64(l.bftRatio)
	n := uint64(slot)
	return (n+1)*d/uint64(params.MilliOne) > n*d/uint64(params.MilliOne)
}

// Verify checks that [h] was produced by the leader of its slot. It
// returns nil when the header is valid.
func (l *Leadership) Verify(h *block.Header) error {
	date := h.Date()
	if date.Epoch != l.epoch {
		return fmt.Errorf("%w: %d != %d", ErrEpochMismatch, date.Epoch, l.epoch)
	}
	if l.IsBftSlot(date.Slot) {
		return l.verifyBft(h)
	}
	return l.verifyPraos(h)
}

func (l *Leadership) verifyBft(h *block.Header) error {
	proof, ok := h.Bft()
	if !ok {
		return fmt.Errorf("%w: %s in a BFT slot", ErrIncompatibleBlockVersion, h.Version())
	}
	expected := l.BftLeaderAt(h.Date().Slot)
	if proof.Leader.ID() != expected {
		return fmt.Errorf("%w: %s instead of %s", ErrInvalidLeader, proof.Leader.ID(), expected)
	}
	if !ed25519.Verify(h.AuthBytes(), proof.Leader, proof.Signature) {
		return ErrInvalidLeaderSignature
	}
	return nil
}

func (l *Leadership) verifyPraos(h *block.Header) error {
	proof, ok := h.Praos()
	if !ok {
		return fmt.Errorf("%w: %s in a Genesis Praos slot", ErrIncompatibleBlockVersion, h.Version())
	}
	p, ok := l.pools[proof.Pool]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPool, proof.Pool)
	}
	date := h.Date()
	output, err := vrf.Verify(p.vrf, proof.VRF, l.vrfInput(date.Slot))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidVRFProof, err)
	}
	if !l.eligible(output, p.stake) {
		return fmt.Errorf("%w: %s at %s", ErrNotEligible, proof.Pool, date)
	}
	period, err := l.KESPeriod(date)
	if err != nil {
		return err
	}
	if proof.KES.Period() != period {
		return fmt.Errorf("%w: %d != %d", ErrInvalidKESPeriod, proof.KES.Period(), period)
	}
	if !kes.Verify(p.kes, period, h.AuthBytes(), proof.KES) {
		return ErrInvalidKESSignature
	}
	return nil
}

// vrfInput is the epoch nonce followed by the slot in little endian.
func (l *Leadership) vrfInput(slot uint32) []byte {
	b := make([]byte, consts.IDLen, consts.IDLen+consts.Uint32Len)
	copy(b, l.nonce[:])
	return binary.LittleEndian.AppendUint32(b, slot)
}

// eligible runs the lottery: a pool with relative stake s wins the slot
// when its VRF output is below 1 - (1 - f)^s.
func (l *Leadership) eligible(output vrf.Output, stake uint64) bool {
	if stake == 0 || l.totalStake == 0 {
		return false
	}
	f := l.activeSlots.Float64()
	sigma := float64(stake) / float64(l.totalStake)
	phi := 1 - math.Pow(1-f, sigma)
	return output.Threshold() < phi
}

// KESPeriod returns the KES period headers of [date] must be signed in.
func (l *Leadership) KESPeriod(date chaintime.BlockDate) (uint32, error) {
	slot, err := l.era.ToSlot(date.Epoch, date.Slot)
	if err != nil {
		return 0, err
	}
	elapsed := time.Duration(slot) * l.timeFrame.SlotDuration()
	return kes.Period(uint64(elapsed/time.Second), l.static.KESUpdateSpeed), nil
}
