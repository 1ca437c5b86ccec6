// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package leadership

import (
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/praos/chaintime"
	"github.com/ava-labs/praos/crypto/ed25519"
	"github.com/ava-labs/praos/crypto/vrf"
)

// VRFProver evaluates the VRF of a pool without exposing its key.
type VRFProver interface {
	Prove(input []byte) (vrf.Proof, vrf.Output, error)
}

// Leader is the identity a node may produce blocks under. Either side
// can be left empty.
type Leader struct {
	Bft  ed25519.PublicKey
	Pool ids.ID
	VRF  VRFProver
}

type OutputKind uint8

const (
	OutputNone OutputKind = iota
	OutputBft
	OutputGenesisPraos
)

// LeaderOutput tells whether a leader won a slot and, for Genesis Praos,
// carries the VRF proof to put in the header.
type LeaderOutput struct {
	Kind  OutputKind
	Bft   ed25519.PublicKey
	Pool  ids.ID
	Proof vrf.Proof
}

// IsLeaderForDate reports whether [leader] is expected to produce the
// block of [date].
func (l *Leadership) IsLeaderForDate(leader Leader, date chaintime.BlockDate) (LeaderOutput, error) {
	if date.Epoch != l.epoch {
		return LeaderOutput{}, ErrEpochMismatch
	}
	if l.IsBftSlot(date.Slot) {
		if leader.Bft == ed25519.EmptyPublicKey || leader.Bft.ID() != l.BftLeaderAt(date.Slot) {
			return LeaderOutput{}, nil
		}
		return LeaderOutput{Kind: OutputBft, Bft: leader.Bft}, nil
	}

	if leader.VRF == nil {
		return LeaderOutput{}, nil
	}
	p, ok := l.pools[leader.Pool]
	if !ok {
		return LeaderOutput{}, nil
	}
	proof, output, err := leader.VRF.Prove(l.vrfInput(date.Slot))
	if err != nil {
		return LeaderOutput{}, err
	}
	if !l.eligible(output, p.stake) {
		return LeaderOutput{}, nil
	}
	return LeaderOutput{Kind: OutputGenesisPraos, Pool: leader.Pool, Proof: proof}, nil
}
