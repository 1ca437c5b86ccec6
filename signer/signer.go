// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package signer holds the leader keys of a node and signs the headers
// it produces. Private keys never leave the enclave.
package signer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/praos/block"
	"github.com/ava-labs/praos/chaintime"
	"github.com/ava-labs/praos/crypto/ed25519"
	"github.com/ava-labs/praos/crypto/kes"
	"github.com/ava-labs/praos/crypto/vrf"
	"github.com/ava-labs/praos/leadership"
)

var (
	ErrNoBftKey       = errors.New("enclave has no BFT key")
	ErrNoPoolKeys     = errors.New("enclave has no pool keys")
	ErrWrongLeader    = errors.New("header is attributed to another leader")
	ErrNotLeader      = errors.New("not leader for the date")
	ErrDateRegression = errors.New("header date is not after the last signed one")
)

// PoolKeys are the Genesis Praos keys of a stake pool.
type PoolKeys struct {
	Pool ids.ID
	VRF  vrf.PrivateKey
	KES  kes.PrivateKey
}

// LeaderKeys are the keys a node produces blocks with. Either may be
// nil.
type LeaderKeys struct {
	Bft   *ed25519.PrivateKey
	Praos *PoolKeys
}

// Enclave signs headers with the keys it holds. It refuses to sign two
// headers for the same date.
type Enclave struct {
	keys LeaderKeys

	mu         sync.Mutex
	signed     bool
	lastSigned chaintime.BlockDate
}

func New(keys LeaderKeys) *Enclave {
	return &Enclave{keys: keys}
}

// LeaderID is the BFT leader id of the enclave.
func (e *Enclave) LeaderID() (ids.ID, bool) {
	if e.keys.Bft == nil {
		return ids.Empty, false
	}
	return e.keys.Bft.PublicKey().ID(), true
}

type vrfProver struct {
	sk vrf.PrivateKey
}

func (p vrfProver) Prove(input []byte) (vrf.Proof, vrf.Output, error) {
	return vrf.Prove(p.sk, input)
}

// Leader is the identity the enclave can win slots under.
func (e *Enclave) Leader() leadership.Leader {
	var l leadership.Leader
	if e.keys.Bft != nil {
		l.Bft = e.keys.Bft.PublicKey()
	}
	if e.keys.Praos != nil {
		l.Pool = e.keys.Praos.Pool
		l.VRF = vrfProver{sk: e.keys.Praos.VRF}
	}
	return l
}

// Sign signs [auth] with the BFT key.
func (e *Enclave) Sign(auth []byte) (ed25519.Signature, error) {
	if e.keys.Bft == nil {
		return ed25519.Signature{}, ErrNoBftKey
	}
	return ed25519.Sign(auth, *e.keys.Bft), nil
}

func (e *Enclave) advance(date chaintime.BlockDate) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.signed && !e.lastSigned.Less(date) {
		return fmt.Errorf("%w: %s after %s", ErrDateRegression, date, e.lastSigned)
	}
	e.signed = true
	e.lastSigned = date
	return nil
}

// FinalizeBft signs a BFT header.
func (e *Enclave) FinalizeBft(stage *block.BftSignatureStage) (*block.Header, error) {
	if e.keys.Bft == nil {
		return nil, ErrNoBftKey
	}
	if stage.Leader() != e.keys.Bft.PublicKey() {
		return nil, fmt.Errorf("%w: %s", ErrWrongLeader, stage.Leader())
	}
	if err := e.advance(stage.Date()); err != nil {
		return nil, err
	}
	return stage.Sign(ed25519.Sign(stage.AuthBytes(), *e.keys.Bft))
}

// FinalizePraos signs a Genesis Praos header in the KES period
// [schedule] expects for its date.
func (e *Enclave) FinalizePraos(stage *block.PraosSignatureStage, schedule *leadership.Leadership) (*block.Header, error) {
	if e.keys.Praos == nil {
		return nil, ErrNoPoolKeys
	}
	if stage.Pool() != e.keys.Praos.Pool {
		return nil, fmt.Errorf("%w: %s", ErrWrongLeader, stage.Pool())
	}
	period, err := schedule.KESPeriod(stage.Date())
	if err != nil {
		return nil, err
	}
	if err := e.advance(stage.Date()); err != nil {
		return nil, err
	}
	return stage.Sign(kes.Sign(e.keys.Praos.KES, period, stage.AuthBytes()))
}

// BuildHeader produces the header of [date] on top of [parent] if the
// enclave leads that slot in [schedule].
func (e *Enclave) BuildHeader(schedule *leadership.Leadership, parent *block.Header, contents *block.Contents, date chaintime.BlockDate) (*block.Header, error) {
	out, err := schedule.IsLeaderForDate(e.Leader(), date)
	if err != nil {
		return nil, err
	}

	var version block.Version
	switch out.Kind {
	case leadership.OutputBft:
		version = block.VersionBft
	case leadership.OutputGenesisPraos:
		version = block.VersionGenesisPraos
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotLeader, date)
	}
	stage, err := block.NewHeaderBuilder(version, contents).Parent(parent)
	if err != nil {
		return nil, err
	}
	common := stage.Date(date)
	if out.Kind == leadership.OutputBft {
		data, err := common.Bft()
		if err != nil {
			return nil, err
		}
		return e.FinalizeBft(data.Leader(out.Bft))
	}
	data, err := common.GenesisPraos()
	if err != nil {
		return nil, err
	}
	return e.FinalizePraos(data.Leader(out.Pool, out.Proof), schedule)
}
