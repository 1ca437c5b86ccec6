// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package block

import (
	"fmt"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/praos/chaintime"
	"github.com/ava-labs/praos/crypto/ed25519"
	"github.com/ava-labs/praos/crypto/kes"
	"github.com/ava-labs/praos/crypto/vrf"
)

// Headers are built in stages. Each stage only exposes the operations
// that are legal at that point and hands back the next stage:
//
//	NewHeaderBuilder -> ParentingStage -> DateStage -> CommonStage
//	CommonStage.Unsigned -> *Header
//	CommonStage.Bft -> BftDataStage -> BftSignatureStage -> *Header
//	CommonStage.GenesisPraos -> PraosDataStage -> PraosSignatureStage -> *Header

type ParentingStage struct {
	common Common
}

// NewHeaderBuilder starts a header of [version] committing to [contents].
func NewHeaderBuilder(version Version, contents *Contents) *ParentingStage {
	return &ParentingStage{common: Common{
		Version:     version,
		ContentSize: contents.Size(),
		ContentHash: contents.Hash(),
	}}
}

// Genesis marks the header as block0: no parent and chain length 0.
func (s *ParentingStage) Genesis() *DateStage {
	c := s.common
	c.Parent = ids.Empty
	c.ChainLength = 0
	return &DateStage{common: c}
}

// Parent links the header to [parent].
func (s *ParentingStage) Parent(parent *Header) (*DateStage, error) {
	length, err := parent.ChainLength().Next()
	if err != nil {
		return nil, err
	}
	c := s.common
	c.Parent = parent.ID()
	c.ChainLength = length
	return &DateStage{common: c}, nil
}

// ParentID links the header to a parent known only by identifier and
// chain length.
func (s *ParentingStage) ParentID(parent ids.ID, parentLength ChainLength) (*DateStage, error) {
	length, err := parentLength.Next()
	if err != nil {
		return nil, err
	}
	c := s.common
	c.Parent = parent
	c.ChainLength = length
	return &DateStage{common: c}, nil
}

type DateStage struct {
	common Common
}

func (s *DateStage) Date(date chaintime.BlockDate) *CommonStage {
	c := s.common
	c.Date = date
	return &CommonStage{common: c}
}

type CommonStage struct {
	common Common
}

func (s *CommonStage) expect(v Version) error {
	if s.common.Version != v {
		return fmt.Errorf("%w: builder is %s, not %s", ErrVersionMismatch, s.common.Version, v)
	}
	return nil
}

// Unsigned finalizes a header without proof.
func (s *CommonStage) Unsigned() (*Header, error) {
	if err := s.expect(VersionUnsigned); err != nil {
		return nil, err
	}
	return newHeader(s.common, ProofNone{})
}

func (s *CommonStage) Bft() (*BftDataStage, error) {
	if err := s.expect(VersionBft); err != nil {
		return nil, err
	}
	return &BftDataStage{common: s.common}, nil
}

func (s *CommonStage) GenesisPraos() (*PraosDataStage, error) {
	if err := s.expect(VersionGenesisPraos); err != nil {
		return nil, err
	}
	return &PraosDataStage{common: s.common}, nil
}

type BftDataStage struct {
	common Common
}

func (s *BftDataStage) Leader(leader ed25519.PublicKey) *BftSignatureStage {
	proof := ProofBft{Leader: leader}
	return &BftSignatureStage{common: s.common, proof: proof, auth: authBytes(s.common, &proof)}
}

type BftSignatureStage struct {
	common Common
	proof  ProofBft
	auth   []byte
}

// AuthBytes returns the bytes the leader must sign.
func (s *BftSignatureStage) AuthBytes() []byte { return s.auth }

// Leader returns the leader the header will be attributed to.
func (s *BftSignatureStage) Leader() ed25519.PublicKey { return s.proof.Leader }

func (s *BftSignatureStage) Date() chaintime.BlockDate { return s.common.Date }

func (s *BftSignatureStage) Sign(signature ed25519.Signature) (*Header, error) {
	proof := s.proof
	proof.Signature = signature
	return newHeader(s.common, &proof)
}

type PraosDataStage struct {
	common Common
}

func (s *PraosDataStage) Leader(pool ids.ID, proof vrf.Proof) *PraosSignatureStage {
	gp := ProofGenesisPraos{Pool: pool, VRF: proof}
	return &PraosSignatureStage{common: s.common, proof: gp, auth: authBytes(s.common, &gp)}
}

type PraosSignatureStage struct {
	common Common
	proof  ProofGenesisPraos
	auth   []byte
}

// AuthBytes returns the bytes the pool must sign with its KES key.
func (s *PraosSignatureStage) AuthBytes() []byte { return s.auth }

func (s *PraosSignatureStage) Pool() ids.ID { return s.proof.Pool }

func (s *PraosSignatureStage) Date() chaintime.BlockDate { return s.common.Date }

func (s *PraosSignatureStage) Sign(signature kes.Signature) (*Header, error) {
	proof := s.proof
	proof.KES = signature
	return newHeader(s.common, &proof)
}

func authBytes(common Common, proof Proof) []byte {
	// The signature part of the proof is zero at this point and is cut
	// off by the slice.
	h, err := newHeader(common, proof)
	if err != nil {
		panic(err)
	}
	return h.AuthBytes()
}
