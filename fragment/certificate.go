// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fragment

import (
	"fmt"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/praos/chaintime"
	"github.com/ava-labs/praos/codec"
	"github.com/ava-labs/praos/consts"
	"github.com/ava-labs/praos/crypto/ed25519"
	"github.com/ava-labs/praos/crypto/kes"
	"github.com/ava-labs/praos/crypto/vrf"
	"github.com/ava-labs/praos/params"
	"github.com/ava-labs/praos/utils"
)

const (
	MaxPoolOwners     = 31
	MaxVotePlanItems  = 255
	MaxMultisigOwners = 255
)

type authKind uint8

const (
	authNone authKind = iota
	// authSignature is a single signature by a key named in the certificate.
	authSignature
	// authOwners is a quorum of pool owner signatures.
	authOwners
	// authSigner is a signature along with the signer's identifier.
	authSigner
)

// Auth authenticates a certificate over the transaction sign data hash.
// It is one of AccountSignature, OwnersSignature or SignerSignature.
type Auth interface {
	kind() authKind
}

type AccountSignature struct {
	Signature ed25519.Signature
}

type OwnersSignature struct {
	Signatures []IndexedSignature
}

type SignerSignature struct {
	Signer    ids.ID
	Signature ed25519.Signature
}

func (AccountSignature) kind() authKind { return authSignature }
func (OwnersSignature) kind() authKind  { return authOwners }
func (SignerSignature) kind() authKind  { return authSigner }

func marshalAuth(p *codec.Packer, want authKind, a Auth) {
	if want == authNone {
		if a != nil {
			p.AddErr(ErrUnexpectedAuth)
		}
		return
	}
	if a == nil || a.kind() != want {
		p.AddErr(fmt.Errorf("%w: want kind %d", ErrUnexpectedAuth, want))
		return
	}
	switch a := a.(type) {
	case AccountSignature:
		p.PackFixedBytes(a.Signature[:])
	case OwnersSignature:
		marshalIndexedSignatures(p, a.Signatures)
	case SignerSignature:
		p.PackID(a.Signer)
		p.PackFixedBytes(a.Signature[:])
	}
}

func unmarshalAuth(p *codec.Packer, kind authKind) (Auth, error) {
	switch kind {
	case authSignature:
		var a AccountSignature
		unpackArray(p, a.Signature[:])
		return a, p.Err()
	case authOwners:
		sigs, err := unmarshalIndexedSignatures(p)
		if err != nil {
			return nil, err
		}
		return OwnersSignature{Signatures: sigs}, nil
	case authSigner:
		var a SignerSignature
		p.UnpackID(true, &a.Signer)
		unpackArray(p, a.Signature[:])
		return a, p.Err()
	default:
		return nil, nil
	}
}

// Certificate is the payload of certificate-bearing transactions.
type Certificate interface {
	Tag() Tag
	authKind() authKind
	marshal(p *codec.Packer)
}

func unmarshalCertificate(tag Tag, p *codec.Packer) (Certificate, error) {
	var (
		c   Certificate
		err error
	)
	switch tag {
	case TagStakeDelegation:
		d := &StakeDelegation{}
		p.UnpackID(true, &d.Account)
		p.UnpackID(true, &d.Pool)
		c = d
	case TagOwnerStakeDelegation:
		d := &OwnerStakeDelegation{}
		p.UnpackID(true, &d.Pool)
		c = d
	case TagPoolRegistration:
		c, err = unmarshalPoolRegistration(p)
	case TagPoolRetirement:
		r := &PoolRetirement{}
		p.UnpackID(true, &r.Pool)
		r.RetirementTime = p.UnpackUint64(false)
		c = r
	case TagPoolUpdate:
		u := &PoolUpdate{}
		p.UnpackID(true, &u.Pool)
		p.UnpackID(true, &u.LastRegistration)
		var reg *PoolRegistration
		reg, err = unmarshalPoolRegistration(p)
		if reg != nil {
			u.Registration = *reg
		}
		c = u
	case TagUpdateProposal:
		u := &UpdateProposal{}
		p.UnpackID(true, &u.Proposer)
		u.Changes, err = params.UnmarshalConfigParams(p)
		c = u
	case TagUpdateVote:
		v := &UpdateVote{}
		p.UnpackID(true, &v.Proposal)
		p.UnpackID(true, &v.Voter)
		c = v
	case TagVotePlan:
		c, err = unmarshalVotePlan(p)
	case TagVoteCast:
		v := &VoteCast{}
		p.UnpackID(true, &v.Plan)
		v.Proposal = p.UnpackByte()
		v.Choice = p.UnpackByte()
		c = v
	case TagVoteTally:
		v := &VoteTally{}
		p.UnpackID(true, &v.Plan)
		c = v
	case TagMultisigDeclaration:
		c, err = unmarshalMultisigDeclaration(p)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownTag, tag)
	}
	if err != nil {
		return nil, err
	}
	return c, p.Err()
}

// StakeDelegation delegates the stake of Account to Pool. It is
// authenticated by the account key.
type StakeDelegation struct {
	Account ids.ID
	Pool    ids.ID
}

func (*StakeDelegation) Tag() Tag           { return TagStakeDelegation }
func (*StakeDelegation) authKind() authKind { return authSignature }
func (d *StakeDelegation) marshal(p *codec.Packer) {
	p.PackID(d.Account)
	p.PackID(d.Pool)
}

// OwnerStakeDelegation delegates the stake of the account spending the
// single input of the transaction.
type OwnerStakeDelegation struct {
	Pool ids.ID
}

func (*OwnerStakeDelegation) Tag() Tag           { return TagOwnerStakeDelegation }
func (*OwnerStakeDelegation) authKind() authKind { return authNone }
func (d *OwnerStakeDelegation) marshal(p *codec.Packer) {
	p.PackID(d.Pool)
}

// PoolRegistration registers a stake pool. The pool is identified by the
// digest of its serialization.
type PoolRegistration struct {
	Serial              [consts.Uint128Len]byte
	StartValidity       uint64
	ManagementThreshold uint8
	Owners              []ed25519.PublicKey
	Rewards             params.TaxType
	VRF                 vrf.PublicKey
	KES                 kes.PublicKey
}

func (*PoolRegistration) Tag() Tag           { return TagPoolRegistration }
func (*PoolRegistration) authKind() authKind { return authOwners }

func (r *PoolRegistration) marshal(p *codec.Packer) {
	if len(r.Owners) > MaxPoolOwners {
		p.AddErr(fmt.Errorf("%w: %d", ErrTooManyOwners, len(r.Owners)))
		return
	}
	p.PackFixedBytes(r.Serial[:])
	p.PackUint64(r.StartValidity)
	p.PackByte(r.ManagementThreshold)
	p.PackByte(byte(len(r.Owners)))
	for _, o := range r.Owners {
		p.PackFixedBytes(o[:])
	}
	r.Rewards.Marshal(p)
	p.PackFixedBytes(r.VRF[:])
	p.PackFixedBytes(r.KES[:])
}

// ID is the pool identifier.
func (r *PoolRegistration) ID() (ids.ID, error) {
	p := codec.NewWriter(256, consts.MaxBlockSize)
	r.marshal(p)
	if err := p.Err(); err != nil {
		return ids.Empty, err
	}
	return utils.ToID(p.Bytes()), nil
}

func unmarshalPoolRegistration(p *codec.Packer) (*PoolRegistration, error) {
	r := &PoolRegistration{}
	unpackArray(p, r.Serial[:])
	r.StartValidity = p.UnpackUint64(false)
	r.ManagementThreshold = p.UnpackByte()
	count := int(p.UnpackByte())
	if err := p.Err(); err != nil {
		return nil, err
	}
	if count > MaxPoolOwners {
		return nil, fmt.Errorf("%w: %d", ErrTooManyOwners, count)
	}
	if count > 0 {
		r.Owners = make([]ed25519.PublicKey, count)
	}
	for i := range r.Owners {
		unpackArray(p, r.Owners[i][:])
	}
	if err := p.Err(); err != nil {
		return nil, err
	}
	rewards, err := params.UnmarshalTaxType(p)
	if err != nil {
		return nil, err
	}
	r.Rewards = rewards
	unpackArray(p, r.VRF[:])
	unpackArray(p, r.KES[:])
	return r, p.Err()
}

// PoolRetirement retires Pool from RetirementTime on.
type PoolRetirement struct {
	Pool           ids.ID
	RetirementTime uint64
}

func (*PoolRetirement) Tag() Tag           { return TagPoolRetirement }
func (*PoolRetirement) authKind() authKind { return authOwners }
func (r *PoolRetirement) marshal(p *codec.Packer) {
	p.PackID(r.Pool)
	p.PackUint64(r.RetirementTime)
}

// PoolUpdate replaces the registration of Pool. LastRegistration must be
// the digest of the registration being replaced.
type PoolUpdate struct {
	Pool             ids.ID
	LastRegistration ids.ID
	Registration     PoolRegistration
}

func (*PoolUpdate) Tag() Tag           { return TagPoolUpdate }
func (*PoolUpdate) authKind() authKind { return authOwners }
func (u *PoolUpdate) marshal(p *codec.Packer) {
	p.PackID(u.Pool)
	p.PackID(u.LastRegistration)
	u.Registration.marshal(p)
}

// UpdateProposal proposes settings changes. Proposer must be a BFT leader
// and signs the proposal.
type UpdateProposal struct {
	Proposer ids.ID
	Changes  params.ConfigParams
}

func (*UpdateProposal) Tag() Tag           { return TagUpdateProposal }
func (*UpdateProposal) authKind() authKind { return authSignature }
func (u *UpdateProposal) marshal(p *codec.Packer) {
	p.PackID(u.Proposer)
	u.Changes.Marshal(p)
}

// UpdateVote is the vote of BFT leader Voter for Proposal.
type UpdateVote struct {
	Proposal ids.ID
	Voter    ids.ID
}

func (*UpdateVote) Tag() Tag           { return TagUpdateVote }
func (*UpdateVote) authKind() authKind { return authSignature }
func (v *UpdateVote) marshal(p *codec.Packer) {
	p.PackID(v.Proposal)
	p.PackID(v.Voter)
}

// VotePlan opens voting on Proposals between VoteStart and VoteEnd. The
// tally is accepted until CommitteeEnd. Each proposal offers Options
// choices.
type VotePlan struct {
	VoteStart    chaintime.BlockDate
	VoteEnd      chaintime.BlockDate
	CommitteeEnd chaintime.BlockDate
	Options      uint8
	Proposals    []ids.ID
}

func (*VotePlan) Tag() Tag           { return TagVotePlan }
func (*VotePlan) authKind() authKind { return authSigner }

func (v *VotePlan) marshal(p *codec.Packer) {
	if len(v.Proposals) > MaxVotePlanItems {
		p.AddErr(fmt.Errorf("%w: %d proposals", ErrTooManyItems, len(v.Proposals)))
		return
	}
	packDate(p, v.VoteStart)
	packDate(p, v.VoteEnd)
	packDate(p, v.CommitteeEnd)
	p.PackByte(v.Options)
	p.PackByte(byte(len(v.Proposals)))
	for _, id := range v.Proposals {
		p.PackID(id)
	}
}

// ID is the vote plan identifier.
func (v *VotePlan) ID() (ids.ID, error) {
	p := codec.NewWriter(256, consts.MaxBlockSize)
	v.marshal(p)
	if err := p.Err(); err != nil {
		return ids.Empty, err
	}
	return utils.ToID(p.Bytes()), nil
}

func unmarshalVotePlan(p *codec.Packer) (*VotePlan, error) {
	v := &VotePlan{
		VoteStart:    unpackDate(p),
		VoteEnd:      unpackDate(p),
		CommitteeEnd: unpackDate(p),
		Options:      p.UnpackByte(),
	}
	count := int(p.UnpackByte())
	if err := p.Err(); err != nil {
		return nil, err
	}
	if count > 0 {
		v.Proposals = make([]ids.ID, count)
	}
	for i := range v.Proposals {
		p.UnpackID(true, &v.Proposals[i])
	}
	if !v.VoteStart.Less(v.VoteEnd) || v.CommitteeEnd.Less(v.VoteEnd) {
		return nil, ErrInvalidPlanInterval
	}
	return v, p.Err()
}

// VoteCast records the choice of the account spending the single input
// of the transaction.
type VoteCast struct {
	Plan     ids.ID
	Proposal uint8
	Choice   uint8
}

func (*VoteCast) Tag() Tag           { return TagVoteCast }
func (*VoteCast) authKind() authKind { return authNone }
func (v *VoteCast) marshal(p *codec.Packer) {
	p.PackID(v.Plan)
	p.PackByte(v.Proposal)
	p.PackByte(v.Choice)
}

// VoteTally closes Plan. It is signed by a committee member.
type VoteTally struct {
	Plan ids.ID
}

func (*VoteTally) Tag() Tag           { return TagVoteTally }
func (*VoteTally) authKind() authKind { return authSigner }
func (v *VoteTally) marshal(p *codec.Packer) {
	p.PackID(v.Plan)
}

// MultisigDeclaration creates a multisig account spendable by Threshold
// of Owners. The account is identified by the digest of the declaration.
type MultisigDeclaration struct {
	Threshold uint8
	Owners    []ed25519.PublicKey
}

func (*MultisigDeclaration) Tag() Tag           { return TagMultisigDeclaration }
func (*MultisigDeclaration) authKind() authKind { return authNone }

func (d *MultisigDeclaration) marshal(p *codec.Packer) {
	if len(d.Owners) > MaxMultisigOwners {
		p.AddErr(fmt.Errorf("%w: %d", ErrTooManyOwners, len(d.Owners)))
		return
	}
	p.PackByte(d.Threshold)
	p.PackByte(byte(len(d.Owners)))
	for _, o := range d.Owners {
		p.PackFixedBytes(o[:])
	}
}

// ID is the multisig account identifier.
func (d *MultisigDeclaration) ID() (ids.ID, error) {
	p := codec.NewWriter(256, consts.MaxBlockSize)
	d.marshal(p)
	if err := p.Err(); err != nil {
		return ids.Empty, err
	}
	return utils.ToID(p.Bytes()), nil
}

func unmarshalMultisigDeclaration(p *codec.Packer) (*MultisigDeclaration, error) {
	d := &MultisigDeclaration{Threshold: p.UnpackByte()}
	count := int(p.UnpackByte())
	if err := p.Err(); err != nil {
		return nil, err
	}
	if count > 0 {
		d.Owners = make([]ed25519.PublicKey, count)
	}
	for i := range d.Owners {
		unpackArray(p, d.Owners[i][:])
	}
	return d, p.Err()
}

func packDate(p *codec.Packer, d chaintime.BlockDate) {
	p.PackUint32(d.Epoch)
	p.PackUint32(d.Slot)
}

func unpackDate(p *codec.Packer) chaintime.BlockDate {
	return chaintime.BlockDate{Epoch: p.UnpackUint32(), Slot: p.UnpackUint32()}
}
