// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fragment

import (
	"fmt"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/praos/codec"
	"github.com/ava-labs/praos/consts"
	"github.com/ava-labs/praos/params"
	"github.com/ava-labs/praos/utils"
)

type Tag uint8

const (
	TagInitial              Tag = 0
	TagOldUtxoDeclaration   Tag = 1
	TagTransaction          Tag = 2
	TagOwnerStakeDelegation Tag = 3
	TagStakeDelegation      Tag = 4
	TagPoolRegistration     Tag = 5
	TagPoolRetirement       Tag = 6
	TagPoolUpdate           Tag = 7
	TagUpdateProposal       Tag = 8
	TagUpdateVote           Tag = 9
	TagVotePlan             Tag = 10
	TagVoteCast             Tag = 11
	TagVoteTally            Tag = 12
	TagMultisigDeclaration  Tag = 13
)

var tagNames = map[Tag]string{
	TagInitial:              "initial",
	TagOldUtxoDeclaration:   "old_utxo_declaration",
	TagTransaction:          "transaction",
	TagOwnerStakeDelegation: "owner_stake_delegation",
	TagStakeDelegation:      "stake_delegation",
	TagPoolRegistration:     "pool_registration",
	TagPoolRetirement:       "pool_retirement",
	TagPoolUpdate:           "pool_update",
	TagUpdateProposal:       "update_proposal",
	TagUpdateVote:           "update_vote",
	TagVotePlan:             "vote_plan",
	TagVoteCast:             "vote_cast",
	TagVoteTally:            "vote_tally",
	TagMultisigDeclaration:  "multisig_declaration",
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tag(%d)", uint8(t))
}

// Content is the payload of a fragment. It is one of *Initial,
// *OldUtxoDeclaration or *Transaction.
type Content interface {
	Tag() Tag
	marshal(p *codec.Packer)
}

// Fragment is a unit of ledger-affecting content carried inside a block.
// Its raw form is 0x00 || tag || content and its identifier is the
// blake2b-256 digest of the raw form.
type Fragment struct {
	content Content

	raw []byte
	id  ids.ID
}

// New serializes [c] and computes its identifier.
func New(c Content) (*Fragment, error) {
	p := codec.NewWriter(256, consts.MaxBlockSize)
	p.PackByte(0)
	p.PackByte(byte(c.Tag()))
	c.marshal(p)
	if err := p.Err(); err != nil {
		return nil, err
	}
	raw := p.Bytes()
	return &Fragment{content: c, raw: raw, id: utils.ToID(raw)}, nil
}

func (f *Fragment) Content() Content { return f.content }
func (f *Fragment) Tag() Tag         { return f.content.Tag() }
func (f *Fragment) ID() ids.ID       { return f.id }
func (f *Fragment) Bytes() []byte    { return f.raw }

// Transaction returns the transaction carried by the fragment, if any.
func (f *Fragment) Transaction() (*Transaction, bool) {
	tx, ok := f.content.(*Transaction)
	return tx, ok
}

// Unmarshal decodes a raw fragment.
func Unmarshal(raw []byte) (*Fragment, error) {
	p := codec.NewReader(raw, consts.MaxBlockSize)
	if padding := p.UnpackByte(); padding != 0 {
		if err := p.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %d", ErrInvalidPadding, padding)
	}
	tag := Tag(p.UnpackByte())
	if err := p.Err(); err != nil {
		return nil, err
	}

	var (
		c   Content
		err error
	)
	switch tag {
	case TagInitial:
		var cp params.ConfigParams
		cp, err = params.UnmarshalConfigParams(p)
		c = &Initial{Params: cp}
	case TagOldUtxoDeclaration:
		c, err = unmarshalOldUtxoDeclaration(p)
	case TagTransaction, TagOwnerStakeDelegation, TagStakeDelegation,
		TagPoolRegistration, TagPoolRetirement, TagPoolUpdate,
		TagUpdateProposal, TagUpdateVote, TagVotePlan, TagVoteCast,
		TagVoteTally, TagMultisigDeclaration:
		c, err = unmarshalTransaction(tag, p)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownTag, tag)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot decode %s fragment: %w", tag, err)
	}
	if err := p.Done(); err != nil {
		return nil, fmt.Errorf("cannot decode %s fragment: %w", tag, err)
	}
	own := make([]byte, len(raw))
	copy(own, raw)
	return &Fragment{content: c, raw: own, id: utils.ToID(own)}, nil
}

// Initial carries the block0 configuration.
type Initial struct {
	Params params.ConfigParams
}

func (*Initial) Tag() Tag { return TagInitial }

func (i *Initial) marshal(p *codec.Packer) {
	i.Params.Marshal(p)
}

// LegacyOutput is a utxo inherited from a previous chain. The address is
// the digest of the public key allowed to spend it.
type LegacyOutput struct {
	Address ids.ID
	Value   uint64
}

const MaxLegacyOutputs = 255

// OldUtxoDeclaration declares legacy utxos at block0.
type OldUtxoDeclaration struct {
	Outputs []LegacyOutput
}

func (*OldUtxoDeclaration) Tag() Tag { return TagOldUtxoDeclaration }

func (d *OldUtxoDeclaration) marshal(p *codec.Packer) {
	if len(d.Outputs) == 0 || len(d.Outputs) > MaxLegacyOutputs {
		p.AddErr(fmt.Errorf("%w: %d legacy outputs", ErrTooManyItems, len(d.Outputs)))
		return
	}
	p.PackByte(byte(len(d.Outputs)))
	for _, o := range d.Outputs {
		p.PackID(o.Address)
		p.PackUint64(o.Value)
	}
}

func unmarshalOldUtxoDeclaration(p *codec.Packer) (*OldUtxoDeclaration, error) {
	count := int(p.UnpackByte())
	if err := p.Err(); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrEmptyDeclaration
	}
	d := &OldUtxoDeclaration{Outputs: make([]LegacyOutput, count)}
	for i := range d.Outputs {
		p.UnpackID(true, &d.Outputs[i].Address)
		d.Outputs[i].Value = p.UnpackUint64(false)
	}
	return d, p.Err()
}

// LegacyAddress is the address of legacy utxos spendable by [pk].
func LegacyAddress(pk []byte) ids.ID {
	return utils.ToID(pk)
}
