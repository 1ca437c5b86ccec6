// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package params

import (
	"fmt"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/praos/address"
	"github.com/ava-labs/praos/codec"
	"github.com/ava-labs/praos/consts"
)

// Tag identifies a config parameter. On the wire a parameter starts with
// a 16-bit word holding tag<<6 | len, followed by len bytes of payload.
type Tag uint16

const (
	TagBlock0Date                      Tag = 1
	TagDiscrimination                  Tag = 2
	TagConsensusVersion                Tag = 3
	TagSlotsPerEpoch                   Tag = 4
	TagSlotDuration                    Tag = 5
	TagEpochStabilityDepth             Tag = 6
	TagActiveSlotsCoeff                Tag = 8
	TagMaxNumberOfTransactionsPerBlock Tag = 9
	TagBftSlotsRatio                   Tag = 10
	TagAddBftLeader                    Tag = 11
	TagRemoveBftLeader                 Tag = 12
	TagLinearFee                       Tag = 13
	TagProposalExpiration              Tag = 14
	TagKESUpdateSpeed                  Tag = 15
	TagTreasuryAdd                     Tag = 16
	TagTreasuryParams                  Tag = 17
	TagRewardPot                       Tag = 18
	TagRewardParams                    Tag = 19
	TagFeesGoTo                        Tag = 21
	TagAddCommitteeID                  Tag = 23
	TagRemoveCommitteeID               Tag = 24

	maxTag     = 1<<10 - 1
	lenBits    = 6
	lenMask    = 1<<lenBits - 1
	MaxParams  = 255
	maxPayload = lenMask
)

// Param is one config parameter.
type Param interface {
	Tag() Tag
	size() int
	marshal(p *codec.Packer)
}

type (
	// Block0Date is the unix time, in seconds, of block0.
	Block0Date                      uint64
	Discrimination                  address.Discrimination
	Consensus                       ConsensusVersion
	SlotsPerEpoch                   uint32
	SlotDuration                    uint8
	EpochStabilityDepth             uint32
	ActiveSlotsCoeff                Milli
	MaxNumberOfTransactionsPerBlock uint32
	BftSlotsRatio                   Milli
	AddBftLeader                    ids.ID
	RemoveBftLeader                 ids.ID
	Fee                             LinearFee
	ProposalExpiration              uint32
	KESUpdateSpeed                  uint32
	TreasuryAdd                     uint64
	TreasuryParams                  TaxType
	RewardPot                       uint64
	Rewards                         RewardParams
	FeesDestination                 FeesGoTo
	AddCommitteeID                  ids.ID
	RemoveCommitteeID               ids.ID
)

func (Block0Date) Tag() Tag                      { return TagBlock0Date }
func (Discrimination) Tag() Tag                  { return TagDiscrimination }
func (Consensus) Tag() Tag                       { return TagConsensusVersion }
func (SlotsPerEpoch) Tag() Tag                   { return TagSlotsPerEpoch }
func (SlotDuration) Tag() Tag                    { return TagSlotDuration }
func (EpochStabilityDepth) Tag() Tag             { return TagEpochStabilityDepth }
func (ActiveSlotsCoeff) Tag() Tag                { return TagActiveSlotsCoeff }
func (MaxNumberOfTransactionsPerBlock) Tag() Tag { return TagMaxNumberOfTransactionsPerBlock }
func (BftSlotsRatio) Tag() Tag                   { return TagBftSlotsRatio }
func (AddBftLeader) Tag() Tag                    { return TagAddBftLeader }
func (RemoveBftLeader) Tag() Tag                 { return TagRemoveBftLeader }
func (Fee) Tag() Tag                             { return TagLinearFee }
func (ProposalExpiration) Tag() Tag              { return TagProposalExpiration }
func (KESUpdateSpeed) Tag() Tag                  { return TagKESUpdateSpeed }
func (TreasuryAdd) Tag() Tag                     { return TagTreasuryAdd }
func (TreasuryParams) Tag() Tag                  { return TagTreasuryParams }
func (RewardPot) Tag() Tag                       { return TagRewardPot }
func (Rewards) Tag() Tag                         { return TagRewardParams }
func (FeesDestination) Tag() Tag                 { return TagFeesGoTo }
func (AddCommitteeID) Tag() Tag                  { return TagAddCommitteeID }
func (RemoveCommitteeID) Tag() Tag               { return TagRemoveCommitteeID }

func (Block0Date) size() int                      { return consts.Uint64Len }
func (Discrimination) size() int                  { return consts.ByteLen }
func (Consensus) size() int                       { return consts.Uint16Len }
func (SlotsPerEpoch) size() int                   { return consts.Uint32Len }
func (SlotDuration) size() int                    { return consts.ByteLen }
func (EpochStabilityDepth) size() int             { return consts.Uint32Len }
func (ActiveSlotsCoeff) size() int                { return consts.Uint64Len }
func (MaxNumberOfTransactionsPerBlock) size() int { return consts.Uint32Len }
func (BftSlotsRatio) size() int                   { return consts.Uint64Len }
func (AddBftLeader) size() int                    { return consts.IDLen }
func (RemoveBftLeader) size() int                 { return consts.IDLen }
func (Fee) size() int                             { return linearFeeLen }
func (ProposalExpiration) size() int              { return consts.Uint32Len }
func (KESUpdateSpeed) size() int                  { return consts.Uint32Len }
func (TreasuryAdd) size() int                     { return consts.Uint64Len }
func (TreasuryParams) size() int                  { return taxTypeLen }
func (RewardPot) size() int                       { return consts.Uint64Len }
func (Rewards) size() int                         { return rewardParamsLen }
func (FeesDestination) size() int                 { return consts.ByteLen }
func (AddCommitteeID) size() int                  { return consts.IDLen }
func (RemoveCommitteeID) size() int               { return consts.IDLen }

func (v Block0Date) marshal(p *codec.Packer)                      { p.PackUint64(uint64(v)) }
func (v Discrimination) marshal(p *codec.Packer)                  { p.PackByte(byte(v)) }
func (v Consensus) marshal(p *codec.Packer)                       { p.PackUint16(uint16(v)) }
func (v SlotsPerEpoch) marshal(p *codec.Packer)                   { p.PackUint32(uint32(v)) }
func (v SlotDuration) marshal(p *codec.Packer)                    { p.PackByte(byte(v)) }
func (v EpochStabilityDepth) marshal(p *codec.Packer)             { p.PackUint32(uint32(v)) }
func (v ActiveSlotsCoeff) marshal(p *codec.Packer)                { p.PackUint64(uint64(v)) }
func (v MaxNumberOfTransactionsPerBlock) marshal(p *codec.Packer) { p.PackUint32(uint32(v)) }
func (v BftSlotsRatio) marshal(p *codec.Packer)                   { p.PackUint64(uint64(v)) }
func (v AddBftLeader) marshal(p *codec.Packer)                    { p.PackID(ids.ID(v)) }
func (v RemoveBftLeader) marshal(p *codec.Packer)                 { p.PackID(ids.ID(v)) }
func (v ProposalExpiration) marshal(p *codec.Packer)              { p.PackUint32(uint32(v)) }
func (v KESUpdateSpeed) marshal(p *codec.Packer)                  { p.PackUint32(uint32(v)) }
func (v TreasuryAdd) marshal(p *codec.Packer)                     { p.PackUint64(uint64(v)) }
func (v TreasuryParams) marshal(p *codec.Packer)                  { TaxType(v).Marshal(p) }
func (v RewardPot) marshal(p *codec.Packer)                       { p.PackUint64(uint64(v)) }
func (v Rewards) marshal(p *codec.Packer)                         { RewardParams(v).marshal(p) }
func (v FeesDestination) marshal(p *codec.Packer)                 { p.PackByte(byte(v)) }
func (v AddCommitteeID) marshal(p *codec.Packer)                  { p.PackID(ids.ID(v)) }
func (v RemoveCommitteeID) marshal(p *codec.Packer)               { p.PackID(ids.ID(v)) }

func (v Fee) marshal(p *codec.Packer) {
	p.PackUint64(v.Constant)
	p.PackUint64(v.Coefficient)
	p.PackUint64(v.Certificate)
}

// MarshalParam writes the tag/length word followed by the payload.
func MarshalParam(p *codec.Packer, param Param) {
	size := param.size()
	if size > maxPayload || param.Tag() > maxTag {
		p.AddErr(fmt.Errorf("%w: tag %d with %d bytes", ErrSizeInvalid, param.Tag(), size))
		return
	}
	p.PackUint16(uint16(param.Tag())<<lenBits | uint16(size))
	param.marshal(p)
}

// ParamSize is the number of bytes MarshalParam writes for [param].
func ParamSize(param Param) int {
	return consts.Uint16Len + param.size()
}

// UnmarshalParam reads one parameter.
func UnmarshalParam(p *codec.Packer) (Param, error) {
	tagLen := p.UnpackUint16()
	if err := p.Err(); err != nil {
		return nil, err
	}
	tag := Tag(tagLen >> lenBits)
	size := int(tagLen & lenMask)
	var payload []byte
	p.UnpackFixedBytes(size, &payload)
	if err := p.Err(); err != nil {
		return nil, err
	}
	return parsePayload(tag, payload)
}

var payloadSizes = map[Tag]int{
	TagBlock0Date:                      consts.Uint64Len,
	TagDiscrimination:                  consts.ByteLen,
	TagConsensusVersion:                consts.Uint16Len,
	TagSlotsPerEpoch:                   consts.Uint32Len,
	TagSlotDuration:                    consts.ByteLen,
	TagEpochStabilityDepth:             consts.Uint32Len,
	TagActiveSlotsCoeff:                consts.Uint64Len,
	TagMaxNumberOfTransactionsPerBlock: consts.Uint32Len,
	TagBftSlotsRatio:                   consts.Uint64Len,
	TagAddBftLeader:                    consts.IDLen,
	TagRemoveBftLeader:                 consts.IDLen,
	TagLinearFee:                       linearFeeLen,
	TagProposalExpiration:              consts.Uint32Len,
	TagKESUpdateSpeed:                  consts.Uint32Len,
	TagTreasuryAdd:                     consts.Uint64Len,
	TagTreasuryParams:                  taxTypeLen,
	TagRewardPot:                       consts.Uint64Len,
	TagRewardParams:                    rewardParamsLen,
	TagFeesGoTo:                        consts.ByteLen,
	TagAddCommitteeID:                  consts.IDLen,
	TagRemoveCommitteeID:               consts.IDLen,
}

func expectSize(tag Tag, payload []byte, size int) error {
	if len(payload) != size {
		return fmt.Errorf("%w: tag %d expects %d bytes, got %d", ErrSizeInvalid, tag, size, len(payload))
	}
	return nil
}

func parsePayload(tag Tag, payload []byte) (Param, error) {
	size, ok := payloadSizes[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTag, tag)
	}
	if err := expectSize(tag, payload, size); err != nil {
		return nil, err
	}

	p := codec.NewReader(payload, len(payload))
	var param Param
	switch tag {
	case TagBlock0Date:
		param = Block0Date(p.UnpackUint64(false))
	case TagDiscrimination:
		d := address.Discrimination(p.UnpackByte())
		if !d.Valid() {
			return nil, fmt.Errorf("%w: discrimination %d", ErrStructureInvalid, d)
		}
		param = Discrimination(d)
	case TagConsensusVersion:
		c := ConsensusVersion(p.UnpackUint16())
		if c != ConsensusBft && c != ConsensusGenesisPraos {
			return nil, fmt.Errorf("%w: consensus version %d", ErrStructureInvalid, c)
		}
		param = Consensus(c)
	case TagSlotsPerEpoch:
		param = SlotsPerEpoch(p.UnpackUint32())
	case TagSlotDuration:
		param = SlotDuration(p.UnpackByte())
	case TagEpochStabilityDepth:
		param = EpochStabilityDepth(p.UnpackUint32())
	case TagActiveSlotsCoeff:
		f := Milli(p.UnpackUint64(false))
		if f == 0 || f > MilliOne {
			return nil, fmt.Errorf("%w: active slots coefficient %s", ErrStructureInvalid, f)
		}
		param = ActiveSlotsCoeff(f)
	case TagMaxNumberOfTransactionsPerBlock:
		param = MaxNumberOfTransactionsPerBlock(p.UnpackUint32())
	case TagBftSlotsRatio:
		d := Milli(p.UnpackUint64(false))
		if d > MilliOne {
			return nil, fmt.Errorf("%w: bft slots ratio %s", ErrStructureInvalid, d)
		}
		param = BftSlotsRatio(d)
	case TagAddBftLeader, TagRemoveBftLeader, TagAddCommitteeID, TagRemoveCommitteeID:
		var id ids.ID
		p.UnpackID(true, &id)
		switch tag {
		case TagAddBftLeader:
			param = AddBftLeader(id)
		case TagRemoveBftLeader:
			param = RemoveBftLeader(id)
		case TagAddCommitteeID:
			param = AddCommitteeID(id)
		default:
			param = RemoveCommitteeID(id)
		}
	case TagLinearFee:
		param = Fee{
			Constant:    p.UnpackUint64(false),
			Coefficient: p.UnpackUint64(false),
			Certificate: p.UnpackUint64(false),
		}
	case TagProposalExpiration:
		param = ProposalExpiration(p.UnpackUint32())
	case TagKESUpdateSpeed:
		param = KESUpdateSpeed(p.UnpackUint32())
	case TagTreasuryAdd:
		param = TreasuryAdd(p.UnpackUint64(false))
	case TagTreasuryParams:
		t, err := UnmarshalTaxType(p)
		if err != nil {
			return nil, err
		}
		param = TreasuryParams(t)
	case TagRewardPot:
		param = RewardPot(p.UnpackUint64(false))
	case TagRewardParams:
		r, err := unmarshalRewardParams(p)
		if err != nil {
			return nil, err
		}
		param = Rewards(r)
	case TagFeesGoTo:
		f := FeesGoTo(p.UnpackByte())
		if f != FeesGoToRewards && f != FeesGoToTreasury {
			return nil, fmt.Errorf("%w: fees go to %d", ErrStructureInvalid, f)
		}
		param = FeesDestination(f)
	}
	if err := p.Done(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStructureInvalid, err)
	}
	return param, nil
}

// ConfigParams is an ordered list of parameters, packed behind a
// 16-bit count.
type ConfigParams []Param

func (c ConfigParams) Size() int {
	size := consts.Uint16Len
	for _, param := range c {
		size += ParamSize(param)
	}
	return size
}

func (c ConfigParams) Marshal(p *codec.Packer) {
	if len(c) > MaxParams {
		p.AddErr(fmt.Errorf("%w: %d", ErrTooManyParameters, len(c)))
		return
	}
	p.PackUint16(uint16(len(c)))
	for _, param := range c {
		MarshalParam(p, param)
	}
}

func UnmarshalConfigParams(p *codec.Packer) (ConfigParams, error) {
	count := int(p.UnpackUint16())
	if err := p.Err(); err != nil {
		return nil, err
	}
	if count > MaxParams {
		return nil, fmt.Errorf("%w: %d", ErrTooManyParameters, count)
	}
	c := make(ConfigParams, 0, count)
	for i := 0; i < count; i++ {
		param, err := UnmarshalParam(p)
		if err != nil {
			return nil, err
		}
		c = append(c, param)
	}
	return c, nil
}
