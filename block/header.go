// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package block

import (
	"fmt"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/praos/chaintime"
	"github.com/ava-labs/praos/codec"
	"github.com/ava-labs/praos/consts"
	"github.com/ava-labs/praos/crypto/ed25519"
	"github.com/ava-labs/praos/crypto/kes"
	"github.com/ava-labs/praos/crypto/vrf"
	"github.com/ava-labs/praos/utils"
)

const (
	// CommonLen is the size of the fields shared by every header version.
	CommonLen = consts.Uint16Len + 4*consts.Uint32Len + 2*consts.IDLen

	BftProofLen          = ed25519.PublicKeyLen + ed25519.SignatureLen
	GenesisPraosProofLen = consts.IDLen + vrf.ProofLen + kes.SignatureLen

	MaxHeaderLen = CommonLen + GenesisPraosProofLen
)

// Common holds the fields shared by every header version.
type Common struct {
	Version     Version
	ContentSize uint32
	Date        chaintime.BlockDate
	ChainLength ChainLength
	ContentHash ids.ID
	Parent      ids.ID
}

func (c *Common) marshal(p *codec.Packer) {
	p.PackUint16(uint16(c.Version))
	p.PackUint32(c.ContentSize)
	p.PackUint32(c.Date.Epoch)
	p.PackUint32(c.Date.Slot)
	p.PackUint32(uint32(c.ChainLength))
	p.PackID(c.ContentHash)
	p.PackID(c.Parent)
}

func unmarshalCommon(p *codec.Packer) Common {
	c := Common{
		Version:     Version(p.UnpackUint16()),
		ContentSize: p.UnpackUint32(),
	}
	c.Date.Epoch = p.UnpackUint32()
	c.Date.Slot = p.UnpackUint32()
	c.ChainLength = ChainLength(p.UnpackUint32())
	p.UnpackID(false, &c.ContentHash)
	p.UnpackID(false, &c.Parent)
	return c
}

// Proof is the consensus proof of a header. It is exactly one of
// ProofNone, *ProofBft or *ProofGenesisPraos, matching the header version.
type Proof interface {
	Version() Version
	// authLen is the number of proof bytes covered by the signature.
	authLen() int
	marshal(p *codec.Packer)
}

var (
	_ Proof = ProofNone{}
	_ Proof = (*ProofBft)(nil)
	_ Proof = (*ProofGenesisPraos)(nil)
)

type ProofNone struct{}

func (ProofNone) Version() Version      { return VersionUnsigned }
func (ProofNone) authLen() int          { return 0 }
func (ProofNone) marshal(*codec.Packer) {}

type ProofBft struct {
	Leader    ed25519.PublicKey
	Signature ed25519.Signature
}

func (*ProofBft) Version() Version { return VersionBft }
func (*ProofBft) authLen() int     { return ed25519.PublicKeyLen }
func (b *ProofBft) marshal(p *codec.Packer) {
	p.PackFixedBytes(b.Leader[:])
	p.PackFixedBytes(b.Signature[:])
}

type ProofGenesisPraos struct {
	Pool ids.ID
	VRF  vrf.Proof
	KES  kes.Signature
}

func (*ProofGenesisPraos) Version() Version { return VersionGenesisPraos }
func (*ProofGenesisPraos) authLen() int     { return consts.IDLen + vrf.ProofLen }
func (g *ProofGenesisPraos) marshal(p *codec.Packer) {
	p.PackID(g.Pool)
	p.PackFixedBytes(g.VRF[:])
	p.PackFixedBytes(g.KES[:])
}

// HeaderLen returns the serialized size of a header of version [v].
func HeaderLen(v Version) (int, error) {
	switch v {
	case VersionUnsigned:
		return CommonLen, nil
	case VersionBft:
		return CommonLen + BftProofLen, nil
	case VersionGenesisPraos:
		return CommonLen + GenesisPraosProofLen, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownVersion, v)
	}
}

// Header is an immutable block header. Headers are obtained from the
// staged builder or by decoding.
type Header struct {
	common Common
	proof  Proof

	raw []byte
	id  ids.ID
}

func newHeader(common Common, proof Proof) (*Header, error) {
	if proof.Version() != common.Version {
		return nil, fmt.Errorf("%w: proof %s header %s", ErrVersionMismatch, proof.Version(), common.Version)
	}
	size, err := HeaderLen(common.Version)
	if err != nil {
		return nil, err
	}
	p := codec.NewWriter(size, size)
	common.marshal(p)
	proof.marshal(p)
	if err := p.Err(); err != nil {
		return nil, err
	}
	raw := p.Bytes()
	// The identifier covers the full header, signature included.
	return &Header{common: common, proof: proof, raw: raw, id: utils.ToID(raw)}, nil
}

func (h *Header) ID() ids.ID                { return h.id }
func (h *Header) Bytes() []byte             { return h.raw }
func (h *Header) Size() int                 { return len(h.raw) }
func (h *Header) Common() Common            { return h.common }
func (h *Header) Proof() Proof              { return h.proof }
func (h *Header) Version() Version          { return h.common.Version }
func (h *Header) Date() chaintime.BlockDate { return h.common.Date }
func (h *Header) ChainLength() ChainLength  { return h.common.ChainLength }
func (h *Header) Parent() ids.ID            { return h.common.Parent }
func (h *Header) ContentHash() ids.ID       { return h.common.ContentHash }
func (h *Header) ContentSize() uint32       { return h.common.ContentSize }
func (h *Header) IsGenesis() bool           { return h.common.Version == VersionUnsigned }

func (h *Header) String() string {
	return fmt.Sprintf("%s@%d(%s)", h.id, h.common.ChainLength, h.common.Date)
}

func (h *Header) Bft() (*ProofBft, bool) {
	b, ok := h.proof.(*ProofBft)
	return b, ok
}

func (h *Header) Praos() (*ProofGenesisPraos, bool) {
	g, ok := h.proof.(*ProofGenesisPraos)
	return g, ok
}

// AuthBytes are the bytes the leader signs: the common fields followed
// by the unsigned part of the proof.
func (h *Header) AuthBytes() []byte {
	return h.raw[:CommonLen+h.proof.authLen()]
}

// ContentEvalContext returns the context the ledger applies the block
// contents under.
func (h *Header) ContentEvalContext() (ContentEvalContext, error) {
	ctx := ContentEvalContext{Date: h.common.Date, ChainLength: h.common.ChainLength}
	if g, ok := h.Praos(); ok {
		output, err := g.VRF.Output()
		if err != nil {
			return ContentEvalContext{}, err
		}
		ctx.Praos = &PraosEvalContext{Nonce: NonceFromOutput(output), Pool: g.Pool}
	}
	return ctx, nil
}

var nonceDomain = []byte("NONCE")

// NonceFromOutput derives the nonce contribution of a VRF output.
func NonceFromOutput(output vrf.Output) ids.ID {
	return utils.ToID(nonceDomain, output[:])
}

// UnmarshalHeader decodes a header. [b] must hold exactly one header.
func UnmarshalHeader(b []byte) (*Header, error) {
	if len(b) < consts.Uint16Len {
		return nil, fmt.Errorf("%w: %d bytes", ErrSizeMismatch, len(b))
	}
	size, err := HeaderLen(Version(uint16(b[0])<<8 | uint16(b[1])))
	if err != nil {
		return nil, err
	}
	if len(b) != size {
		return nil, fmt.Errorf("%w: got %d want %d", ErrSizeMismatch, len(b), size)
	}
	p := codec.NewReader(b, size)
	common := unmarshalCommon(p)
	var proof Proof
	switch common.Version {
	case VersionUnsigned:
		proof = ProofNone{}
	case VersionBft:
		bft := &ProofBft{}
		unpackArray(p, bft.Leader[:])
		unpackArray(p, bft.Signature[:])
		proof = bft
	case VersionGenesisPraos:
		gp := &ProofGenesisPraos{}
		p.UnpackID(false, &gp.Pool)
		unpackArray(p, gp.VRF[:])
		unpackArray(p, gp.KES[:])
		proof = gp
	}
	if err := p.Done(); err != nil {
		return nil, err
	}
	raw := make([]byte, size)
	copy(raw, b)
	return &Header{common: common, proof: proof, raw: raw, id: utils.ToID(raw)}, nil
}

// MarshalFramed prefixes the header with its 2-byte size.
func (h *Header) MarshalFramed() []byte {
	p := codec.NewWriter(consts.Uint16Len+len(h.raw), consts.Uint16Len+MaxHeaderLen)
	p.PackUint16(uint16(len(h.raw)))
	p.PackFixedBytes(h.raw)
	return p.Bytes()
}

// UnmarshalFramedHeader decodes a header prefixed with its 2-byte size.
func UnmarshalFramedHeader(b []byte) (*Header, error) {
	p := codec.NewReader(b, consts.Uint16Len+MaxHeaderLen)
	size := int(p.UnpackUint16())
	if err := p.Err(); err != nil {
		return nil, err
	}
	if size != p.Remaining() {
		return nil, fmt.Errorf("%w: framed %d, got %d", ErrSizeMismatch, size, p.Remaining())
	}
	return UnmarshalHeader(b[consts.Uint16Len:])
}

func unpackArray(p *codec.Packer, dest []byte) {
	var b []byte
	p.UnpackFixedBytes(len(dest), &b)
	copy(dest, b)
}
