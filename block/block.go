// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package block

import (
	"fmt"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/praos/codec"
	"github.com/ava-labs/praos/consts"
	"github.com/ava-labs/praos/fragment"
	"github.com/ava-labs/praos/utils"
)

// Contents is the ordered fragment sequence of a block. Each fragment is
// framed with its 4-byte size.
type Contents struct {
	fragments []*fragment.Fragment

	size uint32
	hash ids.ID
}

// NewContents frames [fragments] and computes their size and hash.
func NewContents(fragments ...*fragment.Fragment) (*Contents, error) {
	p := codec.NewWriter(1024, consts.MaxBlockSize)
	for _, f := range fragments {
		p.PackUint32(uint32(len(f.Bytes())))
		p.PackFixedBytes(f.Bytes())
	}
	if err := p.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContentTooLarge, err)
	}
	return &Contents{
		fragments: fragments,
		size:      uint32(len(p.Bytes())),
		hash:      utils.ToID(p.Bytes()),
	}, nil
}

func (c *Contents) Fragments() []*fragment.Fragment { return c.fragments }
func (c *Contents) Len() int                        { return len(c.fragments) }
func (c *Contents) Size() uint32                    { return c.size }
func (c *Contents) Hash() ids.ID                    { return c.hash }

func (c *Contents) marshal(p *codec.Packer) {
	for _, f := range c.fragments {
		p.PackUint32(uint32(len(f.Bytes())))
		p.PackFixedBytes(f.Bytes())
	}
}

// Block is a header and the contents it commits to.
type Block struct {
	Header   *Header
	Contents *Contents
}

func (b *Block) ID() ids.ID { return b.Header.ID() }

// Fragments returns the block contents in order.
func (b *Block) Fragments() []*fragment.Fragment { return b.Contents.fragments }

// Marshal returns header bytes followed by the framed fragments.
func (b *Block) Marshal() ([]byte, error) {
	p := codec.NewWriter(b.Header.Size()+int(b.Contents.size), consts.MaxBlockSize)
	p.PackFixedBytes(b.Header.Bytes())
	b.Contents.marshal(p)
	return p.Bytes(), p.Err()
}

// UnmarshalBlock decodes a block and checks the contents against the
// size and hash declared by the header.
func UnmarshalBlock(raw []byte) (*Block, error) {
	if len(raw) < consts.Uint16Len {
		return nil, fmt.Errorf("%w: %d bytes", ErrSizeMismatch, len(raw))
	}
	headerLen, err := HeaderLen(Version(uint16(raw[0])<<8 | uint16(raw[1])))
	if err != nil {
		return nil, err
	}
	if len(raw) < headerLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrSizeMismatch, len(raw))
	}
	header, err := UnmarshalHeader(raw[:headerLen])
	if err != nil {
		return nil, err
	}
	body := raw[headerLen:]
	if uint32(len(body)) != header.ContentSize() {
		return nil, fmt.Errorf("%w: declared %d, got %d", ErrContentSizeMismatch, header.ContentSize(), len(body))
	}

	var (
		p         = codec.NewReader(body, consts.MaxBlockSize)
		fragments []*fragment.Fragment
	)
	for !p.Empty() {
		size := int(p.UnpackUint32())
		var rawFragment []byte
		p.UnpackFixedBytes(size, &rawFragment)
		if err := p.Err(); err != nil {
			return nil, err
		}
		f, err := fragment.Unmarshal(rawFragment)
		if err != nil {
			return nil, fmt.Errorf("fragment %d: %w", len(fragments), err)
		}
		fragments = append(fragments, f)
	}
	if hash := utils.ToID(body); hash != header.ContentHash() {
		return nil, fmt.Errorf("%w: declared %s, got %s", ErrContentHashMismatch, header.ContentHash(), hash)
	}
	return &Block{
		Header:   header,
		Contents: &Contents{fragments: fragments, size: uint32(len(body)), hash: header.ContentHash()},
	}, nil
}
