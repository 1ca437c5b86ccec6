// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codec

import (
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/wrappers"

	"github.com/ava-labs/praos/consts"
)

// Packer is a wrapper struct for the Packer struct
// from avalanchego/utils/wrappers/packing.go. All integers are
// packed big-endian with a fixed width.
type Packer struct {
	p *wrappers.Packer
}

// NewReader returns a Packer instance with the specified byte slice [src]
// and max size [limit]. This instance of Packer should be used for
// reading.
func NewReader(src []byte, limit int) *Packer {
	return &Packer{
		p: &wrappers.Packer{Bytes: src, MaxSize: limit},
	}
}

// NewWriter returns a Packer instance with an initial size of [initial] and
// a max size of [limit].
func NewWriter(initial, limit int) *Packer {
	return &Packer{
		p: &wrappers.Packer{MaxSize: limit, Bytes: make([]byte, 0, initial)},
	}
}

func (p *Packer) PackID(src ids.ID) {
	p.p.PackFixedBytes(src[:])
}

// UnpackID unpacks an avalanchego ID into [dest]. If [required] is true,
// and the unpacked bytes are empty, Packer will add an ErrFieldNotPopulated error.
func (p *Packer) UnpackID(required bool, dest *ids.ID) {
	copy((*dest)[:], p.p.UnpackFixedBytes(consts.IDLen))
	if required && *dest == ids.Empty {
		p.addErr(fmt.Errorf("%w: ID field is not populated", ErrFieldNotPopulated))
	}
}

func (p *Packer) PackByte(b byte) {
	p.p.PackByte(b)
}

func (p *Packer) UnpackByte() byte {
	return p.p.UnpackByte()
}

// PackFixedBytes packs [b] without a length prefix.
func (p *Packer) PackFixedBytes(b []byte) {
	p.p.PackFixedBytes(b)
}

// UnpackFixedBytes copies [size] bytes into [dest]. The copy keeps
// [dest] independent of the buffer being read.
func (p *Packer) UnpackFixedBytes(size int, dest *[]byte) {
	b := p.p.UnpackFixedBytes(size)
	if p.Err() != nil {
		*dest = nil
		return
	}
	*dest = make([]byte, len(b))
	copy(*dest, b)
}

// PackBytes packs [b] behind a 16-bit length prefix.
func (p *Packer) PackBytes(b []byte) {
	if len(b) > int(consts.MaxUint16) {
		p.addErr(fmt.Errorf("%w: %d bytes", ErrTooManyItems, len(b)))
		return
	}
	p.p.PackShort(uint16(len(b)))
	p.p.PackFixedBytes(b)
}

// UnpackBytes unpacks bytes packed with PackBytes. If [required] is true
// and the unpacked slice is empty, ErrFieldNotPopulated is added.
func (p *Packer) UnpackBytes(limit int, required bool, dest *[]byte) {
	l := int(p.p.UnpackShort())
	if limit >= 0 && l > limit {
		p.addErr(fmt.Errorf("%w: %d > %d", ErrTooManyItems, l, limit))
		return
	}
	p.UnpackFixedBytes(l, dest)
	if required && len(*dest) == 0 {
		p.addErr(fmt.Errorf("%w: slice field is not populated", ErrFieldNotPopulated))
	}
}

func (p *Packer) PackUint16(v uint16) {
	p.p.PackShort(v)
}

func (p *Packer) UnpackUint16() uint16 {
	return p.p.UnpackShort()
}

func (p *Packer) PackUint32(v uint32) {
	p.p.PackInt(v)
}

func (p *Packer) UnpackUint32() uint32 {
	return p.p.UnpackInt()
}

func (p *Packer) PackUint64(v uint64) {
	p.p.PackLong(v)
}

// UnpackUint64 unpacks a uint64. If [required] is true and the value is
// zero, ErrFieldNotPopulated is added.
func (p *Packer) UnpackUint64(required bool) uint64 {
	v := p.p.UnpackLong()
	if required && v == 0 {
		p.addErr(fmt.Errorf("%w: Uint64 field is not populated", ErrFieldNotPopulated))
	}
	return v
}

func (p *Packer) PackBool(b bool) {
	p.p.PackBool(b)
}

func (p *Packer) UnpackBool() bool {
	return p.p.UnpackBool()
}

func (p *Packer) Bytes() []byte {
	return p.p.Bytes
}

func (p *Packer) Offset() int {
	return p.p.Offset
}

// Remaining returns how many bytes are left to read.
func (p *Packer) Remaining() int {
	return len(p.p.Bytes) - p.p.Offset
}

func (p *Packer) Err() error {
	return p.p.Err
}

// Empty returns true if the packer has consumed all of its bytes.
func (p *Packer) Empty() bool {
	return p.p.Offset == len(p.p.Bytes)
}

// Done returns the first error seen by the packer, or ErrTrailingBytes
// if bytes remain unread.
func (p *Packer) Done() error {
	if err := p.Err(); err != nil {
		return err
	}
	if !p.Empty() {
		return fmt.Errorf("%w: %d bytes", ErrTrailingBytes, p.Remaining())
	}
	return nil
}

func (p *Packer) addErr(err error) {
	p.p.Add(err)
}

// AddErr records [err] on the packer. Only the first error is kept.
func (p *Packer) AddErr(err error) {
	p.addErr(err)
}
