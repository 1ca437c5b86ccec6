// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consts

const (
	IDLen        = 32
	ByteLen      = 1
	Uint16Len    = 2
	Uint32Len    = 4
	Uint64Len    = 8
	Uint128Len   = 16
	MaxUint8     = ^uint8(0)
	MaxUint16    = ^uint16(0)
	MaxUint32    = ^uint32(0)
	MaxUint64    = ^uint64(0)
	MaxUint      = ^uint(0)
	MaxInt       = int(MaxUint >> 1)
	MilliPerUnit = 1_000

	// MaxBlockSize bounds any block or fragment we are willing to decode.
	MaxBlockSize = 2 * 1024 * 1024
)
