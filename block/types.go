// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package block

import (
	"fmt"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/praos/chaintime"
	"github.com/ava-labs/praos/consts"
)

// ChainLength is the number of blocks between a block and block0.
type ChainLength uint32

// Next returns the chain length of a child block.
func (c ChainLength) Next() (ChainLength, error) {
	if uint32(c) == consts.MaxUint32 {
		return 0, ErrChainLengthOverflow
	}
	return c + 1, nil
}

// Version selects the proof carried by a header.
type Version uint16

const (
	VersionUnsigned     Version = 0
	VersionBft          Version = 1
	VersionGenesisPraos Version = 2
)

func (v Version) String() string {
	switch v {
	case VersionUnsigned:
		return "unsigned"
	case VersionBft:
		return "bft"
	case VersionGenesisPraos:
		return "genesis_praos"
	default:
		return fmt.Sprintf("version(%d)", uint16(v))
	}
}

// ContentEvalContext is what the ledger needs from a header to apply
// the block contents.
type ContentEvalContext struct {
	Date        chaintime.BlockDate
	ChainLength ChainLength
	// Praos is only set for Genesis Praos blocks.
	Praos *PraosEvalContext
}

type PraosEvalContext struct {
	// Nonce is folded into the epoch nonce.
	Nonce ids.ID
	// Pool is credited in the leaders participation log.
	Pool ids.ID
}
