// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package leadership

import "errors"

var (
	ErrIncompatibleBlockVersion = errors.New("block version does not match the leadership schedule")
	ErrInvalidLeader            = errors.New("block is not signed by the expected leader")
	ErrInvalidLeaderSignature   = errors.New("invalid leader signature")
	ErrInvalidVRFProof          = errors.New("invalid VRF proof")
	ErrNotEligible              = errors.New("pool is not eligible for the slot")
	ErrUnknownPool              = errors.New("unknown pool")
	ErrInvalidKESSignature      = errors.New("invalid KES signature")
	ErrInvalidKESPeriod         = errors.New("invalid KES period")
	ErrEpochMismatch            = errors.New("block date is not in the leadership epoch")
	ErrNoBftLeader              = errors.New("no BFT leader")
	ErrUnknownConsensus         = errors.New("unknown consensus version")
)
