// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package params

import "errors"

var (
	ErrInvalidTag        = errors.New("invalid config parameter tag")
	ErrSizeInvalid       = errors.New("invalid config parameter size")
	ErrStructureInvalid  = errors.New("invalid config parameter structure")
	ErrUnknownString     = errors.New("unknown config parameter string")
	ErrTooManyParameters = errors.New("too many config parameters")
	ErrRatioOverflow     = errors.New("ratio computation overflow")
)
