// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package block

import "errors"

var (
	ErrUnknownVersion      = errors.New("unknown block version")
	ErrSizeMismatch        = errors.New("header size mismatch")
	ErrContentSizeMismatch = errors.New("block content size mismatch")
	ErrContentHashMismatch = errors.New("block content hash mismatch")
	ErrVersionMismatch     = errors.New("operation does not match block version")
	ErrChainLengthOverflow = errors.New("chain length overflow")
	ErrContentTooLarge     = errors.New("block content too large")
)
