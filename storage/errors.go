// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import "errors"

var (
	ErrBlockExists        = errors.New("block already stored")
	ErrMissingParent      = errors.New("parent block not stored")
	ErrNotAncestor        = errors.New("block is not an ancestor")
	ErrCacheSizeZero      = errors.New("block cache size must be non-zero")
	ErrCorruptedChainLink = errors.New("corrupted chain link")
)
