// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package blockchain

import (
	"context"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/praos/block"
)

// HeadTag names the tip of the main branch in storage.
const HeadTag = "HEAD"

// Storage is the block store the pipeline persists to. Missing blocks
// and tags are reported with database.ErrNotFound.
type Storage interface {
	Get(ctx context.Context, id ids.ID) (*block.Block, error)
	// Put fails with an error wrapping [ErrBlockExists] if [blk] is
	// already stored.
	Put(ctx context.Context, blk *block.Block) error
	BlockExists(ctx context.Context, id ids.ID) (bool, error)
	// StreamFromTo calls [f] on every block after [from] up to and
	// including [to], oldest first. [from] must be an ancestor of [to].
	StreamFromTo(ctx context.Context, from ids.ID, to ids.ID, f func(*block.Block) error) error
	GetTag(ctx context.Context, tag string) (ids.ID, error)
	PutTag(ctx context.Context, tag string, id ids.ID) error
}
