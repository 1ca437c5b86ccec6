// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package storage persists blocks, their parent links and named tags in
// a key/value database.
package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ava-labs/praos/block"
	"github.com/ava-labs/praos/consts"
)

const (
	blockPrefix       byte = 0x0 // ID -> block bytes
	parentPrefix      byte = 0x1 // ID -> parent ID
	chainLengthPrefix byte = 0x2 // ID -> chain length
	tagPrefix         byte = 0x3 // tag -> ID
)

type Config struct {
	BlockCacheSize int `json:"blockCacheSize"`
}

func NewDefaultConfig() Config {
	return Config{
		BlockCacheSize: 1024,
	}
}

// BlockStore is a content addressed block store. Blocks are only
// accepted once their parent is stored, so every stored block links
// back to block0.
type BlockStore struct {
	log     logging.Logger
	db      database.Database
	cache   *cache.LRU[ids.ID, *block.Block]
	metrics *metrics
}

func New(
	log logging.Logger,
	registry prometheus.Registerer,
	config Config,
	db database.Database,
) (*BlockStore, error) {
	if config.BlockCacheSize <= 0 {
		return nil, ErrCacheSizeZero
	}
	metrics, err := newMetrics(registry)
	if err != nil {
		return nil, err
	}
	return &BlockStore{
		log:     log,
		db:      db,
		cache:   &cache.LRU[ids.ID, *block.Block]{Size: config.BlockCacheSize},
		metrics: metrics,
	}, nil
}

func prefixKey(prefix byte, id ids.ID) []byte {
	k := make([]byte, 1+consts.IDLen)
	k[0] = prefix
	copy(k[1:], id[:])
	return k
}

func tagKey(tag string) []byte {
	k := make([]byte, 1+len(tag))
	k[0] = tagPrefix
	copy(k[1:], tag)
	return k
}

func (s *BlockStore) Get(_ context.Context, id ids.ID) (*block.Block, error) {
	if blk, ok := s.cache.Get(id); ok {
		s.metrics.cacheHits.Inc()
		return blk, nil
	}
	raw, err := s.db.Get(prefixKey(blockPrefix, id))
	if err != nil {
		return nil, err
	}
	blk, err := block.UnmarshalBlock(raw)
	if err != nil {
		return nil, fmt.Errorf("stored block %s: %w", id, err)
	}
	s.metrics.cacheMisses.Inc()
	s.cache.Put(id, blk)
	return blk, nil
}

// Put stores [blk]. Its parent must be stored unless it is block0.
func (s *BlockStore) Put(ctx context.Context, blk *block.Block) error {
	id := blk.ID()
	exists, err := s.BlockExists(ctx, id)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrBlockExists, id)
	}
	header := blk.Header
	if !header.IsGenesis() {
		stored, err := s.BlockExists(ctx, header.Parent())
		if err != nil {
			return err
		}
		if !stored {
			return fmt.Errorf("%w: %s of %s", ErrMissingParent, header.Parent(), id)
		}
	}
	raw, err := blk.Marshal()
	if err != nil {
		return err
	}

	parent := header.Parent()
	batch := s.db.NewBatch()
	err = errors.Join(
		batch.Put(prefixKey(blockPrefix, id), raw),
		batch.Put(prefixKey(parentPrefix, id), parent[:]),
		batch.Put(prefixKey(chainLengthPrefix, id), binary.BigEndian.AppendUint32(nil, uint32(header.ChainLength()))),
	)
	if err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return err
	}
	s.cache.Put(id, blk)
	s.metrics.blocksWritten.Inc()
	s.log.Debug("stored block",
		zap.Stringer("blkID", id),
		zap.Uint32("chainLength", uint32(header.ChainLength())),
	)
	return nil
}

func (s *BlockStore) BlockExists(_ context.Context, id ids.ID) (bool, error) {
	return s.db.Has(prefixKey(blockPrefix, id))
}

// Parent returns the parent of stored block [id].
func (s *BlockStore) Parent(_ context.Context, id ids.ID) (ids.ID, error) {
	b, err := s.db.Get(prefixKey(parentPrefix, id))
	if err != nil {
		return ids.Empty, err
	}
	if len(b) != consts.IDLen {
		return ids.Empty, fmt.Errorf("%w: parent of %s has %d bytes", ErrCorruptedChainLink, id, len(b))
	}
	return ids.ID(b), nil
}

// ChainLength returns the chain length of stored block [id].
func (s *BlockStore) ChainLength(_ context.Context, id ids.ID) (block.ChainLength, error) {
	b, err := s.db.Get(prefixKey(chainLengthPrefix, id))
	if err != nil {
		return 0, err
	}
	if len(b) != consts.Uint32Len {
		return 0, fmt.Errorf("%w: chain length of %s has %d bytes", ErrCorruptedChainLink, id, len(b))
	}
	return block.ChainLength(binary.BigEndian.Uint32(b)), nil
}

// StreamFromTo calls [f] on the blocks after [from] up to [to], oldest
// first. It fails with ErrNotAncestor when [to] does not descend from
// [from].
func (s *BlockStore) StreamFromTo(ctx context.Context, from ids.ID, to ids.ID, f func(*block.Block) error) error {
	fromLength, err := s.ChainLength(ctx, from)
	if err != nil {
		return err
	}
	length, err := s.ChainLength(ctx, to)
	if err != nil {
		return err
	}
	if length < fromLength {
		return fmt.Errorf("%w: %s of %s", ErrNotAncestor, from, to)
	}

	path := make([]ids.ID, 0, length-fromLength)
	for id := to; id != from; length-- {
		if length == fromLength {
			return fmt.Errorf("%w: %s of %s", ErrNotAncestor, from, to)
		}
		path = append(path, id)
		if id, err = s.Parent(ctx, id); err != nil {
			return err
		}
	}
	slices.Reverse(path)

	for _, id := range path {
		if err := ctx.Err(); err != nil {
			return err
		}
		blk, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := f(blk); err != nil {
			return err
		}
	}
	return nil
}

func (s *BlockStore) GetTag(_ context.Context, tag string) (ids.ID, error) {
	b, err := s.db.Get(tagKey(tag))
	if err != nil {
		return ids.Empty, err
	}
	if len(b) != consts.IDLen {
		return ids.Empty, fmt.Errorf("%w: tag %q has %d bytes", ErrCorruptedChainLink, tag, len(b))
	}
	return ids.ID(b), nil
}

// PutTag points [tag] at stored block [id].
func (s *BlockStore) PutTag(ctx context.Context, tag string, id ids.ID) error {
	exists, err := s.BlockExists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: tag %q on %s", database.ErrNotFound, tag, id)
	}
	return s.db.Put(tagKey(tag), id[:])
}
