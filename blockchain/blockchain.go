// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package blockchain drives headers and blocks through the validation
// pipeline and keeps the resulting states of every known fork.
package blockchain

import (
	"context"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/trace"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ava-labs/praos/block"
	"github.com/ava-labs/praos/leadership"
	"github.com/ava-labs/praos/ledger"
	"github.com/ava-labs/praos/multiverse"
)

type Blockchain struct {
	log     logging.Logger
	tracer  trace.Tracer
	storage Storage

	registry *prometheus.Registry
	metrics  *metrics

	refs   *multiverse.Multiverse[*Ref]
	block0 ids.ID
}

func New(log logging.Logger, tracer trace.Tracer, storage Storage) (*Blockchain, error) {
	registry, m, err := newMetrics()
	if err != nil {
		return nil, err
	}
	return &Blockchain{
		log:      log,
		tracer:   tracer,
		storage:  storage,
		registry: registry,
		metrics:  m,
		refs:     multiverse.New[*Ref](),
	}, nil
}

// Registry holds the pipeline metrics.
func (b *Blockchain) Registry() *prometheus.Registry { return b.registry }

func (b *Blockchain) Storage() Storage { return b.storage }

func (b *Blockchain) Block0() ids.ID { return b.block0 }

// GetRef returns the state after block [id] if it is held in memory.
func (b *Blockchain) GetRef(id ids.ID) (*Ref, bool) {
	return b.refs.Get(id)
}

// GC drops the states more than [depth] blocks below the highest known
// one that no branch holds.
func (b *Blockchain) GC(depth uint32) {
	dropped := b.refs.GC(depth)
	b.metrics.refs.Set(float64(b.refs.Len()))
	if len(dropped) > 0 {
		b.log.Debug("collected states",
			zap.Int("count", len(dropped)),
			zap.Uint32("depth", depth),
		)
	}
}

func (b *Blockchain) insert(ref *Ref) *Ref {
	root := b.refs.Insert(ref.ChainLength(), ref.ID(), ref)
	defer root.Release()

	b.metrics.refs.Set(float64(b.refs.Len()))
	return root.Value()
}

func (b *Blockchain) applyBlock0(blk *block.Block) (*Branch, error) {
	header := blk.Header
	if !header.IsGenesis() {
		return nil, fmt.Errorf("%w: version %s", ErrBlock0NotGenesis, header.Version())
	}
	l, err := ledger.New(blk.ID(), blk.Fragments())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBlock0InitialLedger, err)
	}
	schedule, err := leadership.New(header.Date().Epoch, l)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBlock0InitialLedger, err)
	}
	ref := b.insert(&Ref{
		ledger:     l,
		leadership: schedule,
		params:     l.Parameters(),
		timeFrame:  l.TimeFrame(),
		header:     header,
	})
	b.block0 = ref.ID()
	return newBranch(b.refs, ref), nil
}

// LoadFromBlock0 starts a new chain from [blk] and records it as the
// head of the main branch.
func (b *Blockchain) LoadFromBlock0(ctx context.Context, blk *block.Block) (*Branch, error) {
	ctx, span := b.tracer.Start(ctx, "Blockchain.LoadFromBlock0")
	defer span.End()

	id := blk.ID()
	exists, err := b.storage.BlockExists(ctx, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrBlock0AlreadyInStorage, id)
	}
	branch, err := b.applyBlock0(blk)
	if err != nil {
		return nil, err
	}
	if err := b.storage.Put(ctx, blk); err != nil {
		return nil, err
	}
	if err := b.storage.PutTag(ctx, HeadTag, id); err != nil {
		return nil, err
	}
	b.log.Info("loaded block0",
		zap.Stringer("blkID", id),
		zap.Stringer("consensus", branch.Ref().Ledger().Consensus()),
	)
	return branch, nil
}

// LoadFromStorage rebuilds the state of the main branch by replaying
// every stored block from [blk] to the head.
func (b *Blockchain) LoadFromStorage(ctx context.Context, blk *block.Block) (*Branch, error) {
	ctx, span := b.tracer.Start(ctx, "Blockchain.LoadFromStorage")
	defer span.End()

	id := blk.ID()
	exists, err := b.storage.BlockExists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrBlock0NotInStorage, id)
	}
	head, err := b.storage.GetTag(ctx, HeadTag)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNoTag, HeadTag)
	}
	if err != nil {
		return nil, err
	}
	branch, err := b.applyBlock0(blk)
	if err != nil {
		return nil, err
	}
	if head == id {
		return branch, nil
	}

	err = b.storage.StreamFromTo(ctx, id, head, func(blk *block.Block) error {
		parent := branch.Ref()
		if blk.Header.Parent() != parent.ID() {
			return fmt.Errorf("%w: %s", ErrMissingParentFromStorage, blk.ID())
		}
		post, err := b.PostCheckHeader(ctx, blk.Header, parent, CheckHeaderProof)
		if err != nil {
			return err
		}
		ref, err := b.apply(post, blk, nil)
		if err != nil {
			return err
		}
		branch.UpdateRef(b.insert(ref))
		return nil
	})
	if err != nil {
		return nil, err
	}
	tip := branch.Ref()
	b.log.Info("loaded blockchain from storage",
		zap.Stringer("head", tip.ID()),
		zap.Uint32("chainLength", uint32(tip.ChainLength())),
		zap.Stringer("date", tip.Date()),
	)
	return branch, nil
}

// Checkpoints lists block ids of the branch at exponentially growing
// distances below its tip, ending with block0.
func (b *Blockchain) Checkpoints(ctx context.Context, branch *Branch) ([]ids.ID, error) {
	ctx, span := b.tracer.Start(ctx, "Blockchain.Checkpoints")
	defer span.End()

	tip := branch.Ref()
	header := tip.Header()
	checkpoints := []ids.ID{header.ID()}
	next := uint32(1)
	for distance := uint32(1); !header.IsGenesis(); distance++ {
		parent := header.Parent()
		if ref, ok := b.refs.Get(parent); ok {
			header = ref.Header()
		} else {
			blk, err := b.storage.Get(ctx, parent)
			if err != nil {
				return nil, err
			}
			header = blk.Header
		}
		if distance == next || header.IsGenesis() {
			checkpoints = append(checkpoints, header.ID())
			next *= 2
		}
	}
	return checkpoints, nil
}
