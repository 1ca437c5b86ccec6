// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package blockchain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ava-labs/praos/block"
	"github.com/ava-labs/praos/chaintime"
	"github.com/ava-labs/praos/leadership"
	"github.com/ava-labs/praos/ledger"
	"github.com/ava-labs/praos/params"
)

type PreCheckKind uint8

const (
	// AlreadyPresent is returned for headers the node already knows.
	// Ref is nil when the block is stored but its state is not in
	// memory.
	AlreadyPresent PreCheckKind = iota
	// MissingParent asks the caller to fetch the ancestors first.
	MissingParent
	// HeaderWithCache carries the parent state the header links to.
	HeaderWithCache
)

type PreCheckedHeader struct {
	Kind   PreCheckKind
	Header *block.Header
	Ref    *Ref
	Parent *Ref
}

type ProofCheck uint8

const (
	CheckHeaderProof ProofCheck = iota
	// SkipHeaderProof is for replaying blocks the node validated before.
	SkipHeaderProof
)

// EpochState is what a block is applied under: the schedule and
// parameters of its epoch and the parent ledger with the epoch
// transition, if any, applied.
type EpochState struct {
	Leadership *leadership.Leadership
	Parameters ledger.Parameters
	TimeFrame  *chaintime.TimeFrame
	Ledger     *ledger.Ledger
	// Rewards is set when the transition distributed rewards.
	Rewards       *ledger.EpochRewardsInfo
	PreviousEpoch *Ref
}

type PostCheckedHeader struct {
	Header *block.Header
	Parent *Ref
	Epoch  *EpochState
}

type AppliedKind uint8

const (
	AppliedNew AppliedKind = iota
	// AppliedExisting is returned for blocks applied before. The ledger
	// transition is not computed again.
	AppliedExisting
)

type AppliedBlock struct {
	Kind AppliedKind
	Ref  *Ref
}

// checkChainLink checks that [header] may follow [parent].
func checkChainLink(header *block.Header, parent *Ref) error {
	if header.Parent() != parent.ID() {
		return fmt.Errorf("%w: %s is not %s", ErrNotTheParent, parent.ID(), header.Parent())
	}
	if !parent.Date().Less(header.Date()) {
		return fmt.Errorf("%w: %s is not after %s", ErrNonMonotonicDate, header.Date(), parent.Date())
	}
	date := header.Date()
	if _, err := parent.Ledger().Era().ToSlot(date.Epoch, date.Slot); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSlotOutOfEpoch, date, err)
	}
	expected, err := parent.ChainLength().Next()
	if err != nil {
		return err
	}
	if header.ChainLength() != expected {
		return fmt.Errorf("%w: %d instead of %d", ErrInvalidChainLength, header.ChainLength(), expected)
	}
	return nil
}

// PreCheckHeader resolves the parent of [header] and checks the header
// links to it.
func (b *Blockchain) PreCheckHeader(ctx context.Context, header *block.Header) (*PreCheckedHeader, error) {
	ctx, span := b.tracer.Start(ctx, "Blockchain.PreCheckHeader")
	defer span.End()

	id := header.ID()
	if ref, ok := b.refs.Get(id); ok {
		return &PreCheckedHeader{Kind: AlreadyPresent, Header: header, Ref: ref}, nil
	}
	stored, err := b.storage.BlockExists(ctx, id)
	if err != nil {
		return nil, err
	}
	if stored {
		return &PreCheckedHeader{Kind: AlreadyPresent, Header: header}, nil
	}

	parent, ok := b.refs.Get(header.Parent())
	if !ok {
		return &PreCheckedHeader{Kind: MissingParent, Header: header}, nil
	}
	if err := checkChainLink(header, parent); err != nil {
		b.metrics.headersRejected.Inc()
		return nil, err
	}
	b.metrics.headersPreChecked.Inc()
	return &PreCheckedHeader{Kind: HeaderWithCache, Header: header, Parent: parent}, nil
}

// PostCheckHeader computes the epoch state of [header] and, unless
// skipped, verifies its proof against the epoch schedule.
func (b *Blockchain) PostCheckHeader(ctx context.Context, header *block.Header, parent *Ref, check ProofCheck) (*PostCheckedHeader, error) {
	_, span := b.tracer.Start(ctx, "Blockchain.PostCheckHeader")
	defer span.End()

	if err := checkChainLink(header, parent); err != nil {
		b.metrics.headersRejected.Inc()
		return nil, err
	}
	epoch, err := b.NewEpochLeadershipFrom(header.Date().Epoch, parent)
	if err != nil {
		return nil, err
	}
	if check == CheckHeaderProof {
		if err := epoch.Leadership.Verify(header); err != nil {
			b.metrics.headersRejected.Inc()
			return nil, fmt.Errorf("%w: %w", ErrHeaderVerificationFailed, err)
		}
	}
	b.metrics.headersPostChecked.Inc()
	return &PostCheckedHeader{Header: header, Parent: parent, Epoch: epoch}, nil
}

// NewEpochLeadershipFrom returns the state blocks of [epoch] following
// [parent] are applied under. Entering a new epoch applies the adopted
// protocol changes, distributes the rewards of the parent epoch and
// elects the schedule. Genesis Praos schedules are elected from the
// ledger that closed the epoch before the parent's, so the stake of
// epoch E is fixed at the start of epoch E-1.
func (b *Blockchain) NewEpochLeadershipFrom(epoch uint32, parent *Ref) (*EpochState, error) {
	if parent.Date().Epoch >= epoch {
		return &EpochState{
			Leadership:    parent.leadership,
			Parameters:    parent.params,
			TimeFrame:     parent.timeFrame,
			Ledger:        parent.ledger,
			PreviousEpoch: parent.previousEpoch,
		}, nil
	}

	l, err := parent.ledger.ApplyProtocolChanges(chaintime.BlockDate{Epoch: epoch})
	if err != nil {
		return nil, err
	}
	var rewards *ledger.EpochRewardsInfo
	if dist := parent.leadership.StakeDistribution(); dist != nil {
		l, rewards, err = l.DistributeRewards(dist, parent.params)
		if err != nil {
			return nil, err
		}
	}

	snapshot := l
	if l.Consensus() == params.ConsensusGenesisPraos && parent.previousEpoch != nil {
		snapshot = parent.previousEpoch.ledger
	}
	schedule, err := leadership.New(epoch, snapshot)
	if err != nil {
		return nil, err
	}
	b.metrics.epochTransitions.Inc()
	b.log.Debug("entering epoch",
		zap.Uint32("epoch", epoch),
		zap.Stringer("parent", parent.ID()),
		zap.Stringer("consensus", schedule.Consensus()),
	)
	return &EpochState{
		Leadership:    schedule,
		Parameters:    l.Parameters(),
		TimeFrame:     parent.timeFrame,
		Ledger:        l,
		Rewards:       rewards,
		PreviousEpoch: parent,
	}, nil
}

func (b *Blockchain) apply(post *PostCheckedHeader, blk *block.Block, precomputed *ledger.Ledger) (*Ref, error) {
	header := post.Header
	l := precomputed
	if l == nil {
		evalCtx, err := header.ContentEvalContext()
		if err != nil {
			return nil, err
		}
		start := time.Now()
		l, err = post.Epoch.Ledger.ApplyBlock(post.Epoch.Parameters, blk.Fragments(), evalCtx)
		if err != nil {
			return nil, fmt.Errorf("%w %s: %w", ErrCannotApplyBlock, header.ID(), err)
		}
		b.metrics.blockApply.Observe(float64(time.Since(start)))
	} else if l.ChainLength() != header.ChainLength() || l.Date() != header.Date() {
		return nil, fmt.Errorf("%w: %s", ErrPrecomputedLedgerMismatch, header.ID())
	}

	return &Ref{
		ledger:        l,
		leadership:    post.Epoch.Leadership,
		params:        post.Epoch.Parameters,
		timeFrame:     post.Epoch.TimeFrame,
		header:        header,
		rewards:       post.Epoch.Rewards,
		previousEpoch: post.Epoch.PreviousEpoch,
	}, nil
}

// ApplyAndStoreBlock applies [blk] on the state of its parent, stores
// it and only then records its state. [precomputed], when set, is used
// as the ledger after the block. Blocks seen before are reported as
// AppliedExisting.
func (b *Blockchain) ApplyAndStoreBlock(ctx context.Context, post *PostCheckedHeader, blk *block.Block, precomputed *ledger.Ledger) (*AppliedBlock, error) {
	ctx, span := b.tracer.Start(ctx, "Blockchain.ApplyAndStoreBlock")
	defer span.End()

	id := blk.ID()
	if id != post.Header.ID() {
		return nil, fmt.Errorf("%w: %s is not %s", ErrBlockMismatch, id, post.Header.ID())
	}
	if ref, ok := b.refs.Get(id); ok {
		b.metrics.blocksPresent.Inc()
		return &AppliedBlock{Kind: AppliedExisting, Ref: ref}, nil
	}

	ref, err := b.apply(post, blk, precomputed)
	if err != nil {
		return nil, err
	}
	stored, err := b.storage.BlockExists(ctx, id)
	if err != nil {
		return nil, err
	}
	if stored {
		b.metrics.blocksPresent.Inc()
		b.log.Debug("block already in storage", zap.Stringer("blkID", id))
		return &AppliedBlock{Kind: AppliedExisting, Ref: b.insert(ref)}, nil
	}

	start := time.Now()
	err = b.storage.Put(ctx, blk)
	switch {
	case errors.Is(err, ErrBlockExists):
		// Stored by another writer since the check above.
		b.metrics.blocksPresent.Inc()
		b.log.Debug("block stored concurrently", zap.Stringer("blkID", id))
		return &AppliedBlock{Kind: AppliedExisting, Ref: b.insert(ref)}, nil
	case err != nil:
		return nil, err
	}
	b.metrics.blockStore.Observe(float64(time.Since(start)))
	b.metrics.blocksApplied.Inc()
	b.log.Debug("applied block",
		zap.Stringer("blkID", id),
		zap.Uint32("chainLength", uint32(ref.ChainLength())),
		zap.Stringer("date", ref.Date()),
	)
	return &AppliedBlock{Kind: AppliedNew, Ref: b.insert(ref)}, nil
}
