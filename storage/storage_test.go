// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"context"
	"testing"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/praos/block"
	"github.com/ava-labs/praos/chaintime"
	"github.com/ava-labs/praos/crypto/ed25519"
)

func newStore(t *testing.T, cacheSize int) (*BlockStore, database.Database) {
	db := memdb.New()
	s, err := New(logging.NoLog{}, prometheus.NewRegistry(), Config{BlockCacheSize: cacheSize}, db)
	require.NoError(t, err)
	return s, db
}

// chain returns block0 followed by [n] BFT blocks, one per slot.
func chain(t *testing.T, n int) []*block.Block {
	require := require.New(t)

	contents, err := block.NewContents()
	require.NoError(err)
	header, err := block.NewHeaderBuilder(block.VersionUnsigned, contents).Genesis().Date(chaintime.BlockDate{}).Unsigned()
	require.NoError(err)
	blocks := []*block.Block{{Header: header, Contents: contents}}
	return append(blocks, extend(t, blocks[0], n)...)
}

func extend(t *testing.T, parent *block.Block, n int) []*block.Block {
	require := require.New(t)

	sk, err := ed25519.GeneratePrivateKey()
	require.NoError(err)
	contents, err := block.NewContents()
	require.NoError(err)
	var blocks []*block.Block
	for i := 0; i < n; i++ {
		stage, err := block.NewHeaderBuilder(block.VersionBft, contents).Parent(parent.Header)
		require.NoError(err)
		data, err := stage.Date(chaintime.BlockDate{Slot: parent.Header.Date().Slot + 1}).Bft()
		require.NoError(err)
		sig := data.Leader(sk.PublicKey())
		header, err := sig.Sign(ed25519.Sign(sig.AuthBytes(), sk))
		require.NoError(err)
		parent = &block.Block{Header: header, Contents: contents}
		blocks = append(blocks, parent)
	}
	return blocks
}

func TestPutGet(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	s, _ := newStore(t, 4)
	blocks := chain(t, 2)
	for _, blk := range blocks {
		require.NoError(s.Put(ctx, blk))
	}
	for i, blk := range blocks {
		exists, err := s.BlockExists(ctx, blk.ID())
		require.NoError(err)
		require.True(exists)

		got, err := s.Get(ctx, blk.ID())
		require.NoError(err)
		require.Equal(blk.Header.Bytes(), got.Header.Bytes())

		length, err := s.ChainLength(ctx, blk.ID())
		require.NoError(err)
		require.Equal(block.ChainLength(i), length)
	}
	parent, err := s.Parent(ctx, blocks[2].ID())
	require.NoError(err)
	require.Equal(blocks[1].ID(), parent)

	require.ErrorIs(s.Put(ctx, blocks[1]), ErrBlockExists)
	_, err = s.Get(ctx, ids.GenerateTestID())
	require.ErrorIs(err, database.ErrNotFound)
}

func TestGetDecodesFromDisk(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	s, db := newStore(t, 1)
	blocks := chain(t, 2)
	for _, blk := range blocks {
		require.NoError(s.Put(ctx, blk))
	}

	// Block0 was evicted from the cache and is read back from disk.
	reopened, err := New(logging.NoLog{}, prometheus.NewRegistry(), NewDefaultConfig(), db)
	require.NoError(err)
	got, err := reopened.Get(ctx, blocks[0].ID())
	require.NoError(err)
	require.Equal(blocks[0].ID(), got.ID())
	require.True(got.Header.IsGenesis())
}

func TestPutRequiresParent(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	s, _ := newStore(t, 4)
	blocks := chain(t, 2)
	require.NoError(s.Put(ctx, blocks[0]))
	require.ErrorIs(s.Put(ctx, blocks[2]), ErrMissingParent)
	exists, err := s.BlockExists(ctx, blocks[2].ID())
	require.NoError(err)
	require.False(exists)
}

func TestStreamFromTo(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	s, _ := newStore(t, 2)
	blocks := chain(t, 5)
	fork := extend(t, blocks[2], 2)
	for _, blk := range append(blocks, fork...) {
		require.NoError(s.Put(ctx, blk))
	}

	collect := func(from, to ids.ID) ([]ids.ID, error) {
		var got []ids.ID
		err := s.StreamFromTo(ctx, from, to, func(blk *block.Block) error {
			got = append(got, blk.ID())
			return nil
		})
		return got, err
	}

	got, err := collect(blocks[0].ID(), blocks[5].ID())
	require.NoError(err)
	want := make([]ids.ID, 0, 5)
	for _, blk := range blocks[1:] {
		want = append(want, blk.ID())
	}
	require.Equal(want, got)

	got, err = collect(blocks[1].ID(), fork[1].ID())
	require.NoError(err)
	require.Equal([]ids.ID{blocks[2].ID(), fork[0].ID(), fork[1].ID()}, got)

	got, err = collect(blocks[5].ID(), blocks[5].ID())
	require.NoError(err)
	require.Empty(got)

	_, err = collect(blocks[4].ID(), fork[1].ID())
	require.ErrorIs(err, ErrNotAncestor)
	_, err = collect(blocks[3].ID(), fork[1].ID())
	require.ErrorIs(err, ErrNotAncestor)
	_, err = collect(blocks[5].ID(), blocks[1].ID())
	require.ErrorIs(err, ErrNotAncestor)
}

func TestTags(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	s, _ := newStore(t, 4)
	blocks := chain(t, 1)
	_, err := s.GetTag(ctx, "HEAD")
	require.ErrorIs(err, database.ErrNotFound)
	require.ErrorIs(s.PutTag(ctx, "HEAD", blocks[0].ID()), database.ErrNotFound)

	for _, blk := range blocks {
		require.NoError(s.Put(ctx, blk))
	}
	require.NoError(s.PutTag(ctx, "HEAD", blocks[0].ID()))
	require.NoError(s.PutTag(ctx, "HEAD", blocks[1].ID()))
	head, err := s.GetTag(ctx, "HEAD")
	require.NoError(err)
	require.Equal(blocks[1].ID(), head)
}

func TestZeroCacheSize(t *testing.T) {
	_, err := New(logging.NoLog{}, prometheus.NewRegistry(), Config{}, memdb.New())
	require.ErrorIs(t, err, ErrCacheSizeZero)
}
