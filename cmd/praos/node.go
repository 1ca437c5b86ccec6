// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/trace"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ava-labs/praos/block"
	"github.com/ava-labs/praos/blockchain"
	"github.com/ava-labs/praos/config"
	"github.com/ava-labs/praos/crypto/ed25519"
	"github.com/ava-labs/praos/pebble"
	"github.com/ava-labs/praos/signer"
	"github.com/ava-labs/praos/storage"
	"github.com/ava-labs/praos/utils"

	praostrace "github.com/ava-labs/praos/trace"
)

var (
	ErrMissingParent = errors.New("parent block is not in storage")
	ErrNoSlot        = errors.New("key leads no slot in the coming epoch")
)

// node is an opened block store with the blockchain state on top of it.
type node struct {
	config  config.Config
	logs    *logFactory
	log     logging.Logger
	db      *pebble.Database
	tracer  trace.Tracer
	chain   *blockchain.Blockchain
	metrics prometheus.Gatherers
}

func openNode(c config.Config) (*node, error) {
	lc, err := c.LoggingConfig()
	if err != nil {
		return nil, err
	}
	logs := newLogFactory(lc)
	log, err := logs.Make("node")
	if err != nil {
		return nil, err
	}
	dbRegistry := prometheus.NewRegistry()
	db, err := pebble.New(
		c.StorageDirectory,
		c.PebbleConfig,
		prometheus.WrapRegistererWithPrefix(c.MetricsNamespace+"_", dbRegistry),
	)
	if err != nil {
		logs.Close()
		return nil, err
	}
	n := &node{config: c, logs: logs, log: log, db: db}
	if err := n.init(dbRegistry); err != nil {
		_ = n.Close()
		return nil, err
	}
	log.Debug("opened storage", zap.String("directory", c.StorageDirectory))
	return n, nil
}

func (n *node) init(dbRegistry *prometheus.Registry) error {
	tracer, err := praostrace.New(n.config.TraceConfig)
	if err != nil {
		return err
	}
	n.tracer = tracer

	storeRegistry := prometheus.NewRegistry()
	store, err := storage.New(
		n.log,
		prometheus.WrapRegistererWithPrefix(n.config.MetricsNamespace+"_", storeRegistry),
		n.config.StorageConfig(),
		n.db,
	)
	if err != nil {
		return err
	}
	chain, err := blockchain.New(n.log, tracer, store)
	if err != nil {
		return err
	}
	n.chain = chain
	n.metrics = prometheus.Gatherers{dbRegistry, storeRegistry, chain.Registry()}
	return nil
}

func (n *node) Close() error {
	errs := wrappers.Errs{}
	if n.tracer != nil {
		errs.Add(n.tracer.Close())
	}
	errs.Add(n.db.Close())
	n.logs.Close()
	return errs.Err
}

// load replays the main branch that grows from the block0 in [path].
func (n *node) load(ctx context.Context, path string) (*blockchain.Branch, error) {
	block0, err := readBlock(path)
	if err != nil {
		return nil, err
	}
	return n.chain.LoadFromStorage(ctx, block0)
}

// importBlock runs [blk] through the pipeline and moves HEAD when the
// block's chain is preferred. It reports whether the block was new.
func (n *node) importBlock(ctx context.Context, branch *blockchain.Branch, blk *block.Block) (bool, error) {
	pre, err := n.chain.PreCheckHeader(ctx, blk.Header)
	if err != nil {
		return false, err
	}
	switch pre.Kind {
	case blockchain.AlreadyPresent:
		return false, nil
	case blockchain.MissingParent:
		return false, fmt.Errorf("%w: %s", ErrMissingParent, blk.Header.Parent())
	}
	post, err := n.chain.PostCheckHeader(ctx, blk.Header, pre.Parent, blockchain.CheckHeaderProof)
	if err != nil {
		return false, err
	}
	applied, err := n.chain.ApplyAndStoreBlock(ctx, post, blk, nil)
	if err != nil {
		return false, err
	}
	if applied.Kind == blockchain.AppliedExisting {
		return false, nil
	}
	if blockchain.SelectChain(branch.Ref(), applied.Ref, time.Now()) == blockchain.PreferCandidate {
		branch.UpdateRef(applied.Ref)
		if err := n.chain.Storage().PutTag(ctx, blockchain.HeadTag, applied.Ref.ID()); err != nil {
			return false, err
		}
		n.log.Info("switched head",
			zap.Stringer("blkID", applied.Ref.ID()),
			zap.Uint32("chainLength", uint32(applied.Ref.ChainLength())),
		)
	}
	return true, nil
}

// gc drops the states the tip can no longer roll back to.
func (n *node) gc(branch *blockchain.Branch) {
	depth := n.config.GCDepth
	if depth == 0 {
		depth = branch.Ref().Ledger().Settings().EpochStabilityDepth
	}
	n.chain.GC(depth)
}

func (n *node) printMetrics(w io.Writer) error {
	families, err := n.metrics.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			value := m.GetCounter().GetValue() + m.GetGauge().GetValue() + m.GetUntyped().GetValue()
			fmt.Fprintf(w, "%s %g\n", mf.GetName(), value)
		}
	}
	return nil
}

// withNode opens the node for the duration of [f].
func withNode(o *options, f func(context.Context, *node) error) error {
	c, err := o.config()
	if err != nil {
		return err
	}
	n, err := openNode(c)
	if err != nil {
		return err
	}
	ctx := context.Background()
	return errors.Join(f(ctx, n), n.Close())
}

func newNodeCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Manage the block store",
	}
	cmd.PersistentFlags().String("block0", "block0.bin", "block0 file")
	cmd.AddCommand(
		newNodeInitCmd(o),
		newNodeTipCmd(o),
		newNodeImportCmd(o),
		newNodeProposeCmd(o),
	)
	return cmd
}

func newNodeInitCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Start a block store from block0",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := cmd.Flags().GetString("block0")
			if err != nil {
				return err
			}
			return withNode(o, func(ctx context.Context, n *node) error {
				block0, err := readBlock(path)
				if err != nil {
					return err
				}
				branch, err := n.chain.LoadFromBlock0(ctx, block0)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), branch.Ref().ID())
				return nil
			})
		},
	}
}

func newNodeTipCmd(o *options) *cobra.Command {
	var (
		checkpoints bool
		metrics     bool
	)
	cmd := &cobra.Command{
		Use:   "tip",
		Short: "Print the head of the main branch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := cmd.Flags().GetString("block0")
			if err != nil {
				return err
			}
			return withNode(o, func(ctx context.Context, n *node) error {
				branch, err := n.load(ctx, path)
				if err != nil {
					return err
				}
				tip := branch.Ref()
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "%s %d %s\n", tip.ID(), tip.ChainLength(), tip.Date())
				if checkpoints {
					points, err := n.chain.Checkpoints(ctx, branch)
					if err != nil {
						return err
					}
					for _, id := range utils.Map(idString, points) {
						fmt.Fprintln(w, id)
					}
				}
				if metrics {
					return n.printMetrics(w)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&checkpoints, "checkpoints", false, "also print the branch checkpoints")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "also print the node metrics")
	return cmd
}

func idString(id ids.ID) string {
	return id.String()
}

func newNodeImportCmd(o *options) *cobra.Command {
	var blocks []string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Validate and store blocks on top of the main branch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := cmd.Flags().GetString("block0")
			if err != nil {
				return err
			}
			return withNode(o, func(ctx context.Context, n *node) error {
				branch, err := n.load(ctx, path)
				if err != nil {
					return err
				}
				imported := 0
				for _, p := range blocks {
					blk, err := readBlock(p)
					if err != nil {
						return err
					}
					added, err := n.importBlock(ctx, branch, blk)
					if err != nil {
						return fmt.Errorf("%s: %w", p, err)
					}
					status := "present"
					if added {
						status = "new"
						imported++
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", blk.ID(), status)
				}
				n.gc(branch)
				tip := branch.Ref()
				utils.Outf("{{green}}imported %d blocks{{/}}, head {{cyan}}%s{{/}} at %s\n", imported, tip.ID(), tip.Date())
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&blocks, "block", nil, "block files, parents first")
	return cmd
}

func newNodeProposeCmd(o *options) *cobra.Command {
	var (
		seed   string
		output string
	)
	cmd := &cobra.Command{
		Use:   "propose",
		Short: "Sign an empty block in the next slot led by a BFT key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := cmd.Flags().GetString("block0")
			if err != nil {
				return err
			}
			rawSeed, err := hex.DecodeString(seed)
			if err != nil {
				return err
			}
			sk, err := ed25519.PrivateKeyFromSeed(rawSeed)
			if err != nil {
				return err
			}
			enclave := signer.New(signer.LeaderKeys{Bft: &sk})
			return withNode(o, func(ctx context.Context, n *node) error {
				branch, err := n.load(ctx, path)
				if err != nil {
					return err
				}
				blk, err := n.propose(branch, enclave)
				if err != nil {
					return err
				}
				if _, err := n.importBlock(ctx, branch, blk); err != nil {
					return err
				}
				if output != "" {
					b, err := blk.Marshal()
					if err != nil {
						return err
					}
					if err := utils.SaveBytes(output, b); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d %s\n", blk.ID(), blk.Header.ChainLength(), blk.Header.Date())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&seed, "bft-seed", "", "hex ed25519 seed of a BFT leader")
	cmd.Flags().StringVar(&output, "output", "", "file to write the block to")
	return cmd
}

// propose builds an empty block on the tip in the first slot [enclave]
// leads within one epoch.
func (n *node) propose(branch *blockchain.Branch, enclave *signer.Enclave) (*block.Block, error) {
	tip := branch.Ref()
	contents, err := block.NewContents()
	if err != nil {
		return nil, err
	}
	era := tip.Ledger().Era()
	date := tip.Date()
	for i := uint32(0); i < era.SlotsPerEpoch(); i++ {
		date = date.Next(era)
		epoch, err := n.chain.NewEpochLeadershipFrom(date.Epoch, tip)
		if err != nil {
			return nil, err
		}
		header, err := enclave.BuildHeader(epoch.Leadership, tip.Header(), contents, date)
		if errors.Is(err, signer.ErrNotLeader) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &block.Block{Header: header, Contents: contents}, nil
	}
	return nil, fmt.Errorf("%w: after %s", ErrNoSlot, tip.Date())
}
