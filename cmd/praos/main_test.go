// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"bytes"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/praos/blockchain"
	"github.com/ava-labs/praos/crypto/ed25519"
	"github.com/ava-labs/praos/genesis"
)

func execute(args ...string) (string, error) {
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func run(t *testing.T, args ...string) string {
	out, err := execute(args...)
	require.NoError(t, err)
	return out
}

type testNode struct {
	dir    string
	block0 string
}

func (n testNode) args(args ...string) []string {
	return append(args,
		"--block0", n.block0,
		"--storage-dir", filepath.Join(n.dir, "db"),
		"--log-dir", filepath.Join(n.dir, "logs"),
		"--log-level", "warn",
	)
}

func TestGenesisAndNode(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	sk, err := ed25519.GeneratePrivateKey()
	require.NoError(err)

	g := genesis.NewDefaultGenesis(sk.PublicKey())
	g.Rules.SlotsPerEpoch = 4
	g.Rules.SlotDuration = 1
	raw, err := g.Marshal()
	require.NoError(err)
	genesisPath := filepath.Join(dir, "genesis.yaml")
	require.NoError(os.WriteFile(genesisPath, raw, 0o600))
	expected, err := g.Block0()
	require.NoError(err)

	block0 := filepath.Join(dir, "block0.bin")
	require.Equal(expected.ID().String(), run(t, "genesis", "encode", "--input", genesisPath, "--output", block0))
	require.Equal(expected.ID().String(), run(t, "genesis", "hash", "--input", block0))

	n := testNode{dir: filepath.Join(dir, "a"), block0: block0}
	require.Equal(expected.ID().String(), run(t, n.args("node", "init")...))
	_, err = execute(n.args("node", "init")...)
	require.ErrorIs(err, blockchain.ErrBlock0AlreadyInStorage)

	blockPath := filepath.Join(dir, "block1.bin")
	proposed := strings.Fields(run(t, n.args("node", "propose", "--bft-seed", hex.EncodeToString(sk.Seed()), "--output", blockPath)...))
	require.Len(proposed, 3)
	require.Equal("1", proposed[1])
	require.Equal("0.1", proposed[2])
	blkID := proposed[0]

	lines := strings.Split(run(t, n.args("node", "tip", "--checkpoints")...), "\n")
	require.Equal([]string{blkID + " 1 0.1", blkID, expected.ID().String()}, lines)
	require.Equal(blkID+" present", run(t, n.args("node", "import", "--block", blockPath)...))

	// A second store learns the block through import.
	m := testNode{dir: filepath.Join(dir, "b"), block0: block0}
	run(t, m.args("node", "init")...)
	require.Equal(blkID+" new", run(t, m.args("node", "import", "--block", blockPath)...))
	tip := run(t, m.args("node", "tip", "--metrics")...)
	require.True(strings.HasPrefix(tip, blkID+" 1 0.1\n"))

	_, err = execute(m.args("node", "import", "--block", filepath.Join(dir, "missing.bin"))...)
	require.Error(err)
	_, err = execute(n.args("node", "propose", "--bft-seed", "zz")...)
	require.Error(err)
}

func TestTipBeforeInit(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	sk, err := ed25519.GeneratePrivateKey()
	require.NoError(err)
	g := genesis.NewDefaultGenesis(sk.PublicKey())
	raw, err := g.Marshal()
	require.NoError(err)
	genesisPath := filepath.Join(dir, "genesis.yaml")
	require.NoError(os.WriteFile(genesisPath, raw, 0o600))
	block0 := filepath.Join(dir, "block0.bin")
	run(t, "genesis", "encode", "--input", genesisPath, "--output", block0)

	n := testNode{dir: dir, block0: block0}
	_, err = execute(n.args("node", "tip")...)
	require.ErrorIs(err, blockchain.ErrBlock0NotInStorage)
}
