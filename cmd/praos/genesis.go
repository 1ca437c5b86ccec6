// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ava-labs/praos/block"
	"github.com/ava-labs/praos/genesis"
	"github.com/ava-labs/praos/utils"
)

func newGenesisCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "genesis",
		Short: "Build and inspect block0",
	}
	cmd.AddCommand(newGenesisEncodeCmd(), newGenesisHashCmd())
	return cmd
}

func newGenesisEncodeCmd() *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode a YAML genesis into a block0 file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := utils.LoadBytes(input, -1)
			if err != nil {
				return err
			}
			g, err := genesis.Parse(raw)
			if err != nil {
				return err
			}
			blk, err := g.Block0()
			if err != nil {
				return err
			}
			b, err := blk.Marshal()
			if err != nil {
				return err
			}
			if err := utils.SaveBytes(output, b); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), blk.ID())
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "genesis.yaml", "YAML genesis")
	cmd.Flags().StringVar(&output, "output", "block0.bin", "block0 file to write")
	return cmd
}

func newGenesisHashCmd() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Print the id of a block0 file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			blk, err := readBlock(input)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), blk.ID())
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "block0.bin", "block0 file")
	return cmd
}

func readBlock(path string) (*block.Block, error) {
	raw, err := utils.LoadBytes(path, -1)
	if err != nil {
		return nil, err
	}
	blk, err := block.UnmarshalBlock(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return blk, nil
}
