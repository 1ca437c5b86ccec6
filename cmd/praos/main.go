// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// praos builds block0 files and drives a node's block store.
package main

import (
	"fmt"
	"os"

	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/spf13/cobra"

	"github.com/ava-labs/praos/config"
)

type options struct {
	configPath string
	storageDir string
	logDir     string
	logLevel   string
}

// config loads the config file, if any, and applies the flag overrides.
func (o *options) config() (config.Config, error) {
	var (
		c   config.Config
		err error
	)
	if o.configPath != "" {
		c, err = config.LoadFile(o.configPath)
	} else {
		c, err = config.Load(nil)
	}
	if err != nil {
		return config.Config{}, err
	}
	if o.storageDir != "" {
		c.StorageDirectory = o.storageDir
	}
	if o.logDir != "" {
		c.LogDirectory = o.logDir
	}
	if o.logLevel != "" {
		level, err := logging.ToLevel(o.logLevel)
		if err != nil {
			return config.Config{}, err
		}
		c.LogLevel = level
		c.LogDisplayLevel = level
	}
	return c, c.Verify()
}

func newRootCmd() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "praos",
		Short: "Block0 tooling and block store for a Genesis Praos node",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.DisableAutoGenTag = true
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	flags := cmd.PersistentFlags()
	flags.StringVar(&o.configPath, "config", "", "JSON node config file")
	flags.StringVar(&o.storageDir, "storage-dir", "", "block store directory (overrides the config)")
	flags.StringVar(&o.logDir, "log-dir", "", "log directory (overrides the config)")
	flags.StringVar(&o.logLevel, "log-level", "", "log level (overrides the config)")

	cmd.AddCommand(
		newGenesisCmd(),
		newNodeCmd(o),
	)
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
