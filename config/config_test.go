// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	require := require.New(t)

	c, err := Load(nil)
	require.NoError(err)
	require.Equal(NewConfig(), c)

	c, err = Load([]byte(`{
		"logLevel": "debug",
		"storageDirectory": "/var/lib/praos",
		"gcDepth": 10,
		"traceConfig": {"enabled": true, "sampleRate": 1},
		"pebbleConfig": {"sync": false}
	}`))
	require.NoError(err)
	require.Equal(logging.Debug, c.LogLevel)
	require.Equal(logging.Info, c.LogDisplayLevel)
	require.Equal("/var/lib/praos", c.StorageDirectory)
	require.Equal(uint32(10), c.GCDepth)
	require.True(c.TraceConfig.Enabled)
	require.Equal(NewConfig().TraceConfig.Endpoint, c.TraceConfig.Endpoint)
	require.False(c.PebbleConfig.Sync)
	require.Equal(NewConfig().PebbleConfig.MaxOpenFiles, c.PebbleConfig.MaxOpenFiles)
	require.Equal(c.BlockCacheSize, c.StorageConfig().BlockCacheSize)

	_, err = Load([]byte(`{"storageDirectory": ""}`))
	require.ErrorIs(err, ErrNoStorageDirectory)
	_, err = Load([]byte(`{"blockCacheSize": 0}`))
	require.ErrorIs(err, ErrCacheSizeZero)
	_, err = Load([]byte(`{"logLevel": "loud"}`))
	require.Error(err)
}

func TestLoadFile(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(os.WriteFile(path, []byte(`{"logFormat": "json"}`), 0o600))
	c, err := LoadFile(path)
	require.NoError(err)

	lc, err := c.LoggingConfig()
	require.NoError(err)
	require.Equal(logging.JSON, lc.LogFormat)
	require.Equal(c.LogDirectory, lc.Directory)

	c.LogFormat = "fancy"
	_, err = c.LoggingConfig()
	require.Error(err)
}
