// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config holds the node configuration.
package config

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/ava-labs/avalanchego/utils/logging"

	"github.com/ava-labs/praos/pebble"
	"github.com/ava-labs/praos/storage"
	"github.com/ava-labs/praos/trace"
)

var (
	ErrNoStorageDirectory = errors.New("storage directory is not set")
	ErrCacheSizeZero      = errors.New("block cache size must be positive")
)

type Config struct {
	LogLevel        logging.Level `json:"logLevel"`
	LogDisplayLevel logging.Level `json:"logDisplayLevel"`
	LogDirectory    string        `json:"logDirectory"`
	// plain, colors, json or auto
	LogFormat string `json:"logFormat"`

	StorageDirectory string `json:"storageDirectory"`
	BlockCacheSize   int    `json:"blockCacheSize"`
	// GCDepth is how many blocks below the tip states are kept in
	// memory. Zero uses the epoch stability depth of the tip.
	GCDepth uint32 `json:"gcDepth"`

	MetricsNamespace string        `json:"metricsNamespace"`
	TraceConfig      trace.Config  `json:"traceConfig"`
	PebbleConfig     pebble.Config `json:"pebbleConfig"`
}

func NewConfig() Config {
	return Config{
		LogLevel:         logging.Info,
		LogDisplayLevel:  logging.Info,
		LogDirectory:     "logs",
		LogFormat:        "auto",
		StorageDirectory: "db",
		BlockCacheSize:   storage.NewDefaultConfig().BlockCacheSize,
		MetricsNamespace: "praos",
		TraceConfig:      trace.NewDefaultConfig(),
		PebbleConfig:     pebble.NewDefaultConfig(),
	}
}

// Load overlays the JSON in [raw] onto the defaults.
func Load(raw []byte) (Config, error) {
	c := NewConfig()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &c); err != nil {
			return Config{}, err
		}
	}
	return c, c.Verify()
}

func LoadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Load(raw)
}

func (c Config) Verify() error {
	if c.StorageDirectory == "" {
		return ErrNoStorageDirectory
	}
	if c.BlockCacheSize <= 0 {
		return ErrCacheSizeZero
	}
	return nil
}

func (c Config) StorageConfig() storage.Config {
	return storage.Config{BlockCacheSize: c.BlockCacheSize}
}

// LoggingConfig is the rotating log configuration for loggers writing
// to [LogDirectory].
func (c Config) LoggingConfig() (logging.Config, error) {
	format, err := logging.ToFormat(c.LogFormat, os.Stderr.Fd())
	if err != nil {
		return logging.Config{}, err
	}
	return logging.Config{
		RotatingWriterConfig: logging.RotatingWriterConfig{
			MaxSize:   8, // MB
			MaxFiles:  4,
			MaxAge:    7, // days
			Directory: c.LogDirectory,
			Compress:  false,
		},
		LogLevel:     c.LogLevel,
		DisplayLevel: c.LogDisplayLevel,
		LogFormat:    format,
	}, nil
}
