// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	blocksWritten prometheus.Counter
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
}

func newMetrics(r prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		blocksWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storage",
			Name:      "blocks_written",
			Help:      "number of blocks written to disk",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storage",
			Name:      "cache_hits",
			Help:      "number of blocks served from the decode cache",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storage",
			Name:      "cache_misses",
			Help:      "number of blocks read and decoded from disk",
		}),
	}
	return m, errors.Join(
		r.Register(m.blocksWritten),
		r.Register(m.cacheHits),
		r.Register(m.cacheMisses),
	)
}
