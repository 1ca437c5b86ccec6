// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package blockchain

import (
	"github.com/ava-labs/avalanchego/utils/metric"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "blockchain"

type metrics struct {
	headersPreChecked  prometheus.Counter
	headersPostChecked prometheus.Counter
	headersRejected    prometheus.Counter
	blocksApplied      prometheus.Counter
	blocksPresent      prometheus.Counter
	epochTransitions   prometheus.Counter
	refs               prometheus.Gauge
	blockApply         metric.Averager
	blockStore         metric.Averager
}

func newMetrics() (*prometheus.Registry, *metrics, error) {
	r := prometheus.NewRegistry()

	blockApply, err := metric.NewAverager(
		namespace+"_block_apply",
		"time spent applying block contents to the parent ledger",
		r,
	)
	if err != nil {
		return nil, nil, err
	}
	blockStore, err := metric.NewAverager(
		namespace+"_block_store",
		"time spent writing blocks to storage",
		r,
	)
	if err != nil {
		return nil, nil, err
	}

	m := &metrics{
		headersPreChecked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "headers_pre_checked",
			Help:      "number of headers linked to a known parent",
		}),
		headersPostChecked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "headers_post_checked",
			Help:      "number of headers verified against the leadership schedule",
		}),
		headersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "headers_rejected",
			Help:      "number of headers failing a check",
		}),
		blocksApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_applied",
			Help:      "number of blocks applied and stored",
		}),
		blocksPresent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_present",
			Help:      "number of blocks submitted again",
		}),
		epochTransitions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "epoch_transitions",
			Help:      "number of epoch transitions computed",
		}),
		refs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refs",
			Help:      "number of states held in the multiverse",
		}),
		blockApply: blockApply,
		blockStore: blockStore,
	}
	errs := wrappers.Errs{}
	errs.Add(
		r.Register(m.headersPreChecked),
		r.Register(m.headersPostChecked),
		r.Register(m.headersRejected),
		r.Register(m.blocksApplied),
		r.Register(m.blocksPresent),
		r.Register(m.epochTransitions),
		r.Register(m.refs),
	)
	return r, m, errs.Err
}
