// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pebble

import (
	"time"

	"github.com/ava-labs/avalanchego/utils/metric"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/cockroachdb/pebble"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsInterval = 10 * time.Second
	namespace       = "block_db"

	levelLabel = "level"
	kindLabel  = "kind"
)

// File kinds reported by [metrics.files] and [metrics.fileBytes].
const (
	obsoleteTables = "obsolete_table"
	zombieTables   = "zombie_table"
	obsoleteWAL    = "obsolete_wal"
)

// metrics covers the engine under the block store. Reads are block and
// index lookups, stalls hold back block import.
type metrics struct {
	stallStart time.Time
	stalls     prometheus.Counter
	stallTime  metric.Averager
	readTime   metric.Averager

	compactions       *prometheus.CounterVec
	activeCompactions prometheus.Gauge

	diskUsage  prometheus.Gauge
	readAmp    prometheus.Gauge
	tombstones prometheus.Gauge
	files      *prometheus.GaugeVec
	fileBytes  *prometheus.GaugeVec
}

func newMetrics(r prometheus.Registerer) (*metrics, error) {
	stallTime, err := metric.NewAverager(
		namespace+"_write_stall",
		"time block writes spent stalled on the engine",
		r,
	)
	if err != nil {
		return nil, err
	}
	readTime, err := metric.NewAverager(
		namespace+"_read",
		"time spent reading a block or index entry",
		r,
	)
	if err != nil {
		return nil, err
	}
	m := &metrics{
		stallTime: stallTime,
		readTime:  readTime,
		stalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_stalls",
			Help:      "number of times block writes were stalled",
		}),
		compactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compactions",
			Help:      "number of compactions by input level",
		}, []string{levelLabel}),
		activeCompactions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_compactions",
			Help:      "number of running compactions",
		}),
		diskUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "disk_usage_bytes",
			Help:      "bytes on disk used by the block store",
		}),
		readAmp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "read_amplification",
			Help:      "number of sublevels a point read may visit",
		}),
		tombstones: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tombstones",
			Help:      "approximate count of deleted keys not yet compacted away",
		}),
		files: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unreferenced_files",
			Help:      "number of files the store no longer needs, by kind",
		}, []string{kindLabel}),
		fileBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unreferenced_file_bytes",
			Help:      "bytes in files the store no longer needs, by kind",
		}, []string{kindLabel}),
	}
	errs := wrappers.Errs{}
	errs.Add(
		r.Register(m.stalls),
		r.Register(m.compactions),
		r.Register(m.activeCompactions),
		r.Register(m.diskUsage),
		r.Register(m.readAmp),
		r.Register(m.tombstones),
		r.Register(m.files),
		r.Register(m.fileBytes),
	)
	return m, errs.Err
}

// compactionLevel folds every level below L0 into one label value.
func compactionLevel(info pebble.CompactionInfo) string {
	if len(info.Input) > 0 && info.Input[0].Level == 0 {
		return "l0"
	}
	return "lbase"
}

func (db *Database) onCompactionBegin(info pebble.CompactionInfo) {
	db.metrics.activeCompactions.Inc()
	db.metrics.compactions.WithLabelValues(compactionLevel(info)).Inc()
}

func (db *Database) onCompactionEnd(pebble.CompactionInfo) {
	db.metrics.activeCompactions.Dec()
}

func (db *Database) onWriteStallBegin(pebble.WriteStallBeginInfo) {
	db.metrics.stalls.Inc()
	db.metrics.stallStart = time.Now()
}

func (db *Database) onWriteStallEnd() {
	db.metrics.stallTime.Observe(float64(time.Since(db.metrics.stallStart)))
}

// collect samples the engine gauges.
func (db *Database) collect() {
	m := db.db.Metrics()
	db.metrics.diskUsage.Set(float64(m.DiskSpaceUsage()))
	db.metrics.readAmp.Set(float64(m.ReadAmp()))
	db.metrics.tombstones.Set(float64(m.Keys.TombstoneCount))
	for kind, v := range map[string][2]float64{
		obsoleteTables: {float64(m.Table.ObsoleteCount), float64(m.Table.ObsoleteSize)},
		zombieTables:   {float64(m.Table.ZombieCount), float64(m.Table.ZombieSize)},
		obsoleteWAL:    {float64(m.WAL.ObsoleteFiles), float64(m.WAL.ObsoletePhysicalSize)},
	} {
		db.metrics.files.WithLabelValues(kind).Set(v[0])
		db.metrics.fileBytes.WithLabelValues(kind).Set(v[1])
	}
}

func (db *Database) collectMetrics() {
	t := time.NewTicker(metricsInterval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			db.lock.RLock()
			if !db.closed {
				db.collect()
			}
			db.lock.RUnlock()
		case <-db.closing:
			return
		}
	}
}
