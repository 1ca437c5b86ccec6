// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pebble

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"testing"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/cockroachdb/pebble"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const batchSize = 100_000

func randBytes() []byte {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	if err != nil {
		panic(err)
	}
	return b
}

func testConfig() Config {
	cfg := NewDefaultConfig()
	cfg.CacheSize = 1024 * 1024
	cfg.Sync = false
	return cfg
}

func newDB(t *testing.T, dir string) *Database {
	db, err := New(dir, testConfig(), prometheus.NewRegistry())
	require.NoError(t, err)
	return db
}

// gathered returns the value of the single series of counter or gauge
// [name] in [g].
func gathered(t *testing.T, g prometheus.Gatherer, name string) float64 {
	families, err := g.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		require.Len(t, f.GetMetric(), 1, name)
		m := f.GetMetric()[0]
		if c := m.GetCounter(); c != nil {
			return c.GetValue()
		}
		return m.GetGauge().GetValue()
	}
	require.FailNow(t, "metric not gathered", name)
	return 0
}

func TestGetPutDelete(t *testing.T) {
	require := require.New(t)

	db := newDB(t, t.TempDir())
	key, value := []byte("block"), []byte("bytes")

	_, err := db.Get(key)
	require.ErrorIs(err, database.ErrNotFound)
	has, err := db.Has(key)
	require.NoError(err)
	require.False(has)

	require.NoError(db.Put(key, value))
	got, err := db.Get(key)
	require.NoError(err)
	require.Equal(value, got)
	has, err = db.Has(key)
	require.NoError(err)
	require.True(has)

	require.NoError(db.Delete(key))
	_, err = db.Get(key)
	require.ErrorIs(err, database.ErrNotFound)

	_, err = db.HealthCheck(context.Background())
	require.NoError(err)
	require.NoError(db.Close())
	require.ErrorIs(db.Close(), database.ErrClosed)
	_, err = db.Get(key)
	require.ErrorIs(err, database.ErrClosed)
	require.ErrorIs(db.Put(key, value), database.ErrClosed)
}

func TestReopen(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	db := newDB(t, dir)
	require.NoError(db.Put([]byte("tag"), []byte("head")))
	require.NoError(db.Close())

	db = newDB(t, dir)
	got, err := db.Get([]byte("tag"))
	require.NoError(err)
	require.Equal([]byte("head"), got)
	require.NoError(db.Close())
}

func TestBatch(t *testing.T) {
	require := require.New(t)

	db := newDB(t, t.TempDir())
	require.NoError(db.Put([]byte("stale"), []byte{1}))

	b := db.NewBatch()
	require.NoError(b.Put([]byte("a"), []byte{1}))
	require.NoError(b.Put([]byte("b"), []byte{2}))
	require.NoError(b.Delete([]byte("stale")))
	require.Positive(b.Size())

	// Nothing is visible before Write.
	_, err := db.Get([]byte("a"))
	require.ErrorIs(err, database.ErrNotFound)
	require.NoError(b.Write())

	got, err := db.Get([]byte("b"))
	require.NoError(err)
	require.Equal([]byte{2}, got)
	_, err = db.Get([]byte("stale"))
	require.ErrorIs(err, database.ErrNotFound)

	mem := memdb.New()
	require.NoError(mem.Put([]byte("stale"), []byte{1}))
	require.NoError(b.Replay(mem))
	got, err = mem.Get([]byte("a"))
	require.NoError(err)
	require.Equal([]byte{1}, got)
	has, err := mem.Has([]byte("stale"))
	require.NoError(err)
	require.False(has)

	b.Reset()
	require.Zero(b.Size())
	require.NoError(db.Close())
}

func TestIterator(t *testing.T) {
	require := require.New(t)

	db := newDB(t, t.TempDir())
	for _, k := range []string{"a1", "a2", "a3", "b1", "\xff"} {
		require.NoError(db.Put([]byte(k), []byte(k)))
	}

	collect := func(it database.Iterator) []string {
		defer it.Release()
		var keys []string
		for it.Next() {
			require.Equal(it.Key(), it.Value())
			keys = append(keys, string(it.Key()))
		}
		require.NoError(it.Error())
		return keys
	}

	require.Equal([]string{"a1", "a2", "a3", "b1", "\xff"}, collect(db.NewIterator()))
	require.Equal([]string{"a1", "a2", "a3"}, collect(db.NewIteratorWithPrefix([]byte("a"))))
	require.Equal([]string{"a2", "a3", "b1", "\xff"}, collect(db.NewIteratorWithStart([]byte("a2"))))
	require.Equal([]string{"a3"}, collect(db.NewIteratorWithStartAndPrefix([]byte("a3"), []byte("a"))))
	require.Equal([]string{"\xff"}, collect(db.NewIteratorWithPrefix([]byte("\xff"))))

	require.NoError(db.Compact(nil, nil))
	require.NoError(db.Close())

	it := db.NewIterator()
	require.False(it.Next())
	require.ErrorIs(it.Error(), database.ErrClosed)
	it.Release()
}

func TestConcurrentAccess(t *testing.T) {
	require := require.New(t)

	db := newDB(t, t.TempDir())
	var g errgroup.Group
	for w := 0; w < 4; w++ {
		w := w
		g.Go(func() error {
			for i := 0; i < 100; i++ {
				key := []byte(fmt.Sprintf("%d/%d", w, i))
				if err := db.Put(key, key); err != nil {
					return err
				}
				got, err := db.Get(key)
				if err != nil {
					return err
				}
				if string(got) != string(key) {
					return fmt.Errorf("read %q for %q", got, key)
				}
			}
			return nil
		})
	}
	require.NoError(g.Wait())

	it := db.NewIterator()
	count := 0
	for it.Next() {
		count++
	}
	require.NoError(it.Error())
	it.Release()
	require.Equal(400, count)
	require.NoError(db.Close())
}

func TestMetrics(t *testing.T) {
	require := require.New(t)

	registry := prometheus.NewRegistry()
	db, err := New(t.TempDir(), testConfig(), registry)
	require.NoError(err)

	for i := 0; i < 100; i++ {
		require.NoError(db.Put(randBytes(), randBytes()))
	}
	_, err = db.Get([]byte("missing"))
	require.ErrorIs(err, database.ErrNotFound)
	_, err = db.Has([]byte("missing"))
	require.NoError(err)
	require.Equal(float64(2), gathered(t, registry, "block_db_read_count"))

	require.NoError(db.Compact(nil, nil))
	require.Zero(gathered(t, registry, "block_db_active_compactions"))

	db.collect()
	require.Positive(gathered(t, registry, "block_db_disk_usage_bytes"))
	require.Zero(gathered(t, registry, "block_db_write_stalls"))
	require.NoError(db.Close())

	// Names are taken, a second store needs its own registry.
	_, err = New(t.TempDir(), testConfig(), registry)
	require.Error(err)
}

func TestCompactionLevel(t *testing.T) {
	require := require.New(t)

	require.Equal("l0", compactionLevel(pebble.CompactionInfo{Input: []pebble.LevelInfo{{Level: 0}}}))
	require.Equal("lbase", compactionLevel(pebble.CompactionInfo{Input: []pebble.LevelInfo{{Level: 4}}}))
	require.Equal("lbase", compactionLevel(pebble.CompactionInfo{}))
}

func TestPrefixUpperBound(t *testing.T) {
	require := require.New(t)

	require.Nil(prefixUpperBound(nil))
	require.Nil(prefixUpperBound([]byte{0xFF, 0xFF}))
	require.Equal([]byte{0x02}, prefixUpperBound([]byte{0x01}))
	require.Equal([]byte{0x01, 0x01}, prefixUpperBound([]byte{0x01, 0x00, 0xFF}))
}

func BenchmarkBatchInsertion(b *testing.B) {
	for _, sync := range []bool{false, true} {
		b.Run(fmt.Sprintf("sync=%t", sync), func(b *testing.B) {
			b.StopTimer()
			tdir := b.TempDir()
			cfg := NewDefaultConfig()
			cfg.Sync = sync
			db, err := New(tdir, cfg, prometheus.NewRegistry())
			if err != nil {
				b.Fatal(err)
			}

			keys := make([][]byte, batchSize)
			for i := 0; i < batchSize; i++ {
				keys[i] = randBytes()
			}

			b.StartTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				batch := db.NewBatch()
				for j := 0; j < batchSize; j++ {
					if err := batch.Put(keys[j], randBytes()); err != nil {
						b.Fatal(err)
					}
				}
				if err := batch.Write(); err != nil {
					b.Fatal(err)
				}
			}
			b.StopTimer()

			if err := db.Close(); err != nil {
				b.Fatal(err)
			}
			if err := os.RemoveAll(tdir); err != nil {
				b.Fatal(err)
			}
		})
	}
}
