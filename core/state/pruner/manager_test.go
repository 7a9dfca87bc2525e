// Copyright 2025 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package pruner

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/stretchr/testify/require"
	"github.com/sunyihoo/journalprune/core/chainindex"
	"github.com/sunyihoo/journalprune/core/rawdb"
	"github.com/sunyihoo/journalprune/core/types"
	"github.com/sunyihoo/journalprune/triedb/journaldb"
)

// testBackend imports blocks the way the chain does: journal first, then the
// index, then the manager is notified.
type testBackend struct {
	t        *testing.T
	config   Config
	db       ethdb.KeyValueStore
	nodes    ethdb.KeyValueStore
	index    *chainindex.Index
	journal  *journaldb.Journal
	recorder *journaldb.Database
	manager  *Manager
}

func newTestBackend(t *testing.T, config Config) *testBackend {
	db := memorydb.New()
	b := &testBackend{
		t:       t,
		config:  config,
		db:      db,
		nodes:   memorydb.New(),
		index:   chainindex.New(db),
		journal: journaldb.New(db, nil),
	}
	b.recorder = journaldb.NewDatabase(b.nodes, b.journal)
	b.restart()
	return b
}

// restart replaces the manager with a fresh one over the same databases.
func (b *testBackend) restart() {
	if b.manager != nil {
		b.manager.Close()
	}
	b.manager = NewManager(b.config, b.db, b.nodes, b.journal, b.index)
	b.t.Cleanup(b.manager.Close)
}

// write imports a block without notifying the manager. The node writes go
// through the journaling layer.
func (b *testBackend) write(number uint64, hash, parent common.Hash, canonical bool, inserted, deleted []string) *types.BlockInfo {
	for _, key := range inserted {
		require.NoError(b.t, b.recorder.Put([]byte(key), []byte{0x01}))
	}
	for _, key := range deleted {
		require.NoError(b.t, b.recorder.Delete([]byte(key)))
	}
	_, err := b.recorder.Commit(hash)
	require.NoError(b.t, err)

	info := &types.BlockInfo{Number: number, Hash: hash, ParentHash: parent}
	b.index.WriteBlock(info)
	if canonical {
		require.NoError(b.t, b.index.SetHead(hash))
	}
	return info
}

func (b *testBackend) commit(number uint64, hash, parent common.Hash, canonical bool, inserted, deleted []string) {
	info := b.write(number, hash, parent, canonical, inserted, deleted)
	require.NoError(b.t, b.manager.BlockCommitted(info))
}

// mainBlock returns the arguments of canonical block n, which moves value
// v(n-1) to v(n).
func mainBlock(n int) (uint64, common.Hash, common.Hash, bool, []string, []string) {
	var (
		parent  common.Hash
		deleted []string
	)
	if n > 0 {
		parent, deleted = hashN(n-1), []string{fmt.Sprintf("v%d", n-1)}
	}
	return uint64(n), hashN(n), parent, true, []string{fmt.Sprintf("v%d", n)}, deleted
}

func (b *testBackend) commitMain(n int) {
	b.commit(mainBlock(n))
}

func (b *testBackend) has(key string) bool {
	ok, _ := b.nodes.Has([]byte(key))
	return ok
}

func (b *testBackend) lastPruned() *uint64 {
	return rawdb.ReadLastPrunedNumber(b.db)
}

func TestManagerSegment(t *testing.T) {
	for _, filter := range []bool{false, true} {
		t.Run(fmt.Sprintf("filter=%t", filter), func(t *testing.T) {
			b := newTestBackend(t, Config{Strategy: StrategySegment, Window: 2, UpcomingFilter: filter})

			events := make(chan PruneEvent, 16)
			sub := b.manager.SubscribePruneEvent(events)
			defer sub.Unsubscribe()

			b.commitMain(0)
			b.commitMain(1)
			b.commitMain(2)
			b.commit(2, hashN(22), hashN(1), false, []string{"f"}, nil)
			require.Nil(t, b.lastPruned())

			for n := 3; n <= 6; n++ {
				b.commitMain(n)
				require.EqualValues(t, n-2, *b.lastPruned())
			}
			for _, key := range []string{"v0", "v1", "v2", "v3", "f"} {
				require.False(t, b.has(key), "key %s", key)
			}
			for _, key := range []string{"v4", "v5", "v6"} {
				require.True(t, b.has(key), "key %s", key)
			}
			for n := 1; n <= 4; n++ {
				require.False(t, b.journal.Has(hashN(n)), "block %d", n)
			}
			require.False(t, b.journal.Has(hashN(22)))
			require.True(t, b.journal.Has(hashN(5)))

			require.Len(t, events, 4)
			for n := 1; n <= 4; n++ {
				ev := <-events
				require.Equal(t, StrategySegment, ev.Strategy)
				require.EqualValues(t, n, ev.From)
				require.EqualValues(t, n, ev.To)
				require.EqualValues(t, n+2, ev.Head)
				if n == 2 {
					require.Len(t, ev.Report.Forks, 1)
				}
			}
		})
	}
}

// A side chain reaching above the pruning target postpones the pass until the
// canonical chain catches up.
func TestManagerSegmentPostponed(t *testing.T) {
	b := newTestBackend(t, Config{Strategy: StrategySegment, Window: 1})

	b.commitMain(0)
	b.commitMain(1)
	b.commit(1, hashN(11), hashN(0), false, []string{"s1"}, nil)
	b.commit(2, hashN(12), hashN(11), false, []string{"s2"}, nil)

	b.commitMain(2)
	require.EqualValues(t, 0, *b.lastPruned())
	require.True(t, b.has("s1"))
	require.True(t, b.has("v0"))

	b.commitMain(3)
	require.EqualValues(t, 2, *b.lastPruned())
	require.False(t, b.has("s1"))
	require.False(t, b.has("s2"))
	require.False(t, b.has("v1"))
	require.True(t, b.has("v2"))

	// Nothing left to prune at the current head
	require.NoError(t, b.manager.Prune())
	require.EqualValues(t, 2, *b.lastPruned())
}

func TestManagerDepth(t *testing.T) {
	b := newTestBackend(t, Config{Strategy: StrategyDepth, ForkDepth: 192, MainDepth: 192})
	require.NotNil(t, b.manager.depth)

	for n := 0; n < 200; n++ {
		b.commitMain(n)
	}
	// Genesis inserts stay in the filter for good, #1 to #7 were pruned
	require.True(t, b.has("v0"))
	for n := 1; n <= 6; n++ {
		require.False(t, b.has(fmt.Sprintf("v%d", n)), "key v%d", n)
	}
	require.True(t, b.has("v7"))

	for n := 1; n <= 7; n++ {
		require.False(t, b.journal.Has(hashN(n)), "block %d", n)
	}
	require.True(t, b.journal.Has(hashN(8)))

	stats := b.manager.depth.Stats()
	require.EqualValues(t, 6, stats.KeysDeleted)
	require.EqualValues(t, 1, stats.KeysDeletesRejected)
	require.EqualValues(t, 200, stats.KeysInserted)
}

// A restarted manager resumes the depth strategy from the head processed
// before and catches up on every height since.
func TestManagerDepthResume(t *testing.T) {
	b := newTestBackend(t, Config{Strategy: StrategyDepth, ForkDepth: 192, MainDepth: 192})
	for n := 0; n < 200; n++ {
		b.commitMain(n)
	}
	require.EqualValues(t, 199, *rawdb.ReadDepthPrunedNumber(b.db))
	require.True(t, b.has("v7"))

	// Blocks imported while no pruner was running
	b.restart()
	for n := 200; n <= 210; n++ {
		b.write(mainBlock(n))
	}
	events := make(chan PruneEvent, 1)
	sub := b.manager.SubscribePruneEvent(events)
	defer sub.Unsubscribe()

	require.NoError(t, b.manager.Prune())
	ev := <-events
	require.EqualValues(t, 200, ev.From)
	require.EqualValues(t, 210, ev.To)
	require.EqualValues(t, 210, *rawdb.ReadDepthPrunedNumber(b.db))

	for n := 7; n <= 17; n++ {
		require.False(t, b.has(fmt.Sprintf("v%d", n)), "key v%d", n)
	}
	require.True(t, b.has("v18"))
	require.False(t, b.journal.Has(hashN(18)))
	require.True(t, b.journal.Has(hashN(19)))

	// Nothing left to do at the same head
	require.NoError(t, b.manager.Prune())
	require.Empty(t, events)
}
