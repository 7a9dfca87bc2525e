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
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/stretchr/testify/require"
	"github.com/sunyihoo/journalprune/core/chainindex"
	"github.com/sunyihoo/journalprune/core/types"
)

// testChain is a block index with an in-memory journal and node store.
type testChain struct {
	index   *chainindex.Index
	journal *testJournal
	nodes   ethdb.KeyValueStore
}

func newTestChain() *testChain {
	return &testChain{
		index:   chainindex.New(memorydb.New()),
		journal: newTestJournal(),
		nodes:   memorydb.New(),
	}
}

// add imports a block as side chain, its inserted keys are written to the
// node store.
func (c *testChain) add(number uint64, hash, parent common.Hash, inserted, deleted []string) *types.BlockInfo {
	info := &types.BlockInfo{Number: number, Hash: hash, ParentHash: parent}
	c.index.WriteBlock(info)
	c.journal.updates[hash] = makeUpdate(hash, inserted, deleted)
	for _, key := range inserted {
		c.nodes.Put([]byte(key), []byte{0x01})
	}
	return info
}

// extend imports a canonical block on top of the head.
func (c *testChain) extend(hash common.Hash, inserted, deleted []string) *types.BlockInfo {
	var (
		number uint64
		parent common.Hash
	)
	if head := c.index.BestBlock(); head != nil {
		number, parent = head.Number+1, head.Hash
	}
	info := c.add(number, hash, parent, inserted, deleted)
	if err := c.index.SetHead(hash); err != nil {
		panic(err)
	}
	return info
}

func (c *testChain) has(key string) bool {
	ok, _ := c.nodes.Has([]byte(key))
	return ok
}

func newTestDepthPruner(c *testChain, forkDepth, mainDepth uint64) *DepthPruner {
	p := NewDepthPruner(c.nodes, c.journal, c.index, Defaults)
	p.forkDepth, p.mainDepth = forkDepth, mainDepth
	p.newFilter = newExactFilter
	return p
}

func TestDepthPrunerFloors(t *testing.T) {
	p := NewDepthPruner(memorydb.New(), newTestJournal(), newTestChain().index, Config{ForkDepth: 10, MainDepth: 50})
	require.EqualValues(t, 192, p.ForkDepth())
	require.EqualValues(t, 192, p.MainDepth())

	p = NewDepthPruner(memorydb.New(), newTestJournal(), newTestChain().index, Config{ForkDepth: 200, MainDepth: 1000})
	require.EqualValues(t, 200, p.ForkDepth())
	require.EqualValues(t, 1000, p.MainDepth())
}

func TestDepthPrunerLazyInit(t *testing.T) {
	c := newTestChain()
	var chain []*types.BlockInfo
	for n := 0; n <= 6; n++ {
		chain = append(chain, c.extend(hashN(n), []string{"m" + string(rune('0'+n))}, nil))
	}
	c.add(3, hashN(33), chain[2].Hash, []string{"s3"}, nil)
	c.add(5, hashN(55), chain[4].Hash, []string{"s5"}, nil)

	p := newTestDepthPruner(c, 1, 3)
	require.False(t, p.Initialized())
	require.NoError(t, p.Prune(6), "pruning before initialisation is a no-op")
	require.True(t, c.has("m3"))

	require.NoError(t, p.LazyInit())
	require.True(t, p.Initialized())

	// Every block of heights 6 and 5, canonical ones of 4 and 3
	filter := p.inserted.(exactFilter)
	for _, key := range []string{"m3", "m4", "m5", "m6", "s5"} {
		require.True(t, filter.MaybeContains([]byte(key)), "key %s", key)
	}
	for _, key := range []string{"m2", "s3"} {
		require.False(t, filter.MaybeContains([]byte(key)), "key %s", key)
	}
	require.EqualValues(t, 5, p.Stats().KeysInserted)
}

func TestDepthPrunerMainChain(t *testing.T) {
	c := newTestChain()
	c.extend(hashN(0), nil, nil)
	c.extend(hashN(1), []string{"a"}, nil)
	c.extend(hashN(2), []string{"b"}, []string{"a"})
	c.extend(hashN(3), []string{"a"}, nil)
	c.extend(hashN(4), nil, []string{"b"})

	p := newTestDepthPruner(c, 1, 2)
	require.NoError(t, p.LazyInit())

	// Block #2 released a, #3 inserted it again
	require.NoError(t, p.Prune(4))
	require.True(t, c.has("a"))
	require.Nil(t, c.journal.Update(hashN(2)))
	require.EqualValues(t, 1, p.Stats().KeysDeletesRejected)

	for n := 5; n <= 6; n++ {
		p.Feed(c.journal.Update(c.extend(hashN(n), nil, nil).Hash))
		require.NoError(t, p.Prune(uint64(n)))
	}
	// Block #4 released b, nobody within reach inserts it
	require.False(t, c.has("b"))
	require.True(t, c.has("a"))
	require.EqualValues(t, 1, p.Stats().KeysDeleted)
}

//	#2 -> #3 main -> #4 -> #5 (inserts z) -> #6
//	  \
//	   -> #3 s3 (inserts x, deletes k) -> #4 s4 (inserts k, z)
//	                                  \
//	                                   -> #4 s4b (inserts w)
func TestDepthPrunerForks(t *testing.T) {
	c := newTestChain()
	for n := 0; n <= 2; n++ {
		c.extend(hashN(n), nil, nil)
	}
	c.nodes.Put([]byte("k"), []byte{0x01})

	s3 := c.add(3, hashN(33), hashN(2), []string{"x"}, []string{"k"})
	c.add(4, hashN(44), s3.Hash, []string{"k", "z"}, nil)
	c.add(4, hashN(45), s3.Hash, []string{"w"}, nil)

	c.extend(hashN(3), nil, nil)
	c.extend(hashN(4), nil, nil)
	c.extend(hashN(5), []string{"z"}, nil)
	c.extend(hashN(6), nil, nil)

	p := newTestDepthPruner(c, 3, 3)
	require.NoError(t, p.LazyInit())
	require.NoError(t, p.Prune(6))

	require.False(t, c.has("x"))
	require.False(t, c.has("w"))
	require.True(t, c.has("k"), "deleted by an ancestor, existed before the side chain")
	require.True(t, c.has("z"), "still inserted by the canonical chain")

	for _, hash := range []common.Hash{hashN(33), hashN(44), hashN(45), hashN(3)} {
		require.Nil(t, c.journal.Update(hash))
	}
	require.NotNil(t, c.journal.Update(hashN(4)))
	require.EqualValues(t, 2, p.Stats().KeysDeleted)
}

func TestDepthPrunerForkMissingUpdate(t *testing.T) {
	c := newTestChain()
	for n := 0; n <= 2; n++ {
		c.extend(hashN(n), nil, nil)
	}
	s3 := c.add(3, hashN(33), hashN(2), []string{"x"}, nil)
	c.add(4, hashN(44), s3.Hash, []string{"y"}, nil)
	for n := 3; n <= 6; n++ {
		c.extend(hashN(n), nil, nil)
	}
	delete(c.journal.updates, s3.Hash)

	p := newTestDepthPruner(c, 3, 3)
	require.NoError(t, p.LazyInit())
	require.NoError(t, p.Prune(6))

	// The whole subtree waits for the missing update
	require.True(t, c.has("x"))
	require.True(t, c.has("y"))
	require.NotNil(t, c.journal.Update(hashN(44)))
	require.Len(t, p.pending, 1)

	// Pruning the same head again does not walk anything twice
	require.NoError(t, p.Prune(6))
	require.Len(t, p.pending, 1)
	require.Zero(t, p.pending[0].attempts)

	c.journal.updates[s3.Hash] = makeUpdate(s3.Hash, []string{"x"}, nil)
	p.Feed(c.journal.Update(c.extend(hashN(7), nil, nil).Hash))
	require.NoError(t, p.Prune(7))

	require.False(t, c.has("x"))
	require.False(t, c.has("y"))
	require.Nil(t, c.journal.Update(s3.Hash))
	require.Nil(t, c.journal.Update(hashN(44)))
	require.Empty(t, p.pending)
	require.Nil(t, c.index.BlockByHash(hashN(44)))
}

// A key deleted by a side chain block with a lost update and inserted again
// by its child existed before the side chain, it must survive the walk.
//
//	#0 (inserts k) -> ... -> #2 -> #3 main -> ... -> #7
//	                            \
//	                             -> #3 s3 (deletes k) -> #4 s4 (inserts k)
func TestDepthPrunerForkDeferredAncestor(t *testing.T) {
	c := newTestChain()
	c.extend(hashN(0), []string{"k"}, nil)
	for n := 1; n <= 2; n++ {
		c.extend(hashN(n), nil, nil)
	}
	s3 := c.add(3, hashN(33), hashN(2), nil, []string{"k"})
	s4 := c.add(4, hashN(44), s3.Hash, []string{"k"}, nil)
	for n := 3; n <= 6; n++ {
		c.extend(hashN(n), nil, nil)
	}
	lost := c.journal.updates[s3.Hash]
	delete(c.journal.updates, s3.Hash)

	p := newTestDepthPruner(c, 3, 3)
	require.NoError(t, p.LazyInit())
	require.NoError(t, p.Prune(6))
	require.True(t, c.has("k"))

	// The update shows up again once the next block arrives
	c.journal.updates[s3.Hash] = lost
	p.Feed(c.journal.Update(c.extend(hashN(7), nil, nil).Hash))
	require.NoError(t, p.Prune(7))

	require.True(t, c.has("k"), "canonical node deleted")
	require.Nil(t, c.journal.Update(s3.Hash))
	require.Nil(t, c.journal.Update(s4.Hash))
	require.Zero(t, p.Stats().KeysDeleted)
}

// A subtree whose update never shows up is eventually released without
// deleting anything below the gap.
func TestDepthPrunerForkLostUpdate(t *testing.T) {
	c := newTestChain()
	c.extend(hashN(0), []string{"k"}, nil)
	for n := 1; n <= 2; n++ {
		c.extend(hashN(n), nil, nil)
	}
	s3 := c.add(3, hashN(33), hashN(2), nil, []string{"k"})
	s4 := c.add(4, hashN(44), s3.Hash, []string{"k", "y"}, nil)
	for n := 3; n <= 6; n++ {
		c.extend(hashN(n), nil, nil)
	}
	delete(c.journal.updates, s3.Hash)

	p := newTestDepthPruner(c, 3, 3)
	require.NoError(t, p.LazyInit())
	require.NoError(t, p.Prune(6))

	for n := 7; n <= 6+maxForkRetries; n++ {
		p.Feed(c.journal.Update(c.extend(hashN(n), nil, nil).Hash))
		require.NoError(t, p.Prune(uint64(n)))
		require.Len(t, p.pending, 1, "head %d", n)
	}
	n := 7 + maxForkRetries
	p.Feed(c.journal.Update(c.extend(hashN(n), nil, nil).Hash))
	require.NoError(t, p.Prune(uint64(n)))

	require.Empty(t, p.pending)
	require.Nil(t, c.journal.Update(s4.Hash))
	require.True(t, c.has("k"))
	require.True(t, c.has("y"))
	require.False(t, p.inserted.MaybeContains([]byte("y")))
}

// strictFilter is an exact counting set which records removals of keys it
// does not hold.
type strictFilter struct {
	exactFilter
	unmatched int
}

func (f *strictFilter) Remove(key []byte) {
	if !f.exactFilter.MaybeContains(key) {
		f.unmatched++
		return
	}
	f.exactFilter.Remove(key)
}

// The filter window rolls with the head: every removal matches an earlier
// insertion and a key inserted again within the window is kept.
func TestDepthPrunerRollingWindow(t *testing.T) {
	c := newTestChain()
	c.extend(hashN(0), nil, nil)
	c.extend(hashN(1), []string{"a"}, nil)
	c.extend(hashN(2), []string{"b"}, []string{"a"})

	p := newTestDepthPruner(c, 1, 2)
	filter := &strictFilter{exactFilter: make(exactFilter)}
	p.newFilter = func(uint64) (Filter, error) { return filter, nil }
	require.NoError(t, p.LazyInit())
	require.NoError(t, p.Prune(2))

	p.Feed(c.journal.Update(c.extend(hashN(3), []string{"c"}, []string{"b"}).Hash))
	require.NoError(t, p.Prune(3))

	p.Feed(c.journal.Update(c.extend(hashN(4), []string{"b"}, []string{"c"}).Hash))
	require.NoError(t, p.Prune(4))
	require.False(t, c.has("a"))

	p.Feed(c.journal.Update(c.add(5, hashN(55), hashN(4), []string{"s"}, nil).Hash))
	p.Feed(c.journal.Update(c.extend(hashN(5), nil, nil).Hash))
	require.NoError(t, p.Prune(5))
	require.True(t, c.has("b"), "inserted again by #4 within the window")
	require.EqualValues(t, 1, p.Stats().KeysDeletesRejected)

	for n := 6; n <= 8; n++ {
		p.Feed(c.journal.Update(c.extend(hashN(n), nil, nil).Hash))
		require.NoError(t, p.Prune(uint64(n)))
	}
	require.False(t, c.has("c"))
	require.False(t, c.has("s"))
	require.True(t, c.has("b"))

	require.Empty(t, filter.exactFilter)
	require.Zero(t, filter.unmatched)

	stats := p.Stats()
	require.EqualValues(t, 5, stats.KeysInserted)
	require.EqualValues(t, 3, stats.KeysDeleted)
	require.EqualValues(t, 1, stats.KeysDeletesRejected)
}
