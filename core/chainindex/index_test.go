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

package chainindex

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/stretchr/testify/require"
	"github.com/sunyihoo/journalprune/core/types"
)

func hash(tag byte, number uint64) common.Hash {
	return common.Hash{tag, byte(number >> 8), byte(number)}
}

// writeChain writes a linked run of side chain blocks on top of parent.
func writeChain(idx *Index, tag byte, parent *types.BlockInfo, n int) []*types.BlockInfo {
	var out []*types.BlockInfo
	for i := 0; i < n; i++ {
		info := &types.BlockInfo{
			Number:     parent.Number + 1,
			Hash:       hash(tag, parent.Number+1),
			ParentHash: parent.Hash,
		}
		idx.WriteBlock(info)
		out = append(out, info)
		parent = info
	}
	return out
}

func canonicalHashes(idx *Index, from, to uint64) []common.Hash {
	var hashes []common.Hash
	for n := from; n <= to; n++ {
		if info := idx.ChainBlockInfo(n); info != nil {
			hashes = append(hashes, info.Hash)
		}
	}
	return hashes
}

func TestIndexSetHead(t *testing.T) {
	idx := New(memorydb.New())
	require.Nil(t, idx.BestBlock())
	require.ErrorIs(t, idx.SetHead(common.Hash{0xff}), errUnknownBlock)

	genesis := &types.BlockInfo{Hash: hash('g', 0)}
	idx.WriteBlock(genesis)
	main := writeChain(idx, 'a', genesis, 5) // #1..#5
	side := writeChain(idx, 'b', main[1], 4) // #3..#6 on top of #2

	require.NoError(t, idx.SetHead(main[4].Hash))
	require.Equal(t, main[4].Hash, idx.BestBlock().Hash)
	require.Equal(t, []common.Hash{
		genesis.Hash, main[0].Hash, main[1].Hash, main[2].Hash, main[3].Hash, main[4].Hash,
	}, canonicalHashes(idx, 0, 6))

	// Reorg to the longer side chain
	require.NoError(t, idx.SetHead(side[3].Hash))
	require.Equal(t, []common.Hash{
		genesis.Hash, main[0].Hash, main[1].Hash, side[0].Hash, side[1].Hash, side[2].Hash, side[3].Hash,
	}, canonicalHashes(idx, 0, 6))
	for _, info := range main[2:] {
		require.False(t, idx.BlockByHash(info.Hash).IsMainChain(), "block %v", info)
	}
	require.Len(t, idx.BlockInfos(4), 2)

	// Rewind below both tips
	require.NoError(t, idx.SetHead(main[1].Hash))
	require.Equal(t, []common.Hash{genesis.Hash, main[0].Hash, main[1].Hash}, canonicalHashes(idx, 0, 6))

	// The head survives reopening the index
	reopened := New(idx.db)
	require.Equal(t, main[1].Hash, reopened.BestBlock().Hash)
}

func TestIndexChildren(t *testing.T) {
	idx := New(memorydb.New())

	genesis := &types.BlockInfo{Hash: hash('g', 0)}
	idx.WriteBlock(genesis)
	a := writeChain(idx, 'a', genesis, 2)
	b := writeChain(idx, 'b', genesis, 1)
	c := writeChain(idx, 'c', a[0], 1)

	children := idx.Children(genesis)
	require.ElementsMatch(t, []common.Hash{a[0].Hash, b[0].Hash}, []common.Hash{children[0].Hash, children[1].Hash})

	children = idx.Children(a[0])
	require.Len(t, children, 2)
	require.ElementsMatch(t, []common.Hash{a[1].Hash, c[0].Hash}, []common.Hash{children[0].Hash, children[1].Hash})

	require.Empty(t, idx.Children(b[0]))

	// Canonical records survive, side chain ones are dropped
	require.NoError(t, idx.SetHead(a[1].Hash))
	idx.DeleteBlock(1, a[0].Hash)
	idx.DeleteBlock(1, b[0].Hash)
	require.Len(t, idx.BlockInfos(1), 1)
	require.Equal(t, a[0].Hash, idx.BlockInfos(1)[0].Hash)
	require.Nil(t, idx.BlockByHash(b[0].Hash))
}
