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

// Package chainindex maintains the per-height index of imported blocks, both
// canonical and side chain, which the state pruners walk to find the blocks
// to prune.
package chainindex

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/sunyihoo/journalprune/core/rawdb"
	"github.com/sunyihoo/journalprune/core/types"
)

// errUnknownBlock is returned when the head is set to a block never written
// to the index.
var errUnknownBlock = errors.New("unknown block")

// Index is the block tree index. Every imported block owns one record keyed
// by height and hash. The canonical flag of the records is kept consistent
// with the head set through SetHead.
//
// Index 是区块树索引。每个导入的区块在索引中拥有一个按高度和哈希存储的记录。
type Index struct {
	db   ethdb.KeyValueStore
	head *types.BlockInfo // Cached canonical head, nil if the index is empty
	lock sync.RWMutex
}

// New opens the index stored in db.
func New(db ethdb.KeyValueStore) *Index {
	idx := &Index{db: db}
	if hash := rawdb.ReadHeadBlockHash(db); hash != (common.Hash{}) {
		idx.head = idx.blockByHash(hash)
		if idx.head == nil {
			log.Warn("Chain index head missing", "hash", hash)
		}
	}
	return idx
}

// WriteBlock stores the record of an imported block. The canonical flag is
// taken as given, callers normally write blocks as side chain and promote
// them with SetHead.
func (idx *Index) WriteBlock(info *types.BlockInfo) {
	idx.lock.Lock()
	defer idx.lock.Unlock()

	rawdb.WriteBlockInfo(idx.db, info)
}

// SetHead makes the given block the canonical head. Its ancestors become
// canonical, their siblings and every block above the new head become side
// chain.
func (idx *Index) SetHead(hash common.Hash) error {
	idx.lock.Lock()
	defer idx.lock.Unlock()

	head := idx.blockByHash(hash)
	if head == nil {
		return errUnknownBlock
	}
	batch := idx.db.NewBatch()

	// Demote everything above the new head
	if idx.head != nil {
		for n := head.Number + 1; n <= idx.head.Number; n++ {
			for _, info := range rawdb.ReadBlockInfos(idx.db, n) {
				if info.MainChain {
					info.MainChain = false
					rawdb.WriteBlockInfo(batch, info)
				}
			}
		}
	}
	// Walk back re-flagging heights until the old canonical chain is met
	var (
		cur     = head
		flipped int
	)
	for cur != nil {
		changed := false
		for _, info := range rawdb.ReadBlockInfos(idx.db, cur.Number) {
			if canonical := info.Hash == cur.Hash; info.MainChain != canonical {
				info.MainChain = canonical
				rawdb.WriteBlockInfo(batch, info)
				changed = true
			}
		}
		if !changed || cur.Number == 0 {
			break
		}
		flipped++
		cur = idx.blockByHash(cur.ParentHash)
	}
	rawdb.WriteHeadBlockHash(batch, hash)
	if err := batch.Write(); err != nil {
		return err
	}
	head.MainChain = true
	if idx.head != nil && flipped > 1 {
		log.Debug("Chain index reorganised", "old", idx.head.Number, "new", head.Number, "depth", flipped)
	}
	idx.head = head
	return nil
}

// BestBlock returns the canonical head, nil if no head was set yet.
func (idx *Index) BestBlock() *types.BlockInfo {
	idx.lock.RLock()
	defer idx.lock.RUnlock()

	if idx.head == nil {
		return nil
	}
	return idx.head.Copy()
}

// ChainBlockInfo returns the canonical block at the given height.
func (idx *Index) ChainBlockInfo(number uint64) *types.BlockInfo {
	idx.lock.RLock()
	defer idx.lock.RUnlock()

	for _, info := range rawdb.ReadBlockInfos(idx.db, number) {
		if info.MainChain {
			return info
		}
	}
	return nil
}

// BlockInfos returns every block known at the given height. The records carry
// the parent hash, which is all the pruners need to link heights together.
func (idx *Index) BlockInfos(number uint64) []*types.BlockInfo {
	idx.lock.RLock()
	defer idx.lock.RUnlock()

	return rawdb.ReadBlockInfos(idx.db, number)
}

// BlockByHash returns the record of the block with the given hash.
func (idx *Index) BlockByHash(hash common.Hash) *types.BlockInfo {
	idx.lock.RLock()
	defer idx.lock.RUnlock()

	return idx.blockByHash(hash)
}

func (idx *Index) blockByHash(hash common.Hash) *types.BlockInfo {
	number := rawdb.ReadBlockNumber(idx.db, hash)
	if number == nil {
		return nil
	}
	return rawdb.ReadBlockInfo(idx.db, *number, hash)
}

// Children returns the direct descendants of the given block.
func (idx *Index) Children(parent *types.BlockInfo) []*types.BlockInfo {
	var children []*types.BlockInfo
	for _, info := range idx.BlockInfos(parent.Number + 1) {
		if parent.IsParentOf(info) {
			children = append(children, info)
		}
	}
	return children
}

// DeleteBlock drops the record of a pruned side chain block. Canonical blocks
// are kept, the pruners resolve heights through them.
func (idx *Index) DeleteBlock(number uint64, hash common.Hash) {
	idx.lock.Lock()
	defer idx.lock.Unlock()

	info := rawdb.ReadBlockInfo(idx.db, number, hash)
	if info == nil || info.MainChain {
		return
	}
	rawdb.DeleteBlockInfo(idx.db, number, hash)
}
