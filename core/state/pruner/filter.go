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
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/sunyihoo/journalprune/common/qfilter"
	"github.com/sunyihoo/journalprune/triedb/journaldb"
)

// newCountingFilter is the default filter factory, a counting quotient filter
// with a fixed capacity.
func newCountingFilter(capacity uint64) (Filter, error) {
	if capacity == 0 {
		capacity = 1
	}
	filter, err := qfilter.New(capacity, capacity)
	if err != nil {
		return nil, err
	}
	return filter, nil
}

// filterCapacity returns the capacity of a filter tracking the inserts of the
// given number of blocks.
func filterCapacity(blocks int, entriesPerBlock uint64) uint64 {
	return min(uint64(blocks)*entriesPerBlock, FilterMaxSize)
}

// PruneFilter tracks the node keys inserted by a window of blocks. It only
// answers once it has seen the inserts of every block of the window, before
// that it claims to contain nothing and ignores mutations.
//
// PruneFilter 跟踪一个区块窗口插入的节点键。只有在看到窗口中每个区块的插入之后
// 才会给出回答，在此之前它声称不包含任何内容并忽略修改。
type PruneFilter struct {
	entriesPerBlock uint64
	newFilter       FilterFactory

	filter Filter // Nil until initialised
}

// NewPruneFilter creates an uninitialised filter sized entriesPerBlock keys
// per tracked block.
func NewPruneFilter(entriesPerBlock uint64) *PruneFilter {
	return &PruneFilter{
		entriesPerBlock: entriesPerBlock,
		newFilter:       newCountingFilter,
	}
}

// Init seeds the filter with the inserts of the given blocks. If the update of
// any block is missing the filter stays uninitialised and false is returned.
// An initialised filter is left untouched.
func (f *PruneFilter) Init(journal Journal, hashes []common.Hash) bool {
	if f.filter != nil {
		return true
	}
	updates := make([]*journaldb.Update, 0, len(hashes))
	for _, hash := range hashes {
		update := journal.Update(hash)
		if update == nil {
			log.Debug("Prune filter init aborted", "hash", hash, "err", errMissingUpdate)
			return false
		}
		updates = append(updates, update)
	}
	filter, err := f.newFilter(filterCapacity(len(hashes), f.entriesPerBlock))
	if err != nil {
		log.Error("Failed to create prune filter", "blocks", len(hashes), "err", err)
		return false
	}
	for _, update := range updates {
		insertKeys(filter, update)
	}
	f.filter = filter
	log.Debug("Initialised prune filter", "blocks", len(hashes))
	return true
}

// Ready reports whether the filter was initialised.
func (f *PruneFilter) Ready() bool { return f.filter != nil }

// Insert adds a key to an initialised filter.
func (f *PruneFilter) Insert(key []byte) {
	if f.filter != nil {
		f.filter.Insert(key)
	}
}

// Remove drops one insertion of the key from an initialised filter.
func (f *PruneFilter) Remove(key []byte) {
	if f.filter != nil {
		f.filter.Remove(key)
	}
}

// MaybeContains reports whether the key may have been inserted. An
// uninitialised filter contains nothing.
func (f *PruneFilter) MaybeContains(key []byte) bool {
	if f.filter == nil {
		return false
	}
	return f.filter.MaybeContains(key)
}

// insertKeys adds every key inserted by the update to the filter.
func insertKeys(filter Filter, update *journaldb.Update) {
	update.InsertedKeys().Each(func(key string) bool {
		filter.Insert([]byte(key))
		return false
	})
}

// removeKeys drops every key inserted by the update from the filter.
func removeKeys(filter Filter, update *journaldb.Update) {
	update.InsertedKeys().Each(func(key string) bool {
		filter.Remove([]byte(key))
		return false
	})
}
