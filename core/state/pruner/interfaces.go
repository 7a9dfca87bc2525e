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
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sunyihoo/journalprune/core/types"
	"github.com/sunyihoo/journalprune/triedb/journaldb"
)

// errMissingUpdate is reported when the journal holds no update for a block
// the pruner needs. It is a transient condition, the pass is retried later.
var errMissingUpdate = errors.New("missing journal update")

// Journal is the per block record of inserted and deleted node keys consumed
// by the pruners.
type Journal interface {
	// Update retrieves the update of the given block, nil if it's unknown.
	Update(hash common.Hash) *journaldb.Update

	// Delete releases the update of the given block.
	Delete(hash common.Hash)
}

// BlockStore is the index of imported blocks walked by the pruners.
type BlockStore interface {
	BestBlock() *types.BlockInfo
	ChainBlockInfo(number uint64) *types.BlockInfo
	BlockInfos(number uint64) []*types.BlockInfo
	BlockByHash(hash common.Hash) *types.BlockInfo
	Children(parent *types.BlockInfo) []*types.BlockInfo
}

// BlockDeleter is implemented by block stores which can forget the side
// chain blocks dropped by the depth pruner.
type BlockDeleter interface {
	DeleteBlock(number uint64, hash common.Hash)
}

// Filter is an approximate counting set of node keys. MaybeContains never
// reports false for a key inserted more often than it was removed.
type Filter interface {
	Insert(key []byte)
	Remove(key []byte)
	MaybeContains(key []byte) bool
}

// FilterFactory creates a filter able to hold about capacity keys.
type FilterFactory func(capacity uint64) (Filter, error)
