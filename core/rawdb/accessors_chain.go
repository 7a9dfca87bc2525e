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

package rawdb

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/sunyihoo/journalprune/core/types"
)

// ReadBlockNumber returns the block number assigned to a hash.
func ReadBlockNumber(db ethdb.KeyValueReader, hash common.Hash) *uint64 {
	data, _ := db.Get(blockNumberKey(hash))
	if len(data) != 8 {
		return nil
	}
	number := binary.BigEndian.Uint64(data)
	return &number
}

// ReadBlockInfo retrieves the index record of a block.
func ReadBlockInfo(db ethdb.KeyValueReader, number uint64, hash common.Hash) *types.BlockInfo {
	data, _ := db.Get(blockInfoKey(number, hash))
	if len(data) == 0 {
		return nil
	}
	info := new(types.BlockInfo)
	if err := rlp.DecodeBytes(data, info); err != nil {
		log.Error("Invalid block info RLP", "number", number, "hash", hash, "err", err)
		return nil
	}
	return info
}

// ReadBlockInfos retrieves the index records of all the blocks at a certain
// height, both canonical and reorged forks included.
// 读取某一高度上所有区块的索引记录，包括规范链和被重组的分叉。
func ReadBlockInfos(db ethdb.Iteratee, number uint64) []*types.BlockInfo {
	prefix := blockInfoKeyPrefix(number)

	infos := make([]*types.BlockInfo, 0, 1)
	it := db.NewIterator(prefix, nil)
	defer it.Release()

	for it.Next() {
		if key := it.Key(); len(key) != len(prefix)+common.HashLength {
			continue
		}
		info := new(types.BlockInfo)
		if err := rlp.DecodeBytes(it.Value(), info); err != nil {
			log.Error("Invalid block info RLP", "number", number, "err", err)
			continue
		}
		infos = append(infos, info)
	}
	return infos
}

// WriteBlockInfo stores the index record of a block together with its
// hash->number mapping.
func WriteBlockInfo(db ethdb.KeyValueWriter, info *types.BlockInfo) {
	data, err := rlp.EncodeToBytes(info)
	if err != nil {
		log.Crit("Failed to RLP encode block info", "err", err)
	}
	if err := db.Put(blockInfoKey(info.Number, info.Hash), data); err != nil {
		log.Crit("Failed to store block info", "err", err)
	}
	if err := db.Put(blockNumberKey(info.Hash), encodeBlockNumber(info.Number)); err != nil {
		log.Crit("Failed to store hash to number mapping", "err", err)
	}
}

// DeleteBlockInfo removes the index record and the number mapping of a block.
func DeleteBlockInfo(db ethdb.KeyValueWriter, number uint64, hash common.Hash) {
	if err := db.Delete(blockInfoKey(number, hash)); err != nil {
		log.Crit("Failed to delete block info", "err", err)
	}
	if err := db.Delete(blockNumberKey(hash)); err != nil {
		log.Crit("Failed to delete hash to number mapping", "err", err)
	}
}

// ReadHeadBlockHash retrieves the hash of the current canonical head block.
func ReadHeadBlockHash(db ethdb.KeyValueReader) common.Hash {
	data, _ := db.Get(headBlockKey)
	if len(data) == 0 {
		return common.Hash{}
	}
	return common.BytesToHash(data)
}

// WriteHeadBlockHash stores the head block's hash.
func WriteHeadBlockHash(db ethdb.KeyValueWriter, hash common.Hash) {
	if err := db.Put(headBlockKey, hash.Bytes()); err != nil {
		log.Crit("Failed to store last block's hash", "err", err)
	}
}

// ReadLastPrunedNumber retrieves the number of the last block consumed by the
// segment pruner. Nil is returned if pruning never ran.
func ReadLastPrunedNumber(db ethdb.KeyValueReader) *uint64 {
	data, _ := db.Get(lastPrunedKey)
	if len(data) != 8 {
		return nil
	}
	number := binary.BigEndian.Uint64(data)
	return &number
}

// WriteLastPrunedNumber stores the number of the last pruned block.
func WriteLastPrunedNumber(db ethdb.KeyValueWriter, number uint64) {
	if err := db.Put(lastPrunedKey, encodeBlockNumber(number)); err != nil {
		log.Crit("Failed to store last pruned block number", "err", err)
	}
}

// ReadDepthPrunedNumber retrieves the latest head processed by the depth
// pruner.
func ReadDepthPrunedNumber(db ethdb.KeyValueReader) *uint64 {
	data, _ := db.Get(depthPrunedKey)
	if len(data) != 8 {
		return nil
	}
	number := binary.BigEndian.Uint64(data)
	return &number
}

// WriteDepthPrunedNumber stores the latest head processed by the depth pruner.
func WriteDepthPrunedNumber(db ethdb.KeyValueWriter, number uint64) {
	if err := db.Put(depthPrunedKey, encodeBlockNumber(number)); err != nil {
		log.Crit("Failed to store depth pruned head number", "err", err)
	}
}
