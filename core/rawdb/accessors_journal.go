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
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
)

// ReadJournalUpdateRLP retrieves the encoded journal update recorded for the
// given block hash. Nil is returned if the entry is unknown.
// 读取给定区块哈希记录的已编码日志更新。
func ReadJournalUpdateRLP(db ethdb.KeyValueReader, hash common.Hash) []byte {
	data, _ := db.Get(journalKey(hash))
	return data
}

// HasJournalUpdate checks if the journal update of the given block is present.
func HasJournalUpdate(db ethdb.KeyValueReader, hash common.Hash) bool {
	ok, _ := db.Has(journalKey(hash))
	return ok
}

// WriteJournalUpdateRLP stores the encoded journal update of a block.
// 存储区块的已编码日志更新。
func WriteJournalUpdateRLP(db ethdb.KeyValueWriter, hash common.Hash, blob []byte) {
	if err := db.Put(journalKey(hash), blob); err != nil {
		log.Crit("Failed to store journal update", "hash", hash, "err", err)
	}
}

// DeleteJournalUpdate removes the journal update of the given block.
// 删除给定区块的日志更新。
func DeleteJournalUpdate(db ethdb.KeyValueWriter, hash common.Hash) {
	if err := db.Delete(journalKey(hash)); err != nil {
		log.Crit("Failed to delete journal update", "hash", hash, "err", err)
	}
}

// IterateJournalUpdates walks over all the journal entries in the database,
// invoking the callback with the owning block hash and the encoded update.
// Iteration stops early if the callback returns false.
func IterateJournalUpdates(db ethdb.Iteratee, fn func(hash common.Hash, blob []byte) bool) error {
	it := db.NewIterator(journalPrefix, nil)
	defer it.Release()

	for it.Next() {
		ok, hash := IsJournalKey(it.Key())
		if !ok {
			continue
		}
		if !fn(hash, it.Value()) {
			break
		}
	}
	return it.Error()
}
