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

package journaldb

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
)

// Database is the write layer between the trie and the node store which keeps
// the journal. Writes go straight to the node store and are recorded as
// insertions of the pending update. Deletions are only recorded: the node
// stays on disk until a pruner decides nothing references it anymore.
//
// Database 是 trie 与节点存储之间维护日志的写入层。写入直接进入节点存储，
// 并被记录为待定更新中的插入。删除只被记录：节点会保留在磁盘上，
// 直到修剪器确定不再有任何引用。
type Database struct {
	diskdb  ethdb.KeyValueStore // Node store the trie reads and writes
	journal *Journal
	pending *Update // Changes since the last commit, owner hash unset

	lock sync.Mutex
}

// NewDatabase creates a journaling write layer.
func NewDatabase(diskdb ethdb.KeyValueStore, journal *Journal) *Database {
	return &Database{
		diskdb:  diskdb,
		journal: journal,
		pending: NewUpdate(common.Hash{}),
	}
}

// Journal returns the store the committed updates are written to.
func (db *Database) Journal() *Journal { return db.journal }

// Has retrieves if a key is present in the node store.
func (db *Database) Has(key []byte) (bool, error) {
	return db.diskdb.Has(key)
}

// Get retrieves the given key from the node store.
func (db *Database) Get(key []byte) ([]byte, error) {
	return db.diskdb.Get(key)
}

// Put writes the node into the node store and records the key as inserted by
// the pending update. A nil value is treated as a deletion.
func (db *Database) Put(key []byte, value []byte) error {
	if value == nil {
		return db.Delete(key)
	}
	db.lock.Lock()
	defer db.lock.Unlock()

	if err := db.diskdb.Put(key, value); err != nil {
		return err
	}
	db.pending.Insert(key)
	recordInsertMeter.Mark(1)
	return nil
}

// Delete records the key as released by the pending update. The node store
// is left untouched.
func (db *Database) Delete(key []byte) error {
	db.lock.Lock()
	defer db.lock.Unlock()

	db.pending.Delete(key)
	recordDeleteMeter.Mark(1)
	return nil
}

// Commit seals every change recorded since the previous commit into the
// update of the given block and stores it in the journal.
func (db *Database) Commit(hash common.Hash) (*Update, error) {
	db.lock.Lock()
	defer db.lock.Unlock()

	update := db.pending
	update.Hash = hash
	if err := db.journal.Put(update); err != nil {
		update.Hash = common.Hash{}
		return nil, err
	}
	db.pending = NewUpdate(common.Hash{})

	log.Trace("Committed journal update", "hash", hash,
		"inserted", update.InsertedKeys().Cardinality(), "deleted", update.DeletedKeys().Cardinality())
	return update, nil
}

// Discard drops every change recorded since the previous commit. Inserted
// nodes stay in the node store.
func (db *Database) Discard() {
	db.lock.Lock()
	defer db.lock.Unlock()

	db.pending = NewUpdate(common.Hash{})
}
