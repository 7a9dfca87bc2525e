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

// Package journaldb records, per block, which node store keys were written and
// which were released, so that a pruner can later decide what to delete.
package journaldb

import (
	"github.com/VictoriaMetrics/fastcache"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/sunyihoo/journalprune/core/rawdb"
)

// Config contains the settings for the journal.
// Config 包含日志的设置。
type Config struct {
	CleanCacheSize int // Maximum memory allowance (in bytes) for caching encoded updates
}

// Defaults is the default setting for the journal if it's not specified.
// Notably, clean cache is disabled explicitly.
var Defaults = &Config{
	// Explicitly set clean cache size to 0 to avoid creating fastcache,
	// otherwise the journal must be closed when it's no longer needed to
	// prevent memory leak.
	CleanCacheSize: 0,
}

// Journal is the persistent store of block updates. Entries are written once
// when a block is imported, read many times while pruning and deleted once a
// pruner consumed them.
type Journal struct {
	diskdb ethdb.KeyValueStore
	cleans *fastcache.Cache // GC friendly memory cache of encoded updates
}

// New creates a journal on top of the given key-value store.
func New(diskdb ethdb.KeyValueStore, config *Config) *Journal {
	if config == nil {
		config = Defaults
	}
	var cleans *fastcache.Cache
	if config.CleanCacheSize > 0 {
		cleans = fastcache.New(config.CleanCacheSize)
	}
	return &Journal{
		diskdb: diskdb,
		cleans: cleans,
	}
}

// blob retrieves the encoded update of a block, consulting the clean cache
// first.
func (j *Journal) blob(hash common.Hash) []byte {
	if j.cleans != nil {
		if enc := j.cleans.Get(nil, hash[:]); enc != nil {
			cleanHitMeter.Mark(1)
			cleanReadMeter.Mark(int64(len(enc)))
			return enc
		}
		cleanMissMeter.Mark(1)
	}
	enc := rawdb.ReadJournalUpdateRLP(j.diskdb, hash)
	if len(enc) > 0 && j.cleans != nil {
		j.cleans.Set(hash[:], enc)
		cleanWriteMeter.Mark(int64(len(enc)))
	}
	return enc
}

// Update retrieves the update recorded for the given block. Nil is returned if
// the journal holds no entry for it.
// Update 检索为给定区块记录的更新。如果日志中没有该条目，则返回 nil。
func (j *Journal) Update(hash common.Hash) *Update {
	enc := j.blob(hash)
	if len(enc) == 0 {
		missingUpdateMeter.Mark(1)
		return nil
	}
	update := new(Update)
	if err := rlp.DecodeBytes(enc, update); err != nil {
		log.Error("Invalid journal update RLP", "hash", hash, "err", err)
		return nil
	}
	return update
}

// Has reports whether an update is recorded for the given block.
func (j *Journal) Has(hash common.Hash) bool {
	if j.cleans != nil && j.cleans.Has(hash[:]) {
		return true
	}
	return rawdb.HasJournalUpdate(j.diskdb, hash)
}

// Put stores the update of a block, replacing any earlier entry.
func (j *Journal) Put(update *Update) error {
	enc, err := rlp.EncodeToBytes(update)
	if err != nil {
		return err
	}
	rawdb.WriteJournalUpdateRLP(j.diskdb, update.Hash, enc)
	if j.cleans != nil {
		j.cleans.Set(update.Hash[:], enc)
	}
	writeUpdateMeter.Mark(1)
	writeBytesMeter.Mark(int64(len(enc)))
	return nil
}

// Delete removes the update of the given block. Deleting an unknown entry is
// not an error.
func (j *Journal) Delete(hash common.Hash) {
	if j.cleans != nil {
		j.cleans.Del(hash[:])
	}
	rawdb.DeleteJournalUpdate(j.diskdb, hash)
	deleteUpdateMeter.Mark(1)
}

// Hashes returns the block hashes of every update in the journal store.
func (j *Journal) Hashes() ([]common.Hash, error) {
	var hashes []common.Hash
	err := rawdb.IterateJournalUpdates(j.diskdb, func(hash common.Hash, _ []byte) bool {
		hashes = append(hashes, hash)
		return true
	})
	return hashes, err
}

// Stats walks the journal store and returns the number of entries and their
// total encoded size.
func (j *Journal) Stats() (int, common.StorageSize, error) {
	var (
		count int
		size  common.StorageSize
	)
	err := rawdb.IterateJournalUpdates(j.diskdb, func(_ common.Hash, blob []byte) bool {
		count++
		size += common.StorageSize(common.HashLength + 1 + len(blob))
		return true
	})
	return count, size, err
}

// Close releases the clean cache. The underlying store is owned by the caller
// and stays open.
func (j *Journal) Close() {
	if j.cleans != nil {
		j.cleans.Reset()
	}
}
