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

// Package rawdb contains a collection of low level database accessors.
package rawdb

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

// The fields below define the low level database schema prefixing.
var (
	// headBlockKey tracks the latest indexed canonical block's hash.
	headBlockKey = []byte("LastIndexedBlock")

	// lastPrunedKey tracks the number of the latest block whose journal
	// entries were fully consumed by the segment pruner.
	lastPrunedKey = []byte("LastPrunedBlock")

	// depthPrunedKey tracks the latest head the depth pruner has processed.
	depthPrunedKey = []byte("LastDepthPrunedHead")

	// Data item prefixes (use single byte to avoid mixing data types, avoid `i`, used for indexes).
	journalPrefix     = []byte("J") // journalPrefix + hash -> rlp(journal update)
	blockInfoPrefix   = []byte("I") // blockInfoPrefix + num (uint64 big endian) + hash -> rlp(block info)
	blockNumberPrefix = []byte("N") // blockNumberPrefix + hash -> num (uint64 big endian)
)

// encodeBlockNumber encodes a block number as big endian uint64
func encodeBlockNumber(number uint64) []byte {
	enc := make([]byte, 8)
	binary.BigEndian.PutUint64(enc, number)
	return enc
}

// journalKey = journalPrefix + hash
func journalKey(hash common.Hash) []byte {
	return append(append([]byte{}, journalPrefix...), hash.Bytes()...)
}

// blockInfoKeyPrefix = blockInfoPrefix + num (uint64 big endian)
func blockInfoKeyPrefix(number uint64) []byte {
	return append(append([]byte{}, blockInfoPrefix...), encodeBlockNumber(number)...)
}

// blockInfoKey = blockInfoPrefix + num (uint64 big endian) + hash
func blockInfoKey(number uint64, hash common.Hash) []byte {
	return append(blockInfoKeyPrefix(number), hash.Bytes()...)
}

// blockNumberKey = blockNumberPrefix + hash
func blockNumberKey(hash common.Hash) []byte {
	return append(append([]byte{}, blockNumberPrefix...), hash.Bytes()...)
}

// IsJournalKey reports whether the given byte slice is the key of a journal
// entry, if so return the block hash as well.
func IsJournalKey(key []byte) (bool, common.Hash) {
	if len(key) == len(journalPrefix)+common.HashLength && key[0] == journalPrefix[0] {
		return true, common.BytesToHash(key[len(journalPrefix):])
	}
	return false, common.Hash{}
}
