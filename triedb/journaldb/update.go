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
	"io"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// Update is the journal record of a single block: the node store keys written
// and the keys released while the block's state diff was applied on top of
// its parent.
//
// Keys are held as strings so they can live in sets, the conversion to and
// from []byte is a copy.
//
// Update 是单个区块的日志记录：在其父区块之上应用该区块状态差异时
// 写入的节点存储键和释放的键。
type Update struct {
	Hash     common.Hash // Hash of the block owning the update
	inserted mapset.Set[string]
	deleted  mapset.Set[string]
}

// NewUpdate creates an empty update for the given block.
func NewUpdate(hash common.Hash) *Update {
	return &Update{
		Hash:     hash,
		inserted: mapset.NewThreadUnsafeSet[string](),
		deleted:  mapset.NewThreadUnsafeSet[string](),
	}
}

// Insert records a key written by the block.
func (u *Update) Insert(keys ...[]byte) {
	for _, key := range keys {
		u.inserted.Add(string(key))
	}
}

// Delete records a key released by the block.
func (u *Update) Delete(keys ...[]byte) {
	for _, key := range keys {
		u.deleted.Add(string(key))
	}
}

// InsertedKeys returns the set of keys written by the block. The set is owned
// by the update and must not be modified.
func (u *Update) InsertedKeys() mapset.Set[string] { return u.inserted }

// DeletedKeys returns the set of keys released by the block. The set is owned
// by the update and must not be modified.
func (u *Update) DeletedKeys() mapset.Set[string] { return u.deleted }

// Empty reports whether the update records no key at all.
func (u *Update) Empty() bool {
	return u.inserted.Cardinality() == 0 && u.deleted.Cardinality() == 0
}

// Size returns the approximate storage taken by the recorded keys.
func (u *Update) Size() common.StorageSize {
	var size int
	u.inserted.Each(func(key string) bool {
		size += len(key)
		return false
	})
	u.deleted.Each(func(key string) bool {
		size += len(key)
		return false
	})
	return common.StorageSize(common.HashLength + size)
}

// encodedUpdate is the RLP layout of an update in the journal store.
type encodedUpdate struct {
	Hash     common.Hash
	Inserted [][]byte
	Deleted  [][]byte
}

func sortedKeys(set mapset.Set[string]) [][]byte {
	keys := set.ToSlice()
	slices.Sort(keys)

	out := make([][]byte, len(keys))
	for i, key := range keys {
		out[i] = []byte(key)
	}
	return out
}

// EncodeRLP implements rlp.Encoder. Keys are written in sorted order so the
// same update always encodes to the same blob.
func (u *Update) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, &encodedUpdate{
		Hash:     u.Hash,
		Inserted: sortedKeys(u.inserted),
		Deleted:  sortedKeys(u.deleted),
	})
}

// DecodeRLP implements rlp.Decoder.
func (u *Update) DecodeRLP(s *rlp.Stream) error {
	var dec encodedUpdate
	if err := s.Decode(&dec); err != nil {
		return err
	}
	*u = *NewUpdate(dec.Hash)
	u.Insert(dec.Inserted...)
	u.Delete(dec.Deleted...)
	return nil
}
