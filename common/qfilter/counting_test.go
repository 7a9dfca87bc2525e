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

package qfilter

import (
	"encoding/binary"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(i uint64) []byte {
	var key common.Hash
	binary.BigEndian.PutUint64(key[common.HashLength-8:], i)
	return key.Bytes()
}

func TestCountingNoFalseNegatives(t *testing.T) {
	f, err := New(1<<20, 1<<8)
	require.NoError(t, err)

	for i := uint64(0); i < 5000; i++ {
		f.Insert(testKey(i))
		require.True(t, f.MaybeContains(testKey(i)))
	}
	for i := uint64(0); i < 5000; i++ {
		assert.True(t, f.MaybeContains(testKey(i)), "key %d", i)
	}
	assert.False(t, f.Overflowed())
	assert.LessOrEqual(t, f.Load(), loadFactor)
}

func TestCountingRemoveUndoesOneInsert(t *testing.T) {
	f, err := New(1<<16, 1<<4)
	require.NoError(t, err)

	key := testKey(42)
	f.Insert(key)
	f.Insert(key)
	require.Equal(t, uint64(1), f.Entries())
	require.Equal(t, uint64(1), f.Collisions())

	f.Remove(key)
	require.True(t, f.MaybeContains(key), "key removed while still referenced")

	f.Remove(key)
	require.False(t, f.MaybeContains(key))
	require.Zero(t, f.Entries())

	// Unknown keys are ignored
	f.Remove(key)
	f.Remove(testKey(43))
	require.Zero(t, f.Entries())
}

func TestCountingInterleaved(t *testing.T) {
	f, err := New(1<<20, 1<<6)
	require.NoError(t, err)

	refs := make(map[uint64]int)
	for i := uint64(0); i < 2000; i++ {
		k := i % 700
		f.Insert(testKey(k))
		refs[k]++
		if i%3 == 0 {
			r := (i / 3) % 700
			if refs[r] > 0 {
				f.Remove(testKey(r))
				refs[r]--
			}
		}
	}
	for k, n := range refs {
		if n > 0 {
			require.True(t, f.MaybeContains(testKey(k)), "key %d with %d refs", k, n)
		}
	}
}

func TestCountingOverflow(t *testing.T) {
	f, err := New(2, 2)
	require.NoError(t, err)

	for i := uint64(0); i < 1000 && !f.Overflowed(); i++ {
		f.Insert(testKey(i))
	}
	require.True(t, f.Overflowed())
	require.True(t, f.MaybeContains([]byte("never inserted")))

	entries := f.Entries()
	f.Remove(testKey(0))
	require.Equal(t, entries, f.Entries())
}
