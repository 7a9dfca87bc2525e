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
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestPruneFilterInit(t *testing.T) {
	var (
		b1      = common.Hash{0xb1}
		b2      = common.Hash{0xb2}
		journal = newTestJournal(makeUpdate(b1, []string{"k1"}, nil))
		filter  = NewPruneFilter(FilterEntriesFork)
	)
	// Nothing is known before initialisation and mutations are dropped
	filter.Insert([]byte("k0"))
	require.False(t, filter.Ready())
	require.False(t, filter.MaybeContains([]byte("k0")))

	// A single missing update leaves the filter untouched
	require.False(t, filter.Init(journal, []common.Hash{b1, b2}))
	require.False(t, filter.Ready())
	require.False(t, filter.MaybeContains([]byte("k1")))

	journal.updates[b2] = makeUpdate(b2, []string{"k2"}, []string{"k1"})
	require.True(t, filter.Init(journal, []common.Hash{b1, b2}))
	require.True(t, filter.Ready())
	require.True(t, filter.MaybeContains([]byte("k1")))
	require.True(t, filter.MaybeContains([]byte("k2")))

	// Repeated initialisation is a no-op
	require.True(t, filter.Init(journal, []common.Hash{b1}))
	require.True(t, filter.MaybeContains([]byte("k2")))
}

// The default filter never forgets a key inserted more often than removed.
func TestPruneFilterCounting(t *testing.T) {
	filter := NewPruneFilter(16)
	require.True(t, filter.Init(newTestJournal(), nil))

	for i := 0; i < 64; i++ {
		filter.Insert([]byte(fmt.Sprintf("key-%d", i)))
		require.True(t, filter.MaybeContains([]byte(fmt.Sprintf("key-%d", i))))
	}
	filter.Insert([]byte("key-0"))
	filter.Remove([]byte("key-0"))
	require.True(t, filter.MaybeContains([]byte("key-0")))

	for i := 0; i < 64; i++ {
		require.True(t, filter.MaybeContains([]byte(fmt.Sprintf("key-%d", i))), "key %d", i)
	}
}

func TestFilterCapacity(t *testing.T) {
	require.EqualValues(t, 10*FilterEntriesFork, filterCapacity(10, FilterEntriesFork))
	require.EqualValues(t, FilterMaxSize, filterCapacity(1<<20, FilterEntriesFork))
	require.Zero(t, filterCapacity(0, FilterEntriesFork))

	filter, err := newCountingFilter(0)
	require.NoError(t, err)
	require.NotNil(t, filter)
}
