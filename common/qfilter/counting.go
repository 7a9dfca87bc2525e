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
	"github.com/cespare/xxhash/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// CountingFilter is a quotient filter over byte keys which remembers how many
// times every fingerprint was inserted, so that a removal undoes exactly one
// insertion. A key inserted twice and removed once is still reported present.
//
// CountingFilter 是一个记录每个指纹插入次数的商过滤器，
// 因此每次删除只会撤销一次插入。
type CountingFilter struct {
	qf   *QuotientFilter
	mask uint64

	// refs holds the insertions beyond the first of every shared fingerprint.
	// Distinct keys with the same fingerprint are indistinguishable here.
	refs       map[uint64]uint32
	collisions uint64
	warned     bool
}

// New creates a counting filter sized for startingElements that can grow up
// to about largestElements before it overflows.
func New(largestElements, startingElements uint64) (*CountingFilter, error) {
	qf, err := NewQuotientFilter(largestElements, startingElements)
	if err != nil {
		return nil, err
	}
	return &CountingFilter{
		qf:   qf,
		mask: qf.fingerprintMask(),
		refs: make(map[uint64]uint32),
	}, nil
}

func (f *CountingFilter) fingerprint(key []byte) uint64 {
	return xxhash.Sum64(key) & f.mask
}

// Insert adds a key to the filter.
func (f *CountingFilter) Insert(key []byte) {
	fp := f.fingerprint(key)
	if f.qf.MaybeContains(fp) {
		f.refs[fp]++
		f.collisions++
		return
	}
	f.qf.Insert(fp)
	f.checkOverflow()
}

// Remove undoes one insertion of the key. Removing a key that was never
// inserted is a no-op, unless it collides with a stored fingerprint.
func (f *CountingFilter) Remove(key []byte) {
	if f.qf.Overflowed() {
		return
	}
	fp := f.fingerprint(key)
	if n, ok := f.refs[fp]; ok {
		if n <= 1 {
			delete(f.refs, fp)
		} else {
			f.refs[fp] = n - 1
		}
		return
	}
	if f.qf.MaybeContains(fp) {
		f.qf.Remove(fp)
	}
}

// MaybeContains reports whether the key may be in the set.
func (f *CountingFilter) MaybeContains(key []byte) bool {
	return f.qf.MaybeContains(f.fingerprint(key))
}

func (f *CountingFilter) checkOverflow() {
	if f.qf.Overflowed() && !f.warned {
		f.warned = true
		log.Warn("Quotient filter overflowed, membership degraded to always-true",
			"entries", f.qf.Entries(), "size", common.StorageSize(f.qf.AllocatedBytes()))
	}
}

// Entries returns the number of distinct fingerprints stored.
func (f *CountingFilter) Entries() uint64 { return f.qf.Entries() }

// MaxInsertions returns the number of distinct fingerprints the filter holds
// before doubling.
func (f *CountingFilter) MaxInsertions() uint64 { return f.qf.MaxInsertions() }

// Collisions returns how many insertions hit an already stored fingerprint.
func (f *CountingFilter) Collisions() uint64 { return f.collisions }

// Load returns the fraction of occupied slots.
func (f *CountingFilter) Load() float64 {
	return float64(f.qf.Entries()) / float64(f.qf.size)
}

// Overflowed reports whether the filter gave up tracking membership.
func (f *CountingFilter) Overflowed() bool { return f.qf.Overflowed() }

// Size returns the memory held by the slot table.
func (f *CountingFilter) Size() common.StorageSize {
	return common.StorageSize(f.qf.AllocatedBytes())
}
