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

// Package qfilter implements an approximate membership structure based on
// quotient filters, with a counting variant that supports removals of keys
// inserted multiple times.
//
// A quotient filter stores a p-bit fingerprint of every element, split into
// a q-bit quotient (the home slot) and an r-bit remainder (the slot content).
// Colliding quotients are kept in sorted runs within clusters by linear
// probing, tracked by three metadata bits per slot:
//
//	is_occupied:     some element has this slot as its home slot
//	is_continuation: the slot holds a non-first element of a run
//	is_shifted:      the slot holds an element not in its home slot
//
// False positives are possible, false negatives are not.
package qfilter

import (
	"errors"
	"math/bits"
)

const (
	// loadFactor is the occupancy at which the filter resizes itself.
	loadFactor = 0.75

	// spareRemainderBits are added on top of the bits needed to address the
	// largest expected element count, so a full filter still has meaningful
	// remainders and can absorb a badly underestimated capacity.
	spareRemainderBits = 8

	occupiedBit     = 1
	continuationBit = 2
	shiftedBit      = 4
	metadataBits    = 3
)

var (
	errZeroCapacity    = errors.New("quotient filter capacity must be positive")
	errCapacityOrder   = errors.New("quotient filter largest capacity below starting capacity")
	errFingerprintBits = errors.New("quotient filter fingerprint exceeds 64 bits")
)

// QuotientFilter is a compact set of 64 bit fingerprints. It is not safe for
// concurrent use.
type QuotientFilter struct {
	qbits uint // quotient bits, log2 of the slot count
	rbits uint // remainder bits stored in every slot
	ebits uint // remainder plus metadata bits

	indexMask     uint64
	remainderMask uint64
	elementMask   uint64
	size          uint64 // number of slots
	maxInsertions uint64 // entries tolerated before resizing

	table      []uint64
	entries    uint64
	overflowed bool // set once the filter ran out of remainder bits
}

func lowMask(n uint) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << n) - 1
}

func tableSize(qbits, rbits uint) int {
	total := (uint64(1) << qbits) * uint64(rbits+metadataBits)
	words := total / 64
	if total%64 > 0 {
		words++
	}
	return int(words)
}

// bitsForElements returns the number of quotient bits needed to hold n
// elements without exceeding the load factor.
func bitsForElements(n uint64) uint {
	if n == 0 {
		return 1
	}
	var candidate uint
	if bits.OnesCount64(n) == 1 {
		candidate = uint(bits.TrailingZeros64(n))
		if candidate == 0 {
			candidate = 1
		}
	} else {
		candidate = uint(bits.Len64(n))
	}
	if uint64(float64(uint64(1)<<candidate)*loadFactor) < n {
		candidate++
	}
	return candidate
}

// NewQuotientFilter creates a filter sized for startingElements which can
// grow, by trading remainder bits for quotient bits, up to roughly
// largestElements without losing its false-positive guarantees.
func NewQuotientFilter(largestElements, startingElements uint64) (*QuotientFilter, error) {
	if startingElements == 0 || largestElements == 0 {
		return nil, errZeroCapacity
	}
	if largestElements < startingElements {
		return nil, errCapacityOrder
	}
	qbits := bitsForElements(startingElements)
	rbits := bitsForElements(largestElements) + spareRemainderBits - qbits
	return newQuotientFilter(qbits, rbits)
}

func newQuotientFilter(qbits, rbits uint) (*QuotientFilter, error) {
	if qbits == 0 || rbits == 0 {
		return nil, errZeroCapacity
	}
	if qbits+rbits > 64 {
		return nil, errFingerprintBits
	}
	qf := &QuotientFilter{
		qbits:         qbits,
		rbits:         rbits,
		ebits:         rbits + metadataBits,
		indexMask:     lowMask(qbits),
		remainderMask: lowMask(rbits),
		elementMask:   lowMask(rbits + metadataBits),
		size:          uint64(1) << qbits,
		table:         make([]uint64, tableSize(qbits, rbits)),
	}
	qf.maxInsertions = uint64(float64(qf.size) * loadFactor)
	return qf, nil
}

// fingerprintMask returns the mask selecting the hash bits the filter keeps.
func (qf *QuotientFilter) fingerprintMask() uint64 {
	return lowMask(qf.qbits + qf.rbits)
}

// Entries returns the number of fingerprints stored.
func (qf *QuotientFilter) Entries() uint64 { return qf.entries }

// MaxInsertions returns the number of entries the current table tolerates
// before it doubles.
func (qf *QuotientFilter) MaxInsertions() uint64 { return qf.maxInsertions }

// Overflowed reports whether the filter ran out of fingerprint bits. An
// overflowed filter answers every membership query positively.
func (qf *QuotientFilter) Overflowed() bool { return qf.overflowed }

// AllocatedBytes returns the size of the slot table.
func (qf *QuotientFilter) AllocatedBytes() int { return len(qf.table) * 8 }

// getElement returns slot idx in the lower bits.
func (qf *QuotientFilter) getElement(idx uint64) uint64 {
	bitpos := uint64(qf.ebits) * idx
	tabpos := bitpos / 64
	slotpos := bitpos % 64

	elt := (qf.table[tabpos] >> slotpos) & qf.elementMask
	if slotpos+uint64(qf.ebits) > 64 {
		spill := uint(slotpos + uint64(qf.ebits) - 64)
		elt |= (qf.table[tabpos+1] & lowMask(spill)) << (qf.ebits - spill)
	}
	return elt
}

// setElement stores the lower bits of elt into slot idx.
func (qf *QuotientFilter) setElement(idx uint64, elt uint64) {
	bitpos := uint64(qf.ebits) * idx
	tabpos := bitpos / 64
	slotpos := bitpos % 64

	elt &= qf.elementMask
	qf.table[tabpos] &^= qf.elementMask << slotpos
	qf.table[tabpos] |= elt << slotpos
	if slotpos+uint64(qf.ebits) > 64 {
		spill := uint(slotpos + uint64(qf.ebits) - 64)
		qf.table[tabpos+1] &^= lowMask(spill)
		qf.table[tabpos+1] |= elt >> (qf.ebits - spill)
	}
}

func (qf *QuotientFilter) incr(idx uint64) uint64 { return (idx + 1) & qf.indexMask }
func (qf *QuotientFilter) decr(idx uint64) uint64 { return (idx - 1) & qf.indexMask }

func isOccupied(elt uint64) bool     { return elt&occupiedBit != 0 }
func isContinuation(elt uint64) bool { return elt&continuationBit != 0 }
func isShifted(elt uint64) bool      { return elt&shiftedBit != 0 }
func isEmpty(elt uint64) bool        { return elt&(occupiedBit|continuationBit|shiftedBit) == 0 }
func remainderOf(elt uint64) uint64  { return elt >> metadataBits }

func isClusterStart(elt uint64) bool {
	return isOccupied(elt) && !isContinuation(elt) && !isShifted(elt)
}

func isRunStart(elt uint64) bool {
	return !isContinuation(elt) && (isOccupied(elt) || isShifted(elt))
}

func (qf *QuotientFilter) split(hash uint64) (uint64, uint64) {
	return (hash >> qf.rbits) & qf.indexMask, hash & qf.remainderMask
}

// findRunIndex returns the start index of the run of quotient fq, given the
// run exists.
func (qf *QuotientFilter) findRunIndex(fq uint64) uint64 {
	// Walk back to the start of the cluster
	b := fq
	for isShifted(qf.getElement(b)) {
		b = qf.decr(b)
	}
	// Walk forward, pairing occupied slots with runs, until fq is reached
	s := b
	for b != fq {
		for {
			s = qf.incr(s)
			if !isContinuation(qf.getElement(s)) {
				break
			}
		}
		for {
			b = qf.incr(b)
			if isOccupied(qf.getElement(b)) {
				break
			}
		}
	}
	return s
}

// insertInto stores elt into slot s, shifting the rest of the cluster right.
func (qf *QuotientFilter) insertInto(s uint64, elt uint64) {
	curr := elt
	for {
		prev := qf.getElement(s)
		empty := isEmpty(prev)
		if !empty {
			// The occupied bit belongs to the slot, not to the element
			prev |= shiftedBit
			if isOccupied(prev) {
				curr |= occupiedBit
				prev &^= occupiedBit
			}
		}
		qf.setElement(s, curr)
		curr = prev
		s = qf.incr(s)
		if empty {
			return
		}
	}
}

// Insert adds a 64 bit hash to the filter. Only the lowest quotient+remainder
// bits of the hash are kept.
func (qf *QuotientFilter) Insert(hash uint64) {
	if qf.overflowed {
		return
	}
	if qf.entries >= qf.maxInsertions {
		if qf.rbits <= 1 {
			qf.overflowed = true
			return
		}
		qf.resizeDouble()
	}
	fq, fr := qf.split(hash)
	tfq := qf.getElement(fq)
	entry := (fr << metadataBits) &^ (occupiedBit | continuationBit | shiftedBit)

	// Special-case filling canonical slots
	if isEmpty(tfq) {
		qf.setElement(fq, entry|occupiedBit)
		qf.entries++
		return
	}
	if !isOccupied(tfq) {
		qf.setElement(fq, tfq|occupiedBit)
	}
	start := qf.findRunIndex(fq)
	s := start

	if isOccupied(tfq) {
		// Move the cursor to the insert position in the fq run
		for {
			if remainderOf(qf.getElement(s)) >= fr {
				break
			}
			s = qf.incr(s)
			if !isContinuation(qf.getElement(s)) {
				break
			}
		}
		if s == start {
			// The old start-of-run becomes a continuation
			qf.setElement(start, qf.getElement(start)|continuationBit)
		} else {
			// The new element becomes a continuation
			entry |= continuationBit
		}
	}
	if s != fq {
		entry |= shiftedBit
	}
	qf.insertInto(s, entry)
	qf.entries++
}

// MaybeContains reports whether the hash may have been inserted. False is
// definitive, true may be a false positive.
func (qf *QuotientFilter) MaybeContains(hash uint64) bool {
	if qf.overflowed {
		return true
	}
	fq, fr := qf.split(hash)
	if !isOccupied(qf.getElement(fq)) {
		return false
	}
	// Scan the sorted run for the target remainder
	s := qf.findRunIndex(fq)
	for {
		rem := remainderOf(qf.getElement(s))
		if rem == fr {
			return true
		}
		if rem > fr {
			return false
		}
		s = qf.incr(s)
		if !isContinuation(qf.getElement(s)) {
			return false
		}
	}
}

// deleteEntry removes the entry in slot s and slides the rest of the cluster
// left, fixing up entries which slide into their canonical slots.
func (qf *QuotientFilter) deleteEntry(s uint64, quot uint64) {
	var (
		curr = qf.getElement(s)
		sp   = qf.incr(s)
		orig = s
	)
	for {
		next := qf.getElement(sp)
		currOccupied := isOccupied(curr)

		if isEmpty(next) || isClusterStart(next) || sp == orig {
			qf.setElement(s, 0)
			return
		}
		updated := next
		if isRunStart(next) {
			for {
				quot = qf.incr(quot)
				if isOccupied(qf.getElement(quot)) {
					break
				}
			}
			if currOccupied && quot == s {
				updated &^= shiftedBit
			}
		}
		if currOccupied {
			qf.setElement(s, updated|occupiedBit)
		} else {
			qf.setElement(s, updated&^occupiedBit)
		}
		s, sp, curr = sp, qf.incr(sp), next
	}
}

// Remove deletes one copy of the hash from the filter. Removing a hash which
// was never inserted is a no-op unless its fingerprint collides with a stored
// one, in which case the colliding entry is removed; callers must only remove
// what they inserted.
func (qf *QuotientFilter) Remove(hash uint64) {
	if qf.overflowed || qf.entries == 0 {
		return
	}
	fq, fr := qf.split(hash)
	tfq := qf.getElement(fq)
	if !isOccupied(tfq) {
		return
	}
	s := qf.findRunIndex(fq)
	var rem uint64
	for {
		rem = remainderOf(qf.getElement(s))
		if rem >= fr {
			break
		}
		s = qf.incr(s)
		if !isContinuation(qf.getElement(s)) {
			break
		}
	}
	if rem != fr {
		return
	}
	kill := qf.getElement(s)
	replaceRunStart := isRunStart(kill)

	// Deleting the last entry in a run clears the home slot's occupied bit
	if replaceRunStart {
		if next := qf.getElement(qf.incr(s)); !isContinuation(next) {
			tfq &^= occupiedBit
			qf.setElement(fq, tfq)
		}
	}
	qf.deleteEntry(s, fq)

	if replaceRunStart {
		next := qf.getElement(s)
		updated := next
		if isContinuation(next) {
			// The new start-of-run is no longer a continuation
			updated &^= continuationBit
		}
		if s == fq && isRunStart(updated) {
			// The new start-of-run is in the canonical slot
			updated &^= shiftedBit
		}
		if updated != next {
			qf.setElement(s, updated)
		}
	}
	qf.entries--
}

// Iterate calls fn with the fingerprint of every stored entry.
func (qf *QuotientFilter) Iterate(fn func(fingerprint uint64)) {
	if qf.entries == 0 {
		return
	}
	// Find the start of a cluster
	var start uint64
	for start = 0; start < qf.size; start++ {
		if isClusterStart(qf.getElement(start)) {
			break
		}
	}
	var (
		index    = start
		quotient uint64
		visited  uint64
	)
	for visited < qf.entries {
		elt := qf.getElement(index)

		// Keep track of the current run
		if isClusterStart(elt) {
			quotient = index
		} else if isRunStart(elt) {
			quot := quotient
			for {
				quot = qf.incr(quot)
				if isOccupied(qf.getElement(quot)) {
					break
				}
			}
			quotient = quot
		}
		index = qf.incr(index)

		if !isEmpty(elt) {
			fn(quotient<<qf.rbits | remainderOf(elt))
			visited++
		}
	}
}

// resizeDouble moves one fingerprint bit from the remainder to the quotient,
// doubling the slot count while keeping every stored fingerprint.
func (qf *QuotientFilter) resizeDouble() {
	bigger, err := newQuotientFilter(qf.qbits+1, qf.rbits-1)
	if err != nil {
		qf.overflowed = true
		return
	}
	qf.Iterate(bigger.Insert)
	if bigger.entries != qf.entries {
		panic("quotient filter lost entries while resizing")
	}
	*qf = *bigger
}

// Clear drops every entry, keeping the current table size.
func (qf *QuotientFilter) Clear() {
	for i := range qf.table {
		qf.table[i] = 0
	}
	qf.entries = 0
	qf.overflowed = false
}
