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

// Package pruner removes stale trie nodes from the node store, driven by the
// journal of keys every block inserted and deleted.
package pruner

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/sunyihoo/journalprune/triedb/journaldb"
)

// ForkReport is the outcome of reverting a single side chain.
type ForkReport struct {
	Chain *Chain
	Keys  int   // Number of keys the side chain offered for deletion
	Err   error // Reason the side chain contributed nothing, nil on success
}

// Report summarises a segment prune pass.
type Report struct {
	Aborted error // Set if the pass was abandoned without touching storage

	Forks    []ForkReport
	Evicted  int // Keys kept because an upcoming block inserts them again
	Retained int // Keys kept because a block not yet pruned may still reference them
	Deleted  int // Keys removed from storage
	Released int // Journal entries removed
}

// Pruner deletes the nodes of a complete segment which are referenced
// neither by the canonical chain nor by the blocks following the segment.
//
// Pruner 删除完整段中既不被规范链引用、也不被段之后的区块引用的节点。
type Pruner struct {
	storage ethdb.KeyValueWriter
	journal Journal
	filter  *PruneFilter // Inserts of blocks not yet pruned, optional
}

// NewPruner creates a segment pruner deleting from storage.
func NewPruner(storage ethdb.KeyValueWriter, journal Journal) *Pruner {
	return &Pruner{
		storage: storage,
		journal: journal,
		filter:  NewPruneFilter(FilterEntriesFork),
	}
}

// Init seeds the filter of upcoming inserts with the updates of every block
// imported but not yet pruned. Until it succeeds the pruner relies on the
// upcoming hashes passed to Prune alone.
func (p *Pruner) Init(hashes []common.Hash) bool {
	return p.filter.Init(p.journal, hashes)
}

// Ready reports whether the filter of upcoming inserts is in use.
func (p *Pruner) Ready() bool { return p.filter.Ready() }

// Feed records the inserts of a newly imported block.
func (p *Pruner) Feed(update *journaldb.Update) {
	if p.filter.Ready() {
		insertKeys(p.filter, update)
	}
}

// Prune runs one pass over a complete segment: side chains are reverted, the
// canonical chain is persisted, keys inserted again by the upcoming blocks are
// spared and the rest is deleted. A missing canonical or upcoming update
// abandons the pass without side effects, see Report.Aborted. The returned
// error is reserved for storage failures.
//
// Pruning an incomplete segment is a programming error.
func (p *Pruner) Prune(segment *Segment, upcoming []common.Hash) (*Report, error) {
	if !segment.IsComplete() {
		panic(fmt.Sprintf("pruning incomplete segment %v", segment))
	}
	start := time.Now()
	defer segmentPruneTimer.UpdateSince(start)

	report := new(Report)
	if len(upcoming) > 0 && p.journal.Update(upcoming[0]) == nil {
		return p.abort(segment, report, fmt.Errorf("%w: upcoming block %x", errMissingUpdate, upcoming[0])), nil
	}
	var (
		propagating = mapset.NewThreadUnsafeSet[string]()
		consumed    []*journaldb.Update
	)
	// Side chains are reverted in order of their branching height
	forks := slices.Clone(segment.Forks())
	slices.SortStableFunc(forks, func(a, b *Chain) int {
		return cmp.Compare(a.StartNumber(), b.StartNumber())
	})
	for _, fork := range forks {
		keys, updates, err := p.revert(fork)
		consumed = append(consumed, updates...)
		if err != nil {
			log.Debug("Reverting side chain aborted", "chain", fork, "err", err)
			segmentForkFailMeter.Mark(1)
			report.Forks = append(report.Forks, ForkReport{Chain: fork, Err: err})
			continue
		}
		report.Forks = append(report.Forks, ForkReport{Chain: fork, Keys: keys.Cardinality()})
		propagating = propagating.Union(keys)
	}
	updates, err := p.persist(segment.Main(), propagating)
	if err != nil {
		return p.abort(segment, report, err), nil
	}
	consumed = append(consumed, updates...)

	if err := p.evict(upcoming, propagating, report); err != nil {
		return p.abort(segment, report, err), nil
	}
	if err := p.commit(segment, propagating, consumed, report); err != nil {
		return report, err
	}
	log.Debug("Pruned segment", "segment", segment.Root(), "top", segment.MaxNumber(), "forks", len(forks),
		"deleted", report.Deleted, "evicted", report.Evicted, "retained", report.Retained,
		"elapsed", common.PrettyDuration(time.Since(start)))
	return report, nil
}

func (p *Pruner) abort(segment *Segment, report *Report, err error) *Report {
	log.Debug("Pruning aborted", "segment", segment.Root(), "err", err)
	segmentAbortMeter.Mark(1)

	report.Aborted = err
	return report
}

// revert collects the keys a side chain introduced: everything it inserted
// except the keys it deleted itself at any point. Every update that can be
// read is returned, also when the chain fails, so that the inserts of all
// released blocks leave the filter.
func (p *Pruner) revert(fork *Chain) (mapset.Set[string], []*journaldb.Update, error) {
	var (
		inserted = mapset.NewThreadUnsafeSet[string]()
		deleted  = mapset.NewThreadUnsafeSet[string]()
		updates  []*journaldb.Update
		failed   error
	)
	for _, hash := range fork.Hashes() {
		update := p.journal.Update(hash)
		if update == nil {
			if failed == nil {
				failed = fmt.Errorf("%w: side chain block %x", errMissingUpdate, hash)
			}
			continue
		}
		updates = append(updates, update)
		inserted = inserted.Union(update.InsertedKeys())
		deleted = deleted.Union(update.DeletedKeys())
	}
	if failed != nil {
		return nil, updates, failed
	}
	return inserted.Difference(deleted), updates, nil
}

// persist adds the keys released by the canonical chain to the propagating
// set. A key inserted again by the same or a later block is kept.
func (p *Pruner) persist(main *Chain, propagating mapset.Set[string]) ([]*journaldb.Update, error) {
	var updates []*journaldb.Update
	for _, hash := range main.Hashes() {
		update := p.journal.Update(hash)
		if update == nil {
			return nil, fmt.Errorf("%w: canonical block %x", errMissingUpdate, hash)
		}
		updates = append(updates, update)

		update.DeletedKeys().Each(func(key string) bool {
			propagating.Add(key)
			return false
		})
		update.InsertedKeys().Each(func(key string) bool {
			propagating.Remove(key)
			return false
		})
	}
	return updates, nil
}

// evict spares every key the upcoming blocks insert.
func (p *Pruner) evict(upcoming []common.Hash, propagating mapset.Set[string], report *Report) error {
	for _, hash := range upcoming {
		update := p.journal.Update(hash)
		if update == nil {
			return fmt.Errorf("%w: upcoming block %x", errMissingUpdate, hash)
		}
		update.InsertedKeys().Each(func(key string) bool {
			if propagating.Contains(key) {
				propagating.Remove(key)
				report.Evicted++
			}
			return false
		})
	}
	segmentEvictMeter.Mark(int64(report.Evicted))
	return nil
}

// commit deletes the propagating keys from storage and releases the journal
// entries of every block in the segment.
func (p *Pruner) commit(segment *Segment, propagating mapset.Set[string], consumed []*journaldb.Update, report *Report) error {
	// The consumed blocks leave the filter, what remains are inserts of
	// blocks still waiting to be pruned
	if p.filter.Ready() {
		for _, update := range consumed {
			removeKeys(p.filter, update)
		}
	}
	var (
		deleter = newKeyDeleter(p.storage)
		err     error
	)
	propagating.Each(func(key string) bool {
		if p.filter.MaybeContains([]byte(key)) {
			report.Retained++
			return false
		}
		if err = deleter.Delete([]byte(key)); err != nil {
			return true
		}
		report.Deleted++
		return false
	})
	if err != nil {
		return err
	}
	if err := deleter.Flush(); err != nil {
		return err
	}
	segmentDeleteMeter.Mark(int64(report.Deleted))
	segmentRetainMeter.Mark(int64(report.Retained))

	for _, hash := range segment.Main().Hashes() {
		p.journal.Delete(hash)
		report.Released++
	}
	for _, fork := range segment.Forks() {
		for _, hash := range fork.Hashes() {
			p.journal.Delete(hash)
			report.Released++
		}
	}
	return nil
}

// keyDeleter forwards deletions to storage, batching them if the storage
// supports it.
type keyDeleter struct {
	storage ethdb.KeyValueWriter
	batch   ethdb.Batch
	pending int
}

func newKeyDeleter(storage ethdb.KeyValueWriter) *keyDeleter {
	d := &keyDeleter{storage: storage}
	if batcher, ok := storage.(ethdb.Batcher); ok {
		d.batch = batcher.NewBatch()
	}
	return d
}

func (d *keyDeleter) Delete(key []byte) error {
	if d.batch == nil {
		return d.storage.Delete(key)
	}
	if err := d.batch.Delete(key); err != nil {
		return err
	}
	d.pending++
	if d.batch.ValueSize() >= ethdb.IdealBatchSize {
		return d.Flush()
	}
	return nil
}

func (d *keyDeleter) Flush() error {
	if d.batch == nil || d.pending == 0 {
		return nil
	}
	if err := d.batch.Write(); err != nil {
		return err
	}
	d.batch.Reset()
	d.pending = 0
	return nil
}
