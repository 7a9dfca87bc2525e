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
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/sunyihoo/journalprune/core/rawdb"
	"github.com/sunyihoo/journalprune/core/types"
)

// PruneEvent is posted after every prune pass which touched storage.
type PruneEvent struct {
	Strategy string
	Head     uint64 // Best block number the pass ran against

	From, To uint64 // Range of canonical heights consumed, heads processed for the depth strategy

	// Segment strategy
	Report *Report

	// Depth strategy
	Stats DepthStats
}

// Manager drives the configured pruning strategy from the block import path.
// Calls are serialised, the pruners themselves are not safe for concurrent
// use.
//
// Manager 从区块导入路径驱动所配置的修剪策略。
type Manager struct {
	config  Config
	db      ethdb.KeyValueStore // Pruning metadata
	blocks  BlockStore
	journal Journal

	segment *Pruner
	depth   *DepthPruner

	feed  event.Feed
	scope event.SubscriptionScope
	lock  sync.Mutex
}

// NewManager creates a pruning manager. Nodes are deleted from storage, the
// progress of the segment strategy is kept in db.
func NewManager(config Config, db ethdb.KeyValueStore, storage ethdb.KeyValueWriter, journal Journal, blocks BlockStore) *Manager {
	config = config.sanitize()
	m := &Manager{
		config:  config,
		db:      db,
		blocks:  blocks,
		journal: journal,
	}
	switch config.Strategy {
	case StrategyDepth:
		m.depth = NewDepthPruner(storage, journal, blocks, config)
	default:
		m.segment = NewPruner(storage, journal)
	}
	log.Info("Initialised state pruning", "strategy", config.String())
	return m
}

// SubscribePruneEvent registers a subscription of PruneEvent.
func (m *Manager) SubscribePruneEvent(ch chan<- PruneEvent) event.Subscription {
	return m.scope.Track(m.feed.Subscribe(ch))
}

// Close terminates every event subscription.
func (m *Manager) Close() {
	m.scope.Close()
}

// BlockCommitted is called once the journal update of an imported block is
// stored and the block is written to the index, with the head updated.
func (m *Manager) BlockCommitted(info *types.BlockInfo) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	best := m.blocks.BestBlock()
	if best == nil {
		return nil
	}
	if m.depth != nil {
		if !m.depth.Initialized() {
			if err := m.initDepth(); err != nil {
				return err
			}
		} else {
			m.depth.Feed(m.journal.Update(info.Hash))
		}
		return m.pruneDepth(best)
	}
	last, ok := m.anchor(best.Number)
	if !ok {
		return nil
	}
	if m.config.UpcomingFilter {
		if !m.segment.Ready() {
			m.segment.Init(m.unpruned(last, best.Number))
		} else if update := m.journal.Update(info.Hash); update != nil {
			m.segment.Feed(update)
		}
	}
	return m.pruneSegment(best, last)
}

// Prune runs a single pass of the configured strategy against the current
// head without feeding any new block.
func (m *Manager) Prune() error {
	m.lock.Lock()
	defer m.lock.Unlock()

	best := m.blocks.BestBlock()
	if best == nil {
		return nil
	}
	if m.depth != nil {
		if err := m.initDepth(); err != nil {
			return err
		}
		return m.pruneDepth(best)
	}
	last, ok := m.anchor(best.Number)
	if !ok {
		return nil
	}
	return m.pruneSegment(best, last)
}

// initDepth builds the depth pruner filter, resuming from the head processed
// by an earlier run if any.
func (m *Manager) initDepth() error {
	if m.depth.Initialized() {
		return nil
	}
	if number := rawdb.ReadDepthPrunedNumber(m.db); number != nil {
		m.depth.SetProgress(*number)
	}
	return m.depth.LazyInit()
}

// pruneDepth catches the depth pruner up with the head and records the
// progress.
func (m *Manager) pruneDepth(best *types.BlockInfo) error {
	from := m.depth.next
	if err := m.depth.Prune(best.Number); err != nil {
		return err
	}
	head, ok := m.depth.Progress()
	if !ok || head < from {
		return nil
	}
	rawdb.WriteDepthPrunedNumber(m.db, head)
	m.feed.Send(PruneEvent{Strategy: StrategyDepth, Head: best.Number, From: from, To: head, Stats: m.depth.Stats()})
	return nil
}

// anchor returns the height of the last block consumed by the segment
// strategy. A fresh database is anchored Window+1 blocks below the head.
func (m *Manager) anchor(best uint64) (uint64, bool) {
	if number := rawdb.ReadLastPrunedNumber(m.db); number != nil {
		return *number, true
	}
	if best <= m.config.Window {
		return 0, false
	}
	last := best - m.config.Window - 1
	rawdb.WriteLastPrunedNumber(m.db, last)
	log.Info("Anchored state pruning", "number", last)
	return last, true
}

// unpruned returns the hashes of every block above the last pruned height.
func (m *Manager) unpruned(last, best uint64) []common.Hash {
	var hashes []common.Hash
	for n := last + 1; n <= best; n++ {
		for _, info := range m.blocks.BlockInfos(n) {
			hashes = append(hashes, info.Hash)
		}
	}
	return hashes
}

// pruneSegment prunes the blocks between the last pruned height and Window
// blocks below the head as a single segment.
func (m *Manager) pruneSegment(best *types.BlockInfo, last uint64) error {
	if best.Number <= m.config.Window {
		return nil
	}
	target := best.Number - m.config.Window
	if last >= target {
		return nil
	}
	root := m.blocks.ChainBlockInfo(last)
	if root == nil {
		log.Debug("Pruning root missing from index", "number", last)
		return nil
	}
	var (
		segment = NewSegment(root.Number, root.Hash, root.ParentHash)
		tracker = segment.StartTracking()
		forks   = mapset.NewThreadUnsafeSet[common.Hash]()
	)
	for n := last + 1; n <= target; n++ {
		main := m.blocks.ChainBlockInfo(n)
		if main == nil {
			log.Debug("Canonical block missing from index", "number", n)
			return nil
		}
		tracker.AddMain(main.Number, main.Hash, main.ParentHash)

		infos := m.blocks.BlockInfos(n)
		tracker.AddAll(infos...)
		for _, info := range infos {
			if !info.IsMainChain() {
				forks.Add(info.Hash)
			}
		}
	}
	// Side chains of the segment may reach above the target, they keep the
	// segment incomplete until the canonical chain overtakes them
	var upcoming []common.Hash
	for n := target + 1; n <= best.Number; n++ {
		for _, info := range m.blocks.BlockInfos(n) {
			if info.IsMainChain() {
				upcoming = append(upcoming, info.Hash)
			} else if forks.Contains(info.ParentHash) {
				tracker.AddAll(info)
				forks.Add(info.Hash)
			}
		}
	}
	tracker.Commit()

	if !segment.IsComplete() {
		log.Debug("Postponing pruning of incomplete segment", "segment", segment)
		return nil
	}
	report, err := m.segment.Prune(segment, upcoming)
	if err != nil {
		return err
	}
	if report.Aborted != nil {
		return nil
	}
	rawdb.WriteLastPrunedNumber(m.db, target)
	m.feed.Send(PruneEvent{Strategy: StrategySegment, Head: best.Number, From: last + 1, To: target, Report: report})
	return nil
}
