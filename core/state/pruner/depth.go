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
	"runtime"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/sunyihoo/journalprune/core/types"
	"github.com/sunyihoo/journalprune/triedb/journaldb"
	"golang.org/x/sync/errgroup"
)

// DepthStats are the key counters of a depth pruner.
type DepthStats struct {
	KeysInserted        uint64 // Keys fed into the filter
	KeysDeleted         uint64 // Keys removed from storage
	KeysDeletesRejected uint64 // Released keys kept because the filter may contain them
}

// maxForkRetries is the number of prune passes a side chain subtree with a
// missing update is kept for. Afterwards it is dropped without deleting any
// node.
const maxForkRetries = 16

// DepthPruner prunes the block tree one height at a time as the chain grows.
// Side chains are dropped once they are ForkDepth blocks behind the head,
// the nodes released by the canonical chain once it is MainDepth blocks
// behind. A single counting filter of the keys inserted by every block within
// reach keeps live nodes on disk.
//
// DepthPruner 随着链的增长逐个高度地修剪区块树。
// 侧链在落后链头 ForkDepth 个区块时被丢弃，规范链释放的节点在落后 MainDepth 个区块时被删除。
type DepthPruner struct {
	storage ethdb.KeyValueWriter
	journal Journal
	blocks  BlockStore

	forkDepth uint64
	mainDepth uint64

	newFilter FilterFactory
	inserted  Filter // Nil until lazily initialised
	stats     DepthStats

	next    uint64     // First head not processed yet
	resumed bool       // Whether next was restored before initialisation
	pending []forkNode // Side chain subtrees waiting for a missing update
}

// NewDepthPruner creates a depth pruner. The configured depths are raised to
// their floors if needed.
func NewDepthPruner(storage ethdb.KeyValueWriter, journal Journal, blocks BlockStore, config Config) *DepthPruner {
	config = config.sanitize()
	return &DepthPruner{
		storage:   storage,
		journal:   journal,
		blocks:    blocks,
		forkDepth: config.ForkDepth,
		mainDepth: config.MainDepth,
		newFilter: newCountingFilter,
	}
}

// ForkDepth returns the depth at which side chains are pruned.
func (p *DepthPruner) ForkDepth() uint64 { return p.forkDepth }

// MainDepth returns the depth at which the canonical chain is pruned.
func (p *DepthPruner) MainDepth() uint64 { return p.mainDepth }

// Stats returns the key counters.
func (p *DepthPruner) Stats() DepthStats { return p.stats }

// Initialized reports whether the filter was built.
func (p *DepthPruner) Initialized() bool { return p.inserted != nil }

// SetProgress restores the last head processed by an earlier run, so that the
// first Prune catches up on every height since. It has no effect once the
// filter is built.
func (p *DepthPruner) SetProgress(head uint64) {
	if p.inserted != nil {
		return
	}
	p.next, p.resumed = head+1, true
}

// Progress returns the last head processed.
func (p *DepthPruner) Progress() (uint64, bool) {
	if p.inserted == nil || p.next == 0 {
		return 0, false
	}
	return p.next - 1, true
}

// LazyInit builds the filter on first use, walking back from the best block:
// every block down to ForkDepth below the first head to process, only the
// canonical ones further down to MainDepth. Without restored progress the
// first head is the best block. The heights Prune will touch are included.
// Missing updates are skipped.
func (p *DepthPruner) LazyInit() error {
	if p.inserted != nil {
		return nil
	}
	best := p.blocks.BestBlock()
	if best == nil {
		return nil
	}
	start := time.Now()

	from := best.Number
	if p.resumed && p.next < from {
		from = p.next
	}
	var (
		forkLow = saturatingSub(from, p.forkDepth)
		mainLow = saturatingSub(from, p.mainDepth)
		infos   []*types.BlockInfo
	)
	for number := best.Number; ; number-- {
		if number >= forkLow {
			infos = append(infos, p.blocks.BlockInfos(number)...)
		} else if info := p.blocks.ChainBlockInfo(number); info != nil {
			infos = append(infos, info)
		}
		if number == mainLow {
			break
		}
	}
	// Journal reads run concurrently, the filter is filled in order
	var (
		updates = make([]*journaldb.Update, len(infos))
		eg      errgroup.Group
	)
	eg.SetLimit(runtime.NumCPU())
	for i, info := range infos {
		eg.Go(func() error {
			updates[i] = p.journal.Update(info.Hash)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	filter, err := p.newFilter(filterCapacity(max(int(p.mainDepth), len(infos)), FilterEntriesDistant))
	if err != nil {
		return err
	}
	p.inserted = filter
	for _, update := range updates {
		p.Feed(update)
	}
	if !p.resumed {
		p.next = best.Number
	}
	log.Info("Initialised depth pruner filter", "best", best.Number, "from", from, "blocks", len(infos),
		"keys", p.stats.KeysInserted, "elapsed", common.PrettyDuration(time.Since(start)))
	return nil
}

func saturatingSub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}

// Feed adds the inserts of a newly imported block to the filter. Nil updates
// and feeds before initialisation are ignored.
func (p *DepthPruner) Feed(update *journaldb.Update) {
	if update == nil || p.inserted == nil {
		return
	}
	insertKeys(p.inserted, update)

	n := uint64(update.InsertedKeys().Cardinality())
	p.stats.KeysInserted += n
	depthInsertMeter.Mark(int64(n))
}

// Prune processes every head up to best not processed yet: the canonical
// block MainDepth below the head is pruned, so is every side chain branching
// off the canonical chain ForkDepth below it. Side chains waiting for a
// missing update are retried first.
func (p *DepthPruner) Prune(best uint64) error {
	if p.inserted == nil {
		log.Warn("Depth pruner used before initialisation", "best", best)
		return nil
	}
	if best < p.next {
		return nil
	}
	defer depthPruneTimer.UpdateSince(time.Now())

	deleter := newKeyDeleter(p.storage)
	if err := p.retryForks(deleter); err != nil {
		return err
	}
	for head := p.next; head <= best; head++ {
		if head > p.mainDepth {
			if info := p.blocks.ChainBlockInfo(head - p.mainDepth); info != nil {
				if err := p.pruneMainBlock(deleter, info); err != nil {
					return err
				}
			}
		}
		if head > p.forkDepth {
			for _, info := range p.blocks.BlockInfos(head - p.forkDepth) {
				if info.IsMainChain() || !p.isForkRoot(info) {
					continue
				}
				root := forkNode{info: info, deleted: mapset.NewThreadUnsafeSet[string]()}
				if err := p.pruneFork(deleter, root); err != nil {
					return err
				}
			}
		}
	}
	p.next = best + 1
	return deleter.Flush()
}

// pruneMainBlock deletes the keys a canonical block released unless a block
// within reach may still reference them, then ages its inserts out of the
// filter.
func (p *DepthPruner) pruneMainBlock(deleter *keyDeleter, info *types.BlockInfo) error {
	update := p.journal.Update(info.Hash)
	if update == nil {
		log.Debug("Skipping canonical block prune", "number", info.Number, "hash", info.Hash, "err", errMissingUpdate)
		depthMissingMeter.Mark(1)
		return nil
	}
	var (
		deleted, rejected uint64
		err               error
	)
	update.DeletedKeys().Each(func(key string) bool {
		if p.inserted.MaybeContains([]byte(key)) {
			rejected++
			return false
		}
		if err = deleter.Delete([]byte(key)); err != nil {
			return true
		}
		deleted++
		return false
	})
	if err != nil {
		return err
	}
	removeKeys(p.inserted, update)
	p.journal.Delete(info.Hash)

	p.stats.KeysDeleted += deleted
	p.stats.KeysDeletesRejected += rejected
	depthDeleteMeter.Mark(int64(deleted))
	depthRejectMeter.Mark(int64(rejected))

	log.Trace("Pruned canonical block", "number", info.Number, "hash", info.Hash, "deleted", deleted, "rejected", rejected)
	return nil
}

// forkNode is a pending side chain block with the keys deleted by its
// ancestors within the side chain.
type forkNode struct {
	info    *types.BlockInfo
	deleted mapset.Set[string]

	tainted  bool // An ancestor's update is lost, no node below may be deleted
	attempts int  // Passes the node waited for its update
}

// isForkRoot reports whether a side chain block branches off the canonical
// chain. Deeper side chain blocks are reached from their root only, also
// once the record of their parent was dropped.
func (p *DepthPruner) isForkRoot(info *types.BlockInfo) bool {
	parent := p.blocks.BlockByHash(info.ParentHash)
	return parent != nil && parent.IsMainChain()
}

// retryForks walks again every subtree which stopped at a missing update.
// Subtrees waiting for too long are dropped tainted.
func (p *DepthPruner) retryForks(deleter *keyDeleter) error {
	pending := p.pending
	p.pending = nil

	for _, node := range pending {
		node.attempts++
		if node.attempts > maxForkRetries {
			log.Warn("Dropping side chain subtree with lost update", "number", node.info.Number, "hash", node.info.Hash)
			node.tainted = true
		}
		if err := p.pruneFork(deleter, node); err != nil {
			return err
		}
	}
	return nil
}

// pruneFork drops a whole side chain subtree in a single pass. Keys deleted
// by an ancestor and inserted again further down are kept: they existed
// before the side chain branched off.
//
// A node whose update is missing stops the walk, it is retried together
// with its subtree on the next pass. A tainted walk releases journal entries
// and filter counts but deletes nothing.
//
// A diamond of side chains may leave a few nodes behind, e.g. a branch
// inserting k1, deleting it and inserting it again keeps k1 on disk.
func (p *DepthPruner) pruneFork(deleter *keyDeleter, root forkNode) error {
	stack := []forkNode{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		update := p.journal.Update(node.info.Hash)
		if update == nil && !node.tainted {
			if node.attempts == 0 {
				log.Debug("Deferring side chain subtree", "number", node.info.Number, "hash", node.info.Hash, "err", errMissingUpdate)
				depthMissingMeter.Mark(1)
			}
			p.pending = append(p.pending, node)
			continue
		}
		inherited := node.deleted
		if update != nil {
			removeKeys(p.inserted, update)

			var (
				deleted uint64
				err     error
			)
			if !node.tainted {
				update.InsertedKeys().Each(func(key string) bool {
					if node.deleted.Contains(key) || p.inserted.MaybeContains([]byte(key)) {
						return false
					}
					if err = deleter.Delete([]byte(key)); err != nil {
						return true
					}
					deleted++
					return false
				})
			}
			if err != nil {
				return err
			}
			p.journal.Delete(node.info.Hash)
			p.stats.KeysDeleted += deleted
			depthDeleteMeter.Mark(int64(deleted))

			inherited = node.deleted.Union(update.DeletedKeys())
		}
		depthForkMeter.Mark(1)

		for _, child := range p.blocks.Children(node.info) {
			if child.IsMainChain() {
				log.Warn("Canonical block descends from side chain", "number", child.Number, "hash", child.Hash, "parent", node.info.Hash)
				continue
			}
			stack = append(stack, forkNode{info: child, deleted: inherited, tainted: node.tainted})
		}
		if blocks, ok := p.blocks.(BlockDeleter); ok {
			blocks.DeleteBlock(node.info.Number, node.info.Hash)
		}
	}
	return nil
}
