// Copyright 2025 The go-ethereum Authors
// This file is part of go-ethereum.
//
// go-ethereum is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-ethereum is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-ethereum. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/sunyihoo/journalprune/cmd/utils"
	"github.com/sunyihoo/journalprune/core/chainindex"
	"github.com/sunyihoo/journalprune/core/state/pruner"
	"github.com/sunyihoo/journalprune/triedb/journaldb"
	"github.com/urfave/cli/v2"
)

// rangeCompactionThreshold is the minimal number of deleted keys that
// triggers a compaction of the database after pruning.
const rangeCompactionThreshold = 100000

var pruneCommand = &cli.Command{
	Action:    prune,
	Name:      "prune",
	Usage:     "Prune the stale state nodes up to the current head",
	ArgsUsage: "",
	Flags: append(append([]cli.Flag{
		configFileFlag,
		compactFlag,
	}, utils.DatabaseFlags...), utils.PruningFlags...),
	Description: `prunectl prune runs a single pass of the configured pruning strategy
against the head of the block index. Node keys are removed when no block
still reachable from the head references them. The journal entries of the
pruned blocks are released. The depth strategy catches up on every head
imported since the previous run.`,
}

var compactFlag = &cli.BoolFlag{
	Name:  "compact",
	Usage: "Compact the database after a pass that deleted many keys",
	Value: true,
}

func prune(ctx *cli.Context) error {
	cfg := loadBaseConfig(ctx)
	db, err := utils.OpenDatabase(cfg.Database, false)
	if err != nil {
		return err
	}
	defer db.Close()

	var (
		index   = chainindex.New(db)
		journal = journaldb.New(db, &cfg.Journal)
		manager = pruner.NewManager(cfg.Pruner, db, db, journal, index)
		events  = make(chan pruner.PruneEvent, 1)
		sub     = manager.SubscribePruneEvent(events)
		start   = time.Now()
	)
	defer journal.Close()
	defer manager.Close()
	defer sub.Unsubscribe()

	if err := manager.Prune(); err != nil {
		log.Error("State pruning failed", "err", err)
		return err
	}
	var deleted uint64
	select {
	case ev := <-events:
		deleted = logPruneEvent(ev, time.Since(start))
	default:
		log.Info("Nothing to prune", "head", headNumber(index))
	}
	if ctx.Bool(compactFlag.Name) && deleted >= rangeCompactionThreshold {
		return compactDatabase(db)
	}
	return nil
}

// logPruneEvent reports a finished pass and returns the number of keys it
// removed from the database.
func logPruneEvent(ev pruner.PruneEvent, elapsed time.Duration) uint64 {
	if ev.Report != nil {
		report := ev.Report
		for _, fork := range report.Forks {
			if fork.Err != nil {
				log.Warn("Side chain not pruned", "chain", fork.Chain, "err", fork.Err)
			}
		}
		log.Info("Pruned state segment", "from", ev.From, "to", ev.To, "head", ev.Head,
			"deleted", report.Deleted, "retained", report.Retained, "evicted", report.Evicted,
			"released", report.Released, "elapsed", common.PrettyDuration(elapsed))
		return uint64(report.Deleted)
	}
	log.Info("Pruned state by depth", "from", ev.From, "to", ev.To, "inserted", ev.Stats.KeysInserted,
		"deleted", ev.Stats.KeysDeleted, "rejected", ev.Stats.KeysDeletesRejected,
		"elapsed", common.PrettyDuration(elapsed))
	return ev.Stats.KeysDeleted
}

func headNumber(index *chainindex.Index) uint64 {
	if head := index.BestBlock(); head != nil {
		return head.Number
	}
	return 0
}
