// Copyright 2020 The go-ethereum Authors
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
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/olekukonko/tablewriter"
	"github.com/sunyihoo/journalprune/cmd/utils"
	"github.com/sunyihoo/journalprune/core/chainindex"
	"github.com/sunyihoo/journalprune/core/rawdb"
	"github.com/sunyihoo/journalprune/triedb/journaldb"
	"github.com/urfave/cli/v2"
)

var (
	inspectCommand = &cli.Command{
		Action:    inspect,
		Name:      "inspect",
		Usage:     "Inspect the pruning progress and the journal",
		ArgsUsage: "",
		Flags:     append([]cli.Flag{configFileFlag}, utils.DatabaseFlags...),
		Description: `This command shows the head of the block index, the height consumed by
the segment strategy and the size of the journal of unpruned blocks.`,
	}
	compactCommand = &cli.Command{
		Action: compact,
		Name:   "compact",
		Usage:  "Compact the database",
		Flags:  append([]cli.Flag{configFileFlag}, utils.DatabaseFlags...),
		Description: `This command performs a database compaction.
WARNING: This operation may take a very long time to finish, and may cause database
corruption if it is aborted during execution'!`,
	}
)

func inspect(ctx *cli.Context) error {
	cfg := loadBaseConfig(ctx)
	db, err := utils.OpenDatabase(cfg.Database, true)
	if err != nil {
		return err
	}
	defer db.Close()

	var (
		index   = chainindex.New(db)
		journal = journaldb.New(db, &cfg.Journal)
		rows    [][]string
	)
	defer journal.Close()

	if head := index.BestBlock(); head != nil {
		rows = append(rows, []string{"Block index", "Head", fmt.Sprintf("#%d [%x…]", head.Number, head.Hash.Bytes()[:4])})
	} else {
		rows = append(rows, []string{"Block index", "Head", "-"})
	}
	if number := rawdb.ReadLastPrunedNumber(db); number != nil {
		rows = append(rows, []string{"Segment pruning", "Last pruned", fmt.Sprintf("#%d", *number)})
	} else {
		rows = append(rows, []string{"Segment pruning", "Last pruned", "-"})
	}
	if number := rawdb.ReadDepthPrunedNumber(db); number != nil {
		rows = append(rows, []string{"Depth pruning", "Last head", fmt.Sprintf("#%d", *number)})
	} else {
		rows = append(rows, []string{"Depth pruning", "Last head", "-"})
	}
	count, size, err := journal.Stats()
	if err != nil {
		return err
	}
	rows = append(rows, []string{"Journal", "Entries", fmt.Sprintf("%d", count)})
	rows = append(rows, []string{"Journal", "Size", size.String()})

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Database", "Category", "Value"})
	table.AppendBulk(rows)
	table.Render()

	showDBStats(db)
	return nil
}

func compact(ctx *cli.Context) error {
	cfg := loadBaseConfig(ctx)
	db, err := utils.OpenDatabase(cfg.Database, false)
	if err != nil {
		return err
	}
	defer db.Close()

	return compactDatabase(db)
}

// compactDatabase compacts the whole key space in sixteen ranges so that
// progress can be reported.
func compactDatabase(db ethdb.KeyValueStore) error {
	log.Info("Stats before compaction")
	showDBStats(db)

	cstart := time.Now()
	for b := 0x00; b <= 0xf0; b += 0x10 {
		var (
			start = []byte{byte(b)}
			end   = []byte{byte(b + 0x10)}
		)
		if b == 0xf0 {
			end = nil
		}
		log.Info("Compacting database", "range", fmt.Sprintf("%#x-%#x", start, end), "elapsed", common.PrettyDuration(time.Since(cstart)))
		if err := db.Compact(start, end); err != nil {
			log.Error("Database compaction failed", "error", err)
			return err
		}
	}
	log.Info("Database compaction finished", "elapsed", common.PrettyDuration(time.Since(cstart)))

	log.Info("Stats after compaction")
	showDBStats(db)
	return nil
}

func showDBStats(db ethdb.KeyValueStater) {
	stats, err := db.Stat()
	if err != nil {
		log.Warn("Failed to read database stats", "error", err)
		return
	}
	fmt.Println(stats)
}
