// Copyright 2015 The go-ethereum Authors
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

// Package utils contains internal helper functions for the pruning commands.
package utils

import (
	"github.com/sunyihoo/journalprune/core/state/pruner"
	"github.com/sunyihoo/journalprune/internal/flags"
	"github.com/urfave/cli/v2"
)

// These are all the command line flags we support.
// If you add to this list, please remember to include the
// flag in the appropriate command definition.
//
// The flags are defined here so their names and help texts
// are the same for all commands.

var (
	// Database settings
	DataDirFlag = &flags.DirectoryFlag{
		Name:     "datadir",
		Usage:    "Data directory holding the node store, the journal and the block index",
		Value:    flags.DirectoryString(flags.DefaultDataDir("prunectl")),
		Category: flags.DatabaseCategory,
	}
	DBEngineFlag = &cli.StringFlag{
		Name:     "db.engine",
		Usage:    "Backing database implementation to use ('pebble' or 'leveldb')",
		Value:    "pebble",
		Category: flags.DatabaseCategory,
	}

	// Pruning settings
	PruneStrategyFlag = &cli.StringFlag{
		Name:     "prune.strategy",
		Usage:    "State pruning strategy ('segment' or 'depth')",
		Value:    pruner.Defaults.Strategy,
		Category: flags.PruningCategory,
	}
	PruneWindowFlag = &cli.Uint64Flag{
		Name:     "prune.window",
		Usage:    "Number of blocks a segment lags behind the head before it is pruned (segment strategy)",
		Value:    pruner.Defaults.Window,
		Category: flags.PruningCategory,
	}
	PruneForkDepthFlag = &cli.Uint64Flag{
		Name:     "prune.forkdepth",
		Usage:    "Depth at which side chains are pruned, at least 192 (depth strategy)",
		Value:    pruner.Defaults.ForkDepth,
		Category: flags.PruningCategory,
	}
	PruneMainDepthFlag = &cli.Uint64Flag{
		Name:     "prune.maindepth",
		Usage:    "Depth at which the canonical chain is pruned, at least the fork depth (depth strategy)",
		Value:    pruner.Defaults.MainDepth,
		Category: flags.PruningCategory,
	}
	PruneNoFilterFlag = &cli.BoolFlag{
		Name:     "prune.nofilter",
		Usage:    "Disable the filter of inserts made by blocks not yet pruned (segment strategy)",
		Category: flags.PruningCategory,
	}

	// Performance tuning settings
	CacheFlag = &cli.IntFlag{
		Name:     "cache",
		Usage:    "Megabytes of memory allocated to the database",
		Value:    512,
		Category: flags.PerfCategory,
	}
	CacheJournalFlag = &cli.IntFlag{
		Name:     "cache.journal",
		Usage:    "Megabytes of memory allocated to caching journal updates",
		Value:    64,
		Category: flags.PerfCategory,
	}
	HandlesFlag = &cli.IntFlag{
		Name:     "handles",
		Usage:    "Number of file handles allocated to the database",
		Value:    512,
		Category: flags.PerfCategory,
	}
)

// DatabaseFlags are the flags needed to open the data directory.
var DatabaseFlags = []cli.Flag{
	DataDirFlag,
	DBEngineFlag,
	CacheFlag,
	HandlesFlag,
}

// PruningFlags are the flags configuring the state pruners.
var PruningFlags = []cli.Flag{
	PruneStrategyFlag,
	PruneWindowFlag,
	PruneForkDepthFlag,
	PruneMainDepthFlag,
	PruneNoFilterFlag,
	CacheJournalFlag,
}

// SetPrunerConfig applies pruning related command line flags to the config.
func SetPrunerConfig(ctx *cli.Context, cfg *pruner.Config) {
	if ctx.IsSet(PruneStrategyFlag.Name) {
		cfg.Strategy = ctx.String(PruneStrategyFlag.Name)
	}
	if ctx.IsSet(PruneWindowFlag.Name) {
		cfg.Window = ctx.Uint64(PruneWindowFlag.Name)
	}
	if ctx.IsSet(PruneForkDepthFlag.Name) {
		cfg.ForkDepth = ctx.Uint64(PruneForkDepthFlag.Name)
	}
	if ctx.IsSet(PruneMainDepthFlag.Name) {
		cfg.MainDepth = ctx.Uint64(PruneMainDepthFlag.Name)
	}
	if ctx.IsSet(PruneNoFilterFlag.Name) {
		cfg.UpcomingFilter = !ctx.Bool(PruneNoFilterFlag.Name)
	}
}
