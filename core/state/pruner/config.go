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

	"github.com/ethereum/go-ethereum/log"
)

const (
	// StrategySegment prunes whole segments of the block tree once they fall
	// behind the head by the configured window.
	StrategySegment = "segment"

	// StrategyDepth prunes block by block at a fixed depth behind the head,
	// keeping a single long lived filter of recent inserts.
	StrategyDepth = "depth"
)

const (
	// minForkDepth is the lowest depth at which side chains may be pruned.
	// Reorgs deeper than this are not expected to happen.
	minForkDepth = 192

	// FilterEntriesFork is the approximate number of node keys a block inserts,
	// used to size the filter of upcoming inserts.
	FilterEntriesFork = 1 << 13

	// FilterEntriesDistant is the per block sizing of the long lived filter
	// kept by the depth pruner.
	FilterEntriesDistant = 1 << 11

	// FilterMaxSize caps the filter capacity, a full filter of this size
	// consumes about 3GB of memory.
	FilterMaxSize = (1<<31 - 1) >> 1
)

// Config contains the settings of the state pruners.
// Config 包含状态修剪器的设置。
type Config struct {
	Strategy string // Pruning strategy, segment or depth

	// Window is the number of blocks a segment lags behind the head before it
	// is pruned by the segment strategy.
	Window uint64

	ForkDepth uint64 // Depth at which side chains are pruned by the depth strategy
	MainDepth uint64 // Depth at which the canonical chain is pruned by the depth strategy

	// UpcomingFilter enables the filter of inserts made by blocks not yet
	// consumed by the segment pruner.
	UpcomingFilter bool
}

// Defaults contains the default settings of the state pruners.
var Defaults = Config{
	Strategy:       StrategySegment,
	Window:         minForkDepth,
	ForkDepth:      minForkDepth,
	MainDepth:      minForkDepth,
	UpcomingFilter: true,
}

// sanitize checks the provided user configurations and changes anything that's
// unreasonable or unworkable.
func (config *Config) sanitize() Config {
	conf := *config
	if conf.Strategy != StrategySegment && conf.Strategy != StrategyDepth {
		log.Warn("Sanitizing invalid pruning strategy", "provided", conf.Strategy, "updated", Defaults.Strategy)
		conf.Strategy = Defaults.Strategy
	}
	if conf.Window < 1 {
		log.Warn("Sanitizing invalid pruning window", "provided", conf.Window, "updated", Defaults.Window)
		conf.Window = Defaults.Window
	}
	if conf.ForkDepth < minForkDepth {
		log.Warn("Sanitizing invalid fork pruning depth", "provided", conf.ForkDepth, "updated", minForkDepth)
		conf.ForkDepth = minForkDepth
	}
	if conf.MainDepth < conf.ForkDepth {
		log.Warn("Sanitizing invalid main chain pruning depth", "provided", conf.MainDepth, "updated", conf.ForkDepth)
		conf.MainDepth = conf.ForkDepth
	}
	return conf
}

func (config *Config) String() string {
	if config.Strategy == StrategyDepth {
		return fmt.Sprintf("depth(main: %d, forks: %d)", config.MainDepth, config.ForkDepth)
	}
	return fmt.Sprintf("segment(window: %d, filter: %t)", config.Window, config.UpcomingFilter)
}
