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

import "github.com/ethereum/go-ethereum/metrics"

var (
	segmentPruneTimer    = metrics.NewRegisteredResettingTimer("state/pruner/segment/time", nil)
	segmentAbortMeter    = metrics.NewRegisteredMeter("state/pruner/segment/aborted", nil)
	segmentForkFailMeter = metrics.NewRegisteredMeter("state/pruner/segment/forkfail", nil)
	segmentDeleteMeter   = metrics.NewRegisteredMeter("state/pruner/segment/deleted", nil)
	segmentRetainMeter   = metrics.NewRegisteredMeter("state/pruner/segment/retained", nil)
	segmentEvictMeter    = metrics.NewRegisteredMeter("state/pruner/segment/evicted", nil)

	depthPruneTimer   = metrics.NewRegisteredResettingTimer("state/pruner/depth/time", nil)
	depthInsertMeter  = metrics.NewRegisteredMeter("state/pruner/depth/inserted", nil)
	depthDeleteMeter  = metrics.NewRegisteredMeter("state/pruner/depth/deleted", nil)
	depthRejectMeter  = metrics.NewRegisteredMeter("state/pruner/depth/rejected", nil)
	depthForkMeter    = metrics.NewRegisteredMeter("state/pruner/depth/forks", nil)
	depthMissingMeter = metrics.NewRegisteredMeter("state/pruner/depth/missing", nil)
)
