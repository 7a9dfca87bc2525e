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
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sunyihoo/journalprune/core/types"
)

// Segment is a window of the block tree rooted at a common ancestor: the
// canonical chain on top of the root plus the side chains branching off the
// root or off any block of the window. The root itself belongs to neither.
//
// Segment 是以共同祖先为根的区块树窗口：根之上的规范链，
// 以及从根或窗口内任意区块分叉出的侧链。根本身不属于其中任何一个。
type Segment struct {
	root  ChainItem
	main  *Chain
	forks []*Chain
}

// NewSegment creates an empty segment on top of the given root block.
func NewSegment(number uint64, hash, parent common.Hash) *Segment {
	return &Segment{root: NewChainItem(number, hash, parent)}
}

// Root returns the attachment point of the segment.
func (s *Segment) Root() ChainItem { return s.root }

// Main returns the canonical chain of the segment, nil if it's not known yet.
func (s *Segment) Main() *Chain { return s.main }

// Forks returns the side chains of the segment.
func (s *Segment) Forks() []*Chain { return s.forks }

// IsComplete reports whether the canonical chain is known and reaches at
// least as high as every side chain.
func (s *Segment) IsComplete() bool {
	if s.main == nil {
		return false
	}
	for _, fork := range s.forks {
		if fork.IsHigher(s.main) {
			return false
		}
	}
	return true
}

// MaxNumber returns the number of the canonical top, 0 if it's not known.
func (s *Segment) MaxNumber() uint64 { return s.main.TopNumber() }

// Size returns the number of canonical blocks in the segment.
func (s *Segment) Size() int { return s.main.Len() }

// StartTracking returns a tracker feeding blocks into the segment.
func (s *Segment) StartTracking() *Tracker {
	return &Tracker{segment: s}
}

func (s *Segment) String() string {
	return fmt.Sprintf("%s: main %v, forks %v", s.root, s.main, s.forks)
}

// Tracker collects blocks for a segment. Added blocks become visible only
// once Commit is called.
type Tracker struct {
	segment *Segment
	main    []ChainItem
	items   []ChainItem
}

// AddMain adds a canonical block.
func (t *Tracker) AddMain(number uint64, hash, parent common.Hash) *Tracker {
	t.main = append(t.main, NewChainItem(number, hash, parent))
	return t
}

// AddItem adds a block which is canonical or side chain.
func (t *Tracker) AddItem(number uint64, hash, parent common.Hash) *Tracker {
	t.items = append(t.items, NewChainItem(number, hash, parent))
	return t
}

// AddAll adds the given index records as generic items.
func (t *Tracker) AddAll(infos ...*types.BlockInfo) *Tracker {
	for _, info := range infos {
		t.items = append(t.items, chainItemFromInfo(info))
	}
	return t
}

func byNumber(a, b ChainItem) int {
	switch {
	case a.Number < b.Number:
		return -1
	case a.Number > b.Number:
		return 1
	}
	return 0
}

// Commit links the collected blocks into the segment. Canonical blocks are
// connected first, the rest then extend or open side chains. Blocks whose
// parent is not part of the segment are dropped, they can be added again
// once their ancestors are known.
func (t *Tracker) Commit() {
	// Canonical blocks added as items too are handled once
	var items []ChainItem
	for _, item := range t.items {
		if t.segment.main.Contains(item) || slices.ContainsFunc(t.main, item.Equal) {
			continue
		}
		items = append(items, item)
	}
	slices.SortStableFunc(t.main, byNumber)
	slices.SortStableFunc(items, byNumber)

	for _, item := range t.main {
		t.connectMain(item)
	}
	for _, item := range items {
		t.connectFork(item)
	}
	t.main, t.items = nil, nil
}

func (t *Tracker) connectMain(item ChainItem) {
	s := t.segment
	if s.main == nil {
		if s.root.IsParentOf(item) {
			s.main = ChainFromItems(item)
		}
		return
	}
	s.main.Connect(item)
}

func (t *Tracker) connectFork(item ChainItem) {
	s := t.segment
	for _, fork := range s.forks {
		if fork.Contains(item) {
			return
		}
	}
	// Branching off the root or the canonical chain
	if s.root.IsParentOf(item) {
		s.forks = append(s.forks, ChainFromItems(item))
		return
	}
	for _, parent := range s.main.Items() {
		if parent.IsParentOf(item) {
			s.forks = append(s.forks, ChainFromItems(item))
			return
		}
	}
	// Extending a side chain
	for _, fork := range s.forks {
		if fork.Connect(item) {
			return
		}
	}
	// Branching off the middle of a side chain
	var branched []*Chain
	for _, fork := range s.forks {
		for _, parent := range fork.Items() {
			if parent.IsParentOf(item) {
				branched = append(branched, ChainFromItems(item))
			}
		}
	}
	s.forks = append(s.forks, branched...)
}
