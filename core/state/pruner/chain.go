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
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sunyihoo/journalprune/core/types"
)

// ChainItem is the identity of a single block within a segment.
type ChainItem struct {
	Number     uint64
	Hash       common.Hash
	ParentHash common.Hash
}

// NewChainItem creates a chain item.
func NewChainItem(number uint64, hash, parent common.Hash) ChainItem {
	return ChainItem{Number: number, Hash: hash, ParentHash: parent}
}

// chainItemFromInfo converts an index record into a chain item.
func chainItemFromInfo(info *types.BlockInfo) ChainItem {
	return NewChainItem(info.Number, info.Hash, info.ParentHash)
}

// IsParentOf reports whether the item is the direct parent of the other.
func (c ChainItem) IsParentOf(other ChainItem) bool {
	return c.Hash == other.ParentHash
}

// Equal reports whether two items refer to the same block. Only the hash is
// compared.
func (c ChainItem) Equal(other ChainItem) bool {
	return c.Hash == other.Hash
}

func (c ChainItem) String() string {
	return fmt.Sprintf("#%d (%x <~ %x)", c.Number, c.Hash[:4], c.ParentHash[:4])
}

// Chain is a run of linked blocks, each one the parent of the next. A nil
// chain is the empty chain, it rejects every connection.
type Chain struct {
	items []ChainItem
}

// ChainFromItems builds a chain out of the given items. Nil is returned if no
// item is given or the items are not linked.
func ChainFromItems(items ...ChainItem) *Chain {
	if len(items) == 0 {
		return nil
	}
	chain := &Chain{items: []ChainItem{items[0]}}
	for _, item := range items[1:] {
		if !chain.Connect(item) {
			return nil
		}
	}
	return chain
}

// Connect appends the item if the top of the chain is its parent.
func (c *Chain) Connect(item ChainItem) bool {
	if c == nil || len(c.items) == 0 {
		return false
	}
	if !c.Top().IsParentOf(item) {
		return false
	}
	c.items = append(c.items, item)
	return true
}

// Contains reports whether the block is part of the chain.
func (c *Chain) Contains(item ChainItem) bool {
	if c == nil {
		return false
	}
	for _, it := range c.items {
		if it.Equal(item) {
			return true
		}
	}
	return false
}

// Top returns the newest item. The chain must not be empty.
func (c *Chain) Top() ChainItem {
	return c.items[len(c.items)-1]
}

// TopNumber returns the number of the newest item, 0 for the empty chain.
func (c *Chain) TopNumber() uint64 {
	if c == nil || len(c.items) == 0 {
		return 0
	}
	return c.Top().Number
}

// StartNumber returns the number of the oldest item, 0 for the empty chain.
func (c *Chain) StartNumber() uint64 {
	if c == nil || len(c.items) == 0 {
		return 0
	}
	return c.items[0].Number
}

// IsHigher reports whether the chain reaches above the other one.
func (c *Chain) IsHigher(other *Chain) bool {
	return c.TopNumber() > other.TopNumber()
}

// Len returns the number of blocks in the chain.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// Items returns the blocks of the chain, oldest first.
func (c *Chain) Items() []ChainItem {
	if c == nil {
		return nil
	}
	return c.items
}

// Hashes returns the block hashes of the chain, oldest first.
func (c *Chain) Hashes() []common.Hash {
	if c == nil {
		return nil
	}
	hashes := make([]common.Hash, len(c.items))
	for i, item := range c.items {
		hashes[i] = item.Hash
	}
	return hashes
}

func (c *Chain) String() string {
	if c.Len() == 0 {
		return "[]"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "[#%d ~> #%d: ", c.StartNumber(), c.TopNumber())
	for i, item := range c.items {
		if i == 3 {
			fmt.Fprintf(&sb, ", ... (%d total)", len(c.items))
			break
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%x", item.Hash[:4])
	}
	sb.WriteString("]")
	return sb.String()
}
