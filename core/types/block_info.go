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

// Package types contains the block index records shared by the chain index
// and the state pruners.
package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// BlockInfo is the index record of a single imported block. Every block the
// node has imported, canonical or not, owns exactly one BlockInfo.
// BlockInfo 是单个已导入区块的索引记录。
type BlockInfo struct {
	Number     uint64
	Hash       common.Hash
	ParentHash common.Hash
	MainChain  bool // Flag whether the block is part of the canonical chain
}

// IsMainChain reports whether the block is on the canonical chain.
func (b *BlockInfo) IsMainChain() bool {
	return b.MainChain
}

// IsParentOf reports whether b is the direct parent of the given block.
func (b *BlockInfo) IsParentOf(child *BlockInfo) bool {
	return child != nil && b.Hash == child.ParentHash
}

// Copy returns a shallow copy of the record.
func (b *BlockInfo) Copy() *BlockInfo {
	cpy := *b
	return &cpy
}

func (b *BlockInfo) String() string {
	return fmt.Sprintf("#%d (%x <~ %x, main: %t)", b.Number, b.Hash[:4], b.ParentHash[:4], b.MainChain)
}
