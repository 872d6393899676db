// Copyright ©2015 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package index

import (
	"sort"

	"github.com/biogo/htsindex/bgzf"
)

// MergeStrategy represents a chunk compression strategy. Strategies
// expect chunks sorted by begin offset and may alter the slice they
// are given.
type MergeStrategy func([]bgzf.Chunk) []bgzf.Chunk

var (
	// Identity leaves the []bgzf.Chunk unaltered.
	Identity MergeStrategy = identity

	// Adjacent merges contiguous bgzf.Chunks.
	Adjacent MergeStrategy = adjacent

	// BlockNeighbours merges bgzf.Chunks where the next chunk begins
	// in a BGZF block at most one block offset after the block holding
	// the last byte of the previous chunk.
	BlockNeighbours MergeStrategy = blockNeighbours

	// Squash merges all bgzf.Chunks into a single bgzf.Chunk.
	Squash MergeStrategy = squash
)

// CompressorStrategy returns a MergeStrategy that will merge bgzf.Chunks
// that have a distance between BGZF block starts less than or equal
// to near.
func CompressorStrategy(near int64) MergeStrategy {
	return func(chunks []bgzf.Chunk) []bgzf.Chunk {
		return mergeWhen(chunks, func(left, right bgzf.Chunk) bool {
			return left.End.File+near >= right.Begin.File
		})
	}
}

// Optimize returns the candidate chunks sorted by begin and then end
// offset with all chunks ending at or before min removed and chunks in
// neighbouring blocks coalesced by BlockNeighbours.
//
// min is the lowest virtual offset at which a record of interest may
// begin, so a chunk ending at or before it cannot hold one. A zero min
// only removes chunks that end at the zero offset.
//
// Optimize does not alter chunks. Chunks with End before Begin are not
// rejected and are sorted and merged like any other chunk.
func Optimize(chunks []bgzf.Chunk, min bgzf.Offset) []bgzf.Chunk {
	if len(chunks) == 0 {
		return nil
	}
	work := make([]bgzf.Chunk, len(chunks))
	copy(work, chunks)
	sort.Sort(byOffsets(work))
	return BlockNeighbours(Prune(work, min))
}

// Prune removes chunks ending at or before min, retaining the order
// of the remaining chunks. The chunks slice is reused.
func Prune(chunks []bgzf.Chunk, min bgzf.Offset) []bgzf.Chunk {
	kept := chunks[:0]
	for _, c := range chunks {
		if c.End.Compare(min) <= 0 {
			continue
		}
		kept = append(kept, c)
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}

func identity(chunks []bgzf.Chunk) []bgzf.Chunk { return chunks }

func adjacent(chunks []bgzf.Chunk) []bgzf.Chunk {
	return mergeWhen(chunks, func(left, right bgzf.Chunk) bool {
		return vOffset(left.End) >= vOffset(right.Begin)
	})
}

func blockNeighbours(chunks []bgzf.Chunk) []bgzf.Chunk {
	if len(chunks) == 0 {
		return nil
	}
	merged := chunks[:1]
	for _, c := range chunks[1:] {
		last := &merged[len(merged)-1]
		if c.Begin.File-EndBlock(last.End) <= 1 {
			if vOffset(c.End) > vOffset(last.End) {
				last.End = c.End
			}
			continue
		}
		merged = append(merged, c)
	}
	return merged
}

// EndBlock returns a file offset within the block holding the last byte
// of a chunk ending at end. Chunk ends are exclusive, so an end at the
// start of a block places the last byte in the preceding block.
func EndBlock(end bgzf.Offset) int64 {
	if end.Block == 0 && end.File > 0 {
		return end.File - 1
	}
	return end.File
}

// mergeWhen folds each chunk into its left neighbour when join reports
// that the pair should be merged.
func mergeWhen(chunks []bgzf.Chunk, join func(left, right bgzf.Chunk) bool) []bgzf.Chunk {
	if len(chunks) == 0 {
		return nil
	}
	for c := 1; c < len(chunks); c++ {
		leftChunk := chunks[c-1]
		rightChunk := &chunks[c]
		if join(leftChunk, *rightChunk) {
			rightChunk.Begin = leftChunk.Begin
			if vOffset(leftChunk.End) > vOffset(rightChunk.End) {
				rightChunk.End = leftChunk.End
			}
			chunks = append(chunks[:c-1], chunks[c:]...)
			c--
		}
	}
	return chunks
}

func squash(chunks []bgzf.Chunk) []bgzf.Chunk {
	if len(chunks) == 0 {
		return nil
	}
	left := chunks[0].Begin
	right := chunks[0].End
	for _, c := range chunks[1:] {
		if vOffset(c.End) > vOffset(right) {
			right = c.End
		}
	}
	return []bgzf.Chunk{{Begin: left, End: right}}
}

func vOffset(o bgzf.Offset) uint64 { return o.Virtual() }

type byOffsets []bgzf.Chunk

func (c byOffsets) Len() int           { return len(c) }
func (c byOffsets) Less(i, j int) bool { return c[i].Less(c[j]) }
func (c byOffsets) Swap(i, j int)      { c[i], c[j] = c[j], c[i] }
