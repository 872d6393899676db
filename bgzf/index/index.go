// Copyright ©2015 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package index provides chunk handling common to BGZF indexes: merging
// and pruning candidate chunks and translating them into byte ranges of
// the compressed file.
package index

import (
	"fmt"
	"io"
	"sort"

	"github.com/biogo/htsindex/bgzf"
	"github.com/biogo/htsindex/bgzf/cache"
)

// Extent is a half-open range of compressed file offsets.
type Extent struct {
	Begin, End int64
}

// Len returns the number of bytes spanned by e.
func (e Extent) Len() int64 { return e.End - e.Begin }

func (e Extent) String() string { return fmt.Sprintf("[%d,%d)", e.Begin, e.End) }

// Extents returns the sorted, merged ranges of compressed bytes in r that
// must be read to decompress the data described by chunks. A chunk whose
// end lies inside a block extends to the end of that block, and the block
// headers at each non-empty chunk's begin and end are validated with
// bgzf.BlockAt.
//
// Empty chunks contribute no extent. A chunk with End before Begin is
// treated as empty at Begin.
func Extents(r io.ReaderAt, chunks []bgzf.Chunk) ([]Extent, error) {
	return CachedExtents(r, chunks, make(cache.Map))
}

// CachedExtents is like Extents but looks up block headers in blocks
// before reading them from r. The cache must be safe for concurrent use
// if it is shared between goroutines.
func CachedExtents(r io.ReaderAt, chunks []bgzf.Chunk, blocks bgzf.Cache) ([]Extent, error) {
	blockAt := func(off int64) (bgzf.BlockInfo, error) {
		return bgzf.CachedBlockAt(r, off, blocks)
	}

	var extents []Extent
	for _, c := range chunks {
		if c.End.Compare(c.Begin) <= 0 {
			continue
		}
		if _, err := blockAt(c.Begin.File); err != nil {
			return nil, err
		}
		end := c.End.File
		if c.End.Block != 0 {
			b, err := blockAt(c.End.File)
			if err != nil {
				return nil, err
			}
			end = b.Next()
		}
		extents = append(extents, Extent{Begin: c.Begin.File, End: end})
	}
	if len(extents) == 0 {
		return nil, nil
	}

	sort.Slice(extents, func(i, j int) bool { return extents[i].Begin < extents[j].Begin })
	merged := extents[:1]
	for _, e := range extents[1:] {
		last := &merged[len(merged)-1]
		if e.Begin <= last.End {
			if e.End > last.End {
				last.End = e.End
			}
			continue
		}
		merged = append(merged, e)
	}
	return merged, nil
}
