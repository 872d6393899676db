// Copyright ©2014 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bai

import (
	"sort"

	"github.com/biogo/htsindex/bgzf"
	"github.com/biogo/htsindex/bgzf/index"
)

// Chunks returns the optimized chunks of the BAM that may hold records on
// the reference ref overlapping the 1-based, closed interval [beg, end].
// An end less than one extends the interval to the end of the reference.
// The returned chunks are sorted, pruned by the linear index and coalesced
// as described by index.Optimize. Chunks returns nil if ref is not in the
// index or no bin of the interval holds any chunks.
func (i *Index) Chunks(ref, beg, end int) []bgzf.Chunk {
	if ref < 0 || ref >= len(i.refs) {
		return nil
	}
	bins := RegionToBins(zeroBased(beg), zeroBasedEnd(end))
	if bins == nil {
		return nil
	}

	r := &i.refs[ref]
	var chunks []bgzf.Chunk
	for _, b := range r.bins {
		if bins.Has(b.bin) {
			chunks = append(chunks, b.chunks...)
		}
	}
	if len(chunks) == 0 {
		return nil
	}
	min := LinearIndex{Ref: ref, Offsets: r.intervals}.MinimumOffset(beg)
	return index.Optimize(chunks, min)
}

// BinsOverlapping returns the bins held by the index for ref that may
// hold records overlapping the 1-based, closed interval [beg, end]. An
// end less than one extends the interval to the end of the reference.
func (i *Index) BinsOverlapping(ref, beg, end int) []Bin {
	if ref < 0 || ref >= len(i.refs) {
		return nil
	}
	set := RegionToBins(zeroBased(beg), zeroBasedEnd(end))
	if set == nil {
		return nil
	}
	var bins []Bin
	for _, b := range i.Bins(ref) {
		if set.Has(b.Number) {
			bins = append(bins, b)
		}
	}
	return bins
}

// ContentsOfBin returns a copy of the chunks held by the index for the
// given bin in file order, or nil if the bin is not in the index.
func (i *Index) ContentsOfBin(b Bin) []bgzf.Chunk {
	if b.Ref < 0 || b.Ref >= len(i.refs) {
		return nil
	}
	bins := i.refs[b.Ref].bins
	var chunks []bgzf.Chunk
	for j := i.search(b.Ref, b.Number); j < len(bins) && bins[j].bin == b.Number; j++ {
		chunks = append(chunks, bins[j].chunks...)
	}
	return chunks
}

// SpanOverlapping returns the optimized chunks of b and all of its
// ancestor bins, which together hold every record that may overlap the
// region covered by b. SpanOverlapping returns nil if b is not a valid
// bin of a reference in the index or the bins hold no chunks.
func (i *Index) SpanOverlapping(b Bin) []bgzf.Chunk {
	if b.Ref < 0 || b.Ref >= len(i.refs) {
		return nil
	}
	level, err := LevelFor(b.Number)
	if err != nil {
		return nil
	}
	first, err := FirstLocus(b.Number)
	if err != nil {
		return nil
	}

	var chunks []bgzf.Chunk
	for l := level; l >= 0; l-- {
		chunks = append(chunks, i.ContentsOfBin(Bin{Ref: b.Ref, Number: binAt(l, first-1)})...)
	}
	if len(chunks) == 0 {
		return nil
	}
	min := LinearIndex{Ref: b.Ref, Offsets: i.refs[b.Ref].intervals}.MinimumOffset(first)
	return index.Optimize(chunks, min)
}

// search returns the index of the first bin of ref numbered at least n.
func (i *Index) search(ref int, n uint32) int {
	bins := i.refs[ref].bins
	return sort.Search(len(bins), func(j int) bool { return bins[j].bin >= n })
}

// zeroBased converts a 1-based start position to a 0-based position.
func zeroBased(pos int) int {
	if pos < 1 {
		return 0
	}
	return pos - 1
}

// zeroBasedEnd converts a 1-based closed end position to a 0-based closed
// end, mapping ends less than one to the open end of RegionToBins.
func zeroBasedEnd(pos int) int {
	if pos < 1 {
		return -1
	}
	return pos - 1
}
