// Copyright ©2014 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bai implements reading and querying of BAM indexes.
//
// An Index is read once with Load or ReadIndex and is not modified after
// that, so a single Index may be queried by any number of goroutines
// without synchronisation.
//
// Queries return the BGZF chunks of the indexed BAM file that may hold
// records overlapping a genomic interval. The chunks are a superset of the
// true overlaps; callers must filter decoded records by their coordinates.
package bai

import (
	"github.com/pkg/errors"

	"github.com/biogo/htsindex/bgzf"
)

// Magic is the BAI file magic number.
const Magic = "BAI\x01"

const (
	// TileWidth is the length of the interval tiling used
	// by the linear index.
	TileWidth = 1 << TileShift

	// TileShift is the shift converting a 0-based position
	// to its linear index tile.
	TileShift = 14

	// MaxBins is the number of bin numbers available in
	// the binning scheme. The statistics pseudo-bin takes
	// the number MaxBins.
	MaxBins = 37450

	// StatsDummyBin is the bin number of the reference
	// statistics bin.
	StatsDummyBin = MaxBins

	// MaxPos is the largest 0-based position addressable by
	// the binning scheme.
	MaxPos = 1<<indexWordBits - 1
)

var (
	ErrBadMagic  = errors.New("bai: magic number mismatch")
	ErrTruncated = errors.New("bai: truncated index")
	ErrMalformed = errors.New("bai: malformed index")
	ErrBadBin    = errors.New("bai: invalid bin number")
)

// IsFormatError returns whether err was caused by malformed index or BGZF
// data rather than by a failure of the underlying storage.
func IsFormatError(err error) bool {
	for _, target := range []error{
		ErrBadMagic,
		ErrTruncated,
		ErrMalformed,
		bgzf.ErrBadBlockHeader,
		bgzf.ErrBlockSize,
		bgzf.ErrTruncatedBlock,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Index is a BAI index.
type Index struct {
	refs     []refIndex
	unmapped *uint64
}

type refIndex struct {
	// bins is sorted by bin number. Bins with the same
	// number are held in file order.
	bins      []bin
	stats     *ReferenceStats
	intervals []bgzf.Offset
}

type bin struct {
	bin    uint32
	chunks []bgzf.Chunk
}

// ReferenceStats holds mapping statistics for a BAM reference.
type ReferenceStats struct {
	// Chunk is the span of the BAM holding alignments
	// to the reference.
	Chunk bgzf.Chunk

	// Mapped is the count of mapped reads.
	Mapped uint64

	// Unmapped is the count of unmapped reads.
	Unmapped uint64
}

// LinearIndex is the linear index of a single reference. Offsets[i] is the
// lowest virtual offset of any record overlapping the 0-based tile
// [i*TileWidth, (i+1)*TileWidth).
type LinearIndex struct {
	Ref     int
	Offsets []bgzf.Offset
}

// Tile returns the linear index tile holding the 1-based position pos.
// Positions less than one are placed in the first tile.
func Tile(pos int) int {
	if pos <= 1 {
		return 0
	}
	return (pos - 1) >> TileShift
}

// MinimumOffset returns the lowest virtual offset at which a record
// overlapping the 1-based position pos may begin. If pos lies beyond the
// tiled region the zero offset is returned.
func (l LinearIndex) MinimumOffset(pos int) bgzf.Offset {
	t := Tile(pos)
	if t >= len(l.Offsets) {
		return bgzf.Offset{}
	}
	return l.Offsets[t]
}

// NumRefs returns the number of references in the index.
func (i *Index) NumRefs() int {
	return len(i.refs)
}

// ReferenceStats returns the index statistics for the given reference and true
// if the statistics are valid.
func (i *Index) ReferenceStats(id int) (stats ReferenceStats, ok bool) {
	if id < 0 || id >= len(i.refs) {
		return ReferenceStats{}, false
	}
	s := i.refs[id].stats
	if s == nil {
		return ReferenceStats{}, false
	}
	return *s, true
}

// Unmapped returns the number of unplaced reads and true if the count is valid.
func (i *Index) Unmapped() (n uint64, ok bool) {
	if i.unmapped == nil {
		return 0, false
	}
	return *i.unmapped, true
}

// LinearIndex returns a copy of the linear index for the given reference
// and true if the reference is in the index.
func (i *Index) LinearIndex(id int) (LinearIndex, bool) {
	if id < 0 || id >= len(i.refs) {
		return LinearIndex{}, false
	}
	intvs := i.refs[id].intervals
	return LinearIndex{
		Ref:     id,
		Offsets: append([]bgzf.Offset(nil), intvs...),
	}, true
}

// StartOfLastLinearBin returns the final linear index offset of the last
// reference that has a linear index, and true if any reference has one.
func (i *Index) StartOfLastLinearBin() (bgzf.Offset, bool) {
	for id := len(i.refs) - 1; id >= 0; id-- {
		intvs := i.refs[id].intervals
		if len(intvs) != 0 {
			return intvs[len(intvs)-1], true
		}
	}
	return bgzf.Offset{}, false
}

// Bins returns the bins held by the index for the given reference in
// ascending order. Bins that appear more than once in the index file are
// reported once.
func (i *Index) Bins(id int) []Bin {
	if id < 0 || id >= len(i.refs) {
		return nil
	}
	var bins []Bin
	for _, b := range i.refs[id].bins {
		if n := len(bins); n != 0 && bins[n-1].Number == b.bin {
			continue
		}
		bins = append(bins, Bin{Ref: id, Number: b.bin})
	}
	return bins
}
