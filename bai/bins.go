// Copyright ©2014 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bai

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/pkg/errors"
)

const (
	indexWordBits = 29
	nextBinShift  = 3

	// NumLevels is the number of levels in the binning scheme.
	NumLevels = 6
)

const (
	level0 = uint32(((1 << (iota * nextBinShift)) - 1) / 7)
	level1
	level2
	level3
	level4
	level5
	levelEnd
)

const (
	level0Shift = indexWordBits - (iota * nextBinShift)
	level1Shift
	level2Shift
	level3Shift
	level4Shift
	level5Shift
)

var (
	levelStarts = [NumLevels + 1]uint32{level0, level1, level2, level3, level4, level5, levelEnd}
	levelShifts = [NumLevels]uint{level0Shift, level1Shift, level2Shift, level3Shift, level4Shift, level5Shift}
)

// Bin is a bin of a reference in a BAI index.
type Bin struct {
	Ref    int
	Number uint32
}

// Compare returns -1, 0 or 1 depending on whether b sorts before, with or
// after o, ordering first by reference and then by bin number.
func (b Bin) Compare(o Bin) int {
	switch {
	case b.Ref < o.Ref:
		return -1
	case b.Ref > o.Ref:
		return 1
	case b.Number < o.Number:
		return -1
	case b.Number > o.Number:
		return 1
	}
	return 0
}

func (b Bin) String() string { return fmt.Sprintf("%d:%d", b.Ref, b.Number) }

// FirstBinInLevel returns the number of the first bin in the given level.
// It panics if level is not in [0, NumLevels).
func FirstBinInLevel(level int) uint32 {
	return levelStarts[level]
}

// LevelSize returns the number of bins in the given level. It panics if
// level is not in [0, NumLevels).
func LevelSize(level int) int {
	return int(levelStarts[level+1] - levelStarts[level])
}

// LevelFor returns the level holding the given bin number.
func LevelFor(bin uint32) (int, error) {
	if bin >= MaxBins {
		return 0, errors.Wrapf(ErrBadBin, "bin %d", bin)
	}
	for l := NumLevels - 1; l > 0; l-- {
		if bin >= levelStarts[l] {
			return l, nil
		}
	}
	return 0, nil
}

// binWidth returns the genomic length spanned by each bin of a level.
func binWidth(level int) int {
	return 1 << levelShifts[level]
}

// FirstLocus returns the 1-based first position covered by the given bin.
func FirstLocus(bin uint32) (int, error) {
	l, err := LevelFor(bin)
	if err != nil {
		return 0, err
	}
	return int(bin-levelStarts[l])*binWidth(l) + 1, nil
}

// LastLocus returns the 1-based last position covered by the given bin.
func LastLocus(bin uint32) (int, error) {
	l, err := LevelFor(bin)
	if err != nil {
		return 0, err
	}
	return int(bin-levelStarts[l]+1) * binWidth(l), nil
}

// MaxBinForLength returns the highest numbered bin that could hold records
// on a reference of the given length.
func MaxBinForLength(length int) uint32 {
	if length < 0 {
		length = 0
	}
	return level5 + uint32(length>>level5Shift)
}

// BinFor returns the bin number for given an interval covering
// [beg,end) (zero-based, half-close-half-open).
func BinFor(beg, end int) uint32 {
	end--
	switch {
	case beg>>level5Shift == end>>level5Shift:
		return level5 + uint32(beg>>level5Shift)
	case beg>>level4Shift == end>>level4Shift:
		return level4 + uint32(beg>>level4Shift)
	case beg>>level3Shift == end>>level3Shift:
		return level3 + uint32(beg>>level3Shift)
	case beg>>level2Shift == end>>level2Shift:
		return level2 + uint32(beg>>level2Shift)
	case beg>>level1Shift == end>>level1Shift:
		return level1 + uint32(beg>>level1Shift)
	}
	return level0
}

// BinSet is a set of bin numbers of a single reference.
type BinSet struct {
	bits *bitset.BitSet
}

func newBinSet() *BinSet {
	return &BinSet{bits: bitset.New(MaxBins)}
}

// Has returns whether the bin number n is in the set.
func (s *BinSet) Has(n uint32) bool {
	if s == nil {
		return false
	}
	return s.bits.Test(uint(n))
}

// Len returns the number of bins in the set.
func (s *BinSet) Len() int {
	if s == nil {
		return 0
	}
	return int(s.bits.Count())
}

// Bins returns the bin numbers in the set in ascending order.
func (s *BinSet) Bins() []uint32 {
	if s == nil {
		return nil
	}
	bins := make([]uint32, 0, s.bits.Count())
	for i, ok := s.bits.NextSet(0); ok; i, ok = s.bits.NextSet(i + 1) {
		bins = append(bins, uint32(i))
	}
	return bins
}

// RegionToBins returns the set of bins that may hold records overlapping
// the 0-based, closed interval [beg, end]. A negative end denotes the end
// of the addressable range. Positions are clamped to [0, MaxPos], and a nil
// set is returned if the clamped interval is empty.
func RegionToBins(beg, end int) *BinSet {
	if beg < 0 {
		beg = 0
	}
	if end < 0 || end > MaxPos {
		end = MaxPos
	}
	if beg > end {
		return nil
	}

	s := newBinSet()
	s.bits.Set(uint(level0))
	for l := 1; l < NumLevels; l++ {
		first := levelStarts[l] + uint32(beg>>levelShifts[l])
		last := levelStarts[l] + uint32(end>>levelShifts[l])
		for k := first; k <= last; k++ {
			s.bits.Set(uint(k))
		}
	}
	return s
}

// OverlappingBinsFor returns the bin numbers for all bins overlapping
// an interval covering [beg,end) (zero-based, half-close-half-open).
func OverlappingBinsFor(beg, end int) []uint32 {
	if end <= beg || end <= 0 {
		return nil
	}
	return RegionToBins(beg, end-1).Bins()
}

// binAt returns the number of the bin at the given level
// covering the 0-based position pos.
func binAt(level int, pos int) uint32 {
	return levelStarts[level] + uint32(pos>>levelShifts[level])
}
