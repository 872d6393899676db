// Copyright ©2014 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bai

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/biogo/htsindex/bgzf"
)

// ErrBadRegion is returned by ParseRegion for text that is not a region.
var ErrBadRegion = errors.New("bai: invalid region")

// Region is a 1-based, closed interval on the reference with index Ref.
// A Start less than one denotes the start of the reference and an End
// less than one denotes its end.
type Region struct {
	Ref   int
	Start int
	End   int
}

// ParseRegion parses a region of the form "ref", "ref:start" or
// "ref:start-end" where ref is a reference index. Positions are 1-based
// and inclusive and may contain comma digit separators. A region with no
// end extends to the end of the reference.
func ParseRegion(s string) (Region, error) {
	var r Region
	ref, span, hasSpan := strings.Cut(s, ":")
	var err error
	r.Ref, err = strconv.Atoi(ref)
	if err != nil || r.Ref < 0 {
		return Region{}, errors.Wrapf(ErrBadRegion, "reference in %q", s)
	}
	if !hasSpan {
		return r, nil
	}

	start, end, hasEnd := strings.Cut(span, "-")
	r.Start, err = parsePos(start)
	if err != nil || r.Start < 1 {
		return Region{}, errors.Wrapf(ErrBadRegion, "start in %q", s)
	}
	if !hasEnd {
		return r, nil
	}
	r.End, err = parsePos(end)
	if err != nil || r.End < r.Start {
		return Region{}, errors.Wrapf(ErrBadRegion, "end in %q", s)
	}
	return r, nil
}

func parsePos(s string) (int, error) {
	return strconv.Atoi(strings.ReplaceAll(s, ",", ""))
}

func (r Region) String() string {
	switch {
	case r.Start < 1 && r.End < 1:
		return strconv.Itoa(r.Ref)
	case r.End < 1:
		return fmt.Sprintf("%d:%d", r.Ref, r.Start)
	case r.Start < 1:
		return fmt.Sprintf("%d:1-%d", r.Ref, r.End)
	}
	return fmt.Sprintf("%d:%d-%d", r.Ref, r.Start, r.End)
}

// RegionChunks returns the chunks for the region r as returned by Chunks.
func (i *Index) RegionChunks(r Region) []bgzf.Chunk {
	return i.Chunks(r.Ref, r.Start, r.End)
}
