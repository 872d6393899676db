// Copyright ©2014 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bai

import (
	"bufio"
	"encoding/binary"
	"io"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/exp/mmap"

	"github.com/biogo/htsindex/bgzf"
)

const (
	refHeaderSize = 4 + 4
	binHeaderSize = 4 + 4
	chunkSize     = 8 + 8
	offsetSize    = 8
)

// Load reads the BAI index at path. The file is mapped into memory for
// the duration of the read and released before Load returns, so the
// returned Index holds no reference to the file.
func Load(path string) (*Index, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "bai: open index")
	}
	idx, err := readIndex(io.NewSectionReader(m, 0, int64(m.Len())), int64(m.Len()))
	cerr := m.Close()
	if err != nil {
		return nil, err
	}
	if cerr != nil {
		return nil, errors.Wrap(cerr, "bai: close index")
	}
	return idx, nil
}

// ReadIndex reads the BAI Index from the given io.Reader.
func ReadIndex(r io.Reader) (*Index, error) {
	return readIndex(r, -1)
}

func readIndex(r io.Reader, size int64) (*Index, error) {
	d := &decoder{r: bufio.NewReader(r), size: size}

	magic, err := d.read(len(Magic), "magic")
	if err != nil {
		return nil, err
	}
	if string(magic) != Magic {
		return nil, errors.Wrapf(ErrBadMagic, "got %q", magic)
	}

	n, err := d.count("reference count", refHeaderSize)
	if err != nil {
		return nil, err
	}
	var idx Index
	if n != 0 {
		idx.refs = make([]refIndex, 0, d.capFor(n))
	}
	for i := 0; i < n; i++ {
		var ref refIndex
		err = d.readReference(&ref, i)
		if err != nil {
			return nil, err
		}
		idx.refs = append(idx.refs, ref)
	}

	nUnmapped, ok, err := d.optionalUint64("unplaced read count")
	if err != nil {
		return nil, err
	}
	if ok {
		idx.unmapped = &nUnmapped
	}
	return &idx, nil
}

// decoder reads little-endian BAI fields, tracking the offset of the
// next field for error reporting.
type decoder struct {
	r    io.Reader
	off  int64
	size int64 // Total input length or -1 if unknown.
	buf  [8]byte
}

func (d *decoder) read(n int, what string) ([]byte, error) {
	b := d.buf[:n]
	_, err := io.ReadFull(d.r, b)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, errors.Wrapf(ErrTruncated, "reading %s at offset %d", what, d.off)
		}
		return nil, errors.WithMessagef(err, "bai: reading %s at offset %d", what, d.off)
	}
	d.off += int64(n)
	return b, nil
}

func (d *decoder) int32(what string) (int32, error) {
	b, err := d.read(4, what)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (d *decoder) uint32(what string) (uint32, error) {
	b, err := d.read(4, what)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *decoder) uint64(what string) (uint64, error) {
	b, err := d.read(8, what)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (d *decoder) offset(what string) (bgzf.Offset, error) {
	v, err := d.uint64(what)
	if err != nil {
		return bgzf.Offset{}, err
	}
	return bgzf.MakeOffset(v), nil
}

// count reads an element count. Negative counts are malformed, and when
// the input length is known a count whose elements, each at least min
// bytes long, cannot fit in the remaining input is truncated.
func (d *decoder) count(what string, min int64) (int, error) {
	at := d.off
	n, err := d.int32(what)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.Wrapf(ErrMalformed, "negative %s %d at offset %d", what, n, at)
	}
	if d.size >= 0 && int64(n)*min > d.size-d.off {
		return 0, errors.Wrapf(ErrTruncated, "%s %d at offset %d exceeds remaining %d bytes", what, n, at, d.size-d.off)
	}
	return int(n), nil
}

// capFor returns the capacity to allocate for n elements. Counts read
// from input of unknown length are not trusted for allocation.
func (d *decoder) capFor(n int) int {
	const maxUnchecked = 1 << 10
	if d.size < 0 && n > maxUnchecked {
		return maxUnchecked
	}
	return n
}

// optionalUint64 reads a trailing uint64 that may be absent. A partial
// value is an error.
func (d *decoder) optionalUint64(what string) (v uint64, ok bool, err error) {
	b := d.buf[:8]
	n, err := io.ReadFull(d.r, b)
	switch {
	case err == io.EOF:
		return 0, false, nil
	case err == io.ErrUnexpectedEOF:
		return 0, false, errors.Wrapf(ErrTruncated, "reading %s at offset %d: got %d bytes", what, d.off, n)
	case err != nil:
		return 0, false, errors.WithMessagef(err, "bai: reading %s at offset %d", what, d.off)
	}
	d.off += 8
	return binary.LittleEndian.Uint64(b), true, nil
}

func (d *decoder) readReference(ref *refIndex, id int) error {
	n, err := d.count("bin count", binHeaderSize)
	if err != nil {
		return errors.WithMessagef(err, "reference %d", id)
	}
	if n != 0 {
		ref.bins = make([]bin, 0, d.capFor(n))
	}
	for i := 0; i < n; i++ {
		number, err := d.uint32("bin number")
		if err != nil {
			return errors.WithMessagef(err, "reference %d", id)
		}
		nChunks, err := d.count("chunk count", chunkSize)
		if err != nil {
			return errors.WithMessagef(err, "reference %d bin %d", id, number)
		}
		if number == StatsDummyBin {
			if nChunks == 2 {
				ref.stats, err = d.readStats()
			} else {
				// Not a statistics record; the chunks are not
				// part of the binning scheme.
				_, err = d.readChunks(nChunks)
			}
			if err != nil {
				return errors.WithMessagef(err, "reference %d", id)
			}
			continue
		}
		chunks, err := d.readChunks(nChunks)
		if err != nil {
			return errors.WithMessagef(err, "reference %d bin %d", id, number)
		}
		ref.bins = append(ref.bins, bin{bin: number, chunks: chunks})
	}
	if !sort.IsSorted(byBinNumber(ref.bins)) {
		sort.Stable(byBinNumber(ref.bins))
	}

	ref.intervals, err = d.readIntervals()
	if err != nil {
		return errors.WithMessagef(err, "reference %d", id)
	}
	return nil
}

func (d *decoder) readChunks(n int) ([]bgzf.Chunk, error) {
	if n == 0 {
		return nil, nil
	}
	var (
		c   bgzf.Chunk
		err error
	)
	chunks := make([]bgzf.Chunk, 0, d.capFor(n))
	for i := 0; i < n; i++ {
		c.Begin, err = d.offset("chunk begin virtual offset")
		if err != nil {
			return nil, err
		}
		c.End, err = d.offset("chunk end virtual offset")
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

func (d *decoder) readStats() (*ReferenceStats, error) {
	var (
		stats ReferenceStats
		err   error
	)
	stats.Chunk.Begin, err = d.offset("index stats chunk begin virtual offset")
	if err != nil {
		return nil, err
	}
	stats.Chunk.End, err = d.offset("index stats chunk end virtual offset")
	if err != nil {
		return nil, err
	}
	stats.Mapped, err = d.uint64("index stats mapped count")
	if err != nil {
		return nil, err
	}
	stats.Unmapped, err = d.uint64("index stats unmapped count")
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (d *decoder) readIntervals() ([]bgzf.Offset, error) {
	n, err := d.count("interval count", offsetSize)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	offsets := make([]bgzf.Offset, 0, d.capFor(n))
	for i := 0; i < n; i++ {
		o, err := d.offset("tile interval virtual offset")
		if err != nil {
			return nil, err
		}
		offsets = append(offsets, o)
	}
	return offsets, nil
}

type byBinNumber []bin

func (b byBinNumber) Len() int           { return len(b) }
func (b byBinNumber) Less(i, j int) bool { return b[i].bin < b[j].bin }
func (b byBinNumber) Swap(i, j int)      { b[i], b[j] = b[j], b[i] }
