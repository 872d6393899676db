// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bgzf

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const (
	gzipID1     = 0x1f
	gzipID2     = 0x8b
	gzipDeflate = 0x08
	gzipFExtra  = 0x04

	// bgzfXLen is the length of the gzip extra field of a
	// BGZF member, a single BC subfield holding BSIZE.
	bgzfXLen = 6

	// minBlockSize is the smallest member that can hold
	// a header and a footer.
	minBlockSize = HeaderLen + FooterLen
)

// BlockInfo describes the position and size of a single BGZF block.
type BlockInfo struct {
	// Offset is the file offset of the first byte
	// of the block's gzip member.
	Offset int64

	// CompressedSize is the total size of the gzip
	// member, BSIZE+1.
	CompressedSize int

	// UncompressedSize is the length of the block's
	// decompressed payload, ISIZE.
	UncompressedSize int
}

// Next returns the file offset of the block following b.
func (b BlockInfo) Next() int64 { return b.Offset + int64(b.CompressedSize) }

// Contains returns whether the virtual offset o addresses data
// in the block b.
func (b BlockInfo) Contains(o Offset) bool {
	return o.File == b.Offset && int(o.Block) < b.UncompressedSize
}

// BlockAt reads and validates the BGZF block header at the file offset off
// in r, returning the block's compressed and uncompressed sizes.
//
// Header fields that do not match the BGZF format result in an error
// wrapping ErrBadBlockHeader, a BSIZE or ISIZE outside the legal block range
// in an error wrapping ErrBlockSize and a header or footer that cannot be
// read in full in an error wrapping ErrTruncatedBlock. Other errors are
// returned from r with context.
func BlockAt(r io.ReaderAt, off int64) (BlockInfo, error) {
	var h [HeaderLen]byte
	err := readFullAt(r, h[:], off)
	if err != nil {
		return BlockInfo{}, errors.WithMessagef(err, "bgzf: reading block header at %d", off)
	}

	if h[0] != gzipID1 || h[1] != gzipID2 {
		return BlockInfo{}, errors.Wrapf(ErrBadBlockHeader, "magic %#02x %#02x at %d", h[0], h[1], off)
	}
	if h[2] != gzipDeflate {
		return BlockInfo{}, errors.Wrapf(ErrBadBlockHeader, "compression method %d at %d", h[2], off)
	}
	if h[3] != gzipFExtra {
		return BlockInfo{}, errors.Wrapf(ErrBadBlockHeader, "flags %#02x at %d", h[3], off)
	}
	// MTIME, XFL and OS occupy h[4:10] and are ignored.
	if xlen := binary.LittleEndian.Uint16(h[10:12]); xlen != bgzfXLen {
		return BlockInfo{}, errors.Wrapf(ErrBadBlockHeader, "extra length %d at %d", xlen, off)
	}
	// The subfield identifier and length occupy h[12:16].
	size := int(binary.LittleEndian.Uint16(h[16:18])) + 1
	if size < minBlockSize || size > MaxBlockSize {
		return BlockInfo{}, errors.Wrapf(ErrBlockSize, "block size %d at %d", size, off)
	}

	var isize [4]byte
	err = readFullAt(r, isize[:], off+int64(size)-int64(len(isize)))
	if err != nil {
		return BlockInfo{}, errors.WithMessagef(err, "bgzf: reading block footer at %d", off)
	}
	n := binary.LittleEndian.Uint32(isize[:])
	if n > MaxBlockSize {
		return BlockInfo{}, errors.Wrapf(ErrBlockSize, "uncompressed size %d at %d", n, off)
	}

	return BlockInfo{
		Offset:           off,
		CompressedSize:   size,
		UncompressedSize: int(n),
	}, nil
}

// readFullAt fills b from r at off. A short read caused by the end of
// the data is reported as ErrTruncatedBlock.
func readFullAt(r io.ReaderAt, b []byte, off int64) error {
	n, err := r.ReadAt(b, off)
	if n == len(b) {
		return nil
	}
	if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
		return errors.Wrapf(ErrTruncatedBlock, "read %d of %d bytes", n, len(b))
	}
	return err
}

// IsEOF returns whether the file offset off in r is at the logical end of
// the BGZF data; either no bytes remain or exactly the length of the magic
// EOF block remains. The ReaderAt must provide some method for determining
// valid ReadAt offsets, as for HasEOF.
func IsEOF(r io.ReaderAt, off int64) (bool, error) {
	size, err := sizeOf(r)
	if err != nil {
		return false, err
	}
	return isEOF(size, off)
}

func isEOF(size, off int64) (bool, error) {
	if off < 0 || off > size {
		return false, errors.Errorf("bgzf: offset %d outside data of length %d", off, size)
	}
	rem := size - off
	return rem == 0 || rem == int64(len(MagicBlock)), nil
}

// Scanner walks the BGZF blocks of a file in order without the aid of an
// index.
type Scanner struct {
	r    io.ReaderAt
	size int64

	off   int64
	block BlockInfo

	done bool
	err  error
}

// NewScanner returns a Scanner reading blocks from the start of r. The
// ReaderAt must provide some method for determining valid ReadAt offsets,
// as for HasEOF.
func NewScanner(r io.ReaderAt) (*Scanner, error) {
	size, err := sizeOf(r)
	if err != nil {
		return nil, err
	}
	return &Scanner{r: r, size: size}, nil
}

// Next advances the Scanner to the next block. It returns false when the
// end of the data is reached or an error occurs.
func (s *Scanner) Next() bool {
	if s.done || s.err != nil {
		return false
	}
	eof, err := isEOF(s.size, s.off)
	if err != nil {
		s.err = err
		return false
	}
	if eof {
		s.done = true
		return false
	}
	b, err := BlockAt(s.r, s.off)
	if err != nil {
		s.err = err
		return false
	}
	if b.Next() > s.size {
		s.err = errors.Wrapf(ErrTruncatedBlock, "block at %d extends past end of data", b.Offset)
		return false
	}
	s.block = b
	s.off = b.Next()
	return true
}

// Block returns the most recent block found by a call to Next.
func (s *Scanner) Block() BlockInfo { return s.block }

// Err returns the first error encountered by the Scanner.
func (s *Scanner) Err() error { return s.err }
