// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bgzf provides the BGZF virtual offset and chunk types and a
// reader for BGZF block boundaries.
//
// The package does not decompress block payloads. It locates blocks and
// validates their headers so that callers can translate virtual offsets
// into reads against the compressed container.
package bgzf

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

// MaxBlockSize is the maximum size of a BGZF member and of its
// uncompressed payload.
const MaxBlockSize = 0x10000

const (
	// HeaderLen is the length of the fixed BGZF member header
	// up to and including the BSIZE field.
	HeaderLen = 18

	// FooterLen is the length of the gzip member footer holding
	// the CRC32 and ISIZE fields.
	FooterLen = 8
)

// MagicBlock is the BGZF empty block that marks the end of data.
const MagicBlock = "\x1f\x8b\x08\x04\x00\x00\x00\x00\x00\xff\x06\x00\x42\x43\x02\x00\x1b\x00\x03\x00\x00\x00\x00\x00\x00\x00\x00\x00"

var (
	ErrBadBlockHeader = errors.New("bgzf: invalid block header")
	ErrBlockSize      = errors.New("bgzf: block size out of range")
	ErrTruncatedBlock = errors.New("bgzf: truncated block")
	ErrNoEnd          = errors.New("bgzf: cannot determine offset from end")
	ErrWrongFileType  = errors.New("bgzf: file is a directory")
)

// Offset is a BGZF virtual file offset.
type Offset struct {
	File  int64
	Block uint16
}

// MakeOffset returns the Offset encoded in the packed virtual
// offset v.
func MakeOffset(v uint64) Offset {
	return Offset{
		File:  int64(v >> 16),
		Block: uint16(v),
	}
}

// Virtual returns the packed virtual offset of o, the compressed
// block offset in the upper 48 bits and the offset into the
// decompressed block in the lower 16 bits.
func (o Offset) Virtual() uint64 {
	return uint64(o.File)<<16 | uint64(o.Block)
}

// IsZero returns whether o is the zero offset.
func (o Offset) IsZero() bool { return o == Offset{} }

// Compare returns -1, 0 or 1 depending on whether o is before,
// equal to or after p in virtual offset order.
func (o Offset) Compare(p Offset) int {
	a, b := o.Virtual(), p.Virtual()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (o Offset) String() string {
	return fmt.Sprintf("%d:%d", o.File, o.Block)
}

// Chunk is a region of a BGZF file, half-open at End.
type Chunk struct {
	Begin Offset
	End   Offset
}

// Compare returns -1, 0 or 1 ordering c and d by Begin and then
// by End.
func (c Chunk) Compare(d Chunk) int {
	if r := c.Begin.Compare(d.Begin); r != 0 {
		return r
	}
	return c.End.Compare(d.End)
}

// Less returns whether c sorts before d.
func (c Chunk) Less(d Chunk) bool { return c.Compare(d) < 0 }

func (c Chunk) String() string {
	return fmt.Sprintf("[%v,%v)", c.Begin, c.End)
}

// HasEOF checks for the presence of a BGZF magic EOF block.
// The magic block is defined in the SAM specification. The ReaderAt
// must provide some method for determining valid ReadAt offsets.
func HasEOF(r io.ReaderAt) (bool, error) {
	size, err := sizeOf(r)
	if err != nil {
		return false, err
	}
	if size < int64(len(MagicBlock)) {
		return false, nil
	}

	b := make([]byte, len(MagicBlock))
	_, err = r.ReadAt(b, size-int64(len(MagicBlock)))
	if err != nil && err != io.EOF {
		return false, err
	}
	return bytes.Equal(b, []byte(MagicBlock)), nil
}

// sizeOf returns the number of bytes addressable by r.
func sizeOf(r io.ReaderAt) (int64, error) {
	type sizer interface {
		Size() int64
	}
	type stater interface {
		Stat() (os.FileInfo, error)
	}
	type lener interface {
		Len() int
	}
	switch r := r.(type) {
	case sizer:
		return r.Size(), nil
	case stater:
		fi, err := r.Stat()
		if err != nil {
			return 0, err
		}
		if fi.IsDir() {
			return 0, ErrWrongFileType
		}
		return fi.Size(), nil
	case lener:
		return int64(r.Len()), nil
	}
	return 0, ErrNoEnd
}
