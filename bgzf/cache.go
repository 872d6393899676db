// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bgzf

import "io"

// Cache is a BlockInfo caching type. Basic cache implementations are
// provided in the cache package.
type Cache interface {
	// Get returns the BlockInfo in the Cache for the block
	// at the file offset off and whether it was found.
	Get(off int64) (BlockInfo, bool)

	// Put inserts a BlockInfo into the Cache.
	Put(BlockInfo)
}

// CachedBlockAt returns the BlockInfo for the block at off in r, first
// consulting c and adding blocks read from r to it. If c is nil
// CachedBlockAt is equivalent to BlockAt.
func CachedBlockAt(r io.ReaderAt, off int64, c Cache) (BlockInfo, error) {
	if c == nil {
		return BlockAt(r, off)
	}
	if b, ok := c.Get(off); ok {
		return b, nil
	}
	b, err := BlockAt(r, off)
	if err != nil {
		return b, err
	}
	c.Put(b)
	return b, nil
}
