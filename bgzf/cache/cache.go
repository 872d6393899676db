// Copyright ©2015 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cache provides basic block header cache types for the bgzf package.
package cache

import (
	"sync"

	"github.com/biogo/htsindex/bgzf"
)

var (
	_ Cache = (*LRU)(nil)
	_ Cache = Map(nil)
)

// Cache is an extension of bgzf.Cache that allows inspection
// and manipulation of the cache.
type Cache interface {
	bgzf.Cache

	// Len returns the number of elements held by
	// the cache.
	Len() int

	// Cap returns the maximum number of elements
	// that can be held by the cache.
	Cap() int

	// Resize changes the capacity of the cache to n,
	// dropping excess blocks if n is less than the
	// number of cached blocks.
	Resize(n int)

	// Drop evicts n elements from the cache according
	// to the cache eviction policy.
	Drop(n int)
}

func insertAfter(pos, n *node) {
	n.prev = pos
	pos.next, n.next, pos.next.prev = n, pos.next, n
}

func remove(n *node, table map[int64]*node) {
	delete(table, n.b.Offset)
	n.prev.next = n.next
	n.next.prev = n.prev
	n.next = nil
	n.prev = nil
}

// NewLRU returns an LRU cache with n slots. If n is less than 1
// a nil cache is returned.
func NewLRU(n int) *LRU {
	if n < 1 {
		return nil
	}
	c := LRU{
		table: make(map[int64]*node, n),
		cap:   n,
	}
	c.root.next = &c.root
	c.root.prev = &c.root
	return &c
}

// LRU satisfies the Cache interface with least recently used eviction
// behavior. It is safe for concurrent use.
type LRU struct {
	mu    sync.Mutex
	root  node
	table map[int64]*node
	cap   int
}

type node struct {
	b bgzf.BlockInfo

	next, prev *node
}

// Len returns the number of elements held by the cache.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.table)
}

// Cap returns the maximum number of elements that can be held by the cache.
func (c *LRU) Cap() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cap
}

// Resize changes the capacity of the cache to n, dropping excess blocks
// if n is less than the number of cached blocks. A negative n is
// treated as zero.
func (c *LRU) Resize(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 0 {
		n = 0
	}
	if n < len(c.table) {
		c.drop(len(c.table) - n)
	}
	c.cap = n
}

// Drop evicts n elements from the cache according to the cache eviction policy.
func (c *LRU) Drop(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drop(n)
}

func (c *LRU) drop(n int) {
	for ; n > 0 && len(c.table) > 0; n-- {
		remove(c.root.prev, c.table)
	}
}

// Get returns the BlockInfo in the Cache for the block at off and whether
// it was found. A found block becomes the most recently used.
func (c *LRU) Get(off int64) (bgzf.BlockInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.table[off]
	if !ok {
		return bgzf.BlockInfo{}, false
	}
	if c.root.next != n {
		n.prev.next = n.next
		n.next.prev = n.prev
		insertAfter(&c.root, n)
	}
	return n.b, true
}

// Put inserts a BlockInfo into the Cache, evicting the least recently used
// block if the Cache is full. A zero capacity Cache holds nothing.
func (c *LRU) Put(b bgzf.BlockInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cap < 1 {
		return
	}
	if _, ok := c.table[b.Offset]; ok {
		return
	}
	if len(c.table) >= c.cap {
		c.drop(len(c.table) - c.cap + 1)
	}
	n := &node{b: b}
	c.table[b.Offset] = n
	insertAfter(&c.root, n)
}

// Map is an unbounded Cache for use by a single goroutine.
type Map map[int64]bgzf.BlockInfo

// Len returns the number of elements held by the cache.
func (c Map) Len() int { return len(c) }

// Cap returns the number of elements held by the cache.
func (c Map) Cap() int { return len(c) }

// Resize is a no-op for a Map.
func (c Map) Resize(int) {}

// Drop evicts n arbitrary elements from the cache.
func (c Map) Drop(n int) {
	for off := range c {
		if n <= 0 {
			return
		}
		delete(c, off)
		n--
	}
}

// Get returns the BlockInfo in the Cache for the block at off and whether
// it was found.
func (c Map) Get(off int64) (bgzf.BlockInfo, bool) {
	b, ok := c[off]
	return b, ok
}

// Put inserts a BlockInfo into the Cache.
func (c Map) Put(b bgzf.BlockInfo) { c[b.Offset] = b }
