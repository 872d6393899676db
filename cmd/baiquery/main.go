// Copyright ©2015 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// baiquery prints the BGZF chunks of a BAM file that may hold records in
// the given regions, using the file's BAI index.
//
// Regions are given as ref, ref:start or ref:start-end where ref is the
// index of the reference and positions are 1-based and inclusive.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/pkg/profile"
	"golang.org/x/exp/mmap"
	"golang.org/x/sync/errgroup"

	"github.com/biogo/htsindex/bai"
	"github.com/biogo/htsindex/bgzf"
	"github.com/biogo/htsindex/bgzf/cache"
	"github.com/biogo/htsindex/bgzf/index"
)

var (
	indexPath  = flag.String("index", "", "BAI index file (required)")
	dataPath   = flag.String("data", "", "BAM file described by the index, enables byte extents")
	conc       = flag.Int("conc", 4, "number of concurrent region queries")
	blocks     = flag.Bool("blocks", false, "list the BGZF blocks of -data and exit")
	merge      = flag.String("merge", "none", "additional chunk merging: none, adjacent, squash or compress:<bytes>")
	cpuprofile = flag.String("cpuprofile", "", "write a CPU profile to this directory")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s -index file.bai [options] region...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	os.Exit(mainExit())
}

// mainExit runs the query and returns the process exit code. Deferred
// work, including stopping the profiler, completes before it returns.
func mainExit() int {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)

	if *cpuprofile != "" {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(*cpuprofile), profile.Quiet).Stop()
	}

	err := run(logger, os.Stdout, flag.Args())
	if err != nil {
		level.Error(logger).Log("msg", "query failed", "format", bai.IsFormatError(err), "err", err)
		return 1
	}
	return 0
}

func run(logger log.Logger, stdout io.Writer, args []string) error {
	var data *mmap.ReaderAt
	if *dataPath != "" {
		var err error
		data, err = mmap.Open(*dataPath)
		if err != nil {
			return errors.Wrap(err, "open data")
		}
		defer data.Close()
		ok, err := bgzf.HasEOF(data)
		if err != nil {
			return err
		}
		if !ok {
			level.Warn(logger).Log("msg", "data has no BGZF end of file marker", "path", *dataPath)
		}
	}

	out := bufio.NewWriter(stdout)
	defer out.Flush()

	if *blocks {
		if data == nil {
			return errors.New("-blocks requires -data")
		}
		return listBlocks(out, data)
	}

	if *indexPath == "" {
		flag.Usage()
		return errors.New("no index")
	}
	strategy, err := parseStrategy(*merge)
	if err != nil {
		return err
	}
	regions := make([]bai.Region, len(args))
	for i, arg := range args {
		regions[i], err = bai.ParseRegion(arg)
		if err != nil {
			return err
		}
	}

	idx, err := bai.Load(*indexPath)
	if err != nil {
		return err
	}
	level.Info(logger).Log("msg", "loaded index", "path", *indexPath, "refs", idx.NumRefs())

	var r io.ReaderAt
	if data != nil {
		r = data
	}
	results, err := queryAll(idx, r, regions, strategy, *conc)
	if err != nil {
		return err
	}
	for _, res := range results {
		printResult(out, res)
	}
	return nil
}

// parseStrategy returns the merge strategy applied to optimized chunks.
func parseStrategy(s string) (index.MergeStrategy, error) {
	switch s {
	case "", "none":
		return index.Identity, nil
	case "adjacent":
		return index.Adjacent, nil
	case "squash":
		return index.Squash, nil
	}
	if near, ok := strings.CutPrefix(s, "compress:"); ok {
		n, err := strconv.ParseInt(near, 10, 64)
		if err != nil || n < 0 {
			return nil, errors.Errorf("invalid compress distance %q", near)
		}
		return index.CompressorStrategy(n), nil
	}
	return nil, errors.Errorf("unknown merge strategy %q", s)
}

// blockCacheSize is the number of block headers shared between
// concurrent extent queries.
const blockCacheSize = 1 << 12

type result struct {
	region  bai.Region
	chunks  []bgzf.Chunk
	extents []index.Extent
}

// queryAll queries each region against the shared index with at most
// conc queries in flight, returning results in region order.
func queryAll(idx *bai.Index, data io.ReaderAt, regions []bai.Region, strategy index.MergeStrategy, conc int) ([]result, error) {
	results := make([]result, len(regions))
	headers := cache.NewLRU(blockCacheSize)
	var g errgroup.Group
	if conc > 0 {
		g.SetLimit(conc)
	}
	for i, reg := range regions {
		i, reg := i, reg
		g.Go(func() error {
			chunks := strategy(idx.RegionChunks(reg))
			res := result{region: reg, chunks: chunks}
			if data != nil {
				var err error
				res.extents, err = index.CachedExtents(data, chunks, headers)
				if err != nil {
					return errors.WithMessagef(err, "region %v", reg)
				}
			}
			results[i] = res
			return nil
		})
	}
	return results, g.Wait()
}

func printResult(w io.Writer, res result) {
	if len(res.chunks) == 0 {
		fmt.Fprintf(w, "%v\tno chunks\n", res.region)
		return
	}
	for _, c := range res.chunks {
		fmt.Fprintf(w, "%v\tchunk\t%v\t%#x\t%#x\n", res.region, c, c.Begin.Virtual(), c.End.Virtual())
	}
	var total int64
	for _, e := range res.extents {
		fmt.Fprintf(w, "%v\textent\t%v\t%d\n", res.region, e, e.Len())
		total += e.Len()
	}
	if res.extents != nil {
		fmt.Fprintf(w, "%v\tbytes\t%d\n", res.region, total)
	}
}

func listBlocks(w io.Writer, r io.ReaderAt) error {
	s, err := bgzf.NewScanner(r)
	if err != nil {
		return err
	}
	var n int
	for s.Next() {
		b := s.Block()
		fmt.Fprintf(w, "%d\t%d\t%d\n", b.Offset, b.CompressedSize, b.UncompressedSize)
		n++
	}
	if err := s.Err(); err != nil {
		return errors.WithMessagef(err, "after %d blocks", n)
	}
	return nil
}
