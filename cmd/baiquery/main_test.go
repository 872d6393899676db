// Copyright ©2015 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/biogo/htsindex/bai"
	"github.com/biogo/htsindex/bgzf"
	"github.com/biogo/htsindex/bgzf/index"
)

func TestParseStrategy(t *testing.T) {
	chunks := func() []bgzf.Chunk {
		return []bgzf.Chunk{
			{Begin: bgzf.Offset{File: 0}, End: bgzf.Offset{File: 10}},
			{Begin: bgzf.Offset{File: 100}, End: bgzf.Offset{File: 110}},
		}
	}
	for _, test := range []struct {
		name string
		want int
	}{
		{name: "", want: 2},
		{name: "none", want: 2},
		{name: "adjacent", want: 2},
		{name: "squash", want: 1},
		{name: "compress:10", want: 2},
		{name: "compress:90", want: 1},
	} {
		s, err := parseStrategy(test.name)
		require.NoError(t, err, test.name)
		require.Len(t, s(chunks()), test.want, test.name)
	}

	for _, bad := range []string{"merge", "compress:", "compress:-1", "compress:x"} {
		_, err := parseStrategy(bad)
		require.Error(t, err, bad)
	}
}

func TestQueryAll(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(bai.Magic)
	for _, v := range []interface{}{
		int32(1), // n_ref
		int32(1), // n_bin
		uint32(0), int32(1), uint64(0x10000), uint64(0x20000),
		int32(0), // n_intv
	} {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
	}
	idx, err := bai.ReadIndex(&buf)
	require.NoError(t, err)

	regions := []bai.Region{
		{Ref: 0, Start: 1, End: 10},
		{Ref: 1},
		{Ref: 0},
	}
	got, err := queryAll(idx, nil, regions, parseStrategyMust(t, "none"), 2)
	require.NoError(t, err)
	require.Len(t, got, len(regions))
	want := []bgzf.Chunk{{Begin: bgzf.Offset{File: 1}, End: bgzf.Offset{File: 2}}}
	require.Equal(t, want, got[0].chunks)
	require.Nil(t, got[1].chunks)
	require.Equal(t, want, got[2].chunks)
	for i, res := range got {
		require.Equal(t, regions[i], res.region)
		require.Nil(t, res.extents)
	}

	var out bytes.Buffer
	printResult(&out, got[1])
	require.Equal(t, "1\tno chunks\n", out.String())
}

func TestMainExitStopsProfile(t *testing.T) {
	dir := t.TempDir()
	defer func(prof, idx string) { *cpuprofile, *indexPath = prof, idx }(*cpuprofile, *indexPath)
	*cpuprofile = dir
	*indexPath = ""

	require.Equal(t, 1, mainExit())

	// The profile is only written out when profiling stops.
	fi, err := os.Stat(filepath.Join(dir, "cpu.pprof"))
	require.NoError(t, err)
	require.NotZero(t, fi.Size())
}

func parseStrategyMust(t *testing.T, s string) index.MergeStrategy {
	t.Helper()
	strategy, err := parseStrategy(s)
	require.NoError(t, err)
	return strategy
}
