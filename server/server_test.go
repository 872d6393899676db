// Copyright ©2015 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package server

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/biogo/htsindex/bai"
	"github.com/biogo/htsindex/bgzf"
)

func init() { gin.SetMode(gin.TestMode) }

func encodeBlock(t *testing.T, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	gz.Header.Extra = []byte{'B', 'C', 0x02, 0x00, 0x00, 0x00}
	_, err := gz.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	b := buf.Bytes()
	binary.LittleEndian.PutUint16(b[16:18], uint16(len(b)-1))
	return b
}

// fixture returns a BGZF file of three blocks followed by the magic
// block, and the file offsets of each block.
func fixture(t *testing.T) (data []byte, blocks []int64) {
	t.Helper()
	var buf bytes.Buffer
	for _, p := range []string{"first block", "second block", "third block"} {
		blocks = append(blocks, int64(buf.Len()))
		buf.Write(encodeBlock(t, p))
	}
	blocks = append(blocks, int64(buf.Len()))
	buf.WriteString(bgzf.MagicBlock)
	return buf.Bytes(), blocks
}

// encodeIndex returns a single reference BAI index with one level 5 bin
// holding chunk and a linear index of one tile.
func encodeIndex(chunk bgzf.Chunk, unplaced uint64) []byte {
	var buf bytes.Buffer
	buf.WriteString(bai.Magic)
	for _, v := range []interface{}{
		int32(1), // n_ref
		int32(2), // n_bin
		uint32(4681), int32(1), chunk.Begin.Virtual(), chunk.End.Virtual(),
		uint32(bai.StatsDummyBin), int32(2), chunk.Begin.Virtual(), chunk.End.Virtual(), uint64(4), uint64(1),
		int32(1), chunk.Begin.Virtual(), // n_intv
		unplaced,
	} {
		err := binary.Write(&buf, binary.LittleEndian, v)
		if err != nil {
			panic(err)
		}
	}
	return buf.Bytes()
}

func newServer(t *testing.T, data io.ReaderAt) (*Server, bgzf.Chunk, []int64) {
	t.Helper()
	file, blocks := fixture(t)
	chunk := bgzf.Chunk{
		Begin: bgzf.Offset{File: blocks[0], Block: 0},
		End:   bgzf.Offset{File: blocks[1], Block: 5},
	}
	idx, err := bai.ReadIndex(bytes.NewReader(encodeIndex(chunk, 9)))
	require.NoError(t, err)
	if data == nil {
		data = bytes.NewReader(file)
	}
	return New(idx, data, nil, prometheus.NewRegistry()), chunk, blocks
}

func get(t *testing.T, s *Server, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestRefs(t *testing.T) {
	s, _, _ := newServer(t, nil)
	rec := get(t, s, "/refs", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got Refs
	decode(t, rec, &got)
	require.Len(t, got.References, 1)
	ref := got.References[0]
	require.Equal(t, 1, ref.Bins)
	require.Equal(t, 1, ref.Tiles)
	require.NotNil(t, ref.Mapped)
	require.Equal(t, uint64(4), *ref.Mapped)
	require.Equal(t, uint64(1), *ref.Unmapped)
	require.NotNil(t, got.Unplaced)
	require.Equal(t, uint64(9), *got.Unplaced)
}

func TestChunks(t *testing.T) {
	s, chunk, _ := newServer(t, nil)

	rec := get(t, s, "/chunks/0?start=1&end=100", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got Query
	decode(t, rec, &got)
	require.Equal(t, "0:1-100", got.Region)
	require.Equal(t, makeChunks([]bgzf.Chunk{chunk}), got.Chunks)
	require.Empty(t, got.Extents)

	// The only bin lies in the first tile.
	rec = get(t, s, "/chunks/0?start=20000", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got = Query{}
	decode(t, rec, &got)
	require.Empty(t, got.Chunks)
	require.Contains(t, rec.Body.String(), `"chunks":[]`)

	for _, test := range []struct {
		path string
		code int
	}{
		{path: "/chunks/1", code: http.StatusNotFound},
		{path: "/chunks/-1", code: http.StatusNotFound},
		{path: "/chunks/x", code: http.StatusBadRequest},
		{path: "/chunks/0?start=a", code: http.StatusBadRequest},
		{path: "/chunks/0?end=b", code: http.StatusBadRequest},
	} {
		rec := get(t, s, test.path, nil)
		require.Equal(t, test.code, rec.Code, test.path)
		var body errorBody
		decode(t, rec, &body)
		require.NotEmpty(t, body.Error, test.path)
	}
}

func TestRegion(t *testing.T) {
	s, chunk, blocks := newServer(t, nil)

	rec := get(t, s, "/region/0:1-1,000", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got Query
	decode(t, rec, &got)
	require.Equal(t, makeChunks([]bgzf.Chunk{chunk}), got.Chunks)
	// The chunk ends inside the second block, so the extent
	// runs to the start of the third.
	require.Equal(t, []Range{{Begin: blocks[0], End: blocks[2]}}, got.Extents)

	rec = get(t, s, "/region/chr1:1-10", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtents(t *testing.T) {
	s, _, blocks := newServer(t, nil)
	rec := get(t, s, "/extents/0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got Query
	decode(t, rec, &got)
	require.Equal(t, []Range{{Begin: blocks[0], End: blocks[2]}}, got.Extents)

	idx, err := bai.ReadIndex(bytes.NewReader(encodeIndex(bgzf.Chunk{}, 0)))
	require.NoError(t, err)
	noData := New(idx, nil, nil, prometheus.NewRegistry())
	rec = get(t, noData, "/extents/0", nil)
	require.Equal(t, http.StatusNotImplemented, rec.Code)

	garbage := bytes.NewReader(bytes.Repeat([]byte{0xff}, 1024))
	bad, _, _ := newServer(t, garbage)
	rec = get(t, bad, "/extents/0", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestBins(t *testing.T) {
	s, _, _ := newServer(t, nil)
	rec := get(t, s, "/bins/0?start=1&end=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Region string   `json:"region"`
		Bins   []uint32 `json:"bins"`
	}
	decode(t, rec, &got)
	require.Equal(t, []uint32{4681}, got.Bins)

	rec = get(t, s, "/bins/3", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestID(t *testing.T) {
	s, _, _ := newServer(t, nil)

	rec := get(t, s, "/refs", nil)
	id := rec.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(id)
	require.NoError(t, err, "request id %q", id)

	rec = get(t, s, "/chunks/7", http.Header{RequestIDHeader: {"abc"}})
	require.Equal(t, "abc", rec.Header().Get(RequestIDHeader))
	var body errorBody
	decode(t, rec, &body)
	require.Equal(t, "abc", body.ID)
}

func TestMetrics(t *testing.T) {
	s, _, _ := newServer(t, nil)
	get(t, s, "/chunks/0", nil)
	get(t, s, "/chunks/9", nil)

	rec := get(t, s, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `baiserve_requests_total{code="200",route="/chunks/:ref"} 1`)
	require.Contains(t, body, `baiserve_requests_total{code="404",route="/chunks/:ref"} 1`)
	require.Contains(t, body, "baiserve_query_chunks_count 1")
}

func TestConfigValidate(t *testing.T) {
	for _, test := range []struct {
		cfg Config
		ok  bool
	}{
		{cfg: Config{IndexPath: "x.bai", Addr: ":8080"}, ok: true},
		{cfg: Config{IndexPath: "x.bai", Addr: "localhost:0", LogLevel: "debug"}, ok: true},
		{cfg: Config{Addr: ":8080"}},
		{cfg: Config{IndexPath: "x.bai", Addr: "8080"}},
		{cfg: Config{IndexPath: "x.bai", Addr: ":8080", LogLevel: "loud"}},
	} {
		err := test.cfg.Validate()
		if test.ok {
			require.NoError(t, err, "%+v", test.cfg)
		} else {
			require.Error(t, err, "%+v", test.cfg)
			require.True(t, strings.HasPrefix(err.Error(), "server: "), err.Error())
		}
	}
}
