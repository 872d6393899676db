// Copyright ©2015 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package server provides an HTTP interface to BAI index queries.
//
// The server holds a single loaded index that is shared by all requests.
// Region queries return the optimized BGZF chunks of the indexed BAM and,
// when the BAM itself is available, the byte extents of the compressed
// file that must be fetched to read them.
package server

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/biogo/htsindex/bai"
	"github.com/biogo/htsindex/bgzf"
	"github.com/biogo/htsindex/bgzf/cache"
	"github.com/biogo/htsindex/bgzf/index"
)

// RequestIDHeader is the header carrying the request identifier.
const RequestIDHeader = "X-Request-Id"

const requestIDKey = "request_id"

// BlockCacheSize is the number of BGZF block headers held by a Server
// for extent queries.
const BlockCacheSize = 1 << 14

var (
	errNoReference = errors.New("server: no such reference")
	errNoData      = errors.New("server: no BGZF data file configured")
)

// Server serves queries against a BAI index.
type Server struct {
	idx     *bai.Index
	data    io.ReaderAt
	logger  log.Logger
	metrics *Metrics
	router  *gin.Engine
	blocks  *cache.LRU
}

// New returns a Server for idx. If data is not nil it is the BGZF file
// indexed by idx and is used to answer extent queries. Metrics are
// registered with and served from reg.
func New(idx *bai.Index, data io.ReaderAt, logger log.Logger, reg *prometheus.Registry) *Server {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	s := &Server{
		idx:     idx,
		data:    data,
		logger:  logger,
		metrics: NewMetrics(reg),
		router:  gin.New(),
		blocks:  cache.NewLRU(BlockCacheSize),
	}

	s.router.Use(gin.Recovery(), s.requestID, s.instrument)
	s.router.GET("/refs", s.refs)
	s.router.GET("/chunks/:ref", s.chunks)
	s.router.GET("/region/:region", s.region)
	s.router.GET("/bins/:ref", s.bins)
	s.router.GET("/extents/:ref", s.extents)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	return s
}

// Handler returns the http.Handler for s.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves HTTP requests on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		level.Info(s.logger).Log("msg", "starting server", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		return err
	}
	if err = <-errc; err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) requestID(c *gin.Context) {
	id := c.GetHeader(RequestIDHeader)
	if id == "" {
		id = uuid.New().String()
	}
	c.Set(requestIDKey, id)
	c.Header(RequestIDHeader, id)
	c.Next()
}

func (s *Server) instrument(c *gin.Context) {
	start := time.Now()
	c.Next()

	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	elapsed := time.Since(start)
	code := c.Writer.Status()
	s.metrics.Requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	s.metrics.Duration.WithLabelValues(route).Observe(elapsed.Seconds())
	level.Debug(s.logger).Log(
		"msg", "request",
		"id", c.GetString(requestIDKey),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"code", code,
		"duration", elapsed,
	)
}

// Chunk is the JSON representation of a bgzf.Chunk.
type Chunk struct {
	Begin        string `json:"begin"`
	End          string `json:"end"`
	BeginVirtual uint64 `json:"begin_virtual"`
	EndVirtual   uint64 `json:"end_virtual"`
}

func makeChunks(chunks []bgzf.Chunk) []Chunk {
	out := make([]Chunk, len(chunks))
	for i, c := range chunks {
		out[i] = Chunk{
			Begin:        c.Begin.String(),
			End:          c.End.String(),
			BeginVirtual: c.Begin.Virtual(),
			EndVirtual:   c.End.Virtual(),
		}
	}
	return out
}

// Reference is the JSON summary of an index reference.
type Reference struct {
	Ref      int     `json:"ref"`
	Bins     int     `json:"bins"`
	Tiles    int     `json:"tiles"`
	Mapped   *uint64 `json:"mapped,omitempty"`
	Unmapped *uint64 `json:"unmapped,omitempty"`
}

// Refs is the JSON response of the /refs route.
type Refs struct {
	References []Reference `json:"references"`
	Unplaced   *uint64     `json:"unplaced,omitempty"`
}

// Query is the JSON response of region queries.
type Query struct {
	Region  string  `json:"region"`
	Chunks  []Chunk `json:"chunks"`
	Extents []Range `json:"extents,omitempty"`
}

// Range is the JSON representation of an index.Extent.
type Range struct {
	Begin int64 `json:"begin"`
	End   int64 `json:"end"`
}

type errorBody struct {
	Error string `json:"error"`
	ID    string `json:"request_id"`
}

func (s *Server) fail(c *gin.Context, code int, err error) {
	if code >= http.StatusInternalServerError {
		level.Error(s.logger).Log("msg", "request failed", "id", c.GetString(requestIDKey), "err", err)
	}
	c.AbortWithStatusJSON(code, errorBody{Error: err.Error(), ID: c.GetString(requestIDKey)})
}

func (s *Server) refs(c *gin.Context) {
	var resp Refs
	resp.References = make([]Reference, s.idx.NumRefs())
	for i := range resp.References {
		r := Reference{Ref: i, Bins: len(s.idx.Bins(i))}
		li, _ := s.idx.LinearIndex(i)
		r.Tiles = len(li.Offsets)
		if stats, ok := s.idx.ReferenceStats(i); ok {
			r.Mapped = &stats.Mapped
			r.Unmapped = &stats.Unmapped
		}
		resp.References[i] = r
	}
	if n, ok := s.idx.Unmapped(); ok {
		resp.Unplaced = &n
	}
	c.JSON(http.StatusOK, resp)
}

// regionFrom returns the region described by the ref path parameter
// and the start and end query parameters.
func (s *Server) regionFrom(c *gin.Context) (bai.Region, error) {
	var (
		r   bai.Region
		err error
	)
	r.Ref, err = strconv.Atoi(c.Param("ref"))
	if err != nil {
		return r, bai.ErrBadRegion
	}
	if v := c.Query("start"); v != "" {
		r.Start, err = strconv.Atoi(v)
		if err != nil {
			return r, bai.ErrBadRegion
		}
	}
	if v := c.Query("end"); v != "" {
		r.End, err = strconv.Atoi(v)
		if err != nil {
			return r, bai.ErrBadRegion
		}
	}
	return r, nil
}

// query returns the chunks for r, failing the request if the reference
// is not in the index.
func (s *Server) query(c *gin.Context, r bai.Region) ([]bgzf.Chunk, bool) {
	if r.Ref < 0 || r.Ref >= s.idx.NumRefs() {
		s.fail(c, http.StatusNotFound, errNoReference)
		return nil, false
	}
	chunks := s.idx.RegionChunks(r)
	s.metrics.Chunks.Observe(float64(len(chunks)))
	return chunks, true
}

func (s *Server) chunks(c *gin.Context) {
	r, err := s.regionFrom(c)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	s.respond(c, r, false)
}

func (s *Server) region(c *gin.Context) {
	r, err := bai.ParseRegion(c.Param("region"))
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	s.respond(c, r, s.data != nil)
}

func (s *Server) extents(c *gin.Context) {
	if s.data == nil {
		s.fail(c, http.StatusNotImplemented, errNoData)
		return
	}
	r, err := s.regionFrom(c)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	s.respond(c, r, true)
}

func (s *Server) respond(c *gin.Context, r bai.Region, withExtents bool) {
	chunks, ok := s.query(c, r)
	if !ok {
		return
	}
	resp := Query{Region: r.String(), Chunks: makeChunks(chunks)}
	if withExtents {
		extents, err := index.CachedExtents(s.data, chunks, s.blocks)
		if err != nil {
			code := http.StatusInternalServerError
			if bai.IsFormatError(err) {
				code = http.StatusUnprocessableEntity
			}
			s.fail(c, code, err)
			return
		}
		resp.Extents = make([]Range, len(extents))
		for i, e := range extents {
			resp.Extents[i] = Range{Begin: e.Begin, End: e.End}
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) bins(c *gin.Context) {
	r, err := s.regionFrom(c)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	if r.Ref < 0 || r.Ref >= s.idx.NumRefs() {
		s.fail(c, http.StatusNotFound, errNoReference)
		return
	}
	bins := s.idx.BinsOverlapping(r.Ref, r.Start, r.End)
	numbers := make([]uint32, len(bins))
	for i, b := range bins {
		numbers[i] = b.Number
	}
	c.JSON(http.StatusOK, gin.H{"region": r.String(), "bins": numbers})
}
