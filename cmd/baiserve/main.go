// Copyright ©2015 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// baiserve serves BAI index region queries over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/exp/mmap"

	"github.com/biogo/htsindex/bai"
	"github.com/biogo/htsindex/bgzf"
	"github.com/biogo/htsindex/server"
)

func main() {
	var cfg server.Config
	flag.StringVar(&cfg.IndexPath, "index", "", "BAI index to serve (required)")
	flag.StringVar(&cfg.DataPath, "data", "", "BAM file described by the index, enables byte extents")
	flag.StringVar(&cfg.Addr, "addr", ":8080", "HTTP listen address")
	flag.StringVar(&cfg.LogLevel, "log.level", "info", "log level: debug, info, warn or error")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(2)
	}

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = level.NewFilter(logger, level.Allow(level.ParseDefault(cfg.LogLevel, level.InfoValue())))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	idx, err := bai.Load(cfg.IndexPath)
	if err != nil {
		level.Error(logger).Log("msg", "failed to load index", "path", cfg.IndexPath, "format", bai.IsFormatError(err), "err", err)
		os.Exit(1)
	}
	level.Info(logger).Log("msg", "loaded index", "path", cfg.IndexPath, "refs", idx.NumRefs())

	var data *mmap.ReaderAt
	if cfg.DataPath != "" {
		data, err = mmap.Open(cfg.DataPath)
		if err != nil {
			level.Error(logger).Log("msg", "failed to open data", "path", cfg.DataPath, "err", err)
			os.Exit(1)
		}
		defer data.Close()
		ok, err := bgzf.HasEOF(data)
		if err != nil {
			level.Error(logger).Log("msg", "failed to check data", "path", cfg.DataPath, "err", err)
			os.Exit(1)
		}
		if !ok {
			level.Warn(logger).Log("msg", "data has no BGZF end of file marker", "path", cfg.DataPath)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	gin.SetMode(gin.ReleaseMode)
	var srv *server.Server
	if data != nil {
		srv = server.New(idx, data, logger, reg)
	} else {
		srv = server.New(idx, nil, logger, reg)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := srv.ListenAndServe(ctx, cfg.Addr); err != nil {
		level.Error(logger).Log("msg", "server failed", "err", err)
		os.Exit(1)
	}
	level.Info(logger).Log("msg", "shutdown complete")
}
