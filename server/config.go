// Copyright ©2015 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package server

import (
	"net"

	"github.com/pkg/errors"
)

// Config holds the settings of an index query server.
type Config struct {
	// IndexPath is the path of the BAI index to serve.
	IndexPath string

	// DataPath is the optional path of the BGZF compressed
	// BAM indexed by IndexPath. Byte extents are only
	// available when it is set.
	DataPath string

	// Addr is the TCP address to listen on.
	Addr string

	// LogLevel is one of debug, info, warn or error.
	LogLevel string
}

// Validate returns an error if c is not a usable configuration.
func (c Config) Validate() error {
	if c.IndexPath == "" {
		return errors.New("server: no index path")
	}
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return errors.Wrapf(err, "server: invalid address %q", c.Addr)
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.Errorf("server: unknown log level %q", c.LogLevel)
	}
	return nil
}
