// Copyright (C) 2020 The floof Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package proxy

import (
	"net"
	"time"

	"github.com/pkg/errors"
)

// ErrProbeCancelled is returned by WaitForPort when done closes before the port
// accepts a connection. It is not a genuine failure -- callers should treat it the
// way the rest of the system treats a cancelled token.
var ErrProbeCancelled = errors.New("cancelled while waiting for port to open")

const (
	probeDialTimeout = 500 * time.Millisecond
	probeMinBackoff  = 50 * time.Millisecond
	probeMaxBackoff  = time.Second
)

// WaitForPort retries a TCP connection to addr with exponential backoff, bounded
// only by done, never by a maximum wait count -- the reload operation relies on this
// to survive a slow-starting upstream server.
func WaitForPort(addr string, done <-chan struct{}) error {
	backoff := probeMinBackoff

	for {
		conn, err := net.DialTimeout("tcp", addr, probeDialTimeout)
		if err == nil {
			return conn.Close()
		}

		select {
		case <-done:
			return ErrProbeCancelled
		case <-time.After(backoff):
			backoff = min(backoff*2, probeMaxBackoff)
		}
	}
}
