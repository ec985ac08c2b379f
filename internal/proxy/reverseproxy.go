// Copyright (C) 2020 The floof Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package proxy

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// hopByHopHeaders are stripped from the forwarded request; they describe the
// connection to the immediate peer, not end-to-end semantics.
var hopByHopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"TE", "Trailers", "Transfer-Encoding", "Upgrade",
}

// newReverseProxyHandler forwards every request to target, injecting the reload shim
// into text/html responses. Upstream connect failures produce a 502 for that request
// only; the server itself never crashes.
func newReverseProxyHandler(target string, wsPort int, log *zap.Logger) http.Handler {
	targetURL := &url.URL{Scheme: "http", Host: target}

	rp := httputil.NewSingleHostReverseProxy(targetURL)

	director := rp.Director
	rp.Director = func(r *http.Request) {
		director(r)
		for _, h := range hopByHopHeaders {
			r.Header.Del(h)
		}
	}

	rp.ModifyResponse = func(resp *http.Response) error {
		if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
			return nil
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrap(err, "failed to read upstream body for shim injection")
		}
		_ = resp.Body.Close()

		injected := InjectShim(body, wsPort)
		resp.Body = io.NopCloser(bytes.NewReader(injected))
		resp.ContentLength = int64(len(injected))
		resp.Header.Set("Content-Length", strconv.Itoa(len(injected)))
		resp.Header.Del("Transfer-Encoding")

		return nil
	}

	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("proxy upstream unreachable", zap.String("target", target), zap.String("path", r.URL.Path), zap.Error(err))
		w.WriteHeader(http.StatusBadGateway)
	}

	return rp
}
