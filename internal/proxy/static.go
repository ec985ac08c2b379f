// Copyright (C) 2020 The floof Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package proxy

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
)

// newStaticHandler serves root and injects the reload shim into any text/html
// response, the same as the reverse-proxy variant.
func newStaticHandler(root string, wsPort int) http.Handler {
	fileServer := http.FileServer(http.Dir(root))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := &htmlBufferingWriter{ResponseWriter: w, wsPort: wsPort, statusCode: http.StatusOK}
		fileServer.ServeHTTP(buf, r)
		buf.flush()
	})
}

// htmlBufferingWriter defers writing the body until headers are known so an
// eventual text/html response can be rewritten before anything reaches the client.
// Non-HTML responses stream straight through.
type htmlBufferingWriter struct {
	http.ResponseWriter

	wsPort      int
	statusCode  int
	isHTML      bool
	wroteHeader bool
	buf         bytes.Buffer
}

func (w *htmlBufferingWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.statusCode = code
	w.isHTML = strings.HasPrefix(w.Header().Get("Content-Type"), "text/html")
	if !w.isHTML {
		w.ResponseWriter.WriteHeader(code)
	}
}

func (w *htmlBufferingWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if w.isHTML {
		return w.buf.Write(p)
	}
	return w.ResponseWriter.Write(p)
}

func (w *htmlBufferingWriter) flush() {
	if !w.isHTML {
		return
	}
	injected := InjectShim(w.buf.Bytes(), w.wsPort)
	w.Header().Set("Content-Length", strconv.Itoa(len(injected)))
	w.ResponseWriter.WriteHeader(w.statusCode)
	_, _ = w.ResponseWriter.Write(injected)
}
