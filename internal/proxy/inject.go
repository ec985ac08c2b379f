// Copyright (C) 2020 The floof Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package proxy

import (
	"bytes"
	"fmt"

	"golang.org/x/net/html"
)

const shimTemplate = `<script>
  const addr = 'ws://localhost:%d';
  const socket = new WebSocket(addr);
  function reload(){ location.reload(); }
  function fail(){ /* log connection error */ }
  socket.addEventListener("close", fail);
  socket.addEventListener("open", () => {
    socket.removeEventListener("close", fail);
    socket.addEventListener("close", reload);
  });
</script>`

// Shim returns the browser reload snippet with wsPort substituted, deterministic for
// a given port.
func Shim(wsPort int) string {
	return fmt.Sprintf(shimTemplate, wsPort)
}

// InjectShim inserts Shim(wsPort) immediately before the first </body> closing tag,
// or appends it at the end of body when no such tag is present. It does not
// deduplicate: a body that already contains the shim is injected into again.
func InjectShim(body []byte, wsPort int) []byte {
	shim := []byte(Shim(wsPort))

	closeOffset := findBodyCloseOffset(body)
	if closeOffset < 0 {
		out := make([]byte, 0, len(body)+len(shim))
		out = append(out, body...)
		return append(out, shim...)
	}

	out := make([]byte, 0, len(body)+len(shim))
	out = append(out, body[:closeOffset]...)
	out = append(out, shim...)
	return append(out, body[closeOffset:]...)
}

// findBodyCloseOffset returns the byte offset of the first </body> end tag in body,
// or -1 if none is found.
func findBodyCloseOffset(body []byte) int {
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	offset := 0

	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			return -1
		}

		raw := tokenizer.Raw()

		if tt == html.EndTagToken {
			name, _ := tokenizer.TagName()
			if string(name) == "body" {
				return offset
			}
		}

		offset += len(raw)
	}
}
