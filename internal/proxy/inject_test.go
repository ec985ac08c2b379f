// Copyright (C) 2020 The floof Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package proxy_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LukasKalbertodt/floof/internal/proxy"
)

func TestInjectShimBeforeBodyClose(t *testing.T) {
	body := []byte("<html><body><h1>hi</h1></body></html>")
	got := proxy.InjectShim(body, 8031)

	shim := proxy.Shim(8031)
	want := strings.Replace(string(body), "</body>", shim+"</body>", 1)
	require.Equal(t, want, string(got))
}

func TestInjectShimAppendsWhenNoBodyClose(t *testing.T) {
	body := []byte("<html><body><h1>unclosed")
	got := proxy.InjectShim(body, 8031)

	require.Equal(t, string(body)+proxy.Shim(8031), string(got))
}

func TestInjectShimIsNotIdempotent(t *testing.T) {
	body := []byte("<html><body>x</body></html>")
	once := proxy.InjectShim(body, 8031)
	twice := proxy.InjectShim(once, 8031)

	require.Equal(t, 2, strings.Count(string(twice), "WebSocket(addr)"))
}

func TestInjectShimDeterministicForSamePort(t *testing.T) {
	body := []byte("<html><body>x</body></html>")
	a := proxy.InjectShim(body, 8031)
	b := proxy.InjectShim(body, 8031)
	require.Equal(t, a, b)
}

func TestInjectShimCarriesConfiguredPort(t *testing.T) {
	body := []byte("<html><body>x</body></html>")
	got := proxy.InjectShim(body, 9999)
	require.Contains(t, string(got), "ws://localhost:9999")
}
