// Copyright (C) 2020 The floof Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package reload_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/LukasKalbertodt/floof/internal/cage/testkit"

	"github.com/LukasKalbertodt/floof/internal/reload"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestBroadcastReloadClosesConnectedSessions(t *testing.T) {
	b := reload.NewBroadcaster(testkit.NewZapLogger())
	srv := httptest.NewServer(b)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	// Give the server goroutine a moment to register the session.
	time.Sleep(20 * time.Millisecond)

	b.BroadcastReload()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}

func TestBroadcastReloadWithNoSessionsIsANoop(t *testing.T) {
	b := reload.NewBroadcaster(testkit.NewZapLogger())
	require.NotPanics(t, func() { b.BroadcastReload() })
}
