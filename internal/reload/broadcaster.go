// Copyright (C) 2020 The floof Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package reload serves the browser-facing WebSocket endpoint that the injected
// shim connects to, and broadcasts a reload signal to every connected browser tab
// when a reload operation runs.
package reload

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	tp_sync "github.com/LukasKalbertodt/floof/internal/third_party/github.com/sync"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// session is one connected browser tab's shim socket.
type session struct {
	id   uint64
	conn *websocket.Conn
}

// Broadcaster accepts WebSocket connections from the reload shim and closes them
// on BroadcastReload, which the shim's close handler turns into a page reload.
type Broadcaster struct {
	log      *zap.Logger
	nextID   atomic.Uint64
	sessions *tp_sync.Slice

	// unregisterMu serializes removals so an index found by scanning sessions stays
	// valid until it is deleted (Append only adds at the end).
	unregisterMu sync.Mutex
}

// NewBroadcaster constructs a Broadcaster with no connected sessions.
func NewBroadcaster(log *zap.Logger) *Broadcaster {
	return &Broadcaster{
		log:      log,
		sessions: tp_sync.NewSlice(),
	}
}

// ServeHTTP upgrades the request to a WebSocket and registers the connection until
// it closes, either from the client side or from BroadcastReload.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	s := session{id: b.nextID.Inc(), conn: conn}
	b.sessions.Append(s)

	// The shim never sends anything meaningful; reading is only how we learn the
	// tab navigated away or the tab's socket otherwise died.
	go func() {
		defer b.unregister(s.id)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// BroadcastReload closes every connected session's socket, which is the shim's
// cue to reload the page.
func (b *Broadcaster) BroadcastReload() {
	for item := range b.sessions.Iter() {
		s := item.Value.(session)
		if err := s.conn.Close(); err != nil {
			b.log.Debug("error closing reload session", zap.Uint64("session", s.id), zap.Error(err))
		}
	}
}

func (b *Broadcaster) unregister(id uint64) {
	b.unregisterMu.Lock()
	defer b.unregisterMu.Unlock()

	// Iter holds the slice's lock until every item is received, so the scan must run
	// to completion before Delete can take that lock.
	idx := -1
	for item := range b.sessions.Iter() {
		if item.Value.(session).id == id {
			idx = item.Index
		}
	}
	if idx >= 0 {
		b.sessions.Delete(idx)
	}
}
