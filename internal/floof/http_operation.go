// Copyright (C) 2020 The floof Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package floof

import (
	"github.com/LukasKalbertodt/floof/internal/proxy"
	"github.com/LukasKalbertodt/floof/internal/reload"
)

// httpHandle adapts an internal/reload.Broadcaster plus the http operation's proxy
// target to the HTTPHandle interface that reload operations look up in the context
// chain.
type httpHandle struct {
	broadcaster *reload.Broadcaster
	proxyAddr   string
	isProxy     bool
}

func (h *httpHandle) BroadcastReload() { h.broadcaster.BroadcastReload() }

func (h *httpHandle) ProxyAddr() (string, bool) { return h.proxyAddr, h.isProxy }

// runHTTP starts the reverse-proxy-or-static server and its reload broadcaster, then
// publishes an HTTPHandle into ctx itself (not a child) so that later sequential
// siblings sharing ctx can find it via ctx.HTTP(). It returns immediately; the server
// keeps running in the background until ctx's token is cancelled.
func (d *Dispatcher) runHTTP(o HTTPOp, ctx *Context) Result {
	broadcaster := reload.NewBroadcaster(d.Log)

	srv, err := proxy.Start(proxy.Config{
		Addr:      o.Addr,
		WSAddr:    o.WSAddr,
		ProxyAddr: o.ProxyAddr,
		ServePath: o.ServePath,
	}, broadcaster, d.Log)
	if err != nil {
		return ErrResult(err)
	}

	handle := &httpHandle{
		broadcaster: broadcaster,
		proxyAddr:   o.ProxyAddr,
		isProxy:     o.ProxyAddr != "",
	}
	ctx.Set(KeyHTTP, handle)

	go func() {
		<-ctx.Token().Done()
		_ = srv.Close()
	}()

	return OkResult()
}
