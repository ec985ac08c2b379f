// Copyright (C) 2020 The floof Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package proxy serves the reverse-proxy/static HTTP side of the http operation: a
// gin router forwarding to an upstream or a local directory, rewriting text/html
// bodies to carry the browser reload shim.
package proxy

import (
	"net"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Config describes one http operation's bind addresses and upstream. Exactly one of
// ProxyAddr/ServePath must be set.
type Config struct {
	Addr      string
	WSAddr    string
	ProxyAddr string
	ServePath string
}

func (c Config) validate() error {
	if (c.ProxyAddr == "") == (c.ServePath == "") {
		return errors.New("http requires exactly one of proxy or serve")
	}
	return nil
}

// Server owns both listening sockets for one http operation: the HTTP/proxy side
// and the WebSocket side served by a reload.Broadcaster the caller supplies.
type Server struct {
	httpSrv *http.Server
	wsSrv   *http.Server
	log     *zap.Logger
}

// Start binds Addr and begins serving in the background. A bind failure is returned
// immediately and fails the enclosing http operation; nothing is started.
func Start(cfg Config, wsBroadcaster http.Handler, log *zap.Logger) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	_, wsPortStr, err := net.SplitHostPort(cfg.WSAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse ws_addr [%s]", cfg.WSAddr)
	}
	wsPort, err := strconv.Atoi(wsPortStr)
	if err != nil {
		return nil, errors.Wrapf(err, "ws_addr [%s] must end in a numeric port", cfg.WSAddr)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	var upstream http.Handler
	if cfg.ProxyAddr != "" {
		upstream = newReverseProxyHandler(cfg.ProxyAddr, wsPort, log)
	} else {
		upstream = newStaticHandler(cfg.ServePath, wsPort)
	}
	router.NoRoute(gin.WrapH(upstream))

	httpLn, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to bind http addr [%s]", cfg.Addr)
	}

	wsLn, err := net.Listen("tcp", cfg.WSAddr)
	if err != nil {
		_ = httpLn.Close()
		return nil, errors.Wrapf(err, "failed to bind ws_addr [%s]", cfg.WSAddr)
	}

	httpSrv := &http.Server{Handler: router}
	wsSrv := &http.Server{Handler: wsBroadcaster}

	go func() {
		if serveErr := httpSrv.Serve(httpLn); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			log.Error("http server stopped unexpectedly", zap.Error(serveErr))
		}
	}()
	go func() {
		if serveErr := wsSrv.Serve(wsLn); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			log.Error("websocket server stopped unexpectedly", zap.Error(serveErr))
		}
	}()

	return &Server{httpSrv: httpSrv, wsSrv: wsSrv, log: log}, nil
}

// Close shuts down both listeners, combining any shutdown errors.
func (s *Server) Close() error {
	return multierr.Combine(
		s.httpSrv.Close(),
		s.wsSrv.Close(),
	)
}
