// Copyright (C) 2020 The floof Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package floof

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Key names a well-known Context value.
type Key string

const (
	// KeyWorkdir holds the absolute working directory visible to command operations.
	KeyWorkdir Key = "workdir"

	// KeyHTTP holds the HTTPHandle published by the nearest enclosing http operation.
	KeyHTTP Key = "http"

	// KeyTriggeredByChange holds a bool, present only inside a watch body: true for
	// re-runs caused by a file change, false for the initial run.
	KeyTriggeredByChange Key = "triggered_by_change"

	// KeyInWatch holds a bool set to true on every context running inside a watch
	// body, including its initial (non-retriggered) run. on_change uses this,
	// rather than KeyTriggeredByChange, to reject configurations that place it
	// outside any watch.
	KeyInWatch Key = "in_watch"
)

// HTTPHandle is implemented by a running http operation's server. reload operations
// look it up via the context chain under KeyHTTP.
type HTTPHandle interface {
	// BroadcastReload closes every registered WebSocket session, signalling browsers
	// to reload. In proxy mode the caller must wait for the target port to accept
	// connections first; HTTPHandle itself does not.
	BroadcastReload()

	// ProxyAddr returns the reverse-proxy target address and true when this handle
	// is running in proxy mode; ("", false) in static-serve mode.
	ProxyAddr() (string, bool)
}

// Context is a node in the nested scope tree described by the task model: it carries
// inherited key/value state and a cancellation Token. Only the goroutine that created
// a Context ever calls Set on it, so no lock guards the value map -- operations that
// need concurrent children create one child Context per child instead of sharing one.
type Context struct {
	parent    *Context
	values    map[Key]interface{}
	token     *Token
	configDir string
}

// NewRootContext creates the context for a task invocation's root, seeded with the
// directory containing the configuration file (the default workdir).
func NewRootContext(configDir string) *Context {
	return &Context{
		values:    map[Key]interface{}{KeyWorkdir: configDir},
		token:     NewToken(),
		configDir: configDir,
	}
}

// Child creates a new scope beneath c. Its token is a child of c's token, so
// cancelling c cascades to it. It starts with no values of its own; lookups fall
// through to c.
func (c *Context) Child() *Context {
	return &Context{
		parent:    c,
		values:    make(map[Key]interface{}),
		token:     c.token.Child(),
		configDir: c.configDir,
	}
}

// Get walks from c to the root, returning the value stored by the nearest ancestor
// (including c) that called Set with this key.
func (c *Context) Get(key Key) (interface{}, bool) {
	for cur := c; cur != nil; cur = cur.parent {
		if v, ok := cur.values[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// Set writes a value into c only; it never mutates ancestors or descendants.
func (c *Context) Set(key Key, value interface{}) {
	c.values[key] = value
}

// Token returns c's cancellation token.
func (c *Context) Token() *Token {
	return c.token
}

// ConfigDir returns the directory containing the configuration file, fixed for the
// whole tree regardless of subsequent set_workdir operations.
func (c *Context) ConfigDir() string {
	return c.configDir
}

// Workdir returns the nearest ancestor's workdir, defaulting to the config file's
// directory if none was ever set.
func (c *Context) Workdir() string {
	if v, ok := c.Get(KeyWorkdir); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return c.configDir
}

// TriggeredByChange reports whether the nearest enclosing watch body considers the
// current run a re-run caused by a file change. Outside any watch body it is false.
func (c *Context) TriggeredByChange() bool {
	v, ok := c.Get(KeyTriggeredByChange)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// InWatch reports whether c runs inside a watch operation's body, regardless of
// whether this particular run was triggered by a change.
func (c *Context) InWatch() bool {
	v, ok := c.Get(KeyInWatch)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// HTTP returns the nearest enclosing http operation's handle, if any.
func (c *Context) HTTP() (HTTPHandle, bool) {
	v, ok := c.Get(KeyHTTP)
	if !ok {
		return nil, false
	}
	h, ok := v.(HTTPHandle)
	return h, ok
}

// ResolveWorkdir implements the set_workdir path resolution policy, the only place it
// lives:
//
//   - an absolute path is stored verbatim;
//   - a path starting with "./" is resolved against the current workdir;
//   - any other (bare-relative) path is resolved against the config file's directory.
func ResolveWorkdir(currentWorkdir, configDir, path string) (string, error) {
	if path == "" {
		return "", errors.New("set_workdir path must not be empty")
	}
	if filepath.IsAbs(path) {
		return path, nil
	}
	if strings.HasPrefix(path, "./") {
		return filepath.Clean(filepath.Join(currentWorkdir, path)), nil
	}
	return filepath.Clean(filepath.Join(configDir, path)), nil
}
