// Copyright (C) 2019 The CodeActual Go Environment Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package watch recursively monitors directory trees and coalesces bursts of
// filesystem activity into single change notifications.
package watch

// Op is used for file/directory operation codes.
type Op uint8

const (
	Create Op = 1 << iota
	Rename
	Remove
	Write
)

func (o Op) String() string {
	switch o {
	case Create:
		return "Create"
	case Rename:
		return "Rename"
	case Remove:
		return "Remove"
	default:
		return "Write"
	}
}

// Event describes the single underlying filesystem operation that most recently
// triggered a debounced change notification.
type Event struct {
	// Path holds the absolute path to the file/directory.
	Path string

	// Op defines the file/directory operation.
	Op Op
}

// Watcher recursively monitors one or more root paths and emits a single coalesced
// Changes notification once D milliseconds of silence follow a burst of filesystem
// activity anywhere beneath those roots. Consumers only learn that "at least one
// change happened in the watched set" -- the per-path/per-op Event is informational,
// not an invitation to track individual files.
type Watcher interface {
	// Add registers a root path with the watcher. Directories are watched recursively;
	// subdirectories created after Add is called are picked up automatically.
	//
	// Absolute and relative paths are supported; all paths are made absolute internally.
	Add(path string) error

	// Close ends all monitoring and releases the underlying OS watch descriptors.
	Close() error

	// Changes returns the channel of debounced change notifications. No further values
	// are sent on it once Close has been called.
	Changes() <-chan Event
}
