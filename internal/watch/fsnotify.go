// Copyright (C) 2019 The CodeActual Go Environment Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package watch

import (
	"os"
	"path/filepath"
	"time"

	cage_time "github.com/LukasKalbertodt/floof/internal/cage/time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Fsnotify recursively watches the directory trees rooted at its Add'd paths and
// emits one coalesced change on Changes() after debounceInterval of silence follows
// a burst of filesystem activity. Unlike a per-path watcher, the debounce key is the
// watch set as a whole: ten files touched by a single `go build` still produce one
// notification.
type Fsnotify struct {
	watcher *fsnotify.Watcher
	out     chan Event
	done    chan struct{}
	logger  *zap.Logger

	debounce func(interface{})
}

// NewFsnotify creates a watcher that debounces change bursts by interval. A zero
// interval disables debouncing: every filtered event is forwarded immediately.
func NewFsnotify(interval time.Duration, logger *zap.Logger) (*Fsnotify, error) {
	underlying, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create new watcher")
	}

	w := &Fsnotify{
		watcher: underlying,
		out:     make(chan Event, 1),
		done:    make(chan struct{}),
		logger:  logger,
	}

	if interval > 0 {
		w.debounce = Debounce(cage_time.RealClock{}, interval, w.emit)
	} else {
		w.debounce = w.emit
	}

	go w.monitor()

	return w, nil
}

var _ Watcher = (*Fsnotify)(nil)

// Add registers root, and every directory beneath it, with the underlying watcher.
// Directories created later under root are picked up as Create events arrive.
func (w *Fsnotify) Add(root string) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return errors.Wrapf(err, "failed to get absolute path of [%s]", root)
	}

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return errors.Wrapf(err, "failed to walk [%s]", path)
		}
		if !info.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return errors.Wrapf(err, "failed to add watcher path [%s]", path)
		}
		return nil
	})
}

func (w *Fsnotify) Close() error {
	close(w.done)
	return errors.Wrap(w.watcher.Close(), "failed to close fsnotify watcher")
}

func (w *Fsnotify) Changes() <-chan Event {
	return w.out
}

func (w *Fsnotify) emit(v interface{}) {
	event, ok := v.(Event)
	if !ok {
		return
	}
	select {
	case <-w.done:
		return
	default:
	}
	select {
	case w.out <- event:
	case <-w.done:
	}
}

// monitor dispatches filtered fsnotify activity to the debounce closure until Close
// is called.
func (w *Fsnotify) monitor() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name == "" {
				// https://github.com/fsnotify/fsnotify/issues/140#issuecomment-217539670
				continue
			}

			op := filterOp(event.Op)
			if op == 0 {
				continue
			}

			if op == Create {
				// A newly created directory needs its own watch descriptor to catch
				// activity nested further inside it.
				if fi, statErr := os.Stat(event.Name); statErr == nil && fi.IsDir() {
					if err := w.watcher.Add(event.Name); err != nil {
						w.logger.Warn("failed to watch new directory",
							zap.String("path", event.Name), zap.Error(err))
					}
				}
			}

			w.debounce(Event{Path: event.Name, Op: op})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err == nil {
				continue
			}
			w.logger.Error("fsnotify error", zap.Error(err))
		}
	}
}

// filterOp reduces fsnotify's bitmask operations, including Chmod, to the single
// dominant Op this package cares about.
func filterOp(op fsnotify.Op) Op {
	if op&fsnotify.Remove == fsnotify.Remove {
		return Remove
	}
	if op&fsnotify.Rename == fsnotify.Rename {
		return Rename
	}
	if op&fsnotify.Create == fsnotify.Create {
		return Create
	}
	if op&fsnotify.Write == fsnotify.Write {
		return Write
	}
	return 0
}
