// Copyright (C) 2020 The floof Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package floof

import (
	"go.uber.org/zap"

	cage_zap "github.com/LukasKalbertodt/floof/internal/cage/log/zap"
	"github.com/LukasKalbertodt/floof/internal/watch"
)

// runWatch implements the watch pipeline (C6): run the body once, then on every
// debounced change cancel the running body, wait for it to fully unwind, and rerun
// it in a fresh generation. It returns Err only if the watcher cannot be created or a
// path cannot be added; once watching, it only returns, as Cancelled, when the watch
// operation itself is cancelled by its parent -- a failing body never stops the watch.
//
// State machine: Idle -> Running -> Cancelling -> Running ..., where Cancelling is
// exited only once the prior Running generation has fully returned, so two
// generations' bodies never overlap. A change that interrupts Running already
// satisfied the debounce window before it was emitted, so it starts the next
// generation directly; Debouncing only applies when the body finished on its own and
// the watch is waiting for a fresh change to justify a rerun.
func (d *Dispatcher) runWatch(o WatchOp, ctx *Context, stack []string) Result {
	watcher, err := watch.NewFsnotify(o.DebounceDuration(), d.Log)
	if err != nil {
		return ErrResult(err)
	}
	defer watcher.Close()

	for _, p := range o.Paths {
		if err := watcher.Add(p); err != nil {
			return ErrResult(err)
		}
	}

	triggered := false

	for {
		bodyCtx := ctx.Child()
		bodyCtx.Set(KeyInWatch, true)
		bodyCtx.Set(KeyTriggeredByChange, triggered)

		bodyDone := make(chan Result, 1)
		go func() {
			bodyDone <- d.runSequence(o.Body, bodyCtx, stack)
		}()

		// Running: wait for the body to finish on its own, a change that must
		// cancel it mid-flight, or the watch itself being cancelled.
		var result Result
		interrupted := false
		select {
		case result = <-bodyDone:
		case <-watcher.Changes():
			bodyCtx.Token().Cancel() // Cancelling
			result = <-bodyDone      // blocks until the generation fully unwinds
			interrupted = true
		case <-ctx.Token().Done():
			bodyCtx.Token().Cancel()
			<-bodyDone
			return CancelledResult()
		}

		if result.Failed() {
			d.Log.Warn(
				"watch body failed, returning to watching",
				cage_zap.Tag("watch"),
				zap.Strings("paths", o.Paths),
				zap.Error(result.Err),
			)
		}

		// The change that interrupted a running body already debounced before it was
		// emitted, so it starts the next generation directly instead of waiting for a
		// second, independent change.
		if interrupted {
			triggered = true
			continue
		}

		// Debouncing: idle until the next coalesced change or cancellation.
		select {
		case <-watcher.Changes():
			triggered = true
		case <-ctx.Token().Done():
			return CancelledResult()
		}
	}
}
