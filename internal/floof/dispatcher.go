// Copyright (C) 2020 The floof Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package floof

import (
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	cage_zap "github.com/LukasKalbertodt/floof/internal/cage/log/zap"
	cage_time "github.com/LukasKalbertodt/floof/internal/cage/time"
	"github.com/LukasKalbertodt/floof/internal/proxy"
)

// Dispatcher executes operations against a Context tree. It holds the task map a
// run_task operation resolves names against and the ProcessRunner every command
// operation shares.
type Dispatcher struct {
	Tasks  map[string][]Operation
	Runner *ProcessRunner
	Log    *zap.Logger
}

// Run looks up task and runs its sequence under ctx, with task on the call stack for
// cycle detection.
func (d *Dispatcher) Run(task string, ctx *Context) Result {
	ops, ok := d.Tasks[task]
	if !ok {
		return ErrResult(errors.Errorf("no such task [%s]", task))
	}
	return d.runSequence(ops, ctx, []string{task})
}

// runSequence runs ops one after another, stopping at the first err or cancelled
// outcome and returning it; remaining operations never start.
func (d *Dispatcher) runSequence(ops []Operation, ctx *Context, stack []string) Result {
	for _, op := range ops {
		result := d.run(op, ctx, stack)
		if result.Failed() || result.Cancelled() {
			return result
		}
	}
	return OkResult()
}

func (d *Dispatcher) run(op Operation, ctx *Context, stack []string) Result {
	switch o := op.(type) {
	case CommandOp:
		return d.runCommand(o, ctx)
	case SetWorkdirOp:
		return d.runSetWorkdir(o, ctx)
	case OnChangeOp:
		return d.runOnChange(o, ctx, stack)
	case RunTaskOp:
		return d.runTask(o, ctx, stack)
	case ConcurrentlyOp:
		return d.runConcurrently(o, ctx, stack)
	case HTTPOp:
		return d.runHTTP(o, ctx)
	case ReloadOp:
		return d.runReload(ctx)
	case WatchOp:
		return d.runWatch(o, ctx, stack)
	default:
		return ErrResult(errors.Errorf("unknown operation type %T", op))
	}
}

func (d *Dispatcher) runCommand(o CommandOp, ctx *Context) Result {
	workdir := ctx.Workdir()
	if o.Workdir != "" {
		resolved, err := ResolveWorkdir(workdir, ctx.ConfigDir(), o.Workdir)
		if err != nil {
			return ErrResult(err)
		}
		workdir = resolved
	}

	result, err := d.Runner.Run(o.Argv, workdir, ctx.Token())
	if err != nil {
		return ErrResult(err)
	}

	switch result.Outcome {
	case ProcessCancelled:
		return CancelledResult()
	case ProcessExited:
		if result.ExitCode != 0 {
			return ErrResult(errors.Errorf("command [%s] exited %d", joinArgv(o.Argv), result.ExitCode))
		}
		return OkResult()
	default:
		return ErrResult(errors.Errorf("unknown process outcome %v", result.Outcome))
	}
}

func (d *Dispatcher) runSetWorkdir(o SetWorkdirOp, ctx *Context) Result {
	resolved, err := ResolveWorkdir(ctx.Workdir(), ctx.ConfigDir(), o.Path)
	if err != nil {
		return ErrResult(err)
	}
	ctx.Set(KeyWorkdir, resolved)
	return OkResult()
}

func (d *Dispatcher) runOnChange(o OnChangeOp, ctx *Context, stack []string) Result {
	if !ctx.InWatch() {
		return ErrResult(errors.New("on_change is only valid inside a watch body"))
	}
	if !ctx.TriggeredByChange() {
		return OkResult()
	}
	return d.run(o.Inner, ctx, stack)
}

func (d *Dispatcher) runTask(o RunTaskOp, ctx *Context, stack []string) Result {
	ops, ok := d.Tasks[o.Name]
	if !ok {
		return ErrResult(errors.Errorf("no such task [%s]", o.Name))
	}

	for _, onStack := range stack {
		if onStack == o.Name {
			return ErrResult(errors.Errorf("task invocation cycle: %v -> %s", stack, o.Name))
		}
	}

	child := ctx.Child()
	return d.runSequence(ops, child, append(append([]string{}, stack...), o.Name))
}

func (d *Dispatcher) runConcurrently(o ConcurrentlyOp, ctx *Context, stack []string) Result {
	var group errgroup.Group

	results := make([]Result, len(o.Children))
	for i, child := range o.Children {
		i, child := i, child
		childCtx := ctx.Child()
		group.Go(func() error {
			results[i] = d.run(child, childCtx, stack)
			if results[i].Failed() {
				// Cancelling ctx's own token, not just childCtx's, cascades to every
				// other sibling since they were all derived from ctx.
				ctx.Token().Cancel()
			}
			return nil
		})
	}
	_ = group.Wait()

	var combined error
	for _, r := range results {
		if r.Failed() {
			combined = multierr.Append(combined, r.Err)
		}
	}
	if combined != nil {
		return ErrResult(combined)
	}
	if ctx.Token().Cancelled() {
		return CancelledResult()
	}
	return OkResult()
}

func (d *Dispatcher) runReload(ctx *Context) Result {
	handle, ok := ctx.HTTP()
	if !ok {
		return ErrResult(errors.New("reload has no enclosing http operation"))
	}

	if target, isProxy := handle.ProxyAddr(); isProxy {
		d.Log.Debug("waiting for proxy target to accept connections", cage_zap.Tag("dispatch", "reload"), zap.String("target", target))
		start := time.Now()
		if err := proxy.WaitForPort(target, ctx.Token().Done()); err != nil {
			if errors.Is(err, proxy.ErrProbeCancelled) {
				return CancelledResult()
			}
			return ErrResult(err)
		}
		d.Log.Debug(
			"proxy target is accepting connections",
			cage_zap.Tag("dispatch", "reload"),
			zap.String("target", target),
			zap.String("waited", cage_time.DurationShort(time.Since(start))),
		)
	}

	handle.BroadcastReload()
	return OkResult()
}

func joinArgv(argv []string) string {
	out := ""
	for i, a := range argv {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}
