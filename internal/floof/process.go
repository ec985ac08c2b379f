// Copyright (C) 2020 The floof Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Process signaling uses syscall.Kill(-pid, ...) and Setpgid and is Unix-only; this
// file does not compile on Windows.
package floof

import (
	"bufio"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	cage_zap "github.com/LukasKalbertodt/floof/internal/cage/log/zap"
)

// ProcessOutcome distinguishes a command that ran to completion from one that was
// killed because its Token was cancelled.
type ProcessOutcome int

const (
	ProcessExited ProcessOutcome = iota
	ProcessCancelled
)

// ProcessResult is what a command operation inspects to decide command_failure vs ok
// vs cancelled.
type ProcessResult struct {
	Outcome  ProcessOutcome
	ExitCode int
}

// ProcessRunner launches a single command with exact argv (no shell), streams its
// stdout/stderr line-by-line to Log, and converts Token cancellation into a hard kill
// of the whole process group -- never a graceful SIGTERM, since the operation will be
// restarted anyway.
type ProcessRunner struct {
	Log *zap.Logger
}

// Run blocks until the command exits or token is cancelled, whichever happens first.
func (r *ProcessRunner) Run(argv []string, workdir string, token *Token) (ProcessResult, error) {
	if len(argv) == 0 {
		return ProcessResult{}, errors.New("command argv must not be empty")
	}

	cmd := exec.Command(argv[0], argv[1:]...) // #nosec G204 -- argv is caller-controlled config, not shell-parsed
	cmd.Dir = workdir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return ProcessResult{}, errors.Wrap(err, "failed to open stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return ProcessResult{}, errors.Wrap(err, "failed to open stderr pipe")
	}

	cmdStr := strings.Join(argv, " ")

	if err := cmd.Start(); err != nil {
		return ProcessResult{}, errors.Wrapf(err, "failed to start [%s]", cmdStr)
	}

	var streamWg sync.WaitGroup
	streamWg.Add(2)
	go r.streamLines(&streamWg, stdout, cmdStr, "stdout")
	go r.streamLines(&streamWg, stderr, cmdStr, "stderr")

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	select {
	case waitErr := <-waitCh:
		streamWg.Wait()
		if waitErr == nil {
			return ProcessResult{Outcome: ProcessExited, ExitCode: 0}, nil
		}
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			return ProcessResult{Outcome: ProcessExited, ExitCode: exitErr.ExitCode()}, nil
		}
		return ProcessResult{}, errors.Wrapf(waitErr, "failed to wait for [%s]", cmdStr)
	case <-token.Done():
		r.kill(cmd, cmdStr)
		<-waitCh // reap so the process doesn't become a zombie
		streamWg.Wait()
		return ProcessResult{Outcome: ProcessCancelled}, nil
	}
}

func (r *ProcessRunner) kill(cmd *exec.Cmd, cmdStr string) {
	if cmd.Process == nil {
		return
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		r.Log.Warn(
			"process group kill failed, falling back to single-process kill",
			cage_zap.Tag("process"),
			zap.String("cmd", cmdStr),
			zap.Error(err),
		)
		_ = cmd.Process.Kill()
	}
}

func (r *ProcessRunner) streamLines(wg *sync.WaitGroup, rc io.ReadCloser, cmdStr, stream string) {
	defer wg.Done()

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		r.Log.Info(
			scanner.Text(),
			cage_zap.Tag("process", stream),
			zap.String("cmd", cmdStr),
		)
	}
}
