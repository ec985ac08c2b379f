// Copyright (C) 2020 The floof Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package floof_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LukasKalbertodt/floof/internal/cage/testkit"

	"github.com/LukasKalbertodt/floof/internal/floof"
)

// countGenerations returns how many lines genFile holds, or 0 if it doesn't exist yet.
func countGenerations(t *testing.T, genFile string) int {
	t.Helper()
	raw, err := os.ReadFile(genFile)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return 0
	}
	return len(lines)
}

// TestWatchRestartHasNoGenerationOverlap drives a real watch operation end to end: a
// body that records (via a lock file holding its shell's pid) whether it's ever started
// while a previous generation's shell was still alive, and appends one line to a
// generation-count file per start. A killed generation leaves its lock file behind, so
// the pid in it is checked rather than the file's mere presence. A single touch inside the watched directory must kill the in-flight body
// and start a new generation after debounce_ms, without the two ever overlapping.
func TestWatchRestartHasNoGenerationOverlap(t *testing.T) {
	dir := t.TempDir()
	watched := filepath.Join(dir, "watched")
	require.NoError(t, os.MkdirAll(watched, 0o755))

	lockFile := filepath.Join(dir, "lock")
	overlapFile := filepath.Join(dir, "overlap")
	genFile := filepath.Join(dir, "generations")

	script := `
echo gen >> "` + genFile + `"
if [ -f "` + lockFile + `" ] && kill -0 "$(cat "` + lockFile + `")" 2>/dev/null; then touch "` + overlapFile + `"; fi
echo $$ > "` + lockFile + `"
sleep 0.3
rm -f "` + lockFile + `"
`

	d := &floof.Dispatcher{
		Tasks: map[string][]floof.Operation{
			"default": {
				floof.WatchOp{
					Paths:      []string{watched},
					DebounceMs: 50,
					Body:       []floof.Operation{floof.CommandOp{Argv: []string{"sh", "-c", script}}},
				},
			},
		},
		Runner: &floof.ProcessRunner{Log: testkit.NewZapLogger()},
		Log:    testkit.NewZapLogger(),
	}

	ctx := floof.NewRootContext(dir)
	resultCh := make(chan floof.Result, 1)
	go func() { resultCh <- d.Run("default", ctx) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(lockFile)
		return err == nil
	}, time.Second, 10*time.Millisecond, "first generation never started")

	generationsBeforeTouch := countGenerations(t, genFile)

	require.NoError(t, os.WriteFile(filepath.Join(watched, "touched"), []byte("x"), 0o644))

	require.Eventually(t, func() bool {
		return countGenerations(t, genFile) > generationsBeforeTouch
	}, 2*time.Second, 10*time.Millisecond, "touching the watched file never started a new generation")

	ctx.Token().Cancel()

	select {
	case result := <-resultCh:
		require.True(t, result.Cancelled())
	case <-time.After(2 * time.Second):
		t.Fatal("watch never returned after cancellation")
	}

	_, err := os.Stat(overlapFile)
	require.True(t, os.IsNotExist(err), "two watch body generations overlapped")
}
