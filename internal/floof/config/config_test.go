// Copyright (C) 2020 The floof Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LukasKalbertodt/floof/internal/floof"
	"github.com/LukasKalbertodt/floof/internal/floof/config"
)

func load(t *testing.T, yamlText string) map[string][]floof.Operation {
	t.Helper()
	path := filepath.Join(t.TempDir(), "floof.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlText), 0o644))
	tasks, err := config.Load(path)
	require.NoError(t, err)
	return tasks
}

func TestBareStringSplitsArgvOnWhitespace(t *testing.T) {
	tasks := load(t, "default:\n  - \"a b  c\"\n")
	require.Equal(t, []floof.Operation{floof.CommandOp{Argv: []string{"a", "b", "c"}}}, tasks["default"])
}

func TestStringListIsArgvLiteral(t *testing.T) {
	tasks := load(t, "default:\n  - [\"echo\", \"hi there\"]\n")
	require.Equal(t, []floof.Operation{floof.CommandOp{Argv: []string{"echo", "hi there"}}}, tasks["default"])
}

func TestCommandMappingWithRunAndWorkdir(t *testing.T) {
	tasks := load(t, "default:\n  - command:\n      run: [\"pwd\"]\n      workdir: /tmp\n")
	require.Equal(t, []floof.Operation{floof.CommandOp{Argv: []string{"pwd"}, Workdir: "/tmp"}}, tasks["default"])
}

func TestWatchWithOnChangeBody(t *testing.T) {
	tasks := load(t, ""+
		"default:\n"+
		"  - watch:\n"+
		"      paths: [\"x\"]\n"+
		"      debounce_ms: 50\n"+
		"      body:\n"+
		"        - on-change: \"echo C\"\n"+
		"        - \"echo A\"\n")

	require.Len(t, tasks["default"], 1)
	watch, ok := tasks["default"][0].(floof.WatchOp)
	require.True(t, ok)
	require.Equal(t, []string{"x"}, watch.Paths)
	require.Equal(t, 50, watch.DebounceMs)
	require.Equal(t, floof.OnChangeOp{Inner: floof.CommandOp{Argv: []string{"echo", "C"}}}, watch.Body[0])
	require.Equal(t, floof.CommandOp{Argv: []string{"echo", "A"}}, watch.Body[1])
}

func TestHTTPRequiresExactlyOneOfProxyOrServe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "floof.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default:\n  - http:\n      addr: localhost:8030\n      ws-addr: localhost:8031\n"), 0o644))

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestHTTPProxyModeDefaultsAddrs(t *testing.T) {
	tasks := load(t, "default:\n  - http:\n      proxy: 127.0.0.1:3000\n")

	op, ok := tasks["default"][0].(floof.HTTPOp)
	require.True(t, ok)
	require.Equal(t, "127.0.0.1:3000", op.ProxyAddr)
	require.Equal(t, "localhost:8030", op.Addr)
	require.Equal(t, "localhost:8031", op.WSAddr)
}

func TestUnknownOperationKeyIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "floof.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default:\n  - bogus: true\n"), 0o644))

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestUnknownKeyInsideHTTPMappingIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "floof.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default:\n  - http:\n      proxy: 127.0.0.1:3000\n      bogus: x\n"), 0o644))

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestUnknownKeyInsideWatchMappingIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "floof.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default:\n  - watch:\n      paths: [\"x\"]\n      bogus: x\n"), 0o644))

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestUnknownKeyInsideCommandMappingIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "floof.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default:\n  - command:\n      run: [\"pwd\"]\n      bogus: x\n"), 0o644))

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestRunTaskAndConcurrently(t *testing.T) {
	tasks := load(t, ""+
		"default:\n"+
		"  - concurrently:\n"+
		"      - run-task: foo\n"+
		"      - \"echo hi\"\n"+
		"foo:\n"+
		"  - \"echo foo\"\n")

	conc, ok := tasks["default"][0].(floof.ConcurrentlyOp)
	require.True(t, ok)
	require.Equal(t, floof.RunTaskOp{Name: "foo"}, conc.Children[0])
}
