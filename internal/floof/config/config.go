// Copyright (C) 2020 The floof Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package config binds a parsed floof.yaml document to the operation variants
// internal/floof's Dispatcher executes. The operation grammar is a tagged union with
// string/list/map sugar a flattening library like viper cannot express, so binding is
// done with gopkg.in/yaml.v3's yaml.Node-level custom unmarshalling.
package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/LukasKalbertodt/floof/internal/cage/os/file"
	"github.com/LukasKalbertodt/floof/internal/floof"
)

// Load reads and binds the document at path into the task map a Dispatcher expects.
func Load(path string) (map[string][]floof.Operation, error) {
	if exists, _, err := file.Exists(path); err != nil {
		return nil, err
	} else if !exists {
		return nil, errors.Errorf("config file [%s] does not exist", path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config [%s]", path)
	}

	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config [%s]", path)
	}

	tasks := make(map[string][]floof.Operation, len(doc))
	for name, ops := range doc {
		seq := make([]floof.Operation, len(ops))
		for i, op := range ops {
			seq[i] = op.Operation
		}
		tasks[name] = seq
	}
	return tasks, nil
}

// document is the top-level mapping of task name to its operation sequence.
type document map[string][]opValue

// opValue unmarshals one of the three operation-value shapes described in spec.md §6:
// a bare string, a list of strings (both sugar for command), or a mapping with
// exactly one operation key.
type opValue struct {
	Operation floof.Operation
}

func (v *opValue) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode, yaml.SequenceNode:
		op, err := decodeCommandValue(node)
		if err != nil {
			return err
		}
		v.Operation = op
		return nil
	case yaml.MappingNode:
		return v.decodeNamedOperation(node)
	default:
		return errors.Errorf("line %d: operation must be a string, a list, or a mapping", node.Line)
	}
}

// knownOperationKeys are the only mapping keys decodeNamedOperation accepts.
var knownOperationKeys = map[string]bool{
	"command": true, "watch": true, "http": true, "on-change": true,
	"set-workdir": true, "reload": true, "run-task": true, "concurrently": true,
}

func (v *opValue) decodeNamedOperation(node *yaml.Node) error {
	if len(node.Content) != 2 {
		return errors.Errorf("line %d: operation mapping must have exactly one key", node.Line)
	}

	key := node.Content[0].Value
	val := node.Content[1]

	if !knownOperationKeys[key] {
		return errors.Errorf("line %d: unknown operation key [%s]", node.Line, key)
	}

	switch key {
	case "command":
		op, err := decodeCommandValue(val)
		if err != nil {
			return err
		}
		v.Operation = op

	case "set-workdir":
		var path string
		if err := val.Decode(&path); err != nil {
			return errors.Wrapf(err, "line %d: set-workdir requires a string path", val.Line)
		}
		v.Operation = floof.SetWorkdirOp{Path: path}

	case "run-task":
		var name string
		if err := val.Decode(&name); err != nil {
			return errors.Wrapf(err, "line %d: run-task requires a string task name", val.Line)
		}
		v.Operation = floof.RunTaskOp{Name: name}

	case "reload":
		v.Operation = floof.ReloadOp{}

	case "on-change":
		var inner opValue
		if err := inner.UnmarshalYAML(val); err != nil {
			return err
		}
		v.Operation = floof.OnChangeOp{Inner: inner.Operation}

	case "concurrently":
		var children []opValue
		if err := val.Decode(&children); err != nil {
			return errors.Wrapf(err, "line %d: concurrently requires a list of operations", val.Line)
		}
		ops := make([]floof.Operation, len(children))
		for i, c := range children {
			ops[i] = c.Operation
		}
		v.Operation = floof.ConcurrentlyOp{Children: ops}

	case "watch":
		op, err := decodeWatch(val)
		if err != nil {
			return err
		}
		v.Operation = op

	case "http":
		op, err := decodeHTTP(val)
		if err != nil {
			return err
		}
		v.Operation = op
	}

	return nil
}

// decodeCommandValue handles the command operation's own sugar: a bare string
// (whitespace-split into argv), a list of strings (taken as argv literally), or a
// mapping with a required "run" field (itself string-or-list) and an optional
// "workdir".
func decodeCommandValue(node *yaml.Node) (floof.CommandOp, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return floof.CommandOp{}, errors.Wrapf(err, "line %d: invalid command string", node.Line)
		}
		return floof.CommandOp{Argv: splitArgv(s)}, nil

	case yaml.SequenceNode:
		var argv []string
		if err := node.Decode(&argv); err != nil {
			return floof.CommandOp{}, errors.Wrapf(err, "line %d: command list must be strings", node.Line)
		}
		return floof.CommandOp{Argv: argv}, nil

	case yaml.MappingNode:
		if err := checkKnownKeys(node, commandMappingKeys); err != nil {
			return floof.CommandOp{}, err
		}

		var cfg struct {
			Run     yaml.Node `yaml:"run"`
			Workdir string    `yaml:"workdir"`
		}
		if err := node.Decode(&cfg); err != nil {
			return floof.CommandOp{}, errors.Wrapf(err, "line %d: invalid command mapping", node.Line)
		}
		if cfg.Run.Kind == 0 {
			return floof.CommandOp{}, errors.Errorf("line %d: command mapping requires [run]", node.Line)
		}
		runOp, err := decodeCommandValue(&cfg.Run)
		if err != nil {
			return floof.CommandOp{}, err
		}
		runOp.Workdir = cfg.Workdir
		return runOp, nil

	default:
		return floof.CommandOp{}, errors.Errorf("line %d: command must be a string, a list, or a mapping", node.Line)
	}
}

// splitArgv collapses runs of ASCII whitespace, matching the round-trip property
// that "a b  c" produces ["a", "b", "c"].
func splitArgv(s string) []string {
	return strings.Fields(s)
}

// checkKnownKeys rejects any key in node's mapping content that isn't in allowed.
// node.Decode into a strict struct silently ignores unrecognized fields, so every
// operation-specific mapping is required to pass its keys through this first.
func checkKnownKeys(node *yaml.Node, allowed map[string]bool) error {
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if !allowed[key] {
			return errors.Errorf("line %d: unknown key [%s]", node.Content[i].Line, key)
		}
	}
	return nil
}

var commandMappingKeys = map[string]bool{"run": true, "workdir": true}

func decodeWatch(node *yaml.Node) (floof.WatchOp, error) {
	if err := checkKnownKeys(node, watchKeys); err != nil {
		return floof.WatchOp{}, err
	}

	var cfg struct {
		Paths      []string  `yaml:"paths"`
		DebounceMs int       `yaml:"debounce_ms"`
		Body       []opValue `yaml:"body"`
	}
	if err := node.Decode(&cfg); err != nil {
		return floof.WatchOp{}, errors.Wrapf(err, "line %d: invalid watch mapping", node.Line)
	}
	if len(cfg.Paths) == 0 {
		return floof.WatchOp{}, errors.Errorf("line %d: watch requires at least one path", node.Line)
	}

	body := make([]floof.Operation, len(cfg.Body))
	for i, o := range cfg.Body {
		body[i] = o.Operation
	}

	return floof.WatchOp{Paths: cfg.Paths, DebounceMs: cfg.DebounceMs, Body: body}, nil
}

var watchKeys = map[string]bool{"paths": true, "debounce_ms": true, "body": true}

func decodeHTTP(node *yaml.Node) (floof.HTTPOp, error) {
	if err := checkKnownKeys(node, httpKeys); err != nil {
		return floof.HTTPOp{}, err
	}

	var cfg struct {
		Proxy string `yaml:"proxy"`
		Serve string `yaml:"serve"`
		Addr  string `yaml:"addr"`
		WS    string `yaml:"ws-addr"`
	}
	if err := node.Decode(&cfg); err != nil {
		return floof.HTTPOp{}, errors.Wrapf(err, "line %d: invalid http mapping", node.Line)
	}
	if (cfg.Proxy == "") == (cfg.Serve == "") {
		return floof.HTTPOp{}, errors.Errorf("line %d: http requires exactly one of [proxy, serve]", node.Line)
	}
	if cfg.Addr == "" {
		cfg.Addr = "localhost:8030"
	}
	if cfg.WS == "" {
		cfg.WS = "localhost:8031"
	}
	return floof.HTTPOp{ProxyAddr: cfg.Proxy, ServePath: cfg.Serve, Addr: cfg.Addr, WSAddr: cfg.WS}, nil
}

var httpKeys = map[string]bool{"proxy": true, "serve": true, "addr": true, "ws-addr": true}
