// Copyright (C) 2020 The floof Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Root command floof reads a config file and runs its "default" task.
//
// Usage:
//
//	floof --config /path/to/floof.yaml
package root

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LukasKalbertodt/floof/internal/floof"
	"github.com/LukasKalbertodt/floof/internal/floof/config"
)

const defaultConfigPath = "floof.yaml"

// NewCommand returns the root cobra command: bare invocation runs the "default" task.
func NewCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "floof",
		Short: "Run the default task from a floof.yaml",
		Example: "floof --config /path/to/floof.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			os.Exit(RunTask(configPath, "default"))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to the task config file")

	return cmd
}

// RunTask loads configPath, builds a Dispatcher, and runs task under a root context
// cancelled on SIGINT/SIGTERM. It returns the process exit code: 0 on a clean
// cancellation-driven shutdown, non-zero on a config error or task failure.
func RunTask(configPath, task string) int {
	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %s\n", err)
		return 1
	}
	defer log.Sync() //nolint:errcheck

	tasks, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read config file [%s]: %s\n", configPath, err)
		return 1
	}

	configDir, err := absDir(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve config file directory: %s\n", err)
		return 1
	}

	dispatcher := &floof.Dispatcher{
		Tasks:  tasks,
		Runner: &floof.ProcessRunner{Log: log},
		Log:    log,
	}

	ctx := floof.NewRootContext(configDir)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, os.Interrupt)
	go func() {
		sig := <-sigCh
		log.Info("shutting down on signal", zap.String("signal", sig.String()))
		ctx.Token().Cancel()
	}()

	result := dispatcher.Run(task, ctx)

	switch {
	case result.Cancelled():
		return 0
	case result.Failed():
		fmt.Fprintf(os.Stderr, "task [%s] failed: %s\n", task, result.Err)
		return 1
	default:
		return 0
	}
}

func absDir(configPath string) (string, error) {
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return "", err
	}
	return filepath.Dir(abs), nil
}
