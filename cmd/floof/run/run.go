// Copyright (C) 2020 The floof Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Sub-command run executes a named task on demand, instead of the implicit "default"
// task the root command runs.
//
// Usage:
//
//	floof run --config /path/to/floof.yaml my_task
package run

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/LukasKalbertodt/floof/cmd/floof/root"
)

const defaultConfigPath = "floof.yaml"

// NewCommand returns the "run <task>" sub-command.
func NewCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:     "run <task>",
		Short:   "Run a named task",
		Args:    cobra.ExactArgs(1),
		Example: "floof run --config /path/to/floof.yaml my_task",
		RunE: func(cmd *cobra.Command, args []string) error {
			os.Exit(root.RunTask(configPath, args[0]))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to the task config file")

	return cmd
}
