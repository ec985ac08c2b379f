// Copyright (C) 2020 The floof Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package floof contains sub-packages which provide the CLI commands, the internal
// runtime (internal/floof, internal/watch, internal/reload, internal/proxy) which
// supports them, and the internal "standard library" (internal/cage/*, internal/third_party)
// carried over from the environment this module was extracted from.
package floof

// expand godoc content for the base import path
import (
	_ "github.com/LukasKalbertodt/floof/cmd/floof/root"
	_ "github.com/LukasKalbertodt/floof/cmd/floof/run"
	_ "github.com/LukasKalbertodt/floof/internal/floof"
)
