// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TOW Contributors

// Package main implements an out-of-process echo mod.
// It logs every tank move it sees and refuses world changes into "void".
//
// Build with:
//
//	go build -o echo.mod ./plugins/echo
//
// and drop echo.mod into the mods directory. The host launches it as a
// child process and talks to it over net/rpc.
package main

import (
	"os"

	"github.com/hashicorp/go-hclog"

	"github.com/towgame/tow/pkg/mod"
)

func main() {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:       "echo",
		Level:      hclog.Info,
		Output:     os.Stderr,
		JSONFormat: true,
	})
	mod.Serve(newEcho(logger))
}
