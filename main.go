// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 SoNdA11
//
// Argus Console - terminal client for the argus-recon trainer bridge
//
// Connects to the bridge's snapshot stream over WebSocket or serial and
// renders it as a live dashboard, or logs and tests it in text mode.

package main

import (
	"os"

	"github.com/SoNdA11/argus-console/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
