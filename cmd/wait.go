// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 SoNdA11

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	waitTimeout   int
	waitConnected bool
)

var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Test connection by waiting for a valid snapshot",
	Long: `Wait for a valid snapshot on the connection until timeout.

This command connects to the bridge and waits for any frame that decodes as
a snapshot. Frames that fail to decode are counted and skipped. With
--connected it keeps waiting until the bridge reports a trainer link.

Exit codes:
  0 - Snapshot received before timeout
  1 - Timeout reached without receiving a valid snapshot
  2 - Connection error

Useful in scripts that must wait for the bridge to come up.`,
	RunE: runWait,
}

func init() {
	rootCmd.AddCommand(waitCmd)
	waitCmd.Flags().IntVar(&waitTimeout, "timeout", 10, "Timeout in seconds to wait for a snapshot")
	waitCmd.Flags().BoolVar(&waitConnected, "connected", false, "Wait until the bridge reports a connected trainer")
}

func runWait(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cmd.Context())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Argus Console - Snapshot Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", waitTimeout)
	fmt.Printf("Waiting for valid snapshot...\n\n")

	done := make(chan struct{})
	defer close(done)
	events := streamSnapshots(conn, done)

	timeout := time.After(time.Duration(waitTimeout) * time.Second)
	invalidFrames := 0

	for {
		select {
		case ev, ok := <-events:
			if !ok || ev.err != nil {
				fmt.Fprintf(os.Stderr, "Read error: %v\n", ev.err)
				os.Exit(2)
			}
			if ev.decodeErr != nil {
				invalidFrames++
				continue
			}
			if waitConnected && !ev.snap.Connected {
				continue
			}

			if invalidFrames > 0 {
				fmt.Printf("(skipped %d invalid frames)\n", invalidFrames)
			}
			s := ev.snap
			fmt.Printf("SUCCESS: Received valid snapshot\n")
			fmt.Printf("  Frame: %s, %d bytes\n", ev.frame.Kind, len(ev.frame.Data))
			fmt.Printf("  Mode: %s, Boost: %s\n", s.Mode, s.BoostType)
			fmt.Printf("  Trainer link: %t\n", s.Connected)
			fmt.Printf("  Devices: %d\n", len(s.Devices))
			return nil

		case <-timeout:
			what := "snapshot"
			if waitConnected {
				what = "snapshot with a connected trainer"
			}
			fmt.Fprintf(os.Stderr, "TIMEOUT: No valid %s received within %d seconds\n", what, waitTimeout)
			os.Exit(1)
		}
	}
}
