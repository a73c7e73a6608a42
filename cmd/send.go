// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 SoNdA11

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/SoNdA11/argus-console/pkg/telemetry"
	"github.com/spf13/cobra"
)

var (
	sendTimeout int
	sendNoWait  bool
)

var sendCmd = &cobra.Command{
	Use:   "send key=value",
	Short: "Send one command to the bridge and wait for its echo",
	Long: `Send a single command to the bridge and wait until a snapshot reflects it.

Commands:
  mode=sim|bridge           switch operating mode
  boostType=fix|pct         switch boost type (also: fixed, percent)
  boost=N                   set the boost value
  sim=N                     set the simulation base power (0-600 W)
  trainer=AA:BB:CC:DD:EE:FF select the trainer to bridge
  disconnect                drop the current trainer

The bridge has no acknowledgement message; a command counts as applied once a
snapshot carries the new value. Disconnect is confirmed by the snapshot's
connected flag going false.

Exit codes:
  0 - Command echoed back
  1 - No echo before timeout
  2 - Connection error`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().IntVar(&sendTimeout, "timeout", 5, "Timeout in seconds to wait for the echo")
	sendCmd.Flags().BoolVar(&sendNoWait, "no-wait", false, "Send and exit without waiting for the echo")
}

// applied reports whether a snapshot reflects the command
func applied(c telemetry.Command, s *telemetry.Snapshot) bool {
	if c.Disconnect {
		return !s.Connected
	}
	return c.Echoed(s)
}

func runSend(cmd *cobra.Command, args []string) error {
	command, err := telemetry.ParseCommand(args[0])
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection(cmd.Context())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Argus Console - Send Command\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Command: %s\n\n", command)

	done := make(chan struct{})
	defer close(done)
	events := streamSnapshots(conn, done)

	startTime := time.Now()
	if err := sendCommand(conn, command); err != nil {
		fmt.Printf("SEND FAILED: %v\n", err)
		os.Exit(2)
	}
	logger.Printf("send: %s", command)

	if sendNoWait {
		fmt.Printf("Sent %s\n", command)
		return nil
	}

	timeout := time.After(time.Duration(sendTimeout) * time.Second)
	snapshots := 0

	for {
		select {
		case ev, ok := <-events:
			if !ok || ev.err != nil {
				fmt.Printf("READ FAILED: %v\n", ev.err)
				os.Exit(2)
			}
			if ev.decodeErr != nil {
				continue
			}
			snapshots++
			if applied(command, ev.snap) {
				rtt := time.Since(startTime)
				fmt.Printf("ECHO after %d snapshot(s), rtt=%v\n", snapshots, rtt.Round(time.Millisecond))
				return nil
			}

		case <-timeout:
			fmt.Printf("TIMEOUT: %s not reflected in %d snapshot(s) within %ds\n", command, snapshots, sendTimeout)
			os.Exit(1)
		}
	}
}
