// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 SoNdA11

package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/SoNdA11/argus-console/pkg/telemetry"
	"github.com/spf13/cobra"
)

var (
	devicesTimeout int
	devicesReports bool
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List devices discovered by the bridge",
	Long: `Watch the snapshot stream and collect the devices the bridge has discovered.

The device list is reconciled across snapshots for the whole timeout, so
devices that drop out of the scan are reported as lost. At the end the final
list is printed in scan order with capability tags, signal strength and the
integrity verdict for each device that has one.

Exit codes:
  0 - At least one device found
  1 - No devices found before the timeout
  2 - Connection error`,
	RunE: runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
	devicesCmd.Flags().IntVar(&devicesTimeout, "timeout", 5, "Seconds to watch the scan")
	devicesCmd.Flags().BoolVar(&devicesReports, "reports", false, "Print the full integrity report for each device")
}

func runDevices(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cmd.Context())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Argus Console - Device Discovery\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n\n", devicesTimeout)

	done := make(chan struct{})
	defer close(done)
	events := streamSnapshots(conn, done)

	rows := telemetry.NewRowSet()
	state := telemetry.NewUIState()
	var last *telemetry.Snapshot
	snapshots := 0

	deadline := time.After(time.Duration(devicesTimeout) * time.Second)

collect:
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				break collect
			}
			if ev.err != nil {
				fmt.Printf("READ FAILED: %v\n", ev.err)
				os.Exit(2)
			}
			if ev.decodeErr != nil {
				logger.Printf("devices: %v", ev.decodeErr)
				continue
			}

			snapshots++
			last = ev.snap
			result := rows.Reconcile(ev.snap.Devices, ev.snap.TrainerAddress, ev.snap.LocalVirtualAddress, &state, ev.frame.Received)
			for _, addr := range result.Created {
				if r, err := rows.Row(rows.Handle(addr)); err == nil {
					fmt.Printf("Device found: %s (%s) %s\n", r.Label, r.Address, r.Signal)
				}
			}
			for _, addr := range result.Removed {
				fmt.Printf("Device lost:  %s\n", addr)
			}

		case <-deadline:
			break collect
		}
	}

	// Summary
	fmt.Printf("\n--- Discovery summary ---\n")
	fmt.Printf("Snapshots received: %d\n", snapshots)

	if last == nil {
		fmt.Printf("TIMEOUT: No snapshot received in %ds\n", devicesTimeout)
		os.Exit(1)
	}

	keys := rows.Keys()
	fmt.Printf("Devices found: %d\n", len(keys))
	if len(keys) == 0 {
		fmt.Printf("No devices discovered. Check that the bridge is scanning.\n")
		os.Exit(1)
	}

	fmt.Println()
	for _, r := range rows.Rows() {
		if r.Placeholder {
			continue
		}
		marker := " "
		if r.Active {
			marker = "*"
		}
		tags := ""
		if len(r.Tags) > 0 {
			tags = " [" + strings.Join(r.Tags, " ") + "]"
		}
		fmt.Printf("%s %-24s %s  %s%s\n", marker, r.Label, r.Address, r.Signal, tags)
		if rep, ok := last.Report(r.Address); ok {
			fmt.Printf("    Integrity: %s\n", telemetry.FormatVerdict(&rep))
			if devicesReports {
				fmt.Print(telemetry.FormatReport(r.Address, rep))
			}
		}
	}

	return nil
}
