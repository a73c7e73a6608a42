// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 SoNdA11

package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/SoNdA11/argus-console/pkg/telemetry"
	"github.com/spf13/cobra"
)

var (
	watchReports   bool
	watchAnomalies bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Display the snapshot stream in human-readable format",
	Long: `Continuously decode and display bridge snapshots as they arrive.

Each snapshot is printed as a block with timestamp, mode, boost, power
readouts, the device list and the active integrity verdict. Frames that fail
to decode are reported and skipped.

Supports both serial and WebSocket connections.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchReports, "reports", false, "Also print every per-device integrity report")
	watchCmd.Flags().BoolVar(&watchAnomalies, "anomalies", true, "Report validation anomalies")
}

func runWatch(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cmd.Context())
	if err != nil {
		return err
	}
	defer conn.Close()

	stderr := log.New(io.MultiWriter(os.Stderr, logger.Writer()), "", log.LstdFlags)

	fmt.Printf("Argus Console - Snapshot Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := telemetry.NewStatistics(time.Now())
	defer func() {
		stats.CalculateRates(time.Now())
		fmt.Fprint(os.Stderr, "\n"+stats.String())
	}()

	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			if isClosed(err) {
				stderr.Printf("Connection closed")
				return nil
			}
			return fmt.Errorf("read failed: %w", err)
		}

		snap, decodeErr := telemetry.DecodeFrame(frame)
		if decodeErr != nil {
			stats.Update(frame.Kind, decodeErr, nil, frame.Received)
			fmt.Printf("[ERROR] %v\n", decodeErr)
			continue
		}

		anomalies := telemetry.ValidateSnapshot(snap)
		stats.Update(frame.Kind, nil, anomalies, frame.Received)

		fmt.Print(telemetry.FormatSnapshot(snap, frame.Received))
		if watchAnomalies {
			for _, a := range anomalies {
				fmt.Printf("  [ANOMALY] %s\n", a.Error())
			}
		}
		if watchReports && len(snap.Reports) > 0 {
			fmt.Print(telemetry.FormatReports(snap.Reports))
		}
	}
}
