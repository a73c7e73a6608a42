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
	probeDuration int
	probeVerbose  bool
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test snapshot stream stability",
	Long: `Listen to the snapshot stream for a fixed time without sending anything.

Every frame is decoded and validated. Gaps longer than the stale threshold
are reported, and a summary with frame rate, decode failures and anomalies
is printed at the end. Useful for debugging connection stability issues.

Exit codes:
  0 - Stream stayed up with no gaps
  1 - Stream dropped, went stale or carried no valid snapshot
  2 - Connection error`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeDuration, "duration", 30, "Test duration in seconds")
	probeCmd.Flags().BoolVarP(&probeVerbose, "verbose", "v", false, "Print every frame")
}

func runProbe(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(cmd.Context())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Snapshot Stream Stability Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Duration: %d seconds\n", probeDuration)
	fmt.Printf("Stale after: %s\n\n", settings.StaleAfter)

	done := make(chan struct{})
	defer close(done)
	events := streamSnapshots(conn, done)

	start := time.Now()
	endTime := start.Add(time.Duration(probeDuration) * time.Second)
	stats := telemetry.NewStatistics(start)
	lastValid := start
	gaps := 0
	var longest time.Duration

	heartbeat := time.NewTicker(time.Second)
	defer heartbeat.Stop()

	fmt.Printf("Listening for snapshots...\n\n")

	for time.Now().Before(endTime) {
		select {
		case ev, ok := <-events:
			if !ok || ev.err != nil {
				fmt.Printf("\n[%s] Connection error: %v\n", time.Now().Format("15:04:05.000"), ev.err)
				printProbeResults(stats, gaps, longest)
				fmt.Printf("Result: FAILED (connection error)\n")
				os.Exit(1)
			}

			if ev.decodeErr != nil {
				stats.Update(ev.frame.Kind, ev.decodeErr, nil, ev.frame.Received)
				fmt.Printf("[%s] %s frame, %d bytes: %v\n",
					ev.frame.Received.Format("15:04:05.000"), ev.frame.Kind, len(ev.frame.Data), ev.decodeErr)
				continue
			}

			anomalies := telemetry.ValidateSnapshot(ev.snap)
			stats.Update(ev.frame.Kind, nil, anomalies, ev.frame.Received)

			gap := ev.frame.Received.Sub(lastValid)
			if gap > longest {
				longest = gap
			}
			if gap > settings.StaleAfter {
				gaps++
				fmt.Printf("[%s] GAP: %v without a snapshot\n",
					ev.frame.Received.Format("15:04:05.000"), gap.Round(time.Millisecond))
			}
			lastValid = ev.frame.Received

			if probeVerbose {
				fmt.Printf("[%s] %s frame, %d bytes, %d device(s)\n",
					ev.frame.Received.Format("15:04:05.000"), ev.frame.Kind, len(ev.frame.Data), len(ev.snap.Devices))
			}
			for _, a := range anomalies {
				fmt.Printf("[%s] ANOMALY: %s\n", ev.frame.Received.Format("15:04:05.000"), a.Error())
			}

		case now := <-heartbeat.C:
			if silence := now.Sub(lastValid); silence > settings.StaleAfter {
				fmt.Printf("[%s] %v\n", now.Format("15:04:05.000"), telemetry.ErrStaleConnection)
			} else if !probeVerbose {
				fmt.Printf("[%s] Still receiving... (%.0fs remaining)\n",
					now.Format("15:04:05.000"), time.Until(endTime).Seconds())
			}
		}
	}

	if trailing := time.Since(lastValid); trailing > settings.StaleAfter {
		gaps++
		if trailing > longest {
			longest = trailing
		}
	}

	printProbeResults(stats, gaps, longest)

	if stats.Snapshots == 0 || gaps > 0 {
		fmt.Printf("Result: FAILED (stream not stable)\n")
		os.Exit(1)
	}
	fmt.Printf("Result: PASSED (stream stable)\n")
	return nil
}

func printProbeResults(stats *telemetry.Statistics, gaps int, longest time.Duration) {
	stats.CalculateRates(time.Now())
	fmt.Printf("\n--- Test Results ---\n")
	fmt.Print(stats.String())
	fmt.Printf("Gaps:     %d (longest %v)\n", gaps, longest.Round(time.Millisecond))
}
