// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 SoNdA11

package telemetry

import (
	"fmt"
	"time"
)

// Statistics tracks stream health
type Statistics struct {
	StartTime      time.Time `json:"startTime"`
	LastUpdateTime time.Time `json:"lastUpdateTime"`

	// Counters
	TotalFrames     uint64 `json:"totalFrames"`
	Snapshots       uint64 `json:"snapshots"`
	MalformedFrames uint64 `json:"malformedFrames"`
	BinaryFrames    uint64 `json:"binaryFrames"`
	Anomalies       uint64 `json:"anomalies"`
	StaleEvents     uint64 `json:"staleEvents"`
	CommandsSent    uint64 `json:"commandsSent"`
	CommandFailures uint64 `json:"commandFailures"`
	FocusDiscards   uint64 `json:"focusDiscards"`

	// Rates (calculated)
	FrameRate float64 `json:"frameRate"` // frames/sec
	ErrorRate float64 `json:"errorRate"` // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics(now time.Time) *Statistics {
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update records one inbound frame and the outcome of decoding and
// validating it
func (s *Statistics) Update(kind FrameKind, decodeErr error, anomalies []ValidationError, now time.Time) {
	s.TotalFrames++
	if kind == FrameBinary {
		s.BinaryFrames++
	}
	s.LastUpdateTime = now

	if decodeErr != nil {
		s.MalformedFrames++
		return
	}

	s.Snapshots++
	s.Anomalies += uint64(len(anomalies))
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates(now time.Time) {
	elapsed := now.Sub(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.MalformedFrames+s.Anomalies) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates(s.LastUpdateTime)

	var validPercent, malformedPercent float64
	if s.TotalFrames > 0 {
		validPercent = float64(s.Snapshots) * 100.0 / float64(s.TotalFrames)
		malformedPercent = float64(s.MalformedFrames) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := s.LastUpdateTime.Sub(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Snapshots:       %8d (%.1f%%)\n", s.Snapshots, validPercent)

	if s.BinaryFrames > 0 {
		result += fmt.Sprintf("  CBOR Frames:      %5d\n", s.BinaryFrames)
	}
	if s.MalformedFrames > 0 {
		result += fmt.Sprintf("Malformed:       %8d (%.1f%%)\n", s.MalformedFrames, malformedPercent)
	}
	if s.Anomalies > 0 {
		result += fmt.Sprintf("Anomalies:       %8d\n", s.Anomalies)
	}
	if s.StaleEvents > 0 {
		result += fmt.Sprintf("Stale Events:    %8d\n", s.StaleEvents)
	}
	if s.CommandsSent > 0 || s.CommandFailures > 0 {
		result += fmt.Sprintf("Commands Sent:   %8d\n", s.CommandsSent)
		result += fmt.Sprintf("Command Errors:  %8d\n", s.CommandFailures)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset(now time.Time) {
	*s = Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}
