// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 SoNdA11

package telemetry

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================
// Validator
// ============================================================

func TestValidateSnapshot(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want []AnomalyType
	}{
		{
			name: "clean",
			snap: Snapshot{RealPower: 100, OutputPower: 120, OutputHR: Some(140), BoostType: BoostFixed, BoostValue: 20},
			want: nil,
		},
		{
			name: "negative power",
			snap: Snapshot{RealPower: -1, OutputPower: -2, BoostType: BoostFixed},
			want: []AnomalyType{AnomalyNegativePower, AnomalyNegativePower},
		},
		{
			name: "heart rate over ceiling",
			snap: Snapshot{OutputHR: Some(191), BoostType: BoostFixed},
			want: []AnomalyType{AnomalyHighHeartRate},
		},
		{
			name: "boost beyond percent range",
			snap: Snapshot{BoostType: BoostPercent, BoostValue: 150},
			want: []AnomalyType{AnomalyBoostRange},
		},
		{
			name: "positive rssi",
			snap: Snapshot{BoostType: BoostFixed, Devices: []Device{{Address: "AA:01", RSSI: 5}}},
			want: []AnomalyType{AnomalyInvalidRSSI},
		},
		{
			name: "skipped devices",
			snap: Snapshot{BoostType: BoostFixed, SkippedDevices: 2},
			want: []AnomalyType{AnomalyDuplicateDevice},
		},
		{
			name: "orphan report",
			snap: Snapshot{
				BoostType: BoostFixed,
				Devices:   []Device{{Address: "AA:01", RSSI: -50}},
				Reports:   map[string]IntegrityReport{"AA:01": {}, "ZZ:99": {}},
			},
			want: []AnomalyType{AnomalyOrphanReport},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateSnapshot(&tt.snap)
			got := []AnomalyType{}
			for _, e := range errs {
				got = append(got, e.Type)
				assert.NotEmpty(t, e.Error())
			}
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

// ============================================================
// Statistics
// ============================================================

func TestStatisticsUpdate(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewStatistics(start)

	s.Update(FrameText, nil, nil, start.Add(time.Second))
	s.Update(FrameBinary, nil, []ValidationError{{Type: AnomalyHighHeartRate}}, start.Add(2*time.Second))
	s.Update(FrameText, ErrMalformedSnapshot, nil, start.Add(4*time.Second))

	assert.Equal(t, uint64(3), s.TotalFrames)
	assert.Equal(t, uint64(2), s.Snapshots)
	assert.Equal(t, uint64(1), s.BinaryFrames)
	assert.Equal(t, uint64(1), s.MalformedFrames)
	assert.Equal(t, uint64(1), s.Anomalies)

	s.CalculateRates(start.Add(4 * time.Second))
	assert.InDelta(t, 0.75, s.FrameRate, 1e-9)
	assert.InDelta(t, 0.5, s.ErrorRate, 1e-9)

	out := s.String()
	assert.Contains(t, out, "Total Frames:")
	assert.Contains(t, out, "Malformed:")

	s.Reset(start)
	assert.Equal(t, uint64(0), s.TotalFrames)
	assert.Equal(t, start, s.StartTime)
}

// ============================================================
// Formatter
// ============================================================

func TestFormatSnapshot(t *testing.T) {
	s, err := Decode(snapshotJSON(t, map[string]interface{}{
		"localVirtualAddr":  "DE:AD:01",
		"trainerAddress":    "AA:01",
		"discoveredDevices": []interface{}{device("AA:01", "KICKR", -55), device("DE:AD:01", "", -20)},
		"integrity":         report("genuine", 40, 2),
	}))
	require.NoError(t, err)

	out := FormatSnapshot(s, time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC))

	assert.True(t, strings.HasPrefix(out, "[08:30:00.000] SNAPSHOT mode=sim"))
	assert.Contains(t, out, "real=100 W output=120 W HR=--")
	assert.Contains(t, out, "Trainer: AA:01")
	assert.Contains(t, out, "KICKR")
	assert.Contains(t, out, EmulatedSignal)
	assert.Contains(t, out, "(unnamed)")
	assert.Contains(t, out, "Integrity: GENUINE")
}

func TestFormatReport(t *testing.T) {
	r := IntegrityReport{
		Classification: ClassSpoofed,
		Score:          Some(0.125),
		Signals:        Signals{LatencyMeanMs: Some(12.34)},
		VendorGuess:    "Wahoo",
		Reasons: []Reason{
			{Text: "OUI matches vendor", Polarity: PolarityPositive},
			{Text: "GATT hash of known emulator", Polarity: PolarityNegative},
			{Text: "Seen for 40s", Polarity: PolarityNeutral},
		},
	}

	out := FormatReport("AA:01", r)

	assert.Contains(t, out, "AA:01: SPOOFED score=0.12")
	assert.Contains(t, out, "mean=12.3 ms jitter=unknown ms")
	assert.Contains(t, out, "Vendor:   Wahoo")
	assert.Contains(t, out, "OUI:      unknown")
	assert.Contains(t, out, "[+] OUI matches vendor")
	assert.Contains(t, out, "[-] GATT hash of known emulator")
	assert.Contains(t, out, "[ ] Seen for 40s")
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "42s", FormatUptime(42*time.Second))
	assert.Equal(t, "3m 5s", FormatUptime(3*time.Minute+5*time.Second))
	assert.Equal(t, "2h 10m", FormatUptime(2*time.Hour+10*time.Minute))
}
