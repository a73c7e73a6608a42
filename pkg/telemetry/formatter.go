// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 SoNdA11

package telemetry

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// FormatSnapshot formats a snapshot into a human-readable block
func FormatSnapshot(s *Snapshot, at time.Time) string {
	timestamp := at.Format("15:04:05.000")

	link := "SEARCHING"
	if s.Connected {
		link = "LINKED"
	}
	result := fmt.Sprintf("[%s] SNAPSHOT mode=%s boost=%s/%s link=%s app=%t\n",
		timestamp, s.Mode, formatNumber(s.BoostValue), s.BoostType, link, s.ClientConnected)
	result += fmt.Sprintf("  Power: real=%s W output=%s W HR=%s\n",
		formatNumber(s.RealPower), formatNumber(s.OutputPower), s.OutputHR.Format(0, MissingReadout))
	if s.SimBasePower.Valid {
		result += fmt.Sprintf("  Sim Base: %s W\n", s.SimBasePower)
	}
	if s.TrainerAddress != "" {
		result += fmt.Sprintf("  Trainer: %s\n", s.TrainerAddress)
	}
	if s.LocalVirtualAddress != "" {
		result += fmt.Sprintf("  Virtual: %s\n", s.LocalVirtualAddress)
	}
	result += fmt.Sprintf("  Devices: %d", len(s.Devices))
	if s.SkippedDevices > 0 {
		result += fmt.Sprintf(" (%d skipped)", s.SkippedDevices)
	}
	result += "\n"
	for _, dev := range s.Devices {
		result += "    " + FormatDevice(dev, s.LocalVirtualAddress) + "\n"
	}
	if s.ActiveIntegrity != nil {
		result += fmt.Sprintf("  Integrity: %s\n", FormatVerdict(s.ActiveIntegrity))
	}

	return result
}

// FormatDevice formats one device as a single line
func FormatDevice(d Device, localVirtual string) string {
	signal := fmt.Sprintf("%d dBm", d.RSSI)
	if localVirtual != "" && d.Address == localVirtual {
		signal = EmulatedSignal
	}

	tags := []string{}
	if d.HasCyclingPower {
		tags = append(tags, TagPower)
	}
	if d.HasHeartRate {
		tags = append(tags, TagHeartRate)
	}

	name := d.Name
	if name == "" {
		name = "(unnamed)"
	}
	return fmt.Sprintf("%-17s  %-20s  %8s  %s", d.Address, name, signal, strings.Join(tags, ","))
}

// FormatVerdict formats the classification headline of a report
func FormatVerdict(r *IntegrityReport) string {
	result := strings.ToUpper(string(r.Classification))
	if r.Score.Valid {
		result += fmt.Sprintf(" score=%s", r.Score.Format(2, UnknownText))
	}
	if r.Confidence.Valid {
		result += fmt.Sprintf(" confidence=%s", r.Confidence.Format(2, UnknownText))
	}
	if r.TargetName != "" || r.TargetAddress != "" {
		result += fmt.Sprintf(" target=%s", strings.TrimSpace(r.TargetName+" "+r.TargetAddress))
	}
	return result
}

// FormatReport formats a full integrity report
func FormatReport(address string, r IntegrityReport) string {
	result := fmt.Sprintf("%s: %s\n", address, FormatVerdict(&r))
	result += fmt.Sprintf("  Latency:  mean=%s ms jitter=%s ms\n",
		r.Signals.LatencyMeanMs.Format(1, UnknownText), r.Signals.LatencyJitterMs.Format(1, UnknownText))
	result += fmt.Sprintf("  Notify:   %s Hz  drift=%s  drops=%s\n",
		r.Signals.PowerNotifyHz.Format(1, UnknownText),
		r.Signals.PowerCadenceDrift.Format(3, UnknownText),
		r.Signals.StressDropRate.Format(3, UnknownText))

	fields := []struct{ name, value string }{
		{"OUI", r.ObservedOUI},
		{"Vendor", r.VendorGuess},
		{"Mfr Data", r.ManufacturerData},
		{"GATT", r.GATTHash},
	}
	for _, f := range fields {
		value := f.value
		if value == "" {
			value = UnknownText
		}
		result += fmt.Sprintf("  %-9s %s\n", f.name+":", value)
	}

	for _, reason := range r.Reasons {
		result += fmt.Sprintf("  %s %s\n", reasonMarker(reason.Polarity), reason.Text)
	}

	return result
}

// FormatReports formats every report, sorted by address
func FormatReports(reports map[string]IntegrityReport) string {
	addrs := make([]string, 0, len(reports))
	for addr := range reports {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	var b strings.Builder
	for _, addr := range addrs {
		b.WriteString(FormatReport(addr, reports[addr]))
	}
	return b.String()
}

func reasonMarker(p Polarity) string {
	switch p {
	case PolarityPositive:
		return "[+]"
	case PolarityNegative:
		return "[-]"
	default:
		return "[ ]"
	}
}

// FormatUptime converts a duration to a compact human-readable form
func FormatUptime(d time.Duration) string {
	seconds := int64(d / time.Second)
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	minutes := seconds / 60
	seconds %= 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	hours := minutes / 60
	minutes %= 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
