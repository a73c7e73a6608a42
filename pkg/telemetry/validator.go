// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 SoNdA11

package telemetry

import "fmt"

// AnomalyType represents different kinds of snapshot anomalies
type AnomalyType int

const (
	AnomalyNegativePower AnomalyType = iota
	AnomalyHighHeartRate
	AnomalyInvalidRSSI
	AnomalyOrphanReport
	AnomalyDuplicateDevice
	AnomalyBoostRange
)

func (a AnomalyType) String() string {
	switch a {
	case AnomalyNegativePower:
		return "NEGATIVE_POWER"
	case AnomalyHighHeartRate:
		return "HIGH_HEART_RATE"
	case AnomalyInvalidRSSI:
		return "INVALID_RSSI"
	case AnomalyOrphanReport:
		return "ORPHAN_REPORT"
	case AnomalyDuplicateDevice:
		return "DUPLICATE_DEVICE"
	case AnomalyBoostRange:
		return "BOOST_RANGE"
	default:
		return "UNKNOWN"
	}
}

// ValidationError represents a snapshot that decoded but carries
// implausible content
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateSnapshot checks a decoded snapshot for anomalies.
// Returns a slice of validation errors (empty if the snapshot is clean).
// Anomalies never block rendering.
func ValidateSnapshot(s *Snapshot) []ValidationError {
	errors := []ValidationError{}

	if s.RealPower < 0 {
		errors = append(errors, ValidationError{
			Type:    AnomalyNegativePower,
			Message: fmt.Sprintf("Negative real power=%g", s.RealPower),
			Details: map[string]interface{}{"realPower": s.RealPower},
		})
	}
	if s.OutputPower < 0 {
		errors = append(errors, ValidationError{
			Type:    AnomalyNegativePower,
			Message: fmt.Sprintf("Negative output power=%g", s.OutputPower),
			Details: map[string]interface{}{"outputPower": s.OutputPower},
		})
	}

	if s.OutputHR.Valid && s.OutputHR.Value > MaxHeartRate {
		errors = append(errors, ValidationError{
			Type:    AnomalyHighHeartRate,
			Message: fmt.Sprintf("Heart rate=%g above appliance ceiling (max %d)", s.OutputHR.Value, MaxHeartRate),
			Details: map[string]interface{}{"outputHR": s.OutputHR.Value, "max": MaxHeartRate},
		})
	}

	if s.BoostValue < 0 || int(s.BoostValue) > s.BoostType.Ceiling() {
		errors = append(errors, ValidationError{
			Type:    AnomalyBoostRange,
			Message: fmt.Sprintf("Boost value=%g outside 0-%d %s", s.BoostValue, s.BoostType.Ceiling(), s.BoostType.Unit()),
			Details: map[string]interface{}{"boostValue": s.BoostValue, "max": s.BoostType.Ceiling()},
		})
	}

	known := make(map[string]bool, len(s.Devices))
	for _, dev := range s.Devices {
		known[dev.Address] = true
		if dev.RSSI > 0 {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidRSSI,
				Message: fmt.Sprintf("Device %s reports positive RSSI=%d", dev.Address, dev.RSSI),
				Details: map[string]interface{}{"address": dev.Address, "rssi": dev.RSSI},
			})
		}
	}

	if s.SkippedDevices > 0 {
		errors = append(errors, ValidationError{
			Type:    AnomalyDuplicateDevice,
			Message: fmt.Sprintf("%d device entries without a unique address", s.SkippedDevices),
			Details: map[string]interface{}{"skipped": s.SkippedDevices},
		})
	}

	for addr := range s.Reports {
		if !known[addr] {
			errors = append(errors, ValidationError{
				Type:    AnomalyOrphanReport,
				Message: fmt.Sprintf("Integrity report for %s which is not in the device list", addr),
				Details: map[string]interface{}{"address": addr},
			})
		}
	}

	return errors
}
