// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 SoNdA11

package telemetry

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Decode parses a JSON snapshot. It fails with ErrMalformedSnapshot when the
// payload is not a JSON object or lacks realPower/outputPower. Every other
// field is optional and defaulted.
func Decode(data []byte) (*Snapshot, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedSnapshot)
	}

	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}

	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: expected object, got %T", ErrMalformedSnapshot, raw)
	}

	return fromObject(obj)
}

// DecodeFrame decodes a frame according to its kind
func DecodeFrame(f Frame) (*Snapshot, error) {
	if f.Kind == FrameBinary {
		return DecodeCBOR(f.Data)
	}
	return Decode(f.Data)
}

// fromObject builds a Snapshot from a generic object tree. JSON and CBOR
// payloads both end up here.
func fromObject(obj map[string]interface{}) (*Snapshot, error) {
	realPower, ok := GetFloat(obj, "realPower")
	if !ok {
		return nil, fmt.Errorf("%w: missing realPower", ErrMalformedSnapshot)
	}
	outputPower, ok := GetFloat(obj, "outputPower")
	if !ok {
		return nil, fmt.Errorf("%w: missing outputPower", ErrMalformedSnapshot)
	}

	s := &Snapshot{
		RealPower:           realPower,
		OutputPower:         outputPower,
		OutputHR:            getMeasurement(obj, "outputHR"),
		Mode:                ParseMode(GetString(obj, "mode")),
		BoostType:           ParseBoostType(GetString(obj, "boostType")),
		SimBasePower:        getMeasurement(obj, "simBasePower"),
		Connected:           GetBool(obj, "connected"),
		ClientConnected:     GetBool(obj, "clientConn"),
		LocalVirtualAddress: GetString(obj, "localVirtualAddr"),
		TrainerAddress:      GetString(obj, "trainerAddress"),
		Devices:             []Device{},
		Reports:             map[string]IntegrityReport{},
	}
	s.BoostValue, _ = GetFloat(obj, "boostValue")

	seen := make(map[string]bool)
	for _, item := range GetSlice(obj, "discoveredDevices") {
		entry, ok := item.(map[string]interface{})
		if !ok {
			s.SkippedDevices++
			continue
		}
		dev := parseDevice(entry)
		if dev.Address == "" || seen[dev.Address] {
			s.SkippedDevices++
			continue
		}
		seen[dev.Address] = true
		s.Devices = append(s.Devices, dev)
	}

	for addr, item := range GetObject(obj, "integrityReports") {
		entry, ok := item.(map[string]interface{})
		if !ok || addr == "" {
			continue
		}
		s.Reports[addr] = parseReport(entry)
	}

	if entry := GetObject(obj, "integrity"); entry != nil {
		report := parseReport(entry)
		s.ActiveIntegrity = &report
	}

	return s, nil
}

func parseDevice(m map[string]interface{}) Device {
	rssi, _ := GetFloat(m, "rssi")
	return Device{
		Address:         strings.TrimSpace(GetString(m, "address")),
		Name:            GetString(m, "name"),
		RSSI:            int(rssi),
		HasCyclingPower: GetBool(m, "hasCyclingPower"),
		HasHeartRate:    GetBool(m, "hasHeartRate"),
	}
}

func parseReport(m map[string]interface{}) IntegrityReport {
	signals := GetObject(m, "signals")
	r := IntegrityReport{
		Classification: ParseClassification(GetString(m, "classification")),
		Score:          getMeasurement(m, "score"),
		Confidence:     getMeasurement(m, "confidence"),
		TargetAddress:  GetString(m, "targetAddress"),
		TargetName:     GetString(m, "targetName"),
		Signals: Signals{
			LatencyMeanMs:     getMeasurement(signals, "latencyMeanMs"),
			LatencyJitterMs:   getMeasurement(signals, "latencyJitterMs"),
			PowerNotifyHz:     getMeasurement(signals, "powerNotifyHz"),
			PowerCadenceDrift: getMeasurement(signals, "powerCadenceDrift"),
			StressDropRate:    getMeasurement(signals, "stressDropRate"),
		},
		ObservedOUI:      GetString(m, "observedOui"),
		VendorGuess:      GetString(m, "vendorGuess"),
		ManufacturerData: GetString(m, "manufacturerData"),
		GATTHash:         GetString(m, "gattHash"),
		Reasons:          []Reason{},
	}

	for _, item := range GetSlice(m, "reasons") {
		switch v := item.(type) {
		case string:
			if reason, ok := ParseReason(v); ok {
				r.Reasons = append(r.Reasons, reason)
			}
		case map[string]interface{}:
			reason, ok := ParseReason(GetString(v, "text"))
			if !ok {
				continue
			}
			switch strings.ToLower(GetString(v, "polarity")) {
			case "positive":
				reason.Polarity = PolarityPositive
			case "negative":
				reason.Polarity = PolarityNegative
			case "neutral":
				reason.Polarity = PolarityNeutral
			}
			r.Reasons = append(r.Reasons, reason)
		}
	}

	return r
}

// ParseReason splits the backend's "[+]", "[-]" and "[!]" prefixes off a
// reason line. "[!]" flags a warning and counts against the device.
// Untagged lines are neutral. Blank lines are rejected.
func ParseReason(s string) (Reason, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Reason{}, false
	}

	polarity := PolarityNeutral
	switch {
	case strings.HasPrefix(s, "[+]"):
		polarity = PolarityPositive
	case strings.HasPrefix(s, "[-]"), strings.HasPrefix(s, "[!]"):
		polarity = PolarityNegative
	}
	if polarity != PolarityNeutral {
		s = strings.TrimSpace(s[3:])
	}
	if s == "" {
		return Reason{}, false
	}

	return Reason{Text: s, Polarity: polarity}, true
}

func getMeasurement(m map[string]interface{}, key string) Measurement {
	v, ok := GetFloat(m, key)
	if !ok {
		return Measurement{}
	}
	return Some(v)
}

// Object value extraction helpers. Numbers arrive as float64 from JSON and
// as uint64/int64/float64 from CBOR.

// GetFloat extracts a number by key
func GetFloat(m map[string]interface{}, key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	case int:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	}
	return 0, false
}

// GetString extracts a string by key ("" when absent or mistyped)
func GetString(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	if val, ok := m[key].(string); ok {
		return val
	}
	return ""
}

// GetBool extracts a bool by key (false when absent or mistyped)
func GetBool(m map[string]interface{}, key string) bool {
	if m == nil {
		return false
	}
	if val, ok := m[key].(bool); ok {
		return val
	}
	return false
}

// GetSlice extracts an array by key
func GetSlice(m map[string]interface{}, key string) []interface{} {
	if m == nil {
		return nil
	}
	if val, ok := m[key].([]interface{}); ok {
		return val
	}
	return nil
}

// GetObject extracts a nested object by key
func GetObject(m map[string]interface{}, key string) map[string]interface{} {
	if m == nil {
		return nil
	}
	if val, ok := m[key].(map[string]interface{}); ok {
		return val
	}
	return nil
}
