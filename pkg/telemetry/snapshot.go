// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 SoNdA11

package telemetry

import (
	"strconv"
	"time"
)

// Measurement is an optional number. The zero value is absent.
type Measurement struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// Some returns a present measurement
func Some(v float64) Measurement {
	return Measurement{Value: v, Valid: true}
}

// Or returns the value, or def when absent
func (m Measurement) Or(def float64) float64 {
	if !m.Valid {
		return def
	}
	return m.Value
}

// String renders the value in its shortest form, or the unknown sentinel
func (m Measurement) String() string {
	if !m.Valid {
		return UnknownText
	}
	return strconv.FormatFloat(m.Value, 'f', -1, 64)
}

// Format renders the value with a fixed precision, or fallback when absent
func (m Measurement) Format(prec int, fallback string) string {
	if !m.Valid {
		return fallback
	}
	return strconv.FormatFloat(m.Value, 'f', prec, 64)
}

// Device is one discovered peer. Address is the identity key.
type Device struct {
	Address         string `json:"address"`
	Name            string `json:"name,omitempty"`
	RSSI            int    `json:"rssi"`
	HasCyclingPower bool   `json:"hasCyclingPower"`
	HasHeartRate    bool   `json:"hasHeartRate"`
}

// Label returns the display name, falling back to the address
func (d Device) Label() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Address
}

// Signals are the behavioral measurements behind an integrity verdict
type Signals struct {
	LatencyMeanMs     Measurement `json:"latencyMeanMs"`
	LatencyJitterMs   Measurement `json:"latencyJitterMs"`
	PowerNotifyHz     Measurement `json:"powerNotifyHz"`
	PowerCadenceDrift Measurement `json:"powerCadenceDrift"`
	StressDropRate    Measurement `json:"stressDropRate"`
}

// Reason is one annotated line of an integrity report
type Reason struct {
	Text     string   `json:"text"`
	Polarity Polarity `json:"polarity"`
}

// IntegrityReport is the backend's assessment of one peer device
type IntegrityReport struct {
	Classification   Classification `json:"classification"`
	Score            Measurement    `json:"score"`
	Confidence       Measurement    `json:"confidence"`
	TargetAddress    string         `json:"targetAddress,omitempty"`
	TargetName       string         `json:"targetName,omitempty"`
	Signals          Signals        `json:"signals"`
	ObservedOUI      string         `json:"observedOui,omitempty"`
	VendorGuess      string         `json:"vendorGuess,omitempty"`
	ManufacturerData string         `json:"manufacturerData,omitempty"`
	GATTHash         string         `json:"gattHash,omitempty"`
	Reasons          []Reason       `json:"reasons"`
}

// Clone returns a deep copy
func (r *IntegrityReport) Clone() *IntegrityReport {
	if r == nil {
		return nil
	}
	c := *r
	c.Reasons = append([]Reason(nil), r.Reasons...)
	return &c
}

// Snapshot is one decoded inbound message. It fully describes the appliance
// state at one instant and replaces the previous one.
type Snapshot struct {
	RealPower           float64
	OutputPower         float64
	OutputHR            Measurement
	Mode                Mode
	BoostType           BoostType
	BoostValue          float64
	SimBasePower        Measurement
	Connected           bool
	ClientConnected     bool
	LocalVirtualAddress string
	TrainerAddress      string
	Devices             []Device
	Reports             map[string]IntegrityReport
	ActiveIntegrity     *IntegrityReport

	// SkippedDevices counts list entries dropped for a missing or repeated address
	SkippedDevices int
}

// Report returns the integrity report for an address
func (s *Snapshot) Report(address string) (IntegrityReport, bool) {
	r, ok := s.Reports[address]
	return r, ok
}

// FrameKind distinguishes text (JSON) from binary (CBOR) frames
type FrameKind int

const (
	FrameText FrameKind = iota
	FrameBinary
)

func (k FrameKind) String() string {
	if k == FrameBinary {
		return "binary"
	}
	return "text"
}

// Frame is one raw inbound message as delivered by the transport
type Frame struct {
	Kind     FrameKind
	Data     []byte
	Received time.Time
}

// TextFrame wraps a JSON payload
func TextFrame(data []byte) Frame {
	return Frame{Kind: FrameText, Data: data, Received: time.Now()}
}

// BinaryFrame wraps a CBOR payload
func BinaryFrame(data []byte) Frame {
	return Frame{Kind: FrameBinary, Data: data, Received: time.Now()}
}
