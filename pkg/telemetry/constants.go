// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 SoNdA11

package telemetry

import (
	"errors"
	"strings"
	"time"
)

// Error classes surfaced by the reconciliation core. None of them is fatal.
var (
	// ErrMalformedSnapshot is returned when an inbound frame cannot be decoded
	// or lacks a required field. The tick is skipped.
	ErrMalformedSnapshot = errors.New("malformed snapshot")

	// ErrMissingElement is returned when a view target is not registered on
	// the page. Only the affected sub-update is skipped.
	ErrMissingElement = errors.New("missing element")

	// ErrStaleConnection marks a stream that has been silent for longer than
	// the configured threshold.
	ErrStaleConnection = errors.New("stale connection")
)

// Defaults
const (
	DefaultHistory        = 60
	DefaultStaleAfter     = 3 * time.Second
	DefaultPendingTimeout = 5 * time.Second
	DefaultLabelWidth     = 12
	MaxLogEntries         = 100

	BoostFixedMax   = 300
	BoostPercentMax = 100
	SimMax          = 600
	DefaultSimPower = 150

	// MaxHeartRate is the ceiling the appliance clamps its heart rate output to
	MaxHeartRate = 190
)

// Display sentinels
const (
	UnknownText     = "unknown"
	EmulatedSignal  = "EMULATED"
	MissingReadout  = "--"
	PlaceholderText = "No devices discovered yet"
)

// Mode is the appliance operating mode
type Mode string

const (
	ModeSim    Mode = "sim"
	ModeBridge Mode = "bridge"
)

// ParseMode maps a wire value to a Mode. Unknown values fall back to sim,
// which is the appliance's power-on mode.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeBridge)) {
		return ModeBridge
	}
	return ModeSim
}

// Toggle returns the other mode
func (m Mode) Toggle() Mode {
	if m == ModeBridge {
		return ModeSim
	}
	return ModeBridge
}

// BoostType selects how the boost value is applied in bridge mode.
// The constant values are the appliance's wire spelling.
type BoostType string

const (
	BoostFixed   BoostType = "fix"
	BoostPercent BoostType = "pct"
)

// ParseBoostType accepts both the short wire spelling and the long form
func ParseBoostType(s string) BoostType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pct", "percent":
		return BoostPercent
	default:
		return BoostFixed
	}
}

// String returns the long, human-readable name
func (b BoostType) String() string {
	if b == BoostPercent {
		return "percent"
	}
	return "fixed"
}

// Toggle returns the other boost type
func (b BoostType) Toggle() BoostType {
	if b == BoostPercent {
		return BoostFixed
	}
	return BoostPercent
}

// Unit returns the slider unit label
func (b BoostType) Unit() string {
	if b == BoostPercent {
		return "%"
	}
	return "W"
}

// Ceiling returns the slider range ceiling
func (b BoostType) Ceiling() int {
	if b == BoostPercent {
		return BoostPercentMax
	}
	return BoostFixedMax
}

// Classification is the integrity verdict for a peer device
type Classification string

const (
	ClassGenuine Classification = "genuine"
	ClassSuspect Classification = "suspect"
	ClassSpoofed Classification = "spoofed"
	ClassUnknown Classification = "unknown"
)

// ParseClassification maps a wire value to a Classification. The backend
// reports software emulators as "emulator".
func ParseClassification(s string) Classification {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "genuine":
		return ClassGenuine
	case "suspect":
		return ClassSuspect
	case "spoofed", "emulator":
		return ClassSpoofed
	default:
		return ClassUnknown
	}
}

// Polarity tags an integrity reason
type Polarity int

const (
	PolarityNeutral Polarity = iota
	PolarityPositive
	PolarityNegative
)

func (p Polarity) String() string {
	switch p {
	case PolarityPositive:
		return "positive"
	case PolarityNegative:
		return "negative"
	default:
		return "neutral"
	}
}

// Accent is a color role carried by page elements (hex, renderer-agnostic)
type Accent string

const (
	AccentSim     Accent = "#3b82f6"
	AccentBridge  Accent = "#f59e0b"
	AccentReal    Accent = "#647d8f"
	AccentSuccess Accent = "#22c55e"
	AccentMuted   Accent = "#94a3b8"
	AccentWarning Accent = "#eab308"
	AccentDanger  Accent = "#ef4444"
)

// ModeAccent returns the output series color for a mode
func ModeAccent(m Mode) Accent {
	if m == ModeBridge {
		return AccentBridge
	}
	return AccentSim
}

// ClassAccent returns the display color for a classification
func ClassAccent(c Classification) Accent {
	switch c {
	case ClassGenuine:
		return AccentSuccess
	case ClassSuspect:
		return AccentWarning
	case ClassSpoofed:
		return AccentDanger
	default:
		return AccentMuted
	}
}
