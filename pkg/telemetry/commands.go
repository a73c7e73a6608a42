// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 SoNdA11

package telemetry

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Command is one outbound control message. Exactly one field is set; the
// appliance applies whichever key it finds.
type Command struct {
	Mode           *Mode      `json:"mode,omitempty"`
	BoostType      *BoostType `json:"boostType,omitempty"`
	Boost          *int       `json:"boost,omitempty"`
	Sim            *int       `json:"sim,omitempty"`
	TrainerAddress *string    `json:"trainerAddress,omitempty"`
	Disconnect     bool       `json:"disconnect,omitempty"`
}

// NewModeCommand switches between simulation and bridge
func NewModeCommand(m Mode) Command {
	return Command{Mode: &m}
}

// NewBoostTypeCommand selects fixed or percent boost
func NewBoostTypeCommand(bt BoostType) Command {
	return Command{BoostType: &bt}
}

// NewBoostCommand sets the boost amount (W or %)
func NewBoostCommand(value int) Command {
	return Command{Boost: &value}
}

// NewSimCommand sets the simulated base power in watts
func NewSimCommand(watts int) Command {
	return Command{Sim: &watts}
}

// NewSelectCommand asks the appliance to bridge to a different trainer
func NewSelectCommand(address string) Command {
	return Command{TrainerAddress: &address}
}

// NewDisconnectCommand drops the current trainer link
func NewDisconnectCommand() Command {
	return Command{Disconnect: true}
}

// Encode returns the JSON wire form
func (c Command) Encode() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode command: %w", err)
	}
	return data, nil
}

// Name returns the wire key the command carries
func (c Command) Name() string {
	switch {
	case c.Mode != nil:
		return "mode"
	case c.BoostType != nil:
		return "boostType"
	case c.Boost != nil:
		return "boost"
	case c.Sim != nil:
		return "sim"
	case c.TrainerAddress != nil:
		return "trainerAddress"
	case c.Disconnect:
		return "disconnect"
	default:
		return "empty"
	}
}

func (c Command) String() string {
	switch {
	case c.Mode != nil:
		return fmt.Sprintf("MODE %s", *c.Mode)
	case c.BoostType != nil:
		return fmt.Sprintf("BOOST_TYPE %s", *c.BoostType)
	case c.Boost != nil:
		return fmt.Sprintf("BOOST %d", *c.Boost)
	case c.Sim != nil:
		return fmt.Sprintf("SIM %d W", *c.Sim)
	case c.TrainerAddress != nil:
		return fmt.Sprintf("SELECT %s", *c.TrainerAddress)
	case c.Disconnect:
		return "DISCONNECT"
	default:
		return "EMPTY"
	}
}

// ParseCommand builds a command from a "key=value" argument, as typed on the
// command line (mode=bridge, boostType=pct, boost=20, sim=180,
// trainerAddress=AA:BB:..., disconnect).
func ParseCommand(arg string) (Command, error) {
	key, value, _ := strings.Cut(strings.TrimSpace(arg), "=")
	value = strings.TrimSpace(value)

	switch strings.ToLower(key) {
	case "mode":
		switch strings.ToLower(value) {
		case string(ModeSim), string(ModeBridge):
			return NewModeCommand(ParseMode(value)), nil
		}
		return Command{}, fmt.Errorf("invalid mode %q (use sim or bridge)", value)
	case "boosttype":
		switch strings.ToLower(value) {
		case "fix", "fixed", "pct", "percent":
			return NewBoostTypeCommand(ParseBoostType(value)), nil
		}
		return Command{}, fmt.Errorf("invalid boost type %q (use fix or pct)", value)
	case "boost":
		n, err := strconv.Atoi(value)
		if err != nil {
			return Command{}, fmt.Errorf("invalid boost value %q: %w", value, err)
		}
		return NewBoostCommand(n), nil
	case "sim":
		n, err := strconv.Atoi(value)
		if err != nil {
			return Command{}, fmt.Errorf("invalid sim power %q: %w", value, err)
		}
		if n < 0 || n > SimMax {
			return Command{}, fmt.Errorf("sim power %d out of range (0-%d)", n, SimMax)
		}
		return NewSimCommand(n), nil
	case "trainer", "traineraddress", "select":
		if value == "" {
			return Command{}, fmt.Errorf("trainer address is required")
		}
		return NewSelectCommand(value), nil
	case "disconnect":
		return NewDisconnectCommand(), nil
	default:
		return Command{}, fmt.Errorf("unknown command %q", key)
	}
}

// Echoed reports whether a snapshot reflects this command's effect
func (c Command) Echoed(s *Snapshot) bool {
	if s == nil {
		return false
	}
	switch {
	case c.Mode != nil:
		return s.Mode == *c.Mode
	case c.BoostType != nil:
		return s.BoostType == *c.BoostType
	case c.Boost != nil:
		return int(s.BoostValue) == *c.Boost
	case c.Sim != nil:
		return s.SimBasePower.Valid && int(s.SimBasePower.Value) == *c.Sim
	case c.TrainerAddress != nil:
		return s.TrainerAddress == *c.TrainerAddress
	case c.Disconnect:
		return !s.Connected
	default:
		return false
	}
}
