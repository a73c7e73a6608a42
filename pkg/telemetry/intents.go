// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 SoNdA11

package telemetry

import "fmt"

// Intent is one user interaction queued for the dispatcher
type Intent interface {
	apply(d *Dispatcher) error
}

// SelectTargetIntent picks a device row as the bridge target
type SelectTargetIntent struct{ Address string }

// BoostIntent sends a boost value
type BoostIntent struct{ Value int }

// SimIntent sends a simulated base power
type SimIntent struct{ Watts int }

// ModeIntent switches mode
type ModeIntent struct{ Mode Mode }

// BoostTypeIntent switches boost type
type BoostTypeIntent struct{ BoostType BoostType }

// DisconnectIntent drops the trainer link (already confirmed by the user)
type DisconnectIntent struct{}

// FocusIntent moves input focus; an empty Element releases it
type FocusIntent struct{ Element ElementID }

// LinkIntent reports the transport coming up or going down
type LinkIntent struct {
	Up   bool
	Info string
}

func (i SelectTargetIntent) apply(d *Dispatcher) error { return d.SelectTarget(i.Address) }
func (i BoostIntent) apply(d *Dispatcher) error        { return d.SendBoost(i.Value) }
func (i SimIntent) apply(d *Dispatcher) error          { return d.SendSim(i.Watts) }
func (i ModeIntent) apply(d *Dispatcher) error         { return d.SetMode(i.Mode) }
func (i BoostTypeIntent) apply(d *Dispatcher) error    { return d.SetBoostType(i.BoostType) }
func (i DisconnectIntent) apply(d *Dispatcher) error   { return d.Disconnect() }
func (i FocusIntent) apply(d *Dispatcher) error        { return d.SetFocus(i.Element) }

func (i LinkIntent) apply(d *Dispatcher) error {
	d.SetTransport(i.Up, i.Info)
	return nil
}

// Handle applies one intent and publishes the resulting view
func (d *Dispatcher) Handle(in Intent) error {
	if in == nil {
		return fmt.Errorf("nil intent")
	}
	err := in.apply(d)
	d.publish()
	return err
}
