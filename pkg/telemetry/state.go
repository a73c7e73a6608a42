// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 SoNdA11

package telemetry

import "time"

// Pending tracks an optimistic value the user sent but the appliance has not
// echoed yet. Last writer wins: a newer Set replaces the older value and
// restarts the window.
type Pending[T comparable] struct {
	Value    T         `json:"value"`
	Active   bool      `json:"active"`
	Deadline time.Time `json:"deadline"`
}

// Set records an unconfirmed local value
func (p *Pending[T]) Set(v T, now time.Time, window time.Duration) {
	p.Value = v
	p.Active = true
	p.Deadline = now.Add(window)
}

// Clear drops the pending value
func (p *Pending[T]) Clear() {
	var zero T
	p.Value = zero
	p.Active = false
	p.Deadline = time.Time{}
}

// Admit decides whether an incoming server value may overwrite local state.
// With nothing pending everything is admitted. A matching echo confirms and
// clears the pending value. A differing value is rejected until the window
// expires, after which the pending value is abandoned.
func (p *Pending[T]) Admit(incoming T, now time.Time) bool {
	if !p.Active {
		return true
	}
	if incoming == p.Value {
		p.Clear()
		return true
	}
	if now.Before(p.Deadline) {
		return false
	}
	p.Clear()
	return true
}

// Expired reports whether an active pending value has outlived its window
func (p *Pending[T]) Expired(now time.Time) bool {
	return p.Active && !now.Before(p.Deadline)
}

// UIState is everything the dashboard owns beyond the page itself. It is
// plain data so it can be copied into a View or dumped for debugging.
type UIState struct {
	SelectedAddress string    `json:"selectedAddress"`
	Mode            Mode      `json:"mode"`
	BoostType       BoostType `json:"boostType"`

	// Applied flags are false until the first snapshot configured the
	// mode- and boost-type-dependent elements.
	ModeApplied      bool `json:"modeApplied"`
	BoostTypeApplied bool `json:"boostTypeApplied"`

	Selection        Pending[string]    `json:"selectionPending"`
	Boost            Pending[int]       `json:"boostPending"`
	Sim              Pending[int]       `json:"simPending"`
	PendingMode      Pending[Mode]      `json:"modePending"`
	PendingBoostType Pending[BoostType] `json:"boostTypePending"`
}

// NewUIState returns the power-on state: simulation mode, fixed boost,
// nothing selected
func NewUIState() UIState {
	return UIState{
		Mode:      ModeSim,
		BoostType: BoostFixed,
	}
}

// ResolveSelection applies the selection rule for one snapshot and returns
// the address that should be active afterwards.
//
// An empty selection adopts trainerAddress, or failing that the first
// device. A non-empty selection is sticky across reordering and only moves
// when the appliance reports a different trainerAddress. While a local
// selection is unconfirmed, a differing trainerAddress is treated as stale
// and ignored until the pending window lapses.
func (s *UIState) ResolveSelection(trainer string, devices []Device, now time.Time) string {
	if s.Selection.Active && !s.Selection.Admit(trainer, now) {
		return s.SelectedAddress
	}

	switch {
	case s.SelectedAddress == "":
		if trainer != "" {
			s.SelectedAddress = trainer
		} else if len(devices) > 0 {
			s.SelectedAddress = devices[0].Address
		}
	case trainer != "" && trainer != s.SelectedAddress:
		s.SelectedAddress = trainer
	}

	return s.SelectedAddress
}
