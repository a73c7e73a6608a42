// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 SoNdA11

package telemetry

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Control pairs a slider with the label echoing its value
type Control struct {
	Slider ElementID
	Label  ElementID
	Format func(int) string
}

// Dashboard controls
var (
	BoostControl = Control{
		Slider: ElemBoostSlider,
		Label:  ElemBoostLabel,
		Format: strconv.Itoa,
	}
	SimControl = Control{
		Slider: ElemSimSlider,
		Label:  ElemSimLabel,
		Format: func(v int) string { return fmt.Sprintf("%d W", v) },
	}
)

// Guard keeps sliders in step with the appliance without fighting the user.
// It never emits commands.
type Guard struct {
	// Discarded counts server values dropped because the slider had focus
	Discarded int
	// Deferred counts server values dropped while a local value was pending
	Deferred int
}

// Sync writes value into the control's slider and label unless the slider
// holds input focus or a local value is still awaiting its echo. It reports
// whether the value was applied. Both elements are resolved before anything
// is written.
func (g *Guard) Sync(page *Page, c Control, value int, pending *Pending[int], now time.Time) (bool, error) {
	slider, err := page.Element(c.Slider)
	if err != nil {
		return false, err
	}
	label, err := page.Element(c.Label)
	if err != nil {
		return false, err
	}

	if slider.Focused {
		g.Discarded++
		return false, nil
	}
	if pending != nil && !pending.Admit(value, now) {
		g.Deferred++
		return false, nil
	}

	setControl(slider, label, c, value)
	return true, nil
}

// setControl writes a slider and its label. The slider is clamped to its
// range; the label shows the value as given.
func setControl(slider, label *Element, c Control, value int) {
	slider.Value = clamp(value, 0, slider.Max)
	format := c.Format
	if format == nil {
		format = strconv.Itoa
	}
	label.Text = format(value)
}

// ApplyMode reconfigures the mode toggles, the visible control group and
// the output chart accent. Missing elements are skipped and reported
// together.
func ApplyMode(page *Page, mode Mode) error {
	var errs []error
	set := func(id ElementID, fn func(*Element)) {
		e, err := page.Element(id)
		if err != nil {
			errs = append(errs, err)
			return
		}
		fn(e)
	}

	set(ElemModeSim, func(e *Element) { e.Active = mode == ModeSim })
	set(ElemModeBridge, func(e *Element) { e.Active = mode == ModeBridge })
	set(ElemCtrlSim, func(e *Element) { e.Hidden = mode != ModeSim })
	set(ElemCtrlBridge, func(e *Element) { e.Hidden = mode != ModeBridge })
	set(ElemPowerChart, func(e *Element) { e.Accent = ModeAccent(mode) })

	return errors.Join(errs...)
}

// ApplyBoostType reconfigures the boost toggles, unit label and slider
// ceiling, clamping the current slider value into the new range
func ApplyBoostType(page *Page, bt BoostType) error {
	var errs []error
	set := func(id ElementID, fn func(*Element)) {
		e, err := page.Element(id)
		if err != nil {
			errs = append(errs, err)
			return
		}
		fn(e)
	}

	set(ElemBoostFixed, func(e *Element) { e.Active = bt == BoostFixed })
	set(ElemBoostPercent, func(e *Element) { e.Active = bt == BoostPercent })
	set(ElemBoostUnit, func(e *Element) { e.Text = bt.Unit() })
	set(ElemBoostSlider, func(e *Element) {
		e.Max = bt.Ceiling()
		e.Value = clamp(e.Value, 0, e.Max)
	})

	return errors.Join(errs...)
}

func clamp(v, lo, hi int) int {
	if hi > lo && v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}
