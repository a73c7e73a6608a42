// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 SoNdA11

package telemetry

import (
	"fmt"
	"sort"
)

// ElementID names a view target on the page
type ElementID string

// Dashboard elements
const (
	ElemReal          ElementID = "val-real"
	ElemOutput        ElementID = "val-out"
	ElemHeartRate     ElementID = "val-hr"
	ElemConnDot       ElementID = "conn-dot"
	ElemConnText      ElementID = "conn-text"
	ElemClientConn    ElementID = "client-conn"
	ElemDisconnect    ElementID = "btn-disconnect"
	ElemModeSim       ElementID = "mode-sim"
	ElemModeBridge    ElementID = "mode-bridge"
	ElemCtrlSim       ElementID = "ctrl-sim"
	ElemCtrlBridge    ElementID = "ctrl-bridge"
	ElemBoostFixed    ElementID = "btn-fix"
	ElemBoostPercent  ElementID = "btn-pct"
	ElemBoostSlider   ElementID = "slider-boost"
	ElemBoostLabel    ElementID = "lbl-boost"
	ElemBoostUnit     ElementID = "lbl-unit"
	ElemSimSlider     ElementID = "slider-sim"
	ElemSimLabel      ElementID = "lbl-sim"
	ElemPowerChart    ElementID = "power-chart"
	ElemDeviceList    ElementID = "device-list"
	ElemIntegrityBars ElementID = "integrity-chart"
	ElemIntegrity     ElementID = "integrity"
)

// Element is the retained state of one view target. Renderers read it;
// only the dispatcher writes it.
type Element struct {
	Text    string `json:"text,omitempty"`
	Value   int    `json:"value,omitempty"`
	Max     int    `json:"max,omitempty"`
	Active  bool   `json:"active,omitempty"`
	Hidden  bool   `json:"hidden,omitempty"`
	Focused bool   `json:"focused,omitempty"`
	Accent  Accent `json:"accent,omitempty"`
}

// Page is the retained set of view targets, keyed by id. Updates mutate
// elements in place; nothing is rebuilt per tick.
type Page struct {
	elements map[ElementID]*Element
}

// NewPage creates a page holding the given elements, zero-valued
func NewPage(ids ...ElementID) *Page {
	p := &Page{elements: make(map[ElementID]*Element, len(ids))}
	for _, id := range ids {
		p.elements[id] = &Element{}
	}
	return p
}

// DashboardPage creates the full dashboard with its power-on content
func DashboardPage() *Page {
	p := NewPage(
		ElemReal, ElemOutput, ElemHeartRate,
		ElemConnDot, ElemConnText, ElemClientConn, ElemDisconnect,
		ElemModeSim, ElemModeBridge, ElemCtrlSim, ElemCtrlBridge,
		ElemBoostFixed, ElemBoostPercent, ElemBoostSlider, ElemBoostLabel, ElemBoostUnit,
		ElemSimSlider, ElemSimLabel,
		ElemPowerChart, ElemDeviceList, ElemIntegrityBars, ElemIntegrity,
	)

	p.elements[ElemReal].Text = "0"
	p.elements[ElemOutput].Text = "0"
	p.elements[ElemHeartRate].Text = MissingReadout
	p.elements[ElemConnText].Text = LinkSearching.String()
	p.elements[ElemConnDot].Accent = AccentMuted
	p.elements[ElemDisconnect].Hidden = true
	p.elements[ElemModeSim].Active = true
	p.elements[ElemCtrlBridge].Hidden = true
	p.elements[ElemBoostFixed].Active = true
	p.elements[ElemBoostSlider].Max = BoostFixedMax
	p.elements[ElemBoostLabel].Text = "0"
	p.elements[ElemBoostUnit].Text = BoostFixed.Unit()
	p.elements[ElemSimSlider].Max = SimMax
	p.elements[ElemSimSlider].Value = DefaultSimPower
	p.elements[ElemSimLabel].Text = fmt.Sprintf("%d W", DefaultSimPower)
	p.elements[ElemPowerChart].Accent = AccentSim
	p.elements[ElemIntegrity].Text = UnknownText

	return p
}

// Element returns the element registered under id
func (p *Page) Element(id ElementID) (*Element, error) {
	e, ok := p.elements[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingElement, id)
	}
	return e, nil
}

// Has reports whether id is registered
func (p *Page) Has(id ElementID) bool {
	_, ok := p.elements[id]
	return ok
}

// Detach removes an element, as when a view panel is torn down
func (p *Page) Detach(id ElementID) {
	delete(p.elements, id)
}

// SetFocus moves input focus to id; an empty id clears focus
func (p *Page) SetFocus(id ElementID) error {
	if id != "" && !p.Has(id) {
		return fmt.Errorf("%w: %s", ErrMissingElement, id)
	}
	for key, e := range p.elements {
		e.Focused = key == id
	}
	return nil
}

// Focused returns the id of the focused element, if any
func (p *Page) Focused() ElementID {
	for id, e := range p.elements {
		if e.Focused {
			return id
		}
	}
	return ""
}

// IDs returns the registered element ids, sorted
func (p *Page) IDs() []ElementID {
	ids := make([]ElementID, 0, len(p.elements))
	for id := range p.elements {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Get returns a copy of an element, or the zero value when absent
func (p *Page) Get(id ElementID) Element {
	if e, ok := p.elements[id]; ok {
		return *e
	}
	return Element{}
}

// Clone returns a deep copy safe to hand to a renderer
func (p *Page) Clone() *Page {
	c := &Page{elements: make(map[ElementID]*Element, len(p.elements))}
	for id, e := range p.elements {
		copied := *e
		c.elements[id] = &copied
	}
	return c
}
