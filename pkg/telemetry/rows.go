// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 SoNdA11

package telemetry

import (
	"fmt"
	"time"
)

// Capability tags shown on a row
const (
	TagPower     = "PWR"
	TagHeartRate = "HR"
)

// RowHandle addresses a row slot in a RowSet. Handles stay valid for as long
// as the row lives; a removed row's slot may be reused.
type RowHandle int

// NoRow is returned when no row exists for a key
const NoRow RowHandle = -1

// Row is the client-owned projection of one Device
type Row struct {
	Address     string   `json:"address"`
	Label       string   `json:"label"`
	Name        string   `json:"name,omitempty"`
	Signal      string   `json:"signal"`
	RSSI        int      `json:"rssi"`
	Tags        []string `json:"tags,omitempty"`
	Active      bool     `json:"active"`
	Placeholder bool     `json:"placeholder,omitempty"`
	Emulated    bool     `json:"emulated,omitempty"`

	// Updates counts in-place refreshes since the row was created
	Updates int `json:"updates"`
}

// ReconcileResult lists the keys touched by one Reconcile call
type ReconcileResult struct {
	Created []string
	Updated []string
	Removed []string
}

// Changed reports whether any row was created or removed
func (r ReconcileResult) Changed() bool {
	return len(r.Created) > 0 || len(r.Removed) > 0
}

// RowSet is the keyed device list. Rows live in an arena of slots and are
// found through an address index, so a device keeps the same row for as
// long as it stays in range.
type RowSet struct {
	slots []Row
	live  []bool
	free  []RowHandle

	index map[string]RowHandle
	order []RowHandle

	placeholder RowHandle
}

// NewRowSet creates an empty list holding only the placeholder row
func NewRowSet() *RowSet {
	rs := &RowSet{
		index:       make(map[string]RowHandle),
		placeholder: NoRow,
	}
	rs.ensurePlaceholder()
	return rs
}

// Reconcile brings the rows in line with one snapshot's device list.
//
// Display order is the input order; rows are never sorted here. Rows whose
// address vanished are removed, new addresses get a row, and surviving rows
// are updated in place. The selection is resolved through state and marked
// on exactly one row (or none).
func (rs *RowSet) Reconcile(devices []Device, trainerAddress, localVirtual string, state *UIState, now time.Time) ReconcileResult {
	var result ReconcileResult

	present := make(map[string]bool, len(devices))
	unique := make([]Device, 0, len(devices))
	for _, dev := range devices {
		if dev.Address == "" || present[dev.Address] {
			continue
		}
		present[dev.Address] = true
		unique = append(unique, dev)
	}

	// Peers that left range
	for addr, h := range rs.index {
		if !present[addr] {
			rs.release(h)
			delete(rs.index, addr)
			result.Removed = append(result.Removed, addr)
		}
	}

	if len(unique) > 0 {
		rs.dropPlaceholder()
	}

	order := make([]RowHandle, 0, len(unique)+1)
	for _, dev := range unique {
		h, ok := rs.index[dev.Address]
		if ok {
			result.Updated = append(result.Updated, dev.Address)
		} else {
			h = rs.alloc()
			rs.index[dev.Address] = h
			result.Created = append(result.Created, dev.Address)
		}
		rs.fill(h, dev, localVirtual, !ok)
		order = append(order, h)
	}
	rs.order = order

	if len(unique) == 0 {
		rs.ensurePlaceholder()
	}

	selected := ""
	if state != nil {
		selected = state.ResolveSelection(trainerAddress, unique, now)
	}
	rs.MarkActive(selected)

	return result
}

// MarkActive flags the row for address as active and clears all others.
// An unknown or empty address leaves no row active.
func (rs *RowSet) MarkActive(address string) {
	for _, h := range rs.order {
		row := &rs.slots[h]
		row.Active = !row.Placeholder && address != "" && row.Address == address
	}
}

// Keys returns the device addresses in display order. The placeholder is
// not a device and is never included.
func (rs *RowSet) Keys() []string {
	keys := make([]string, 0, len(rs.order))
	for _, h := range rs.order {
		if !rs.slots[h].Placeholder {
			keys = append(keys, rs.slots[h].Address)
		}
	}
	return keys
}

// Rows returns copies of the rows in display order
func (rs *RowSet) Rows() []Row {
	rows := make([]Row, 0, len(rs.order))
	for _, h := range rs.order {
		row := rs.slots[h]
		row.Tags = append([]string(nil), row.Tags...)
		rows = append(rows, row)
	}
	return rows
}

// Len returns the number of displayed rows, placeholder included
func (rs *RowSet) Len() int {
	return len(rs.order)
}

// Handle returns the handle of the row keyed by address
func (rs *RowSet) Handle(address string) RowHandle {
	if h, ok := rs.index[address]; ok {
		return h
	}
	return NoRow
}

// Row returns the live row behind a handle
func (rs *RowSet) Row(h RowHandle) (*Row, error) {
	if h < 0 || int(h) >= len(rs.slots) || !rs.live[h] {
		return nil, fmt.Errorf("invalid row handle %d", h)
	}
	return &rs.slots[h], nil
}

// HasPlaceholder reports whether the empty-list row is showing
func (rs *RowSet) HasPlaceholder() bool {
	return rs.placeholder != NoRow
}

// Active returns the address of the active row, if any
func (rs *RowSet) Active() string {
	for _, h := range rs.order {
		if rs.slots[h].Active {
			return rs.slots[h].Address
		}
	}
	return ""
}

func (rs *RowSet) fill(h RowHandle, dev Device, localVirtual string, created bool) {
	row := &rs.slots[h]
	if !created {
		row.Updates++
	}
	row.Address = dev.Address
	row.Name = dev.Name
	row.Label = dev.Label()
	row.RSSI = dev.RSSI
	row.Emulated = localVirtual != "" && dev.Address == localVirtual
	if row.Emulated {
		row.Signal = EmulatedSignal
	} else {
		row.Signal = fmt.Sprintf("%d dBm", dev.RSSI)
	}

	row.Tags = row.Tags[:0]
	if dev.HasCyclingPower {
		row.Tags = append(row.Tags, TagPower)
	}
	if dev.HasHeartRate {
		row.Tags = append(row.Tags, TagHeartRate)
	}
}

func (rs *RowSet) alloc() RowHandle {
	if n := len(rs.free); n > 0 {
		h := rs.free[n-1]
		rs.free = rs.free[:n-1]
		rs.slots[h] = Row{}
		rs.live[h] = true
		return h
	}
	rs.slots = append(rs.slots, Row{})
	rs.live = append(rs.live, true)
	return RowHandle(len(rs.slots) - 1)
}

func (rs *RowSet) release(h RowHandle) {
	rs.slots[h] = Row{}
	rs.live[h] = false
	rs.free = append(rs.free, h)
}

func (rs *RowSet) ensurePlaceholder() {
	if rs.placeholder == NoRow {
		h := rs.alloc()
		rs.slots[h] = Row{Label: PlaceholderText, Placeholder: true}
		rs.placeholder = h
	}
	rs.order = []RowHandle{rs.placeholder}
}

func (rs *RowSet) dropPlaceholder() {
	if rs.placeholder == NoRow {
		return
	}
	rs.release(rs.placeholder)
	rs.placeholder = NoRow
}
