// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 SoNdA11

package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeRows(rs *RowSet) []string {
	out := []string{}
	for _, r := range rs.Rows() {
		if r.Active {
			out = append(out, r.Address)
		}
	}
	return out
}

// ============================================================
// Key set
// ============================================================

func TestReconcileKeySetMatchesInput(t *testing.T) {
	steps := [][]string{
		{"AA:01", "BB:02", "CC:03"},
		{"CC:03", "AA:01"},
		{"DD:04", "CC:03", "EE:05", "AA:01"},
		{},
		{"BB:02"},
	}

	rs := NewRowSet()
	state := NewUIState()
	now := time.Now()

	for i, step := range steps {
		rs.Reconcile(plainDevices(step...), "", "", &state, now)
		assert.Equal(t, step, rs.Keys(), "step %d", i)
	}
}

func TestReconcileReportsChanges(t *testing.T) {
	rs := NewRowSet()
	state := NewUIState()
	now := time.Now()

	res := rs.Reconcile(plainDevices("AA:01", "BB:02"), "", "", &state, now)
	assert.ElementsMatch(t, []string{"AA:01", "BB:02"}, res.Created)
	assert.Empty(t, res.Removed)
	assert.True(t, res.Changed())

	res = rs.Reconcile(plainDevices("BB:02", "CC:03"), "", "", &state, now)
	assert.Equal(t, []string{"CC:03"}, res.Created)
	assert.Equal(t, []string{"BB:02"}, res.Updated)
	assert.Equal(t, []string{"AA:01"}, res.Removed)

	res = rs.Reconcile(plainDevices("BB:02", "CC:03"), "", "", &state, now)
	assert.False(t, res.Changed())
}

func TestReconcileSkipsDuplicateAddresses(t *testing.T) {
	rs := NewRowSet()
	state := NewUIState()

	in := []Device{{Address: "AA:01", Name: "first"}, {Address: "AA:01", Name: "second"}, {Address: ""}}
	rs.Reconcile(in, "", "", &state, time.Now())

	rows := rs.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "first", rows[0].Name)
}

// ============================================================
// Row content
// ============================================================

func TestReconcileRowFields(t *testing.T) {
	rs := NewRowSet()
	state := NewUIState()

	in := []Device{
		{Address: "AA:01", Name: "KICKR", RSSI: -55, HasCyclingPower: true, HasHeartRate: true},
		{Address: "DE:AD:01", Name: "Argus", RSSI: -20, HasCyclingPower: true},
		{Address: "CC:03", RSSI: -90},
	}
	rs.Reconcile(in, "", "DE:AD:01", &state, time.Now())

	rows := rs.Rows()
	require.Len(t, rows, 3)

	assert.Equal(t, "KICKR", rows[0].Label)
	assert.Equal(t, "-55 dBm", rows[0].Signal)
	assert.Equal(t, []string{TagPower, TagHeartRate}, rows[0].Tags)
	assert.False(t, rows[0].Emulated)

	assert.Equal(t, EmulatedSignal, rows[1].Signal)
	assert.True(t, rows[1].Emulated)
	assert.Equal(t, []string{TagPower}, rows[1].Tags)

	assert.Equal(t, "CC:03", rows[2].Label)
	assert.Empty(t, rows[2].Tags)
}

func TestReconcileUpdatesRowsInPlace(t *testing.T) {
	rs := NewRowSet()
	state := NewUIState()
	now := time.Now()

	rs.Reconcile([]Device{{Address: "AA:01", Name: "old", RSSI: -70}, {Address: "BB:02"}}, "", "", &state, now)
	h := rs.Handle("AA:01")
	require.NotEqual(t, NoRow, h)

	rs.Reconcile([]Device{{Address: "BB:02"}, {Address: "AA:01", Name: "new", RSSI: -40, HasHeartRate: true}}, "", "", &state, now)

	assert.Equal(t, h, rs.Handle("AA:01"))
	row, err := rs.Row(h)
	require.NoError(t, err)
	assert.Equal(t, "new", row.Label)
	assert.Equal(t, "-40 dBm", row.Signal)
	assert.Equal(t, []string{TagHeartRate}, row.Tags)
	assert.Equal(t, 1, row.Updates)
	assert.Equal(t, []string{"BB:02", "AA:01"}, rs.Keys())
}

func TestRowHandleInvalidAfterRemoval(t *testing.T) {
	rs := NewRowSet()
	state := NewUIState()
	now := time.Now()

	rs.Reconcile(plainDevices("AA:01", "BB:02"), "", "", &state, now)
	h := rs.Handle("AA:01")

	rs.Reconcile(plainDevices("BB:02"), "", "", &state, now)

	assert.Equal(t, NoRow, rs.Handle("AA:01"))
	_, err := rs.Row(h)
	assert.Error(t, err)
	_, err = rs.Row(NoRow)
	assert.Error(t, err)
}

// ============================================================
// Placeholder
// ============================================================

func TestScenarioEmptyListShowsPlaceholder(t *testing.T) {
	rs := NewRowSet()
	state := NewUIState()

	rs.Reconcile([]Device{}, "", "", &state, time.Now())

	rows := rs.Rows()
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Placeholder)
	assert.Equal(t, PlaceholderText, rows[0].Label)
	assert.False(t, rows[0].Active)
	assert.Empty(t, rs.Keys())
	assert.Empty(t, state.SelectedAddress)
}

func TestPlaceholderRemovedOnceDevicesAppear(t *testing.T) {
	rs := NewRowSet()
	state := NewUIState()
	now := time.Now()

	assert.True(t, rs.HasPlaceholder())

	rs.Reconcile(plainDevices("AA:01"), "", "", &state, now)
	assert.False(t, rs.HasPlaceholder())
	assert.Equal(t, 1, rs.Len())
	for _, r := range rs.Rows() {
		assert.False(t, r.Placeholder)
	}

	rs.Reconcile(nil, "", "", &state, now)
	assert.True(t, rs.HasPlaceholder())
	assert.Equal(t, 1, rs.Len())

	rs.Reconcile(nil, "", "", &state, now)
	assert.Equal(t, 1, rs.Len())
}

// ============================================================
// Selection
// ============================================================

func TestSelectionAdoptsTrainerThenFirstDevice(t *testing.T) {
	now := time.Now()

	withTrainer := NewUIState()
	rs := NewRowSet()
	rs.Reconcile(plainDevices("AA:01", "BB:02"), "BB:02", "", &withTrainer, now)
	assert.Equal(t, "BB:02", withTrainer.SelectedAddress)
	assert.Equal(t, []string{"BB:02"}, activeRows(rs))

	withoutTrainer := NewUIState()
	rs = NewRowSet()
	rs.Reconcile(plainDevices("AA:01", "BB:02"), "", "", &withoutTrainer, now)
	assert.Equal(t, "AA:01", withoutTrainer.SelectedAddress)
	assert.Equal(t, []string{"AA:01"}, activeRows(rs))
}

func TestSelectionStickyUnderReordering(t *testing.T) {
	rs := NewRowSet()
	state := NewUIState()
	now := time.Now()

	rs.Reconcile(plainDevices("AA:01", "BB:02", "CC:03"), "BB:02", "", &state, now)
	require.Equal(t, "BB:02", state.SelectedAddress)

	orders := [][]string{
		{"CC:03", "BB:02", "AA:01"},
		{"BB:02", "AA:01", "CC:03"},
		{"AA:01", "CC:03", "BB:02"},
	}
	for _, order := range orders {
		rs.Reconcile(plainDevices(order...), "", "", &state, now)
		assert.Equal(t, "BB:02", state.SelectedAddress)
		assert.Equal(t, []string{"BB:02"}, activeRows(rs))
	}
}

func TestScenarioSelectionSurvivesVanishedDevice(t *testing.T) {
	rs := NewRowSet()
	state := NewUIState()
	now := time.Now()

	rs.Reconcile(plainDevices("AA:01"), "AA:01", "", &state, now)
	assert.Equal(t, "AA:01", state.SelectedAddress)

	res := rs.Reconcile(plainDevices("BB:02"), "", "", &state, now)
	assert.Equal(t, []string{"AA:01"}, res.Removed)
	assert.Equal(t, []string{"BB:02"}, res.Created)
	assert.Equal(t, []string{"BB:02"}, rs.Keys())
	assert.Equal(t, "AA:01", state.SelectedAddress)
	assert.Empty(t, activeRows(rs))

	rs.Reconcile(plainDevices("BB:02", "AA:01"), "", "", &state, now)
	assert.Equal(t, []string{"AA:01"}, activeRows(rs))
}

func TestSelectionFollowsBackendReassignment(t *testing.T) {
	rs := NewRowSet()
	state := NewUIState()
	now := time.Now()

	rs.Reconcile(plainDevices("AA:01", "BB:02"), "AA:01", "", &state, now)
	rs.Reconcile(plainDevices("AA:01", "BB:02"), "BB:02", "", &state, now)

	assert.Equal(t, "BB:02", state.SelectedAddress)
	assert.Equal(t, []string{"BB:02"}, activeRows(rs))
}

func TestPendingSelectionBeatsStaleTrainerAddress(t *testing.T) {
	rs := NewRowSet()
	state := NewUIState()
	start := time.Now()

	rs.Reconcile(plainDevices("AA:01", "BB:02"), "AA:01", "", &state, start)

	// Local pick, not yet processed by the appliance
	state.SelectedAddress = "BB:02"
	state.Selection.Set("BB:02", start, 5*time.Second)

	rs.Reconcile(plainDevices("AA:01", "BB:02"), "AA:01", "", &state, start.Add(time.Second))
	assert.Equal(t, "BB:02", state.SelectedAddress)
	assert.True(t, state.Selection.Active)
	assert.Equal(t, []string{"BB:02"}, activeRows(rs))

	rs.Reconcile(plainDevices("AA:01", "BB:02"), "BB:02", "", &state, start.Add(2*time.Second))
	assert.Equal(t, "BB:02", state.SelectedAddress)
	assert.False(t, state.Selection.Active)
}

func TestPendingSelectionExpires(t *testing.T) {
	rs := NewRowSet()
	state := NewUIState()
	start := time.Now()

	state.SelectedAddress = "BB:02"
	state.Selection.Set("BB:02", start, 5*time.Second)

	rs.Reconcile(plainDevices("AA:01", "BB:02"), "AA:01", "", &state, start.Add(6*time.Second))

	assert.Equal(t, "AA:01", state.SelectedAddress)
	assert.False(t, state.Selection.Active)
}

// ============================================================
// Pending
// ============================================================

func TestPendingAdmit(t *testing.T) {
	start := time.Now()

	var p Pending[int]
	assert.True(t, p.Admit(7, start), "nothing pending admits everything")

	p.Set(42, start, time.Second)
	assert.False(t, p.Admit(10, start.Add(500*time.Millisecond)))
	assert.True(t, p.Active)
	assert.False(t, p.Expired(start.Add(500*time.Millisecond)))

	assert.True(t, p.Admit(42, start.Add(600*time.Millisecond)))
	assert.False(t, p.Active)

	p.Set(50, start, time.Second)
	p.Set(60, start, time.Second)
	assert.True(t, p.Admit(60, start), "last writer wins")

	p.Set(70, start, time.Second)
	assert.True(t, p.Expired(start.Add(time.Second)))
	assert.True(t, p.Admit(10, start.Add(time.Second)))
	assert.False(t, p.Active)
}
