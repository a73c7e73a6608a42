// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 SoNdA11

package telemetry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// recordingSender captures outbound commands
type recordingSender struct {
	sent []Command
	err  error
}

func (r *recordingSender) Send(c Command) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, c)
	return nil
}

var errSendFailed = errors.New("outbox full")

// baseSnapshot returns the fields every test snapshot starts from
func baseSnapshot() map[string]interface{} {
	return map[string]interface{}{
		"realPower":         100,
		"outputPower":       120,
		"mode":              "sim",
		"boostType":         "fix",
		"boostValue":        0,
		"connected":         true,
		"discoveredDevices": []interface{}{},
	}
}

// snapshotJSON encodes baseSnapshot with overrides applied
func snapshotJSON(t *testing.T, overrides map[string]interface{}) []byte {
	t.Helper()
	m := baseSnapshot()
	for k, v := range overrides {
		if v == nil {
			delete(m, k)
			continue
		}
		m[k] = v
	}
	data, err := json.Marshal(m)
	require.NoError(t, err)
	return data
}

func device(addr, name string, rssi int) map[string]interface{} {
	return map[string]interface{}{
		"address":         addr,
		"name":            name,
		"rssi":            rssi,
		"hasCyclingPower": true,
		"hasHeartRate":    false,
	}
}

func devices(addrs ...string) []interface{} {
	out := make([]interface{}, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, device(a, "", -60))
	}
	return out
}

func plainDevices(addrs ...string) []Device {
	out := make([]Device, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, Device{Address: a, RSSI: -60})
	}
	return out
}

func report(class string, mean, jitter float64) map[string]interface{} {
	return map[string]interface{}{
		"classification": class,
		"signals": map[string]interface{}{
			"latencyMeanMs":   mean,
			"latencyJitterMs": jitter,
		},
		"reasons": []interface{}{"[+] Manufacturer data present", "[-] Notify jitter too regular"},
	}
}

// newTestDispatcher wires a dispatcher to a fake clock and a recording sender
func newTestDispatcher(t *testing.T, opts Options) (*Dispatcher, *recordingSender, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	sender := &recordingSender{}
	opts.Now = clock.Now
	return NewDispatcher(sender, opts), sender, clock
}

func feed(t *testing.T, d *Dispatcher, overrides map[string]interface{}) {
	t.Helper()
	require.NoError(t, d.HandleFrame(TextFrame(snapshotJSON(t, overrides))))
}

func text(t *testing.T, p *Page, id ElementID) string {
	t.Helper()
	e, err := p.Element(id)
	require.NoError(t, err)
	return e.Text
}
