// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 SoNdA11

package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SoNdA11/argus-console/pkg/telemetry"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

const testSnapshot = `{"realPower":180,"outputPower":200,"mode":"bridge","boostType":"pct","boostValue":10,"connected":true,"trainerAddress":"AA:01","discoveredDevices":[{"address":"AA:01","name":"KICKR","rssi":-60,"hasCyclingPower":true}]}`

// ============================================================
// Test bridge
// ============================================================

// newBridgeServer runs handler on every upgraded websocket
func newBridgeServer(t *testing.T, check func(*http.Request) bool, handler func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil && !check(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURLFor(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// ============================================================
// WebSocket
// ============================================================

func TestWebSocketConnectionFrames(t *testing.T) {
	cborData, err := telemetry.EncodeCBOR(map[string]interface{}{
		"realPower":   90,
		"outputPower": 95,
	})
	require.NoError(t, err)

	srv := newBridgeServer(t, nil, func(c *websocket.Conn) {
		_ = c.WriteMessage(websocket.TextMessage, []byte(testSnapshot))
		_ = c.WriteMessage(websocket.BinaryMessage, cborData)
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_, _, _ = c.ReadMessage()
	})

	conn, err := OpenWebSocketConnection(context.Background(), wsURLFor(srv), "", "", false)
	require.NoError(t, err)
	defer conn.Close()

	f, err := conn.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, telemetry.FrameText, f.Kind)
	snap, err := telemetry.DecodeFrame(f)
	require.NoError(t, err)
	assert.Equal(t, telemetry.ModeBridge, snap.Mode)
	assert.Equal(t, "AA:01", snap.TrainerAddress)

	f, err = conn.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, telemetry.FrameBinary, f.Kind)
	snap, err = telemetry.DecodeFrame(f)
	require.NoError(t, err)
	assert.Equal(t, 90.0, snap.RealPower)

	_, err = conn.ReadFrame()
	require.Error(t, err)
	assert.True(t, isClosed(err), "normal closure: %v", err)

	_, err = conn.ReadFrame()
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestWebSocketSendWritesText(t *testing.T) {
	received := make(chan []byte, 1)
	srv := newBridgeServer(t, nil, func(c *websocket.Conn) {
		mt, data, err := c.ReadMessage()
		if err == nil && mt == websocket.TextMessage {
			received <- data
		}
	})

	conn, err := OpenWebSocketConnection(context.Background(), wsURLFor(srv), "", "", false)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, sendCommand(conn, telemetry.NewBoostTypeCommand(telemetry.BoostPercent)))

	select {
	case data := <-received:
		assert.JSONEq(t, `{"boostType":"pct"}`, string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("bridge never received the command")
	}
}

func TestWebSocketBasicAuth(t *testing.T) {
	check := func(r *http.Request) bool {
		user, pass, ok := r.BasicAuth()
		return ok && user == "rider" && pass == "secret"
	}
	srv := newBridgeServer(t, check, func(c *websocket.Conn) {
		_, _, _ = c.ReadMessage()
	})

	conn, err := OpenWebSocketConnection(context.Background(), wsURLFor(srv), "rider", "secret", false)
	require.NoError(t, err)
	conn.Close()

	_, err = OpenWebSocketConnection(context.Background(), wsURLFor(srv), "rider", "wrong", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401")
}

func TestOpenWebSocketRejectsScheme(t *testing.T) {
	_, err := OpenWebSocketConnection(context.Background(), "http://localhost/ws", "", "", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported URL scheme")
}

func TestDialerRequiresTarget(t *testing.T) {
	d := &dialer{settings: Settings{Baud: 115200}}
	_, _, err := d.Open(context.Background())
	assert.Error(t, err)
}

// ============================================================
// Serial
// ============================================================

// fakePort stands in for a serial device; unimplemented methods panic
type fakePort struct {
	serial.Port
	in  io.Reader
	out bytes.Buffer
}

func (p *fakePort) Read(b []byte) (int, error)  { return p.in.Read(b) }
func (p *fakePort) Write(b []byte) (int, error) { return p.out.Write(b) }
func (p *fakePort) Close() error                { return nil }

func TestSerialConnectionLines(t *testing.T) {
	port := &fakePort{in: strings.NewReader(testSnapshot + "\r\n\n" + `{"realPower":1,"outputPower":2}` + "\n")}
	conn := newSerialConnection(port)

	f, err := conn.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, telemetry.FrameText, f.Kind)
	assert.Equal(t, testSnapshot, string(f.Data))

	f, err = conn.ReadFrame()
	require.NoError(t, err)
	snap, err := telemetry.DecodeFrame(f)
	require.NoError(t, err)
	assert.Equal(t, 2.0, snap.OutputPower)

	_, err = conn.ReadFrame()
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestSerialConnectionSend(t *testing.T) {
	port := &fakePort{in: strings.NewReader("")}
	conn := newSerialConnection(port)

	require.NoError(t, sendCommand(conn, telemetry.NewSimCommand(180)))
	require.NoError(t, sendCommand(conn, telemetry.NewDisconnectCommand()))

	lines := strings.Split(strings.TrimSuffix(port.out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"sim":180}`, lines[0])
	assert.JSONEq(t, `{"disconnect":true}`, lines[1])
}

// ============================================================
// Snapshot stream
// ============================================================

// scriptedConn replays frames, then fails with err
type scriptedConn struct {
	frames []telemetry.Frame
	err    error
	sent   [][]byte
}

func (c *scriptedConn) ReadFrame() (telemetry.Frame, error) {
	if len(c.frames) == 0 {
		return telemetry.Frame{}, c.err
	}
	f := c.frames[0]
	c.frames = c.frames[1:]
	return f, nil
}

func (c *scriptedConn) Send(data []byte) error {
	c.sent = append(c.sent, data)
	return nil
}

func (c *scriptedConn) Close() error { return nil }

func TestStreamSnapshots(t *testing.T) {
	errLinkDown := errors.New("link down")
	conn := &scriptedConn{
		frames: []telemetry.Frame{
			telemetry.TextFrame([]byte(testSnapshot)),
			telemetry.TextFrame([]byte(`{"realPower":`)),
			telemetry.BinaryFrame([]byte{0xff}),
		},
		err: errLinkDown,
	}

	done := make(chan struct{})
	defer close(done)

	var got []snapshotEvent
	for ev := range streamSnapshots(conn, done) {
		got = append(got, ev)
	}

	require.Len(t, got, 4)
	require.NoError(t, got[0].decodeErr)
	assert.Equal(t, 180.0, got[0].snap.RealPower)
	assert.ErrorIs(t, got[1].decodeErr, telemetry.ErrMalformedSnapshot)
	assert.Error(t, got[2].decodeErr)
	assert.ErrorIs(t, got[3].err, errLinkDown)
}

func TestApplied(t *testing.T) {
	snap, err := telemetry.Decode([]byte(testSnapshot))
	require.NoError(t, err)

	assert.True(t, applied(telemetry.NewModeCommand(telemetry.ModeBridge), snap))
	assert.False(t, applied(telemetry.NewModeCommand(telemetry.ModeSim), snap))
	assert.True(t, applied(telemetry.NewBoostCommand(10), snap))
	assert.True(t, applied(telemetry.NewSelectCommand("AA:01"), snap))
	assert.False(t, applied(telemetry.NewDisconnectCommand(), snap))

	snap.Connected = false
	assert.True(t, applied(telemetry.NewDisconnectCommand(), snap))
}
