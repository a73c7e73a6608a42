// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 SoNdA11

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/SoNdA11/argus-console/pkg/telemetry"
	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"
)

// maxLineBytes bounds one newline-delimited snapshot on the serial console
const maxLineBytes = 1 << 20

// Connection carries snapshot frames in and commands out, over either the
// bridge's websocket or its serial console
type Connection interface {
	// ReadFrame blocks until the next frame arrives or the link fails
	ReadFrame() (telemetry.Frame, error)
	// Send writes one encoded command
	Send(data []byte) error
	Close() error
}

// ErrConnectionClosed is returned when reading from a closed connection
var ErrConnectionClosed = errors.New("connection closed")

//////////////////////////////////////////////////////////////
// Serial
//////////////////////////////////////////////////////////////

// SerialConnection reads newline-delimited JSON snapshots from a serial port
type SerialConnection struct {
	port    serial.Port
	scanner *bufio.Scanner
	mu      sync.Mutex
}

func newSerialConnection(port serial.Port) *SerialConnection {
	scanner := bufio.NewScanner(port)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	return &SerialConnection{port: port, scanner: scanner}
}

func (s *SerialConnection) ReadFrame() (telemetry.Frame, error) {
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}
		return telemetry.TextFrame([]byte(line)), nil
	}
	if err := s.scanner.Err(); err != nil {
		return telemetry.Frame{}, err
	}
	return telemetry.Frame{}, ErrConnectionClosed
}

func (s *SerialConnection) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.port.Write(append(data, '\n'))
	return err
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

//////////////////////////////////////////////////////////////
// WebSocket
//////////////////////////////////////////////////////////////

// WebSocketConnection wraps a websocket. Text messages are JSON snapshots,
// binary messages are CBOR snapshots.
type WebSocketConnection struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  bool // Track if connection has failed/closed
}

func (w *WebSocketConnection) ReadFrame() (telemetry.Frame, error) {
	if w.closed {
		return telemetry.Frame{}, ErrConnectionClosed
	}

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed = true
			return telemetry.Frame{}, err
		}

		switch messageType {
		case websocket.TextMessage:
			return telemetry.TextFrame(data), nil
		case websocket.BinaryMessage:
			return telemetry.BinaryFrame(data), nil
		}
	}
}

// Send writes one text message. gorilla allows a single concurrent writer.
func (w *WebSocketConnection) Send(data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *WebSocketConnection) Close() error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return w.conn.Close()
}

//////////////////////////////////////////////////////////////
// Opening
//////////////////////////////////////////////////////////////

// OpenSerialConnection opens a serial port connection
func OpenSerialConnection(portName string, baudRate int) (Connection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	return newSerialConnection(port), nil
}

// OpenWebSocketConnection opens a WebSocket connection with HTTP Basic auth
func OpenWebSocketConnection(ctx context.Context, wsURL, username, password string, skipSSLVerify bool) (Connection, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return &WebSocketConnection{conn: conn}, nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv("ARGUS_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// dialer opens connections from fixed settings. The password is resolved
// once so reconnects never prompt.
type dialer struct {
	settings Settings
	password string
}

func newDialer(s Settings) (*dialer, error) {
	d := &dialer{settings: s}
	if s.URL != "" && s.Username != "" {
		pw, err := GetPassword()
		if err != nil {
			return nil, err
		}
		d.password = pw
	}
	return d, nil
}

// Open opens either a serial or WebSocket connection based on settings
func (d *dialer) Open(ctx context.Context) (Connection, string, error) {
	s := d.settings
	if s.URL != "" {
		conn, err := OpenWebSocketConnection(ctx, s.URL, s.Username, d.password, s.NoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("WebSocket: %s", s.URL), nil
	}

	if s.Port != "" {
		conn, err := OpenSerialConnection(s.Port, s.Baud)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("Serial: %s @ %d baud", s.Port, s.Baud), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}

// OpenConnection opens the configured connection once
func OpenConnection(ctx context.Context) (Connection, string, error) {
	d, err := newDialer(settings)
	if err != nil {
		return nil, "", err
	}
	return d.Open(ctx)
}

// sendCommand encodes and writes one command
func sendCommand(conn Connection, c telemetry.Command) error {
	data, err := c.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", c, err)
	}
	if err := conn.Send(data); err != nil {
		return fmt.Errorf("failed to send %s: %w", c, err)
	}
	return nil
}

// isClosed reports whether err means the link was closed rather than broken
func isClosed(err error) bool {
	return errors.Is(err, ErrConnectionClosed) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

//////////////////////////////////////////////////////////////
// Snapshot Stream
//////////////////////////////////////////////////////////////

// snapshotEvent is one decoded frame, or the read error that ended the stream
type snapshotEvent struct {
	frame     telemetry.Frame
	snap      *telemetry.Snapshot
	decodeErr error
	err       error
}

// streamSnapshots decodes frames on a goroutine until the link fails or
// done is closed. The final event carries the read error.
func streamSnapshots(conn Connection, done <-chan struct{}) <-chan snapshotEvent {
	events := make(chan snapshotEvent, 16)
	SafeGo(logger, func() {
		defer close(events)
		for {
			frame, err := conn.ReadFrame()
			ev := snapshotEvent{frame: frame, err: err}
			if err == nil {
				ev.snap, ev.decodeErr = telemetry.DecodeFrame(frame)
			}
			select {
			case events <- ev:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	})
	return events
}
