// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 SoNdA11

package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SoNdA11/argus-console/pkg/telemetry"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Live terminal dashboard for the trainer bridge",
	Long: `Monitor and control the argus-recon trainer bridge via an interactive terminal UI.

Features:
  - Real-time power readouts and rolling power chart
  - Discovered device list with trainer selection
  - Integrity verdict and per-device latency chart
  - Boost and simulation controls that never fight your input
  - Mode and boost type switching, trainer disconnect
  - Statistics tracking and event logging
  - Automatic reconnection on connection loss

Tab cycles focus between the device list and the two sliders. Press ? for
the full key map.

Supports both serial and WebSocket connections.`,
	RunE: runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

const (
	frameQueueSize  = 100
	intentQueueSize = 64
	outboxSize      = 32
	renderInterval  = 50 * time.Millisecond
	initialBackoff  = 1 * time.Second
	maxBackoff      = 30 * time.Second
)

// errOutboxFull is returned when commands arrive faster than the link drains them
var errOutboxFull = errors.New("outbox full")

//////////////////////////////////////////////////////////////
// Connection Manager
//////////////////////////////////////////////////////////////

// connectionManager handles connection lifecycle and reconnection. It feeds
// frames and link events to the dispatcher and drains its outbound commands.
type connectionManager struct {
	dialer   *dialer
	conn     Connection
	connInfo string
	mu       sync.RWMutex

	frames  chan telemetry.Frame
	intents chan telemetry.Intent
	outbox  chan telemetry.Command
	done    chan struct{}
}

func newConnectionManager(d *dialer, conn Connection, connInfo string) *connectionManager {
	return &connectionManager{
		dialer:   d,
		conn:     conn,
		connInfo: connInfo,
		frames:   make(chan telemetry.Frame, frameQueueSize),
		intents:  make(chan telemetry.Intent, intentQueueSize),
		outbox:   make(chan telemetry.Command, outboxSize),
		done:     make(chan struct{}),
	}
}

func (cm *connectionManager) getConn() Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.conn
}

func (cm *connectionManager) setConn(conn Connection, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.conn = conn
	cm.connInfo = connInfo
}

// Send queues a command for the writer. It never blocks the dispatcher.
func (cm *connectionManager) Send(c telemetry.Command) error {
	if cm.getConn() == nil {
		return ErrConnectionClosed
	}
	select {
	case cm.outbox <- c:
		return nil
	default:
		return errOutboxFull
	}
}

// post hands a link event to the dispatcher unless shutting down
func (cm *connectionManager) post(in telemetry.Intent) {
	select {
	case cm.intents <- in:
	case <-cm.done:
	}
}

// writerLoop drains the outbox onto whatever connection is current
func (cm *connectionManager) writerLoop() {
	for {
		select {
		case <-cm.done:
			return
		case c := <-cm.outbox:
			conn := cm.getConn()
			if conn == nil {
				logger.Printf("writer: dropped %s: no connection", c)
				continue
			}
			if err := sendCommand(conn, c); err != nil {
				logger.Printf("writer: %v", err)
			}
		}
	}
}

// readerLoop handles reading from connection with automatic reconnection
func (cm *connectionManager) readerLoop() {
	for {
		select {
		case <-cm.done:
			return
		default:
		}

		lost, reason := cm.readFromConnection()
		if !lost {
			return
		}

		logger.Printf("reader: connection lost: %v", reason)
		cm.post(telemetry.LinkIntent{Up: false, Info: reason.Error()})

		if !cm.reconnect() {
			return // Shutdown requested during reconnect
		}
	}
}

// readFromConnection forwards frames until the link fails.
// Returns true with the cause if the connection was lost, false on shutdown.
func (cm *connectionManager) readFromConnection() (bool, error) {
	conn := cm.getConn()
	if conn == nil {
		return true, ErrConnectionClosed
	}

	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			select {
			case <-cm.done:
				return false, nil
			default:
				return true, err
			}
		}

		select {
		case cm.frames <- frame:
		case <-cm.done:
			return false, nil
		}
	}
}

// reconnect attempts to reconnect with exponential backoff
// Returns false if shutdown was requested during reconnection
func (cm *connectionManager) reconnect() bool {
	if conn := cm.getConn(); conn != nil {
		conn.Close()
	}
	cm.setConn(nil, "")

	backoff := initialBackoff

	for {
		select {
		case <-cm.done:
			return false
		case <-time.After(backoff):
		}

		conn, connInfo, err := cm.dialer.Open(context.Background())
		if err == nil {
			cm.setConn(conn, connInfo)
			logger.Printf("reader: reconnected: %s", connInfo)
			cm.post(telemetry.LinkIntent{Up: true, Info: connInfo})
			return true
		}
		logger.Printf("reader: reconnect failed (next in %s): %v", backoff, err)

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (cm *connectionManager) close() {
	if conn := cm.getConn(); conn != nil {
		conn.Close()
	}
}

//////////////////////////////////////////////////////////////
// View Relay
//////////////////////////////////////////////////////////////

// viewRelay holds the newest published view and forwards it to the TUI at
// a fixed rate, so a burst of snapshots costs one redraw
type viewRelay struct {
	mu     sync.Mutex
	latest *telemetry.View
}

func (r *viewRelay) store(v telemetry.View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest = &v
}

func (r *viewRelay) take() *telemetry.View {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.latest
	r.latest = nil
	return v
}

func (r *viewRelay) run(p *tea.Program, done <-chan struct{}) {
	ticker := time.NewTicker(renderInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if v := r.take(); v != nil {
				p.Send(viewMsg(*v))
			}
		}
	}
}

//////////////////////////////////////////////////////////////
// Command
//////////////////////////////////////////////////////////////

func runDashboard(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	d, err := newDialer(settings)
	if err != nil {
		return err
	}
	conn, connInfo, err := d.Open(ctx)
	if err != nil {
		return err
	}

	cm := newConnectionManager(d, conn, connInfo)
	relay := &viewRelay{}

	opts := settings.DispatcherOptions()
	opts.OnRender = relay.store
	dispatcher := telemetry.NewDispatcher(cm, opts)
	dispatcher.SetTransport(true, connInfo)

	m := initialDashboardModel(cm.intents, connInfo, settings.StaleAfter)
	p := tea.NewProgram(m, tea.WithAltScreen())

	stopped := make(chan struct{})
	SafeGo(logger, func() {
		defer close(stopped)
		if err := dispatcher.Run(ctx, cm.frames, cm.intents); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("dispatcher: stopped: %v", err)
		}
	})
	SafeGo(logger, cm.readerLoop)
	SafeGo(logger, cm.writerLoop)
	SafeGo(logger, func() { relay.run(p, cm.done) })

	_, runErr := p.Run()

	close(cm.done) // Signal goroutines to stop
	cancel()
	cm.close()
	<-stopped

	stats := dispatcher.Stats()
	logger.Printf("dashboard: exiting after %s, %d frames, %d snapshots",
		telemetry.FormatUptime(time.Since(stats.StartTime)), stats.TotalFrames, stats.Snapshots)
	if last := dispatcher.LastSnapshot(); last != nil {
		logger.Printf("dashboard: last snapshot: mode %s, trainer %q, %d device(s)",
			last.Mode, last.TrainerAddress, len(last.Devices))
	}

	if runErr != nil {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return nil
}
