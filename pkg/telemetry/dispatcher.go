// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 SoNdA11

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"time"
)

// ErrNotConnected is returned by Disconnect when no trainer is linked
var ErrNotConnected = errors.New("trainer not connected")

// Sender delivers outbound commands. Implementations must not block.
type Sender interface {
	Send(Command) error
}

// SenderFunc adapts a function to Sender
type SenderFunc func(Command) error

// Send calls f(c)
func (f SenderFunc) Send(c Command) error {
	return f(c)
}

// LinkStatus is the aggregate connection health shown in the status line
type LinkStatus int

const (
	LinkSearching LinkStatus = iota
	LinkEstablished
	LinkStale
	LinkOffline
)

func (l LinkStatus) String() string {
	switch l {
	case LinkEstablished:
		return "LINK ESTABLISHED"
	case LinkStale:
		return "STALE"
	case LinkOffline:
		return "OFFLINE"
	default:
		return "SEARCHING..."
	}
}

// Accent returns the status dot color
func (l LinkStatus) Accent() Accent {
	switch l {
	case LinkEstablished:
		return AccentSuccess
	case LinkStale:
		return AccentWarning
	case LinkOffline:
		return AccentDanger
	default:
		return AccentMuted
	}
}

// LogEntry is one line of the in-view event log
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	IsError   bool      `json:"isError"`
}

// View is an immutable copy of everything a renderer needs. A new View is
// published after every handled event.
type View struct {
	Page            *Page            `json:"-"`
	Rows            []Row            `json:"rows"`
	Real            []float64        `json:"real"`
	Output          []float64        `json:"output"`
	SeriesMax       float64          `json:"seriesMax"`
	Projection      Projection       `json:"projection"`
	Integrity       *IntegrityReport `json:"integrity,omitempty"`
	State           UIState          `json:"state"`
	Link            LinkStatus       `json:"link"`
	Connected       bool             `json:"connected"`
	ClientConnected bool             `json:"clientConnected"`
	Transport       string           `json:"transport,omitempty"`
	Stats           Statistics       `json:"stats"`
	Log             []LogEntry       `json:"log"`
	LastSnapshot    time.Time        `json:"lastSnapshot"`
}

// Options configure a Dispatcher. Zero values select the defaults.
type Options struct {
	History        int
	StaleAfter     time.Duration
	PendingTimeout time.Duration
	LabelWidth     int

	// Page replaces the default dashboard page
	Page *Page

	Logger   *log.Logger
	Now      func() time.Time
	OnRender func(View)
}

// Dispatcher owns the dashboard state. Inbound frames and user intents are
// applied one at a time; it holds no locks and must only be driven from a
// single goroutine (see Run).
type Dispatcher struct {
	opts   Options
	sender Sender
	logger *log.Logger
	now    func() time.Time

	page       *Page
	rows       *RowSet
	series     *Series
	state      UIState
	guard      Guard
	stats      *Statistics
	projection Projection
	integrity  *IntegrityReport

	link        LinkStatus
	connected   bool
	clientConn  bool
	transport   string
	lastValid   time.Time
	lastSnap    *Snapshot
	errorLog    []LogEntry
	maxLogLines int
}

// NewDispatcher creates a dispatcher sending commands through sender
func NewDispatcher(sender Sender, opts Options) *Dispatcher {
	if opts.History <= 0 {
		opts.History = DefaultHistory
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.PendingTimeout <= 0 {
		opts.PendingTimeout = DefaultPendingTimeout
	}
	if opts.LabelWidth <= 0 {
		opts.LabelWidth = DefaultLabelWidth
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	page := opts.Page
	if page == nil {
		page = DashboardPage()
	}

	now := opts.Now()
	return &Dispatcher{
		opts:        opts,
		sender:      sender,
		logger:      logger,
		now:         opts.Now,
		page:        page,
		rows:        NewRowSet(),
		series:      NewSeries(opts.History),
		state:       NewUIState(),
		stats:       NewStatistics(now),
		projection:  Project(nil, nil, opts.LabelWidth),
		link:        LinkSearching,
		lastValid:   now,
		errorLog:    make([]LogEntry, 0),
		maxLogLines: MaxLogEntries,
	}
}

//////////////////////////////////////////////////////////////
// Inbound
//////////////////////////////////////////////////////////////

// HandleFrame decodes and applies one inbound frame. A frame that cannot be
// decoded only flips the connection indicator to stale; all other state is
// left as it was. The returned error is informational.
func (d *Dispatcher) HandleFrame(f Frame) error {
	now := d.now()

	snap, err := DecodeFrame(f)
	if err != nil {
		d.stats.Update(f.Kind, err, nil, now)
		d.logger.Printf("dispatcher: dropped %s frame (%d bytes): %v", f.Kind, len(f.Data), err)
		if d.link != LinkOffline {
			d.setLink(LinkStale)
		}
		d.publish()
		return err
	}

	anomalies := ValidateSnapshot(snap)
	d.stats.Update(f.Kind, nil, anomalies, now)
	for _, a := range anomalies {
		d.logger.Printf("dispatcher: anomaly %s: %s", a.Type, a.Message)
		d.addLogEntry(now, a.Message, false)
	}

	err = d.apply(snap, now)
	d.publish()
	return err
}

// apply runs the update steps in their fixed order. The list is reconciled
// before the projection so chart categories follow the pruned device order.
// A step that hits a missing element is skipped; the rest still run.
func (d *Dispatcher) apply(s *Snapshot, now time.Time) error {
	var errs []error
	d.lastValid = now
	d.lastSnap = s

	// Readouts
	errs = append(errs,
		d.setText(ElemReal, formatNumber(s.RealPower)),
		d.setText(ElemOutput, formatNumber(s.OutputPower)),
		d.setText(ElemHeartRate, s.OutputHR.Format(0, MissingReadout)),
	)

	d.series.Push(s.RealPower, s.OutputPower)

	// Integrity readout
	d.integrity = s.ActiveIntegrity.Clone()
	if e, err := d.page.Element(ElemIntegrity); err != nil {
		errs = append(errs, err)
	} else if d.integrity == nil {
		e.Text = UnknownText
		e.Accent = AccentMuted
	} else {
		e.Text = string(d.integrity.Classification)
		e.Accent = ClassAccent(d.integrity.Classification)
	}

	// Device list
	result := d.rows.Reconcile(s.Devices, s.TrainerAddress, s.LocalVirtualAddress, &d.state, now)
	if result.Changed() {
		d.logger.Printf("dispatcher: devices +%d -%d", len(result.Created), len(result.Removed))
	}
	if e, err := d.page.Element(ElemDeviceList); err != nil {
		errs = append(errs, err)
	} else {
		e.Value = len(d.rows.Keys())
		e.Text = d.state.SelectedAddress
	}

	// Aggregate chart
	d.projection = Project(s.Reports, s.Devices, d.opts.LabelWidth)
	if e, err := d.page.Element(ElemIntegrityBars); err != nil {
		errs = append(errs, err)
	} else {
		e.Value = d.projection.Len()
	}

	// Mode and boost type
	if d.state.PendingMode.Admit(s.Mode, now) && (s.Mode != d.state.Mode || !d.state.ModeApplied) {
		d.state.Mode = s.Mode
		d.state.ModeApplied = true
		errs = append(errs, ApplyMode(d.page, s.Mode))
	}
	if d.state.PendingBoostType.Admit(s.BoostType, now) && (s.BoostType != d.state.BoostType || !d.state.BoostTypeApplied) {
		d.state.BoostType = s.BoostType
		d.state.BoostTypeApplied = true
		errs = append(errs, ApplyBoostType(d.page, s.BoostType))
	}

	// Sliders
	before := d.guard.Discarded
	_, err := d.guard.Sync(d.page, BoostControl, int(math.Round(s.BoostValue)), &d.state.Boost, now)
	errs = append(errs, err)
	if s.SimBasePower.Valid {
		_, err = d.guard.Sync(d.page, SimControl, int(math.Round(s.SimBasePower.Value)), &d.state.Sim, now)
		errs = append(errs, err)
	}
	d.stats.FocusDiscards += uint64(d.guard.Discarded - before)

	// Connection status
	d.connected = s.Connected
	d.clientConn = s.ClientConnected
	if s.Connected {
		d.setLink(LinkEstablished)
	} else {
		d.setLink(LinkSearching)
	}
	if e, err := d.page.Element(ElemDisconnect); err != nil {
		errs = append(errs, err)
	} else {
		e.Hidden = !s.Connected
	}
	if e, err := d.page.Element(ElemClientConn); err != nil {
		errs = append(errs, err)
	} else if s.ClientConnected {
		e.Text = "APP LINKED"
		e.Active = true
	} else {
		e.Text = "NO APP"
		e.Active = false
	}

	err = errors.Join(errs...)
	if err != nil {
		d.logger.Printf("dispatcher: partial update: %v", err)
	}
	return err
}

// CheckStale marks the link stale when no valid snapshot arrived within the
// silence threshold. Last-known state is kept. It reports whether the
// status changed.
func (d *Dispatcher) CheckStale(now time.Time) bool {
	if d.link == LinkStale || d.link == LinkOffline {
		return false
	}
	silence := now.Sub(d.lastValid)
	if silence < d.opts.StaleAfter {
		return false
	}

	d.stats.StaleEvents++
	d.setLink(LinkStale)
	msg := fmt.Sprintf("%v: no snapshot for %s", ErrStaleConnection, silence.Truncate(100*time.Millisecond))
	d.logger.Printf("dispatcher: %s", msg)
	d.addLogEntry(now, msg, true)
	return true
}

// setLink updates the status indicator only
func (d *Dispatcher) setLink(l LinkStatus) {
	d.link = l
	if e, err := d.page.Element(ElemConnText); err == nil {
		e.Text = l.String()
		e.Accent = l.Accent()
	}
	if e, err := d.page.Element(ElemConnDot); err == nil {
		e.Active = l == LinkEstablished
		e.Accent = l.Accent()
	}
}

func (d *Dispatcher) setText(id ElementID, text string) error {
	e, err := d.page.Element(id)
	if err != nil {
		return err
	}
	e.Text = text
	return nil
}

//////////////////////////////////////////////////////////////
// User actions
//////////////////////////////////////////////////////////////

// SelectTarget makes address the active row immediately and asks the
// appliance to bridge to it. The local choice wins over stale echoes until
// the appliance confirms or the pending window runs out.
func (d *Dispatcher) SelectTarget(address string) error {
	if address == "" {
		return fmt.Errorf("select target: empty address")
	}
	now := d.now()
	d.state.SelectedAddress = address
	d.state.Selection.Set(address, now, d.opts.PendingTimeout)
	d.rows.MarkActive(address)
	if e, err := d.page.Element(ElemDeviceList); err == nil {
		e.Text = address
	}
	d.addLogEntry(now, fmt.Sprintf("Selected target %s", address), false)
	return d.send(NewSelectCommand(address))
}

// SendBoost shows value on the boost control and sends it. The value is
// clamped to the current boost type's range.
func (d *Dispatcher) SendBoost(value int) error {
	value = clamp(value, 0, d.state.BoostType.Ceiling())
	now := d.now()
	d.state.Boost.Set(value, now, d.opts.PendingTimeout)
	err := d.showControl(BoostControl, value)
	return errors.Join(err, d.send(NewBoostCommand(value)))
}

// SendSim shows watts on the sim control and sends it
func (d *Dispatcher) SendSim(watts int) error {
	watts = clamp(watts, 0, SimMax)
	now := d.now()
	d.state.Sim.Set(watts, now, d.opts.PendingTimeout)
	err := d.showControl(SimControl, watts)
	return errors.Join(err, d.send(NewSimCommand(watts)))
}

// SetMode switches the dashboard to mode and tells the appliance
func (d *Dispatcher) SetMode(mode Mode) error {
	now := d.now()
	d.state.Mode = mode
	d.state.ModeApplied = true
	d.state.PendingMode.Set(mode, now, d.opts.PendingTimeout)
	err := ApplyMode(d.page, mode)
	d.addLogEntry(now, fmt.Sprintf("Mode set to %s", mode), false)
	return errors.Join(err, d.send(NewModeCommand(mode)))
}

// SetBoostType switches between fixed and percent boost. The appliance
// resets the boost amount on a type change, so the slider is zeroed too and
// the zero stays pending until the appliance echoes it.
func (d *Dispatcher) SetBoostType(bt BoostType) error {
	now := d.now()
	d.state.BoostType = bt
	d.state.BoostTypeApplied = true
	d.state.PendingBoostType.Set(bt, now, d.opts.PendingTimeout)
	d.state.Boost.Set(0, now, d.opts.PendingTimeout)
	err := errors.Join(ApplyBoostType(d.page, bt), d.showControl(BoostControl, 0))
	d.addLogEntry(now, fmt.Sprintf("Boost type set to %s", bt), false)
	return errors.Join(err, d.send(NewBoostTypeCommand(bt)))
}

// Disconnect asks the appliance to drop the trainer link. Confirmation is
// the caller's job.
func (d *Dispatcher) Disconnect() error {
	if !d.connected {
		return ErrNotConnected
	}
	d.addLogEntry(d.now(), "Disconnect requested", false)
	return d.send(NewDisconnectCommand())
}

// SetFocus moves input focus; an empty id releases it
func (d *Dispatcher) SetFocus(id ElementID) error {
	return d.page.SetFocus(id)
}

// SetTransport records the transport coming up or going away. While down
// the status reads offline; on the way up the silence timer restarts.
func (d *Dispatcher) SetTransport(up bool, info string) {
	now := d.now()
	if up {
		d.transport = info
		d.lastValid = now
		d.setLink(LinkSearching)
		d.addLogEntry(now, fmt.Sprintf("Connected to %s", info), false)
		d.logger.Printf("dispatcher: transport up: %s", info)
		return
	}
	d.setLink(LinkOffline)
	msg := "Connection lost - reconnecting..."
	if info != "" {
		msg = fmt.Sprintf("Connection lost (%s) - reconnecting...", info)
	}
	d.addLogEntry(now, msg, true)
	d.logger.Printf("dispatcher: transport down: %s", info)
}

func (d *Dispatcher) showControl(c Control, value int) error {
	slider, err := d.page.Element(c.Slider)
	if err != nil {
		return err
	}
	label, err := d.page.Element(c.Label)
	if err != nil {
		return err
	}
	setControl(slider, label, c, value)
	return nil
}

func (d *Dispatcher) send(c Command) error {
	now := d.now()
	if d.sender == nil {
		d.stats.CommandFailures++
		return fmt.Errorf("failed to send %s: no sender", c)
	}
	if err := d.sender.Send(c); err != nil {
		d.stats.CommandFailures++
		d.logger.Printf("dispatcher: send %s failed: %v", c, err)
		d.addLogEntry(now, fmt.Sprintf("Send %s failed: %v", c, err), true)
		return fmt.Errorf("failed to send %s: %w", c, err)
	}
	d.stats.CommandsSent++
	d.logger.Printf("dispatcher: sent %s", c)
	return nil
}

func (d *Dispatcher) addLogEntry(now time.Time, message string, isError bool) {
	d.errorLog = append(d.errorLog, LogEntry{
		Timestamp: now,
		Message:   message,
		IsError:   isError,
	})

	if len(d.errorLog) > d.maxLogLines {
		d.errorLog = d.errorLog[len(d.errorLog)-d.maxLogLines:]
	}
}

//////////////////////////////////////////////////////////////
// Read access
//////////////////////////////////////////////////////////////

// Page returns the live page. Only use it from the dispatcher's goroutine.
func (d *Dispatcher) Page() *Page { return d.page }

// Rows returns the live row set. Only use it from the dispatcher's goroutine.
func (d *Dispatcher) Rows() *RowSet { return d.rows }

// Series returns the live power window
func (d *Dispatcher) Series() *Series { return d.series }

// State returns a copy of the UI state
func (d *Dispatcher) State() UIState { return d.state }

// Link returns the current connection health
func (d *Dispatcher) Link() LinkStatus { return d.link }

// Stats returns a copy of the statistics
func (d *Dispatcher) Stats() Statistics { return *d.stats }

// LastSnapshot returns the most recent valid snapshot, or nil
func (d *Dispatcher) LastSnapshot() *Snapshot { return d.lastSnap }

// Snapshot builds a View of the current state
func (d *Dispatcher) Snapshot() View {
	stats := *d.stats
	stats.CalculateRates(d.now())
	return View{
		Page:            d.page.Clone(),
		Rows:            d.rows.Rows(),
		Real:            d.series.Real(),
		Output:          d.series.Output(),
		SeriesMax:       d.series.Max(),
		Projection:      cloneProjection(d.projection),
		Integrity:       d.integrity.Clone(),
		State:           d.state,
		Link:            d.link,
		Connected:       d.connected,
		ClientConnected: d.clientConn,
		Transport:       d.transport,
		Stats:           stats,
		Log:             append([]LogEntry(nil), d.errorLog...),
		LastSnapshot:    d.lastValid,
	}
}

func (d *Dispatcher) publish() {
	if d.opts.OnRender != nil {
		d.opts.OnRender(d.Snapshot())
	}
}

func cloneProjection(p Projection) Projection {
	return Projection{
		Labels:        append([]string{}, p.Labels...),
		LatencyMean:   append([]float64{}, p.LatencyMean...),
		LatencyJitter: append([]float64{}, p.LatencyJitter...),
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

//////////////////////////////////////////////////////////////
// Event loop
//////////////////////////////////////////////////////////////

// Run is the single consumer of inbound frames and user intents. Each
// channel is drained in arrival order and every event runs to completion
// before the next. A ticker drives the silence check. Run returns when ctx
// is done or frames is closed.
func (d *Dispatcher) Run(ctx context.Context, frames <-chan Frame, intents <-chan Intent) error {
	interval := d.opts.StaleAfter / 4
	if interval < 50*time.Millisecond {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.publish()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case f, ok := <-frames:
			if !ok {
				return nil
			}
			// Decode errors are already counted and logged
			_ = d.HandleFrame(f)

		case in, ok := <-intents:
			if !ok {
				intents = nil
				continue
			}
			if err := d.Handle(in); err != nil {
				d.logger.Printf("dispatcher: %T: %v", in, err)
			}

		case <-ticker.C:
			if d.CheckStale(d.now()) {
				d.publish()
			}
		}
	}
}
