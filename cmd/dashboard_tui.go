// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 SoNdA11

package cmd

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/SoNdA11/argus-console/pkg/telemetry"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	boostFixedStep   = 5
	boostPercentStep = 1
	simStep          = 10
	sliderWidth      = 30
	eventLogHeight   = 8
	leftPanelWidth   = 34
)

// Focus areas
const (
	focusDeviceList = iota
	focusBoost
	focusSim
)

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

//////////////////////////////////////////////////////////////
// Key Map
//////////////////////////////////////////////////////////////

type dashboardKeyMap struct {
	Quit       key.Binding
	Tab        key.Binding
	ShiftTab   key.Binding
	Up         key.Binding
	Down       key.Binding
	Left       key.Binding
	Right      key.Binding
	Select     key.Binding
	Edit       key.Binding
	Mode       key.Binding
	BoostType  key.Binding
	Disconnect key.Binding
	Help       key.Binding
}

var dashboardKeys = dashboardKeyMap{
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Tab:        key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next panel")),
	ShiftTab:   key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev panel")),
	Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("k/up", "up")),
	Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("j/down", "down")),
	Left:       key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("h/left", "decrease")),
	Right:      key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("l/right", "increase")),
	Select:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select trainer")),
	Edit:       key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "enter value")),
	Mode:       key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "toggle mode")),
	BoostType:  key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "toggle boost type")),
	Disconnect: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "disconnect trainer")),
	Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
}

func (k dashboardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Select, k.Mode, k.BoostType, k.Help, k.Quit}
}

func (k dashboardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.ShiftTab, k.Up, k.Down, k.Select},
		{k.Left, k.Right, k.Edit},
		{k.Mode, k.BoostType, k.Disconnect},
		{k.Help, k.Quit},
	}
}

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// rowItem adapts a reconciled device row to the list widget
type rowItem struct {
	row telemetry.Row
}

func (r rowItem) Title() string {
	marker := "  "
	if r.row.Active {
		marker = "● "
	}
	if r.row.Placeholder {
		return r.row.Label
	}
	title := marker + r.row.Label
	if len(r.row.Tags) > 0 {
		title += " [" + strings.Join(r.row.Tags, " ") + "]"
	}
	return title
}

func (r rowItem) Description() string {
	if r.row.Placeholder {
		return "waiting for scan results"
	}
	return fmt.Sprintf("  %s  %s", r.row.Address, r.row.Signal)
}

func (r rowItem) FilterValue() string { return r.row.Address }

// dashboardModel is the Bubble Tea model for the dashboard. It renders
// published views and turns key presses into intents; it never touches
// dispatcher state.
type dashboardModel struct {
	intents    chan<- telemetry.Intent
	connInfo   string
	staleAfter time.Duration

	view    telemetry.View
	hasView bool

	deviceList list.Model
	valueInput textinput.Model
	spinner    spinner.Model
	help       help.Model

	focusedField      int
	draft             int // slider value while the user holds focus
	editing           bool
	confirmDisconnect bool
	notice            string

	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

// viewMsg carries a published view into the program
type viewMsg telemetry.View

type dashboardTickMsg time.Time

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialDashboardModel(intents chan<- telemetry.Intent, connInfo string, staleAfter time.Duration) dashboardModel {
	ti := textinput.New()
	ti.Placeholder = "value"
	ti.CharLimit = 4
	ti.Width = 8

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	deviceList := list.New([]list.Item{}, delegate, leftPanelWidth-2, 10)
	deviceList.Title = "Devices"
	deviceList.SetShowStatusBar(false)
	deviceList.SetShowHelp(false)
	deviceList.SetFilteringEnabled(false)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return dashboardModel{
		intents:      intents,
		connInfo:     connInfo,
		staleAfter:   staleAfter,
		deviceList:   deviceList,
		valueInput:   ti,
		spinner:      sp,
		help:         help.New(),
		focusedField: focusDeviceList,
		width:        100,
		height:       40,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, dashboardTickCmd())
}

func dashboardTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return dashboardTickMsg(t)
	})
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.updateListSize()

	case viewMsg:
		cmd := m.applyView(telemetry.View(msg))
		return m, cmd

	case dashboardTickMsg:
		// Redraw so the "last snapshot" age keeps moving
		return m, dashboardTickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m dashboardModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	if m.editing {
		return m.handleEditKey(msg)
	}

	if m.confirmDisconnect {
		m.confirmDisconnect = false
		if msg.String() == "y" || msg.String() == "Y" {
			m.emit(telemetry.DisconnectIntent{})
		} else {
			m.notice = "Disconnect cancelled"
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, dashboardKeys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, dashboardKeys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, dashboardKeys.Tab):
		m.cycleFocus(1)

	case key.Matches(msg, dashboardKeys.ShiftTab):
		m.cycleFocus(-1)

	case key.Matches(msg, dashboardKeys.Up), key.Matches(msg, dashboardKeys.Down):
		if m.focusedField == focusDeviceList {
			var cmd tea.Cmd
			m.deviceList, cmd = m.deviceList.Update(msg)
			return m, cmd
		}

	case key.Matches(msg, dashboardKeys.Left):
		m.nudge(-1)

	case key.Matches(msg, dashboardKeys.Right):
		m.nudge(1)

	case key.Matches(msg, dashboardKeys.Select):
		if m.focusedField == focusDeviceList {
			m.selectTrainer()
		}

	case key.Matches(msg, dashboardKeys.Edit):
		if m.focusedField != focusDeviceList {
			m.editing = true
			m.valueInput.SetValue(strconv.Itoa(m.draft))
			return m, m.valueInput.Focus()
		}

	case key.Matches(msg, dashboardKeys.Mode):
		if m.hasView {
			m.emit(telemetry.ModeIntent{Mode: m.view.State.Mode.Toggle()})
		}

	case key.Matches(msg, dashboardKeys.BoostType):
		if m.hasView {
			m.emit(telemetry.BoostTypeIntent{BoostType: m.view.State.BoostType.Toggle()})
		}

	case key.Matches(msg, dashboardKeys.Disconnect):
		if m.element(telemetry.ElemDisconnect).Hidden {
			m.notice = "Trainer not connected"
		} else {
			m.confirmDisconnect = true
		}
	}

	return m, nil
}

func (m dashboardModel) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.editing = false
		m.valueInput.Blur()
		return m, nil

	case "enter":
		m.editing = false
		m.valueInput.Blur()
		v, err := strconv.Atoi(strings.TrimSpace(m.valueInput.Value()))
		if err != nil {
			m.notice = fmt.Sprintf("Invalid value: %q", m.valueInput.Value())
			return m, nil
		}
		m.draft = clampInt(v, 0, m.sliderMax())
		m.emitSlider()
		return m, nil
	}

	var cmd tea.Cmd
	m.valueInput, cmd = m.valueInput.Update(msg)
	return m, cmd
}

func (m dashboardModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	// Header
	s.WriteString(titleStyle.Render("ARGUS CONSOLE"))
	s.WriteString(" ")
	s.WriteString(m.renderLinkStatus(headerStyle))
	s.WriteString("\n")
	s.WriteString(m.renderStatusLine(headerStyle, warningStyle, errorStyle))
	s.WriteString("\n\n")

	// Readouts and power chart
	s.WriteString(boxStyle.Width(m.width - 4).Render(m.renderReadouts(statsLabelStyle, headerStyle)))
	s.WriteString("\n")

	// Layout: left panel (devices) | right panel (integrity)
	listStyle := boxStyle.Width(leftPanelWidth)
	if m.focusedField == focusDeviceList {
		listStyle = focusedBoxStyle.Width(leftPanelWidth)
	}
	devicePanel := listStyle.Render(m.deviceList.View())

	rightWidth := m.width - leftPanelWidth - 8
	if rightWidth < 30 {
		rightWidth = 30
	}
	integrityPanel := boxStyle.Width(rightWidth).Render(m.renderIntegrity(statsLabelStyle, headerStyle, rightWidth-4))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, devicePanel, " ", integrityPanel))
	s.WriteString("\n")

	// Controls
	controlStyle := boxStyle
	if m.focusedField != focusDeviceList {
		controlStyle = focusedBoxStyle
	}
	s.WriteString(controlStyle.Width(m.width - 4).Render(m.renderControls(statsLabelStyle, statsValueStyle, headerStyle, warningStyle)))
	s.WriteString("\n")

	// Statistics bar
	s.WriteString(m.renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle))
	s.WriteString("\n")

	// Event log
	s.WriteString(m.renderEventLog(statsLabelStyle, warningStyle, boxStyle))
	s.WriteString("\n")

	s.WriteString(m.help.View(dashboardKeys))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func accentStyle(a telemetry.Accent) lipgloss.Style {
	if a == "" {
		return lipgloss.NewStyle()
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(string(a)))
}

func (m dashboardModel) renderLinkStatus(headerStyle lipgloss.Style) string {
	dot := m.element(telemetry.ElemConnDot)
	text := m.element(telemetry.ElemConnText).Text
	if text == "" {
		text = telemetry.LinkSearching.String()
	}

	status := accentStyle(dot.Accent).Render("● " + text)
	if !m.hasView || m.view.Link == telemetry.LinkSearching {
		status = m.spinner.View() + " " + status
	}

	transport := m.connInfo
	if m.hasView && m.view.Transport != "" {
		transport = m.view.Transport
	}

	app := m.element(telemetry.ElemClientConn)
	appStyle := headerStyle
	if app.Active {
		appStyle = accentStyle(telemetry.AccentSuccess)
	}

	return fmt.Sprintf("%s %s %s %s",
		status,
		headerStyle.Render("| "+transport+" |"),
		appStyle.Render(app.Text),
		headerStyle.Render("| ?=help q=quit"))
}

func (m dashboardModel) renderStatusLine(headerStyle, warningStyle, errorStyle lipgloss.Style) string {
	switch {
	case m.confirmDisconnect:
		return errorStyle.Render(" Disconnect the trainer? (y/N)")
	case m.editing:
		return warningStyle.Render(" Enter value: ") + m.valueInput.View()
	case m.notice != "":
		return warningStyle.Render(" " + m.notice)
	case m.hasView && !m.view.LastSnapshot.IsZero():
		age := time.Since(m.view.LastSnapshot)
		style := headerStyle
		if age > m.staleAfter {
			style = warningStyle
		}
		return style.Render(" Last snapshot " + formatAge(age) + " ago")
	}
	return headerStyle.Render(" Waiting for the first snapshot...")
}

func (m dashboardModel) renderReadouts(statsLabelStyle, headerStyle lipgloss.Style) string {
	var s strings.Builder

	realText := m.element(telemetry.ElemReal).Text
	output := m.element(telemetry.ElemOutput).Text
	hr := m.element(telemetry.ElemHeartRate).Text
	chart := m.element(telemetry.ElemPowerChart)

	realStyle := accentStyle(telemetry.AccentReal).Bold(true)
	outStyle := accentStyle(chart.Accent).Bold(true)

	s.WriteString(fmt.Sprintf("%s %s W   %s %s W   %s %s bpm   %s %s   %s %s",
		statsLabelStyle.Render("REAL"), realStyle.Render(orZero(realText)),
		statsLabelStyle.Render("OUTPUT"), outStyle.Render(orZero(output)),
		statsLabelStyle.Render("HR"), hr,
		statsLabelStyle.Render("MODE"), m.renderToggle(telemetry.ElemModeSim, "SIM", telemetry.ElemModeBridge, "BRIDGE", headerStyle),
		statsLabelStyle.Render("BOOST"), m.renderToggle(telemetry.ElemBoostFixed, "FIXED", telemetry.ElemBoostPercent, "PERCENT", headerStyle),
	))
	s.WriteString("\n\n")

	width := m.width - 16
	if width < 10 {
		width = 10
	}
	var realSeries, outSeries []float64
	var peak float64
	if m.hasView {
		realSeries, outSeries, peak = m.view.Real, m.view.Output, m.view.SeriesMax
	}
	s.WriteString(headerStyle.Render("real   "))
	s.WriteString(realStyle.UnsetBold().Render(sparkline(realSeries, peak, width)))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render("output "))
	s.WriteString(outStyle.UnsetBold().Render(sparkline(outSeries, peak, width)))
	s.WriteString(headerStyle.Render(fmt.Sprintf(" %s W", strconv.FormatFloat(peak, 'f', 0, 64))))

	return s.String()
}

func (m dashboardModel) renderToggle(a telemetry.ElementID, aText string, b telemetry.ElementID, bText string, headerStyle lipgloss.Style) string {
	on := lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("12")).Padding(0, 1)
	off := headerStyle.Padding(0, 1)
	render := func(id telemetry.ElementID, text string) string {
		if m.element(id).Active {
			return on.Render(text)
		}
		return off.Render(text)
	}
	return render(a, aText) + render(b, bText)
}

func (m dashboardModel) renderIntegrity(statsLabelStyle, headerStyle lipgloss.Style, width int) string {
	var s strings.Builder

	verdict := m.element(telemetry.ElemIntegrity)
	s.WriteString(statsLabelStyle.Render("INTEGRITY "))
	s.WriteString(accentStyle(verdict.Accent).Bold(true).Render(strings.ToUpper(orUnknown(verdict.Text))))
	s.WriteString("\n")

	if m.hasView && m.view.Integrity != nil {
		r := m.view.Integrity
		s.WriteString(headerStyle.Render(fmt.Sprintf("score %s  confidence %s",
			r.Score.Format(2, telemetry.UnknownText), r.Confidence.Format(2, telemetry.UnknownText))))
		s.WriteString("\n")
		if r.TargetAddress != "" {
			s.WriteString(headerStyle.Render(fmt.Sprintf("target %s %s", r.TargetAddress, r.TargetName)))
			s.WriteString("\n")
		}
		for _, reason := range r.Reasons {
			style := headerStyle
			marker := "·"
			switch reason.Polarity {
			case telemetry.PolarityPositive:
				style = accentStyle(telemetry.AccentSuccess)
				marker = "+"
			case telemetry.PolarityNegative:
				style = accentStyle(telemetry.AccentDanger)
				marker = "-"
			}
			s.WriteString(style.Render(marker+" "+reason.Text) + "\n")
		}
	}

	s.WriteString("\n")
	s.WriteString(statsLabelStyle.Render("LATENCY (ms)"))
	s.WriteString("\n")

	if !m.hasView || m.view.Projection.Len() == 0 {
		s.WriteString(headerStyle.Render("  (no integrity reports)"))
		return s.String()
	}

	p := m.view.Projection
	labelWidth := 0
	for _, l := range p.Labels {
		if n := lipgloss.Width(l); n > labelWidth {
			labelWidth = n
		}
	}
	barWidth := width - labelWidth - 18
	if barWidth < 5 {
		barWidth = 5
	}
	peak := p.Max()
	meanStyle := accentStyle(telemetry.AccentSim)
	jitterStyle := accentStyle(telemetry.AccentBridge)
	for i, label := range p.Labels {
		s.WriteString(fmt.Sprintf("%-*s %s %6.1f\n", labelWidth, label,
			meanStyle.Render(bar(p.LatencyMean[i], peak, barWidth)), p.LatencyMean[i]))
		s.WriteString(fmt.Sprintf("%-*s %s %6.1f\n", labelWidth, "",
			jitterStyle.Render(bar(p.LatencyJitter[i], peak, barWidth)), p.LatencyJitter[i]))
	}
	s.WriteString(headerStyle.Render(meanStyle.Render("■") + " mean  " + jitterStyle.Render("■") + " jitter"))

	return s.String()
}

func (m dashboardModel) renderControls(statsLabelStyle, statsValueStyle, headerStyle, warningStyle lipgloss.Style) string {
	var s strings.Builder

	switch {
	case !m.element(telemetry.ElemCtrlBridge).Hidden:
		slider := m.element(telemetry.ElemBoostSlider)
		value := slider.Value
		if m.focusedField == focusBoost {
			value = m.draft
		}
		s.WriteString(statsLabelStyle.Render("BOOST "))
		s.WriteString(sliderBar(value, slider.Max, sliderWidth))
		s.WriteString(" ")
		s.WriteString(statsValueStyle.Render(m.element(telemetry.ElemBoostLabel).Text + " " + m.element(telemetry.ElemBoostUnit).Text))
		s.WriteString(headerStyle.Render(fmt.Sprintf("  (0-%d)", slider.Max)))
		if m.hasView && m.view.State.Boost.Active {
			s.WriteString(warningStyle.Render("  sending..."))
		}

	case !m.element(telemetry.ElemCtrlSim).Hidden:
		slider := m.element(telemetry.ElemSimSlider)
		value := slider.Value
		if m.focusedField == focusSim {
			value = m.draft
		}
		s.WriteString(statsLabelStyle.Render("SIM BASE "))
		s.WriteString(sliderBar(value, slider.Max, sliderWidth))
		s.WriteString(" ")
		s.WriteString(statsValueStyle.Render(m.element(telemetry.ElemSimLabel).Text))
		s.WriteString(headerStyle.Render(fmt.Sprintf("  (0-%d W)", slider.Max)))
		if m.hasView && m.view.State.Sim.Active {
			s.WriteString(warningStyle.Render("  sending..."))
		}

	default:
		s.WriteString(headerStyle.Render("No controls available"))
	}

	if m.focusedField == focusDeviceList {
		s.WriteString(headerStyle.Render("  [tab to adjust]"))
	}
	return s.String()
}

func (m dashboardModel) renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle lipgloss.Style) string {
	st := m.view.Stats
	var errorPercent float64
	if st.TotalFrames > 0 {
		errorPercent = float64(st.MalformedFrames) * 100.0 / float64(st.TotalFrames)
	}

	errText := statsValueStyle.Render("0.0%")
	if errorPercent > 0 {
		errText = errorStyle.Render(fmt.Sprintf("%.1f%%", errorPercent))
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Frames:"), statsValueStyle.Render(fmt.Sprintf("%d", st.TotalFrames)),
		statsLabelStyle.Render("Errors:"), errText,
		statsLabelStyle.Render("Anomalies:"), statsValueStyle.Render(fmt.Sprintf("%d", st.Anomalies)),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f/s", st.FrameRate)),
		statsLabelStyle.Render("Sent:"), statsValueStyle.Render(fmt.Sprintf("%d", st.CommandsSent)),
		statsLabelStyle.Render("Stale:"), statsValueStyle.Render(fmt.Sprintf("%d", st.StaleEvents)),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m dashboardModel) renderEventLog(statsLabelStyle, warningStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyleLocal := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	entries := m.view.Log
	startIdx := len(entries) - eventLogHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(entries) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(entries); i++ {
			entry := entries[i]
			timestamp := entry.Timestamp.Format("15:04:05.000")
			icon := "i"
			style := warningStyle
			if entry.IsError {
				icon = "x"
				style = errorStyleLocal
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(timestamp),
				style.Render(icon),
				entry.Message))
		}
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

// sparkline renders the newest width samples scaled to peak
func sparkline(values []float64, peak float64, width int) string {
	if len(values) > width {
		values = values[len(values)-width:]
	}
	out := make([]rune, len(values))
	for i, v := range values {
		idx := 0
		if peak > 0 && v > 0 {
			idx = int(math.Round(v / peak * float64(len(sparkRunes)-1)))
		}
		out[i] = sparkRunes[clampInt(idx, 0, len(sparkRunes)-1)]
	}
	return string(out)
}

func bar(v, peak float64, width int) string {
	n := 0
	if peak > 0 && v > 0 {
		n = int(math.Round(v / peak * float64(width)))
	}
	n = clampInt(n, 0, width)
	return strings.Repeat("█", n) + strings.Repeat(" ", width-n)
}

func sliderBar(value, ceiling, width int) string {
	n := 0
	if ceiling > 0 {
		n = clampInt(value*width/ceiling, 0, width)
	}
	return "[" + strings.Repeat("█", n) + strings.Repeat("░", width-n) + "]"
}

func formatAge(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	return telemetry.FormatUptime(d)
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

func orUnknown(s string) string {
	if s == "" {
		return telemetry.UnknownText
	}
	return s
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

//////////////////////////////////////////////////////////////
// Intents
//////////////////////////////////////////////////////////////

// emit hands an intent to the dispatcher without blocking the UI
func (m *dashboardModel) emit(in telemetry.Intent) {
	select {
	case m.intents <- in:
		m.notice = ""
	default:
		m.notice = "Input dropped: dispatcher busy"
		logger.Printf("tui: dropped %T", in)
	}
}

func (m *dashboardModel) selectTrainer() {
	item, ok := m.deviceList.SelectedItem().(rowItem)
	if !ok || item.row.Placeholder {
		return
	}
	m.emit(telemetry.SelectTargetIntent{Address: item.row.Address})
}

// nudge steps the focused slider and sends the new value
func (m *dashboardModel) nudge(dir int) {
	if m.focusedField == focusDeviceList {
		return
	}
	step := simStep
	if m.focusedField == focusBoost {
		step = boostFixedStep
		if m.hasView && m.view.State.BoostType == telemetry.BoostPercent {
			step = boostPercentStep
		}
	}
	next := clampInt(m.draft+dir*step, 0, m.sliderMax())
	if next == m.draft {
		return
	}
	m.draft = next
	m.emitSlider()
}

func (m *dashboardModel) emitSlider() {
	switch m.focusedField {
	case focusBoost:
		m.emit(telemetry.BoostIntent{Value: m.draft})
	case focusSim:
		m.emit(telemetry.SimIntent{Watts: m.draft})
	}
}

func (m *dashboardModel) sliderMax() int {
	switch m.focusedField {
	case focusBoost:
		if ceiling := m.element(telemetry.ElemBoostSlider).Max; ceiling > 0 {
			return ceiling
		}
		return telemetry.BoostFixedMax
	case focusSim:
		if ceiling := m.element(telemetry.ElemSimSlider).Max; ceiling > 0 {
			return ceiling
		}
		return telemetry.SimMax
	}
	return 0
}

// cycleFocus moves between the device list and the visible slider
func (m *dashboardModel) cycleFocus(delta int) {
	order := m.focusables()
	idx := 0
	for i, f := range order {
		if f == m.focusedField {
			idx = i
		}
	}
	idx = (idx + delta + len(order)) % len(order)
	m.setFocus(order[idx])
}

func (m *dashboardModel) focusables() []int {
	order := []int{focusDeviceList}
	if !m.element(telemetry.ElemCtrlBridge).Hidden {
		order = append(order, focusBoost)
	}
	if !m.element(telemetry.ElemCtrlSim).Hidden {
		order = append(order, focusSim)
	}
	return order
}

func (m *dashboardModel) setFocus(f int) {
	if f == m.focusedField {
		return
	}
	m.focusedField = f
	switch f {
	case focusBoost:
		m.draft = m.element(telemetry.ElemBoostSlider).Value
		m.emit(telemetry.FocusIntent{Element: telemetry.ElemBoostSlider})
	case focusSim:
		m.draft = m.element(telemetry.ElemSimSlider).Value
		m.emit(telemetry.FocusIntent{Element: telemetry.ElemSimSlider})
	default:
		m.emit(telemetry.FocusIntent{})
	}
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

// element reads from the latest view; before the first view it reads the
// power-on page
func (m dashboardModel) element(id telemetry.ElementID) telemetry.Element {
	if m.hasView && m.view.Page != nil {
		return m.view.Page.Get(id)
	}
	return powerOnPage.Get(id)
}

var powerOnPage = telemetry.DashboardPage()

func (m *dashboardModel) applyView(v telemetry.View) tea.Cmd {
	m.view = v
	m.hasView = true

	// A mode switch can hide the focused slider
	visible := false
	for _, f := range m.focusables() {
		if f == m.focusedField {
			visible = true
		}
	}
	if !visible {
		m.setFocus(focusDeviceList)
	}

	// A boost type switch can shrink the range under the draft
	if m.focusedField != focusDeviceList {
		m.draft = clampInt(m.draft, 0, m.sliderMax())
	}

	// The list cursor is positional; keep it on the same device
	hovered := ""
	if item, ok := m.deviceList.SelectedItem().(rowItem); ok && !item.row.Placeholder {
		hovered = item.row.Address
	}

	items := make([]list.Item, len(v.Rows))
	for i, r := range v.Rows {
		items[i] = rowItem{row: r}
	}
	cmd := m.deviceList.SetItems(items)

	switch idx := rowIndex(v.Rows, hovered); {
	case idx >= 0:
		m.deviceList.Select(idx)
	case m.deviceList.Index() >= len(items) && len(items) > 0:
		m.deviceList.Select(len(items) - 1)
	}
	return cmd
}

func rowIndex(rows []telemetry.Row, address string) int {
	if address == "" {
		return -1
	}
	for i, r := range rows {
		if !r.Placeholder && r.Address == address {
			return i
		}
	}
	return -1
}

func (m *dashboardModel) updateListSize() {
	listHeight := m.height / 3
	if listHeight < 6 {
		listHeight = 6
	}
	m.deviceList.SetSize(leftPanelWidth-2, listHeight)
}
