package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chaz8081/cloudctl/internal/ble"
	"github.com/chaz8081/cloudctl/internal/ble/protocol"
	"github.com/chaz8081/cloudctl/internal/cloud"
	"github.com/chaz8081/cloudctl/internal/led"
)

const (
	maxNotices     = 5
	brightnessStep = 16
	intervalStep   = 10
)

type promptKind int

const (
	promptNone promptKind = iota
	promptRename
	promptColor
)

type notice struct {
	at    time.Time
	text  string
	isErr bool
}

// eventMsg carries a cloud.Event into the program.
type eventMsg cloud.Event

// opErrMsg reports a rejected input that produced no notice of its own.
type opErrMsg struct{ err error }

// controlModel is the Bubble Tea model for the control TUI. Manager calls
// run inside tea.Cmds; Update itself never blocks on the transport.
type controlModel struct {
	ctx context.Context
	mgr *cloud.Manager

	keys    keyMap
	help    help.Model
	spinner spinner.Model
	input   textinput.Model
	prompt  promptKind

	adapterState ble.AdapterState
	scanning     bool
	discovered   []ble.Peripheral
	cursor       int
	clouds       []cloud.Cloud
	active       string

	randomInterval int
	notices        []notice
	width          int
}

func initialControlModel(ctx context.Context, mgr *cloud.Manager) controlModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))

	ti := textinput.New()
	ti.CharLimit = 32
	ti.Width = 24

	m := controlModel{
		ctx:            ctx,
		mgr:            mgr,
		keys:           defaultKeyMap(),
		help:           help.New(),
		spinner:        sp,
		input:          ti,
		randomInterval: 30,
		width:          80,
	}
	m.refresh()
	return m
}

func (m *controlModel) refresh() {
	m.adapterState = m.mgr.AdapterState()
	m.scanning = m.mgr.IsScanning()
	m.discovered = m.mgr.Discovered()
	m.clouds = m.mgr.Clouds()
	m.active = m.mgr.ActiveID()
	if m.cursor >= len(m.discovered) {
		m.cursor = max(len(m.discovered)-1, 0)
	}
}

func (m controlModel) activeCloud() (cloud.Cloud, bool) {
	for _, c := range m.clouds {
		if c.ID == m.active {
			return c, true
		}
	}
	return cloud.Cloud{}, false
}

func (m *controlModel) addNotice(text string, isErr bool) {
	m.notices = append(m.notices, notice{at: time.Now(), text: text, isErr: isErr})
	if len(m.notices) > maxNotices {
		m.notices = m.notices[len(m.notices)-maxNotices:]
	}
}

// do runs f off the UI goroutine. Failures already surfaced as notices are
// not reported twice.
func do(f func() error) tea.Cmd {
	return func() tea.Msg {
		if err := f(); err != nil && isInputErr(err) {
			return opErrMsg{err}
		}
		return nil
	}
}

func isInputErr(err error) bool {
	for _, target := range []error{
		protocol.ErrInvalidColor,
		protocol.ErrUnknownAnimation,
		protocol.ErrUnknownMatrixColor,
		protocol.ErrUnknownPalette,
		led.ErrInvalidHeartSlot,
		cloud.ErrEmptyName,
		cloud.ErrUnknownCloud,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	if m.scanning {
		return m.spinner.Tick
	}
	return nil
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		if !m.scanning {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		return m.handleEvent(cloud.Event(msg))

	case opErrMsg:
		m.addNotice(msg.err.Error(), true)
		return m, nil

	case tea.KeyMsg:
		if m.prompt != promptNone {
			return m.handlePromptKey(msg)
		}
		return m.handleKeyMsg(msg)
	}
	return m, nil
}

func (m controlModel) handleEvent(ev cloud.Event) (tea.Model, tea.Cmd) {
	wasScanning := m.scanning
	m.refresh()

	switch ev.Kind {
	case cloud.EventNotice:
		m.addNotice(ev.Message, true)
	case cloud.EventConnected:
		if c, ok := m.mgr.Cloud(ev.CloudID); ok {
			m.addNotice("Connected to "+c.Name, false)
		}
	case cloud.EventDisconnected:
		m.addNotice("Disconnected "+ev.CloudID, false)
	}

	if m.scanning && !wasScanning {
		return m, m.spinner.Tick
	}
	return m, nil
}

func (m controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	c, hasActive := m.activeCloud()
	st := c.State

	switch {
	case key.Matches(msg, k.Quit):
		return m, tea.Quit
	case key.Matches(msg, k.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, k.Scan):
		return m, do(func() error { return m.mgr.StartScan(m.ctx) })
	case key.Matches(msg, k.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case key.Matches(msg, k.Down):
		if m.cursor < len(m.discovered)-1 {
			m.cursor++
		}
		return m, nil
	case key.Matches(msg, k.Connect):
		if len(m.discovered) == 0 {
			return m, nil
		}
		p := m.discovered[m.cursor]
		m.addNotice("Connecting to "+peripheralLabel(p)+"...", false)
		return m, do(func() error {
			_, err := m.mgr.Connect(m.ctx, p)
			return err
		})
	case key.Matches(msg, k.Switch):
		if next, ok := m.nextCloud(); ok {
			return m, do(func() error { return m.mgr.SwitchTo(next) })
		}
		return m, nil
	}

	if !hasActive {
		if isCloudKey(msg, k) {
			m.addNotice("Connect a cloud first.", true)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, k.Disconnect):
		id := c.ID
		return m, do(func() error { return m.mgr.Disconnect(id) })
	case key.Matches(msg, k.Rename):
		return m.openPrompt(promptRename, "Name: ", c.Name)
	case key.Matches(msg, k.Color):
		return m.openPrompt(promptColor, "Color (#RRGGBB): ", st.Color)

	case key.Matches(msg, k.Power):
		return m, do(m.mgr.TogglePower)
	case key.Matches(msg, k.Dimmer):
		v := float64(st.Brightness - brightnessStep)
		return m, do(func() error { return m.mgr.SetBrightness(v) })
	case key.Matches(msg, k.Brighter):
		v := float64(st.Brightness + brightnessStep)
		return m, do(func() error { return m.mgr.SetBrightness(v) })
	case key.Matches(msg, k.NextAnim):
		a := stepAnimation(st.Animation, 1)
		return m, do(func() error { return m.mgr.SelectAnimation(string(a)) })
	case key.Matches(msg, k.PrevAnim):
		a := stepAnimation(st.Animation, -1)
		return m, do(func() error { return m.mgr.SelectAnimation(string(a)) })
	case key.Matches(msg, k.Stop):
		return m, do(m.mgr.StopAnimation)
	case key.Matches(msg, k.Solid):
		return m, do(m.mgr.SetSolidMode)
	case key.Matches(msg, k.Cycle):
		return m, do(m.mgr.ToggleColorCycle)

	case key.Matches(msg, k.Eye):
		col := nextMatrixColor(st.MatrixEyeColor)
		return m, do(func() error { return m.mgr.SetMatrixEyeColor(string(col)) })
	case key.Matches(msg, k.Pupil):
		col := nextMatrixColor(st.MatrixPupilColor)
		return m, do(func() error { return m.mgr.SetMatrixPupilColor(string(col)) })
	case key.Matches(msg, k.Heart):
		return m, do(m.mgr.ToggleMatrixHeart)
	case key.Matches(msg, k.Visualizer):
		return m, do(m.mgr.ToggleMatrixVisualizer)
	case key.Matches(msg, k.Clock):
		return m, do(m.mgr.ToggleMatrixClock)
	case key.Matches(msg, k.Heart1):
		col := nextMatrixColor(st.MatrixHeart1Color)
		return m, do(func() error { return m.mgr.SetMatrixHeartColor(1, string(col)) })
	case key.Matches(msg, k.Heart2):
		col := nextMatrixColor(st.MatrixHeart2Color)
		return m, do(func() error { return m.mgr.SetMatrixHeartColor(2, string(col)) })
	case key.Matches(msg, k.ClockColor):
		col := nextMatrixColor(st.MatrixClockColor)
		return m, do(func() error { return m.mgr.SetMatrixClockColor(string(col)) })

	case key.Matches(msg, k.Palette):
		id := 0
		if st.HasPalette() {
			id = (st.Palette + 1) % len(protocol.Palettes)
		}
		return m, do(func() error { return m.mgr.SelectPalette(id) })
	case key.Matches(msg, k.NoPalette):
		return m, do(m.mgr.DisablePalette)
	case key.Matches(msg, k.SlowerRand), key.Matches(msg, k.FasterRand):
		step := intervalStep
		if key.Matches(msg, k.FasterRand) {
			step = -intervalStep
		}
		m.randomInterval = protocol.ClampRandomInterval(m.randomInterval + step)
		secs := m.randomInterval
		return m, do(func() error { return m.mgr.SetRandomInterval(secs) })
	}
	return m, nil
}

func isCloudKey(msg tea.KeyMsg, k keyMap) bool {
	return key.Matches(msg, k.Disconnect, k.Rename, k.Color, k.Power, k.Dimmer, k.Brighter,
		k.NextAnim, k.PrevAnim, k.Stop, k.Solid, k.Cycle, k.Eye, k.Pupil, k.Heart,
		k.Visualizer, k.Clock, k.Heart1, k.Heart2, k.ClockColor, k.Palette, k.NoPalette,
		k.SlowerRand, k.FasterRand)
}

func (m controlModel) openPrompt(kind promptKind, label, value string) (tea.Model, tea.Cmd) {
	m.prompt = kind
	m.input.Prompt = label
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m, m.input.Focus()
}

func (m controlModel) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.prompt = promptNone
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		kind, value := m.prompt, m.input.Value()
		m.prompt = promptNone
		m.input.Blur()
		switch kind {
		case promptRename:
			id := m.active
			return m, do(func() error { return m.mgr.Rename(id, value) })
		case promptColor:
			return m, do(func() error { return m.mgr.SetColor(strings.TrimSpace(value)) })
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m controlModel) nextCloud() (string, bool) {
	if len(m.clouds) < 2 {
		return "", false
	}
	for i, c := range m.clouds {
		if c.ID == m.active {
			return m.clouds[(i+1)%len(m.clouds)].ID, true
		}
	}
	return m.clouds[0].ID, true
}

func stepAnimation(cur protocol.Animation, delta int) protocol.Animation {
	n := len(protocol.Animations)
	for i, a := range protocol.Animations {
		if a.ID == cur {
			return protocol.Animations[(i+delta+n)%n].ID
		}
	}
	if delta < 0 {
		return protocol.Animations[n-1].ID
	}
	return protocol.Animations[0].ID
}

func nextMatrixColor(cur protocol.MatrixColor) protocol.MatrixColor {
	for i, c := range protocol.MatrixColors {
		if c == cur {
			return protocol.MatrixColors[(i+1)%len(protocol.MatrixColors)]
		}
	}
	return protocol.MatrixColors[0]
}

func peripheralLabel(p ble.Peripheral) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

const (
	panelWidth   = 34
	detailsWidth = 52
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Background(lipgloss.Color("235")).Padding(0, 1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Width(12)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Bold(true)
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
)

func (m controlModel) View() string {
	var s strings.Builder

	status := "Bluetooth: " + m.adapterState.String()
	if m.scanning {
		status += "  " + m.spinner.View() + " scanning"
	}
	s.WriteString(titleStyle.Render("cloudctl") + "  " + mutedStyle.Render(status) + "\n\n")

	left := lipgloss.JoinVertical(lipgloss.Left,
		boxStyle.Width(panelWidth).Render(m.renderDiscovered()),
		boxStyle.Width(panelWidth).Render(m.renderClouds()),
	)
	right := boxStyle.Width(detailsWidth).Render(m.renderActive())
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right))
	s.WriteString("\n")

	if m.prompt != promptNone {
		s.WriteString(m.input.View() + "\n")
	}
	for _, n := range m.notices {
		line := n.at.Format("15:04:05") + " " + n.text
		if n.isErr {
			s.WriteString(errorStyle.Render(line) + "\n")
		} else {
			s.WriteString(mutedStyle.Render(line) + "\n")
		}
	}
	s.WriteString("\n" + m.help.View(m.keys))
	return s.String()
}

func (m controlModel) renderDiscovered() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render("Discovered") + "\n")
	if len(m.discovered) == 0 {
		s.WriteString(mutedStyle.Render("press s to scan"))
		return s.String()
	}
	for i, p := range m.discovered {
		line := fmt.Sprintf("%s %s", peripheralLabel(p), mutedStyle.Render(p.ID))
		if i == m.cursor {
			s.WriteString(cursorStyle.Render("> ") + line + "\n")
		} else {
			s.WriteString("  " + line + "\n")
		}
	}
	return strings.TrimRight(s.String(), "\n")
}

func (m controlModel) renderClouds() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render("Connected") + "\n")
	if len(m.clouds) == 0 {
		s.WriteString(mutedStyle.Render("none"))
		return s.String()
	}
	for _, c := range m.clouds {
		if c.ID == m.active {
			s.WriteString(activeStyle.Render("* "+c.Name) + "\n")
		} else {
			s.WriteString("  " + c.Name + "\n")
		}
	}
	return strings.TrimRight(s.String(), "\n")
}

func (m controlModel) renderActive() string {
	c, ok := m.activeCloud()
	if !ok {
		return mutedStyle.Render("No active cloud")
	}
	st := c.State

	row := func(label, value string) string {
		return labelStyle.Render(label) + value + "\n"
	}

	var s strings.Builder
	s.WriteString(headerStyle.Render(c.Name) + " " + mutedStyle.Render(c.ID) + "\n\n")
	s.WriteString(row("Power", onOff(st.Power)))
	s.WriteString(row("Color", swatch(st.Color)+" "+valueStyle.Render(st.Color)))
	s.WriteString(row("Brightness", brightnessBar(st.Color, st.Brightness)+" "+valueStyle.Render(fmt.Sprint(st.Brightness))))
	s.WriteString(row("Animation", valueStyle.Render(st.Animation.Name())))
	s.WriteString(row("Color cycle", onOff(st.ColorCycle)))
	s.WriteString(row("Matrix", valueStyle.Render(st.MatrixMode())))
	s.WriteString(row("  eye/pupil", matrixSwatch(st.MatrixEyeColor)+" "+matrixSwatch(st.MatrixPupilColor)))
	s.WriteString(row("  hearts", matrixSwatch(st.MatrixHeart1Color)+" "+matrixSwatch(st.MatrixHeart2Color)))
	s.WriteString(row("  clock", matrixSwatch(st.MatrixClockColor)))
	s.WriteString(row("Palette", paletteView(st)))
	s.WriteString(row("Random", valueStyle.Render(fmt.Sprintf("%ds", m.randomInterval))))
	if !st.Power {
		s.WriteString("\n" + mutedStyle.Render("Powered off: changes are kept and sent after power on."))
	}
	return strings.TrimRight(s.String(), "\n")
}

func onOff(on bool) string {
	if on {
		return valueStyle.Render("on")
	}
	return mutedStyle.Render("off")
}

func paletteView(st led.State) string {
	if !st.HasPalette() {
		return mutedStyle.Render("none")
	}
	p, err := protocol.LookupPalette(st.Palette)
	if err != nil {
		return errorStyle.Render("unknown")
	}
	var sw strings.Builder
	for _, hex := range p.Colors {
		sw.WriteString(swatch(hex))
	}
	return sw.String() + " " + valueStyle.Render(p.Name)
}
