package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"corepin/internal/launch"
	"corepin/internal/logging"
	"corepin/internal/monitor"
	"corepin/internal/registry"
	"corepin/internal/state"
)

type step int

const (
	stepGroups step = iota
	stepApps
	stepGroupName
	stepGroupCores
	stepAppPath
	stepRenameGroup
	stepEditCores
	stepConfirmDelete
	stepLogs
)

// Deps bundles everything the interactive front end drives. The engine keeps
// running regardless of which screen is open.
type Deps struct {
	State    *state.PersistedState
	Store    *state.Store
	Launcher *launch.Launcher
	Monitor  *monitor.Monitor
	Registry *registry.Registry
	Log      *logging.Logger
	Cores    int
}

type Model struct {
	deps Deps

	step     step
	selGroup int
	selApp   int

	textInput textinput.Model
	// pendingName carries the group name between the name and cores prompts.
	pendingName string

	status string
	width  int
	height int
}

func NewModel(deps Deps) Model {
	ti := textinput.New()
	ti.Placeholder = "..."
	ti.CharLimit = 200
	ti.Width = 40
	ti.TextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#c0caf5"))
	ti.PromptStyle = lipgloss.NewStyle().Foreground(secondaryColor)
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(primaryColor)

	return Model{
		deps:      deps,
		step:      stepGroups,
		textInput: ti,
		width:     80,
		height:    24,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

type launchResultMsg struct {
	result launch.Result
}

type batchResultMsg struct {
	results []launch.Result
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case launchResultMsg:
		m.status = formatResult(msg.result)
		return m, nil

	case batchResultMsg:
		ok, failed := 0, 0
		for _, res := range msg.results {
			if res.Err != nil {
				failed++
			} else {
				ok++
			}
		}
		if failed > 0 {
			m.status = errorTextStyle.Render(fmt.Sprintf("%d launched, %d failed (see logs)", ok, failed))
		} else {
			m.status = coreStyle.Render(fmt.Sprintf("%d launched", ok))
		}
		return m, nil

	case tea.KeyMsg:
		if m.inputStep() {
			return m.handleInputKey(msg)
		}
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) inputStep() bool {
	switch m.step {
	case stepGroupName, stepGroupCores, stepAppPath, stepRenameGroup, stepEditCores:
		return true
	}
	return false
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.step = m.inputOrigin()
		m.status = ""
		return m, nil
	case "enter":
		return m.handleInputEnter()
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m Model) inputOrigin() step {
	if m.step == stepAppPath {
		return stepApps
	}
	return stepGroups
}

func (m Model) handleInputEnter() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.textInput.Value())

	switch m.step {
	case stepGroupName:
		if value == "" {
			return m, nil
		}
		if m.deps.State.Group(value) != nil {
			m.status = errorTextStyle.Render("a group with that name already exists")
			return m, nil
		}
		m.pendingName = value
		m.textInput.SetValue("")
		m.textInput.Placeholder = "0-3,6"
		m.step = stepGroupCores
		return m, textinput.Blink

	case stepGroupCores:
		mask, err := state.ParseCoreMask(value)
		if err != nil {
			m.status = errorTextStyle.Render(err.Error())
			return m, nil
		}
		if err := m.deps.State.AddGroup(state.CoreGroup{Name: m.pendingName, Cores: mask}); err != nil {
			m.status = errorTextStyle.Render(err.Error())
			return m, nil
		}
		m.status = m.save()
		m.selGroup = len(m.deps.State.Groups) - 1
		m.step = stepGroups
		return m, nil

	case stepAppPath:
		if value == "" {
			return m, nil
		}
		group := m.currentGroup()
		if group == nil {
			m.step = stepGroups
			return m, nil
		}
		group.Apps = append(group.Apps, state.NewAppEntry(value, nil))
		m.status = m.save()
		m.selApp = len(group.Apps) - 1
		m.step = stepApps
		return m, nil

	case stepRenameGroup:
		group := m.currentGroup()
		if group == nil || value == "" {
			return m, nil
		}
		if err := m.deps.State.RenameGroup(group.Name, value); err != nil {
			m.status = errorTextStyle.Render(err.Error())
			return m, nil
		}
		m.status = m.save()
		m.step = stepGroups
		return m, nil

	case stepEditCores:
		group := m.currentGroup()
		if group == nil {
			m.step = stepGroups
			return m, nil
		}
		mask, err := state.ParseCoreMask(value)
		if err != nil {
			m.status = errorTextStyle.Render(err.Error())
			return m, nil
		}
		// Affects future launches only; running processes keep the target
		// they were launched with.
		group.Cores = mask
		m.status = m.save()
		m.step = stepGroups
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "up", "k":
		m = m.moveCursor(-1)

	case "down", "j":
		m = m.moveCursor(1)

	case "enter":
		return m.handleEnter()

	case "esc":
		switch m.step {
		case stepApps, stepLogs:
			m.step = stepGroups
			m.status = ""
		case stepConfirmDelete:
			m.step = stepGroups
		}

	case "n":
		switch m.step {
		case stepGroups:
			m.textInput.SetValue("")
			m.textInput.Placeholder = "Group name"
			m.textInput.Focus()
			m.step = stepGroupName
			return m, textinput.Blink
		case stepApps:
			m.textInput.SetValue("")
			m.textInput.Placeholder = "/usr/bin/..."
			m.textInput.Focus()
			m.step = stepAppPath
			return m, textinput.Blink
		case stepConfirmDelete:
			m.step = stepGroups
		}

	case "e":
		if m.step == stepGroups {
			if group := m.currentGroup(); group != nil {
				m.textInput.SetValue(group.Name)
				m.textInput.Placeholder = "Group name"
				m.textInput.Focus()
				m.step = stepRenameGroup
				return m, textinput.Blink
			}
		}

	case "c":
		if m.step == stepGroups {
			if group := m.currentGroup(); group != nil {
				m.textInput.SetValue(group.Cores.String())
				m.textInput.Placeholder = "0-3,6"
				m.textInput.Focus()
				m.step = stepEditCores
				return m, textinput.Blink
			}
		}

	case "d":
		switch m.step {
		case stepGroups:
			if len(m.deps.State.Groups) > 0 {
				m.step = stepConfirmDelete
			}
		case stepApps:
			if group, app := m.currentApp(); app != nil {
				name := app.Name
				group.RemoveApp(app.ID)
				if m.selApp >= len(group.Apps) && m.selApp > 0 {
					m.selApp--
				}
				m.status = m.save()
				if m.status == "" {
					m.status = dimStyle.Render("removed " + name)
				}
			}
		}

	case "r":
		switch m.step {
		case stepGroups:
			if group := m.currentGroup(); group != nil && len(group.Apps) > 0 {
				m.status = dimStyle.Render("launching " + group.Name + "...")
				return m, m.runGroup(*group)
			}
		case stepApps:
			if group, app := m.currentApp(); app != nil {
				m.status = dimStyle.Render("launching " + app.Name + "...")
				return m, m.launchApp(*group, *app)
			}
		}

	case "a":
		if m.step == stepApps {
			if _, app := m.currentApp(); app != nil {
				app.Autorun = !app.Autorun
				m.status = m.save()
			}
		}

	case "p":
		if m.step == stepApps {
			if _, app := m.currentApp(); app != nil {
				app.Priority = nextPriority(app.Priority)
				m.status = m.save()
			}
		}

	case "K":
		if m.step == stepApps {
			if group := m.currentGroup(); group != nil && m.selApp > 0 {
				group.MoveApp(m.selApp, m.selApp-1)
				m.selApp--
				m.status = m.save()
			}
		}

	case "J":
		if m.step == stepApps {
			if group := m.currentGroup(); group != nil && m.selApp < len(group.Apps)-1 {
				group.MoveApp(m.selApp, m.selApp+1)
				m.selApp++
				m.status = m.save()
			}
		}

	case "m":
		if m.step == stepGroups || m.step == stepApps {
			enabled := !m.deps.Monitor.Enabled()
			m.deps.Monitor.SetEnabled(enabled)
			m.deps.State.MonitorEnabled = enabled
			m.status = m.save()
			m.deps.Log.Printf("monitoring %s", onOff(enabled))
		}

	case "l":
		if m.step == stepGroups || m.step == stepApps {
			m.step = stepLogs
		}

	case "y":
		if m.step == stepConfirmDelete {
			if group := m.currentGroup(); group != nil {
				name := group.Name
				if err := m.deps.State.RemoveGroup(name); err == nil {
					if m.selGroup >= len(m.deps.State.Groups) && m.selGroup > 0 {
						m.selGroup--
					}
					m.status = m.save()
					if m.status == "" {
						m.status = dimStyle.Render("removed group " + name)
					}
				}
			}
			m.step = stepGroups
		}
	}

	return m, nil
}

func (m Model) moveCursor(delta int) Model {
	switch m.step {
	case stepGroups:
		n := len(m.deps.State.Groups)
		if n == 0 {
			return m
		}
		m.selGroup = (m.selGroup + delta + n) % n
	case stepApps:
		group := m.currentGroup()
		if group == nil || len(group.Apps) == 0 {
			return m
		}
		n := len(group.Apps)
		m.selApp = (m.selApp + delta + n) % n
	}
	return m
}

func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	switch m.step {
	case stepGroups:
		if m.currentGroup() != nil {
			m.selApp = 0
			m.status = ""
			m.step = stepApps
		}
	case stepApps:
		if group, app := m.currentApp(); app != nil {
			m.status = dimStyle.Render("launching " + app.Name + "...")
			return m, m.launchApp(*group, *app)
		}
	case stepLogs, stepConfirmDelete:
		m.step = stepGroups
	}
	return m, nil
}

func (m Model) currentGroup() *state.CoreGroup {
	if m.selGroup < 0 || m.selGroup >= len(m.deps.State.Groups) {
		return nil
	}
	return &m.deps.State.Groups[m.selGroup]
}

func (m Model) currentApp() (*state.CoreGroup, *state.AppEntry) {
	group := m.currentGroup()
	if group == nil || m.selApp < 0 || m.selApp >= len(group.Apps) {
		return nil, nil
	}
	return group, &group.Apps[m.selApp]
}

func (m Model) launchApp(group state.CoreGroup, app state.AppEntry) tea.Cmd {
	launcher := m.deps.Launcher
	return func() tea.Msg {
		outcome, err := launcher.Launch(context.Background(), group.Name, app, group.Cores)
		return launchResultMsg{result: launch.Result{
			Group:   group.Name,
			App:     app.Name,
			Outcome: outcome,
			Err:     err,
		}}
	}
}

func (m Model) runGroup(group state.CoreGroup) tea.Cmd {
	launcher := m.deps.Launcher
	return func() tea.Msg {
		return batchResultMsg{results: launcher.RunGroup(context.Background(), group)}
	}
}

func (m Model) save() string {
	if err := m.deps.Store.Save(context.Background(), m.deps.State); err != nil {
		m.deps.Log.Printf("save state: %v", err)
		return errorTextStyle.Render(fmt.Sprintf("save failed: %v", err))
	}
	return ""
}

func nextPriority(p state.Priority) state.Priority {
	all := state.Priorities()
	for i, candidate := range all {
		if candidate == p {
			return all[(i+1)%len(all)]
		}
	}
	return state.PriorityNormal
}

func formatResult(res launch.Result) string {
	switch {
	case res.Err != nil:
		return errorTextStyle.Render(fmt.Sprintf("%s: %v", res.App, res.Err))
	case res.Outcome == launch.OutcomeFocused:
		return highlightStyle.Render(res.App + " already running, window focused")
	default:
		return coreStyle.Render("started " + res.App)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	switch m.step {
	case stepGroups, stepConfirmDelete:
		b.WriteString(m.renderGroups())
	case stepApps:
		b.WriteString(m.renderApps())
	case stepGroupName:
		b.WriteString(m.renderInput("? New group name"))
	case stepGroupCores:
		b.WriteString(m.renderInput(fmt.Sprintf("? Cores for %q (e.g. 0-3,6; %d available)", m.pendingName, m.deps.Cores)))
	case stepAppPath:
		b.WriteString(m.renderInput("? Executable path"))
	case stepRenameGroup:
		b.WriteString(m.renderInput("? New group name"))
	case stepEditCores:
		b.WriteString(m.renderInput(fmt.Sprintf("? New core list (e.g. 0-3,6; %d available)", m.deps.Cores)))
	case stepLogs:
		b.WriteString(m.renderLogs())
	}

	if m.step == stepConfirmDelete {
		if group := m.currentGroup(); group != nil {
			b.WriteString("\n")
			b.WriteString(highlightStyle.Render(fmt.Sprintf("  Delete group %q and its %d apps? (y/n)", group.Name, len(group.Apps))))
		}
	}

	if m.status != "" {
		b.WriteString("\n\n  ")
		b.WriteString(m.status)
	}

	b.WriteString("\n\n")
	b.WriteString(m.renderHelp())

	return b.String()
}

func (m Model) renderHeader() string {
	monitorLabel := errorTextStyle.Render("off")
	if m.deps.Monitor.Enabled() {
		monitorLabel = coreStyle.Render("on")
	}
	return titleStyle.Render(" corepin ") + "  " +
		dimStyle.Render("cores:") + fmt.Sprintf(" %d   ", m.deps.Cores) +
		dimStyle.Render("monitoring:") + " " + monitorLabel + "   " +
		dimStyle.Render("tracked:") + fmt.Sprintf(" %d", m.deps.Registry.Len())
}

func (m Model) renderGroups() string {
	var b strings.Builder
	b.WriteString(subtitleStyle.Render("? Core groups"))
	b.WriteString("\n\n")

	if len(m.deps.State.Groups) == 0 {
		b.WriteString(dimStyle.Render("  No groups yet. Press n to create one."))
		return b.String()
	}

	for i, group := range m.deps.State.Groups {
		if i == m.selGroup {
			b.WriteString(cursorStyle.Render("  ▸ "))
			b.WriteString(selectedStyle.Render(group.Name))
		} else {
			b.WriteString("    ")
			b.WriteString(group.Name)
		}
		b.WriteString("  ")
		b.WriteString(coreStyle.Render(group.Cores.String()))
		b.WriteString(dimStyle.Render(fmt.Sprintf("  (%d apps)", len(group.Apps))))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) renderApps() string {
	group := m.currentGroup()
	if group == nil {
		return dimStyle.Render("  Group no longer exists")
	}

	var b strings.Builder
	b.WriteString(subtitleStyle.Render(fmt.Sprintf("? %s on cores %s", group.Name, group.Cores)))
	b.WriteString("\n\n")

	if len(group.Apps) == 0 {
		b.WriteString(dimStyle.Render("  No apps yet. Press n to add one."))
		return b.String()
	}

	for i, app := range group.Apps {
		if i == m.selApp {
			b.WriteString(cursorStyle.Render("  ▸ "))
			b.WriteString(selectedStyle.Render(app.Name))
		} else {
			b.WriteString("    ")
			b.WriteString(app.Name)
		}

		b.WriteString("  ")
		b.WriteString(priorityStyle.Render(string(app.Priority)))
		if app.Autorun {
			b.WriteString(highlightStyle.Render("  autorun"))
		}
		if rp := findRunning(m.deps.Registry, app.ID); rp != nil {
			b.WriteString(runningStyle.Render(fmt.Sprintf("  ● pid %d", rp.PID)))
			if len(rp.Children) > 0 {
				b.WriteString(dimStyle.Render(fmt.Sprintf(" +%d", len(rp.Children))))
			}
		}
		b.WriteString("\n")
		b.WriteString("      " + dimStyle.Render(app.Path))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) renderInput(prompt string) string {
	var b strings.Builder
	b.WriteString(subtitleStyle.Render(prompt))
	b.WriteString("\n\n  > ")
	b.WriteString(m.textInput.View())
	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder
	b.WriteString(subtitleStyle.Render("? Activity log"))
	b.WriteString("\n\n")

	lines := m.deps.Log.Recent()
	if len(lines) == 0 {
		b.WriteString(dimStyle.Render("  Nothing logged yet"))
		return b.String()
	}

	visible := m.height - 8
	if visible < 5 {
		visible = 5
	}
	if len(lines) > visible {
		lines = lines[len(lines)-visible:]
	}
	for _, line := range lines {
		b.WriteString("  " + line + "\n")
	}

	return b.String()
}

func (m Model) renderHelp() string {
	keyStyle := lipgloss.NewStyle().Foreground(secondaryColor)
	sep := dimStyle.Render(" • ")

	entry := func(key, label string) string {
		return keyStyle.Render(key) + helpStyle.Render(" "+label)
	}

	var parts []string
	switch m.step {
	case stepGroups:
		parts = append(parts,
			entry("↑/↓", "navigate"),
			entry("enter", "open"),
			entry("r", "run all"),
			entry("n", "new group"),
			entry("e", "rename"),
			entry("c", "cores"),
			entry("d", "delete"),
			entry("m", "monitoring"),
			entry("l", "logs"),
			entry("q", "quit"))
	case stepApps:
		parts = append(parts,
			entry("↑/↓", "navigate"),
			entry("enter/r", "launch"),
			entry("n", "add app"),
			entry("a", "autorun"),
			entry("p", "priority"),
			entry("J/K", "reorder"),
			entry("d", "remove"),
			entry("esc", "back"))
	case stepLogs:
		parts = append(parts, entry("esc", "back"), entry("q", "quit"))
	case stepConfirmDelete:
		parts = append(parts, entry("y", "delete"), entry("n/esc", "cancel"))
	default:
		parts = append(parts, entry("enter", "confirm"), entry("esc", "cancel"))
	}

	return strings.Join(parts, sep)
}

// Run starts the interactive front end and blocks until the user quits.
func Run(deps Deps) error {
	p := tea.NewProgram(NewModel(deps), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
