package client

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	figure "github.com/common-nighthawk/go-figure"
)

const (
	noticePrefix = "* "

	// input, log line and status bar
	chromeHeight   = 3
	minViewport    = 3
	minInputWidth  = 10
	fallbackColumn = 80
)

// View implements tea.Model.
func (a *App) View() string {
	sections := []string{a.viewport.View()}
	if a.showHelp && a.helpView != "" {
		sections = append(sections, a.styles.help.Render(a.helpView))
	}
	sections = append(sections, a.input.View(), a.logLineView(), a.statusLine())
	return strings.Join(sections, "\n")
}

func (a *App) updateViewportContent() {
	switch a.view {
	case viewHelp:
		a.viewport.SetContent(a.renderHelpView())
		a.viewport.GotoTop()
		return
	case viewPipe:
		a.viewport.SetContent(a.renderPipeView())
	default:
		a.viewport.SetContent(a.renderChatView())
	}
	a.viewport.GotoBottom()
}

func (a *App) renderChatView() string {
	if !a.hasActiveRoom() {
		return a.banner()
	}
	if len(a.chatHistory) == 0 {
		return a.styles.label.Render(fmt.Sprintf("No messages in %s yet. Type and press Enter to send.", a.room))
	}
	rows := wrapLines(a.chatHistory, a.contentWidth())
	for i, row := range rows {
		if strings.HasPrefix(row, noticePrefix) {
			rows[i] = a.styles.notice.Render(row)
		}
	}
	return strings.Join(rows, "\n")
}

func (a *App) renderPipeView() string {
	if len(a.pipeHistory) == 0 {
		return a.styles.label.Render("No frames captured yet. Connect and send commands to populate this view.")
	}
	blocks := make([]string, 0, len(a.pipeHistory))
	for _, entry := range a.pipeHistory {
		event := entry.event
		if event == "" {
			event = "?"
		}
		header := fmt.Sprintf("%s %-3s %s", entry.timestamp.Format("15:04:05.000"), entry.direction, event)
		blocks = append(blocks, a.styles.label.Render(header)+"\n"+entry.body)
	}
	return strings.Join(blocks, "\n\n")
}

func (a *App) renderHelpView() string {
	rows := []string{a.styles.title.Render("RoomChat Commands"), ""}
	for _, c := range a.commands {
		rows = append(rows, fmt.Sprintf("  %-22s %s", c.usage, a.styles.label.Render(c.description)))
	}
	rows = append(rows,
		"",
		"Plain input is sent to the current room.",
		"Tab completes commands; PgUp/PgDn scroll; Ctrl+C exits.",
	)
	return strings.Join(rows, "\n")
}

func (a *App) banner() string {
	art := figure.NewColorFigure("ROOM CHAT", "3-d", "green", true).String()
	p := a.cfg.CommandPrefix
	lines := []string{
		strings.TrimRight(art, "\n"),
		"",
		fmt.Sprintf("%cconnect [url]        reach the server (default %s)", p, orDash(a.serverAddr)),
		fmt.Sprintf("%clogin <name> <room>  join a room and load its history", p),
		fmt.Sprintf("%cpipe                 inspect raw protocol frames", p),
		fmt.Sprintf("%chelp                 list every command", p),
	}
	return strings.Join(lines, "\n")
}

func (a *App) hasActiveRoom() bool {
	return strings.TrimSpace(a.room) != ""
}

func (a *App) contentWidth() int {
	if a.viewport.Width > 0 {
		return a.viewport.Width
	}
	return a.width
}

func (a *App) updateViewportSize() {
	if a.height == 0 {
		return
	}
	a.viewport.Width = a.width
	a.viewport.Height = max(a.height-chromeHeight-a.helpHeight, minViewport)
}

func (a *App) updateInputWidth() {
	width := a.width
	if width <= 0 {
		width = fallbackColumn
	}
	a.input.Width = max(width-lipgloss.Width(a.input.Prompt)-1, minInputWidth)
}

// updateHelp shows the commands matching the token being typed.
func (a *App) updateHelp() {
	a.showHelp, a.helpView, a.helpHeight = false, "", 0

	value := a.input.Value()
	if !strings.HasPrefix(value, string(a.cfg.CommandPrefix)) {
		return
	}
	token, _, _ := strings.Cut(value, " ")
	bindings := a.matchingBindings(token)
	if len(bindings) == 0 {
		return
	}

	a.helper.Width = a.width
	a.helpView = strings.TrimRight(a.helper.View(commandKeyMap(bindings)), "\n")
	a.helpHeight = strings.Count(a.helpView, "\n") + 1
	a.showHelp = true
}

func (a *App) matchingBindings(token string) []key.Binding {
	token = strings.ToLower(token)
	var bindings []key.Binding
	for _, c := range a.commands {
		if !strings.HasPrefix(c.trigger, token) {
			continue
		}
		bindings = append(bindings, key.NewBinding(
			key.WithKeys(c.trigger),
			key.WithHelp(c.usage, c.description),
		))
	}
	return bindings
}

func (a *App) statusLine() string {
	state, stateStyle := "OFFLINE", a.styles.statusOffline
	if a.statusOnline {
		state, stateStyle = "ONLINE", a.styles.statusOnline
	}
	field := func(label, value string) string {
		return a.styles.label.Render(label) + ": " + a.styles.value.Render(orDash(value))
	}
	return strings.Join([]string{
		a.styles.title.Render("RoomChat"),
		a.styles.view.Render(strings.ToUpper(a.view.String())),
		stateStyle.Render(state),
		field("Server", a.serverAddr),
		field("User", a.username),
		field("Room", a.room),
	}, " | ")
}

func (a *App) logLineView() string {
	label, body := a.styles.logLabel, a.styles.logBody
	if a.logLine.level == logLevelError {
		label, body = a.styles.logLabelError, a.styles.logBodyError
	}
	return label.Render(a.logLine.label) + " " + body.Render(a.logLine.body)
}

func buildStyles() styleSet {
	fg := func(color string) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
	}
	return styleSet{
		title:         fg("13").Bold(true),
		view:          fg("14").Bold(true),
		statusOnline:  fg("10").Bold(true),
		statusOffline: fg("9").Bold(true),
		label:         fg("8"),
		value:         fg("15"),
		logLabel:      fg("11").Bold(true),
		logBody:       fg("7"),
		logLabelError: fg("9").Bold(true),
		logBodyError:  fg("9"),
		notice:        fg("8").Italic(true),
		help:          fg("12"),
	}
}

// commandKeyMap adapts command bindings to help.KeyMap.
type commandKeyMap []key.Binding

func (k commandKeyMap) ShortHelp() []key.Binding {
	return k
}

func (k commandKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
