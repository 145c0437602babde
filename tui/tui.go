// Package tui is a terminal viewer for a running server's result stream.
package tui

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
)

// fullScale is the RMS drawn as a full meter.
const fullScale = 0.1

// Message is one frame from the server's websocket.
type Message struct {
	ID    string          `json:"id"`
	Type  string          `json:"type"`
	Step  string          `json:"step"`
	Data  json.RawMessage `json:"data"`
	At    time.Time       `json:"at"`
	Level float64         `json:"level"`
}

type observation struct {
	Completed   bool   `json:"completed"`
	Explanation string `json:"explanation"`
}

type stepCheck struct {
	Completed bool        `json:"completed"`
	State     observation `json:"state"`
	Action    observation `json:"action"`
	Hint      string      `json:"hint"`
}

type closedMsg struct{ err error }

var (
	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)
	stepStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	doneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065")).Bold(true)
	hintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))
	meterOn   = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))
)

type model struct {
	viewport viewport.Model
	ready    bool
	messages chan Message

	entries []string
	raw     []string
	showRaw bool

	level float64
	step  string
	err   error
}

func initialModel(messages chan Message) model {
	return model{messages: messages}
}

func (m model) Init() tea.Cmd {
	return waitForMessage(m.messages)
}

func waitForMessage(messages chan Message) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-messages
		if !ok {
			return closedMsg{}
		}
		return msg
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "tab":
			m.showRaw = !m.showRaw
			m.viewport.SetContent(m.contentView())
		}

	case tea.WindowSizeMsg:
		headerHeight := lipgloss.Height(m.headerView())
		footerHeight := lipgloss.Height(m.footerView())
		verticalMarginHeight := headerHeight + footerHeight

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-verticalMarginHeight)
			m.viewport.YPosition = headerHeight
			m.viewport.SetContent(m.contentView())
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - verticalMarginHeight
		}

	case Message:
		if m.apply(msg) {
			m.viewport.SetContent(m.contentView())
			m.viewport.GotoBottom()
		}
		cmds = append(cmds, waitForMessage(m.messages))

	case closedMsg:
		m.err = msg.err
		return m, tea.Quit
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// apply folds msg into the model and reports whether the transcript
// changed.
func (m *model) apply(msg Message) bool {
	switch msg.Type {
	case "level":
		m.level = msg.Level
		return false
	case "speech":
		var text string
		if err := json.Unmarshal(msg.Data, &text); err != nil {
			return false
		}
		m.step = msg.Step
		m.entries = append(m.entries, "remy: "+text)
	case "step_check":
		var check stepCheck
		if err := json.Unmarshal(msg.Data, &check); err != nil {
			return false
		}
		m.step = msg.Step
		m.entries = append(m.entries, formatCheck(msg.Step, check))
	default:
		return false
	}
	m.raw = append(m.raw, fmt.Sprintf("%s %s %s", msg.At.Format("15:04:05"), msg.Type, msg.Data))
	return true
}

func formatCheck(step string, check stepCheck) string {
	var b strings.Builder
	b.WriteString(stepStyle.Render("[" + step + "]"))
	b.WriteString(" ")
	if check.Completed {
		b.WriteString(doneStyle.Render("done"))
		b.WriteString(" ")
	}
	b.WriteString(check.Action.Explanation)
	if check.Hint != "" {
		b.WriteString("\n  ")
		b.WriteString(hintStyle.Render(check.Hint))
	}
	return b.String()
}

func (m model) View() string {
	if !m.ready {
		return "\n  Connecting..."
	}
	return fmt.Sprintf(
		"%s\n%s\n%s",
		m.headerView(),
		m.viewport.View(),
		m.footerView(),
	)
}

func (m model) headerView() string {
	title := barStyle.Render("remy")
	meter := " " + levelBar(m.level, 20) + " "
	line := strings.Repeat(
		"─",
		max(0, m.viewport.Width-lipgloss.Width(title)-lipgloss.Width(meter)),
	)
	return lipgloss.JoinHorizontal(lipgloss.Center, title, meter, line)
}

func (m model) footerView() string {
	step := m.step
	if step == "" {
		step = "no step"
	}
	info := barStyle.Render(step + " · q quits, tab shows raw events")
	line := strings.Repeat("─", max(0, m.viewport.Width-lipgloss.Width(info)))
	return lipgloss.JoinHorizontal(lipgloss.Center, line, info)
}

func (m model) contentView() string {
	lines := m.entries
	if m.showRaw {
		lines = m.raw
	}
	var content strings.Builder
	for _, l := range lines {
		content.WriteString(l)
		content.WriteString("\n")
	}
	return content.String()
}

// levelBar draws level as a meter width cells wide.
func levelBar(level float64, width int) string {
	filled := int(level / fullScale * float64(width))
	filled = min(max(filled, 0), width)
	return meterOn.Render(strings.Repeat("█", filled)) + strings.Repeat("░", width-filled)
}

// Run connects to url and shows the stream until the user quits or the
// server goes away.
func Run(url string) error {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()

	messages := make(chan Message, 64)
	go func() {
		defer close(messages)
		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			messages <- msg
		}
	}()

	final, err := tea.NewProgram(initialModel(messages), tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}
	if m, ok := final.(model); ok && m.err != nil {
		return m.err
	}
	return nil
}
