package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/vst/cli/reader"
)

// StatsModel is a Bubble Tea model for the assembly summary.
type StatsModel struct {
	data     *reader.AssemblySummary
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(data *reader.AssemblySummary) StatsModel {
	return StatsModel{data: data}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}
	if m.data == nil {
		return "Invalid data type for stats_assembly"
	}
	s := m.data.Metrics

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Assembly: %s (%d streams)", m.data.Session, m.data.Streams)))
	b.WriteString("\n\n")

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderStatBox("Chunks Read", s.ChunksRead, highlightColor),
		m.renderStatBox("Assembled", s.MessagesAssembled, successColor),
		m.renderStatBox("Bytes", s.BytesAssembled, highlightColor),
	))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderStatBox("Pending", s.PendingAtClose, warningColor),
		m.renderStatBox("Evicted", s.EntriesEvicted, warningColor),
		m.renderStatBox("Protocol Errors", s.ProtocolErrors, errorColor),
		m.renderStatBox("Framing Errors", s.FramingErrors, errorColor),
	))

	if s.JournalBackend != "" || s.AdapterPublishFailure > 0 {
		b.WriteString("\n\n")
		fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render("Journal:"), ValueStyle.Render(s.JournalBackend))
		fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render("Journal Writes:"),
			ValueStyle.Render(fmt.Sprintf("%d ok, %d failed", s.JournalWriteSuccess, s.JournalWriteFailure)))
		fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render("Publish Fails:"),
			CountStyle(s.AdapterPublishFailure, ErrorStyle).Render(strconv.FormatInt(s.AdapterPublishFailure, 10)))
	}

	if len(m.data.Pending) > 0 {
		b.WriteString("\n")
		b.WriteString(WarningStyle.Render("Incomplete messages"))
		b.WriteString("\n")
		for _, e := range m.data.Pending {
			fmt.Fprintf(&b, "  • %s %d/%d chunks, %d bytes\n",
				ValueStyle.Render(strconv.FormatUint(e.MessageID, 10)),
				e.Received, e.TotalChunks, e.ReceivedBytes)
		}
	}

	if m.data.Error != "" {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render("error: " + m.data.Error))
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return b.String() + "\n" + help
}

func (m StatsModel) renderStatBox(label string, value int64, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := CountStyle(value, StatValueStyle.Foreground(color)).Render(strconv.FormatInt(value, 10))
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}

// RunStatsTUI runs the stats TUI.
func RunStatsTUI(data any) error {
	summary, ok := data.(*reader.AssemblySummary)
	if !ok {
		return fmt.Errorf("stats_assembly: unexpected data type %T", data)
	}
	p := tea.NewProgram(NewStatsModel(summary), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatsStatic renders stats data without full TUI (for fallback).
func RenderStatsStatic(data *reader.AssemblySummary) string {
	model := NewStatsModel(data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
