package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/vst/cli/reader"
)

// defaultTableHeight is the number of chunk rows shown before a resize.
const defaultTableHeight = 15

// InspectModel is a Bubble Tea model listing the chunks of one stream.
type InspectModel struct {
	data     *reader.StreamInspection
	table    table.Model
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(data *reader.StreamInspection) InspectModel {
	columns := []table.Column{
		{Title: "#", Width: 6},
		{Title: "Offset", Width: 10},
		{Title: "Message", Width: 12},
		{Title: "Kind", Width: 6},
		{Title: "Total/Pos", Width: 10},
		{Title: "Msg Len", Width: 10},
		{Title: "Payload", Width: 9},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(chunkRows(data)),
		table.WithFocused(true),
		table.WithHeight(defaultTableHeight),
	)
	t.SetStyles(tableStyles())
	return InspectModel{data: data, table: t}
}

func chunkRows(data *reader.StreamInspection) []table.Row {
	if data == nil {
		return nil
	}
	rows := make([]table.Row, 0, len(data.Chunks))
	for _, c := range data.Chunks {
		kind := "cont"
		if c.First {
			kind = "first"
		}
		rows = append(rows, table.Row{
			strconv.Itoa(c.Index),
			strconv.FormatInt(c.Offset, 10),
			strconv.FormatUint(c.MessageID, 10),
			kind,
			strconv.FormatUint(uint64(c.Number), 10),
			strconv.FormatUint(c.MessageLength, 10),
			strconv.Itoa(c.Payload),
		})
	}
	return rows
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// title, summary, help and borders
		m.table.SetHeight(max(msg.Height-10, 3))
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}
	if m.data == nil {
		return "Invalid data type for inspect_stream"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Chunk Stream: " + m.data.Source))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s   %s %s   %s %s\n",
		LabelStyle.Width(0).Render("Chunks:"), ValueStyle.Render(strconv.Itoa(len(m.data.Chunks))),
		LabelStyle.Width(0).Render("Messages:"), ValueStyle.Render(strconv.Itoa(m.data.Messages)),
		LabelStyle.Width(0).Render("Bytes:"), ValueStyle.Render(strconv.FormatInt(m.data.Bytes, 10)))
	if m.data.Error != "" {
		b.WriteString(ErrorStyle.Render("stream error: " + m.data.Error))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.table.View())

	help := HelpStyle.Render("↑/↓ to scroll, q or Ctrl+C to quit")
	return b.String() + "\n" + help
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunInspectTUI runs the inspect TUI.
func RunInspectTUI(data any) error {
	inspection, ok := data.(*reader.StreamInspection)
	if !ok {
		return fmt.Errorf("inspect_stream: unexpected data type %T", data)
	}
	p := tea.NewProgram(NewInspectModel(inspection), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderInspectStatic renders inspect data without full TUI (for fallback).
func RenderInspectStatic(data *reader.StreamInspection) string {
	model := NewInspectModel(data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
