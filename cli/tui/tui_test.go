package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/justapithecus/vst/assembly"
	"github.com/justapithecus/vst/cli/reader"
	"github.com/justapithecus/vst/metrics"
)

func TestIsTUISupported(t *testing.T) {
	tests := []struct {
		viewType string
		want     bool
	}{
		{ViewInspectStream, true},
		{ViewStatsAssembly, true},
		{"split", false},
		{"request_decode", false},
		{"journal_list", false},
		{"version", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.viewType, func(t *testing.T) {
			if got := IsTUISupported(tt.viewType); got != tt.want {
				t.Errorf("IsTUISupported(%q) = %v, want %v", tt.viewType, got, tt.want)
			}
		})
	}
}

func TestRun_UnsupportedViewType(t *testing.T) {
	if err := Run("version", nil); err == nil {
		t.Error("Run(version) succeeded, want error")
	}
}

func TestRun_WrongDataType(t *testing.T) {
	if err := Run(ViewInspectStream, "not an inspection"); err == nil {
		t.Error("Run with wrong data type succeeded, want error")
	}
}

func sampleInspection() *reader.StreamInspection {
	return &reader.StreamInspection{
		Source: "capture.vst",
		Chunks: []reader.ChunkRow{
			{Index: 0, Offset: 0, Length: 28, MessageID: 77, First: true, Number: 2, MessageLength: 6, Payload: 4},
			{Index: 1, Offset: 28, Length: 26, MessageID: 77, Number: 1, MessageLength: 6, Payload: 2},
		},
		Messages: 1,
		Bytes:    54,
	}
}

func TestRenderStatic_Inspect(t *testing.T) {
	view, err := RenderStatic(ViewInspectStream, sampleInspection())
	if err != nil {
		t.Fatalf("RenderStatic failed: %v", err)
	}
	for _, want := range []string{"capture.vst", "77", "first", "cont"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestRenderStatic_Stats(t *testing.T) {
	summary := &reader.AssemblySummary{
		Session: "edge-1",
		Streams: 2,
		Pending: []assembly.EntryInfo{{MessageID: 5, TotalChunks: 3, Received: 1, ReceivedBytes: 10}},
		Metrics: metrics.Snapshot{ChunksRead: 9, MessagesAssembled: 3, PendingAtClose: 1, JournalBackend: "fs", JournalWriteSuccess: 3},
	}
	view, err := RenderStatic(ViewStatsAssembly, summary)
	if err != nil {
		t.Fatalf("RenderStatic failed: %v", err)
	}
	for _, want := range []string{"edge-1", "Assembled", "Incomplete messages", "1/3 chunks", "3 ok, 0 failed"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestRenderStatic_Errors(t *testing.T) {
	if _, err := RenderStatic("version", nil); err == nil {
		t.Error("RenderStatic(version) succeeded, want error")
	}
	if _, err := RenderStatic(ViewStatsAssembly, sampleInspection()); err == nil {
		t.Error("RenderStatic with mismatched data succeeded, want error")
	}
}

func TestInspectModel_Quit(t *testing.T) {
	m := NewInspectModel(sampleInspection())

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("Update(q) returned nil command, want tea.Quit")
	}
	if view := next.View(); view != "" {
		t.Errorf("View after quit = %q, want empty", view)
	}
}

func TestInspectModel_Resize(t *testing.T) {
	m := NewInspectModel(sampleInspection())
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

	im := next.(InspectModel)
	if im.table.Height() <= m.table.Height() {
		t.Errorf("table height = %d after resize, want more than %d", im.table.Height(), m.table.Height())
	}
}
