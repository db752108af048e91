package tui

import (
	"fmt"
	"slices"

	"github.com/justapithecus/vst/cli/reader"
)

// View types with an interactive rendering.
const (
	ViewInspectStream = "inspect_stream"
	ViewStatsAssembly = "stats_assembly"
)

// Run starts the appropriate TUI based on the view type.
// Returns an error if the view type doesn't support TUI.
func Run(viewType string, data any) error {
	switch viewType {
	case ViewInspectStream:
		return RunInspectTUI(data)
	case ViewStatsAssembly:
		return RunStatsTUI(data)
	default:
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}
}

// IsTUISupported returns true if the view type supports TUI mode.
// Only read-only views (stream inspection and assembly stats) do.
func IsTUISupported(viewType string) bool {
	return slices.Contains(SupportedTUIViews(), viewType)
}

// SupportedTUIViews returns a list of view types that support TUI.
func SupportedTUIViews() []string {
	return []string{ViewInspectStream, ViewStatsAssembly}
}

// RenderStatic renders a view once without taking over the terminal.
func RenderStatic(viewType string, data any) (string, error) {
	switch viewType {
	case ViewInspectStream:
		if d, ok := data.(*reader.StreamInspection); ok {
			return RenderInspectStatic(d), nil
		}
	case ViewStatsAssembly:
		if d, ok := data.(*reader.AssemblySummary); ok {
			return RenderStatsStatic(d), nil
		}
	default:
		return "", fmt.Errorf("TUI mode is not supported for %s", viewType)
	}
	return "", fmt.Errorf("%s: unexpected data type %T", viewType, data)
}
