// Package render provides centralized output rendering for the vst CLI.
//
// Format selection rules:
//   - If output is a TTY, default to table
//   - If output is not a TTY, default to json
//   - --format flag always overrides defaults
//   - Invalid formats are errors
//
// Color handling:
//   - --no-color affects table output only
//   - TUI mode is unaffected by --no-color (uses its own styling)
package render

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/justapithecus/vst/cli/tui"
)

// Format represents an output format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string, returning an error for invalid formats.
// Empty input returns an empty Format so the caller can pick a default.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatTable, FormatYAML, "":
		return f, nil
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

// Renderer handles output formatting.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
	header  lipgloss.Style
}

// NewRenderer creates a renderer from CLI context.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	format, err := ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}

	out := c.App.Writer
	if out == nil {
		out = os.Stdout
	}

	// Apply default format based on TTY detection
	if format == "" {
		if f, ok := out.(*os.File); ok && isTTY(f) {
			format = FormatTable
		} else {
			format = FormatJSON
		}
	}

	return NewRendererWithWriter(format, c.Bool("no-color"), out), nil
}

// NewRendererWithWriter creates a renderer with a custom writer.
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{
		format:  format,
		noColor: noColor,
		out:     out,
		header:  lipgloss.NewRenderer(out).NewStyle().Bold(true).Underline(true),
	}
}

// Format returns the selected format.
func (r *Renderer) Format() Format {
	return r.format
}

// Render outputs the data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(r.out)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	case FormatTable:
		return r.renderTable(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// RenderTUI runs the interactive view for viewType.
// TUI is opt-in only and read-only only. When output is not a terminal
// the view is rendered once instead.
func (r *Renderer) RenderTUI(viewType string, data any) error {
	if !tui.IsTUISupported(viewType) {
		return fmt.Errorf("--tui is not supported for %s", viewType)
	}
	if f, ok := r.out.(*os.File); ok && isTTY(f) {
		return tui.Run(viewType, data)
	}
	view, err := tui.RenderStatic(viewType, data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(r.out, view)
	return err
}

// renderTable prints a slice as rows under a header line, and anything
// else as "key: value" lines.
func (r *Renderer) renderTable(data any) error {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	v := indirect(reflect.ValueOf(data))
	hasHeader := false
	switch {
	case v.Kind() == reflect.Slice && v.Len() == 0:
		fmt.Fprintln(w, "(no results)")
	case v.Kind() == reflect.Slice:
		headers := columns(indirect(v.Index(0)))
		fmt.Fprintln(w, strings.Join(headers, "\t"))
		for i := range v.Len() {
			fmt.Fprintln(w, strings.Join(rowValues(indirect(v.Index(i)), headers), "\t"))
		}
		hasHeader = true
	case v.Kind() == reflect.Struct:
		t := v.Type()
		for i := range v.NumField() {
			if !t.Field(i).IsExported() {
				continue
			}
			fmt.Fprintf(w, "%s:\t%s\n", fieldName(t.Field(i)), formatValue(v.Field(i)))
		}
	case v.Kind() == reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			fmt.Fprintf(w, "%v:\t%s\n", iter.Key().Interface(), formatValue(iter.Value()))
		}
	default:
		fmt.Fprintf(w, "%v\n", data)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	// Style after alignment so escape codes do not skew column widths.
	if hasHeader && !r.noColor {
		line, rest, _ := bytes.Cut(buf.Bytes(), []byte("\n"))
		out := bufio.NewWriter(r.out)
		fmt.Fprintln(out, r.header.Render(string(line)))
		_, _ = out.Write(rest)
		return out.Flush()
	}
	_, err := r.out.Write(buf.Bytes())
	return err
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// columns returns the table headers for a row value.
func columns(v reflect.Value) []string {
	var headers []string
	if v.Kind() != reflect.Struct {
		return []string{"value"}
	}
	t := v.Type()
	for i := range t.NumField() {
		if t.Field(i).IsExported() {
			headers = append(headers, fieldName(t.Field(i)))
		}
	}
	return headers
}

func rowValues(v reflect.Value, headers []string) []string {
	if v.Kind() != reflect.Struct {
		return []string{formatValue(v)}
	}
	values := make([]string, 0, len(headers))
	t := v.Type()
	for i := range v.NumField() {
		if t.Field(i).IsExported() {
			values = append(values, formatValue(v.Field(i)))
		}
	}
	return values
}

// fieldName prefers the json tag name.
func fieldName(f reflect.StructField) string {
	if tag := f.Tag.Get("json"); tag != "" {
		name, _, _ := strings.Cut(tag, ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return strings.ToLower(f.Name)
}

var (
	timeType     = reflect.TypeFor[time.Time]()
	stringerType = reflect.TypeFor[fmt.Stringer]()
)

func formatValue(v reflect.Value) string {
	if !v.IsValid() {
		return ""
	}
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}

	switch {
	case v.Type() == timeType:
		return v.Interface().(time.Time).Format(time.RFC3339)
	case v.Type().Implements(stringerType) && v.CanInterface():
		return v.Interface().(fmt.Stringer).String()
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "[]"
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "{}"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		return "{...}"
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

// isTTY returns true if the file is a terminal.
func isTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
