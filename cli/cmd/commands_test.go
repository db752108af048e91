package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/vst/cli/reader"
	"github.com/justapithecus/vst/log"
	"github.com/justapithecus/vst/types"
	"github.com/justapithecus/vst/vst"
)

// runApp runs the vst commands in-process with os.Exit suppressed.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := cli.NewApp()
	app.Name = "vst"
	app.Commands = Commands("test")
	app.Writer = &out
	app.ErrWriter = &errOut
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.RunContext(t.Context(), append([]string{"vst"}, args...))
	return out.String(), err
}

func exitCode(err error) int {
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}

func decodeJSON[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("invalid JSON output %q: %v", s, err)
	}
	return v
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func testPayload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i * 7)
	}
	return b
}

func TestSplitAssemble_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	payload := testPayload(100)
	in := writeFile(t, dir, "in.bin", payload)
	stream := filepath.Join(dir, "out.vst")

	out, err := runApp(t, "split", "--id", "42", "--chunk-size", "40", "--format", "json", in, stream)
	if err != nil {
		t.Fatalf("split failed: %v", err)
	}
	split := decodeJSON[SplitResult](t, out)
	if split.MessageID != 42 || split.MessageLength != 100 || split.Chunks != 7 {
		t.Errorf("split = %+v, want message 42 of 100 bytes in 7 chunks", split)
	}

	outDir := filepath.Join(dir, "assembled")
	out, err = runApp(t, "assemble", "--out", outDir, stream)
	if err != nil {
		t.Fatalf("assemble failed: %v", err)
	}
	summary := decodeJSON[reader.AssemblySummary](t, out)
	if len(summary.Messages) != 1 || summary.Messages[0].MessageID != 42 || summary.Messages[0].Chunks != 7 {
		t.Fatalf("summary.Messages = %+v, want message 42 in 7 chunks", summary.Messages)
	}
	if summary.Metrics.MessagesAssembled != 1 || summary.Metrics.ChunksRead != 7 {
		t.Errorf("summary.Metrics = %+v, want 1 message from 7 chunks", summary.Metrics)
	}
	if len(summary.Pending) != 0 || summary.Error != "" {
		t.Errorf("summary = %+v, want no pending and no error", summary)
	}

	got, err := os.ReadFile(filepath.Join(outDir, "42.bin"))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("assembled payload differs from input")
	}
}

func TestAssemble_StreamsShareTable(t *testing.T) {
	dir := t.TempDir()
	payload := testPayload(40)
	chunks, err := vst.Split(7, payload, 8)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	var a, b bytes.Buffer
	for i, c := range chunks {
		w := &a
		if i%2 == 1 {
			w = &b
		}
		if err := vst.NewChunkWriter(w).WriteChunk(c); err != nil {
			t.Fatalf("WriteChunk failed: %v", err)
		}
	}
	pa := writeFile(t, dir, "a.vst", a.Bytes())
	pb := writeFile(t, dir, "b.vst", b.Bytes())

	out, err := runApp(t, "assemble", "--out", dir, pa, pb)
	if err != nil {
		t.Fatalf("assemble failed: %v", err)
	}
	summary := decodeJSON[reader.AssemblySummary](t, out)
	if summary.Streams != 2 || len(summary.Messages) != 1 {
		t.Fatalf("summary = %+v, want 1 message across 2 streams", summary)
	}
	got, _ := os.ReadFile(filepath.Join(dir, "7.bin"))
	if !bytes.Equal(got, payload) {
		t.Error("assembled payload differs from input")
	}
}

func TestAssemble_TruncatedStream(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	if _, err := vst.NewChunkWriter(&buf).WriteMessage(3, testPayload(30), 10); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	path := writeFile(t, dir, "cut.vst", buf.Bytes()[:buf.Len()-4])

	out, err := runApp(t, "assemble", "--out", dir, path)
	if code := exitCode(err); code != exitStreamError {
		t.Fatalf("exit code = %d (%v), want %d", code, err, exitStreamError)
	}
	summary := decodeJSON[reader.AssemblySummary](t, out)
	if summary.Error == "" {
		t.Error("summary.Error is empty, want framing error")
	}
	if len(summary.Pending) != 1 || summary.Pending[0].MessageID != 3 || summary.Pending[0].Received != 2 {
		t.Errorf("summary.Pending = %+v, want message 3 with 2 chunks", summary.Pending)
	}
	if summary.Metrics.FramingErrors != 1 {
		t.Errorf("FramingErrors = %d, want 1", summary.Metrics.FramingErrors)
	}
}

func TestAssemble_JournalThenList(t *testing.T) {
	dir := t.TempDir()
	journalDir := filepath.Join(dir, "journal")
	var buf bytes.Buffer
	w := vst.NewChunkWriter(&buf)
	for id := uint64(1); id <= 2; id++ {
		if _, err := w.WriteMessage(id, testPayload(20), 16); err != nil {
			t.Fatalf("WriteMessage failed: %v", err)
		}
	}
	stream := writeFile(t, dir, "s.vst", buf.Bytes())

	out, err := runApp(t, "assemble", "--out", dir, "--session", "edge-1", "--journal", journalDir, stream)
	if err != nil {
		t.Fatalf("assemble failed: %v", err)
	}
	summary := decodeJSON[reader.AssemblySummary](t, out)
	if summary.Metrics.JournalWriteSuccess != 2 || summary.Metrics.JournalBackend != "fs" {
		t.Errorf("summary.Metrics = %+v, want 2 fs journal writes", summary.Metrics)
	}

	out, err = runApp(t, "journal", "list", "--journal", journalDir, "--session", "edge-1")
	if err != nil {
		t.Fatalf("journal list failed: %v", err)
	}
	entries := decodeJSON[[]reader.JournalEntry](t, out)
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Session != "edge-1" || e.MessageLength != 20 || e.ChunkCount != 2 {
			t.Errorf("entry = %+v, want 20 bytes in 2 chunks for edge-1", e)
		}
	}

	out, err = runApp(t, "journal", "list", "--journal", journalDir, "--session", "other")
	if err != nil {
		t.Fatalf("journal list failed: %v", err)
	}
	if entries := decodeJSON[[]reader.JournalEntry](t, out); len(entries) != 0 {
		t.Errorf("len(entries) = %d for unknown session, want 0", len(entries))
	}
}

func TestAssemble_WebhookAdapter(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event map[string]any
		if err := json.NewDecoder(r.Body).Decode(&event); err == nil && event["event_type"] == "message_assembled" {
			posts.Add(1)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	var buf bytes.Buffer
	if _, err := vst.NewChunkWriter(&buf).WriteMessage(5, []byte("ping"), 16); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	stream := writeFile(t, dir, "s.vst", buf.Bytes())

	if _, err := runApp(t, "assemble", "--out", dir, "--adapter", "webhook", "--adapter-url", srv.URL, stream); err != nil {
		t.Fatalf("assemble failed: %v", err)
	}
	if got := posts.Load(); got != 1 {
		t.Errorf("webhook posts = %d, want 1", got)
	}
}

func TestAssemble_AdapterWithoutURL(t *testing.T) {
	dir := t.TempDir()
	stream := writeFile(t, dir, "empty.vst", nil)
	_, err := runApp(t, "assemble", "--out", dir, "--adapter", "redis", stream)
	if code := exitCode(err); code != exitConfigError {
		t.Errorf("exit code = %d (%v), want %d", code, err, exitConfigError)
	}
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	if _, err := vst.NewChunkWriter(&buf).WriteMessage(11, testPayload(25), 10); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	stream := writeFile(t, dir, "s.vst", buf.Bytes())

	out, err := runApp(t, "inspect", "--format", "json", stream)
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	got := decodeJSON[reader.StreamInspection](t, out)
	if len(got.Chunks) != 3 || got.Messages != 1 {
		t.Fatalf("inspect = %+v, want 3 chunks of 1 message", got)
	}
	if !got.Chunks[0].First || got.Chunks[0].Number != 3 || got.Chunks[2].Number != 2 {
		t.Errorf("chunks = %+v, want first(total=3) then positions 1, 2", got.Chunks)
	}
}

func TestInspect_TUIFallsBackToStaticView(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	if _, err := vst.NewChunkWriter(&buf).WriteMessage(11, []byte("abc"), 10); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	stream := writeFile(t, dir, "s.vst", buf.Bytes())

	out, err := runApp(t, "inspect", "--tui", stream)
	if err != nil {
		t.Fatalf("inspect --tui failed: %v", err)
	}
	if !strings.Contains(out, "Chunk Stream") {
		t.Errorf("output = %q, want static inspect view", out)
	}
}

func TestRequest_EncodeDecode(t *testing.T) {
	dir := t.TempDir()
	stream := filepath.Join(dir, "req.vst")

	out, err := runApp(t, "request", "encode",
		"--id", "9",
		"--method", "post",
		"--database", "orders",
		"--path", "/_api/document/orders",
		"--param", "waitForSync=true",
		"--meta", "x-trace=abc",
		"--chunk-size", "32",
		stream)
	if err != nil {
		t.Fatalf("request encode failed: %v", err)
	}
	enc := decodeJSON[EncodeResult](t, out)
	if enc.MessageID != 9 || enc.Chunks < 2 {
		t.Errorf("encode = %+v, want message 9 over several chunks", enc)
	}

	out, err = runApp(t, "request", "decode", stream)
	if err != nil {
		t.Fatalf("request decode failed: %v", err)
	}
	reqs := decodeJSON[[]reader.DecodedRequest](t, out)
	if len(reqs) != 1 {
		t.Fatalf("len(requests) = %d, want 1", len(reqs))
	}
	r := reqs[0]
	if r.MessageID != 9 || r.RequestType != "POST" || r.Database != "orders" || r.RequestPath != "/_api/document/orders" {
		t.Errorf("request = %+v, want POST orders /_api/document/orders", r)
	}
	if r.Parameters["waitForSync"] != "true" || r.Meta["x-trace"] != "abc" {
		t.Errorf("request maps = %v %v, want waitForSync and x-trace", r.Parameters, r.Meta)
	}
}

func TestRequest_EncodeRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
	}{
		{"bad method", []string{"--method", "HEAD"}},
		{"bad param", []string{"--param", "novalue"}},
		{"zero id", []string{"--id", "0"}},
		{"chunk size within header", []string{"--chunk-size", "24"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"request", "encode"}, tt.args...)
			_, err := runApp(t, append(args, filepath.Join(dir, "x.vst"))...)
			if code := exitCode(err); code != exitConfigError {
				t.Errorf("exit code = %d (%v), want %d", code, err, exitConfigError)
			}
		})
	}
}

func TestSplit_ConfigFileAndOverride(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "vst.yaml", []byte("chunk_size: 34\nsession: from-config\n"))
	in := writeFile(t, dir, "in.bin", testPayload(50))

	out, err := runApp(t, "split", "--config", cfgPath, in, filepath.Join(dir, "a.vst"))
	if err != nil {
		t.Fatalf("split failed: %v", err)
	}
	if got := decodeJSON[SplitResult](t, out); got.Chunks != 5 || got.ChunkSize != 34 {
		t.Errorf("split = %+v, want 5 chunks of 34 bytes from config", got)
	}

	out, err = runApp(t, "split", "--config", cfgPath, "--chunk-size", "74", in, filepath.Join(dir, "b.vst"))
	if err != nil {
		t.Fatalf("split failed: %v", err)
	}
	if got := decodeJSON[SplitResult](t, out); got.Chunks != 1 || got.ChunkSize != 74 {
		t.Errorf("split = %+v, want 1 chunk of 74 bytes from flag", got)
	}
}

func TestSplit_MissingConfig(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.bin", []byte("x"))
	_, err := runApp(t, "split", "--config", filepath.Join(dir, "nope.yaml"), in, filepath.Join(dir, "o.vst"))
	if code := exitCode(err); code != exitConfigError {
		t.Errorf("exit code = %d (%v), want %d", code, err, exitConfigError)
	}
}

func TestSplit_ChunkSizeOutOfRange(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.bin", []byte("x"))

	for _, size := range []string{"24", "4294967296"} {
		t.Run(size, func(t *testing.T) {
			_, err := runApp(t, "split", "--chunk-size", size, in, filepath.Join(dir, "o.vst"))
			if code := exitCode(err); code != exitConfigError {
				t.Errorf("exit code = %d (%v), want %d", code, err, exitConfigError)
			}
		})
	}
}

func TestCloseAll_LogsFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewLogger(&types.SessionMeta{Name: "edge-1"}).WithOutput(&buf)

	closeAll(logger, []io.Closer{failingCloser{}, nil})
	if !strings.Contains(buf.String(), "close failed") || !strings.Contains(buf.String(), "disk full") {
		t.Errorf("log output = %q, want close failure with cause", buf.String())
	}

	buf.Reset()
	closeAll(logger, nil)
	if buf.Len() != 0 {
		t.Errorf("log output = %q, want nothing when every close succeeds", buf.String())
	}
}

type failingCloser struct{}

func (failingCloser) Close() error { return errors.New("disk full") }

func TestVersion(t *testing.T) {
	out, err := runApp(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	got := decodeJSON[VersionResponse](t, out)
	if got.Commit != "test" || got.Version == "" {
		t.Errorf("version = %+v, want commit test", got)
	}

	_, err = runApp(t, "version", "--tui")
	if code := exitCode(err); code != exitConfigError {
		t.Errorf("version --tui exit code = %d, want %d", code, exitConfigError)
	}
}
