package vst

import (
	"errors"
	"io"
)

// MaxChunkLength bounds the length a ChunkReader accepts by default (16 MiB).
const MaxChunkLength = 16 * 1024 * 1024

// ChunkReader reads chunks from a byte stream.
type ChunkReader struct {
	reader    io.Reader
	maxLength uint32
	header    [HeaderSize]byte
}

// NewChunkReader creates a reader that rejects chunks above MaxChunkLength.
func NewChunkReader(r io.Reader) *ChunkReader {
	return NewChunkReaderSize(r, MaxChunkLength)
}

// NewChunkReaderSize creates a reader with a custom length bound.
// A bound below HeaderSize is raised to HeaderSize.
func NewChunkReaderSize(r io.Reader, maxLength uint32) *ChunkReader {
	return &ChunkReader{reader: r, maxLength: max(maxLength, HeaderSize)}
}

// ReadChunk reads a single chunk from the stream. Each chunk gets its own
// payload buffer, so the result may be retained.
//
// Errors:
//   - io.EOF: stream ended on a chunk boundary
//   - *Error with Kind=KindFraming: partial header or payload, or a length
//     outside [HeaderSize, maxLength] (fatal)
func (r *ChunkReader) ReadChunk() (*Chunk, error) {
	if _, err := io.ReadFull(r.reader, r.header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &Error{Kind: KindFraming, Msg: "failed to read chunk header", Err: err}
	}

	h, err := ParseHeader(r.header[:])
	if err != nil {
		return nil, err
	}
	if h.Length < HeaderSize {
		return nil, framingError("chunk length %d is shorter than the header", h.Length)
	}
	if h.Length > r.maxLength {
		return nil, framingError("chunk length %d exceeds maximum %d", h.Length, r.maxLength)
	}

	data := make([]byte, h.Length-HeaderSize)
	if _, err := io.ReadFull(r.reader, data); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, &Error{Kind: KindFraming, MessageID: h.MessageID, Msg: "failed to read chunk payload", Err: err}
	}
	return &Chunk{Header: h, Data: data}, nil
}

// ChunkWriter writes chunks to a byte stream.
type ChunkWriter struct {
	writer io.Writer
	buf    []byte
}

// NewChunkWriter creates a chunk writer.
func NewChunkWriter(w io.Writer) *ChunkWriter {
	return &ChunkWriter{writer: w}
}

// WriteChunk writes one chunk with a single Write call.
func (w *ChunkWriter) WriteChunk(c *Chunk) error {
	buf, err := c.AppendBinary(w.buf[:0])
	if err != nil {
		return err
	}
	w.buf = buf
	_, err = w.writer.Write(buf)
	return err
}

// WriteMessage splits message and writes every chunk in order.
// Returns the number of chunks written.
func (w *ChunkWriter) WriteMessage(messageID uint64, message []byte, maxChunkPayload int) (int, error) {
	chunks, err := Split(messageID, message, maxChunkPayload)
	if err != nil {
		return 0, err
	}
	for i, c := range chunks {
		if err := w.WriteChunk(c); err != nil {
			return i, err
		}
	}
	return len(chunks), nil
}
