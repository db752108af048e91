package vst

// DefaultChunkSize is the default chunk size including the header.
const DefaultChunkSize = 30000

// DefaultMaxChunkPayload is the payload capacity of a DefaultChunkSize chunk.
const DefaultMaxChunkPayload = DefaultChunkSize - HeaderSize

// Message is a reassembled logical message.
type Message struct {
	// ID is the sender-assigned message identifier.
	ID uint64
	// Length is the declared message length; always len(Data).
	Length uint64
	// Chunks is the number of chunks the message arrived in.
	Chunks uint32
	// Data is the concatenated chunk payloads in position order.
	Data []byte
}

// ChunkCount returns the number of chunks needed to carry n payload bytes
// with maxChunkPayload bytes per chunk. An empty message still takes one chunk.
func ChunkCount(n, maxChunkPayload int) int {
	if n == 0 {
		return 1
	}
	return (n + maxChunkPayload - 1) / maxChunkPayload
}

// Split frames message into an ordered chunk sequence. Chunk data aliases message.
//
// The first chunk declares the chunk count; each continuation carries its
// position. Every chunk repeats messageID and len(message).
func Split(messageID uint64, message []byte, maxChunkPayload int) ([]*Chunk, error) {
	if messageID == 0 {
		return nil, invalidInput("message id 0 is reserved")
	}
	if maxChunkPayload <= 0 {
		return nil, invalidInput("max chunk payload must be positive, got %d", maxChunkPayload)
	}
	if _, err := chunkLength(maxChunkPayload); err != nil {
		return nil, err
	}

	count := ChunkCount(len(message), maxChunkPayload)
	if count > MaxChunkNumber {
		return nil, invalidInput("message of %d bytes needs %d chunks, max %d", len(message), count, MaxChunkNumber)
	}
	total := uint32(count)
	messageLength := uint64(len(message))

	chunks := make([]*Chunk, 0, count)
	for i := range total {
		start := int(i) * maxChunkPayload
		end := min(start+maxChunkPayload, len(message))

		d := ContinuationChunk(i)
		if i == 0 {
			d = FirstChunk(total)
		}
		c, err := NewChunk(d, messageID, messageLength, message[start:end])
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}
