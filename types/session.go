package types

// SessionMeta identifies one reader or writer of a chunk stream.
// It is bound to every log line the session emits.
type SessionMeta struct {
	// Name is a caller-chosen session label.
	Name string
	// Peer is the remote address or input path, included when known.
	Peer *string
}
