package journal

import (
	"context"
	"time"

	"github.com/justapithecus/vst/metrics"
	"github.com/justapithecus/vst/vst"
)

// Sink journals each assembled message through a Client.
// Its Handle method fits session.Handler.
type Sink struct {
	client    Client
	session   string
	collector *metrics.Collector
	now       func() time.Time
}

// NewSink creates a sink. collector may be nil.
func NewSink(client Client, session string, collector *metrics.Collector) *Sink {
	return &Sink{client: client, session: session, collector: collector, now: time.Now}
}

// Handle writes msg as one record. Journal counters are per call.
func (s *Sink) Handle(ctx context.Context, msg *vst.Message) error {
	err := s.client.WriteMessages(ctx, []*Record{NewRecord(msg, s.session, s.now())})
	if err != nil {
		s.collector.IncJournalWriteFailure()
		return err
	}
	s.collector.IncJournalWriteSuccess()
	return nil
}

// Close closes the underlying client.
func (s *Sink) Close() error {
	return s.client.Close()
}
