package server

import (
	"context"
	"flash-chat/domain"
)

// recordSink hands records from the backend's delivery goroutine to the
// gRPC handler that owns the stream. Push blocks rather than drops: a gap
// in a child-added stream cannot be recovered by the client.
type recordSink struct {
	records chan domain.Record
}

func newRecordSink(bufferSize int) *recordSink {
	return &recordSink{records: make(chan domain.Record, bufferSize)}
}

func (s *recordSink) Push(ctx context.Context, r domain.Record) {
	select {
	case s.records <- r:
	case <-ctx.Done():
	}
}
