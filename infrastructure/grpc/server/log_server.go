package server

import (
	"context"
	"flash-chat/contract"
	"flash-chat/domain"
	"flash-chat/errors"
	"flash-chat/infrastructure/grpc/logservice"
	"flash-chat/observability"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// LogServer exposes a log backend over gRPC.
type LogServer struct {
	logservice.UnimplementedLogServiceServer
	log        *slog.Logger
	backend    contract.ILog
	name       string
	bufferSize int
}

func NewLogServer(log *slog.Logger, backend contract.ILog, name string, bufferSize int) *LogServer {
	return &LogServer{log: log, backend: backend, name: name, bufferSize: bufferSize}
}

func (s *LogServer) Write(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {
	collection, fields, err := logservice.ParseWriteRequest(req)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	start := time.Now()
	key, err := s.backend.Write(ctx, collection, fields)
	observability.LogWriteDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		observability.LogWrites.WithLabelValues(s.name, "failed").Inc()
		s.log.Error("Write failed", "collection", collection, "error", err)
		return nil, errors.MapToGRPCError(err)
	}
	observability.LogWrites.WithLabelValues(s.name, "ok").Inc()
	return wrapperspb.String(key), nil
}

// Subscribe streams the collection from the requested cursor until the
// client goes away. It blocks for the whole life of the stream.
func (s *LogServer) Subscribe(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	collection, after, err := logservice.ParseSubscribeRequest(req)
	if err != nil {
		return errors.MapToGRPCError(err)
	}
	ctx, cancel := context.WithCancel(stream.Context())
	sink := newRecordSink(s.bufferSize)
	sub, err := s.backend.SubscribeChildAdded(ctx, collection, contract.SubscribeOptions{After: after},
		func(r domain.Record) { sink.Push(ctx, r) })
	if err != nil {
		cancel()
		return errors.MapToGRPCError(err)
	}
	defer func() {
		cancel()
		sub.Cancel()
	}()

	observability.ActiveSubscriptions.Inc()
	defer observability.ActiveSubscriptions.Dec()
	s.log.Debug("Subscriber connected", "collection", collection, "after", after)

	for {
		select {
		case <-ctx.Done():
			s.log.Debug("Subscriber disconnected", "collection", collection)
			return nil
		case r := <-sink.records:
			if err := s.send(stream, r); err != nil {
				s.log.Error("Failed to push record to stream", "collection", collection, "key", r.Key, "error", err)
				return err
			}
		case <-sub.Done():
			if err := s.drain(stream, sink); err != nil {
				return err
			}
			s.log.Warn("Backend subscription ended", "collection", collection, "error", sub.Err())
			return status.Error(codes.Unavailable, "log subscription ended")
		}
	}
}

func (s *LogServer) drain(stream grpc.ServerStreamingServer[structpb.Struct], sink *recordSink) error {
	for {
		select {
		case r := <-sink.records:
			if err := s.send(stream, r); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (s *LogServer) send(stream grpc.ServerStreamingServer[structpb.Struct], r domain.Record) error {
	msg, err := logservice.NewRecordMessage(r)
	if err != nil {
		// Still forwarded so the reader can report it and move past it
		s.log.Warn("Record fields are not transportable", "key", r.Key, "error", err)
		msg, _ = logservice.NewRecordMessage(domain.Record{Key: r.Key})
	}
	return stream.Send(msg)
}
