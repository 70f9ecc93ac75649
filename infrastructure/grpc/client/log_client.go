package client

import (
	"context"
	"flash-chat/contract"
	"flash-chat/domain"
	"flash-chat/errors"
	"flash-chat/infrastructure/grpc/logservice"
	"flash-chat/infrastructure/tail"
	"fmt"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// LogClient is a contract.ILog served by a remote log server.
type LogClient struct {
	client logservice.LogServiceClient
	log    *slog.Logger
}

func NewLogClient(conn grpc.ClientConnInterface, log *slog.Logger) *LogClient {
	return &LogClient{client: logservice.NewLogServiceClient(conn), log: log}
}

// Dial opens a plaintext connection to the log server.
func Dial(addr string) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
}

func (c *LogClient) Write(ctx context.Context, collection string, fields map[string]any) (string, error) {
	req, err := logservice.NewWriteRequest(collection, fields)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Write(ctx, req)
	if err != nil {
		return "", fromStatus(err)
	}
	return resp.GetValue(), nil
}

func (c *LogClient) SubscribeChildAdded(ctx context.Context, collection string, opts contract.SubscribeOptions, onRecord func(domain.Record)) (contract.Subscription, error) {
	if err := domain.ValidateCollection(collection); err != nil {
		return nil, err
	}
	ctx, h := tail.NewHandle(ctx)
	stream, err := c.client.Subscribe(ctx, logservice.NewSubscribeRequest(collection, opts.After))
	if err != nil {
		h.Finish(nil)
		return nil, fromStatus(err)
	}
	go func() {
		h.Finish(c.receive(ctx, collection, stream, onRecord))
	}()
	return h, nil
}

func (c *LogClient) receive(ctx context.Context, collection string, stream grpc.ServerStreamingClient[structpb.Struct], onRecord func(domain.Record)) error {
	for {
		msg, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warn("Log stream ended", "collection", collection, "error", err)
			return fmt.Errorf("%w: %w", errors.ErrFeedDisconnected, fromStatus(err))
		}
		onRecord(logservice.ParseRecordMessage(msg))
	}
}

// fromStatus turns the server status codes back into the errors they carry.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", errors.ErrUnknownCursor, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", errors.ErrMalformedRecord, st.Message())
	case codes.Unavailable:
		return fmt.Errorf("%w: %s", errors.ErrLogClosed, st.Message())
	default:
		return err
	}
}
