package client

import (
	"context"
	"flash-chat/contract"
	"flash-chat/domain"
	"flash-chat/errors"
	"flash-chat/infrastructure/grpc/logservice"
	"flash-chat/infrastructure/grpc/server"
	"flash-chat/infrastructure/memory"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

type harness struct {
	backend *memory.Log
	client  *LogClient
	stop    func()
}

func startServer(t *testing.T) *harness {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	backend := memory.NewLog()
	srv := grpc.NewServer()
	logservice.RegisterLogServiceServer(srv, server.NewLogServer(slog.Default(), backend, "memory", 16))
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	h := &harness{
		backend: backend,
		client:  NewLogClient(conn, slog.Default()),
		stop:    srv.Stop,
	}
	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
	})
	return h
}

func (h *harness) subscribe(t *testing.T, after string) (contract.Subscription, <-chan domain.Record) {
	t.Helper()
	records := make(chan domain.Record, 16)
	sub, err := h.client.SubscribeChildAdded(context.Background(), domain.DefaultCollection,
		contract.SubscribeOptions{After: after}, func(r domain.Record) { records <- r })
	require.NoError(t, err)
	t.Cleanup(sub.Cancel)
	return sub, records
}

func next(t *testing.T, records <-chan domain.Record) domain.Record {
	t.Helper()
	select {
	case r := <-records:
		return r
	case <-time.After(2 * time.Second):
		require.FailNow(t, "record not delivered")
		return domain.Record{}
	}
}

func Test_Write_Then_Subscribe_Over_Grpc(t *testing.T) {
	req := require.New(t)
	h := startServer(t)
	ctx := context.Background()

	// Given one message written through the client
	key, err := h.client.Write(ctx, domain.DefaultCollection,
		domain.EncodeMessage(domain.Message{Sender: "alice@example.com", Body: "hello"}))
	req.NoError(err)
	req.NotEmpty(key)

	// When subscribing and writing another one
	_, records := h.subscribe(t, "")
	_, err = h.client.Write(ctx, domain.DefaultCollection,
		domain.EncodeMessage(domain.Message{Sender: "bob@example.com", Body: "hi"}))
	req.NoError(err)

	// Then both arrive in order with their keys
	first := next(t, records)
	req.Equal(key, first.Key)
	msg, err := domain.DecodeRecord(first)
	req.NoError(err)
	req.Equal("hello", msg.Body)

	msg, err = domain.DecodeRecord(next(t, records))
	req.NoError(err)
	req.Equal("bob@example.com", msg.Sender)
}

func Test_Subscribe_After_Cursor_Over_Grpc(t *testing.T) {
	req := require.New(t)
	h := startServer(t)
	ctx := context.Background()

	first, err := h.backend.Write(ctx, domain.DefaultCollection, map[string]any{"Sender": "a", "MessageBody": "1"})
	req.NoError(err)
	_, err = h.backend.Write(ctx, domain.DefaultCollection, map[string]any{"Sender": "a", "MessageBody": "2"})
	req.NoError(err)

	_, records := h.subscribe(t, first)
	msg, err := domain.DecodeRecord(next(t, records))
	req.NoError(err)
	req.Equal("2", msg.Body)
}

func Test_Non_String_Fields_Reach_The_Reader(t *testing.T) {
	req := require.New(t)
	h := startServer(t)

	_, err := h.backend.Write(context.Background(), domain.DefaultCollection,
		map[string]any{"Sender": "a", "MessageBody": 42.0})
	req.NoError(err)

	_, records := h.subscribe(t, "")
	_, err = domain.DecodeRecord(next(t, records))
	req.ErrorIs(err, errors.ErrMalformedRecord)
}

func Test_Write_Empty_Collection_Is_Rejected(t *testing.T) {
	h := startServer(t)
	_, err := h.client.Write(context.Background(), "", map[string]any{"Sender": "a"})
	require.ErrorIs(t, err, errors.ErrMalformedRecord)
}

func Test_Collection_With_Separator_Is_Rejected(t *testing.T) {
	req := require.New(t)
	h := startServer(t)

	// The server refuses the write
	_, err := h.client.Write(context.Background(), "room:private", map[string]any{"Sender": "a"})
	req.ErrorIs(err, errors.ErrMalformedRecord)

	// The client refuses the subscription before dialing the stream
	_, err = h.client.SubscribeChildAdded(context.Background(), "room:private",
		contract.SubscribeOptions{}, func(domain.Record) {})
	req.ErrorIs(err, errors.ErrInvalidCollection)
}

func Test_Unknown_Cursor_Ends_Stream(t *testing.T) {
	req := require.New(t)
	h := startServer(t)

	sub, _ := h.subscribe(t, "missing")
	select {
	case <-sub.Done():
		req.ErrorIs(sub.Err(), errors.ErrFeedDisconnected)
		req.ErrorIs(sub.Err(), errors.ErrUnknownCursor)
	case <-time.After(2 * time.Second):
		req.FailNow("stream should end")
	}
}

func Test_Server_Stop_Disconnects_Subscriber(t *testing.T) {
	req := require.New(t)
	h := startServer(t)

	sub, _ := h.subscribe(t, "")
	h.stop()

	select {
	case <-sub.Done():
		req.ErrorIs(sub.Err(), errors.ErrFeedDisconnected)
	case <-time.After(2 * time.Second):
		req.FailNow("subscription should drop with the server")
	}
}

func Test_Cancel_Is_Clean(t *testing.T) {
	req := require.New(t)
	h := startServer(t)

	sub, _ := h.subscribe(t, "")
	sub.Cancel()
	req.NoError(sub.Err())
}
