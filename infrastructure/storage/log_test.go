package storage

import (
	"context"
	"flash-chat/contract"
	"flash-chat/domain"
	"flash-chat/errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T, dir string) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	return db
}

func writeMessage(t *testing.T, log *Log, sender, body string) string {
	t.Helper()
	key, err := log.Write(context.Background(), domain.DefaultCollection,
		domain.EncodeMessage(domain.Message{Sender: sender, Body: body}))
	require.NoError(t, err)
	return key
}

func Test_Record_Multiple_Messages_In_Write_Order(t *testing.T) {
	req := require.New(t)
	db := openDB(t, t.TempDir())
	defer db.Close()
	log := NewLog(db, slog.Default())
	defer log.Close()

	senders := []string{"Alice", "Bob", "Clara"}
	for _, s := range senders {
		writeMessage(t, log, s, "this message will self destruct in 5 seconds")
	}

	records, err := log.Scan(domain.DefaultCollection, "", 0)
	req.NoError(err)
	req.Len(records, len(senders))
	for i, r := range records {
		msg, err := domain.DecodeRecord(r)
		req.NoError(err)
		req.Equal(senders[i], msg.Sender)
	}
}

func Test_Scan_After_Cursor_And_Limit(t *testing.T) {
	req := require.New(t)
	db := openDB(t, t.TempDir())
	defer db.Close()
	log := NewLog(db, slog.Default())
	defer log.Close()

	var keys []string
	for i := 0; i < 5; i++ {
		keys = append(keys, writeMessage(t, log, "Alice", fmt.Sprintf("msg %d", i)))
	}

	records, err := log.Scan(domain.DefaultCollection, keys[1], 2)
	req.NoError(err)
	req.Len(records, 2)
	req.Equal(keys[2], records[0].Key)
	req.Equal(keys[3], records[1].Key)
}

func Test_SubscribeChildAdded_Replays_Then_Follows(t *testing.T) {
	req := require.New(t)
	db := openDB(t, t.TempDir())
	defer db.Close()
	log := NewLog(db, slog.Default())
	defer log.Close()

	writeMessage(t, log, "Alice", "old")

	records := make(chan domain.Record, 10)
	sub, err := log.SubscribeChildAdded(context.Background(), domain.DefaultCollection,
		contract.SubscribeOptions{}, func(r domain.Record) { records <- r })
	req.NoError(err)
	defer sub.Cancel()

	writeMessage(t, log, "Bob", "new")

	for _, want := range []string{"old", "new"} {
		select {
		case r := <-records:
			req.Equal(want, r.Fields[domain.BodyField])
		case <-time.After(time.Second):
			req.FailNow("record not delivered")
		}
	}
}

func Test_Records_Survive_Reopen(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()

	db := openDB(t, dir)
	log := NewLog(db, slog.Default())
	first := writeMessage(t, log, "Alice", "before restart")
	req.NoError(log.Close())
	req.NoError(db.Close())

	db = openDB(t, dir)
	defer db.Close()
	log = NewLog(db, slog.Default())
	defer log.Close()
	second := writeMessage(t, log, "Bob", "after restart")

	// Keys keep growing across restarts so the order holds
	req.Less(first, second)
	records, err := log.Scan(domain.DefaultCollection, "", 0)
	req.NoError(err)
	req.Len(records, 2)
	req.Equal(first, records[0].Key)
}

func Test_SubscribeChildAdded_Unknown_Cursor(t *testing.T) {
	db := openDB(t, t.TempDir())
	defer db.Close()
	log := NewLog(db, slog.Default())
	defer log.Close()

	_, err := log.SubscribeChildAdded(context.Background(), domain.DefaultCollection,
		contract.SubscribeOptions{After: "0000000000000000042"}, func(domain.Record) {})
	require.ErrorIs(t, err, errors.ErrUnknownCursor)
}

func Test_Undecodable_Value_Is_Returned_Without_Fields(t *testing.T) {
	req := require.New(t)
	db := openDB(t, t.TempDir())
	defer db.Close()
	log := NewLog(db, slog.Default())
	defer log.Close()

	// Given a value that is not a protobuf struct
	err := db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(recordPrefix(domain.DefaultCollection)+"0000000000000000001"), []byte{0xff, 0xff})
	})
	req.NoError(err)

	records, err := log.Scan(domain.DefaultCollection, "", 0)
	req.NoError(err)
	req.Len(records, 1)
	req.Nil(records[0].Fields)
	_, err = domain.DecodeRecord(records[0])
	req.ErrorIs(err, errors.ErrMalformedRecord)
}

func Test_Collections_Do_Not_Overlap(t *testing.T) {
	req := require.New(t)
	db := openDB(t, t.TempDir())
	defer db.Close()
	log := NewLog(db, slog.Default())
	defer log.Close()
	ctx := context.Background()

	// Given a subscriber on "room"
	records := make(chan domain.Record, 10)
	sub, err := log.SubscribeChildAdded(ctx, "room", contract.SubscribeOptions{}, func(r domain.Record) { records <- r })
	req.NoError(err)
	defer sub.Cancel()

	// When writing to a name that would extend its key prefix, then to "room2" and "room"
	_, err = log.Write(ctx, "room:private", domain.EncodeMessage(domain.Message{Sender: "Eve", Body: "private"}))
	req.ErrorIs(err, errors.ErrInvalidCollection)
	_, err = log.Write(ctx, "room2", domain.EncodeMessage(domain.Message{Sender: "Bob", Body: "other room"}))
	req.NoError(err)
	key, err := log.Write(ctx, "room", domain.EncodeMessage(domain.Message{Sender: "Alice", Body: "mine"}))
	req.NoError(err)

	// Then the subscriber receives exactly its own record
	select {
	case r := <-records:
		req.Equal(key, r.Key)
		req.Equal("mine", r.Fields[domain.BodyField])
	case <-time.After(time.Second):
		req.FailNow("record not delivered")
	}
	select {
	case r := <-records:
		req.FailNow("unexpected record", "key %s", r.Key)
	case <-time.After(50 * time.Millisecond):
	}
	scanned, err := log.Scan("room", "", 0)
	req.NoError(err)
	req.Len(scanned, 1)

	// And a subscription on such a name is refused too
	_, err = log.SubscribeChildAdded(ctx, "room:private", contract.SubscribeOptions{}, func(domain.Record) {})
	req.ErrorIs(err, errors.ErrInvalidCollection)
}
