// Package streams keeps the chat log in Redis Streams.
package streams

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"flash-chat/contract"
	"flash-chat/domain"
	"flash-chat/errors"
	"flash-chat/infrastructure/tail"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldsKey       = "fields"
	readCount       = 256
	defaultBlockFor = 500 * time.Millisecond
)

// RedisLog maps a collection onto the stream "stream:{collection}".
// Stream entry IDs are the record keys, so XREAD from an ID resumes right
// after it. Fields are stored as one JSON value to keep their types.
type RedisLog struct {
	client   *redis.Client
	log      *slog.Logger
	blockFor time.Duration
}

// NewRedisLog connects to the given redis:// URL and checks the connection.
func NewRedisLog(ctx context.Context, redisURL string, log *slog.Logger) (*RedisLog, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisLog{client: client, log: log, blockFor: defaultBlockFor}, nil
}

// WithBlock sets how long a single XREAD waits for new entries.
// It bounds how long Cancel may take.
func (l *RedisLog) WithBlock(d time.Duration) *RedisLog {
	l.blockFor = d
	return l
}

func (l *RedisLog) Close() error {
	return l.client.Close()
}

func (l *RedisLog) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func streamKey(collection string) string {
	return fmt.Sprintf("stream:%s", collection)
}

func (l *RedisLog) Write(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if err := domain.ValidateCollection(collection); err != nil {
		return "", err
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	return l.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey(collection),
		Values: map[string]any{fieldsKey: string(data)},
	}).Result()
}

func (l *RedisLog) SubscribeChildAdded(ctx context.Context, collection string, opts contract.SubscribeOptions, onRecord func(domain.Record)) (contract.Subscription, error) {
	if err := domain.ValidateCollection(collection); err != nil {
		return nil, err
	}
	key := streamKey(collection)
	from := "0"
	if opts.After != "" {
		if !isStreamID(opts.After) {
			return nil, fmt.Errorf("%w: %s", errors.ErrUnknownCursor, opts.After)
		}
		found, err := l.client.XRange(ctx, key, opts.After, opts.After).Result()
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("%w: %s", errors.ErrUnknownCursor, opts.After)
		}
		from = opts.After
	}

	ctx, h := tail.NewHandle(ctx)
	go func() {
		h.Finish(l.follow(ctx, key, from, onRecord))
	}()
	return h, nil
}

// isStreamID reports whether id has the "{ms}-{seq}" shape of an entry ID.
func isStreamID(id string) bool {
	ms, seq, ok := strings.Cut(id, "-")
	if !ok {
		return false
	}
	_, err := strconv.ParseUint(ms, 10, 64)
	if err != nil {
		return false
	}
	_, err = strconv.ParseUint(seq, 10, 64)
	return err == nil
}

func (l *RedisLog) follow(ctx context.Context, key, from string, onRecord func(domain.Record)) error {
	for {
		streams, err := l.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{key, from},
			Count:   readCount,
			Block:   l.blockFor,
		}).Result()
		if ctx.Err() != nil {
			return nil
		}
		if goerrors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %w", errors.ErrFeedDisconnected, err)
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				if ctx.Err() != nil {
					return nil
				}
				onRecord(l.toRecord(key, msg))
				from = msg.ID
			}
		}
	}
}

// toRecord never fails: an entry that cannot be decoded becomes a record
// without fields and is rejected downstream.
func (l *RedisLog) toRecord(key string, msg redis.XMessage) domain.Record {
	record := domain.Record{Key: msg.ID}
	raw, ok := msg.Values[fieldsKey].(string)
	if !ok {
		l.log.Warn("Stream entry without fields", "stream", key, "id", msg.ID)
		return record
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		l.log.Warn("Undecodable stream entry", "stream", key, "id", msg.ID, "error", err)
		return record
	}
	record.Fields = fields
	return record
}
