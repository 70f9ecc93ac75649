// Package storage keeps the chat log durable in BadgerDB.
package storage

import (
	"context"
	goerrors "errors"
	"flash-chat/contract"
	"flash-chat/domain"
	"flash-chat/errors"
	"flash-chat/infrastructure/tail"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

const (
	sequenceBandwidth = 100
	scanBatch         = 256
)

// Log is a child-added log on top of BadgerDB.
//
// A record is stored under "rec:{collection}:{seq}" where seq is a
// 19-digit zero padded number taken from a badger Sequence, so that a prefix
// scan returns records in write order. The padded seq is also the record
// key handed to subscribers. Values are protobuf encoded structs. Collection
// names never contain ':', so no collection prefix extends another.
//
// Writes are serialized: a sequence number is taken and committed under the
// same lock, so a reader never sees seq N+1 before N.
type Log struct {
	db        *badger.DB
	log       *slog.Logger
	mu        sync.Mutex
	sequences map[string]*badger.Sequence
	signals   map[string]*tail.Signal
	closed    bool
}

func NewLog(db *badger.DB, log *slog.Logger) *Log {
	return &Log{
		db:        db,
		log:       log,
		sequences: make(map[string]*badger.Sequence),
		signals:   make(map[string]*tail.Signal),
	}
}

func recordPrefix(collection string) string {
	return fmt.Sprintf("rec:%s:", collection)
}

func sequenceKey(collection string) string {
	return fmt.Sprintf("seq:%s", collection)
}

// Write persists the fields as the next record of the collection.
func (l *Log) Write(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if err := domain.ValidateCollection(collection); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	bytes, err := marshalFields(fields)
	if err != nil {
		return "", err
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return "", errors.ErrLogClosed
	}
	key, err := l.append(collection, bytes)
	signal := l.signal(collection)
	l.mu.Unlock()
	if err != nil {
		return "", err
	}

	signal.Notify()
	return key, nil
}

// append must be called with l.mu held.
func (l *Log) append(collection string, bytes []byte) (string, error) {
	seq, ok := l.sequences[collection]
	if !ok {
		var err error
		seq, err = l.db.GetSequence([]byte(sequenceKey(collection)), sequenceBandwidth)
		if err != nil {
			return "", err
		}
		l.sequences[collection] = seq
	}
	n, err := seq.Next()
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%019d", n)
	err = l.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(recordPrefix(collection)+key), bytes)
	})
	return key, err
}

func (l *Log) SubscribeChildAdded(ctx context.Context, collection string, opts contract.SubscribeOptions, onRecord func(domain.Record)) (contract.Subscription, error) {
	if err := domain.ValidateCollection(collection); err != nil {
		return nil, err
	}
	if opts.After != "" {
		if err := l.exists(collection, opts.After); err != nil {
			return nil, err
		}
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, errors.ErrLogClosed
	}
	signal := l.signal(collection)
	l.mu.Unlock()

	fetch := func(_ context.Context, after string) ([]domain.Record, error) {
		l.mu.Lock()
		closed := l.closed
		l.mu.Unlock()
		if closed {
			return nil, errors.ErrLogClosed
		}
		return l.Scan(collection, after, scanBatch)
	}
	return tail.Follow(ctx, signal, opts.After, fetch, onRecord), nil
}

// Scan returns up to limit records stored strictly after the given key,
// in write order. A value that cannot be decoded is returned with no fields
// so that readers can report it and move on.
func (l *Log) Scan(collection, after string, limit int) ([]domain.Record, error) {
	var records []domain.Record
	err := l.db.View(func(txn *badger.Txn) error {
		prefix := []byte(recordPrefix(collection))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		it.Seek(append(prefix, after...))
		if after != "" && it.ValidForPrefix(prefix) && string(it.Item().Key()[len(prefix):]) == after {
			it.Next()
		}
		for ; it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(records) == limit {
				break
			}
			item := it.Item()
			key := string(item.Key()[len(prefix):])
			err := item.Value(func(value []byte) error {
				fields, err := DecodeFields(value)
				if err != nil {
					l.log.Warn("Undecodable record value", "collection", collection, "key", key, "error", err)
				}
				records = append(records, domain.Record{Key: key, Fields: fields})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (l *Log) exists(collection, key string) error {
	return l.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(recordPrefix(collection) + key))
		if goerrors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", errors.ErrUnknownCursor, key)
		}
		return err
	})
}

// Close releases the leased sequences and ends every subscription.
// The database itself is owned by the caller.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	var errs []error
	for _, seq := range l.sequences {
		errs = append(errs, seq.Release())
	}
	for _, s := range l.signals {
		s.Notify()
	}
	return goerrors.Join(errs...)
}

// signal must be called with l.mu held.
func (l *Log) signal(collection string) *tail.Signal {
	s, ok := l.signals[collection]
	if !ok {
		s = tail.NewSignal()
		l.signals[collection] = s
	}
	return s
}
