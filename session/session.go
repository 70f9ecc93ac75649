// Package session ties one user's chat state together: the identity used as
// sender, the message store and the feed that fills it. A Session replaces
// any process-wide state; create one per signed-in user and Close it when
// the user leaves.
package session

import (
	"context"
	"flash-chat/contract"
	"flash-chat/domain"
	"flash-chat/runtime"
	"flash-chat/runtime/workers"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Config struct {
	Identity    string `validate:"required"`
	Collection  string
	BufferSize  int           `validate:"gte=0"`
	SinkTimeout time.Duration `validate:"gte=0"`
	Restart     workers.RestartPolicy
}

type Session struct {
	identity  string
	log       *slog.Logger
	store     *domain.MessageStore
	feed      *runtime.MessageFeed
	closeOnce sync.Once
}

// New builds an idle session. Sinks receive every store append and send
// outcome; they may be called from several goroutines.
func New(log *slog.Logger, remote contract.ILog, config Config, sinks ...contract.EventSink) (*Session, error) {
	if err := validate.Struct(config); err != nil {
		return nil, err
	}
	log = log.With("identity", config.Identity)
	store := domain.NewMessageStore()
	feed := runtime.NewMessageFeed(log, remote, store, runtime.FeedConfig{
		Collection:  config.Collection,
		BufferSize:  config.BufferSize,
		SinkTimeout: config.SinkTimeout,
		Restart:     config.Restart,
	}, sinks...)
	return &Session{identity: config.Identity, log: log, store: store, feed: feed}, nil
}

// Start subscribes the session to the log.
func (s *Session) Start(ctx context.Context) error {
	s.log.Info("Session started")
	return s.feed.Subscribe(ctx)
}

// Send posts body as the session identity. See runtime.MessageFeed.Send.
func (s *Session) Send(ctx context.Context, body string) <-chan error {
	return s.feed.Send(ctx, s.identity, body)
}

func (s *Session) Identity() string { return s.identity }

func (s *Session) Messages() []domain.Message { return s.store.All() }

func (s *Session) Count() int { return s.store.Count() }

// IsOwn tells whether the message was sent by this session's identity.
func (s *Session) IsOwn(m domain.Message) bool { return m.Sender == s.identity }

func (s *Session) State() runtime.State { return s.feed.State() }

// Close releases the subscription and waits for pending sends.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.feed.Unsubscribe()
		s.feed.WaitSends()
		s.log.Info("Session closed", "messages", s.store.Count())
	})
}
