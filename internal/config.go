package internal

import (
	"flash-chat/runtime/workers"
	"flash-chat/session"
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

type LogServerConfig struct {
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	Backend              string        `env:"LOG_BACKEND,default=badger" validate:"oneof=badger redis memory"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,default=./data/badger"`
	RedisURL             string        `env:"REDIS_URL,default=redis://localhost:6379/0"`
	Host                 string        `env:"HOST,default=0.0.0.0"`
	Port                 int           `env:"PORT,default=8080" validate:"gt=0"`
	DebugPort            int           `env:"DEBUG_PORT,default=8081"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64" validate:"gt=0"`
	StatsInterval        time.Duration `env:"STATS_INTERVAL,default=5s" validate:"gt=0"`
	ModerationWords      []string      `env:"MODERATION_WORDS"`
	ModerationMask       string        `env:"MODERATION_MASK,default=*"`
}

// MaskRune returns the moderation mask, which must be a single character.
func (c LogServerConfig) MaskRune() (rune, error) {
	r := []rune(c.ModerationMask)
	if len(r) != 1 {
		return 0, fmt.Errorf("MODERATION_MASK must be a single character, got %q", c.ModerationMask)
	}
	return r[0], nil
}

type ChatConfig struct {
	LogLevel           string        `env:"LOG_LEVEL,default=WARN"`
	ServerAddr         string        `env:"CHAT_SERVER_ADDR,default=localhost:8080" validate:"hostname_port"`
	Identity           string        `env:"CHAT_IDENTITY,required=true" validate:"required,email"`
	Collection         string        `env:"CHAT_COLLECTION,default=Messages" validate:"required,excludes=:"`
	Resubscribe        bool          `env:"FEED_RESUBSCRIBE,default=true"`
	RestartInterval    time.Duration `env:"RESTART_INTERVAL,default=200ms" validate:"gt=0"`
	MaxRestartInterval time.Duration `env:"MAX_RESTART_INTERVAL,default=5s" validate:"gtefield=RestartInterval"`
	BufferSize         int           `env:"BUFFER_SIZE,default=256" validate:"gte=0"`
	SinkTimeout        time.Duration `env:"SINK_TIMEOUT,default=1s" validate:"gte=0"`
}

// Session maps the chat configuration onto a session configuration.
func (c ChatConfig) Session() session.Config {
	return session.Config{
		Identity:    c.Identity,
		Collection:  c.Collection,
		BufferSize:  c.BufferSize,
		SinkTimeout: c.SinkTimeout,
		Restart: workers.RestartPolicy{
			Enabled:     c.Resubscribe,
			Interval:    c.RestartInterval,
			MaxInterval: c.MaxRestartInterval,
		},
	}
}

// LoadConfig reads an optional .env file, then the environment, into config
// and validates the result.
func LoadConfig(config any) error {
	_ = godotenv.Load()
	if _, err := env.UnmarshalFromEnviron(config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
