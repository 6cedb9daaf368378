package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	commonerrors "github.com/AlibekovAA/booking-chat-relay/internal/common/errors"
)

var ErrInvalidPingPeriod = errors.New("CHAT_WS_PING_PERIOD must be shorter than CHAT_WS_PONG_WAIT")

type RelayConfig struct {
	HTTPPort     string `env:"PORT" envDefault:"3001"`
	ClientURL    string `env:"CLIENT_URL,required,notEmpty"`
	BackendURL   string `env:"BACKEND_URL,required,notEmpty"`
	LogDir       string `env:"LOG_DIR"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	OTelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	WebSocket WebSocketConfig `envPrefix:"CHAT_WS_"`
	Processor ProcessorConfig `envPrefix:"CHAT_PROCESSOR_"`
	Backend   BackendConfig   `envPrefix:"BACKEND_"`
}

type WebSocketConfig struct {
	WriteWait   time.Duration `env:"WRITE_WAIT" envDefault:"10s"`
	PongWait    time.Duration `env:"PONG_WAIT" envDefault:"60s"`
	PingPeriod  time.Duration `env:"PING_PERIOD" envDefault:"54s"`
	MaxMsgSize  int64         `env:"MAX_MSG_SIZE" envDefault:"65536"`
	SendBufSize int           `env:"SEND_BUF_SIZE" envDefault:"256"`

	HandshakeRPS   float64 `env:"HANDSHAKE_RPS" envDefault:"5"`
	HandshakeBurst int     `env:"HANDSHAKE_BURST" envDefault:"20"`
}

type ProcessorConfig struct {
	Workers   int           `env:"WORKERS" envDefault:"16"`
	QueueSize int           `env:"QUEUE_SIZE" envDefault:"1024"`
	Timeout   time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

type BackendConfig struct {
	Timeout       time.Duration `env:"TIMEOUT" envDefault:"10s"`
	RetryMaxTries uint          `env:"RETRY_MAX_TRIES" envDefault:"3"`
	RetryMaxDelay time.Duration `env:"RETRY_MAX_DELAY" envDefault:"2s"`
	CBThreshold   int32         `env:"CB_THRESHOLD" envDefault:"5"`
	CBReset       time.Duration `env:"CB_RESET" envDefault:"30s"`
}

// LoadRelayConfig reads an optional .env file and then the process environment.
func LoadRelayConfig() (RelayConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return RelayConfig{}, fmt.Errorf("load .env: %w", err)
	}
	return parse(env.Options{})
}

// LoadRelayConfigFrom parses the given environment only. Used by tests.
func LoadRelayConfigFrom(environ map[string]string) (RelayConfig, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (RelayConfig, error) {
	cfg, err := env.ParseAsWithOptions[RelayConfig](opts)
	if err != nil {
		return RelayConfig{}, commonerrors.ErrMissingRequiredEnv.WithCause(err)
	}
	if err := cfg.validate(); err != nil {
		return RelayConfig{}, err
	}
	return cfg, nil
}

func (c RelayConfig) validate() error {
	if c.WebSocket.PingPeriod >= c.WebSocket.PongWait {
		return ErrInvalidPingPeriod
	}
	if _, err := url.ParseRequestURI(c.BackendURL); err != nil {
		return fmt.Errorf("invalid BACKEND_URL: %w", err)
	}
	return nil
}
