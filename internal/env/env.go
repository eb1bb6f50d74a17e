package env

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Client is the configuration of the terminal chat client.
type Client struct {
	BackendURL        string        `env:"CHAT_BACKEND_URL" envDefault:"http://localhost:5000"`
	RealtimePath      string        `env:"CHAT_REALTIME_PATH" envDefault:"/ws"`
	HTTPTimeout       time.Duration `env:"CHAT_HTTP_TIMEOUT" envDefault:"15s"`
	ReconnectMin      time.Duration `env:"CHAT_RECONNECT_MIN" envDefault:"500ms"`
	ReconnectMax      time.Duration `env:"CHAT_RECONNECT_MAX" envDefault:"10s"`
	ReconnectAttempts int           `env:"CHAT_RECONNECT_ATTEMPTS" envDefault:"0"`
	LogLevel          string        `env:"CHAT_LOG_LEVEL" envDefault:"info"`
	MetricsAddr       string        `env:"CHAT_METRICS_ADDR"`
}

// Server is the configuration of the local development backend.
type Server struct {
	ListenAddr     string   `env:"CHAT_LISTEN_ADDR" envDefault:":5000"`
	Timezone       string   `env:"CHAT_TIMEZONE" envDefault:"America/Sao_Paulo"`
	RedisURL       string   `env:"CHAT_REDIS_URL"`
	RedisPass      string   `env:"CHAT_REDIS_PASS"`
	AllowedOrigins []string `env:"CHAT_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	Workers        int      `env:"CHAT_WORKERS" envDefault:"10"`
	QueueSize      int      `env:"CHAT_QUEUE_SIZE" envDefault:"10"`
	LogLevel       string   `env:"CHAT_LOG_LEVEL" envDefault:"info"`
}

func LoadClient() (Client, error) {
	return LoadClientFrom(nil)
}

// LoadClientFrom parses the client configuration. A nil environment reads the
// process environment.
func LoadClientFrom(environ map[string]string) (Client, error) {
	var cfg Client
	if err := parse(&cfg, environ); err != nil {
		return Client{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Client{}, err
	}
	return cfg, nil
}

func LoadServer() (Server, error) {
	return LoadServerFrom(nil)
}

func LoadServerFrom(environ map[string]string) (Server, error) {
	var cfg Server
	if err := parse(&cfg, environ); err != nil {
		return Server{}, err
	}
	if cfg.Workers <= 0 {
		return Server{}, fmt.Errorf("env: CHAT_WORKERS must be positive, got %d", cfg.Workers)
	}
	if cfg.QueueSize < 0 {
		return Server{}, fmt.Errorf("env: CHAT_QUEUE_SIZE must not be negative, got %d", cfg.QueueSize)
	}
	return cfg, nil
}

func parse(target any, environ map[string]string) error {
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(target, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c Client) Validate() error {
	u, err := url.Parse(strings.TrimSpace(c.BackendURL))
	if err != nil {
		return fmt.Errorf("env: invalid CHAT_BACKEND_URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("env: CHAT_BACKEND_URL must be http or https, got %q", c.BackendURL)
	}
	if u.Host == "" {
		return fmt.Errorf("env: CHAT_BACKEND_URL has no host: %q", c.BackendURL)
	}
	if c.ReconnectMin <= 0 || c.ReconnectMax < c.ReconnectMin {
		return fmt.Errorf("env: reconnect window %s..%s is invalid", c.ReconnectMin, c.ReconnectMax)
	}
	if c.ReconnectAttempts < 0 {
		return fmt.Errorf("env: CHAT_RECONNECT_ATTEMPTS must not be negative")
	}
	return nil
}

// RealtimeURL derives the websocket address from the backend origin.
func (c Client) RealtimeURL() (string, error) {
	return RealtimeURL(c.BackendURL, c.RealtimePath)
}

func RealtimeURL(backendURL, path string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(backendURL))
	if err != nil {
		return "", fmt.Errorf("parse backend url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported backend scheme %q", u.Scheme)
	}
	if path == "" {
		path = "/ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
