package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	TransportSSE       = "sse"
	TransportWebSocket = "websocket"
)

// Environment variables that seed flag defaults
const (
	EnvQueryURL = "AIASSIST_QUERY_URL"
	EnvTokenURL = "AIASSIST_TOKEN_URL"
	EnvAPIKey   = "AIASSIST_API_KEY"
	EnvToken    = "AIASSIST_TOKEN"
)

// Config holds application configuration
type Config struct {
	Transport string
	QueryURL  string // Completion stream endpoint (https:// for sse, ws:// or wss:// for websocket)
	TokenURL  string // JWT endpoint; empty means Token is used as-is
	APIKey    string // Credential sent to the JWT endpoint
	Token     string // Static stream token when no JWT endpoint is configured

	PostPath      string // JSON file holding the edited post
	ClientID      string // Block the assistant writes into; empty appends a new block
	UserPrompt    string
	Tone          string
	StreamTimeout time.Duration // Zero waits for the stream indefinitely

	DBPath string
	LogDir string
	Debug  bool
}

// Parse reads configuration from a .env file (when present), the
// environment and command-line flags, in increasing precedence
func Parse(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	fs := flag.NewFlagSet("aiassist", flag.ContinueOnError)
	fs.StringVar(&cfg.Transport, "transport", TransportSSE, "Stream transport (sse|websocket)")
	fs.StringVar(&cfg.QueryURL, "query-url", os.Getenv(EnvQueryURL), "Completion stream endpoint")
	fs.StringVar(&cfg.TokenURL, "token-url", os.Getenv(EnvTokenURL), "JWT endpoint used to obtain stream tokens")
	fs.StringVar(&cfg.PostPath, "post", "post.json", "Path to the post JSON file")
	fs.StringVar(&cfg.ClientID, "client-id", "", "Client id of the block to write into")
	fs.StringVar(&cfg.UserPrompt, "prompt", "", "Initial free-text instruction")
	fs.StringVar(&cfg.Tone, "tone", "formal", "Default tone")
	fs.DurationVar(&cfg.StreamTimeout, "stream-timeout", 0, "Cancel a suggestion that has not finished after this long (0 disables)")
	fs.StringVar(&cfg.DBPath, "db", "aiassist.db", "SQLite history database")
	fs.StringVar(&cfg.LogDir, "log-dir", "logs", "Directory for logs, traces and metrics")
	fs.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.APIKey = os.Getenv(EnvAPIKey)
	cfg.Token = os.Getenv(EnvToken)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable
func (c Config) Validate() error {
	if c.QueryURL == "" {
		return fmt.Errorf("query url is required (set -query-url or %s)", EnvQueryURL)
	}

	switch c.Transport {
	case TransportSSE:
		if !strings.HasPrefix(c.QueryURL, "http://") && !strings.HasPrefix(c.QueryURL, "https://") {
			return fmt.Errorf("sse transport needs an http(s) query url: %s", c.QueryURL)
		}
	case TransportWebSocket:
		if !strings.HasPrefix(c.QueryURL, "ws://") && !strings.HasPrefix(c.QueryURL, "wss://") {
			return fmt.Errorf("websocket transport needs a ws(s) query url: %s", c.QueryURL)
		}
	default:
		return fmt.Errorf("unknown transport: %s", c.Transport)
	}

	if c.StreamTimeout < 0 {
		return fmt.Errorf("stream timeout cannot be negative")
	}
	return nil
}
