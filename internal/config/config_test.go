package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaultsFromEnvironment(t *testing.T) {
	t.Setenv(EnvQueryURL, "https://example.com/query")
	t.Setenv(EnvTokenURL, "https://example.com/jwt")
	t.Setenv(EnvAPIKey, "secret")
	t.Setenv(EnvToken, "")

	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, TransportSSE, cfg.Transport)
	assert.Equal(t, "https://example.com/query", cfg.QueryURL)
	assert.Equal(t, "https://example.com/jwt", cfg.TokenURL)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, "post.json", cfg.PostPath)
	assert.Equal(t, "formal", cfg.Tone)
	assert.Zero(t, cfg.StreamTimeout)
}

func TestParseFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv(EnvQueryURL, "https://example.com/query")

	cfg, err := Parse([]string{
		"-transport", "websocket",
		"-query-url", "wss://example.com/stream",
		"-client-id", "block-1",
		"-stream-timeout", "45s",
		"-debug",
	})
	require.NoError(t, err)
	assert.Equal(t, TransportWebSocket, cfg.Transport)
	assert.Equal(t, "wss://example.com/stream", cfg.QueryURL)
	assert.Equal(t, "block-1", cfg.ClientID)
	assert.Equal(t, 45*time.Second, cfg.StreamTimeout)
	assert.True(t, cfg.Debug)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "sse", cfg: Config{Transport: TransportSSE, QueryURL: "http://localhost/query"}},
		{name: "websocket", cfg: Config{Transport: TransportWebSocket, QueryURL: "ws://localhost/query"}},
		{name: "missing url", cfg: Config{Transport: TransportSSE}, wantErr: "query url is required"},
		{name: "sse with ws url", cfg: Config{Transport: TransportSSE, QueryURL: "ws://localhost"}, wantErr: "sse transport"},
		{name: "websocket with http url", cfg: Config{Transport: TransportWebSocket, QueryURL: "https://localhost"}, wantErr: "websocket transport"},
		{name: "unknown transport", cfg: Config{Transport: "grpc", QueryURL: "http://localhost"}, wantErr: "unknown transport"},
		{name: "negative timeout", cfg: Config{Transport: TransportSSE, QueryURL: "http://localhost", StreamTimeout: -time.Second}, wantErr: "negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestParseRejectsUnknownFlag(t *testing.T) {
	t.Setenv(EnvQueryURL, "https://example.com/query")
	_, err := Parse([]string{"-nope"})
	assert.Error(t, err)
}
