package service

import (
	"context"
	"fmt"

	"github.com/zfogg/sidechain/live/pkg/api"
	"github.com/zfogg/sidechain/live/pkg/client"
	"github.com/zfogg/sidechain/live/pkg/config"
	"github.com/zfogg/sidechain/live/pkg/credentials"
	clierrors "github.com/zfogg/sidechain/live/pkg/errors"
	"github.com/zfogg/sidechain/live/pkg/realtime"
)

// session is the authenticated context every live command runs in
type session struct {
	creds *credentials.Credentials
	api   *api.Client
}

func requireSession() (*session, error) {
	creds, err := credentials.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	if !creds.IsValid() {
		return nil, clierrors.NewCLIError(clierrors.ErrorTypeUnauthorized, "Not signed in", nil).
			WithSuggestion("Run 'sidechain-live auth set' to store a token.")
	}

	client.SetAuthToken(creds.AccessToken)
	return &session{creds: creds, api: api.New(client.GetClient())}, nil
}

// realtimeConfig reads the websocket settings from config
func realtimeConfig() realtime.Config {
	cfg := realtime.DefaultConfig()
	if u := config.GetString("realtime.url"); u != "" {
		cfg.URL = u
	}
	if v := config.GetInt("realtime.connect_timeout_ms"); v > 0 {
		cfg.ConnectTimeoutMs = v
	}
	if v := config.GetInt("realtime.heartbeat_interval_ms"); v > 0 {
		cfg.HeartbeatIntervalMs = v
	}
	if v := config.GetInt("realtime.reconnect_base_delay_ms"); v > 0 {
		cfg.ReconnectBaseDelayMs = v
	}
	if v := config.GetInt("realtime.reconnect_max_delay_ms"); v > 0 {
		cfg.ReconnectMaxDelayMs = v
	}
	return cfg
}

// connect opens the realtime channel for the session
func (s *session) connect(ctx context.Context) (*realtime.Websocket, error) {
	ws := realtime.NewWebsocket(realtimeConfig(), s.creds.AccessToken)
	if err := ws.Connect(ctx); err != nil {
		return nil, clierrors.NetworkError("Could not connect to the realtime relay.", err).
			WithSuggestion("Check realtime.url, or start a local relay with 'sidechain-live relay serve'.")
	}
	return ws, nil
}
