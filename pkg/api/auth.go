package api

import (
	"context"

	"github.com/zfogg/sidechain/live/pkg/logger"
)

// Me returns the user the current token authenticates as
func (c *Client) Me(ctx context.Context) (*User, error) {
	logger.Debug("Fetching current user")

	resp, err := c.http.R().
		SetContext(ctx).
		Get("/api/v1/auth/me")
	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}

	var user User
	if err := decodeBody(resp, &user, "user"); err != nil {
		return nil, err
	}
	return &user, nil
}
