package api

import (
	"context"

	"github.com/zfogg/sidechain/live/pkg/logger"
)

// Roster fetches everyone present in scope. An empty scope is the global roster.
func (c *Client) Roster(ctx context.Context, scope string) ([]PresenceRecord, error) {
	logger.Debug("Fetching presence roster", "scope", scope)

	request := c.http.R().SetContext(ctx)
	if scope != "" {
		request.SetQueryParam("room", scope)
	}

	resp, err := request.Get("/api/v1/presence/roster")
	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}

	var result RosterResponse
	if err := decodeBody(resp, &result, "presence roster"); err != nil {
		return nil, err
	}
	if result.Users == nil {
		return []PresenceRecord{}, nil
	}
	return result.Users, nil
}
