package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/zfogg/sidechain/live/pkg/logger"
)

func followPath(userID string) string {
	return fmt.Sprintf("/api/v1/users/%s/follow", url.PathEscape(userID))
}

// Follow creates the relationship from the current user to userID
func (c *Client) Follow(ctx context.Context, userID string) error {
	logger.Debug("Following user", "user_id", userID)

	resp, err := c.http.R().
		SetContext(ctx).
		Post(followPath(userID))

	return CheckResponse(resp, err)
}

// Unfollow removes the relationship from the current user to userID
func (c *Client) Unfollow(ctx context.Context, userID string) error {
	logger.Debug("Unfollowing user", "user_id", userID)

	resp, err := c.http.R().
		SetContext(ctx).
		Delete(followPath(userID))

	return CheckResponse(resp, err)
}

// FollowStatus reports whether the current user follows userID
func (c *Client) FollowStatus(ctx context.Context, userID string) (bool, error) {
	logger.Debug("Checking follow status", "user_id", userID)

	resp, err := c.http.R().
		SetContext(ctx).
		Get(followPath(userID))

	if err := CheckResponse(resp, err); err != nil {
		return false, err
	}

	var result FollowStatusResponse
	if err := decodeBody(resp, &result, "follow status"); err != nil {
		return false, err
	}
	return result.IsFollowing, nil
}
