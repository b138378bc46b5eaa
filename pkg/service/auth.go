package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/zfogg/sidechain/live/pkg/api"
	"github.com/zfogg/sidechain/live/pkg/client"
	"github.com/zfogg/sidechain/live/pkg/credentials"
	"github.com/zfogg/sidechain/live/pkg/logger"
	"github.com/zfogg/sidechain/live/pkg/output"
	"github.com/zfogg/sidechain/live/pkg/prompter"
)

// AuthService manages the stored token and identity
type AuthService struct{}

// NewAuthService creates a new auth service
func NewAuthService() *AuthService {
	return &AuthService{}
}

// Set stores token, prompting for it when empty. The identity is confirmed with
// the backend before anything is written.
func (as *AuthService) Set(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		var err error
		token, err = prompter.PromptPassword("Access token: ")
		if err != nil {
			return fmt.Errorf("failed to read token: %w", err)
		}
	}
	if token == "" {
		return fmt.Errorf("token is required")
	}

	client.SetAuthToken(token)
	me, err := api.New(client.GetClient()).Me(ctx)
	if err != nil {
		client.ClearAuthToken()
		return err
	}

	creds := &credentials.Credentials{
		AccessToken: token,
		UserID:      me.UserID,
		Username:    me.Username,
	}
	if err := credentials.Save(creds); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	logger.Debug("Stored credentials", "user_id", me.UserID)
	output.PrintSuccess("Signed in as %s (%s)", creds.DisplayName(), creds.UserID)
	return nil
}

// WhoAmI prints the stored identity and whether the backend still accepts it
func (as *AuthService) WhoAmI(ctx context.Context) error {
	s, err := requireSession()
	if err != nil {
		return err
	}

	record := map[string]interface{}{
		"user_id":  s.creds.UserID,
		"username": s.creds.DisplayName(),
		"verified": false,
	}
	me, err := s.api.Me(ctx)
	switch {
	case err == nil:
		record["verified"] = me.UserID == s.creds.UserID
	case api.IsUnauthorized(err):
		output.PrintWarning("The stored token was rejected; run 'sidechain-live auth set' again")
	default:
		logger.Debug("Token check failed", "error", err)
	}

	return output.PrintRecord([]string{"user_id", "username", "verified"}, record)
}

// Logout deletes the stored credentials
func (as *AuthService) Logout() error {
	if err := credentials.Delete(); err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	client.ClearAuthToken()
	output.PrintSuccess("Signed out")
	return nil
}
