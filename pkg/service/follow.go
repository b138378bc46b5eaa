package service

import (
	"context"
	"fmt"

	clierrors "github.com/zfogg/sidechain/live/pkg/errors"
	"github.com/zfogg/sidechain/live/pkg/api"
	"github.com/zfogg/sidechain/live/pkg/follow"
	"github.com/zfogg/sidechain/live/pkg/logger"
	"github.com/zfogg/sidechain/live/pkg/notify"
	"github.com/zfogg/sidechain/live/pkg/output"
	"github.com/zfogg/sidechain/live/pkg/prompter"
)

// FollowService checks and toggles follow relationships
type FollowService struct {
	notifier notify.Notifier
}

// NewFollowService creates a new follow service that notifies on the terminal
func NewFollowService() *FollowService {
	return &FollowService{notifier: notify.NewTerminal(nil)}
}

func (fs *FollowService) controller(s *session, userID string) *follow.Controller {
	return follow.NewController(s.api, fs.notifier, follow.Config{
		SubjectID: userID,
		ActorID:   s.creds.UserID,
		OnState: func(snap follow.Snapshot) {
			logger.Debug("Follow state", "subject", snap.SubjectID, "state", snap.State, "following", snap.IsFollowing)
		},
	})
}

// Status prints whether the current user follows userID
func (fs *FollowService) Status(ctx context.Context, userID string) error {
	s, err := requireSession()
	if err != nil {
		return err
	}

	ctrl := fs.controller(s, userID)
	if !ctrl.CanToggle() {
		output.PrintInfo("That is you")
		return nil
	}
	if err := ctrl.Initialize(ctx); err != nil {
		return err
	}

	return output.PrintRecord([]string{"user_id", "following"}, map[string]interface{}{
		"user_id":   userID,
		"following": ctrl.IsFollowing(),
	})
}

// Toggle flips the relationship with userID. Unfollowing asks for confirmation
// unless yes is set or stdin is not a terminal.
func (fs *FollowService) Toggle(ctx context.Context, userID string, yes bool) error {
	s, err := requireSession()
	if err != nil {
		return err
	}

	ctrl := fs.controller(s, userID)
	if !ctrl.CanToggle() {
		return clierrors.ValidationError("user", "you cannot follow yourself")
	}

	// A failed check leaves the default (not following); the toggle is still allowed
	if err := ctrl.Initialize(ctx); err != nil {
		output.PrintWarning("Could not load follow status: %s", followStatusProblem(err))
	}

	before := ctrl.IsFollowing()
	if before && !yes && prompter.IsInteractive() {
		confirmed, err := prompter.PromptConfirm(fmt.Sprintf("Unfollow %s?", userID))
		if err != nil {
			return err
		}
		if !confirmed {
			output.PrintInfo("Cancelled")
			return nil
		}
	}

	ctrl.Toggle(ctx)
	if ctrl.IsFollowing() == before {
		// The controller already told the user why
		return fmt.Errorf("follow update for %s was rolled back", userID)
	}
	return nil
}

func followStatusProblem(err error) string {
	switch {
	case api.IsNotFound(err):
		return "no such user"
	case api.IsServerError(err):
		return clierrors.UserMessage(err, "the server had a problem")
	default:
		return clierrors.UserMessage(err, "request failed")
	}
}
