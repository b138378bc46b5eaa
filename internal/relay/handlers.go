package relay

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/sidechain/live/pkg/api"
	"go.uber.org/zap"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"timestamp":   time.Now().UTC(),
		"service":     serviceName,
		"connections": s.hub.ConnectionCount(),
	})
}

func (s *Server) me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"user_id":  c.GetString(ctxUserID),
		"username": c.GetString(ctxUsername),
	})
}

func (s *Server) roster(c *gin.Context) {
	room := c.Query("room")

	users, err := s.cfg.Roster.List(c.Request.Context(), room)
	if err != nil {
		s.log.Error("Failed to list roster", zap.String("room", room), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "roster_unavailable",
			"message": "Failed to load presence",
		})
		return
	}
	if room == "" {
		s.metrics.RosterSize.Set(float64(len(users)))
	}

	c.JSON(http.StatusOK, api.RosterResponse{Count: len(users), Users: users})
}

func (s *Server) followStatus(c *gin.Context) {
	actor := c.GetString(ctxUserID)
	subject := c.Param("id")

	following, err := s.cfg.Follows.IsFollowing(c.Request.Context(), actor, subject)
	if err != nil {
		s.log.Error("Failed to check follow", zap.String("subject", subject), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "follow_check_failed",
			"message": "Failed to check follow status",
		})
		return
	}
	c.JSON(http.StatusOK, api.FollowStatusResponse{IsFollowing: following})
}

func (s *Server) follow(c *gin.Context) {
	s.mutateFollow(c, true)
}

func (s *Server) unfollow(c *gin.Context) {
	s.mutateFollow(c, false)
}

func (s *Server) mutateFollow(c *gin.Context, follow bool) {
	actor := c.GetString(ctxUserID)
	subject := c.Param("id")
	operation := "unfollow"
	if follow {
		operation = "follow"
	}

	if subject == actor {
		s.metrics.FollowOperations.WithLabelValues(operation, "rejected").Inc()
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "You cannot follow yourself",
		})
		return
	}

	var err error
	if follow {
		err = s.cfg.Follows.Follow(c.Request.Context(), actor, subject)
	} else {
		err = s.cfg.Follows.Unfollow(c.Request.Context(), actor, subject)
	}
	if err != nil {
		s.metrics.FollowOperations.WithLabelValues(operation, "error").Inc()
		s.log.Error("Follow mutation failed",
			zap.String("operation", operation),
			zap.String("actor", actor),
			zap.String("subject", subject),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "follow_failed",
			"message": "Failed to update follow status",
		})
		return
	}

	s.metrics.FollowOperations.WithLabelValues(operation, "ok").Inc()
	c.JSON(http.StatusOK, api.FollowResponse{IsFollowing: follow})
}
