package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/zfogg/sidechain/live/pkg/api"
)

const (
	presenceKeyPrefix  = "presence:"
	onlineSetKey       = "presence_online"
	followingKeyPrefix = "following:"
	followersKeyPrefix = "followers:"
)

// NewRedisClient parses redisURL and checks the connection
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisRoster keeps each entry under presence:<user_id> with a TTL, plus a set of
// every user id that may still be present
type RedisRoster struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRoster(client *redis.Client, ttl time.Duration) *RedisRoster {
	if ttl <= 0 {
		ttl = DefaultPresenceTTL
	}
	return &RedisRoster{client: client, ttl: ttl}
}

func (r *RedisRoster) Upsert(ctx context.Context, rec api.PresenceRecord) error {
	if rec.LastSeenAt.IsZero() {
		rec.LastSeenAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal presence data: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, presenceKeyPrefix+rec.UserID, data, r.ttl)
	pipe.SAdd(ctx, onlineSetKey, rec.UserID)
	pipe.Expire(ctx, onlineSetKey, r.ttl*2)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update presence: %w", err)
	}
	return nil
}

func (r *RedisRoster) Touch(ctx context.Context, userID string) error {
	data, err := r.client.Get(ctx, presenceKeyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read presence: %w", err)
	}

	var rec api.PresenceRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("failed to unmarshal presence data: %w", err)
	}
	rec.LastSeenAt = time.Now().UTC()
	return r.Upsert(ctx, rec)
}

func (r *RedisRoster) Remove(ctx context.Context, userID string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, presenceKeyPrefix+userID)
	pipe.SRem(ctx, onlineSetKey, userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove presence: %w", err)
	}
	return nil
}

func (r *RedisRoster) List(ctx context.Context, room string) ([]api.PresenceRecord, error) {
	userIDs, err := r.client.SMembers(ctx, onlineSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get online users: %w", err)
	}
	if len(userIDs) == 0 {
		return []api.PresenceRecord{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(userIDs))
	for i, userID := range userIDs {
		cmds[i] = pipe.Get(ctx, presenceKeyPrefix+userID)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get presence data: %w", err)
	}

	out := make([]api.PresenceRecord, 0, len(userIDs))
	var expired []interface{}
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			expired = append(expired, userIDs[i])
			continue
		}
		if err != nil {
			continue
		}

		var rec api.PresenceRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		if room != "" && rec.Room != room {
			continue
		}
		out = append(out, rec)
	}

	if len(expired) > 0 {
		// Best effort; the next List retries
		_ = r.client.SRem(ctx, onlineSetKey, expired...).Err()
	}

	sortRecords(out)
	return out, nil
}

func (r *RedisRoster) Close() error {
	return r.client.Close()
}

// RedisFollows stores following:<follower> and followers:<followee> sets
type RedisFollows struct {
	client *redis.Client
}

func NewRedisFollows(client *redis.Client) *RedisFollows {
	return &RedisFollows{client: client}
}

func (r *RedisFollows) Follow(ctx context.Context, followerID, followeeID string) error {
	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, followingKeyPrefix+followerID, followeeID)
	pipe.SAdd(ctx, followersKeyPrefix+followeeID, followerID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to follow: %w", err)
	}
	return nil
}

func (r *RedisFollows) Unfollow(ctx context.Context, followerID, followeeID string) error {
	pipe := r.client.TxPipeline()
	pipe.SRem(ctx, followingKeyPrefix+followerID, followeeID)
	pipe.SRem(ctx, followersKeyPrefix+followeeID, followerID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to unfollow: %w", err)
	}
	return nil
}

func (r *RedisFollows) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, followingKeyPrefix+followerID, followeeID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check follow: %w", err)
	}
	return ok, nil
}

// Close is a no-op; the client is shared with RedisRoster, which closes it
func (r *RedisFollows) Close() error { return nil }
