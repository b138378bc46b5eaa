package relay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Follow is one follower -> followee row
type Follow struct {
	ID         string    `gorm:"primaryKey;size:36"`
	FollowerID string    `gorm:"not null;size:128;uniqueIndex:idx_follower_followee"`
	FolloweeID string    `gorm:"not null;size:128;uniqueIndex:idx_follower_followee;index"`
	CreatedAt  time.Time `gorm:"not null"`
}

// OpenDatabase opens dsn with sqlite for "sqlite:" / "file:" / *.db DSNs and
// postgres otherwise, then migrates the follow table
func OpenDatabase(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(dsn, "sqlite:"):
		dialector = sqlite.Open(strings.TrimPrefix(dsn, "sqlite:"))
	case strings.HasPrefix(dsn, "file:"), strings.HasSuffix(dsn, ".db"), dsn == ":memory:":
		dialector = sqlite.Open(dsn)
	default:
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&Follow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate follows: %w", err)
	}
	return db, nil
}

// GormFollows is a FollowStore on a relational database
type GormFollows struct {
	db *gorm.DB
}

func NewGormFollows(db *gorm.DB) *GormFollows {
	return &GormFollows{db: db}
}

func (g *GormFollows) Follow(ctx context.Context, followerID, followeeID string) error {
	row := Follow{
		ID:         uuid.NewString(),
		FollowerID: followerID,
		FolloweeID: followeeID,
	}
	err := g.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to follow: %w", err)
	}
	return nil
}

func (g *GormFollows) Unfollow(ctx context.Context, followerID, followeeID string) error {
	err := g.db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&Follow{}).Error
	if err != nil {
		return fmt.Errorf("failed to unfollow: %w", err)
	}
	return nil
}

func (g *GormFollows) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	var count int64
	err := g.db.WithContext(ctx).
		Model(&Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check follow: %w", err)
	}
	return count > 0, nil
}

func (g *GormFollows) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
