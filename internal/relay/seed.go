package relay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/zfogg/sidechain/live/pkg/api"
)

var seedStatuses = []string{"online", "online", "away", "busy", "in_studio", "idle"}

// Seed fills roster with n fake users spread over rooms (and the global scope when
// rooms is empty). The seed makes runs reproducible.
func Seed(ctx context.Context, roster RosterStore, n int, rooms []string, seed uint64) ([]api.PresenceRecord, error) {
	faker := gofakeit.New(seed)

	out := make([]api.PresenceRecord, 0, n)
	for i := 0; i < n; i++ {
		rec := api.PresenceRecord{
			UserID:     fmt.Sprintf("seed-%s", faker.UUID()[:8]),
			Username:   strings.ToLower(faker.Username()),
			Status:     seedStatuses[faker.IntN(len(seedStatuses))],
			LastSeenAt: time.Now().UTC(),
		}
		if len(rooms) > 0 {
			rec.Room = rooms[faker.IntN(len(rooms))]
		}
		if err := roster.Upsert(ctx, rec); err != nil {
			return out, fmt.Errorf("failed to seed presence: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}
