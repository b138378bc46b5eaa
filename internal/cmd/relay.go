package cmd

import (
	"context"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/zfogg/sidechain/live/internal/relay"
	"github.com/zfogg/sidechain/live/pkg/config"
	"go.uber.org/zap"
)

var (
	relayAddr      string
	relaySeed      int
	relaySeedRooms string
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Local development relay",
}

var relayServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay until interrupted",
	Long: `Run a relay that serves the realtime websocket, the presence roster
and the follow endpoints. Storage is in memory unless relay.redis_url
or relay.database_dsn is set. Without relay.jwt_secret any token is
accepted as "<user_id>" or "<user_id>:<username>".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional
		_ = godotenv.Load()

		return runRelay(cmd.Context())
	},
}

func init() {
	relayServeCmd.Flags().StringVar(&relayAddr, "addr", "", "Listen address (default relay.addr)")
	relayServeCmd.Flags().IntVar(&relaySeed, "seed", 0, "Fill the roster with this many fake users")
	relayServeCmd.Flags().StringVar(&relaySeedRooms, "seed-rooms", "lobby,studio-a,studio-b", "Comma-separated rooms for seeded users")

	relayCmd.AddCommand(relayServeCmd)
}

func runRelay(ctx context.Context) error {
	log := relay.NewLogger(config.GetString("relay.log_level"), config.GetString("relay.log_file"))
	defer func() { _ = log.Sync() }()

	shutdownTracer, err := relay.InitTracer(ctx, "sidechain-live-relay", config.GetString("relay.otlp_endpoint"))
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(sctx)
	}()

	roster, follows, err := relayStores(ctx, log)
	if err != nil {
		return err
	}

	if relaySeed > 0 {
		rooms := splitRooms(relaySeedRooms)
		seeded, err := relay.Seed(ctx, roster, relaySeed, rooms, uint64(time.Now().UnixNano()))
		if err != nil {
			return err
		}
		log.Info("Seeded roster", zap.Int("users", len(seeded)), zap.Strings("rooms", rooms))
	}

	addr := relayAddr
	if addr == "" {
		addr = config.GetString("relay.addr")
	}

	srv := relay.New(relay.Config{
		Addr:      addr,
		JWTSecret: config.GetString("relay.jwt_secret"),
		Roster:    roster,
		Follows:   follows,
		Tracing:   config.GetString("relay.otlp_endpoint") != "",
		Logger:    log,
	})
	return srv.Run(ctx)
}

// relayStores picks redis for the roster and follows when configured, and a SQL
// database for follows when a DSN is set
func relayStores(ctx context.Context, log *zap.Logger) (relay.RosterStore, relay.FollowStore, error) {
	ttl := time.Duration(config.GetInt("relay.presence_ttl_seconds")) * time.Second

	var roster relay.RosterStore = relay.NewMemoryRoster(ttl)
	var follows relay.FollowStore = relay.NewMemoryFollows()

	if redisURL := config.GetString("relay.redis_url"); redisURL != "" {
		client, err := relay.NewRedisClient(ctx, redisURL)
		if err != nil {
			return nil, nil, err
		}
		roster = relay.NewRedisRoster(client, ttl)
		follows = relay.NewRedisFollows(client)
		log.Info("Using Redis storage")
	}

	if dsn := config.GetString("relay.database_dsn"); dsn != "" {
		db, err := relay.OpenDatabase(dsn)
		if err != nil {
			return nil, nil, err
		}
		follows = relay.NewGormFollows(db)
		log.Info("Using SQL storage for follows")
	}

	return roster, follows, nil
}

func splitRooms(s string) []string {
	var rooms []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			rooms = append(rooms, r)
		}
	}
	return rooms
}
