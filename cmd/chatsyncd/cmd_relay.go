package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-sync/internal/auth"
	"chat-sync/internal/config"
	chatredis "chat-sync/internal/redis"
	"chat-sync/internal/repository"
	"chat-sync/internal/server"
	"chat-sync/internal/websocket"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var relayPort string

// relayCmd runs the websocket relay
var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the websocket relay between clients and redis pub/sub",
	Long: `Run the websocket relay.

Clients connect to /ws with an access token. Backend events published on
redis conversation and user channels are fanned out to subscribed clients.
Commands sent by clients are rate limited and published to the system
command channel. When DATABASE_URL is set, conversation subscriptions are
checked against participant rows; otherwise any conversation is allowed.`,
	RunE: runRelay,
}

func init() {
	relayCmd.Flags().StringVar(&relayPort, "port", "", "Listen port (default: RELAY_PORT)")
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	defer log.Sync()

	cfg.Server.Port = cfg.Relay.Port
	if relayPort != "" {
		cfg.Server.Port = relayPort
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := chatredis.NewClient(redisConfig(cfg))
	defer client.Close()
	checks := map[string]server.HealthCheck{
		"redis": func(ctx context.Context) error { return chatredis.HealthCheck(ctx, client) },
	}

	var members websocket.MembershipChecker = websocket.OpenMembership{}
	if cfg.Database.URL != "" {
		pg, err := repository.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		members = pg.Membership()
		checks["postgres"] = pg.Ping
	} else {
		log.Warnf("DATABASE_URL not set; conversation subscriptions are not checked")
	}

	limiter := chatredis.NewRateLimiter(client, chatredis.RateLimitConfig{
		MessageLimit:  cfg.Relay.MessageLimit,
		MessageWindow: windowOrDefault(cfg.Relay.LimiterWindow),
		CommandLimit:  cfg.Relay.CommandLimit,
		CommandWindow: windowOrDefault(cfg.Relay.LimiterWindow),
	})

	hub := websocket.NewHub()
	issuer := auth.NewIssuer(cfg.Transport.JWTSecret, cfg.Transport.TokenTTL)
	ws := websocket.NewHandler(
		issuer,
		hub,
		websocket.NewChannelAuthorizer(members),
		chatredis.NewPublisher(client),
		limiter,
		log.Component("relay"),
	)
	bridge := websocket.NewRedisBridge(chatredis.NewSubscriber(client, log.Component("redis")), hub)

	srv := server.New(cfg, log)
	srv.SetupRelayRoutes(ws, checks)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error { return bridge.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx) })
	return g.Wait()
}

func windowOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Minute
	}
	return d
}
