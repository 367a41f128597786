package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"chat-sync/internal/auth"
	"chat-sync/internal/config"
	"chat-sync/internal/engine"
	"chat-sync/internal/handler"
	chatredis "chat-sync/internal/redis"
	"chat-sync/internal/reconciler"
	"chat-sync/internal/repository"
	"chat-sync/internal/server"
	"chat-sync/internal/storage"
	"chat-sync/internal/transport"
	"chat-sync/internal/websocket"
	"chat-sync/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// runCmd runs the engine for one user
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sync engine and its local HTTP API",
	Long: `Run the sync engine for CHAT_USER_ID.

The engine loads the conversation list from Postgres, follows live events
over the transport named by TRANSPORT_KIND ("websocket" or "redis"), and
serves the synced state on SERVER_PORT.`,
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	defer log.Sync()

	userID := cfg.Sync.UserID
	if userID == "" {
		return errors.New("CHAT_USER_ID is required")
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := repository.NewPostgresStore(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	issuer := auth.NewIssuer(cfg.Transport.JWTSecret, cfg.Transport.TokenTTL)
	checks := map[string]server.HealthCheck{"postgres": pg.Ping}

	session, closeSession, err := newSession(cfg, issuer, log, checks)
	if err != nil {
		return err
	}
	defer closeSession()

	opts := []engine.Option{
		engine.WithHistoryFetcher(pg.Messages(userID, cfg.Sync.HistoryLimit)),
		engine.WithLogger(log.Component("engine")),
		engine.WithNoticeHandler(func(n reconciler.Notice) {
			log.Logger.Info("notice",
				zap.String("kind", string(n.Kind)),
				zap.String("command_type", n.CommandType),
				zap.String("request_id", n.RequestID),
				zap.String("reason", n.Reason),
			)
		}),
	}
	if cfg.S3.Bucket != "" {
		uploader, err := storage.NewClient(ctx, storage.S3Config{
			Region:     cfg.S3.Region,
			Bucket:     cfg.S3.Bucket,
			AccessKey:  cfg.S3.AccessKey,
			SecretKey:  cfg.S3.SecretKey,
			Endpoint:   cfg.S3.Endpoint,
			PublicBase: cfg.S3.PublicBase,
			MaxSize:    cfg.S3.MaxSize,
		}, userID)
		if err != nil {
			return fmt.Errorf("configure s3: %w", err)
		}
		opts = append(opts, engine.WithUploader(uploader))
	}

	eng := engine.New(engine.Config{
		UserID:          userID,
		EchoTolerance:   cfg.Sync.EchoTolerance,
		TypingIdle:      cfg.Sync.TypingIdle,
		MaxSendAttempts: cfg.Sync.MaxSendAttempts,
		InboxSize:       cfg.Sync.InboxSize,
	}, session, pg.Conversations(userID), opts...)

	srv := server.New(cfg, log)
	srv.SetupRoutes(&server.Handlers{
		Conversation: handler.NewConversationHandler(eng),
		Message:      handler.NewMessageHandler(eng),
		Sync:         handler.NewSyncHandler(eng),
	}, issuer, checks)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return session.Run(gctx) })
	g.Go(func() error { return eng.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx) })
	return g.Wait()
}

// newSession builds the transport named in cfg and registers its health
// check.
func newSession(cfg *config.Config, issuer *auth.Issuer, log *logger.Logger, checks map[string]server.HealthCheck) (transport.Session, func(), error) {
	switch cfg.Transport.Kind {
	case "websocket":
		userID := cfg.Sync.UserID
		return websocket.NewSession(websocket.SessionConfig{
			URL:    cfg.Transport.URL,
			UserID: userID,
			Token:  func() (string, error) { return issuer.Mint(userID) },
			Logger: log.Component("transport"),
		}), func() {}, nil
	case "redis":
		client := chatredis.NewClient(redisConfig(cfg))
		checks["redis"] = func(ctx context.Context) error { return chatredis.HealthCheck(ctx, client) }
		return chatredis.NewSession(client, chatredis.SessionConfig{
			UserID: cfg.Sync.UserID,
			Logger: log.Component("transport"),
		}), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown TRANSPORT_KIND %q", cfg.Transport.Kind)
	}
}

func redisConfig(cfg *config.Config) chatredis.Config {
	return chatredis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}
