package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore owns the connection pool the read-side fetchers share.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Conversations returns the conversation fetcher for userID.
func (s *PostgresStore) Conversations(userID string) *ConversationRepository {
	return &ConversationRepository{pool: s.pool, userID: userID, messages: s.Messages(userID, 0)}
}

// Messages returns the history fetcher for userID. limit <= 0 uses
// DefaultHistoryLimit.
func (s *PostgresStore) Messages(userID string, limit int) *MessageRepository {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &MessageRepository{pool: s.pool, userID: userID, limit: limit}
}

// Membership answers participant checks for the relay authorizer.
func (s *PostgresStore) Membership() *MembershipRepository {
	return &MembershipRepository{pool: s.pool}
}
