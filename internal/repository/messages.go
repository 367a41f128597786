package repository

import (
	"context"
	"fmt"
	"slices"

	"chat-sync/internal/domain/message"

	"github.com/jackc/pgx/v5/pgxpool"
)

const DefaultHistoryLimit = 50

// MessageRepository loads message history as seen by one user.
type MessageRepository struct {
	pool   *pgxpool.Pool
	userID string
	limit  int
}

// MessageHistory returns the newest messages of a conversation, oldest first.
func (r *MessageRepository) MessageHistory(ctx context.Context, conversationID string) ([]*message.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages m
		WHERE m.conversation_id::text = $1
		ORDER BY m.seq_id DESC
		LIMIT $2`, conversationID, r.limit)
	if err != nil {
		return nil, fmt.Errorf("message history %s: %w", conversationID, err)
	}
	msgs, err := collectMessages(rows)
	if err != nil {
		return nil, fmt.Errorf("message history %s: %w", conversationID, err)
	}
	slices.Reverse(msgs)

	if err := r.withReactions(ctx, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// latest returns the newest message of each conversation in ids.
func (r *MessageRepository) latest(ctx context.Context, ids []string) (map[string]*message.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (m.conversation_id) `+messageColumns+`
		FROM messages m
		WHERE m.conversation_id::text = ANY($1)
		ORDER BY m.conversation_id, m.seq_id DESC`, ids)
	if err != nil {
		return nil, fmt.Errorf("latest messages: %w", err)
	}
	msgs, err := collectMessages(rows)
	if err != nil {
		return nil, fmt.Errorf("latest messages: %w", err)
	}
	if err := r.withReactions(ctx, msgs); err != nil {
		return nil, err
	}

	out := make(map[string]*message.Message, len(msgs))
	for _, m := range msgs {
		out[m.ConversationID] = m
	}
	return out, nil
}

func (r *MessageRepository) withReactions(ctx context.Context, msgs []*message.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}

	rows, err := r.pool.Query(ctx, `
		SELECT message_id::text, reaction_code, user_id::text
		FROM message_reactions
		WHERE message_id::text = ANY($1)
		ORDER BY created_at`, ids)
	if err != nil {
		return fmt.Errorf("load reactions: %w", err)
	}
	defer rows.Close()

	var reactions []reactionRow
	for rows.Next() {
		var row reactionRow
		if err := rows.Scan(&row.MessageID, &row.Emoji, &row.UserID); err != nil {
			return fmt.Errorf("scan reaction: %w", err)
		}
		reactions = append(reactions, row)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load reactions: %w", err)
	}
	attachReactions(msgs, reactions, r.userID)
	return nil
}
