package repository

import (
	"context"
	"fmt"

	"chat-sync/internal/domain/conversation"
	"chat-sync/internal/domain/message"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConversationRepository lists the conversations one user participates in.
type ConversationRepository struct {
	pool     *pgxpool.Pool
	userID   string
	messages *MessageRepository
}

const listConversationsSQL = `
	SELECT
		c.id::text,
		c.type,
		COALESCE(c.subject, ''),
		COALESCE((
			SELECT u.display_name
			FROM participants op
			JOIN users u ON u.id = op.user_id
			WHERE op.conversation_id = c.id AND op.user_id <> p.user_id
			ORDER BY op.joined_at
			LIMIT 1
		), ''),
		ARRAY(
			SELECT ap.user_id::text FROM participants ap
			WHERE ap.conversation_id = c.id
			ORDER BY ap.user_id
		),
		(
			SELECT COUNT(*) FROM messages um
			WHERE um.conversation_id = c.id
			  AND um.seq_id > p.last_read_sequence
			  AND um.sender_id <> p.user_id
			  AND um.deleted_at IS NULL
		),
		GREATEST(c.updated_at, COALESCE((
			SELECT MAX(am.created_at) FROM messages am WHERE am.conversation_id = c.id
		), c.created_at))
	FROM participants p
	JOIN conversations c ON c.id = p.conversation_id
	WHERE p.user_id = $1 AND NOT p.archived
	ORDER BY 7 DESC`

// ListConversations returns the user's conversations with server unread
// counts and last messages.
func (r *ConversationRepository) ListConversations(ctx context.Context) ([]*conversation.Conversation, error) {
	rows, err := r.pool.Query(ctx, listConversationsSQL, r.userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []*conversation.Conversation
	var ids []string
	for rows.Next() {
		var row conversationRow
		if err := rows.Scan(&row.ID, &row.Kind, &row.Subject, &row.PeerName, &row.Participants, &row.Unread, &row.LastActivityAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, row.toConversation())
		ids = append(ids, row.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	if len(ids) == 0 {
		return out, nil
	}

	last, err := r.messages.latest(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, c := range out {
		c.LastMessage = last[c.ID]
	}
	return out, nil
}

// MembershipRepository answers participant checks.
type MembershipRepository struct {
	pool *pgxpool.Pool
}

func (r *MembershipRepository) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM participants
			WHERE conversation_id::text = $1 AND user_id::text = $2
		)`, conversationID, userID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check participant: %w", err)
	}
	return ok, nil
}

// collectMessages scans rows built from messageColumns.
func collectMessages(rows pgx.Rows) ([]*message.Message, error) {
	defer rows.Close()
	var out []*message.Message
	for rows.Next() {
		var row messageRow
		if err := rows.Scan(row.dest()...); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, row.toMessage())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
