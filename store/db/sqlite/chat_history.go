package sqlite

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/kazuhrw/schedsense/store"
)

func (d *DB) CreateChatMessage(ctx context.Context, create *store.ChatHistory) (*store.ChatHistory, error) {
	createdTs := create.CreatedTs
	if createdTs == 0 {
		createdTs = time.Now().Unix()
	}
	stmt := `
		INSERT INTO chat_history (role, content, created_ts)
		VALUES (?, ?, ?)
		RETURNING id, role, content, created_ts
	`
	var message store.ChatHistory
	err := d.q.QueryRowContext(ctx, stmt, create.Role, create.Content, createdTs).Scan(
		&message.ID,
		&message.Role,
		&message.Content,
		&message.CreatedTs,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create chat message")
	}
	return &message, nil
}

// ListChatMessages returns transcript entries oldest-first.
// Find.Limit keeps only the newest N entries before reordering.
func (d *DB) ListChatMessages(ctx context.Context, find *store.FindChatHistory) ([]*store.ChatHistory, error) {
	query := `SELECT id, role, content, created_ts FROM chat_history ORDER BY id DESC`
	args := []any{}
	if find.Limit != nil {
		query += " LIMIT ?"
		args = append(args, *find.Limit)
	}

	rows, err := d.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list chat messages")
	}
	defer rows.Close()

	var messages []*store.ChatHistory
	for rows.Next() {
		var message store.ChatHistory
		if err := rows.Scan(&message.ID, &message.Role, &message.Content, &message.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan chat message")
		}
		messages = append(messages, &message)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse newest-first into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
