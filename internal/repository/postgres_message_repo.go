package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/MohdAamirTahir/QuickChatBackend/internal/model"
)

// PostgresMessageRepo はPostgreSQLを使用したメッセージリポジトリ。
type PostgresMessageRepo struct {
	db *sql.DB
}

// NewPostgresMessageRepo はPostgresMessageRepoを生成する。
func NewPostgresMessageRepo(db *sql.DB) *PostgresMessageRepo {
	return &PostgresMessageRepo{db: db}
}

const messageColumns = `id, sender_id, receiver_id, text, image, seen, created_at`

// FindByID は指定IDのメッセージを取得する。見つからない場合はnilを返す。
func (r *PostgresMessageRepo) FindByID(ctx context.Context, id string) (*model.Message, error) {
	msg := &model.Message{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = $1`,
		id,
	).Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Text, &msg.Image, &msg.Seen, &msg.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find message by ID: %w", err)
	}

	return msg, nil
}

// Create はメッセージを作成する。
func (r *PostgresMessageRepo) Create(ctx context.Context, message *model.Message) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (id, sender_id, receiver_id, text, image, seen, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		message.ID, message.SenderID, message.ReceiverID,
		message.Text, message.Image, message.Seen, message.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// ListConversation は2ユーザー間の全メッセージを作成日時の昇順で返す。
func (r *PostgresMessageRepo) ListConversation(ctx context.Context, userID, otherID string) ([]*model.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE (sender_id = $1 AND receiver_id = $2)
		    OR (sender_id = $2 AND receiver_id = $1)
		 ORDER BY created_at ASC`,
		userID, otherID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation: %w", err)
	}
	defer rows.Close()

	var messages []*model.Message
	for rows.Next() {
		msg := &model.Message{}
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Text, &msg.Image, &msg.Seen, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}

// MarkSeen は指定IDのメッセージを既読にする。
func (r *PostgresMessageRepo) MarkSeen(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE messages SET seen = TRUE WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark message seen: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("message not found: %s", id)
	}
	return nil
}

// MarkConversationSeen はotherIDからuserIDへ送られた全未読メッセージを既読にする。
func (r *PostgresMessageRepo) MarkConversationSeen(ctx context.Context, userID, otherID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE messages SET seen = TRUE
		 WHERE sender_id = $2 AND receiver_id = $1 AND NOT seen`,
		userID, otherID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark conversation seen: %w", err)
	}
	return nil
}

// CountUnseenBySender はuserID宛ての未読メッセージ数を送信者ごとに集計して返す。
func (r *PostgresMessageRepo) CountUnseenBySender(ctx context.Context, userID string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT sender_id, COUNT(*) FROM messages
		 WHERE receiver_id = $1 AND NOT seen
		 GROUP BY sender_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count unseen messages: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var senderID string
		var count int
		if err := rows.Scan(&senderID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan unseen count: %w", err)
		}
		counts[senderID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate unseen counts: %w", err)
	}
	return counts, nil
}

// compile-time interface check
var _ MessageRepository = (*PostgresMessageRepo)(nil)
