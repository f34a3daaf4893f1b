package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"campus-chat/models"
)

type MessageRepository interface {
	// Append stores a new message with is_read = false. The store assigns
	// the id and both timestamps.
	Append(sender, receiver models.Identity, content string) (*models.Message, error)
	// MarkRead flips every unread message from sender to receiver to read.
	// Idempotent: a second call finds nothing to flip and still succeeds.
	MarkRead(receiver, sender models.Identity) error
	// History returns all messages between the unordered pair {a, b},
	// ordered by created_at ascending, ties broken by id.
	History(a, b models.Identity) ([]models.Message, error)
	// ListByParticipant returns one summary per distinct counterpart of p,
	// most recent conversation first.
	ListByParticipant(p models.Identity) ([]models.ConversationSummary, error)
}

type SQLiteMessageRepo struct {
	db *sqlx.DB
}

func NewSQLiteMessageRepo(db *sqlx.DB) *SQLiteMessageRepo {
	return &SQLiteMessageRepo{db: db}
}

type messageRow struct {
	ID           int    `db:"id"`
	SenderID     int    `db:"sender_id"`
	SenderRole   string `db:"sender_role"`
	ReceiverID   int    `db:"receiver_id"`
	ReceiverRole string `db:"receiver_role"`
	Content      string `db:"content"`
	IsRead       bool   `db:"is_read"`
	CreatedAt    int64  `db:"created_at"`
	UpdatedAt    int64  `db:"updated_at"`
}

func (r messageRow) toModel() models.Message {
	return models.Message{
		ID:           r.ID,
		SenderID:     r.SenderID,
		SenderRole:   models.Role(r.SenderRole),
		ReceiverID:   r.ReceiverID,
		ReceiverRole: models.Role(r.ReceiverRole),
		Content:      r.Content,
		IsRead:       r.IsRead,
		CreatedAt:    time.Unix(0, r.CreatedAt).UTC(),
		UpdatedAt:    time.Unix(0, r.UpdatedAt).UTC(),
	}
}

func (r *SQLiteMessageRepo) Append(sender, receiver models.Identity, content string) (*models.Message, error) {
	if content == "" {
		return nil, errors.New("empty content")
	}
	now := time.Now().UTC()

	res, err := r.db.Exec(`
		INSERT INTO messages (sender_id, sender_role, receiver_id, receiver_role, content, is_read, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		sender.ID, string(sender.Role), receiver.ID, string(receiver.Role),
		content, now.UnixNano(), now.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("append message id: %w", err)
	}

	return &models.Message{
		ID:           int(id),
		SenderID:     sender.ID,
		SenderRole:   sender.Role,
		ReceiverID:   receiver.ID,
		ReceiverRole: receiver.Role,
		Content:      content,
		IsRead:       false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (r *SQLiteMessageRepo) MarkRead(receiver, sender models.Identity) error {
	now := time.Now().UTC()
	_, err := r.db.Exec(`
		UPDATE messages SET is_read = 1, updated_at = ?
		WHERE sender_id = ? AND sender_role = ?
		  AND receiver_id = ? AND receiver_role = ?
		  AND is_read = 0`,
		now.UnixNano(),
		sender.ID, string(sender.Role),
		receiver.ID, string(receiver.Role),
	)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

func (r *SQLiteMessageRepo) History(a, b models.Identity) ([]models.Message, error) {
	var rows []messageRow
	err := r.db.Select(&rows, `
		SELECT id, sender_id, sender_role, receiver_id, receiver_role, content, is_read, created_at, updated_at
		FROM messages
		WHERE (sender_id = ? AND sender_role = ? AND receiver_id = ? AND receiver_role = ?)
		   OR (sender_id = ? AND sender_role = ? AND receiver_id = ? AND receiver_role = ?)
		ORDER BY created_at ASC, id ASC`,
		a.ID, string(a.Role), b.ID, string(b.Role),
		b.ID, string(b.Role), a.ID, string(a.Role),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}

	msgs := make([]models.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, row.toModel())
	}
	return msgs, nil
}

func (r *SQLiteMessageRepo) ListByParticipant(p models.Identity) ([]models.ConversationSummary, error) {
	var rows []messageRow
	err := r.db.Select(&rows, `
		SELECT id, sender_id, sender_role, receiver_id, receiver_role, content, is_read, created_at, updated_at
		FROM messages
		WHERE (sender_id = ? AND sender_role = ?)
		   OR (receiver_id = ? AND receiver_role = ?)
		ORDER BY created_at DESC, id DESC`,
		p.ID, string(p.Role), p.ID, string(p.Role),
	)
	if err != nil {
		return nil, fmt.Errorf("list by participant: %w", err)
	}

	// Rows arrive newest-first, so the first row seen per counterpart is
	// that conversation's last message and the summary slice is already
	// ordered by recency.
	summaries := []models.ConversationSummary{}
	index := make(map[models.Identity]int)
	for _, row := range rows {
		msg := row.toModel()
		cp := msg.Sender()
		if cp == p {
			cp = msg.Receiver()
		}

		i, ok := index[cp]
		if !ok {
			summaries = append(summaries, models.ConversationSummary{
				CounterpartID:   cp.ID,
				CounterpartRole: cp.Role,
				LastMessage:     msg.Content,
				LastMessageTime: msg.CreatedAt,
			})
			i = len(summaries) - 1
			index[cp] = i
		}
		if msg.Receiver() == p && !msg.IsRead {
			summaries[i].UnreadCount++
		}
	}
	return summaries, nil
}
