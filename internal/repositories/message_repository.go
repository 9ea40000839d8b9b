package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"contact-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

const messageColumns = `id, sender_id, sender_name, sender_email, recipient_email, subject, body, status, created_at, updated_at`

// MessageRepository defines persistence interactions for contact messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.NewMessage) (models.Message, error)
	ListInbox(ctx context.Context, viewerEmail string) ([]models.Message, error)
	ListConversation(ctx context.Context, viewerEmail string, counterpartEmail string) ([]models.Message, error)
	ListForViewer(ctx context.Context, viewerEmail string) ([]models.Message, error)
	ListAll(ctx context.Context) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	UpdateStatus(ctx context.Context, messageID int, status models.Status) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage inserts a message with the unread status.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.NewMessage) (models.Message, error) {
	var created models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO contact_messages
        (sender_id, sender_name, sender_email, recipient_email, subject, body, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING `+messageColumns,
		msg.SenderID, msg.SenderName, msg.SenderEmail, msg.RecipientEmail, msg.Subject, msg.Body, models.StatusUnread).
		StructScan(&created)
	return created, err
}

// ListInbox returns all messages addressed to the viewer, newest first.
func (r *MessageRepo) ListInbox(ctx context.Context, viewerEmail string) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+`
        FROM contact_messages
        WHERE recipient_email=$1
        ORDER BY created_at DESC`, viewerEmail)
	return msgs, err
}

// ListConversation returns both directions of a two-party thread,
// oldest first. Matching is by email only so placeholder sender ids
// cannot fragment a conversation.
func (r *MessageRepo) ListConversation(ctx context.Context, viewerEmail string, counterpartEmail string) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+`
        FROM contact_messages
        WHERE (sender_email=$1 AND recipient_email=$2)
           OR (sender_email=$2 AND recipient_email=$1)
        ORDER BY created_at ASC`, viewerEmail, counterpartEmail)
	return msgs, err
}

// ListForViewer returns every message the viewer sent or received,
// oldest first, as input for conversation derivation.
func (r *MessageRepo) ListForViewer(ctx context.Context, viewerEmail string) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+`
        FROM contact_messages
        WHERE sender_email=$1 OR recipient_email=$1
        ORDER BY created_at ASC`, viewerEmail)
	return msgs, err
}

// ListAll returns the whole message store, newest first.
func (r *MessageRepo) ListAll(ctx context.Context) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+`
        FROM contact_messages
        ORDER BY created_at DESC`)
	return msgs, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM contact_messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// UpdateStatus sets a message's status and bumps updated_at. Updating to
// the current status matches zero rows and is a no-op, which keeps
// repeated mark-read calls idempotent.
func (r *MessageRepo) UpdateStatus(ctx context.Context, messageID int, status models.Status) error {
	_, err := r.db.ExecContext(ctx, `UPDATE contact_messages
        SET status=$2, updated_at=NOW()
        WHERE id=$1 AND status <> $2`, messageID, status)
	return err
}
