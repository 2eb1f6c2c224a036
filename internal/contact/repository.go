package contact

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/joao-fontenele/farmstore/internal/domain"
)

var ErrMessageNotFound = errors.New("message not found")

type MessageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// CountRecent counts messages since the given time that share the ip, or
// the email or phone when those are non-empty.
func (r *MessageRepository) CountRecent(ctx context.Context, since time.Time, ip, email, phone string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM contact_messages
		WHERE created_at >= $1
		  AND (ip = $2 OR ($3 <> '' AND email = $3) OR ($4 <> '' AND phone = $4))
	`, since, ip, email, phone).Scan(&count)
	return count, err
}

func (r *MessageRepository) Create(ctx context.Context, msg *domain.ContactMessage) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO contact_messages (name, email, phone, message, ip)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, msg.Name, msg.Email, msg.Phone, msg.Message, msg.IP).Scan(&msg.ID, &msg.CreatedAt)
}

func (r *MessageRepository) List(ctx context.Context) ([]domain.ContactMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, email, phone, message, ip, created_at
		FROM contact_messages
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	msgs := []domain.ContactMessage{}
	for rows.Next() {
		var m domain.ContactMessage
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.Message, &m.IP, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return msgs, nil
}

func (r *MessageRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM contact_messages WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrMessageNotFound
	}

	return nil
}
