package feedback

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/joao-fontenele/farmstore/internal/domain"
)

var ErrFeedbackNotFound = errors.New("feedback not found")

type FeedbackRepository struct {
	db *sql.DB
}

func NewFeedbackRepository(db *sql.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// CountRecent counts submissions since the given time from the ip, or
// with the email when it is non-empty.
func (r *FeedbackRepository) CountRecent(ctx context.Context, since time.Time, ip, email string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM visitor_feedback
		WHERE created_at >= $1
		  AND (ip = $2 OR ($3 <> '' AND email = $3))
	`, since, ip, email).Scan(&count)
	return count, err
}

func (r *FeedbackRepository) Create(ctx context.Context, fb *domain.Feedback) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO visitor_feedback (name, email, rating, interest, comments, ip)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, fb.Name, fb.Email, fb.Rating, fb.Interest, fb.Comments, fb.IP).Scan(&fb.ID, &fb.CreatedAt)
}

func (r *FeedbackRepository) List(ctx context.Context) ([]domain.Feedback, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, email, rating, interest, comments, ip, created_at
		FROM visitor_feedback
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	entries := []domain.Feedback{}
	for rows.Next() {
		var fb domain.Feedback
		if err := rows.Scan(&fb.ID, &fb.Name, &fb.Email, &fb.Rating, &fb.Interest, &fb.Comments, &fb.IP, &fb.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, fb)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *FeedbackRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM visitor_feedback WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrFeedbackNotFound
	}

	return nil
}
