package review

import (
	"context"
	"database/sql"
	"time"

	"github.com/joao-fontenele/farmstore/internal/domain"
)

type ReviewRepository struct {
	db *sql.DB
}

func NewReviewRepository(db *sql.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

func (r *ReviewRepository) CountRecent(ctx context.Context, since time.Time, ip string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM reviews
		WHERE created_at >= $1 AND ip = $2
	`, since, ip).Scan(&count)
	return count, err
}

func (r *ReviewRepository) Create(ctx context.Context, rv *domain.Review) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO reviews (name, location, rating, message, photo_url, ip)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, rv.Name, rv.Location, rv.Rating, rv.Message, rv.PhotoURL, rv.IP).Scan(&rv.ID, &rv.CreatedAt)
}

func (r *ReviewRepository) List(ctx context.Context) ([]domain.Review, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, location, rating, message, photo_url, ip, created_at
		FROM reviews
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	reviews := []domain.Review{}
	for rows.Next() {
		var (
			rv     domain.Review
			rating sql.NullInt16
		)
		if err := rows.Scan(&rv.ID, &rv.Name, &rv.Location, &rating, &rv.Message, &rv.PhotoURL, &rv.IP, &rv.CreatedAt); err != nil {
			return nil, err
		}
		if rating.Valid {
			v := int(rating.Int16)
			rv.Rating = &v
		}
		reviews = append(reviews, rv)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return reviews, nil
}
