package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campuslink/account-service/internal/domain/entity"
	"github.com/campuslink/account-service/internal/domain/repository"
)

type AvatarRepository struct {
	pool *pgxpool.Pool
}

func NewAvatarRepository(pool *pgxpool.Pool) *AvatarRepository {
	return &AvatarRepository{pool: pool}
}

func (r *AvatarRepository) Create(ctx context.Context, a *entity.Avatar) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO avatars (url, content_type)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, a.URL, a.ContentType)
	return row.Scan(&a.ID, &a.CreatedAt)
}

func (r *AvatarRepository) GetByID(ctx context.Context, id int64) (*entity.Avatar, error) {
	a := &entity.Avatar{}
	row := r.pool.QueryRow(ctx, `
		SELECT id, url, content_type, created_at
		FROM avatars
		WHERE id = $1
	`, id)
	if err := row.Scan(&a.ID, &a.URL, &a.ContentType, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

var _ repository.AvatarRepository = (*AvatarRepository)(nil)
