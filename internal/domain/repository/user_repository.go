package repository

import (
	"context"
	"errors"

	"github.com/campuslink/account-service/internal/domain/entity"
)

// Sentinel errors surfaced by repository implementations so the
// application layer can classify persistence failures without
// depending on driver types.
var (
	ErrNotFound      = errors.New("not found")
	ErrEmailTaken    = errors.New("email already taken")
	ErrAvatarMissing = errors.New("referenced avatar does not exist")
)

// UserRepository defines the interface for user-related database operations.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	Update(ctx context.Context, u *entity.User) error
	Delete(ctx context.Context, id int64) error
}
