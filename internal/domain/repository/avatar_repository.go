package repository

import (
	"context"

	"github.com/campuslink/account-service/internal/domain/entity"
)

// AvatarRepository defines the interface for avatar rows backing
// the users.avatar_id foreign key.
type AvatarRepository interface {
	Create(ctx context.Context, a *entity.Avatar) error
	GetByID(ctx context.Context, id int64) (*entity.Avatar, error)
}
