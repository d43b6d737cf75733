package postgres

import (
	"context"

	"github.com/dom/skillswap/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *userRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	return conn(ctx, r.db).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user domain.User
	err := conn(ctx, r.db).First(&user, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByDisplayName(ctx context.Context, displayName string) (*domain.User, error) {
	var user domain.User
	err := conn(ctx, r.db).First(&user, "display_name = ?", displayName).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Update saves profile fields. Balance is left alone; it only moves through ApplyDelta.
func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	return conn(ctx, r.db).Model(user).Select("display_name", "password_hash", "updated_at").Updates(user).Error
}

func (r *userRepository) ApplyDelta(ctx context.Context, id uuid.UUID, delta int64) (bool, error) {
	result := conn(ctx, r.db).
		Model(&domain.User{}).
		Where("id = ? AND balance + ? >= 0", id, delta).
		UpdateColumn("balance", gorm.Expr("balance + ?", delta))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
