package postgres

import (
	"context"

	"github.com/dom/skillswap/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type userSessionRepository struct {
	db *gorm.DB
}

func NewUserSessionRepository(db *gorm.DB) *userSessionRepository {
	return &userSessionRepository{db: db}
}

func (r *userSessionRepository) Create(ctx context.Context, session *domain.UserSession) error {
	return conn(ctx, r.db).Create(session).Error
}

func (r *userSessionRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserSession, error) {
	var session domain.UserSession
	err := conn(ctx, r.db).Order("created_at DESC").First(&session, "user_id = ?", userID).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *userSessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return conn(ctx, r.db).Delete(&domain.UserSession{}, "id = ?", id).Error
}

func (r *userSessionRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	return conn(ctx, r.db).Delete(&domain.UserSession{}, "user_id = ?", userID).Error
}
