package postgres

import (
	"context"

	"github.com/dom/skillswap/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type attendanceRepository struct {
	db *gorm.DB
}

func NewAttendanceRepository(db *gorm.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (r *attendanceRepository) Create(ctx context.Context, attendance *domain.Attendance) error {
	return conn(ctx, r.db).Omit("User").Create(attendance).Error
}

func (r *attendanceRepository) Delete(ctx context.Context, courseID, userID uuid.UUID) error {
	return conn(ctx, r.db).
		Where("course_id = ? AND user_id = ?", courseID, userID).
		Delete(&domain.Attendance{}).Error
}

func (r *attendanceRepository) Count(ctx context.Context, courseID uuid.UUID) (int64, error) {
	var count int64
	err := conn(ctx, r.db).
		Model(&domain.Attendance{}).
		Where("course_id = ?", courseID).
		Count(&count).Error
	return count, err
}

func (r *attendanceRepository) Exists(ctx context.Context, courseID, userID uuid.UUID) (bool, error) {
	var count int64
	err := conn(ctx, r.db).
		Model(&domain.Attendance{}).
		Where("course_id = ? AND user_id = ?", courseID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *attendanceRepository) ListUsers(ctx context.Context, courseID uuid.UUID) ([]*domain.User, error) {
	var users []*domain.User
	err := conn(ctx, r.db).
		Joins("JOIN attendances ON attendances.user_id = users.id").
		Where("attendances.course_id = ?", courseID).
		Order("attendances.id").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}
