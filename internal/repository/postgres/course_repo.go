package postgres

import (
	"context"
	"strings"

	"github.com/dom/skillswap/internal/domain"
	"github.com/dom/skillswap/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	notEndedClause        = "(sessions.date_session > ? OR (sessions.date_session = ? AND sessions.end_time > ?))"
	attendeeCountSubquery = "(SELECT COUNT(*) FROM attendances WHERE attendances.course_id = courses.session_id)"
)

type courseRepository struct {
	db *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *courseRepository {
	return &courseRepository{db: db}
}

// Create writes the session row and the course row together.
func (r *courseRepository) Create(ctx context.Context, course *domain.Course) error {
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		course.Session.Kind = domain.SessionKindCourse
		if err := tx.Omit(clause.Associations).Create(&course.Session).Error; err != nil {
			return err
		}
		course.SessionID = course.Session.ID
		return tx.Omit(clause.Associations).Create(course).Error
	})
}

func (r *courseRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Course, error) {
	var course domain.Course
	err := conn(ctx, r.db).
		Select("courses.*, "+attendeeCountSubquery+" AS attendee_count").
		Preload("Session.SkillTaught.Category").
		Preload("Location").
		Preload("Host").
		First(&course, "courses.session_id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// GetForUpdate loads the course row locked for the rest of the transaction.
func (r *courseRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Course, error) {
	var course domain.Course
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&course, "session_id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *courseRepository) Update(ctx context.Context, course *domain.Course) error {
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&course.Session).
			Select("date_session", "start_time", "end_time", "description", "rate_id", "skill_taught_id", "updated_at").
			Updates(&course.Session).Error
		if err != nil {
			return err
		}
		return tx.Model(course).Select("location_id", "max_attendees").Updates(course).Error
	})
}

// Delete removes the roster, the course and its session row.
func (r *courseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("course_id = ?", id).Delete(&domain.Attendance{}).Error; err != nil {
			return err
		}
		result := tx.Where("session_id = ?", id).Delete(&domain.Course{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("id = ?", id).Delete(&domain.SessionCore{}).Error
	})
}

func (r *courseRepository) ListAvailable(ctx context.Context, f repository.SessionFilter) ([]*domain.Course, error) {
	q := r.listQuery(ctx, f).
		Where("courses.host_id <> ?", f.ViewerID).
		Where("NOT EXISTS (SELECT 1 FROM attendances WHERE attendances.course_id = courses.session_id AND attendances.user_id = ?)", f.ViewerID).
		Where("courses.max_attendees > " + attendeeCountSubquery)
	if f.SkillName != "" {
		q = q.Joins("JOIN skills ON skills.id = sessions.skill_taught_id").
			Where("LOWER(skills.name) LIKE ?", "%"+strings.ToLower(f.SkillName)+"%")
	}

	var courses []*domain.Course
	if err := q.Find(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *courseRepository) ListByHost(ctx context.Context, f repository.SessionFilter) ([]*domain.Course, error) {
	var courses []*domain.Course
	err := r.listQuery(ctx, f).
		Where("courses.host_id = ?", f.ViewerID).
		Find(&courses).Error
	if err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *courseRepository) ListByAttendee(ctx context.Context, f repository.SessionFilter) ([]*domain.Course, error) {
	var courses []*domain.Course
	err := r.listQuery(ctx, f).
		Where("EXISTS (SELECT 1 FROM attendances WHERE attendances.course_id = courses.session_id AND attendances.user_id = ?)", f.ViewerID).
		Find(&courses).Error
	if err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *courseRepository) listQuery(ctx context.Context, f repository.SessionFilter) *gorm.DB {
	return conn(ctx, r.db).
		Model(&domain.Course{}).
		Select("courses.*, "+attendeeCountSubquery+" AS attendee_count").
		Joins("JOIN sessions ON sessions.id = courses.session_id").
		Where(notEndedClause, f.Today, f.Today, f.Clock).
		Preload("Session.SkillTaught").
		Preload("Location").
		Preload("Host").
		Order("sessions.date_session, sessions.start_time")
}
