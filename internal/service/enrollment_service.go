package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dom/skillswap/internal/domain"
	"github.com/dom/skillswap/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EnrollmentService manages course rosters.
type EnrollmentService struct {
	tx             repository.TxManager
	courseRepo     repository.CourseRepository
	attendanceRepo repository.AttendanceRepository
}

func NewEnrollmentService(tx repository.TxManager, courseRepo repository.CourseRepository, attendanceRepo repository.AttendanceRepository) *EnrollmentService {
	return &EnrollmentService{
		tx:             tx,
		courseRepo:     courseRepo,
		attendanceRepo: attendanceRepo,
	}
}

// AddAttendee registers userID on the course. The course row stays locked
// until the surrounding transaction ends, so concurrent joins to the same
// course are checked one after another.
func (s *EnrollmentService) AddAttendee(ctx context.Context, courseID, userID uuid.UUID) (*domain.Attendance, error) {
	var attendance *domain.Attendance
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		course, err := s.courseRepo.GetForUpdate(ctx, courseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrCourseNotFound
			}
			return fmt.Errorf("lock course: %w", err)
		}

		if course.IsHost(userID) {
			return domain.ErrHostCannotAttend
		}

		enrolled, err := s.attendanceRepo.Exists(ctx, courseID, userID)
		if err != nil {
			return fmt.Errorf("check enrollment: %w", err)
		}
		if enrolled {
			return domain.ErrAlreadyEnrolled
		}

		count, err := s.attendanceRepo.Count(ctx, courseID)
		if err != nil {
			return fmt.Errorf("count attendees: %w", err)
		}
		if count >= int64(course.MaxAttendees) {
			return domain.ErrCourseFull
		}

		attendance = &domain.Attendance{CourseID: courseID, UserID: userID}
		if err := s.attendanceRepo.Create(ctx, attendance); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrAlreadyEnrolled
			}
			return fmt.Errorf("insert attendance: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return attendance, nil
}

// RemoveAttendee succeeds whether or not the user was enrolled.
func (s *EnrollmentService) RemoveAttendee(ctx context.Context, courseID, userID uuid.UUID) error {
	if err := s.attendanceRepo.Delete(ctx, courseID, userID); err != nil {
		return fmt.Errorf("delete attendance: %w", err)
	}
	return nil
}

func (s *EnrollmentService) Attendees(ctx context.Context, courseID uuid.UUID) ([]*domain.User, error) {
	if _, err := s.course(ctx, courseID); err != nil {
		return nil, err
	}
	return s.attendanceRepo.ListUsers(ctx, courseID)
}

func (s *EnrollmentService) CountAttendees(ctx context.Context, courseID uuid.UUID) (int64, error) {
	return s.attendanceRepo.Count(ctx, courseID)
}

func (s *EnrollmentService) IsRegistered(ctx context.Context, courseID, userID uuid.UUID) (bool, error) {
	return s.attendanceRepo.Exists(ctx, courseID, userID)
}

func (s *EnrollmentService) IsFull(ctx context.Context, courseID uuid.UUID) (bool, error) {
	course, err := s.course(ctx, courseID)
	if err != nil {
		return false, err
	}
	count, err := s.attendanceRepo.Count(ctx, courseID)
	if err != nil {
		return false, err
	}
	return count >= int64(course.MaxAttendees), nil
}

func (s *EnrollmentService) course(ctx context.Context, courseID uuid.UUID) (*domain.Course, error) {
	course, err := s.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCourseNotFound
		}
		return nil, err
	}
	return course, nil
}
