package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dom/skillswap/internal/domain"
	"github.com/dom/skillswap/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type ProfileService struct {
	userRepo     repository.UserRepository
	courseRepo   repository.CourseRepository
	exchangeRepo repository.ExchangeRepository
	now          func() time.Time
}

func NewProfileService(userRepo repository.UserRepository, courseRepo repository.CourseRepository, exchangeRepo repository.ExchangeRepository) *ProfileService {
	return &ProfileService{
		userRepo:     userRepo,
		courseRepo:   courseRepo,
		exchangeRepo: exchangeRepo,
		now:          time.Now,
	}
}

// SetClock replaces the time source used to hide ended sessions.
func (s *ProfileService) SetClock(now func() time.Time) {
	s.now = now
}

// ProfileUser is the public part of a user. Balance is only filled in when
// the viewer looks at their own profile.
type ProfileUser struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"displayName"`
	MemberSince time.Time `json:"memberSince"`
	Balance     *int64    `json:"balance,omitempty"`
}

// Profile is a user with the sessions they offer that have not ended yet.
type Profile struct {
	User               ProfileUser        `json:"user"`
	HostedCourses      []*domain.Course   `json:"hostedCourses"`
	RequestedExchanges []*domain.Exchange `json:"requestedExchanges"`
}

type UpdateProfileInput struct {
	DisplayName     *string `json:"displayName"`
	CurrentPassword string  `json:"currentPassword"`
	NewPassword     *string `json:"newPassword"`
}

func (s *ProfileService) GetProfile(ctx context.Context, viewerID, userID uuid.UUID) (*Profile, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	filter := repository.SessionFilter{
		ViewerID: userID,
		Today:    now.Format(domain.DateLayout),
		Clock:    now.Format(domain.ClockLayout),
	}

	hosted, err := s.courseRepo.ListByHost(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list hosted courses: %w", err)
	}
	requested, err := s.exchangeRepo.ListByRequester(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list requested exchanges: %w", err)
	}

	profile := &Profile{
		User: ProfileUser{
			ID:          user.ID,
			DisplayName: user.DisplayName,
			MemberSince: user.CreatedAt,
		},
		HostedCourses:      hosted,
		RequestedExchanges: requested,
	}
	if viewerID == userID {
		balance := user.Balance
		profile.User.Balance = &balance
	}
	return profile, nil
}

// UpdateProfile renames the user and/or changes their password. A password
// change needs the current password.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID uuid.UUID, input UpdateProfileInput) (*Profile, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.DisplayName != nil {
		name := strings.TrimSpace(*input.DisplayName)
		if name == "" {
			return nil, domain.ErrInvalidProfile
		}
		if name != user.DisplayName {
			existing, err := s.userRepo.GetByDisplayName(ctx, name)
			if err == nil && existing.ID != user.ID {
				return nil, domain.ErrDisplayNameTaken
			}
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}
			user.DisplayName = name
		}
	}

	if input.NewPassword != nil {
		if len(*input.NewPassword) < minPasswordLength {
			return nil, domain.ErrInvalidProfile
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.CurrentPassword)); err != nil {
			return nil, ErrInvalidCredentials
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*input.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = string(hash)
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrDisplayNameTaken
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.GetProfile(ctx, userID, userID)
}

func (s *ProfileService) user(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
